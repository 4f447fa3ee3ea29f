package supervisor

import (
	"context"
	"errors"
	"time"

	"livepulse/internal/ingesterr"
	"livepulse/internal/platform"
	"livepulse/internal/store"
)

const followListPageSize = 20

// discover walks the account's follow list page by page, upserts every
// broadcaster's profile card, and returns those currently live with enough
// metadata to fast-path a Session.
func (sv *Supervisor) discover(ctx context.Context) ([]liveBroadcaster, error) {
	var live []liveBroadcaster

	err := sv.credentialAttempt(ctx, func(cookie string) error {
		live = nil
		offset := 0
		for {
			page, err := sv.platform.FollowListPage(ctx, cookie, sv.deps.Device, sv.opts.SecUserID, offset, followListPageSize)
			if err != nil {
				return err
			}

			for _, item := range page.Items {
				sv.upsertBroadcaster(ctx, item)

				if item.LiveStatus != 1 {
					continue
				}

				webRID := item.WebRID
				if webRID == "" {
					webRID = sv.lookupSelfWebRID(ctx, item.SecUID)
				}
				if webRID == "" {
					sv.log.Warn().Str("sec_uid", item.SecUID).Msg("live broadcaster missing web_rid, dropping")
					continue
				}

				live = append(live, liveBroadcaster{
					webRID:        webRID,
					roomID:        item.RoomID,
					secUID:        item.SecUID,
					uid:           item.UID,
					nickname:      item.Nickname,
					avatar:        item.Avatar,
					followerCount: item.FollowerCount,
				})
			}

			if !page.HasMore {
				return nil
			}
			offset += followListPageSize

			select {
			case <-time.After(1 * time.Second):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	})
	if err != nil {
		return nil, err
	}
	return live, nil
}

func (sv *Supervisor) upsertBroadcaster(ctx context.Context, item platform.FollowedUser) {
	if err := sv.writer.SaveBroadcasterCard(ctx, store.BroadcasterRecord{
		SecUID:        item.SecUID,
		Nickname:      item.Nickname,
		Avatar:        item.Avatar,
		LiveStatus:    item.LiveStatus,
		WebRID:        item.WebRID,
		FollowerCount: item.FollowerCount,
	}); err != nil {
		sv.log.Warn().Err(err).Str("sec_uid", item.SecUID).Msg("broadcaster card upsert failed")
	}
}

// lookupSelfWebRID falls back to the broadcaster's own previously-recorded
// self-hosting routing id when a discovery hit omits web_rid.
func (sv *Supervisor) lookupSelfWebRID(ctx context.Context, secUID string) string {
	webRID, err := sv.writer.GetBroadcasterSelfWebRID(ctx, secUID)
	if err != nil {
		sv.log.Warn().Err(err).Str("sec_uid", secUID).Msg("self web_rid lookup failed")
		return ""
	}
	return webRID
}

func isCredentialInvalid(err error) bool {
	return errors.Is(err, ingesterr.ErrCredentialInvalid)
}
