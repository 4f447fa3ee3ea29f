package supervisor

import (
	"context"

	"livepulse/internal/registry"
	"livepulse/internal/session"
)

func sessionEntry(lb liveBroadcaster, cancel context.CancelFunc, s *session.Session) registry.Entry {
	return registry.Entry{
		WebRID:   lb.webRID,
		RoomID:   lb.roomID,
		Nickname: lb.nickname,
		Cancel:   cancel,
		Done:     s.Done(),
	}
}

const liveStatusEnded = 4

// reap classifies every tracked session whose Session has completed:
// settle (mark ended, untrack) when the store already shows it ended or the
// broadcaster dropped out of the live set, or when the live set now reports
// a different room_id for the same broadcaster (same settlement, a
// subsequent launch phase starts the new episode).
func (sv *Supervisor) reap(ctx context.Context, live []liveBroadcaster) {
	liveByWebRID := make(map[string]liveBroadcaster, len(live))
	for _, lb := range live {
		liveByWebRID[lb.webRID] = lb
	}

	for _, e := range sv.reg.Snapshot() {
		select {
		case <-e.Done:
		default:
			continue // still running
		}

		lb, stillLive := liveByWebRID[e.WebRID]
		status, err := sv.writer.GetRoomLiveStatus(ctx, e.RoomID)
		if err != nil {
			sv.log.Warn().Err(err).Str("web_rid", e.WebRID).Msg("reap: live status lookup failed")
		}

		switch {
		case status == liveStatusEnded || !stillLive:
			sv.settle(ctx, e.RoomID)
		case lb.roomID != "" && lb.roomID != e.RoomID:
			sv.settle(ctx, e.RoomID)
		}

		sv.reg.Untrack(e.WebRID)
	}
}

func (sv *Supervisor) settle(ctx context.Context, roomID string) {
	if roomID == "" {
		return
	}
	if err := sv.writer.MarkRoomEnded(ctx, roomID); err != nil {
		sv.log.Warn().Err(err).Str("room_id", roomID).Msg("reap: settlement mark-ended failed")
	}
}

// launch starts a fast-path Session for every live broadcaster not already
// tracked.
func (sv *Supervisor) launch(ctx context.Context, live []liveBroadcaster) {
	for _, lb := range live {
		if _, tracked := sv.reg.Get(lb.webRID); tracked {
			continue
		}

		cookie, err := sv.currentCookie()
		if err != nil {
			sv.log.Warn().Err(err).Msg("launch: no credential available")
			return
		}

		sessCtx, cancel := context.WithCancel(ctx)
		s := session.RunFastPath(sessCtx, sv.deps, session.FastPathSeed{
			RoomID:        lb.roomID,
			WebRID:        lb.webRID,
			SecUID:        lb.secUID,
			UID:           lb.uid,
			Nickname:      lb.nickname,
			Avatar:        lb.avatar,
			Cover:         lb.cover,
			FollowerCount: lb.followerCount,
			Cookie:        cookie,
		})

		sv.reg.Track(sessionEntry(lb, cancel, s))
		sv.log.Info().Str("web_rid", lb.webRID).Str("room_id", lb.roomID).Msg("launched session")
	}
}

func (sv *Supervisor) currentCookie() (string, error) {
	rec, err := sv.pool.Current()
	if err != nil {
		return "", err
	}
	return rec.Cookie, nil
}
