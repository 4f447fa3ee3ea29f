// Package session implements the per-room recorder: connection lifecycle,
// heartbeat, receive loop, and the normalizing event handlers that feed
// the Store Writer and Gift Aggregator.
//
// Grounded on the teacher's internal/session package: Manager's
// Start/Stop staged bring-up (trial validation → start → transport
// connect → heartbeat) becomes the fast/slow-path startup sequence here,
// and Heartbeat's ticker/stopChan shape is reused directly for the push
// channel's 10s heartbeat. The transport's dial/reconnect-monitor
// structure is grounded on internal/stomp/client.go, minus reconnection —
// per SPEC_FULL.md §4.D the session itself never reconnects, restart
// policy lives in the Supervisor.
package session

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"livepulse/internal/aggregator"
	"livepulse/internal/buffer"
	"livepulse/internal/deviceid"
	"livepulse/internal/platform"
	"livepulse/internal/signature"
	"livepulse/internal/store"
)

// Dependencies bundles the shared, process-wide collaborators a Session
// needs; one Session is constructed per room from a single shared
// Dependencies value.
type Dependencies struct {
	Writer     *store.Writer
	Buffer     *buffer.Buffer
	Aggregator *aggregator.Aggregator
	Platform   *platform.Client
	Oracle     signature.Oracle
	Device     deviceid.Identity
	Log        zerolog.Logger

	PushBaseURL      string
	UserAgent        string
	HeartbeatEvery   time.Duration
	ThrottleEvery    time.Duration
}

// FastPathSeed is the metadata the Supervisor already has in hand when it
// spawns a Session from a discovery hit.
type FastPathSeed struct {
	RoomID        string
	WebRID        string
	SecUID        string
	UID           string
	Nickname      string
	Avatar        string
	Cover         string
	FollowerCount int64
	Cookie        string
}

// Session owns one room's recording lifecycle.
type Session struct {
	deps   Dependencies
	cookie string
	log    zerolog.Logger

	roomID string
	webRID string

	state *stateBox

	connMu sync.Mutex
	conn   *websocket.Conn

	seqMu       sync.Mutex
	prevOnline  int64
	prevTotal   int64
	prevSeqTime time.Time
	lastSeqAt   time.Time
	lastLikeAt  time.Time

	doneCh chan struct{}
}

func newSession(deps Dependencies, cookie string) *Session {
	return &Session{
		deps:   deps,
		cookie: cookie,
		log:    deps.Log.With().Str("component", "session").Logger(),
		state:  newStateBox(),
		doneCh: make(chan struct{}),
	}
}

// Done reports when the session has fully terminated.
func (s *Session) Done() <-chan struct{} { return s.doneCh }

// State returns the session's current lifecycle state.
func (s *Session) State() State { return s.state.get() }

// WebRID returns the broadcaster routing id this session is recording.
func (s *Session) WebRID() string { return s.webRID }

// RunFastPath starts a Session from supervisor-supplied seed metadata: a
// provisional room document is written immediately, a lazy-refresh task
// corrects it in the background, and the push connection opens without
// waiting for that correction.
func RunFastPath(ctx context.Context, deps Dependencies, seed FastPathSeed) *Session {
	s := newSession(deps, seed.Cookie)
	s.roomID = seed.RoomID
	s.webRID = seed.WebRID

	go func() {
		defer close(s.doneCh)

		if err := s.deps.Writer.SaveRoomInfo(ctx, store.RoomRecord{
			RoomID:             seed.RoomID,
			WebRID:             seed.WebRID,
			SecUID:             seed.SecUID,
			Nickname:           seed.Nickname,
			Avatar:             seed.Avatar,
			StartFollowerCount: &seed.FollowerCount,
		}); err != nil {
			s.log.Error().Err(err).Str("room_id", seed.RoomID).Msg("fast path: provisional room save failed")
			return
		}

		go s.lazyRefresh(ctx, seed)
		s.runConnection(ctx)
	}()
	return s
}

// RunSlowPath starts a Session with no supervisor-supplied room_id: it
// resolves metadata from the detail endpoint first, aborting cleanly if
// that fails twice in a row.
func RunSlowPath(ctx context.Context, deps Dependencies, cookie, webRID, secUID string) *Session {
	s := newSession(deps, cookie)
	s.webRID = webRID

	go func() {
		defer close(s.doneCh)

		detail, err := s.deps.Platform.RoomDetail(ctx, cookie, s.deps.Device, webRID, secUID)
		if err != nil {
			s.log.Warn().Err(err).Str("web_rid", webRID).Msg("slow path: first detail fetch failed, retrying in 3s")
			select {
			case <-time.After(3 * time.Second):
			case <-ctx.Done():
				return
			}
			detail, err = s.deps.Platform.RoomDetail(ctx, cookie, s.deps.Device, webRID, secUID)
			if err != nil {
				s.log.Warn().Err(err).Str("web_rid", webRID).Msg("slow path: second detail fetch failed, aborting without recording")
				return
			}
		}

		s.roomID = detail.RoomID
		s.webRID = detail.WebRID

		if err := s.deps.Writer.SaveRoomInfo(ctx, store.RoomRecord{
			RoomID:             detail.RoomID,
			WebRID:             detail.WebRID,
			SecUID:             detail.SecUID,
			Nickname:           detail.Nickname,
			Avatar:             detail.Avatar,
			StartFollowerCount: &detail.FollowerCount,
		}); err != nil {
			s.log.Error().Err(err).Str("room_id", detail.RoomID).Msg("slow path: room save failed")
			return
		}

		s.runConnection(ctx)
	}()
	return s
}

// lazyRefresh replaces the fast path's provisional metadata with the
// detail endpoint's authoritative copy, retrying up to 5 times with a
// 10+5i second backoff.
func (s *Session) lazyRefresh(ctx context.Context, seed FastPathSeed) {
	for i := 0; i < 5; i++ {
		wait := time.Duration(10+5*i) * time.Second
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return
		}

		detail, err := s.deps.Platform.RoomDetail(ctx, s.cookie, s.deps.Device, seed.WebRID, seed.SecUID)
		if err != nil {
			s.log.Debug().Err(err).Int("attempt", i+1).Str("web_rid", seed.WebRID).Msg("lazy refresh attempt failed")
			continue
		}

		if err := s.deps.Writer.SaveRoomInfo(ctx, store.RoomRecord{
			RoomID:   seed.RoomID,
			WebRID:   detail.WebRID,
			SecUID:   detail.SecUID,
			Nickname: detail.Nickname,
			Avatar:   detail.Avatar,
		}); err != nil {
			s.log.Warn().Err(err).Msg("lazy refresh: room save failed")
			return
		}
		if err := s.deps.Writer.UpdateRoomRealtime(ctx, seed.RoomID, 1, detail.FollowerCount); err != nil {
			s.log.Warn().Err(err).Msg("lazy refresh: realtime update failed")
		}
		return
	}
	s.log.Debug().Str("web_rid", seed.WebRID).Msg("lazy refresh exhausted all attempts")
}

// runConnection drives the state machine from connecting through
// terminated, guaranteeing transport close and heartbeat cancellation on
// every exit path.
func (s *Session) runConnection(ctx context.Context) {
	s.state.set(StateConnecting)

	sessCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	conn, err := s.dial(sessCtx)
	if err != nil {
		s.log.Warn().Err(err).Str("room_id", s.roomID).Msg("push channel handshake failed")
		s.state.set(StateTerminated)
		return
	}
	s.connMu.Lock()
	s.conn = conn
	s.connMu.Unlock()
	s.state.set(StateConnected)
	s.log.Info().Str("room_id", s.roomID).Str("web_rid", s.webRID).Msg("session connected")

	heartbeatDone := make(chan struct{})
	go func() {
		defer close(heartbeatDone)
		s.runHeartbeat(sessCtx)
	}()

	s.runReceiveLoop(sessCtx, cancel)

	s.state.set(StateDraining)
	cancel()
	<-heartbeatDone

	s.connMu.Lock()
	if s.conn != nil {
		s.conn.Close()
	}
	s.connMu.Unlock()

	s.state.set(StateTerminated)
	s.log.Info().Str("room_id", s.roomID).Msg("session terminated")
}

func (s *Session) dial(ctx context.Context) (*websocket.Conn, error) {
	u, err := s.buildPushURL()
	if err != nil {
		return nil, fmt.Errorf("session: build push url: %w", err)
	}
	header := make(map[string][]string)
	header["Cookie"] = []string{s.cookie}
	header["User-Agent"] = []string{s.deps.UserAgent}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, resp, err := dialer.DialContext(ctx, u, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("session: dial: http %d: %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("session: dial: %w", err)
	}
	return conn, nil
}

func (s *Session) buildPushURL() (string, error) {
	dev := s.deps.Device
	params := signature.Params{
		"live_id":             "12",
		"aid":                 "0",
		"version_code":        "170400",
		"webcast_sdk_version": "1.0.0",
		"room_id":             s.roomID,
		"sub_room_id":         "",
		"sub_channel_id":      "",
		"did_rule":            "1",
		"user_unique_id":      dev.UserUniqueID,
		"device_platform":     dev.DevicePlatform,
		"device_type":         dev.DeviceType,
		"ac":                  "wifi",
		"identity":            "audience",
	}
	digest := signature.Digest(params)
	sig, err := s.deps.Oracle.Sign(digest)
	if err != nil {
		return "", fmt.Errorf("sign push url: %w", err)
	}

	u, err := url.Parse(s.deps.PushBaseURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("room_id", s.roomID)
	q.Set("signature", sig)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
