package session

import (
	"context"
	"time"

	"github.com/gorilla/websocket"

	"livepulse/internal/wire"
)

// runHeartbeat sends a heartbeat PushFrame every HeartbeatEvery until ctx
// is cancelled. Grounded on the teacher's Heartbeat.run ticker/stopChan
// shape, collapsed to a plain cancellable loop since the Session owns its
// own context instead of a separate Start/Stop pair.
func (s *Session) runHeartbeat(ctx context.Context) {
	interval := s.deps.HeartbeatEvery
	if interval <= 0 {
		interval = 10 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sendHeartbeat()
		case <-ctx.Done():
			return
		}
	}
}

func (s *Session) sendHeartbeat() {
	s.connMu.Lock()
	conn := s.conn
	s.connMu.Unlock()
	if conn == nil {
		return
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, wire.EncodeHeartbeat()); err != nil {
		s.log.Debug().Err(err).Str("room_id", s.roomID).Msg("heartbeat send failed")
	}
}
