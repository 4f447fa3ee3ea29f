package session

import (
	"context"
	"errors"

	"github.com/gorilla/websocket"

	"livepulse/internal/wire"
)

// runReceiveLoop reads binary push frames until the connection closes, the
// context is cancelled, or a control=3 signal says the room ended. Decode
// failures on an individual frame or message are logged and skipped; they
// never terminate the loop.
func (s *Session) runReceiveLoop(ctx context.Context, cancel context.CancelFunc) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		s.connMu.Lock()
		conn := s.conn
		s.connMu.Unlock()
		if conn == nil {
			return
		}

		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err) {
				s.log.Debug().Err(err).Str("room_id", s.roomID).Msg("push channel closed unexpectedly")
			} else if !errors.Is(err, context.Canceled) {
				s.log.Debug().Err(err).Str("room_id", s.roomID).Msg("push channel read error")
			}
			return
		}

		frame, err := wire.DecodeFrame(raw)
		if err != nil {
			s.log.Debug().Err(err).Msg("frame decode failed, skipping")
			continue
		}
		if frame.IsHeartbeat() {
			continue
		}

		resp, err := wire.DecodeResponse(frame.Payload)
		if err != nil {
			s.log.Debug().Err(err).Msg("response decode failed, skipping")
			continue
		}

		if resp.NeedAck {
			s.sendAck(frame.LogID, frame.InternalExt)
		}

		ended := false
		for _, m := range resp.Messages {
			if s.dispatch(ctx, m.Method, m.Payload) {
				ended = true
			}
		}
		if ended {
			cancel()
			return
		}
	}
}

func (s *Session) sendAck(logID uint64, internalExt []byte) {
	s.connMu.Lock()
	conn := s.conn
	s.connMu.Unlock()
	if conn == nil {
		return
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, wire.EncodeAck(logID, internalExt)); err != nil {
		s.log.Debug().Err(err).Str("room_id", s.roomID).Msg("ack send failed")
	}
}
