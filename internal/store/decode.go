package store

import (
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
)

// The durable buffer carries opaque JSON bytes produced by event.Chat /
// event.Gift / event.Stat's ToBufferRecord methods. These shadow structs
// avoid an import cycle (store cannot import event, which conceptually
// sits above it) while matching field-for-field.

type wireGift struct {
	RoomID            string    `json:"room_id"`
	WebRID            string    `json:"web_rid"`
	SenderID          string    `json:"sender_id"`
	SenderName        string    `json:"sender_name"`
	GiftID            string    `json:"gift_id"`
	GiftName          string    `json:"gift_name"`
	DiamondCount      int64     `json:"diamond_count"`
	ComboCount        int       `json:"combo_count"`
	GroupCount        int       `json:"group_count"`
	GroupID           string    `json:"group_id,omitempty"`
	RepeatEnd         bool      `json:"repeat_end"`
	TraceID           string    `json:"trace_id,omitempty"`
	TotalDiamondCount int64     `json:"total_diamond_count"`
	EventTime         time.Time `json:"event_time"`
}

type wireChat struct {
	RoomID        string    `json:"room_id"`
	WebRID        string    `json:"web_rid"`
	UserID        string    `json:"user_id"`
	UserName      string    `json:"user_name"`
	Content       string    `json:"content"`
	PayGrade      int       `json:"pay_grade,omitempty"`
	FansClubLevel int       `json:"fans_club_level,omitempty"`
	EventTime     time.Time `json:"event_time"`
	InsertedAt    time.Time `json:"created_at"`
}

type wireStat struct {
	RoomID    string         `json:"room_id"`
	WebRID    string         `json:"web_rid"`
	Kind      string         `json:"kind"`
	Payload   map[string]any `json:"payload"`
	EventTime time.Time      `json:"event_time"`
}

// decodeGiftBatch deserializes every record, dropping and logging
// malformed ones, and fills in total_diamond_count for any record that
// omitted it (treating missing combo/group as 1) — the same rule the
// aggregator applies, kept here as a defensive fallback.
func decodeGiftBatch(raw [][]byte, log zerolog.Logger) []GiftRecord {
	docs := make([]GiftRecord, 0, len(raw))
	for _, r := range raw {
		var g wireGift
		if err := json.Unmarshal(r, &g); err != nil {
			log.Debug().Err(err).Msg("dropping malformed gift record")
			continue
		}
		total := g.TotalDiamondCount
		if total == 0 {
			combo := g.ComboCount
			if combo <= 0 {
				combo = 1
			}
			group := g.GroupCount
			if group <= 0 {
				group = 1
			}
			total = g.DiamondCount * int64(combo) * int64(group)
		}
		docs = append(docs, GiftRecord{
			RoomID: g.RoomID, WebRID: g.WebRID, SenderID: g.SenderID, SenderName: g.SenderName,
			GiftID: g.GiftID, GiftName: g.GiftName, DiamondCount: g.DiamondCount,
			ComboCount: g.ComboCount, GroupCount: g.GroupCount, GroupID: g.GroupID,
			RepeatEnd: g.RepeatEnd, TraceID: g.TraceID, TotalDiamondCount: total,
			EventTime: g.EventTime,
		})
	}
	return docs
}

func decodeChatBatch(raw [][]byte, log zerolog.Logger) []ChatRecord {
	docs := make([]ChatRecord, 0, len(raw))
	for _, r := range raw {
		var c wireChat
		if err := json.Unmarshal(r, &c); err != nil {
			log.Debug().Err(err).Msg("dropping malformed chat record")
			continue
		}
		docs = append(docs, ChatRecord{
			RoomID: c.RoomID, WebRID: c.WebRID, UserID: c.UserID, UserName: c.UserName,
			Content: c.Content, PayGrade: c.PayGrade, FansClubLevel: c.FansClubLevel,
			EventTime: c.EventTime, CreatedAt: c.InsertedAt,
		})
	}
	return docs
}

func decodeStatBatch(raw [][]byte, log zerolog.Logger) []StatRecord {
	docs := make([]StatRecord, 0, len(raw))
	for _, r := range raw {
		var s wireStat
		if err := json.Unmarshal(r, &s); err != nil {
			log.Debug().Err(err).Msg("dropping malformed stat record")
			continue
		}
		docs = append(docs, StatRecord{RoomID: s.RoomID, WebRID: s.WebRID, Kind: s.Kind, Payload: s.Payload, EventTime: s.EventTime})
	}
	return docs
}
