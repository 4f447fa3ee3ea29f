// Package event defines the normalized, tagged event variants produced by
// the Session's decoders. Each variant is the typed replacement for the
// dynamically-shaped records used by the reference implementation; each
// carries its own ToBufferRecord serializer so the durable buffer only
// ever stores opaque bytes.
package event

import (
	"encoding/json"
	"time"
)

// Kind tags which variant a buffered record holds.
type Kind string

const (
	KindChat  Kind = "chat"
	KindGift  Kind = "gift"
	KindStat  Kind = "stat"
)

// Chat is the normalized chat message, time-series by InsertedAt.
type Chat struct {
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

// ToBufferRecord serializes the chat event to the durable buffer's opaque
// byte representation.
func (c Chat) ToBufferRecord() ([]byte, error) { return json.Marshal(c) }

// Gift is the normalized gift event prior to aggregation. DiamondCount is
// the unit price after the aggregator's price-override correction;
// TotalDiamondCount, when non-zero, is already the fully rolled-up value
// computed by the aggregator (DiamondCount * ComboCount * GroupCount).
type Gift struct {
	RoomID            string    `json:"room_id"`
	WebRID            string    `json:"web_rid"`
	SenderID          string    `json:"sender_id"`
	SenderName        string    `json:"sender_name"`
	GiftID            string    `json:"gift_id"`
	GiftName          string    `json:"gift_name"`
	IconURL           string    `json:"icon_url,omitempty"`
	DiamondCount      int64     `json:"diamond_count"`
	ComboCount        int       `json:"combo_count"`
	GroupCount        int       `json:"group_count"`
	GroupID           string    `json:"group_id,omitempty"`
	RepeatEnd         bool      `json:"repeat_end"`
	TraceID           string    `json:"trace_id,omitempty"`
	TotalDiamondCount int64     `json:"total_diamond_count"`
	EventTime         time.Time `json:"event_time"`
}

// ToBufferRecord serializes the gift event to the durable buffer's opaque
// byte representation.
func (g Gift) ToBufferRecord() ([]byte, error) { return json.Marshal(g) }

// Stat is a room-level statistics snapshot (viewer seq / like rollups)
// destined for the stats durable queue.
type Stat struct {
	RoomID    string    `json:"room_id"`
	WebRID    string    `json:"web_rid"`
	Kind      string    `json:"kind"` // "viewer_seq" | "like"
	Payload   map[string]any `json:"payload"`
	EventTime time.Time `json:"event_time"`
}

// ToBufferRecord serializes the stat event to the durable buffer's opaque
// byte representation.
func (s Stat) ToBufferRecord() ([]byte, error) { return json.Marshal(s) }

// ViewerSeq carries the raw viewer-count + leaderboard snapshot the
// session's RoomUserSeq handler derives its throttled increments from.
type ViewerSeq struct {
	Online int64
	Total  int64
	Ranks  []RankEntry
}

// RankEntry is one leaderboard row as reported by the platform.
type RankEntry struct {
	UserID string `json:"user_id" bson:"user_id"`
	Score  int64  `json:"score" bson:"score"`
}

// Like carries the cumulative like total reported by the platform.
type Like struct {
	Total int64
}

// Control is a control-channel signal; Status==3 means the broadcaster
// ended the room.
type Control struct {
	Status int
}

// BattleTeam is one side of a PK battle.
type BattleTeam struct {
	Anchors      []BattleAnchor `bson:"anchors"`
	Rank         int            `bson:"rank"`
	Contributors []string       `bson:"top_contributors"`
}

// BattleAnchor identifies one broadcaster participating in a battle team.
type BattleAnchor struct {
	UID    string `bson:"uid"`
	WebRID string `bson:"web_rid"`
}

// BattleFinish is the normalized PK/battle result, keyed by
// (BattleID, RoomID) at the store layer.
type BattleFinish struct {
	BattleID  string
	RoomID    string
	Mode      string // "team_battle" | "free_for_all"
	StartTime time.Time
	Teams     []BattleTeam
}

// PriceCorrection applies a diamond price override in place. Callers pass
// the authoritative price for a known gift name/icon combination; it is a
// no-op helper kept here so both the Session decoder and the Gift
// Aggregator apply corrections identically.
func (g *Gift) PriceCorrection(price int64) {
	g.DiamondCount = price
}
