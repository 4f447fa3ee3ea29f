package store

import "time"

// RoomRecord is the upsertable shape SaveRoomInfo accepts. Zero-value
// pointer fields are omitted from the $set clause by the caller, not by
// bson tags, because the upsert semantics depend on presence, not on
// Go-zero-value.
type RoomRecord struct {
	RoomID             string
	WebRID             string
	Nickname           string
	Avatar             string
	SecUID             string
	StartFollowerCount *int64
}

// BroadcasterRecord is the upsertable shape SaveBroadcasterCard accepts,
// keyed by SecUID.
type BroadcasterRecord struct {
	SecUID         string
	Nickname       string
	Avatar         string
	Signature      string
	LiveStatus     int
	WebRID         string
	FollowerCount  int64
	SelfWebRID     string
}

// RoomStats is the partial-update shape UpdateRoomStats accepts.
type RoomStats struct {
	UserCount      *int64
	TotalUserCount *int64
	LikeTotal      *int64
	Ranks          []RankEntry
}

// RankEntry mirrors event.RankEntry at the store boundary to avoid an
// import cycle between store and event.
type RankEntry struct {
	UserID string `bson:"user_id"`
	Score  int64  `bson:"score"`
}

// BattleRecord is the upsertable shape SaveBattleResult accepts, keyed by
// (BattleID, RoomID).
type BattleRecord struct {
	BattleID  string
	RoomID    string
	Mode      string
	StartTime time.Time
	Teams     []BattleTeamDoc
}

// BattleTeamDoc is one team side within a battle record.
type BattleTeamDoc struct {
	Anchors      []BattleAnchorDoc `bson:"anchors"`
	Rank         int               `bson:"rank"`
	Contributors []string          `bson:"top_contributors"`
}

// BattleAnchorDoc identifies one broadcaster within a battle team. Rank is
// this anchor's individual standing as reported by the platform; in
// free-for-all mode the team order is derived from the first anchor's rank,
// not the team's own rank field.
type BattleAnchorDoc struct {
	UID    string `bson:"uid"`
	WebRID string `bson:"web_rid"`
	Rank   int    `bson:"rank"`
}

// ChatRecord is the durable-buffer-decoded shape inserted into the chats
// time-series collection.
type ChatRecord struct {
	RoomID        string    `bson:"room_id"`
	WebRID        string    `bson:"web_rid"`
	UserID        string    `bson:"user_id"`
	UserName      string    `bson:"user_name"`
	Content       string    `bson:"content"`
	PayGrade      int       `bson:"pay_grade,omitempty"`
	FansClubLevel int       `bson:"fans_club_level,omitempty"`
	EventTime     time.Time `bson:"event_time"`
	CreatedAt     time.Time `bson:"created_at"`
}

// GiftRecord is the durable-buffer-decoded shape inserted into the gifts
// time-series collection.
type GiftRecord struct {
	RoomID            string    `bson:"room_id"`
	WebRID            string    `bson:"web_rid"`
	SenderID          string    `bson:"sender_id"`
	SenderName        string    `bson:"sender_name"`
	GiftID            string    `bson:"gift_id"`
	GiftName          string    `bson:"gift_name"`
	DiamondCount      int64     `bson:"diamond_count"`
	ComboCount        int       `bson:"combo_count"`
	GroupCount        int       `bson:"group_count"`
	GroupID           string    `bson:"group_id,omitempty"`
	RepeatEnd         bool      `bson:"repeat_end"`
	TraceID           string    `bson:"trace_id,omitempty"`
	TotalDiamondCount int64     `bson:"total_diamond_count"`
	EventTime         time.Time `bson:"event_time"`
}

// StatRecord is the durable-buffer-decoded shape inserted into the stats
// time-series collection, if enabled.
type StatRecord struct {
	RoomID    string         `bson:"room_id"`
	WebRID    string         `bson:"web_rid"`
	Kind      string         `bson:"kind"`
	Payload   map[string]any `bson:"payload"`
	EventTime time.Time      `bson:"event_time"`
}
