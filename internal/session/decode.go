package session

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// The per-method payloads dispatched out of a Response's messages_list have
// no published .proto source (per SPEC_FULL.md §1 the wire schema is
// treated as an opaque fixed decoder), so these are a best-effort field
// mapping reconstructed the same ad-hoc way the teacher's bigo_listener.go
// reverse-engineered its own platform's frames: walk the known field
// numbers, ignore everything else, and tolerate any field being absent.

type rawChat struct {
	userID, userName string
	content          string
	payGrade         int
	fansClubLevel    int
	eventTimeSec     int64
}

type rawGift struct {
	senderID, senderName string
	giftID, giftName     string
	iconURL              string
	diamondCount         int64
	comboCount           int
	groupCount           int
	groupID              string
	repeatEnd            bool
	traceID              string
	eventTimeMs          int64
}

type rawRoomUserSeq struct {
	online int64
	total  int64
	ranks  []rawRank
}

type rawRank struct {
	userID string
	score  int64
}

type rawLike struct {
	total int64
}

type rawControl struct {
	status int
}

type rawBattleTeam struct {
	rank         int
	winStatus    int
	contributors []string
	anchors      []rawBattleAnchor
}

type rawBattleAnchor struct {
	uid    string
	webRID string
	rank   int
}

type rawBattle struct {
	battleID  string
	status    int
	hasResult bool
	teams     []rawBattleTeam
}

// Field numbers, per method. Top-level fields only; nested user/common
// substructures are walked inline where a handler needs one of their
// leaves.
const (
	fChatUser      = 2
	fChatContent   = 3
	fChatEventTime = 18

	fGiftUser        = 7
	fGiftGiftID      = 2
	fGiftRepeatCount = 5
	fGiftComboCount  = 6
	fGiftRepeatEnd   = 9
	fGiftTraceID     = 10
	fGiftGroupCount  = 11
	fGiftGroupID     = 12
	fGiftGift        = 13
	fGiftEventTime   = 19

	fGiftStructName     = 2
	fGiftStructIcon     = 3
	fGiftStructDiamonds = 5

	fUserID       = 1
	fUserNickname = 2
	fUserPayGrade = 8
	fUserFansClub = 9

	fPayGradeLevel = 2

	fFansClubData  = 1
	fFansClubLevel = 2

	fSeqOnline = 2
	fSeqTotal  = 3
	fSeqRanks  = 6
	fRankUser  = 1
	fRankScore = 2

	fLikeTotal = 3

	fControlStatus = 2

	fBattleID     = 1
	fBattleStatus = 2
	fBattleTeams  = 3

	fBattleTeamRank         = 1
	fBattleTeamAnchors      = 2
	fBattleTeamContributors = 3
	fBattleTeamWinStatus    = 4

	fBattleAnchorUID    = 1
	fBattleAnchorWebRID = 2
	fBattleAnchorRank   = 3
)

// field is one decoded (number, type, value) triple; value holds the
// already-unwrapped payload (varint value as raw bytes, or bytes content
// with no length prefix).
type field struct {
	num int32
	typ protowire.Type
	raw []byte
}

func walkFields(b []byte) []field {
	var out []field
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return out
		}
		b = b[n:]
		switch typ {
		case protowire.VarintType:
			_, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return out
			}
			out = append(out, field{int32(num), typ, b[:n]})
			b = b[n:]
		case protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return out
			}
			out = append(out, field{int32(num), typ, v})
			b = b[n:]
		case protowire.Fixed32Type:
			_, n := protowire.ConsumeFixed32(b)
			if n < 0 {
				return out
			}
			out = append(out, field{int32(num), typ, b[:n]})
			b = b[n:]
		case protowire.Fixed64Type:
			_, n := protowire.ConsumeFixed64(b)
			if n < 0 {
				return out
			}
			out = append(out, field{int32(num), typ, b[:n]})
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return out
			}
			b = b[n:]
		}
	}
	return out
}

func varint(raw []byte) int64 {
	v, _ := protowire.ConsumeVarint(raw)
	return int64(v)
}

func decodeUser(raw []byte) (id, nickname string) {
	for _, f := range walkFields(raw) {
		switch f.num {
		case fUserID:
			id = string(f.raw)
		case fUserNickname:
			nickname = string(f.raw)
		}
	}
	return id, nickname
}

// decodeChatUser walks the same user substructure as decodeUser but also
// extracts the two chat-only consumption fields: pay_grade.level and
// fans_club.data.level.
func decodeChatUser(raw []byte) (id, nickname string, payGrade, fansClubLevel int) {
	for _, f := range walkFields(raw) {
		switch f.num {
		case fUserID:
			id = string(f.raw)
		case fUserNickname:
			nickname = string(f.raw)
		case fUserPayGrade:
			for _, pf := range walkFields(f.raw) {
				if pf.num == fPayGradeLevel {
					payGrade = int(varint(pf.raw))
				}
			}
		case fUserFansClub:
			for _, cf := range walkFields(f.raw) {
				if cf.num == fFansClubData {
					for _, df := range walkFields(cf.raw) {
						if df.num == fFansClubLevel {
							fansClubLevel = int(varint(df.raw))
						}
					}
				}
			}
		}
	}
	return id, nickname, payGrade, fansClubLevel
}

func decodeChat(payload []byte) rawChat {
	var c rawChat
	for _, f := range walkFields(payload) {
		switch f.num {
		case fChatUser:
			c.userID, c.userName, c.payGrade, c.fansClubLevel = decodeChatUser(f.raw)
		case fChatContent:
			c.content = string(f.raw)
		case fChatEventTime:
			c.eventTimeSec = varint(f.raw)
		}
	}
	return c
}

func decodeGiftStruct(raw []byte) (name, icon string, diamonds int64) {
	for _, f := range walkFields(raw) {
		switch f.num {
		case fGiftStructName:
			name = string(f.raw)
		case fGiftStructIcon:
			icon = string(f.raw)
		case fGiftStructDiamonds:
			diamonds = varint(f.raw)
		}
	}
	return name, icon, diamonds
}

func decodeGift(payload []byte) rawGift {
	var g rawGift
	var giftID int64
	for _, f := range walkFields(payload) {
		switch f.num {
		case fGiftUser:
			g.senderID, g.senderName = decodeUser(f.raw)
		case fGiftGiftID:
			giftID = varint(f.raw)
		case fGiftRepeatCount:
			g.comboCount = int(varint(f.raw))
		case fGiftComboCount:
			if c := int(varint(f.raw)); c > g.comboCount {
				g.comboCount = c
			}
		case fGiftRepeatEnd:
			g.repeatEnd = varint(f.raw) != 0
		case fGiftTraceID:
			g.traceID = string(f.raw)
		case fGiftGroupCount:
			g.groupCount = int(varint(f.raw))
		case fGiftGroupID:
			g.groupID = string(f.raw)
		case fGiftGift:
			g.giftName, g.iconURL, g.diamondCount = decodeGiftStruct(f.raw)
		case fGiftEventTime:
			g.eventTimeMs = varint(f.raw)
		}
	}
	g.giftID = fmt.Sprintf("%d", giftID)
	return g
}

func decodeRoomUserSeq(payload []byte) rawRoomUserSeq {
	var s rawRoomUserSeq
	for _, f := range walkFields(payload) {
		switch f.num {
		case fSeqOnline:
			s.online = varint(f.raw)
		case fSeqTotal:
			s.total = varint(f.raw)
		case fSeqRanks:
			var r rawRank
			for _, rf := range walkFields(f.raw) {
				switch rf.num {
				case fRankUser:
					r.userID, _ = decodeUser(rf.raw)
				case fRankScore:
					r.score = varint(rf.raw)
				}
			}
			s.ranks = append(s.ranks, r)
		}
	}
	return s
}

func decodeLike(payload []byte) rawLike {
	var l rawLike
	for _, f := range walkFields(payload) {
		if f.num == fLikeTotal {
			l.total = varint(f.raw)
		}
	}
	return l
}

func decodeControl(payload []byte) rawControl {
	var c rawControl
	for _, f := range walkFields(payload) {
		if f.num == fControlStatus {
			c.status = int(varint(f.raw))
		}
	}
	return c
}

func decodeBattle(payload []byte) rawBattle {
	var b rawBattle
	for _, f := range walkFields(payload) {
		switch f.num {
		case fBattleID:
			b.battleID = string(f.raw)
		case fBattleStatus:
			b.status = int(varint(f.raw))
			b.hasResult = true
		case fBattleTeams:
			var t rawBattleTeam
			for _, tf := range walkFields(f.raw) {
				switch tf.num {
				case fBattleTeamRank:
					t.rank = int(varint(tf.raw))
				case fBattleTeamWinStatus:
					t.winStatus = int(varint(tf.raw))
				case fBattleTeamContributors:
					t.contributors = append(t.contributors, string(tf.raw))
				case fBattleTeamAnchors:
					var a rawBattleAnchor
					for _, af := range walkFields(tf.raw) {
						switch af.num {
						case fBattleAnchorUID:
							a.uid = string(af.raw)
						case fBattleAnchorWebRID:
							a.webRID = string(af.raw)
						case fBattleAnchorRank:
							a.rank = int(varint(af.raw))
						}
					}
					t.anchors = append(t.anchors, a)
				}
			}
			b.teams = append(b.teams, t)
		}
	}
	return b
}
