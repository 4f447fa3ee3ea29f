package session

import (
	"testing"

	"google.golang.org/protobuf/encoding/protowire"
)

func appendUser(b []byte, fieldNum int32, id, nickname string) []byte {
	var user []byte
	user = protowire.AppendTag(user, fUserID, protowire.BytesType)
	user = protowire.AppendString(user, id)
	user = protowire.AppendTag(user, fUserNickname, protowire.BytesType)
	user = protowire.AppendString(user, nickname)

	b = protowire.AppendTag(b, protowire.Number(fieldNum), protowire.BytesType)
	b = protowire.AppendBytes(b, user)
	return b
}

// appendChatUser builds a user substructure carrying the two chat-only
// consumption fields alongside id/nickname.
func appendChatUser(b []byte, fieldNum int32, id, nickname string, payGrade, fansClubLevel int) []byte {
	var user []byte
	user = protowire.AppendTag(user, fUserID, protowire.BytesType)
	user = protowire.AppendString(user, id)
	user = protowire.AppendTag(user, fUserNickname, protowire.BytesType)
	user = protowire.AppendString(user, nickname)

	var payGradeMsg []byte
	payGradeMsg = protowire.AppendTag(payGradeMsg, fPayGradeLevel, protowire.VarintType)
	payGradeMsg = protowire.AppendVarint(payGradeMsg, uint64(payGrade))
	user = protowire.AppendTag(user, fUserPayGrade, protowire.BytesType)
	user = protowire.AppendBytes(user, payGradeMsg)

	var fansClubData []byte
	fansClubData = protowire.AppendTag(fansClubData, fFansClubLevel, protowire.VarintType)
	fansClubData = protowire.AppendVarint(fansClubData, uint64(fansClubLevel))
	var fansClubMsg []byte
	fansClubMsg = protowire.AppendTag(fansClubMsg, fFansClubData, protowire.BytesType)
	fansClubMsg = protowire.AppendBytes(fansClubMsg, fansClubData)
	user = protowire.AppendTag(user, fUserFansClub, protowire.BytesType)
	user = protowire.AppendBytes(user, fansClubMsg)

	b = protowire.AppendTag(b, protowire.Number(fieldNum), protowire.BytesType)
	b = protowire.AppendBytes(b, user)
	return b
}

func TestDecodeChatExtractsUserAndContent(t *testing.T) {
	var b []byte
	b = appendChatUser(b, fChatUser, "u1", "alice", 12, 3)
	b = protowire.AppendTag(b, fChatContent, protowire.BytesType)
	b = protowire.AppendString(b, "hello room")
	b = protowire.AppendTag(b, fChatEventTime, protowire.VarintType)
	b = protowire.AppendVarint(b, 1700000000)

	c := decodeChat(b)
	if c.userID != "u1" || c.userName != "alice" {
		t.Fatalf("unexpected user fields: %+v", c)
	}
	if c.content != "hello room" {
		t.Fatalf("content = %q, want %q", c.content, "hello room")
	}
	if c.eventTimeSec != 1700000000 {
		t.Fatalf("eventTimeSec = %d, want 1700000000", c.eventTimeSec)
	}
	if c.payGrade != 12 {
		t.Fatalf("payGrade = %d, want 12", c.payGrade)
	}
	if c.fansClubLevel != 3 {
		t.Fatalf("fansClubLevel = %d, want 3", c.fansClubLevel)
	}
}

func TestDecodeChatToleratesMissingFields(t *testing.T) {
	c := decodeChat(nil)
	if c.userID != "" || c.content != "" {
		t.Fatalf("expected zero-value rawChat for empty payload, got %+v", c)
	}
}

func TestDecodeGiftPrefersLargerOfRepeatAndComboCount(t *testing.T) {
	var b []byte
	b = appendUser(b, fGiftUser, "s1", "sender")
	b = protowire.AppendTag(b, fGiftGiftID, protowire.VarintType)
	b = protowire.AppendVarint(b, 685)
	b = protowire.AppendTag(b, fGiftRepeatCount, protowire.VarintType)
	b = protowire.AppendVarint(b, 2)
	b = protowire.AppendTag(b, fGiftComboCount, protowire.VarintType)
	b = protowire.AppendVarint(b, 9)
	b = protowire.AppendTag(b, fGiftRepeatEnd, protowire.VarintType)
	b = protowire.AppendVarint(b, 1)
	b = protowire.AppendTag(b, fGiftTraceID, protowire.BytesType)
	b = protowire.AppendString(b, "trace-xyz")

	var giftStruct []byte
	giftStruct = protowire.AppendTag(giftStruct, fGiftStructName, protowire.BytesType)
	giftStruct = protowire.AppendString(giftStruct, "灯牌")
	giftStruct = protowire.AppendTag(giftStruct, fGiftStructIcon, protowire.BytesType)
	giftStruct = protowire.AppendString(giftStruct, "icon.png")
	giftStruct = protowire.AppendTag(giftStruct, fGiftStructDiamonds, protowire.VarintType)
	giftStruct = protowire.AppendVarint(giftStruct, 1)
	b = protowire.AppendTag(b, fGiftGift, protowire.BytesType)
	b = protowire.AppendBytes(b, giftStruct)

	g := decodeGift(b)
	if g.senderID != "s1" || g.senderName != "sender" {
		t.Fatalf("unexpected sender fields: %+v", g)
	}
	if g.giftID != "685" {
		t.Fatalf("giftID = %q, want %q", g.giftID, "685")
	}
	if g.comboCount != 9 {
		t.Fatalf("comboCount = %d, want 9 (max of repeat_count=2 and combo_count=9)", g.comboCount)
	}
	if !g.repeatEnd {
		t.Fatal("expected repeatEnd true")
	}
	if g.traceID != "trace-xyz" {
		t.Fatalf("traceID = %q, want %q", g.traceID, "trace-xyz")
	}
	if g.giftName != "灯牌" || g.iconURL != "icon.png" || g.diamondCount != 1 {
		t.Fatalf("unexpected gift struct fields: %+v", g)
	}
}

func TestDecodeRoomUserSeqExtractsRanks(t *testing.T) {
	var b []byte
	b = protowire.AppendTag(b, fSeqOnline, protowire.VarintType)
	b = protowire.AppendVarint(b, 120)
	b = protowire.AppendTag(b, fSeqTotal, protowire.VarintType)
	b = protowire.AppendVarint(b, 5000)

	var rank []byte
	rank = appendUser(rank, fRankUser, "topuser", "ignored-nickname")
	rank = protowire.AppendTag(rank, fRankScore, protowire.VarintType)
	rank = protowire.AppendVarint(rank, 999)
	b = protowire.AppendTag(b, fSeqRanks, protowire.BytesType)
	b = protowire.AppendBytes(b, rank)

	seq := decodeRoomUserSeq(b)
	if seq.online != 120 || seq.total != 5000 {
		t.Fatalf("unexpected seq totals: %+v", seq)
	}
	if len(seq.ranks) != 1 || seq.ranks[0].userID != "topuser" || seq.ranks[0].score != 999 {
		t.Fatalf("unexpected ranks: %+v", seq.ranks)
	}
}

func TestDecodeControlStatus(t *testing.T) {
	var b []byte
	b = protowire.AppendTag(b, fControlStatus, protowire.VarintType)
	b = protowire.AppendVarint(b, 3)

	c := decodeControl(b)
	if c.status != 3 {
		t.Fatalf("status = %d, want 3", c.status)
	}
}

func TestDecodeLikeTotal(t *testing.T) {
	var b []byte
	b = protowire.AppendTag(b, fLikeTotal, protowire.VarintType)
	b = protowire.AppendVarint(b, 42)

	l := decodeLike(b)
	if l.total != 42 {
		t.Fatalf("total = %d, want 42", l.total)
	}
}

func TestDecodeBattleHasResultOnlyWhenStatusPresent(t *testing.T) {
	noStatus := decodeBattle(nil)
	if noStatus.hasResult {
		t.Fatal("expected hasResult false when the status field is absent")
	}

	var b []byte
	b = protowire.AppendTag(b, fBattleID, protowire.BytesType)
	b = protowire.AppendString(b, "battle-1")
	b = protowire.AppendTag(b, fBattleStatus, protowire.VarintType)
	b = protowire.AppendVarint(b, 2)

	var team []byte
	team = protowire.AppendTag(team, fBattleTeamRank, protowire.VarintType)
	team = protowire.AppendVarint(team, 1)
	team = protowire.AppendTag(team, fBattleTeamWinStatus, protowire.VarintType)
	team = protowire.AppendVarint(team, 1)
	team = protowire.AppendTag(team, fBattleTeamContributors, protowire.BytesType)
	team = protowire.AppendString(team, "u1")
	var anchor []byte
	anchor = protowire.AppendTag(anchor, fBattleAnchorUID, protowire.BytesType)
	anchor = protowire.AppendString(anchor, "a1")
	anchor = protowire.AppendTag(anchor, fBattleAnchorWebRID, protowire.BytesType)
	anchor = protowire.AppendString(anchor, "w1")
	anchor = protowire.AppendTag(anchor, fBattleAnchorRank, protowire.VarintType)
	anchor = protowire.AppendVarint(anchor, 2)
	team = protowire.AppendTag(team, fBattleTeamAnchors, protowire.BytesType)
	team = protowire.AppendBytes(team, anchor)
	b = protowire.AppendTag(b, fBattleTeams, protowire.BytesType)
	b = protowire.AppendBytes(b, team)

	bt := decodeBattle(b)
	if !bt.hasResult || bt.status != 2 {
		t.Fatalf("unexpected result flags: %+v", bt)
	}
	if bt.battleID != "battle-1" {
		t.Fatalf("battleID = %q, want %q", bt.battleID, "battle-1")
	}
	if len(bt.teams) != 1 || bt.teams[0].rank != 1 || bt.teams[0].winStatus != 1 {
		t.Fatalf("unexpected teams: %+v", bt.teams)
	}
	if len(bt.teams[0].anchors) != 1 || bt.teams[0].anchors[0].uid != "a1" || bt.teams[0].anchors[0].webRID != "w1" || bt.teams[0].anchors[0].rank != 2 {
		t.Fatalf("unexpected anchors: %+v", bt.teams[0].anchors)
	}
	if len(bt.teams[0].contributors) != 1 || bt.teams[0].contributors[0] != "u1" {
		t.Fatalf("unexpected contributors: %+v", bt.teams[0].contributors)
	}
}
