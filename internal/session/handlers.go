package session

import (
	"context"
	"sort"
	"time"

	"livepulse/internal/event"
	"livepulse/internal/store"
)

// method names dispatched out of a Response's messages_list. Not an
// authoritative wire contract (see decode.go) — just the labels this
// decoder recognizes.
const (
	methodChat        = "WebcastChatMessage"
	methodGift        = "WebcastGiftMessage"
	methodRoomUserSeq = "WebcastRoomUserSeqMessage"
	methodLike        = "WebcastLikeMessage"
	methodControl     = "WebcastControlMessage"
	methodBattle      = "WebcastBattleMessage"
)

// controlStatusEnded is the control-channel signal meaning the broadcaster
// ended the room.
const controlStatusEnded = 3

// dispatch routes one decoded inner message to its handler. It returns
// true when the session should begin draining (the control=3 signal).
func (s *Session) dispatch(ctx context.Context, method string, payload []byte) bool {
	switch method {
	case methodChat:
		s.handleChat(ctx, payload)
	case methodGift:
		s.handleGift(ctx, payload)
	case methodRoomUserSeq:
		s.handleRoomUserSeq(ctx, payload)
	case methodLike:
		s.handleLike(ctx, payload)
	case methodControl:
		return s.handleControl(ctx, payload)
	case methodBattle:
		s.handleBattle(ctx, payload)
	default:
		s.log.Debug().Str("method", method).Msg("unrecognized message method, dropping")
	}
	return false
}

// correctEventTime applies the platform's naive-UTC +8h rule: epoch==0
// means "use local now" (the platform omitted a timestamp), otherwise the
// reported epoch is treated as naive UTC and shifted to the operator's
// UTC+8 locale.
func correctEventTime(epoch time.Time) time.Time {
	if epoch.IsZero() {
		return time.Now()
	}
	return epoch.Add(8 * time.Hour)
}

func (s *Session) handleChat(ctx context.Context, payload []byte) {
	c := decodeChat(payload)
	if c.userID == "" && c.content == "" {
		return
	}

	eventTime := time.Time{}
	if c.eventTimeSec > 0 {
		eventTime = time.Unix(c.eventTimeSec, 0).UTC()
	}

	chat := event.Chat{
		RoomID:        s.roomID,
		WebRID:        s.webRID,
		UserID:        c.userID,
		UserName:      c.userName,
		Content:       c.content,
		PayGrade:      c.payGrade,
		FansClubLevel: c.fansClubLevel,
		EventTime:     correctEventTime(eventTime),
		InsertedAt:    time.Now(),
	}

	record, err := chat.ToBufferRecord()
	if err != nil {
		s.log.Debug().Err(err).Msg("chat serialize failed")
		return
	}
	if err := s.deps.Writer.BufferChat(ctx, record); err != nil {
		s.log.Debug().Err(err).Msg("chat buffer failed")
	}
}

func (s *Session) handleGift(ctx context.Context, payload []byte) {
	g := decodeGift(payload)
	if g.senderID == "" && g.giftID == "" {
		return
	}

	eventTime := time.Time{}
	if g.eventTimeMs > 0 {
		eventTime = time.UnixMilli(g.eventTimeMs).UTC()
	}

	gift := event.Gift{
		RoomID:       s.roomID,
		WebRID:       s.webRID,
		SenderID:     g.senderID,
		SenderName:   g.senderName,
		GiftID:       g.giftID,
		GiftName:     g.giftName,
		IconURL:      g.iconURL,
		DiamondCount: g.diamondCount,
		ComboCount:   g.comboCount,
		GroupCount:   g.groupCount,
		GroupID:      g.groupID,
		RepeatEnd:    g.repeatEnd,
		TraceID:      g.traceID,
		EventTime:    correctEventTime(eventTime),
	}

	if err := s.deps.Aggregator.HandleGift(ctx, gift); err != nil {
		s.log.Debug().Err(err).Msg("gift handling failed")
	}
}

// handleRoomUserSeq is throttled to at most once per ThrottleEvery;
// between invocations it accumulates (online, total, time) to compute
// entry/exit/watch-time deltas on the next allowed invocation.
func (s *Session) handleRoomUserSeq(ctx context.Context, payload []byte) {
	if !s.allowThrottled(&s.lastSeqAt) {
		return
	}

	seq := decodeRoomUserSeq(payload)

	s.seqMu.Lock()
	prevOnline, prevTotal, prevTime := s.prevOnline, s.prevTotal, s.prevSeqTime
	s.prevOnline, s.prevTotal, s.prevSeqTime = seq.online, seq.total, time.Now()
	s.seqMu.Unlock()

	if prevTime.IsZero() {
		return
	}

	newEntries := seq.total - prevTotal
	if newEntries < 0 {
		newEntries = 0
	}
	netGrowth := seq.online - prevOnline
	newExits := newEntries - netGrowth
	if newExits < 0 {
		newExits = 0
	}
	durationInc := seq.online * int64(time.Since(prevTime).Seconds())

	ranks := make([]store.RankEntry, 0, len(seq.ranks))
	for _, r := range seq.ranks {
		ranks = append(ranks, store.RankEntry{UserID: r.userID, Score: r.score})
	}

	online, total := seq.online, seq.total
	if err := s.deps.Writer.UpdateRoomStats(ctx, s.roomID, store.RoomStats{
		UserCount:      &online,
		TotalUserCount: &total,
		Ranks:          ranks,
	}); err != nil {
		s.log.Debug().Err(err).Msg("room user seq stats update failed")
	}
	if err := s.deps.Writer.IncrementRoomStats(ctx, s.roomID, map[string]int64{
		"real_time_entries":    newEntries,
		"real_time_exits":      newExits,
		"total_watch_time_sec": durationInc,
	}); err != nil {
		s.log.Debug().Err(err).Msg("room user seq increment failed")
	}
}

func (s *Session) handleLike(ctx context.Context, payload []byte) {
	if !s.allowThrottled(&s.lastLikeAt) {
		return
	}
	l := decodeLike(payload)
	total := l.total
	if err := s.deps.Writer.UpdateRoomStats(ctx, s.roomID, store.RoomStats{LikeTotal: &total}); err != nil {
		s.log.Debug().Err(err).Msg("like stats update failed")
	}
}

// handleControl returns true when status==3: the broadcaster ended the
// room. This is the one event that tells the dispatcher to drain.
func (s *Session) handleControl(ctx context.Context, payload []byte) bool {
	c := decodeControl(payload)
	if c.status != controlStatusEnded {
		return false
	}
	if err := s.deps.Writer.MarkRoomEnded(ctx, s.roomID); err != nil {
		s.log.Warn().Err(err).Str("room_id", s.roomID).Msg("mark room ended failed")
	}
	return true
}

func (s *Session) handleBattle(ctx context.Context, payload []byte) {
	b := decodeBattle(payload)
	if !b.hasResult || b.status != 2 {
		return
	}

	mode := classifyBattleMode(b)
	teams := buildBattleTeams(b, mode)

	record := store.BattleRecord{
		BattleID:  b.battleID,
		RoomID:    s.roomID,
		Mode:      mode,
		StartTime: time.Now(),
		Teams:     teams,
	}
	if err := s.deps.Writer.SaveBattleResult(ctx, record); err != nil {
		s.log.Debug().Err(err).Msg("battle result save failed")
	}
}

// battleWinStatusDefined reports whether a score's win_status carries one of
// the platform's two defined outcomes (1=win, 2=lose); 0 means undecided.
func battleWinStatusDefined(status int) bool {
	return status == 1 || status == 2
}

// classifyBattleMode implements the team_battle/free_for_all rule: a battle
// is team_battle if any score carries a defined win/lose status, or failing
// that if exactly two anchors are present total; anything else (three or
// more sides/anchors with no decided score, or no anchors at all) is
// free-for-all.
func classifyBattleMode(b rawBattle) string {
	anchorCount := 0
	hasWinStatus := false
	for _, t := range b.teams {
		anchorCount += len(t.anchors)
		if battleWinStatusDefined(t.winStatus) {
			hasWinStatus = true
		}
	}
	if hasWinStatus || anchorCount == 2 {
		return "team_battle"
	}
	return "free_for_all"
}

// firstAnchorRank is the free-for-all sort key: a team's position is driven
// by its first anchor's individual rank, not the team's own rank field. A
// team with no anchors sorts last.
func firstAnchorRank(t store.BattleTeamDoc) int {
	if len(t.Anchors) == 0 {
		return int(^uint(0) >> 1)
	}
	return t.Anchors[0].Rank
}

func buildBattleTeams(b rawBattle, mode string) []store.BattleTeamDoc {
	teams := make([]store.BattleTeamDoc, 0, len(b.teams))
	for _, t := range b.teams {
		anchors := make([]store.BattleAnchorDoc, 0, len(t.anchors))
		for _, a := range t.anchors {
			anchors = append(anchors, store.BattleAnchorDoc{UID: a.uid, WebRID: a.webRID, Rank: a.rank})
		}
		teams = append(teams, store.BattleTeamDoc{
			Anchors:      anchors,
			Rank:         t.rank,
			Contributors: t.contributors,
		})
	}
	if mode == "free_for_all" {
		sort.SliceStable(teams, func(i, j int) bool {
			return firstAnchorRank(teams[i]) < firstAnchorRank(teams[j])
		})
	}
	return teams
}

// allowThrottled reports whether enough time has passed since *last to run
// the throttled handler again, updating *last when it allows the call.
func (s *Session) allowThrottled(last *time.Time) bool {
	interval := s.deps.ThrottleEvery
	if interval <= 0 {
		interval = 2 * time.Second
	}
	s.seqMu.Lock()
	defer s.seqMu.Unlock()
	now := time.Now()
	if now.Sub(*last) < interval {
		return false
	}
	*last = now
	return true
}
