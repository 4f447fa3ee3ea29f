// Package aggregator implements the Gift Aggregator: dedup of
// retransmitted frames, per-combo rollup of large gifts, and the
// fan-badge/price-override special cases, all ahead of the buffered
// time-series write path.
//
// Mutex discipline (per SPEC_FULL.md §9, grounded on the teacher's
// notifySubscribers copy-then-unlock-then-I/O pattern in
// internal/session/bigo_listener.go): the combo-buffer mutex protects only
// the map: entries are copied out and removed under the lock, then all
// I/O — BufferGift, room increments, cache calls — happens after release.
package aggregator

import (
	"container/list"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"livepulse/internal/buffer"
	"livepulse/internal/event"
	"livepulse/internal/store"
)

// comboKey identifies one in-flight combo entry: (sender_id, gift_id, group_id).
type comboKey struct {
	SenderID string
	GiftID   string
	GroupID  string
}

type comboEntry struct {
	key          comboKey
	roomID       string
	webRID       string
	senderName   string
	giftName     string
	diamondCount int64
	maxCombo     int
	groupCount   int
	traceID      string
	eventTime    time.Time
	lastUpdate   time.Time
	forceFlush   bool
}

// Options configures the aggregator's tunables; zero values fall back to
// the reference defaults.
type Options struct {
	DedupTTLSeconds    int64
	DedupLocalCapacity int
	ComboTimeout       time.Duration
	MaxBufferSize      int
	EvictEvery         time.Duration
}

// Aggregator is the process-wide Gift Aggregator singleton.
type Aggregator struct {
	writer *store.Writer
	dedup  *dedupCache
	log    zerolog.Logger

	comboTimeout time.Duration
	maxBuffer    int
	evictEvery   time.Duration

	mu      sync.Mutex
	order   *list.List // insertion/activity order of comboKey
	entries map[comboKey]*list.Element

	// retryMu/retry hold entries whose buffer write failed (cache
	// unreachable). The aggregator is the only component holding
	// unbuffered state once an entry leaves the combo map, so these are
	// kept in memory and retried on every eviction tick rather than
	// dropped, per the Durable Buffer's contract in SPEC_FULL.md §4.A.
	retryMu sync.Mutex
	retry   []event.Gift

	stopCh chan struct{}
	doneCh chan struct{}
}

// New builds an Aggregator wired to the given store Writer (for buffered
// gift records and room increments) and durable buffer (for the L2 dedup
// tier).
func New(writer *store.Writer, buf *buffer.Buffer, log zerolog.Logger, opts Options) *Aggregator {
	ttl := opts.DedupTTLSeconds
	if ttl <= 0 {
		ttl = 600
	}
	cap := opts.DedupLocalCapacity
	if cap <= 0 {
		cap = 1000
	}
	comboTimeout := opts.ComboTimeout
	if comboTimeout <= 0 {
		comboTimeout = 10 * time.Second
	}
	maxBuffer := opts.MaxBufferSize
	if maxBuffer <= 0 {
		maxBuffer = 10000
	}
	evictEvery := opts.EvictEvery
	if evictEvery <= 0 {
		evictEvery = 1 * time.Second
	}

	return &Aggregator{
		writer:       writer,
		dedup:        newDedupCache(buf, cap, ttl, log),
		log:          log.With().Str("component", "aggregator").Logger(),
		comboTimeout: comboTimeout,
		maxBuffer:    maxBuffer,
		evictEvery:   evictEvery,
		order:        list.New(),
		entries:      make(map[comboKey]*list.Element),
		stopCh:       make(chan struct{}),
		doneCh:       make(chan struct{}),
	}
}

// Start launches the periodic eviction task. Call Stop for graceful
// shutdown.
func (a *Aggregator) Start(ctx context.Context) {
	go a.evictionLoop(ctx)
}

// Stop cancels the periodic task, then flushes all remaining combo entries
// concurrently.
func (a *Aggregator) Stop(ctx context.Context) {
	close(a.stopCh)
	<-a.doneCh

	a.mu.Lock()
	var toFlush []*comboEntry
	for e := a.order.Front(); e != nil; e = e.Next() {
		toFlush = append(toFlush, e.Value.(*comboEntry))
	}
	a.order.Init()
	a.entries = make(map[comboKey]*list.Element)
	a.mu.Unlock()

	a.retryMu.Lock()
	pending := a.retry
	a.retry = nil
	a.retryMu.Unlock()

	var wg sync.WaitGroup
	for _, entry := range toFlush {
		wg.Add(1)
		go func(e *comboEntry) {
			defer wg.Done()
			a.flushEntry(ctx, e)
		}(entry)
	}
	for _, g := range pending {
		wg.Add(1)
		go func(g event.Gift) {
			defer wg.Done()
			a.bufferGiftOrRetry(ctx, g)
		}(g)
	}
	wg.Wait()
}

// HandleGift is the Session-facing entry point: dedup, price correction,
// badge special case, then small/large classification.
func (a *Aggregator) HandleGift(ctx context.Context, g event.Gift) error {
	if g.TraceID != "" {
		fp := makeFingerprint(g.TraceID, g.ComboCount, g.RepeatEnd)
		if a.dedup.IsDuplicate(ctx, fp) {
			return nil
		}
	}

	g.DiamondCount = correctPrice(g.GiftName, g.IconURL, g.DiamondCount)

	if isBadgeGift(g.GiftID, g.GiftName) {
		return a.handleBadgeGift(ctx, g)
	}

	if isSmallGift(g.DiamondCount) {
		return a.handleSmallGift(ctx, g)
	}
	return a.handleLargeGift(g)
}

func (a *Aggregator) handleBadgeGift(ctx context.Context, g event.Gift) error {
	inc := map[string]int64{"fans_ticket_count": 1}
	if g.DiamondCount > 0 {
		inc["total_diamond_count"] = g.DiamondCount
	}
	if err := a.writer.IncrementRoomStats(ctx, g.RoomID, inc); err != nil {
		return fmt.Errorf("aggregator: badge gift increment: %w", err)
	}
	return nil
}

// handleSmallGift only persists the terminal frame; non-terminal frames
// are dropped.
func (a *Aggregator) handleSmallGift(ctx context.Context, g event.Gift) error {
	if !g.RepeatEnd {
		return nil
	}
	combo := orOne(g.ComboCount)
	group := orOne(g.GroupCount)
	g.ComboCount = combo
	g.GroupCount = group
	g.TotalDiamondCount = g.DiamondCount * int64(combo) * int64(group)
	a.bufferGiftOrRetry(ctx, g)
	return nil
}

func orOne(v int) int {
	if v <= 0 {
		return 1
	}
	return v
}

// handleLargeGift routes the frame into the combo buffer, evicting the
// head synchronously on a bound-triggering miss.
func (a *Aggregator) handleLargeGift(g event.Gift) error {
	key := comboKey{SenderID: g.SenderID, GiftID: g.GiftID, GroupID: g.GroupID}

	a.mu.Lock()
	if elem, ok := a.entries[key]; ok {
		e := elem.Value.(*comboEntry)
		if g.ComboCount > e.maxCombo {
			e.maxCombo = g.ComboCount
		}
		if g.GroupCount > e.groupCount {
			e.groupCount = g.GroupCount
		}
		e.lastUpdate = time.Now()
		e.diamondCount = g.DiamondCount
		if g.TraceID != "" {
			e.traceID = g.TraceID
		}
		if g.RepeatEnd {
			e.forceFlush = true
		}
		a.order.MoveToBack(elem)
		a.mu.Unlock()
		return nil
	}

	var toEvict *comboEntry
	if a.order.Len() >= a.maxBuffer {
		front := a.order.Front()
		if front != nil {
			toEvict = front.Value.(*comboEntry)
			a.order.Remove(front)
			delete(a.entries, toEvict.key)
		}
	}

	entry := &comboEntry{
		key:          key,
		roomID:       g.RoomID,
		webRID:       g.WebRID,
		senderName:   g.SenderName,
		giftName:     g.GiftName,
		diamondCount: g.DiamondCount,
		maxCombo:     orOne(g.ComboCount),
		groupCount:   orOne(g.GroupCount),
		traceID:      g.TraceID,
		eventTime:    g.EventTime,
		lastUpdate:   time.Now(),
		forceFlush:   g.RepeatEnd,
	}
	elem := a.order.PushBack(entry)
	a.entries[key] = elem
	a.mu.Unlock()

	if toEvict != nil {
		a.flushEntry(context.Background(), toEvict)
	}
	return nil
}

func (a *Aggregator) evictionLoop(ctx context.Context) {
	defer close(a.doneCh)
	ticker := time.NewTicker(a.evictEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			a.evictDue(ctx)
		case <-a.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (a *Aggregator) evictDue(ctx context.Context) {
	a.retryMu.Lock()
	pending := a.retry
	a.retry = nil
	a.retryMu.Unlock()
	for _, g := range pending {
		a.bufferGiftOrRetry(ctx, g)
	}

	now := time.Now()

	a.mu.Lock()
	var due []*comboEntry
	for e := a.order.Front(); e != nil; {
		next := e.Next()
		entry := e.Value.(*comboEntry)
		if entry.forceFlush || now.Sub(entry.lastUpdate) > a.comboTimeout {
			due = append(due, entry)
			a.order.Remove(e)
			delete(a.entries, entry.key)
		}
		e = next
	}
	a.mu.Unlock()

	for _, entry := range due {
		a.flushEntry(ctx, entry)
	}
}

// flushEntry emits one buffered-gift record for a combo entry leaving the
// buffer. Entries with combo_count <= 0 are dropped silently.
func (a *Aggregator) flushEntry(ctx context.Context, e *comboEntry) {
	if e.maxCombo <= 0 {
		return
	}
	g := event.Gift{
		RoomID: e.roomID, WebRID: e.webRID, SenderID: e.key.SenderID, SenderName: e.senderName,
		GiftID: e.key.GiftID, GiftName: e.giftName, DiamondCount: e.diamondCount,
		ComboCount: e.maxCombo, GroupCount: orOne(e.groupCount), GroupID: e.key.GroupID,
		RepeatEnd: true, TraceID: e.traceID, EventTime: e.eventTime,
	}
	g.TotalDiamondCount = g.DiamondCount * int64(g.ComboCount) * int64(g.GroupCount)
	a.bufferGiftOrRetry(ctx, g)
}

// bufferGiftOrRetry pushes g to the durable buffer. On failure it retains g
// in memory for the next eviction tick rather than losing it — the
// aggregator is the only component holding unbuffered state once a gift
// leaves the combo map, per the Durable Buffer's contract in
// SPEC_FULL.md §4.A.
func (a *Aggregator) bufferGiftOrRetry(ctx context.Context, g event.Gift) {
	record, err := g.ToBufferRecord()
	if err != nil {
		a.log.Error().Err(err).Msg("serialize gift record failed, dropping")
		return
	}
	if err := a.writer.BufferGift(ctx, record); err != nil {
		a.log.Warn().Err(err).Str("room_id", g.RoomID).Msg("buffer write failed, retaining gift in memory for retry")
		a.retryMu.Lock()
		a.retry = append(a.retry, g)
		a.retryMu.Unlock()
	}
}
