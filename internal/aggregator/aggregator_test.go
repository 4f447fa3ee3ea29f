package aggregator

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"livepulse/internal/event"
)

func newTestAggregator(t *testing.T, opts Options) *Aggregator {
	t.Helper()
	return New(nil, nil, zerolog.Nop(), opts)
}

func TestHandleLargeGiftAccumulatesComboInBuffer(t *testing.T) {
	a := newTestAggregator(t, Options{MaxBufferSize: 10})
	key := comboKey{SenderID: "s1", GiftID: "g1", GroupID: ""}

	if err := a.handleLargeGift(event.Gift{
		RoomID: "r1", SenderID: "s1", GiftID: "g1", DiamondCount: 100, ComboCount: 1,
	}); err != nil {
		t.Fatalf("handleLargeGift() error = %v", err)
	}
	if err := a.handleLargeGift(event.Gift{
		RoomID: "r1", SenderID: "s1", GiftID: "g1", DiamondCount: 100, ComboCount: 5,
	}); err != nil {
		t.Fatalf("handleLargeGift() error = %v", err)
	}

	a.mu.Lock()
	elem, ok := a.entries[key]
	n := a.order.Len()
	a.mu.Unlock()
	if !ok {
		t.Fatal("expected combo entry to exist")
	}
	if n != 1 {
		t.Fatalf("expected a single combo entry for repeated (sender, gift, group), got %d", n)
	}
	entry := elem.Value.(*comboEntry)
	if entry.maxCombo != 5 {
		t.Fatalf("maxCombo = %d, want 5 (max of 1 and 5)", entry.maxCombo)
	}
}

func TestHandleLargeGiftDistinctGroupsGetSeparateEntries(t *testing.T) {
	a := newTestAggregator(t, Options{MaxBufferSize: 10})

	if err := a.handleLargeGift(event.Gift{RoomID: "r1", SenderID: "s1", GiftID: "g1", GroupID: "a", DiamondCount: 100, ComboCount: 1}); err != nil {
		t.Fatalf("handleLargeGift() error = %v", err)
	}
	if err := a.handleLargeGift(event.Gift{RoomID: "r1", SenderID: "s1", GiftID: "g1", GroupID: "b", DiamondCount: 100, ComboCount: 1}); err != nil {
		t.Fatalf("handleLargeGift() error = %v", err)
	}

	a.mu.Lock()
	n := a.order.Len()
	a.mu.Unlock()
	if n != 2 {
		t.Fatalf("expected 2 distinct combo entries for different group_id, got %d", n)
	}
}

func TestHandleLargeGiftMarksForceFlushOnRepeatEnd(t *testing.T) {
	a := newTestAggregator(t, Options{MaxBufferSize: 10})
	key := comboKey{SenderID: "s1", GiftID: "g1"}

	if err := a.handleLargeGift(event.Gift{RoomID: "r1", SenderID: "s1", GiftID: "g1", DiamondCount: 100, ComboCount: 1}); err != nil {
		t.Fatalf("handleLargeGift() error = %v", err)
	}
	if err := a.handleLargeGift(event.Gift{RoomID: "r1", SenderID: "s1", GiftID: "g1", DiamondCount: 100, ComboCount: 2, RepeatEnd: true}); err != nil {
		t.Fatalf("handleLargeGift() error = %v", err)
	}

	a.mu.Lock()
	entry := a.entries[key].Value.(*comboEntry)
	a.mu.Unlock()
	if !entry.forceFlush {
		t.Fatal("expected repeat_end=true on an update to mark the entry for force-flush")
	}
}

func TestHandleSmallGiftDropsNonTerminalFrames(t *testing.T) {
	a := newTestAggregator(t, Options{})
	if err := a.handleSmallGift(context.Background(), event.Gift{RoomID: "r1", DiamondCount: 1, RepeatEnd: false}); err != nil {
		t.Fatalf("handleSmallGift() error = %v", err)
	}
	a.retryMu.Lock()
	n := len(a.retry)
	a.retryMu.Unlock()
	if n != 0 {
		t.Fatal("non-terminal small gift must not be buffered or retried")
	}
}

func TestOrOne(t *testing.T) {
	cases := map[int]int{0: 1, -1: 1, 1: 1, 3: 3}
	for in, want := range cases {
		if got := orOne(in); got != want {
			t.Fatalf("orOne(%d) = %d, want %d", in, got, want)
		}
	}
}
