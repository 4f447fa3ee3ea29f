package aggregator

import (
	"testing"

	"github.com/rs/zerolog"
)

func TestMakeFingerprintIncludesComboAndRepeatEnd(t *testing.T) {
	a := makeFingerprint("trace1", 3, false)
	b := makeFingerprint("trace1", 3, true)
	c := makeFingerprint("trace1", 4, false)
	if a == b || a == c || b == c {
		t.Fatalf("expected distinct fingerprints, got %q %q %q", a, b, c)
	}
}

func TestDedupCacheL1DetectsRepeatWithoutBuffer(t *testing.T) {
	d := newDedupCache(nil, 10, 600, zerolog.Nop())
	fp := makeFingerprint("trace1", 1, true)

	d.l1Add(fp)
	if !d.l1Contains(fp) {
		t.Fatal("expected fingerprint to be present in L1 after add")
	}
}

func TestDedupCacheL1EvictsOldestBeyondCapacity(t *testing.T) {
	d := newDedupCache(nil, 2, 600, zerolog.Nop())
	fp1 := makeFingerprint("a", 1, true)
	fp2 := makeFingerprint("b", 1, true)
	fp3 := makeFingerprint("c", 1, true)

	d.l1Add(fp1)
	d.l1Add(fp2)
	d.l1Add(fp3)

	if d.l1Contains(fp1) {
		t.Fatal("expected oldest fingerprint to be evicted once capacity exceeded")
	}
	if !d.l1Contains(fp2) || !d.l1Contains(fp3) {
		t.Fatal("expected the two most recent fingerprints to remain")
	}
}

func TestIsDuplicateL1HitNeverTouchesBuffer(t *testing.T) {
	// A nil *buffer.Buffer would panic if IsDuplicate ever dereferenced it;
	// this confirms the L1 hit path returns before reaching that branch.
	d := newDedupCache(nil, 10, 600, zerolog.Nop())
	fp := makeFingerprint("trace-seen", 1, true)
	d.l1Add(fp)
	if !d.l1Contains(fp) {
		t.Fatal("expected L1 hit to short-circuit before any buffer call")
	}
}
