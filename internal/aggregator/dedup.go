package aggregator

import (
	"container/list"
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"livepulse/internal/buffer"
)

// fingerprint is the dedup key: (trace_id, combo_count, repeat_end).
type fingerprint string

func makeFingerprint(traceID string, combo int, repeatEnd bool) fingerprint {
	return fingerprint(fmt.Sprintf("%s_%d_%t", traceID, combo, repeatEnd))
}

// dedupCache implements the two-tier fingerprint dedup described in
// SPEC_FULL.md §4.C: a bounded insertion-ordered in-memory set (L1) backed
// by the shared external cache's create-if-absent-with-TTL primitive (L2).
type dedupCache struct {
	buf *buffer.Buffer
	log zerolog.Logger

	ttlSeconds int64
	capacity   int

	mu      sync.Mutex
	order   *list.List
	members map[fingerprint]*list.Element
}

func newDedupCache(buf *buffer.Buffer, capacity int, ttlSeconds int64, log zerolog.Logger) *dedupCache {
	return &dedupCache{
		buf:        buf,
		log:        log,
		ttlSeconds: ttlSeconds,
		capacity:   capacity,
		order:      list.New(),
		members:    make(map[fingerprint]*list.Element),
	}
}

// IsDuplicate returns true when fp has already been observed. An empty
// trace_id always skips dedup entirely (per spec), represented by the
// caller never invoking this for that case.
func (d *dedupCache) IsDuplicate(ctx context.Context, fp fingerprint) bool {
	if d.l1Contains(fp) {
		return true
	}

	created, err := d.buf.CreateIfAbsent(ctx, dedupCacheKey(fp), d.ttlSeconds)
	if err != nil {
		// Fail-open: prefer double-counting over silent loss.
		d.log.Warn().Err(err).Msg("dedup cache unreachable, treating as not-duplicate")
		return false
	}
	if !created {
		d.l1Add(fp)
		return true
	}
	return false
}

func dedupCacheKey(fp fingerprint) string {
	return "dedup:gift:" + string(fp)
}

func (d *dedupCache) l1Contains(fp fingerprint) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.members[fp]
	return ok
}

func (d *dedupCache) l1Add(fp fingerprint) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.members[fp]; ok {
		return
	}
	elem := d.order.PushBack(fp)
	d.members[fp] = elem
	for d.order.Len() > d.capacity {
		oldest := d.order.Front()
		if oldest == nil {
			break
		}
		d.order.Remove(oldest)
		delete(d.members, oldest.Value.(fingerprint))
	}
}
