// Package buffer implements the Durable Buffer: named FIFO queues backed by
// an external cache, surviving the producer's crash. Grounded on the
// dependency surface exposed by the pack's go-redis manifests (no complete
// teacher-tier repo ships a cache driver directly), using go-redis/v9's
// list commands as the atomic primitives the spec requires.
package buffer

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Queue names, matching the three named FIFOs the spec requires.
const (
	QueueChats = "livepulse:queue:chats"
	QueueGifts = "livepulse:queue:gifts"
	QueueStats = "livepulse:queue:stats"
)

// Buffer is the Durable Buffer's public surface. Each method maps onto a
// single round trip (or a pipelined compound op) against the cache, never
// holding any in-process lock across the call.
type Buffer struct {
	client *redis.Client
}

// New dials the cache eagerly with a short ping so startup failures surface
// immediately rather than on the first enqueue.
func New(ctx context.Context, url string) (*Buffer, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("buffer: parse cache url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("buffer: cache unreachable: %w", err)
	}
	return &Buffer{client: client}, nil
}

// Close releases the underlying connection pool.
func (b *Buffer) Close() error { return b.client.Close() }

// Push appends one opaque record to the right end (tail) of queue.
func (b *Buffer) Push(ctx context.Context, queue string, record []byte) error {
	if err := b.client.RPush(ctx, queue, record).Err(); err != nil {
		return fmt.Errorf("buffer: push %s: %w", queue, err)
	}
	return nil
}

// Len returns the current queue length.
func (b *Buffer) Len(ctx context.Context, queue string) (int64, error) {
	n, err := b.client.LLen(ctx, queue).Result()
	if err != nil {
		return 0, fmt.Errorf("buffer: len %s: %w", queue, err)
	}
	return n, nil
}

// BulkPop atomically removes and returns up to count of the oldest
// (left-most) records from queue. It returns (nil, nil) when the queue is
// empty rather than an error.
func (b *Buffer) BulkPop(ctx context.Context, queue string, count int64) ([][]byte, error) {
	vals, err := b.client.LPopCount(ctx, queue, int(count)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("buffer: bulk pop %s: %w", queue, err)
	}
	return stringsToBytes(vals), nil
}

// RangeDeleteAll atomically reads every record currently in queue and
// removes them in one pipelined round trip. Used by the chat flush path,
// which may need to drain more than a single LPOP COUNT call comfortably
// returns.
func (b *Buffer) RangeDeleteAll(ctx context.Context, queue string) ([][]byte, error) {
	pipe := b.client.TxPipeline()
	rangeCmd := pipe.LRange(ctx, queue, 0, -1)
	pipe.Del(ctx, queue)
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, fmt.Errorf("buffer: range-delete %s: %w", queue, err)
	}
	vals, err := rangeCmd.Result()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("buffer: range-delete %s result: %w", queue, err)
	}
	return stringsToBytes(vals), nil
}

// PushBackRight restores a previously-popped batch to the tail, preserving
// relative order, for the gift flush's rollback-on-insert-failure path.
func (b *Buffer) PushBackRight(ctx context.Context, queue string, records [][]byte) error {
	if len(records) == 0 {
		return nil
	}
	args := bytesToAny(records)
	if err := b.client.RPush(ctx, queue, args...).Err(); err != nil {
		return fmt.Errorf("buffer: push-back-right %s: %w", queue, err)
	}
	return nil
}

// PushBackLeft restores a previously-popped batch at the head, so the next
// flush retries the same records first. go-redis's LPUSH prepends each
// argument in turn, which reverses naive ordering, so we push in reverse
// to keep the restored batch in its original left-to-right order.
func (b *Buffer) PushBackLeft(ctx context.Context, queue string, records [][]byte) error {
	if len(records) == 0 {
		return nil
	}
	reversed := make([]any, len(records))
	for i, r := range records {
		reversed[len(records)-1-i] = r
	}
	if err := b.client.LPush(ctx, queue, reversed...).Err(); err != nil {
		return fmt.Errorf("buffer: push-back-left %s: %w", queue, err)
	}
	return nil
}

// CreateIfAbsent implements the dedup fingerprint's "single-op
// create-if-absent with TTL" primitive via SET key val NX EX ttlSeconds.
// It returns true when the key was newly created ("not a duplicate").
func (b *Buffer) CreateIfAbsent(ctx context.Context, key string, ttlSeconds int64) (bool, error) {
	ok, err := b.client.SetNX(ctx, key, "1", secondsToDuration(ttlSeconds)).Result()
	if err != nil {
		return false, fmt.Errorf("buffer: create-if-absent %s: %w", key, err)
	}
	return ok, nil
}

func stringsToBytes(vals []string) [][]byte {
	if len(vals) == 0 {
		return nil
	}
	out := make([][]byte, len(vals))
	for i, v := range vals {
		out[i] = []byte(v)
	}
	return out
}

func secondsToDuration(s int64) time.Duration { return time.Duration(s) * time.Second }

func bytesToAny(vals [][]byte) []any {
	out := make([]any, len(vals))
	for i, v := range vals {
		out[i] = v
	}
	return out
}
