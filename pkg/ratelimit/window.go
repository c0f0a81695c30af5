package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Keyed admits or rejects operations per key.
type Keyed interface {
	// Allow records one operation for key and reports whether it fits the limit.
	Allow(ctx context.Context, key string) (bool, error)
}

var (
	_ Keyed = (*Window)(nil)
	_ Keyed = (*RedisWindow)(nil)
)

type windowEntry struct {
	count   int
	resetAt time.Time
}

// Window is an in-memory fixed-window counter. A window starts at the first
// request for a key and lasts for the configured duration; at most Limit
// requests are admitted within it.
type Window struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	entries map[string]*windowEntry
	now     func() time.Time
}

// NewWindow creates a fixed-window limiter. now may be nil to use time.Now.
func NewWindow(limit int, window time.Duration, now func() time.Time) *Window {
	if now == nil {
		now = time.Now
	}
	return &Window{
		limit:   limit,
		window:  window,
		entries: make(map[string]*windowEntry),
		now:     now,
	}
}

// Allow implements Keyed. It never returns an error.
func (w *Window) Allow(_ context.Context, key string) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	e, ok := w.entries[key]
	if !ok || !now.Before(e.resetAt) {
		w.entries[key] = &windowEntry{count: 1, resetAt: now.Add(w.window)}
		w.sweep(now)
		return true, nil
	}
	if e.count >= w.limit {
		return false, nil
	}
	e.count++
	return true, nil
}

// sweep drops expired windows once the table grows; caller holds mu.
func (w *Window) sweep(now time.Time) {
	if len(w.entries) < 1024 {
		return
	}
	for k, e := range w.entries {
		if !now.Before(e.resetAt) {
			delete(w.entries, k)
		}
	}
}

// RedisWindow is a fixed-window counter shared across processes through Redis.
type RedisWindow struct {
	client redis.Cmdable
	limit  int
	window time.Duration
	prefix string
}

// NewRedisWindow creates a Redis-backed limiter. Keys are stored under prefix.
func NewRedisWindow(client redis.Cmdable, limit int, window time.Duration, prefix string) *RedisWindow {
	if prefix == "" {
		prefix = "verifis:rl:"
	}
	return &RedisWindow{client: client, limit: limit, window: window, prefix: prefix}
}

// Allow implements Keyed. INCR and EXPIRE NX go out in one MULTI on every
// call, so a key whose TTL was lost gets one again on the next request.
// EXPIRE NX needs Redis 7.
func (r *RedisWindow) Allow(ctx context.Context, key string) (bool, error) {
	k := r.prefix + key
	var incr *redis.IntCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, k)
		pipe.ExpireNX(ctx, k, r.window)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("window %s: %w", k, err)
	}
	return incr.Val() <= int64(r.limit), nil
}
