package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

var _ Cache[string] = (*Redis[string])(nil)

// Redis is a cache shared between processes. Values are stored as JSON
// under Prefix+key and expire after MaxAge.
type Redis[V any] struct {
	client redis.Cmdable
	prefix string
	fresh  time.Duration
	maxAge time.Duration
	logger *slog.Logger
	now    func() time.Time
}

// NewRedis creates a Redis-backed cache. Options.Size is ignored; Redis
// eviction policy bounds memory instead.
func NewRedis[V any](client redis.Cmdable, prefix string, opts Options, logger *slog.Logger) *Redis[V] {
	if logger == nil {
		logger = slog.Default()
	}
	opts = opts.withDefaults()
	return &Redis[V]{
		client: client,
		prefix: prefix,
		fresh:  opts.Fresh,
		maxAge: opts.MaxAge,
		logger: logger,
		now:    time.Now,
	}
}

// Get implements Cache. Redis errors are logged and reported as a miss.
func (r *Redis[V]) Get(ctx context.Context, key string) (V, bool) {
	var zero V
	raw, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.logger.Warn("cache get failed", "key", key, "err", err)
		}
		return zero, false
	}

	var e entry[V]
	if err := json.Unmarshal(raw, &e); err != nil {
		r.logger.Warn("cache entry undecodable", "key", key, "err", err)
		return zero, false
	}
	if !e.fresh(r.now(), r.fresh) {
		return zero, false
	}
	return e.Value, true
}

// Set implements Cache. Failures are logged; a lost write only costs a refetch.
func (r *Redis[V]) Set(ctx context.Context, key string, value V) {
	raw, err := json.Marshal(entry[V]{Value: value, StoredAt: r.now()})
	if err != nil {
		r.logger.Warn("cache entry unencodable", "key", key, "err", err)
		return
	}
	if err := r.client.Set(ctx, r.prefix+key, string(raw), r.maxAge).Err(); err != nil {
		r.logger.Warn("cache set failed", "key", key, "err", err)
	}
}

// Purge implements Cache by deleting every key under the prefix.
func (r *Redis[V]) Purge(ctx context.Context) error {
	keys, err := r.keys(ctx)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return r.client.Del(ctx, keys...).Err()
}

// Len implements Cache. It returns 0 when Redis is unreachable.
func (r *Redis[V]) Len(ctx context.Context) int {
	keys, err := r.keys(ctx)
	if err != nil {
		r.logger.Warn("cache scan failed", "err", err)
		return 0
	}
	return len(keys)
}

func (r *Redis[V]) keys(ctx context.Context) ([]string, error) {
	var (
		out    []string
		cursor uint64
	)
	for {
		batch, next, err := r.client.Scan(ctx, cursor, r.prefix+"*", 100).Result()
		if err != nil {
			return nil, err
		}
		out = append(out, batch...)
		if next == 0 {
			return out, nil
		}
		cursor = next
	}
}
