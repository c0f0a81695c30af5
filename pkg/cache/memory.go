package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

var _ Cache[string] = (*Memory[string])(nil)

// Memory is an in-process LRU cache with per-entry expiry.
type Memory[V any] struct {
	lru   *expirable.LRU[string, entry[V]]
	fresh time.Duration
	now   func() time.Time
}

// NewMemory creates an in-memory cache. Zero options take the defaults
// of 500 entries, fresh for 5 minutes.
func NewMemory[V any](opts Options) *Memory[V] {
	opts = opts.withDefaults()
	return &Memory[V]{
		lru:   expirable.NewLRU[string, entry[V]](opts.Size, nil, opts.MaxAge),
		fresh: opts.Fresh,
		now:   time.Now,
	}
}

// Get implements Cache.
func (m *Memory[V]) Get(_ context.Context, key string) (V, bool) {
	e, ok := m.lru.Get(key)
	if !ok || !e.fresh(m.now(), m.fresh) {
		var zero V
		return zero, false
	}
	return e.Value, true
}

// Set implements Cache.
func (m *Memory[V]) Set(_ context.Context, key string, value V) {
	m.lru.Add(key, entry[V]{Value: value, StoredAt: m.now()})
}

// Purge implements Cache.
func (m *Memory[V]) Purge(context.Context) error {
	m.lru.Purge()
	return nil
}

// Len implements Cache.
func (m *Memory[V]) Len(context.Context) int {
	return m.lru.Len()
}
