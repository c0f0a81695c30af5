// Package cache provides bounded key/value caches with a freshness window.
//
// An entry is retained for up to MaxAge but only returned by Get while it is
// younger than Fresh. Writes for the same key overwrite each other, so
// concurrent misses may fetch twice but never observe a torn value.
package cache

import (
	"context"
	"time"
)

// Cache stores values of type V keyed by string.
type Cache[V any] interface {
	// Get returns the value for key if present and still fresh.
	Get(ctx context.Context, key string) (V, bool)
	// Set stores value under key, replacing any previous entry.
	Set(ctx context.Context, key string, value V)
	// Purge removes every entry.
	Purge(ctx context.Context) error
	// Len reports the number of retained entries, fresh or stale.
	Len(ctx context.Context) int
}

// Options bound a cache.
type Options struct {
	// Size is the maximum number of entries kept (memory cache only).
	Size int
	// Fresh is how long an entry is returned by Get.
	Fresh time.Duration
	// MaxAge is how long an entry is retained before eviction.
	MaxAge time.Duration
}

func (o Options) withDefaults() Options {
	if o.Size <= 0 {
		o.Size = 500
	}
	if o.Fresh <= 0 {
		o.Fresh = 5 * time.Minute
	}
	if o.MaxAge < o.Fresh {
		o.MaxAge = o.Fresh
	}
	return o
}

type entry[V any] struct {
	Value    V         `json:"value"`
	StoredAt time.Time `json:"stored_at"`
}

func (e entry[V]) fresh(now time.Time, window time.Duration) bool {
	return now.Sub(e.StoredAt) < window
}
