package search

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/FranksOps/verifis/internal/metrics"
	"github.com/FranksOps/verifis/internal/source"
	"github.com/FranksOps/verifis/pkg/cache"
	"golang.org/x/sync/errgroup"
)

const cacheKeyPrefix = "search:"

// Resolution is the outcome of one query against the chain.
type Resolution struct {
	// Position is the chain index of the provider that answered, or -1.
	Position int                `json:"position"`
	Provider string             `json:"provider"`
	Results  []source.RawResult `json:"results"`
}

// ChainConfig configures a Chain.
type ChainConfig struct {
	// MaxResults caps MultiSearch output (10).
	MaxResults int
	// Cache stores per-query resolutions. Nil gets a memory cache with a 5 minute TTL.
	Cache  cache.Cache[Resolution]
	Logger *slog.Logger
}

// Chain tries providers in priority order. The first provider to return at
// least one result for a query answers it alone.
type Chain struct {
	providers  []Provider
	cache      cache.Cache[Resolution]
	maxResults int
	logger     *slog.Logger
}

// NewChain creates a chain over providers, highest priority first.
func NewChain(providers []Provider, cfg ChainConfig) *Chain {
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 10
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Cache == nil {
		cfg.Cache = cache.NewMemory[Resolution](cache.Options{
			Size:   500,
			Fresh:  5 * time.Minute,
			MaxAge: 5 * time.Minute,
		})
	}
	return &Chain{
		providers:  providers,
		cache:      cfg.Cache,
		maxResults: cfg.MaxResults,
		logger:     cfg.Logger,
	}
}

// Providers returns the provider names in priority order.
func (c *Chain) Providers() []string {
	names := make([]string, len(c.providers))
	for i, p := range c.providers {
		names[i] = p.Name()
	}
	return names
}

// Search resolves a single query. Providers are consulted strictly one after
// another; errors and empty answers fall through. It never fails.
func (c *Chain) Search(ctx context.Context, query string) Resolution {
	key := cacheKeyPrefix + query
	if res, ok := c.cache.Get(ctx, key); ok {
		metrics.RecordCache("search", true)
		return res
	}
	metrics.RecordCache("search", false)

	for i, p := range c.providers {
		if ctx.Err() != nil {
			break
		}
		results, err := p.Search(ctx, query)
		metrics.RecordProvider(p.Name(), len(results), err)
		if err != nil {
			perr := &ProviderError{Provider: p.Name(), Err: err}
			c.logger.Warn("search provider failed", "provider", p.Name(), "query", query, "err", perr)
			continue
		}
		if len(results) == 0 {
			c.logger.Debug("search provider returned no results", "provider", p.Name(), "query", query)
			continue
		}

		res := Resolution{Position: i, Provider: p.Name(), Results: results}
		c.cache.Set(ctx, key, res)
		return res
	}

	return Resolution{Position: -1}
}

// MultiSearch resolves every query, then merges the batch: when any query was
// answered by the top-priority provider only that provider's hits are kept,
// placeholders are dropped if a real hit exists, duplicate URLs keep the higher
// score, and the best MaxResults are returned by descending score.
func (c *Chain) MultiSearch(ctx context.Context, queries []string) []source.RawResult {
	resolutions := make([]Resolution, len(queries))
	var g errgroup.Group
	for i, q := range queries {
		g.Go(func() error {
			resolutions[i] = c.Search(ctx, q)
			return nil
		})
	}
	_ = g.Wait()

	topAnswered := false
	for _, r := range resolutions {
		if r.Position == 0 {
			topAnswered = true
			break
		}
	}

	var all []source.RawResult
	for _, r := range resolutions {
		all = append(all, r.Results...)
	}
	if topAnswered {
		all = onlyProvider(all, c.providers[0].Name())
	}
	all = dropPlaceholders(all)

	return c.merge(all)
}

func onlyProvider(results []source.RawResult, name string) []source.RawResult {
	out := results[:0:0]
	for _, r := range results {
		if r.Source == name {
			out = append(out, r)
		}
	}
	return out
}

// dropPlaceholders removes synthetic results when at least one real result exists.
func dropPlaceholders(results []source.RawResult) []source.RawResult {
	n := 0
	for _, r := range results {
		if !r.Placeholder {
			n++
		}
	}
	if n == 0 || n == len(results) {
		return results
	}
	out := make([]source.RawResult, 0, n)
	for _, r := range results {
		if !r.Placeholder {
			out = append(out, r)
		}
	}
	return out
}

func (c *Chain) merge(results []source.RawResult) []source.RawResult {
	best := make(map[string]int, len(results))
	var out []source.RawResult
	for _, r := range results {
		if i, ok := best[r.URL]; ok {
			if r.Score > out[i].Score {
				out[i] = r
			}
			continue
		}
		best[r.URL] = len(out)
		out = append(out, r)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > c.maxResults {
		out = out[:c.maxResults]
	}
	return out
}

// ClearCache drops every cached query resolution.
func (c *Chain) ClearCache(ctx context.Context) error {
	return c.cache.Purge(ctx)
}

// CacheStats reports cache occupancy.
type CacheStats struct {
	Size int `json:"size"`
}

// CacheStats returns the number of cached query resolutions.
func (c *Chain) CacheStats(ctx context.Context) CacheStats {
	return CacheStats{Size: c.cache.Len(ctx)}
}
