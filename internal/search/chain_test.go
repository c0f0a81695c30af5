package search

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/FranksOps/verifis/internal/source"
)

type stubProvider struct {
	name  string
	fn    func(query string) ([]source.RawResult, error)
	calls atomic.Int32
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Search(_ context.Context, query string) ([]source.RawResult, error) {
	s.calls.Add(1)
	return s.fn(query)
}

func hits(provider string, urls ...string) []source.RawResult {
	out := make([]source.RawResult, len(urls))
	for i, u := range urls {
		out[i] = source.RawResult{Title: "t " + u, URL: u, Snippet: "s", Source: provider, Score: rankScore(i)}
	}
	return out
}

func TestChain_TopProviderIsExclusive(t *testing.T) {
	premium := &stubProvider{name: "premium", fn: func(q string) ([]source.RawResult, error) {
		if q == "q1" {
			return hits("premium", "https://a.com/1"), nil
		}
		return nil, nil
	}}
	fallback := &stubProvider{name: "fallback", fn: func(q string) ([]source.RawResult, error) {
		return hits("fallback", "https://b.com/"+q), nil
	}}

	c := NewChain([]Provider{premium, fallback}, ChainConfig{})
	got := c.MultiSearch(context.Background(), []string{"q1", "q2"})

	if len(got) != 1 || got[0].URL != "https://a.com/1" {
		t.Fatalf("expected only the premium hit, got %+v", got)
	}
	for _, r := range got {
		if r.Source != "premium" {
			t.Errorf("found lower-priority result %+v", r)
		}
	}
	// q2 fell through to the fallback, but its hits were filtered out.
	if fallback.calls.Load() != 1 {
		t.Errorf("expected fallback consulted once, got %d", fallback.calls.Load())
	}
}

func TestChain_StrictPriorityPerQuery(t *testing.T) {
	first := &stubProvider{name: "first", fn: func(string) ([]source.RawResult, error) {
		return hits("first", "https://a.com/1", "https://a.com/2"), nil
	}}
	second := &stubProvider{name: "second", fn: func(string) ([]source.RawResult, error) {
		return hits("second", "https://b.com/1"), nil
	}}

	c := NewChain([]Provider{first, second}, ChainConfig{})
	res := c.Search(context.Background(), "anything")

	if res.Position != 0 || res.Provider != "first" || len(res.Results) != 2 {
		t.Fatalf("unexpected resolution %+v", res)
	}
	if second.calls.Load() != 0 {
		t.Error("lower-priority provider must not be consulted when the top one answered")
	}
}

func TestChain_FallsThroughErrorsAndEmpty(t *testing.T) {
	failing := &stubProvider{name: "failing", fn: func(string) ([]source.RawResult, error) {
		return nil, errors.New("quota exceeded")
	}}
	empty := &stubProvider{name: "empty", fn: func(string) ([]source.RawResult, error) {
		return nil, nil
	}}
	last := &stubProvider{name: "last", fn: func(string) ([]source.RawResult, error) {
		return hits("last", "https://c.com/1"), nil
	}}

	c := NewChain([]Provider{failing, empty, last}, ChainConfig{})
	res := c.Search(context.Background(), "q")

	if res.Position != 2 || res.Provider != "last" {
		t.Fatalf("expected resolution by position 2, got %+v", res)
	}
}

func TestChain_FallbackScenarioDropsPlaceholder(t *testing.T) {
	premium := &stubProvider{name: "premium", fn: func(string) ([]source.RawResult, error) {
		return nil, errors.New("unauthorized")
	}}
	fallback := &stubProvider{name: "fallback", fn: func(q string) ([]source.RawResult, error) {
		if q == "q2" {
			return hits("fallback", "https://b.com/1", "https://b.com/1", "https://c.com/1"), nil
		}
		return nil, nil
	}}
	free := &stubProvider{name: DuckDuckGoName, fn: func(q string) ([]source.RawResult, error) {
		return []source.RawResult{Placeholder(q)}, nil
	}}

	c := NewChain([]Provider{premium, fallback, free}, ChainConfig{})
	got := c.MultiSearch(context.Background(), []string{"q1", "q2"})

	if len(got) != 2 {
		t.Fatalf("expected 2 deduplicated fallback results, got %+v", got)
	}
	for _, r := range got {
		if r.Source != "fallback" || r.Placeholder {
			t.Errorf("unexpected result %+v", r)
		}
	}
	if got[0].URL != "https://b.com/1" || got[0].Score != 1.0 {
		t.Errorf("expected higher-scored duplicate kept first, got %+v", got[0])
	}
}

func TestChain_PlaceholderKeptWhenNothingElse(t *testing.T) {
	free := &stubProvider{name: DuckDuckGoName, fn: func(q string) ([]source.RawResult, error) {
		return []source.RawResult{Placeholder(q)}, nil
	}}
	c := NewChain([]Provider{free}, ChainConfig{})

	got := c.MultiSearch(context.Background(), []string{"is the sky green"})
	if len(got) != 1 || !got[0].Placeholder {
		t.Fatalf("expected single placeholder, got %+v", got)
	}
}

func TestChain_MergeSortsAndCaps(t *testing.T) {
	p := &stubProvider{name: "p", fn: func(q string) ([]source.RawResult, error) {
		var out []source.RawResult
		for i := 0; i < 8; i++ {
			out = append(out, source.RawResult{
				Title: "t", Snippet: "s", Source: "p",
				URL:   fmt.Sprintf("https://%s.example.com/%d", q, i),
				Score: float64(i) / 10,
			})
		}
		return out, nil
	}}

	c := NewChain([]Provider{p}, ChainConfig{})
	got := c.MultiSearch(context.Background(), []string{"x", "y"})

	if len(got) != 10 {
		t.Fatalf("expected 10 results, got %d", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i].Score > got[i-1].Score {
			t.Fatalf("results not sorted by score at %d", i)
		}
	}
}

func TestChain_AllFailReturnsEmpty(t *testing.T) {
	failing := &stubProvider{name: "failing", fn: func(string) ([]source.RawResult, error) {
		return nil, errors.New("down")
	}}
	c := NewChain([]Provider{failing}, ChainConfig{})

	if got := c.MultiSearch(context.Background(), []string{"a", "b"}); len(got) != 0 {
		t.Errorf("expected empty result, got %+v", got)
	}
	if got := NewChain(nil, ChainConfig{}).MultiSearch(context.Background(), []string{"a"}); len(got) != 0 {
		t.Errorf("expected empty result from empty chain, got %+v", got)
	}
}

func TestChain_CachesQueries(t *testing.T) {
	p := &stubProvider{name: "p", fn: func(string) ([]source.RawResult, error) {
		return hits("p", "https://a.com/1"), nil
	}}
	c := NewChain([]Provider{p}, ChainConfig{})
	ctx := context.Background()

	c.Search(ctx, "same query")
	c.Search(ctx, "same query")
	if p.calls.Load() != 1 {
		t.Errorf("expected one provider call, got %d", p.calls.Load())
	}
	if s := c.CacheStats(ctx); s.Size != 1 {
		t.Errorf("expected cache size 1, got %d", s.Size)
	}

	if err := c.ClearCache(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c.Search(ctx, "same query")
	if p.calls.Load() != 2 {
		t.Errorf("expected a fresh call after clearing, got %d", p.calls.Load())
	}
}

func TestProviderError(t *testing.T) {
	base := errors.New("boom")
	err := &ProviderError{Provider: "brave", Err: base}
	if !errors.Is(err, base) {
		t.Error("expected ProviderError to unwrap")
	}
	if err.Error() != "provider brave: boom" {
		t.Errorf("unexpected message %q", err.Error())
	}
}
