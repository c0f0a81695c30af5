// Package search queries external search backends under a strict-priority
// fallback policy and merges the per-query results of a batch.
package search

import (
	"context"
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/FranksOps/verifis/internal/source"
	"github.com/FranksOps/verifis/pkg/ratelimit"
)

// Provider is one search backend. Scores are on the provider's own scale.
type Provider interface {
	Name() string
	Search(ctx context.Context, query string) ([]source.RawResult, error)
}

// ProviderError wraps a failure from a single provider. It never leaves Chain.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

type pacedProvider struct {
	Provider
	pacer *ratelimit.Pacer
}

// Paced spaces calls to p according to pacer.
func Paced(p Provider, pacer *ratelimit.Pacer) Provider {
	if pacer == nil {
		return p
	}
	return &pacedProvider{Provider: p, pacer: pacer}
}

func (p *pacedProvider) Search(ctx context.Context, query string) ([]source.RawResult, error) {
	if err := p.pacer.Wait(ctx); err != nil {
		return nil, err
	}
	return p.Provider.Search(ctx, query)
}

var tagRe = regexp.MustCompile(`<[^>]+>`)

// cleanText strips inline markup such as <strong> highlights from API snippets.
func cleanText(s string) string {
	s = tagRe.ReplaceAllString(s, "")
	return strings.Join(strings.Fields(html.UnescapeString(s)), " ")
}

// rankScore gives the i-th hit of a ranked API response a score in (0,1].
func rankScore(i int) float64 {
	s := 1.0 - float64(i)*0.05
	if s < 0.05 {
		s = 0.05
	}
	return s
}
