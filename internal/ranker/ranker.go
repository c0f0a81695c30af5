// Package ranker scores deduplicated sources against their page content and
// selects the final, preferably independent, set of sources.
package ranker

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/FranksOps/verifis/internal/analyzer"
	"github.com/FranksOps/verifis/internal/source"
)

const (
	// SubstantialTextChars is the text length above which a page counts as
	// a full article.
	SubstantialTextChars = 1000

	articleBonus = 0.2
	highBonus    = 0.3
	mediumBonus  = 0.1
	quoteBonus   = 0.2
	maxScore     = 1.0
)

// Ranker computes relevance scores and picks sources.
type Ranker struct {
	logger *slog.Logger
}

// New creates a Ranker.
func New(logger *slog.Logger) *Ranker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ranker{logger: logger}
}

// Enhance attaches the extracted content for each source's URL, looks for a
// quote relevant to target and computes the relevance score. Sources with a
// blank title, URL or snippet are dropped. The result is sorted by
// descending relevance.
func (r *Ranker) Enhance(sources []source.Enhanced, contents map[string]source.ExtractedContent, target string) []source.WithContent {
	out := make([]source.WithContent, 0, len(sources))
	for _, s := range sources {
		if !s.Complete() {
			r.logger.Warn("skipping invalid source in content enhancement", "url", s.URL)
			continue
		}

		wc := source.WithContent{Enhanced: s, RelevanceScore: s.Score}
		if c, ok := contents[s.URL]; ok {
			wc.Content = &c
			if c.Success {
				wc.RelevanceScore, wc.Quote = score(s, c, target)
			}
		}
		out = append(out, wc)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].RelevanceScore > out[j].RelevanceScore })
	r.logger.Debug("content enhancement complete", "valid", len(out), "processed", len(sources))
	return out
}

func score(s source.Enhanced, c source.ExtractedContent, target string) (float64, string) {
	v := s.Score
	if len(c.Text) > SubstantialTextChars {
		v += articleBonus
	}
	switch s.Reliability {
	case source.High:
		v += highBonus
	case source.Medium:
		v += mediumBonus
	}
	quote, ok := analyzer.FindQuote(c.Text, target)
	if ok {
		v += quoteBonus
	}
	if v > maxScore {
		v = maxScore
	}
	return v, quote
}

// FilterByRequirements selects minSources sources. A pool no larger than
// minSources is returned as is. With preferIndependent the score-ordered
// pool is walked taking one source per domain, then backfilled with the
// remaining sources by URL if there are not enough domains. Otherwise the
// first minSources are taken.
func (r *Ranker) FilterByRequirements(sources []source.WithContent, minSources int, preferIndependent bool) []source.WithContent {
	valid := make([]source.WithContent, 0, len(sources))
	for _, s := range sources {
		if s.Complete() {
			valid = append(valid, s)
		}
	}
	if len(valid) <= minSources {
		return valid
	}
	if !preferIndependent {
		return valid[:minSources]
	}

	picked := make([]source.WithContent, 0, minSources)
	domains := make(map[string]struct{})
	urls := make(map[string]struct{})
	for _, s := range valid {
		if len(picked) >= minSources {
			break
		}
		if _, used := domains[s.Domain]; used {
			continue
		}
		domains[s.Domain] = struct{}{}
		urls[s.URL] = struct{}{}
		picked = append(picked, s)
	}

	for _, s := range valid {
		if len(picked) >= minSources {
			break
		}
		if _, used := urls[s.URL]; used {
			continue
		}
		urls[s.URL] = struct{}{}
		picked = append(picked, s)
	}

	r.logger.Debug("filtered sources", "pool", len(valid), "selected", len(picked), "domains", len(domains))
	return picked
}

// ValidateURLs drops sources with a blank field or a URL that is not an
// absolute http(s) URL.
func (r *Ranker) ValidateURLs(sources []source.WithContent) []source.WithContent {
	out := make([]source.WithContent, 0, len(sources))
	for _, s := range sources {
		if !s.Complete() {
			r.logger.Warn("skipping source with missing fields",
				"title_len", len(s.Title), "url_len", len(s.URL), "snippet_len", len(s.Snippet))
			continue
		}
		if !source.ValidURL(s.URL) {
			r.logger.Warn("invalid url", "url", s.URL)
			continue
		}
		out = append(out, s)
	}
	return out
}

// Summary renders a source as labelled lines for display.
func Summary(s source.WithContent) string {
	parts := []string{
		fmt.Sprintf("Source: %s", s.Title),
		fmt.Sprintf("Domain: %s", s.Domain),
		fmt.Sprintf("Reliability: %s", strings.ToUpper(string(s.Reliability))),
	}
	if s.Content != nil && s.Content.Excerpt != "" {
		parts = append(parts, fmt.Sprintf("Summary: %s", s.Content.Excerpt))
	}
	if s.Quote != "" {
		parts = append(parts, fmt.Sprintf("Relevant Quote: \"%s\"", s.Quote))
	}
	return strings.Join(parts, "\n")
}
