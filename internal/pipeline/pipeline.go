// Package pipeline orchestrates one source lookup: query derivation, search,
// deduplication, page fetching, extraction, ranking and selection.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/FranksOps/verifis/internal/extract"
	"github.com/FranksOps/verifis/internal/metrics"
	"github.com/FranksOps/verifis/internal/ranker"
	"github.com/FranksOps/verifis/internal/source"
	"github.com/FranksOps/verifis/internal/storage"
	"github.com/google/uuid"
)

// Mode selects how queries are derived and how many sources are kept.
type Mode string

const (
	ModeSnippet Mode = "snippet"
	ModePage    Mode = "page"
)

// ErrEmptyInput is returned when the request text is blank.
var ErrEmptyInput = errors.New("input text is empty")

// ParseMode validates a mode name. An empty name means snippet.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeSnippet:
		return ModeSnippet, nil
	case ModePage:
		return ModePage, nil
	default:
		return "", fmt.Errorf("unknown mode %q (want %q or %q)", s, ModeSnippet, ModePage)
	}
}

// Searcher runs a batch of queries through the provider chain.
type Searcher interface {
	MultiSearch(ctx context.Context, queries []string) []source.RawResult
}

// PageFetcher retrieves pages, dropping failures.
type PageFetcher interface {
	FetchPages(ctx context.Context, urls []string, clientIP string) []source.FetchedPage
}

// Extractor derives readable content keyed by page URL.
type Extractor interface {
	ExtractContents(ctx context.Context, pages []source.FetchedPage) map[string]source.ExtractedContent
}

// Config wires a Pipeline. Zero counts take the defaults noted per field.
type Config struct {
	Searcher     Searcher
	Fetcher      PageFetcher
	Extractor    Extractor
	Deduplicator *source.Deduplicator
	Ranker       *ranker.Ranker
	// Store, when set, receives a RunRecord for every run.
	Store storage.Backend

	// Candidates is how many deduplicated sources are fetched (8).
	Candidates int
	// Enrich is how many deduplicated sources are ranked with content (5).
	Enrich int
	// SnippetSources and PageSources are the final counts per mode (2, 3).
	SnippetSources int
	PageSources    int

	Logger *slog.Logger
}

// Pipeline is safe for concurrent use when its collaborators are.
type Pipeline struct {
	cfg    Config
	logger *slog.Logger
	now    func() time.Time
}

// New validates cfg and creates a Pipeline. A nil Deduplicator uses the
// default reliability rules and blacklist; a nil Ranker is created.
func New(cfg Config) (*Pipeline, error) {
	if cfg.Searcher == nil {
		return nil, errors.New("pipeline: searcher is nil")
	}
	if cfg.Fetcher == nil {
		return nil, errors.New("pipeline: fetcher is nil")
	}
	if cfg.Extractor == nil {
		return nil, errors.New("pipeline: extractor is nil")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Deduplicator == nil {
		cfg.Deduplicator = source.NewDeduplicator(source.DefaultRules(), nil, cfg.Logger)
	}
	if cfg.Ranker == nil {
		cfg.Ranker = ranker.New(cfg.Logger)
	}
	if cfg.Candidates <= 0 {
		cfg.Candidates = 8
	}
	if cfg.Enrich <= 0 {
		cfg.Enrich = 5
	}
	if cfg.SnippetSources <= 0 {
		cfg.SnippetSources = 2
	}
	if cfg.PageSources <= 0 {
		cfg.PageSources = 3
	}
	return &Pipeline{cfg: cfg, logger: cfg.Logger, now: time.Now}, nil
}

// Request is one lookup.
type Request struct {
	Text string
	Mode Mode
	// ClientIP keys the per-client page fetch limit; empty disables it.
	ClientIP string
}

// Content is the part of ExtractedContent handed to claim verification.
type Content struct {
	Excerpt     string `json:"excerpt"`
	ReadingTime int    `json:"readingTime"`
	Byline      string `json:"byline,omitempty"`
}

// Source is one selected source in the output payload.
type Source struct {
	Title       string             `json:"title"`
	URL         string             `json:"url"`
	Snippet     string             `json:"snippet"`
	Reliability source.Reliability `json:"reliability"`
	Domain      string             `json:"domain"`
	Quote       string             `json:"quote,omitempty"`
	Content     *Content           `json:"content,omitempty"`
}

// Output is the payload for claim verification. TotalResults is the number
// of deduplicated candidates before enrichment and selection.
type Output struct {
	Sources      []Source `json:"sources"`
	TotalResults int      `json:"totalResults"`
}

// Result is an Output plus the intermediate state of the run.
type Result struct {
	Output
	RunID      string
	Queries    []string
	Provider   string
	Selected   []source.WithContent
	Duplicates []source.Enhanced
	Duration   time.Duration
	// Record is the audit entry for the run, saved when a Store is set.
	Record *storage.RunRecord
}

// Run executes the pipeline. Apart from a blank input, every failure is
// absorbed: a run without search results yields a single diagnostic source.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, ErrEmptyInput
	}
	mode := req.Mode
	if mode == "" {
		mode = ModeSnippet
	}

	start := p.now()
	res := &Result{
		RunID:   uuid.NewString(),
		Queries: Queries(text, mode),
		Output:  Output{Sources: []Source{}},
	}
	p.logger.Info("pipeline started", "run", res.RunID, "mode", mode, "queries", len(res.Queries))

	raw := p.cfg.Searcher.MultiSearch(ctx, res.Queries)
	var runErr string
	if len(raw) == 0 {
		runErr = "no search results"
		res.Sources = []Source{Diagnostic(res.Queries)}
		p.logger.Warn("no search results, returning diagnostic source", "run", res.RunID)
	} else {
		res.Provider = raw[0].Source
		p.process(ctx, req.ClientIP, text, mode, raw, res)
	}

	res.Duration = p.now().Sub(start)
	metrics.RecordRun(string(mode), res.Provider, res.Duration)
	p.logger.Info("pipeline finished",
		"run", res.RunID,
		"provider", res.Provider,
		"total", res.TotalResults,
		"sources", len(res.Sources),
		"duration", res.Duration,
	)

	res.Record = p.record(mode, text, start, runErr, res)
	if p.cfg.Store != nil {
		if err := p.cfg.Store.Save(ctx, res.Record); err != nil {
			p.logger.Error("failed to save run", "run", res.RunID, "err", err)
		}
	}
	return res, nil
}

func (p *Pipeline) process(ctx context.Context, clientIP, text string, mode Mode, raw []source.RawResult, res *Result) {
	active, duplicates := p.cfg.Deduplicator.Deduplicate(raw)
	res.Duplicates = duplicates
	res.TotalResults = len(active)

	// Placeholders point at a manual search page; there is nothing to fetch.
	var urls []string
	for _, c := range active[:min(p.cfg.Candidates, len(active))] {
		if !c.Placeholder {
			urls = append(urls, c.URL)
		}
	}

	pages := p.cfg.Fetcher.FetchPages(ctx, urls, clientIP)
	contents := p.cfg.Extractor.ExtractContents(ctx, pages)
	articles := 0
	for _, c := range contents {
		if extract.IsLikelyArticle(c) {
			articles++
		}
	}
	p.logger.Debug("content gathered",
		"candidates", len(urls), "pages", len(pages), "contents", len(contents), "articles", articles)

	enriched := p.cfg.Ranker.Enhance(active[:min(p.cfg.Enrich, len(active))], contents, text)

	want := p.cfg.SnippetSources
	if mode == ModePage {
		want = p.cfg.PageSources
	}
	selected := p.cfg.Ranker.FilterByRequirements(enriched, want, true)
	res.Selected = p.cfg.Ranker.ValidateURLs(selected)

	for _, s := range res.Selected {
		res.Sources = append(res.Sources, toOutput(s))
	}
}

func (p *Pipeline) record(mode Mode, text string, start time.Time, runErr string, res *Result) *storage.RunRecord {
	return &storage.RunRecord{
		ID:           res.RunID,
		Mode:         string(mode),
		Input:        text,
		Queries:      res.Queries,
		Provider:     res.Provider,
		TotalResults: res.TotalResults,
		Sources:      res.Selected,
		Duplicates:   res.Duplicates,
		CreatedAt:    start.UTC(),
		Duration:     res.Duration,
		Error:        runErr,
	}
}

func toOutput(s source.WithContent) Source {
	out := Source{
		Title:       s.Title,
		URL:         s.URL,
		Snippet:     s.Snippet,
		Reliability: s.Reliability,
		Domain:      s.Domain,
		Quote:       s.Quote,
	}
	if s.Content != nil {
		out.Content = &Content{
			Excerpt:     s.Content.Excerpt,
			ReadingTime: s.Content.ReadingTime,
			Byline:      s.Content.Byline,
		}
	}
	return out
}

// Diagnostic is the single source returned when no provider found
// anything. It points at a manual web search for the first query.
func Diagnostic(queries []string) Source {
	q := ""
	if len(queries) > 0 {
		q = strings.TrimPrefix(queries[0], directPrefix)
	}
	return Source{
		Title:       "No sources found - search manually",
		URL:         "https://duckduckgo.com/?q=" + url.QueryEscape(q),
		Snippet:     "No search provider returned results for this text. Run a manual web search to find supporting or contradicting sources.",
		Reliability: source.Low,
		Domain:      "duckduckgo.com",
	}
}
