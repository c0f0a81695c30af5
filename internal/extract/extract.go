// Package extract turns fetched HTML into readable text and article metadata.
package extract

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"strings"
	"sync"

	"github.com/FranksOps/verifis/internal/metrics"
	"github.com/FranksOps/verifis/internal/source"
	"golang.org/x/sync/errgroup"
)

var spaceRe = regexp.MustCompile(`\s+`)

// Config tunes extraction. Zero values take the defaults noted per field.
type Config struct {
	// MinTextChars is the shortest text that counts as a successful extraction (100).
	MinTextChars int
	// MaxTextChars caps extracted text (50,000).
	MaxTextChars int
	// ExcerptChars is the excerpt length before an ellipsis is added (300).
	ExcerptChars int
	// WordsPerMinute drives ReadingTime (200).
	WordsPerMinute int
	// Concurrency is the ExtractContents chunk size (3).
	Concurrency int
	// DetectLanguage enables statistical detection when the document
	// declares no supported lang attribute.
	DetectLanguage bool
	Logger         *slog.Logger
}

// Strategy is one extraction tier. Extract reports ok=false when the tier
// could not produce usable content.
type Strategy interface {
	Method() source.Method
	Extract(page source.FetchedPage) (content source.ExtractedContent, ok bool)
}

// Extractor runs its strategies in order and falls back to the raw page text.
type Extractor struct {
	cfg        Config
	strategies []Strategy
	lang       *languageDetector
	logger     *slog.Logger
}

// New builds an Extractor with the readability and structural strategies.
func New(cfg Config) *Extractor {
	if cfg.MinTextChars <= 0 {
		cfg.MinTextChars = 100
	}
	if cfg.MaxTextChars <= 0 {
		cfg.MaxTextChars = 50000
	}
	if cfg.ExcerptChars <= 0 {
		cfg.ExcerptChars = 300
	}
	if cfg.WordsPerMinute <= 0 {
		cfg.WordsPerMinute = 200
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 3
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	e := &Extractor{cfg: cfg, logger: cfg.Logger}
	if cfg.DetectLanguage {
		e.lang = newLanguageDetector()
	}
	e.strategies = []Strategy{
		&readabilityStrategy{e: e},
		&structuralStrategy{e: e},
	}
	return e
}

// ExtractContent never fails; when every strategy gives up it returns the
// page's own title and text marked successful with MethodRaw.
func (e *Extractor) ExtractContent(page source.FetchedPage) source.ExtractedContent {
	for _, s := range e.strategies {
		content, ok := e.run(s, page)
		if ok {
			metrics.ExtractionsTotal.WithLabelValues(string(s.Method())).Inc()
			return content
		}
		e.logger.Debug("extraction strategy failed", "url", page.URL, "method", s.Method())
	}

	metrics.ExtractionsTotal.WithLabelValues(string(source.MethodRaw)).Inc()
	return e.rawFallback(page)
}

// run isolates a strategy so a panic in a parser only fails that tier.
func (e *Extractor) run(s Strategy, page source.FetchedPage) (content source.ExtractedContent, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn("extraction strategy panicked", "url", page.URL, "method", s.Method(), "err", fmt.Sprint(r))
			content, ok = source.ExtractedContent{}, false
		}
	}()
	return s.Extract(page)
}

func (e *Extractor) rawFallback(page source.FetchedPage) source.ExtractedContent {
	text := e.normalize(page.Text)
	return source.ExtractedContent{
		Title:       page.Title,
		Text:        text,
		Excerpt:     e.excerpt(text),
		ReadingTime: e.readingTime(text),
		Language:    e.language(page.HTML, text),
		Success:     true,
		Method:      source.MethodRaw,
	}
}

// ExtractContents extracts pages in sequential chunks of Concurrency and
// returns the results keyed by page URL.
func (e *Extractor) ExtractContents(ctx context.Context, pages []source.FetchedPage) map[string]source.ExtractedContent {
	out := make(map[string]source.ExtractedContent, len(pages))
	var mu sync.Mutex

	for start := 0; start < len(pages); start += e.cfg.Concurrency {
		if ctx.Err() != nil {
			e.logger.Warn("extraction canceled", "remaining", len(pages)-start, "err", ctx.Err())
			break
		}
		end := min(start+e.cfg.Concurrency, len(pages))

		var g errgroup.Group
		for _, p := range pages[start:end] {
			g.Go(func() error {
				c := e.ExtractContent(p)
				mu.Lock()
				out[p.URL] = c
				mu.Unlock()
				return nil
			})
		}
		_ = g.Wait()
	}
	return out
}

// normalize collapses whitespace and caps the text length.
func (e *Extractor) normalize(s string) string {
	s = strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
	if len(s) <= e.cfg.MaxTextChars {
		return s
	}
	r := []rune(s)
	if len(r) > e.cfg.MaxTextChars {
		s = string(r[:e.cfg.MaxTextChars])
	}
	return s
}

func (e *Extractor) excerpt(text string) string {
	r := []rune(text)
	if len(r) <= e.cfg.ExcerptChars {
		return text
	}
	return string(r[:e.cfg.ExcerptChars]) + "..."
}

func (e *Extractor) readingTime(text string) int {
	words := len(strings.Fields(text))
	return int(math.Ceil(float64(words) / float64(e.cfg.WordsPerMinute)))
}

func (e *Extractor) long(text string) bool {
	return len([]rune(text)) >= e.cfg.MinTextChars
}
