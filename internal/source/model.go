// Package source holds the records passed between pipeline stages and the
// deduplication and reliability rules applied to search results.
package source

import (
	"strings"
	"time"
)

// Reliability is a coarse trust tier for a domain.
type Reliability string

const (
	High   Reliability = "high"
	Medium Reliability = "medium"
	Low    Reliability = "low"
)

// RawResult is one hit from one search provider. Score is on the provider's
// own scale and is not normalised across providers.
type RawResult struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Snippet string  `json:"snippet"`
	Source  string  `json:"source"`
	Score   float64 `json:"score"`
	// Placeholder marks a synthetic "search manually" result.
	Placeholder bool `json:"placeholder,omitempty"`
}

// Complete reports whether the title, URL and snippet are all non-blank.
func (r RawResult) Complete() bool {
	return strings.TrimSpace(r.Title) != "" && strings.TrimSpace(r.URL) != "" && strings.TrimSpace(r.Snippet) != ""
}

// Enhanced is a RawResult promoted to canonical status for its domain, or a
// superseded duplicate kept for audit.
type Enhanced struct {
	RawResult
	Reliability Reliability `json:"reliability"`
	Domain      string      `json:"domain"`
	IsDuplicate bool        `json:"isDuplicate"`
	DuplicateOf string      `json:"duplicateOf,omitempty"`
}

// FetchedPage is the result of retrieving one URL.
type FetchedPage struct {
	URL         string    `json:"url"`
	Title       string    `json:"title"`
	Text        string    `json:"text"`
	HTML        string    `json:"html"`
	Status      int       `json:"status"`
	ContentType string    `json:"contentType"`
	Timestamp   time.Time `json:"timestamp"`
}

// Method names the extraction tier that produced an ExtractedContent.
type Method string

const (
	MethodPrimary    Method = "primary-extractor"
	MethodStructural Method = "structural-fallback"
	MethodRaw        Method = "raw-fallback"
)

// ExtractedContent is the readable text and metadata derived from a FetchedPage.
type ExtractedContent struct {
	Title         string     `json:"title"`
	Byline        string     `json:"byline,omitempty"`
	Text          string     `json:"text"`
	Excerpt       string     `json:"excerpt"`
	SiteName      string     `json:"siteName,omitempty"`
	PublishedTime *time.Time `json:"publishedTime,omitempty"`
	TopImage      string     `json:"topImage,omitempty"`
	ReadingTime   int        `json:"readingTime"`
	Language      string     `json:"language"`
	Success       bool       `json:"success"`
	Method        Method     `json:"method"`
}

// WithContent is a canonical source enriched with page content and a final
// relevance score.
type WithContent struct {
	Enhanced
	Content        *ExtractedContent `json:"content,omitempty"`
	Quote          string            `json:"quote,omitempty"`
	RelevanceScore float64           `json:"relevanceScore"`
}
