package extract

import (
	"fmt"
	"strings"

	"github.com/FranksOps/verifis/internal/source"
)

// IsLikelyArticle scores title, byline, reading time, excerpt and length
// signals and reports whether content looks like an article.
func IsLikelyArticle(c source.ExtractedContent) bool {
	if !c.Success || len(c.Text) < 500 {
		return false
	}

	score := 0
	if len(c.Title) > 10 {
		score += 2
	}
	if c.Byline != "" {
		score++
	}
	if c.ReadingTime > 1 {
		score++
	}
	if len(c.Excerpt) > 100 {
		score++
	}
	if len(c.Text) > 1000 {
		score += 2
	}
	return score >= 4
}

// Summary renders the content's metadata as labelled lines.
func Summary(c source.ExtractedContent) string {
	if !c.Success {
		return "Content extraction failed"
	}

	var parts []string
	if c.Title != "" {
		parts = append(parts, "Title: "+c.Title)
	}
	if c.Byline != "" {
		parts = append(parts, "By: "+c.Byline)
	}
	if c.Excerpt != "" {
		parts = append(parts, "Summary: "+c.Excerpt)
	}
	if c.ReadingTime > 0 {
		parts = append(parts, fmt.Sprintf("Reading time: ~%d min", c.ReadingTime))
	}
	if c.PublishedTime != nil {
		parts = append(parts, "Published: "+c.PublishedTime.Format("2006-01-02"))
	}
	return strings.Join(parts, "\n")
}
