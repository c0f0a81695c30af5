package extract

import (
	"net/url"
	"strings"

	"github.com/FranksOps/verifis/internal/source"
	"github.com/go-shiori/go-readability"
)

type readabilityStrategy struct {
	e *Extractor
}

func (s *readabilityStrategy) Method() source.Method { return source.MethodPrimary }

func (s *readabilityStrategy) Extract(page source.FetchedPage) (source.ExtractedContent, bool) {
	pageURL, err := url.Parse(page.URL)
	if err != nil {
		return source.ExtractedContent{}, false
	}

	p := readability.NewParser()
	p.CharThresholds = s.e.cfg.MinTextChars
	article, err := p.Parse(strings.NewReader(page.HTML), pageURL)
	if err != nil {
		s.e.logger.Debug("readability parse failed", "url", page.URL, "err", err)
		return source.ExtractedContent{}, false
	}

	text := s.e.normalize(article.TextContent)
	if !s.e.long(text) {
		return source.ExtractedContent{}, false
	}

	title := strings.TrimSpace(article.Title)
	if title == "" {
		title = page.Title
	}

	return source.ExtractedContent{
		Title:         title,
		Byline:        strings.TrimSpace(article.Byline),
		Text:          text,
		Excerpt:       s.e.excerpt(text),
		SiteName:      strings.TrimSpace(article.SiteName),
		PublishedTime: article.PublishedTime,
		TopImage:      article.Image,
		ReadingTime:   s.e.readingTime(text),
		Language:      s.e.language(page.HTML, text),
		Success:       true,
		Method:        source.MethodPrimary,
	}, true
}
