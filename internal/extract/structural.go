package extract

import (
	"strings"

	"github.com/FranksOps/verifis/internal/source"
	"github.com/PuerkitoBio/goquery"
)

const boilerplateSelector = "script, style, nav, header, footer, aside, .ad, .advertisement, .sidebar"

var contentSelectors = []string{
	"article",
	`[role="main"]`,
	".content",
	".post-content",
	".entry-content",
	".article-content",
	"main",
}

var bylineSelectors = []string{
	".byline",
	".author",
	".author-name",
	`[rel="author"]`,
	".meta .author",
}

type structuralStrategy struct {
	e *Extractor
}

func (s *structuralStrategy) Method() source.Method { return source.MethodStructural }

func (s *structuralStrategy) Extract(page source.FetchedPage) (source.ExtractedContent, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.HTML))
	if err != nil {
		s.e.logger.Debug("structural parse failed", "url", page.URL, "err", err)
		return source.ExtractedContent{}, false
	}

	doc.Find(boilerplateSelector).Remove()

	var raw string
	for _, sel := range contentSelectors {
		if found := doc.Find(sel); found.Length() > 0 {
			raw = found.Text()
			break
		}
	}
	if raw == "" {
		raw = doc.Find("body").Text()
	}

	text := s.e.normalize(raw)
	if !s.e.long(text) {
		return source.ExtractedContent{}, false
	}

	var byline string
	for _, sel := range bylineSelectors {
		if found := doc.Find(sel); found.Length() > 0 {
			byline = strings.TrimSpace(found.Text())
			break
		}
	}

	topImage, _ := doc.Find("img").First().Attr("src")

	return source.ExtractedContent{
		Title:       page.Title,
		Byline:      byline,
		Text:        text,
		Excerpt:     s.e.excerpt(text),
		TopImage:    topImage,
		ReadingTime: s.e.readingTime(text),
		Language:    s.e.language(page.HTML, text),
		Success:     true,
		Method:      source.MethodStructural,
	}, true
}
