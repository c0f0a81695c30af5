package pipeline

import (
	"strings"
	"unicode/utf8"

	"github.com/FranksOps/verifis/internal/analyzer"
)

const (
	// MaxTextChars is how much of the input text a direct query carries.
	MaxTextChars = 1200

	directPrefix      = "fact check: "
	keywordMinLen     = 4
	maxKeywordQueries = 2
	maxPageQueries    = 3
	minSentenceChars  = 30
	maxSentenceChars  = 200
)

// Queries derives the search queries for text.
//
// In snippet mode the first query is the text itself, truncated, behind a
// "fact check:" prefix, followed by up to two queries made of consecutive
// keyword pairs. In page mode each of the first three sentences of 30 to
// 200 characters becomes a query; a page without such sentences is treated
// as a snippet.
func Queries(text string, mode Mode) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	if mode == ModePage {
		if qs := sentenceQueries(text); len(qs) > 0 {
			return qs
		}
	}
	return snippetQueries(text)
}

func snippetQueries(text string) []string {
	queries := []string{directPrefix + truncate(text, MaxTextChars)}

	keywords := analyzer.Keywords(text, keywordMinLen)
	for i := 0; i+1 < len(keywords) && len(queries) <= maxKeywordQueries; i += 2 {
		queries = append(queries, keywords[i]+" "+keywords[i+1])
	}
	return queries
}

func sentenceQueries(text string) []string {
	var queries []string
	for _, s := range analyzer.Sentences(text) {
		n := utf8.RuneCountInString(s)
		if n < minSentenceChars || n > maxSentenceChars {
			continue
		}
		queries = append(queries, s)
		if len(queries) == maxPageQueries {
			break
		}
	}
	return queries
}

// truncate cuts s to at most max runes.
func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return strings.TrimSpace(string(r[:max]))
}
