// Package analyzer finds sentences in page text that talk about the same
// thing as the text being checked.
package analyzer

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// DefaultKeyTerms is how many target words a quote is matched against.
	DefaultKeyTerms = 5
	// MinQuoteMatches is how many key terms a sentence must contain.
	MinQuoteMatches = 2

	minTermRunes     = 4
	minSentenceRunes = 21
)

// sentenceData holds original and lowercase versions together
type sentenceData struct {
	original string
	lower    string
}

// KeyTerms returns the first n lowercase words of text longer than three
// characters, in order of appearance.
func KeyTerms(text string, n int) []string {
	if n <= 0 {
		return nil
	}
	terms := make([]string, 0, n)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		if utf8.RuneCountInString(w) < minTermRunes {
			continue
		}
		terms = append(terms, w)
		if len(terms) == n {
			break
		}
	}
	return terms
}

// Sentences splits text on runs of '.', '!' and '?'. Delimiters are dropped
// and each piece is trimmed; empty pieces are skipped.
func Sentences(text string) []string {
	data := splitIntoSentences(text, 1)
	out := make([]string, len(data))
	for i, sd := range data {
		out[i] = sd.original
	}
	return out
}

// FindQuote returns the first sentence of content, longer than 20
// characters, that contains at least two of the target's key terms. The
// sentence is trimmed and terminated with a period.
func FindQuote(content, target string) (string, bool) {
	terms := KeyTerms(target, DefaultKeyTerms)
	if len(terms) < MinQuoteMatches || content == "" {
		return "", false
	}

	for _, sd := range splitIntoSentences(content, minSentenceRunes) {
		if countMatches(sd.lower, terms) >= MinQuoteMatches {
			return sd.original + ".", true
		}
	}
	return "", false
}

// countMatches counts how many terms occur as substrings of s.
func countMatches(s string, terms []string) int {
	n := 0
	for _, t := range terms {
		if strings.Contains(s, t) {
			n++
		}
	}
	return n
}

// splitIntoSentences returns trimmed sentences of at least minRunes
// characters together with their lowercase form.
func splitIntoSentences(text string, minRunes int) []sentenceData {
	if len(text) == 0 {
		return nil
	}

	// Estimate sentence count: roughly 1 sentence per 50 chars average
	estimated := len(text) / 50
	if estimated < 1 {
		estimated = 1
	}
	sentences := make([]sentenceData, 0, estimated)

	add := func(piece string) {
		piece = strings.TrimFunc(piece, unicode.IsSpace)
		if piece == "" || utf8.RuneCountInString(piece) < minRunes {
			return
		}
		sentences = append(sentences, sentenceData{original: piece, lower: strings.ToLower(piece)})
	}

	start := 0
	inDelim := false
	for i, r := range text {
		delim := r == '.' || r == '!' || r == '?'
		switch {
		case delim && !inDelim:
			add(text[start:i])
			inDelim = true
		case !delim && inDelim:
			start = i
			inDelim = false
		}
	}
	if !inDelim {
		add(text[start:])
	}
	return sentences
}
