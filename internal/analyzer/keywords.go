package analyzer

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// stopwords are common words long enough to pass the keyword length filter
// that carry no search value.
var stopwords = map[string]struct{}{
	"about": {}, "above": {}, "after": {}, "again": {}, "against": {},
	"among": {}, "another": {}, "around": {}, "because": {}, "before": {},
	"being": {}, "below": {}, "between": {}, "could": {}, "during": {},
	"every": {}, "first": {}, "however": {}, "might": {}, "other": {},
	"people": {}, "really": {}, "should": {}, "since": {}, "still": {},
	"their": {}, "there": {}, "these": {}, "thing": {}, "things": {},
	"those": {}, "through": {}, "under": {}, "until": {}, "where": {},
	"which": {}, "while": {}, "would": {}, "years": {}, "according": {},
	"said": {}, "says": {},
}

// IsStopword reports whether w (lowercase) is in the stopword list.
func IsStopword(w string) bool {
	_, ok := stopwords[w]
	return ok
}

// Keywords returns the distinct lowercase words of text that are longer
// than minLen characters and not stopwords, in order of first appearance.
// Leading and trailing punctuation is stripped from each word.
func Keywords(text string, minLen int) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, w := range strings.Fields(strings.ToLower(text)) {
		w = strings.TrimFunc(w, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsNumber(r)
		})
		if utf8.RuneCountInString(w) <= minLen || IsStopword(w) {
			continue
		}
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	return out
}
