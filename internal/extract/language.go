package extract

import (
	"regexp"
	"slices"
	"strings"

	"github.com/pemistahl/lingua-go"
)

const defaultLanguage = "en"

var supportedLanguages = []string{"en", "es", "fr", "de", "it", "pt", "nl", "pl", "ru", "ja", "ko", "zh"}

var htmlLangRe = regexp.MustCompile(`(?i)<html[^>]*\blang=["']([^"']+)["']`)

// language resolves the two-letter content language: the document's lang
// attribute when supported, then statistical detection when enabled, else "en".
func (e *Extractor) language(doc, text string) string {
	if m := htmlLangRe.FindStringSubmatch(doc); m != nil {
		code := strings.ToLower(m[1])
		if len(code) > 2 {
			code = code[:2]
		}
		if slices.Contains(supportedLanguages, code) {
			return code
		}
	}
	if e.lang != nil {
		if code, ok := e.lang.detect(text); ok {
			return code
		}
	}
	return defaultLanguage
}

type languageDetector struct {
	d lingua.LanguageDetector
}

func newLanguageDetector() *languageDetector {
	d := lingua.NewLanguageDetectorBuilder().
		FromLanguages(
			lingua.English, lingua.Spanish, lingua.French, lingua.German,
			lingua.Italian, lingua.Portuguese, lingua.Dutch, lingua.Polish,
			lingua.Russian, lingua.Japanese, lingua.Korean, lingua.Chinese,
		).
		WithLowAccuracyMode().
		Build()
	return &languageDetector{d: d}
}

// detect samples the start of text; short samples are not trusted.
func (l *languageDetector) detect(text string) (string, bool) {
	if len(text) < 40 {
		return "", false
	}
	if len(text) > 2000 {
		text = text[:2000]
	}
	lang, ok := l.d.DetectLanguageOf(text)
	if !ok {
		return "", false
	}
	code := strings.ToLower(lang.IsoCode639_1().String())
	return code, slices.Contains(supportedLanguages, code)
}
