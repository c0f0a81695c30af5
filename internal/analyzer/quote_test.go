package analyzer

import (
	"reflect"
	"strings"
	"testing"
)

// benchmarkContent generates a realistic article body for benchmarking.
func benchmarkContent(size int) string {
	sb := strings.Builder{}
	sb.Grow(size)

	paragraphs := []string{
		"The city council approved the new transit budget on Tuesday after a long debate",
		"Officials said the funding would expand bus service to the northern districts",
		"Critics argued the plan ignored maintenance backlogs on existing rail lines",
		"A spokesperson confirmed that construction would begin early next spring",
		"Independent auditors will review spending every quarter until the project ends",
	}

	for sb.Len() < size {
		for _, p := range paragraphs {
			sb.WriteString(p)
			sb.WriteString(". ")
		}
	}
	return sb.String()
}

func TestKeyTerms(t *testing.T) {
	got := KeyTerms("The Mayor of the big CITY said the transit budget grew by ten percent", 5)
	want := []string{"mayor", "city", "said", "transit", "budget"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("KeyTerms = %v, want %v", got, want)
	}

	if got := KeyTerms("a an the of", 5); len(got) != 0 {
		t.Errorf("expected no terms, got %v", got)
	}
	if got := KeyTerms("plenty of words here", 0); got != nil {
		t.Errorf("expected nil for n=0, got %v", got)
	}
}

// TestSplitIntoSentencesBasic tests sentence splitting
func TestSplitIntoSentencesBasic(t *testing.T) {
	content := "First sentence. Second one!! Third?  And a tail"
	sentences := Sentences(content)

	want := []string{"First sentence", "Second one", "Third", "And a tail"}
	if !reflect.DeepEqual(sentences, want) {
		t.Fatalf("Sentences = %q, want %q", sentences, want)
	}

	if got := Sentences(""); len(got) != 0 {
		t.Errorf("expected no sentences for empty input, got %q", got)
	}
	if got := Sentences("...!?"); len(got) != 0 {
		t.Errorf("expected no sentences for delimiters only, got %q", got)
	}
}

func TestFindQuote(t *testing.T) {
	target := "City council approved transit budget"
	tests := []struct {
		name    string
		content string
		want    string
		found   bool
	}{
		{
			name:    "first matching sentence",
			content: "Weather was mild today in the region. The council approved the transit plan late on Tuesday! The budget passed too.",
			want:    "The council approved the transit plan late on Tuesday.",
			found:   true,
		},
		{
			name:    "short sentences ignored",
			content: "Council approved. Nothing else happened in the world today at all.",
			found:   false,
		},
		{
			name:    "single term is not enough",
			content: "The council met for several hours without any decision being made.",
			found:   false,
		},
		{
			name:    "case insensitive",
			content: "THE CITY COUNCIL MET AND DISCUSSED MANY THINGS",
			want:    "THE CITY COUNCIL MET AND DISCUSSED MANY THINGS.",
			found:   true,
		},
		{
			name:  "empty content",
			found: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := FindQuote(tt.content, target)
			if ok != tt.found {
				t.Fatalf("found = %v, want %v (quote %q)", ok, tt.found, got)
			}
			if got != tt.want {
				t.Errorf("quote = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFindQuoteNeedsTwoTerms(t *testing.T) {
	if _, ok := FindQuote("Budgets are discussed at length in this long sentence.", "budgets"); ok {
		t.Error("a target with a single key term can never reach two matches")
	}
}

func TestKeywords(t *testing.T) {
	got := Keywords("Scientists say, according to NASA, that Jupiter's moons: Europa and Europa hold oceans.", 4)
	want := []string{"scientists", "jupiter's", "moons", "europa", "oceans"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Keywords = %v, want %v", got, want)
	}
}

func BenchmarkFindQuote_SmallContent(b *testing.B) {
	content := benchmarkContent(1024) // 1KB
	target := "independent auditors review transit spending"

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		FindQuote(content, target)
	}
}

func BenchmarkFindQuote_LargeContent(b *testing.B) {
	content := benchmarkContent(100 * 1024) // 100KB
	target := "no sentence contains these particular words whatsoever"

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		FindQuote(content, target)
	}
}

func BenchmarkSplitIntoSentences(b *testing.B) {
	content := benchmarkContent(50 * 1024) // 50KB

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		splitIntoSentences(content, minSentenceRunes)
	}
}

func BenchmarkSplitIntoSentences_Short(b *testing.B) {
	content := "This is a short sentence. Here is another one! And a third?"

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		splitIntoSentences(content, 1)
	}
}
