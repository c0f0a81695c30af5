package csvbackend

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/FranksOps/verifis/internal/source"
	"github.com/FranksOps/verifis/internal/storage"
)

func TestCSVBackend(t *testing.T) {
	tmpDir := t.TempDir()
	filePath := filepath.Join(tmpDir, "runs.csv")

	b, err := New(filePath)
	if err != nil {
		t.Fatalf("Failed to create CSV backend: %v", err)
	}

	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond) // Format truncates precision

	res1 := &storage.RunRecord{
		ID:           "csv1",
		Mode:         "snippet",
		Input:        "Input with, commas and \"quotes\"\nand a newline",
		Queries:      []string{"fact check: input", "input commas"},
		Provider:     "google",
		TotalResults: 5,
		Sources: []source.WithContent{{
			Enhanced: source.Enhanced{
				RawResult:   source.RawResult{Title: "A, B", URL: "https://a.com", Snippet: "s", Source: "google", Score: 0.9},
				Reliability: source.Medium,
				Domain:      "a.com",
			},
			Quote:          "A quote, with a comma.",
			RelevanceScore: 0.95,
		}},
		Duplicates: []source.Enhanced{{
			RawResult:   source.RawResult{Title: "C", URL: "https://a.com/c", Snippet: "s", Source: "google", Score: 0.3},
			Domain:      "a.com",
			IsDuplicate: true,
			DuplicateOf: "https://a.com",
		}},
		CreatedAt: now.Add(-2 * time.Hour),
		Duration:  10 * time.Millisecond,
	}

	res2 := &storage.RunRecord{
		ID:        "csv2",
		Mode:      "page",
		Input:     "page text",
		Provider:  "bing",
		CreatedAt: now.Add(-1 * time.Hour),
		Duration:  20 * time.Millisecond,
	}

	if err := b.Save(ctx, res1); err != nil {
		t.Fatalf("Failed to save result 1: %v", err)
	}
	if err := b.Save(ctx, res2); err != nil {
		t.Fatalf("Failed to save result 2: %v", err)
	}

	all, err := b.Query(ctx, storage.Filter{})
	if err != nil {
		t.Fatalf("Failed to query all: %v", err)
	}
	if len(all) != 2 || all[0].ID != "csv2" {
		t.Fatalf("Expected csv2 first of 2, got %d", len(all))
	}

	got := all[1]
	if got.Input != res1.Input {
		t.Errorf("Input did not round-trip: %q", got.Input)
	}
	if got.TotalResults != 5 || got.Duration != res1.Duration || !got.CreatedAt.Equal(res1.CreatedAt) {
		t.Errorf("scalar fields did not round-trip: %+v", got)
	}
	if len(got.Queries) != 2 || len(got.Sources) != 1 || got.Sources[0].Quote != res1.Sources[0].Quote {
		t.Errorf("nested fields did not round-trip: %+v", got)
	}
	if len(got.Duplicates) != 1 || !got.Duplicates[0].IsDuplicate {
		t.Errorf("duplicates did not round-trip: %+v", got.Duplicates)
	}

	byMode, err := b.Query(ctx, storage.Filter{Mode: "page"})
	if err != nil {
		t.Fatalf("Failed to query by mode: %v", err)
	}
	if len(byMode) != 1 || byMode[0].ID != "csv2" {
		t.Errorf("Expected only csv2 for page mode, got %d", len(byMode))
	}

	past := now.Add(-90 * time.Minute)
	since, err := b.Query(ctx, storage.Filter{Since: &past})
	if err != nil {
		t.Fatalf("Failed to query by Since: %v", err)
	}
	if len(since) != 1 || since[0].ID != "csv2" {
		t.Errorf("Expected only csv2 since 90m ago, got %d", len(since))
	}

	limited, err := b.Query(ctx, storage.Filter{Limit: 1, Offset: 1})
	if err != nil {
		t.Fatalf("Failed to query limit/offset: %v", err)
	}
	if len(limited) != 1 || limited[0].ID != "csv1" {
		t.Errorf("Expected csv1 at offset 1, got %d", len(limited))
	}

	// Reopening must not write a second header
	if err := b.Close(); err != nil {
		t.Fatalf("Failed to close: %v", err)
	}
	b2, err := New(filePath)
	if err != nil {
		t.Fatalf("Failed to reopen: %v", err)
	}
	defer b2.Close()

	reopened, err := b2.Query(ctx, storage.Filter{})
	if err != nil {
		t.Fatalf("Failed to query reopened: %v", err)
	}
	if len(reopened) != 2 {
		t.Errorf("Expected 2 results after reopen, got %d", len(reopened))
	}
}
