package csvbackend

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/FranksOps/verifis/internal/storage"
)

// ensure csvBackend implements storage.Backend
var _ storage.Backend = (*csvBackend)(nil)

type csvBackend struct {
	mu   sync.Mutex
	file *os.File
}

// headers defines the CSV column order
var headers = []string{
	"id",
	"mode",
	"input",
	"queries_json",
	"provider",
	"total_results",
	"sources_json",
	"duplicates_json",
	"duration_ms",
	"created_at",
	"error",
}

// New creates a new CSV-backed storage.Backend.
func New(filePath string) (storage.Backend, error) {
	// Open file for appending, create if it doesn't exist
	f, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", filePath, err)
	}

	// Check if file is empty to write headers
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat %s: %w", filePath, err)
	}

	if info.Size() == 0 {
		w := csv.NewWriter(f)
		if err := w.Write(headers); err != nil {
			f.Close()
			return nil, fmt.Errorf("write header: %w", err)
		}
		w.Flush()
		if err := w.Error(); err != nil {
			f.Close()
			return nil, fmt.Errorf("write header: %w", err)
		}
	}

	return &csvBackend{
		file: f,
	}, nil
}

func (b *csvBackend) Save(ctx context.Context, r *storage.RunRecord) error {
	d, err := storage.EncodeDetail(r)
	if err != nil {
		return err
	}

	record := []string{
		r.ID,
		r.Mode,
		r.Input,
		string(d.Queries),
		r.Provider,
		strconv.Itoa(r.TotalResults),
		string(d.Sources),
		string(d.Duplicates),
		strconv.FormatInt(r.Duration.Milliseconds(), 10),
		r.CreatedAt.Format(time.RFC3339Nano),
		r.Error,
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	// Ensure we're at the end of the file for appending (just in case)
	if _, err := b.file.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("seek: %w", err)
	}

	w := csv.NewWriter(b.file)
	if err := w.Write(record); err != nil {
		return fmt.Errorf("write run %s: %w", r.ID, err)
	}
	w.Flush()

	if err := w.Error(); err != nil {
		return fmt.Errorf("write run %s: %w", r.ID, err)
	}

	return nil
}

func (b *csvBackend) Query(ctx context.Context, filter storage.Filter) ([]*storage.RunRecord, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	// Seek to the beginning of the file to read all entries
	if _, err := b.file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek: %w", err)
	}
	defer func() {
		// Restore pointer to end for writing
		_, _ = b.file.Seek(0, io.SeekEnd)
	}()

	r := csv.NewReader(b.file)

	// Read headers
	if _, err := r.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return []*storage.RunRecord{}, nil
		}
		return nil, fmt.Errorf("read header: %w", err)
	}

	var matched []*storage.RunRecord

	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}

		if len(record) != len(headers) {
			continue // skip malformed rows
		}

		totalResults, _ := strconv.Atoi(record[5])
		durationMs, _ := strconv.ParseInt(record[8], 10, 64)
		createdAt, _ := time.Parse(time.RFC3339Nano, record[9])

		res := &storage.RunRecord{
			ID:           record[0],
			Mode:         record[1],
			Input:        record[2],
			Provider:     record[4],
			TotalResults: totalResults,
			Duration:     time.Duration(durationMs) * time.Millisecond,
			CreatedAt:    createdAt,
			Error:        record[10],
		}
		d := storage.Detail{Queries: []byte(record[3]), Sources: []byte(record[6]), Duplicates: []byte(record[7])}
		if err := d.DecodeInto(res); err != nil {
			continue // skip rows with corrupt JSON columns
		}

		if filter.Match(res) {
			matched = append(matched, res)
		}
	}

	return storage.Page(matched, filter), nil
}

func (b *csvBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.file.Close()
}
