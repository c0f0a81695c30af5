package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/FranksOps/verifis/internal/storage"
	_ "modernc.org/sqlite"
)

// ensure sqliteBackend implements storage.Backend
var _ storage.Backend = (*sqliteBackend)(nil)

type sqliteBackend struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	mode TEXT NOT NULL,
	input TEXT NOT NULL,
	queries TEXT NOT NULL,
	provider TEXT NOT NULL,
	total_results INTEGER NOT NULL,
	sources TEXT NOT NULL,
	duplicates TEXT NOT NULL,
	duration_ms INTEGER NOT NULL,
	created_at DATETIME NOT NULL,
	error TEXT
);
CREATE INDEX IF NOT EXISTS runs_created_at ON runs (created_at);
`

// New creates a new SQLite-backed storage.Backend.
func New(dsn string) (storage.Backend, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &sqliteBackend{db: db}, nil
}

func (b *sqliteBackend) Save(ctx context.Context, r *storage.RunRecord) error {
	d, err := storage.EncodeDetail(r)
	if err != nil {
		return err
	}

	query := `
	INSERT INTO runs (
		id, mode, input, queries, provider, total_results, sources, duplicates, duration_ms, created_at, error
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = b.db.ExecContext(ctx, query,
		r.ID,
		r.Mode,
		r.Input,
		string(d.Queries),
		r.Provider,
		r.TotalResults,
		string(d.Sources),
		string(d.Duplicates),
		r.Duration.Milliseconds(),
		r.CreatedAt.UTC(),
		r.Error,
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", r.ID, err)
	}

	return nil
}

func (b *sqliteBackend) Query(ctx context.Context, filter storage.Filter) ([]*storage.RunRecord, error) {
	query := `SELECT id, mode, input, queries, provider, total_results, sources, duplicates, duration_ms, created_at, error FROM runs WHERE 1=1`
	args := []any{}

	if filter.Mode != "" {
		query += ` AND mode = ?`
		args = append(args, filter.Mode)
	}
	if filter.Provider != "" {
		query += ` AND provider = ?`
		args = append(args, filter.Provider)
	}
	// Timestamps are stored as UTC text, so comparisons need UTC too.
	if filter.Since != nil {
		query += ` AND created_at >= ?`
		args = append(args, filter.Since.UTC())
	}

	query += ` ORDER BY created_at DESC`

	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	} else if filter.Offset > 0 {
		query += ` LIMIT -1`
	}
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var results []*storage.RunRecord
	for rows.Next() {
		var (
			r                            storage.RunRecord
			queries, sources, duplicates string
			durationMs                   int64
			errText                      sql.NullString
		)

		err := rows.Scan(
			&r.ID, &r.Mode, &r.Input, &queries, &r.Provider, &r.TotalResults,
			&sources, &duplicates, &durationMs, &r.CreatedAt, &errText,
		)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}

		r.Duration = time.Duration(durationMs) * time.Millisecond
		r.Error = errText.String
		d := storage.Detail{Queries: []byte(queries), Sources: []byte(sources), Duplicates: []byte(duplicates)}
		if err := d.DecodeInto(&r); err != nil {
			return nil, fmt.Errorf("run %s: %w", r.ID, err)
		}

		results = append(results, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}

	return results, nil
}

func (b *sqliteBackend) Close() error {
	return b.db.Close()
}
