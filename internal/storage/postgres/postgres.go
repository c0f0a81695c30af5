package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/FranksOps/verifis/internal/storage"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ensure postgresBackend implements storage.Backend
var _ storage.Backend = (*postgresBackend)(nil)

type postgresBackend struct {
	pool *pgxpool.Pool
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	mode TEXT NOT NULL,
	input TEXT NOT NULL,
	queries JSONB NOT NULL,
	provider TEXT NOT NULL,
	total_results INTEGER NOT NULL,
	sources JSONB NOT NULL,
	duplicates JSONB NOT NULL,
	duration_ms BIGINT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	error TEXT
);
CREATE INDEX IF NOT EXISTS runs_created_at ON runs (created_at DESC);
`

// New creates a new Postgres-backed storage.Backend.
func New(ctx context.Context, dsn string) (storage.Backend, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	_, err = pool.Exec(ctx, schema)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &postgresBackend{pool: pool}, nil
}

func (b *postgresBackend) Save(ctx context.Context, r *storage.RunRecord) error {
	d, err := storage.EncodeDetail(r)
	if err != nil {
		return err
	}

	query := `
	INSERT INTO runs (
		id, mode, input, queries, provider, total_results, sources, duplicates, duration_ms, created_at, error
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err = b.pool.Exec(ctx, query,
		r.ID,
		r.Mode,
		r.Input,
		d.Queries,
		r.Provider,
		r.TotalResults,
		d.Sources,
		d.Duplicates,
		r.Duration.Milliseconds(),
		r.CreatedAt,
		r.Error,
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", r.ID, err)
	}

	return nil
}

func (b *postgresBackend) Query(ctx context.Context, filter storage.Filter) ([]*storage.RunRecord, error) {
	query := `SELECT id, mode, input, queries, provider, total_results, sources, duplicates, duration_ms, created_at, error FROM runs WHERE 1=1`
	args := []any{}
	paramCount := 1

	if filter.Mode != "" {
		query += fmt.Sprintf(` AND mode = $%d`, paramCount)
		args = append(args, filter.Mode)
		paramCount++
	}
	if filter.Provider != "" {
		query += fmt.Sprintf(` AND provider = $%d`, paramCount)
		args = append(args, filter.Provider)
		paramCount++
	}
	if filter.Since != nil {
		query += fmt.Sprintf(` AND created_at >= $%d`, paramCount)
		args = append(args, *filter.Since)
		paramCount++
	}

	query += ` ORDER BY created_at DESC`

	if filter.Limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d`, paramCount)
		args = append(args, filter.Limit)
		paramCount++
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, paramCount)
		args = append(args, filter.Offset)
	}

	rows, err := b.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var results []*storage.RunRecord
	for rows.Next() {
		var (
			r          storage.RunRecord
			d          storage.Detail
			durationMs int64
			errText    *string
		)

		err := rows.Scan(
			&r.ID, &r.Mode, &r.Input, &d.Queries, &r.Provider, &r.TotalResults,
			&d.Sources, &d.Duplicates, &durationMs, &r.CreatedAt, &errText,
		)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}

		r.Duration = time.Duration(durationMs) * time.Millisecond
		if errText != nil {
			r.Error = *errText
		}
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

func (b *postgresBackend) Close() error {
	b.pool.Close()
	return nil
}
