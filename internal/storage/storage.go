// Package storage defines the audit trail of pipeline runs and the backend
// interface implemented by the sqlite, postgres, mongo, json and csv
// subpackages.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/FranksOps/verifis/internal/source"
)

// RunRecord represents one pipeline run: what was asked, which provider
// answered, the sources returned and the duplicates they superseded.
type RunRecord struct {
	ID           string               `json:"id" bson:"_id"`
	Mode         string               `json:"mode" bson:"mode"`
	Input        string               `json:"input" bson:"input"`
	Queries      []string             `json:"queries" bson:"queries"`
	Provider     string               `json:"provider" bson:"provider"`
	TotalResults int                  `json:"totalResults" bson:"total_results"`
	Sources      []source.WithContent `json:"sources" bson:"sources"`
	Duplicates   []source.Enhanced    `json:"duplicates" bson:"duplicates"`
	CreatedAt    time.Time            `json:"createdAt" bson:"created_at"`
	Duration     time.Duration        `json:"duration" bson:"duration"`
	Error        string               `json:"error,omitempty" bson:"error,omitempty"` // non-empty if the run degraded to a diagnostic result
}

// Filter allows querying for specific RunRecords.
type Filter struct {
	Mode     string
	Provider string
	Since    *time.Time
	Limit    int
	Offset   int
}

// Match reports whether r satisfies the field conditions of f. Limit and
// Offset are not considered.
func (f Filter) Match(r *RunRecord) bool {
	if f.Mode != "" && r.Mode != f.Mode {
		return false
	}
	if f.Provider != "" && r.Provider != f.Provider {
		return false
	}
	if f.Since != nil && r.CreatedAt.Before(*f.Since) {
		return false
	}
	return true
}

// Page orders records newest first and applies the filter's offset and
// limit. records must be in insertion order.
func Page(records []*RunRecord, f Filter) []*RunRecord {
	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}

	if f.Offset > 0 {
		if f.Offset >= len(records) {
			return []*RunRecord{}
		}
		records = records[f.Offset:]
	}
	if f.Limit > 0 && f.Limit < len(records) {
		records = records[:f.Limit]
	}
	return records
}

// Backend defines the interface for storing and querying pipeline runs.
type Backend interface {
	Save(ctx context.Context, record *RunRecord) error
	Query(ctx context.Context, filter Filter) ([]*RunRecord, error)
	Close() error
}

// Detail holds the nested parts of a RunRecord encoded as JSON, for backends
// that store them in text columns.
type Detail struct {
	Queries    []byte
	Sources    []byte
	Duplicates []byte
}

// EncodeDetail marshals the nested fields of r.
func EncodeDetail(r *RunRecord) (Detail, error) {
	var (
		d   Detail
		err error
	)
	if d.Queries, err = json.Marshal(nonNil(r.Queries)); err != nil {
		return d, fmt.Errorf("encode queries: %w", err)
	}
	if d.Sources, err = json.Marshal(nonNil(r.Sources)); err != nil {
		return d, fmt.Errorf("encode sources: %w", err)
	}
	if d.Duplicates, err = json.Marshal(nonNil(r.Duplicates)); err != nil {
		return d, fmt.Errorf("encode duplicates: %w", err)
	}
	return d, nil
}

// DecodeInto unmarshals d into the nested fields of r.
func (d Detail) DecodeInto(r *RunRecord) error {
	if err := json.Unmarshal(d.Queries, &r.Queries); err != nil {
		return fmt.Errorf("decode queries: %w", err)
	}
	if err := json.Unmarshal(d.Sources, &r.Sources); err != nil {
		return fmt.Errorf("decode sources: %w", err)
	}
	if err := json.Unmarshal(d.Duplicates, &r.Duplicates); err != nil {
		return fmt.Errorf("decode duplicates: %w", err)
	}
	return nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
