// Package store declares persistence for procurement records. The
// pipeline only needs find and atomic upsert semantics; the engine
// behind them is interchangeable.
package store

import (
	"context"
	"errors"

	"github.com/licitawatch/licitawatch/internal/record"
)

// ErrNotFound signals that the requested record does not exist.
var ErrNotFound = errors.New("record not found")

// Filter narrows List results. Zero values mean "any".
type Filter struct {
	Source       string
	Jurisdiction string
	State        record.WorkflowState
	Category     string
	Limit        int
	Offset       int
}

// Store persists procurement records keyed by their identity fingerprint.
//
// CreateIfAbsent must be atomic with respect to the content-hash unique
// constraint: two concurrent calls with the same fingerprint yield one
// stored record, with exactly one caller seeing created=true.
type Store interface {
	// CreateIfAbsent inserts rec unless a record with its ContentHash
	// already exists. It returns the stored record (the fresh insert or
	// the existing row) and whether an insert happened.
	CreateIfAbsent(ctx context.Context, rec *record.Record) (*record.Record, bool, error)
	// Save replaces the stored record identified by rec.ID.
	Save(ctx context.Context, rec *record.Record) error
	// Get loads one record by id or returns ErrNotFound.
	Get(ctx context.Context, id string) (*record.Record, error)
	// GetByFingerprint loads one record by content hash or returns ErrNotFound.
	GetByFingerprint(ctx context.Context, hash string) (*record.Record, error)
	// GetByNativeID loads one record by (source, source-native id) or
	// returns ErrNotFound.
	GetByNativeID(ctx context.Context, source, nativeID string) (*record.Record, error)
	// List returns records matching the filter, newest first by first
	// observation.
	List(ctx context.Context, f Filter) ([]*record.Record, error)
	// Search matches a free-text query against normalized fields.
	Search(ctx context.Context, query string, limit int) ([]*record.Record, error)
}
