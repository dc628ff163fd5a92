// Package memory implements an in-memory record store for tests and
// development runs.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/licitawatch/licitawatch/internal/record"
	"github.com/licitawatch/licitawatch/internal/store"
)

// Store keeps records in maps guarded by one mutex, which makes
// CreateIfAbsent naturally atomic.
type Store struct {
	mu       sync.RWMutex
	byID     map[string]*record.Record
	byHash   map[string]string // content hash -> id
	byNative map[string]string // source + "\x00" + native id -> id
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		byID:     make(map[string]*record.Record),
		byHash:   make(map[string]string),
		byNative: make(map[string]string),
	}
}

// CreateIfAbsent inserts rec unless its fingerprint is already present.
func (s *Store) CreateIfAbsent(_ context.Context, rec *record.Record) (*record.Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.byHash[rec.ContentHash]; ok {
		return s.byID[id].Clone(), false, nil
	}
	stored := rec.Clone()
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	s.byID[stored.ID] = stored
	s.byHash[stored.ContentHash] = stored.ID
	if stored.NativeID != "" {
		s.byNative[nativeKey(stored.Source, stored.NativeID)] = stored.ID
	}
	return stored.Clone(), true, nil
}

// Save replaces the stored record with the same id.
func (s *Store) Save(_ context.Context, rec *record.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.byID[rec.ID]
	if !ok {
		return store.ErrNotFound
	}
	delete(s.byHash, existing.ContentHash)
	stored := rec.Clone()
	s.byID[stored.ID] = stored
	s.byHash[stored.ContentHash] = stored.ID
	if stored.NativeID != "" {
		s.byNative[nativeKey(stored.Source, stored.NativeID)] = stored.ID
	}
	return nil
}

// Get loads a record by id.
func (s *Store) Get(_ context.Context, id string) (*record.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.byID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return rec.Clone(), nil
}

// GetByFingerprint loads a record by content hash.
func (s *Store) GetByFingerprint(_ context.Context, hash string) (*record.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byHash[hash]
	if !ok {
		return nil, store.ErrNotFound
	}
	return s.byID[id].Clone(), nil
}

// GetByNativeID loads a record by source-native identifier.
func (s *Store) GetByNativeID(_ context.Context, source, nativeID string) (*record.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byNative[nativeKey(source, nativeID)]
	if !ok {
		return nil, store.ErrNotFound
	}
	return s.byID[id].Clone(), nil
}

// List returns matching records, newest first.
func (s *Store) List(_ context.Context, f store.Filter) ([]*record.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*record.Record
	for _, rec := range s.byID {
		if f.Source != "" && rec.Source != f.Source {
			continue
		}
		if f.Jurisdiction != "" && rec.Jurisdiction != f.Jurisdiction {
			continue
		}
		if f.State != "" && rec.WorkflowState != f.State {
			continue
		}
		if f.Category != "" && rec.Category != f.Category {
			continue
		}
		out = append(out, rec.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].FirstObservedAt.After(out[j].FirstObservedAt)
	})
	if f.Offset > 0 {
		if f.Offset >= len(out) {
			return nil, nil
		}
		out = out[f.Offset:]
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

// Search does a case-insensitive substring match over normalized fields.
func (s *Store) Search(_ context.Context, query string, limit int) ([]*record.Record, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*record.Record
	for _, rec := range s.byID {
		haystack := strings.ToLower(rec.Title + " " + rec.ProcurementObject + " " + rec.Description + " " + rec.Organization)
		if strings.Contains(haystack, q) {
			out = append(out, rec.Clone())
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

// Len reports the number of stored records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

func nativeKey(source, nativeID string) string {
	return source + "\x00" + nativeID
}
