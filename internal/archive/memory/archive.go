// Package memory keeps snapshots in process memory for tests and
// development runs.
package memory

import (
	"context"
	"fmt"
	"sync"
)

// Archive stores snapshot bytes in a map and hands out pseudo URIs.
type Archive struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// New returns an empty Archive.
func New() *Archive {
	return &Archive{data: make(map[string][]byte)}
}

// Put stores a copy of data under key.
func (a *Archive) Put(_ context.Context, key string, _ string, data []byte) (string, error) {
	if key == "" {
		return "", fmt.Errorf("snapshot key is required")
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.data[key] = append([]byte(nil), data...)
	return "memory://" + key, nil
}

// Get returns the stored snapshot, if present.
func (a *Archive) Get(key string) ([]byte, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	data, ok := a.data[key]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), data...), true
}

// Len reports how many snapshots are stored.
func (a *Archive) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.data)
}
