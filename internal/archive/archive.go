// Package archive persists raw fetched snapshots so every stored
// record can point back at the exact bytes it was extracted from.
package archive

import (
	"context"
	"fmt"
	"time"
)

// Provider writes one snapshot and returns a stable URI for it.
type Provider interface {
	Put(ctx context.Context, key string, contentType string, data []byte) (string, error)
}

// SnapshotKey builds the canonical object key for a fetched notice:
// one path per source, partitioned by fetch day, named by content hash.
func SnapshotKey(source, contentHash string, fetchedAt time.Time) string {
	return fmt.Sprintf("%s/%s/%s.html", source, fetchedAt.UTC().Format("2006-01-02"), contentHash)
}
