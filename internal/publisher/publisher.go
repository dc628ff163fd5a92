// Package publisher emits record lifecycle events for downstream
// consumers (notifications, search indexing). The pipeline publishes
// best-effort: a failed publish never fails an ingest.
package publisher

import (
	"context"
	"time"
)

// EventType names what happened to a record.
type EventType string

const (
	EventRecordCreated   EventType = "record.created"
	EventRecordUpdated   EventType = "record.updated"
	EventOpeningExtended EventType = "record.opening_extended"
)

// Event is one lifecycle notification.
type Event struct {
	Type       EventType  `json:"type"`
	RecordID   string     `json:"record_id"`
	Source     string     `json:"source"`
	Title      string     `json:"title,omitempty"`
	Category   string     `json:"category,omitempty"`
	NodoIDs    []string   `json:"nodo_ids,omitempty"`
	OpeningAt  *time.Time `json:"opening_at,omitempty"`
	OccurredAt time.Time  `json:"occurred_at"`
}

// Publisher delivers events. Implementations must be safe for
// concurrent use.
type Publisher interface {
	Publish(ctx context.Context, ev Event) (string, error)
}
