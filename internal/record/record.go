// Package record defines the normalized procurement record model shared by the
// ingestion pipeline, the store, and the workflow machinery.
package record

import (
	"time"
)

// EnrichmentLevel expresses how complete a record is.
type EnrichmentLevel int

// Enrichment tiers. Levels only move up, never down.
const (
	LevelBasic     EnrichmentLevel = 1 // raw scrape only
	LevelExtracted EnrichmentLevel = 2 // fields extracted and classified
	LevelDocuments EnrichmentLevel = 3 // attachments resolved
)

// WorkflowState is the review lifecycle state of a record.
type WorkflowState string

// Lifecycle states. Submitted and Discarded are terminal.
const (
	StateDiscovered WorkflowState = "discovered"
	StateEvaluating WorkflowState = "evaluating"
	StatePreparing  WorkflowState = "preparing"
	StateSubmitted  WorkflowState = "submitted"
	StateDiscarded  WorkflowState = "discarded"
)

// Valid reports whether s is a known workflow state.
func (s WorkflowState) Valid() bool {
	switch s {
	case StateDiscovered, StateEvaluating, StatePreparing, StateSubmitted, StateDiscarded:
		return true
	}
	return false
}

// Terminal reports whether s has no outgoing transitions.
func (s WorkflowState) Terminal() bool {
	return s == StateSubmitted || s == StateDiscarded
}

// Budget is an extracted monetary amount.
type Budget struct {
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
}

// Attachment is a document linked from a notice, deduplicated by resolved URL.
type Attachment struct {
	Name string `json:"name"`
	URL  string `json:"url"`
	Type string `json:"type"`
}

// TransitionEntry is one immutable workflow history entry.
type TransitionEntry struct {
	From      WorkflowState `json:"from"`
	To        WorkflowState `json:"to"`
	Timestamp time.Time     `json:"timestamp"`
	Notes     string        `json:"notes,omitempty"`
}

// ExtensionEntry records a revision that pushed the opening date later.
type ExtensionEntry struct {
	PreviousDate time.Time `json:"previous_date"`
	NewDate      time.Time `json:"new_date"`
	ObservedAt   time.Time `json:"observed_at"`
}

// Record is the canonical normalized procurement notice.
//
// FirstObservedAt is when this pipeline first saw the notice;
// PublicationDate is what the source claims. They are never substituted
// for one another: sources routinely omit or misreport publication dates.
type Record struct {
	ID          string `json:"id"`
	ContentHash string `json:"content_hash"`
	NativeID    string `json:"native_id,omitempty"`

	Title        string `json:"title"`
	Organization string `json:"organization,omitempty"`
	Jurisdiction string `json:"jurisdiction,omitempty"`
	Source       string `json:"source"`
	SourceURL    string `json:"source_url,omitempty"`
	Expedient    string `json:"expedient,omitempty"`
	Description  string `json:"description,omitempty"`

	PublicationDate *time.Time `json:"publication_date,omitempty"`
	OpeningDate     *time.Time `json:"opening_date,omitempty"`
	ExtensionDate   *time.Time `json:"extension_date,omitempty"`
	FirstObservedAt time.Time  `json:"first_observed_at"`
	LastObservedAt  time.Time  `json:"last_observed_at"`

	Budget            *Budget      `json:"budget,omitempty"`
	ProcurementObject string       `json:"procurement_object,omitempty"`
	Category          string       `json:"category,omitempty"`
	KeywordTags       []string     `json:"keyword_tags,omitempty"`
	Attachments       []Attachment `json:"attachments,omitempty"`

	WorkflowState    WorkflowState     `json:"workflow_state"`
	WorkflowHistory  []TransitionEntry `json:"workflow_history,omitempty"`
	ExtensionHistory []ExtensionEntry  `json:"extension_history,omitempty"`
	EnrichmentLevel  EnrichmentLevel   `json:"enrichment_level"`

	RawSnapshotURI string `json:"raw_snapshot_uri,omitempty"`
}

// Candidate is the pre-identity output of one extraction pass over a
// fetched notice. The resolver turns candidates into stored records.
type Candidate struct {
	Title             string
	DescriptiveName   string
	Organization      string
	Jurisdiction      string
	Source            string
	SourceURL         string
	NativeID          string
	Expedient         string
	Description       string
	PublicationDate   *time.Time
	OpeningDate       *time.Time
	Budget            *Budget
	ProcurementObject string
	Attachments       []Attachment
	RawSnapshotURI    string
}

// RaiseEnrichment lifts the record to lvl if that is an upgrade.
// Enrichment never goes down.
func (r *Record) RaiseEnrichment(lvl EnrichmentLevel) {
	if lvl > r.EnrichmentLevel {
		r.EnrichmentLevel = lvl
	}
}

// Clone returns a deep copy so store implementations can hand out
// records without aliasing internal state.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	out := *r
	out.PublicationDate = cloneTime(r.PublicationDate)
	out.OpeningDate = cloneTime(r.OpeningDate)
	out.ExtensionDate = cloneTime(r.ExtensionDate)
	if r.Budget != nil {
		b := *r.Budget
		out.Budget = &b
	}
	out.KeywordTags = append([]string(nil), r.KeywordTags...)
	out.Attachments = append([]Attachment(nil), r.Attachments...)
	out.WorkflowHistory = append([]TransitionEntry(nil), r.WorkflowHistory...)
	out.ExtensionHistory = append([]ExtensionEntry(nil), r.ExtensionHistory...)
	return &out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
