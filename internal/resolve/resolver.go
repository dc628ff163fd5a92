// Package resolve turns extraction candidates into stored records,
// deduplicating re-observations of the same notice and folding opening
// date revisions into an extension history.
package resolve

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/licitawatch/licitawatch/internal/clock"
	"github.com/licitawatch/licitawatch/internal/metrics"
	"github.com/licitawatch/licitawatch/internal/record"
	"github.com/licitawatch/licitawatch/internal/store"
)

// Outcome describes what ingesting a candidate did to the store.
type Outcome string

const (
	OutcomeCreated   Outcome = "created"
	OutcomeUpdated   Outcome = "updated"
	OutcomeExtended  Outcome = "extended"
	OutcomeUnchanged Outcome = "unchanged"
)

// Resolver matches candidates against stored records by content
// fingerprint and source-native id.
type Resolver struct {
	store  store.Store
	clock  clock.Clock
	logger *zap.Logger
}

// New builds a Resolver. A nil clock defaults to the system clock; a
// nil logger defaults to a no-op logger.
func New(st store.Store, clk clock.Clock, logger *zap.Logger) *Resolver {
	if clk == nil {
		clk = clock.System{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{store: st, clock: clk, logger: logger}
}

// Ingest stores cand, creating a new record or merging into the
// existing one when the notice was seen before. Two observations of
// the same underlying notice always converge to one record.
func (r *Resolver) Ingest(ctx context.Context, cand record.Candidate) (*record.Record, Outcome, error) {
	hash := record.Fingerprint(cand.Title, cand.Source, cand.Expedient)

	existing, err := r.lookup(ctx, cand, hash)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, "", fmt.Errorf("look up record: %w", err)
	}

	if existing != nil {
		outcome, err := r.mergeAndSave(ctx, existing, cand)
		if err != nil {
			return nil, "", err
		}
		metrics.IncRecordIngested(cand.Source, string(outcome))
		return existing, outcome, nil
	}

	fresh := r.buildRecord(cand, hash)
	stored, created, err := r.store.CreateIfAbsent(ctx, fresh)
	if err != nil {
		return nil, "", fmt.Errorf("create record: %w", err)
	}
	if created {
		r.logger.Info("record created",
			zap.String("id", stored.ID),
			zap.String("source", stored.Source),
			zap.String("title", stored.Title))
		metrics.IncRecordIngested(cand.Source, string(OutcomeCreated))
		return stored, OutcomeCreated, nil
	}

	// Lost the insert race; fold the candidate into the winner.
	outcome, err := r.mergeAndSave(ctx, stored, cand)
	if err != nil {
		return nil, "", err
	}
	metrics.IncRecordIngested(cand.Source, string(outcome))
	return stored, outcome, nil
}

func (r *Resolver) lookup(ctx context.Context, cand record.Candidate, hash string) (*record.Record, error) {
	if cand.NativeID != "" {
		rec, err := r.store.GetByNativeID(ctx, cand.Source, cand.NativeID)
		if err == nil {
			return rec, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
	}
	return r.store.GetByFingerprint(ctx, hash)
}

func (r *Resolver) mergeAndSave(ctx context.Context, rec *record.Record, cand record.Candidate) (Outcome, error) {
	changed, extended := r.merge(rec, cand)
	rec.LastObservedAt = r.clock.Now()
	if err := r.store.Save(ctx, rec); err != nil {
		return "", fmt.Errorf("save merged record: %w", err)
	}
	switch {
	case extended:
		return OutcomeExtended, nil
	case changed:
		return OutcomeUpdated, nil
	}
	return OutcomeUnchanged, nil
}

// merge folds candidate fields into rec and reports whether anything
// material changed and whether the opening date was pushed later. Only
// empty fields are filled; workflow state, history, and classification
// annotations are never touched here.
func (r *Resolver) merge(rec *record.Record, cand record.Candidate) (bool, bool) {
	changed := false
	fill := func(dst *string, src string) {
		if *dst == "" && src != "" {
			*dst = src
			changed = true
		}
	}
	fill(&rec.NativeID, cand.NativeID)
	fill(&rec.Organization, cand.Organization)
	fill(&rec.Jurisdiction, cand.Jurisdiction)
	fill(&rec.SourceURL, cand.SourceURL)
	fill(&rec.Expedient, cand.Expedient)
	fill(&rec.Description, cand.Description)
	fill(&rec.ProcurementObject, cand.ProcurementObject)
	fill(&rec.RawSnapshotURI, cand.RawSnapshotURI)

	if rec.Budget == nil && cand.Budget != nil {
		b := *cand.Budget
		rec.Budget = &b
		changed = true
	}
	if len(rec.Attachments) == 0 && len(cand.Attachments) > 0 {
		rec.Attachments = append([]record.Attachment(nil), cand.Attachments...)
		changed = true
	}
	if rec.PublicationDate == nil && cand.PublicationDate != nil {
		d := *cand.PublicationDate
		rec.PublicationDate = &d
		changed = true
	}
	applied, extended := r.applyOpeningDate(rec, cand)
	if applied {
		changed = true
	}
	if r.correctDateOrder(rec) {
		changed = true
	}
	return changed, extended
}

// applyOpeningDate sets a missing opening date, and treats a strictly
// later one as an extension of the existing notice.
func (r *Resolver) applyOpeningDate(rec *record.Record, cand record.Candidate) (bool, bool) {
	if cand.OpeningDate == nil {
		return false, false
	}
	next := *cand.OpeningDate
	if rec.OpeningDate == nil {
		rec.OpeningDate = &next
		return true, false
	}
	prev := *rec.OpeningDate
	if !next.After(prev) {
		return false, false
	}
	rec.ExtensionHistory = append(rec.ExtensionHistory, record.ExtensionEntry{
		PreviousDate: prev,
		NewDate:      next,
		ObservedAt:   r.clock.Now(),
	})
	rec.OpeningDate = &next
	rec.ExtensionDate = &next
	r.logger.Info("opening date extended",
		zap.String("id", rec.ID),
		zap.Time("previous", prev),
		zap.Time("new", next))
	return true, true
}

// correctDateOrder drops a claimed publication date that falls after
// the opening date. Sources misreport publication dates often enough
// that an impossible ordering means the claim is bogus.
func (r *Resolver) correctDateOrder(rec *record.Record) bool {
	if rec.PublicationDate == nil || rec.OpeningDate == nil {
		return false
	}
	if !rec.PublicationDate.After(*rec.OpeningDate) {
		return false
	}
	r.logger.Warn("publication date after opening date, dropping claim",
		zap.String("id", rec.ID),
		zap.Time("publication", *rec.PublicationDate),
		zap.Time("opening", *rec.OpeningDate))
	rec.PublicationDate = nil
	return true
}

func (r *Resolver) buildRecord(cand record.Candidate, hash string) *record.Record {
	now := r.clock.Now()
	rec := &record.Record{
		ContentHash:       hash,
		NativeID:          cand.NativeID,
		Title:             cand.Title,
		Organization:      cand.Organization,
		Jurisdiction:      cand.Jurisdiction,
		Source:            cand.Source,
		SourceURL:         cand.SourceURL,
		Expedient:         cand.Expedient,
		Description:       cand.Description,
		ProcurementObject: cand.ProcurementObject,
		RawSnapshotURI:    cand.RawSnapshotURI,
		FirstObservedAt:   now,
		LastObservedAt:    now,
		WorkflowState:     record.StateDiscovered,
		EnrichmentLevel:   record.LevelBasic,
	}
	if cand.PublicationDate != nil {
		d := *cand.PublicationDate
		rec.PublicationDate = &d
	}
	if cand.OpeningDate != nil {
		d := *cand.OpeningDate
		rec.OpeningDate = &d
	}
	if cand.Budget != nil {
		b := *cand.Budget
		rec.Budget = &b
	}
	rec.Attachments = append([]record.Attachment(nil), cand.Attachments...)
	r.correctDateOrder(rec)
	return rec
}
