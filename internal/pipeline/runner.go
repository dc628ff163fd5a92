// Package pipeline drives one full ingest pass per source: fetch,
// extract, resolve, annotate, archive, publish. A failing notice never
// takes down the rest of the run.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/licitawatch/licitawatch/internal/archive"
	"github.com/licitawatch/licitawatch/internal/classify"
	"github.com/licitawatch/licitawatch/internal/clock"
	"github.com/licitawatch/licitawatch/internal/extract"
	"github.com/licitawatch/licitawatch/internal/fetch"
	"github.com/licitawatch/licitawatch/internal/metrics"
	"github.com/licitawatch/licitawatch/internal/nodo"
	"github.com/licitawatch/licitawatch/internal/publisher"
	"github.com/licitawatch/licitawatch/internal/record"
	"github.com/licitawatch/licitawatch/internal/resolve"
	"github.com/licitawatch/licitawatch/internal/source"
	"github.com/licitawatch/licitawatch/internal/store"
)

// Config tunes a pipeline run.
type Config struct {
	// Budget caps the wall-clock time of one source run. Zero means no
	// cap. A run that hits the budget returns what it has.
	Budget time.Duration `mapstructure:"budget"`
	// Concurrency is how many sources the dispatcher ingests at once.
	Concurrency int `mapstructure:"concurrency"`
}

// Deps wires the pipeline stages together. Archive and Publisher are
// optional; everything else is required.
type Deps struct {
	Fetcher    *fetch.Client
	Engine     *extract.Engine
	Resolver   *resolve.Resolver
	Classifier *classify.Classifier
	Matcher    *nodo.Matcher
	Store      store.Store
	Archive    archive.Provider
	Publisher  publisher.Publisher
	Clock      clock.Clock
	Logger     *zap.Logger
}

// Summary is the result of one source run.
type Summary struct {
	Source          string
	Fetched         int
	Created         int
	Updated         int
	Extended        int
	Unchanged       int
	Failed          int
	BudgetExhausted bool
	Elapsed         time.Duration
}

// Runner executes ingest passes.
type Runner struct {
	deps   Deps
	budget time.Duration
	logger *zap.Logger
}

// NewRunner validates deps and builds a Runner.
func NewRunner(deps Deps, cfg Config) (*Runner, error) {
	if deps.Fetcher == nil || deps.Engine == nil || deps.Resolver == nil ||
		deps.Classifier == nil || deps.Matcher == nil || deps.Store == nil {
		return nil, fmt.Errorf("fetcher, engine, resolver, classifier, matcher, and store are required")
	}
	if deps.Clock == nil {
		deps.Clock = clock.System{}
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Runner{deps: deps, budget: cfg.Budget, logger: deps.Logger}, nil
}

// IngestSource runs the full pipeline for one source adapter. Partial
// results stand: notices processed before an exhausted budget or a
// cancelled context stay ingested.
func (r *Runner) IngestSource(ctx context.Context, adapter source.Adapter) (Summary, error) {
	start := r.deps.Clock.Now()
	summary := Summary{Source: adapter.Name()}
	defer func() {
		summary.Elapsed = r.deps.Clock.Now().Sub(start)
		metrics.ObserveIngestRun(summary.Source, summary.Elapsed)
	}()

	// The budget deadline rides on the context handed to the adapter,
	// so the fetch layer stops paginating when time runs out instead of
	// only the processing loop noticing afterwards.
	var deadline time.Time
	fetchCtx := ctx
	if r.budget > 0 {
		deadline = start.Add(r.budget)
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithDeadline(ctx, deadline)
		defer cancel()
	}

	notices, err := adapter.Notices(fetchCtx, r.deps.Fetcher)
	if err != nil {
		return summary, fmt.Errorf("fetch notices from %s: %w", adapter.Name(), err)
	}
	summary.Fetched = len(notices)

	for _, n := range notices {
		if !deadline.IsZero() && r.deps.Clock.Now().After(deadline) {
			summary.BudgetExhausted = true
			r.logger.Warn("ingest budget exhausted, returning partial results",
				zap.String("source", adapter.Name()),
				zap.Int("processed", summary.Created+summary.Updated+summary.Extended+summary.Unchanged))
			break
		}
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		outcome, err := r.processNotice(ctx, adapter, n)
		if err != nil {
			summary.Failed++
			r.logger.Error("notice failed, continuing run",
				zap.String("source", adapter.Name()),
				zap.String("url", n.URL),
				zap.Error(err))
			continue
		}
		switch outcome {
		case resolve.OutcomeCreated:
			summary.Created++
		case resolve.OutcomeUpdated:
			summary.Updated++
		case resolve.OutcomeExtended:
			summary.Extended++
		default:
			summary.Unchanged++
		}
	}

	r.logger.Info("source run finished",
		zap.String("source", adapter.Name()),
		zap.Int("fetched", summary.Fetched),
		zap.Int("created", summary.Created),
		zap.Int("updated", summary.Updated),
		zap.Int("extended", summary.Extended),
		zap.Int("failed", summary.Failed),
		zap.Bool("budget_exhausted", summary.BudgetExhausted))
	return summary, nil
}

func (r *Runner) processNotice(ctx context.Context, adapter source.Adapter, n source.Notice) (resolve.Outcome, error) {
	cand := r.deps.Engine.BuildCandidate(n, adapter.Name(), adapter.Hints())
	if cand.Jurisdiction == "" {
		cand.Jurisdiction = adapter.Jurisdiction()
	}
	r.archiveSnapshot(ctx, &cand, n)

	rec, outcome, err := r.deps.Resolver.Ingest(ctx, cand)
	if err != nil {
		return "", err
	}
	if err := r.annotate(ctx, rec); err != nil {
		return "", err
	}
	r.publish(ctx, rec, outcome)
	return outcome, nil
}

// archiveSnapshot stores the raw page before extraction results are
// persisted. Snapshot loss is logged, not fatal.
func (r *Runner) archiveSnapshot(ctx context.Context, cand *record.Candidate, n source.Notice) {
	if r.deps.Archive == nil || n.HTML == "" {
		return
	}
	hash := record.Fingerprint(cand.Title, cand.Source, cand.Expedient)
	key := archive.SnapshotKey(cand.Source, hash, r.deps.Clock.Now())
	uri, err := r.deps.Archive.Put(ctx, key, "text/html; charset=utf-8", []byte(n.HTML))
	if err != nil {
		r.logger.Warn("snapshot archive failed",
			zap.String("source", cand.Source),
			zap.String("key", key),
			zap.Error(err))
		return
	}
	cand.RawSnapshotURI = uri
}

// annotate runs classification and nodo matching over the stored
// record and lifts its enrichment level.
func (r *Runner) annotate(ctx context.Context, rec *record.Record) error {
	if rec.Category == "" {
		rec.Category = r.deps.Classifier.Classify(rec.Title, rec.ProcurementObject, rec.Description, rec.KeywordTags)
	}
	r.deps.Matcher.Apply(rec)
	rec.RaiseEnrichment(record.LevelExtracted)
	if len(rec.Attachments) > 0 {
		rec.RaiseEnrichment(record.LevelDocuments)
	}
	if err := r.deps.Store.Save(ctx, rec); err != nil {
		return fmt.Errorf("save annotated record: %w", err)
	}
	return nil
}

// publish emits a lifecycle event. Unchanged re-observations are not
// worth telling anyone about.
func (r *Runner) publish(ctx context.Context, rec *record.Record, outcome resolve.Outcome) {
	if r.deps.Publisher == nil || outcome == resolve.OutcomeUnchanged {
		return
	}
	ev := publisher.Event{
		RecordID:   rec.ID,
		Source:     rec.Source,
		Title:      rec.Title,
		Category:   rec.Category,
		NodoIDs:    rec.KeywordTags,
		OpeningAt:  rec.OpeningDate,
		OccurredAt: r.deps.Clock.Now(),
	}
	switch outcome {
	case resolve.OutcomeCreated:
		ev.Type = publisher.EventRecordCreated
	case resolve.OutcomeExtended:
		ev.Type = publisher.EventOpeningExtended
	default:
		ev.Type = publisher.EventRecordUpdated
	}
	if _, err := r.deps.Publisher.Publish(ctx, ev); err != nil {
		r.logger.Warn("event publish failed",
			zap.String("record_id", rec.ID),
			zap.String("type", string(ev.Type)),
			zap.Error(err))
	}
}
