package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	archmem "github.com/licitawatch/licitawatch/internal/archive/memory"
	"github.com/licitawatch/licitawatch/internal/classify"
	"github.com/licitawatch/licitawatch/internal/extract"
	"github.com/licitawatch/licitawatch/internal/fetch"
	"github.com/licitawatch/licitawatch/internal/nodo"
	"github.com/licitawatch/licitawatch/internal/publisher"
	pubmem "github.com/licitawatch/licitawatch/internal/publisher/memory"
	"github.com/licitawatch/licitawatch/internal/record"
	"github.com/licitawatch/licitawatch/internal/resolve"
	"github.com/licitawatch/licitawatch/internal/source"
	"github.com/licitawatch/licitawatch/internal/store"
	"github.com/licitawatch/licitawatch/internal/store/memory"
)

// stubAdapter serves canned notices without touching the network.
type stubAdapter struct {
	name         string
	jurisdiction string
	notices      []source.Notice
	err          error
}

func (a *stubAdapter) Name() string         { return a.name }
func (a *stubAdapter) Jurisdiction() string { return a.jurisdiction }
func (a *stubAdapter) Hints() source.Hints  { return source.Hints{} }
func (a *stubAdapter) Notices(context.Context, *fetch.Client) ([]source.Notice, error) {
	return a.notices, a.err
}

type env struct {
	runner    *Runner
	store     *memory.Store
	archive   *archmem.Archive
	publisher *pubmem.Publisher
}

func newEnv(t *testing.T, cfg Config) *env {
	t.Helper()

	st := memory.New()
	arch := archmem.New()
	pub := pubmem.New()
	matcher, err := nodo.NewMatcher([]nodo.Nodo{{
		ID:     "energia",
		Scope:  nodo.ScopeGlobal,
		Groups: map[string][]string{"g": {"energía"}},
	}})
	require.NoError(t, err)

	fetcher := fetch.New(nil, fetch.Config{}, nil, nil)
	runner, err := NewRunner(Deps{
		Fetcher:    fetcher,
		Engine:     extract.NewEngine(nil),
		Resolver:   resolve.New(st, nil, nil),
		Classifier: classify.New(nil),
		Matcher:    matcher,
		Store:      st,
		Archive:    arch,
		Publisher:  pub,
	}, cfg)
	require.NoError(t, err)
	return &env{runner: runner, store: st, archive: arch, publisher: pub}
}

func notice(title string) source.Notice {
	return source.Notice{
		Title:              title,
		URL:                "https://compras.example.gob.ar/l/1",
		Description:        "Objeto: Provisión de energía eléctrica para edificios públicos. Presupuesto oficial: $ 12.000.000.",
		PublicationDateRaw: "10/01/2026",
		OpeningDateRaw:     "01/02/2026",
		HTML:               `<html><a href="/pliego.pdf">Pliego</a></html>`,
	}
}

func TestIngestSourceFullPass(t *testing.T) {
	e := newEnv(t, Config{})
	adapter := &stubAdapter{
		name:         "compras-mza",
		jurisdiction: "mendoza",
		notices:      []source.Notice{notice("Provisión de energía eléctrica para edificios públicos")},
	}

	summary, err := e.runner.IngestSource(context.Background(), adapter)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Fetched)
	assert.Equal(t, 1, summary.Created)
	assert.Zero(t, summary.Failed)

	recs, err := e.store.List(context.Background(), store.Filter{})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	rec := recs[0]

	assert.Equal(t, "mendoza", rec.Jurisdiction, "adapter jurisdiction fills the blank")
	assert.Equal(t, "energia", rec.Category)
	assert.Equal(t, []string{"energia"}, rec.KeywordTags)
	assert.Equal(t, record.LevelDocuments, rec.EnrichmentLevel, "attachments lift enrichment")
	assert.NotEmpty(t, rec.RawSnapshotURI)
	assert.Equal(t, 1, e.archive.Len())

	events := e.publisher.Events()
	require.Len(t, events, 1)
	assert.Equal(t, publisher.EventRecordCreated, events[0].Type)
	assert.Equal(t, rec.ID, events[0].RecordID)
}

func TestIngestSourceReobservationIsNotDuplicated(t *testing.T) {
	e := newEnv(t, Config{})
	adapter := &stubAdapter{
		name:    "compras-mza",
		notices: []source.Notice{notice("Provisión de energía eléctrica para edificios públicos")},
	}
	ctx := context.Background()

	_, err := e.runner.IngestSource(ctx, adapter)
	require.NoError(t, err)
	summary, err := e.runner.IngestSource(ctx, adapter)
	require.NoError(t, err)

	assert.Zero(t, summary.Created)
	assert.Equal(t, 1, e.store.Len())

	events := e.publisher.Events()
	require.Len(t, events, 1, "unchanged re-observation publishes nothing")
}

func TestIngestSourceExtensionPublishesEvent(t *testing.T) {
	e := newEnv(t, Config{})
	ctx := context.Background()

	first := notice("Provisión de energía eléctrica para edificios públicos")
	adapter := &stubAdapter{name: "compras-mza", notices: []source.Notice{first}}
	_, err := e.runner.IngestSource(ctx, adapter)
	require.NoError(t, err)

	revised := first
	revised.OpeningDateRaw = "01/03/2026"
	adapter.notices = []source.Notice{revised}
	summary, err := e.runner.IngestSource(ctx, adapter)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Extended)
	events := e.publisher.Events()
	require.Len(t, events, 2)
	assert.Equal(t, publisher.EventOpeningExtended, events[1].Type)
}

func TestIngestSourceAdapterError(t *testing.T) {
	e := newEnv(t, Config{})
	adapter := &stubAdapter{name: "roto", err: errors.New("origen caído")}

	_, err := e.runner.IngestSource(context.Background(), adapter)
	assert.Error(t, err)
}

func TestIngestSourceBudgetReturnsPartialResults(t *testing.T) {
	// The fixed clock never advances during the run, so a tiny negative
	// budget makes the deadline already past for the second notice.
	st := memory.New()
	matcher, err := nodo.NewMatcher(nil)
	require.NoError(t, err)
	runner, err := NewRunner(Deps{
		Fetcher:    fetch.New(nil, fetch.Config{}, nil, nil),
		Engine:     extract.NewEngine(nil),
		Resolver:   resolve.New(st, nil, nil),
		Classifier: classify.New(nil),
		Matcher:    matcher,
		Store:      st,
		Clock:      &advancingClock{start: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)},
	}, Config{Budget: time.Nanosecond})
	require.NoError(t, err)

	adapter := &stubAdapter{name: "src", notices: []source.Notice{
		notice("Provisión de energía eléctrica para edificios públicos"),
		notice("Servicio de limpieza integral de oficinas"),
	}}
	summary, err := runner.IngestSource(context.Background(), adapter)
	require.NoError(t, err)

	assert.True(t, summary.BudgetExhausted)
	assert.Equal(t, 2, summary.Fetched)
	assert.Zero(t, summary.Created, "budget spent before the first notice")
	assert.Zero(t, st.Len())
}

// pagingAdapter simulates a source that keeps serving listing pages
// until its context expires, like a paginated portal would.
type pagingAdapter struct {
	pages       int
	perPage     time.Duration
	fetched     int
	hasDeadline bool
}

func (a *pagingAdapter) Name() string         { return "paginado" }
func (a *pagingAdapter) Jurisdiction() string { return "" }
func (a *pagingAdapter) Hints() source.Hints  { return source.Hints{} }

func (a *pagingAdapter) Notices(ctx context.Context, _ *fetch.Client) ([]source.Notice, error) {
	_, a.hasDeadline = ctx.Deadline()
	var out []source.Notice
	for i := 0; i < a.pages; i++ {
		select {
		case <-ctx.Done():
			return out, nil
		case <-time.After(a.perPage):
		}
		a.fetched++
		out = append(out, notice("Provisión de energía eléctrica para edificios públicos"))
	}
	return out, nil
}

func TestIngestSourceBudgetStopsPagination(t *testing.T) {
	e := newEnv(t, Config{Budget: 30 * time.Millisecond})
	adapter := &pagingAdapter{pages: 10, perPage: 20 * time.Millisecond}

	summary, err := e.runner.IngestSource(context.Background(), adapter)
	require.NoError(t, err)

	assert.True(t, adapter.hasDeadline, "budget deadline reaches the adapter context")
	assert.Less(t, adapter.fetched, 10, "pagination stops when the budget expires")
	assert.True(t, summary.BudgetExhausted)
	assert.Equal(t, adapter.fetched, summary.Fetched)
}

func TestDispatcherRunsAllAdapters(t *testing.T) {
	e := newEnv(t, Config{})
	adapters := []source.Adapter{
		&stubAdapter{name: "a", notices: []source.Notice{notice("Provisión de energía eléctrica para edificios")}},
		&stubAdapter{name: "b", notices: []source.Notice{notice("Servicio de limpieza integral de hospitales")}},
		&stubAdapter{name: "c", err: errors.New("origen caído")},
	}

	d := NewDispatcher(e.runner, 2, nil)
	summaries := d.Run(context.Background(), adapters)
	require.Len(t, summaries, 3)

	bySource := map[string]Summary{}
	for _, s := range summaries {
		bySource[s.Source] = s
	}
	assert.Equal(t, 1, bySource["a"].Created)
	assert.Equal(t, 1, bySource["b"].Created)
	assert.Zero(t, bySource["c"].Fetched)
	assert.Equal(t, 2, e.store.Len())
}

// advancingClock moves forward a fixed step on every read, so budget
// checks observe time passing without real sleeps.
type advancingClock struct {
	start time.Time
	reads int
}

func (c *advancingClock) Now() time.Time {
	c.reads++
	return c.start.Add(time.Duration(c.reads) * time.Millisecond)
}
