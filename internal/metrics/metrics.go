// Package metrics exposes Prometheus collectors for the ingestion service.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	fetchSuccessTotal        *prometheus.CounterVec
	fetchFailureTotal        *prometheus.CounterVec
	fetchRefusedTotal        *prometheus.CounterVec
	recordsIngestedTotal     *prometheus.CounterVec
	parseFailuresTotal       *prometheus.CounterVec
	ingestRunSeconds         *prometheus.HistogramVec
	nodoMatchesTotal         *prometheus.CounterVec
	workflowTransitionsTotal *prometheus.CounterVec

	once sync.Once
)

// Init registers the collectors. Safe to call more than once.
func Init() {
	once.Do(func() {
		fetchSuccessTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "licita_fetch_success_total",
				Help: "Successful fetches, labeled by origin.",
			},
			[]string{"origin"},
		)
		fetchFailureTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "licita_fetch_failure_total",
				Help: "Failed fetch attempts, labeled by origin and reason.",
			},
			[]string{"origin", "reason"},
		)
		fetchRefusedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "licita_fetch_refused_total",
				Help: "Fetches refused without network I/O while an origin cools down.",
			},
			[]string{"origin"},
		)
		recordsIngestedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "licita_records_ingested_total",
				Help: "Records created or updated by the resolver, labeled by source and outcome.",
			},
			[]string{"source", "outcome"},
		)
		parseFailuresTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "licita_parse_failures_total",
				Help: "Field extraction misses, labeled by field.",
			},
			[]string{"field"},
		)
		ingestRunSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "licita_ingest_run_seconds",
				Help:    "Wall-clock duration of one source ingest run.",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
			},
			[]string{"source"},
		)
		nodoMatchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "licita_nodo_matches_total",
				Help: "Nodo tag matches, labeled by nodo id.",
			},
			[]string{"nodo"},
		)
		workflowTransitionsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "licita_workflow_transitions_total",
				Help: "Workflow transitions applied, labeled by target state.",
			},
			[]string{"to"},
		)
	})
}

// IncFetchSuccess counts one successful fetch.
func IncFetchSuccess(origin string) {
	if fetchSuccessTotal != nil {
		fetchSuccessTotal.WithLabelValues(origin).Inc()
	}
}

// IncFetchFailure counts one failed fetch attempt.
func IncFetchFailure(origin, reason string) {
	if fetchFailureTotal != nil {
		fetchFailureTotal.WithLabelValues(origin, reason).Inc()
	}
}

// IncFetchRefused counts a request refused during cooldown.
func IncFetchRefused(origin string) {
	if fetchRefusedTotal != nil {
		fetchRefusedTotal.WithLabelValues(origin).Inc()
	}
}

// IncRecordIngested counts a resolver outcome ("created" or "updated").
func IncRecordIngested(source, outcome string) {
	if recordsIngestedTotal != nil {
		recordsIngestedTotal.WithLabelValues(source, outcome).Inc()
	}
}

// IncParseFailure counts one extraction miss for a field.
func IncParseFailure(field string) {
	if parseFailuresTotal != nil {
		parseFailuresTotal.WithLabelValues(field).Inc()
	}
}

// ObserveIngestRun records the duration of a source run.
func ObserveIngestRun(source string, d time.Duration) {
	if ingestRunSeconds != nil {
		ingestRunSeconds.WithLabelValues(source).Observe(d.Seconds())
	}
}

// IncNodoMatch counts one nodo tag hit.
func IncNodoMatch(nodo string) {
	if nodoMatchesTotal != nil {
		nodoMatchesTotal.WithLabelValues(nodo).Inc()
	}
}

// IncWorkflowTransition counts a successful transition.
func IncWorkflowTransition(to string) {
	if workflowTransitionsTotal != nil {
		workflowTransitionsTotal.WithLabelValues(to).Inc()
	}
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
