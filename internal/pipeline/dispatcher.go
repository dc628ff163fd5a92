package pipeline

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/licitawatch/licitawatch/internal/source"
)

// Dispatcher fans a set of source adapters out over a bounded pool of
// ingest workers.
type Dispatcher struct {
	runner      *Runner
	concurrency int
	logger      *zap.Logger
}

// NewDispatcher builds a Dispatcher. Concurrency below 1 is clamped to 1.
func NewDispatcher(runner *Runner, concurrency int, logger *zap.Logger) *Dispatcher {
	if concurrency < 1 {
		concurrency = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{runner: runner, concurrency: concurrency, logger: logger}
}

// Run ingests every adapter and returns one summary per adapter, in
// completion order. A failing source is reported in its summary and
// never blocks the others.
func (d *Dispatcher) Run(ctx context.Context, adapters []source.Adapter) []Summary {
	jobs := make(chan source.Adapter)
	results := make(chan Summary, len(adapters))

	var wg sync.WaitGroup
	for i := 0; i < d.concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for adapter := range jobs {
				summary, err := d.runner.IngestSource(ctx, adapter)
				if err != nil {
					d.logger.Error("source run failed",
						zap.String("source", adapter.Name()),
						zap.Error(err))
				}
				results <- summary
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, adapter := range adapters {
			select {
			case jobs <- adapter:
			case <-ctx.Done():
				return
			}
		}
	}()

	wg.Wait()
	close(results)

	summaries := make([]Summary, 0, len(adapters))
	for s := range results {
		summaries = append(summaries, s)
	}
	return summaries
}
