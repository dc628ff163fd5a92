// Package app initializes and holds the long-lived services of the
// ingestion service, acting as the dependency injection container for
// the CLI commands.
package app

import (
	"context"
	"fmt"
	"sort"

	gpubsub "cloud.google.com/go/pubsub"
	gstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/licitawatch/licitawatch/internal/api"
	"github.com/licitawatch/licitawatch/internal/archive"
	archgcs "github.com/licitawatch/licitawatch/internal/archive/gcs"
	archlocal "github.com/licitawatch/licitawatch/internal/archive/local"
	archmem "github.com/licitawatch/licitawatch/internal/archive/memory"
	"github.com/licitawatch/licitawatch/internal/classify"
	"github.com/licitawatch/licitawatch/internal/clock"
	"github.com/licitawatch/licitawatch/internal/config"
	"github.com/licitawatch/licitawatch/internal/extract"
	"github.com/licitawatch/licitawatch/internal/fetch"
	"github.com/licitawatch/licitawatch/internal/logging"
	"github.com/licitawatch/licitawatch/internal/metrics"
	"github.com/licitawatch/licitawatch/internal/nodo"
	"github.com/licitawatch/licitawatch/internal/pipeline"
	"github.com/licitawatch/licitawatch/internal/publisher"
	pubsubpub "github.com/licitawatch/licitawatch/internal/publisher/pubsub"
	"github.com/licitawatch/licitawatch/internal/resolve"
	"github.com/licitawatch/licitawatch/internal/source"
	"github.com/licitawatch/licitawatch/internal/store"
	"github.com/licitawatch/licitawatch/internal/store/memory"
	"github.com/licitawatch/licitawatch/internal/store/postgres"
	"github.com/licitawatch/licitawatch/internal/workflow"
)

// App holds all shared, long-lived services. It is built once at
// startup and handed to the commands that need it.
type App struct {
	cfg    config.Config
	logger *zap.Logger

	store      store.Store
	pg         *postgres.Store
	pubsubConn *gpubsub.Client

	fetcher    *fetch.Client
	matcher    *nodo.Matcher
	machine    *workflow.Machine
	runner     *pipeline.Runner
	dispatcher *pipeline.Dispatcher
	adapters   []source.Adapter
	server     *api.Server
}

// New builds every service from the configuration, failing fast when a
// critical dependency cannot be initialized.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	metrics.Init()

	a := &App{cfg: cfg, logger: logger}

	if err := a.initStore(ctx); err != nil {
		return nil, err
	}
	arch, err := a.initArchive(ctx)
	if err != nil {
		return nil, err
	}
	pub, err := a.initPublisher(ctx)
	if err != nil {
		return nil, err
	}

	sysClock := clock.System{}
	a.fetcher = fetch.New(fetch.NewCollyGetter(cfg.GetterConfig()), cfg.FetchClientConfig(), sysClock, logger)
	a.machine = workflow.New(sysClock, logger)

	a.matcher, err = nodo.NewMatcher(cfg.Nodos)
	if err != nil {
		return nil, fmt.Errorf("compile nodos: %w", err)
	}

	a.runner, err = pipeline.NewRunner(pipeline.Deps{
		Fetcher:    a.fetcher,
		Engine:     extract.NewEngine(logger),
		Resolver:   resolve.New(a.store, sysClock, logger),
		Classifier: classify.New(nil),
		Matcher:    a.matcher,
		Store:      a.store,
		Archive:    arch,
		Publisher:  pub,
		Clock:      sysClock,
		Logger:     logger,
	}, cfg.PipelineRunConfig())
	if err != nil {
		return nil, fmt.Errorf("build pipeline: %w", err)
	}
	a.dispatcher = pipeline.NewDispatcher(a.runner, cfg.Pipeline.Concurrency, logger)

	if err := a.initAdapters(); err != nil {
		return nil, err
	}
	a.server = api.NewServer(a.store, a.machine, logger)

	logger.Info("application services initialized",
		zap.Int("sources", len(a.adapters)),
		zap.Int("nodos", len(cfg.Nodos)))
	return a, nil
}

func (a *App) initStore(ctx context.Context) error {
	if a.cfg.DB.DSN == "" {
		a.logger.Info("no database DSN configured, using in-memory store")
		a.store = memory.New()
		return nil
	}
	a.logger.Info("connecting to PostgreSQL")
	pg, err := postgres.New(ctx, a.cfg.PostgresConfig())
	if err != nil {
		return fmt.Errorf("initialize store: %w", err)
	}
	if err := pg.EnsureSchema(ctx); err != nil {
		pg.Close()
		return fmt.Errorf("initialize store: %w", err)
	}
	a.pg = pg
	a.store = pg
	return nil
}

func (a *App) initArchive(ctx context.Context) (archive.Provider, error) {
	switch a.cfg.Archive.Provider {
	case "memory":
		return archmem.New(), nil
	case "local":
		a.logger.Info("using local snapshot archive", zap.String("base_dir", a.cfg.Archive.BaseDir))
		arch, err := archlocal.New(archlocal.Config{BaseDir: a.cfg.Archive.BaseDir})
		if err != nil {
			return nil, fmt.Errorf("initialize archive: %w", err)
		}
		return arch, nil
	case "gcs":
		a.logger.Info("using GCS snapshot archive", zap.String("bucket", a.cfg.Archive.GCSBucket))
		client, err := gstorage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("initialize gcs client: %w", err)
		}
		arch, err := archgcs.New(client, archgcs.Config{Bucket: a.cfg.Archive.GCSBucket})
		if err != nil {
			return nil, fmt.Errorf("initialize archive: %w", err)
		}
		return arch, nil
	}
	return nil, fmt.Errorf("unknown archive provider: %s", a.cfg.Archive.Provider)
}

func (a *App) initPublisher(ctx context.Context) (publisher.Publisher, error) {
	if !a.cfg.PubSub.Enabled {
		return nil, nil
	}
	a.logger.Info("connecting to Pub/Sub",
		zap.String("project", a.cfg.PubSub.ProjectID),
		zap.String("topic", a.cfg.PubSub.TopicName))
	client, err := gpubsub.NewClient(ctx, a.cfg.PubSub.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("initialize pubsub client: %w", err)
	}
	a.pubsubConn = client
	pub, err := pubsubpub.New(client.Topic(a.cfg.PubSub.TopicName))
	if err != nil {
		return nil, fmt.Errorf("initialize publisher: %w", err)
	}
	return pub, nil
}

func (a *App) initAdapters() error {
	names := make([]string, 0, len(a.cfg.Sources))
	for name := range a.cfg.Sources {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		src := a.cfg.Sources[name]
		adapter, err := source.NewHTMLAdapter(source.HTMLConfig{
			Name:         name,
			Jurisdiction: src.Jurisdiction,
			BaseURL:      src.BaseURL,
			ListSelector: src.ListSelector,
			MaxNotices:   src.MaxNotices,
			Hints:        src.Hints,
		})
		if err != nil {
			return fmt.Errorf("configure source %s: %w", name, err)
		}
		a.adapters = append(a.adapters, adapter)
	}
	return nil
}

// Close releases external connections and flushes the logger.
func (a *App) Close() {
	if a.pg != nil {
		a.pg.Close()
	}
	if a.pubsubConn != nil {
		if err := a.pubsubConn.Close(); err != nil {
			a.logger.Warn("close pubsub client", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}

// Logger returns the shared zap logger.
func (a *App) Logger() *zap.Logger { return a.logger }

// Config returns the loaded configuration.
func (a *App) Config() config.Config { return a.cfg }

// Store exposes the record store.
func (a *App) Store() store.Store { return a.store }

// Dispatcher returns the source fan-out dispatcher.
func (a *App) Dispatcher() *pipeline.Dispatcher { return a.dispatcher }

// Adapters returns the configured source adapters.
func (a *App) Adapters() []source.Adapter { return a.adapters }

// APIServer returns the HTTP server wiring.
func (a *App) APIServer() *api.Server { return a.server }
