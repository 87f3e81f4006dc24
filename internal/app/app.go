// Package app initializes and holds long-lived application services, acting
// as a dependency injection container.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	gcsstorage "cloud.google.com/go/storage"
	"github.com/prometheus/client_golang/prometheus"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/site-analyzer/internal/analyzer"
	"github.com/JakeFAU/site-analyzer/internal/api"
	"github.com/JakeFAU/site-analyzer/internal/artifact"
	"github.com/JakeFAU/site-analyzer/internal/browser"
	"github.com/JakeFAU/site-analyzer/internal/clock/system"
	"github.com/JakeFAU/site-analyzer/internal/config"
	"github.com/JakeFAU/site-analyzer/internal/crawl"
	"github.com/JakeFAU/site-analyzer/internal/id/uuid"
	"github.com/JakeFAU/site-analyzer/internal/llm"
	"github.com/JakeFAU/site-analyzer/internal/metrics"
	"github.com/JakeFAU/site-analyzer/internal/orchestrator"
	"github.com/JakeFAU/site-analyzer/internal/progress"
	"github.com/JakeFAU/site-analyzer/internal/progress/sinks"
	"github.com/JakeFAU/site-analyzer/internal/progresslog"
	"github.com/JakeFAU/site-analyzer/internal/publisher/pubsub"
	queuememory "github.com/JakeFAU/site-analyzer/internal/queue/memory"
	"github.com/JakeFAU/site-analyzer/internal/search"
	"github.com/JakeFAU/site-analyzer/internal/storage"
	"github.com/JakeFAU/site-analyzer/internal/storage/gcs"
	"github.com/JakeFAU/site-analyzer/internal/storage/local"
	"github.com/JakeFAU/site-analyzer/internal/storage/memory"
	"github.com/JakeFAU/site-analyzer/internal/storage/postgres"
	"github.com/JakeFAU/site-analyzer/internal/storage/sqlite"
	"github.com/JakeFAU/site-analyzer/internal/store"
	"github.com/JakeFAU/site-analyzer/internal/telemetry"
)

// Index backends accepted by configuration.
const (
	IndexNone     = "none"
	IndexMemory   = "memory"
	IndexSQLite   = "sqlite"
	IndexPostgres = "postgres"
)

const tracerShutdownTimeout = 5 * time.Second

// Options customize New.
type Options struct {
	// Registerer receives the progress collectors. Defaults to the global
	// Prometheus registerer.
	Registerer prometheus.Registerer
	// Launcher overrides the configured browser backend.
	Launcher analyzer.Launcher
	// SpanExporter replaces the Cloud Trace exporter when tracing is enabled.
	SpanExporter sdktrace.SpanExporter
}

// App holds the shared, long-lived services. It is built once at startup and
// passed to the commands that need it.
type App struct {
	cfg       config.Config
	logger    *zap.Logger
	blobs     storage.BlobStore
	logs      *progresslog.Store
	artifacts *artifact.Store
	index     store.RunIndex
	hub       *progress.Hub
	llm       *llm.Client
	orch      *orchestrator.Orchestrator
	search    *search.Service

	closers []func() error
}

// New wires every service described by cfg. It fails fast when a backend
// cannot be initialized and releases whatever was already opened.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger, opts Options) (_ *App, err error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()
	a := &App{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			_ = a.Close(context.WithoutCancel(ctx))
		}
	}()

	logger.Info("initializing application services",
		zap.String("storage", cfg.Storage.Backend),
		zap.String("index", cfg.Index.Backend),
		zap.String("browser", cfg.Browser.Backend),
	)

	if cfg.Telemetry.Tracing {
		if err = a.initTracing(ctx, opts.SpanExporter); err != nil {
			return nil, fmt.Errorf("initialize tracing: %w", err)
		}
	}

	if a.blobs, err = a.openBlobs(ctx); err != nil {
		return nil, fmt.Errorf("initialize storage: %w", err)
	}
	a.logs = progresslog.New(a.blobs, logger)
	a.artifacts = artifact.New(a.blobs)

	if a.index, err = a.openIndex(ctx); err != nil {
		return nil, fmt.Errorf("initialize run index: %w", err)
	}

	promSink, err := sinks.NewPrometheusSink(opts.Registerer)
	if err != nil {
		return nil, fmt.Errorf("register progress metrics: %w", err)
	}
	hubSinks := []progress.Sink{sinks.NewLogSink(logger), promSink}
	if a.index != nil {
		hubSinks = append(hubSinks, sinks.NewStoreSink(a.index, logger))
	}
	a.hub = progress.NewHub(progress.Config{Logger: logger}, hubSinks...)

	var publisher analyzer.Publisher
	if cfg.PubSub.ProjectID != "" {
		pub, err := pubsub.Dial(ctx, cfg.PubSub.ProjectID, logger)
		if err != nil {
			return nil, fmt.Errorf("initialize pubsub: %w", err)
		}
		a.closers = append(a.closers, pub.Close)
		publisher = pub
		logger.Info("publishing completion notifications",
			zap.String("project", cfg.PubSub.ProjectID),
			zap.String("topic", cfg.PubSub.TopicName),
		)
	}

	a.llm = llm.New(llm.Config{
		APIKey:  cfg.LLM.APIKey,
		BaseURL: cfg.LLM.BaseURL,
		Model:   cfg.LLM.Model,
		Timeout: cfg.LLM.Timeout,
	}, logger)

	launcher := opts.Launcher
	if launcher == nil {
		launcher = a.newLauncher()
	}

	deps := orchestrator.Deps{
		Logs:      a.logs,
		Artifacts: a.artifacts,
		Launcher:  launcher,
		IDs:       uuid.New(),
		Clock:     system.Clock{},
		Queue:     queuememory.NewQueue(cfg.Analyzer.QueueDepth),
		Events:    a.hub,
		Publisher: publisher,
		Tracer:    telemetry.Tracer(),
		Logger:    logger,
	}
	var ranker analyzer.Ranker
	if a.llm.Enabled() {
		deps.Summarizer = llm.NewSummarizer(a.llm)
		deps.Enhancer = llm.NewEnhancer(a.llm)
		ranker = llm.NewRanker(a.llm)
	} else {
		logger.Warn("no language model configured; summaries use a fixed message and descriptions are not enhanced")
	}

	a.orch, err = orchestrator.New(orchestrator.Config{
		Crawl:            crawlConfig(cfg.Analyzer),
		EnhanceBatchSize: cfg.Analyzer.EnhanceBatchSize,
		Workers:          cfg.Analyzer.MaxConcurrentRuns,
		Topic:            cfg.PubSub.TopicName,
		PollInterval:     cfg.Analyzer.PollInterval,
	}, deps)
	if err != nil {
		return nil, err
	}
	a.search = search.New(a.artifacts, ranker, logger)

	logger.Info("application services initialized")
	return a, nil
}

func (a *App) initTracing(ctx context.Context, exporter sdktrace.SpanExporter) error {
	cfg := a.cfg.Telemetry
	tp, err := telemetry.InitTracerProvider(ctx, telemetry.Options{
		ServiceName: cfg.ServiceName,
		ProjectID:   cfg.ProjectID,
		SampleRatio: cfg.SampleRatio,
		Exporter:    exporter,
	})
	if err != nil {
		return err
	}
	a.closers = append(a.closers, func() error {
		sctx, cancel := context.WithTimeout(context.Background(), tracerShutdownTimeout)
		defer cancel()
		return tp.Shutdown(sctx)
	})
	a.logger.Info("tracing enabled",
		zap.String("service", cfg.ServiceName),
		zap.String("project", cfg.ProjectID),
		zap.Float64("sample_ratio", cfg.SampleRatio),
	)
	return nil
}

func crawlConfig(c config.AnalyzerConfig) crawl.Config {
	return crawl.Config{
		Normal:                crawl.Limits{MaxPages: c.MaxPages, TimeBudget: c.TimeBudget},
		Full:                  crawl.Limits{MaxPages: c.FullMaxPages, TimeBudget: c.FullTimeBudget},
		SeedNavigationTimeout: c.SeedNavTimeout,
		PageNavigationTimeout: c.PageNavTimeout,
		SummaryEvery:          c.SummaryEvery,
		SummaryWindow:         c.SummaryWindow,
		PageRatePerSecond:     c.PageRatePerSecond,
	}
}

func (a *App) openBlobs(ctx context.Context) (storage.BlobStore, error) {
	cfg := a.cfg.Storage
	switch cfg.Backend {
	case storage.BackendLocal, "":
		a.logger.Info("using local storage", zap.String("dir", cfg.BaseDir))
		return local.New(local.Config{BaseDir: cfg.BaseDir})
	case storage.BackendMemory:
		a.logger.Info("using in-memory storage; results are lost on exit")
		return memory.NewBlobStore(), nil
	case storage.BackendGCS:
		client, err := gcsstorage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("create gcs client: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		a.logger.Info("using GCS storage", zap.String("bucket", cfg.GCSBucket))
		return gcs.New(client, gcs.Config{Bucket: cfg.GCSBucket, Prefix: cfg.Prefix})
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", cfg.Backend)
	}
}

func (a *App) openIndex(ctx context.Context) (store.RunIndex, error) {
	cfg := a.cfg.Index
	var (
		idx store.RunIndex
		err error
	)
	switch cfg.Backend {
	case IndexNone, "":
		return nil, nil
	case IndexMemory:
		idx = memory.NewRunIndex()
	case IndexSQLite:
		var lite *sqlite.RunIndex
		lite, err = sqlite.Open(cfg.Dir)
		if err == nil {
			a.logger.Info("using sqlite run index", zap.String("path", lite.Path()))
			idx = lite
		}
	case IndexPostgres:
		var pg *postgres.RunIndex
		pg, err = postgres.NewRunIndex(ctx, postgres.Config{DSN: cfg.DSN, Table: cfg.Table, MaxConns: cfg.MaxConns})
		if err == nil {
			if err = pg.Migrate(ctx); err != nil {
				_ = pg.Close()
				return nil, err
			}
			idx = pg
		}
	default:
		return nil, fmt.Errorf("unknown index backend: %s", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, idx.Close)
	return idx, nil
}

func (a *App) newLauncher() analyzer.Launcher {
	b := a.cfg.Browser
	if b.Backend == "http" {
		return browser.NewHTTPLauncher(browser.HTTPConfig{UserAgent: b.UserAgent, Timeout: b.HTTPTimeout}, a.logger)
	}
	return browser.NewChromeLauncher(browser.ChromeConfig{
		ExecPath:       b.ExecPath,
		Headless:       b.Headless,
		NoSandbox:      b.NoSandbox,
		UserAgent:      b.UserAgent,
		ViewportWidth:  b.ViewportWidth,
		ViewportHeight: b.ViewportHeight,
		SettleDelay:    b.SettleDelay,
	}, a.logger)
}

// Logger returns the shared zap logger.
func (a *App) Logger() *zap.Logger { return a.logger }

// Orchestrator returns the analysis orchestrator.
func (a *App) Orchestrator() *orchestrator.Orchestrator { return a.orch }

// Search returns the search service.
func (a *App) Search() *search.Service { return a.search }

// Logs returns the progress log store.
func (a *App) Logs() analyzer.LogStore { return a.logs }

// Artifacts returns the site record store.
func (a *App) Artifacts() analyzer.ArtifactStore { return a.artifacts }

// RunIndex returns the run index, or nil when none is configured.
func (a *App) RunIndex() store.RunIndex { return a.index }

// Handler builds the HTTP handler over the app's services.
func (a *App) Handler() http.Handler {
	deps := api.Deps{
		Analyses:  a.orch,
		Logs:      a.logs,
		Artifacts: a.artifacts,
		Search:    a.search,
		Runs:      a.index,
		Ready:     a.ready,
	}
	return api.NewServer(deps, a.cfg, a.logger).Handler()
}

func (a *App) ready(ctx context.Context) error {
	if a.index == nil {
		return nil
	}
	if _, err := a.index.ListRuns(ctx, nil, 1, 0); err != nil {
		return fmt.Errorf("run index: %w", err)
	}
	return nil
}

// Close flushes pending progress events and releases every backend.
func (a *App) Close(ctx context.Context) error {
	a.logger.Info("shutting down application services")
	var errs []error
	if a.hub != nil {
		if err := a.hub.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close progress hub: %w", err))
		}
	}
	if err := a.closeAll(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (a *App) closeAll() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
