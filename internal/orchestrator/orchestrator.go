package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/site-analyzer/internal/analyzer"
	"github.com/JakeFAU/site-analyzer/internal/artifact"
	"github.com/JakeFAU/site-analyzer/internal/crawl"
	"github.com/JakeFAU/site-analyzer/internal/dispatcher"
	"github.com/JakeFAU/site-analyzer/internal/domain"
	"github.com/JakeFAU/site-analyzer/internal/metrics"
	"github.com/JakeFAU/site-analyzer/internal/progress"
	"github.com/JakeFAU/site-analyzer/internal/queue"
	"github.com/JakeFAU/site-analyzer/internal/telemetry"
)

const (
	defaultEnhanceBatchSize = 20
	defaultPollInterval     = 2 * time.Second
	defaultFinalizeTimeout  = 15 * time.Second
)

// errShutdown finalizes runs that were still queued when the pool stopped.
var errShutdown = fmt.Errorf("%w: service shut down before the run started", analyzer.ErrFatalRun)

// Config tunes the orchestrator.
type Config struct {
	Crawl crawl.Config
	// EnhanceBatchSize is the number of links sent per enhancement request.
	EnhanceBatchSize int
	// Workers bounds how many runs execute at once.
	Workers int
	// Topic receives a Notification when a run finishes. Empty disables.
	Topic string
	// PollInterval is the Wait polling period.
	PollInterval time.Duration
	// FinalizeTimeout bounds the terminal log write after the run context
	// has been canceled.
	FinalizeTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.EnhanceBatchSize <= 0 {
		c.EnhanceBatchSize = defaultEnhanceBatchSize
	}
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if c.PollInterval <= 0 {
		c.PollInterval = defaultPollInterval
	}
	if c.FinalizeTimeout <= 0 {
		c.FinalizeTimeout = defaultFinalizeTimeout
	}
	return c
}

// Deps are the collaborators of an Orchestrator. Summarizer, Enhancer,
// Events, Publisher and Tracer are optional.
type Deps struct {
	Logs       analyzer.LogStore
	Artifacts  analyzer.ArtifactStore
	Launcher   analyzer.Launcher
	Summarizer analyzer.Summarizer
	Enhancer   analyzer.Enhancer
	IDs        analyzer.IDGenerator
	Clock      analyzer.Clock
	Queue      queue.Queue
	Events     progress.Emitter
	Publisher  analyzer.Publisher
	Tracer     trace.Tracer
	Logger     *zap.Logger
}

// Orchestrator starts and executes analysis runs.
type Orchestrator struct {
	cfg  Config
	deps Deps
	pool *dispatcher.Dispatcher
	log  *zap.Logger
}

// New validates deps and builds an Orchestrator with its worker pool.
func New(cfg Config, deps Deps) (*Orchestrator, error) {
	switch {
	case deps.Logs == nil:
		return nil, errors.New("orchestrator: progress log store is required")
	case deps.Artifacts == nil:
		return nil, errors.New("orchestrator: artifact store is required")
	case deps.Launcher == nil:
		return nil, errors.New("orchestrator: browser launcher is required")
	case deps.IDs == nil:
		return nil, errors.New("orchestrator: id generator is required")
	case deps.Clock == nil:
		return nil, errors.New("orchestrator: clock is required")
	case deps.Queue == nil:
		return nil, errors.New("orchestrator: queue is required")
	}
	if deps.Events == nil {
		deps.Events = progress.NopEmitter{}
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Tracer == nil {
		deps.Tracer = telemetry.Tracer()
	}
	cfg = cfg.withDefaults()
	o := &Orchestrator{cfg: cfg, deps: deps, log: deps.Logger}
	o.pool = dispatcher.NewPool(deps.Queue, o, cfg.Workers, deps.Logger,
		dispatcher.WithAbandon(func(job analyzer.Job) { o.Abandon(context.Background(), job) }))
	return o, nil
}

// Run executes queued runs until ctx ends. Runs still waiting in the queue at
// that point are finalized as failed.
func (o *Orchestrator) Run(ctx context.Context) {
	o.pool.Run(ctx)
}

// Start accepts a new analysis of rawURL and returns its id once the progress
// log exists and the run is queued. A full queue finalizes the log as error
// and returns the id together with an error wrapping analyzer.ErrQueueFull.
func (o *Orchestrator) Start(ctx context.Context, rawURL string, fullMode bool) (string, error) {
	target, err := NormalizeURL(rawURL)
	if err != nil {
		return "", err
	}
	id, err := o.deps.IDs.NewID()
	if err != nil {
		return "", fmt.Errorf("generate analysis id: %w", err)
	}
	now := o.deps.Clock.Now()
	job := analyzer.Job{
		ID:       id,
		URL:      target,
		Domain:   domain.Key(target),
		FullMode: fullMode,
	}
	if err := o.deps.Logs.Create(ctx, analyzer.Run{
		ID:        id,
		URL:       job.URL,
		Domain:    job.Domain,
		FullMode:  fullMode,
		StartTime: now,
		Status:    analyzer.StatusStarting,
		Progress:  analyzer.ProgressStarting,
		Actions:   []analyzer.Action{},
		Summaries: []analyzer.Summary{},
	}); err != nil {
		return "", fmt.Errorf("create progress log: %w", err)
	}

	if err := o.pool.TryEnqueue(job); err != nil {
		o.reject(ctx, job, err)
		return id, err
	}
	o.log.Info("analysis queued",
		zap.String("analysis_id", id),
		zap.String("url", job.URL),
		zap.String("domain", job.Domain),
		zap.Bool("full_mode", fullMode),
	)
	return id, nil
}

// Execute drives one run to completion or failure. It implements
// worker.Runner. The returned error has already been written to the log.
func (o *Orchestrator) Execute(ctx context.Context, job analyzer.Job) (err error) {
	ctx, span := o.deps.Tracer.Start(ctx, "analysis.run", trace.WithAttributes(
		attribute.String("analysis.id", job.ID),
		attribute.String("analysis.url", job.URL),
		attribute.String("analysis.domain", job.Domain),
		attribute.Bool("analysis.full_mode", job.FullMode),
	))
	started := o.deps.Clock.Now()
	journal := crawl.NewJournal(o.deps.Logs, job.ID, o.deps.Clock)
	logger := o.log.With(
		zap.String("analysis_id", job.ID),
		zap.String("url", job.URL),
		zap.String("domain", job.Domain),
	)
	o.emit(logger, progress.Event{
		Stage:    progress.StageRunStart,
		TS:       started,
		URL:      job.URL,
		Domain:   job.Domain,
		FullMode: job.FullMode,
	}, job.ID)

	var (
		stats crawl.Stats
		uri   string
	)
	defer func() {
		if r := recover(); r != nil {
			logger.Error("analysis run panicked", zap.Any("panic", r))
			err = fmt.Errorf("%w: panic: %v", analyzer.ErrFatalRun, r)
		}
		o.finish(ctx, journal, job, started, stats, uri, err, logger)
		span.SetAttributes(
			attribute.Int("analysis.pages_visited", stats.Visited),
			attribute.Int("analysis.pages_failed", stats.Failed),
			attribute.Int("analysis.links", stats.Links),
		)
		telemetry.End(span, err)
	}()

	if _, err := journal.Status(ctx, analyzer.StatusLaunchingBrowser, analyzer.ProgressLaunchingBrowser,
		"Launching browser"); err != nil {
		return fatal(err)
	}
	session, err := o.deps.Launcher.Launch(ctx)
	if err != nil {
		return fatal(fmt.Errorf("launch browser: %w", err))
	}
	defer func() {
		if cerr := session.Close(); cerr != nil {
			logger.Warn("close browser session", zap.Error(cerr))
		}
	}()

	scheduler := crawl.New(o.cfg.Crawl, o.deps.Summarizer, o.deps.Clock, logger,
		crawl.WithPageObserver(func(r crawl.PageResult) { o.observePage(logger, job, r) }),
		crawl.WithTracer(o.deps.Tracer),
	)
	record, stats, err := scheduler.Run(ctx, session, job, journal)
	if err != nil {
		return err
	}

	if err := o.enhance(ctx, journal, &record, logger); err != nil {
		return fatal(err)
	}

	record.LastUpdated = o.deps.Clock.Now()
	uri, err = o.deps.Artifacts.Save(ctx, record)
	if err != nil {
		return fatal(fmt.Errorf("save site record: %w", err))
	}

	now := o.deps.Clock.Now()
	if _, err := journal.Merge(ctx, analyzer.StatusUpdate(analyzer.StatusCompleted, analyzer.ProgressCompleted).
		WithEnd(now).
		WithAction(now, "Analysis complete. Data saved to "+artifact.FileName(job.Domain))); err != nil {
		return fatal(err)
	}
	return nil
}

// Abandon finalizes a queued run that will never execute.
func (o *Orchestrator) Abandon(ctx context.Context, job analyzer.Job) {
	o.reject(ctx, job, errShutdown)
}

// reject records a run that ends before reaching a worker. The run index
// still sees a start and an error for it.
func (o *Orchestrator) reject(ctx context.Context, job analyzer.Job, runErr error) {
	now := o.deps.Clock.Now()
	logger := o.log.With(
		zap.String("analysis_id", job.ID),
		zap.String("url", job.URL),
		zap.String("domain", job.Domain),
	)
	o.emit(logger, progress.Event{
		Stage:    progress.StageRunStart,
		TS:       now,
		URL:      job.URL,
		Domain:   job.Domain,
		FullMode: job.FullMode,
	}, job.ID)
	journal := crawl.NewJournal(o.deps.Logs, job.ID, o.deps.Clock)
	o.finish(ctx, journal, job, now, crawl.Stats{}, "", runErr, logger)
}

// enhance rewrites link descriptions batch by batch. A failed batch keeps its
// original descriptions and the next batch is still attempted.
func (o *Orchestrator) enhance(ctx context.Context, journal *crawl.Journal, record *analyzer.SiteRecord, logger *zap.Logger) error {
	total := len(record.Links)
	if o.deps.Enhancer == nil || total == 0 {
		return nil
	}
	size := o.cfg.EnhanceBatchSize
	for start := 0; start < total; start += size {
		end := min(start+size, total)
		batch := record.Links[start:end]
		descriptions, err := o.deps.Enhancer.Enhance(ctx, batch)
		switch {
		case err == nil:
			for i, d := range descriptions {
				if i < len(batch) && strings.TrimSpace(d) != "" {
					batch[i].Description = d
				}
			}
		case ctx.Err() != nil:
			return ctx.Err()
		default:
			logger.Warn("description enhancement failed", zap.Int("batch_start", start), zap.Error(err))
		}

		now := journal.Now()
		if _, err := journal.Merge(ctx, analyzer.ProgressUpdate(analyzer.EnhanceProgress(end, total)).
			WithAction(now, fmt.Sprintf("Enhanced descriptions for %d/%d links", end, total))); err != nil {
			return err
		}
	}
	return nil
}

// finish records the terminal outcome outside the run's own lifecycle.
func (o *Orchestrator) finish(
	ctx context.Context,
	journal *crawl.Journal,
	job analyzer.Job,
	started time.Time,
	stats crawl.Stats,
	uri string,
	runErr error,
	logger *zap.Logger,
) {
	ended := o.deps.Clock.Now()
	evt := progress.Event{
		TS:     ended,
		URL:    job.URL,
		Domain: job.Domain,
		Pages:  int64(stats.Visited),
		Links:  int64(stats.Links),
		Dur:    max(ended.Sub(started), 0),
	}
	note := Notification{
		AnalysisID:   job.ID,
		URL:          job.URL,
		Domain:       job.Domain,
		FullMode:     job.FullMode,
		PagesVisited: stats.Visited,
		PagesFailed:  stats.Failed,
		LinksFound:   stats.Links,
		FinishedAt:   ended,
	}
	if runErr != nil {
		o.finalizeError(ctx, journal, job, runErr)
		evt.Stage = progress.StageRunError
		evt.Note = runErr.Error()
		note.Status = analyzer.StatusError
		note.Error = runErr.Error()
		logger.Warn("analysis failed", zap.Error(runErr))
	} else {
		evt.Stage = progress.StageRunDone
		note.Status = analyzer.StatusCompleted
		note.ArtifactURI = uri
		logger.Info("analysis complete",
			zap.Int("visited", stats.Visited),
			zap.Int("failed", stats.Failed),
			zap.Int("links", stats.Links),
			zap.Duration("duration", evt.Dur),
		)
	}
	metrics.ObserveRun(string(note.Status))
	o.emit(logger, evt, job.ID)
	o.notify(ctx, note, logger)
}

// finalizeError writes the error status. It runs on a context detached from
// cancellation so shutdown still leaves a terminal log.
func (o *Orchestrator) finalizeError(ctx context.Context, journal *crawl.Journal, job analyzer.Job, runErr error) {
	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.cfg.FinalizeTimeout)
	defer cancel()

	msg := runErr.Error()
	now := o.deps.Clock.Now()
	update := analyzer.StatusUpdate(analyzer.StatusError, 0).
		WithEnd(now).
		WithError(msg).
		WithAction(now, "Error: "+msg)
	if _, err := journal.Merge(fctx, update); err != nil {
		o.log.Error("finalize failed run",
			zap.String("analysis_id", job.ID),
			zap.NamedError("run_error", runErr),
			zap.Error(err),
		)
	}
}

func (o *Orchestrator) observePage(logger *zap.Logger, job analyzer.Job, r crawl.PageResult) {
	evt := progress.Event{
		Stage:  progress.StagePageDone,
		TS:     o.deps.Clock.Now(),
		URL:    r.URL,
		Domain: job.Domain,
		Pages:  1,
		Links:  int64(r.Links),
		Dur:    max(r.Duration, 0),
	}
	if r.Err != nil {
		evt.Stage = progress.StagePageFailed
		evt.Note = r.Err.Error()
	}
	o.emit(logger, evt, job.ID)
}

func (o *Orchestrator) emit(logger *zap.Logger, evt progress.Event, id string) {
	runID, err := progress.ParseRunID(id)
	if err != nil {
		logger.Debug("progress event skipped", zap.Error(err))
		return
	}
	evt.RunID = runID
	o.deps.Events.Emit(evt)
}

func (o *Orchestrator) notify(ctx context.Context, note Notification, logger *zap.Logger) {
	if o.deps.Publisher == nil || o.cfg.Topic == "" {
		return
	}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.cfg.FinalizeTimeout)
	defer cancel()
	if _, err := o.deps.Publisher.Publish(pctx, o.cfg.Topic, note); err != nil {
		logger.Warn("publish completion notification", zap.Error(err))
	}
}

// Wait polls the progress log of id until it reaches a terminal status or ctx
// ends. onUpdate, when set, sees every polled snapshot.
func (o *Orchestrator) Wait(ctx context.Context, id string, onUpdate func(analyzer.Run)) (analyzer.Run, error) {
	ticker := time.NewTicker(o.cfg.PollInterval)
	defer ticker.Stop()
	for {
		run, err := o.deps.Logs.Read(ctx, id)
		if err != nil {
			return analyzer.Run{}, err
		}
		if onUpdate != nil {
			onUpdate(run)
		}
		if run.Status.Terminal() {
			return run, nil
		}
		select {
		case <-ctx.Done():
			return run, fmt.Errorf("wait for %s: %w", id, ctx.Err())
		case <-ticker.C:
		}
	}
}

// NormalizeURL trims raw, adds https:// when no scheme is given and rejects
// anything that is not an absolute http(s) URL. Errors wrap
// analyzer.ErrInput.
func NormalizeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("%w: URL is required", analyzer.ErrInput)
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: invalid URL %q", analyzer.ErrInput, raw)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: unsupported URL scheme %q", analyzer.ErrInput, u.Scheme)
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("%w: URL %q has no host", analyzer.ErrInput, raw)
	}
	return u.String(), nil
}

func fatal(err error) error {
	if errors.Is(err, analyzer.ErrFatalRun) {
		return err
	}
	return fmt.Errorf("%w: %w", analyzer.ErrFatalRun, err)
}
