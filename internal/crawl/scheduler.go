package crawl

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/JakeFAU/site-analyzer/internal/analyzer"
	"github.com/JakeFAU/site-analyzer/internal/domain"
	"github.com/JakeFAU/site-analyzer/internal/telemetry"
)

// FallbackSummary is recorded when the summarizer is unavailable or fails.
const FallbackSummary = "Analyzing website content..."

// Limits bounds one run.
type Limits struct {
	MaxPages   int
	TimeBudget time.Duration
}

// Config holds the traversal knobs.
type Config struct {
	Normal                Limits
	Full                  Limits
	SeedNavigationTimeout time.Duration
	PageNavigationTimeout time.Duration
	// SummaryEvery triggers a status snapshot and summary each time the
	// visited count reaches a multiple of it.
	SummaryEvery  int
	SummaryWindow int
	// PageRatePerSecond throttles navigations after the seed; 0 disables.
	PageRatePerSecond float64
}

// DefaultConfig returns the standard budgets: 50 pages in 10 minutes, or
// 100 pages in 20 minutes for full runs.
func DefaultConfig() Config {
	return Config{
		Normal:                Limits{MaxPages: 50, TimeBudget: 10 * time.Minute},
		Full:                  Limits{MaxPages: 100, TimeBudget: 20 * time.Minute},
		SeedNavigationTimeout: 60 * time.Second,
		PageNavigationTimeout: 30 * time.Second,
		SummaryEvery:          3,
		SummaryWindow:         5,
	}
}

// LimitsFor picks the budget for a run.
func (c Config) LimitsFor(fullMode bool) Limits {
	if fullMode {
		return c.Full
	}
	return c.Normal
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Normal.MaxPages <= 0 {
		c.Normal.MaxPages = def.Normal.MaxPages
	}
	if c.Normal.TimeBudget <= 0 {
		c.Normal.TimeBudget = def.Normal.TimeBudget
	}
	if c.Full.MaxPages <= 0 {
		c.Full.MaxPages = def.Full.MaxPages
	}
	if c.Full.TimeBudget <= 0 {
		c.Full.TimeBudget = def.Full.TimeBudget
	}
	if c.SeedNavigationTimeout <= 0 {
		c.SeedNavigationTimeout = def.SeedNavigationTimeout
	}
	if c.PageNavigationTimeout <= 0 {
		c.PageNavigationTimeout = def.PageNavigationTimeout
	}
	if c.SummaryEvery <= 0 {
		c.SummaryEvery = def.SummaryEvery
	}
	if c.SummaryWindow <= 0 {
		c.SummaryWindow = def.SummaryWindow
	}
	return c
}

// PageResult describes one processed page.
type PageResult struct {
	URL      string
	Links    int
	Err      error
	Duration time.Duration
}

// Stats summarizes a finished traversal.
type Stats struct {
	Visited int
	Failed  int
	Links   int
	// Stopped is ErrBudgetExceeded when the crawl was cut short by its
	// time or page budget, nil when the frontier drained.
	Stopped error
}

// Scheduler runs the traversal loop.
type Scheduler struct {
	cfg        Config
	summarizer analyzer.Summarizer
	clock      analyzer.Clock
	logger     *zap.Logger
	tracer     trace.Tracer
	onPage     func(PageResult)
}

// Option customizes a Scheduler.
type Option func(*Scheduler)

// WithPageObserver registers fn to be called after every processed page.
func WithPageObserver(fn func(PageResult)) Option {
	return func(s *Scheduler) { s.onPage = fn }
}

// WithTracer sets the tracer used for per-page spans.
func WithTracer(t trace.Tracer) Option {
	return func(s *Scheduler) {
		if t != nil {
			s.tracer = t
		}
	}
}

// New builds a Scheduler. summarizer may be nil.
func New(cfg Config, summarizer analyzer.Summarizer, clock analyzer.Clock, logger *zap.Logger, opts ...Option) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Scheduler{
		cfg:        cfg.withDefaults(),
		summarizer: summarizer,
		clock:      clock,
		logger:     logger,
		tracer:     telemetry.Tracer(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Config returns the effective configuration.
func (s *Scheduler) Config() Config { return s.cfg }

// Run loads the seed, walks same-domain links breadth first until the
// frontier drains or the budget runs out, and returns the collected record.
// Per-page failures are logged as actions; only seed, log or cancellation
// failures are returned and they wrap analyzer.ErrFatalRun.
//
// No page is started once the time budget has elapsed and a page's navigation
// and extraction share one PageNavigationTimeout, so the traversal ends within
// TimeBudget plus one page timeout, not counting progress log writes.
func (s *Scheduler) Run(ctx context.Context, session analyzer.Session, job analyzer.Job, journal *Journal) (analyzer.SiteRecord, Stats, error) {
	var stats Stats
	limits := s.cfg.LimitsFor(job.FullMode)
	started := s.clock.Now()
	logger := s.logger.With(zap.String("analysis_id", journal.ID()), zap.String("domain", job.Domain))

	if _, err := journal.Status(ctx, analyzer.StatusNavigatingToURL, analyzer.ProgressNavigatingToURL,
		"Navigating to "+job.URL); err != nil {
		return analyzer.SiteRecord{}, stats, fatal(err)
	}
	seedCtx, cancelSeed := context.WithTimeout(ctx, s.cfg.SeedNavigationTimeout)
	defer cancelSeed()
	if err := session.Navigate(seedCtx, job.URL); err != nil {
		return analyzer.SiteRecord{}, stats, fatal(fmt.Errorf("load %s: %w", job.URL, err))
	}

	if _, err := journal.Status(ctx, analyzer.StatusExtractingInitialMetadata, analyzer.ProgressExtractingInitial,
		"Extracting website metadata"); err != nil {
		return analyzer.SiteRecord{}, stats, fatal(err)
	}
	seed, err := session.Extract(seedCtx)
	cancelSeed()
	if err != nil {
		return analyzer.SiteRecord{}, stats, fatal(fmt.Errorf("extract %s: %w", job.URL, err))
	}
	record := analyzer.SiteRecord{
		URL:         job.URL,
		Domain:      job.Domain,
		Title:       seed.Title,
		Description: seed.Description,
		LastUpdated: s.clock.Now(),
		Links:       []analyzer.Link{},
	}

	run, err := journal.Status(ctx, analyzer.StatusCrawlingLinks, analyzer.ProgressCrawlingLinks,
		`Found website title: "`+seed.Title+`"`,
		"Starting to crawl links",
	)
	if err != nil {
		return record, stats, fatal(err)
	}
	if err := s.summarize(ctx, journal, run, s.remaining(started, limits)); err != nil {
		return record, stats, fatal(err)
	}

	var limiter *rate.Limiter
	if s.cfg.PageRatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(s.cfg.PageRatePerSecond), 1)
	}

	frontier := NewFrontier(job.URL)
	lastReported := -1
	for frontier.Len() > 0 {
		if err := ctx.Err(); err != nil {
			return record, stats, fatal(err)
		}

		visited := frontier.Visited()
		if visited%s.cfg.SummaryEvery == 0 && visited != lastReported {
			lastReported = visited
			run, err := journal.Status(ctx, analyzer.StatusCrawlingInProgress,
				analyzer.CrawlProgress(visited, limits.MaxPages),
				fmt.Sprintf("Crawled %d pages, %d remaining in queue", visited, frontier.Len()),
			)
			if err != nil {
				return record, stats, fatal(err)
			}
			if err := s.summarize(ctx, journal, run, s.remaining(started, limits)); err != nil {
				return record, stats, fatal(err)
			}
		}

		left := s.remaining(started, limits)
		if left <= 0 {
			stats.Stopped = fmt.Errorf("%w: time budget %s", analyzer.ErrBudgetExceeded, limits.TimeBudget)
			break
		}
		next, _ := frontier.Next()
		if next != job.URL && frontier.Visited() >= limits.MaxPages {
			stats.Stopped = fmt.Errorf("%w: page cap %d", analyzer.ErrBudgetExceeded, limits.MaxPages)
			break
		}
		if limiter != nil {
			waitCtx, cancel := context.WithTimeout(ctx, left)
			err := limiter.Wait(waitCtx)
			cancel()
			if err != nil {
				if ctx.Err() != nil {
					return record, stats, fatal(fmt.Errorf("wait limiter: %w", err))
				}
				stats.Stopped = fmt.Errorf("%w: time budget %s", analyzer.ErrBudgetExceeded, limits.TimeBudget)
				break
			}
		}

		if err := s.visit(ctx, session, job, journal, frontier, &record, &stats, next, limits.MaxPages); err != nil {
			return record, stats, fatal(err)
		}
	}

	stats.Visited = frontier.Visited()
	stats.Links = len(record.Links)
	if stats.Stopped != nil {
		logger.Info("crawl budget reached", zap.Error(stats.Stopped), zap.Int("visited", stats.Visited))
	}
	if _, err := journal.Status(ctx, analyzer.StatusFinalizing, analyzer.ProgressFinalizing,
		fmt.Sprintf("Crawling complete. Visited %d pages. Found %d unique links.", stats.Visited, stats.Links),
	); err != nil {
		return record, stats, fatal(err)
	}
	return record, stats, nil
}

// visit processes one dequeued URL. The returned error is fatal; page level
// problems are written to the journal instead.
func (s *Scheduler) visit(
	ctx context.Context,
	session analyzer.Session,
	job analyzer.Job,
	journal *Journal,
	frontier *Frontier,
	record *analyzer.SiteRecord,
	stats *Stats,
	pageURL string,
	maxPages int,
) error {
	start := s.clock.Now()
	defer frontier.MarkVisited(pageURL)
	ctx, span := s.tracer.Start(ctx, "crawl.page", trace.WithAttributes(attribute.String("page.url", pageURL)))
	var pageErr error
	defer func() { telemetry.End(span, pageErr) }()

	if err := journal.Action(ctx, "Navigating to: "+pageURL); err != nil {
		return err
	}
	pageCtx, cancel := context.WithTimeout(ctx, s.cfg.PageNavigationTimeout)
	defer cancel()
	if err := session.Navigate(pageCtx, pageURL); err != nil {
		if ctx.Err() != nil {
			pageErr = ctx.Err()
			return pageErr
		}
		stats.Failed++
		pageErr = err
		s.observe(PageResult{URL: pageURL, Err: err, Duration: s.clock.Now().Sub(start)})
		return journal.Action(ctx, "Failed to load: "+pageURL)
	}

	page, err := session.Extract(pageCtx)
	cancel()
	if err != nil {
		if ctx.Err() != nil {
			pageErr = ctx.Err()
			return pageErr
		}
		stats.Failed++
		pageErr = err
		s.observe(PageResult{URL: pageURL, Err: err, Duration: s.clock.Now().Sub(start)})
		return journal.Action(ctx, fmt.Sprintf("Error processing %s: %s", pageURL, err))
	}
	span.SetAttributes(attribute.Int("page.links", len(page.Links)))
	if err := journal.Action(ctx, fmt.Sprintf("Found %d links on %s", len(page.Links), page.Title)); err != nil {
		return err
	}

	for _, l := range page.Links {
		added := record.AddLink(analyzer.Link{Title: l.Text, Description: l.Describe(), URL: l.URL})
		if !added {
			continue
		}
		if domain.SameSite(l.URL, job.URL) && frontier.Visited() < maxPages {
			frontier.Enqueue(l.URL)
		}
	}
	s.observe(PageResult{URL: pageURL, Links: len(page.Links), Duration: s.clock.Now().Sub(start)})
	return nil
}

// remaining reports how much of the run's time budget is left.
func (s *Scheduler) remaining(started time.Time, limits Limits) time.Duration {
	return limits.TimeBudget - s.clock.Now().Sub(started)
}

// summarize records a one-sentence digest of the run's latest actions. The
// model call is bounded by budget; an exhausted budget records the fallback.
func (s *Scheduler) summarize(ctx context.Context, journal *Journal, run analyzer.Run, budget time.Duration) error {
	text := FallbackSummary
	if s.summarizer != nil && budget > 0 {
		sctx, cancel := context.WithTimeout(ctx, budget)
		out, err := s.summarizer.Summarize(sctx, run.RecentActions(s.cfg.SummaryWindow))
		cancel()
		switch {
		case err == nil:
			text = out
		case ctx.Err() != nil:
			return ctx.Err()
		default:
			s.logger.Debug("summary unavailable", zap.String("analysis_id", journal.ID()), zap.Error(err))
		}
	}
	_, err := journal.Merge(ctx, analyzer.Update{}.WithSummary(journal.Now(), text))
	return err
}

func (s *Scheduler) observe(r PageResult) {
	if s.onPage != nil {
		s.onPage(r)
	}
}

func fatal(err error) error {
	if errors.Is(err, analyzer.ErrFatalRun) {
		return err
	}
	return fmt.Errorf("%w: %w", analyzer.ErrFatalRun, err)
}
