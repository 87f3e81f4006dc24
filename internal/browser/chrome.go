package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/JakeFAU/site-analyzer/internal/analyzer"
)

// ChromeConfig controls how the headless browser is started.
type ChromeConfig struct {
	// ExecPath overrides the Chrome binary; empty lets chromedp search PATH.
	ExecPath       string
	Headless       bool
	NoSandbox      bool
	UserAgent      string
	ViewportWidth  int
	ViewportHeight int
	// SettleDelay is waited after the body is ready so scripts can render.
	SettleDelay time.Duration
}

// ChromeLauncher starts one Chrome process per session.
type ChromeLauncher struct {
	cfg    ChromeConfig
	logger *zap.Logger
}

// NewChromeLauncher creates a launcher with defaults for unset fields.
func NewChromeLauncher(cfg ChromeConfig, logger *zap.Logger) *ChromeLauncher {
	if cfg.ViewportWidth <= 0 {
		cfg.ViewportWidth = 1280
	}
	if cfg.ViewportHeight <= 0 {
		cfg.ViewportHeight = 800
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChromeLauncher{cfg: cfg, logger: logger}
}

// Launch starts a browser and opens a tab. The returned session owns the
// process until Close.
func (l *ChromeLauncher) Launch(ctx context.Context) (analyzer.Session, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
		chromedp.WindowSize(l.cfg.ViewportWidth, l.cfg.ViewportHeight),
	)
	if l.cfg.Headless {
		opts = append(opts, chromedp.Flag("headless", "new"))
	} else {
		opts = append(opts, chromedp.Flag("headless", false))
	}
	if l.cfg.NoSandbox {
		opts = append(opts,
			chromedp.NoSandbox,
			chromedp.Flag("disable-setuid-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
		)
	}
	if l.cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(l.cfg.ExecPath))
	}

	// The browser must outlive the Launch call, so it hangs off Background
	// and is bounded by Close instead of ctx.
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)
	s := &chromeSession{
		tabCtx: tabCtx,
		cancel: func() {
			tabCancel()
			allocCancel()
		},
		settle: l.cfg.SettleDelay,
		logger: l.logger,
	}

	// The first Run allocates the browser and must use the tab context
	// itself; a derived deadline would tear the whole browser down.
	stopForward := forwardCancel(ctx, s.cancel)
	err := chromedp.Run(tabCtx, l.setupAction())
	stopForward()
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("launch browser: %w", err)
	}
	l.logger.Debug("browser launched", zap.String("exec_path", l.cfg.ExecPath))
	return s, nil
}

func (l *ChromeLauncher) setupAction() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if err := emulation.SetDeviceMetricsOverride(int64(l.cfg.ViewportWidth), int64(l.cfg.ViewportHeight), 1, false).Do(ctx); err != nil {
			return fmt.Errorf("set viewport: %w", err)
		}
		if l.cfg.UserAgent != "" {
			if err := emulation.SetUserAgentOverride(l.cfg.UserAgent).Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
		}
		return nil
	})
}

type chromeSession struct {
	tabCtx context.Context
	cancel context.CancelFunc
	settle time.Duration
	logger *zap.Logger

	closeOnce sync.Once
}

// Navigate loads url and waits for the body. ctx bounds the navigation.
func (s *chromeSession) Navigate(ctx context.Context, url string) error {
	taskCtx, cancelTask := context.WithCancel(s.tabCtx)
	defer cancelTask()
	stopForward := forwardCancel(ctx, cancelTask)
	defer stopForward()

	tasks := chromedp.Tasks{
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	}
	if s.settle > 0 {
		tasks = append(tasks, chromedp.Sleep(s.settle))
	}
	if err := chromedp.Run(taskCtx, tasks); err != nil {
		return fmt.Errorf("navigate %s: %w: %w", url, analyzer.ErrNavigation, err)
	}
	return nil
}

// Extract snapshots the current DOM and classifies its links.
func (s *chromeSession) Extract(ctx context.Context) (analyzer.PageData, error) {
	taskCtx, cancelTask := context.WithCancel(s.tabCtx)
	defer cancelTask()
	stopForward := forwardCancel(ctx, cancelTask)
	defer stopForward()

	var (
		html     string
		location string
	)
	if err := chromedp.Run(taskCtx,
		chromedp.Location(&location),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	); err != nil {
		return analyzer.PageData{}, fmt.Errorf("snapshot dom: %w", err)
	}
	return ExtractPageData(location, html)
}

// Close terminates the tab and the browser process.
func (s *chromeSession) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		s.logger.Debug("browser closed")
	})
	return nil
}

// forwardCancel cancels a chromedp-derived context when parent ends. The
// returned func stops forwarding.
func forwardCancel(parent context.Context, cancel context.CancelFunc) func() {
	if parent == nil {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-parent.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}
