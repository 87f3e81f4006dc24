package browser

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/site-analyzer/internal/analyzer"
)

// HTTPConfig controls the plain HTTP session backend.
type HTTPConfig struct {
	UserAgent string
	// Timeout bounds a single request when the caller sets no deadline.
	Timeout time.Duration
	// Transport overrides the HTTP transport (tests).
	Transport http.RoundTripper
}

// HTTPLauncher hands out colly-backed sessions. Pages are not rendered, so
// script-built links are invisible to it.
type HTTPLauncher struct {
	cfg       HTTPConfig
	transport http.RoundTripper
	logger    *zap.Logger
}

// NewHTTPLauncher creates a launcher sharing one pooled transport.
func NewHTTPLauncher(cfg HTTPConfig, logger *zap.Logger) *HTTPLauncher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	transport := cfg.Transport
	if transport == nil {
		transport = newHTTPTransport()
	}
	return &HTTPLauncher{cfg: cfg, transport: transport, logger: logger}
}

// Launch returns a new session. No process is started.
func (l *HTTPLauncher) Launch(context.Context) (analyzer.Session, error) {
	return &httpSession{
		userAgent: l.cfg.UserAgent,
		transport: l.transport,
		timeout:   l.cfg.Timeout,
		logger:    l.logger,
	}, nil
}

type httpSession struct {
	userAgent string
	transport http.RoundTripper
	timeout   time.Duration
	logger    *zap.Logger

	mu     sync.Mutex
	url    string
	body   []byte
	closed bool
}

var errSessionClosed = errors.New("session closed")

// Navigate fetches url and keeps the response as the current page.
func (s *httpSession) Navigate(ctx context.Context, url string) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return fmt.Errorf("navigate %s: %w", url, errSessionClosed)
	}

	collector := s.newCollector(ctx)

	var (
		finalURL string
		body     []byte
		fetchErr error
	)
	collector.OnResponse(func(r *colly.Response) {
		finalURL = r.Request.URL.String()
		body = append([]byte(nil), r.Body...)
	})
	collector.OnError(func(_ *colly.Response, err error) {
		fetchErr = err
	})

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()
	select {
	case <-ctx.Done():
		return fmt.Errorf("navigate %s: %w: %w", url, analyzer.ErrNavigation, ctx.Err())
	case err := <-done:
		if err == nil {
			err = fetchErr
		}
		if err != nil {
			s.logger.Debug("http fetch failed", zap.String("url", url), zap.Error(err))
			return fmt.Errorf("navigate %s: %w: %w", url, analyzer.ErrNavigation, err)
		}
	}

	s.mu.Lock()
	s.url, s.body = finalURL, body
	s.mu.Unlock()
	return nil
}

// newCollector builds a collector per request; collectors sharing a backend
// would also share its client timeout.
func (s *httpSession) newCollector(ctx context.Context) *colly.Collector {
	c := colly.NewCollector(colly.Async(false))
	c.WithTransport(s.transport)
	c.IgnoreRobotsTxt = true
	c.AllowURLRevisit = true
	if s.userAgent != "" {
		c.UserAgent = s.userAgent
	}
	timeout := s.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < timeout {
			timeout = max(left, time.Millisecond)
		}
	}
	c.SetRequestTimeout(timeout)
	return c
}

// Extract classifies the links of the last fetched page.
func (s *httpSession) Extract(context.Context) (analyzer.PageData, error) {
	s.mu.Lock()
	url, body := s.url, s.body
	s.mu.Unlock()
	if url == "" {
		return analyzer.PageData{}, errors.New("no page loaded")
	}
	return ExtractPageData(url, string(body))
}

// Close drops the current page. It is safe to call more than once.
func (s *httpSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.url, s.body = "", nil
	return nil
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
