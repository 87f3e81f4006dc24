package crawl

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/JakeFAU/site-analyzer/internal/analyzer"
)

var errNoSuchPage = errors.New("no such page")

// fakeSite maps URLs to the page data a session returns for them. URLs
// missing from pages fail navigation.
type fakeSite struct {
	pages map[string]analyzer.PageData
}

type fakeSession struct {
	site fakeSite
	// hang lists URLs whose extraction blocks until ctx ends.
	hang    map[string]bool
	mu      sync.Mutex
	current string
	navs    []string
}

func (s *fakeSession) Navigate(ctx context.Context, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.navs = append(s.navs, url)
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, ok := s.site.pages[url]; !ok {
		return fmt.Errorf("%w: %s: %w", analyzer.ErrNavigation, url, errNoSuchPage)
	}
	s.current = url
	return nil
}

func (s *fakeSession) Extract(ctx context.Context) (analyzer.PageData, error) {
	s.mu.Lock()
	current := s.current
	s.mu.Unlock()
	if s.hang[current] {
		<-ctx.Done()
		return analyzer.PageData{}, ctx.Err()
	}
	return s.site.pages[current], nil
}

func (s *fakeSession) Close() error { return nil }

func (s *fakeSession) navigations() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.navs...)
}

func page(title string, links ...string) analyzer.PageData {
	out := analyzer.PageData{Title: title}
	for _, l := range links {
		out.Links = append(out.Links, analyzer.ExtractedLink{
			URL: l, Text: "text " + l, Kind: analyzer.LinkContent, Location: "main content",
		})
	}
	return out
}

// stepClock advances by step on every call to Now.
type stepClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now
	c.now = c.now.Add(c.step)
	return now
}

func fixedClock() *stepClock {
	return &stepClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

type fakeSummarizer struct {
	text  string
	err   error
	mu    sync.Mutex
	calls [][]analyzer.Action
}

func (f *fakeSummarizer) Summarize(_ context.Context, actions []analyzer.Action) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, actions)
	return f.text, f.err
}

// clockedSession records the clock reading at the start of every navigation.
type clockedSession struct {
	*fakeSession
	clock analyzer.Clock
	mu    sync.Mutex
	at    []time.Time
}

func (s *clockedSession) Navigate(ctx context.Context, url string) error {
	s.mu.Lock()
	s.at = append(s.at, s.clock.Now())
	s.mu.Unlock()
	return s.fakeSession.Navigate(ctx, url)
}

func (s *clockedSession) lastNavigation() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.at[len(s.at)-1]
}

// stallingSummarizer blocks until its context ends and records whether that
// context carried a deadline.
type stallingSummarizer struct {
	mu        sync.Mutex
	calls     int
	deadlines int
}

func (f *stallingSummarizer) Summarize(ctx context.Context, _ []analyzer.Action) (string, error) {
	f.mu.Lock()
	f.calls++
	if _, ok := ctx.Deadline(); ok {
		f.deadlines++
	}
	f.mu.Unlock()
	<-ctx.Done()
	return "", ctx.Err()
}
