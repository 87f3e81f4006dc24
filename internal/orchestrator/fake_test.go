package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/JakeFAU/site-analyzer/internal/analyzer"
	"github.com/JakeFAU/site-analyzer/internal/progress"
)

var (
	errLaunch   = errors.New("chrome not found")
	errUpstream = errors.New("model unavailable")
)

// fakeLauncher hands out sessions over a fixed site map.
type fakeLauncher struct {
	pages map[string]analyzer.PageData
	err   error
	// panicOn makes Extract panic for the given URL.
	panicOn string

	mu       sync.Mutex
	sessions []*fakeSession
}

func (l *fakeLauncher) Launch(context.Context) (analyzer.Session, error) {
	if l.err != nil {
		return nil, l.err
	}
	s := &fakeSession{pages: l.pages, panicOn: l.panicOn}
	l.mu.Lock()
	l.sessions = append(l.sessions, s)
	l.mu.Unlock()
	return s, nil
}

func (l *fakeLauncher) launched() []*fakeSession {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*fakeSession(nil), l.sessions...)
}

// stallingLauncher blocks every launch until its context ends.
type stallingLauncher struct {
	entered chan struct{}
}

func (l *stallingLauncher) Launch(ctx context.Context) (analyzer.Session, error) {
	l.entered <- struct{}{}
	<-ctx.Done()
	return nil, ctx.Err()
}

type fakeSession struct {
	pages   map[string]analyzer.PageData
	panicOn string

	mu      sync.Mutex
	current string
	closes  int
}

func (s *fakeSession) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pages[url]; !ok {
		return fmt.Errorf("%w: %s", analyzer.ErrNavigation, url)
	}
	s.current = url
	return nil
}

func (s *fakeSession) Extract(context.Context) (analyzer.PageData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.panicOn != "" && s.current == s.panicOn {
		panic("renderer crashed")
	}
	return s.pages[s.current], nil
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	return nil
}

func (s *fakeSession) closeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closes
}

func page(title string, links ...string) analyzer.PageData {
	out := analyzer.PageData{Title: title, Description: title + " description"}
	for _, l := range links {
		out.Links = append(out.Links, analyzer.ExtractedLink{
			URL: l, Text: "text " + l, Kind: analyzer.LinkNavigation, Location: "navigation",
		})
	}
	return out
}

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

func newClock() *stepClock {
	return &stepClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC), step: time.Millisecond}
}

// fakeEnhancer prefixes descriptions and fails the calls listed in failOn
// (zero-based call index).
type fakeEnhancer struct {
	failOn map[int]bool

	mu    sync.Mutex
	calls []int
}

func (f *fakeEnhancer) Enhance(_ context.Context, links []analyzer.Link) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	call := len(f.calls)
	f.calls = append(f.calls, len(links))
	if f.failOn[call] {
		return nil, fmt.Errorf("%w: %w", analyzer.ErrEnhancement, errUpstream)
	}
	out := make([]string, len(links))
	for i, l := range links {
		out[i] = "Better: " + l.Title
	}
	return out, nil
}

func (f *fakeEnhancer) batchSizes() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.calls...)
}

type recordingEmitter struct {
	mu     sync.Mutex
	events []progress.Event
}

func (r *recordingEmitter) Emit(evt progress.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

// stagesFor lists the stages emitted for one analysis id.
func (r *recordingEmitter) stagesFor(id string) []progress.Stage {
	runID, err := progress.ParseRunID(id)
	if err != nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []progress.Stage
	for _, e := range r.events {
		if e.RunID == runID {
			out = append(out, e.Stage)
		}
	}
	return out
}

func (r *recordingEmitter) stages() []progress.Stage {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]progress.Stage, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Stage)
	}
	return out
}

// progressRecorder wraps a LogStore and keeps every merged progress value.
type progressRecorder struct {
	analyzer.LogStore

	mu     sync.Mutex
	values []float64
}

func (p *progressRecorder) Merge(ctx context.Context, id string, u analyzer.Update) (analyzer.Run, error) {
	run, err := p.LogStore.Merge(ctx, id, u)
	if err == nil {
		p.mu.Lock()
		p.values = append(p.values, run.Progress)
		p.mu.Unlock()
	}
	return run, err
}

func (p *progressRecorder) progress() []float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]float64(nil), p.values...)
}
