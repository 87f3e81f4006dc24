package browser

import (
	"context"
	"testing"
	"time"
)

func TestNewChromeLauncherDefaults(t *testing.T) {
	t.Parallel()

	l := NewChromeLauncher(ChromeConfig{}, nil)
	if l.cfg.ViewportWidth != 1280 || l.cfg.ViewportHeight != 800 {
		t.Fatalf("expected 1280x800 viewport, got %dx%d", l.cfg.ViewportWidth, l.cfg.ViewportHeight)
	}
	if l.logger == nil {
		t.Fatal("expected nop logger")
	}

	l = NewChromeLauncher(ChromeConfig{ViewportWidth: 800, ViewportHeight: 600}, nil)
	if l.cfg.ViewportWidth != 800 || l.cfg.ViewportHeight != 600 {
		t.Fatalf("override ignored: %dx%d", l.cfg.ViewportWidth, l.cfg.ViewportHeight)
	}
}

func TestForwardCancel(t *testing.T) {
	t.Parallel()

	parent, cancelParent := context.WithCancel(context.Background())
	child, cancelChild := context.WithCancel(context.Background())
	defer cancelChild()

	stop := forwardCancel(parent, cancelChild)
	defer stop()
	cancelParent()

	select {
	case <-child.Done():
	case <-time.After(time.Second):
		t.Fatal("child was not canceled with parent")
	}
}

func TestChromeSessionCloseIsIdempotent(t *testing.T) {
	t.Parallel()

	calls := 0
	s := &chromeSession{cancel: func() { calls++ }, logger: NewChromeLauncher(ChromeConfig{}, nil).logger}
	_ = s.Close()
	_ = s.Close()
	if calls != 1 {
		t.Fatalf("expected one cancel, got %d", calls)
	}
}
