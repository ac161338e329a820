// Package harness owns the browser lifecycle of a test run. A Harness holds
// one browser session; every test leases a fresh context and page from it
// and gives them back through Release, which also captures a screenshot when
// the test failed.
package harness

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kidandcat/pagesuite/pkg/config"
	"github.com/kidandcat/pagesuite/pkg/driver"
)

type Harness struct {
	settings config.Settings
	driver   driver.Driver
	browser  string
	logger   *zap.Logger
	capture  CapturePolicy
	orphans  func() ([]string, error)

	mu      sync.Mutex
	session *session
	stopped bool
	leases  map[*Lease]struct{}

	videoOnce sync.Once
}

type session struct {
	id      string
	browser driver.Browser
	started time.Time
	logger  *zap.Logger
}

type Option func(*Harness)

func WithLogger(l *zap.Logger) Option {
	return func(h *Harness) { h.logger = l }
}

// WithBrowser selects the browser of this harness. It defaults to the first
// configured browser.
func WithBrowser(name string) Option {
	return func(h *Harness) { h.browser = name }
}

// WithClock replaces the clock used to timestamp artifacts.
func WithClock(now func() time.Time) Option {
	return func(h *Harness) { h.capture.Now = now }
}

// WithOrphanCheck replaces the lookup of browser processes left behind after
// Stop. nil disables the check.
func WithOrphanCheck(fn func() ([]string, error)) Option {
	return func(h *Harness) { h.orphans = fn }
}

func New(settings config.Settings, drv driver.Driver, opts ...Option) *Harness {
	h := &Harness{
		settings: settings,
		driver:   drv,
		logger:   zap.NewNop(),
		orphans:  browserChildren,
		leases:   map[*Lease]struct{}{},
		capture: CapturePolicy{
			Enabled:  settings.ScreenshotOnFailure,
			Dir:      settings.ScreenshotDir,
			FullPage: settings.FullPageScreenshots,
			Timeout:  settings.CaptureTimeout,
		},
	}
	if len(settings.Browsers) > 0 {
		h.browser = settings.Browsers[0]
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.browser == "" {
		h.browser = "chromium"
	}
	h.logger = h.logger.With(zap.String("browser", h.browser), zap.String("driver", drv.Name()))
	return h
}

func (h *Harness) Settings() config.Settings {
	return h.settings
}

func (h *Harness) Browser() string {
	return h.browser
}

// SessionID identifies the running session in logs, "" before Start.
func (h *Harness) SessionID() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.session == nil {
		return ""
	}
	return h.session.id
}

// Start launches the browser. Calling it again on a started harness does
// nothing.
func (h *Harness) Start(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.stopped {
		return ErrStopped
	}
	if h.session != nil {
		return nil
	}

	b, err := h.driver.Launch(ctx, driver.LaunchOptions{
		Browser:  h.browser,
		Headless: h.settings.Headless,
		SlowMo:   h.settings.SlowMo,
	})
	if err != nil {
		h.logger.Error("browser launch failed", zap.Error(err))
		return &LaunchError{Driver: h.driver.Name(), Browser: h.browser, Err: err}
	}

	id := uuid.NewString()
	h.session = &session{
		id:      id,
		browser: b,
		started: time.Now(),
		logger:  h.logger.With(zap.String("session", id)),
	}
	h.session.logger.Info("browser started",
		zap.String("version", b.Version()),
		zap.Bool("headless", h.settings.Headless),
		zap.Duration("slowmo", h.settings.SlowMo),
	)
	return nil
}

// Stop releases outstanding leases as errored, closes the browser and warns
// about browser processes that survived it. It is safe to call more than
// once and from another goroutine than the tests.
func (h *Harness) Stop() error {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return nil
	}
	h.stopped = true
	s := h.session
	leases := make([]*Lease, 0, len(h.leases))
	for l := range h.leases {
		leases = append(leases, l)
	}
	h.mu.Unlock()

	for _, l := range leases {
		l.logger.Warn("releasing lease left open at shutdown")
		l.Release(context.Background(), Errored)
	}

	if s == nil {
		return nil
	}

	err := s.browser.Close()
	if err != nil {
		s.logger.Warn("failed to close browser", zap.Error(err))
	} else {
		s.logger.Info("browser stopped", zap.Duration("uptime", time.Since(s.started)))
	}

	if h.orphans != nil {
		names, oerr := h.orphans()
		switch {
		case oerr != nil:
			s.logger.Debug("orphan process check failed", zap.Error(oerr))
		case len(names) > 0:
			s.logger.Warn("browser processes still running after stop", zap.Strings("processes", names))
		}
	}
	return err
}

// Acquire opens a fresh isolated context and page for the test called name.
// The returned lease must be released exactly once; further releases are
// no-ops.
func (h *Harness) Acquire(ctx context.Context, name string) (*Lease, error) {
	h.mu.Lock()
	s, stopped := h.session, h.stopped
	h.mu.Unlock()
	switch {
	case stopped:
		return nil, &SetupError{Stage: "session", Err: ErrStopped}
	case s == nil:
		return nil, &SetupError{Stage: "session", Err: ErrNotStarted}
	}

	logger := s.logger.With(zap.String("test", name))
	l := &Lease{
		h:       h,
		name:    name,
		logger:  logger,
		started: time.Now(),
		states:  []State{StateUninitialized},
	}

	bctx, err := s.browser.NewContext(ctx, driver.ContextOptions{
		Viewport: h.settings.Viewport,
		VideoDir: h.videoDir(),
	})
	if err != nil {
		logger.Warn("failed to open browser context", zap.Error(err))
		return nil, &SetupError{Stage: "context", Err: err}
	}

	page, err := bctx.NewPage(ctx)
	if err != nil {
		logger.Warn("failed to open page", zap.Error(err))
		if cerr := bctx.Close(); cerr != nil {
			logger.Warn("failed to close browser context", zap.Error(cerr))
		}
		return nil, &SetupError{Stage: "page", Err: err}
	}
	page.SetDefaultTimeout(h.settings.DefaultTimeout)

	l.bctx = bctx
	l.page = page
	l.transition(StatePageReady)

	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		l.Release(ctx, Errored)
		return nil, &SetupError{Stage: "session", Err: ErrStopped}
	}
	h.leases[l] = struct{}{}
	h.mu.Unlock()

	logger.Debug("page ready", zap.Stringer("viewport", h.settings.Viewport))
	return l, nil
}

func (h *Harness) videoDir() string {
	if !h.settings.RecordVideo {
		return ""
	}
	if !h.driver.Capabilities().Video {
		h.videoOnce.Do(func() {
			h.logger.Warn("video recording is not supported by this driver, continuing without it")
		})
		return ""
	}
	return h.settings.VideoDir
}

func (h *Harness) forget(l *Lease) {
	h.mu.Lock()
	delete(h.leases, l)
	h.mu.Unlock()
}
