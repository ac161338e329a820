package harness

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kidandcat/pagesuite/pkg/driver"
)

// Lease is one test's claim on a context and a page.
type Lease struct {
	h       *Harness
	name    string
	logger  *zap.Logger
	started time.Time
	bctx    driver.Context
	page    driver.Page

	once   sync.Once
	mu     sync.Mutex
	states []State
	result Result
}

func (l *Lease) Name() string {
	return l.name
}

func (l *Lease) Page() driver.Page {
	return l.page
}

// Context returns the browser context that owns the page.
func (l *Lease) Context() driver.Context {
	return l.bctx
}

func (l *Lease) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.states[len(l.states)-1]
}

func (l *Lease) transition(s State) {
	l.mu.Lock()
	l.states = append(l.states, s)
	l.mu.Unlock()
}

// Release records the outcome, captures a screenshot when the test failed
// and closes the page and then the context. Teardown errors are logged, never
// returned. Only the first call does anything; later calls wait for it to
// finish and return the same result.
func (l *Lease) Release(ctx context.Context, outcome Outcome) Result {
	l.once.Do(func() { l.release(ctx, outcome) })
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.result
}

func (l *Lease) release(ctx context.Context, outcome Outcome) {
	defer l.h.forget(l)

	res := Result{
		Name:     l.name,
		Browser:  l.h.browser,
		Outcome:  outcome,
		Duration: time.Since(l.started),
	}
	l.transition(StateOutcomeKnown)

	if l.h.capture.ShouldCapture(outcome) {
		path, err := l.h.capture.Capture(ctx, l.page, l.identity())
		if err != nil {
			l.logger.Warn("could not save failure screenshot", zap.Error(err))
			res.CaptureErr = err
		} else {
			l.logger.Info("failure screenshot saved", zap.String("path", path))
			res.Artifact = path
			l.transition(StateArtifactCaptured)
		}
	}

	res.Video = l.page.VideoPath()
	if err := l.page.Close(); err != nil {
		l.logger.Warn("failed to close page", zap.Error(err))
	}
	if err := l.bctx.Close(); err != nil {
		l.logger.Warn("failed to close browser context", zap.Error(err))
	}
	l.transition(StateClosed)

	l.mu.Lock()
	res.States = append([]State(nil), l.states...)
	l.result = res
	l.mu.Unlock()

	l.logger.Debug("lease released",
		zap.Stringer("outcome", outcome),
		zap.Duration("duration", res.Duration),
	)
}

// identity names the artifact: the test name, suffixed with the browser when
// the run covers several.
func (l *Lease) identity() string {
	if len(l.h.settings.Browsers) > 1 {
		return l.name + "_" + l.h.browser
	}
	return l.name
}
