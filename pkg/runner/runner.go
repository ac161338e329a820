// Package runner executes scripted tests through the harness, one leased page
// per test, on a pool of workers that each own a browser session.
package runner

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kidandcat/pagesuite/pkg/config"
	"github.com/kidandcat/pagesuite/pkg/driver"
	"github.com/kidandcat/pagesuite/pkg/harness"
)

type Runner struct {
	settings config.Settings
	driver   driver.Driver
	logger   *zap.Logger
	lookup   func(string) (string, bool)
	filter   func(ConsoleError) bool
	hopts    []harness.Option

	tests []Test

	mu                sync.Mutex
	screenshotCounter map[string]int
}

type Option func(*Runner)

func WithLogger(l *zap.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// WithLookupEnv replaces os.LookupEnv when expanding ${VAR} references that
// the settings do not define.
func WithLookupEnv(fn func(string) (string, bool)) Option {
	return func(r *Runner) { r.lookup = fn }
}

// WithConsoleFilter drops console errors for which fn returns true, in
// addition to the configured ignore patterns.
func WithConsoleFilter(fn func(ConsoleError) bool) Option {
	return func(r *Runner) { r.filter = fn }
}

// WithHarnessOptions passes opts to every harness the runner creates.
func WithHarnessOptions(opts ...harness.Option) Option {
	return func(r *Runner) { r.hopts = append(r.hopts, opts...) }
}

func New(settings config.Settings, drv driver.Driver, opts ...Option) *Runner {
	r := &Runner{
		settings:          settings,
		driver:            drv,
		logger:            zap.NewNop(),
		lookup:            os.LookupEnv,
		screenshotCounter: make(map[string]int),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Runner) AddTest(test Test) {
	r.tests = append(r.tests, test)
}

// Tests returns the tests added so far.
func (r *Runner) Tests() []Test {
	return append([]Test(nil), r.tests...)
}

// Run runs every added test once per configured browser and returns the
// results in input order, browser by browser. The error is non-nil only when
// a browser could not be launched; results of tests that never ran are then
// reported skipped.
func (r *Runner) Run(ctx context.Context) ([]TestResult, error) {
	return r.run(ctx, r.tests, nil)
}

// RunWithProgress is Run, also sending every result to progress as soon as
// it is known. progress is closed when the run ends.
func (r *Runner) RunWithProgress(ctx context.Context, progress chan<- TestResult) ([]TestResult, error) {
	return r.run(ctx, r.tests, progress)
}

type job struct {
	index   int
	browser string
	test    Test
}

func (r *Runner) run(ctx context.Context, tests []Test, progress chan<- TestResult) ([]TestResult, error) {
	if progress != nil {
		defer close(progress)
	}
	r.mu.Lock()
	r.screenshotCounter = make(map[string]int)
	r.mu.Unlock()

	browsers := r.settings.Browsers
	if len(browsers) == 0 {
		browsers = []string{"chromium"}
	}
	workers := max(r.settings.Workers, 1)
	results := make([]TestResult, len(browsers)*len(tests))
	ran := make([]bool, len(results))
	notRun := func(cause error) {
		reason := "not run"
		if cause != nil {
			reason = "not run: " + cause.Error()
		}
		for bi, b := range browsers {
			for ti, t := range tests {
				if i := bi*len(tests) + ti; !ran[i] {
					results[i] = r.skipped(t, b, reason)
				}
			}
		}
	}

	idle, err := r.launch(ctx, browsers, tests)
	if err != nil {
		if ctx.Err() != nil {
			notRun(context.Cause(ctx))
			return results, nil
		}
		notRun(err)
		return results, err
	}
	defer idle.stop()

	jobs := make(chan job)
	g, feed := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(jobs)
		for bi, b := range browsers {
			for ti, t := range tests {
				select {
				case jobs <- job{index: bi*len(tests) + ti, browser: b, test: t}:
				case <-feed.Done():
					return nil
				}
			}
		}
		return nil
	})
	for w := 1; w <= workers; w++ {
		logger := r.logger.With(zap.Int("worker", w))
		g.Go(func() error {
			return r.work(ctx, feed, logger, idle, jobs, func(j job, res TestResult) {
				results[j.index] = res
				ran[j.index] = true
				if progress != nil {
					progress <- res
				}
			})
		})
	}
	err = g.Wait()

	notRun(context.Cause(feed))
	return results, err
}

// launch starts one harness for every browser that has a test to run, so a
// browser that cannot be launched aborts the run before any test starts.
func (r *Runner) launch(ctx context.Context, browsers []string, tests []Test) (*harnessPool, error) {
	runnable := false
	for _, t := range tests {
		if r.skipReason(t) == "" {
			runnable = true
			break
		}
	}
	idle := &harnessPool{idle: map[string][]*harness.Harness{}}
	if !runnable {
		return idle, nil
	}

	var g errgroup.Group
	for _, b := range browsers {
		h := r.newHarness(b, r.logger)
		g.Go(func() error {
			if err := h.Start(ctx); err != nil {
				return err
			}
			idle.put(h)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		idle.stop()
		return nil, err
	}
	return idle, nil
}

func (r *Runner) newHarness(browser string, logger *zap.Logger) *harness.Harness {
	opts := append([]harness.Option{
		harness.WithLogger(logger),
		harness.WithBrowser(browser),
	}, r.hopts...)
	return harness.New(r.settings, r.driver, opts...)
}

// harnessPool holds started harnesses no worker has claimed yet.
type harnessPool struct {
	mu   sync.Mutex
	idle map[string][]*harness.Harness
}

func (p *harnessPool) put(h *harness.Harness) {
	p.mu.Lock()
	p.idle[h.Browser()] = append(p.idle[h.Browser()], h)
	p.mu.Unlock()
}

func (p *harnessPool) take(browser string) *harness.Harness {
	p.mu.Lock()
	defer p.mu.Unlock()
	hs := p.idle[browser]
	if len(hs) == 0 {
		return nil
	}
	h := hs[len(hs)-1]
	p.idle[browser] = hs[:len(hs)-1]
	return h
}

func (p *harnessPool) stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for b, hs := range p.idle {
		for _, h := range hs {
			_ = h.Stop()
		}
		delete(p.idle, b)
	}
}

// work runs jobs until the channel closes. A worker keeps one harness at a
// time and swaps it when the browser changes, so jobs must arrive grouped by
// browser. Tests run on ctx; feed only stops new jobs, so a failure in
// another worker never cancels a test in flight.
func (r *Runner) work(ctx, feed context.Context, logger *zap.Logger, idle *harnessPool, jobs <-chan job, done func(job, TestResult)) error {
	var h *harness.Harness
	defer func() {
		if h != nil {
			_ = h.Stop()
		}
	}()

	for j := range jobs {
		if feed.Err() != nil {
			continue
		}
		if reason := r.skipReason(j.test); reason != "" {
			res := r.skipped(j.test, j.browser, reason)
			logger.Info("test skipped", zap.String("test", res.Name), zap.String("reason", reason))
			done(j, res)
			continue
		}

		if h == nil || h.Browser() != j.browser {
			if h != nil {
				_ = h.Stop()
			}
			h = idle.take(j.browser)
			if h == nil {
				h = r.newHarness(j.browser, logger)
				if err := h.Start(ctx); err != nil {
					h = nil
					return err
				}
			}
		}

		done(j, r.runTest(ctx, h, j.test))
	}
	return nil
}

func (r *Runner) skipReason(t Test) string {
	switch {
	case t.Skip != "":
		return t.Skip
	case t.RequiresLocal && r.settings.CI:
		return "requires the local test environment"
	}
	return ""
}

func (r *Runner) skipped(t Test, browser, reason string) TestResult {
	return TestResult{
		Name:    r.displayName(t.Name, browser),
		Browser: browser,
		File:    t.File,
		Line:    t.Line,
		Outcome: harness.Skipped,
		Error:   harness.Skip(reason),
	}
}

func (r *Runner) displayName(name, browser string) string {
	if len(r.settings.Browsers) > 1 {
		return fmt.Sprintf("%s [%s]", name, browser)
	}
	return name
}

func (r *Runner) runTest(ctx context.Context, h *harness.Harness, test Test) TestResult {
	console := &consoleLog{ignore: r.settings.ConsoleIgnore, filter: r.filter}

	res := h.Run(ctx, test.Name, func(ctx context.Context, page driver.Page) error {
		page.OnConsole(console.add)
		ex := &executor{
			r:       r,
			page:    page,
			test:    test,
			browser: h.Browser(),
		}
		for _, step := range test.Steps {
			if err := ex.execute(ctx, step); err != nil {
				if step.Line > 0 {
					return fmt.Errorf("line %d: %s: %w", step.Line, step.Action, err)
				}
				return fmt.Errorf("%s: %w", step.Action, err)
			}
		}
		if r.settings.FailOnConsoleError {
			if n := len(console.errors()); n > 0 {
				return fmt.Errorf("%w: %d errors", ErrConsoleErrors, n)
			}
		}
		return nil
	})

	return TestResult{
		Name:       r.displayName(test.Name, h.Browser()),
		Browser:    h.Browser(),
		File:       test.File,
		Line:       test.Line,
		Outcome:    res.Outcome,
		Passed:     res.Outcome == harness.Passed,
		Error:      res.Err,
		Timeout:    res.Timeout,
		Duration:   res.Duration,
		Errors:     console.errors(),
		Screenshot: res.Artifact,
		CaptureErr: res.CaptureErr,
		Video:      res.Video,
	}
}

type consoleLog struct {
	ignore []string
	filter func(ConsoleError) bool

	mu   sync.Mutex
	errs []ConsoleError
}

func (c *consoleLog) add(msg driver.ConsoleMessage) {
	if msg.Type != "error" {
		return
	}
	for _, pattern := range c.ignore {
		if pattern != "" && strings.Contains(msg.Text, pattern) {
			return
		}
	}
	ce := ConsoleError{
		Message:   msg.Text,
		Type:      msg.Type,
		Timestamp: msg.Time,
		URL:       msg.URL,
	}
	if c.filter != nil && c.filter(ce) {
		return
	}
	c.mu.Lock()
	c.errs = append(c.errs, ce)
	c.mu.Unlock()
}

func (c *consoleLog) errors() []ConsoleError {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]ConsoleError{}, c.errs...)
}
