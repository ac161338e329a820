package runner

import (
	"context"
	"time"

	"github.com/kidandcat/pagesuite/pkg/driver"
)

// TestBuilder assembles a test step by step:
//
//	r.Test("login").Navigate("/login").Fill("#email", user).Click("#submit").Add()
type TestBuilder struct {
	runner *Runner
	test   Test
}

func (r *Runner) Test(name string) *TestBuilder {
	return &TestBuilder{
		runner: r,
		test: Test{
			Name: name,
		},
	}
}

func (tb *TestBuilder) step(action, target, value string) *TestBuilder {
	tb.test.Steps = append(tb.test.Steps, Step{
		Action: action,
		Target: target,
		Value:  value,
	})
	return tb
}

func (tb *TestBuilder) Tag(tags ...string) *TestBuilder {
	tb.test.Tags = append(tb.test.Tags, tags...)
	return tb
}

func (tb *TestBuilder) Skip(reason string) *TestBuilder {
	tb.test.Skip = reason
	return tb
}

// RequiresLocal marks the test as skipped on CI.
func (tb *TestBuilder) RequiresLocal() *TestBuilder {
	tb.test.RequiresLocal = true
	return tb
}

func (tb *TestBuilder) Navigate(url string) *TestBuilder {
	return tb.step("navigate", url, "")
}

func (tb *TestBuilder) Click(selector string) *TestBuilder {
	return tb.step("click", selector, "")
}

func (tb *TestBuilder) Type(selector, text string) *TestBuilder {
	return tb.step("type", selector, text)
}

func (tb *TestBuilder) Fill(selector, text string) *TestBuilder {
	return tb.step("fill", selector, text)
}

func (tb *TestBuilder) Press(selector, key string) *TestBuilder {
	return tb.step("press", selector, key)
}

func (tb *TestBuilder) WaitFor(selector string) *TestBuilder {
	return tb.step("wait_for", selector, "")
}

func (tb *TestBuilder) AssertText(selector, expected string) *TestBuilder {
	return tb.step("assert_text", selector, expected)
}

func (tb *TestBuilder) AssertTextContains(selector, text string) *TestBuilder {
	return tb.step("assert_text_contains", selector, text)
}

func (tb *TestBuilder) AssertVisible(selector string) *TestBuilder {
	return tb.step("assert_visible", selector, "")
}

func (tb *TestBuilder) AssertURLContains(fragment string) *TestBuilder {
	return tb.step("assert_url_contains", fragment, "")
}

func (tb *TestBuilder) AssertTitleContains(fragment string) *TestBuilder {
	return tb.step("assert_title_contains", fragment, "")
}

func (tb *TestBuilder) Viewport(device string) *TestBuilder {
	return tb.step("viewport", "", device)
}

func (tb *TestBuilder) Screenshot(name string) *TestBuilder {
	return tb.step("screenshot", name, "")
}

// Snapshot compares the page with the baseline called name.
func (tb *TestBuilder) Snapshot(name string) *TestBuilder {
	return tb.step("snapshot", name, "")
}

// Build returns the assembled test.
func (tb *TestBuilder) Build() Test {
	t := tb.test
	t.Steps = append([]Step(nil), tb.test.Steps...)
	t.Tags = append([]string(nil), tb.test.Tags...)
	return t
}

// Add queues the test on the runner.
func (tb *TestBuilder) Add() *TestBuilder {
	tb.runner.AddTest(tb.Build())
	return tb
}

// Run runs this test alone without queueing it and returns its result on
// the first configured browser.
func (tb *TestBuilder) Run(ctx context.Context) (TestResult, error) {
	results, err := tb.runner.run(ctx, []Test{tb.Build()}, nil)
	if len(results) == 0 {
		return TestResult{Name: tb.test.Name, Error: ErrNoTestResults}, ErrNoTestResults
	}
	return results[0], err
}

// PageTester drives an already leased page with chained calls. The first
// error sticks; later calls do nothing. A timeout of zero or less puts no
// deadline on each call beyond ctx.
type PageTester struct {
	page    driver.Page
	ctx     context.Context
	timeout time.Duration
	err     error
}

func NewPageTester(ctx context.Context, page driver.Page, timeout time.Duration) *PageTester {
	return &PageTester{
		page:    page,
		ctx:     ctx,
		timeout: timeout,
	}
}

func (pt *PageTester) do(fn func(ctx context.Context) error) *PageTester {
	if pt.err != nil {
		return pt
	}
	ctx := pt.ctx
	if pt.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, pt.timeout)
		defer cancel()
	}
	pt.err = fn(ctx)
	return pt
}

func (pt *PageTester) Navigate(url string) *PageTester {
	return pt.do(func(ctx context.Context) error { return pt.page.Goto(ctx, url) })
}

func (pt *PageTester) Click(selector string) *PageTester {
	return pt.do(func(ctx context.Context) error { return pt.page.Click(ctx, selector) })
}

func (pt *PageTester) Type(selector, text string) *PageTester {
	return pt.do(func(ctx context.Context) error { return pt.page.Fill(ctx, selector, text) })
}

func (pt *PageTester) WaitFor(selector string) *PageTester {
	return pt.do(func(ctx context.Context) error {
		return pt.page.WaitFor(ctx, selector, driver.StateVisible)
	})
}

func (pt *PageTester) AssertText(selector, expected string) *PageTester {
	return pt.do(func(ctx context.Context) error {
		text, err := pt.page.Text(ctx, selector)
		if err != nil {
			return err
		}
		if text != expected {
			return &AssertionError{
				Expected: expected,
				Actual:   text,
				Message:  "text assertion failed",
			}
		}
		return nil
	})
}

// Err returns the first error of the chain.
func (pt *PageTester) Err() error {
	return pt.err
}
