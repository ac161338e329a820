package runner

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/kidandcat/pagesuite/pkg/config"
	"github.com/kidandcat/pagesuite/pkg/driver"
	"github.com/kidandcat/pagesuite/pkg/fixtures"
)

const pollInterval = 100 * time.Millisecond

// executor runs the steps of one test against its leased page.
type executor struct {
	r       *Runner
	page    driver.Page
	test    Test
	browser string
}

func (e *executor) execute(ctx context.Context, step Step) error {
	s := e.r.settings
	if d, ok := s.ActionTimeouts[step.Action]; ok && d > 0 {
		e.page.SetDefaultTimeout(d)
		defer e.page.SetDefaultTimeout(s.DefaultTimeout)
	}
	step.Target = e.expand(step.Target)
	step.Value = e.expand(step.Value)

	switch step.Action {
	case "navigate":
		return e.page.Goto(ctx, e.resolve(step.Target))

	case "click":
		return e.page.Click(ctx, step.Target)

	case "type", "fill":
		return e.page.Fill(ctx, step.Target, step.Value)

	case "press":
		return e.page.Press(ctx, step.Target, step.Value)

	case "wait_for":
		return e.page.WaitFor(ctx, step.Target, driver.StateVisible)

	case "wait_for_hidden":
		return e.page.WaitFor(ctx, step.Target, driver.StateHidden)

	case "wait_for_text":
		if err := e.page.WaitFor(ctx, step.Target, driver.StateVisible); err != nil {
			return err
		}
		var last string
		err := e.poll(ctx, step.Action, func() (bool, error) {
			text, err := e.page.Text(ctx, step.Target)
			last = text
			return strings.Contains(text, step.Value), err
		})
		if driver.IsTimeout(err) {
			return fmt.Errorf("timeout waiting for text '%s' in %s, last seen '%s': %w", step.Value, step.Target, last, err)
		}
		return err

	case "wait_for_url":
		return e.page.WaitForURL(ctx, step.Target)

	case "wait_load":
		state := driver.LoadLoad
		if step.Value != "" {
			state = driver.LoadState(step.Value)
		}
		return e.page.WaitForLoad(ctx, state)

	case "wait":
		d, err := ParseWait(step.Value)
		if err != nil {
			return err
		}
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-t.C:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}

	case "assert_text":
		text, err := e.page.Text(ctx, step.Target)
		if err != nil {
			return err
		}
		if strings.TrimSpace(text) != step.Value {
			return &AssertionError{Expected: step.Value, Actual: text, Message: "text of " + step.Target}
		}
		return nil

	case "assert_text_contains":
		text, err := e.page.Text(ctx, step.Target)
		if err != nil {
			return err
		}
		if !strings.Contains(text, step.Value) {
			return &AssertionError{Expected: step.Value, Actual: text, Message: "text of " + step.Target + " should contain"}
		}
		return nil

	case "assert_element_exists":
		if err := e.page.WaitFor(ctx, step.Target, driver.StateAttached); err != nil {
			return fmt.Errorf("element not found: %s: %w", step.Target, err)
		}
		return nil

	case "assert_element_not_exists":
		n, err := e.page.Count(ctx, step.Target)
		if err != nil {
			return err
		}
		if n > 0 {
			return fmt.Errorf("element should not exist: %s (found %d)", step.Target, n)
		}
		return nil

	case "assert_visible":
		if err := e.page.WaitFor(ctx, step.Target, driver.StateVisible); err != nil {
			return fmt.Errorf("element not visible: %s: %w", step.Target, err)
		}
		return nil

	case "assert_count", "assert_count_min":
		want, err := strconv.Atoi(step.Value)
		if err != nil {
			return fmt.Errorf("%q is not a count", step.Value)
		}
		atLeast := step.Action == "assert_count_min"
		got := 0
		err = e.poll(ctx, step.Action, func() (bool, error) {
			n, err := e.page.Count(ctx, step.Target)
			got = n
			if atLeast {
				return n >= want, err
			}
			return n == want, err
		})
		if driver.IsTimeout(err) {
			msg := "count of " + step.Target
			if atLeast {
				msg = "minimum count of " + step.Target
			}
			return &AssertionError{Expected: step.Value, Actual: strconv.Itoa(got), Message: msg}
		}
		return err

	case "assert_url":
		current, err := e.page.URL(ctx)
		if err != nil {
			return err
		}
		if want := e.resolve(step.Target); current != want {
			return &AssertionError{Expected: want, Actual: current, Message: "URL"}
		}
		return nil

	case "assert_url_contains":
		current, err := e.page.URL(ctx)
		if err != nil {
			return err
		}
		if !strings.Contains(current, step.Target) {
			return &AssertionError{Expected: step.Target, Actual: current, Message: "URL should contain"}
		}
		return nil

	case "assert_title":
		title, err := e.page.Title(ctx)
		if err != nil {
			return err
		}
		if title != step.Target {
			return &AssertionError{Expected: step.Target, Actual: title, Message: "title"}
		}
		return nil

	case "assert_title_contains":
		title, err := e.page.Title(ctx)
		if err != nil {
			return err
		}
		if !strings.Contains(title, step.Target) {
			return &AssertionError{Expected: step.Target, Actual: title, Message: "title should contain"}
		}
		return nil

	case "assert_text_visible":
		err := e.poll(ctx, step.Action, func() (bool, error) {
			text, err := e.page.Text(ctx, "body")
			return strings.Contains(text, step.Value), err
		})
		if driver.IsTimeout(err) {
			return fmt.Errorf("text not visible on page: '%s': %w", step.Value, err)
		}
		return err

	case "assert_attribute":
		selector, attribute, ok := strings.Cut(step.Target, "|")
		if !ok {
			return fmt.Errorf("invalid assert_attribute format")
		}
		value, found, err := e.page.Attribute(ctx, selector, attribute)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("attribute '%s' not found on %s", attribute, selector)
		}
		if value != step.Value {
			return &AssertionError{Expected: step.Value, Actual: value, Message: "attribute " + attribute}
		}
		return nil

	case "assert_value":
		value, err := e.page.InputValue(ctx, step.Target)
		if err != nil {
			return err
		}
		if value != step.Value {
			return &AssertionError{Expected: step.Value, Actual: value, Message: "value of " + step.Target}
		}
		return nil

	case "assert_cookies_empty":
		v, err := e.page.Evaluate(ctx, "document.cookie")
		if err != nil {
			return err
		}
		if s, _ := v.(string); s != "" {
			return &AssertionError{Expected: "", Actual: s, Message: "cookies"}
		}
		return nil

	case "select":
		return e.page.SelectOption(ctx, step.Target, step.Value)

	case "check":
		return e.page.Check(ctx, step.Target, true)

	case "uncheck":
		return e.page.Check(ctx, step.Target, false)

	case "hover":
		return e.page.Hover(ctx, step.Target)

	case "go_back":
		return e.page.GoBack(ctx)

	case "reload":
		return e.page.Reload(ctx)

	case "viewport":
		v, err := viewport(step.Value)
		if err != nil {
			return err
		}
		return e.page.SetViewport(ctx, v)

	case "evaluate":
		_, err := e.page.Evaluate(ctx, step.Value)
		return err

	case "accept_dialogs":
		e.page.HandleDialogs(step.Value != "false")
		return nil

	case "screenshot":
		_, err := e.screenshot(ctx, step.Target)
		return err

	case "snapshot":
		return e.snapshot(ctx, step.Target)

	default:
		return fmt.Errorf("unknown action: %s", step.Action)
	}
}

var varPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expand replaces ${NAME} with the setting of that name, or else the
// environment variable. Unknown names are left as written.
func (e *executor) expand(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return varPattern.ReplaceAllStringFunc(s, func(m string) string {
		name := m[2 : len(m)-1]
		if v, ok := e.r.settings.Lookup(name); ok {
			return v
		}
		if v, ok := e.r.lookup(name); ok {
			return v
		}
		return m
	})
}

// resolve makes a relative URL absolute against the base URL.
func (e *executor) resolve(target string) string {
	u, err := url.Parse(target)
	if err != nil || u.IsAbs() {
		return target
	}
	base, err := url.Parse(e.r.settings.BaseURL)
	if err != nil || !base.IsAbs() {
		return target
	}
	if !strings.HasSuffix(base.Path, "/") && !strings.HasPrefix(target, "/") {
		base.Path += "/"
	}
	return base.ResolveReference(u).String()
}

// poll calls check until it reports true, fails, or the action timeout
// expires.
func (e *executor) poll(ctx context.Context, action string, check func() (bool, error)) error {
	ctx, cancel := context.WithTimeout(ctx, e.r.settings.ActionTimeout(action))
	defer cancel()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		ok, err := check()
		if ok {
			return nil
		}
		if err != nil && !driver.IsTimeout(err) {
			return err
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return &driver.TimeoutError{Op: action, Err: ctx.Err()}
			}
			return ctx.Err()
		}
	}
}

// ParseWait reads the argument of a wait step: a Go duration ("500ms") or a
// plain number of milliseconds.
func ParseWait(v string) (time.Duration, error) {
	if ms, err := strconv.Atoi(v); err == nil && ms >= 0 {
		return time.Duration(ms) * time.Millisecond, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("wait: %q is not a duration", v)
	}
	return d, nil
}

// viewport accepts a device name or WIDTHxHEIGHT.
func viewport(v string) (driver.Viewport, error) {
	if vp, ok := fixtures.LookupViewport(v); ok {
		return vp, nil
	}
	return config.ParseViewport(v)
}
