package drivertest

import (
	"context"
	"fmt"
	"image/color"
	"strings"
	"sync"
	"time"

	"github.com/kidandcat/pagesuite/pkg/driver"
)

// Page is the fake driver.Page. Selectors that are not registered behave
// like elements that never appear: actions on them block until the call
// times out.
type Page struct {
	c  *Context
	id int

	mu       sync.Mutex
	closed   bool
	url      string
	history  []string
	elements map[string]Element
	timeout  time.Duration
	viewport driver.Viewport
	console  []func(driver.ConsoleMessage)
	dialogs  *bool
	actions  []string
}

var _ driver.Page = (*Page)(nil)

func (p *Page) ID() int { return p.id }

// Context returns the context the page belongs to.
func (p *Page) Context() *Context { return p.c }

func (p *Page) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Timeout returns the default timeout last set on the page.
func (p *Page) Timeout() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.timeout
}

func (p *Page) Viewport() driver.Viewport {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.viewport
}

// Actions returns the user actions performed on the page, e.g. "fill #q=x".
func (p *Page) Actions() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.actions...)
}

// DialogPolicy reports the registered dialog answer, if any.
func (p *Page) DialogPolicy() (accept, set bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.dialogs == nil {
		return false, false
	}
	return *p.dialogs, true
}

// SetElement registers or replaces an element on this page only.
func (p *Page) SetElement(selector string, el Element) {
	p.mu.Lock()
	p.elements[selector] = el
	p.mu.Unlock()
}

// EmitConsole delivers msg to the registered console handlers.
func (p *Page) EmitConsole(msg driver.ConsoleMessage) {
	p.mu.Lock()
	handlers := append([]func(driver.ConsoleMessage){}, p.console...)
	p.mu.Unlock()
	for _, fn := range handlers {
		fn(msg)
	}
}

func (p *Page) SetDefaultTimeout(d time.Duration) {
	p.mu.Lock()
	p.timeout = d
	p.mu.Unlock()
}

func (p *Page) check(ctx context.Context, op string) error {
	if err := ctx.Err(); err != nil {
		if err == context.DeadlineExceeded {
			return &driver.TimeoutError{Op: op, Err: err}
		}
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return fmt.Errorf("%s: %w", op, driver.ErrClosed)
	}
	return nil
}

// element returns the element for selector or blocks until the call times out.
func (p *Page) element(ctx context.Context, op, selector string) (Element, error) {
	if err := p.check(ctx, op); err != nil {
		return Element{}, err
	}
	p.mu.Lock()
	el, ok := p.elements[selector]
	p.mu.Unlock()
	if ok && !el.Hidden {
		return el, nil
	}
	return Element{}, p.wait(ctx, op)
}

func (p *Page) wait(ctx context.Context, op string) error {
	t := time.NewTimer(driver.Deadline(ctx, p.Timeout()))
	defer t.Stop()
	select {
	case <-t.C:
		return &driver.TimeoutError{Op: op, Err: context.DeadlineExceeded}
	case <-ctx.Done():
		if ctx.Err() == context.DeadlineExceeded {
			return &driver.TimeoutError{Op: op, Err: ctx.Err()}
		}
		return ctx.Err()
	}
}

func (p *Page) record(action string) {
	p.mu.Lock()
	p.actions = append(p.actions, action)
	p.mu.Unlock()
}

func (p *Page) navigate(url string) {
	p.mu.Lock()
	if p.url != "about:blank" {
		p.history = append(p.history, p.url)
	}
	p.url = url
	p.mu.Unlock()
}

func (p *Page) Goto(ctx context.Context, url string) error {
	if err := p.check(ctx, "goto "+url); err != nil {
		return err
	}
	if strings.Contains(url, "unreachable") {
		return fmt.Errorf("goto %s: net::ERR_NAME_NOT_RESOLVED", url)
	}
	p.navigate(url)
	p.record("goto " + url)
	return nil
}

func (p *Page) URL(ctx context.Context) (string, error) {
	if err := p.check(ctx, "url"); err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url, nil
}

func (p *Page) Title(ctx context.Context) (string, error) {
	if err := p.check(ctx, "title"); err != nil {
		return "", err
	}
	p.mu.Lock()
	url := p.url
	p.mu.Unlock()
	return p.c.b.d.Titles[url], nil
}

func (p *Page) GoBack(ctx context.Context) error {
	if err := p.check(ctx, "go back"); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.history) == 0 {
		return nil
	}
	p.url = p.history[len(p.history)-1]
	p.history = p.history[:len(p.history)-1]
	return nil
}

func (p *Page) Reload(ctx context.Context) error {
	return p.check(ctx, "reload")
}

func (p *Page) WaitForURL(ctx context.Context, substr string) error {
	u, err := p.URL(ctx)
	if err != nil {
		return err
	}
	if strings.Contains(u, substr) {
		return nil
	}
	return p.wait(ctx, "wait for url "+substr)
}

func (p *Page) WaitForLoad(ctx context.Context, state driver.LoadState) error {
	return p.check(ctx, "wait for load "+string(state))
}

func (p *Page) Click(ctx context.Context, selector string) error {
	el, err := p.element(ctx, "click "+selector, selector)
	if err != nil {
		return err
	}
	if el.Navigate != "" {
		p.navigate(el.Navigate)
	}
	p.record("click " + selector)
	if el.Console != "" {
		u, _ := p.URL(ctx)
		p.EmitConsole(driver.ConsoleMessage{Type: "error", Text: el.Console, URL: u, Time: time.Now()})
	}
	return nil
}

func (p *Page) Fill(ctx context.Context, selector, value string) error {
	el, err := p.element(ctx, "fill "+selector, selector)
	if err != nil {
		return err
	}
	el.Value = value
	p.SetElement(selector, el)
	p.record("fill " + selector + "=" + value)
	return nil
}

func (p *Page) Press(ctx context.Context, selector, key string) error {
	if selector == "" {
		if err := p.check(ctx, "press "+key); err != nil {
			return err
		}
	} else if _, err := p.element(ctx, "press "+key, selector); err != nil {
		return err
	}
	p.record("press " + selector + " " + key)
	return nil
}

func (p *Page) Check(ctx context.Context, selector string, checked bool) error {
	el, err := p.element(ctx, "check "+selector, selector)
	if err != nil {
		return err
	}
	el.Checked = checked
	p.SetElement(selector, el)
	p.record(fmt.Sprintf("check %s=%t", selector, checked))
	return nil
}

func (p *Page) SelectOption(ctx context.Context, selector, value string) error {
	el, err := p.element(ctx, "select "+selector, selector)
	if err != nil {
		return err
	}
	el.Value = value
	p.SetElement(selector, el)
	p.record("select " + selector + "=" + value)
	return nil
}

func (p *Page) Hover(ctx context.Context, selector string) error {
	if _, err := p.element(ctx, "hover "+selector, selector); err != nil {
		return err
	}
	p.record("hover " + selector)
	return nil
}

func (p *Page) Text(ctx context.Context, selector string) (string, error) {
	el, err := p.element(ctx, "text "+selector, selector)
	return el.Text, err
}

func (p *Page) InputValue(ctx context.Context, selector string) (string, error) {
	el, err := p.element(ctx, "input value "+selector, selector)
	return el.Value, err
}

func (p *Page) Attribute(ctx context.Context, selector, name string) (string, bool, error) {
	el, err := p.element(ctx, "attribute "+name, selector)
	if err != nil {
		return "", false, err
	}
	v, ok := el.Attrs[name]
	return v, ok, nil
}

func (p *Page) IsVisible(ctx context.Context, selector string) (bool, error) {
	if err := p.check(ctx, "is visible "+selector); err != nil {
		return false, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	el, ok := p.elements[selector]
	return ok && !el.Hidden, nil
}

func (p *Page) Count(ctx context.Context, selector string) (int, error) {
	if err := p.check(ctx, "count "+selector); err != nil {
		return 0, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	el, ok := p.elements[selector]
	switch {
	case !ok:
		return 0, nil
	case el.Count > 0:
		return el.Count, nil
	default:
		return 1, nil
	}
}

func (p *Page) WaitFor(ctx context.Context, selector string, state driver.WaitState) error {
	op := "wait for " + selector + " " + string(state)
	if err := p.check(ctx, op); err != nil {
		return err
	}
	p.mu.Lock()
	el, ok := p.elements[selector]
	p.mu.Unlock()

	var done bool
	switch state {
	case driver.StateHidden:
		done = !ok || el.Hidden
	case driver.StateAttached:
		done = ok
	case driver.StateDetached:
		done = !ok
	default:
		done = ok && !el.Hidden
	}
	if done {
		return nil
	}
	return p.wait(ctx, op)
}

// Evaluate understands document.cookie reads and writes. Any other expression
// evaluates to nil.
func (p *Page) Evaluate(ctx context.Context, expression string) (any, error) {
	if err := p.check(ctx, "evaluate"); err != nil {
		return nil, err
	}
	expr := strings.TrimSpace(expression)
	if rest, ok := strings.CutPrefix(expr, "document.cookie"); ok {
		rest = strings.TrimSpace(rest)
		if rest == "" {
			return p.c.cookieString(), nil
		}
		if v, ok := strings.CutPrefix(rest, "="); ok {
			v = strings.Trim(strings.TrimSpace(v), `"'`+"`")
			p.c.setCookie(v)
			return v, nil
		}
	}
	return nil, nil
}

func (p *Page) SetViewport(ctx context.Context, v driver.Viewport) error {
	if err := p.check(ctx, "set viewport"); err != nil {
		return err
	}
	p.mu.Lock()
	p.viewport = v
	p.mu.Unlock()
	return nil
}

func (p *Page) Screenshot(ctx context.Context, opts driver.ScreenshotOptions) ([]byte, error) {
	if err := p.check(ctx, "screenshot"); err != nil {
		return nil, err
	}
	d := p.c.b.d
	d.rec.add("page %d screenshot", p.id)
	if d.ScreenshotGate != nil {
		select {
		case <-d.ScreenshotGate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if d.ScreenshotErr != nil {
		return nil, d.ScreenshotErr
	}
	if d.Image != nil {
		return d.Image, nil
	}
	return PNG(8, 8, color.RGBA{R: 200, G: 30, B: 30, A: 255}), nil
}

func (p *Page) OnConsole(fn func(driver.ConsoleMessage)) {
	p.mu.Lock()
	p.console = append(p.console, fn)
	p.mu.Unlock()
}

func (p *Page) HandleDialogs(accept bool) {
	p.mu.Lock()
	p.dialogs = &accept
	p.mu.Unlock()
}

func (p *Page) VideoPath() string {
	dir := p.c.opts.VideoDir
	if dir == "" || !p.c.b.d.Video {
		return ""
	}
	return fmt.Sprintf("%s/page-%d.webm", strings.TrimRight(dir, "/"), p.id)
}

func (p *Page) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()
	p.c.b.d.rec.add("page %d close", p.id)
	return nil
}
