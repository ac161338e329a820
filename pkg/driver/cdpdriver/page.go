package cdpdriver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/input"
	cdppage "github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"

	"github.com/kidandcat/pagesuite/pkg/driver"
)

const defaultTimeout = 30 * time.Second

type page struct {
	ctx    context.Context
	cancel context.CancelFunc // nil for the context's primary tab
	slowMo time.Duration

	mu        sync.Mutex
	timeout   time.Duration
	closed    bool
	accept    *bool
	listening bool
	console   []func(driver.ConsoleMessage)
}

var _ driver.Page = (*page)(nil)

func newPage(ctx context.Context, cancel context.CancelFunc, slowMo time.Duration) *page {
	return &page{
		ctx:     ctx,
		cancel:  cancel,
		slowMo:  slowMo,
		timeout: defaultTimeout,
	}
}

func (p *page) SetDefaultTimeout(d time.Duration) {
	p.mu.Lock()
	p.timeout = d
	p.mu.Unlock()
}

func (p *page) run(ctx context.Context, op string, actions ...chromedp.Action) error {
	p.mu.Lock()
	closed, timeout := p.closed, p.timeout
	p.mu.Unlock()
	if closed {
		return fmt.Errorf("%s: %w", op, driver.ErrClosed)
	}

	if p.slowMo > 0 {
		select {
		case <-time.After(p.slowMo):
		case <-ctx.Done():
			return wrap(op, ctx.Err())
		}
	}

	return wrap(op, runBounded(ctx, p.ctx, timeout, actions...))
}

func (p *page) Goto(ctx context.Context, url string) error {
	return p.run(ctx, "goto "+url, chromedp.Navigate(url))
}

func (p *page) URL(ctx context.Context) (string, error) {
	var url string
	err := p.run(ctx, "url", chromedp.Location(&url))
	return url, err
}

func (p *page) Title(ctx context.Context) (string, error) {
	var title string
	err := p.run(ctx, "title", chromedp.Title(&title))
	return title, err
}

// GoBack returns nil without navigating when there is no history entry.
func (p *page) GoBack(ctx context.Context) error {
	var index int64
	err := p.run(ctx, "go back", chromedp.ActionFunc(func(ctx context.Context) error {
		i, _, err := cdppage.GetNavigationHistory().Do(ctx)
		index = i
		return err
	}))
	if err != nil || index <= 0 {
		return err
	}
	return p.run(ctx, "go back", chromedp.NavigateBack())
}

func (p *page) Reload(ctx context.Context) error {
	return p.run(ctx, "reload", chromedp.Reload())
}

func (p *page) WaitForURL(ctx context.Context, substr string) error {
	return p.run(ctx, "wait for url "+substr, chromedp.ActionFunc(func(ctx context.Context) error {
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			var current string
			if err := chromedp.Location(&current).Do(ctx); err == nil && strings.Contains(current, substr) {
				return nil
			}
			select {
			case <-ticker.C:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}))
}

func (p *page) WaitForLoad(ctx context.Context, state driver.LoadState) error {
	return p.run(ctx, "wait for load "+string(state), chromedp.ActionFunc(func(ctx context.Context) error {
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			var ready string
			if err := chromedp.Evaluate(`document.readyState`, &ready).Do(ctx); err == nil {
				if ready == "complete" || (state == driver.LoadDOMContentLoaded && ready == "interactive") {
					break
				}
			}
			select {
			case <-ticker.C:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if state != driver.LoadNetworkIdle {
			return nil
		}
		// No network events are tracked; settle for a quiet period after load.
		select {
		case <-time.After(500 * time.Millisecond):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}))
}

func (p *page) Click(ctx context.Context, selector string) error {
	return p.run(ctx, "click "+selector, chromedp.Click(selector, chromedp.NodeVisible))
}

func (p *page) Fill(ctx context.Context, selector, value string) error {
	return p.run(ctx, "fill "+selector,
		chromedp.WaitVisible(selector),
		chromedp.Clear(selector),
		chromedp.SendKeys(selector, value, chromedp.NodeVisible),
	)
}

var keyNames = map[string]string{
	"Enter":      kb.Enter,
	"Tab":        kb.Tab,
	"Escape":     kb.Escape,
	"Backspace":  kb.Backspace,
	"Delete":     kb.Delete,
	"ArrowUp":    kb.ArrowUp,
	"ArrowDown":  kb.ArrowDown,
	"ArrowLeft":  kb.ArrowLeft,
	"ArrowRight": kb.ArrowRight,
	"Home":       kb.Home,
	"End":        kb.End,
	"PageUp":     kb.PageUp,
	"PageDown":   kb.PageDown,
}

// Press sends key to the element, or to the focused element when selector
// is empty. Named keys use their DOM names, anything else is typed as is.
func (p *page) Press(ctx context.Context, selector, key string) error {
	k, ok := keyNames[key]
	if !ok {
		k = key
	}
	if selector == "" {
		return p.run(ctx, "press "+key, chromedp.KeyEvent(k))
	}
	return p.run(ctx, "press "+key+" on "+selector, chromedp.SendKeys(selector, k, chromedp.NodeVisible))
}

func (p *page) Check(ctx context.Context, selector string, checked bool) error {
	var current bool
	if err := p.run(ctx, "check "+selector, chromedp.JavascriptAttribute(selector, "checked", &current, chromedp.NodeReady)); err != nil {
		return err
	}
	if current == checked {
		return nil
	}
	return p.run(ctx, "check "+selector, chromedp.Click(selector, chromedp.NodeVisible))
}

func (p *page) SelectOption(ctx context.Context, selector, value string) error {
	return p.run(ctx, "select "+selector,
		chromedp.SetValue(selector, value, chromedp.NodeVisible),
		chromedp.Evaluate(fmt.Sprintf(
			`document.querySelector(%s)?.dispatchEvent(new Event("change", {bubbles: true}))`, jsString(selector)), nil),
	)
}

func (p *page) Hover(ctx context.Context, selector string) error {
	var nodes []*cdp.Node
	return p.run(ctx, "hover "+selector,
		chromedp.ScrollIntoView(selector, chromedp.NodeVisible),
		chromedp.Nodes(selector, &nodes, chromedp.NodeVisible),
		chromedp.ActionFunc(func(ctx context.Context) error {
			if len(nodes) == 0 {
				return fmt.Errorf("element not found: %s", selector)
			}
			box, err := dom.GetBoxModel().WithNodeID(nodes[0].NodeID).Do(ctx)
			if err != nil {
				return err
			}
			x, y := center(box.Content)
			return input.DispatchMouseEvent(input.MouseMoved, x, y).Do(ctx)
		}),
	)
}

func center(q dom.Quad) (float64, float64) {
	var x, y float64
	n := len(q) / 2
	if n == 0 {
		return 0, 0
	}
	for i := 0; i < len(q); i += 2 {
		x += q[i]
		y += q[i+1]
	}
	return x / float64(n), y / float64(n)
}

func (p *page) Text(ctx context.Context, selector string) (string, error) {
	var text string
	err := p.run(ctx, "text "+selector, chromedp.Text(selector, &text, chromedp.NodeVisible))
	return text, err
}

func (p *page) InputValue(ctx context.Context, selector string) (string, error) {
	var value string
	err := p.run(ctx, "input value "+selector, chromedp.Value(selector, &value, chromedp.NodeReady))
	return value, err
}

func (p *page) Attribute(ctx context.Context, selector, name string) (string, bool, error) {
	var (
		value string
		ok    bool
	)
	err := p.run(ctx, "attribute "+name+" of "+selector,
		chromedp.AttributeValue(selector, name, &value, &ok, chromedp.NodeReady))
	return value, ok, err
}

// IsVisible does not wait: a missing element is simply not visible.
func (p *page) IsVisible(ctx context.Context, selector string) (bool, error) {
	var visible bool
	err := p.run(ctx, "is visible "+selector, chromedp.Evaluate(fmt.Sprintf(`(() => {
	const el = document.querySelector(%s);
	if (!el) return false;
	const style = getComputedStyle(el);
	const rect = el.getBoundingClientRect();
	return style.visibility !== "hidden" && style.display !== "none" && rect.width > 0 && rect.height > 0;
})()`, jsString(selector)), &visible))
	return visible, err
}

func (p *page) Count(ctx context.Context, selector string) (int, error) {
	var n int
	err := p.run(ctx, "count "+selector,
		chromedp.Evaluate(fmt.Sprintf(`document.querySelectorAll(%s).length`, jsString(selector)), &n))
	return n, err
}

func (p *page) WaitFor(ctx context.Context, selector string, state driver.WaitState) error {
	var action chromedp.Action
	switch state {
	case driver.StateHidden:
		action = chromedp.WaitNotVisible(selector)
	case driver.StateAttached:
		action = chromedp.WaitReady(selector)
	case driver.StateDetached:
		action = chromedp.WaitNotPresent(selector)
	default:
		action = chromedp.WaitVisible(selector)
	}
	return p.run(ctx, "wait for "+selector+" "+string(state), action)
}

// Evaluate returns the JSON value of expression; undefined becomes nil.
func (p *page) Evaluate(ctx context.Context, expression string) (any, error) {
	var result any
	err := p.run(ctx, "evaluate", chromedp.ActionFunc(func(ctx context.Context) error {
		obj, exc, err := runtime.Evaluate(expression).
			WithReturnByValue(true).
			WithAwaitPromise(true).
			Do(ctx)
		if err != nil {
			return err
		}
		if exc != nil {
			return exc
		}
		if obj == nil || obj.Type == runtime.TypeUndefined || len(obj.Value) == 0 {
			return nil
		}
		return json.Unmarshal([]byte(obj.Value), &result)
	}))
	return result, err
}

func (p *page) SetViewport(ctx context.Context, v driver.Viewport) error {
	return p.run(ctx, "set viewport "+v.String(), chromedp.EmulateViewport(int64(v.Width), int64(v.Height)))
}

func (p *page) Screenshot(ctx context.Context, opts driver.ScreenshotOptions) ([]byte, error) {
	var buf []byte
	action := chromedp.CaptureScreenshot(&buf)
	if opts.FullPage {
		// quality 100 keeps the PNG encoding
		action = chromedp.FullScreenshot(&buf, 100)
	}
	if err := p.run(ctx, "screenshot", action); err != nil {
		return nil, err
	}
	if len(buf) == 0 {
		return nil, errors.New("screenshot: empty image")
	}
	return buf, nil
}

func (p *page) OnConsole(fn func(driver.ConsoleMessage)) {
	p.mu.Lock()
	p.console = append(p.console, fn)
	p.mu.Unlock()
	p.listen()
}

func (p *page) HandleDialogs(accept bool) {
	p.mu.Lock()
	p.accept = &accept
	p.mu.Unlock()
	p.listen()
}

func (p *page) listen() {
	p.mu.Lock()
	if p.listening {
		p.mu.Unlock()
		return
	}
	p.listening = true
	p.mu.Unlock()

	chromedp.ListenTarget(p.ctx, func(ev interface{}) {
		switch ev := ev.(type) {
		case *runtime.EventConsoleAPICalled:
			msg := driver.ConsoleMessage{
				Type: string(ev.Type),
				Text: consoleText(ev.Args),
				Time: time.Now(),
			}
			if ev.StackTrace != nil && len(ev.StackTrace.CallFrames) > 0 {
				msg.URL = ev.StackTrace.CallFrames[0].URL
			}
			p.mu.Lock()
			handlers := append([]func(driver.ConsoleMessage){}, p.console...)
			p.mu.Unlock()
			for _, fn := range handlers {
				fn(msg)
			}
		case *cdppage.EventJavascriptDialogOpening:
			p.mu.Lock()
			accept := p.accept
			p.mu.Unlock()
			if accept == nil {
				return
			}
			// Event handlers must not block the target; answer asynchronously.
			go func(accept bool) {
				_ = chromedp.Run(p.ctx, cdppage.HandleJavaScriptDialog(accept))
			}(*accept)
		}
	})
}

func consoleText(args []*runtime.RemoteObject) string {
	parts := make([]string, 0, len(args))
	for _, arg := range args {
		switch {
		case len(arg.Value) > 0:
			var s string
			if err := json.Unmarshal([]byte(arg.Value), &s); err == nil {
				parts = append(parts, s)
			} else {
				parts = append(parts, string(arg.Value))
			}
		case arg.Description != "":
			parts = append(parts, arg.Description)
		}
	}
	return strings.Join(parts, " ")
}

func (p *page) VideoPath() string {
	return ""
}

// Close closes a secondary tab. The primary tab belongs to its context and is
// only marked closed; the context closes it.
func (p *page) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	if p.cancel == nil {
		return nil
	}
	err := chromedp.Cancel(p.ctx)
	p.cancel()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
