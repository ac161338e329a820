package pwdriver

import (
	"context"
	"regexp"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/kidandcat/pagesuite/pkg/driver"
)

type page struct {
	p       playwright.Page
	timeout time.Duration
}

var _ driver.Page = (*page)(nil)

func (p *page) SetDefaultTimeout(d time.Duration) {
	p.timeout = d
	ms := float64(d.Milliseconds())
	p.p.SetDefaultTimeout(ms)
	p.p.SetDefaultNavigationTimeout(ms)
}

// callTimeout returns the per-call timeout option. nil keeps the page default.
func (p *page) callTimeout(ctx context.Context) *float64 {
	if _, ok := ctx.Deadline(); !ok {
		return nil
	}
	return playwright.Float(float64(driver.Deadline(ctx, p.timeout).Milliseconds()))
}

func (p *page) first(selector string) playwright.Locator {
	return p.p.Locator(selector).First()
}

func (p *page) Goto(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return wrap("goto", err)
	}
	_, err := p.p.Goto(url, playwright.PageGotoOptions{Timeout: p.callTimeout(ctx)})
	return wrap("goto "+url, err)
}

func (p *page) URL(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", wrap("url", err)
	}
	return p.p.URL(), nil
}

func (p *page) Title(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", wrap("title", err)
	}
	title, err := p.p.Title()
	return title, wrap("title", err)
}

// GoBack returns nil without navigating when there is no history entry.
func (p *page) GoBack(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return wrap("go back", err)
	}
	_, err := p.p.GoBack(playwright.PageGoBackOptions{Timeout: p.callTimeout(ctx)})
	return wrap("go back", err)
}

func (p *page) Reload(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return wrap("reload", err)
	}
	_, err := p.p.Reload(playwright.PageReloadOptions{Timeout: p.callTimeout(ctx)})
	return wrap("reload", err)
}

func (p *page) WaitForURL(ctx context.Context, substr string) error {
	if err := ctx.Err(); err != nil {
		return wrap("wait for url", err)
	}
	err := p.p.WaitForURL(regexp.MustCompile(regexp.QuoteMeta(substr)), playwright.PageWaitForURLOptions{
		Timeout: p.callTimeout(ctx),
	})
	return wrap("wait for url "+substr, err)
}

func (p *page) WaitForLoad(ctx context.Context, state driver.LoadState) error {
	if err := ctx.Err(); err != nil {
		return wrap("wait for load", err)
	}
	st := playwright.LoadStateLoad
	switch state {
	case driver.LoadDOMContentLoaded:
		st = playwright.LoadStateDomcontentloaded
	case driver.LoadNetworkIdle:
		st = playwright.LoadStateNetworkidle
	}
	err := p.p.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State:   st,
		Timeout: p.callTimeout(ctx),
	})
	return wrap("wait for load "+string(state), err)
}

func (p *page) Click(ctx context.Context, selector string) error {
	if err := ctx.Err(); err != nil {
		return wrap("click", err)
	}
	err := p.first(selector).Click(playwright.LocatorClickOptions{Timeout: p.callTimeout(ctx)})
	return wrap("click "+selector, err)
}

func (p *page) Fill(ctx context.Context, selector, value string) error {
	if err := ctx.Err(); err != nil {
		return wrap("fill", err)
	}
	err := p.first(selector).Fill(value, playwright.LocatorFillOptions{Timeout: p.callTimeout(ctx)})
	return wrap("fill "+selector, err)
}

// Press sends key to the element, or to the focused element when selector
// is empty.
func (p *page) Press(ctx context.Context, selector, key string) error {
	if err := ctx.Err(); err != nil {
		return wrap("press", err)
	}
	if selector == "" {
		return wrap("press "+key, p.p.Keyboard().Press(key))
	}
	err := p.first(selector).Press(key, playwright.LocatorPressOptions{Timeout: p.callTimeout(ctx)})
	return wrap("press "+key+" on "+selector, err)
}

func (p *page) Check(ctx context.Context, selector string, checked bool) error {
	if err := ctx.Err(); err != nil {
		return wrap("check", err)
	}
	if checked {
		err := p.first(selector).Check(playwright.LocatorCheckOptions{Timeout: p.callTimeout(ctx)})
		return wrap("check "+selector, err)
	}
	err := p.first(selector).Uncheck(playwright.LocatorUncheckOptions{Timeout: p.callTimeout(ctx)})
	return wrap("uncheck "+selector, err)
}

func (p *page) SelectOption(ctx context.Context, selector, value string) error {
	if err := ctx.Err(); err != nil {
		return wrap("select", err)
	}
	_, err := p.first(selector).SelectOption(playwright.SelectOptionValues{
		Values: &[]string{value},
	}, playwright.LocatorSelectOptionOptions{Timeout: p.callTimeout(ctx)})
	return wrap("select "+selector, err)
}

func (p *page) Hover(ctx context.Context, selector string) error {
	if err := ctx.Err(); err != nil {
		return wrap("hover", err)
	}
	err := p.first(selector).Hover(playwright.LocatorHoverOptions{Timeout: p.callTimeout(ctx)})
	return wrap("hover "+selector, err)
}

func (p *page) Text(ctx context.Context, selector string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", wrap("text", err)
	}
	text, err := p.first(selector).InnerText(playwright.LocatorInnerTextOptions{Timeout: p.callTimeout(ctx)})
	return text, wrap("text "+selector, err)
}

func (p *page) InputValue(ctx context.Context, selector string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", wrap("input value", err)
	}
	v, err := p.first(selector).InputValue(playwright.LocatorInputValueOptions{Timeout: p.callTimeout(ctx)})
	return v, wrap("input value "+selector, err)
}

func (p *page) Attribute(ctx context.Context, selector, name string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, wrap("attribute", err)
	}
	v, err := p.first(selector).Evaluate(`(el, name) => el.getAttribute(name)`, name,
		playwright.LocatorEvaluateOptions{Timeout: p.callTimeout(ctx)})
	if err != nil {
		return "", false, wrap("attribute "+name+" of "+selector, err)
	}
	s, ok := v.(string)
	return s, ok, nil
}

func (p *page) IsVisible(ctx context.Context, selector string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, wrap("is visible", err)
	}
	visible, err := p.first(selector).IsVisible()
	return visible, wrap("is visible "+selector, err)
}

func (p *page) Count(ctx context.Context, selector string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, wrap("count", err)
	}
	n, err := p.p.Locator(selector).Count()
	return n, wrap("count "+selector, err)
}

func (p *page) WaitFor(ctx context.Context, selector string, state driver.WaitState) error {
	if err := ctx.Err(); err != nil {
		return wrap("wait for", err)
	}
	st := playwright.WaitForSelectorStateVisible
	switch state {
	case driver.StateHidden:
		st = playwright.WaitForSelectorStateHidden
	case driver.StateAttached:
		st = playwright.WaitForSelectorStateAttached
	case driver.StateDetached:
		st = playwright.WaitForSelectorStateDetached
	}
	err := p.first(selector).WaitFor(playwright.LocatorWaitForOptions{
		State:   st,
		Timeout: p.callTimeout(ctx),
	})
	return wrap("wait for "+selector+" "+string(state), err)
}

func (p *page) Evaluate(ctx context.Context, expression string) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, wrap("evaluate", err)
	}
	v, err := p.p.Evaluate(expression)
	return v, wrap("evaluate", err)
}

func (p *page) SetViewport(ctx context.Context, v driver.Viewport) error {
	if err := ctx.Err(); err != nil {
		return wrap("set viewport", err)
	}
	return wrap("set viewport "+v.String(), p.p.SetViewportSize(v.Width, v.Height))
}

func (p *page) Screenshot(ctx context.Context, opts driver.ScreenshotOptions) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, wrap("screenshot", err)
	}
	buf, err := p.p.Screenshot(playwright.PageScreenshotOptions{
		FullPage: playwright.Bool(opts.FullPage),
		Timeout:  p.callTimeout(ctx),
	})
	return buf, wrap("screenshot", err)
}

func (p *page) OnConsole(fn func(driver.ConsoleMessage)) {
	p.p.OnConsole(func(msg playwright.ConsoleMessage) {
		fn(driver.ConsoleMessage{
			Type: msg.Type(),
			Text: msg.Text(),
			URL:  p.p.URL(),
			Time: time.Now(),
		})
	})
}

func (p *page) HandleDialogs(accept bool) {
	p.p.OnDialog(func(d playwright.Dialog) {
		if accept {
			_ = d.Accept()
			return
		}
		_ = d.Dismiss()
	})
}

func (p *page) VideoPath() string {
	v := p.p.Video()
	if v == nil {
		return ""
	}
	path, err := v.Path()
	if err != nil {
		return ""
	}
	return path
}

func (p *page) Close() error {
	return p.p.Close()
}
