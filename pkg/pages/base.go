// Package pages holds page objects: the selectors and flows of the sites
// under test, written against driver.Page so they run on either engine.
package pages

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kidandcat/pagesuite/pkg/driver"
)

// BasePage carries the page and the helpers every page object uses.
type BasePage struct {
	Page    driver.Page
	BaseURL string
}

func (p *BasePage) Navigate(ctx context.Context, url string) error {
	return p.Page.Goto(ctx, url)
}

// Open navigates to path below the base URL.
func (p *BasePage) Open(ctx context.Context, path string) error {
	return p.Navigate(ctx, join(p.BaseURL, path))
}

func (p *BasePage) Title(ctx context.Context) (string, error) {
	return p.Page.Title(ctx)
}

func (p *BasePage) URL(ctx context.Context) (string, error) {
	return p.Page.URL(ctx)
}

// WaitForURL waits until the URL contains fragment.
func (p *BasePage) WaitForURL(ctx context.Context, fragment string) error {
	return p.Page.WaitForURL(ctx, fragment)
}

func (p *BasePage) Click(ctx context.Context, selector string) error {
	return p.Page.Click(ctx, selector)
}

func (p *BasePage) Fill(ctx context.Context, selector, text string) error {
	return p.Page.Fill(ctx, selector, text)
}

func (p *BasePage) IsVisible(ctx context.Context, selector string) (bool, error) {
	return p.Page.IsVisible(ctx, selector)
}

// AnyVisible reports whether at least one of selectors is visible.
func (p *BasePage) AnyVisible(ctx context.Context, selectors ...string) (bool, error) {
	for _, sel := range selectors {
		ok, err := p.Page.IsVisible(ctx, sel)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// VisibleText returns the trimmed text of selector, "" when it is not shown.
func (p *BasePage) VisibleText(ctx context.Context, selector string) (string, error) {
	ok, err := p.Page.IsVisible(ctx, selector)
	if err != nil || !ok {
		return "", err
	}
	text, err := p.Page.Text(ctx, selector)
	return strings.TrimSpace(text), err
}

// Screenshot writes a full page screenshot to path.
func (p *BasePage) Screenshot(ctx context.Context, path string) error {
	buf, err := p.Page.Screenshot(ctx, driver.ScreenshotOptions{FullPage: true})
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, buf, 0644)
}

// pause waits for d or until ctx is done.
func pause(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func join(base, path string) string {
	if path == "" {
		return base
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}
