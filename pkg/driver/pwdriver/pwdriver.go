// Package pwdriver runs the harness on playwright-go. It supports chromium,
// firefox and webkit and can record videos.
package pwdriver

import (
	"context"
	"errors"
	"fmt"

	"github.com/playwright-community/playwright-go"

	"github.com/kidandcat/pagesuite/pkg/driver"
)

const Name = "playwright"

type Driver struct {
	// RunOptions is passed to playwright.Run; nil uses the library defaults.
	RunOptions *playwright.RunOptions
}

var _ driver.Driver = (*Driver)(nil)

func New() *Driver {
	return &Driver{}
}

// Install downloads the playwright driver and the named browsers.
func Install(browsers ...string) error {
	return playwright.Install(&playwright.RunOptions{Browsers: browsers})
}

func (d *Driver) Name() string {
	return Name
}

func (d *Driver) Capabilities() driver.Capabilities {
	return driver.Capabilities{
		Browsers: []string{"chromium", "firefox", "webkit"},
		Video:    true,
	}
}

func (d *Driver) Launch(ctx context.Context, opts driver.LaunchOptions) (driver.Browser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var runOpts []*playwright.RunOptions
	if d.RunOptions != nil {
		runOpts = append(runOpts, d.RunOptions)
	}
	pw, err := playwright.Run(runOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	name := opts.Browser
	if name == "" {
		name = "chromium"
	}

	var bt playwright.BrowserType
	switch name {
	case "chromium":
		bt = pw.Chromium
	case "firefox":
		bt = pw.Firefox
	case "webkit":
		bt = pw.WebKit
	default:
		_ = pw.Stop()
		return nil, fmt.Errorf("%w: %q", driver.ErrUnsupportedBrowser, name)
	}

	b, err := bt.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
		SlowMo:   playwright.Float(float64(opts.SlowMo.Milliseconds())),
	})
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("failed to launch %s: %w", name, err)
	}

	return &browser{pw: pw, b: b, name: name}, nil
}

type browser struct {
	pw   *playwright.Playwright
	b    playwright.Browser
	name string
}

func (b *browser) Name() string {
	return b.name
}

func (b *browser) Version() string {
	return b.b.Version()
}

func (b *browser) NewContext(ctx context.Context, opts driver.ContextOptions) (driver.Context, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ctxOpts := playwright.BrowserNewContextOptions{}
	if opts.Viewport.Width > 0 && opts.Viewport.Height > 0 {
		ctxOpts.Viewport = &playwright.Size{
			Width:  opts.Viewport.Width,
			Height: opts.Viewport.Height,
		}
	}
	if opts.VideoDir != "" {
		ctxOpts.RecordVideo = &playwright.RecordVideo{Dir: opts.VideoDir}
	}

	bc, err := b.b.NewContext(ctxOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}
	return &browserContext{bc: bc}, nil
}

func (b *browser) Close() error {
	return errors.Join(b.b.Close(), b.pw.Stop())
}

type browserContext struct {
	bc playwright.BrowserContext
}

func (c *browserContext) NewPage(ctx context.Context) (driver.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := c.bc.NewPage()
	if err != nil {
		return nil, fmt.Errorf("failed to create page: %w", err)
	}
	return &page{p: p}, nil
}

func (c *browserContext) Cookies(ctx context.Context) ([]driver.Cookie, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := c.bc.Cookies()
	if err != nil {
		return nil, err
	}
	cookies := make([]driver.Cookie, 0, len(raw))
	for _, ck := range raw {
		cookies = append(cookies, driver.Cookie{
			Name:   ck.Name,
			Value:  ck.Value,
			Domain: ck.Domain,
			Path:   ck.Path,
		})
	}
	return cookies, nil
}

func (c *browserContext) ClearCookies(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.bc.ClearCookies()
}

func (c *browserContext) Close() error {
	return c.bc.Close()
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, playwright.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return &driver.TimeoutError{Op: op, Err: err}
	}
	return fmt.Errorf("%s: %w", op, err)
}
