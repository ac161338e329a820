// Package cdpdriver runs the harness on chromedp. Only Chromium is supported
// and pages are not recorded.
package cdpdriver

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"

	"github.com/kidandcat/pagesuite/pkg/driver"
)

const Name = "chromedp"

type Driver struct {
	// ExecPath overrides the Chrome binary lookup.
	ExecPath string
	// Flags are appended to the default allocator flags.
	Flags map[string]any
}

var _ driver.Driver = (*Driver)(nil)

func New() *Driver {
	return &Driver{}
}

func (d *Driver) Name() string {
	return Name
}

func (d *Driver) Capabilities() driver.Capabilities {
	return driver.Capabilities{Browsers: []string{"chromium"}}
}

func (d *Driver) Launch(ctx context.Context, opts driver.LaunchOptions) (driver.Browser, error) {
	if opts.Browser != "" && opts.Browser != "chromium" {
		return nil, fmt.Errorf("%w: %q on %s", driver.ErrUnsupportedBrowser, opts.Browser, Name)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", opts.Headless),
		chromedp.Flag("no-sandbox", true),
	)
	if d.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(d.ExecPath))
	}
	for name, value := range d.Flags {
		allocOpts = append(allocOpts, chromedp.Flag(name, value))
	}

	// The browser outlives ctx, so it hangs off the background context.
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	var product string
	err := allocate(ctx, browserCtx, browserCancel, chromedp.ActionFunc(func(ctx context.Context) error {
		_, p, _, _, _, err := browser.GetVersion().Do(ctx)
		product = p
		return err
	}))
	if err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("failed to launch chromium: %w", err)
	}

	return &cdpBrowser{
		ctx:         browserCtx,
		cancel:      browserCancel,
		allocCancel: allocCancel,
		version:     product,
		slowMo:      opts.SlowMo,
	}, nil
}

type cdpBrowser struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	version     string
	slowMo      time.Duration
}

func (b *cdpBrowser) Name() string {
	return "chromium"
}

func (b *cdpBrowser) Version() string {
	return b.version
}

func (b *cdpBrowser) NewContext(ctx context.Context, opts driver.ContextOptions) (driver.Context, error) {
	tabCtx, cancel := chromedp.NewContext(b.ctx, chromedp.WithNewBrowserContext())
	if err := allocate(ctx, tabCtx, cancel); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}
	return &cdpContext{
		ctx:      tabCtx,
		cancel:   cancel,
		viewport: opts.Viewport,
		slowMo:   b.slowMo,
	}, nil
}

func (b *cdpBrowser) Close() error {
	err := chromedp.Cancel(b.ctx)
	b.allocCancel()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

type cdpContext struct {
	ctx      context.Context
	cancel   context.CancelFunc
	viewport driver.Viewport
	slowMo   time.Duration

	mu          sync.Mutex
	primaryUsed bool
	closed      bool
}

// NewPage hands out the context's own tab first; later pages open new tabs
// in the same browser context.
func (c *cdpContext) NewPage(ctx context.Context) (driver.Page, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, fmt.Errorf("new page: %w", driver.ErrClosed)
	}
	primary := !c.primaryUsed
	c.primaryUsed = true
	c.mu.Unlock()

	tabCtx, cancel := c.ctx, context.CancelFunc(nil)
	if !primary {
		tabCtx, cancel = chromedp.NewContext(c.ctx)
		if err := allocate(ctx, tabCtx, cancel); err != nil {
			cancel()
			return nil, fmt.Errorf("failed to create page: %w", err)
		}
	}

	p := newPage(tabCtx, cancel, c.slowMo)
	if c.viewport.Width > 0 && c.viewport.Height > 0 {
		if err := p.SetViewport(ctx, c.viewport); err != nil {
			_ = p.Close()
			return nil, err
		}
	}
	return p, nil
}

func (c *cdpContext) Cookies(ctx context.Context) ([]driver.Cookie, error) {
	var cookies []driver.Cookie
	err := c.browserCall(ctx, func(ctx context.Context, id cdp.BrowserContextID) error {
		raw, err := storage.GetCookies().WithBrowserContextID(id).Do(ctx)
		if err != nil {
			return err
		}
		cookies = make([]driver.Cookie, 0, len(raw))
		for _, ck := range raw {
			cookies = append(cookies, driver.Cookie{
				Name:   ck.Name,
				Value:  ck.Value,
				Domain: ck.Domain,
				Path:   ck.Path,
			})
		}
		return nil
	})
	return cookies, wrap("cookies", err)
}

func (c *cdpContext) ClearCookies(ctx context.Context) error {
	err := c.browserCall(ctx, func(ctx context.Context, id cdp.BrowserContextID) error {
		return storage.ClearCookies().WithBrowserContextID(id).Do(ctx)
	})
	return wrap("clear cookies", err)
}

// browserCall runs fn against the browser target, scoped to this context's
// browser context id.
func (c *cdpContext) browserCall(ctx context.Context, fn func(context.Context, cdp.BrowserContextID) error) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return driver.ErrClosed
	}

	cc := chromedp.FromContext(c.ctx)
	if cc == nil || cc.Browser == nil {
		return driver.ErrClosed
	}

	callCtx, cancel := context.WithTimeout(ctx, driver.Deadline(ctx, 30*time.Second))
	defer cancel()
	return fn(cdp.WithExecutor(callCtx, cc.Browser), cc.BrowserContextID)
}

func (c *cdpContext) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	err := chromedp.Cancel(c.ctx)
	c.cancel()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// allocate performs the first Run on target, which starts the browser or
// opens the tab. It must not use a derived context: chromedp binds the
// allocation to it. Cancelling ctx tears the target down instead.
func allocate(ctx, target context.Context, cancel context.CancelFunc, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	stop := context.AfterFunc(ctx, cancel)
	err := chromedp.Run(target, actions...)
	if !stop() {
		return ctx.Err()
	}
	return err
}

// runBounded runs actions on target while honouring both the caller's ctx and
// an optional timeout. target stays usable after a timed-out call.
func runBounded(ctx, target context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	var (
		runCtx context.Context
		cancel context.CancelFunc
	)
	if d := driver.Deadline(ctx, timeout); d > 0 {
		runCtx, cancel = context.WithTimeout(target, d)
	} else {
		runCtx, cancel = context.WithCancel(target)
	}
	defer cancel()

	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil && errors.Is(err, context.Canceled) {
		return ctx.Err()
	}
	return err
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &driver.TimeoutError{Op: op, Err: err}
	}
	return fmt.Errorf("%s: %w", op, err)
}
