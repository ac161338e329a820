// Package drivertest provides an in-memory driver.Driver for unit tests. It
// records every lifecycle event so tests can assert ordering.
package drivertest

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strings"
	"sync"
	"time"

	"github.com/kidandcat/pagesuite/pkg/driver"
)

// Element is what the fake page knows about one selector.
type Element struct {
	Text    string
	Value   string
	Hidden  bool
	Checked bool
	Attrs   map[string]string
	// Count is the number of matches; 0 means one.
	Count int
	// Navigate makes a click on the element load this URL.
	Navigate string
	// Console makes a click on the element log this console error.
	Console string
}

type Driver struct {
	DriverName string
	Browsers   []string
	Video      bool

	LaunchErr     error
	NewContextErr error
	NewPageErr    error
	ScreenshotErr error
	// ScreenshotGate, when set, holds every Screenshot until it is closed or
	// the call's context ends.
	ScreenshotGate chan struct{}
	// Image is returned by Screenshot; nil yields a small generated PNG.
	Image []byte

	// Elements are copied into every new page.
	Elements map[string]Element
	// Titles maps a URL to its document title.
	Titles map[string]string

	rec Recorder

	mu       sync.Mutex
	browsers []*Browser
	contexts []*Context
	pages    []*Page
}

var _ driver.Driver = (*Driver)(nil)

func New() *Driver {
	return &Driver{
		Elements: map[string]Element{},
		Titles:   map[string]string{},
	}
}

func (d *Driver) Name() string {
	if d.DriverName == "" {
		return "fake"
	}
	return d.DriverName
}

func (d *Driver) Capabilities() driver.Capabilities {
	browsers := d.Browsers
	if len(browsers) == 0 {
		browsers = []string{"chromium", "firefox", "webkit"}
	}
	return driver.Capabilities{Browsers: browsers, Video: d.Video}
}

// Events returns the recorded lifecycle events in order.
func (d *Driver) Events() []string {
	return d.rec.Events()
}

// Pages returns every page created so far.
func (d *Driver) Pages() []*Page {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*Page(nil), d.pages...)
}

// Contexts returns every context created so far.
func (d *Driver) Contexts() []*Context {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*Context(nil), d.contexts...)
}

// Launched returns every browser launched so far.
func (d *Driver) Launched() []*Browser {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*Browser(nil), d.browsers...)
}

func (d *Driver) Launch(ctx context.Context, opts driver.LaunchOptions) (driver.Browser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name := opts.Browser
	if name == "" {
		name = "chromium"
	}
	if !d.Capabilities().Supports(name) {
		return nil, fmt.Errorf("%w: %q", driver.ErrUnsupportedBrowser, name)
	}
	if d.LaunchErr != nil {
		d.rec.add("launch %s failed", name)
		return nil, d.LaunchErr
	}

	d.mu.Lock()
	b := &Browser{d: d, name: name, opts: opts, id: len(d.browsers) + 1}
	d.browsers = append(d.browsers, b)
	d.mu.Unlock()

	d.rec.add("launch %s", name)
	return b, nil
}

type Browser struct {
	d    *Driver
	id   int
	name string
	opts driver.LaunchOptions

	mu     sync.Mutex
	closed bool
}

func (b *Browser) Name() string    { return b.name }
func (b *Browser) Version() string { return "fake-1.0" }

// Options returns the launch options the browser was started with.
func (b *Browser) Options() driver.LaunchOptions { return b.opts }

func (b *Browser) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

func (b *Browser) NewContext(ctx context.Context, opts driver.ContextOptions) (driver.Context, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if b.Closed() {
		return nil, fmt.Errorf("new context: %w", driver.ErrClosed)
	}
	if b.d.NewContextErr != nil {
		return nil, b.d.NewContextErr
	}

	b.d.mu.Lock()
	c := &Context{
		b:       b,
		id:      len(b.d.contexts) + 1,
		opts:    opts,
		cookies: map[string]string{},
	}
	b.d.contexts = append(b.d.contexts, c)
	b.d.mu.Unlock()

	b.d.rec.add("context %d open", c.id)
	return c, nil
}

func (b *Browser) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()
	b.d.rec.add("browser close")
	return nil
}

type Context struct {
	b    *Browser
	id   int
	opts driver.ContextOptions

	mu      sync.Mutex
	closed  bool
	cookies map[string]string
}

func (c *Context) ID() int { return c.id }

// Options returns the options the context was created with.
func (c *Context) Options() driver.ContextOptions { return c.opts }

func (c *Context) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Context) NewPage(ctx context.Context) (driver.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.Closed() {
		return nil, fmt.Errorf("new page: %w", driver.ErrClosed)
	}
	d := c.b.d
	if d.NewPageErr != nil {
		return nil, d.NewPageErr
	}

	elements := make(map[string]Element, len(d.Elements))
	for k, v := range d.Elements {
		elements[k] = v
	}

	d.mu.Lock()
	p := &Page{
		c:        c,
		id:       len(d.pages) + 1,
		url:      "about:blank",
		elements: elements,
		timeout:  30 * time.Second,
		viewport: c.opts.Viewport,
	}
	d.pages = append(d.pages, p)
	d.mu.Unlock()

	d.rec.add("page %d open", p.id)
	return p, nil
}

func (c *Context) Cookies(ctx context.Context) ([]driver.Cookie, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, fmt.Errorf("cookies: %w", driver.ErrClosed)
	}
	cookies := make([]driver.Cookie, 0, len(c.cookies))
	for name, value := range c.cookies {
		cookies = append(cookies, driver.Cookie{Name: name, Value: value, Path: "/"})
	}
	return cookies, nil
}

func (c *Context) ClearCookies(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cookies = map[string]string{}
	return nil
}

func (c *Context) setCookie(raw string) {
	name, value, _ := strings.Cut(strings.SplitN(raw, ";", 2)[0], "=")
	c.mu.Lock()
	c.cookies[strings.TrimSpace(name)] = strings.TrimSpace(value)
	c.mu.Unlock()
}

func (c *Context) cookieString() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	parts := make([]string, 0, len(c.cookies))
	for name, value := range c.cookies {
		parts = append(parts, name+"="+value)
	}
	return strings.Join(parts, "; ")
}

func (c *Context) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()
	c.b.d.rec.add("context %d close", c.id)
	return nil
}

// Recorder is a concurrency safe event log.
type Recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *Recorder) add(format string, args ...any) {
	r.mu.Lock()
	r.events = append(r.events, fmt.Sprintf(format, args...))
	r.mu.Unlock()
}

func (r *Recorder) Events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

// PNG returns a w×h opaque PNG filled with c.
func PNG(w, h int, c color.Color) []byte {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	_ = png.Encode(&buf, img)
	return buf.Bytes()
}
