// Package driver defines the browser automation surface the harness and the
// page objects are written against. Engines live in sub-packages.
package driver

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrTimeout is matched by every error caused by an expired action or
	// navigation timeout, whichever engine produced it.
	ErrTimeout = errors.New("timeout")

	// ErrUnsupportedBrowser is returned by Launch for an engine/browser pair
	// the driver cannot run.
	ErrUnsupportedBrowser = errors.New("unsupported browser")

	// ErrClosed is returned by calls on a page or context that was closed.
	ErrClosed = errors.New("target closed")
)

// IsTimeout reports whether err was caused by an expired timeout.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded)
}

// TimeoutError wraps an engine error so that errors.Is(err, ErrTimeout) holds
// while the engine message stays intact.
type TimeoutError struct {
	Op  string
	Err error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: timeout: %v", e.Op, e.Err)
}

func (e *TimeoutError) Unwrap() []error {
	return []error{ErrTimeout, e.Err}
}

// Driver launches browsers of one automation engine.
type Driver interface {
	Name() string
	Capabilities() Capabilities
	Launch(ctx context.Context, opts LaunchOptions) (Browser, error)
}

type Capabilities struct {
	Browsers []string
	Video    bool
}

// Supports reports whether the driver can launch the named browser.
func (c Capabilities) Supports(browser string) bool {
	for _, b := range c.Browsers {
		if b == browser {
			return true
		}
	}
	return false
}

type LaunchOptions struct {
	Browser  string
	Headless bool
	SlowMo   time.Duration
}

// Browser is a running browser process.
type Browser interface {
	Name() string
	Version() string
	NewContext(ctx context.Context, opts ContextOptions) (Context, error)
	Close() error
}

type Viewport struct {
	Width  int
	Height int
}

func (v Viewport) String() string {
	return fmt.Sprintf("%dx%d", v.Width, v.Height)
}

type ContextOptions struct {
	Viewport Viewport
	// VideoDir enables video recording into the directory when non-empty.
	VideoDir string
}

// Context is an isolated browsing environment: cookies, storage and cache
// are private to it.
type Context interface {
	NewPage(ctx context.Context) (Page, error)
	Cookies(ctx context.Context) ([]Cookie, error)
	ClearCookies(ctx context.Context) error
	Close() error
}

type Cookie struct {
	Name   string
	Value  string
	Domain string
	Path   string
}

type ConsoleMessage struct {
	Type string
	Text string
	URL  string
	Time time.Time
}

type WaitState string

const (
	StateVisible  WaitState = "visible"
	StateHidden   WaitState = "hidden"
	StateAttached WaitState = "attached"
	StateDetached WaitState = "detached"
)

type LoadState string

const (
	LoadDOMContentLoaded LoadState = "domcontentloaded"
	LoadLoad             LoadState = "load"
	LoadNetworkIdle      LoadState = "networkidle"
)

type ScreenshotOptions struct {
	FullPage bool
}

// Page is a single browsable surface. Blocking calls are bounded by the
// default timeout, or by the deadline of ctx when it is earlier.
type Page interface {
	SetDefaultTimeout(d time.Duration)

	Goto(ctx context.Context, url string) error
	URL(ctx context.Context) (string, error)
	Title(ctx context.Context) (string, error)
	GoBack(ctx context.Context) error
	Reload(ctx context.Context) error
	WaitForURL(ctx context.Context, substr string) error
	WaitForLoad(ctx context.Context, state LoadState) error

	Click(ctx context.Context, selector string) error
	Fill(ctx context.Context, selector, value string) error
	Press(ctx context.Context, selector, key string) error
	Check(ctx context.Context, selector string, checked bool) error
	SelectOption(ctx context.Context, selector, value string) error
	Hover(ctx context.Context, selector string) error

	Text(ctx context.Context, selector string) (string, error)
	InputValue(ctx context.Context, selector string) (string, error)
	Attribute(ctx context.Context, selector, name string) (string, bool, error)
	IsVisible(ctx context.Context, selector string) (bool, error)
	Count(ctx context.Context, selector string) (int, error)
	WaitFor(ctx context.Context, selector string, state WaitState) error

	Evaluate(ctx context.Context, expression string) (any, error)
	SetViewport(ctx context.Context, v Viewport) error
	Screenshot(ctx context.Context, opts ScreenshotOptions) ([]byte, error)

	OnConsole(fn func(ConsoleMessage))
	HandleDialogs(accept bool)

	// VideoPath is the file the page video is written to once its context
	// closes, or "" when the page is not recorded.
	VideoPath() string
	Close() error
}

// Deadline returns the timeout left for a call: def, cut short by the
// deadline of ctx when that comes first. def <= 0 means no default.
func Deadline(ctx context.Context, def time.Duration) time.Duration {
	dl, ok := ctx.Deadline()
	if !ok {
		return def
	}
	left := time.Until(dl)
	if left <= 0 {
		return time.Millisecond
	}
	if def > 0 && def < left {
		return def
	}
	return left
}
