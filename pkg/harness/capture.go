package harness

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kidandcat/pagesuite/pkg/driver"
)

const (
	timestampLayout       = "20060102_150405"
	defaultCaptureTimeout = 5 * time.Second
	maxNameCollisions     = 1000
)

// CapturePolicy decides whether a finished test gets a screenshot and where
// it goes.
type CapturePolicy struct {
	Enabled  bool
	Dir      string
	FullPage bool
	Timeout  time.Duration
	Now      func() time.Time
}

// ShouldCapture reports whether a test with outcome o gets an artifact.
func (p CapturePolicy) ShouldCapture(o Outcome) bool {
	return p.Enabled && o == Failed
}

// Capture writes a screenshot of page to Dir and returns its path. It runs on
// its own bounded context so an expired test deadline does not prevent it.
func (p CapturePolicy) Capture(ctx context.Context, page driver.Page, identity string) (string, error) {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = defaultCaptureTimeout
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	if err := os.MkdirAll(p.Dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create screenshot directory: %w", err)
	}

	buf, err := page.Screenshot(ctx, driver.ScreenshotOptions{FullPage: p.FullPage})
	if err != nil {
		return "", fmt.Errorf("failed to take screenshot: %w", err)
	}
	if len(buf) == 0 {
		return "", ErrEmptyScreenshot
	}

	now := time.Now
	if p.Now != nil {
		now = p.Now
	}
	base := SanitizeName(identity) + "_" + now().Format(timestampLayout)
	return writeExclusive(p.Dir, base, ".png", buf)
}

var nameReplacer = strings.NewReplacer(
	" ", "_",
	"/", "_",
	"\\", "_",
	":", "_",
	"*", "_",
	"?", "_",
	"\"", "_",
	"<", "_",
	">", "_",
	"|", "_",
)

// SanitizeName turns a test identity into a file name component.
func SanitizeName(name string) string {
	name = nameReplacer.Replace(strings.TrimSpace(name))
	if name == "" {
		return "test"
	}
	return name
}

// writeExclusive creates dir/base+ext, adding _2, _3 ... when the name is
// taken. Existing files are never overwritten.
func writeExclusive(dir, base, ext string, data []byte) (string, error) {
	for i := 1; i <= maxNameCollisions; i++ {
		name := base + ext
		if i > 1 {
			name = fmt.Sprintf("%s_%d%s", base, i, ext)
		}
		path := filepath.Join(dir, name)

		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("failed to save screenshot: %w", err)
		}

		_, werr := f.Write(data)
		if err := errors.Join(werr, f.Close()); err != nil {
			_ = os.Remove(path)
			return "", fmt.Errorf("failed to save screenshot: %w", err)
		}
		return path, nil
	}
	return "", fmt.Errorf("failed to save screenshot: too many files named %s in %s", base, dir)
}
