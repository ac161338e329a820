package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/kidandcat/pagesuite/pkg/driver"
	"github.com/kidandcat/pagesuite/pkg/harness"
)

// screenshot saves the page into the screenshot directory and returns the
// path. Without a name, the file is named after the test, numbered from the
// second screenshot on.
func (e *executor) screenshot(ctx context.Context, name string) (string, error) {
	dir := e.r.settings.ScreenshotDir
	filename := e.filename("screenshot", name)

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create screenshot directory: %w", err)
	}
	buf, err := e.page.Screenshot(ctx, driver.ScreenshotOptions{FullPage: e.r.settings.FullPageScreenshots})
	if err != nil {
		return "", fmt.Errorf("failed to take screenshot: %w", err)
	}
	path := filepath.Join(dir, filename)
	if err := os.WriteFile(path, buf, 0644); err != nil {
		return "", fmt.Errorf("failed to save screenshot: %w", err)
	}
	return path, nil
}

// snapshot compares a full page screenshot with its baseline. A missing
// baseline is written; so is every baseline when UpdateScreenshots is set.
func (e *executor) snapshot(ctx context.Context, name string) error {
	s := e.r.settings
	path := filepath.Join(s.BaselineDir, e.filename("snapshot", name))

	if err := os.MkdirAll(s.BaselineDir, 0755); err != nil {
		return fmt.Errorf("failed to create baseline directory: %w", err)
	}

	screenshot, err := e.page.Screenshot(ctx, driver.ScreenshotOptions{FullPage: true})
	if err != nil {
		return fmt.Errorf("failed to take screenshot: %w", err)
	}

	baseline, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist) || (err == nil && s.UpdateScreenshots):
		if err := os.WriteFile(path, screenshot, 0644); err != nil {
			return fmt.Errorf("failed to save baseline: %w", err)
		}
		e.r.logger.Info("baseline saved", zap.String("test", e.test.Name), zap.String("path", path))
		return nil
	case err != nil:
		return fmt.Errorf("failed to read existing screenshot: %w", err)
	}

	diff, err := compareImages(baseline, screenshot)
	if err != nil {
		return fmt.Errorf("failed to compare screenshots: %w", err)
	}
	if diff > s.ScreenshotThreshold {
		actual := strings.TrimSuffix(path, ".png") + ".actual.png"
		if err := os.WriteFile(actual, screenshot, 0644); err != nil {
			e.r.logger.Warn("failed to save current screenshot", zap.String("path", actual), zap.Error(err))
		}
		return &SnapshotError{Baseline: path, Actual: actual, Ratio: diff, Threshold: s.ScreenshotThreshold}
	}
	return nil
}

// filename returns name with a .png extension, or a numbered name derived
// from the test when name is empty.
func (e *executor) filename(kind, name string) string {
	if name != "" {
		if filepath.Ext(name) == "" {
			name += ".png"
		}
		return harness.SanitizeName(name)
	}

	identity := e.test.Name
	if len(e.r.settings.Browsers) > 1 {
		identity += "_" + e.browser
	}
	safeTestName := harness.SanitizeName(identity)

	key := kind + "\x00" + identity
	e.r.mu.Lock()
	e.r.screenshotCounter[key]++
	counter := e.r.screenshotCounter[key]
	e.r.mu.Unlock()

	if counter == 1 {
		return safeTestName + ".png"
	}
	return fmt.Sprintf("%s_%d.png", safeTestName, counter)
}

// compareImages returns the share of pixels that differ. Images of different
// sizes differ completely.
func compareImages(baseline, current []byte) (float64, error) {
	baselineImg, err := png.Decode(bytes.NewReader(baseline))
	if err != nil {
		return 0, err
	}

	currentImg, err := png.Decode(bytes.NewReader(current))
	if err != nil {
		return 0, err
	}

	bounds := baselineImg.Bounds()
	if bounds != currentImg.Bounds() {
		return 1.0, nil
	}

	totalPixels := bounds.Dx() * bounds.Dy()
	if totalPixels == 0 {
		return 0, nil
	}
	differentPixels := 0

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			if !colorsEqual(baselineImg.At(x, y), currentImg.At(x, y)) {
				differentPixels++
			}
		}
	}

	return float64(differentPixels) / float64(totalPixels), nil
}

func colorsEqual(c1, c2 color.Color) bool {
	r1, g1, b1, a1 := c1.RGBA()
	r2, g2, b2, a2 := c2.RGBA()
	return r1 == r2 && g1 == g2 && b1 == b2 && a1 == a2
}
