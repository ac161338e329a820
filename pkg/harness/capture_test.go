package harness

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kidandcat/pagesuite/pkg/driver"
	"github.com/kidandcat/pagesuite/pkg/driver/drivertest"
)

func fakePage(t *testing.T) driver.Page {
	t.Helper()
	ctx := context.Background()
	b, err := drivertest.New().Launch(ctx, driver.LaunchOptions{})
	require.NoError(t, err)
	c, err := b.NewContext(ctx, driver.ContextOptions{})
	require.NoError(t, err)
	p, err := c.NewPage(ctx)
	require.NoError(t, err)
	return p
}

func TestCapturePolicyShouldCapture(t *testing.T) {
	on := CapturePolicy{Enabled: true}
	off := CapturePolicy{}

	assert.True(t, on.ShouldCapture(Failed))
	for _, o := range []Outcome{Passed, Errored, Skipped} {
		assert.False(t, on.ShouldCapture(o), o.String())
	}
	assert.False(t, off.ShouldCapture(Failed))
}

func TestCaptureClosedPage(t *testing.T) {
	page := fakePage(t)
	require.NoError(t, page.Close())

	p := CapturePolicy{Enabled: true, Dir: t.TempDir()}
	_, err := p.Capture(context.Background(), page, "test_closed")

	assert.ErrorIs(t, err, driver.ErrClosed)
	assert.Empty(t, listDir(t, p.Dir))
}

func TestCaptureCreatesNestedDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	p := CapturePolicy{
		Enabled: true,
		Dir:     dir,
		Now:     func() time.Time { return fixedNow },
	}

	path, err := p.Capture(context.Background(), fakePage(t), "nested")

	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "nested_20240102_030405.png"), path)
}

func TestCaptureIgnoresCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := CapturePolicy{Enabled: true, Dir: t.TempDir()}
	path, err := p.Capture(ctx, fakePage(t), "cancelled")

	require.NoError(t, err)
	assert.FileExists(t, path)
}
