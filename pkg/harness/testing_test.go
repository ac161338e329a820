package harness

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/kidandcat/pagesuite/pkg/config"
	"github.com/kidandcat/pagesuite/pkg/driver/drivertest"
)

func TestPageReleasesOnCleanup(t *testing.T) {
	h, fake := newHarness(t, nil)

	ok := t.Run("passing", func(t *testing.T) {
		page := h.Page(t)
		require.NoError(t, page.Goto(t.Context(), "https://example.com"))
	})

	require.True(t, ok)
	require.Len(t, fake.Pages(), 1)
	assert.True(t, fake.Pages()[0].Closed())
	assert.True(t, fake.Contexts()[0].Closed())
	assert.Empty(t, listDir(t, h.Settings().ScreenshotDir))
}

func TestPageSkippedTestHasNoArtifact(t *testing.T) {
	h, fake := newHarness(t, nil)

	t.Run("skipped", func(t *testing.T) {
		h.Page(t)
		t.Skip("not today")
	})

	assert.True(t, fake.Contexts()[0].Closed())
	assert.NotContains(t, fake.Events(), "page 1 screenshot")
}

func TestSkipInCI(t *testing.T) {
	s := config.Defaults()
	s.CI = true

	ran := false
	ok := t.Run("local only", func(t *testing.T) {
		SkipInCI(t, s, "needs the local shop")
		ran = true
	})

	assert.True(t, ok)
	assert.False(t, ran)

	s.CI = false
	t.Run("not on ci", func(t *testing.T) {
		SkipInCI(t, s, "needs the local shop")
		ran = true
	})
	assert.True(t, ran)
}

func TestRunMainLaunchFailure(t *testing.T) {
	fake := drivertest.New()
	fake.LaunchErr = errors.New("browser not installed")
	h := New(config.Defaults(), fake, WithLogger(zaptest.NewLogger(t)), WithOrphanCheck(nil))

	var stderr bytes.Buffer
	ran := false
	code := runMain(func() int { ran = true; return 0 }, h, &stderr)

	assert.Equal(t, 2, code)
	assert.False(t, ran)
	assert.Contains(t, stderr.String(), "configuration error")
	assert.Contains(t, stderr.String(), "browser not installed")
}

func TestRunMainStopsSession(t *testing.T) {
	fake := drivertest.New()
	h := New(config.Defaults(), fake, WithLogger(zaptest.NewLogger(t)), WithOrphanCheck(nil))

	var stderr bytes.Buffer
	code := runMain(func() int {
		lease, err := h.Acquire(context.Background(), "test_inside")
		require.NoError(t, err)
		lease.Release(context.Background(), Passed)
		return 1
	}, h, &stderr)

	assert.Equal(t, 1, code)
	require.Len(t, fake.Launched(), 1)
	assert.True(t, fake.Launched()[0].Closed())
	assert.Empty(t, stderr.String())
}
