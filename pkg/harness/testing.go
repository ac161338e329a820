package harness

import (
	"context"
	"fmt"
	"io"
	"os"
	"testing"

	"github.com/kidandcat/pagesuite/pkg/config"
	"github.com/kidandcat/pagesuite/pkg/driver"
)

// Page leases a page for t and releases it in t.Cleanup with the outcome t
// ends with. A setup failure aborts t as a harness error.
func (h *Harness) Page(t testing.TB) driver.Page {
	t.Helper()

	lease, err := h.Acquire(t.Context(), t.Name())
	if err != nil {
		t.Fatalf("harness error, not a test failure: %v", err)
	}

	t.Cleanup(func() {
		outcome := Passed
		switch {
		case t.Skipped():
			outcome = Skipped
		case t.Failed():
			outcome = Failed
		}
		// t.Context is already cancelled here.
		res := lease.Release(context.Background(), outcome)
		if res.Artifact != "" {
			t.Logf("screenshot saved: %s", res.Artifact)
		}
		if res.CaptureErr != nil {
			t.Logf("could not save screenshot: %v", res.CaptureErr)
		}
	})
	return lease.Page()
}

// RunMain starts the session, runs the tests and stops the session. Use it
// from TestMain:
//
//	func TestMain(m *testing.M) { os.Exit(harness.RunMain(m, h)) }
//
// A browser that cannot be launched yields exit code 2 before any test runs.
func RunMain(m *testing.M, h *Harness) int {
	return runMain(m.Run, h, os.Stderr)
}

func runMain(run func() int, h *Harness, stderr io.Writer) int {
	if err := h.Start(context.Background()); err != nil {
		fmt.Fprintf(stderr, "configuration error: %v\n", err)
		return 2
	}
	code := run()
	if err := h.Stop(); err != nil {
		fmt.Fprintf(stderr, "warning: %v\n", err)
	}
	return code
}

// SkipInCI skips t when the run is on CI.
func SkipInCI(t testing.TB, s config.Settings, reason string) {
	t.Helper()
	if s.CI {
		t.Skipf("skipped on CI: %s", reason)
	}
}
