//go:build e2e

// Package e2e runs the harness and page objects against a real browser.
// Browsers must be installed first: pagesuite install chromium.
//
//	go test -tags e2e ./e2e/...
package e2e

import (
	"fmt"
	"os"
	"testing"

	"go.uber.org/zap"

	"github.com/kidandcat/pagesuite/pkg/config"
	"github.com/kidandcat/pagesuite/pkg/driver"
	"github.com/kidandcat/pagesuite/pkg/driver/cdpdriver"
	"github.com/kidandcat/pagesuite/pkg/driver/pwdriver"
	"github.com/kidandcat/pagesuite/pkg/harness"
)

var (
	settings config.Settings
	drv      driver.Driver
	h        *harness.Harness
)

// TestMain starts one browser session shared by every test in the package.
func TestMain(m *testing.M) {
	if err := config.LoadDotEnv("../.env"); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	var err error
	settings, err = config.Load("", os.Getenv)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(2)
	}

	logger, err := zap.NewDevelopment(zap.IncreaseLevel(zap.WarnLevel))
	if err != nil {
		panic(err)
	}

	drv = pwdriver.New()
	if settings.Driver == config.DriverChromedp {
		drv = cdpdriver.New()
	}
	h = harness.New(settings, drv, harness.WithLogger(logger))

	code := harness.RunMain(m, h)
	logger.Sync()
	os.Exit(code)
}

// isolated returns a harness of its own for tests that need other settings.
// It is stopped when t ends.
func isolated(t *testing.T, s config.Settings) *harness.Harness {
	t.Helper()
	hh := harness.New(s, drv)
	if err := hh.Start(t.Context()); err != nil {
		t.Fatalf("harness error, not a test failure: %v", err)
	}
	t.Cleanup(func() { _ = hh.Stop() })
	return hh
}
