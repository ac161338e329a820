package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/samber/lo"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/kidandcat/pagesuite/pkg/config"
	"github.com/kidandcat/pagesuite/pkg/driver"
	"github.com/kidandcat/pagesuite/pkg/driver/cdpdriver"
	"github.com/kidandcat/pagesuite/pkg/driver/pwdriver"
	"github.com/kidandcat/pagesuite/pkg/harness"
	"github.com/kidandcat/pagesuite/pkg/parser"
	"github.com/kidandcat/pagesuite/pkg/runner"
)

func runCommand() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "Run .test scripts",
		ArgsUsage: "[files or directories...]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "config file path (default: first pagesuite config found)"},
			&cli.StringFlag{Name: "pattern", Value: "*.test", Usage: "file pattern for test files"},
			&cli.StringSliceFlag{Name: "tag", Usage: "only run tests with one of these tags"},
			&cli.BoolFlag{Name: "headless", Value: true, Usage: "run browser in headless mode"},
			&cli.DurationFlag{Name: "timeout", Usage: "default timeout of every browser action"},
			&cli.DurationFlag{Name: "slowmo", Usage: "delay added before every browser action"},
			&cli.StringSliceFlag{Name: "browser", Usage: "browsers to run on: chromium, firefox, webkit"},
			&cli.StringFlag{Name: "driver", Usage: "automation engine: playwright or chromedp"},
			&cli.IntFlag{Name: "workers", Usage: "number of tests run in parallel"},
			&cli.StringFlag{Name: "screenshot-dir", Usage: "directory for failure screenshots"},
			&cli.StringFlag{Name: "baseline-dir", Usage: "directory for baseline screenshots"},
			&cli.BoolFlag{Name: "update-screenshots", Usage: "rewrite baseline screenshots"},
			&cli.BoolFlag{Name: "record-video", Usage: "record a video of every test"},
			&cli.BoolFlag{Name: "fail-on-console-error", Usage: "fail tests when console errors occur"},
		},
		Action: runAction,
	}
}

func runAction(c *cli.Context) error {
	logger, err := newLogger(c.String("log-level"))
	if err != nil {
		return cli.Exit(fmt.Sprintf("configuration error: %v", err), exitConfig)
	}
	defer func() { _ = logger.Sync() }()

	settings, err := loadSettings(c)
	if err != nil {
		return cli.Exit(fmt.Sprintf("configuration error: %v", err), exitConfig)
	}

	testFiles, err := findTestFiles(c.String("pattern"), c.Args().Slice())
	if err != nil {
		return cli.Exit(fmt.Sprintf("failed to find test files: %v", err), exitConfig)
	}
	if len(testFiles) == 0 {
		return cli.Exit("no test files found", exitConfig)
	}

	tests, err := parseFiles(testFiles)
	if err != nil {
		return cli.Exit(fmt.Sprintf("failed to parse tests: %v", err), exitConfig)
	}
	tests = filterTags(tests, c.StringSlice("tag"))
	if len(tests) == 0 {
		return cli.Exit("no tests selected", exitConfig)
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	r := runner.New(settings, newDriver(settings), runner.WithLogger(logger))
	for _, t := range tests {
		r.AddTest(t)
	}

	out := c.App.Writer
	p := &printer{out: out}
	fmt.Fprintln(out, color.YellowString("Running %d tests from %d files on %s (%s)...",
		len(tests), len(testFiles), strings.Join(settings.Browsers, ", "), settings.Driver))
	fmt.Fprintln(out)

	s := spinner.New(spinner.CharSets[9], 100*time.Millisecond, spinner.WithWriter(out))
	s.Start()

	progress := make(chan runner.TestResult)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for result := range progress {
			s.Stop()
			p.result(result)
			s.Start()
		}
	}()

	results, err := r.RunWithProgress(ctx, progress)
	<-done
	s.Stop()

	if err != nil {
		var le *harness.LaunchError
		if errors.As(err, &le) {
			return cli.Exit(fmt.Sprintf("configuration error: %v", err), exitConfig)
		}
		return cli.Exit(err.Error(), exitConfig)
	}

	summary := runner.Summarize(results)
	p.summary(summary)

	if ctx.Err() != nil {
		return cli.Exit("interrupted, remaining tests were not run", exitFailed)
	}
	if !summary.OK() {
		return cli.Exit("", exitFailed)
	}
	return nil
}

// loadSettings resolves defaults, config file and environment, then applies
// the flags given on the command line.
func loadSettings(c *cli.Context) (config.Settings, error) {
	s, err := config.Load(c.String("config"), os.Getenv)
	if err != nil {
		return config.Settings{}, err
	}
	s = applyFlags(c, s)
	return s, s.Validate()
}

func applyFlags(c *cli.Context, s config.Settings) config.Settings {
	if c.IsSet("headless") {
		s.Headless = c.Bool("headless")
	}
	if c.IsSet("timeout") {
		s.DefaultTimeout = c.Duration("timeout")
	}
	if c.IsSet("slowmo") {
		s.SlowMo = c.Duration("slowmo")
	}
	if c.IsSet("browser") {
		s.Browsers = config.ParseList(strings.Join(c.StringSlice("browser"), ","))
	}
	if c.IsSet("driver") {
		s.Driver = c.String("driver")
	}
	if c.IsSet("workers") {
		s.Workers = c.Int("workers")
	}
	if c.IsSet("screenshot-dir") {
		s.ScreenshotDir = c.String("screenshot-dir")
	}
	if c.IsSet("baseline-dir") {
		s.BaselineDir = c.String("baseline-dir")
	}
	if c.IsSet("update-screenshots") {
		s.UpdateScreenshots = c.Bool("update-screenshots")
	}
	if c.IsSet("record-video") {
		s.RecordVideo = c.Bool("record-video")
	}
	if c.IsSet("fail-on-console-error") {
		s.FailOnConsoleError = c.Bool("fail-on-console-error")
	}
	return s
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = lvl
	cfg.DisableStacktrace = true
	return cfg.Build()
}

func newDriver(s config.Settings) driver.Driver {
	if s.Driver == config.DriverChromedp {
		return cdpdriver.New()
	}
	return pwdriver.New()
}

func findTestFiles(pattern string, args []string) ([]string, error) {
	var files []string

	if len(args) > 0 {
		for _, arg := range args {
			if strings.HasSuffix(arg, ".test") {
				files = append(files, arg)
			} else {
				matches, err := filepath.Glob(filepath.Join(arg, pattern))
				if err != nil {
					return nil, err
				}
				files = append(files, matches...)
			}
		}
	} else {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, err
		}
		files = matches
	}

	return lo.Uniq(files), nil
}

func parseFiles(files []string) ([]runner.Test, error) {
	p := parser.New()
	var tests []runner.Test
	var errs []error
	for _, file := range files {
		parsed, err := p.ParseFile(file)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		tests = append(tests, parsed...)
	}
	return tests, errors.Join(errs...)
}

// filterTags keeps the tests carrying at least one of tags. No tags keeps
// everything.
func filterTags(tests []runner.Test, tags []string) []runner.Test {
	if len(tags) == 0 {
		return tests
	}
	return lo.Filter(tests, func(t runner.Test, _ int) bool {
		return len(lo.Intersect(t.Tags, tags)) > 0
	})
}
