package main

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"

	"github.com/kidandcat/pagesuite/pkg/harness"
	"github.com/kidandcat/pagesuite/pkg/runner"
)

var (
	green  = color.New(color.FgGreen).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	faint  = color.New(color.Faint).SprintFunc()
)

type printer struct {
	out io.Writer
}

func (p *printer) result(result runner.TestResult) {
	d := result.Duration.Round(time.Millisecond)
	switch result.Outcome {
	case harness.Passed:
		fmt.Fprintf(p.out, "%s %s (%s)\n", green("✓ PASS"), result.Name, d)
	case harness.Skipped:
		reason := ""
		var skip *harness.SkipError
		if errors.As(result.Error, &skip) {
			reason = skip.Reason
		}
		fmt.Fprintf(p.out, "%s %s %s\n", yellow("- SKIP"), result.Name, faint(reason))
	default:
		label := "✗ FAIL"
		if result.Outcome == harness.Errored {
			label = "✗ ERROR"
		}
		fmt.Fprintf(p.out, "%s %s (%s)\n", red(label), result.Name, d)
		if result.File != "" {
			fmt.Fprintf(p.out, "  %s\n", faint(fmt.Sprintf("%s:%d", result.File, result.Line)))
		}
		if result.Error != nil {
			fmt.Fprintf(p.out, "  %s\n", red(fmt.Sprintf("Error: %v", result.Error)))
		}
		if result.Screenshot != "" {
			fmt.Fprintf(p.out, "  Screenshot: %s\n", result.Screenshot)
		}
		if result.CaptureErr != nil {
			fmt.Fprintf(p.out, "  %s\n", yellow(fmt.Sprintf("No screenshot: %v", result.CaptureErr)))
		}
	}
	if len(result.Errors) > 0 {
		fmt.Fprintf(p.out, "  Console errors:\n")
		for _, err := range result.Errors {
			fmt.Fprintf(p.out, "    - %s at %s\n", err.Message, err.URL)
		}
	}
	if result.Video != "" {
		fmt.Fprintf(p.out, "  Video: %s\n", result.Video)
	}
}

func (p *printer) summary(s runner.Summary) {
	fmt.Fprintln(p.out)
	parts := green(fmt.Sprintf("%d passed", s.Passed))
	if s.Failed > 0 {
		parts += ", " + red(fmt.Sprintf("%d failed", s.Failed))
	}
	if s.Errored > 0 {
		parts += ", " + red(fmt.Sprintf("%d errored", s.Errored))
	}
	if s.Skipped > 0 {
		parts += ", " + yellow(fmt.Sprintf("%d skipped", s.Skipped))
	}
	fmt.Fprintf(p.out, "%s (%d tests)\n", parts, s.Total)
}
