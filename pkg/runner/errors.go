package runner

import (
	"errors"
	"fmt"
)

var (
	ErrNoTestResults = errors.New("no test results available")

	// ErrConsoleErrors fails a test that logged console errors while
	// FailOnConsoleError is set.
	ErrConsoleErrors = errors.New("console errors detected")
)

type AssertionError struct {
	Expected string
	Actual   string
	Message  string
}

func (e *AssertionError) Error() string {
	return fmt.Sprintf("%s: expected '%s', got '%s'", e.Message, e.Expected, e.Actual)
}

// SnapshotError reports a screenshot that drifted from its baseline. Actual
// is the current screenshot as taken, not a highlighted diff.
type SnapshotError struct {
	Baseline  string
	Actual    string
	Ratio     float64
	Threshold float64
}

func (e *SnapshotError) Error() string {
	return fmt.Sprintf("screenshot differs from baseline by %.2f%% (threshold: %.2f%%), current screenshot saved to %s. Delete %s or run with --update-screenshots to accept it",
		e.Ratio*100, e.Threshold*100, e.Actual, e.Baseline)
}
