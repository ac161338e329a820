package runner

import (
	"time"

	"github.com/samber/lo"

	"github.com/kidandcat/pagesuite/pkg/harness"
)

// Summary tallies the results of a run.
type Summary struct {
	Total    int
	Passed   int
	Failed   int
	Errored  int
	Skipped  int
	Duration time.Duration
}

func Summarize(results []TestResult) Summary {
	counts := lo.CountValuesBy(results, func(r TestResult) harness.Outcome { return r.Outcome })
	return Summary{
		Total:    len(results),
		Passed:   counts[harness.Passed],
		Failed:   counts[harness.Failed],
		Errored:  counts[harness.Errored],
		Skipped:  counts[harness.Skipped],
		Duration: lo.SumBy(results, func(r TestResult) time.Duration { return r.Duration }),
	}
}

// OK reports whether nothing failed or errored. Skipped tests do not count.
func (s Summary) OK() bool {
	return s.Failed == 0 && s.Errored == 0
}

// Failures returns the results that count against the run.
func Failures(results []TestResult) []TestResult {
	return lo.Filter(results, func(r TestResult, _ int) bool { return r.Failed() })
}
