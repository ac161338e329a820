package runner

import (
	"fmt"
	"time"

	"github.com/kidandcat/pagesuite/pkg/harness"
)

// Test is a scripted test: a name, a few directives and a list of steps.
type Test struct {
	Name string
	Tags []string
	// Skip holds the reason when the test is marked skip.
	Skip string
	// RequiresLocal tests are skipped on CI.
	RequiresLocal bool
	Steps         []Step

	File string
	Line int
}

// Step is one script line. Most actions use Target for a selector or URL and
// Value for text; see the parser for the argument forms.
type Step struct {
	Action string
	Target string
	Value  string
	Line   int
}

func (s Step) String() string {
	switch {
	case s.Target != "" && s.Value != "":
		return fmt.Sprintf("%s %q %q", s.Action, s.Target, s.Value)
	case s.Target != "":
		return fmt.Sprintf("%s %q", s.Action, s.Target)
	case s.Value != "":
		return fmt.Sprintf("%s %q", s.Action, s.Value)
	}
	return s.Action
}

type TestResult struct {
	Name    string
	Browser string
	File    string
	Line    int

	Outcome  harness.Outcome
	Passed   bool
	Error    error
	Timeout  bool
	Duration time.Duration
	Errors   []ConsoleError

	// Screenshot is the failure screenshot, empty when none was written.
	Screenshot string
	CaptureErr error
	Video      string
}

// Failed reports whether the result counts against the run.
func (r TestResult) Failed() bool {
	return r.Outcome == harness.Failed || r.Outcome == harness.Errored
}

type ConsoleError struct {
	Message   string
	Type      string
	Timestamp time.Time
	URL       string
}
