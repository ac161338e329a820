package harness

import (
	"errors"
	"time"

	"github.com/kidandcat/pagesuite/pkg/driver"
)

type Outcome int

const (
	Passed Outcome = iota
	Failed
	Errored
	Skipped
)

func (o Outcome) String() string {
	switch o {
	case Passed:
		return "passed"
	case Failed:
		return "failed"
	case Errored:
		return "errored"
	case Skipped:
		return "skipped"
	}
	return "unknown"
}

// Classify maps the error returned by a test body to its outcome.
func Classify(err error) Outcome {
	var (
		skip  *SkipError
		setup *SetupError
	)
	switch {
	case err == nil:
		return Passed
	case errors.As(err, &skip):
		return Skipped
	case errors.As(err, &setup):
		return Errored
	}
	return Failed
}

// State is a step of a lease's lifecycle.
type State int

const (
	StateUninitialized State = iota
	StatePageReady
	StateOutcomeKnown
	StateArtifactCaptured
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StatePageReady:
		return "page-ready"
	case StateOutcomeKnown:
		return "outcome-known"
	case StateArtifactCaptured:
		return "artifact-captured"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Result describes one finished test.
type Result struct {
	Name     string
	Browser  string
	Outcome  Outcome
	Err      error
	Timeout  bool
	Duration time.Duration
	// Artifact is the failure screenshot path, empty when none was written.
	Artifact   string
	CaptureErr error
	Video      string
	States     []State
}

// Failed reports whether the result counts against the run.
func (r Result) Failed() bool {
	return r.Outcome == Failed || r.Outcome == Errored
}

func (r *Result) setErr(err error) {
	r.Err = err
	r.Timeout = driver.IsTimeout(err)
}
