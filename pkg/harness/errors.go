package harness

import (
	"errors"
	"fmt"
)

var (
	// ErrNotStarted is returned by Acquire before Start succeeded.
	ErrNotStarted = errors.New("session not started")

	// ErrStopped is returned by Acquire and Start after Stop.
	ErrStopped = errors.New("session stopped")

	// ErrEmptyScreenshot is returned by Capture when the engine hands back no
	// image data.
	ErrEmptyScreenshot = errors.New("empty screenshot")
)

// LaunchError means the browser could not be started. It is fatal for the
// whole run and is not retried.
type LaunchError struct {
	Driver  string
	Browser string
	Err     error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("failed to launch %s with %s: %v", e.Browser, e.Driver, e.Err)
}

func (e *LaunchError) Unwrap() error {
	return e.Err
}

// SetupError means the per-test context or page could not be created. The
// test is reported as errored, never as failed.
type SetupError struct {
	Stage string
	Err   error
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("harness setup failed (%s): %v", e.Stage, e.Err)
}

func (e *SetupError) Unwrap() error {
	return e.Err
}

// SkipError is returned by a test body to report itself skipped.
type SkipError struct {
	Reason string
}

func (e *SkipError) Error() string {
	return "skipped: " + e.Reason
}

// Skip returns an error that marks the running test as skipped.
func Skip(reason string) error {
	return &SkipError{Reason: reason}
}

// PanicError carries a panic raised by a test body.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Unwrap exposes a panicked error value.
func (e *PanicError) Unwrap() error {
	err, _ := e.Value.(error)
	return err
}
