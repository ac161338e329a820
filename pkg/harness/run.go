package harness

import (
	"context"
	"runtime/debug"

	"go.uber.org/zap"

	"github.com/kidandcat/pagesuite/pkg/driver"
)

// TestFunc is a test body run against a leased page.
type TestFunc func(ctx context.Context, page driver.Page) error

// Run leases a page, runs fn on it and releases the lease whatever fn does:
// return, panic or runtime.Goexit. A panic counts as a failure.
func (h *Harness) Run(ctx context.Context, name string, fn TestFunc) (res Result) {
	lease, err := h.Acquire(ctx, name)
	if err != nil {
		res = Result{
			Name:    name,
			Browser: h.browser,
			Outcome: Errored,
			States:  []State{StateUninitialized, StateClosed},
		}
		res.setErr(err)
		return res
	}

	var runErr error
	outcome := Failed // stays Failed if fn never returns
	defer func() {
		res = lease.Release(ctx, outcome)
		res.setErr(runErr)
		if res.Failed() {
			lease.logger.Info("test did not pass",
				zap.Stringer("outcome", res.Outcome),
				zap.Bool("timeout", res.Timeout),
				zap.Error(runErr),
			)
		}
	}()

	runErr = call(ctx, fn, lease.Page())
	outcome = Classify(runErr)
	return res
}

func call(ctx context.Context, fn TestFunc, page driver.Page) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return fn(ctx, page)
}
