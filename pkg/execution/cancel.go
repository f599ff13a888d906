package execution

import (
	"context"
	"errors"
	"time"

	"github.com/dukex/flowengine/pkg/flowerrors"
)

// CheckTimeout returns a FlowTimeoutError once the time budget is spent.
func (c *Context) CheckTimeout() error {
	c.mu.RLock()
	start, timeout := c.startTime, c.timeout
	c.mu.RUnlock()

	if timeout <= 0 || start.IsZero() {
		return nil
	}

	elapsed := time.Since(start)
	if elapsed > timeout {
		return &flowerrors.FlowTimeoutError{Timeout: timeout, Elapsed: elapsed}
	}

	return nil
}

// CheckAborted returns the reason the run must stop, if any. Cancellation is
// sticky: once it reports an error it always will.
func (c *Context) CheckAborted() error {
	ctx := c.Context()
	if ctx.Err() == nil {
		return nil
	}

	cause := context.Cause(ctx)

	var timeoutErr *flowerrors.FlowTimeoutError
	if errors.As(cause, &timeoutErr) {
		return cause
	}

	var cancelledErr *flowerrors.FlowCancelledError
	if errors.As(cause, &cancelledErr) {
		return cause
	}

	switch cause {
	case context.Canceled, nil:
		return &flowerrors.FlowCancelledError{Reason: "context cancelled"}
	case context.DeadlineExceeded:
		return &flowerrors.FlowTimeoutError{Timeout: c.timeout, Elapsed: time.Since(c.StartTime())}
	}

	return cause
}

// Abort cancels the run and every branch forked from it.
func (c *Context) Abort(reason string) {
	c.logger.Info("Aborting execution", "reason", reason, "branch_id", c.branchID)
	c.cancel(&flowerrors.FlowCancelledError{Reason: reason})
}

// Interrupt stops this context with a specific cause, e.g. a branch timeout.
func (c *Context) Interrupt(cause error) {
	c.cancel(cause)
}

// Remaining returns the unspent time budget. Zero means unlimited.
func (c *Context) Remaining() time.Duration {
	c.mu.RLock()
	start, timeout := c.startTime, c.timeout
	c.mu.RUnlock()

	if timeout <= 0 {
		return 0
	}

	if start.IsZero() {
		return timeout
	}

	remaining := timeout - time.Since(start)
	if remaining <= 0 {
		return time.Nanosecond
	}

	return remaining
}
