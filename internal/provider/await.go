package provider

import (
	"context"
	"fmt"
	"time"
)

// AwaitOptions bounds a polling loop.
type AwaitOptions struct {
	// Interval is the initial delay between polls.
	Interval time.Duration
	// MaxInterval caps the growing delay.
	MaxInterval time.Duration
	// MaxWait is the total time budget; exceeding it yields ErrTimeout.
	MaxWait time.Duration
}

// DefaultAwaitOptions returns the polling bounds used when none are configured.
func DefaultAwaitOptions() AwaitOptions {
	return AwaitOptions{
		Interval:    3 * time.Second,
		MaxInterval: 30 * time.Second,
		MaxWait:     20 * time.Minute,
	}
}

// Await polls fetch with increasing backoff until the job reaches a terminal
// state or the time budget runs out. Transient fetch errors keep the loop
// alive; anything else is returned to the caller. A worker must never block
// here past MaxWait, so a slow remote job surfaces as ErrTimeout rather than
// a hung task.
//
// Callback-style providers complete the same way: the callback handler stores
// the result, and the fetch closure passed here reads it instead of calling
// the remote poll endpoint.
func Await(ctx context.Context, fetch func(context.Context) (Result, error), opts AwaitOptions) (Result, error) {
	if opts.Interval <= 0 {
		opts = DefaultAwaitOptions()
	}

	deadline := time.Now().Add(opts.MaxWait)
	interval := opts.Interval

	for {
		res, err := fetch(ctx)
		switch {
		case err == nil:
			if res.State != StatePending {
				return res, nil
			}
		case IsTransient(err):
			// Keep polling; the budget below still bounds us.
		default:
			return Result{}, err
		}

		if time.Now().Add(interval).After(deadline) {
			return Result{}, fmt.Errorf("%w after %s", ErrTimeout, opts.MaxWait)
		}

		select {
		case <-ctx.Done():
			return Result{}, fmt.Errorf("provider: await cancelled: %w", ctx.Err())
		case <-time.After(interval):
		}

		interval *= 2
		if interval > opts.MaxInterval {
			interval = opts.MaxInterval
		}
	}
}
