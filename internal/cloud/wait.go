package cloud

import (
	"context"
	"fmt"
	"time"
)

const (
	// DefaultWaitInterval is how often task status is re-checked.
	DefaultWaitInterval = 2 * time.Second
	// DefaultWaitTimeout bounds how long a blocking wait may run.
	DefaultWaitTimeout = 10 * time.Minute
)

// Task statuses the platform reports. Ready and failed are terminal;
// everything else means the task is still being processed.
const (
	StatusReady      = "ready"
	StatusFailed     = "failed"
	StatusProcessing = "processing"
)

// WaitOptions tunes a blocking wait. Zero values fall back to the defaults.
// OnPoll, when set, observes each status check; it cannot extend or abort
// the wait.
type WaitOptions struct {
	Interval time.Duration
	Timeout  time.Duration
	OnPoll   func(status string, elapsed time.Duration)
}

func (o WaitOptions) withDefaults() WaitOptions {
	if o.Interval <= 0 {
		o.Interval = DefaultWaitInterval
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultWaitTimeout
	}
	return o
}

// waitForTerminal polls check until it reports a terminal status, the timeout
// elapses, or ctx is cancelled. check returns the current status; terminal
// decides when to stop. The first check happens immediately.
func waitForTerminal(ctx context.Context, taskID string, opts WaitOptions, check func(context.Context) (string, error)) (string, error) {
	opts = opts.withDefaults()
	start := time.Now()

	for {
		status, err := check(ctx)
		if err != nil {
			return "", err
		}

		if opts.OnPoll != nil {
			opts.OnPoll(status, time.Since(start))
		}

		switch status {
		case StatusReady:
			return status, nil
		case StatusFailed, "error":
			return status, &TaskFailedError{TaskID: taskID, Status: status}
		}

		if time.Since(start)+opts.Interval > opts.Timeout {
			return status, fmt.Errorf("%w: task %s still %q after %s", ErrWaitTimeout, taskID, status, opts.Timeout)
		}

		select {
		case <-ctx.Done():
			return status, ctx.Err()
		case <-time.After(opts.Interval):
		}
	}
}
