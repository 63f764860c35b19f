package engine

import (
	"context"
	"time"
)

// Operation is a single task invocation attempt.
type Operation func(ctx context.Context) (any, error)

// RunWithTimeout races op against a timer. If the timer elapses first it
// returns a TaskTimeoutError. The operation's goroutine is abandoned, not
// preempted: the context deadline signals cooperative cancellation, but a
// tool that ignores it keeps running. Known limitation, kept deliberately.
func RunWithTimeout(ctx context.Context, op Operation, timeout time.Duration, taskID string) (any, error) {
	if timeout <= 0 {
		return op(ctx)
	}

	opCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		result any
		err    error
	}
	done := make(chan outcome, 1)

	go func() {
		result, err := op(opCtx)
		done <- outcome{result: result, err: err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case out := <-done:
		return out.result, out.err
	case <-timer.C:
		return nil, &TaskTimeoutError{TaskID: taskID, Timeout: timeout}
	}
}

// RunWithRetry attempts op up to policy.MaxAttempts times, sleeping the
// policy's backoff delay between attempts. After the final failed attempt the
// last error is returned unchanged. A nil policy or MaxAttempts <= 1 means
// run once, no retry.
func RunWithRetry(ctx context.Context, op Operation, policy *RetryPolicy, taskID string) (any, error) {
	attempts := 1
	if policy != nil && policy.MaxAttempts > 1 {
		attempts = policy.MaxAttempts
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if attempt == attempts-1 {
			break
		}

		timer := time.NewTimer(policy.Delay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	return nil, lastErr
}
