// Package retry runs an operation again after transient failures, waiting
// exponentially longer between attempts.
package retry

import (
	"context"
	"time"

	"fjacquet/budget-sync/internal/syncerror"
)

// Policy describes how often and how patiently to retry.
type Policy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64

	// Retryable classifies errors. nil means syncerror.IsRetryable.
	Retryable func(error) bool

	// Sleep waits between attempts. nil means a context aware timer.
	Sleep func(ctx context.Context, d time.Duration) error

	// OnRetry is called before each wait with the attempt that just failed.
	OnRetry func(attempt int, err error, wait time.Duration)
}

// DefaultPolicy returns three attempts starting at 500ms.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:  3,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2,
	}
}

// Do calls fn until it succeeds, returns a non retryable error, the attempts are
// exhausted or ctx is done. The last error is returned.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	retryable := p.Retryable
	if retryable == nil {
		retryable = syncerror.IsRetryable
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	delay := p.InitialDelay
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			if err != nil {
				return err
			}
			return ctxErr
		}

		err = fn(ctx)
		if err == nil {
			return nil
		}
		if attempt == attempts || !retryable(err) {
			return err
		}

		if p.OnRetry != nil {
			p.OnRetry(attempt, err, delay)
		}
		if sleepErr := sleep(ctx, delay); sleepErr != nil {
			return err
		}
		delay = next(delay, p)
	}
	return err
}

func next(d time.Duration, p Policy) time.Duration {
	m := p.Multiplier
	if m < 1 {
		m = 1
	}
	n := time.Duration(float64(d) * m)
	if p.MaxDelay > 0 && n > p.MaxDelay {
		n = p.MaxDelay
	}
	return n
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
