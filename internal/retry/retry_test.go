package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"fjacquet/budget-sync/internal/syncerror"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPolicy(waits *[]time.Duration) Policy {
	p := Policy{
		MaxAttempts:  4,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     250 * time.Millisecond,
		Multiplier:   2,
	}
	p.Sleep = func(_ context.Context, d time.Duration) error {
		*waits = append(*waits, d)
		return nil
	}
	return p
}

func TestDo_RetriesTransientThenSucceeds(t *testing.T) {
	var waits []time.Duration
	calls := 0
	err := Do(context.Background(), testPolicy(&waits), func(context.Context) error {
		calls++
		if calls < 3 {
			return &syncerror.FetchError{Source: "budget", Op: "insert", StatusCode: 503}
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}, waits)
}

func TestDo_StopsOnPermanentError(t *testing.T) {
	var waits []time.Duration
	calls := 0
	err := Do(context.Background(), testPolicy(&waits), func(context.Context) error {
		calls++
		return &syncerror.FetchError{Source: "budget", Op: "insert", StatusCode: 400}
	})

	var fe *syncerror.FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, 1, calls)
	assert.Empty(t, waits)
}

func TestDo_ExhaustsAttemptsWithCappedDelay(t *testing.T) {
	var waits []time.Duration
	calls := 0
	err := Do(context.Background(), testPolicy(&waits), func(context.Context) error {
		calls++
		return &syncerror.FetchError{Source: "aggregator", Op: "movements", StatusCode: 429}
	})

	assert.Error(t, err)
	assert.Equal(t, 4, calls)
	assert.Equal(t, []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 250 * time.Millisecond}, waits)
}

func TestDo_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := Do(ctx, DefaultPolicy(), func(context.Context) error {
		calls++
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, calls)
}

func TestDo_CustomClassifierAndHook(t *testing.T) {
	var retried []int
	p := Policy{
		MaxAttempts: 2,
		Retryable:   func(error) bool { return true },
		Sleep:       func(context.Context, time.Duration) error { return nil },
		OnRetry:     func(attempt int, _ error, _ time.Duration) { retried = append(retried, attempt) },
	}
	boom := errors.New("boom")
	err := Do(context.Background(), p, func(context.Context) error { return boom })

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []int{1}, retried)
}

func TestDo_ZeroAttemptsStillRunsOnce(t *testing.T) {
	calls := 0
	_ = Do(context.Background(), Policy{}, func(context.Context) error {
		calls++
		return nil
	})
	assert.Equal(t, 1, calls)
}
