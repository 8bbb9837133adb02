package syncer

import (
	"context"
	"time"

	"fjacquet/budget-sync/internal/retry"
)

func retryNoWait(attempts int) retry.Policy {
	return retry.Policy{
		MaxAttempts: attempts,
		Sleep:       func(context.Context, time.Duration) error { return nil },
	}
}
