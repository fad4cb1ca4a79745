package remote

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// WithRetry runs fn up to attempts times with a fixed pause between tries.
// Each failure is logged; exhaustion returns the last error wrapped with the
// operation name so the caller can escalate to a critical notification.
// The cycle never retries itself, only the individual call does.
func WithRetry(ctx context.Context, log *zap.Logger, attempts int, backoff time.Duration, op string, fn func() error) error {
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		log.Error("remote call failed",
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Error(lastErr),
		)

		if attempt < attempts {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}
	}

	return fmt.Errorf("%s: retries exhausted: %w", op, lastErr)
}
