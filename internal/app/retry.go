package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jpillora/backoff"
)

// Sleeper pauses for d or until ctx is done, whichever comes first.
type Sleeper func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
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

// retryFixed calls fn up to attempts times with a constant delay between failures and
// returns nil on the first success or the last error otherwise. A nil retryable retries
// every error; otherwise an error it rejects is returned at once.
func retryFixed(ctx context.Context, attempts int, delay time.Duration, sleep Sleeper, retryable func(error) bool, fn func(attempt int) error) error {
	if attempts < 1 {
		attempts = 1
	}
	b := &backoff.Backoff{Min: delay, Max: delay, Factor: 1}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(attempt); err == nil {
			return nil
		}
		if retryable != nil && !retryable(err) {
			return fmt.Errorf("not retryable after attempt %d: %w", attempt, err)
		}
		if attempt == attempts {
			break
		}
		if sleepErr := sleep(ctx, b.Duration()); sleepErr != nil {
			return fmt.Errorf("retry interrupted after attempt %d: %w", attempt, err)
		}
	}
	return fmt.Errorf("giving up after %d attempts: %w", attempts, err)
}
