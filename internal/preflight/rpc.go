package preflight

import (
	"context"
	"fmt"
	"time"
)

type blockNumberReader interface {
	BlockNumber(ctx context.Context) (uint64, error)
}

// WaitForRPC polls the node until it answers a block number request, or gives up after attempts.
func WaitForRPC(ctx context.Context, client blockNumberReader, attempts int, interval time.Duration) error {
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := range attempts {
		_, err := client.BlockNumber(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if attempt == attempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("stopped waiting for RPC: %w", ctx.Err())
		case <-time.After(interval):
		}
	}

	return fmt.Errorf("timed out waiting for RPC after %d attempts: %w", attempts, lastErr)
}
