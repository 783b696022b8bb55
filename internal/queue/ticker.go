package queue

import (
	"context"
	"fmt"
	"time"
)

// runEvery calls fn once per interval until ctx is done. With immediate set, fn
// also runs once before the first tick. It always returns a non-nil error.
func runEvery(ctx context.Context, interval time.Duration, immediate bool, fn func(context.Context)) error {
	if interval <= 0 {
		return fmt.Errorf("invalid interval %v", interval)
	}
	if immediate {
		fn(ctx)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			fn(ctx)
		}
	}
}
