// Package lock provides short-lived reservations that keep overlapping
// scheduler runs from charging the same membership twice.
package lock

import (
	"context"
	"time"
)

// Locker reserves keys for a bounded time.
type Locker interface {
	// Acquire reserves key for ttl. It returns false if another holder has it.
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// Release gives the key up early. Releasing an unheld key is not an error.
	Release(ctx context.Context, key string) error
}
