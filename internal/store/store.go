// Package store abstracts the shared key/value store used for cross-instance
// coordination: generation locks, rate-limit counters, IP blocks and stream
// checkpoints. The Redis implementation is authoritative in production; the
// memory implementation backs unit tests and single-instance development.
package store

import (
	"context"
	"time"
)

// Store is the minimal set of atomic primitives the admission subsystem
// relies on. No caller ever performs a local read-modify-write against
// shared state; every mutation below is atomic at the store.
type Store interface {
	// Get returns the value for key and whether it exists.
	Get(ctx context.Context, key string) (string, bool, error)
	// SetEx unconditionally sets key to value with the given TTL.
	SetEx(ctx context.Context, key, value string, ttl time.Duration) error
	// SetNX sets key to value with the given TTL only if the key is absent.
	// Returns true when the key was set.
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	// Del removes key. Deleting an absent key is not an error.
	Del(ctx context.Context, key string) error
	// TTL returns the remaining lifetime of key, or 0 when the key is
	// absent or has no expiry.
	TTL(ctx context.Context, key string) (time.Duration, error)
	// IncrWindow increments a fixed-window counter, starting the window on
	// the first increment, and returns the new count.
	IncrWindow(ctx context.Context, key string, window time.Duration) (int64, error)
	// SlidingCount records one event on a sliding-window counter and
	// returns the number of events inside the window, including this one.
	SlidingCount(ctx context.Context, key string, window time.Duration) (int64, error)
}
