// Package genlock provides the per-identity generation lock: a distributed
// mutual-exclusion primitive with a bounded lease over the shared store.
package genlock

import (
	"context"
	"fmt"
	"time"

	"app/internal/store"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Manager acquires and releases generation locks. Exclusion relies solely on
// the store's atomic set-if-absent; the TTL bounds staleness when a holder
// crashes without releasing.
type Manager struct {
	store  store.Store
	ttl    time.Duration
	logger zerolog.Logger
}

// New creates a lock manager with the given lease TTL.
func New(st store.Store, ttl time.Duration, logger zerolog.Logger) *Manager {
	return &Manager{
		store:  st,
		ttl:    ttl,
		logger: logger.With().Str("service", "GenerationLock").Logger(),
	}
}

func lockKey(identity string) string { return "generation:lock:" + identity }

// Acquire attempts to take the lock for identity. It returns true only when
// no live lock existed. The stored value is an opaque holder token; the lock
// key itself is the exclusion mechanism.
func (m *Manager) Acquire(ctx context.Context, identity string) (bool, error) {
	ok, err := m.store.SetNX(ctx, lockKey(identity), uuid.NewString(), m.ttl)
	if err != nil {
		return false, fmt.Errorf("acquiring generation lock for %s: %w", identity, err)
	}
	return ok, nil
}

// Release frees the lock for identity. Releasing an absent or expired lock is
// a no-op, so callers can release unconditionally on every exit path.
func (m *Manager) Release(ctx context.Context, identity string) error {
	if err := m.store.Del(ctx, lockKey(identity)); err != nil {
		return fmt.Errorf("releasing generation lock for %s: %w", identity, err)
	}
	return nil
}

// TTL reports the configured lease duration.
func (m *Manager) TTL() time.Duration { return m.ttl }
