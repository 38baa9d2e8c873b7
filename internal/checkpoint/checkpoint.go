// Package checkpoint persists in-progress streamed output so that a client or
// server disconnect mid-generation does not lose everything produced so far.
// Records are last-writer-wins and expire naturally after the retention TTL.
package checkpoint

import (
	"context"
	"fmt"
	"time"

	"app/internal/store"

	"github.com/rs/zerolog"
)

// Store saves, loads and clears partial generation output keyed by the
// generation's project id.
type Store struct {
	kv     store.Store
	ttl    time.Duration
	logger zerolog.Logger
}

// New creates a checkpoint store with the given retention TTL.
func New(kv store.Store, ttl time.Duration, logger zerolog.Logger) *Store {
	return &Store{
		kv:     kv,
		ttl:    ttl,
		logger: logger.With().Str("service", "CheckpointStore").Logger(),
	}
}

func key(generationID string) string { return "generation:checkpoint:" + generationID }

// Save overwrites the checkpoint for generationID with the accumulated
// partial content. Called on a throttled cadence during streaming, not on
// every chunk.
func (s *Store) Save(ctx context.Context, generationID, content string) error {
	if err := s.kv.SetEx(ctx, key(generationID), content, s.ttl); err != nil {
		return fmt.Errorf("saving checkpoint %s: %w", generationID, err)
	}
	return nil
}

// Load returns the checkpoint content and whether one exists. A cleared or
// expired checkpoint reads as absent.
func (s *Store) Load(ctx context.Context, generationID string) (string, bool, error) {
	content, ok, err := s.kv.Get(ctx, key(generationID))
	if err != nil {
		return "", false, fmt.Errorf("loading checkpoint %s: %w", generationID, err)
	}
	return content, ok, nil
}

// Clear removes the checkpoint after a successful completion so it cannot be
// offered as a resume point for finished work.
func (s *Store) Clear(ctx context.Context, generationID string) error {
	if err := s.kv.Del(ctx, key(generationID)); err != nil {
		return fmt.Errorf("clearing checkpoint %s: %w", generationID, err)
	}
	return nil
}

// SaveDetached writes a checkpoint decoupled from the request lifecycle: the
// write proceeds on a background context even when ctx is already cancelled
// (client gone, handler returned). Failures are logged, never returned, so an
// interrupt-path checkpoint cannot mask the primary error.
func (s *Store) SaveDetached(ctx context.Context, generationID, content string) {
	if content == "" {
		return
	}
	bg, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	go func() {
		defer cancel()
		if err := s.Save(bg, generationID, content); err != nil {
			s.logger.Error().Err(err).Str("generation_id", generationID).Msg("Failed to persist interrupt checkpoint")
			return
		}
		s.logger.Info().Str("generation_id", generationID).Int("bytes", len(content)).Msg("Persisted interrupt checkpoint")
	}()
}
