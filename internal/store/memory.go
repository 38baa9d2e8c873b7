package store

import (
	"context"
	"strconv"
	"sync"
	"time"
)

// MemoryStore is an in-process Store used by unit tests and single-instance
// local development. It mirrors the Redis semantics, including TTL expiry,
// but its state is local to the process and enforces no global view.
type MemoryStore struct {
	mu      sync.Mutex
	values  map[string]memoryValue
	windows map[string][]time.Time
}

type memoryValue struct {
	value     string
	expiresAt time.Time // zero means no expiry
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		values:  make(map[string]memoryValue),
		windows: make(map[string][]time.Time),
	}
}

func (s *MemoryStore) live(key string, now time.Time) (memoryValue, bool) {
	v, ok := s.values[key]
	if !ok {
		return memoryValue{}, false
	}
	if !v.expiresAt.IsZero() && !now.Before(v.expiresAt) {
		delete(s.values, key)
		return memoryValue{}, false
	}
	return v, true
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.live(key, time.Now())
	if !ok {
		return "", false, nil
	}
	return v.value, true, nil
}

func (s *MemoryStore) SetEx(_ context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = memoryValue{value: value, expiresAt: expiry(ttl)}
	return nil
}

func (s *MemoryStore) SetNX(_ context.Context, key, value string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.live(key, time.Now()); ok {
		return false, nil
	}
	s.values[key] = memoryValue{value: value, expiresAt: expiry(ttl)}
	return true, nil
}

func (s *MemoryStore) Del(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	delete(s.windows, key)
	return nil
}

func (s *MemoryStore) TTL(_ context.Context, key string) (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.live(key, time.Now())
	if !ok || v.expiresAt.IsZero() {
		return 0, nil
	}
	return time.Until(v.expiresAt), nil
}

func (s *MemoryStore) IncrWindow(_ context.Context, key string, window time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	v, ok := s.live(key, now)
	if !ok {
		s.values[key] = memoryValue{value: "1", expiresAt: now.Add(window)}
		return 1, nil
	}
	count, _ := strconv.ParseInt(v.value, 10, 64)
	count++
	s.values[key] = memoryValue{value: strconv.FormatInt(count, 10), expiresAt: v.expiresAt}
	return count, nil
}

func (s *MemoryStore) SlidingCount(_ context.Context, key string, window time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	cutoff := now.Add(-window)
	kept := s.windows[key][:0]
	for _, t := range s.windows[key] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	kept = append(kept, now)
	s.windows[key] = kept
	return int64(len(kept)), nil
}

func expiry(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return time.Now().Add(ttl)
}
