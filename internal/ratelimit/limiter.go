// Package ratelimit implements per-identity admission budgets over the shared
// store: a small sliding window for generation requests, a larger fixed
// window for everything else, and a timed block for identities that blow
// through the general budget.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"app/internal/store"

	"github.com/rs/zerolog"
)

// Scope selects which budget a request is counted against.
type Scope string

const (
	// ScopeGenerate covers generation requests (small sliding window).
	ScopeGenerate Scope = "generate"
	// ScopeGeneral covers all other traffic (larger fixed window).
	ScopeGeneral Scope = "general"
)

// Decision is the outcome of one Admit call.
type Decision struct {
	Allowed    bool
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
}

// Config holds the budgets and windows. Zero values are not usable; callers
// build it from app config.
type Config struct {
	GenerateBudget int
	GenerateWindow time.Duration
	GeneralBudget  int
	GeneralWindow  time.Duration
	BlockTTL       time.Duration
}

// Limiter enforces the two budgets plus block escalation. All state lives in
// the shared store, so any number of replicas enforce one global budget.
type Limiter struct {
	store  store.Store
	cfg    Config
	logger zerolog.Logger
}

// New creates a Limiter over the given store.
func New(st store.Store, cfg Config, logger zerolog.Logger) *Limiter {
	return &Limiter{
		store:  st,
		cfg:    cfg,
		logger: logger.With().Str("service", "RateLimiter").Logger(),
	}
}

func blockKey(identity string) string { return "ratelimit:block:" + identity }

func generateKey(identity string) string { return "ratelimit:generate:" + identity }

func generalKey(identity string) string { return "ratelimit:general:" + identity }

// Admit counts one request for identity against the scope's budget and
// reports whether it may proceed.
//
// An active block short-circuits to a denial without consuming either
// counter, so a blocked identity cannot keep its own windows warm. Store
// errors are returned to the caller, which must deny the request: admission
// fails closed when the shared store is unreachable.
func (l *Limiter) Admit(ctx context.Context, identity string, scope Scope) (Decision, error) {
	blocked, retryAfter, err := l.isBlocked(ctx, identity)
	if err != nil {
		return Decision{}, err
	}
	if blocked {
		return Decision{Allowed: false, Remaining: 0, ResetAt: time.Now().Add(retryAfter), RetryAfter: retryAfter}, nil
	}

	switch scope {
	case ScopeGenerate:
		return l.admitGenerate(ctx, identity)
	case ScopeGeneral:
		return l.admitGeneral(ctx, identity)
	default:
		return Decision{}, fmt.Errorf("unknown rate limit scope %q", scope)
	}
}

func (l *Limiter) isBlocked(ctx context.Context, identity string) (bool, time.Duration, error) {
	_, exists, err := l.store.Get(ctx, blockKey(identity))
	if err != nil {
		return false, 0, fmt.Errorf("checking block for %s: %w", identity, err)
	}
	if !exists {
		return false, 0, nil
	}
	ttl, err := l.store.TTL(ctx, blockKey(identity))
	if err != nil {
		return false, 0, fmt.Errorf("reading block ttl for %s: %w", identity, err)
	}
	if ttl <= 0 {
		ttl = l.cfg.BlockTTL
	}
	return true, ttl, nil
}

func (l *Limiter) admitGenerate(ctx context.Context, identity string) (Decision, error) {
	count, err := l.store.SlidingCount(ctx, generateKey(identity), l.cfg.GenerateWindow)
	if err != nil {
		return Decision{}, fmt.Errorf("counting generate window for %s: %w", identity, err)
	}
	resetAt := time.Now().Add(l.cfg.GenerateWindow)
	if count > int64(l.cfg.GenerateBudget) {
		return Decision{Allowed: false, Remaining: 0, ResetAt: resetAt, RetryAfter: l.cfg.GenerateWindow}, nil
	}
	return Decision{Allowed: true, Remaining: l.cfg.GenerateBudget - int(count), ResetAt: resetAt}, nil
}

func (l *Limiter) admitGeneral(ctx context.Context, identity string) (Decision, error) {
	count, err := l.store.IncrWindow(ctx, generalKey(identity), l.cfg.GeneralWindow)
	if err != nil {
		return Decision{}, fmt.Errorf("counting general window for %s: %w", identity, err)
	}
	ttl, err := l.store.TTL(ctx, generalKey(identity))
	if err != nil || ttl <= 0 {
		ttl = l.cfg.GeneralWindow
	}
	resetAt := time.Now().Add(ttl)
	if count > int64(l.cfg.GeneralBudget) {
		// Escalate: repeat offenders get a block with its own TTL that
		// outlives the counter window.
		if err := l.store.SetEx(ctx, blockKey(identity), "1", l.cfg.BlockTTL); err != nil {
			return Decision{}, fmt.Errorf("blocking %s: %w", identity, err)
		}
		l.logger.Warn().Str("identity", identity).Dur("block_ttl", l.cfg.BlockTTL).Msg("General budget exceeded, identity blocked")
		return Decision{Allowed: false, Remaining: 0, ResetAt: time.Now().Add(l.cfg.BlockTTL), RetryAfter: l.cfg.BlockTTL}, nil
	}
	return Decision{Allowed: true, Remaining: l.cfg.GeneralBudget - int(count), ResetAt: resetAt}, nil
}
