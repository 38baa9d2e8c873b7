package repository

import (
	"context"
	"errors"
	"fmt"

	"app/internal/model"

	"github.com/jackc/pgx/v5"
)

// ErrAccountNotFound is returned when no account row exists for the id.
var ErrAccountNotFound = errors.New("account_not_found")

// CreditStatus reports whether an account may start a generation. For PRO
// accounts Allowed is always true and the balance is bookkeeping only.
type CreditStatus struct {
	Allowed   bool
	Metered   bool
	Remaining int
	Version   int64
}

// DecrementResult reports the outcome of an optimistic charge. Success=false
// covers both a version mismatch and an insufficient balance; the two are
// deliberately indistinguishable without a re-read.
type DecrementResult struct {
	Success      bool
	NewRemaining int
	NewVersion   int64
}

// AccountRepository is the credit ledger: the only code path that mutates an
// account's credit balance.
type AccountRepository interface {
	GetAccount(ctx context.Context, accountID string) (*model.Account, error)
	// CheckCredits returns the admission decision plus the balance/version
	// snapshot used to chain a later DecrementCredits.
	CheckCredits(ctx context.Context, accountID string) (CreditStatus, error)
	// DecrementCredits charges amount against the balance read at
	// expectedVersion, in a single conditional statement.
	DecrementCredits(ctx context.Context, accountID string, expectedVersion int64, amount int) (DecrementResult, error)
}

type accountRepo struct {
	pool PgxPool
}

// NewAccountRepo creates a new AccountRepository.
func NewAccountRepo(pool PgxPool) AccountRepository {
	return &accountRepo{pool: pool}
}

func (r *accountRepo) GetAccount(ctx context.Context, accountID string) (*model.Account, error) {
	const q = `
        SELECT user_id, email, tier, credits, version, created_at, updated_at
        FROM accounts
        WHERE user_id = $1
    `
	var a model.Account
	err := r.pool.QueryRow(ctx, q, accountID).Scan(
		&a.UserID,
		&a.Email,
		&a.Tier,
		&a.Credits,
		&a.Version,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("fetching account %s: %w", accountID, err)
	}
	return &a, nil
}

func (r *accountRepo) CheckCredits(ctx context.Context, accountID string) (CreditStatus, error) {
	const q = `SELECT tier, credits, version FROM accounts WHERE user_id = $1`
	var tier model.Tier
	var credits int
	var version int64
	if err := r.pool.QueryRow(ctx, q, accountID).Scan(&tier, &credits, &version); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return CreditStatus{}, ErrAccountNotFound
		}
		return CreditStatus{}, fmt.Errorf("checking credits for %s: %w", accountID, err)
	}

	// PRO is unlimited by design; balance and version are returned for
	// bookkeeping only, and PRO generations are not charged.
	metered := tier != model.TierPro
	allowed := !metered || credits > 0
	return CreditStatus{Allowed: allowed, Metered: metered, Remaining: credits, Version: version}, nil
}

// DecrementCredits is one atomic round trip: the version and balance guards
// live inside the UPDATE itself, so concurrent chargers cannot interleave a
// read between check and write. Zero affected rows means another mutation won
// or the balance was short; either way the caller re-reads or surfaces a
// conflict.
func (r *accountRepo) DecrementCredits(ctx context.Context, accountID string, expectedVersion int64, amount int) (DecrementResult, error) {
	const q = `
        UPDATE accounts
        SET credits = credits - $3, version = version + 1, updated_at = NOW()
        WHERE user_id = $1 AND version = $2 AND credits >= $3
        RETURNING credits, version
    `
	var remaining int
	var version int64
	err := r.pool.QueryRow(ctx, q, accountID, expectedVersion, amount).Scan(&remaining, &version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return DecrementResult{Success: false}, nil
		}
		return DecrementResult{}, fmt.Errorf("decrementing credits for %s: %w", accountID, err)
	}
	return DecrementResult{Success: true, NewRemaining: remaining, NewVersion: version}, nil
}
