package repository

import (
	"context"
	"testing"
	"time"

	"app/internal/model"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"
)

func newMockPool(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	return mock
}

func TestAccountRepo_GetAccount(t *testing.T) {
	mock := newMockPool(t)
	defer mock.Close()
	r := NewAccountRepo(mock)
	ctx := context.Background()
	now := time.Now()

	mock.ExpectQuery(`SELECT user_id, email, tier, credits, version, created_at, updated_at`).
		WithArgs("user-1").
		WillReturnRows(pgxmock.NewRows([]string{"user_id", "email", "tier", "credits", "version", "created_at", "updated_at"}).
			AddRow("user-1", "a@b.c", model.TierFree, 10, int64(3), now, now))
	a, err := r.GetAccount(ctx, "user-1")
	require.NoError(t, err)
	require.Equal(t, "user-1", a.UserID)
	require.Equal(t, 10, a.Credits)

	mock.ExpectQuery(`SELECT user_id, email, tier, credits, version, created_at, updated_at`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)
	_, err = r.GetAccount(ctx, "missing")
	require.ErrorIs(t, err, ErrAccountNotFound)
}

func TestAccountRepo_CheckCredits_Free(t *testing.T) {
	mock := newMockPool(t)
	defer mock.Close()
	r := NewAccountRepo(mock)
	ctx := context.Background()

	mock.ExpectQuery(`SELECT tier, credits, version FROM accounts WHERE user_id = \$1`).
		WithArgs("user-1").
		WillReturnRows(pgxmock.NewRows([]string{"tier", "credits", "version"}).
			AddRow(model.TierFree, 1, int64(7)))
	status, err := r.CheckCredits(ctx, "user-1")
	require.NoError(t, err)
	require.True(t, status.Allowed)
	require.True(t, status.Metered)
	require.Equal(t, 1, status.Remaining)
	require.Equal(t, int64(7), status.Version)
}

func TestAccountRepo_CheckCredits_FreeExhausted(t *testing.T) {
	mock := newMockPool(t)
	defer mock.Close()
	r := NewAccountRepo(mock)

	mock.ExpectQuery(`SELECT tier, credits, version FROM accounts WHERE user_id = \$1`).
		WithArgs("user-1").
		WillReturnRows(pgxmock.NewRows([]string{"tier", "credits", "version"}).
			AddRow(model.TierFree, 0, int64(7)))
	status, err := r.CheckCredits(context.Background(), "user-1")
	require.NoError(t, err)
	require.False(t, status.Allowed)
	require.True(t, status.Metered)
}

func TestAccountRepo_CheckCredits_ProBypassesBalance(t *testing.T) {
	mock := newMockPool(t)
	defer mock.Close()
	r := NewAccountRepo(mock)

	mock.ExpectQuery(`SELECT tier, credits, version FROM accounts WHERE user_id = \$1`).
		WithArgs("pro-1").
		WillReturnRows(pgxmock.NewRows([]string{"tier", "credits", "version"}).
			AddRow(model.TierPro, 0, int64(2)))
	status, err := r.CheckCredits(context.Background(), "pro-1")
	require.NoError(t, err)
	require.True(t, status.Allowed)
	require.False(t, status.Metered)
}

func TestAccountRepo_DecrementCredits_Success(t *testing.T) {
	mock := newMockPool(t)
	defer mock.Close()
	r := NewAccountRepo(mock)

	mock.ExpectQuery(`UPDATE accounts`).
		WithArgs("user-1", int64(7), 1).
		WillReturnRows(pgxmock.NewRows([]string{"credits", "version"}).AddRow(0, int64(8)))
	res, err := r.DecrementCredits(context.Background(), "user-1", 7, 1)
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Equal(t, 0, res.NewRemaining)
	require.Equal(t, int64(8), res.NewVersion)
}

// With one credit at version 7, two racing charges both pass the read but
// only the statement that still sees version 7 and a sufficient balance
// updates a row. The loser gets zero rows back, not an error.
func TestAccountRepo_DecrementCredits_LoserGetsNoRows(t *testing.T) {
	mock := newMockPool(t)
	defer mock.Close()
	r := NewAccountRepo(mock)
	ctx := context.Background()

	mock.ExpectQuery(`UPDATE accounts`).
		WithArgs("user-1", int64(7), 1).
		WillReturnRows(pgxmock.NewRows([]string{"credits", "version"}).AddRow(0, int64(8)))
	winner, err := r.DecrementCredits(ctx, "user-1", 7, 1)
	require.NoError(t, err)
	require.True(t, winner.Success)

	mock.ExpectQuery(`UPDATE accounts`).
		WithArgs("user-1", int64(7), 1).
		WillReturnError(pgx.ErrNoRows)
	loser, err := r.DecrementCredits(ctx, "user-1", 7, 1)
	require.NoError(t, err)
	require.False(t, loser.Success)
}

func TestAccountRepo_DecrementCredits_InsufficientBalance(t *testing.T) {
	mock := newMockPool(t)
	defer mock.Close()
	r := NewAccountRepo(mock)

	mock.ExpectQuery(`UPDATE accounts`).
		WithArgs("user-1", int64(3), 1).
		WillReturnError(pgx.ErrNoRows)
	res, err := r.DecrementCredits(context.Background(), "user-1", 3, 1)
	require.NoError(t, err)
	require.False(t, res.Success)
}
