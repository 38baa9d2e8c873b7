package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"app/internal/store"

	"github.com/rs/zerolog"
)

func testLimiter(t *testing.T, cfg Config) (*Limiter, *store.MemoryStore) {
	t.Helper()
	st := store.NewMemoryStore()
	return New(st, cfg, zerolog.Nop()), st
}

func defaultConfig() Config {
	return Config{
		GenerateBudget: 3,
		GenerateWindow: time.Minute,
		GeneralBudget:  5,
		GeneralWindow:  time.Minute,
		BlockTTL:       15 * time.Minute,
	}
}

func TestAdmitGenerateWithinBudget(t *testing.T) {
	l, _ := testLimiter(t, defaultConfig())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		d, err := l.Admit(ctx, "user-1", ScopeGenerate)
		if err != nil {
			t.Fatalf("admit %d: %v", i, err)
		}
		if !d.Allowed {
			t.Fatalf("request %d should be allowed", i)
		}
		if d.Remaining != 2-i {
			t.Fatalf("request %d: expected remaining %d, got %d", i, 2-i, d.Remaining)
		}
	}

	d, err := l.Admit(ctx, "user-1", ScopeGenerate)
	if err != nil {
		t.Fatal(err)
	}
	if d.Allowed {
		t.Fatal("fourth generation should be denied")
	}
	if d.RetryAfter <= 0 {
		t.Fatal("denied decision should carry a retry hint")
	}
}

func TestAdmitGenerateIsolatesIdentities(t *testing.T) {
	l, _ := testLimiter(t, defaultConfig())
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		l.Admit(ctx, "user-1", ScopeGenerate)
	}
	d, err := l.Admit(ctx, "user-2", ScopeGenerate)
	if err != nil {
		t.Fatal(err)
	}
	if !d.Allowed {
		t.Fatal("user-2 should not share user-1's budget")
	}
}

func TestAdmitGenerateSlidingWindow(t *testing.T) {
	cfg := defaultConfig()
	cfg.GenerateWindow = 50 * time.Millisecond
	l, _ := testLimiter(t, cfg)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		l.Admit(ctx, "user-1", ScopeGenerate)
	}
	time.Sleep(60 * time.Millisecond)

	d, err := l.Admit(ctx, "user-1", ScopeGenerate)
	if err != nil {
		t.Fatal(err)
	}
	if !d.Allowed {
		t.Fatal("expired window entries should free the budget")
	}
}

func TestAdmitGeneralEscalatesToBlock(t *testing.T) {
	l, st := testLimiter(t, defaultConfig())
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		d, err := l.Admit(ctx, "10.0.0.1", ScopeGeneral)
		if err != nil {
			t.Fatalf("admit %d: %v", i, err)
		}
		if !d.Allowed {
			t.Fatalf("request %d should be allowed", i)
		}
	}

	d, err := l.Admit(ctx, "10.0.0.1", ScopeGeneral)
	if err != nil {
		t.Fatal(err)
	}
	if d.Allowed {
		t.Fatal("over-budget request should be denied")
	}
	if _, exists, _ := st.Get(ctx, "ratelimit:block:10.0.0.1"); !exists {
		t.Fatal("expected block key after general budget exceeded")
	}
}

func TestBlockOutlivesWindowReset(t *testing.T) {
	cfg := defaultConfig()
	cfg.GeneralWindow = 20 * time.Millisecond
	l, _ := testLimiter(t, cfg)
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		l.Admit(ctx, "10.0.0.2", ScopeGeneral)
	}
	time.Sleep(30 * time.Millisecond)

	// The counter window has lapsed but the block has not.
	d, err := l.Admit(ctx, "10.0.0.2", ScopeGeneral)
	if err != nil {
		t.Fatal(err)
	}
	if d.Allowed {
		t.Fatal("block must outlive the counter window")
	}
}

func TestBlockedIdentityConsumesNoCounters(t *testing.T) {
	l, st := testLimiter(t, defaultConfig())
	ctx := context.Background()

	if err := st.SetEx(ctx, "ratelimit:block:user-3", "1", 15*time.Minute); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 10; i++ {
		d, err := l.Admit(ctx, "user-3", ScopeGenerate)
		if err != nil {
			t.Fatal(err)
		}
		if d.Allowed {
			t.Fatal("blocked identity should be denied")
		}
	}

	// Lifting the block restores the untouched generation budget.
	if err := st.Del(ctx, "ratelimit:block:user-3"); err != nil {
		t.Fatal(err)
	}
	d, err := l.Admit(ctx, "user-3", ScopeGenerate)
	if err != nil {
		t.Fatal(err)
	}
	if !d.Allowed || d.Remaining != 2 {
		t.Fatalf("expected a fresh budget after unblock, got allowed=%v remaining=%d", d.Allowed, d.Remaining)
	}
}

func TestBlockAppliesAcrossScopes(t *testing.T) {
	l, _ := testLimiter(t, defaultConfig())
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		l.Admit(ctx, "user-4", ScopeGeneral)
	}

	d, err := l.Admit(ctx, "user-4", ScopeGenerate)
	if err != nil {
		t.Fatal(err)
	}
	if d.Allowed {
		t.Fatal("a general-scope block must also deny generation requests")
	}
}

type failingStore struct {
	store.Store
}

var errStoreDown = errors.New("store down")

func (failingStore) Get(context.Context, string) (string, bool, error) {
	return "", false, errStoreDown
}

func TestAdmitFailsClosedOnStoreError(t *testing.T) {
	l := New(failingStore{}, defaultConfig(), zerolog.Nop())

	_, err := l.Admit(context.Background(), "user-5", ScopeGenerate)
	if !errors.Is(err, errStoreDown) {
		t.Fatalf("expected store error to propagate, got %v", err)
	}
}
