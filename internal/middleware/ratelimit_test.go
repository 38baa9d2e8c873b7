package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"app/internal/ratelimit"
	"app/internal/store"

	"github.com/rs/zerolog"
)

func newTestLimiter(st store.Store, generalBudget int) *ratelimit.Limiter {
	return ratelimit.New(st, ratelimit.Config{
		GenerateBudget: 3,
		GenerateWindow: time.Minute,
		GeneralBudget:  generalBudget,
		GeneralWindow:  time.Minute,
		BlockTTL:       15 * time.Minute,
	}, zerolog.Nop())
}

func serveAs(t *testing.T, handler http.Handler, userID string) *httptest.ResponseRecorder {
	t.Helper()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	if userID != "" {
		r = r.WithContext(context.WithValue(r.Context(), UserContextKey, userID))
	}
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	return w
}

func TestRateLimitMiddlewareAllowsWithinBudget(t *testing.T) {
	st := store.NewMemoryStore()
	handler := RateLimitMiddleware(newTestLimiter(st, 3), zerolog.Nop())(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}),
	)

	for i := 0; i < 3; i++ {
		if w := serveAs(t, handler, "user-a"); w.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, w.Code)
		}
	}
}

func TestRateLimitMiddlewareDeniesOverBudget(t *testing.T) {
	st := store.NewMemoryStore()
	handler := RateLimitMiddleware(newTestLimiter(st, 2), zerolog.Nop())(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}),
	)

	serveAs(t, handler, "user-a")
	serveAs(t, handler, "user-a")
	w := serveAs(t, handler, "user-a")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Fatal("429 must carry a Retry-After header")
	}
}

// An authenticated caller without proxy headers must be counted under its
// account id, and its block must never spill onto other accounts.
func TestRateLimitMiddlewareKeysOnAccountID(t *testing.T) {
	st := store.NewMemoryStore()
	handler := RateLimitMiddleware(newTestLimiter(st, 2), zerolog.Nop())(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}),
	)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		serveAs(t, handler, "user-a")
	}

	if _, exists, _ := st.Get(ctx, "ratelimit:block:user-a"); !exists {
		t.Fatal("expected user-a to be blocked under its account id")
	}
	if _, exists, _ := st.Get(ctx, "ratelimit:block:unknown"); exists {
		t.Fatal("authenticated traffic must never count against the unknown bucket")
	}

	if w := serveAs(t, handler, "user-b"); w.Code != http.StatusOK {
		t.Fatalf("user-b must not inherit user-a's block, got %d", w.Code)
	}
}

// The full chain as the router mounts it: auth first, then the limiter, so
// the limiter observes the account id the token carried.
func TestAuthThenRateLimitChain(t *testing.T) {
	st := store.NewMemoryStore()
	limiter := newTestLimiter(st, 2)
	handler := AuthMiddleware(testSecret, zerolog.Nop())(
		RateLimitMiddleware(limiter, zerolog.Nop())(
			http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}),
		),
	)

	token := signToken(t, testSecret, "user-a")
	for i := 0; i < 3; i++ {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)
		if i < 2 && w.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, w.Code)
		}
		if i == 2 && w.Code != http.StatusTooManyRequests {
			t.Fatalf("expected 429 on the third request, got %d", w.Code)
		}
	}

	if _, exists, _ := st.Get(context.Background(), "ratelimit:general:user-a"); !exists {
		t.Fatal("general counter must be keyed on the authenticated account id")
	}
}

type downStore struct {
	store.Store
}

var errDown = errors.New("store down")

func (downStore) Get(context.Context, string) (string, bool, error) {
	return "", false, errDown
}

func TestRateLimitMiddlewareDeniesOnStoreError(t *testing.T) {
	handler := RateLimitMiddleware(newTestLimiter(downStore{}, 2), zerolog.Nop())(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler must not run when the store is down")
		}),
	)

	if w := serveAs(t, handler, "user-a"); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 when the store is unreachable, got %d", w.Code)
	}
}
