package middleware

import (
	"net/http"
	"strconv"

	"app/internal/identity"
	"app/internal/ratelimit"

	"github.com/rs/zerolog"
)

// RateLimitMiddleware counts every request against the general-scope budget,
// keyed on the account id placed in the context by AuthMiddleware, which must
// run first; the client IP is only a fallback for unauthenticated mounts.
// Blocked or over-budget identities get 429 with a Retry-After hint. A store
// failure denies the request: admission never fails open.
func RateLimitMiddleware(limiter *ratelimit.Limiter, logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			accountID, _ := r.Context().Value(UserContextKey).(string)
			id := identity.Resolve(r, accountID)

			decision, err := limiter.Admit(r.Context(), id, ratelimit.ScopeGeneral)
			if err != nil {
				logger.Error().Err(err).Str("identity", id).Msg("Admission store unavailable, denying request")
				http.Error(w, "Service unavailable", http.StatusServiceUnavailable)
				return
			}
			if !decision.Allowed {
				w.Header().Set("Retry-After", strconv.Itoa(int(decision.RetryAfter.Seconds())))
				http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
