package generr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"
)

func TestKindMapping(t *testing.T) {
	tests := []struct {
		err    *Error
		code   string
		status int
	}{
		{RateLimited("too many", time.Minute), "RATE_LIMITED", http.StatusTooManyRequests},
		{InProgress("user-1"), "GENERATION_IN_PROGRESS", http.StatusConflict},
		{CreditsExhausted(), "CREDITS_EXHAUSTED", http.StatusPaymentRequired},
		{Conflict("version moved"), "CONFLICT", http.StatusConflict},
		{Upstream("stream failed", errors.New("reset")), "UPSTREAM_FAILURE", http.StatusBadGateway},
	}
	for _, tt := range tests {
		if got := tt.err.Code(); got != tt.code {
			t.Errorf("Code() = %q, want %q", got, tt.code)
		}
		if got := tt.err.HTTPStatus(); got != tt.status {
			t.Errorf("HTTPStatus() for %s = %d, want %d", tt.code, got, tt.status)
		}
	}
}

func TestAsThroughWrapping(t *testing.T) {
	inner := CreditsExhausted()
	wrapped := fmt.Errorf("handling request: %w", inner)

	ge, ok := As(wrapped)
	if !ok {
		t.Fatal("expected classified error through wrapping")
	}
	if ge.Kind != KindCreditsExhausted {
		t.Fatalf("unexpected kind %v", ge.Kind)
	}

	if _, ok := As(errors.New("plain")); ok {
		t.Fatal("plain errors must not classify")
	}
}

func TestUpstreamPreservesCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := Upstream("stream failed", cause)
	if !errors.Is(err, cause) {
		t.Fatal("cause should be reachable via errors.Is")
	}
}

func TestRateLimitedCarriesRetryHint(t *testing.T) {
	err := RateLimited("budget exceeded", 30*time.Second)
	if err.RetryAfter != 30*time.Second {
		t.Fatalf("unexpected retry hint %v", err.RetryAfter)
	}
}
