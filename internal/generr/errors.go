// Package generr defines the closed set of admission and generation failures
// and their mapping to HTTP responses. Handlers branch on the kind, never on
// error strings.
package generr

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Kind identifies one failure class in the admission/generation lifecycle.
type Kind int

const (
	// KindRateLimited means the identity exceeded a request budget or is
	// inside an active block window. Retryable after the indicated delay.
	KindRateLimited Kind = iota
	// KindGenerationInProgress means the per-identity generation lock is held.
	KindGenerationInProgress
	// KindCreditsExhausted means the metered balance check failed.
	KindCreditsExhausted
	// KindConflict means the optimistic charge hit a version mismatch.
	KindConflict
	// KindUpstreamFailure means the external generation call failed after retry.
	KindUpstreamFailure
)

// Error is a classified generation failure.
type Error struct {
	Kind       Kind
	Message    string
	RetryAfter time.Duration // populated for KindRateLimited
	cause      error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code(), e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code(), e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// Code returns the stable machine-readable code string for the error kind.
func (e *Error) Code() string {
	switch e.Kind {
	case KindRateLimited:
		return "RATE_LIMITED"
	case KindGenerationInProgress:
		return "GENERATION_IN_PROGRESS"
	case KindCreditsExhausted:
		return "CREDITS_EXHAUSTED"
	case KindConflict:
		return "CONFLICT"
	case KindUpstreamFailure:
		return "UPSTREAM_FAILURE"
	}
	return "UNKNOWN"
}

// HTTPStatus returns the status code for the error kind.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindGenerationInProgress:
		return http.StatusConflict
	case KindCreditsExhausted:
		return http.StatusPaymentRequired
	case KindConflict:
		return http.StatusConflict
	case KindUpstreamFailure:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// RateLimited builds a RATE_LIMITED error with a retry hint.
func RateLimited(msg string, retryAfter time.Duration) *Error {
	return &Error{Kind: KindRateLimited, Message: msg, RetryAfter: retryAfter}
}

// InProgress builds a GENERATION_IN_PROGRESS error.
func InProgress(identity string) *Error {
	return &Error{Kind: KindGenerationInProgress, Message: "generation already in progress for " + identity}
}

// CreditsExhausted builds a CREDITS_EXHAUSTED error.
func CreditsExhausted() *Error {
	return &Error{Kind: KindCreditsExhausted, Message: "no generation credits remaining"}
}

// Conflict builds a CONFLICT error for an optimistic-concurrency mismatch.
func Conflict(msg string) *Error {
	return &Error{Kind: KindConflict, Message: msg}
}

// Upstream wraps an external generation failure.
func Upstream(msg string, cause error) *Error {
	return &Error{Kind: KindUpstreamFailure, Message: msg, cause: cause}
}

// As extracts a *Error from err, if present.
func As(err error) (*Error, bool) {
	var ge *Error
	if errors.As(err, &ge) {
		return ge, true
	}
	return nil, false
}
