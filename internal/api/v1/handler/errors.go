package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"app/internal/api/v1/dto"
	"app/internal/generr"
	"app/internal/service"

	"github.com/rs/zerolog"
)

// writeError maps a service error onto the wire: classified generation
// failures carry their own status and stable code; service sentinels map to
// 404; everything else is a 500 with no internals leaked.
func writeError(w http.ResponseWriter, logger zerolog.Logger, err error) {
	if ge, ok := generr.As(err); ok {
		if ge.Kind == generr.KindRateLimited && ge.RetryAfter > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(int(ge.RetryAfter.Seconds())))
		}
		writeJSONError(w, logger, ge.HTTPStatus(), ge.Code(), ge.Message)
		return
	}
	switch {
	case errors.Is(err, service.ErrProjectNotFound), errors.Is(err, service.ErrUnauthorized):
		writeJSONError(w, logger, http.StatusNotFound, "NOT_FOUND", "Project not found")
	case errors.Is(err, service.ErrAccountNotFound):
		writeJSONError(w, logger, http.StatusNotFound, "NOT_FOUND", "Account not found")
	default:
		logger.Error().Err(err).Msg("Unhandled service error")
		writeJSONError(w, logger, http.StatusInternalServerError, "INTERNAL", "Internal server error")
	}
}

func writeJSONError(w http.ResponseWriter, logger zerolog.Logger, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(dto.ErrorDTO{Code: code, Message: message}); err != nil {
		logger.Error().Err(err).Msg("Failed to encode error response")
	}
}
