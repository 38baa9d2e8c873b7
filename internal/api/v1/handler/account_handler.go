package handler

import (
	"encoding/json"
	"net/http"

	"app/internal/api/v1/dto"
	"app/internal/middleware"
	"app/internal/service"

	"github.com/rs/zerolog"
)

type AccountHandler struct {
	accountService service.AccountService
	logger         zerolog.Logger
}

func NewAccountHandler(accountService service.AccountService, logger zerolog.Logger) *AccountHandler {
	return &AccountHandler{accountService: accountService, logger: logger}
}

func (h *AccountHandler) RegisterRoutes(mux *http.ServeMux, authMw func(http.Handler) http.Handler) {
	mux.Handle("/me/credits", authMw(http.HandlerFunc(h.getCredits)))
}

func (h *AccountHandler) getCredits(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	userID, ok := r.Context().Value(middleware.UserContextKey).(string)
	if !ok || userID == "" {
		http.Error(w, "Unauthorized: User ID not found in context", http.StatusUnauthorized)
		return
	}

	account, err := h.accountService.GetAccount(r.Context(), userID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	resp := dto.CreditsResponseDTO{Tier: string(account.Tier), Credits: account.Credits}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error().Err(err).Msg("Failed to encode response")
	}
}
