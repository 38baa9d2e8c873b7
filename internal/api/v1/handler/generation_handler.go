package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"app/internal/api/v1/dto"
	"app/internal/generr"
	"app/internal/identity"
	"app/internal/middleware"
	"app/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

type GenerationHandler struct {
	generationService service.GenerationService
	refineService     service.RefineService
	validate          *validator.Validate
	defaultModel      string
	logger            zerolog.Logger
}

func NewGenerationHandler(
	generationService service.GenerationService,
	refineService service.RefineService,
	v *validator.Validate,
	defaultModel string,
	logger zerolog.Logger,
) *GenerationHandler {
	return &GenerationHandler{
		generationService: generationService,
		refineService:     refineService,
		validate:          v,
		defaultModel:      defaultModel,
		logger:            logger,
	}
}

// generate streams the page generation as Server-Sent Events. Admission
// failures are reported with their mapped status before any event is sent;
// failures mid-stream arrive as an error event since headers are gone.
func (h *GenerationHandler) generate(w http.ResponseWriter, r *http.Request, projectID string) {
	userID, ok := r.Context().Value(middleware.UserContextKey).(string)
	if !ok || userID == "" {
		http.Error(w, "Unauthorized: User ID not found in context", http.StatusUnauthorized)
		return
	}

	var req dto.GenerateRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON payload: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		http.Error(w, "Validation failed: "+err.Error(), http.StatusBadRequest)
		return
	}

	model := req.Model
	if model == "" {
		model = h.defaultModel
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	params := service.GenerateParams{
		AccountID: userID,
		Identity:  identity.Resolve(r, userID),
		ProjectID: projectID,
		Prompt:    req.Prompt,
		Model:     model,
	}

	headersSent := false
	onDelta := func(delta string) error {
		if !headersSent {
			w.Header().Set("Content-Type", "text/event-stream")
			w.Header().Set("Cache-Control", "no-cache")
			w.Header().Set("Connection", "keep-alive")
			w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering
			headersSent = true
		}
		event := map[string]interface{}{"type": "delta", "delta": delta}
		eventJSON, err := json.Marshal(event)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", eventJSON); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	result, err := h.generationService.Generate(r.Context(), params, onDelta)
	if err != nil {
		if !headersSent {
			writeError(w, h.logger, err)
			return
		}
		// Headers already sent; the status line is gone. Emit the stable
		// code in-band so the client can still branch.
		code := "INTERNAL"
		if ge, ok := generr.As(err); ok {
			code = ge.Code()
		}
		if r.Context().Err() != nil {
			// Client is gone; nothing left to tell it.
			h.logger.Info().Str("project_id", projectID).Msg("Generation interrupted by client")
			return
		}
		event, _ := json.Marshal(map[string]interface{}{"type": "error", "code": code})
		fmt.Fprintf(w, "data: %s\n\n", event)
		flusher.Flush()
		return
	}

	done := map[string]interface{}{
		"type":             "done",
		"charged":          result.Charged,
		"billing_conflict": result.BillingConflict,
		"remaining":        result.Remaining,
	}
	doneJSON, _ := json.Marshal(done)
	if !headersSent {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", doneJSON); err != nil {
		h.logger.Error().Err(err).Msg("Failed to write done event")
		return
	}
	flusher.Flush()
}

func (h *GenerationHandler) getCheckpoint(w http.ResponseWriter, r *http.Request, projectID string) {
	userID, ok := r.Context().Value(middleware.UserContextKey).(string)
	if !ok || userID == "" {
		http.Error(w, "Unauthorized: User ID not found in context", http.StatusUnauthorized)
		return
	}

	content, exists, err := h.generationService.LoadCheckpoint(r.Context(), projectID, userID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if !exists {
		writeJSONError(w, h.logger, http.StatusNotFound, "NOT_FOUND", "No checkpoint for project")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(dto.CheckpointResponseDTO{ProjectID: projectID, Content: content}); err != nil {
		h.logger.Error().Err(err).Msg("Failed to encode response")
	}
}

func (h *GenerationHandler) refine(w http.ResponseWriter, r *http.Request, projectID string) {
	userID, ok := r.Context().Value(middleware.UserContextKey).(string)
	if !ok || userID == "" {
		http.Error(w, "Unauthorized: User ID not found in context", http.StatusUnauthorized)
		return
	}

	var req dto.RefineRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON payload: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		http.Error(w, "Validation failed: "+err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.refineService.EnqueueRefine(r.Context(), projectID, userID, req.Instruction); err != nil {
		writeError(w, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}
