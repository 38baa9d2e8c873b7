package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"app/internal/api/v1/dto"
	"app/internal/middleware"
	"app/internal/model"
	"app/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

type ProjectHandler struct {
	projectService    service.ProjectService
	generationHandler *GenerationHandler
	validate          *validator.Validate
	logger            zerolog.Logger
}

func NewProjectHandler(projectService service.ProjectService, generationHandler *GenerationHandler, v *validator.Validate, logger zerolog.Logger) *ProjectHandler {
	return &ProjectHandler{
		projectService:    projectService,
		generationHandler: generationHandler,
		validate:          v,
		logger:            logger,
	}
}

// RegisterRoutes mounts v1 project routes. Generation subroutes are
// delegated to the GenerationHandler.
func (h *ProjectHandler) RegisterRoutes(mux *http.ServeMux, authMw func(http.Handler) http.Handler) {
	mux.Handle("/projects", authMw(http.HandlerFunc(h.handleProjects)))
	mux.Handle("/projects/", authMw(http.HandlerFunc(h.handleProject)))
}

func (h *ProjectHandler) handleProjects(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.createProject(w, r)
	case http.MethodGet:
		h.listProjects(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (h *ProjectHandler) handleProject(w http.ResponseWriter, r *http.Request) {
	pathParts := strings.Split(strings.TrimPrefix(r.URL.Path, "/projects/"), "/")
	if len(pathParts) == 0 || pathParts[0] == "" {
		http.NotFound(w, r)
		return
	}
	projectID := pathParts[0]

	if len(pathParts) == 1 {
		switch r.Method {
		case http.MethodGet:
			h.getProject(w, r, projectID)
		case http.MethodPatch:
			h.updateProject(w, r, projectID)
		default:
			http.NotFound(w, r)
		}
		return
	}

	switch {
	case pathParts[1] == "generate" && r.Method == http.MethodPost:
		h.generationHandler.generate(w, r, projectID)
	case pathParts[1] == "checkpoint" && r.Method == http.MethodGet:
		h.generationHandler.getCheckpoint(w, r, projectID)
	case pathParts[1] == "refine" && r.Method == http.MethodPost:
		h.generationHandler.refine(w, r, projectID)
	default:
		http.NotFound(w, r)
	}
}

func (h *ProjectHandler) createProject(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value(middleware.UserContextKey).(string)
	if !ok || userID == "" {
		http.Error(w, "Unauthorized: User ID not found in context", http.StatusUnauthorized)
		return
	}

	var req dto.ProjectCreateDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON payload: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		http.Error(w, "Validation failed: "+err.Error(), http.StatusBadRequest)
		return
	}

	title := ""
	if req.Title != nil {
		title = *req.Title
	}

	project, err := h.projectService.CreateProject(r.Context(), userID, title)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(toProjectDTO(project)); err != nil {
		h.logger.Error().Err(err).Msg("Failed to encode response")
	}
}

func (h *ProjectHandler) listProjects(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value(middleware.UserContextKey).(string)
	if !ok || userID == "" {
		http.Error(w, "Unauthorized: User ID not found in context", http.StatusUnauthorized)
		return
	}

	limit := 20
	offset := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	projects, err := h.projectService.ListProjects(r.Context(), userID, limit, offset)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	resp := make([]dto.ProjectResponseDTO, len(projects))
	for i := range projects {
		resp[i] = toProjectDTO(&projects[i])
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error().Err(err).Msg("Failed to encode response")
	}
}

func (h *ProjectHandler) getProject(w http.ResponseWriter, r *http.Request, projectID string) {
	userID, ok := r.Context().Value(middleware.UserContextKey).(string)
	if !ok || userID == "" {
		http.Error(w, "Unauthorized: User ID not found in context", http.StatusUnauthorized)
		return
	}

	project, err := h.projectService.GetProject(r.Context(), projectID, userID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(toProjectDTO(project)); err != nil {
		h.logger.Error().Err(err).Msg("Failed to encode response")
	}
}

func (h *ProjectHandler) updateProject(w http.ResponseWriter, r *http.Request, projectID string) {
	userID, ok := r.Context().Value(middleware.UserContextKey).(string)
	if !ok || userID == "" {
		http.Error(w, "Unauthorized: User ID not found in context", http.StatusUnauthorized)
		return
	}

	var req dto.ProjectUpdateDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON payload: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		http.Error(w, "Validation failed: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Title == nil || *req.Title == "" {
		http.Error(w, "Title is required", http.StatusBadRequest)
		return
	}

	project, err := h.projectService.UpdateTitle(r.Context(), projectID, userID, *req.Title)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(toProjectDTO(project)); err != nil {
		h.logger.Error().Err(err).Msg("Failed to encode response")
	}
}

func toProjectDTO(p *model.Project) dto.ProjectResponseDTO {
	return dto.ProjectResponseDTO{
		ID:        p.ID,
		UserID:    p.UserID,
		Title:     p.Title,
		HTML:      p.HTML,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}
