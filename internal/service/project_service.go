package service

import (
	"context"
	"errors"
	"fmt"

	"app/internal/model"
	"app/internal/repository"

	"github.com/rs/zerolog"
)

type ProjectService interface {
	CreateProject(ctx context.Context, userID, title string) (*model.Project, error)
	GetProject(ctx context.Context, projectID, userID string) (*model.Project, error)
	ListProjects(ctx context.Context, userID string, limit, offset int) ([]model.Project, error)
	UpdateTitle(ctx context.Context, projectID, userID, title string) (*model.Project, error)
}

type projectService struct {
	projects repository.ProjectRepository
	logger   zerolog.Logger
}

func NewProjectService(projects repository.ProjectRepository, logger zerolog.Logger) ProjectService {
	return &projectService{
		projects: projects,
		logger:   logger.With().Str("service", "ProjectService").Logger(),
	}
}

func (s *projectService) CreateProject(ctx context.Context, userID, title string) (*model.Project, error) {
	if title == "" {
		title = "Untitled page"
	}
	project, err := s.projects.CreateProject(ctx, userID, title)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to create project")
		return nil, fmt.Errorf("creating project: %w", err)
	}
	return project, nil
}

func (s *projectService) GetProject(ctx context.Context, projectID, userID string) (*model.Project, error) {
	project, err := s.projects.GetProject(ctx, projectID)
	if err != nil {
		if errors.Is(err, repository.ErrProjectNotFound) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("getting project: %w", err)
	}
	if project.UserID != userID {
		return nil, ErrUnauthorized
	}
	return project, nil
}

func (s *projectService) ListProjects(ctx context.Context, userID string, limit, offset int) ([]model.Project, error) {
	projects, err := s.projects.ListProjects(ctx, userID, limit, offset)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to list projects")
		return nil, fmt.Errorf("listing projects: %w", err)
	}
	return projects, nil
}

func (s *projectService) UpdateTitle(ctx context.Context, projectID, userID, title string) (*model.Project, error) {
	if err := s.projects.UpdateTitle(ctx, projectID, userID, title); err != nil {
		if errors.Is(err, repository.ErrProjectNotFound) {
			return nil, ErrProjectNotFound
		}
		s.logger.Error().Err(err).Str("project_id", projectID).Msg("Failed to update project title")
		return nil, fmt.Errorf("updating project title: %w", err)
	}
	return s.GetProject(ctx, projectID, userID)
}
