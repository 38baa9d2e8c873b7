package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"app/internal/edit"
	"app/internal/model"
	"app/internal/pgmq"
	"app/internal/repository"

	"github.com/rs/zerolog"
)

// RefineService runs the conservative refinement pass: a secondary model call
// whose output is constrained to line-range edit blocks, applied with a
// bounded blast radius. Jobs are queued and processed by the orchestrator
// worker, decoupled from the request path.
type RefineService interface {
	// EnqueueRefine validates ownership and queues a refinement job.
	EnqueueRefine(ctx context.Context, projectID, userID, instruction string) error
	// ProcessJob executes one queued job. It is idempotent: re-running the
	// same job against the same snapshot produces the same document.
	ProcessJob(ctx context.Context, job model.RefineJob) error
}

type refineService struct {
	projects  repository.ProjectRepository
	queue     *pgmq.Client
	llm       LLMClient
	queueName string
	logger    zerolog.Logger
}

func NewRefineService(
	projects repository.ProjectRepository,
	queue *pgmq.Client,
	llm LLMClient,
	queueName string,
	logger zerolog.Logger,
) RefineService {
	return &refineService{
		projects:  projects,
		queue:     queue,
		llm:       llm,
		queueName: queueName,
		logger:    logger.With().Str("service", "RefineService").Logger(),
	}
}

func (s *refineService) EnqueueRefine(ctx context.Context, projectID, userID, instruction string) error {
	project, err := s.projects.GetProject(ctx, projectID)
	if err != nil {
		if errors.Is(err, repository.ErrProjectNotFound) {
			return ErrProjectNotFound
		}
		return fmt.Errorf("loading project: %w", err)
	}
	if project.UserID != userID {
		return ErrUnauthorized
	}

	payload, err := json.Marshal(model.RefineJob{
		ProjectID:   projectID,
		UserID:      userID,
		Instruction: instruction,
	})
	if err != nil {
		return fmt.Errorf("marshaling refine job: %w", err)
	}
	if err := s.queue.Send(ctx, s.queueName, payload); err != nil {
		s.logger.Error().Err(err).Str("project_id", projectID).Msg("Failed to enqueue refine job")
		return fmt.Errorf("enqueuing refine job: %w", err)
	}
	return nil
}

func (s *refineService) ProcessJob(ctx context.Context, job model.RefineJob) error {
	project, err := s.projects.GetProject(ctx, job.ProjectID)
	if err != nil {
		return fmt.Errorf("loading project %s: %w", job.ProjectID, err)
	}
	if project.UserID != job.UserID {
		return fmt.Errorf("refine job for project %s: %w", job.ProjectID, ErrUnauthorized)
	}

	// The model sees the document with 1-based line numbers; returned edit
	// blocks reference that numbering.
	numbered := edit.NumberLines(project.HTML)
	response, err := s.llm.Refine(ctx, job.ProjectID, job.UserID, numbered, job.Instruction)
	if err != nil {
		return fmt.Errorf("refine call for project %s: %w", job.ProjectID, err)
	}

	parsed := edit.Parse(response)
	if parsed.FullRewriteRequested {
		// Full rewrites are rejected by policy; only the surgical blocks,
		// if any, are considered.
		s.logger.Warn().Str("project_id", job.ProjectID).Msg("Refinement requested a full rewrite, rejected")
	}
	if len(parsed.Blocks) == 0 {
		s.logger.Info().Str("project_id", job.ProjectID).Msg("Refinement produced no edits")
		return nil
	}

	updated, applied := edit.Apply(project.HTML, parsed.Blocks)
	if applied == 0 {
		s.logger.Info().Str("project_id", job.ProjectID).Msg("No refinement blocks were applicable")
		return nil
	}

	if err := s.projects.UpdateHTML(ctx, job.ProjectID, updated); err != nil {
		return fmt.Errorf("persisting refined html for project %s: %w", job.ProjectID, err)
	}
	s.logger.Info().
		Str("project_id", job.ProjectID).
		Int("applied_blocks", applied).
		Int("parsed_blocks", len(parsed.Blocks)).
		Msg("Applied refinement")
	return nil
}
