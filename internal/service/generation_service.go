package service

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"app/internal/checkpoint"
	"app/internal/generr"
	"app/internal/genlock"
	"app/internal/ratelimit"
	"app/internal/repository"

	"github.com/rs/zerolog"
)

var (
	ErrProjectNotFound = errors.New("project not found")
	ErrUnauthorized    = errors.New("unauthorized access")
)

// GenerateParams identifies one generation request.
type GenerateParams struct {
	AccountID string // authenticated account id, also the charged account
	Identity  string // admission identity (account id or client IP)
	ProjectID string
	Prompt    string
	Model     string
}

// GenerationResult is returned after a completed generation. BillingConflict
// reports an optimistic-concurrency miss at charge time: the content was
// still delivered, the charge was not applied.
type GenerationResult struct {
	HTML            string
	Charged         bool
	BillingConflict bool
	Remaining       int
}

// GenerationService runs the full request lifecycle: admission, lock,
// streaming generation with checkpoint mirroring, charge, release.
type GenerationService interface {
	// Generate streams HTML deltas into onDelta and returns the final
	// document. The per-identity generation lock is released on every exit
	// path; on interruption the accumulated partial output is checkpointed
	// rather than discarded.
	Generate(ctx context.Context, params GenerateParams, onDelta func(delta string) error) (*GenerationResult, error)
	// LoadCheckpoint returns the surviving partial output for a project's
	// interrupted generation, if any.
	LoadCheckpoint(ctx context.Context, projectID, userID string) (string, bool, error)
}

type generationService struct {
	limiter       *ratelimit.Limiter
	locks         *genlock.Manager
	checkpoints   *checkpoint.Store
	accounts      repository.AccountRepository
	projects      repository.ProjectRepository
	llm           LLMClient
	creditCost    int
	flushInterval time.Duration
	upstreamTries int
	logger        zerolog.Logger
}

func NewGenerationService(
	limiter *ratelimit.Limiter,
	locks *genlock.Manager,
	checkpoints *checkpoint.Store,
	accounts repository.AccountRepository,
	projects repository.ProjectRepository,
	llm LLMClient,
	creditCost int,
	flushInterval time.Duration,
	upstreamTries int,
	logger zerolog.Logger,
) GenerationService {
	if upstreamTries < 1 {
		upstreamTries = 1
	}
	return &generationService{
		limiter:       limiter,
		locks:         locks,
		checkpoints:   checkpoints,
		accounts:      accounts,
		projects:      projects,
		llm:           llm,
		creditCost:    creditCost,
		flushInterval: flushInterval,
		upstreamTries: upstreamTries,
		logger:        logger.With().Str("service", "GenerationService").Logger(),
	}
}

func (s *generationService) Generate(ctx context.Context, params GenerateParams, onDelta func(delta string) error) (*GenerationResult, error) {
	// Admission runs before anything expensive. A store failure is a hard
	// failure: the request is denied, never silently admitted.
	decision, err := s.limiter.Admit(ctx, params.Identity, ratelimit.ScopeGenerate)
	if err != nil {
		return nil, fmt.Errorf("admission check failed: %w", err)
	}
	if !decision.Allowed {
		return nil, generr.RateLimited("generation rate limit exceeded", decision.RetryAfter)
	}

	project, err := s.projects.GetProject(ctx, params.ProjectID)
	if err != nil {
		if errors.Is(err, repository.ErrProjectNotFound) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("loading project: %w", err)
	}
	if project.UserID != params.AccountID {
		return nil, ErrUnauthorized
	}

	acquired, err := s.locks.Acquire(ctx, params.Identity)
	if err != nil {
		return nil, fmt.Errorf("acquiring generation lock: %w", err)
	}
	if !acquired {
		// The admission quota was already consumed; a contended identity
		// pays the rate-limit cost even when it loses the lock race.
		return nil, generr.InProgress(params.Identity)
	}
	defer func() {
		// Runs even when the request context is already dead.
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := s.locks.Release(rctx, params.Identity); err != nil {
			s.logger.Error().Err(err).Str("identity", params.Identity).Msg("Failed to release generation lock")
		}
	}()

	status, err := s.accounts.CheckCredits(ctx, params.AccountID)
	if err != nil {
		return nil, fmt.Errorf("checking credits: %w", err)
	}
	if !status.Allowed {
		return nil, generr.CreditsExhausted()
	}

	html, err := s.stream(ctx, params, onDelta)
	if err != nil {
		return nil, err
	}

	// Product state is last-write-wins and non-financial; a persist failure
	// must not take down a generation that already streamed to the client.
	if err := s.projects.UpdateHTML(ctx, params.ProjectID, html); err != nil {
		s.logger.Error().Err(err).Str("project_id", params.ProjectID).Msg("Failed to persist generated html")
	}

	result := &GenerationResult{HTML: html, Remaining: status.Remaining}
	if status.Metered {
		charge, err := s.accounts.DecrementCredits(ctx, params.AccountID, status.Version, s.creditCost)
		switch {
		case err != nil:
			s.logger.Error().Err(err).Str("account_id", params.AccountID).Msg("Charge failed after generation")
			result.BillingConflict = true
		case !charge.Success:
			// Version moved or balance drained between check and charge.
			// The content is delivered anyway; the conflict is surfaced,
			// never silently ignored.
			s.logger.Warn().
				Str("account_id", params.AccountID).
				Int64("expected_version", status.Version).
				Msg("Credit charge conflict after generation")
			result.BillingConflict = true
		default:
			result.Charged = true
			result.Remaining = charge.NewRemaining
		}
	}

	if err := s.checkpoints.Clear(ctx, params.ProjectID); err != nil {
		s.logger.Error().Err(err).Str("project_id", params.ProjectID).Msg("Failed to clear checkpoint after completion")
	}

	return result, nil
}

// stream drives the upstream call, mirrors output into the checkpoint store
// at a bounded cadence, and on any interruption persists the partial output
// before surfacing the original error. The upstream call is retried at most
// once, and only when nothing has been delivered yet.
func (s *generationService) stream(ctx context.Context, params GenerateParams, onDelta func(delta string) error) (string, error) {
	var sb strings.Builder
	var streamErr error

	for attempt := 1; attempt <= s.upstreamTries; attempt++ {
		if ctx.Err() != nil {
			streamErr = ctx.Err()
			break
		}
		body, err := s.llm.StreamGenerate(ctx, params.ProjectID, params.AccountID, params.Prompt, params.Model)
		if err != nil {
			streamErr = err
			s.logger.Error().Err(err).Int("attempt", attempt).Str("project_id", params.ProjectID).Msg("LLM stream call failed")
			continue
		}
		streamErr = s.consume(ctx, body, &sb, onDelta, params.ProjectID)
		if streamErr == nil {
			break
		}
		if sb.Len() > 0 {
			// Partial output exists; retrying would duplicate it.
			break
		}
	}

	if streamErr != nil {
		// Decoupled from the dying request so a dropped connection cannot
		// lose the generated content. The write never masks streamErr.
		s.checkpoints.SaveDetached(ctx, params.ProjectID, sb.String())
		if ctx.Err() != nil {
			return "", fmt.Errorf("generation interrupted: %w", ctx.Err())
		}
		return "", generr.Upstream("generation stream failed", streamErr)
	}
	return sb.String(), nil
}

func (s *generationService) consume(ctx context.Context, body io.ReadCloser, sb *strings.Builder, onDelta func(string) error, projectID string) error {
	defer func() {
		if err := body.Close(); err != nil {
			s.logger.Error().Err(err).Msg("Failed to close LLM stream")
		}
	}()

	reader := bufio.NewReader(body)
	lastFlush := time.Now()
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		chunk, err := ParseSSEChunk(reader)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		content, _ := chunk["content"].(string)
		done, _ := chunk["done"].(bool)

		if content != "" {
			sb.WriteString(content)
			if err := onDelta(content); err != nil {
				// The client is gone; treat like cancellation, not failure.
				return fmt.Errorf("delivering delta: %w", err)
			}
			if time.Since(lastFlush) >= s.flushInterval {
				if err := s.checkpoints.Save(ctx, projectID, sb.String()); err != nil {
					s.logger.Error().Err(err).Str("project_id", projectID).Msg("Checkpoint flush failed")
				} else {
					lastFlush = time.Now()
				}
			}
		}

		if done {
			return nil
		}
	}
}

func (s *generationService) LoadCheckpoint(ctx context.Context, projectID, userID string) (string, bool, error) {
	project, err := s.projects.GetProject(ctx, projectID)
	if err != nil {
		if errors.Is(err, repository.ErrProjectNotFound) {
			return "", false, ErrProjectNotFound
		}
		return "", false, fmt.Errorf("loading project: %w", err)
	}
	if project.UserID != userID {
		return "", false, ErrUnauthorized
	}
	return s.checkpoints.Load(ctx, projectID)
}
