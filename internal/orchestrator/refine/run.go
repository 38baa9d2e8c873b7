package refine

import (
	"context"
	"encoding/json"
	"time"

	"app/internal/config"
	"app/internal/model"
	"app/internal/pgmq"
	"app/internal/repository"
	"app/internal/service"

	"github.com/rs/zerolog"
)

// Run starts the refinement orchestrator. Each queued job numbers the stored
// document, asks the model for edit blocks and applies them. Jobs that keep
// failing move to the dead-letter queue and are recorded for inspection.
func Run(ctx context.Context, logger zerolog.Logger, cfg *config.Config, client *pgmq.Client, svc service.RefineService, dlqRepo repository.DLQRepository) error {
	queue := cfg.RefineQueueName
	logger.Info().Str("queue", queue).Msg("Starting refinement orchestrator")

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("Shutting down refinement orchestrator")
			return nil
		default:
		}

		msgs, err := client.ReadWithPoll(ctx, queue, cfg.RefinePollTimeoutSec, cfg.RefinePollMaxMsg)
		if err != nil {
			if ctx.Err() != nil {
				logger.Info().Msg("Shutting down refinement orchestrator")
				return nil
			}
			logger.Error().Err(err).Msg("Error reading refinement queue")
			time.Sleep(time.Second)
			continue
		}
		if len(msgs) == 0 {
			continue
		}

		msg := msgs[0]
		logger.Info().Int64("msg_id", msg.ID).Msg("Received refinement job")

		var job model.RefineJob
		if err := json.Unmarshal(msg.Data, &job); err != nil {
			logger.Error().Err(err).Msg("Failed to unmarshal refinement payload; deleting message")
			client.Delete(ctx, queue, []int64{msg.ID})
			continue
		}

		// Process with retry/backoff. ProcessJob is idempotent, so a retry
		// after a partial failure is safe.
		backoff := time.Duration(cfg.RefineBackoffInitialSec) * time.Second
		var procErr error
		for attempt := 1; attempt <= cfg.RefineMaxRetries; attempt++ {
			ctxReq, cancel := context.WithTimeout(ctx, time.Duration(cfg.RefineRequestTimeoutSec)*time.Second)
			procErr = svc.ProcessJob(ctxReq, job)
			cancel()
			if procErr == nil {
				break
			}
			if ctx.Err() != nil {
				break
			}
			logger.Error().Err(procErr).Int("attempt", attempt).Str("project_id", job.ProjectID).Msg("Refinement attempt failed, retrying")
			time.Sleep(backoff)
			backoff *= 2
			if backoff > time.Duration(cfg.RefineBackoffMaxSec)*time.Second {
				backoff = time.Duration(cfg.RefineBackoffMaxSec) * time.Second
			}
		}

		if procErr != nil {
			dlq := cfg.RefineDeadLetterQueueName
			if err := client.Send(ctx, dlq, msg.Data); err != nil {
				logger.Error().Err(err).Str("dlq", dlq).Msg("Failed to send message to dead-letter queue")
			}
			if err := dlqRepo.Create(ctx, &model.DeadLetterMessage{
				QueueName: queue,
				MessageID: msg.ID,
				Payload:   string(msg.Data),
				Reason:    procErr.Error(),
				Status:    "pending",
			}); err != nil {
				logger.Error().Err(err).Msg("Failed to record dead-letter message")
			}
			if err := client.Delete(ctx, queue, []int64{msg.ID}); err != nil {
				logger.Error().Err(err).Msg("Error deleting refinement message after failure")
			}
			logger.Warn().
				Int("attempts", cfg.RefineMaxRetries).
				Str("project_id", job.ProjectID).
				Err(procErr).
				Msg("Exhausted all refinement retries; moving job to DLQ")
			continue
		}

		if err := client.Delete(ctx, queue, []int64{msg.ID}); err != nil {
			logger.Error().Err(err).Msg("Error deleting refinement message")
		}
	}
}
