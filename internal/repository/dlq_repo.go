package repository

import (
	"context"
	"fmt"

	"app/internal/model"
)

// DLQRepository persists refinement jobs that exhausted their retries.
type DLQRepository interface {
	Create(ctx context.Context, message *model.DeadLetterMessage) error
}

type dlqRepository struct {
	pool PgxPool
}

func NewDLQRepository(pool PgxPool) DLQRepository {
	return &dlqRepository{pool: pool}
}

func (r *dlqRepository) Create(ctx context.Context, message *model.DeadLetterMessage) error {
	const q = `
        INSERT INTO dead_letter_messages (queue_name, message_id, payload, reason, status)
        VALUES ($1, $2, $3, $4, $5)
    `
	_, err := r.pool.Exec(
		ctx,
		q,
		message.QueueName,
		message.MessageID,
		message.Payload,
		message.Reason,
		message.Status,
	)
	if err != nil {
		return fmt.Errorf("recording dead letter for queue %s: %w", message.QueueName, err)
	}
	return nil
}
