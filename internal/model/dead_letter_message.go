package model

import "time"

// DeadLetterMessage records a refinement job that exhausted its retries,
// persisted for operator inspection and manual replay.
type DeadLetterMessage struct {
	ID        string    `db:"id"`
	QueueName string    `db:"queue_name"`
	MessageID int64     `db:"message_id"`
	Payload   string    `db:"payload"` // JSON-encoded RefineJob
	Reason    string    `db:"reason"`
	Status    string    `db:"status"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}
