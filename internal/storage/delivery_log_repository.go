package storage

import (
	"context"
	"time"

	"github.com/botique-hub/internal/logging"
	"github.com/botique-hub/internal/webhook"
)

// DeliveryLogRepository writes one row per webhook delivery attempt to
// ClickHouse. This is an append-only observability stream: high write
// volume, never read back by the hub. Callers treat writes as best-effort.
type DeliveryLogRepository struct {
	db *ClickHouseDB
}

// NewDeliveryLogRepository creates a new delivery log repository
func NewDeliveryLogRepository(db *ClickHouseDB) *DeliveryLogRepository {
	return &DeliveryLogRepository{db: db}
}

// AttemptRow is a single delivery attempt observation
type AttemptRow struct {
	JobID      string
	AgentID    string
	Attempt    int
	StatusCode int // 0 when the attempt never got a response
	ErrorText  string
	Final      bool
	Timestamp  time.Time
}

// InsertAttempt appends one attempt row
func (r *DeliveryLogRepository) InsertAttempt(ctx context.Context, row *AttemptRow) error {
	query := `
		INSERT INTO webhook_attempt_log
			(job_id, agent_id, attempt, status_code, error_text, final, ts)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	return r.db.Conn().Exec(ctx, query,
		row.JobID,
		row.AgentID,
		row.Attempt,
		int32(row.StatusCode),
		row.ErrorText,
		row.Final,
		row.Timestamp,
	)
}

// LogAttempt implements webhook.AttemptLogger. Write failures are reported
// to the structured log and otherwise swallowed: observability must never
// abort a delivery.
func (r *DeliveryLogRepository) LogAttempt(ctx context.Context, attempt *webhook.Attempt) {
	logger := logging.FromContext(ctx).WithFields(map[string]interface{}{
		"jobId":      attempt.Task.JobID,
		"agentId":    attempt.Task.AgentID,
		"attempt":    attempt.Number,
		"statusCode": attempt.StatusCode,
		"final":      attempt.Final,
	})

	if attempt.ErrorText != "" {
		logger.WithField("error", attempt.ErrorText).Warn("Webhook delivery attempt failed")
	} else {
		logger.Info("Webhook delivery attempt")
	}

	err := r.InsertAttempt(ctx, &AttemptRow{
		JobID:      attempt.Task.JobID,
		AgentID:    attempt.Task.AgentID,
		Attempt:    attempt.Number,
		StatusCode: attempt.StatusCode,
		ErrorText:  attempt.ErrorText,
		Final:      attempt.Final,
		Timestamp:  attempt.Timestamp,
	})
	if err != nil {
		logger.WithError(err).Warn("Failed to write delivery attempt log")
	}
}
