package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/botique-hub/internal/models"
	"github.com/google/uuid"
)

// DeliveryRepository persists the final outcome of webhook delivery
// sequences. Records are write-once; rows cascade away with their parent
// job or agent.
type DeliveryRepository struct {
	db *PostgresDB
}

// NewDeliveryRepository creates a new delivery repository
func NewDeliveryRepository(db *PostgresDB) *DeliveryRepository {
	return &DeliveryRepository{db: db}
}

// Create inserts a delivery outcome record
func (r *DeliveryRepository) Create(ctx context.Context, d *models.WebhookDelivery) error {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	d.CreatedAt = time.Now()

	query := `
		INSERT INTO webhook_deliveries (id, job_id, agent_id, attempts, success,
			last_status_code, error_text, response_snippet, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.db.Pool().Exec(ctx, query,
		d.ID,
		d.JobID,
		d.AgentID,
		d.Attempts,
		d.Success,
		d.LastStatusCode,
		d.ErrorText,
		d.ResponseSnippet,
		d.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create delivery record: %w", err)
	}

	return nil
}

// ListByJob retrieves delivery records for a job, newest first
func (r *DeliveryRepository) ListByJob(ctx context.Context, jobID string) ([]*models.WebhookDelivery, error) {
	query := `
		SELECT id, job_id, agent_id, attempts, success,
			last_status_code, error_text, response_snippet, created_at
		FROM webhook_deliveries
		WHERE job_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.Pool().Query(ctx, query, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to list deliveries: %w", err)
	}
	defer rows.Close()

	var deliveries []*models.WebhookDelivery
	for rows.Next() {
		var d models.WebhookDelivery
		err := rows.Scan(
			&d.ID,
			&d.JobID,
			&d.AgentID,
			&d.Attempts,
			&d.Success,
			&d.LastStatusCode,
			&d.ErrorText,
			&d.ResponseSnippet,
			&d.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan delivery: %w", err)
		}
		deliveries = append(deliveries, &d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating deliveries: %w", err)
	}

	return deliveries, nil
}
