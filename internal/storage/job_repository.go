package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/botique-hub/internal/models"
	"github.com/botique-hub/internal/types"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ErrNoTransition is returned when a conditional status update matched no
// row: either the job does not exist or its current status does not permit
// the requested transition. Callers that have already loaded the job can
// tell the two apart.
var ErrNoTransition = errors.New("no matching job in expected status")

// JobRepository handles job persistence. All status mutations are
// conditional updates guarded by the expected pre-state, so concurrent
// writers serialize per job: the loser matches zero rows and gets
// ErrNoTransition instead of silently overwriting.
type JobRepository struct {
	db *PostgresDB
}

// NewJobRepository creates a new job repository
func NewJobRepository(db *PostgresDB) *JobRepository {
	return &JobRepository{db: db}
}

const jobColumns = `id, skill_id, agent_id, input_data, output_data,
	price_usdc::text, tx_hash, status, error_reason, created_at, paid_at, completed_at`

func scanJob(row pgx.Row) (*models.Job, error) {
	var job models.Job
	err := row.Scan(
		&job.ID,
		&job.SkillID,
		&job.AgentID,
		&job.InputData,
		&job.OutputData,
		&job.PriceUSDC,
		&job.TxHash,
		&job.Status,
		&job.ErrorReason,
		&job.CreatedAt,
		&job.PaidAt,
		&job.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// Create inserts a new job in status created
func (r *JobRepository) Create(ctx context.Context, job *models.Job) error {
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	job.Status = types.JobStatusCreated
	job.CreatedAt = time.Now()

	query := `
		INSERT INTO jobs (id, skill_id, agent_id, input_data, price_usdc, status, created_at)
		VALUES ($1, $2, $3, $4, $5::numeric, $6, $7)
	`

	_, err := r.db.Pool().Exec(ctx, query,
		job.ID,
		job.SkillID,
		job.AgentID,
		job.InputData,
		job.PriceUSDC,
		job.Status,
		job.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}

	return nil
}

// GetByID retrieves a job by ID
func (r *JobRepository) GetByID(ctx context.Context, id string) (*models.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE id = $1`

	job, err := scanJob(r.db.Pool().QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("job not found: %s", id)
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return job, nil
}

// ListByAgent retrieves jobs for an agent, optionally filtered by status
func (r *JobRepository) ListByAgent(ctx context.Context, agentID string, status types.JobStatus, limit, offset int) ([]*models.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE agent_id = $1`
	args := []interface{}{agentID}

	if status != "" {
		query += ` AND status = $2`
		args = append(args, status)
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT %d OFFSET %d`, limit, offset)

	rows, err := r.db.Pool().Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*models.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, job)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating jobs: %w", err)
	}

	return jobs, nil
}

// MarkPaid transitions created -> paid and records the transaction hash
func (r *JobRepository) MarkPaid(ctx context.Context, jobID, txHash string) error {
	query := `
		UPDATE jobs
		SET status = $2, tx_hash = $3, paid_at = $4
		WHERE id = $1 AND status = $5
	`

	result, err := r.db.Pool().Exec(ctx, query,
		jobID, types.JobStatusPaid, txHash, time.Now(), types.JobStatusCreated)
	if err != nil {
		return fmt.Errorf("failed to mark job paid: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrNoTransition
	}

	return nil
}

// MarkInProgress transitions paid -> in_progress
func (r *JobRepository) MarkInProgress(ctx context.Context, jobID string) error {
	query := `
		UPDATE jobs
		SET status = $2
		WHERE id = $1 AND status = $3
	`

	result, err := r.db.Pool().Exec(ctx, query,
		jobID, types.JobStatusInProgress, types.JobStatusPaid)
	if err != nil {
		return fmt.Errorf("failed to mark job in progress: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrNoTransition
	}

	return nil
}

// MarkFailed transitions paid|in_progress -> failed with a display reason
func (r *JobRepository) MarkFailed(ctx context.Context, jobID, reason string) error {
	query := `
		UPDATE jobs
		SET status = $2, error_reason = $3, completed_at = $4
		WHERE id = $1 AND status = ANY($5)
	`

	result, err := r.db.Pool().Exec(ctx, query,
		jobID, types.JobStatusFailed, reason, time.Now(),
		[]string{string(types.JobStatusPaid), string(types.JobStatusInProgress)})
	if err != nil {
		return fmt.Errorf("failed to mark job failed: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrNoTransition
	}

	return nil
}

// CompleteWithStats transitions paid|in_progress -> completed and
// increments the agent's aggregate stats in the same transaction. Either
// both writes commit or neither does; concurrent completions for the same
// job serialize on the status guard.
func (r *JobRepository) CompleteWithStats(ctx context.Context, jobID string, output []byte, agentID, priceUSDC string) error {
	tx, err := r.db.Pool().Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx) // no-op after commit
	}()

	jobQuery := `
		UPDATE jobs
		SET status = $2, output_data = $3, completed_at = $4
		WHERE id = $1 AND status = ANY($5)
	`

	result, err := tx.Exec(ctx, jobQuery,
		jobID, types.JobStatusCompleted, output, time.Now(),
		[]string{string(types.JobStatusPaid), string(types.JobStatusInProgress)})
	if err != nil {
		return fmt.Errorf("failed to complete job: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrNoTransition
	}

	statsQuery := `
		UPDATE agents
		SET total_jobs = total_jobs + 1,
		    total_earned_usdc = total_earned_usdc + $2::numeric
		WHERE id = $1
	`

	result, err = tx.Exec(ctx, statsQuery, agentID, priceUSDC)
	if err != nil {
		return fmt.Errorf("failed to update agent stats: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("agent not found: %s", agentID)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit completion: %w", err)
	}

	return nil
}
