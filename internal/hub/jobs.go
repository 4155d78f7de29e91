package hub

import (
	"context"
	"encoding/json"
	"time"

	hverrors "github.com/botique-hub/internal/errors"
	"github.com/botique-hub/internal/logging"
	"github.com/botique-hub/internal/models"
	"github.com/botique-hub/internal/storage"
	"github.com/botique-hub/internal/types"
	"github.com/botique-hub/internal/webhook"
)

// EventJobPaid is the webhook event emitted when a job's payment confirms
const EventJobPaid = "job.paid"

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// CreateJobInput is the job creation request
type CreateJobInput struct {
	SkillID   string          `json:"skillId"`
	InputData json.RawMessage `json:"inputData"`
}

// paidPayload is the body POSTed to the agent's webhook endpoint
type paidPayload struct {
	Event string         `json:"event"`
	Job   paidPayloadJob `json:"job"`
}

type paidPayloadJob struct {
	ID        string          `json:"id"`
	Skill     string          `json:"skill"`
	PriceUSDC string          `json:"price_usdc"`
	Input     json.RawMessage `json:"input"`
	Deadline  time.Time       `json:"deadline"`
}

// CreateJob creates a job in status created, priced from its skill
func (c *Coordinator) CreateJob(ctx context.Context, input *CreateJobInput) (*models.Job, error) {
	if input.SkillID == "" {
		return nil, hverrors.NewValidationError("skillId", "required")
	}
	if len(input.InputData) == 0 || string(input.InputData) == "null" {
		return nil, hverrors.NewValidationError("inputData", "required")
	}

	skill, err := c.agents.GetSkill(ctx, input.SkillID)
	if err != nil {
		return nil, hverrors.NewNotFoundError("skill", input.SkillID)
	}

	job := &models.Job{
		SkillID:   skill.ID,
		AgentID:   skill.AgentID,
		InputData: input.InputData,
		PriceUSDC: skill.PriceUSDC,
	}

	if err := c.jobs.Create(ctx, job); err != nil {
		return nil, hverrors.NewDatabaseError("create job", err)
	}

	return job, nil
}

// GetJob retrieves a job by ID
func (c *Coordinator) GetJob(ctx context.Context, jobID string) (*models.Job, error) {
	job, err := c.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, hverrors.NewNotFoundError("job", jobID)
	}
	return job, nil
}

// ListJobs lists an agent's jobs, optionally filtered by status, read
// through the cache.
func (c *Coordinator) ListJobs(ctx context.Context, agentID string, status types.JobStatus, limit, offset int) ([]*models.Job, error) {
	if agentID == "" {
		return nil, hverrors.NewValidationError("agentId", "required")
	}
	if status != "" && !types.ValidJobStatus(status) {
		return nil, hverrors.NewValidationError("status", "unknown status")
	}
	if limit <= 0 || limit > maxListLimit {
		limit = defaultListLimit
	}
	if offset < 0 {
		offset = 0
	}

	var key string
	if c.cache != nil {
		key = c.cache.JobListKey(agentID, status, limit, offset)
		var cached []*models.Job
		if hit, err := c.cache.Get(ctx, key, &cached); err == nil && hit {
			return cached, nil
		}
	}

	jobs, err := c.jobs.ListByAgent(ctx, agentID, status, limit, offset)
	if err != nil {
		return nil, hverrors.NewDatabaseError("list jobs", err)
	}

	if c.cache != nil {
		_ = c.cache.Set(ctx, key, jobs)
	}

	return jobs, nil
}

// ListAgentJobs lists the calling agent's own jobs, resolved from its API
// key. Agents can only list jobs assigned to them.
func (c *Coordinator) ListAgentJobs(ctx context.Context, apiKey string, status types.JobStatus, limit, offset int) ([]*models.Job, error) {
	agent, err := c.authenticateAgent(ctx, apiKey)
	if err != nil {
		return nil, err
	}
	return c.ListJobs(ctx, agent.ID, status, limit, offset)
}

// SubmitPayment verifies an on-chain payment and transitions the job
// created -> paid. The fulfillment branch is decided exactly once here: an
// agent with a webhook URL is notified asynchronously and the call returns
// with the job still paid; otherwise the hub fulfills the job inline and
// the job is completed or failed before this returns.
func (c *Coordinator) SubmitPayment(ctx context.Context, jobID, txHash string) (*models.Job, error) {
	if txHash == "" {
		return nil, hverrors.NewValidationError("txHash", "required")
	}

	job, err := c.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, hverrors.NewNotFoundError("job", jobID)
	}
	if job.Status != types.JobStatusCreated {
		return nil, hverrors.NewInvalidStateTransitionError(job.ID, job.Status, types.JobStatusPaid)
	}

	agent, err := c.agents.GetByID(ctx, job.AgentID)
	if err != nil {
		return nil, hverrors.NewDatabaseError("load agent", err)
	}

	// Blocks until the verifier responds or its timeout fires. On failure
	// the job stays created and payment can be retried with a new hash.
	if err := c.verifier.VerifyPayment(ctx, txHash, job.PriceUSDC, agent.WalletAddress); err != nil {
		return nil, err
	}

	if err := c.jobs.MarkPaid(ctx, jobID, txHash); err != nil {
		if err == storage.ErrNoTransition {
			return nil, hverrors.NewInvalidStateTransitionError(job.ID, job.Status, types.JobStatusPaid)
		}
		return nil, hverrors.NewDatabaseError("mark paid", err)
	}

	c.invalidateAgent(ctx, agent.ID)

	if agent.WebhookURL != "" {
		if err := c.notifyAgent(ctx, job, agent); err != nil {
			return nil, err
		}
	} else {
		c.fulfillInline(ctx, job, agent)
	}

	refreshed, err := c.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, hverrors.NewDatabaseError("reload job", err)
	}
	return refreshed, nil
}

// notifyAgent builds the signed job.paid payload and hands it to the
// dispatcher. The request path only waits for task submission.
func (c *Coordinator) notifyAgent(ctx context.Context, job *models.Job, agent *models.Agent) error {
	skill, err := c.agents.GetSkill(ctx, job.SkillID)
	if err != nil {
		return hverrors.NewDatabaseError("load skill", err)
	}

	payload, err := json.Marshal(&paidPayload{
		Event: EventJobPaid,
		Job: paidPayloadJob{
			ID:        job.ID,
			Skill:     skill.Name,
			PriceUSDC: job.PriceUSDC,
			Input:     job.InputData,
			Deadline:  time.Now().Add(c.config.JobDeadline),
		},
	})
	if err != nil {
		return hverrors.NewInternalError("failed to build webhook payload", err)
	}

	task := &webhook.Task{
		JobID:   job.ID,
		AgentID: agent.ID,
		URL:     agent.WebhookURL,
		Secret:  agent.WebhookSecret,
		Event:   EventJobPaid,
		Payload: payload,
	}

	if err := c.dispatcher.Enqueue(ctx, task); err != nil {
		return hverrors.NewInternalError("failed to enqueue webhook delivery", err)
	}

	logging.FromContext(ctx).WithFields(map[string]interface{}{
		"jobId":   job.ID,
		"agentId": agent.ID,
	}).Info("Webhook delivery enqueued")

	return nil
}

// fulfillInline performs the work synchronously with the external
// generation capability and settles the job before returning.
func (c *Coordinator) fulfillInline(ctx context.Context, job *models.Job, agent *models.Agent) {
	logger := logging.FromContext(ctx).WithField("jobId", job.ID)

	skill, err := c.agents.GetSkill(ctx, job.SkillID)
	if err != nil {
		c.failInline(ctx, job, agent, "internal error loading skill")
		return
	}

	genCtx, cancel := context.WithTimeout(ctx, c.config.InlineTimeout)
	defer cancel()

	output, err := c.generator.Generate(genCtx, skill, job.InputData)
	if err != nil {
		logger.WithError(err).Warn("Inline generation failed")
		c.failInline(ctx, job, agent, "generation failed")
		return
	}

	if err := c.jobs.CompleteWithStats(ctx, job.ID, output, agent.ID, job.PriceUSDC); err != nil {
		if err != storage.ErrNoTransition {
			logger.WithError(err).Error("Failed to complete inline job")
		}
		return
	}

	c.invalidateAgent(ctx, agent.ID)
	logger.Info("Job fulfilled inline")
}

func (c *Coordinator) failInline(ctx context.Context, job *models.Job, agent *models.Agent, reason string) {
	if err := c.jobs.MarkFailed(ctx, job.ID, reason); err != nil && err != storage.ErrNoTransition {
		logging.FromContext(ctx).WithError(err).WithField("jobId", job.ID).Error("Failed to mark job failed")
		return
	}
	c.invalidateAgent(ctx, agent.ID)
}

// AcceptJob lets the assigned agent signal that work has started
// (paid -> in_progress). No output data is required.
func (c *Coordinator) AcceptJob(ctx context.Context, jobID, apiKey string) (*models.Job, error) {
	agent, err := c.authenticateAgent(ctx, apiKey)
	if err != nil {
		return nil, err
	}

	job, err := c.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, hverrors.NewNotFoundError("job", jobID)
	}
	if job.AgentID != agent.ID {
		return nil, hverrors.NewUnauthorizedError("job is not assigned to this agent")
	}

	if err := c.jobs.MarkInProgress(ctx, jobID); err != nil {
		if err == storage.ErrNoTransition {
			return nil, hverrors.NewInvalidStateTransitionError(job.ID, job.Status, types.JobStatusInProgress)
		}
		return nil, hverrors.NewDatabaseError("mark in progress", err)
	}

	c.invalidateAgent(ctx, agent.ID)
	return c.GetJob(ctx, jobID)
}

// CompleteJobInput is the agent's completion request
type CompleteJobInput struct {
	JobID      string
	APIKey     string
	OutputData json.RawMessage
	StatusHint types.JobStatus // in_progress, or empty/completed for final
}

// CompleteJob handles the agent-facing completion endpoint. Validation and
// authorization failures are rejected with no side effects; the final
// transition and the agent stats increment commit atomically.
func (c *Coordinator) CompleteJob(ctx context.Context, input *CompleteJobInput) (*models.Job, error) {
	agent, err := c.authenticateAgent(ctx, input.APIKey)
	if err != nil {
		return nil, err
	}

	job, err := c.jobs.GetByID(ctx, input.JobID)
	if err != nil {
		return nil, hverrors.NewNotFoundError("job", input.JobID)
	}
	if job.AgentID != agent.ID {
		return nil, hverrors.NewUnauthorizedError("job is not assigned to this agent")
	}

	switch input.StatusHint {
	case types.JobStatusInProgress:
		if err := c.jobs.MarkInProgress(ctx, input.JobID); err != nil {
			if err == storage.ErrNoTransition {
				return nil, hverrors.NewInvalidStateTransitionError(job.ID, job.Status, types.JobStatusInProgress)
			}
			return nil, hverrors.NewDatabaseError("mark in progress", err)
		}
	case "", types.JobStatusCompleted:
		if len(input.OutputData) == 0 || string(input.OutputData) == "null" {
			return nil, hverrors.NewValidationError("outputData", "required to complete a job")
		}

		if err := c.jobs.CompleteWithStats(ctx, input.JobID, input.OutputData, agent.ID, job.PriceUSDC); err != nil {
			if err == storage.ErrNoTransition {
				return nil, hverrors.NewInvalidStateTransitionError(job.ID, job.Status, types.JobStatusCompleted)
			}
			return nil, hverrors.NewDatabaseError("complete job", err)
		}
	default:
		return nil, hverrors.NewValidationError("status", "must be in_progress or completed")
	}

	c.invalidateAgent(ctx, agent.ID)
	return c.GetJob(ctx, input.JobID)
}
