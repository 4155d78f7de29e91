// Package hub implements the job lifecycle coordinator for the
// marketplace: payment confirmation, fulfillment dispatch, and completion.
package hub

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/botique-hub/internal/chain"
	hverrors "github.com/botique-hub/internal/errors"
	"github.com/botique-hub/internal/logging"
	"github.com/botique-hub/internal/models"
	"github.com/botique-hub/internal/storage"
	"github.com/botique-hub/internal/types"
	"github.com/botique-hub/internal/webhook"
)

// JobStore is the persistence contract the coordinator needs for jobs.
// Status mutations are conditional: they return storage.ErrNoTransition
// when the job is not in the expected pre-state.
type JobStore interface {
	Create(ctx context.Context, job *models.Job) error
	GetByID(ctx context.Context, id string) (*models.Job, error)
	ListByAgent(ctx context.Context, agentID string, status types.JobStatus, limit, offset int) ([]*models.Job, error)
	MarkPaid(ctx context.Context, jobID, txHash string) error
	MarkInProgress(ctx context.Context, jobID string) error
	MarkFailed(ctx context.Context, jobID, reason string) error
	CompleteWithStats(ctx context.Context, jobID string, output []byte, agentID, priceUSDC string) error
}

// AgentStore is the persistence contract for agents and skills
type AgentStore interface {
	Create(ctx context.Context, agent *models.Agent, skills []*models.Skill) error
	GetByID(ctx context.Context, id string) (*models.Agent, error)
	GetByAPIKeyHash(ctx context.Context, keyHash string) (*models.Agent, error)
	GetSkill(ctx context.Context, skillID string) (*models.Skill, error)
	ListSkills(ctx context.Context, agentID string) ([]*models.Skill, error)
}

// DeliveryStore records final webhook delivery outcomes
type DeliveryStore interface {
	Create(ctx context.Context, d *models.WebhookDelivery) error
}

// Cache is the read-through cache contract; storage.CacheService satisfies
// it. May be nil in tests.
type Cache interface {
	AgentKey(agentID string) string
	JobListKey(agentID string, status types.JobStatus, limit, offset int) string
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}) error
	InvalidateAgent(ctx context.Context, agentID string) error
}

// Config holds explicit coordinator configuration so the state machine is
// testable without environment setup.
type Config struct {
	// JobDeadline is how long after payment an agent has to deliver;
	// advertised in the webhook payload.
	JobDeadline time.Duration
	// InlineTimeout bounds hub-side generation for agents without a
	// webhook endpoint.
	InlineTimeout time.Duration
}

// Coordinator orchestrates the job lifecycle
type Coordinator struct {
	config     Config
	jobs       JobStore
	agents     AgentStore
	deliveries DeliveryStore
	verifier   chain.Verifier
	generator  Generator
	dispatcher *webhook.Dispatcher
	cache      Cache
}

// NewCoordinator creates the coordinator and its delivery dispatcher
func NewCoordinator(
	config Config,
	jobs JobStore,
	agents AgentStore,
	deliveries DeliveryStore,
	verifier chain.Verifier,
	generator Generator,
	client *webhook.Client,
	workers int,
	cache Cache,
) *Coordinator {
	c := &Coordinator{
		config:     config,
		jobs:       jobs,
		agents:     agents,
		deliveries: deliveries,
		verifier:   verifier,
		generator:  generator,
		cache:      cache,
	}
	c.dispatcher = webhook.NewDispatcher(client, workers, c.handleDeliveryResult)
	return c
}

// Stop drains in-flight webhook deliveries
func (c *Coordinator) Stop() {
	c.dispatcher.Stop()
}

// handleDeliveryResult records the delivery outcome and fails the job when
// delivery did not succeed. A successful delivery leaves the job paid: the
// agent must still call the completion endpoint. An outcome arriving after
// the job already reached a terminal state is a no-op.
func (c *Coordinator) handleDeliveryResult(ctx context.Context, task *webhook.Task, outcome *webhook.DeliveryOutcome) {
	logger := logging.FromContext(ctx).WithFields(map[string]interface{}{
		"jobId":    task.JobID,
		"agentId":  task.AgentID,
		"attempts": outcome.Attempts,
		"success":  outcome.Success,
	})

	record := &models.WebhookDelivery{
		JobID:    task.JobID,
		AgentID:  task.AgentID,
		Attempts: outcome.Attempts,
		Success:  outcome.Success,
	}
	if outcome.LastStatusCode != 0 {
		code := outcome.LastStatusCode
		record.LastStatusCode = &code
	}
	if outcome.ErrorText != "" {
		errText := outcome.ErrorText
		record.ErrorText = &errText
	}
	if outcome.ResponseSnippet != "" {
		snippet := outcome.ResponseSnippet
		record.ResponseSnippet = &snippet
	}

	// Observability write; never blocks the lifecycle decision.
	if err := c.deliveries.Create(ctx, record); err != nil {
		logger.WithError(err).Warn("Failed to record delivery outcome")
	}

	if outcome.Success {
		logger.Info("Webhook delivered, awaiting agent completion")
		return
	}

	var reason string
	if outcome.Permanent {
		reason = hverrors.NewDeliveryPermanentFailureError(outcome.LastStatusCode).Message
	} else {
		reason = hverrors.NewDeliveryExhaustedError(outcome.Attempts, outcome.ErrorText).Message
	}

	if err := c.jobs.MarkFailed(ctx, task.JobID, reason); err != nil {
		if err == storage.ErrNoTransition {
			logger.Info("Delivery outcome arrived after job reached terminal state, ignoring")
			return
		}
		logger.WithError(err).Error("Failed to mark job failed after delivery failure")
		return
	}

	c.invalidateAgent(ctx, task.AgentID)
	logger.WithField("reason", reason).Warn("Job failed after webhook delivery failure")
}

func (c *Coordinator) invalidateAgent(ctx context.Context, agentID string) {
	if c.cache == nil {
		return
	}
	if err := c.cache.InvalidateAgent(ctx, agentID); err != nil {
		logging.FromContext(ctx).WithError(err).Warn("Cache invalidation failed")
	}
}

// newAPIKey generates a one-time agent credential
func newAPIKey() string {
	return strings.ReplaceAll(uuid.New().String()+uuid.New().String(), "-", "")
}

// hashAPIKey hashes a credential for storage and lookup
func hashAPIKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}
