package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/botique-hub/internal/chain"
	"github.com/botique-hub/internal/models"
	"github.com/botique-hub/internal/storage"
	"github.com/botique-hub/internal/types"
	"github.com/botique-hub/internal/webhook"
)

// Mock stores for testing. Status mutations mirror the conditional UPDATE
// semantics of the real repositories: they return storage.ErrNoTransition
// when the job is not in the expected pre-state.

type mockJobStore struct {
	mu     sync.Mutex
	jobs   map[string]*models.Job
	agents *mockAgentStore
	seq    int
}

func newMockJobStore(agents *mockAgentStore) *mockJobStore {
	return &mockJobStore{jobs: make(map[string]*models.Job), agents: agents}
}

func (m *mockJobStore) Create(ctx context.Context, job *models.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	job.ID = fmt.Sprintf("job-%d", m.seq)
	job.Status = types.JobStatusCreated
	job.CreatedAt = time.Now()
	copied := *job
	m.jobs[job.ID] = &copied
	return nil
}

func (m *mockJobStore) GetByID(ctx context.Context, id string) (*models.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, &types.ServiceError{Code: "NOT_FOUND", Message: "job not found"}
	}
	copied := *job
	return &copied, nil
}

func (m *mockJobStore) ListByAgent(ctx context.Context, agentID string, status types.JobStatus, limit, offset int) ([]*models.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*models.Job
	for _, job := range m.jobs {
		if job.AgentID != agentID {
			continue
		}
		if status != "" && job.Status != status {
			continue
		}
		copied := *job
		result = append(result, &copied)
	}
	return result, nil
}

func (m *mockJobStore) MarkPaid(ctx context.Context, jobID, txHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok || job.Status != types.JobStatusCreated {
		return storage.ErrNoTransition
	}
	now := time.Now()
	job.Status = types.JobStatusPaid
	job.TxHash = &txHash
	job.PaidAt = &now
	return nil
}

func (m *mockJobStore) MarkInProgress(ctx context.Context, jobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok || job.Status != types.JobStatusPaid {
		return storage.ErrNoTransition
	}
	job.Status = types.JobStatusInProgress
	return nil
}

func (m *mockJobStore) MarkFailed(ctx context.Context, jobID, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok || (job.Status != types.JobStatusPaid && job.Status != types.JobStatusInProgress) {
		return storage.ErrNoTransition
	}
	job.Status = types.JobStatusFailed
	job.ErrorReason = &reason
	return nil
}

func (m *mockJobStore) CompleteWithStats(ctx context.Context, jobID string, output []byte, agentID, priceUSDC string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok || (job.Status != types.JobStatusPaid && job.Status != types.JobStatusInProgress) {
		return storage.ErrNoTransition
	}
	now := time.Now()
	job.Status = types.JobStatusCompleted
	job.OutputData = output
	job.CompletedAt = &now

	// Same transaction as the status change in the real repository.
	m.agents.incrementStats(agentID)
	return nil
}

type mockAgentStore struct {
	mu     sync.Mutex
	agents map[string]*models.Agent
	skills map[string]*models.Skill
	seq    int
}

func newMockAgentStore() *mockAgentStore {
	return &mockAgentStore{
		agents: make(map[string]*models.Agent),
		skills: make(map[string]*models.Skill),
	}
}

func (m *mockAgentStore) Create(ctx context.Context, agent *models.Agent, skills []*models.Skill) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	agent.ID = fmt.Sprintf("agent-%d", m.seq)
	agent.CreatedAt = time.Now()
	copied := *agent
	m.agents[agent.ID] = &copied
	for i, skill := range skills {
		skill.ID = fmt.Sprintf("skill-%d-%d", m.seq, i+1)
		skill.AgentID = agent.ID
		copiedSkill := *skill
		m.skills[skill.ID] = &copiedSkill
	}
	return nil
}

func (m *mockAgentStore) GetByID(ctx context.Context, id string) (*models.Agent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	agent, ok := m.agents[id]
	if !ok || agent.Disabled {
		return nil, &types.ServiceError{Code: "NOT_FOUND", Message: "agent not found"}
	}
	copied := *agent
	return &copied, nil
}

func (m *mockAgentStore) GetByAPIKeyHash(ctx context.Context, keyHash string) (*models.Agent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, agent := range m.agents {
		if agent.APIKeyHash == keyHash && !agent.Disabled {
			copied := *agent
			return &copied, nil
		}
	}
	return nil, &types.ServiceError{Code: "NOT_FOUND", Message: "agent not found"}
}

func (m *mockAgentStore) GetSkill(ctx context.Context, skillID string) (*models.Skill, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	skill, ok := m.skills[skillID]
	if !ok {
		return nil, &types.ServiceError{Code: "NOT_FOUND", Message: "skill not found"}
	}
	copied := *skill
	return &copied, nil
}

func (m *mockAgentStore) ListSkills(ctx context.Context, agentID string) ([]*models.Skill, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*models.Skill
	for _, skill := range m.skills {
		if skill.AgentID == agentID {
			copied := *skill
			result = append(result, &copied)
		}
	}
	return result, nil
}

func (m *mockAgentStore) incrementStats(agentID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if agent, ok := m.agents[agentID]; ok {
		agent.TotalJobs++
	}
}

func (m *mockAgentStore) totalJobs(agentID string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if agent, ok := m.agents[agentID]; ok {
		return agent.TotalJobs
	}
	return 0
}

type mockDeliveryStore struct {
	mu      sync.Mutex
	records []*models.WebhookDelivery
}

func (m *mockDeliveryStore) Create(ctx context.Context, d *models.WebhookDelivery) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *d
	m.records = append(m.records, &copied)
	return nil
}

func (m *mockDeliveryStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

func (m *mockDeliveryStore) last() *models.WebhookDelivery {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.records) == 0 {
		return nil
	}
	return m.records[len(m.records)-1]
}

// mockVerifier approves or rejects payments without touching the chain
type mockVerifier struct {
	err   error
	calls int
	mu    sync.Mutex
}

var _ chain.Verifier = (*mockVerifier)(nil)

func (m *mockVerifier) VerifyPayment(ctx context.Context, txHash, amountUSDC, recipient string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.err
}

// echoGenerator returns the job input wrapped as output
func echoGenerator() Generator {
	return GeneratorFunc(func(ctx context.Context, skill *models.Skill, input json.RawMessage) (json.RawMessage, error) {
		out, _ := json.Marshal(map[string]json.RawMessage{"echo": input})
		return out, nil
	})
}

// failingGenerator always errors
func failingGenerator() Generator {
	return GeneratorFunc(func(ctx context.Context, skill *models.Skill, input json.RawMessage) (json.RawMessage, error) {
		return nil, fmt.Errorf("model unavailable")
	})
}

type testEnv struct {
	coordinator *Coordinator
	jobs        *mockJobStore
	agents      *mockAgentStore
	deliveries  *mockDeliveryStore
	verifier    *mockVerifier
}

// newTestEnv builds a coordinator over mocks. webhookCfg may be nil for the
// default fast retry schedule.
func newTestEnv(verifier *mockVerifier, generator Generator, webhookCfg *webhook.ClientConfig) *testEnv {
	agents := newMockAgentStore()
	jobs := newMockJobStore(agents)
	deliveries := &mockDeliveryStore{}

	if webhookCfg == nil {
		webhookCfg = &webhook.ClientConfig{
			MaxAttempts:    4,
			AttemptTimeout: 2 * time.Second,
			BaseDelay:      1 * time.Millisecond,
		}
	}
	client := webhook.NewClient(webhookCfg, nil)

	coordinator := NewCoordinator(
		Config{JobDeadline: 10 * time.Minute, InlineTimeout: 2 * time.Second},
		jobs, agents, deliveries, verifier, generator, client, 4, nil,
	)

	return &testEnv{
		coordinator: coordinator,
		jobs:        jobs,
		agents:      agents,
		deliveries:  deliveries,
		verifier:    verifier,
	}
}

const testWallet = "0x1111111111111111111111111111111111111111"

// registerTestAgent registers an agent with one skill and returns the
// result plus the skill ID.
func (e *testEnv) registerTestAgent(t *testing.T, ctx context.Context, webhookURL string) (*RegisterAgentResult, string) {
	t.Helper()
	result, err := e.coordinator.RegisterAgent(ctx, &RegisterAgentInput{
		Name:          "test-agent",
		WalletAddress: testWallet,
		WebhookURL:    webhookURL,
		Skills: []SkillInput{
			{Name: "summarize", Description: "summarizes documents", PriceUSDC: "1000000"},
		},
	})
	if err != nil {
		t.Fatalf("registerTestAgent: %v", err)
	}
	return result, result.Skills[0].ID
}

const testTxHash = "0x1234567890abcdef1234567890abcdef1234567890abcdef1234567890abcdef"
