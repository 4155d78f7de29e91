package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/botique-hub/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// AgentRepository handles agent and skill persistence
type AgentRepository struct {
	db *PostgresDB
}

// NewAgentRepository creates a new agent repository
func NewAgentRepository(db *PostgresDB) *AgentRepository {
	return &AgentRepository{db: db}
}

const agentColumns = `id, name, wallet_address, api_key_hash, webhook_url,
	webhook_secret, total_jobs, total_earned_usdc::text, disabled, created_at`

func scanAgent(row pgx.Row) (*models.Agent, error) {
	var agent models.Agent
	err := row.Scan(
		&agent.ID,
		&agent.Name,
		&agent.WalletAddress,
		&agent.APIKeyHash,
		&agent.WebhookURL,
		&agent.WebhookSecret,
		&agent.TotalJobs,
		&agent.TotalEarnedUSDC,
		&agent.Disabled,
		&agent.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &agent, nil
}

// Create inserts an agent together with its skills in one transaction
func (r *AgentRepository) Create(ctx context.Context, agent *models.Agent, skills []*models.Skill) error {
	if agent.ID == "" {
		agent.ID = uuid.New().String()
	}
	agent.CreatedAt = time.Now()
	if agent.TotalEarnedUSDC == "" {
		agent.TotalEarnedUSDC = "0"
	}

	tx, err := r.db.Pool().Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	agentQuery := `
		INSERT INTO agents (id, name, wallet_address, api_key_hash, webhook_url,
			webhook_secret, total_jobs, total_earned_usdc, disabled, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8::numeric, $9, $10)
	`

	_, err = tx.Exec(ctx, agentQuery,
		agent.ID,
		agent.Name,
		agent.WalletAddress,
		agent.APIKeyHash,
		agent.WebhookURL,
		agent.WebhookSecret,
		agent.TotalJobs,
		agent.TotalEarnedUSDC,
		agent.Disabled,
		agent.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create agent: %w", err)
	}

	skillQuery := `
		INSERT INTO skills (id, agent_id, name, description, price_usdc, created_at)
		VALUES ($1, $2, $3, $4, $5::numeric, $6)
	`

	for _, skill := range skills {
		if skill.ID == "" {
			skill.ID = uuid.New().String()
		}
		skill.AgentID = agent.ID
		skill.CreatedAt = agent.CreatedAt

		_, err = tx.Exec(ctx, skillQuery,
			skill.ID,
			skill.AgentID,
			skill.Name,
			skill.Description,
			skill.PriceUSDC,
			skill.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to create skill: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit agent creation: %w", err)
	}

	return nil
}

// GetByID retrieves an agent by ID
func (r *AgentRepository) GetByID(ctx context.Context, id string) (*models.Agent, error) {
	query := `SELECT ` + agentColumns + ` FROM agents WHERE id = $1`

	agent, err := scanAgent(r.db.Pool().QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("agent not found: %s", id)
		}
		return nil, fmt.Errorf("failed to get agent: %w", err)
	}

	return agent, nil
}

// GetByAPIKeyHash retrieves an agent by the hash of its API key
func (r *AgentRepository) GetByAPIKeyHash(ctx context.Context, keyHash string) (*models.Agent, error) {
	query := `SELECT ` + agentColumns + ` FROM agents WHERE api_key_hash = $1 AND NOT disabled`

	agent, err := scanAgent(r.db.Pool().QueryRow(ctx, query, keyHash))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errors.New("agent not found for credential")
		}
		return nil, fmt.Errorf("failed to get agent by credential: %w", err)
	}

	return agent, nil
}

// GetSkill retrieves a skill by ID
func (r *AgentRepository) GetSkill(ctx context.Context, skillID string) (*models.Skill, error) {
	query := `
		SELECT id, agent_id, name, description, price_usdc::text, created_at
		FROM skills
		WHERE id = $1
	`

	var skill models.Skill
	err := r.db.Pool().QueryRow(ctx, query, skillID).Scan(
		&skill.ID,
		&skill.AgentID,
		&skill.Name,
		&skill.Description,
		&skill.PriceUSDC,
		&skill.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("skill not found: %s", skillID)
		}
		return nil, fmt.Errorf("failed to get skill: %w", err)
	}

	return &skill, nil
}

// ListSkills retrieves all skills for an agent
func (r *AgentRepository) ListSkills(ctx context.Context, agentID string) ([]*models.Skill, error) {
	query := `
		SELECT id, agent_id, name, description, price_usdc::text, created_at
		FROM skills
		WHERE agent_id = $1
		ORDER BY created_at
	`

	rows, err := r.db.Pool().Query(ctx, query, agentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list skills: %w", err)
	}
	defer rows.Close()

	var skills []*models.Skill
	for rows.Next() {
		var skill models.Skill
		err := rows.Scan(
			&skill.ID,
			&skill.AgentID,
			&skill.Name,
			&skill.Description,
			&skill.PriceUSDC,
			&skill.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan skill: %w", err)
		}
		skills = append(skills, &skill)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating skills: %w", err)
	}

	return skills, nil
}

// Disable soft-disables an agent; agents are never hard-deleted
func (r *AgentRepository) Disable(ctx context.Context, id string) error {
	query := `UPDATE agents SET disabled = TRUE WHERE id = $1`

	result, err := r.db.Pool().Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to disable agent: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("agent not found: %s", id)
	}

	return nil
}
