package hub

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	hverrors "github.com/botique-hub/internal/errors"
	"github.com/botique-hub/internal/models"
	"github.com/botique-hub/internal/types"
)

// SkillInput describes one priced capability at registration
type SkillInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	PriceUSDC   string `json:"priceUsdc"`
}

// RegisterAgentInput is the agent registration request
type RegisterAgentInput struct {
	Name          string       `json:"name"`
	WalletAddress string       `json:"walletAddress"`
	WebhookURL    string       `json:"webhookUrl"`
	Skills        []SkillInput `json:"skills"`
}

// RegisterAgentResult carries the new agent and its one-time API key. The
// key is never retrievable again; only its hash is stored.
type RegisterAgentResult struct {
	Agent  *models.Agent   `json:"agent"`
	Skills []*models.Skill `json:"skills"`
	APIKey string          `json:"apiKey"`
}

// AgentProfile is the public view of an agent
type AgentProfile struct {
	Agent     *models.Agent   `json:"agent"`
	Skills    []*models.Skill `json:"skills"`
	TrustTier types.TrustTier `json:"trustTier"`
}

// RegisterAgent registers a new service provider
func (c *Coordinator) RegisterAgent(ctx context.Context, input *RegisterAgentInput) (*RegisterAgentResult, error) {
	if input.Name == "" {
		return nil, hverrors.NewValidationError("name", "required")
	}
	if !common.IsHexAddress(input.WalletAddress) {
		return nil, hverrors.NewValidationError("walletAddress", "not a valid address")
	}
	if len(input.Skills) == 0 {
		return nil, hverrors.NewValidationError("skills", "at least one skill is required")
	}

	skills := make([]*models.Skill, 0, len(input.Skills))
	for _, s := range input.Skills {
		if s.Name == "" {
			return nil, hverrors.NewValidationError("skills.name", "required")
		}
		price, ok := new(big.Int).SetString(s.PriceUSDC, 10)
		if !ok || price.Sign() <= 0 {
			return nil, hverrors.NewValidationError("skills.priceUsdc", "must be a positive integer in USDC base units")
		}
		skills = append(skills, &models.Skill{
			Name:        s.Name,
			Description: s.Description,
			PriceUSDC:   s.PriceUSDC,
		})
	}

	apiKey := newAPIKey()

	agent := &models.Agent{
		Name:            input.Name,
		WalletAddress:   common.HexToAddress(input.WalletAddress).Hex(),
		APIKeyHash:      hashAPIKey(apiKey),
		WebhookURL:      input.WebhookURL,
		TotalEarnedUSDC: "0",
	}
	if agent.WebhookURL != "" {
		agent.WebhookSecret = newWebhookSecret()
	}

	if err := c.agents.Create(ctx, agent, skills); err != nil {
		return nil, hverrors.NewDatabaseError("register agent", err)
	}

	return &RegisterAgentResult{
		Agent:  agent,
		Skills: skills,
		APIKey: apiKey,
	}, nil
}

// GetAgentProfile returns the public profile for an agent, read through
// the cache.
func (c *Coordinator) GetAgentProfile(ctx context.Context, agentID string) (*AgentProfile, error) {
	if c.cache != nil {
		var cached AgentProfile
		if hit, err := c.cache.Get(ctx, c.cache.AgentKey(agentID), &cached); err == nil && hit {
			return &cached, nil
		}
	}

	agent, err := c.agents.GetByID(ctx, agentID)
	if err != nil {
		return nil, hverrors.NewNotFoundError("agent", agentID)
	}

	skills, err := c.agents.ListSkills(ctx, agentID)
	if err != nil {
		return nil, hverrors.NewDatabaseError("list skills", err)
	}

	profile := &AgentProfile{
		Agent:     agent,
		Skills:    skills,
		TrustTier: agent.TrustTier(),
	}

	if c.cache != nil {
		_ = c.cache.Set(ctx, c.cache.AgentKey(agentID), profile)
	}

	return profile, nil
}

// authenticateAgent resolves an API key to its agent, returning
// UNAUTHORIZED on any failure so callers cannot probe for valid keys.
func (c *Coordinator) authenticateAgent(ctx context.Context, apiKey string) (*models.Agent, error) {
	if apiKey == "" {
		return nil, hverrors.NewUnauthorizedError("missing API key")
	}

	agent, err := c.agents.GetByAPIKeyHash(ctx, hashAPIKey(apiKey))
	if err != nil {
		return nil, hverrors.NewUnauthorizedError("invalid API key")
	}

	return agent, nil
}

func newWebhookSecret() string {
	return uuid.New().String() + uuid.New().String()
}
