package models

import (
	"time"

	"github.com/botique-hub/internal/types"
)

// Agent represents a service provider with a wallet, API key and optional
// webhook endpoint. Agents are never hard-deleted; Disabled soft-disables
// them instead. The API key is stored hashed and shown exactly once at
// registration.
type Agent struct {
	ID              string    `json:"id" db:"id"`
	Name            string    `json:"name" db:"name"`
	WalletAddress   string    `json:"walletAddress" db:"wallet_address"`
	APIKeyHash      string    `json:"-" db:"api_key_hash"`
	WebhookURL      string    `json:"webhookUrl,omitempty" db:"webhook_url"`
	WebhookSecret   string    `json:"-" db:"webhook_secret"`
	TotalJobs       int64     `json:"totalJobs" db:"total_jobs"`
	TotalEarnedUSDC string    `json:"totalEarnedUsdc" db:"total_earned_usdc"`
	Disabled        bool      `json:"disabled" db:"disabled"`
	CreatedAt       time.Time `json:"createdAt" db:"created_at"`
}

// TrustTier derives the agent's reputation label from its completed job
// count. Informational only, never persisted.
func (a *Agent) TrustTier() types.TrustTier {
	switch {
	case a.TotalJobs >= 100:
		return types.TierGold
	case a.TotalJobs >= 25:
		return types.TierSilver
	case a.TotalJobs >= 3:
		return types.TierBronze
	default:
		return types.TierNone
	}
}

// Skill represents a priced capability offered by an agent
type Skill struct {
	ID          string    `json:"id" db:"id"`
	AgentID     string    `json:"agentId" db:"agent_id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description,omitempty" db:"description"`
	PriceUSDC   string    `json:"priceUsdc" db:"price_usdc"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
}
