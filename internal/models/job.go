// Package models provides data models for the marketplace hub.
package models

import (
	"encoding/json"
	"time"

	"github.com/botique-hub/internal/types"
)

// Job represents a unit of paid work tracked from payment to delivery.
// OutputData is only set once the job reaches completed; TxHash is only set
// once payment has been confirmed.
type Job struct {
	ID          string          `json:"id" db:"id"`
	SkillID     string          `json:"skillId" db:"skill_id"`
	AgentID     string          `json:"agentId" db:"agent_id"`
	InputData   json.RawMessage `json:"inputData" db:"input_data"`
	OutputData  json.RawMessage `json:"outputData,omitempty" db:"output_data"`
	PriceUSDC   string          `json:"priceUsdc" db:"price_usdc"` // base units (6 decimals), string for exactness
	TxHash      *string         `json:"txHash,omitempty" db:"tx_hash"`
	Status      types.JobStatus `json:"status" db:"status"`
	ErrorReason *string         `json:"errorReason,omitempty" db:"error_reason"`
	CreatedAt   time.Time       `json:"createdAt" db:"created_at"`
	PaidAt      *time.Time      `json:"paidAt,omitempty" db:"paid_at"`
	CompletedAt *time.Time      `json:"completedAt,omitempty" db:"completed_at"`
}
