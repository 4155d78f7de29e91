package models

import "time"

// WebhookDelivery records the final outcome of one notification attempt
// sequence for a job. Immutable once written; used for observability only
// and never read back to drive lifecycle logic.
type WebhookDelivery struct {
	ID              string    `json:"id" db:"id"`
	JobID           string    `json:"jobId" db:"job_id"`
	AgentID         string    `json:"agentId" db:"agent_id"`
	Attempts        int       `json:"attempts" db:"attempts"`
	Success         bool      `json:"success" db:"success"`
	LastStatusCode  *int      `json:"lastStatusCode,omitempty" db:"last_status_code"`
	ErrorText       *string   `json:"errorText,omitempty" db:"error_text"`
	ResponseSnippet *string   `json:"responseSnippet,omitempty" db:"response_snippet"`
	CreatedAt       time.Time `json:"createdAt" db:"created_at"`
}
