// Package types provides common type definitions for the marketplace hub.
package types

// JobStatus represents the lifecycle state of a job
type JobStatus string

const (
	// JobStatusCreated represents a job awaiting payment
	JobStatusCreated JobStatus = "created"
	// JobStatusPaid represents a job with confirmed on-chain payment
	JobStatusPaid JobStatus = "paid"
	// JobStatusInProgress represents a job an agent has started working on
	JobStatusInProgress JobStatus = "in_progress"
	// JobStatusCompleted represents a job with delivered output
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed represents a job that could not be fulfilled
	JobStatusFailed JobStatus = "failed"
)

// IsTerminal reports whether a job in this status can never transition again.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// CanTransition reports whether the edge from -> to is a legal lifecycle
// transition. The lifecycle is one-directional:
//
//	created -> paid -> (in_progress) -> completed | failed
func CanTransition(from, to JobStatus) bool {
	switch from {
	case JobStatusCreated:
		return to == JobStatusPaid
	case JobStatusPaid:
		return to == JobStatusInProgress || to == JobStatusCompleted || to == JobStatusFailed
	case JobStatusInProgress:
		return to == JobStatusCompleted || to == JobStatusFailed
	default:
		return false
	}
}

// ValidJobStatus reports whether s is one of the known job statuses.
func ValidJobStatus(s JobStatus) bool {
	switch s {
	case JobStatusCreated, JobStatusPaid, JobStatusInProgress, JobStatusCompleted, JobStatusFailed:
		return true
	default:
		return false
	}
}

// DeliveryStatus represents the final outcome of a webhook delivery sequence
type DeliveryStatus string

const (
	// DeliverySuccess represents an acknowledged delivery (2xx response)
	DeliverySuccess DeliveryStatus = "success"
	// DeliveryFailed represents an exhausted or permanently rejected delivery
	DeliveryFailed DeliveryStatus = "failed"
)

// TrustTier represents a derived reputation label for an agent.
// Computed from completed job counts, never stored.
type TrustTier string

const (
	TierNone   TrustTier = "none"
	TierBronze TrustTier = "bronze"
	TierSilver TrustTier = "silver"
	TierGold   TrustTier = "gold"
)

// ServiceError represents a structured error response
type ServiceError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *ServiceError) Error() string {
	return e.Message
}
