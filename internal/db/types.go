package db

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Run types
const (
	RunTypeJobApply = "job_apply"
	RunTypeFieldMap = "field_map"
)

// Run status values
const (
	RunStatusPending = "pending"
	RunStatusRunning = "running"
	RunStatusSuccess = "success"
	RunStatusError   = "error"
)

// Listing bounds for ListRuns
const (
	DefaultListLimit = 20
	MaxListLimit     = 50
)

// Run is one automation_runs row
type Run struct {
	ID          uuid.UUID       `json:"id"`
	Type        string          `json:"type"`
	Status      string          `json:"status"`
	JobURL      string          `json:"job_url,omitempty"`
	Input       json.RawMessage `json:"input,omitempty"`
	Output      json.RawMessage `json:"output,omitempty"`
	Screenshots []string        `json:"screenshots"`
	Error       *string         `json:"error,omitempty"`
	Progress    int             `json:"progress"`
	CurrentStep *int            `json:"current_step,omitempty"`
	TotalSteps  *int            `json:"total_steps,omitempty"`
	StartedAt   *time.Time      `json:"started_at,omitempty"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// RunInput describes a run being started
type RunInput struct {
	// ID is used as the row key when set, so callers can share one ID with the pipeline
	ID     uuid.UUID
	Type   string
	JobURL string
	Input  any
}
