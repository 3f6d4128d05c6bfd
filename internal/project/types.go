package project

import (
	"time"

	"github.com/p-blackswan/pulsetrack/internal/risk"
	"github.com/p-blackswan/pulsetrack/internal/state"
)

// Status is a project's lifecycle state.
type Status string

const (
	StatusActive Status = "active"
	StatusPaused Status = "paused"
)

// Update is one user-submitted free-text entry plus its derived structured
// state. Updates are append-only; State is nil when processing failed but the
// raw text is always kept.
type Update struct {
	ID              string                 `json:"id"`
	ProjectID       string                 `json:"project_id"`
	Text            string                 `json:"text"`
	State           *state.StructuredState `json:"structured_state"`
	ProcessingError string                 `json:"processing_error,omitempty"`
	Tags            []string               `json:"tags,omitempty"`
	Comments        []string               `json:"comments,omitempty"`
	Timestamp       time.Time              `json:"timestamp"`
}

// Project is the aggregate root: the ordered update history, the cached
// current/previous structured state, and the bounded risk-alert list.
type Project struct {
	ID             string                 `json:"id"`
	Name           string                 `json:"name"`
	Goal           string                 `json:"goal"`
	Status         Status                 `json:"status"`
	InitialContext string                 `json:"initial_context,omitempty"`
	Updates        []Update               `json:"updates"`
	CurrentState   *state.StructuredState `json:"current_state"`
	PreviousState  *state.StructuredState `json:"previous_state"`
	RiskAlerts     []risk.Alert           `json:"risk_alerts"`
	CreatedAt      time.Time              `json:"created_at"`
	UpdatedAt      time.Time              `json:"updated_at"`
}

// CreateProjectInput holds the parameters for creating a new project.
type CreateProjectInput struct {
	Name           string `json:"name"`
	Goal           string `json:"goal"`
	InitialContext string `json:"initial_context,omitempty"`
	// Repo is an optional "owner/name" reference; when set and a GitHub
	// token is configured, the repository README seeds InitialContext.
	Repo string `json:"repo,omitempty"`
}

// UpdateProjectInput holds the parameters for patching project metadata.
type UpdateProjectInput struct {
	Name   *string `json:"name,omitempty"`
	Goal   *string `json:"goal,omitempty"`
	Status *Status `json:"status,omitempty"`
}

// SubmitUpdateInput holds the parameters for submitting a status update.
type SubmitUpdateInput struct {
	Text     string   `json:"text"`
	Tags     []string `json:"tags,omitempty"`
	Comments []string `json:"comments,omitempty"`
}
