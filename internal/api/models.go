// Package api provides the HTTP API for pulsetrack.
package api

import (
	"sync"

	"github.com/p-blackswan/pulsetrack/internal/analytics"
	"github.com/p-blackswan/pulsetrack/internal/project"
)

// --- Response DTOs ---

// ProjectListResponse wraps a list of projects.
type ProjectListResponse struct {
	Projects []*project.Project `json:"projects"`
	Total    int                `json:"total"`
}

// UpdateListResponse wraps a project's update history.
type UpdateListResponse struct {
	Updates []project.Update `json:"updates"`
	Total   int              `json:"total"`
}

// ProjectAnalyticsResponse is the response for GET /api/v1/projects/:id/analytics.
type ProjectAnalyticsResponse struct {
	ProjectID      string                `json:"project_id"`
	Streaks        analytics.Streaks     `json:"streaks"`
	WeeklyVelocity int                   `json:"weekly_velocity"`
	CompletionRate int                   `json:"completion_rate"`
	HealthScore    int                   `json:"health_score"`
	HealthLabel    analytics.HealthLabel `json:"health_label"`
	DayOfWeek      [7]int                `json:"day_of_week"`
	LastSevenDays  []analytics.DayCount  `json:"last_seven_days"`
	TagFrequency   []analytics.TagCount  `json:"tag_frequency"`
}

// PortfolioEntry is one project's summary row in the portfolio view.
type PortfolioEntry struct {
	ProjectID      string                `json:"project_id"`
	Name           string                `json:"name"`
	Status         project.Status        `json:"status"`
	HealthScore    int                   `json:"health_score"`
	HealthLabel    analytics.HealthLabel `json:"health_label"`
	WeeklyVelocity int                   `json:"weekly_velocity"`
	OpenAlerts     int                   `json:"open_alerts"`
}

// PortfolioAnalyticsResponse is the response for GET /api/v1/analytics.
type PortfolioAnalyticsResponse struct {
	Projects       []PortfolioEntry `json:"projects"`
	TotalProjects  int              `json:"total_projects"`
	ActiveProjects int              `json:"active_projects"`
	CompletionRate int              `json:"completion_rate"`
}

// HealthDetailResponse is the response for GET /api/v1/health.
type HealthDetailResponse struct {
	Status       string            `json:"status"`
	Integrations map[string]string `json:"integrations"`
	Uptime       string            `json:"uptime"`
	Version      string            `json:"version"`
}

// ConfigResponse is the response for GET /api/v1/config.
type ConfigResponse struct {
	Environment    string `json:"environment"`
	LogLevel       string `json:"log_level"`
	ListenAddr     string `json:"listen_addr"`
	RateLimitRPS   int    `json:"rate_limit_rps"`
	RateLimitBurst int    `json:"rate_limit_burst"`
	AuthMode       string `json:"auth_mode"`
}

// ConfigPatchRequest is the payload for PATCH /api/v1/config.
type ConfigPatchRequest struct {
	LogLevel     *string `json:"log_level,omitempty"`
	RateLimitRPS *int    `json:"rate_limit_rps,omitempty"`
}

// ProblemDetail follows RFC 7807 for error responses.
type ProblemDetail struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
}

// RuntimeConfig holds the mutable subset of configuration, safe for
// concurrent reads from handlers while PATCH /config writes.
type RuntimeConfig struct {
	mu sync.RWMutex

	Environment    string
	LogLevel       string
	ListenAddr     string
	RateLimitRPS   int
	RateLimitBurst int
	AuthMode       string
}

// Snapshot returns a consistent copy of the current values.
func (r *RuntimeConfig) Snapshot() ConfigResponse {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return ConfigResponse{
		Environment:    r.Environment,
		LogLevel:       r.LogLevel,
		ListenAddr:     r.ListenAddr,
		RateLimitRPS:   r.RateLimitRPS,
		RateLimitBurst: r.RateLimitBurst,
		AuthMode:       r.AuthMode,
	}
}

// Apply patches the mutable fields.
func (r *RuntimeConfig) Apply(patch ConfigPatchRequest) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if patch.LogLevel != nil {
		r.LogLevel = *patch.LogLevel
	}
	if patch.RateLimitRPS != nil {
		r.RateLimitRPS = *patch.RateLimitRPS
	}
}
