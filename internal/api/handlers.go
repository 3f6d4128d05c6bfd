package api

import (
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/p-blackswan/pulsetrack/internal/analytics"
	perrors "github.com/p-blackswan/pulsetrack/internal/errors"
	"github.com/p-blackswan/pulsetrack/internal/health"
	"github.com/p-blackswan/pulsetrack/internal/project"
)

// Version is set at build time via -ldflags.
var Version = "dev"

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	manager       *project.Manager
	checker       *health.Checker
	runtimeConfig *RuntimeConfig
	logger        zerolog.Logger
	startTime     time.Time
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(manager *project.Manager, checker *health.Checker, rtCfg *RuntimeConfig, logger zerolog.Logger) *Handlers {
	return &Handlers{
		manager:       manager,
		checker:       checker,
		runtimeConfig: rtCfg,
		logger:        logger.With().Str("component", "handlers").Logger(),
		startTime:     time.Now(),
	}
}

// storeError maps domain errors onto problem responses.
func storeError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, perrors.ErrNotFound):
		return problemResponse(c, fiber.StatusNotFound,
			"not_found", "Not Found", err.Error())
	case errors.Is(err, perrors.ErrInvalidInput):
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_input", "Bad Request", err.Error())
	case errors.Is(err, perrors.ErrStoreUnavailable):
		return problemResponse(c, fiber.StatusServiceUnavailable,
			"store_unavailable", "Service Unavailable", "Storage is temporarily unavailable")
	default:
		return problemResponse(c, fiber.StatusInternalServerError,
			"internal_error", "Internal Server Error", "An internal error occurred")
	}
}

// --- Projects ---

// CreateProject handles POST /api/v1/projects.
func (h *Handlers) CreateProject(c *fiber.Ctx) error {
	var req project.CreateProjectInput
	if err := c.BodyParser(&req); err != nil {
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_body", "Bad Request", "Invalid request body: "+err.Error())
	}
	if req.Name == "" {
		return problemResponse(c, fiber.StatusBadRequest,
			"missing_name", "Bad Request", "Project name is required")
	}

	p, err := h.manager.CreateProject(c.UserContext(), req)
	if err != nil {
		return storeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(p)
}

// ListProjects handles GET /api/v1/projects.
func (h *Handlers) ListProjects(c *fiber.Ctx) error {
	status := c.Query("status", "")
	if status != "" && status != string(project.StatusActive) && status != string(project.StatusPaused) {
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_status", "Bad Request", "status must be active or paused")
	}

	projects, err := h.manager.ListProjects(status)
	if err != nil {
		return storeError(c, err)
	}
	if projects == nil {
		projects = []*project.Project{}
	}
	return c.JSON(ProjectListResponse{Projects: projects, Total: len(projects)})
}

// GetProject handles GET /api/v1/projects/:id.
func (h *Handlers) GetProject(c *fiber.Ctx) error {
	p, err := h.manager.GetProject(c.Params("id"))
	if err != nil {
		return storeError(c, err)
	}
	if p == nil {
		return problemResponse(c, fiber.StatusNotFound,
			"not_found", "Not Found", "project not found")
	}
	return c.JSON(p)
}

// UpdateProject handles PATCH /api/v1/projects/:id.
func (h *Handlers) UpdateProject(c *fiber.Ctx) error {
	var req project.UpdateProjectInput
	if err := c.BodyParser(&req); err != nil {
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_body", "Bad Request", "Invalid request body: "+err.Error())
	}

	p, err := h.manager.UpdateProjectMeta(c.Params("id"), req)
	if err != nil {
		return storeError(c, err)
	}
	return c.JSON(p)
}

// DeleteProject handles DELETE /api/v1/projects/:id.
func (h *Handlers) DeleteProject(c *fiber.Ctx) error {
	if err := h.manager.DeleteProject(c.Params("id")); err != nil {
		return storeError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// --- Updates ---

// SubmitUpdate handles POST /api/v1/projects/:id/updates. The response is 201
// even when processing failed: the update is recorded either way, and the
// processing_error field tells the two cases apart.
func (h *Handlers) SubmitUpdate(c *fiber.Ctx) error {
	var req project.SubmitUpdateInput
	if err := c.BodyParser(&req); err != nil {
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_body", "Bad Request", "Invalid request body: "+err.Error())
	}

	res, err := h.manager.SubmitUpdate(c.UserContext(), c.Params("id"), req)
	if err != nil {
		return storeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(res)
}

// ListUpdates handles GET /api/v1/projects/:id/updates.
func (h *Handlers) ListUpdates(c *fiber.Ctx) error {
	p, err := h.manager.GetProject(c.Params("id"))
	if err != nil {
		return storeError(c, err)
	}
	if p == nil {
		return problemResponse(c, fiber.StatusNotFound,
			"not_found", "Not Found", "project not found")
	}

	updates := p.Updates
	if limit := c.QueryInt("limit", 0); limit > 0 && limit < len(updates) {
		// Most recent N, still in chronological order.
		updates = updates[len(updates)-limit:]
	}
	return c.JSON(UpdateListResponse{Updates: updates, Total: len(p.Updates)})
}

// DeleteUpdate handles DELETE /api/v1/projects/:id/updates/:updateID.
func (h *Handlers) DeleteUpdate(c *fiber.Ctx) error {
	if err := h.manager.DeleteUpdate(c.Params("id"), c.Params("updateID")); err != nil {
		return storeError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// --- Analytics ---

// ProjectAnalytics handles GET /api/v1/projects/:id/analytics.
func (h *Handlers) ProjectAnalytics(c *fiber.Ctx) error {
	p, err := h.manager.GetProject(c.Params("id"))
	if err != nil {
		return storeError(c, err)
	}
	if p == nil {
		return problemResponse(c, fiber.StatusNotFound,
			"not_found", "Not Found", "project not found")
	}

	now := time.Now()
	completed, blockers := 0, 0
	if p.CurrentState != nil {
		s := p.CurrentState.Normalized()
		completed, blockers = len(s.Completed), len(s.Blockers)
	}
	score := analytics.HealthScore(p, now)

	return c.JSON(ProjectAnalyticsResponse{
		ProjectID:      p.ID,
		Streaks:        analytics.UpdateStreaks(p.Updates, now),
		WeeklyVelocity: analytics.WeeklyVelocity(p.Updates, now),
		CompletionRate: analytics.CompletionRate(completed, blockers),
		HealthScore:    score,
		HealthLabel:    analytics.LabelFor(score),
		DayOfWeek:      analytics.DayOfWeekHistogram(p.Updates, now.Location()),
		LastSevenDays:  analytics.LastSevenDays(p.Updates, now),
		TagFrequency:   analytics.TagFrequency(p.Updates),
	})
}

// PortfolioAnalytics handles GET /api/v1/analytics.
func (h *Handlers) PortfolioAnalytics(c *fiber.Ctx) error {
	projects, err := h.manager.ListProjects("")
	if err != nil {
		return storeError(c, err)
	}

	now := time.Now()
	entries := make([]PortfolioEntry, 0, len(projects))
	active := 0
	for _, p := range projects {
		if p.Status == project.StatusActive {
			active++
		}
		score := analytics.HealthScore(p, now)
		entries = append(entries, PortfolioEntry{
			ProjectID:      p.ID,
			Name:           p.Name,
			Status:         p.Status,
			HealthScore:    score,
			HealthLabel:    analytics.LabelFor(score),
			WeeklyVelocity: analytics.WeeklyVelocity(p.Updates, now),
			OpenAlerts:     len(p.RiskAlerts),
		})
	}

	return c.JSON(PortfolioAnalyticsResponse{
		Projects:       entries,
		TotalProjects:  len(projects),
		ActiveProjects: active,
		CompletionRate: analytics.ProjectCompletionRate(projects),
	})
}

// --- Probes, health and config ---

// Liveness handles GET /healthz.
func (h *Handlers) Liveness(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// Readiness handles GET /readyz.
func (h *Handlers) Readiness(c *fiber.Ctx) error {
	if h.checker != nil && !h.checker.IsReady(c.UserContext()) {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "not_ready"})
	}
	return c.JSON(fiber.Map{"status": "ready"})
}

// HealthDetail handles GET /api/v1/health.
func (h *Handlers) HealthDetail(c *fiber.Ctx) error {
	integrations := map[string]string{}
	status := "ok"
	if h.checker != nil {
		for name, s := range h.checker.RunAll(c.UserContext()) {
			integrations[name] = string(s)
			if s == health.StatusDown {
				status = "degraded"
			}
		}
	}
	return c.JSON(HealthDetailResponse{
		Status:       status,
		Integrations: integrations,
		Uptime:       time.Since(h.startTime).Round(time.Second).String(),
		Version:      Version,
	})
}

// GetConfig handles GET /api/v1/config.
func (h *Handlers) GetConfig(c *fiber.Ctx) error {
	return c.JSON(h.runtimeConfig.Snapshot())
}

// PatchConfig handles PATCH /api/v1/config.
func (h *Handlers) PatchConfig(c *fiber.Ctx) error {
	var req ConfigPatchRequest
	if err := c.BodyParser(&req); err != nil {
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_body", "Bad Request", "Invalid request body: "+err.Error())
	}
	if req.LogLevel != nil {
		switch *req.LogLevel {
		case "trace", "debug", "info", "warn", "error":
		default:
			return problemResponse(c, fiber.StatusBadRequest,
				"invalid_log_level", "Bad Request",
				fmt.Sprintf("unknown log level %q", *req.LogLevel))
		}
	}
	if req.RateLimitRPS != nil && *req.RateLimitRPS < 0 {
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_rate_limit", "Bad Request", "rate_limit_rps must be non-negative")
	}

	h.runtimeConfig.Apply(req)
	h.logger.Info().Msg("runtime config patched")
	return c.JSON(h.runtimeConfig.Snapshot())
}
