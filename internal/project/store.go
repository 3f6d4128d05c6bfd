package project

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	perrors "github.com/p-blackswan/pulsetrack/internal/errors"
	"github.com/p-blackswan/pulsetrack/internal/risk"
	"github.com/p-blackswan/pulsetrack/internal/state"
	"github.com/p-blackswan/pulsetrack/internal/store"
)

// Store handles project-related SQLite operations.
type Store struct {
	ds     *store.Store
	logger zerolog.Logger
}

// NewStore creates a new project store.
func NewStore(ds *store.Store, logger zerolog.Logger) *Store {
	return &Store{
		ds:     ds,
		logger: logger.With().Str("component", "project.store").Logger(),
	}
}

// DB returns the underlying sql.DB for direct use.
func (s *Store) DB() *sql.DB {
	return s.ds.DB()
}

// CreateProject creates a new project with no state yet.
func (s *Store) CreateProject(input CreateProjectInput) (*Project, error) {
	if input.Name == "" {
		return nil, fmt.Errorf("%w: project name is required", perrors.ErrInvalidInput)
	}

	now := time.Now()
	p := &Project{
		ID:             uuid.New().String(),
		Name:           input.Name,
		Goal:           input.Goal,
		Status:         StatusActive,
		InitialContext: input.InitialContext,
		Updates:        []Update{},
		RiskAlerts:     []risk.Alert{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	query := `
	INSERT INTO projects (id, name, goal, status, initial_context, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.ds.DB().Exec(query,
		p.ID, p.Name, p.Goal, string(p.Status),
		sql.NullString{String: p.InitialContext, Valid: p.InitialContext != ""},
		p.CreatedAt.UnixMilli(), p.UpdatedAt.UnixMilli(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create project: %w", err)
	}

	return p, nil
}

const projectColumns = `id, name, goal, status, initial_context, current_state, previous_state, created_at, updated_at`

// GetProject hydrates the full aggregate: project row, ordered updates, and
// risk alerts. Returns nil without error when the project does not exist.
func (s *Store) GetProject(id string) (*Project, error) {
	p, err := s.scanProject(`SELECT `+projectColumns+` FROM projects WHERE id = ?`, id)
	if err != nil || p == nil {
		return p, err
	}

	if p.Updates, err = s.ListUpdates(p.ID, 0); err != nil {
		return nil, err
	}
	if p.RiskAlerts, err = s.listAlerts(p.ID); err != nil {
		return nil, err
	}
	return p, nil
}

// ListProjects returns all projects as hydrated aggregates, optionally
// filtered by status. Insertion order is preserved via created_at.
func (s *Store) ListProjects(status string) ([]*Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects`
	var args []interface{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at ASC`

	rows, err := s.ds.DB().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var projects []*Project
	for rows.Next() {
		p, err := s.scanProjectRow(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}

	for _, p := range projects {
		if p.Updates, err = s.ListUpdates(p.ID, 0); err != nil {
			return nil, err
		}
		if p.RiskAlerts, err = s.listAlerts(p.ID); err != nil {
			return nil, err
		}
	}
	return projects, nil
}

// UpdateProjectMeta patches name/goal/status. Returns the fresh aggregate.
func (s *Store) UpdateProjectMeta(id string, input UpdateProjectInput) (*Project, error) {
	p, err := s.GetProject(id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("project %s: %w", id, perrors.ErrNotFound)
	}

	if input.Name != nil {
		p.Name = *input.Name
	}
	if input.Goal != nil {
		p.Goal = *input.Goal
	}
	if input.Status != nil {
		switch *input.Status {
		case StatusActive, StatusPaused:
			p.Status = *input.Status
		default:
			return nil, fmt.Errorf("%w: status must be active or paused", perrors.ErrInvalidInput)
		}
	}
	p.UpdatedAt = time.Now()

	_, err = s.ds.DB().Exec(
		`UPDATE projects SET name = ?, goal = ?, status = ?, updated_at = ? WHERE id = ?`,
		p.Name, p.Goal, string(p.Status), p.UpdatedAt.UnixMilli(), p.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update project: %w", err)
	}
	return p, nil
}

// DeleteProject removes the project and, via cascade, its updates and alerts.
func (s *Store) DeleteProject(id string) error {
	res, err := s.ds.DB().Exec(`DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("project %s: %w", id, perrors.ErrNotFound)
	}
	return nil
}

// CommitUpdateParams carries everything one update cycle writes.
type CommitUpdateParams struct {
	Update *Update
	// AdvanceState is false when processing failed: the update row is still
	// written but the cached current/previous states stay untouched.
	AdvanceState  bool
	CurrentState  *state.StructuredState
	PreviousState *state.StructuredState
	NewAlerts     []risk.Alert
}

// CommitUpdate applies one full update cycle in a single transaction: the
// update row, the project's cached state shift, and any new alerts (pruned to
// the retention cap). Partial application is never observable.
func (s *Store) CommitUpdate(ctx context.Context, projectID string, params CommitUpdateParams) error {
	tx, err := s.ds.DB().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", perrors.ErrStoreUnavailable, err)
	}
	defer tx.Rollback()

	u := params.Update
	stateJSON, err := marshalState(u.State)
	if err != nil {
		return err
	}
	tagsJSON, err := marshalStrings(u.Tags)
	if err != nil {
		return err
	}
	commentsJSON, err := marshalStrings(u.Comments)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
	INSERT INTO updates (id, project_id, text, structured_state, processing_error, tags, comments, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, projectID, u.Text, stateJSON,
		sql.NullString{String: u.ProcessingError, Valid: u.ProcessingError != ""},
		tagsJSON, commentsJSON, u.Timestamp.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert update: %w", err)
	}

	if params.AdvanceState {
		currJSON, err := marshalState(params.CurrentState)
		if err != nil {
			return err
		}
		prevJSON, err := marshalState(params.PreviousState)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE projects SET current_state = ?, previous_state = ?, updated_at = ? WHERE id = ?`,
			currJSON, prevJSON, u.Timestamp.UnixMilli(), projectID,
		)
		if err != nil {
			return fmt.Errorf("failed to shift project state: %w", err)
		}
	} else {
		_, err = tx.ExecContext(ctx,
			`UPDATE projects SET updated_at = ? WHERE id = ?`,
			u.Timestamp.UnixMilli(), projectID,
		)
		if err != nil {
			return fmt.Errorf("failed to touch project: %w", err)
		}
	}

	for _, a := range params.NewAlerts {
		_, err = tx.ExecContext(ctx, `
		INSERT INTO risk_alerts (id, project_id, type, severity, message, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
			uuid.New().String(), projectID, string(a.Type), string(a.Severity),
			a.Message, a.Timestamp.UnixMilli(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert alert: %w", err)
		}
	}

	// Keep only the most recent alerts for this project. Alerts fired in
	// one cycle share a timestamp, so ties fall back to insertion order
	// (rowid) to keep eviction strictly oldest-first.
	_, err = tx.ExecContext(ctx, `
	DELETE FROM risk_alerts WHERE project_id = ? AND id NOT IN (
		SELECT id FROM risk_alerts WHERE project_id = ?
		ORDER BY created_at DESC, rowid DESC LIMIT ?
	)`, projectID, projectID, risk.MaxAlertsPerProject)
	if err != nil {
		return fmt.Errorf("failed to prune alerts: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %v", perrors.ErrStoreUnavailable, err)
	}
	return nil
}

// ListUpdates returns a project's updates in chronological order. limit=0
// means all.
func (s *Store) ListUpdates(projectID string, limit int) ([]Update, error) {
	query := `
	SELECT id, project_id, text, structured_state, processing_error, tags, comments, created_at
	FROM updates WHERE project_id = ? ORDER BY created_at ASC, rowid ASC`
	var args []interface{} = []interface{}{projectID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.ds.DB().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list updates: %w", err)
	}
	defer rows.Close()

	updates := []Update{}
	for rows.Next() {
		var u Update
		var stateJSON, procErr, tagsJSON, commentsJSON sql.NullString
		var createdAt int64
		if err := rows.Scan(&u.ID, &u.ProjectID, &u.Text, &stateJSON, &procErr, &tagsJSON, &commentsJSON, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan update: %w", err)
		}
		u.ProcessingError = procErr.String
		u.Timestamp = time.UnixMilli(createdAt)
		if u.State, err = unmarshalState(stateJSON); err != nil {
			// Malformed persisted state degrades to "no state" — the raw
			// text is still served.
			s.logger.Warn().Str("update_id", u.ID).Err(err).Msg("dropping malformed persisted state")
			u.State = nil
		}
		if u.Tags, err = unmarshalStrings(tagsJSON); err != nil {
			return nil, err
		}
		if u.Comments, err = unmarshalStrings(commentsJSON); err != nil {
			return nil, err
		}
		updates = append(updates, u)
	}
	return updates, rows.Err()
}

// DeleteUpdate removes one update. The project's cached current/previous
// states are deliberately not recomputed; see the design notes.
func (s *Store) DeleteUpdate(projectID, updateID string) error {
	res, err := s.ds.DB().Exec(
		`DELETE FROM updates WHERE id = ? AND project_id = ?`, updateID, projectID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete update: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update %s: %w", updateID, perrors.ErrNotFound)
	}
	return nil
}

func (s *Store) listAlerts(projectID string) ([]risk.Alert, error) {
	rows, err := s.ds.DB().Query(`
	SELECT type, severity, message, created_at FROM risk_alerts
	WHERE project_id = ? ORDER BY created_at ASC, rowid ASC`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	defer rows.Close()

	alerts := []risk.Alert{}
	for rows.Next() {
		var a risk.Alert
		var typ, sev string
		var createdAt int64
		if err := rows.Scan(&typ, &sev, &a.Message, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		a.Type = risk.AlertType(typ)
		a.Severity = risk.Severity(sev)
		a.Timestamp = time.UnixMilli(createdAt)
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

func (s *Store) scanProject(query string, args ...interface{}) (*Project, error) {
	row := s.ds.DB().QueryRow(query, args...)
	return scanProjectFrom(row.Scan)
}

func (s *Store) scanProjectRow(rows *sql.Rows) (*Project, error) {
	return scanProjectFrom(rows.Scan)
}

func scanProjectFrom(scan func(...interface{}) error) (*Project, error) {
	p := &Project{}
	var status string
	var initialCtx, currJSON, prevJSON sql.NullString
	var createdAt, updatedAt int64

	err := scan(&p.ID, &p.Name, &p.Goal, &status, &initialCtx, &currJSON, &prevJSON, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}

	p.Status = Status(status)
	p.InitialContext = initialCtx.String
	p.CreatedAt = time.UnixMilli(createdAt)
	p.UpdatedAt = time.UnixMilli(updatedAt)
	if p.CurrentState, err = unmarshalState(currJSON); err != nil {
		return nil, err
	}
	if p.PreviousState, err = unmarshalState(prevJSON); err != nil {
		return nil, err
	}
	p.Updates = []Update{}
	p.RiskAlerts = []risk.Alert{}
	return p, nil
}

func marshalState(s *state.StructuredState) (sql.NullString, error) {
	if s == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(s)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to marshal state: %w", err)
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func unmarshalState(ns sql.NullString) (*state.StructuredState, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	var s state.StructuredState
	if err := json.Unmarshal([]byte(ns.String), &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal state: %w", err)
	}
	return s.Normalized(), nil
}

func marshalStrings(items []string) (sql.NullString, error) {
	if len(items) == 0 {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(items)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to marshal list: %w", err)
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func unmarshalStrings(ns sql.NullString) ([]string, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	var items []string
	if err := json.Unmarshal([]byte(ns.String), &items); err != nil {
		return nil, fmt.Errorf("failed to unmarshal list: %w", err)
	}
	return items, nil
}
