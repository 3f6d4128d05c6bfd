package store

import (
	"context"
	"fmt"
)

// AlertRetention is the per-project cap on stored risk alerts.
const AlertRetention = 10

// RunRetention cleans up old data according to retention policies
func (s *Store) RunRetention(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Risk alerts beyond the most recent AlertRetention per project.
	// Same-timestamp alerts tie-break on insertion order (rowid).
	_, err := s.db.ExecContext(ctx, `
	DELETE FROM risk_alerts WHERE id IN (
		SELECT a.id FROM risk_alerts a
		WHERE (
			SELECT COUNT(*) FROM risk_alerts b
			WHERE b.project_id = a.project_id
			AND (b.created_at > a.created_at OR (b.created_at = a.created_at AND b.rowid > a.rowid))
		) >= ?
	)`, AlertRetention)
	if err != nil {
		return fmt.Errorf("failed to prune risk alerts: %w", err)
	}

	// Orphaned updates (project row deleted with foreign keys off)
	_, err = s.db.ExecContext(ctx,
		"DELETE FROM updates WHERE project_id NOT IN (SELECT id FROM projects)",
	)
	if err != nil {
		return fmt.Errorf("failed to delete orphaned updates: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		"DELETE FROM risk_alerts WHERE project_id NOT IN (SELECT id FROM projects)",
	)
	if err != nil {
		return fmt.Errorf("failed to delete orphaned alerts: %w", err)
	}

	return nil
}
