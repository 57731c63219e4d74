package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/taneng/budget-control/budget"
)

// =============================================================================
// ALERT LOGS
// =============================================================================

const alertColumns = `id, alert_type, level, title, message, related_type, related_id, related_name,
	is_read, is_resolved, created_at, resolved_at`

// AlertFilter narrows ListAlerts; nil/zero fields match all.
type AlertFilter struct {
	Level      budget.AlertLevel
	IsResolved *bool
	Limit      int
}

// ListAlerts returns matching alerts, newest first. Limit defaults
// to 50.
func (s *Store) ListAlerts(ctx context.Context, f AlertFilter) ([]budget.AlertLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT ` + alertColumns + ` FROM alert_logs WHERE 1=1`
	var args []any
	if f.Level != "" {
		query += ` AND level = ?`
		args = append(args, f.Level)
	}
	if f.IsResolved != nil {
		query += ` AND is_resolved = ?`
		args = append(args, *f.IsResolved)
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	return s.queryAlerts(ctx, query, args...)
}

// FindUnresolvedAlert implements the dedup lookup of budget.AlertStore:
// the most recent unresolved row for one alert subject, nil when none.
func (s *Store) FindUnresolvedAlert(ctx context.Context, alertType budget.AlertType, relatedType budget.RelatedKind, relatedID int64) (*budget.AlertLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, err := scanAlert(s.db.QueryRowContext(ctx, `
		SELECT `+alertColumns+` FROM alert_logs
		WHERE alert_type = ? AND related_type = ? AND related_id = ? AND is_resolved = FALSE
		ORDER BY created_at DESC, id DESC LIMIT 1`,
		alertType, relatedType, relatedID))
	if budget.IsNotFound(err) {
		return nil, nil
	}
	return a, err
}

// InsertAlert inserts an alert row and fills in ID and CreatedAt.
func (s *Store) InsertAlert(ctx context.Context, a *budget.AlertLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := nowStamp()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO alert_logs (alert_type, level, title, message, related_type, related_id,
			related_name, is_read, is_resolved, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.AlertType, a.Level, a.Title, a.Message, a.RelatedType, a.RelatedID,
		a.RelatedName, a.IsRead, a.IsResolved, now,
	)
	if err != nil {
		return fmt.Errorf("failed to insert alert: %w", err)
	}
	a.ID, _ = res.LastInsertId()
	a.CreatedAt = parseTime(now)
	return nil
}

// UpdateAlert rewrites an alert's level and message (the dedup path).
func (s *Store) UpdateAlert(ctx context.Context, a *budget.AlertLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE alert_logs SET level = ?, message = ? WHERE id = ?`,
		a.Level, a.Message, a.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update alert: %w", err)
	}
	return requireRow(res, "alert")
}

// MarkAlertRead flags an alert as read.
func (s *Store) MarkAlertRead(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE alert_logs SET is_read = TRUE WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to mark alert read: %w", err)
	}
	return requireRow(res, "alert")
}

// ResolveAlert marks an alert resolved and stamps resolved_at.
func (s *Store) ResolveAlert(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE alert_logs SET is_resolved = TRUE, resolved_at = ? WHERE id = ?`,
		nowStamp(), id)
	if err != nil {
		return fmt.Errorf("failed to resolve alert: %w", err)
	}
	return requireRow(res, "alert")
}

// AlertStats is the dashboard counter block.
type AlertStats struct {
	Total      int `json:"total"`
	Unresolved int `json:"unresolved"`
	Red        int `json:"red"`
	Yellow     int `json:"yellow"`
}

// GetAlertStats counts alerts overall and unresolved per level.
func (s *Store) GetAlertStats(ctx context.Context) (*AlertStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var stats AlertStats
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN is_resolved = FALSE THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN is_resolved = FALSE AND level = 'red' THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN is_resolved = FALSE AND level = 'yellow' THEN 1 ELSE 0 END), 0)
		FROM alert_logs`).Scan(&stats.Total, &stats.Unresolved, &stats.Red, &stats.Yellow)
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

// CountAlertsBetween implements budget.ReportStore over the half-open
// window [from, to).
func (s *Store) CountAlertsBetween(ctx context.Context, from, to time.Time) (budget.AlertCounts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var c budget.AlertCounts
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN level = 'red' THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN level = 'yellow' THEN 1 ELSE 0 END), 0)
		FROM alert_logs WHERE created_at >= ? AND created_at < ?`,
		from.UTC().Format(time.RFC3339), to.UTC().Format(time.RFC3339),
	).Scan(&c.Total, &c.Red, &c.Yellow)
	return c, err
}

func (s *Store) queryAlerts(ctx context.Context, query string, args ...any) ([]budget.AlertLog, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var alerts []budget.AlertLog
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, *a)
	}
	return alerts, rows.Err()
}

func scanAlert(row rowScanner) (*budget.AlertLog, error) {
	var (
		a          budget.AlertLog
		createdAt  string
		resolvedAt sql.NullString
	)
	err := row.Scan(&a.ID, &a.AlertType, &a.Level, &a.Title, &a.Message,
		&a.RelatedType, &a.RelatedID, &a.RelatedName, &a.IsRead, &a.IsResolved,
		&createdAt, &resolvedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("alert: %w", budget.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan alert: %w", err)
	}
	a.CreatedAt = parseTime(createdAt)
	if resolvedAt.Valid {
		t := parseTime(resolvedAt.String)
		a.ResolvedAt = &t
	}
	return &a, nil
}
