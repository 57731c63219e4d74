package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/taneng/budget-control/budget"
)

// =============================================================================
// PROJECTS
// =============================================================================

const projectColumns = `id, name, description, total_budget, reserve_rate, start_date, end_date, status, created_at, updated_at`

// CreateProject inserts a project and fills in its ID.
func (s *Store) CreateProject(ctx context.Context, p *budget.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.Status == "" {
		p.Status = budget.ProjectPlanning
	}
	now := nowStamp()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO projects (name, description, total_budget, reserve_rate, start_date, end_date, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.Name, p.Description, p.TotalBudget, p.ReserveRate,
		fmtDate(p.StartDate), fmtDate(p.EndDate), p.Status, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to insert project: %w", err)
	}
	p.ID, _ = res.LastInsertId()
	return nil
}

// GetProject retrieves a project by ID.
func (s *Store) GetProject(ctx context.Context, id int64) (*budget.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return scanProject(s.db.QueryRowContext(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE id = ?`, id))
}

// FirstProject returns the lowest-id project, or nil when none exists.
// The system tracks a single capital project; alerts and reports hang
// off this row.
func (s *Store) FirstProject(ctx context.Context) (*budget.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, err := scanProject(s.db.QueryRowContext(ctx,
		`SELECT `+projectColumns+` FROM projects ORDER BY id LIMIT 1`))
	if err == budget.ErrNotFound {
		return nil, nil
	}
	return p, err
}

// ListProjects returns all projects ordered by id.
func (s *Store) ListProjects(ctx context.Context) ([]budget.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+projectColumns+` FROM projects ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var projects []budget.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, *p)
	}
	return projects, rows.Err()
}

// UpdateProject updates a project's mutable fields.
func (s *Store) UpdateProject(ctx context.Context, p *budget.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE projects SET name = ?, description = ?, total_budget = ?, reserve_rate = ?,
			start_date = ?, end_date = ?, status = ?, updated_at = ?
		WHERE id = ?`,
		p.Name, p.Description, p.TotalBudget, p.ReserveRate,
		fmtDate(p.StartDate), fmtDate(p.EndDate), p.Status, nowStamp(), p.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update project: %w", err)
	}
	return requireRow(res, "project")
}

func scanProject(row rowScanner) (*budget.Project, error) {
	var (
		p                    budget.Project
		startDate, endDate   sql.NullString
		createdAt, updatedAt string
	)
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.TotalBudget, &p.ReserveRate,
		&startDate, &endDate, &p.Status, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, budget.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan project: %w", err)
	}
	p.StartDate = parseDate(startDate)
	p.EndDate = parseDate(endDate)
	p.CreatedAt = parseTime(createdAt)
	p.UpdatedAt = parseTime(updatedAt)
	return &p, nil
}

// =============================================================================
// SUB-PROJECTS
// =============================================================================

const subProjectColumns = `id, project_id, name, description, category, allocated_budget, actual_spent,
	progress_percent, status, planned_start, planned_end, actual_start, actual_end,
	responsible_dept, sort_order, created_at, updated_at`

// SubProjectFilter narrows ListSubProjectsFiltered; zero values match all.
type SubProjectFilter struct {
	ProjectID int64
	Category  string
	Status    budget.SubProjectStatus
}

// CreateSubProject inserts a sub-project and fills in its ID.
func (s *Store) CreateSubProject(ctx context.Context, sp *budget.SubProject) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sp.Status == "" {
		sp.Status = budget.SubProjectNotStarted
	}
	now := nowStamp()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO sub_projects (project_id, name, description, category, allocated_budget, actual_spent,
			progress_percent, status, planned_start, planned_end, actual_start, actual_end,
			responsible_dept, sort_order, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sp.ProjectID, sp.Name, sp.Description, sp.Category, sp.AllocatedBudget, sp.ActualSpent,
		sp.ProgressPercent, sp.Status, fmtDate(sp.PlannedStart), fmtDate(sp.PlannedEnd),
		fmtDate(sp.ActualStart), fmtDate(sp.ActualEnd), sp.ResponsibleDept, sp.SortOrder, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to insert sub-project: %w", err)
	}
	sp.ID, _ = res.LastInsertId()
	return nil
}

// GetSubProject retrieves a sub-project by ID.
func (s *Store) GetSubProject(ctx context.Context, id int64) (*budget.SubProject, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return scanSubProject(s.db.QueryRowContext(ctx,
		`SELECT `+subProjectColumns+` FROM sub_projects WHERE id = ?`, id))
}

// ListSubProjects returns every sub-project in display order. This is
// the budget.AlertStore / budget.ReportStore view.
func (s *Store) ListSubProjects(ctx context.Context) ([]budget.SubProject, error) {
	return s.ListSubProjectsFiltered(ctx, SubProjectFilter{})
}

// ListSubProjectsFiltered returns sub-projects matching the filter,
// ordered by sort_order then id.
func (s *Store) ListSubProjectsFiltered(ctx context.Context, f SubProjectFilter) ([]budget.SubProject, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT ` + subProjectColumns + ` FROM sub_projects WHERE 1=1`
	var args []any
	if f.ProjectID != 0 {
		query += ` AND project_id = ?`
		args = append(args, f.ProjectID)
	}
	if f.Category != "" {
		query += ` AND category = ?`
		args = append(args, f.Category)
	}
	if f.Status != "" {
		query += ` AND status = ?`
		args = append(args, f.Status)
	}
	query += ` ORDER BY sort_order, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subProjects []budget.SubProject
	for rows.Next() {
		sp, err := scanSubProject(rows)
		if err != nil {
			return nil, err
		}
		subProjects = append(subProjects, *sp)
	}
	return subProjects, rows.Err()
}

// UpdateSubProject updates a sub-project. ActualSpent is deliberately
// not written here; only the expenditure cascade maintains it.
func (s *Store) UpdateSubProject(ctx context.Context, sp *budget.SubProject) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE sub_projects SET name = ?, description = ?, category = ?, allocated_budget = ?,
			progress_percent = ?, status = ?, planned_start = ?, planned_end = ?,
			actual_start = ?, actual_end = ?, responsible_dept = ?, sort_order = ?, updated_at = ?
		WHERE id = ?`,
		sp.Name, sp.Description, sp.Category, sp.AllocatedBudget,
		sp.ProgressPercent, sp.Status, fmtDate(sp.PlannedStart), fmtDate(sp.PlannedEnd),
		fmtDate(sp.ActualStart), fmtDate(sp.ActualEnd), sp.ResponsibleDept, sp.SortOrder,
		nowStamp(), sp.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update sub-project: %w", err)
	}
	return requireRow(res, "sub-project")
}

// DeleteSubProject removes a sub-project; cost items, expenditures,
// milestones and progress records go with it via FK cascade.
func (s *Store) DeleteSubProject(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM sub_projects WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete sub-project: %w", err)
	}
	return requireRow(res, "sub-project")
}

func scanSubProject(row rowScanner) (*budget.SubProject, error) {
	var (
		sp                                             budget.SubProject
		plannedStart, plannedEnd, actualStart, actualEnd sql.NullString
		createdAt, updatedAt                           string
	)
	err := row.Scan(&sp.ID, &sp.ProjectID, &sp.Name, &sp.Description, &sp.Category,
		&sp.AllocatedBudget, &sp.ActualSpent, &sp.ProgressPercent, &sp.Status,
		&plannedStart, &plannedEnd, &actualStart, &actualEnd,
		&sp.ResponsibleDept, &sp.SortOrder, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, budget.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan sub-project: %w", err)
	}
	sp.PlannedStart = parseDate(plannedStart)
	sp.PlannedEnd = parseDate(plannedEnd)
	sp.ActualStart = parseDate(actualStart)
	sp.ActualEnd = parseDate(actualEnd)
	sp.CreatedAt = parseTime(createdAt)
	sp.UpdatedAt = parseTime(updatedAt)
	return &sp, nil
}

// =============================================================================
// MILESTONES
// =============================================================================

// ListMilestones returns a sub-project's milestone nodes in order.
func (s *Store) ListMilestones(ctx context.Context, subProjectID int64) ([]budget.MilestoneNode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sub_project_id, name, description, planned_date, actual_date, status, sort_order
		FROM milestone_nodes WHERE sub_project_id = ? ORDER BY sort_order, id`,
		subProjectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var milestones []budget.MilestoneNode
	for rows.Next() {
		var (
			m                       budget.MilestoneNode
			plannedDate, actualDate sql.NullString
		)
		if err := rows.Scan(&m.ID, &m.SubProjectID, &m.Name, &m.Description,
			&plannedDate, &actualDate, &m.Status, &m.SortOrder); err != nil {
			return nil, err
		}
		m.PlannedDate = parseDate(plannedDate)
		m.ActualDate = parseDate(actualDate)
		milestones = append(milestones, m)
	}
	return milestones, rows.Err()
}

// CreateMilestone inserts a milestone node and fills in its ID.
func (s *Store) CreateMilestone(ctx context.Context, m *budget.MilestoneNode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if m.Status == "" {
		m.Status = budget.MilestonePending
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO milestone_nodes (sub_project_id, name, description, planned_date, actual_date, status, sort_order)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.SubProjectID, m.Name, m.Description, fmtDate(m.PlannedDate), fmtDate(m.ActualDate),
		m.Status, m.SortOrder,
	)
	if err != nil {
		return fmt.Errorf("failed to insert milestone: %w", err)
	}
	m.ID, _ = res.LastInsertId()
	return nil
}

// UpdateMilestone updates a milestone node.
func (s *Store) UpdateMilestone(ctx context.Context, m *budget.MilestoneNode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE milestone_nodes SET name = ?, description = ?, planned_date = ?, actual_date = ?,
			status = ?, sort_order = ?
		WHERE id = ?`,
		m.Name, m.Description, fmtDate(m.PlannedDate), fmtDate(m.ActualDate),
		m.Status, m.SortOrder, m.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update milestone: %w", err)
	}
	return requireRow(res, "milestone")
}

// =============================================================================
// PROGRESS RECORDS
// =============================================================================

// ListProgressRecords returns a sub-project's progress history, newest
// first.
func (s *Store) ListProgressRecords(ctx context.Context, subProjectID int64) ([]budget.ProgressRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sub_project_id, record_date, percent, milestone, note, created_by, created_at
		FROM progress_records WHERE sub_project_id = ? ORDER BY record_date DESC, id DESC`,
		subProjectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []budget.ProgressRecord
	for rows.Next() {
		var (
			r                     budget.ProgressRecord
			recordDate, createdAt string
		)
		if err := rows.Scan(&r.ID, &r.SubProjectID, &recordDate, &r.Percent,
			&r.Milestone, &r.Note, &r.CreatedBy, &createdAt); err != nil {
			return nil, err
		}
		if d := parseDate(sql.NullString{String: recordDate, Valid: true}); d != nil {
			r.RecordDate = *d
		}
		r.CreatedAt = parseTime(createdAt)
		records = append(records, r)
	}
	return records, rows.Err()
}

// CreateProgressRecord inserts a progress record and, in the same
// transaction, moves the sub-project's progress_percent to the reported
// value. Status flips not_started -> in_progress on the first report
// and to completed at 100 percent.
func (s *Store) CreateProgressRecord(ctx context.Context, r *budget.ProgressRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var status budget.SubProjectStatus
	err = tx.QueryRowContext(ctx,
		`SELECT status FROM sub_projects WHERE id = ?`, r.SubProjectID).Scan(&status)
	if err == sql.ErrNoRows {
		return fmt.Errorf("sub-project: %w", budget.ErrNotFound)
	}
	if err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO progress_records (sub_project_id, record_date, percent, milestone, note, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.SubProjectID, r.RecordDate.Format(dateLayout), r.Percent, r.Milestone, r.Note,
		r.CreatedBy, nowStamp(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert progress record: %w", err)
	}
	r.ID, _ = res.LastInsertId()

	switch {
	case r.Percent >= 100:
		status = budget.SubProjectCompleted
	case status == budget.SubProjectNotStarted && r.Percent > 0:
		status = budget.SubProjectInProgress
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE sub_projects SET progress_percent = ?, status = ?, updated_at = ? WHERE id = ?`,
		r.Percent, status, nowStamp(), r.SubProjectID,
	)
	if err != nil {
		return fmt.Errorf("failed to update sub-project progress: %w", err)
	}

	return tx.Commit()
}
