/*
expenditures.go - Expenditure persistence and the recompute cascade

PURPOSE:
  Every expenditure write (create, update, delete, batch insert) runs in
  one SQL transaction that also re-sums the denormalized totals:
  cost_items.actual_amount and sub_projects.actual_spent. Totals are
  always recomputed with a full SELECT SUM over the surviving rows,
  never adjusted incrementally, so they cannot drift.

CASCADE RULE:
  Each affected cost_item_id and sub_project_id is re-summed exactly
  once per call, even when a batch touches the same target many times
  or an update moves a record between targets.

SEE ALSO:
  - budget/alerts.go, budget/report.go: the aggregate readers below
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/taneng/budget-control/budget"
)

const expenditureColumns = `id, cost_item_id, sub_project_id, category_id, record_date, amount,
	description, voucher_no, source, created_by, created_at`

// ExpenditureFilter narrows ListExpenditures. Nil/zero fields match
// all; Start is inclusive and End exclusive, both on record_date.
type ExpenditureFilter struct {
	SubProjectID *int64
	CostItemID   *int64
	CategoryID   *int64
	Start        *time.Time
	End          *time.Time
	Source       budget.ExpenditureSource
	Page         int
	PageSize     int
}

// ListExpenditures returns one page of matching records ordered by
// record_date descending, plus the unpaged match count.
func (s *Store) ListExpenditures(ctx context.Context, f ExpenditureFilter) ([]budget.Expenditure, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	where, args := expenditureWhere(f)

	var total int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM expenditures`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + expenditureColumns + ` FROM expenditures` + where +
		` ORDER BY record_date DESC, id DESC`
	if f.PageSize > 0 {
		page := f.Page
		if page < 1 {
			page = 1
		}
		query += ` LIMIT ? OFFSET ?`
		args = append(args, f.PageSize, (page-1)*f.PageSize)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []budget.Expenditure
	for rows.Next() {
		e, err := scanExpenditure(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, *e)
	}
	return items, total, rows.Err()
}

// GetExpenditure retrieves an expenditure by ID.
func (s *Store) GetExpenditure(ctx context.Context, id int64) (*budget.Expenditure, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return scanExpenditure(s.db.QueryRowContext(ctx,
		`SELECT `+expenditureColumns+` FROM expenditures WHERE id = ?`, id))
}

// MonthTotal is one month's expenditure sum, keyed YYYY-MM.
type MonthTotal struct {
	Month  string  `json:"month"`
	Amount float64 `json:"amount"`
}

// ExpenditureSummary is the total plus a monthly breakdown.
type ExpenditureSummary struct {
	Total   float64      `json:"total"`
	Monthly []MonthTotal `json:"monthly"`
}

// SummarizeExpenditures returns the filtered total and its monthly
// breakdown in ascending month order.
func (s *Store) SummarizeExpenditures(ctx context.Context, f ExpenditureFilter) (*ExpenditureSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	where, args := expenditureWhere(f)

	summary := &ExpenditureSummary{Monthly: []MonthTotal{}}
	if err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM expenditures`+where, args...).Scan(&summary.Total); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT strftime('%Y-%m', record_date) AS month, SUM(amount)
		FROM expenditures`+where+`
		GROUP BY month ORDER BY month`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var mt MonthTotal
		if err := rows.Scan(&mt.Month, &mt.Amount); err != nil {
			return nil, err
		}
		summary.Monthly = append(summary.Monthly, mt)
	}
	return summary, rows.Err()
}

// CreateExpenditure inserts a record and recomputes the affected
// totals in the same transaction.
func (s *Store) CreateExpenditure(ctx context.Context, e *budget.Expenditure) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := insertExpenditure(ctx, tx, e); err != nil {
			return err
		}
		return recompute(ctx, tx, affected{}.add(e))
	})
}

// BatchInsertExpenditures inserts all records atomically; each affected
// total is recomputed once at the end.
func (s *Store) BatchInsertExpenditures(ctx context.Context, items []*budget.Expenditure) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.inTx(ctx, func(tx *sql.Tx) error {
		targets := affected{}
		for _, e := range items {
			if err := insertExpenditure(ctx, tx, e); err != nil {
				return err
			}
			targets = targets.add(e)
		}
		return recompute(ctx, tx, targets)
	})
}

// UpdateExpenditure rewrites a record; both the old and the new targets
// are re-summed so moving a record between sub-projects stays exact.
func (s *Store) UpdateExpenditure(ctx context.Context, e *budget.Expenditure) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.inTx(ctx, func(tx *sql.Tx) error {
		old, err := scanExpenditure(tx.QueryRowContext(ctx,
			`SELECT `+expenditureColumns+` FROM expenditures WHERE id = ?`, e.ID))
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE expenditures SET cost_item_id = ?, sub_project_id = ?, category_id = ?,
				record_date = ?, amount = ?, description = ?, voucher_no = ?, source = ?
			WHERE id = ?`,
			nullInt64(e.CostItemID), e.SubProjectID, nullInt64(e.CategoryID),
			e.RecordDate.Format(dateLayout), e.Amount, e.Description, e.VoucherNo, e.Source, e.ID,
		)
		if err != nil {
			return fmt.Errorf("failed to update expenditure: %w", err)
		}
		return recompute(ctx, tx, affected{}.add(old).add(e))
	})
}

// DeleteExpenditure removes a record and re-sums its targets.
func (s *Store) DeleteExpenditure(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.inTx(ctx, func(tx *sql.Tx) error {
		old, err := scanExpenditure(tx.QueryRowContext(ctx,
			`SELECT `+expenditureColumns+` FROM expenditures WHERE id = ?`, id))
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM expenditures WHERE id = ?`, id); err != nil {
			return fmt.Errorf("failed to delete expenditure: %w", err)
		}
		return recompute(ctx, tx, affected{}.add(old))
	})
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func insertExpenditure(ctx context.Context, tx *sql.Tx, e *budget.Expenditure) error {
	if e.Source == "" {
		e.Source = budget.SourceManual
	}
	res, err := tx.ExecContext(ctx, `
		INSERT INTO expenditures (cost_item_id, sub_project_id, category_id, record_date, amount,
			description, voucher_no, source, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		nullInt64(e.CostItemID), e.SubProjectID, nullInt64(e.CategoryID),
		e.RecordDate.Format(dateLayout), e.Amount, e.Description, e.VoucherNo,
		e.Source, e.CreatedBy, nowStamp(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert expenditure: %w", err)
	}
	e.ID, _ = res.LastInsertId()
	return nil
}

// affected collects the cost item and sub-project ids a write touched.
type affected struct {
	costItems   map[int64]struct{}
	subProjects map[int64]struct{}
}

func (a affected) add(e *budget.Expenditure) affected {
	if a.costItems == nil {
		a.costItems = map[int64]struct{}{}
		a.subProjects = map[int64]struct{}{}
	}
	if e.CostItemID != nil {
		a.costItems[*e.CostItemID] = struct{}{}
	}
	a.subProjects[e.SubProjectID] = struct{}{}
	return a
}

// recompute re-sums each affected target once, inside the caller's
// transaction.
func recompute(ctx context.Context, tx *sql.Tx, targets affected) error {
	for id := range targets.costItems {
		_, err := tx.ExecContext(ctx, `
			UPDATE cost_items SET actual_amount =
				(SELECT COALESCE(SUM(amount), 0) FROM expenditures WHERE cost_item_id = ?)
			WHERE id = ?`, id, id)
		if err != nil {
			return fmt.Errorf("failed to recompute cost item %d: %w", id, err)
		}
	}
	for id := range targets.subProjects {
		_, err := tx.ExecContext(ctx, `
			UPDATE sub_projects SET actual_spent =
				(SELECT COALESCE(SUM(amount), 0) FROM expenditures WHERE sub_project_id = ?),
				updated_at = ?
			WHERE id = ?`, id, nowStamp(), id)
		if err != nil {
			return fmt.Errorf("failed to recompute sub-project %d: %w", id, err)
		}
	}
	return nil
}

func expenditureWhere(f ExpenditureFilter) (string, []any) {
	where := ` WHERE 1=1`
	var args []any
	if f.SubProjectID != nil {
		where += ` AND sub_project_id = ?`
		args = append(args, *f.SubProjectID)
	}
	if f.CostItemID != nil {
		where += ` AND cost_item_id = ?`
		args = append(args, *f.CostItemID)
	}
	if f.CategoryID != nil {
		where += ` AND category_id = ?`
		args = append(args, *f.CategoryID)
	}
	if f.Start != nil {
		where += ` AND record_date >= ?`
		args = append(args, f.Start.Format(dateLayout))
	}
	if f.End != nil {
		where += ` AND record_date < ?`
		args = append(args, f.End.Format(dateLayout))
	}
	if f.Source != "" {
		where += ` AND source = ?`
		args = append(args, f.Source)
	}
	return where, args
}

func scanExpenditure(row rowScanner) (*budget.Expenditure, error) {
	var (
		e                      budget.Expenditure
		costItemID, categoryID sql.NullInt64
		recordDate, createdAt  string
	)
	err := row.Scan(&e.ID, &costItemID, &e.SubProjectID, &categoryID, &recordDate,
		&e.Amount, &e.Description, &e.VoucherNo, &e.Source, &e.CreatedBy, &createdAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("expenditure: %w", budget.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan expenditure: %w", err)
	}
	e.CostItemID = int64Ptr(costItemID)
	e.CategoryID = int64Ptr(categoryID)
	if d := parseDate(sql.NullString{String: recordDate, Valid: true}); d != nil {
		e.RecordDate = *d
	}
	e.CreatedAt = parseTime(createdAt)
	return &e, nil
}

// =============================================================================
// AGGREGATES FOR THE ALERT AND REPORT ENGINES
// =============================================================================

// TotalExpenditure returns the all-time expenditure sum.
func (s *Store) TotalExpenditure(ctx context.Context) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var total float64
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM expenditures`).Scan(&total)
	return total, err
}

// FirstExpenditureDate returns the earliest record_date, nil when the
// table is empty.
func (s *Store) FirstExpenditureDate(ctx context.Context) (*time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var d sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT MIN(record_date) FROM expenditures`).Scan(&d)
	if err != nil {
		return nil, err
	}
	return parseDate(d), nil
}

// SumExpenditures implements budget.ReportStore.
func (s *Store) SumExpenditures(ctx context.Context, f budget.ExpenditureSumFilter) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	where, args := expenditureWhere(ExpenditureFilter{
		SubProjectID: f.SubProjectID,
		CategoryID:   f.CategoryID,
		Start:        f.From,
		End:          f.To,
	})
	var total float64
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM expenditures`+where, args...).Scan(&total)
	return total, err
}
