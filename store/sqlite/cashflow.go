package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/taneng/budget-control/budget"
)

// =============================================================================
// CASH FLOWS
// =============================================================================

const cashFlowColumns = `id, project_id, flow_type, category, amount, record_date, payee,
	payment_method, description, voucher_no, related_sub_project_id, status,
	approved_by, created_by, created_at`

// CashFlowFilter narrows ListCashFlows; zero fields match all.
type CashFlowFilter struct {
	FlowType budget.FlowType
	Status   budget.CashFlowStatus
	Start    *time.Time
	End      *time.Time
}

// ListCashFlows returns matching records, newest first.
func (s *Store) ListCashFlows(ctx context.Context, f CashFlowFilter) ([]budget.CashFlow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT ` + cashFlowColumns + ` FROM cash_flows WHERE 1=1`
	var args []any
	if f.FlowType != "" {
		query += ` AND flow_type = ?`
		args = append(args, f.FlowType)
	}
	if f.Status != "" {
		query += ` AND status = ?`
		args = append(args, f.Status)
	}
	if f.Start != nil {
		query += ` AND record_date >= ?`
		args = append(args, f.Start.Format(dateLayout))
	}
	if f.End != nil {
		query += ` AND record_date < ?`
		args = append(args, f.End.Format(dateLayout))
	}
	query += ` ORDER BY record_date DESC, id DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var flows []budget.CashFlow
	for rows.Next() {
		cf, err := scanCashFlow(rows)
		if err != nil {
			return nil, err
		}
		flows = append(flows, *cf)
	}
	return flows, rows.Err()
}

// GetCashFlow retrieves a record by ID.
func (s *Store) GetCashFlow(ctx context.Context, id int64) (*budget.CashFlow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return scanCashFlow(s.db.QueryRowContext(ctx,
		`SELECT `+cashFlowColumns+` FROM cash_flows WHERE id = ?`, id))
}

// CreateCashFlow inserts a record and fills in its ID.
func (s *Store) CreateCashFlow(ctx context.Context, cf *budget.CashFlow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cf.Status == "" {
		cf.Status = budget.CashFlowPending
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO cash_flows (project_id, flow_type, category, amount, record_date, payee,
			payment_method, description, voucher_no, related_sub_project_id, status,
			approved_by, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		cf.ProjectID, cf.FlowType, cf.Category, cf.Amount, cf.RecordDate.Format(dateLayout),
		cf.Payee, cf.PaymentMethod, cf.Description, cf.VoucherNo,
		nullInt64(cf.RelatedSubProjectID), cf.Status, nullInt64(cf.ApprovedBy),
		cf.CreatedBy, nowStamp(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert cash flow: %w", err)
	}
	cf.ID, _ = res.LastInsertId()
	return nil
}

// UpdateCashFlow rewrites a record's mutable fields.
func (s *Store) UpdateCashFlow(ctx context.Context, cf *budget.CashFlow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE cash_flows SET flow_type = ?, category = ?, amount = ?, record_date = ?,
			payee = ?, payment_method = ?, description = ?, voucher_no = ?,
			related_sub_project_id = ?, status = ?
		WHERE id = ?`,
		cf.FlowType, cf.Category, cf.Amount, cf.RecordDate.Format(dateLayout),
		cf.Payee, cf.PaymentMethod, cf.Description, cf.VoucherNo,
		nullInt64(cf.RelatedSubProjectID), cf.Status, cf.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update cash flow: %w", err)
	}
	return requireRow(res, "cash flow")
}

// DeleteCashFlow removes a record.
func (s *Store) DeleteCashFlow(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM cash_flows WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete cash flow: %w", err)
	}
	return requireRow(res, "cash flow")
}

// ApproveCashFlow moves a record to approved and records the approver.
func (s *Store) ApproveCashFlow(ctx context.Context, id, approvedBy int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE cash_flows SET status = ?, approved_by = ? WHERE id = ?`,
		budget.CashFlowApproved, approvedBy, id)
	if err != nil {
		return fmt.Errorf("failed to approve cash flow: %w", err)
	}
	return requireRow(res, "cash flow")
}

// CashMonth is one month's inflow/outflow pair, keyed YYYY-MM.
type CashMonth struct {
	Month   string  `json:"month"`
	Inflow  float64 `json:"inflow"`
	Outflow float64 `json:"outflow"`
}

// CashFlowSummary excludes cancelled records.
type CashFlowSummary struct {
	TotalInflow  float64     `json:"total_inflow"`
	TotalOutflow float64     `json:"total_outflow"`
	NetFlow      float64     `json:"net_flow"`
	Monthly      []CashMonth `json:"monthly"`
}

// SummarizeCashFlows totals inflow/outflow and a monthly breakdown,
// skipping cancelled records.
func (s *Store) SummarizeCashFlows(ctx context.Context) (*CashFlowSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summary := &CashFlowSummary{Monthly: []CashMonth{}}
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(CASE WHEN flow_type = 'inflow' THEN amount ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN flow_type = 'outflow' THEN amount ELSE 0 END), 0)
		FROM cash_flows WHERE status != 'cancelled'`).
		Scan(&summary.TotalInflow, &summary.TotalOutflow)
	if err != nil {
		return nil, err
	}
	summary.NetFlow = summary.TotalInflow - summary.TotalOutflow

	rows, err := s.db.QueryContext(ctx, `
		SELECT strftime('%Y-%m', record_date) AS month,
		       COALESCE(SUM(CASE WHEN flow_type = 'inflow' THEN amount ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN flow_type = 'outflow' THEN amount ELSE 0 END), 0)
		FROM cash_flows WHERE status != 'cancelled'
		GROUP BY month ORDER BY month`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var cm CashMonth
		if err := rows.Scan(&cm.Month, &cm.Inflow, &cm.Outflow); err != nil {
			return nil, err
		}
		summary.Monthly = append(summary.Monthly, cm)
	}
	return summary, rows.Err()
}

func scanCashFlow(row rowScanner) (*budget.CashFlow, error) {
	var (
		cf                    budget.CashFlow
		relatedSP, approvedBy sql.NullInt64
		recordDate, createdAt string
	)
	err := row.Scan(&cf.ID, &cf.ProjectID, &cf.FlowType, &cf.Category, &cf.Amount,
		&recordDate, &cf.Payee, &cf.PaymentMethod, &cf.Description, &cf.VoucherNo,
		&relatedSP, &cf.Status, &approvedBy, &cf.CreatedBy, &createdAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("cash flow: %w", budget.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan cash flow: %w", err)
	}
	cf.RelatedSubProjectID = int64Ptr(relatedSP)
	cf.ApprovedBy = int64Ptr(approvedBy)
	if d := parseDate(sql.NullString{String: recordDate, Valid: true}); d != nil {
		cf.RecordDate = *d
	}
	cf.CreatedAt = parseTime(createdAt)
	return &cf, nil
}
