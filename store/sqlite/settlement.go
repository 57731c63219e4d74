/*
settlement.go - Append-only settlement reference data

PURPOSE:
  Read and seed paths for the three settlement datasets served by the
  /api/settlement endpoints: civil construction settlements (土建决算),
  group-external procurement (somoni-denominated monthly totals plus
  per-material detail rows), and warehouse outbound records.
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/taneng/budget-control/budget"
)

// =============================================================================
// CIVIL SETTLEMENTS
// =============================================================================

// CivilSettlementRow joins a settlement line with its sub-project, when
// linked.
type CivilSettlementRow struct {
	budget.CivilSettlement
	SubProjectName  string
	AllocatedBudget float64
}

// ListCivilSettlements returns all lines in sheet order.
func (s *Store) ListCivilSettlements(ctx context.Context) ([]CivilSettlementRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT cs.id, cs.seq, cs.project_name, cs.audit_amount, cs.settlement_amount,
			cs.payment_plan, cs.somoni_amount, cs.somoni_40_percent, cs.feb_plan_somoni,
			cs.debt_somoni, cs.contractor, cs.sub_project_id, cs.note,
			COALESCE(sp.name, ''), COALESCE(sp.allocated_budget, 0)
		FROM civil_settlements cs
		LEFT JOIN sub_projects sp ON sp.id = cs.sub_project_id
		ORDER BY cs.seq, cs.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CivilSettlementRow
	for rows.Next() {
		var (
			r            CivilSettlementRow
			subProjectID sql.NullInt64
		)
		if err := rows.Scan(&r.ID, &r.Seq, &r.ProjectName, &r.AuditAmount, &r.SettlementAmount,
			&r.PaymentPlan, &r.SomoniAmount, &r.Somoni40Percent, &r.FebPlanSomoni,
			&r.DebtSomoni, &r.Contractor, &subProjectID, &r.Note,
			&r.SubProjectName, &r.AllocatedBudget); err != nil {
			return nil, err
		}
		r.SubProjectID = int64Ptr(subProjectID)
		out = append(out, r)
	}
	return out, rows.Err()
}

// InsertCivilSettlement appends a settlement line (seed path).
func (s *Store) InsertCivilSettlement(ctx context.Context, cs *budget.CivilSettlement) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO civil_settlements (seq, project_name, audit_amount, settlement_amount,
			payment_plan, somoni_amount, somoni_40_percent, feb_plan_somoni, debt_somoni,
			contractor, sub_project_id, note)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		cs.Seq, cs.ProjectName, cs.AuditAmount, cs.SettlementAmount,
		cs.PaymentPlan, cs.SomoniAmount, cs.Somoni40Percent, cs.FebPlanSomoni,
		cs.DebtSomoni, cs.Contractor, nullInt64(cs.SubProjectID), cs.Note,
	)
	if err != nil {
		return fmt.Errorf("failed to insert civil settlement: %w", err)
	}
	cs.ID, _ = res.LastInsertId()
	return nil
}

// CivilSettlementTotals backs the settlement overview card.
type CivilSettlementTotals struct {
	TotalSettlement float64 `json:"total_settlement"`
	Count           int     `json:"count"`
}

func (s *Store) CivilSettlementTotals(ctx context.Context) (*CivilSettlementTotals, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var t CivilSettlementTotals
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(settlement_amount), 0), COUNT(*) FROM civil_settlements`).
		Scan(&t.TotalSettlement, &t.Count)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// =============================================================================
// PROCUREMENT
// =============================================================================

// UpsertProcurementSummary writes one month's somoni total.
func (s *Store) UpsertProcurementSummary(ctx context.Context, month int, amountSomoni float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO procurement_monthly_summaries (month, amount_somoni)
		VALUES (?, ?)
		ON CONFLICT(month) DO UPDATE SET amount_somoni = excluded.amount_somoni`,
		month, amountSomoni)
	if err != nil {
		return fmt.Errorf("failed to upsert procurement summary: %w", err)
	}
	return nil
}

// ListProcurementSummaries returns the 12 monthly totals in month order.
func (s *Store) ListProcurementSummaries(ctx context.Context) ([]budget.ProcurementMonthlySummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, month, amount_somoni FROM procurement_monthly_summaries ORDER BY month`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []budget.ProcurementMonthlySummary
	for rows.Next() {
		var m budget.ProcurementMonthlySummary
		if err := rows.Scan(&m.ID, &m.Month, &m.AmountSomoni); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// CountProcurementSummaries is the seeder's idempotence check.
func (s *Store) CountProcurementSummaries(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM procurement_monthly_summaries`).Scan(&count)
	return count, err
}

// InsertProcurementRecords appends detail rows atomically (seed path).
func (s *Store) InsertProcurementRecords(ctx context.Context, records []budget.ProcurementRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.inTx(ctx, func(tx *sql.Tx) error {
		for i := range records {
			r := &records[i]
			res, err := tx.ExecContext(ctx, `
				INSERT INTO procurement_records (month, seq, material_name, specification, unit,
					plan_price, plan_quantity, purchase_unit_price_somoni, purchase_method,
					payment_method, purchase_quantity, purchase_amount_somoni, stock_quantity,
					unit_price_rmb, amount_rmb, usage_unit, project_name)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				r.Month, r.Seq, r.MaterialName, r.Specification, r.Unit,
				r.PlanPrice, r.PlanQuantity, r.PurchaseUnitPriceSomoni, r.PurchaseMethod,
				r.PaymentMethod, r.PurchaseQuantity, r.PurchaseAmountSomoni, r.StockQuantity,
				r.UnitPriceRMB, r.AmountRMB, r.UsageUnit, r.ProjectName,
			)
			if err != nil {
				return fmt.Errorf("failed to insert procurement record: %w", err)
			}
			r.ID, _ = res.LastInsertId()
		}
		return nil
	})
}

// ProcurementRecordFilter narrows procurement detail queries. Name
// filters are substring matches.
type ProcurementRecordFilter struct {
	Month        *int
	ProjectName  string
	MaterialName string
	Page         int
	PageSize     int
}

// ListProcurementRecords returns one page ordered by month then sheet
// sequence. PageSize is capped at 500.
func (s *Store) ListProcurementRecords(ctx context.Context, f ProcurementRecordFilter) ([]budget.ProcurementRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	where, args := procurementWhere(f)
	query := `
		SELECT id, month, seq, material_name, specification, unit, plan_price, plan_quantity,
			purchase_unit_price_somoni, purchase_method, payment_method, purchase_quantity,
			purchase_amount_somoni, stock_quantity, unit_price_rmb, amount_rmb, usage_unit, project_name
		FROM procurement_records` + where + ` ORDER BY month, seq, id`

	pageSize := f.PageSize
	if pageSize <= 0 || pageSize > 500 {
		pageSize = 500
	}
	page := f.Page
	if page < 1 {
		page = 1
	}
	query += ` LIMIT ? OFFSET ?`
	args = append(args, pageSize, (page-1)*pageSize)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []budget.ProcurementRecord
	for rows.Next() {
		var r budget.ProcurementRecord
		if err := rows.Scan(&r.ID, &r.Month, &r.Seq, &r.MaterialName, &r.Specification, &r.Unit,
			&r.PlanPrice, &r.PlanQuantity, &r.PurchaseUnitPriceSomoni, &r.PurchaseMethod,
			&r.PaymentMethod, &r.PurchaseQuantity, &r.PurchaseAmountSomoni, &r.StockQuantity,
			&r.UnitPriceRMB, &r.AmountRMB, &r.UsageUnit, &r.ProjectName); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// CountProcurementRecords counts detail rows matching the filter.
func (s *Store) CountProcurementRecords(ctx context.Context, f ProcurementRecordFilter) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	where, args := procurementWhere(f)
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM procurement_records`+where, args...).Scan(&count)
	return count, err
}

// ProcurementStats aggregates the filtered detail rows.
type ProcurementStats struct {
	RecordCount       int     `json:"record_count"`
	TotalAmountSomoni float64 `json:"total_amount_somoni"`
	TotalAmountRMB    float64 `json:"total_amount_rmb"`
	TotalQuantity     float64 `json:"total_quantity"`
}

func (s *Store) ProcurementRecordStats(ctx context.Context, f ProcurementRecordFilter) (*ProcurementStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	where, args := procurementWhere(f)
	var st ProcurementStats
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(purchase_amount_somoni), 0),
		       COALESCE(SUM(amount_rmb), 0), COALESCE(SUM(purchase_quantity), 0)
		FROM procurement_records`+where, args...).
		Scan(&st.RecordCount, &st.TotalAmountSomoni, &st.TotalAmountRMB, &st.TotalQuantity)
	if err != nil {
		return nil, err
	}
	return &st, nil
}

func procurementWhere(f ProcurementRecordFilter) (string, []any) {
	where := ` WHERE 1=1`
	var args []any
	if f.Month != nil {
		where += ` AND month = ?`
		args = append(args, *f.Month)
	}
	if f.ProjectName != "" {
		where += ` AND project_name LIKE ?`
		args = append(args, "%"+f.ProjectName+"%")
	}
	if f.MaterialName != "" {
		where += ` AND material_name LIKE ?`
		args = append(args, "%"+f.MaterialName+"%")
	}
	return where, args
}

// =============================================================================
// WAREHOUSE OUTBOUND
// =============================================================================

// InsertWarehouseOutbound appends outbound rows atomically (seed path).
func (s *Store) InsertWarehouseOutbound(ctx context.Context, records []budget.WarehouseOutbound) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.inTx(ctx, func(tx *sql.Tx) error {
		for i := range records {
			r := &records[i]
			res, err := tx.ExecContext(ctx, `
				INSERT INTO warehouse_outbound (team, apply_date, material_type, material_code,
					material_name, specification, unit, quantity, unit_price, amount,
					usage_unit, project_name)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				r.Team, fmtDate(r.ApplyDate), r.MaterialType, r.MaterialCode,
				r.MaterialName, r.Specification, r.Unit, r.Quantity, r.UnitPrice, r.Amount,
				r.UsageUnit, r.ProjectName,
			)
			if err != nil {
				return fmt.Errorf("failed to insert warehouse record: %w", err)
			}
			r.ID, _ = res.LastInsertId()
		}
		return nil
	})
}

// WarehouseFilter narrows warehouse outbound queries; name filters are
// substring matches, the date range is [From, To).
type WarehouseFilter struct {
	Team         string
	ProjectName  string
	MaterialName string
	From         *time.Time
	To           *time.Time
	Page         int
	PageSize     int
}

// ListWarehouseOutbound returns one page ordered by apply_date
// descending. PageSize is capped at 500.
func (s *Store) ListWarehouseOutbound(ctx context.Context, f WarehouseFilter) ([]budget.WarehouseOutbound, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	where, args := warehouseWhere(f)
	query := `
		SELECT id, team, apply_date, material_type, material_code, material_name,
			specification, unit, quantity, unit_price, amount, usage_unit, project_name
		FROM warehouse_outbound` + where + ` ORDER BY apply_date DESC, id`

	pageSize := f.PageSize
	if pageSize <= 0 || pageSize > 500 {
		pageSize = 500
	}
	page := f.Page
	if page < 1 {
		page = 1
	}
	query += ` LIMIT ? OFFSET ?`
	args = append(args, pageSize, (page-1)*pageSize)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []budget.WarehouseOutbound
	for rows.Next() {
		var (
			r         budget.WarehouseOutbound
			applyDate sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.Team, &applyDate, &r.MaterialType, &r.MaterialCode,
			&r.MaterialName, &r.Specification, &r.Unit, &r.Quantity, &r.UnitPrice,
			&r.Amount, &r.UsageUnit, &r.ProjectName); err != nil {
			return nil, err
		}
		r.ApplyDate = parseDate(applyDate)
		out = append(out, r)
	}
	return out, rows.Err()
}

// CountWarehouseOutbound counts rows matching the filter.
func (s *Store) CountWarehouseOutbound(ctx context.Context, f WarehouseFilter) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	where, args := warehouseWhere(f)
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM warehouse_outbound`+where, args...).Scan(&count)
	return count, err
}

// TeamTotal is one领用队组's aggregate.
type TeamTotal struct {
	Team        string  `json:"team"`
	TotalAmount float64 `json:"total_amount"`
	RecordCount int     `json:"record_count"`
}

// WarehouseStats aggregates the filtered rows with a per-team summary
// ordered by total descending.
type WarehouseStats struct {
	RecordCount int         `json:"record_count"`
	TotalAmount float64     `json:"total_amount"`
	TeamSummary []TeamTotal `json:"team_summary"`
}

func (s *Store) WarehouseOutboundStats(ctx context.Context, f WarehouseFilter) (*WarehouseStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	where, args := warehouseWhere(f)
	st := &WarehouseStats{TeamSummary: []TeamTotal{}}
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(amount), 0) FROM warehouse_outbound`+where, args...).
		Scan(&st.RecordCount, &st.TotalAmount)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT team, COALESCE(SUM(amount), 0) AS total, COUNT(*)
		FROM warehouse_outbound`+where+`
		GROUP BY team ORDER BY total DESC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var tt TeamTotal
		if err := rows.Scan(&tt.Team, &tt.TotalAmount, &tt.RecordCount); err != nil {
			return nil, err
		}
		st.TeamSummary = append(st.TeamSummary, tt)
	}
	return st, rows.Err()
}

func warehouseWhere(f WarehouseFilter) (string, []any) {
	where := ` WHERE 1=1`
	var args []any
	if f.Team != "" {
		where += ` AND team LIKE ?`
		args = append(args, "%"+f.Team+"%")
	}
	if f.ProjectName != "" {
		where += ` AND project_name LIKE ?`
		args = append(args, "%"+f.ProjectName+"%")
	}
	if f.MaterialName != "" {
		where += ` AND material_name LIKE ?`
		args = append(args, "%"+f.MaterialName+"%")
	}
	if f.From != nil {
		where += ` AND apply_date >= ?`
		args = append(args, f.From.Format(dateLayout))
	}
	if f.To != nil {
		where += ` AND apply_date < ?`
		args = append(args, f.To.Format(dateLayout))
	}
	return where, args
}
