/*
dto.go - Request/response data structures

PURPOSE:
  JSON shapes for the API, kept separate from the domain entities so the
  wire format can stay stable while internals move. Dates travel as
  YYYY-MM-DD strings, timestamps as RFC3339.

SEE ALSO:
  - handlers.go and the per-domain handler files for usage
*/
package api

import (
	"time"

	"github.com/taneng/budget-control/budget"
	"github.com/taneng/budget-control/store/sqlite"
)

// =============================================================================
// DATE HELPERS
// =============================================================================

const dateLayout = "2006-01-02"

func fmtDatePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(dateLayout)
	return &s
}

func parseDatePtr(s *string) (*time.Time, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, *s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// =============================================================================
// AUTH
// =============================================================================

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string  `json:"access_token"`
	TokenType   string  `json:"token_type"`
	User        UserDTO `json:"user"`
}

type UserDTO struct {
	ID         int64  `json:"id"`
	Username   string `json:"username"`
	FullName   string `json:"full_name"`
	Role       string `json:"role"`
	Department string `json:"department"`
	IsActive   bool   `json:"is_active"`
	CreatedAt  string `json:"created_at,omitempty"`
}

func toUserDTO(u *budget.User) UserDTO {
	dto := UserDTO{
		ID:         u.ID,
		Username:   u.Username,
		FullName:   u.FullName,
		Role:       string(u.Role),
		Department: u.Department,
		IsActive:   u.IsActive,
	}
	if !u.CreatedAt.IsZero() {
		dto.CreatedAt = u.CreatedAt.Format(time.RFC3339)
	}
	return dto
}

type CreateUserRequest struct {
	Username   string `json:"username"`
	Password   string `json:"password"`
	FullName   string `json:"full_name"`
	Role       string `json:"role"`
	Department string `json:"department"`
}

type UpdateUserRequest struct {
	FullName   *string `json:"full_name"`
	Role       *string `json:"role"`
	Department *string `json:"department"`
	IsActive   *bool   `json:"is_active"`
	Password   *string `json:"password"`
}

// =============================================================================
// PROJECTS
// =============================================================================

type ProjectDTO struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	TotalBudget float64 `json:"total_budget"`
	ReserveRate float64 `json:"reserve_rate"`
	StartDate   *string `json:"start_date"`
	EndDate     *string `json:"end_date"`
	Status      string  `json:"status"`
}

func toProjectDTO(p *budget.Project) ProjectDTO {
	return ProjectDTO{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		TotalBudget: p.TotalBudget,
		ReserveRate: p.ReserveRate,
		StartDate:   fmtDatePtr(p.StartDate),
		EndDate:     fmtDatePtr(p.EndDate),
		Status:      string(p.Status),
	}
}

type ProjectRequest struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	TotalBudget float64 `json:"total_budget"`
	ReserveRate float64 `json:"reserve_rate"`
	StartDate   *string `json:"start_date"`
	EndDate     *string `json:"end_date"`
	Status      string  `json:"status"`
}

type SubProjectDTO struct {
	ID              int64   `json:"id"`
	ProjectID       int64   `json:"project_id"`
	Name            string  `json:"name"`
	Description     string  `json:"description"`
	Category        string  `json:"category"`
	AllocatedBudget float64 `json:"allocated_budget"`
	ActualSpent     float64 `json:"actual_spent"`
	BudgetUsageRate float64 `json:"budget_usage_rate"`
	ProgressPercent float64 `json:"progress_percent"`
	Status          string  `json:"status"`
	PlannedStart    *string `json:"planned_start"`
	PlannedEnd      *string `json:"planned_end"`
	ActualStart     *string `json:"actual_start"`
	ActualEnd       *string `json:"actual_end"`
	ResponsibleDept string  `json:"responsible_dept"`
	SortOrder       int     `json:"sort_order"`
}

func toSubProjectDTO(sp *budget.SubProject) SubProjectDTO {
	return SubProjectDTO{
		ID:              sp.ID,
		ProjectID:       sp.ProjectID,
		Name:            sp.Name,
		Description:     sp.Description,
		Category:        sp.Category,
		AllocatedBudget: sp.AllocatedBudget,
		ActualSpent:     sp.ActualSpent,
		BudgetUsageRate: sp.UsageRate(),
		ProgressPercent: sp.ProgressPercent,
		Status:          string(sp.Status),
		PlannedStart:    fmtDatePtr(sp.PlannedStart),
		PlannedEnd:      fmtDatePtr(sp.PlannedEnd),
		ActualStart:     fmtDatePtr(sp.ActualStart),
		ActualEnd:       fmtDatePtr(sp.ActualEnd),
		ResponsibleDept: sp.ResponsibleDept,
		SortOrder:       sp.SortOrder,
	}
}

type SubProjectRequest struct {
	ProjectID       int64   `json:"project_id"`
	Name            string  `json:"name"`
	Description     string  `json:"description"`
	Category        string  `json:"category"`
	AllocatedBudget float64 `json:"allocated_budget"`
	ProgressPercent float64 `json:"progress_percent"`
	Status          string  `json:"status"`
	PlannedStart    *string `json:"planned_start"`
	PlannedEnd      *string `json:"planned_end"`
	ActualStart     *string `json:"actual_start"`
	ActualEnd       *string `json:"actual_end"`
	ResponsibleDept string  `json:"responsible_dept"`
	SortOrder       int     `json:"sort_order"`
}

type MilestoneDTO struct {
	ID           int64   `json:"id"`
	SubProjectID int64   `json:"sub_project_id"`
	Name         string  `json:"name"`
	Description  string  `json:"description"`
	PlannedDate  *string `json:"planned_date"`
	ActualDate   *string `json:"actual_date"`
	Status       string  `json:"status"`
	SortOrder    int     `json:"sort_order"`
}

type MilestoneRequest struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	PlannedDate *string `json:"planned_date"`
	ActualDate  *string `json:"actual_date"`
	Status      string  `json:"status"`
	SortOrder   int     `json:"sort_order"`
}

type ProgressRecordDTO struct {
	ID           int64   `json:"id"`
	SubProjectID int64   `json:"sub_project_id"`
	RecordDate   string  `json:"record_date"`
	Percent      float64 `json:"percent"`
	Milestone    string  `json:"milestone"`
	Note         string  `json:"note"`
	CreatedBy    int64   `json:"created_by"`
}

type ProgressRecordRequest struct {
	RecordDate string  `json:"record_date"`
	Percent    float64 `json:"percent"`
	Milestone  string  `json:"milestone"`
	Note       string  `json:"note"`
}

// =============================================================================
// CATEGORIES AND COST ITEMS
// =============================================================================

type CategoryDTO struct {
	ID           int64   `json:"id"`
	Name         string  `json:"name"`
	Code         string  `json:"code"`
	ParentID     *int64  `json:"parent_id"`
	Level        int     `json:"level"`
	BudgetAmount float64 `json:"budget_amount"`
	ActualSpent  float64 `json:"actual_spent"`
	Description  string  `json:"description"`
	SortOrder    int     `json:"sort_order"`
}

// CategoryTreeDTO nests children for the tree endpoint.
type CategoryTreeDTO struct {
	CategoryDTO
	Children []CategoryTreeDTO `json:"children"`
}

func toCategoryDTO(c *budget.BudgetCategory) CategoryDTO {
	return CategoryDTO{
		ID:           c.ID,
		Name:         c.Name,
		Code:         c.Code,
		ParentID:     c.ParentID,
		Level:        c.Level,
		BudgetAmount: c.BudgetAmount,
		ActualSpent:  c.ActualSpent,
		Description:  c.Description,
		SortOrder:    c.SortOrder,
	}
}

func toCategoryTreeDTO(nodes []*budget.CategoryNode) []CategoryTreeDTO {
	out := make([]CategoryTreeDTO, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, CategoryTreeDTO{
			CategoryDTO: toCategoryDTO(&n.BudgetCategory),
			Children:    toCategoryTreeDTO(n.Children),
		})
	}
	return out
}

type CategoryRequest struct {
	Name         string  `json:"name"`
	Code         string  `json:"code"`
	ParentID     *int64  `json:"parent_id"`
	Level        int     `json:"level"`
	BudgetAmount float64 `json:"budget_amount"`
	Description  string  `json:"description"`
	SortOrder    int     `json:"sort_order"`
}

type CostItemDTO struct {
	ID           int64   `json:"id"`
	SubProjectID int64   `json:"sub_project_id"`
	CategoryID   *int64  `json:"category_id"`
	Name         string  `json:"name"`
	BudgetAmount float64 `json:"budget_amount"`
	ActualAmount float64 `json:"actual_amount"`
	Unit         string  `json:"unit"`
	Quantity     float64 `json:"quantity"`
	UnitPrice    float64 `json:"unit_price"`
	Note         string  `json:"note"`
}

func toCostItemDTO(ci *budget.CostItem) CostItemDTO {
	return CostItemDTO{
		ID:           ci.ID,
		SubProjectID: ci.SubProjectID,
		CategoryID:   ci.CategoryID,
		Name:         ci.Name,
		BudgetAmount: ci.BudgetAmount,
		ActualAmount: ci.ActualAmount,
		Unit:         ci.Unit,
		Quantity:     ci.Quantity,
		UnitPrice:    ci.UnitPrice,
		Note:         ci.Note,
	}
}

type CostItemRequest struct {
	SubProjectID int64   `json:"sub_project_id"`
	CategoryID   *int64  `json:"category_id"`
	Name         string  `json:"name"`
	BudgetAmount float64 `json:"budget_amount"`
	Unit         string  `json:"unit"`
	Quantity     float64 `json:"quantity"`
	UnitPrice    float64 `json:"unit_price"`
	Note         string  `json:"note"`
}

// =============================================================================
// EXPENDITURES
// =============================================================================

type ExpenditureDTO struct {
	ID           int64   `json:"id"`
	CostItemID   *int64  `json:"cost_item_id"`
	SubProjectID int64   `json:"sub_project_id"`
	CategoryID   *int64  `json:"category_id"`
	RecordDate   string  `json:"record_date"`
	Amount       float64 `json:"amount"`
	Description  string  `json:"description"`
	VoucherNo    string  `json:"voucher_no"`
	Source       string  `json:"source"`
	CreatedBy    int64   `json:"created_by"`
	CreatedAt    string  `json:"created_at,omitempty"`
}

func toExpenditureDTO(e *budget.Expenditure) ExpenditureDTO {
	dto := ExpenditureDTO{
		ID:           e.ID,
		CostItemID:   e.CostItemID,
		SubProjectID: e.SubProjectID,
		CategoryID:   e.CategoryID,
		RecordDate:   e.RecordDate.Format(dateLayout),
		Amount:       e.Amount,
		Description:  e.Description,
		VoucherNo:    e.VoucherNo,
		Source:       string(e.Source),
		CreatedBy:    e.CreatedBy,
	}
	if !e.CreatedAt.IsZero() {
		dto.CreatedAt = e.CreatedAt.Format(time.RFC3339)
	}
	return dto
}

type ExpenditureRequest struct {
	CostItemID   *int64  `json:"cost_item_id"`
	SubProjectID int64   `json:"sub_project_id"`
	CategoryID   *int64  `json:"category_id"`
	RecordDate   string  `json:"record_date"`
	Amount       float64 `json:"amount"`
	Description  string  `json:"description"`
	VoucherNo    string  `json:"voucher_no"`
}

type ExpenditureListResponse struct {
	Items    []ExpenditureDTO `json:"items"`
	Total    int              `json:"total"`
	Page     int              `json:"page"`
	PageSize int              `json:"page_size"`
}

// ImportResultDTO reports a file import: rows written plus per-row
// problems for the rows that were skipped.
type ImportResultDTO struct {
	Imported int      `json:"imported"`
	Skipped  int      `json:"skipped"`
	Errors   []string `json:"errors"`
}

// =============================================================================
// CASH FLOW
// =============================================================================

type CashFlowDTO struct {
	ID                  int64   `json:"id"`
	ProjectID           int64   `json:"project_id"`
	FlowType            string  `json:"flow_type"`
	Category            string  `json:"category"`
	Amount              float64 `json:"amount"`
	RecordDate          string  `json:"record_date"`
	Payee               string  `json:"payee"`
	PaymentMethod       string  `json:"payment_method"`
	Description         string  `json:"description"`
	VoucherNo           string  `json:"voucher_no"`
	RelatedSubProjectID *int64  `json:"related_sub_project_id"`
	Status              string  `json:"status"`
	ApprovedBy          *int64  `json:"approved_by"`
	CreatedBy           int64   `json:"created_by"`
}

func toCashFlowDTO(cf *budget.CashFlow) CashFlowDTO {
	return CashFlowDTO{
		ID:                  cf.ID,
		ProjectID:           cf.ProjectID,
		FlowType:            string(cf.FlowType),
		Category:            cf.Category,
		Amount:              cf.Amount,
		RecordDate:          cf.RecordDate.Format(dateLayout),
		Payee:               cf.Payee,
		PaymentMethod:       cf.PaymentMethod,
		Description:         cf.Description,
		VoucherNo:           cf.VoucherNo,
		RelatedSubProjectID: cf.RelatedSubProjectID,
		Status:              string(cf.Status),
		ApprovedBy:          cf.ApprovedBy,
		CreatedBy:           cf.CreatedBy,
	}
}

type CashFlowRequest struct {
	ProjectID           int64   `json:"project_id"`
	FlowType            string  `json:"flow_type"`
	Category            string  `json:"category"`
	Amount              float64 `json:"amount"`
	RecordDate          string  `json:"record_date"`
	Payee               string  `json:"payee"`
	PaymentMethod       string  `json:"payment_method"`
	Description         string  `json:"description"`
	VoucherNo           string  `json:"voucher_no"`
	RelatedSubProjectID *int64  `json:"related_sub_project_id"`
	Status              string  `json:"status"`
}

// =============================================================================
// ALERTS
// =============================================================================

type AlertDTO struct {
	ID          int64   `json:"id"`
	AlertType   string  `json:"alert_type"`
	Level       string  `json:"level"`
	Title       string  `json:"title"`
	Message     string  `json:"message"`
	RelatedType string  `json:"related_type"`
	RelatedID   int64   `json:"related_id"`
	RelatedName string  `json:"related_name"`
	IsRead      bool    `json:"is_read"`
	IsResolved  bool    `json:"is_resolved"`
	CreatedAt   string  `json:"created_at"`
	ResolvedAt  *string `json:"resolved_at"`
}

func toAlertDTO(a *budget.AlertLog) AlertDTO {
	dto := AlertDTO{
		ID:          a.ID,
		AlertType:   string(a.AlertType),
		Level:       string(a.Level),
		Title:       a.Title,
		Message:     a.Message,
		RelatedType: string(a.RelatedType),
		RelatedID:   a.RelatedID,
		RelatedName: a.RelatedName,
		IsRead:      a.IsRead,
		IsResolved:  a.IsResolved,
		CreatedAt:   a.CreatedAt.Format(time.RFC3339),
	}
	if a.ResolvedAt != nil {
		s := a.ResolvedAt.Format(time.RFC3339)
		dto.ResolvedAt = &s
	}
	return dto
}

// =============================================================================
// SIMULATIONS
// =============================================================================

type WhatIfRequest struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Adjustments []AdjustmentDTO    `json:"adjustments"`
	Save        bool               `json:"save"`
	Parameters  map[string]float64 `json:"parameters,omitempty"`
}

type AdjustmentDTO struct {
	TargetType     string  `json:"target_type"`
	TargetID       int64   `json:"target_id"`
	Field          string  `json:"field"`
	AdjustmentType string  `json:"adjustment_type"`
	Value          float64 `json:"value"`
}

type SensitivityRequest struct {
	Targets []SensitivityTargetDTO `json:"targets"`
}

type SensitivityTargetDTO struct {
	Type     string  `json:"type"`
	ID       int64   `json:"id"`
	Field    string  `json:"field"`
	RangeMin float64 `json:"range_min"`
	RangeMax float64 `json:"range_max"`
}

type ScenarioRequest struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Scenarios   []ScenarioInputDTO `json:"scenarios"`
}

type ScenarioInputDTO struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Parameters  map[string]float64 `json:"parameters"`
}

type SimulationDTO struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Description string           `json:"description"`
	SimType     string           `json:"sim_type"`
	CreatedBy   int64            `json:"created_by"`
	CreatedAt   string           `json:"created_at"`
	Scenarios   []SimScenarioDTO `json:"scenarios"`
}

type SimScenarioDTO struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Parameters  map[string]float64 `json:"parameters"`
	Results     map[string]float64 `json:"results"`
	TotalCost   float64            `json:"total_cost"`
	TotalReturn float64            `json:"total_return"`
	ROI         float64            `json:"roi"`
}

func toSimulationDTO(sim *budget.Simulation) SimulationDTO {
	scenarios := make([]SimScenarioDTO, 0, len(sim.Scenarios))
	for i := range sim.Scenarios {
		scenarios = append(scenarios, toSimScenarioDTO(&sim.Scenarios[i]))
	}
	return SimulationDTO{
		ID:          sim.ID,
		Name:        sim.Name,
		Description: sim.Description,
		SimType:     string(sim.SimType),
		CreatedBy:   sim.CreatedBy,
		CreatedAt:   sim.CreatedAt.Format(time.RFC3339),
		Scenarios:   scenarios,
	}
}

func toSimScenarioDTO(sc *budget.SimScenario) SimScenarioDTO {
	return SimScenarioDTO{
		ID:          sc.ID,
		Name:        sc.Name,
		Description: sc.Description,
		Parameters:  sc.Parameters,
		Results:     sc.Results,
		TotalCost:   sc.TotalCost,
		TotalReturn: sc.TotalReturn,
		ROI:         sc.ROI,
	}
}

// =============================================================================
// SETTLEMENT
// =============================================================================

type CivilSettlementDTO struct {
	ID               int64   `json:"id"`
	Seq              int     `json:"seq"`
	ProjectName      string  `json:"project_name"`
	AuditAmount      float64 `json:"audit_amount"`
	SettlementAmount float64 `json:"settlement_amount"`
	PaymentPlan      float64 `json:"payment_plan"`
	SomoniAmount     float64 `json:"somoni_amount"`
	Somoni40Percent  float64 `json:"somoni_40_percent"`
	FebPlanSomoni    float64 `json:"feb_plan_somoni"`
	DebtSomoni       float64 `json:"debt_somoni"`
	Contractor       string  `json:"contractor"`
	SubProjectName   string  `json:"sub_project_name,omitempty"`
	AllocatedBudget  float64 `json:"allocated_budget,omitempty"`
	Note             string  `json:"note,omitempty"`
}

func toCivilSettlementDTO(row *sqlite.CivilSettlementRow) CivilSettlementDTO {
	return CivilSettlementDTO{
		ID:               row.ID,
		Seq:              row.Seq,
		ProjectName:      row.ProjectName,
		AuditAmount:      row.AuditAmount,
		SettlementAmount: row.SettlementAmount,
		PaymentPlan:      row.PaymentPlan,
		SomoniAmount:     row.SomoniAmount,
		Somoni40Percent:  row.Somoni40Percent,
		FebPlanSomoni:    row.FebPlanSomoni,
		DebtSomoni:       row.DebtSomoni,
		Contractor:       row.Contractor,
		SubProjectName:   row.SubProjectName,
		AllocatedBudget:  row.AllocatedBudget,
		Note:             row.Note,
	}
}

type ProcurementSummaryDTO struct {
	Month        int     `json:"month"`
	AmountSomoni float64 `json:"amount_somoni"`
}

func toProcurementSummaryDTO(s *budget.ProcurementMonthlySummary) ProcurementSummaryDTO {
	return ProcurementSummaryDTO{Month: s.Month, AmountSomoni: s.AmountSomoni}
}

type ProcurementRecordDTO struct {
	ID                      int64   `json:"id"`
	Month                   int     `json:"month"`
	Seq                     int     `json:"seq"`
	MaterialName            string  `json:"material_name"`
	Specification           string  `json:"specification"`
	Unit                    string  `json:"unit"`
	PlanPrice               float64 `json:"plan_price"`
	PlanQuantity            float64 `json:"plan_quantity"`
	PurchaseUnitPriceSomoni float64 `json:"purchase_unit_price_somoni"`
	PurchaseMethod          string  `json:"purchase_method"`
	PaymentMethod           string  `json:"payment_method"`
	PurchaseQuantity        float64 `json:"purchase_quantity"`
	PurchaseAmountSomoni    float64 `json:"purchase_amount_somoni"`
	StockQuantity           float64 `json:"stock_quantity"`
	UnitPriceRMB            float64 `json:"unit_price_rmb"`
	AmountRMB               float64 `json:"amount_rmb"`
	UsageUnit               string  `json:"usage_unit"`
	ProjectName             string  `json:"project_name"`
}

func toProcurementRecordDTO(r *budget.ProcurementRecord) ProcurementRecordDTO {
	return ProcurementRecordDTO{
		ID:                      r.ID,
		Month:                   r.Month,
		Seq:                     r.Seq,
		MaterialName:            r.MaterialName,
		Specification:           r.Specification,
		Unit:                    r.Unit,
		PlanPrice:               r.PlanPrice,
		PlanQuantity:            r.PlanQuantity,
		PurchaseUnitPriceSomoni: r.PurchaseUnitPriceSomoni,
		PurchaseMethod:          r.PurchaseMethod,
		PaymentMethod:           r.PaymentMethod,
		PurchaseQuantity:        r.PurchaseQuantity,
		PurchaseAmountSomoni:    r.PurchaseAmountSomoni,
		StockQuantity:           r.StockQuantity,
		UnitPriceRMB:            r.UnitPriceRMB,
		AmountRMB:               r.AmountRMB,
		UsageUnit:               r.UsageUnit,
		ProjectName:             r.ProjectName,
	}
}

type WarehouseOutboundDTO struct {
	ID            int64   `json:"id"`
	Team          string  `json:"team"`
	ApplyDate     *string `json:"apply_date"`
	MaterialType  string  `json:"material_type"`
	MaterialCode  string  `json:"material_code"`
	MaterialName  string  `json:"material_name"`
	Specification string  `json:"specification"`
	Unit          string  `json:"unit"`
	Quantity      float64 `json:"quantity"`
	UnitPrice     float64 `json:"unit_price"`
	Amount        float64 `json:"amount"`
	UsageUnit     string  `json:"usage_unit"`
	ProjectName   string  `json:"project_name"`
}

func toWarehouseOutboundDTO(r *budget.WarehouseOutbound) WarehouseOutboundDTO {
	return WarehouseOutboundDTO{
		ID:            r.ID,
		Team:          r.Team,
		ApplyDate:     fmtDatePtr(r.ApplyDate),
		MaterialType:  r.MaterialType,
		MaterialCode:  r.MaterialCode,
		MaterialName:  r.MaterialName,
		Specification: r.Specification,
		Unit:          r.Unit,
		Quantity:      r.Quantity,
		UnitPrice:     r.UnitPrice,
		Amount:        r.Amount,
		UsageUnit:     r.UsageUnit,
		ProjectName:   r.ProjectName,
	}
}
