/*
Package budget contains the domain core of the capital-project budget
control system.

PURPOSE:
  This package holds the entities and the three computation engines that
  everything else is built around:
  - The 3-level budget category hierarchy and its tree builder (tree.go)
  - The threshold alert engine (alerts.go)
  - The what-if / sensitivity / scenario simulation engine (simulate.go)
  - The monthly assessment report generator (report.go)

KEY CONCEPTS IN THIS FILE (types.go):
  - Project / SubProject: The renovation project and its work items.
    SubProject.ActualSpent is denormalized and maintained by the store.
  - BudgetCategory: Adjacency-list node of the 3-level科目 hierarchy.
  - CostItem / Expenditure: Cost lines and the individual spend records
    that roll up into the denormalized totals.
  - AlertLog: Threshold alert rows; at most one unresolved row per
    (alert_type, related_type, related_id).
  - All money amounts are in 万元 unless a field name says otherwise.

DESIGN PRINCIPLES:
  1. Entities are plain structs; persistence lives in store/sqlite.
  2. Engines depend on small store interfaces, not on *sqlite.Store.
  3. Reported figures are rounded through decimal (money.go), never
     with raw float math.

SEE ALSO:
  - alerts.go: AlertChecker and its thresholds
  - simulate.go: WhatIf / Sensitivity / Scenario evaluation
  - report.go: Monthly report assembly
  - store/sqlite: Persistence and the recompute cascade
*/
package budget

import "time"

// =============================================================================
// USERS AND ROLES
// =============================================================================

type Role string

const (
	RoleAdmin      Role = "admin"
	RoleLeader     Role = "leader"
	RoleDepartment Role = "department"
	RoleViewer     Role = "viewer"
)

func ValidRole(r Role) bool {
	switch r {
	case RoleAdmin, RoleLeader, RoleDepartment, RoleViewer:
		return true
	}
	return false
}

type User struct {
	ID           int64
	Username     string
	FullName     string
	PasswordHash string
	Role         Role
	Department   string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// =============================================================================
// PROJECT AND SUB-PROJECTS
// =============================================================================

type ProjectStatus string

const (
	ProjectPlanning   ProjectStatus = "planning"
	ProjectInProgress ProjectStatus = "in_progress"
	ProjectCompleted  ProjectStatus = "completed"
	ProjectSuspended  ProjectStatus = "suspended"
)

type Project struct {
	ID          int64
	Name        string
	Description string
	TotalBudget float64
	// ReserveRate is the 弹性预备金 share of the total budget (0.05-0.10).
	ReserveRate float64
	StartDate   *time.Time
	EndDate     *time.Time
	Status      ProjectStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type SubProjectStatus string

const (
	SubProjectNotStarted SubProjectStatus = "not_started"
	SubProjectInProgress SubProjectStatus = "in_progress"
	SubProjectCompleted  SubProjectStatus = "completed"
	SubProjectDelayed    SubProjectStatus = "delayed"
	SubProjectSuspended  SubProjectStatus = "suspended"
)

type SubProject struct {
	ID              int64
	ProjectID       int64
	Name            string
	Description     string
	Category        string
	AllocatedBudget float64
	// ActualSpent is recomputed from expenditures by the store,
	// never written directly by handlers.
	ActualSpent     float64
	ProgressPercent float64
	Status          SubProjectStatus
	PlannedStart    *time.Time
	PlannedEnd      *time.Time
	ActualStart     *time.Time
	ActualEnd       *time.Time
	ResponsibleDept string
	SortOrder       int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// UsageRate returns spent/budget as a percentage, 0 when no budget.
func (sp *SubProject) UsageRate() float64 {
	if sp.AllocatedBudget <= 0 {
		return 0
	}
	return Round2(sp.ActualSpent / sp.AllocatedBudget * 100)
}

func (sp *SubProject) IsOverBudget() bool {
	return sp.AllocatedBudget > 0 && sp.ActualSpent > sp.AllocatedBudget
}

type MilestoneStatus string

const (
	MilestonePending   MilestoneStatus = "pending"
	MilestoneCompleted MilestoneStatus = "completed"
	MilestoneDelayed   MilestoneStatus = "delayed"
)

type MilestoneNode struct {
	ID           int64
	SubProjectID int64
	Name         string
	Description  string
	PlannedDate  *time.Time
	ActualDate   *time.Time
	Status       MilestoneStatus
	SortOrder    int
}

// ProgressRecord is a dated progress report for a sub-project. Creating
// one also updates the sub-project's ProgressPercent and may flip its
// status (not_started -> in_progress, >=100 -> completed).
type ProgressRecord struct {
	ID           int64
	SubProjectID int64
	RecordDate   time.Time
	Percent      float64
	Milestone    string
	Note         string
	CreatedBy    int64
	CreatedAt    time.Time
}

// =============================================================================
// BUDGET CATEGORIES, COST ITEMS, EXPENDITURES
// =============================================================================

// BudgetCategory is one node of the 3-level科目 hierarchy stored as an
// adjacency list. Invariant: a child's parent exists and has
// level = child.level - 1.
type BudgetCategory struct {
	ID           int64
	Name         string
	Code         string
	ParentID     *int64
	Level        int
	BudgetAmount float64
	Description  string
	SortOrder    int
	// ActualSpent is computed per query (sum of expenditures tagged
	// with this category), not stored.
	ActualSpent float64
}

type CostItem struct {
	ID           int64
	SubProjectID int64
	CategoryID   *int64
	Name         string
	BudgetAmount float64
	// ActualAmount is recomputed from expenditures by the store.
	ActualAmount float64
	Unit         string
	Quantity     float64
	UnitPrice    float64
	Note         string
	CreatedAt    time.Time
}

type ExpenditureSource string

const (
	SourceManual      ExpenditureSource = "manual"
	SourceExcelImport ExpenditureSource = "excel_import"
	SourceERPSync     ExpenditureSource = "erp_sync"
)

type Expenditure struct {
	ID           int64
	CostItemID   *int64
	SubProjectID int64
	CategoryID   *int64
	RecordDate   time.Time
	Amount       float64
	Description  string
	VoucherNo    string
	Source       ExpenditureSource
	CreatedBy    int64
	CreatedAt    time.Time
}

// =============================================================================
// ALERTS
// =============================================================================

type AlertType string

const (
	AlertBudgetOverrun AlertType = "budget_overrun"
	AlertScheduleDelay AlertType = "schedule_delay"
	AlertBurnRate      AlertType = "burn_rate"
)

type AlertLevel string

const (
	LevelInfo   AlertLevel = "info"
	LevelYellow AlertLevel = "yellow"
	LevelRed    AlertLevel = "red"
)

type RelatedKind string

const (
	RelatedSubProject RelatedKind = "sub_project"
	RelatedProject    RelatedKind = "project"
)

type AlertLog struct {
	ID          int64
	AlertType   AlertType
	Level       AlertLevel
	Title       string
	Message     string
	RelatedType RelatedKind
	RelatedID   int64
	RelatedName string
	IsRead      bool
	IsResolved  bool
	CreatedAt   time.Time
	ResolvedAt  *time.Time
}

// =============================================================================
// CASH FLOW
// =============================================================================

type FlowType string

const (
	FlowInflow  FlowType = "inflow"
	FlowOutflow FlowType = "outflow"
)

type CashFlowStatus string

const (
	CashFlowPending   CashFlowStatus = "pending"
	CashFlowApproved  CashFlowStatus = "approved"
	CashFlowPaid      CashFlowStatus = "paid"
	CashFlowCancelled CashFlowStatus = "cancelled"
)

type CashFlow struct {
	ID                  int64
	ProjectID           int64
	FlowType            FlowType
	Category            string
	Amount              float64
	RecordDate          time.Time
	Payee               string
	PaymentMethod       string
	Description         string
	VoucherNo           string
	RelatedSubProjectID *int64
	Status              CashFlowStatus
	ApprovedBy          *int64
	CreatedBy           int64
	CreatedAt           time.Time
}

// =============================================================================
// SIMULATIONS
// =============================================================================

type SimType string

const (
	SimWhatIf          SimType = "whatif"
	SimScenarioCompare SimType = "scenario"
	SimSensitivity     SimType = "sensitivity"
)

// Simulation is a saved analysis session holding one or more scenarios.
// Simulations use uuid string IDs so they can be created client-side too.
type Simulation struct {
	ID          string
	Name        string
	Description string
	SimType     SimType
	CreatedBy   int64
	CreatedAt   time.Time
	Scenarios   []SimScenario
}

type SimScenario struct {
	ID           string
	SimulationID string
	Name         string
	Description  string
	Parameters   map[string]float64
	Results      map[string]float64
	TotalCost    float64
	TotalReturn  float64
	ROI          float64
	CreatedAt    time.Time
}

// =============================================================================
// SETTLEMENT REFERENCE DATA (append-only)
// =============================================================================

// CivilSettlement is a土建决算 line; settlement amounts are in 元,
// somoni columns in索莫尼.
type CivilSettlement struct {
	ID               int64
	Seq              int
	ProjectName      string
	AuditAmount      float64
	SettlementAmount float64
	PaymentPlan      float64
	SomoniAmount     float64
	Somoni40Percent  float64
	FebPlanSomoni    float64
	DebtSomoni       float64
	Contractor       string
	SubProjectID     *int64
	Note             string
}

type ProcurementMonthlySummary struct {
	ID           int64
	Month        int
	AmountSomoni float64
}

type ProcurementRecord struct {
	ID                      int64
	Month                   int
	Seq                     int
	MaterialName            string
	Specification           string
	Unit                    string
	PlanPrice               float64
	PlanQuantity            float64
	PurchaseUnitPriceSomoni float64
	PurchaseMethod          string
	PaymentMethod           string
	PurchaseQuantity        float64
	PurchaseAmountSomoni    float64
	StockQuantity           float64
	UnitPriceRMB            float64
	AmountRMB               float64
	UsageUnit               string
	ProjectName             string
}

type WarehouseOutbound struct {
	ID            int64
	Team          string
	ApplyDate     *time.Time
	MaterialType  string
	MaterialCode  string
	MaterialName  string
	Specification string
	Unit          string
	Quantity      float64
	UnitPrice     float64
	Amount        float64
	UsageUnit     string
	ProjectName   string
}
