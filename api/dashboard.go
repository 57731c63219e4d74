/*
dashboard.go - Aggregated overview endpoints

PURPOSE:
  One round trip for the landing page: budget totals, budget-weighted
  progress, per-category breakdown, the five riskiest sub-projects,
  the monthly spend trend, alert counts and cash flow totals.
*/
package api

import (
	"net/http"
	"sort"

	"github.com/taneng/budget-control/budget"
	"github.com/taneng/budget-control/store/sqlite"
)

type dashboardCategory struct {
	Name      string  `json:"name"`
	Budget    float64 `json:"budget"`
	Spent     float64 `json:"spent"`
	UsageRate float64 `json:"usage_rate"`
}

type dashboardRisk struct {
	ID              int64   `json:"id"`
	Name            string  `json:"name"`
	AllocatedBudget float64 `json:"allocated_budget"`
	ActualSpent     float64 `json:"actual_spent"`
	UsageRate       float64 `json:"usage_rate"`
	Status          string  `json:"status"`
}

type dashboardKPI struct {
	BudgetUsageRate   float64 `json:"budget_usage_rate"`
	ProgressPercent   float64 `json:"progress_percent"`
	OverBudgetCount   int     `json:"over_budget_count"`
	InProgressCount   int     `json:"in_progress_count"`
	CompletedCount    int     `json:"completed_count"`
	SubProjectCount   int     `json:"sub_project_count"`
	BudgetControlRate float64 `json:"budget_control_rate"`
}

type dashboardSummary struct {
	ProjectName     string              `json:"project_name"`
	TotalBudget     float64             `json:"total_budget"`
	ReserveBudget   float64             `json:"reserve_budget"`
	UsableBudget    float64             `json:"usable_budget"`
	TotalSpent      float64             `json:"total_spent"`
	BudgetRemaining float64             `json:"budget_remaining"`
	BudgetUsageRate float64             `json:"budget_usage_rate"`
	OverallProgress float64             `json:"overall_progress"`
	Categories      []dashboardCategory `json:"categories"`
	TopRisks        []dashboardRisk     `json:"top_risks"`
	MonthlyTrend    []sqlite.MonthTotal `json:"monthly_trend"`
	Alerts          *sqlite.AlertStats  `json:"alerts"`
	CashFlow        *cashFlowTotals     `json:"cash_flow"`
	KPI             dashboardKPI        `json:"kpi"`
}

type cashFlowTotals struct {
	TotalInflow  float64 `json:"total_inflow"`
	TotalOutflow float64 `json:"total_outflow"`
	NetFlow      float64 `json:"net_flow"`
}

// DashboardSummary assembles the landing-page aggregate.
func (h *Handler) DashboardSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	project, err := h.Store.FirstProject(ctx)
	if err != nil {
		writeStoreError(w, "Failed to load project", err)
		return
	}
	totalBudget := h.Config.TotalBudget
	reserveRate := h.Config.ReserveRate
	projectName := ""
	if project != nil {
		totalBudget = project.TotalBudget
		reserveRate = project.ReserveRate
		projectName = project.Name
	}

	totalSpent, err := h.Store.TotalExpenditure(ctx)
	if err != nil {
		writeStoreError(w, "Failed to sum expenditures", err)
		return
	}

	subs, err := h.Store.ListSubProjects(ctx)
	if err != nil {
		writeStoreError(w, "Failed to list sub-projects", err)
		return
	}

	// Budget-weighted overall progress.
	var weighted, budgetSum float64
	kpi := dashboardKPI{SubProjectCount: len(subs)}
	risks := make([]dashboardRisk, 0, len(subs))
	for i := range subs {
		sp := &subs[i]
		weighted += sp.ProgressPercent * sp.AllocatedBudget
		budgetSum += sp.AllocatedBudget
		if sp.IsOverBudget() {
			kpi.OverBudgetCount++
		}
		switch sp.Status {
		case budget.SubProjectInProgress:
			kpi.InProgressCount++
		case budget.SubProjectCompleted:
			kpi.CompletedCount++
		}
		risks = append(risks, dashboardRisk{
			ID:              sp.ID,
			Name:            sp.Name,
			AllocatedBudget: sp.AllocatedBudget,
			ActualSpent:     sp.ActualSpent,
			UsageRate:       sp.UsageRate(),
			Status:          string(sp.Status),
		})
	}
	if budgetSum == 0 {
		budgetSum = 1
	}
	overallProgress := budget.Round2(weighted / budgetSum)

	sort.SliceStable(risks, func(i, j int) bool { return risks[i].UsageRate > risks[j].UsageRate })
	if len(risks) > 5 {
		risks = risks[:5]
	}

	// Level-1 breakdown: own expenditures plus the direct children's.
	level1, err := h.Store.ListCategoriesByLevel(ctx, 1)
	if err != nil {
		writeStoreError(w, "Failed to list categories", err)
		return
	}
	level2, err := h.Store.ListCategoriesByLevel(ctx, 2)
	if err != nil {
		writeStoreError(w, "Failed to list categories", err)
		return
	}
	childSpent := make(map[int64]float64)
	for i := range level2 {
		if level2[i].ParentID != nil {
			childSpent[*level2[i].ParentID] += level2[i].ActualSpent
		}
	}
	categories := make([]dashboardCategory, 0, len(level1))
	for i := range level1 {
		c := &level1[i]
		spent := c.ActualSpent + childSpent[c.ID]
		categories = append(categories, dashboardCategory{
			Name:      c.Name,
			Budget:    c.BudgetAmount,
			Spent:     budget.Round2(spent),
			UsageRate: budget.Percent(spent, c.BudgetAmount),
		})
	}

	trend, err := h.Store.SummarizeExpenditures(ctx, sqlite.ExpenditureFilter{})
	if err != nil {
		writeStoreError(w, "Failed to summarize expenditures", err)
		return
	}
	alertStats, err := h.Store.GetAlertStats(ctx)
	if err != nil {
		writeStoreError(w, "Failed to get alert stats", err)
		return
	}
	cashSummary, err := h.Store.SummarizeCashFlows(ctx)
	if err != nil {
		writeStoreError(w, "Failed to summarize cash flows", err)
		return
	}

	kpi.BudgetUsageRate = budget.Percent(totalSpent, totalBudget)
	kpi.ProgressPercent = overallProgress
	if totalBudget > 0 {
		kpi.BudgetControlRate = budget.Round2((1 - totalSpent/totalBudget) * 100)
	}

	writeJSON(w, http.StatusOK, dashboardSummary{
		ProjectName:     projectName,
		TotalBudget:     totalBudget,
		ReserveBudget:   budget.Round2(totalBudget * reserveRate),
		UsableBudget:    budget.Round2(totalBudget * (1 - reserveRate)),
		TotalSpent:      totalSpent,
		BudgetRemaining: budget.Round2(totalBudget - totalSpent),
		BudgetUsageRate: budget.Percent(totalSpent, totalBudget),
		OverallProgress: overallProgress,
		Categories:      categories,
		TopRisks:        risks,
		MonthlyTrend:    trend.Monthly,
		Alerts:          alertStats,
		CashFlow: &cashFlowTotals{
			TotalInflow:  cashSummary.TotalInflow,
			TotalOutflow: cashSummary.TotalOutflow,
			NetFlow:      cashSummary.NetFlow,
		},
		KPI: kpi,
	})
}

// DashboardAlerts returns the most recent unresolved alerts for the
// notification drawer.
func (h *Handler) DashboardAlerts(w http.ResponseWriter, r *http.Request) {
	unresolved := false
	alerts, err := h.Store.ListAlerts(r.Context(), sqlite.AlertFilter{
		IsResolved: &unresolved,
		Limit:      queryInt(r, "limit", 10),
	})
	if err != nil {
		writeStoreError(w, "Failed to list alerts", err)
		return
	}
	dtos := make([]AlertDTO, 0, len(alerts))
	for i := range alerts {
		dtos = append(dtos, toAlertDTO(&alerts[i]))
	}
	writeJSON(w, http.StatusOK, dtos)
}
