/*
report.go - Monthly assessment report generation

PURPOSE:
  Assembles the月度考核 report for a given year/month: overview totals,
  per-sub-project rows, level-1 category summary, alert counts, a naive
  next-month forecast, and deterministic recommendations.

WINDOW:
  The report month is the half-open interval
  [first of month, first of next month). Cumulative figures include
  everything before the window end.
*/
package budget

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// ExpenditureSumFilter narrows SumExpenditures. Nil fields are ignored;
// From is inclusive, To exclusive.
type ExpenditureSumFilter struct {
	SubProjectID *int64
	CategoryID   *int64
	From         *time.Time
	To           *time.Time
}

type AlertCounts struct {
	Total  int `json:"total"`
	Red    int `json:"red"`
	Yellow int `json:"yellow"`
}

// ReportStore is the persistence surface the generator needs.
type ReportStore interface {
	FirstProject(ctx context.Context) (*Project, error)
	ListSubProjects(ctx context.Context) ([]SubProject, error)
	ListCategoriesByLevel(ctx context.Context, level int) ([]BudgetCategory, error)
	SumExpenditures(ctx context.Context, f ExpenditureSumFilter) (float64, error)
	CountAlertsBetween(ctx context.Context, from, to time.Time) (AlertCounts, error)
}

type ReportOverview struct {
	TotalBudget     float64 `json:"total_budget"`
	ReserveBudget   float64 `json:"reserve_budget"`
	UsableBudget    float64 `json:"usable_budget"`
	MonthlySpent    float64 `json:"monthly_spent"`
	CumulativeSpent float64 `json:"cumulative_spent"`
	BudgetRemaining float64 `json:"budget_remaining"`
	BudgetUsageRate float64 `json:"budget_usage_rate"`
}

type ReportSubProject struct {
	ID              int64            `json:"id"`
	Name            string           `json:"name"`
	Category        string           `json:"category"`
	AllocatedBudget float64          `json:"allocated_budget"`
	CumulativeSpent float64          `json:"cumulative_spent"`
	MonthlySpent    float64          `json:"monthly_spent"`
	BudgetRemaining float64          `json:"budget_remaining"`
	BudgetUsageRate float64          `json:"budget_usage_rate"`
	ProgressPercent float64          `json:"progress_percent"`
	Status          SubProjectStatus `json:"status"`
	ScheduleStatus  string           `json:"schedule_status"`
	RiskLevel       string           `json:"risk_level"`
}

type ReportCategory struct {
	Name            string  `json:"name"`
	Budget          float64 `json:"budget"`
	MonthlySpent    float64 `json:"monthly_spent"`
	CumulativeSpent float64 `json:"cumulative_spent"`
	UsageRate       float64 `json:"usage_rate"`
}

type ReportForecast struct {
	NextMonthEstimated    float64  `json:"next_month_estimated"`
	RemainingMonthsBudget *float64 `json:"remaining_months_budget"`
}

type MonthlyReport struct {
	ReportPeriod    string             `json:"report_period"`
	GeneratedAt     string             `json:"generated_at"`
	Overview        ReportOverview     `json:"overview"`
	SubProjects     []ReportSubProject `json:"sub_projects"`
	CategorySummary []ReportCategory   `json:"category_summary"`
	AlertsCount     AlertCounts        `json:"alerts_count"`
	Forecast        ReportForecast     `json:"forecast"`
	Recommendations []string           `json:"recommendations"`
}

// ReportGenerator builds monthly reports from a store. Defaults apply
// when no project row exists yet.
type ReportGenerator struct {
	Store              ReportStore
	DefaultTotalBudget float64
	DefaultReserveRate float64

	Now func() time.Time
}

func NewReportGenerator(store ReportStore, totalBudget, reserveRate float64) *ReportGenerator {
	return &ReportGenerator{
		Store:              store,
		DefaultTotalBudget: totalBudget,
		DefaultReserveRate: reserveRate,
		Now:                time.Now,
	}
}

// Monthly builds the report for year/month.
func (g *ReportGenerator) Monthly(ctx context.Context, year, month int) (*MonthlyReport, error) {
	start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)

	project, err := g.Store.FirstProject(ctx)
	if err != nil {
		return nil, fmt.Errorf("load project: %w", err)
	}
	totalBudget := g.DefaultTotalBudget
	reserveRate := g.DefaultReserveRate
	if project != nil {
		totalBudget = project.TotalBudget
		reserveRate = project.ReserveRate
	}

	monthlyTotal, err := g.Store.SumExpenditures(ctx, ExpenditureSumFilter{From: &start, To: &end})
	if err != nil {
		return nil, fmt.Errorf("sum monthly expenditures: %w", err)
	}
	cumulativeTotal, err := g.Store.SumExpenditures(ctx, ExpenditureSumFilter{To: &end})
	if err != nil {
		return nil, fmt.Errorf("sum cumulative expenditures: %w", err)
	}

	subProjects, err := g.Store.ListSubProjects(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sub-projects: %w", err)
	}
	spRows := make([]ReportSubProject, 0, len(subProjects))
	for i := range subProjects {
		sp := &subProjects[i]
		spMonthly, err := g.Store.SumExpenditures(ctx, ExpenditureSumFilter{
			SubProjectID: &sp.ID, From: &start, To: &end,
		})
		if err != nil {
			return nil, fmt.Errorf("sum sub-project expenditures: %w", err)
		}

		usageRate := 0.0
		if sp.AllocatedBudget > 0 {
			usageRate = sp.ActualSpent / sp.AllocatedBudget * 100
		}
		risk := "green"
		switch {
		case usageRate >= 90:
			risk = "red"
		case usageRate >= 80:
			risk = "yellow"
		}

		spRows = append(spRows, ReportSubProject{
			ID:              sp.ID,
			Name:            sp.Name,
			Category:        sp.Category,
			AllocatedBudget: sp.AllocatedBudget,
			CumulativeSpent: sp.ActualSpent,
			MonthlySpent:    spMonthly,
			BudgetRemaining: sp.AllocatedBudget - sp.ActualSpent,
			BudgetUsageRate: Round2(usageRate),
			ProgressPercent: sp.ProgressPercent,
			Status:          sp.Status,
			ScheduleStatus:  scheduleStatus(sp, end),
			RiskLevel:       risk,
		})
	}

	categories, err := g.Store.ListCategoriesByLevel(ctx, 1)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	catRows := make([]ReportCategory, 0, len(categories))
	for i := range categories {
		cat := &categories[i]
		catMonthly, err := g.Store.SumExpenditures(ctx, ExpenditureSumFilter{
			CategoryID: &cat.ID, From: &start, To: &end,
		})
		if err != nil {
			return nil, fmt.Errorf("sum category expenditures: %w", err)
		}
		catCumulative, err := g.Store.SumExpenditures(ctx, ExpenditureSumFilter{
			CategoryID: &cat.ID, To: &end,
		})
		if err != nil {
			return nil, fmt.Errorf("sum category expenditures: %w", err)
		}
		catRows = append(catRows, ReportCategory{
			Name:            cat.Name,
			Budget:          cat.BudgetAmount,
			MonthlySpent:    catMonthly,
			CumulativeSpent: catCumulative,
			UsageRate:       Percent(catCumulative, cat.BudgetAmount),
		})
	}

	alerts, err := g.Store.CountAlertsBetween(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("count alerts: %w", err)
	}

	// Naive forecast: average of this month and the 30 days before it,
	// falling back to this month when there is no prior history.
	prevStart := start.AddDate(0, 0, -30)
	prevTotal, err := g.Store.SumExpenditures(ctx, ExpenditureSumFilter{From: &prevStart, To: &start})
	if err != nil {
		return nil, fmt.Errorf("sum previous window: %w", err)
	}
	forecastNext := monthlyTotal
	if prevTotal > 0 {
		forecastNext = (monthlyTotal + prevTotal) / 2
	}
	var remainingMonths *float64
	if monthlyTotal > 0 {
		denom := monthlyTotal
		if denom < 1 {
			denom = 1
		}
		v := Round1((totalBudget - cumulativeTotal) / denom)
		remainingMonths = &v
	}

	return &MonthlyReport{
		ReportPeriod: fmt.Sprintf("%d年%d月", year, month),
		GeneratedAt:  g.Now().Format("2006-01-02 15:04:05"),
		Overview: ReportOverview{
			TotalBudget:     totalBudget,
			ReserveBudget:   totalBudget * reserveRate,
			UsableBudget:    totalBudget * (1 - reserveRate),
			MonthlySpent:    monthlyTotal,
			CumulativeSpent: cumulativeTotal,
			BudgetRemaining: totalBudget - cumulativeTotal,
			BudgetUsageRate: Percent(cumulativeTotal, totalBudget),
		},
		SubProjects:     spRows,
		CategorySummary: catRows,
		AlertsCount:     alerts,
		Forecast: ReportForecast{
			NextMonthEstimated:    Round2(forecastNext),
			RemainingMonthsBudget: remainingMonths,
		},
		Recommendations: recommendations(spRows, totalBudget, cumulativeTotal, reserveRate),
	}, nil
}

// scheduleStatus compares reported progress with the expected progress
// at the window end, clamped to the planned window. ±10 points counts
// as on track.
func scheduleStatus(sp *SubProject, windowEnd time.Time) string {
	if sp.PlannedStart == nil || sp.PlannedEnd == nil {
		return "正常"
	}
	totalDays := daysBetween(*sp.PlannedStart, *sp.PlannedEnd)
	if totalDays == 0 {
		totalDays = 1
	}
	ref := windowEnd
	if sp.PlannedEnd.Before(ref) {
		ref = *sp.PlannedEnd
	}
	elapsed := daysBetween(*sp.PlannedStart, ref)
	expected := float64(elapsed) / float64(totalDays) * 100
	if expected > 100 {
		expected = 100
	}
	if expected < 0 {
		expected = 0
	}
	switch {
	case sp.ProgressPercent < expected-10:
		return "滞后"
	case sp.ProgressPercent > expected+10:
		return "超前"
	}
	return "正常"
}

func recommendations(rows []ReportSubProject, totalBudget, cumulativeSpent, reserveRate float64) []string {
	recs := []string{}

	var overBudget, delayed []string
	for _, r := range rows {
		if r.RiskLevel == "red" {
			overBudget = append(overBudget, r.Name)
		}
		if r.ScheduleStatus == "滞后" {
			delayed = append(delayed, r.Name)
		}
	}
	if len(overBudget) > 0 {
		recs = append(recs, fmt.Sprintf("⚠️ 以下工程概算使用率超过90%%，建议重点关注并控制支出：%s", joinTop3(overBudget)))
	}
	if len(delayed) > 0 {
		recs = append(recs, fmt.Sprintf("⏰ 以下工程进度滞后，建议加大投入或调整计划：%s", joinTop3(delayed)))
	}
	if totalBudget > 0 && cumulativeSpent/totalBudget > 1-reserveRate {
		recs = append(recs, fmt.Sprintf("💰 总体概算已超过可用概算线（%.0f%%），正在使用弹性预备金", (1-reserveRate)*100))
	}
	if len(recs) == 0 {
		recs = append(recs, "✅ 当前各项指标正常，请继续保持")
	}
	return recs
}

func joinTop3(names []string) string {
	if len(names) > 3 {
		names = names[:3]
	}
	return strings.Join(names, "、")
}
