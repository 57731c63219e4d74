package budget_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taneng/budget-control/budget"
)

// fakeReportStore answers SumExpenditures from a flat record list so the
// window math is exercised for real.
type fakeReportStore struct {
	project      *budget.Project
	subProjects  []budget.SubProject
	categories   []budget.BudgetCategory
	expenditures []budget.Expenditure
	alerts       []budget.AlertLog
}

func (f *fakeReportStore) FirstProject(ctx context.Context) (*budget.Project, error) {
	return f.project, nil
}

func (f *fakeReportStore) ListSubProjects(ctx context.Context) ([]budget.SubProject, error) {
	return f.subProjects, nil
}

func (f *fakeReportStore) ListCategoriesByLevel(ctx context.Context, level int) ([]budget.BudgetCategory, error) {
	var out []budget.BudgetCategory
	for _, c := range f.categories {
		if c.Level == level {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeReportStore) SumExpenditures(ctx context.Context, flt budget.ExpenditureSumFilter) (float64, error) {
	total := 0.0
	for _, e := range f.expenditures {
		if flt.SubProjectID != nil && e.SubProjectID != *flt.SubProjectID {
			continue
		}
		if flt.CategoryID != nil && (e.CategoryID == nil || *e.CategoryID != *flt.CategoryID) {
			continue
		}
		if flt.From != nil && e.RecordDate.Before(*flt.From) {
			continue
		}
		if flt.To != nil && !e.RecordDate.Before(*flt.To) {
			continue
		}
		total += e.Amount
	}
	return total, nil
}

func (f *fakeReportStore) CountAlertsBetween(ctx context.Context, from, to time.Time) (budget.AlertCounts, error) {
	var c budget.AlertCounts
	for _, a := range f.alerts {
		if a.CreatedAt.Before(from) || !a.CreatedAt.Before(to) {
			continue
		}
		c.Total++
		switch a.Level {
		case budget.LevelRed:
			c.Red++
		case budget.LevelYellow:
			c.Yellow++
		}
	}
	return c, nil
}

func day(year int, month time.Month, d int) time.Time {
	return time.Date(year, month, d, 0, 0, 0, 0, time.UTC)
}

func reportStore() *fakeReportStore {
	catID := int64(10)
	return &fakeReportStore{
		project: &budget.Project{
			ID: 1, Name: "技改项目", TotalBudget: 10000, ReserveRate: 0.07,
		},
		subProjects: []budget.SubProject{
			{
				ID: 1, Name: "主井筒改造工程", Category: "矿建工程费",
				AllocatedBudget: 1000, ActualSpent: 250, ProgressPercent: 40,
				Status:       budget.SubProjectInProgress,
				PlannedStart: datePtr(2025, 1, 1), PlannedEnd: datePtr(2025, 12, 31),
			},
			{
				ID: 2, Name: "零概算工程", Category: "其他费用",
				AllocatedBudget: 0, ActualSpent: 0,
				Status: budget.SubProjectNotStarted,
			},
		},
		categories: []budget.BudgetCategory{
			{ID: 10, Name: "矿建工程费", Level: 1, BudgetAmount: 5000},
			{ID: 11, Name: "预备费", Level: 1, BudgetAmount: 0},
			{ID: 20, Name: "主井筒改造", Level: 2, BudgetAmount: 1000},
		},
		expenditures: []budget.Expenditure{
			{SubProjectID: 1, CategoryID: &catID, RecordDate: day(2025, 7, 10), Amount: 100},
			{SubProjectID: 1, CategoryID: &catID, RecordDate: day(2025, 8, 5), Amount: 150},
		},
	}
}

func TestMonthlyReport_WindowAndTotals(t *testing.T) {
	g := budget.NewReportGenerator(reportStore(), 56397.84, 0.07)
	g.Now = func() time.Time { return day(2025, 9, 1) }

	rep, err := g.Monthly(context.Background(), 2025, 8)
	require.NoError(t, err)

	assert.Equal(t, "2025年8月", rep.ReportPeriod)
	// July spend is outside the month but inside the cumulative total.
	assert.Equal(t, 150.0, rep.Overview.MonthlySpent)
	assert.Equal(t, 250.0, rep.Overview.CumulativeSpent)
	assert.Equal(t, 10000.0, rep.Overview.TotalBudget)
	assert.Equal(t, 9750.0, rep.Overview.BudgetRemaining)
	assert.Equal(t, 2.5, rep.Overview.BudgetUsageRate)
	assert.InDelta(t, 700.0, rep.Overview.ReserveBudget, 0.001)
}

func TestMonthlyReport_SubProjectRows(t *testing.T) {
	g := budget.NewReportGenerator(reportStore(), 56397.84, 0.07)
	rep, err := g.Monthly(context.Background(), 2025, 8)
	require.NoError(t, err)

	require.Len(t, rep.SubProjects, 2)
	row := rep.SubProjects[0]
	assert.Equal(t, 150.0, row.MonthlySpent)
	assert.Equal(t, 250.0, row.CumulativeSpent)
	assert.Equal(t, 25.0, row.BudgetUsageRate)
	assert.Equal(t, "green", row.RiskLevel)
	// Expected progress at window end (2025-09-01) is ~66%; reported 40%.
	assert.Equal(t, "滞后", row.ScheduleStatus)

	// Zero-budget row: usage rate must be 0, not NaN.
	assert.Equal(t, 0.0, rep.SubProjects[1].BudgetUsageRate)
	assert.Equal(t, "正常", rep.SubProjects[1].ScheduleStatus)
}

func TestMonthlyReport_CategorySummaryUsageRate(t *testing.T) {
	g := budget.NewReportGenerator(reportStore(), 56397.84, 0.07)
	rep, err := g.Monthly(context.Background(), 2025, 8)
	require.NoError(t, err)

	// Only level-1 categories appear.
	require.Len(t, rep.CategorySummary, 2)
	cat := rep.CategorySummary[0]
	assert.Equal(t, "矿建工程费", cat.Name)
	assert.Equal(t, 150.0, cat.MonthlySpent)
	assert.Equal(t, 250.0, cat.CumulativeSpent)
	assert.Equal(t, 5.0, cat.UsageRate) // 250/5000*100

	// Zero budget keeps usage_rate at 0.
	assert.Equal(t, 0.0, rep.CategorySummary[1].UsageRate)
}

func TestMonthlyReport_Forecast(t *testing.T) {
	store := reportStore()
	g := budget.NewReportGenerator(store, 56397.84, 0.07)

	rep, err := g.Monthly(context.Background(), 2025, 8)
	require.NoError(t, err)
	// Prior 30-day window holds the July 100 -> mean(150, 100).
	assert.Equal(t, 125.0, rep.Forecast.NextMonthEstimated)
	require.NotNil(t, rep.Forecast.RemainingMonthsBudget)
	assert.Equal(t, 65.0, *rep.Forecast.RemainingMonthsBudget) // (10000-250)/150

	// Without prior history the forecast is just this month.
	store.expenditures = store.expenditures[1:]
	rep, err = g.Monthly(context.Background(), 2025, 8)
	require.NoError(t, err)
	assert.Equal(t, 150.0, rep.Forecast.NextMonthEstimated)
}

func TestMonthlyReport_Recommendations(t *testing.T) {
	store := reportStore()
	store.subProjects[0].ActualSpent = 950 // 95% -> red risk
	g := budget.NewReportGenerator(store, 56397.84, 0.07)

	rep, err := g.Monthly(context.Background(), 2025, 8)
	require.NoError(t, err)

	require.NotEmpty(t, rep.Recommendations)
	assert.Contains(t, rep.Recommendations[0], "主井筒改造工程")
	assert.Contains(t, rep.Recommendations[0], "⚠️")
}

func TestMonthlyReport_AllClearRecommendation(t *testing.T) {
	store := reportStore()
	store.subProjects[0].ProgressPercent = 70 // not lagging
	g := budget.NewReportGenerator(store, 56397.84, 0.07)

	rep, err := g.Monthly(context.Background(), 2025, 8)
	require.NoError(t, err)

	require.Len(t, rep.Recommendations, 1)
	assert.Contains(t, rep.Recommendations[0], "✅")
}

func TestMonthlyReport_DecemberWindowRollsYear(t *testing.T) {
	store := reportStore()
	store.expenditures = []budget.Expenditure{
		{SubProjectID: 1, RecordDate: day(2025, 12, 31), Amount: 40},
		{SubProjectID: 1, RecordDate: day(2026, 1, 1), Amount: 999},
	}
	g := budget.NewReportGenerator(store, 56397.84, 0.07)

	rep, err := g.Monthly(context.Background(), 2025, 12)
	require.NoError(t, err)
	assert.Equal(t, 40.0, rep.Overview.MonthlySpent)
}
