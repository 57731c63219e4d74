package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taneng/budget-control/budget"
	"github.com/taneng/budget-control/store/sqlite"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// seedSubProject creates a project plus one sub-project and returns the
// sub-project id.
func seedSubProject(t *testing.T, store *sqlite.Store, allocated float64) int64 {
	t.Helper()
	ctx := context.Background()

	p := &budget.Project{Name: "技改项目", TotalBudget: 56397.84, ReserveRate: 0.07}
	require.NoError(t, store.CreateProject(ctx, p))

	sp := &budget.SubProject{
		ProjectID:       p.ID,
		Name:            "主井筒改造工程",
		Category:        "矿建工程费",
		AllocatedBudget: allocated,
		Status:          budget.SubProjectInProgress,
	}
	require.NoError(t, store.CreateSubProject(ctx, sp))
	return sp.ID
}

func spent(t *testing.T, store *sqlite.Store, id int64) float64 {
	t.Helper()
	sp, err := store.GetSubProject(context.Background(), id)
	require.NoError(t, err)
	return sp.ActualSpent
}

// =============================================================================
// RECOMPUTE CASCADE
// =============================================================================

func TestExpenditureCascade_CreateUpdateDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	spID := seedSubProject(t, store, 1000)

	ci := &budget.CostItem{SubProjectID: spID, Name: "钢材", BudgetAmount: 300}
	require.NoError(t, store.CreateCostItem(ctx, ci))

	// GIVEN two expenditures, one attached to the cost item
	e1 := &budget.Expenditure{
		CostItemID: &ci.ID, SubProjectID: spID,
		RecordDate: date(2025, 4, 10), Amount: 120.5,
	}
	require.NoError(t, store.CreateExpenditure(ctx, e1))
	e2 := &budget.Expenditure{
		SubProjectID: spID, RecordDate: date(2025, 5, 2), Amount: 80,
	}
	require.NoError(t, store.CreateExpenditure(ctx, e2))

	assert.Equal(t, 200.5, spent(t, store, spID))
	item, err := store.GetCostItem(ctx, ci.ID)
	require.NoError(t, err)
	assert.Equal(t, 120.5, item.ActualAmount)

	// WHEN the attached record's amount changes
	e1.Amount = 150
	require.NoError(t, store.UpdateExpenditure(ctx, e1))
	assert.Equal(t, 230.0, spent(t, store, spID))
	item, err = store.GetCostItem(ctx, ci.ID)
	require.NoError(t, err)
	assert.Equal(t, 150.0, item.ActualAmount)

	// WHEN it is deleted, both totals drop back
	require.NoError(t, store.DeleteExpenditure(ctx, e1.ID))
	assert.Equal(t, 80.0, spent(t, store, spID))
	item, err = store.GetCostItem(ctx, ci.ID)
	require.NoError(t, err)
	assert.Equal(t, 0.0, item.ActualAmount)
}

func TestExpenditureCascade_BatchRecomputesOnce(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	spID := seedSubProject(t, store, 1000)

	var batch []*budget.Expenditure
	for i := 1; i <= 5; i++ {
		batch = append(batch, &budget.Expenditure{
			SubProjectID: spID,
			RecordDate:   date(2025, 6, i),
			Amount:       10,
			Source:       budget.SourceExcelImport,
		})
	}
	require.NoError(t, store.BatchInsertExpenditures(ctx, batch))

	assert.Equal(t, 50.0, spent(t, store, spID))
	for _, e := range batch {
		assert.NotZero(t, e.ID)
	}
}

func TestExpenditureCascade_UpdateMovesBetweenSubProjects(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	spA := seedSubProject(t, store, 1000)

	spB := &budget.SubProject{ProjectID: 1, Name: "巷道掘进", AllocatedBudget: 500}
	require.NoError(t, store.CreateSubProject(ctx, spB))

	e := &budget.Expenditure{SubProjectID: spA, RecordDate: date(2025, 7, 1), Amount: 90}
	require.NoError(t, store.CreateExpenditure(ctx, e))
	require.Equal(t, 90.0, spent(t, store, spA))

	// Moving the record re-sums BOTH sides.
	e.SubProjectID = spB.ID
	require.NoError(t, store.UpdateExpenditure(ctx, e))

	assert.Equal(t, 0.0, spent(t, store, spA))
	assert.Equal(t, 90.0, spent(t, store, spB.ID))
}

func TestDeleteSubProjectCascades(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	spID := seedSubProject(t, store, 1000)

	ci := &budget.CostItem{SubProjectID: spID, Name: "人工费"}
	require.NoError(t, store.CreateCostItem(ctx, ci))
	require.NoError(t, store.CreateExpenditure(ctx, &budget.Expenditure{
		SubProjectID: spID, CostItemID: &ci.ID, RecordDate: date(2025, 4, 1), Amount: 10,
	}))

	require.NoError(t, store.DeleteSubProject(ctx, spID))

	_, total, err := store.ListExpenditures(ctx, sqlite.ExpenditureFilter{SubProjectID: &spID})
	require.NoError(t, err)
	assert.Zero(t, total)
	_, err = store.GetCostItem(ctx, ci.ID)
	assert.True(t, budget.IsNotFound(err))
}

// =============================================================================
// EXPENDITURE QUERIES
// =============================================================================

func TestListExpenditures_FiltersAndPaging(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	spID := seedSubProject(t, store, 1000)

	for i := 1; i <= 7; i++ {
		require.NoError(t, store.CreateExpenditure(ctx, &budget.Expenditure{
			SubProjectID: spID, RecordDate: date(2025, 3, i), Amount: float64(i),
		}))
	}

	items, total, err := store.ListExpenditures(ctx, sqlite.ExpenditureFilter{
		SubProjectID: &spID, Page: 2, PageSize: 3,
	})
	require.NoError(t, err)
	assert.Equal(t, 7, total)
	require.Len(t, items, 3)
	// record_date desc: page 2 holds days 4, 3, 2
	assert.Equal(t, 4.0, items[0].Amount)

	start := date(2025, 3, 3)
	end := date(2025, 3, 6) // exclusive
	items, total, err = store.ListExpenditures(ctx, sqlite.ExpenditureFilter{Start: &start, End: &end})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, items, 3)
}

func TestSummarizeExpenditures_MonthlyBreakdown(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	spID := seedSubProject(t, store, 1000)

	require.NoError(t, store.CreateExpenditure(ctx, &budget.Expenditure{
		SubProjectID: spID, RecordDate: date(2025, 3, 10), Amount: 100,
	}))
	require.NoError(t, store.CreateExpenditure(ctx, &budget.Expenditure{
		SubProjectID: spID, RecordDate: date(2025, 3, 20), Amount: 50,
	}))
	require.NoError(t, store.CreateExpenditure(ctx, &budget.Expenditure{
		SubProjectID: spID, RecordDate: date(2025, 4, 1), Amount: 25,
	}))

	sum, err := store.SummarizeExpenditures(ctx, sqlite.ExpenditureFilter{})
	require.NoError(t, err)
	assert.Equal(t, 175.0, sum.Total)
	require.Len(t, sum.Monthly, 2)
	assert.Equal(t, "2025-03", sum.Monthly[0].Month)
	assert.Equal(t, 150.0, sum.Monthly[0].Amount)
}

// =============================================================================
// CATEGORIES
// =============================================================================

func TestCategoryParentLevelValidation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	root := &budget.BudgetCategory{Name: "矿建工程费", Code: "MJ", Level: 1, BudgetAmount: 13176.53}
	require.NoError(t, store.CreateCategory(ctx, root))

	// Level 3 directly under a level 1 parent violates the hierarchy.
	bad := &budget.BudgetCategory{Name: "材料费", Level: 3, ParentID: &root.ID}
	err := store.CreateCategory(ctx, bad)
	require.Error(t, err)
	assert.True(t, budget.IsClientError(err))

	child := &budget.BudgetCategory{Name: "主井筒改造", Code: "MJ-01", Level: 2, ParentID: &root.ID}
	require.NoError(t, store.CreateCategory(ctx, child))
}

func TestDeleteCategory_GuardedWhileInUse(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	spID := seedSubProject(t, store, 1000)

	root := &budget.BudgetCategory{Name: "安装工程费", Code: "AZ", Level: 1}
	require.NoError(t, store.CreateCategory(ctx, root))
	child := &budget.BudgetCategory{Name: "供电系统", Code: "AZ-01", Level: 2, ParentID: &root.ID}
	require.NoError(t, store.CreateCategory(ctx, child))

	// Parent blocked by the child.
	err := store.DeleteCategory(ctx, root.ID)
	assert.True(t, budget.IsClientError(err))

	// Child blocked by a cost item.
	require.NoError(t, store.CreateCostItem(ctx, &budget.CostItem{
		SubProjectID: spID, CategoryID: &child.ID, Name: "电缆",
	}))
	err = store.DeleteCategory(ctx, child.ID)
	assert.True(t, budget.IsClientError(err))
}

func TestCategoryActualSpentComputed(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	spID := seedSubProject(t, store, 1000)

	cat := &budget.BudgetCategory{Name: "土建工程费", Code: "TJ", Level: 1, BudgetAmount: 9035.35}
	require.NoError(t, store.CreateCategory(ctx, cat))
	require.NoError(t, store.CreateExpenditure(ctx, &budget.Expenditure{
		SubProjectID: spID, CategoryID: &cat.ID, RecordDate: date(2025, 5, 5), Amount: 42,
	}))

	got, err := store.GetCategory(ctx, cat.ID)
	require.NoError(t, err)
	assert.Equal(t, 42.0, got.ActualSpent)
}

// =============================================================================
// ALERT STORE AGAINST THE REAL CHECKER
// =============================================================================

func TestAlertChecker_AgainstSQLiteStore(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	spID := seedSubProject(t, store, 100)

	require.NoError(t, store.CreateExpenditure(ctx, &budget.Expenditure{
		SubProjectID: spID, RecordDate: date(2025, 4, 1), Amount: 95,
	}))

	checker := budget.NewAlertChecker(store, budget.DefaultThresholds())
	res, err := checker.Check(ctx)
	require.NoError(t, err)
	assert.Contains(t, res.Generated, "概算严重超支预警")

	// Second run updates in place instead of inserting.
	res, err = checker.Check(ctx)
	require.NoError(t, err)
	assert.Empty(t, res.Generated)

	unresolved := false
	alerts, err := store.ListAlerts(ctx, sqlite.AlertFilter{IsResolved: &unresolved})
	require.NoError(t, err)

	var overruns int
	for _, a := range alerts {
		if a.AlertType == budget.AlertBudgetOverrun {
			overruns++
		}
	}
	assert.Equal(t, 1, overruns)
}

func TestResolveAlert_StampsAndStats(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	a := &budget.AlertLog{
		AlertType: budget.AlertBudgetOverrun, Level: budget.LevelRed,
		Title: "概算严重超支预警", RelatedType: budget.RelatedSubProject, RelatedID: 1,
	}
	require.NoError(t, store.InsertAlert(ctx, a))
	require.NoError(t, store.ResolveAlert(ctx, a.ID))

	found, err := store.FindUnresolvedAlert(ctx, a.AlertType, a.RelatedType, a.RelatedID)
	require.NoError(t, err)
	assert.Nil(t, found)

	stats, err := store.GetAlertStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Total)
	assert.Equal(t, 0, stats.Unresolved)
}

// =============================================================================
// PROGRESS RECORDS
// =============================================================================

func TestCreateProgressRecord_FlipsStatus(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	p := &budget.Project{Name: "技改项目", TotalBudget: 56397.84, ReserveRate: 0.07}
	require.NoError(t, store.CreateProject(ctx, p))
	sp := &budget.SubProject{ProjectID: p.ID, Name: "通风系统改造", AllocatedBudget: 800}
	require.NoError(t, store.CreateSubProject(ctx, sp))
	require.Equal(t, budget.SubProjectNotStarted, sp.Status)

	require.NoError(t, store.CreateProgressRecord(ctx, &budget.ProgressRecord{
		SubProjectID: sp.ID, RecordDate: date(2025, 5, 1), Percent: 30,
	}))
	got, err := store.GetSubProject(ctx, sp.ID)
	require.NoError(t, err)
	assert.Equal(t, budget.SubProjectInProgress, got.Status)
	assert.Equal(t, 30.0, got.ProgressPercent)

	require.NoError(t, store.CreateProgressRecord(ctx, &budget.ProgressRecord{
		SubProjectID: sp.ID, RecordDate: date(2025, 9, 1), Percent: 100,
	}))
	got, err = store.GetSubProject(ctx, sp.ID)
	require.NoError(t, err)
	assert.Equal(t, budget.SubProjectCompleted, got.Status)
}

// =============================================================================
// SIMULATIONS
// =============================================================================

func TestSimulationRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	sim := &budget.Simulation{
		Name:    "方案对比",
		SimType: budget.SimScenarioCompare,
		Scenarios: []budget.SimScenario{
			{
				Name:        "正常方案",
				Parameters:  map[string]float64{"budget_factor": 1.0},
				Results:     map[string]float64{"adjusted_total_budget": 56397.84},
				TotalCost:   56397.84,
				TotalReturn: 67677.41,
				ROI:         20,
			},
		},
	}
	require.NoError(t, store.SaveSimulation(ctx, sim))
	require.NotEmpty(t, sim.ID)

	got, err := store.GetSimulation(ctx, sim.ID)
	require.NoError(t, err)
	require.Len(t, got.Scenarios, 1)
	assert.Equal(t, 1.0, got.Scenarios[0].Parameters["budget_factor"])
	assert.Equal(t, 20.0, got.Scenarios[0].ROI)

	require.NoError(t, store.DeleteSimulation(ctx, sim.ID))
	_, err = store.GetSimulation(ctx, sim.ID)
	assert.True(t, budget.IsNotFound(err))
}

// =============================================================================
// USERS / CASH FLOW / SETTLEMENT SMOKE
// =============================================================================

func TestUserUniqueUsername(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	u := &budget.User{Username: "admin", FullName: "系统管理员", PasswordHash: "x", Role: budget.RoleAdmin, IsActive: true}
	require.NoError(t, store.CreateUser(ctx, u))

	dup := &budget.User{Username: "admin", FullName: "重名", PasswordHash: "y", Role: budget.RoleViewer, IsActive: true}
	err := store.CreateUser(ctx, dup)
	assert.True(t, budget.IsClientError(err))
}

func TestCashFlowSummary_ExcludesCancelled(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	p := &budget.Project{Name: "技改项目", TotalBudget: 56397.84}
	require.NoError(t, store.CreateProject(ctx, p))

	mk := func(ft budget.FlowType, amount float64, status budget.CashFlowStatus) {
		require.NoError(t, store.CreateCashFlow(ctx, &budget.CashFlow{
			ProjectID: p.ID, FlowType: ft, Amount: amount,
			RecordDate: date(2025, 6, 15), Status: status,
		}))
	}
	mk(budget.FlowInflow, 1000, budget.CashFlowApproved)
	mk(budget.FlowOutflow, 400, budget.CashFlowPaid)
	mk(budget.FlowOutflow, 999, budget.CashFlowCancelled)

	sum, err := store.SummarizeCashFlows(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1000.0, sum.TotalInflow)
	assert.Equal(t, 400.0, sum.TotalOutflow)
	assert.Equal(t, 600.0, sum.NetFlow)
	require.Len(t, sum.Monthly, 1)
	assert.Equal(t, "2025-06", sum.Monthly[0].Month)
}

func TestWarehouseStats_TeamSummaryOrdered(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	d := date(2025, 2, 1)
	require.NoError(t, store.InsertWarehouseOutbound(ctx, []budget.WarehouseOutbound{
		{Team: "掘进一队", ApplyDate: &d, MaterialName: "锚杆", Amount: 100},
		{Team: "机电队", ApplyDate: &d, MaterialName: "电缆", Amount: 500},
		{Team: "掘进一队", ApplyDate: &d, MaterialName: "水泥", Amount: 50},
	}))

	stats, err := store.WarehouseOutboundStats(ctx, sqlite.WarehouseFilter{})
	require.NoError(t, err)
	assert.Equal(t, 3, stats.RecordCount)
	assert.Equal(t, 650.0, stats.TotalAmount)
	require.Len(t, stats.TeamSummary, 2)
	assert.Equal(t, "机电队", stats.TeamSummary[0].Team)
	assert.Equal(t, 150.0, stats.TeamSummary[1].TotalAmount)
}
