package budget_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taneng/budget-control/budget"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

// fakeAlertStore is an in-memory AlertStore for engine tests; the SQLite
// implementation is covered in store/sqlite.
type fakeAlertStore struct {
	subProjects []budget.SubProject
	project     *budget.Project
	totalSpent  float64
	firstExp    *time.Time

	alerts []budget.AlertLog
	nextID int64
}

func (f *fakeAlertStore) ListSubProjects(ctx context.Context) ([]budget.SubProject, error) {
	return f.subProjects, nil
}

func (f *fakeAlertStore) FirstProject(ctx context.Context) (*budget.Project, error) {
	return f.project, nil
}

func (f *fakeAlertStore) TotalExpenditure(ctx context.Context) (float64, error) {
	return f.totalSpent, nil
}

func (f *fakeAlertStore) FirstExpenditureDate(ctx context.Context) (*time.Time, error) {
	return f.firstExp, nil
}

func (f *fakeAlertStore) FindUnresolvedAlert(ctx context.Context, alertType budget.AlertType, relatedType budget.RelatedKind, relatedID int64) (*budget.AlertLog, error) {
	for i := len(f.alerts) - 1; i >= 0; i-- {
		a := &f.alerts[i]
		if a.AlertType == alertType && a.RelatedType == relatedType && a.RelatedID == relatedID && !a.IsResolved {
			return a, nil
		}
	}
	return nil, nil
}

func (f *fakeAlertStore) InsertAlert(ctx context.Context, a *budget.AlertLog) error {
	f.nextID++
	a.ID = f.nextID
	a.CreatedAt = time.Now()
	f.alerts = append(f.alerts, *a)
	return nil
}

func (f *fakeAlertStore) UpdateAlert(ctx context.Context, a *budget.AlertLog) error {
	for i := range f.alerts {
		if f.alerts[i].ID == a.ID {
			f.alerts[i] = *a
			return nil
		}
	}
	return nil
}

func newChecker(store *fakeAlertStore) *budget.AlertChecker {
	c := budget.NewAlertChecker(store, budget.DefaultThresholds())
	c.Now = func() time.Time { return time.Date(2025, 8, 15, 10, 0, 0, 0, time.UTC) }
	return c
}

func datePtr(year int, month time.Month, day int) *time.Time {
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return &t
}

// =============================================================================
// BUDGET OVERRUN
// =============================================================================

func TestAlertCheck_OverrunRed(t *testing.T) {
	store := &fakeAlertStore{
		subProjects: []budget.SubProject{
			{ID: 1, Name: "主井筒改造工程", AllocatedBudget: 100, ActualSpent: 95, Status: budget.SubProjectInProgress},
		},
	}

	res, err := newChecker(store).Check(context.Background())
	require.NoError(t, err)

	require.Len(t, store.alerts, 1)
	assert.Equal(t, budget.LevelRed, store.alerts[0].Level)
	assert.Equal(t, "概算严重超支预警", store.alerts[0].Title)
	assert.Equal(t, []string{"概算严重超支预警"}, res.Generated)
	assert.Contains(t, store.alerts[0].Message, "95.0%")
}

func TestAlertCheck_Idempotent(t *testing.T) {
	// Second run with unchanged data must not create new rows.
	store := &fakeAlertStore{
		subProjects: []budget.SubProject{
			{ID: 1, Name: "主井筒改造工程", AllocatedBudget: 100, ActualSpent: 95},
		},
	}
	checker := newChecker(store)

	_, err := checker.Check(context.Background())
	require.NoError(t, err)
	res, err := checker.Check(context.Background())
	require.NoError(t, err)

	assert.Len(t, store.alerts, 1)
	assert.Empty(t, res.Generated)
	assert.Equal(t, []string{"概算严重超支预警"}, res.Updated)
}

func TestAlertCheck_YellowEscalatesToRedInPlace(t *testing.T) {
	// 85/100 yields yellow; after spend rises to 95/100 the SAME row
	// becomes red, not a second row.
	store := &fakeAlertStore{
		subProjects: []budget.SubProject{
			{ID: 1, Name: "巷道掘进", AllocatedBudget: 100, ActualSpent: 85},
		},
	}
	checker := newChecker(store)

	_, err := checker.Check(context.Background())
	require.NoError(t, err)
	require.Len(t, store.alerts, 1)
	assert.Equal(t, budget.LevelYellow, store.alerts[0].Level)

	store.subProjects[0].ActualSpent = 95
	res, err := checker.Check(context.Background())
	require.NoError(t, err)

	require.Len(t, store.alerts, 1)
	assert.Equal(t, budget.LevelRed, store.alerts[0].Level)
	assert.Empty(t, res.Generated)
}

func TestAlertCheck_ResolvedAlertNotReused(t *testing.T) {
	store := &fakeAlertStore{
		subProjects: []budget.SubProject{
			{ID: 1, Name: "巷道掘进", AllocatedBudget: 100, ActualSpent: 95},
		},
	}
	checker := newChecker(store)

	_, err := checker.Check(context.Background())
	require.NoError(t, err)
	store.alerts[0].IsResolved = true

	res, err := checker.Check(context.Background())
	require.NoError(t, err)

	assert.Len(t, store.alerts, 2)
	assert.Len(t, res.Generated, 1)
}

func TestAlertCheck_ZeroBudgetSkipped(t *testing.T) {
	store := &fakeAlertStore{
		subProjects: []budget.SubProject{
			{ID: 1, Name: "待定工程", AllocatedBudget: 0, ActualSpent: 50},
		},
	}

	_, err := newChecker(store).Check(context.Background())
	require.NoError(t, err)
	assert.Empty(t, store.alerts)
}

// =============================================================================
// SCHEDULE DELAY
// =============================================================================

func TestAlertCheck_ScheduleDelay(t *testing.T) {
	// Window 2025-01-01..2025-12-31, checked at 2025-08-15: expected
	// progress ~62%. Actual 10% -> gap >= 20 points -> red.
	store := &fakeAlertStore{
		subProjects: []budget.SubProject{
			{
				ID: 2, Name: "通风系统改造", Status: budget.SubProjectInProgress,
				PlannedStart: datePtr(2025, 1, 1), PlannedEnd: datePtr(2025, 12, 31),
				ProgressPercent: 10,
			},
		},
	}

	_, err := newChecker(store).Check(context.Background())
	require.NoError(t, err)

	require.Len(t, store.alerts, 1)
	assert.Equal(t, budget.AlertScheduleDelay, store.alerts[0].AlertType)
	assert.Equal(t, budget.LevelRed, store.alerts[0].Level)
	assert.Equal(t, "工期延误预警", store.alerts[0].Title)
}

func TestAlertCheck_ScheduleDelayYellowUnder20Points(t *testing.T) {
	// Expected ~62%, actual 50% -> gap ~12 points -> yellow.
	store := &fakeAlertStore{
		subProjects: []budget.SubProject{
			{
				ID: 2, Name: "通风系统改造", Status: budget.SubProjectInProgress,
				PlannedStart: datePtr(2025, 1, 1), PlannedEnd: datePtr(2025, 12, 31),
				ProgressPercent: 50,
			},
		},
	}

	_, err := newChecker(store).Check(context.Background())
	require.NoError(t, err)

	require.Len(t, store.alerts, 1)
	assert.Equal(t, budget.LevelYellow, store.alerts[0].Level)
}

func TestAlertCheck_CompletedSubProjectNotDelayChecked(t *testing.T) {
	store := &fakeAlertStore{
		subProjects: []budget.SubProject{
			{
				ID: 2, Name: "办公楼改造", Status: budget.SubProjectCompleted,
				PlannedStart: datePtr(2025, 1, 1), PlannedEnd: datePtr(2025, 6, 30),
				ProgressPercent: 100,
			},
		},
	}

	_, err := newChecker(store).Check(context.Background())
	require.NoError(t, err)
	assert.Empty(t, store.alerts)
}

// =============================================================================
// BURN RATE
// =============================================================================

func TestAlertCheck_BurnRateProjection(t *testing.T) {
	// 1000 spent over ~5 months (first spend 2025-03-15), ~6.5 months
	// left until 2026-03-01. Projection overshoots the 2000 budget by
	// more than 10% -> red.
	store := &fakeAlertStore{
		project: &budget.Project{
			ID: 1, Name: "技改项目", TotalBudget: 2000,
			EndDate: datePtr(2026, 3, 1),
		},
		totalSpent: 1000,
		firstExp:   datePtr(2025, 3, 15),
	}

	_, err := newChecker(store).Check(context.Background())
	require.NoError(t, err)

	require.Len(t, store.alerts, 1)
	assert.Equal(t, budget.AlertBurnRate, store.alerts[0].AlertType)
	assert.Equal(t, budget.LevelRed, store.alerts[0].Level)
	assert.Equal(t, budget.RelatedProject, store.alerts[0].RelatedType)
}

func TestAlertCheck_BurnRateSkippedWithoutExpenditures(t *testing.T) {
	store := &fakeAlertStore{
		project: &budget.Project{
			ID: 1, Name: "技改项目", TotalBudget: 2000,
			EndDate: datePtr(2026, 3, 1),
		},
		totalSpent: 0,
		firstExp:   nil,
	}

	_, err := newChecker(store).Check(context.Background())
	require.NoError(t, err)
	assert.Empty(t, store.alerts)
}
