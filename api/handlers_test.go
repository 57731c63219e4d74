/*
handlers_test.go - HTTP round-trip tests against the full router

Tests for:
- Login and token issuance
- Role gates on write endpoints
- Expenditure entry and the spent-total cascade
- Alert check trigger
- Monthly report and dashboard endpoints
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taneng/budget-control/auth"
	"github.com/taneng/budget-control/budget"
	"github.com/taneng/budget-control/config"
	"github.com/taneng/budget-control/store/sqlite"
)

type testEnv struct {
	store  *sqlite.Store
	router http.Handler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	cfg := &config.Config{
		SecretKey:              "test-secret",
		TotalBudget:            1000,
		ReserveRate:            0.07,
		AlertYellowThreshold:   0.80,
		AlertRedThreshold:      0.90,
		ProgressDelayThreshold: 0.10,
		TokenTTL:               time.Hour,
		CORSOrigins:            []string{"*"},
	}
	return &testEnv{store: store, router: NewRouter(NewHandler(store, cfg))}
}

func (e *testEnv) createUser(t *testing.T, username, password string, role budget.Role) *budget.User {
	t.Helper()
	hash, err := auth.HashPassword(password)
	require.NoError(t, err)
	u := &budget.User{
		Username:     username,
		FullName:     username,
		PasswordHash: hash,
		Role:         role,
		IsActive:     true,
	}
	require.NoError(t, e.store.CreateUser(context.Background(), u))
	return u
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) login(t *testing.T, username, password string) string {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/auth/login", "", LoginRequest{
		Username: username,
		Password: password,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp LoginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.AccessToken)
	return resp.AccessToken
}

// seedPlan creates a project with one sub-project and returns its id.
func (e *testEnv) seedPlan(t *testing.T) int64 {
	t.Helper()
	ctx := context.Background()
	p := &budget.Project{
		Name:        "煤矿技术改造项目",
		TotalBudget: 1000,
		ReserveRate: 0.07,
		Status:      budget.ProjectInProgress,
	}
	require.NoError(t, e.store.CreateProject(ctx, p))
	sp := &budget.SubProject{
		ProjectID:       p.ID,
		Name:            "主井筒改造工程",
		Category:        "矿建工程",
		AllocatedBudget: 100,
		Status:          budget.SubProjectInProgress,
	}
	require.NoError(t, e.store.CreateSubProject(ctx, sp))
	return sp.ID
}

// =============================================================================
// AUTH
// =============================================================================

func TestLogin_Success(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "leader", "leader123", budget.RoleLeader)

	rec := env.do(t, http.MethodPost, "/api/auth/login", "", LoginRequest{
		Username: "leader",
		Password: "leader123",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp LoginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "bearer", resp.TokenType)
	assert.Equal(t, "leader", resp.User.Username)
	assert.Equal(t, "leader", resp.User.Role)
	assert.NotEmpty(t, resp.AccessToken)
}

func TestLogin_WrongPassword(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "leader", "leader123", budget.RoleLeader)

	rec := env.do(t, http.MethodPost, "/api/auth/login", "", LoginRequest{
		Username: "leader",
		Password: "nope",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Unknown user gets the same message as a bad password.
	rec = env.do(t, http.MethodPost, "/api/auth/login", "", LoginRequest{
		Username: "ghost",
		Password: "nope",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogin_DisabledAccount(t *testing.T) {
	env := newTestEnv(t)
	u := env.createUser(t, "gone", "gone123", budget.RoleViewer)
	u.IsActive = false
	require.NoError(t, env.store.UpdateUser(context.Background(), u))

	rec := env.do(t, http.MethodPost, "/api/auth/login", "", LoginRequest{
		Username: "gone",
		Password: "gone123",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAuthenticationRequired(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/sub-projects", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/sub-projects", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMe(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "viewer", "view123", budget.RoleViewer)
	token := env.login(t, "viewer", "view123")

	rec := env.do(t, http.MethodGet, "/api/auth/me", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var user UserDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &user))
	assert.Equal(t, "viewer", user.Username)
}

// =============================================================================
// ROLE GATES
// =============================================================================

func TestRoleGates(t *testing.T) {
	env := newTestEnv(t)
	spID := env.seedPlan(t)
	env.createUser(t, "viewer", "view123", budget.RoleViewer)
	env.createUser(t, "eng", "eng123", budget.RoleDepartment)
	env.createUser(t, "admin", "admin123", budget.RoleAdmin)
	viewerToken := env.login(t, "viewer", "view123")
	engToken := env.login(t, "eng", "eng123")
	adminToken := env.login(t, "admin", "admin123")

	expReq := ExpenditureRequest{
		SubProjectID: spID,
		RecordDate:   "2025-06-10",
		Amount:       5,
	}

	// Viewers read but never write.
	rec := env.do(t, http.MethodGet, "/api/expenditures", viewerToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = env.do(t, http.MethodPost, "/api/expenditures", viewerToken, expReq)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Department staff record expenditures but cannot delete them.
	rec = env.do(t, http.MethodPost, "/api/expenditures", engToken, expReq)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created ExpenditureDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = env.do(t, http.MethodDelete, fmt.Sprintf("/api/expenditures/%d", created.ID), engToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodDelete, fmt.Sprintf("/api/expenditures/%d", created.ID), adminToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	// User management is admin-only.
	rec = env.do(t, http.MethodGet, "/api/users", engToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = env.do(t, http.MethodGet, "/api/users", adminToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

// =============================================================================
// EXPENDITURES
// =============================================================================

func TestExpenditureRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	spID := env.seedPlan(t)
	env.createUser(t, "eng", "eng123", budget.RoleDepartment)
	token := env.login(t, "eng", "eng123")

	rec := env.do(t, http.MethodPost, "/api/expenditures", token, ExpenditureRequest{
		SubProjectID: spID,
		RecordDate:   "2025-06-10",
		Amount:       30,
		Description:  "井筒支护材料",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodGet, "/api/expenditures", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list ExpenditureListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Equal(t, 1, list.Total)
	assert.Equal(t, 30.0, list.Items[0].Amount)
	assert.Equal(t, "manual", list.Items[0].Source)

	// The sub-project's denormalized total follows.
	rec = env.do(t, http.MethodGet, fmt.Sprintf("/api/sub-projects/%d", spID), token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var sp SubProjectDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sp))
	assert.Equal(t, 30.0, sp.ActualSpent)
	assert.Equal(t, 30.0, sp.BudgetUsageRate)
}

func TestExpenditureValidation(t *testing.T) {
	env := newTestEnv(t)
	spID := env.seedPlan(t)
	env.createUser(t, "eng", "eng123", budget.RoleDepartment)
	token := env.login(t, "eng", "eng123")

	rec := env.do(t, http.MethodPost, "/api/expenditures", token, ExpenditureRequest{
		SubProjectID: spID,
		RecordDate:   "2025-06-10",
		Amount:       0,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/expenditures", token, ExpenditureRequest{
		SubProjectID: spID,
		RecordDate:   "06/10/2025",
		Amount:       10,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// CATEGORIES
// =============================================================================

func TestCategoryTreeEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "leader", "leader123", budget.RoleLeader)
	token := env.login(t, "leader", "leader123")

	rec := env.do(t, http.MethodPost, "/api/categories", token, CategoryRequest{
		Name:         "矿建工程费",
		Code:         "MJ",
		Level:        1,
		BudgetAmount: 500,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var parent CategoryDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &parent))

	rec = env.do(t, http.MethodPost, "/api/categories", token, CategoryRequest{
		Name:         "井巷工程",
		Code:         "MJ-01",
		ParentID:     &parent.ID,
		Level:        2,
		BudgetAmount: 200,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodGet, "/api/categories/tree", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var tree []CategoryTreeDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tree))
	require.Len(t, tree, 1)
	assert.Equal(t, "矿建工程费", tree[0].Name)
	require.Len(t, tree[0].Children, 1)
	assert.Equal(t, "MJ-01", tree[0].Children[0].Code)
}

// =============================================================================
// ALERTS
// =============================================================================

func TestAlertCheckEndpoint(t *testing.T) {
	env := newTestEnv(t)
	spID := env.seedPlan(t)
	env.createUser(t, "leader", "leader123", budget.RoleLeader)
	token := env.login(t, "leader", "leader123")

	// 95 of 100 puts the sub-project over the red threshold.
	rec := env.do(t, http.MethodPost, "/api/expenditures", token, ExpenditureRequest{
		SubProjectID: spID,
		RecordDate:   "2025-06-10",
		Amount:       95,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodPost, "/api/alerts/check", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var result struct {
		Generated []string `json:"generated"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.NotEmpty(t, result.Generated)

	rec = env.do(t, http.MethodGet, "/api/alerts?is_resolved=false", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var alerts []AlertDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &alerts))
	assert.NotEmpty(t, alerts)
}

// =============================================================================
// REPORTS AND DASHBOARD
// =============================================================================

func TestMonthlyReportEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.seedPlan(t)
	env.createUser(t, "viewer", "view123", budget.RoleViewer)
	token := env.login(t, "viewer", "view123")

	rec := env.do(t, http.MethodGet, "/api/reports/monthly?year=2025&month=6", token, nil)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodGet, "/api/reports/monthly?year=2025&month=13", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDashboardSummaryEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.seedPlan(t)
	env.createUser(t, "viewer", "view123", budget.RoleViewer)
	token := env.login(t, "viewer", "view123")

	rec := env.do(t, http.MethodGet, "/api/dashboard/summary", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var summary dashboardSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, "煤矿技术改造项目", summary.ProjectName)
	assert.Equal(t, 1000.0, summary.TotalBudget)
	assert.Equal(t, 70.0, summary.ReserveBudget)
	assert.Equal(t, 1, summary.KPI.SubProjectCount)
}

// =============================================================================
// SIMULATIONS
// =============================================================================

func TestWhatIfEndpoint(t *testing.T) {
	env := newTestEnv(t)
	spID := env.seedPlan(t)
	env.createUser(t, "leader", "leader123", budget.RoleLeader)
	token := env.login(t, "leader", "leader123")

	rec := env.do(t, http.MethodPost, "/api/simulations/what-if", token, WhatIfRequest{
		Name: "压缩井筒预算",
		Adjustments: []AdjustmentDTO{{
			TargetType:     "sub_project",
			TargetID:       spID,
			Field:          "allocated_budget",
			AdjustmentType: "percent",
			Value:          -10,
		}},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result budget.WhatIfResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, 100.0, result.OriginalTotalCost)
	assert.Equal(t, 90.0, result.AdjustedTotalCost)
	assert.Equal(t, -10.0, result.CostChange)
}

func TestScenarioComparisonEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.seedPlan(t)
	env.createUser(t, "leader", "leader123", budget.RoleLeader)
	token := env.login(t, "leader", "leader123")

	rec := env.do(t, http.MethodPost, "/api/simulations/scenarios", token, ScenarioRequest{
		Name: "方案对比",
		Scenarios: []ScenarioInputDTO{
			{Name: "基准", Parameters: map[string]float64{}},
			{Name: "紧缩", Parameters: map[string]float64{"cost_reduction_percent": 5}},
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var sim SimulationDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sim))
	require.NotEmpty(t, sim.ID)
	assert.Len(t, sim.Scenarios, 2)

	// The saved run is retrievable and deletable.
	rec = env.do(t, http.MethodGet, "/api/simulations/"+sim.ID, token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	env.createUser(t, "admin", "admin123", budget.RoleAdmin)
	adminToken := env.login(t, "admin", "admin123")
	rec = env.do(t, http.MethodDelete, "/api/simulations/"+sim.ID, adminToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/simulations/"+sim.ID, token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
