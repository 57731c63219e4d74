package budget_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/taneng/budget-control/budget"
)

// =============================================================================
// WHAT-IF
// =============================================================================

func whatIfInput() budget.WhatIfInput {
	return budget.WhatIfInput{
		TotalBudget:  10000,
		ReserveRate:  0.07,
		BaselineCost: 8000,
		SubProjects: map[int64]*budget.SubProject{
			1: {ID: 1, Name: "主井筒改造工程", AllocatedBudget: 1000, ActualSpent: 400},
		},
		CostItems: map[int64]*budget.CostItem{
			7: {ID: 7, Name: "钢材", BudgetAmount: 500},
		},
	}
}

func TestWhatIf_PercentAdjustment(t *testing.T) {
	// +10% on a 1000万元 allocation adds exactly 100 to the total.
	res := budget.EvaluateWhatIf(whatIfInput(), []budget.Adjustment{
		{TargetType: "sub_project", TargetID: 1, Field: "allocated_budget", AdjustmentType: budget.AdjustPercent, Value: 10},
	})

	assert.Equal(t, 8000.0, res.OriginalTotalCost)
	assert.Equal(t, 8100.0, res.AdjustedTotalCost)
	assert.Equal(t, 100.0, res.CostChange)
	assert.Equal(t, 1.25, res.CostChangePercent)
	if assert.Len(t, res.AffectedItems, 1) {
		item := res.AffectedItems[0]
		assert.Equal(t, 1000.0, item.Original)
		assert.Equal(t, 1100.0, item.Adjusted)
		assert.Equal(t, 100.0, item.Delta)
	}
	assert.Equal(t, budget.StatusWithinBudget, res.BudgetStatus)
}

func TestWhatIf_AbsoluteAdjustmentOnCostItem(t *testing.T) {
	res := budget.EvaluateWhatIf(whatIfInput(), []budget.Adjustment{
		{TargetType: "cost_item", TargetID: 7, Field: "budget_amount", AdjustmentType: budget.AdjustAbsolute, Value: -200},
	})

	assert.Equal(t, 7800.0, res.AdjustedTotalCost)
	assert.Equal(t, -200.0, res.AffectedItems[0].Delta)
}

func TestWhatIf_UnknownTargetSkipped(t *testing.T) {
	res := budget.EvaluateWhatIf(whatIfInput(), []budget.Adjustment{
		{TargetType: "sub_project", TargetID: 999, Field: "allocated_budget", AdjustmentType: budget.AdjustPercent, Value: 50},
	})

	assert.Empty(t, res.AffectedItems)
	assert.Equal(t, 8000.0, res.AdjustedTotalCost)
}

func TestWhatIf_BudgetStatusClassification(t *testing.T) {
	// usable = 10000 * 0.93 = 9300
	cases := []struct {
		name  string
		delta float64
		want  budget.BudgetStatus
	}{
		{"within", 1000, budget.StatusWithinBudget},  // 9000
		{"near limit", 1500, budget.StatusNearLimit}, // 9500 > 9300
		{"over", 2500, budget.StatusOverBudget},      // 10500 > 10000
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := budget.EvaluateWhatIf(whatIfInput(), []budget.Adjustment{
				{TargetType: "sub_project", TargetID: 1, AdjustmentType: budget.AdjustAbsolute, Value: tc.delta},
			})
			assert.Equal(t, tc.want, res.BudgetStatus)
		})
	}
}

func TestWhatIf_ReserveImpact(t *testing.T) {
	// Adjusted 9500 exceeds the 9300 usable line by 200; the 700
	// reserve keeps 500.
	res := budget.EvaluateWhatIf(whatIfInput(), []budget.Adjustment{
		{TargetType: "sub_project", TargetID: 1, AdjustmentType: budget.AdjustAbsolute, Value: 1500},
	})

	assert.Equal(t, 700.0, res.ReserveImpact.TotalReserve)
	assert.Equal(t, 200.0, res.ReserveImpact.ReserveNeeded)
	assert.Equal(t, 500.0, res.ReserveImpact.ReserveRemaining)
}

// =============================================================================
// SENSITIVITY
// =============================================================================

func TestSensitivity_OrderedByImpactMagnitude(t *testing.T) {
	subProjects := map[int64]*budget.SubProject{
		1: {ID: 1, Name: "小工程", AllocatedBudget: 100},
		2: {ID: 2, Name: "大工程", AllocatedBudget: 3000},
		3: {ID: 3, Name: "中工程", AllocatedBudget: 800},
	}
	targets := []budget.SensitivityTarget{
		{Type: "sub_project", ID: 1, Field: "allocated_budget", RangeMin: -20, RangeMax: 20},
		{Type: "sub_project", ID: 2, Field: "allocated_budget", RangeMin: -20, RangeMax: 20},
		{Type: "sub_project", ID: 3, Field: "allocated_budget", RangeMin: -20, RangeMax: 20},
	}

	res := budget.EvaluateSensitivity(5000, subProjects, targets)

	if assert.Len(t, res.Items, 3) {
		assert.Equal(t, "大工程", res.Items[0].Name)
		assert.Equal(t, "中工程", res.Items[1].Name)
		assert.Equal(t, "小工程", res.Items[2].Name)
	}
	assert.Equal(t, 5000.0, res.BaseTotalCost)
}

func TestSensitivity_RangeMath(t *testing.T) {
	subProjects := map[int64]*budget.SubProject{
		1: {ID: 1, Name: "主井筒改造工程", AllocatedBudget: 1000},
	}
	res := budget.EvaluateSensitivity(2000, subProjects, []budget.SensitivityTarget{
		{Type: "sub_project", ID: 1, Field: "allocated_budget", RangeMin: -10, RangeMax: 30},
	})

	item := res.Items[0]
	assert.Equal(t, 1000.0, item.BaseValue)
	assert.Equal(t, 900.0, item.LowValue)
	assert.Equal(t, 1300.0, item.HighValue)
	assert.Equal(t, -100.0, item.LowImpact)
	assert.Equal(t, 300.0, item.HighImpact)
	assert.Equal(t, 1900.0, item.LowTotal)
	assert.Equal(t, 2300.0, item.HighTotal)
}

func TestSensitivity_UnknownTargetSkipped(t *testing.T) {
	res := budget.EvaluateSensitivity(2000, map[int64]*budget.SubProject{}, []budget.SensitivityTarget{
		{Type: "sub_project", ID: 42, Field: "allocated_budget", RangeMin: -20, RangeMax: 20},
	})
	assert.Empty(t, res.Items)
}

// =============================================================================
// SCENARIOS
// =============================================================================

func TestScenario_ROIModel(t *testing.T) {
	sc := budget.EvaluateScenario(56397.84, budget.ScenarioInput{
		Name: "正常方案",
		Parameters: map[string]float64{
			"budget_factor":     1.0,
			"duration_factor":   1.0,
			"efficiency_factor": 1.0,
		},
	})

	assert.Equal(t, 56397.84, sc.TotalCost)
	assert.Equal(t, budget.Round2(56397.84*1.2), sc.TotalReturn)
	assert.Equal(t, 20.0, sc.ROI)
	assert.Equal(t, 12.0, sc.Results["estimated_duration_months"])
	assert.Equal(t, 0.0, sc.Results["budget_savings"])
}

func TestScenario_FactorsDefaultToOne(t *testing.T) {
	sc := budget.EvaluateScenario(1000, budget.ScenarioInput{Name: "默认方案"})

	assert.Equal(t, 1000.0, sc.TotalCost)
	assert.Equal(t, 1200.0, sc.TotalReturn)
	assert.Equal(t, 20.0, sc.ROI)
}

func TestScenario_ZeroBudgetGuardsROI(t *testing.T) {
	sc := budget.EvaluateScenario(1000, budget.ScenarioInput{
		Name:       "零预算",
		Parameters: map[string]float64{"budget_factor": 0},
	})

	assert.Equal(t, 0.0, sc.TotalCost)
	assert.Equal(t, 0.0, sc.ROI)
	assert.Equal(t, 1000.0, sc.Results["budget_savings"])
}

func TestScenario_SavingsAndEfficiency(t *testing.T) {
	sc := budget.EvaluateScenario(1000, budget.ScenarioInput{
		Name: "节约方案",
		Parameters: map[string]float64{
			"budget_factor":     0.9,
			"efficiency_factor": 1.1,
			"duration_factor":   0.8,
		},
	})

	assert.Equal(t, 900.0, sc.TotalCost)
	assert.Equal(t, 1320.0, sc.TotalReturn)
	assert.Equal(t, 100.0, sc.Results["budget_savings"])
	assert.InDelta(t, 10.0, sc.Results["efficiency_gain"], 0.001)
	assert.Equal(t, 9.6, sc.Results["estimated_duration_months"])
}
