/*
simulate.go - What-if, sensitivity, and scenario analysis

PURPOSE:
  Pure evaluation functions for the three simulation endpoints. Handlers
  load the data, the engine does the math, the store persists saved
  scenario comparisons.

BASELINES:
  - What-if works against the sum of allocated sub-project budgets: the
    question is "what happens to the plan".
  - Sensitivity works against the sum of recorded expenditures: the
    tornado chart shows swing around actual spend.
  The two baselines are intentionally different and mirror how the
  figures are read in the monthly考核 meetings.
*/
package budget

import (
	"sort"
)

// =============================================================================
// WHAT-IF
// =============================================================================

type AdjustmentType string

const (
	AdjustPercent  AdjustmentType = "percent"
	AdjustAbsolute AdjustmentType = "absolute"
)

// Adjustment is one tweak applied in a what-if run. Unknown targets are
// skipped silently so a stale frontend id does not fail the whole run.
type Adjustment struct {
	TargetType     string // "sub_project" or "cost_item"
	TargetID       int64
	Field          string // e.g. "allocated_budget", "actual_spent", "budget_amount"
	AdjustmentType AdjustmentType
	Value          float64
}

type AffectedItem struct {
	Type     string  `json:"type"`
	ID       int64   `json:"id"`
	Name     string  `json:"name"`
	Field    string  `json:"field"`
	Original float64 `json:"original"`
	Adjusted float64 `json:"adjusted"`
	Delta    float64 `json:"delta"`
}

type BudgetStatus string

const (
	StatusOverBudget   BudgetStatus = "over_budget"
	StatusNearLimit    BudgetStatus = "near_limit"
	StatusWithinBudget BudgetStatus = "within_budget"
)

type ReserveImpact struct {
	TotalReserve     float64 `json:"total_reserve"`
	ReserveNeeded    float64 `json:"reserve_needed"`
	ReserveRemaining float64 `json:"reserve_remaining"`
}

type KPIImpact struct {
	BudgetControlRate   float64 `json:"budget_control_rate"`
	CostChangePercent   float64 `json:"cost_change_percent"`
	OriginalBudgetUsage float64 `json:"original_budget_usage"`
	AdjustedBudgetUsage float64 `json:"adjusted_budget_usage"`
}

type WhatIfResult struct {
	OriginalTotalCost float64        `json:"original_total_cost"`
	AdjustedTotalCost float64        `json:"adjusted_total_cost"`
	CostChange        float64        `json:"cost_change"`
	CostChangePercent float64        `json:"cost_change_percent"`
	AffectedItems     []AffectedItem `json:"affected_items"`
	BudgetStatus      BudgetStatus   `json:"budget_status"`
	ReserveImpact     ReserveImpact  `json:"reserve_impact"`
	KPIImpact         KPIImpact      `json:"kpi_impact"`
}

// WhatIfInput carries the state the evaluation runs against.
type WhatIfInput struct {
	TotalBudget  float64
	ReserveRate  float64
	BaselineCost float64 // sum of sub-project allocated budgets
	SubProjects  map[int64]*SubProject
	CostItems    map[int64]*CostItem
}

// EvaluateWhatIf applies the adjustments in input order and classifies
// the adjusted total against the usable-budget line
// (total * (1 - reserve_rate)).
func EvaluateWhatIf(in WhatIfInput, adjustments []Adjustment) WhatIfResult {
	adjusted := in.BaselineCost
	affected := []AffectedItem{}

	for _, adj := range adjustments {
		var name string
		var current float64
		switch adj.TargetType {
		case "sub_project":
			sp, ok := in.SubProjects[adj.TargetID]
			if !ok {
				continue
			}
			name = sp.Name
			current = subProjectField(sp, adj.Field)
		case "cost_item":
			ci, ok := in.CostItems[adj.TargetID]
			if !ok {
				continue
			}
			name = ci.Name
			current = costItemField(ci, adj.Field)
		default:
			continue
		}

		delta := adj.Value
		if adj.AdjustmentType == AdjustPercent {
			delta = current * adj.Value / 100
		}
		adjusted += delta
		affected = append(affected, AffectedItem{
			Type:     adj.TargetType,
			ID:       adj.TargetID,
			Name:     name,
			Field:    adj.Field,
			Original: current,
			Adjusted: current + delta,
			Delta:    delta,
		})
	}

	change := adjusted - in.BaselineCost
	changePct := 0.0
	if in.BaselineCost > 0 {
		changePct = change / in.BaselineCost * 100
	}

	usable := in.TotalBudget * (1 - in.ReserveRate)
	status := StatusWithinBudget
	switch {
	case adjusted > in.TotalBudget:
		status = StatusOverBudget
	case adjusted > usable:
		status = StatusNearLimit
	}

	reserveTotal := in.TotalBudget * in.ReserveRate
	reserveNeeded := adjusted - usable
	if reserveNeeded < 0 {
		reserveNeeded = 0
	}
	reserveRemaining := reserveTotal - reserveNeeded
	if reserveRemaining < 0 {
		reserveRemaining = 0
	}

	return WhatIfResult{
		OriginalTotalCost: Round2(in.BaselineCost),
		AdjustedTotalCost: Round2(adjusted),
		CostChange:        Round2(change),
		CostChangePercent: Round2(changePct),
		AffectedItems:     affected,
		BudgetStatus:      status,
		ReserveImpact: ReserveImpact{
			TotalReserve:     Round2(reserveTotal),
			ReserveNeeded:    Round2(reserveNeeded),
			ReserveRemaining: Round2(reserveRemaining),
		},
		KPIImpact: KPIImpact{
			BudgetControlRate:   Round2((1 - adjusted/in.TotalBudget) * 100),
			CostChangePercent:   Round2(changePct),
			OriginalBudgetUsage: Percent(in.BaselineCost, in.TotalBudget),
			AdjustedBudgetUsage: Percent(adjusted, in.TotalBudget),
		},
	}
}

func subProjectField(sp *SubProject, field string) float64 {
	switch field {
	case "actual_spent":
		return sp.ActualSpent
	case "progress_percent":
		return sp.ProgressPercent
	default:
		return sp.AllocatedBudget
	}
}

func costItemField(ci *CostItem, field string) float64 {
	switch field {
	case "actual_amount":
		return ci.ActualAmount
	default:
		return ci.BudgetAmount
	}
}

// =============================================================================
// SENSITIVITY (tornado chart)
// =============================================================================

type SensitivityTarget struct {
	Type     string // only "sub_project" is supported
	ID       int64
	Field    string
	RangeMin float64 // percent, e.g. -20
	RangeMax float64 // percent, e.g. 20
}

type SensitivityItem struct {
	Name       string  `json:"name"`
	Field      string  `json:"field"`
	BaseValue  float64 `json:"base_value"`
	LowValue   float64 `json:"low_value"`
	HighValue  float64 `json:"high_value"`
	LowImpact  float64 `json:"low_impact"`
	HighImpact float64 `json:"high_impact"`
	LowTotal   float64 `json:"low_total"`
	HighTotal  float64 `json:"high_total"`
}

type SensitivityResult struct {
	Items         []SensitivityItem `json:"items"`
	BaseTotalCost float64           `json:"base_total_cost"`
}

// EvaluateSensitivity swings each target through its percent range and
// sorts the items by impact magnitude, largest swing first.
func EvaluateSensitivity(baseTotalCost float64, subProjects map[int64]*SubProject, targets []SensitivityTarget) SensitivityResult {
	items := []SensitivityItem{}
	for _, t := range targets {
		if t.Type != "sub_project" {
			continue
		}
		sp, ok := subProjects[t.ID]
		if !ok {
			continue
		}
		base := subProjectField(sp, t.Field)
		lowDelta := base * t.RangeMin / 100
		highDelta := base * t.RangeMax / 100
		items = append(items, SensitivityItem{
			Name:       sp.Name,
			Field:      t.Field,
			BaseValue:  base,
			LowValue:   base + lowDelta,
			HighValue:  base + highDelta,
			LowImpact:  Round2(lowDelta),
			HighImpact: Round2(highDelta),
			LowTotal:   Round2(baseTotalCost + lowDelta),
			HighTotal:  Round2(baseTotalCost + highDelta),
		})
	}

	sort.SliceStable(items, func(i, j int) bool {
		return abs(items[i].HighImpact-items[i].LowImpact) > abs(items[j].HighImpact-items[j].LowImpact)
	})

	return SensitivityResult{Items: items, BaseTotalCost: baseTotalCost}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// =============================================================================
// SCENARIO COMPARISON
// =============================================================================

// ScenarioInput is one scenario of a comparison run; factors default
// to 1.0 when absent.
type ScenarioInput struct {
	Name        string
	Description string
	Parameters  map[string]float64
}

// EvaluateScenario computes the derived figures for one scenario.
// The return model is deliberately simple: budget * efficiency * 1.2.
func EvaluateScenario(totalBudget float64, in ScenarioInput) SimScenario {
	budgetFactor := paramOr(in.Parameters, "budget_factor", 1.0)
	durationFactor := paramOr(in.Parameters, "duration_factor", 1.0)
	efficiencyFactor := paramOr(in.Parameters, "efficiency_factor", 1.0)

	adjustedCost := totalBudget * budgetFactor
	estimatedReturn := totalBudget * efficiencyFactor * 1.2
	roi := 0.0
	if adjustedCost > 0 {
		roi = (estimatedReturn - adjustedCost) / adjustedCost * 100
	}

	return SimScenario{
		Name:        in.Name,
		Description: in.Description,
		Parameters:  in.Parameters,
		Results: map[string]float64{
			"adjusted_total_budget":     Round2(adjustedCost),
			"estimated_duration_months": Round1(12 * durationFactor),
			"estimated_return":          Round2(estimatedReturn),
			"budget_savings":            Round2(totalBudget - adjustedCost),
			"efficiency_gain":           Round2((efficiencyFactor - 1) * 100),
		},
		TotalCost:   Round2(adjustedCost),
		TotalReturn: Round2(estimatedReturn),
		ROI:         Round2(roi),
	}
}

func paramOr(params map[string]float64, key string, def float64) float64 {
	if v, ok := params[key]; ok {
		return v
	}
	return def
}
