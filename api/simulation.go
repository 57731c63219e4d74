/*
simulation.go - What-if, sensitivity, and scenario comparison endpoints

PURPOSE:
  Loads the current plan data, hands it to the pure evaluation
  functions in the budget package, and optionally persists named runs
  as saved simulations.
*/
package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/taneng/budget-control/budget"
)

// simulationBaseline loads the data every simulation needs.
func (h *Handler) simulationBaseline(r *http.Request) (totalBudget, reserveRate float64, subProjects map[int64]*budget.SubProject, err error) {
	project, err := h.Store.FirstProject(r.Context())
	if err != nil {
		return 0, 0, nil, err
	}
	totalBudget = h.Config.TotalBudget
	reserveRate = h.Config.ReserveRate
	if project != nil {
		totalBudget = project.TotalBudget
		reserveRate = project.ReserveRate
	}

	subs, err := h.Store.ListSubProjects(r.Context())
	if err != nil {
		return 0, 0, nil, err
	}
	subProjects = make(map[int64]*budget.SubProject, len(subs))
	for i := range subs {
		subProjects[subs[i].ID] = &subs[i]
	}
	return totalBudget, reserveRate, subProjects, nil
}

// RunWhatIf applies budget adjustments against the plan baseline.
// With save=true the run is also stored for later comparison.
func (h *Handler) RunWhatIf(w http.ResponseWriter, r *http.Request) {
	var req WhatIfRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	totalBudget, reserveRate, subProjects, err := h.simulationBaseline(r)
	if err != nil {
		writeStoreError(w, "Failed to load baseline", err)
		return
	}
	baseline := 0.0
	for _, sp := range subProjects {
		baseline += sp.AllocatedBudget
	}

	costItems := make(map[int64]*budget.CostItem)
	items, err := h.Store.ListCostItems(r.Context(), 0)
	if err != nil {
		writeStoreError(w, "Failed to load cost items", err)
		return
	}
	for i := range items {
		costItems[items[i].ID] = &items[i]
	}

	adjustments := make([]budget.Adjustment, 0, len(req.Adjustments))
	for _, a := range req.Adjustments {
		adjustments = append(adjustments, budget.Adjustment{
			TargetType:     a.TargetType,
			TargetID:       a.TargetID,
			Field:          a.Field,
			AdjustmentType: budget.AdjustmentType(a.AdjustmentType),
			Value:          a.Value,
		})
	}

	result := budget.EvaluateWhatIf(budget.WhatIfInput{
		TotalBudget:  totalBudget,
		ReserveRate:  reserveRate,
		BaselineCost: baseline,
		SubProjects:  subProjects,
		CostItems:    costItems,
	}, adjustments)

	if req.Save {
		sim := &budget.Simulation{
			Name:        req.Name,
			Description: req.Description,
			SimType:     budget.SimWhatIf,
			CreatedBy:   currentUserID(r.Context()),
			Scenarios: []budget.SimScenario{{
				Name:       req.Name,
				Parameters: req.Parameters,
				Results: map[string]float64{
					"original_total_cost": result.OriginalTotalCost,
					"adjusted_total_cost": result.AdjustedTotalCost,
					"cost_change":         result.CostChange,
					"cost_change_percent": result.CostChangePercent,
				},
				TotalCost: result.AdjustedTotalCost,
			}},
		}
		if err := h.Store.SaveSimulation(r.Context(), sim); err != nil {
			writeStoreError(w, "Failed to save simulation", err)
			return
		}
	}

	writeJSON(w, http.StatusOK, result)
}

// RunSensitivity swings each target through its percent range against
// the actual-spend baseline.
func (h *Handler) RunSensitivity(w http.ResponseWriter, r *http.Request) {
	var req SensitivityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if len(req.Targets) == 0 {
		writeError(w, http.StatusBadRequest, "At least one target is required", nil)
		return
	}

	_, _, subProjects, err := h.simulationBaseline(r)
	if err != nil {
		writeStoreError(w, "Failed to load baseline", err)
		return
	}
	baseTotal, err := h.Store.TotalExpenditure(r.Context())
	if err != nil {
		writeStoreError(w, "Failed to sum expenditures", err)
		return
	}

	targets := make([]budget.SensitivityTarget, 0, len(req.Targets))
	for _, t := range req.Targets {
		targets = append(targets, budget.SensitivityTarget{
			Type:     t.Type,
			ID:       t.ID,
			Field:    t.Field,
			RangeMin: t.RangeMin,
			RangeMax: t.RangeMax,
		})
	}

	result := budget.EvaluateSensitivity(baseTotal, subProjects, targets)
	writeJSON(w, http.StatusOK, result)
}

// =============================================================================
// SCENARIO COMPARISONS
// =============================================================================

// ListSimulations returns saved runs, optionally filtered by
// ?sim_type=.
func (h *Handler) ListSimulations(w http.ResponseWriter, r *http.Request) {
	sims, err := h.Store.ListSimulations(r.Context(), budget.SimType(r.URL.Query().Get("sim_type")))
	if err != nil {
		writeStoreError(w, "Failed to list simulations", err)
		return
	}
	dtos := make([]SimulationDTO, 0, len(sims))
	for i := range sims {
		dtos = append(dtos, toSimulationDTO(&sims[i]))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateScenarioComparison evaluates each scenario against the project
// budget and saves the comparison.
func (h *Handler) CreateScenarioComparison(w http.ResponseWriter, r *http.Request) {
	var req ScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if len(req.Scenarios) == 0 {
		writeError(w, http.StatusBadRequest, "At least one scenario is required", nil)
		return
	}

	totalBudget, _, _, err := h.simulationBaseline(r)
	if err != nil {
		writeStoreError(w, "Failed to load baseline", err)
		return
	}

	sim := &budget.Simulation{
		Name:        req.Name,
		Description: req.Description,
		SimType:     budget.SimScenarioCompare,
		CreatedBy:   currentUserID(r.Context()),
	}
	for _, sc := range req.Scenarios {
		sim.Scenarios = append(sim.Scenarios, budget.EvaluateScenario(totalBudget, budget.ScenarioInput{
			Name:        sc.Name,
			Description: sc.Description,
			Parameters:  sc.Parameters,
		}))
	}
	if err := h.Store.SaveSimulation(r.Context(), sim); err != nil {
		writeStoreError(w, "Failed to save simulation", err)
		return
	}
	writeJSON(w, http.StatusCreated, toSimulationDTO(sim))
}

// GetSimulation returns one saved run with its scenarios.
func (h *Handler) GetSimulation(w http.ResponseWriter, r *http.Request) {
	sim, err := h.Store.GetSimulation(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeStoreError(w, "Failed to get simulation", err)
		return
	}
	writeJSON(w, http.StatusOK, toSimulationDTO(sim))
}

// DeleteSimulation removes a saved run and its scenarios.
func (h *Handler) DeleteSimulation(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.DeleteSimulation(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeStoreError(w, "Failed to delete simulation", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
