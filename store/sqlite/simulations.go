package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/taneng/budget-control/budget"
)

// =============================================================================
// SIMULATIONS
// =============================================================================

// SaveSimulation inserts a simulation and its scenarios atomically.
// Missing IDs are filled with fresh uuids. Scenario parameters and
// results are stored as JSON.
func (s *Store) SaveSimulation(ctx context.Context, sim *budget.Simulation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sim.ID == "" {
		sim.ID = uuid.NewString()
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		now := nowStamp()
		_, err := tx.ExecContext(ctx, `
			INSERT INTO simulations (id, name, description, sim_type, created_by, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			sim.ID, sim.Name, sim.Description, sim.SimType, sim.CreatedBy, now,
		)
		if err != nil {
			return fmt.Errorf("failed to insert simulation: %w", err)
		}
		sim.CreatedAt = parseTime(now)

		for i := range sim.Scenarios {
			sc := &sim.Scenarios[i]
			if sc.ID == "" {
				sc.ID = uuid.NewString()
			}
			sc.SimulationID = sim.ID

			paramsJSON, _ := json.Marshal(sc.Parameters)
			resultsJSON, _ := json.Marshal(sc.Results)
			_, err := tx.ExecContext(ctx, `
				INSERT INTO sim_scenarios (id, simulation_id, name, description, parameters_json,
					results_json, total_cost, total_return, roi, created_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				sc.ID, sim.ID, sc.Name, sc.Description, string(paramsJSON),
				string(resultsJSON), sc.TotalCost, sc.TotalReturn, sc.ROI, now,
			)
			if err != nil {
				return fmt.Errorf("failed to insert scenario: %w", err)
			}
			sc.CreatedAt = parseTime(now)
		}
		return nil
	})
}

// ListSimulations returns simulations (optionally one sim_type) with
// their scenarios, newest first.
func (s *Store) ListSimulations(ctx context.Context, simType budget.SimType) ([]budget.Simulation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT id, name, description, sim_type, created_by, created_at FROM simulations`
	var args []any
	if simType != "" {
		query += ` WHERE sim_type = ?`
		args = append(args, simType)
	}
	query += ` ORDER BY created_at DESC, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sims []budget.Simulation
	for rows.Next() {
		var (
			sim       budget.Simulation
			createdAt string
		)
		if err := rows.Scan(&sim.ID, &sim.Name, &sim.Description, &sim.SimType,
			&sim.CreatedBy, &createdAt); err != nil {
			return nil, err
		}
		sim.CreatedAt = parseTime(createdAt)
		sims = append(sims, sim)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range sims {
		scenarios, err := s.loadScenarios(ctx, sims[i].ID)
		if err != nil {
			return nil, err
		}
		sims[i].Scenarios = scenarios
	}
	return sims, nil
}

// GetSimulation retrieves one simulation with its scenarios.
func (s *Store) GetSimulation(ctx context.Context, id string) (*budget.Simulation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		sim       budget.Simulation
		createdAt string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, description, sim_type, created_by, created_at FROM simulations WHERE id = ?`,
		id).Scan(&sim.ID, &sim.Name, &sim.Description, &sim.SimType, &sim.CreatedBy, &createdAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("simulation: %w", budget.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	sim.CreatedAt = parseTime(createdAt)

	sim.Scenarios, err = s.loadScenarios(ctx, sim.ID)
	if err != nil {
		return nil, err
	}
	return &sim, nil
}

// DeleteSimulation removes a simulation; scenarios go via FK cascade.
func (s *Store) DeleteSimulation(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM simulations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete simulation: %w", err)
	}
	return requireRow(res, "simulation")
}

func (s *Store) loadScenarios(ctx context.Context, simulationID string) ([]budget.SimScenario, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, simulation_id, name, description, parameters_json, results_json,
			total_cost, total_return, roi, created_at
		FROM sim_scenarios WHERE simulation_id = ? ORDER BY created_at, id`,
		simulationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var scenarios []budget.SimScenario
	for rows.Next() {
		var (
			sc                      budget.SimScenario
			paramsJSON, resultsJSON string
			createdAt               string
		)
		if err := rows.Scan(&sc.ID, &sc.SimulationID, &sc.Name, &sc.Description,
			&paramsJSON, &resultsJSON, &sc.TotalCost, &sc.TotalReturn, &sc.ROI, &createdAt); err != nil {
			return nil, err
		}
		json.Unmarshal([]byte(paramsJSON), &sc.Parameters)
		json.Unmarshal([]byte(resultsJSON), &sc.Results)
		sc.CreatedAt = parseTime(createdAt)
		scenarios = append(scenarios, sc)
	}
	return scenarios, rows.Err()
}
