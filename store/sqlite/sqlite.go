/*
Package sqlite provides the SQLite-backed persistence layer.

PURPOSE:
  Implements storage for every entity of the budget-control backend:
  users, project and sub-projects, the 3-level budget category tree,
  cost items, expenditures with the denormalized-total recompute
  cascade, alert logs, cash flows, saved simulations, and the
  append-only settlement reference tables.

INTERFACES IMPLEMENTED:
  budget.AlertStore:  data the alert checker reads and the alert rows
                      it writes
  budget.ReportStore: aggregates the monthly report generator needs

RECOMPUTE CASCADE:
  Expenditure writes (create/update/delete/batch) run inside a single
  SQL transaction that re-sums cost_items.actual_amount and
  sub_projects.actual_spent for every affected id with a full
  SELECT SUM, exactly once per id per call. No incremental +=.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety on top of WAL mode. In production
  with PostgreSQL, database-level concurrency control handles this
  instead.

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

USAGE:
  store, err := sqlite.New("./data/budget.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - budget/alerts.go, budget/report.go: the interfaces served here
  - expenditures.go: the recompute cascade
  - seed: initial data loaded through this store
*/
package sqlite

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		full_name TEXT NOT NULL,
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'viewer',
		department TEXT NOT NULL DEFAULT '',
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS projects (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		total_budget REAL NOT NULL DEFAULT 0,
		reserve_rate REAL NOT NULL DEFAULT 0.07,
		start_date TEXT,
		end_date TEXT,
		status TEXT NOT NULL DEFAULT 'planning',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sub_projects (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		project_id INTEGER NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL DEFAULT '',
		allocated_budget REAL NOT NULL DEFAULT 0,
		actual_spent REAL NOT NULL DEFAULT 0,
		progress_percent REAL NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'not_started',
		planned_start TEXT,
		planned_end TEXT,
		actual_start TEXT,
		actual_end TEXT,
		responsible_dept TEXT NOT NULL DEFAULT '',
		sort_order INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_sub_projects_project
		ON sub_projects(project_id);
	CREATE INDEX IF NOT EXISTS idx_sub_projects_category
		ON sub_projects(category);

	CREATE TABLE IF NOT EXISTS milestone_nodes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		sub_project_id INTEGER NOT NULL REFERENCES sub_projects(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		planned_date TEXT,
		actual_date TEXT,
		status TEXT NOT NULL DEFAULT 'pending',
		sort_order INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_milestones_sub_project
		ON milestone_nodes(sub_project_id);

	CREATE TABLE IF NOT EXISTS progress_records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		sub_project_id INTEGER NOT NULL REFERENCES sub_projects(id) ON DELETE CASCADE,
		record_date TEXT NOT NULL,
		percent REAL NOT NULL,
		milestone TEXT NOT NULL DEFAULT '',
		note TEXT NOT NULL DEFAULT '',
		created_by INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_progress_sub_project
		ON progress_records(sub_project_id);

	CREATE TABLE IF NOT EXISTS budget_categories (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		code TEXT UNIQUE,
		parent_id INTEGER REFERENCES budget_categories(id),
		level INTEGER NOT NULL,
		budget_amount REAL NOT NULL DEFAULT 0,
		description TEXT NOT NULL DEFAULT '',
		sort_order INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_categories_parent
		ON budget_categories(parent_id);
	CREATE INDEX IF NOT EXISTS idx_categories_level
		ON budget_categories(level);

	CREATE TABLE IF NOT EXISTS cost_items (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		sub_project_id INTEGER NOT NULL REFERENCES sub_projects(id) ON DELETE CASCADE,
		category_id INTEGER REFERENCES budget_categories(id),
		name TEXT NOT NULL,
		budget_amount REAL NOT NULL DEFAULT 0,
		actual_amount REAL NOT NULL DEFAULT 0,
		unit TEXT NOT NULL DEFAULT '',
		quantity REAL NOT NULL DEFAULT 0,
		unit_price REAL NOT NULL DEFAULT 0,
		note TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_cost_items_sub_project
		ON cost_items(sub_project_id);
	CREATE INDEX IF NOT EXISTS idx_cost_items_category
		ON cost_items(category_id);

	CREATE TABLE IF NOT EXISTS expenditures (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		cost_item_id INTEGER REFERENCES cost_items(id) ON DELETE SET NULL,
		sub_project_id INTEGER NOT NULL REFERENCES sub_projects(id) ON DELETE CASCADE,
		category_id INTEGER REFERENCES budget_categories(id),
		record_date TEXT NOT NULL,
		amount REAL NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		voucher_no TEXT NOT NULL DEFAULT '',
		source TEXT NOT NULL DEFAULT 'manual',
		created_by INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);

	-- Hot path: per-sub-project and windowed sums for the recompute
	-- cascade and the monthly report.
	CREATE INDEX IF NOT EXISTS idx_expenditures_sub_project
		ON expenditures(sub_project_id);
	CREATE INDEX IF NOT EXISTS idx_expenditures_cost_item
		ON expenditures(cost_item_id);
	CREATE INDEX IF NOT EXISTS idx_expenditures_category
		ON expenditures(category_id);
	CREATE INDEX IF NOT EXISTS idx_expenditures_date
		ON expenditures(record_date);

	CREATE TABLE IF NOT EXISTS alert_logs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		alert_type TEXT NOT NULL,
		level TEXT NOT NULL,
		title TEXT NOT NULL,
		message TEXT NOT NULL DEFAULT '',
		related_type TEXT NOT NULL,
		related_id INTEGER NOT NULL,
		related_name TEXT NOT NULL DEFAULT '',
		is_read BOOLEAN NOT NULL DEFAULT FALSE,
		is_resolved BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TEXT NOT NULL,
		resolved_at TEXT
	);

	-- Dedup lookup: most recent unresolved row per subject.
	CREATE INDEX IF NOT EXISTS idx_alerts_subject
		ON alert_logs(alert_type, related_type, related_id, is_resolved);
	CREATE INDEX IF NOT EXISTS idx_alerts_created
		ON alert_logs(created_at);

	CREATE TABLE IF NOT EXISTS cash_flows (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		project_id INTEGER NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		flow_type TEXT NOT NULL,
		category TEXT NOT NULL DEFAULT '',
		amount REAL NOT NULL,
		record_date TEXT NOT NULL,
		payee TEXT NOT NULL DEFAULT '',
		payment_method TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		voucher_no TEXT NOT NULL DEFAULT '',
		related_sub_project_id INTEGER REFERENCES sub_projects(id) ON DELETE SET NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		approved_by INTEGER,
		created_by INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_cash_flows_date
		ON cash_flows(record_date);
	CREATE INDEX IF NOT EXISTS idx_cash_flows_status
		ON cash_flows(status);

	CREATE TABLE IF NOT EXISTS simulations (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		sim_type TEXT NOT NULL,
		created_by INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sim_scenarios (
		id TEXT PRIMARY KEY,
		simulation_id TEXT NOT NULL REFERENCES simulations(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		parameters_json TEXT NOT NULL DEFAULT '{}',
		results_json TEXT NOT NULL DEFAULT '{}',
		total_cost REAL NOT NULL DEFAULT 0,
		total_return REAL NOT NULL DEFAULT 0,
		roi REAL NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_scenarios_simulation
		ON sim_scenarios(simulation_id);

	CREATE TABLE IF NOT EXISTS civil_settlements (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		seq INTEGER NOT NULL DEFAULT 0,
		project_name TEXT NOT NULL,
		audit_amount REAL NOT NULL DEFAULT 0,
		settlement_amount REAL NOT NULL DEFAULT 0,
		payment_plan REAL NOT NULL DEFAULT 0,
		somoni_amount REAL NOT NULL DEFAULT 0,
		somoni_40_percent REAL NOT NULL DEFAULT 0,
		feb_plan_somoni REAL NOT NULL DEFAULT 0,
		debt_somoni REAL NOT NULL DEFAULT 0,
		contractor TEXT NOT NULL DEFAULT '',
		sub_project_id INTEGER REFERENCES sub_projects(id),
		note TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS procurement_monthly_summaries (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		month INTEGER NOT NULL UNIQUE,
		amount_somoni REAL NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS procurement_records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		month INTEGER NOT NULL,
		seq INTEGER NOT NULL DEFAULT 0,
		material_name TEXT NOT NULL,
		specification TEXT NOT NULL DEFAULT '',
		unit TEXT NOT NULL DEFAULT '',
		plan_price REAL NOT NULL DEFAULT 0,
		plan_quantity REAL NOT NULL DEFAULT 0,
		purchase_unit_price_somoni REAL NOT NULL DEFAULT 0,
		purchase_method TEXT NOT NULL DEFAULT '',
		payment_method TEXT NOT NULL DEFAULT '',
		purchase_quantity REAL NOT NULL DEFAULT 0,
		purchase_amount_somoni REAL NOT NULL DEFAULT 0,
		stock_quantity REAL NOT NULL DEFAULT 0,
		unit_price_rmb REAL NOT NULL DEFAULT 0,
		amount_rmb REAL NOT NULL DEFAULT 0,
		usage_unit TEXT NOT NULL DEFAULT '',
		project_name TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_procurement_month
		ON procurement_records(month);

	CREATE TABLE IF NOT EXISTS warehouse_outbound (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		team TEXT NOT NULL DEFAULT '',
		apply_date TEXT,
		material_type TEXT NOT NULL DEFAULT '',
		material_code TEXT NOT NULL DEFAULT '',
		material_name TEXT NOT NULL,
		specification TEXT NOT NULL DEFAULT '',
		unit TEXT NOT NULL DEFAULT '',
		quantity REAL NOT NULL DEFAULT 0,
		unit_price REAL NOT NULL DEFAULT 0,
		amount REAL NOT NULL DEFAULT 0,
		usage_unit TEXT NOT NULL DEFAULT '',
		project_name TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_warehouse_team
		ON warehouse_outbound(team);
	CREATE INDEX IF NOT EXISTS idx_warehouse_date
		ON warehouse_outbound(apply_date);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// HELPERS
// =============================================================================

const dateLayout = "2006-01-02"

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func int64Ptr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}

// fmtDate stores dates as YYYY-MM-DD strings, nil as NULL.
func fmtDate(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(dateLayout)
}

func parseDate(v sql.NullString) *time.Time {
	if !v.Valid || v.String == "" {
		return nil
	}
	t, err := time.Parse(dateLayout, v.String)
	if err != nil {
		return nil
	}
	return &t
}

func parseTime(v string) time.Time {
	t, _ := time.Parse(time.RFC3339, v)
	return t
}

func nowStamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}
