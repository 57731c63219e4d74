package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/taneng/budget-control/budget"
)

// =============================================================================
// BUDGET CATEGORIES
// =============================================================================

// categoryColumns includes actual_spent computed from the expenditures
// tagged with each category; the tree itself stores no spend totals.
const categoryColumns = `c.id, c.name, c.code, c.parent_id, c.level, c.budget_amount, c.description, c.sort_order,
	COALESCE((SELECT SUM(e.amount) FROM expenditures e WHERE e.category_id = c.id), 0) AS actual_spent`

// ListCategories returns the full flat hierarchy ordered by level then
// sort_order, ready for budget.BuildCategoryTree.
func (s *Store) ListCategories(ctx context.Context) ([]budget.BudgetCategory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryCategories(ctx,
		`SELECT `+categoryColumns+` FROM budget_categories c ORDER BY c.level, c.sort_order, c.id`)
}

// ListCategoriesByLevel returns categories at one level of the tree.
func (s *Store) ListCategoriesByLevel(ctx context.Context, level int) ([]budget.BudgetCategory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryCategories(ctx,
		`SELECT `+categoryColumns+` FROM budget_categories c WHERE c.level = ? ORDER BY c.sort_order, c.id`,
		level)
}

// GetCategory retrieves a category by ID.
func (s *Store) GetCategory(ctx context.Context, id int64) (*budget.BudgetCategory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return scanCategory(s.db.QueryRowContext(ctx,
		`SELECT `+categoryColumns+` FROM budget_categories c WHERE c.id = ?`, id))
}

// CreateCategory inserts a category after validating the parent link:
// the parent must exist and sit exactly one level above the child.
func (s *Store) CreateCategory(ctx context.Context, c *budget.BudgetCategory) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.Level < 1 || c.Level > 3 {
		return fmt.Errorf("category level %d out of range: %w", c.Level, budget.ErrValidation)
	}
	if err := s.checkParentLevel(ctx, c); err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO budget_categories (name, code, parent_id, level, budget_amount, description, sort_order)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.Name, nullString(c.Code), nullInt64(c.ParentID), c.Level,
		c.BudgetAmount, c.Description, c.SortOrder,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("category code %q: %w", c.Code, budget.ErrConflict)
		}
		return fmt.Errorf("failed to insert category: %w", err)
	}
	c.ID, _ = res.LastInsertId()
	return nil
}

// UpdateCategory updates a category's fields; the parent link is
// re-validated like on create.
func (s *Store) UpdateCategory(ctx context.Context, c *budget.BudgetCategory) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkParentLevel(ctx, c); err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE budget_categories SET name = ?, code = ?, parent_id = ?, level = ?,
			budget_amount = ?, description = ?, sort_order = ?
		WHERE id = ?`,
		c.Name, nullString(c.Code), nullInt64(c.ParentID), c.Level,
		c.BudgetAmount, c.Description, c.SortOrder, c.ID,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("category code %q: %w", c.Code, budget.ErrConflict)
		}
		return fmt.Errorf("failed to update category: %w", err)
	}
	return requireRow(res, "category")
}

// DeleteCategory removes a category. Rejected while child categories or
// cost items still reference it.
func (s *Store) DeleteCategory(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var children, costItems int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM budget_categories WHERE parent_id = ?`, id).Scan(&children)
	if err != nil {
		return err
	}
	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM cost_items WHERE category_id = ?`, id).Scan(&costItems)
	if err != nil {
		return err
	}
	if children > 0 || costItems > 0 {
		return fmt.Errorf("category %d has %d children and %d cost items: %w",
			id, children, costItems, budget.ErrCategoryInUse)
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM budget_categories WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete category: %w", err)
	}
	return requireRow(res, "category")
}

func (s *Store) checkParentLevel(ctx context.Context, c *budget.BudgetCategory) error {
	if c.ParentID == nil {
		if c.Level != 1 {
			return &budget.CategoryLevelError{ChildLevel: c.Level, ParentLevel: 0}
		}
		return nil
	}
	var parentLevel int
	err := s.db.QueryRowContext(ctx,
		`SELECT level FROM budget_categories WHERE id = ?`, *c.ParentID).Scan(&parentLevel)
	if err == sql.ErrNoRows {
		return fmt.Errorf("parent category %d: %w", *c.ParentID, budget.ErrNotFound)
	}
	if err != nil {
		return err
	}
	if parentLevel != c.Level-1 {
		return &budget.CategoryLevelError{ParentID: *c.ParentID, ParentLevel: parentLevel, ChildLevel: c.Level}
	}
	return nil
}

func (s *Store) queryCategories(ctx context.Context, query string, args ...any) ([]budget.BudgetCategory, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var categories []budget.BudgetCategory
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		categories = append(categories, *c)
	}
	return categories, rows.Err()
}

func scanCategory(row rowScanner) (*budget.BudgetCategory, error) {
	var (
		c        budget.BudgetCategory
		code     sql.NullString
		parentID sql.NullInt64
	)
	err := row.Scan(&c.ID, &c.Name, &code, &parentID, &c.Level,
		&c.BudgetAmount, &c.Description, &c.SortOrder, &c.ActualSpent)
	if err == sql.ErrNoRows {
		return nil, budget.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan category: %w", err)
	}
	c.Code = code.String
	c.ParentID = int64Ptr(parentID)
	return &c, nil
}

// =============================================================================
// COST ITEMS
// =============================================================================

const costItemColumns = `id, sub_project_id, category_id, name, budget_amount, actual_amount,
	unit, quantity, unit_price, note, created_at`

// ListCostItems returns cost items, optionally narrowed to one
// sub-project (0 matches all).
func (s *Store) ListCostItems(ctx context.Context, subProjectID int64) ([]budget.CostItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT ` + costItemColumns + ` FROM cost_items`
	var args []any
	if subProjectID != 0 {
		query += ` WHERE sub_project_id = ?`
		args = append(args, subProjectID)
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []budget.CostItem
	for rows.Next() {
		ci, err := scanCostItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *ci)
	}
	return items, rows.Err()
}

// GetCostItem retrieves a cost item by ID.
func (s *Store) GetCostItem(ctx context.Context, id int64) (*budget.CostItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return scanCostItem(s.db.QueryRowContext(ctx,
		`SELECT `+costItemColumns+` FROM cost_items WHERE id = ?`, id))
}

// CreateCostItem inserts a cost item and fills in its ID.
func (s *Store) CreateCostItem(ctx context.Context, ci *budget.CostItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO cost_items (sub_project_id, category_id, name, budget_amount, actual_amount,
			unit, quantity, unit_price, note, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ci.SubProjectID, nullInt64(ci.CategoryID), ci.Name, ci.BudgetAmount, ci.ActualAmount,
		ci.Unit, ci.Quantity, ci.UnitPrice, ci.Note, nowStamp(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert cost item: %w", err)
	}
	ci.ID, _ = res.LastInsertId()
	return nil
}

// UpdateCostItem updates a cost item. ActualAmount stays under the
// expenditure cascade's control.
func (s *Store) UpdateCostItem(ctx context.Context, ci *budget.CostItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE cost_items SET category_id = ?, name = ?, budget_amount = ?,
			unit = ?, quantity = ?, unit_price = ?, note = ?
		WHERE id = ?`,
		nullInt64(ci.CategoryID), ci.Name, ci.BudgetAmount,
		ci.Unit, ci.Quantity, ci.UnitPrice, ci.Note, ci.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update cost item: %w", err)
	}
	return requireRow(res, "cost item")
}

// DeleteCostItem removes a cost item. Its expenditures survive with
// cost_item_id cleared, so sub-project totals are untouched.
func (s *Store) DeleteCostItem(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM cost_items WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete cost item: %w", err)
	}
	return requireRow(res, "cost item")
}

func scanCostItem(row rowScanner) (*budget.CostItem, error) {
	var (
		ci         budget.CostItem
		categoryID sql.NullInt64
		createdAt  string
	)
	err := row.Scan(&ci.ID, &ci.SubProjectID, &categoryID, &ci.Name,
		&ci.BudgetAmount, &ci.ActualAmount, &ci.Unit, &ci.Quantity,
		&ci.UnitPrice, &ci.Note, &createdAt)
	if err == sql.ErrNoRows {
		return nil, budget.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan cost item: %w", err)
	}
	ci.CategoryID = int64Ptr(categoryID)
	ci.CreatedAt = parseTime(createdAt)
	return &ci, nil
}
