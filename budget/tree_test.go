package budget_test

import (
	"testing"

	"github.com/taneng/budget-control/budget"
)

func intPtr(v int64) *int64 { return &v }

func TestBuildCategoryTree_Nesting(t *testing.T) {
	// GIVEN: a flat 3-level adjacency list in level/sort order
	// WHEN: building the tree
	// THEN: children hang under their parents, roots keep input order
	flat := []budget.BudgetCategory{
		{ID: 1, Name: "矿建工程费", Level: 1},
		{ID: 2, Name: "土建工程费", Level: 1},
		{ID: 3, Name: "主井筒改造", Level: 2, ParentID: intPtr(1)},
		{ID: 4, Name: "巷道掘进", Level: 2, ParentID: intPtr(1)},
		{ID: 5, Name: "材料费", Level: 3, ParentID: intPtr(3)},
	}

	roots := budget.BuildCategoryTree(flat)

	if len(roots) != 2 {
		t.Fatalf("expected 2 roots, got %d", len(roots))
	}
	if roots[0].Name != "矿建工程费" || roots[1].Name != "土建工程费" {
		t.Errorf("root order not preserved: %q, %q", roots[0].Name, roots[1].Name)
	}
	if len(roots[0].Children) != 2 {
		t.Fatalf("expected 2 children under root 1, got %d", len(roots[0].Children))
	}
	if len(roots[0].Children[0].Children) != 1 {
		t.Errorf("expected level-3 child under 主井筒改造")
	}
	if len(roots[1].Children) != 0 {
		t.Errorf("expected no children under root 2")
	}
}

func TestBuildCategoryTree_OrphanBecomesRoot(t *testing.T) {
	// A dangling parent_id must not hide the subtree.
	flat := []budget.BudgetCategory{
		{ID: 1, Name: "设备购置费", Level: 1},
		{ID: 9, Name: "孤儿科目", Level: 2, ParentID: intPtr(42)},
	}

	roots := budget.BuildCategoryTree(flat)

	if len(roots) != 2 {
		t.Fatalf("orphan should surface as root, got %d roots", len(roots))
	}
	if roots[1].Name != "孤儿科目" {
		t.Errorf("expected orphan as second root, got %q", roots[1].Name)
	}
}

func TestBuildCategoryTree_Empty(t *testing.T) {
	roots := budget.BuildCategoryTree(nil)
	if len(roots) != 0 {
		t.Errorf("expected empty forest, got %d roots", len(roots))
	}
}
