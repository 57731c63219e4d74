package budget

// CategoryNode is a BudgetCategory with its resolved children, as served
// by GET /api/budget/categories.
type CategoryNode struct {
	BudgetCategory
	Children []*CategoryNode
}

// BuildCategoryTree converts a flat adjacency list into nested trees.
// Input order is preserved (callers sort by level, sort_order). A node
// whose parent_id does not resolve is treated as a root rather than
// dropped, so a broken link is visible instead of silently hiding a
// subtree.
func BuildCategoryTree(categories []BudgetCategory) []*CategoryNode {
	nodes := make(map[int64]*CategoryNode, len(categories))
	ordered := make([]*CategoryNode, 0, len(categories))
	for i := range categories {
		n := &CategoryNode{BudgetCategory: categories[i], Children: []*CategoryNode{}}
		nodes[n.ID] = n
		ordered = append(ordered, n)
	}

	roots := make([]*CategoryNode, 0)
	for _, n := range ordered {
		if n.ParentID != nil {
			if parent, ok := nodes[*n.ParentID]; ok {
				parent.Children = append(parent.Children, n)
				continue
			}
		}
		roots = append(roots, n)
	}
	return roots
}
