/*
categories.go - Budget category tree and cost item endpoints
*/
package api

import (
	"encoding/json"
	"net/http"

	"github.com/taneng/budget-control/budget"
)

// =============================================================================
// BUDGET CATEGORIES
// =============================================================================

// CategoryTree returns the 3-level科目 hierarchy as nested nodes.
func (h *Handler) CategoryTree(w http.ResponseWriter, r *http.Request) {
	categories, err := h.Store.ListCategories(r.Context())
	if err != nil {
		writeStoreError(w, "Failed to list categories", err)
		return
	}
	tree := budget.BuildCategoryTree(categories)
	writeJSON(w, http.StatusOK, toCategoryTreeDTO(tree))
}

// ListCategoriesFlat returns the categories as a flat list, optionally
// filtered by level.
func (h *Handler) ListCategoriesFlat(w http.ResponseWriter, r *http.Request) {
	level := queryInt(r, "level", 0)

	var (
		categories []budget.BudgetCategory
		err        error
	)
	if level > 0 {
		categories, err = h.Store.ListCategoriesByLevel(r.Context(), level)
	} else {
		categories, err = h.Store.ListCategories(r.Context())
	}
	if err != nil {
		writeStoreError(w, "Failed to list categories", err)
		return
	}
	dtos := make([]CategoryDTO, 0, len(categories))
	for i := range categories {
		dtos = append(dtos, toCategoryDTO(&categories[i]))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateCategory adds a node; the store enforces the parent/level
// invariant and code uniqueness.
func (h *Handler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req CategoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	c := &budget.BudgetCategory{
		Name:         req.Name,
		Code:         req.Code,
		ParentID:     req.ParentID,
		Level:        req.Level,
		BudgetAmount: req.BudgetAmount,
		Description:  req.Description,
		SortOrder:    req.SortOrder,
	}
	if err := h.Store.CreateCategory(r.Context(), c); err != nil {
		writeStoreError(w, "Failed to create category", err)
		return
	}
	writeJSON(w, http.StatusCreated, toCategoryDTO(c))
}

// UpdateCategory changes name, budget, description or sort order. The
// tree position (parent, level, code) is fixed at creation.
func (h *Handler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid category id", err)
		return
	}
	var req CategoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	c, err := h.Store.GetCategory(r.Context(), id)
	if err != nil {
		writeStoreError(w, "Failed to get category", err)
		return
	}
	if req.Name != "" {
		c.Name = req.Name
	}
	c.BudgetAmount = req.BudgetAmount
	c.Description = req.Description
	c.SortOrder = req.SortOrder
	if err := h.Store.UpdateCategory(r.Context(), c); err != nil {
		writeStoreError(w, "Failed to update category", err)
		return
	}
	writeJSON(w, http.StatusOK, toCategoryDTO(c))
}

// DeleteCategory removes a leaf category; nodes with children or cost
// items are refused.
func (h *Handler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid category id", err)
		return
	}
	if err := h.Store.DeleteCategory(r.Context(), id); err != nil {
		writeStoreError(w, "Failed to delete category", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// =============================================================================
// COST ITEMS
// =============================================================================

// ListCostItems returns cost items, optionally narrowed to one
// sub-project via ?sub_project_id=.
func (h *Handler) ListCostItems(w http.ResponseWriter, r *http.Request) {
	subProjectID := int64(0)
	if v := queryInt64Ptr(r, "sub_project_id"); v != nil {
		subProjectID = *v
	}
	items, err := h.Store.ListCostItems(r.Context(), subProjectID)
	if err != nil {
		writeStoreError(w, "Failed to list cost items", err)
		return
	}
	dtos := make([]CostItemDTO, 0, len(items))
	for i := range items {
		dtos = append(dtos, toCostItemDTO(&items[i]))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateCostItem adds a cost line to a sub-project.
func (h *Handler) CreateCostItem(w http.ResponseWriter, r *http.Request) {
	var req CostItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.SubProjectID == 0 {
		writeError(w, http.StatusBadRequest, "sub_project_id is required", nil)
		return
	}
	ci := &budget.CostItem{
		SubProjectID: req.SubProjectID,
		CategoryID:   req.CategoryID,
		Name:         req.Name,
		BudgetAmount: req.BudgetAmount,
		Unit:         req.Unit,
		Quantity:     req.Quantity,
		UnitPrice:    req.UnitPrice,
		Note:         req.Note,
	}
	if err := h.Store.CreateCostItem(r.Context(), ci); err != nil {
		writeStoreError(w, "Failed to create cost item", err)
		return
	}
	writeJSON(w, http.StatusCreated, toCostItemDTO(ci))
}

// UpdateCostItem replaces a cost item's plan fields; ActualAmount stays
// under the recompute cascade's control.
func (h *Handler) UpdateCostItem(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid cost item id", err)
		return
	}
	var req CostItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	ci, err := h.Store.GetCostItem(r.Context(), id)
	if err != nil {
		writeStoreError(w, "Failed to get cost item", err)
		return
	}
	ci.CategoryID = req.CategoryID
	ci.Name = req.Name
	ci.BudgetAmount = req.BudgetAmount
	ci.Unit = req.Unit
	ci.Quantity = req.Quantity
	ci.UnitPrice = req.UnitPrice
	ci.Note = req.Note
	if err := h.Store.UpdateCostItem(r.Context(), ci); err != nil {
		writeStoreError(w, "Failed to update cost item", err)
		return
	}
	writeJSON(w, http.StatusOK, toCostItemDTO(ci))
}

// DeleteCostItem removes a cost item; its expenditures survive with a
// null cost_item_id.
func (h *Handler) DeleteCostItem(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid cost item id", err)
		return
	}
	if err := h.Store.DeleteCostItem(r.Context(), id); err != nil {
		writeStoreError(w, "Failed to delete cost item", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
