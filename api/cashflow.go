/*
cashflow.go - Cash flow endpoints and the xlsx export
*/
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/taneng/budget-control/budget"
	"github.com/taneng/budget-control/store/sqlite"
)

func cashFlowFilterFromQuery(r *http.Request) (sqlite.CashFlowFilter, error) {
	f := sqlite.CashFlowFilter{
		FlowType: budget.FlowType(r.URL.Query().Get("flow_type")),
		Status:   budget.CashFlowStatus(r.URL.Query().Get("status")),
	}
	if v := r.URL.Query().Get("start_date"); v != "" {
		t, err := time.Parse(dateLayout, v)
		if err != nil {
			return f, fmt.Errorf("invalid start_date %q", v)
		}
		f.Start = &t
	}
	if v := r.URL.Query().Get("end_date"); v != "" {
		t, err := time.Parse(dateLayout, v)
		if err != nil {
			return f, fmt.Errorf("invalid end_date %q", v)
		}
		end := t.AddDate(0, 0, 1)
		f.End = &end
	}
	return f, nil
}

// ListCashFlows returns matching records, newest first.
func (h *Handler) ListCashFlows(w http.ResponseWriter, r *http.Request) {
	f, err := cashFlowFilterFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid query parameters", err)
		return
	}
	flows, err := h.Store.ListCashFlows(r.Context(), f)
	if err != nil {
		writeStoreError(w, "Failed to list cash flows", err)
		return
	}
	dtos := make([]CashFlowDTO, 0, len(flows))
	for i := range flows {
		dtos = append(dtos, toCashFlowDTO(&flows[i]))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateCashFlow records an inflow or outflow, starting as pending.
func (h *Handler) CreateCashFlow(w http.ResponseWriter, r *http.Request) {
	var req CashFlowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	cf, err := h.cashFlowFromRequest(r, &req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	if err := h.Store.CreateCashFlow(r.Context(), cf); err != nil {
		writeStoreError(w, "Failed to create cash flow", err)
		return
	}
	writeJSON(w, http.StatusCreated, toCashFlowDTO(cf))
}

// UpdateCashFlow replaces a record's fields.
func (h *Handler) UpdateCashFlow(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid cash flow id", err)
		return
	}
	var req CashFlowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	current, err := h.Store.GetCashFlow(r.Context(), id)
	if err != nil {
		writeStoreError(w, "Failed to get cash flow", err)
		return
	}
	cf, err := h.cashFlowFromRequest(r, &req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	cf.ID = id
	cf.CreatedBy = current.CreatedBy
	cf.ApprovedBy = current.ApprovedBy
	if cf.Status == "" {
		cf.Status = current.Status
	}
	if err := h.Store.UpdateCashFlow(r.Context(), cf); err != nil {
		writeStoreError(w, "Failed to update cash flow", err)
		return
	}
	writeJSON(w, http.StatusOK, toCashFlowDTO(cf))
}

// DeleteCashFlow removes a record.
func (h *Handler) DeleteCashFlow(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid cash flow id", err)
		return
	}
	if err := h.Store.DeleteCashFlow(r.Context(), id); err != nil {
		writeStoreError(w, "Failed to delete cash flow", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// ApproveCashFlow stamps a record approved by the current user.
func (h *Handler) ApproveCashFlow(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid cash flow id", err)
		return
	}
	if err := h.Store.ApproveCashFlow(r.Context(), id, currentUserID(r.Context())); err != nil {
		writeStoreError(w, "Failed to approve cash flow", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "approved"})
}

// SummarizeCashFlows returns inflow/outflow totals and a monthly
// breakdown, excluding cancelled records.
func (h *Handler) SummarizeCashFlows(w http.ResponseWriter, r *http.Request) {
	summary, err := h.Store.SummarizeCashFlows(r.Context())
	if err != nil {
		writeStoreError(w, "Failed to summarize cash flows", err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *Handler) cashFlowFromRequest(r *http.Request, req *CashFlowRequest) (*budget.CashFlow, error) {
	flowType := budget.FlowType(req.FlowType)
	if flowType != budget.FlowInflow && flowType != budget.FlowOutflow {
		return nil, fmt.Errorf("flow_type must be inflow or outflow")
	}
	if req.Amount <= 0 {
		return nil, fmt.Errorf("amount must be positive")
	}
	recordDate, err := time.Parse(dateLayout, req.RecordDate)
	if err != nil {
		return nil, fmt.Errorf("invalid record_date format (use YYYY-MM-DD)")
	}
	projectID := req.ProjectID
	if projectID == 0 {
		project, err := h.Store.FirstProject(r.Context())
		if err != nil {
			return nil, err
		}
		if project != nil {
			projectID = project.ID
		}
	}
	return &budget.CashFlow{
		ProjectID:           projectID,
		FlowType:            flowType,
		Category:            req.Category,
		Amount:              req.Amount,
		RecordDate:          recordDate,
		Payee:               req.Payee,
		PaymentMethod:       req.PaymentMethod,
		Description:         req.Description,
		VoucherNo:           req.VoucherNo,
		RelatedSubProjectID: req.RelatedSubProjectID,
		Status:              budget.CashFlowStatus(req.Status),
		CreatedBy:           currentUserID(r.Context()),
	}, nil
}

// =============================================================================
// XLSX EXPORT
// =============================================================================

var cashFlowExportHeaders = []string{"日期", "类型", "金额(万元)", "收款方", "用途", "说明", "凭证号", "状态"}

// ExportCashFlows streams the filtered records as an xlsx attachment.
func (h *Handler) ExportCashFlows(w http.ResponseWriter, r *http.Request) {
	f, err := cashFlowFilterFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid query parameters", err)
		return
	}
	flows, err := h.Store.ListCashFlows(r.Context(), f)
	if err != nil {
		writeStoreError(w, "Failed to list cash flows", err)
		return
	}

	book := excelize.NewFile()
	defer book.Close()
	const sheet = "现金流记录"
	book.SetSheetName("Sheet1", sheet)
	for col, name := range cashFlowExportHeaders {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		book.SetCellValue(sheet, cell, name)
	}
	for row, cf := range flows {
		flowLabel := "流出(支出)"
		if cf.FlowType == budget.FlowInflow {
			flowLabel = "流入(拨款)"
		}
		values := []any{
			cf.RecordDate.Format(dateLayout),
			flowLabel,
			cf.Amount,
			cf.Payee,
			cf.Category,
			cf.Description,
			cf.VoucherNo,
			string(cf.Status),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			book.SetCellValue(sheet, cell, v)
		}
	}

	w.Header().Set("Content-Type",
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="cashflow_export.xlsx"`)
	if err := book.Write(w); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to write workbook", err)
	}
}
