/*
settlement.go - Settlement, procurement, and warehouse reference data

PURPOSE:
  Read-only views over the seeded reference sheets: civil construction
  settlements, monthly procurement summaries and line items, and
  warehouse outbound records.
*/
package api

import (
	"net/http"
	"time"

	"github.com/taneng/budget-control/store/sqlite"
)

type settlementOverview struct {
	CivilSettlement *sqlite.CivilSettlementTotals `json:"civil_settlement"`
	Procurement     *sqlite.ProcurementStats      `json:"procurement"`
	Warehouse       *sqlite.WarehouseStats        `json:"warehouse"`
	MonthlySomoni   []ProcurementSummaryDTO       `json:"monthly_somoni"`
}

// SettlementOverview aggregates the three reference data sets into one
// response.
func (h *Handler) SettlementOverview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	civil, err := h.Store.CivilSettlementTotals(ctx)
	if err != nil {
		writeStoreError(w, "Failed to total settlements", err)
		return
	}
	procurement, err := h.Store.ProcurementRecordStats(ctx, sqlite.ProcurementRecordFilter{})
	if err != nil {
		writeStoreError(w, "Failed to total procurement", err)
		return
	}
	warehouse, err := h.Store.WarehouseOutboundStats(ctx, sqlite.WarehouseFilter{})
	if err != nil {
		writeStoreError(w, "Failed to total warehouse outbound", err)
		return
	}
	summaries, err := h.Store.ListProcurementSummaries(ctx)
	if err != nil {
		writeStoreError(w, "Failed to list procurement summaries", err)
		return
	}
	monthly := make([]ProcurementSummaryDTO, 0, len(summaries))
	for i := range summaries {
		monthly = append(monthly, toProcurementSummaryDTO(&summaries[i]))
	}

	writeJSON(w, http.StatusOK, settlementOverview{
		CivilSettlement: civil,
		Procurement:     procurement,
		Warehouse:       warehouse,
		MonthlySomoni:   monthly,
	})
}

// ListCivilSettlements returns the settlement sheet rows with their
// sub-project names where linked.
func (h *Handler) ListCivilSettlements(w http.ResponseWriter, r *http.Request) {
	rows, err := h.Store.ListCivilSettlements(r.Context())
	if err != nil {
		writeStoreError(w, "Failed to list settlements", err)
		return
	}
	dtos := make([]CivilSettlementDTO, 0, len(rows))
	for i := range rows {
		dtos = append(dtos, toCivilSettlementDTO(&rows[i]))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ProcurementMonthly returns the twelve monthly somoni totals.
func (h *Handler) ProcurementMonthly(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.Store.ListProcurementSummaries(r.Context())
	if err != nil {
		writeStoreError(w, "Failed to list procurement summaries", err)
		return
	}
	monthly := make([]ProcurementSummaryDTO, 0, len(summaries))
	for i := range summaries {
		monthly = append(monthly, toProcurementSummaryDTO(&summaries[i]))
	}
	writeJSON(w, http.StatusOK, monthly)
}

func procurementFilterFromQuery(r *http.Request) sqlite.ProcurementRecordFilter {
	f := sqlite.ProcurementRecordFilter{
		ProjectName:  r.URL.Query().Get("project_name"),
		MaterialName: r.URL.Query().Get("material_name"),
		Page:         queryInt(r, "page", 1),
		PageSize:     queryInt(r, "page_size", 20),
	}
	if month := queryInt(r, "month", 0); month >= 1 && month <= 12 {
		f.Month = &month
	}
	return f
}

// ListProcurementRecords returns a page of procurement line items.
// Filters: ?month=, ?project_name=, ?material_name=.
func (h *Handler) ListProcurementRecords(w http.ResponseWriter, r *http.Request) {
	f := procurementFilterFromQuery(r)
	records, err := h.Store.ListProcurementRecords(r.Context(), f)
	if err != nil {
		writeStoreError(w, "Failed to list procurement records", err)
		return
	}
	total, err := h.Store.CountProcurementRecords(r.Context(), f)
	if err != nil {
		writeStoreError(w, "Failed to count procurement records", err)
		return
	}
	dtos := make([]ProcurementRecordDTO, 0, len(records))
	for i := range records {
		dtos = append(dtos, toProcurementRecordDTO(&records[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items":     dtos,
		"total":     total,
		"page":      f.Page,
		"page_size": f.PageSize,
	})
}

// ProcurementStats returns line-item counts and amount totals for the
// filtered set.
func (h *Handler) ProcurementStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Store.ProcurementRecordStats(r.Context(), procurementFilterFromQuery(r))
	if err != nil {
		writeStoreError(w, "Failed to total procurement", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func warehouseFilterFromQuery(r *http.Request) (sqlite.WarehouseFilter, error) {
	f := sqlite.WarehouseFilter{
		Team:         r.URL.Query().Get("team"),
		ProjectName:  r.URL.Query().Get("project_name"),
		MaterialName: r.URL.Query().Get("material_name"),
		Page:         queryInt(r, "page", 1),
		PageSize:     queryInt(r, "page_size", 20),
	}
	if v := r.URL.Query().Get("start_date"); v != "" {
		t, err := time.Parse(dateLayout, v)
		if err != nil {
			return f, err
		}
		f.From = &t
	}
	if v := r.URL.Query().Get("end_date"); v != "" {
		t, err := time.Parse(dateLayout, v)
		if err != nil {
			return f, err
		}
		end := t.AddDate(0, 0, 1)
		f.To = &end
	}
	return f, nil
}

// ListWarehouseOutbound returns a page of outbound records. Filters:
// ?team=, ?project_name=, ?material_name=, ?start_date=, ?end_date=.
func (h *Handler) ListWarehouseOutbound(w http.ResponseWriter, r *http.Request) {
	f, err := warehouseFilterFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
		return
	}
	records, err := h.Store.ListWarehouseOutbound(r.Context(), f)
	if err != nil {
		writeStoreError(w, "Failed to list warehouse outbound", err)
		return
	}
	total, err := h.Store.CountWarehouseOutbound(r.Context(), f)
	if err != nil {
		writeStoreError(w, "Failed to count warehouse outbound", err)
		return
	}
	dtos := make([]WarehouseOutboundDTO, 0, len(records))
	for i := range records {
		dtos = append(dtos, toWarehouseOutboundDTO(&records[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items":     dtos,
		"total":     total,
		"page":      f.Page,
		"page_size": f.PageSize,
	})
}

// WarehouseStats returns outbound totals grouped by drawing team.
func (h *Handler) WarehouseStats(w http.ResponseWriter, r *http.Request) {
	f, err := warehouseFilterFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
		return
	}
	stats, err := h.Store.WarehouseOutboundStats(r.Context(), f)
	if err != nil {
		writeStoreError(w, "Failed to total warehouse outbound", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
