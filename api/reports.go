/*
reports.go - Monthly assessment report endpoints
*/
package api

import (
	"net/http"
	"time"
)

// MonthlyReport builds the assessment report for ?year=&month=,
// defaulting to the current month.
func (h *Handler) MonthlyReport(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	year := queryInt(r, "year", now.Year())
	month := queryInt(r, "month", int(now.Month()))
	if month < 1 || month > 12 {
		writeError(w, http.StatusBadRequest, "Month must be between 1 and 12", nil)
		return
	}

	report, err := h.Reports.Monthly(r.Context(), year, month)
	if err != nil {
		writeStoreError(w, "Failed to generate report", err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// ExportReportData returns the same payload as MonthlyReport for
// clients that render their own document from it.
func (h *Handler) ExportReportData(w http.ResponseWriter, r *http.Request) {
	h.MonthlyReport(w, r)
}
