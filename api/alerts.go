/*
alerts.go - Alert listing, checking, and lifecycle endpoints
*/
package api

import (
	"net/http"
	"strconv"

	"github.com/taneng/budget-control/budget"
	"github.com/taneng/budget-control/store/sqlite"
)

// ListAlerts returns alerts, newest first. Supports ?level= and
// ?is_resolved= filters plus ?limit=.
func (h *Handler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	f := sqlite.AlertFilter{
		Level: budget.AlertLevel(r.URL.Query().Get("level")),
		Limit: queryInt(r, "limit", 50),
	}
	if v := r.URL.Query().Get("is_resolved"); v != "" {
		resolved, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid is_resolved value", err)
			return
		}
		f.IsResolved = &resolved
	}
	alerts, err := h.Store.ListAlerts(r.Context(), f)
	if err != nil {
		writeStoreError(w, "Failed to list alerts", err)
		return
	}
	dtos := make([]AlertDTO, 0, len(alerts))
	for i := range alerts {
		dtos = append(dtos, toAlertDTO(&alerts[i]))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CheckAlerts runs the alert rules once and reports what changed.
func (h *Handler) CheckAlerts(w http.ResponseWriter, r *http.Request) {
	result, err := h.Checker.Check(r.Context())
	if err != nil {
		writeStoreError(w, "Alert check failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"generated": result.Generated,
		"updated":   result.Updated,
	})
}

// MarkAlertRead flags an alert as read.
func (h *Handler) MarkAlertRead(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid alert id", err)
		return
	}
	if err := h.Store.MarkAlertRead(r.Context(), id); err != nil {
		writeStoreError(w, "Failed to mark alert read", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "read"})
}

// ResolveAlert closes an alert; future checks may open a fresh one.
func (h *Handler) ResolveAlert(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid alert id", err)
		return
	}
	if err := h.Store.ResolveAlert(r.Context(), id); err != nil {
		writeStoreError(w, "Failed to resolve alert", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "resolved"})
}

// AlertStats returns overall and per-level unresolved counts.
func (h *Handler) AlertStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Store.GetAlertStats(r.Context())
	if err != nil {
		writeStoreError(w, "Failed to get alert stats", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
