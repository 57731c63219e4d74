/*
respond.go - JSON response and error classification helpers

PURPOSE:
  Single place where domain errors turn into HTTP statuses:
  - ErrNotFound            -> 404
  - ErrInvalidCredentials  -> 401
  - ErrAccountDisabled     -> 403
  - validation / conflict  -> 400 (409 for conflicts)
  - anything else          -> 500
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/taneng/budget-control/budget"
)

// ErrorResponse is the uniform error payload.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeStoreError maps a domain error onto the right status code.
func writeStoreError(w http.ResponseWriter, message string, err error) {
	switch {
	case budget.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case errors.Is(err, budget.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, message, err)
	case errors.Is(err, budget.ErrAccountDisabled):
		writeError(w, http.StatusForbidden, message, err)
	case errors.Is(err, budget.ErrConflict):
		writeError(w, http.StatusConflict, message, err)
	case budget.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

// idParam reads a numeric URL parameter.
func idParam(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, name), 10, 64)
}

// queryInt reads an optional integer query parameter.
func queryInt(r *http.Request, name string, fallback int) int {
	if v := r.URL.Query().Get(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

// queryInt64Ptr reads an optional int64 query parameter as a pointer.
func queryInt64Ptr(r *http.Request, name string) *int64 {
	if v := r.URL.Query().Get(name); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return &n
		}
	}
	return nil
}
