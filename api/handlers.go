/*
handlers.go - Handler context, health, auth and user management

PURPOSE:
  The Handler struct holds every dependency the HTTP layer needs: the
  store, the token issuer, the alert checker, the report generator and
  the runtime config. Per-domain endpoints live in sibling files; this
  one keeps the core plumbing plus /auth and /users.

ERROR HANDLING:
  Domain errors map to HTTP statuses in respond.go. Handlers never
  inspect sql errors directly.

SEE ALSO:
  - server.go: Route wiring and role gates
  - middleware.go: Authentication
*/
package api

import (
	"encoding/json"
	"net/http"

	"github.com/taneng/budget-control/auth"
	"github.com/taneng/budget-control/budget"
	"github.com/taneng/budget-control/config"
	"github.com/taneng/budget-control/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store   *sqlite.Store
	Tokens  *auth.TokenIssuer
	Config  *config.Config
	Checker *budget.AlertChecker
	Reports *budget.ReportGenerator
}

// NewHandler wires the engines against the store using the configured
// thresholds and defaults.
func NewHandler(store *sqlite.Store, cfg *config.Config) *Handler {
	return &Handler{
		Store:  store,
		Tokens: auth.NewTokenIssuer(cfg.SecretKey, cfg.TokenTTL),
		Config: cfg,
		Checker: budget.NewAlertChecker(store, budget.Thresholds{
			Yellow:        cfg.AlertYellowThreshold,
			Red:           cfg.AlertRedThreshold,
			ProgressDelay: cfg.ProgressDelayThreshold,
		}),
		Reports: budget.NewReportGenerator(store, cfg.TotalBudget, cfg.ReserveRate),
	}
}

// Health is the unauthenticated liveness probe.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// AUTH
// =============================================================================

// Login verifies credentials and issues an access token.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	user, err := h.Store.GetUserByUsername(r.Context(), req.Username)
	if err != nil {
		if budget.IsNotFound(err) {
			writeError(w, http.StatusUnauthorized, "Invalid username or password", nil)
			return
		}
		writeStoreError(w, "Failed to load user", err)
		return
	}
	if !auth.CheckPassword(user.PasswordHash, req.Password) {
		writeError(w, http.StatusUnauthorized, "Invalid username or password", nil)
		return
	}
	if !user.IsActive {
		writeError(w, http.StatusForbidden, "Account disabled", budget.ErrAccountDisabled)
		return
	}

	token, err := h.Tokens.Issue(user)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to issue token", err)
		return
	}

	writeJSON(w, http.StatusOK, LoginResponse{
		AccessToken: token,
		TokenType:   "bearer",
		User:        toUserDTO(user),
	})
}

// Me returns the authenticated user's profile.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.Store.GetUser(r.Context(), currentUserID(r.Context()))
	if err != nil {
		writeStoreError(w, "Failed to load user", err)
		return
	}
	writeJSON(w, http.StatusOK, toUserDTO(user))
}

// =============================================================================
// USER MANAGEMENT (admin)
// =============================================================================

// ListUsers returns all accounts.
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.Store.ListUsers(r.Context())
	if err != nil {
		writeStoreError(w, "Failed to list users", err)
		return
	}
	dtos := make([]UserDTO, 0, len(users))
	for i := range users {
		dtos = append(dtos, toUserDTO(&users[i]))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateUser creates an account.
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Username and password are required", nil)
		return
	}
	role := budget.Role(req.Role)
	if !budget.ValidRole(role) {
		writeError(w, http.StatusBadRequest, "Invalid role", nil)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to hash password", err)
		return
	}
	user := &budget.User{
		Username:     req.Username,
		FullName:     req.FullName,
		PasswordHash: hash,
		Role:         role,
		Department:   req.Department,
		IsActive:     true,
	}
	if err := h.Store.CreateUser(r.Context(), user); err != nil {
		writeStoreError(w, "Failed to create user", err)
		return
	}
	writeJSON(w, http.StatusCreated, toUserDTO(user))
}

// UpdateUser changes profile fields, role, active flag or password.
func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid user id", err)
		return
	}
	var req UpdateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	user, err := h.Store.GetUser(r.Context(), id)
	if err != nil {
		writeStoreError(w, "Failed to load user", err)
		return
	}
	if req.FullName != nil {
		user.FullName = *req.FullName
	}
	if req.Department != nil {
		user.Department = *req.Department
	}
	if req.Role != nil {
		role := budget.Role(*req.Role)
		if !budget.ValidRole(role) {
			writeError(w, http.StatusBadRequest, "Invalid role", nil)
			return
		}
		user.Role = role
	}
	if req.IsActive != nil {
		user.IsActive = *req.IsActive
	}
	if err := h.Store.UpdateUser(r.Context(), user); err != nil {
		writeStoreError(w, "Failed to update user", err)
		return
	}

	if req.Password != nil && *req.Password != "" {
		hash, err := auth.HashPassword(*req.Password)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to hash password", err)
			return
		}
		if err := h.Store.SetUserPassword(r.Context(), id, hash); err != nil {
			writeStoreError(w, "Failed to set password", err)
			return
		}
	}
	writeJSON(w, http.StatusOK, toUserDTO(user))
}
