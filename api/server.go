/*
server.go - Route wiring and role gates

PURPOSE:
  Builds the chi router: request logging, panic recovery, CORS, then
  the /api tree. /api/health and /api/auth/login are open; everything
  else requires a bearer token, with write operations gated per role.

ROLES:
  admin      - everything, including user management and deletes
  leader     - approvals, alert handling, plan and budget writes
  department - expenditure and progress entry
  viewer     - read only

SEE ALSO:
  - middleware.go: Authenticate and RequireRole
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/taneng/budget-control/budget"
)

// NewRouter assembles the full route tree around the handler.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   h.Config.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	adminOnly := RequireRole(budget.RoleAdmin)
	managers := RequireRole(budget.RoleAdmin, budget.RoleLeader)
	writers := RequireRole(budget.RoleAdmin, budget.RoleLeader, budget.RoleDepartment)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)
		r.Post("/auth/login", h.Login)

		r.Group(func(r chi.Router) {
			r.Use(h.Authenticate)

			r.Get("/auth/me", h.Me)

			r.Route("/users", func(r chi.Router) {
				r.Use(adminOnly)
				r.Get("/", h.ListUsers)
				r.Post("/", h.CreateUser)
				r.Put("/{id}", h.UpdateUser)
			})

			r.Route("/projects", func(r chi.Router) {
				r.Get("/", h.ListProjects)
				r.With(managers).Post("/", h.CreateProject)
				r.Get("/{id}", h.GetProject)
				r.With(managers).Put("/{id}", h.UpdateProject)
			})

			r.Route("/sub-projects", func(r chi.Router) {
				r.Get("/", h.ListSubProjects)
				r.With(managers).Post("/", h.CreateSubProject)
				r.Get("/{id}", h.GetSubProject)
				r.With(managers).Put("/{id}", h.UpdateSubProject)
				r.With(adminOnly).Delete("/{id}", h.DeleteSubProject)
				r.Get("/{id}/milestones", h.ListMilestones)
				r.With(managers).Post("/{id}/milestones", h.CreateMilestone)
				r.With(managers).Put("/{id}/milestones/{milestoneID}", h.UpdateMilestone)
				r.Get("/{id}/progress", h.ListProgressRecords)
				r.With(writers).Post("/{id}/progress", h.CreateProgressRecord)
			})

			r.Route("/categories", func(r chi.Router) {
				r.Get("/tree", h.CategoryTree)
				r.Get("/", h.ListCategoriesFlat)
				r.With(managers).Post("/", h.CreateCategory)
				r.With(managers).Put("/{id}", h.UpdateCategory)
				r.With(adminOnly).Delete("/{id}", h.DeleteCategory)
			})

			r.Route("/cost-items", func(r chi.Router) {
				r.Get("/", h.ListCostItems)
				r.With(writers).Post("/", h.CreateCostItem)
				r.With(writers).Put("/{id}", h.UpdateCostItem)
				r.With(adminOnly).Delete("/{id}", h.DeleteCostItem)
			})

			r.Route("/expenditures", func(r chi.Router) {
				r.Get("/", h.ListExpenditures)
				r.Get("/summary", h.SummarizeExpenditures)
				r.With(writers).Post("/", h.CreateExpenditure)
				r.With(writers).Post("/batch", h.BatchCreateExpenditures)
				r.With(writers).Post("/upload", h.UploadExpenditures)
				r.With(adminOnly).Delete("/{id}", h.DeleteExpenditure)
			})

			r.Route("/cashflow", func(r chi.Router) {
				r.Get("/", h.ListCashFlows)
				r.Get("/summary", h.SummarizeCashFlows)
				r.Get("/export", h.ExportCashFlows)
				r.With(writers).Post("/", h.CreateCashFlow)
				r.With(managers).Put("/{id}", h.UpdateCashFlow)
				r.With(managers).Post("/{id}/approve", h.ApproveCashFlow)
				r.With(adminOnly).Delete("/{id}", h.DeleteCashFlow)
			})

			r.Route("/alerts", func(r chi.Router) {
				r.Get("/", h.ListAlerts)
				r.Get("/stats", h.AlertStats)
				r.With(managers).Post("/check", h.CheckAlerts)
				r.With(managers).Post("/{id}/read", h.MarkAlertRead)
				r.With(managers).Post("/{id}/resolve", h.ResolveAlert)
			})

			r.Route("/simulations", func(r chi.Router) {
				r.Get("/", h.ListSimulations)
				r.Post("/what-if", h.RunWhatIf)
				r.Post("/sensitivity", h.RunSensitivity)
				r.Post("/scenarios", h.CreateScenarioComparison)
				r.Get("/{id}", h.GetSimulation)
				r.With(adminOnly).Delete("/{id}", h.DeleteSimulation)
			})

			r.Route("/reports", func(r chi.Router) {
				r.Get("/monthly", h.MonthlyReport)
				r.Get("/export-data", h.ExportReportData)
			})

			r.Route("/dashboard", func(r chi.Router) {
				r.Get("/summary", h.DashboardSummary)
				r.Get("/alerts", h.DashboardAlerts)
			})

			r.Route("/settlement", func(r chi.Router) {
				r.Get("/overview", h.SettlementOverview)
				r.Get("/civil", h.ListCivilSettlements)
				r.Get("/procurement/monthly", h.ProcurementMonthly)
				r.Get("/procurement/records", h.ListProcurementRecords)
				r.Get("/procurement/stats", h.ProcurementStats)
				r.Get("/warehouse/records", h.ListWarehouseOutbound)
				r.Get("/warehouse/stats", h.WarehouseStats)
			})
		})
	})

	return r
}
