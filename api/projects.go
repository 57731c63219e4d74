/*
projects.go - Project, sub-project, milestone and progress endpoints
*/
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/taneng/budget-control/budget"
	"github.com/taneng/budget-control/store/sqlite"
)

// =============================================================================
// PROJECTS
// =============================================================================

// ListProjects returns all projects, oldest first.
func (h *Handler) ListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := h.Store.ListProjects(r.Context())
	if err != nil {
		writeStoreError(w, "Failed to list projects", err)
		return
	}
	dtos := make([]ProjectDTO, 0, len(projects))
	for i := range projects {
		dtos = append(dtos, toProjectDTO(&projects[i]))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetProject returns one project.
func (h *Handler) GetProject(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid project id", err)
		return
	}
	p, err := h.Store.GetProject(r.Context(), id)
	if err != nil {
		writeStoreError(w, "Failed to get project", err)
		return
	}
	writeJSON(w, http.StatusOK, toProjectDTO(p))
}

// CreateProject creates a project.
func (h *Handler) CreateProject(w http.ResponseWriter, r *http.Request) {
	var req ProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	p, err := projectFromRequest(&req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
		return
	}
	if err := h.Store.CreateProject(r.Context(), p); err != nil {
		writeStoreError(w, "Failed to create project", err)
		return
	}
	writeJSON(w, http.StatusCreated, toProjectDTO(p))
}

// UpdateProject replaces a project's mutable fields.
func (h *Handler) UpdateProject(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid project id", err)
		return
	}
	var req ProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	p, err := projectFromRequest(&req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
		return
	}
	p.ID = id
	if err := h.Store.UpdateProject(r.Context(), p); err != nil {
		writeStoreError(w, "Failed to update project", err)
		return
	}
	writeJSON(w, http.StatusOK, toProjectDTO(p))
}

func projectFromRequest(req *ProjectRequest) (*budget.Project, error) {
	start, err := parseDatePtr(req.StartDate)
	if err != nil {
		return nil, err
	}
	end, err := parseDatePtr(req.EndDate)
	if err != nil {
		return nil, err
	}
	status := budget.ProjectStatus(req.Status)
	if status == "" {
		status = budget.ProjectPlanning
	}
	return &budget.Project{
		Name:        req.Name,
		Description: req.Description,
		TotalBudget: req.TotalBudget,
		ReserveRate: req.ReserveRate,
		StartDate:   start,
		EndDate:     end,
		Status:      status,
	}, nil
}

// =============================================================================
// SUB-PROJECTS
// =============================================================================

// ListSubProjects returns sub-projects, optionally filtered by
// category and status query parameters.
func (h *Handler) ListSubProjects(w http.ResponseWriter, r *http.Request) {
	f := sqlite.SubProjectFilter{
		Category: r.URL.Query().Get("category"),
		Status:   budget.SubProjectStatus(r.URL.Query().Get("status")),
	}
	if pid := queryInt64Ptr(r, "project_id"); pid != nil {
		f.ProjectID = *pid
	}
	subs, err := h.Store.ListSubProjectsFiltered(r.Context(), f)
	if err != nil {
		writeStoreError(w, "Failed to list sub-projects", err)
		return
	}
	dtos := make([]SubProjectDTO, 0, len(subs))
	for i := range subs {
		dtos = append(dtos, toSubProjectDTO(&subs[i]))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetSubProject returns one sub-project.
func (h *Handler) GetSubProject(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid sub-project id", err)
		return
	}
	sp, err := h.Store.GetSubProject(r.Context(), id)
	if err != nil {
		writeStoreError(w, "Failed to get sub-project", err)
		return
	}
	writeJSON(w, http.StatusOK, toSubProjectDTO(sp))
}

// CreateSubProject creates a sub-project under a project.
func (h *Handler) CreateSubProject(w http.ResponseWriter, r *http.Request) {
	var req SubProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	sp, err := subProjectFromRequest(&req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
		return
	}
	if sp.ProjectID == 0 {
		// Single-project deployment: default to the main project.
		project, err := h.Store.FirstProject(r.Context())
		if err != nil {
			writeStoreError(w, "Failed to load project", err)
			return
		}
		if project == nil {
			writeError(w, http.StatusBadRequest, "No project exists yet", nil)
			return
		}
		sp.ProjectID = project.ID
	}
	if err := h.Store.CreateSubProject(r.Context(), sp); err != nil {
		writeStoreError(w, "Failed to create sub-project", err)
		return
	}
	writeJSON(w, http.StatusCreated, toSubProjectDTO(sp))
}

// UpdateSubProject replaces a sub-project's mutable fields. ActualSpent
// stays under the recompute cascade's control.
func (h *Handler) UpdateSubProject(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid sub-project id", err)
		return
	}
	var req SubProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	current, err := h.Store.GetSubProject(r.Context(), id)
	if err != nil {
		writeStoreError(w, "Failed to get sub-project", err)
		return
	}
	sp, err := subProjectFromRequest(&req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
		return
	}
	sp.ID = id
	sp.ProjectID = current.ProjectID
	if err := h.Store.UpdateSubProject(r.Context(), sp); err != nil {
		writeStoreError(w, "Failed to update sub-project", err)
		return
	}
	sp.ActualSpent = current.ActualSpent
	writeJSON(w, http.StatusOK, toSubProjectDTO(sp))
}

// DeleteSubProject removes a sub-project and, via FK cascade, its cost
// items, expenditures, milestones and progress records.
func (h *Handler) DeleteSubProject(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid sub-project id", err)
		return
	}
	if err := h.Store.DeleteSubProject(r.Context(), id); err != nil {
		writeStoreError(w, "Failed to delete sub-project", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func subProjectFromRequest(req *SubProjectRequest) (*budget.SubProject, error) {
	plannedStart, err := parseDatePtr(req.PlannedStart)
	if err != nil {
		return nil, err
	}
	plannedEnd, err := parseDatePtr(req.PlannedEnd)
	if err != nil {
		return nil, err
	}
	actualStart, err := parseDatePtr(req.ActualStart)
	if err != nil {
		return nil, err
	}
	actualEnd, err := parseDatePtr(req.ActualEnd)
	if err != nil {
		return nil, err
	}
	status := budget.SubProjectStatus(req.Status)
	if status == "" {
		status = budget.SubProjectNotStarted
	}
	return &budget.SubProject{
		ProjectID:       req.ProjectID,
		Name:            req.Name,
		Description:     req.Description,
		Category:        req.Category,
		AllocatedBudget: req.AllocatedBudget,
		ProgressPercent: req.ProgressPercent,
		Status:          status,
		PlannedStart:    plannedStart,
		PlannedEnd:      plannedEnd,
		ActualStart:     actualStart,
		ActualEnd:       actualEnd,
		ResponsibleDept: req.ResponsibleDept,
		SortOrder:       req.SortOrder,
	}, nil
}

// =============================================================================
// MILESTONES
// =============================================================================

// ListMilestones returns a sub-project's milestone nodes in sort order.
func (h *Handler) ListMilestones(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid sub-project id", err)
		return
	}
	milestones, err := h.Store.ListMilestones(r.Context(), id)
	if err != nil {
		writeStoreError(w, "Failed to list milestones", err)
		return
	}
	dtos := make([]MilestoneDTO, 0, len(milestones))
	for i := range milestones {
		dtos = append(dtos, toMilestoneDTO(&milestones[i]))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateMilestone adds a milestone node to a sub-project.
func (h *Handler) CreateMilestone(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid sub-project id", err)
		return
	}
	var req MilestoneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	m, err := milestoneFromRequest(&req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
		return
	}
	m.SubProjectID = id
	if err := h.Store.CreateMilestone(r.Context(), m); err != nil {
		writeStoreError(w, "Failed to create milestone", err)
		return
	}
	writeJSON(w, http.StatusCreated, toMilestoneDTO(m))
}

// UpdateMilestone replaces a milestone node.
func (h *Handler) UpdateMilestone(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "milestoneID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid milestone id", err)
		return
	}
	var req MilestoneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	m, err := milestoneFromRequest(&req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
		return
	}
	m.ID = id
	if err := h.Store.UpdateMilestone(r.Context(), m); err != nil {
		writeStoreError(w, "Failed to update milestone", err)
		return
	}
	writeJSON(w, http.StatusOK, toMilestoneDTO(m))
}

func toMilestoneDTO(m *budget.MilestoneNode) MilestoneDTO {
	return MilestoneDTO{
		ID:           m.ID,
		SubProjectID: m.SubProjectID,
		Name:         m.Name,
		Description:  m.Description,
		PlannedDate:  fmtDatePtr(m.PlannedDate),
		ActualDate:   fmtDatePtr(m.ActualDate),
		Status:       string(m.Status),
		SortOrder:    m.SortOrder,
	}
}

func milestoneFromRequest(req *MilestoneRequest) (*budget.MilestoneNode, error) {
	planned, err := parseDatePtr(req.PlannedDate)
	if err != nil {
		return nil, err
	}
	actual, err := parseDatePtr(req.ActualDate)
	if err != nil {
		return nil, err
	}
	status := budget.MilestoneStatus(req.Status)
	if status == "" {
		status = budget.MilestonePending
	}
	return &budget.MilestoneNode{
		Name:        req.Name,
		Description: req.Description,
		PlannedDate: planned,
		ActualDate:  actual,
		Status:      status,
		SortOrder:   req.SortOrder,
	}, nil
}

// =============================================================================
// PROGRESS RECORDS
// =============================================================================

// ListProgressRecords returns a sub-project's progress history, newest
// first.
func (h *Handler) ListProgressRecords(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid sub-project id", err)
		return
	}
	records, err := h.Store.ListProgressRecords(r.Context(), id)
	if err != nil {
		writeStoreError(w, "Failed to list progress records", err)
		return
	}
	dtos := make([]ProgressRecordDTO, 0, len(records))
	for _, rec := range records {
		dtos = append(dtos, ProgressRecordDTO{
			ID:           rec.ID,
			SubProjectID: rec.SubProjectID,
			RecordDate:   rec.RecordDate.Format(dateLayout),
			Percent:      rec.Percent,
			Milestone:    rec.Milestone,
			Note:         rec.Note,
			CreatedBy:    rec.CreatedBy,
		})
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateProgressRecord files a progress report. The store also updates
// the sub-project's progress percent and may flip its status.
func (h *Handler) CreateProgressRecord(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid sub-project id", err)
		return
	}
	var req ProgressRecordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Percent < 0 || req.Percent > 100 {
		writeError(w, http.StatusBadRequest, "Percent must be between 0 and 100", nil)
		return
	}
	recordDate, err := time.Parse(dateLayout, req.RecordDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid record_date format (use YYYY-MM-DD)", err)
		return
	}

	rec := &budget.ProgressRecord{
		SubProjectID: id,
		RecordDate:   recordDate,
		Percent:      req.Percent,
		Milestone:    req.Milestone,
		Note:         req.Note,
		CreatedBy:    currentUserID(r.Context()),
	}
	if err := h.Store.CreateProgressRecord(r.Context(), rec); err != nil {
		writeStoreError(w, "Failed to create progress record", err)
		return
	}
	writeJSON(w, http.StatusCreated, ProgressRecordDTO{
		ID:           rec.ID,
		SubProjectID: rec.SubProjectID,
		RecordDate:   rec.RecordDate.Format(dateLayout),
		Percent:      rec.Percent,
		Milestone:    rec.Milestone,
		Note:         rec.Note,
		CreatedBy:    rec.CreatedBy,
	})
}
