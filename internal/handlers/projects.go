package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/teamtrack/apiserver/internal/services"
)

// ProjectHandler provides project lifecycle endpoints.
type ProjectHandler struct {
	projects *services.ProjectService
}

func NewProjectHandler(projects *services.ProjectService) *ProjectHandler {
	return &ProjectHandler{projects: projects}
}

// ProjectRouter registers project routes on the given router. All routes
// require authentication; per-route authorization lives in the service.
func ProjectRouter(r chi.Router, projects *services.ProjectService, authMiddleware func(http.Handler) http.Handler) {
	handler := NewProjectHandler(projects)

	r.Use(authMiddleware)
	r.Get("/", handler.List)
	r.Post("/", handler.Create)
	r.Route("/{projectID}", func(r chi.Router) {
		r.Get("/", handler.Get)
		r.Patch("/", handler.Update)
		r.Delete("/", handler.Delete)
		r.Post("/assign", handler.AssignUsers)
		r.Get("/modules", handler.Modules)
		r.Post("/recompute", handler.Recompute)
	})
}

// parseDate accepts a bare date or a full RFC 3339 timestamp.
func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, errors.New("empty date")
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, raw)
}

type CreateProjectRequest struct {
	Name          string `json:"name" validate:"required"`
	Description   string `json:"description"`
	Department    string `json:"department" validate:"required"`
	AssignedLead  int    `json:"assigned_lead" validate:"required,gt=0"`
	Priority      string `json:"priority" validate:"omitempty,oneof=low medium high urgent"`
	Deadline      string `json:"deadline" validate:"required"`
	BasePoints    int    `json:"base_points" validate:"gte=0"`
	AssignedUsers []int  `json:"assigned_users"`
}

func (h *ProjectHandler) Create(w http.ResponseWriter, r *http.Request) {
	principal, err := principalFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req CreateProjectRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	deadline, err := parseDate(req.Deadline)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid deadline")
		return
	}

	project, err := h.projects.Create(r.Context(), principal, services.CreateProjectInput{
		Name:          strings.TrimSpace(req.Name),
		Description:   req.Description,
		Department:    strings.TrimSpace(req.Department),
		AssignedLead:  req.AssignedLead,
		Priority:      req.Priority,
		Deadline:      deadline,
		BasePoints:    req.BasePoints,
		AssignedUsers: req.AssignedUsers,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeData(w, http.StatusCreated, project)
}

func (h *ProjectHandler) List(w http.ResponseWriter, r *http.Request) {
	principal, err := principalFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	_, limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	projects, total, err := h.projects.List(r.Context(), principal, offset, limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeList(w, http.StatusOK, projects, total)
}

func (h *ProjectHandler) Get(w http.ResponseWriter, r *http.Request) {
	principal, err := principalFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	id, err := parseIDParam(r, "projectID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	project, err := h.projects.Get(r.Context(), principal, id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeData(w, http.StatusOK, project)
}

type UpdateProjectRequest struct {
	Name         *string `json:"name" validate:"omitempty,min=1"`
	Description  *string `json:"description"`
	AssignedLead *int    `json:"assigned_lead" validate:"omitempty,gt=0"`
	Status       *string `json:"status"`
	Priority     *string `json:"priority" validate:"omitempty,oneof=low medium high urgent"`
	Deadline     *string `json:"deadline"`
	BasePoints   *int    `json:"base_points" validate:"omitempty,gte=0"`
}

func (h *ProjectHandler) Update(w http.ResponseWriter, r *http.Request) {
	principal, err := principalFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	id, err := parseIDParam(r, "projectID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req UpdateProjectRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	in := services.UpdateProjectInput{
		Name:         req.Name,
		Description:  req.Description,
		AssignedLead: req.AssignedLead,
		Status:       req.Status,
		Priority:     req.Priority,
		BasePoints:   req.BasePoints,
	}
	if req.Deadline != nil {
		deadline, err := parseDate(*req.Deadline)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid deadline")
			return
		}
		in.Deadline = &deadline
	}

	project, err := h.projects.Update(r.Context(), principal, id, in)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeData(w, http.StatusOK, project)
}

func (h *ProjectHandler) Delete(w http.ResponseWriter, r *http.Request) {
	principal, err := principalFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	id, err := parseIDParam(r, "projectID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.projects.Delete(r.Context(), principal, id); err != nil {
		writeServiceError(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "Project deleted")
}

type AssignUsersRequest struct {
	UserIDs []int `json:"user_ids" validate:"required,min=1,dive,gt=0"`
}

func (h *ProjectHandler) AssignUsers(w http.ResponseWriter, r *http.Request) {
	principal, err := principalFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	id, err := parseIDParam(r, "projectID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req AssignUsersRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	project, err := h.projects.AssignUsers(r.Context(), principal, id, req.UserIDs)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeData(w, http.StatusOK, project)
}

func (h *ProjectHandler) Modules(w http.ResponseWriter, r *http.Request) {
	principal, err := principalFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	id, err := parseIDParam(r, "projectID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	modules, err := h.projects.ModulesOf(r.Context(), principal, id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeList(w, http.StatusOK, modules, len(modules))
}

func (h *ProjectHandler) Recompute(w http.ResponseWriter, r *http.Request) {
	principal, err := principalFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	id, err := parseIDParam(r, "projectID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	project, err := h.projects.Recompute(r.Context(), principal, id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeData(w, http.StatusOK, project)
}
