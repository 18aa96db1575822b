package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/teamtrack/apiserver/internal/services"
)

// ModuleHandler provides module lifecycle and progress endpoints.
type ModuleHandler struct {
	modules *services.ModuleService
}

func NewModuleHandler(modules *services.ModuleService) *ModuleHandler {
	return &ModuleHandler{modules: modules}
}

// ModuleRouter registers module routes on the given router. All routes
// require authentication.
func ModuleRouter(r chi.Router, modules *services.ModuleService, authMiddleware func(http.Handler) http.Handler) {
	handler := NewModuleHandler(modules)

	r.Use(authMiddleware)
	r.Post("/", handler.Create)
	r.Route("/{moduleID}", func(r chi.Router) {
		r.Get("/", handler.Get)
		r.Patch("/", handler.Update)
		r.Delete("/", handler.Delete)
		r.Patch("/progress", handler.UpdateProgress)
		r.Post("/assign", handler.AssignUsers)
	})
}

type CreateModuleRequest struct {
	ProjectID     int     `json:"project_id" validate:"required,gt=0"`
	Name          string  `json:"name" validate:"required"`
	Description   string  `json:"description"`
	EstimatedTime float64 `json:"estimated_time" validate:"gte=0"`
	Priority      string  `json:"priority" validate:"omitempty,oneof=low medium high"`
	AssignedUsers []int   `json:"assigned_users"`
}

func (h *ModuleHandler) Create(w http.ResponseWriter, r *http.Request) {
	principal, err := principalFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req CreateModuleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	module, err := h.modules.Create(r.Context(), principal, services.CreateModuleInput{
		ProjectID:     req.ProjectID,
		Name:          strings.TrimSpace(req.Name),
		Description:   req.Description,
		EstimatedTime: req.EstimatedTime,
		Priority:      req.Priority,
		AssignedUsers: req.AssignedUsers,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeData(w, http.StatusCreated, module)
}

func (h *ModuleHandler) Get(w http.ResponseWriter, r *http.Request) {
	principal, err := principalFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	id, err := parseIDParam(r, "moduleID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	module, err := h.modules.Get(r.Context(), principal, id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeData(w, http.StatusOK, module)
}

type UpdateModuleRequest struct {
	Name          *string  `json:"name" validate:"omitempty,min=1"`
	Description   *string  `json:"description"`
	EstimatedTime *float64 `json:"estimated_time" validate:"omitempty,gte=0"`
	Priority      *string  `json:"priority" validate:"omitempty,oneof=low medium high"`
	Status        *string  `json:"status"`
}

func (h *ModuleHandler) Update(w http.ResponseWriter, r *http.Request) {
	principal, err := principalFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	id, err := parseIDParam(r, "moduleID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req UpdateModuleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	module, err := h.modules.Update(r.Context(), principal, id, services.UpdateModuleInput{
		Name:          req.Name,
		Description:   req.Description,
		EstimatedTime: req.EstimatedTime,
		Priority:      req.Priority,
		Status:        req.Status,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeData(w, http.StatusOK, module)
}

type UpdateProgressRequest struct {
	Progress int `json:"progress" validate:"gte=0,lte=100"`
}

func (h *ModuleHandler) UpdateProgress(w http.ResponseWriter, r *http.Request) {
	principal, err := principalFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	id, err := parseIDParam(r, "moduleID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req UpdateProgressRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	module, err := h.modules.UpdateProgress(r.Context(), principal, id, req.Progress)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeData(w, http.StatusOK, module)
}

func (h *ModuleHandler) AssignUsers(w http.ResponseWriter, r *http.Request) {
	principal, err := principalFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	id, err := parseIDParam(r, "moduleID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req AssignUsersRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	module, err := h.modules.AssignUsers(r.Context(), principal, id, req.UserIDs)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeData(w, http.StatusOK, module)
}

func (h *ModuleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	principal, err := principalFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	id, err := parseIDParam(r, "moduleID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.modules.Delete(r.Context(), principal, id); err != nil {
		writeServiceError(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "Module deleted")
}
