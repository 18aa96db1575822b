package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/teamtrack/apiserver/internal/services"
)

// UserHandler provides account management endpoints: the admin approval
// queue, role-scoped listing and profile updates.
type UserHandler struct {
	users *services.UserService
}

func NewUserHandler(users *services.UserService) *UserHandler {
	return &UserHandler{users: users}
}

// UserRouter registers user routes on the given router. All routes require
// authentication.
func UserRouter(r chi.Router, users *services.UserService, authMiddleware func(http.Handler) http.Handler) {
	handler := NewUserHandler(users)

	r.Use(authMiddleware)
	r.Get("/", handler.List)
	r.Get("/pending", handler.ListPending)
	r.Route("/{userID}", func(r chi.Router) {
		r.Get("/", handler.Get)
		r.Patch("/", handler.Update)
		r.Delete("/", handler.Delete)
		r.Post("/approve", handler.Approve)
		r.Post("/reject", handler.Reject)
	})
}

func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
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

	department := strings.TrimSpace(r.URL.Query().Get("department"))
	users, total, err := h.users.List(r.Context(), principal, department, offset, limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeList(w, http.StatusOK, users, total)
}

func (h *UserHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	principal, err := principalFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	users, err := h.users.ListPending(r.Context(), principal)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeList(w, http.StatusOK, users, len(users))
}

func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	principal, err := principalFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	id, err := parseIDParam(r, "userID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.users.Get(r.Context(), principal, id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeData(w, http.StatusOK, user)
}

type UpdateUserRequest struct {
	Name        *string `json:"name" validate:"omitempty,min=1"`
	DeviceToken *string `json:"device_token"`
	Password    *string `json:"password" validate:"omitempty,min=8"`
	Role        *string `json:"role" validate:"omitempty,oneof=user lead"`
	Department  *string `json:"department" validate:"omitempty,min=1"`
	IsActive    *bool   `json:"is_active"`
}

func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	principal, err := principalFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	id, err := parseIDParam(r, "userID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req UpdateUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	in := services.UpdateUserInput{
		Name:        req.Name,
		DeviceToken: req.DeviceToken,
		Role:        req.Role,
		Department:  req.Department,
		IsActive:    req.IsActive,
	}
	if req.Password != nil {
		hashed, err := bcrypt.GenerateFromPassword([]byte(*req.Password), bcrypt.DefaultCost)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		hash := string(hashed)
		in.PasswordHash = &hash
	}

	user, err := h.users.Update(r.Context(), principal, id, in)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeData(w, http.StatusOK, user)
}

func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	principal, err := principalFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	id, err := parseIDParam(r, "userID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.users.Delete(r.Context(), principal, id); err != nil {
		writeServiceError(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "User deleted")
}

func (h *UserHandler) Approve(w http.ResponseWriter, r *http.Request) {
	principal, err := principalFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	id, err := parseIDParam(r, "userID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.users.Approve(r.Context(), principal, id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeData(w, http.StatusOK, user)
}

func (h *UserHandler) Reject(w http.ResponseWriter, r *http.Request) {
	principal, err := principalFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	id, err := parseIDParam(r, "userID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.users.Reject(r.Context(), principal, id); err != nil {
		writeServiceError(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "Registration rejected")
}
