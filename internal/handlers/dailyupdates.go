package handlers

import (
	"bytes"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/teamtrack/apiserver/internal/services"
)

const (
	maxMultipartMemory = 32 << 20
	maxAttachmentBytes = 64 << 20
	formFieldFile      = "file"
)

// DailyUpdateHandler provides daily progress reporting endpoints, including
// attachment upload and download.
type DailyUpdateHandler struct {
	updates *services.DailyUpdateService
}

func NewDailyUpdateHandler(updates *services.DailyUpdateService) *DailyUpdateHandler {
	return &DailyUpdateHandler{updates: updates}
}

// DailyUpdateRouter registers daily-update routes on the given router. All
// routes require authentication.
func DailyUpdateRouter(r chi.Router, updates *services.DailyUpdateService, authMiddleware func(http.Handler) http.Handler) {
	handler := NewDailyUpdateHandler(updates)

	r.Use(authMiddleware)
	r.Post("/", handler.Submit)
	r.Get("/module/{moduleID}", handler.ListByModule)
	r.Get("/project/{projectID}", handler.ListByProject)
	r.Get("/user/{userID}", handler.ListByUser)
	r.Route("/{updateID}", func(r chi.Router) {
		r.Patch("/", handler.Edit)
		r.Post("/attachment", handler.Attach)
		r.Get("/attachment", handler.Attachment)
	})
}

type SubmitUpdateRequest struct {
	ModuleID           int     `json:"module_id" validate:"required,gt=0"`
	HoursWorked        float64 `json:"hours_worked" validate:"gte=0,lte=24"`
	ProgressPercentage int     `json:"progress_percentage" validate:"gte=0,lte=100"`
	Description        string  `json:"description" validate:"required"`
	Blockers           string  `json:"blockers"`
	Status             string  `json:"status" validate:"omitempty,oneof=on_track delayed blocked completed"`
}

func (h *DailyUpdateHandler) Submit(w http.ResponseWriter, r *http.Request) {
	principal, err := principalFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req SubmitUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	update, err := h.updates.Submit(r.Context(), principal, services.SubmitUpdateInput{
		ModuleID:           req.ModuleID,
		HoursWorked:        req.HoursWorked,
		ProgressPercentage: req.ProgressPercentage,
		Description:        req.Description,
		Blockers:           req.Blockers,
		Status:             req.Status,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeData(w, http.StatusCreated, update)
}

type EditUpdateRequest struct {
	HoursWorked        float64 `json:"hours_worked" validate:"gte=0,lte=24"`
	ProgressPercentage int     `json:"progress_percentage" validate:"gte=0,lte=100"`
	Description        string  `json:"description" validate:"required"`
	Blockers           string  `json:"blockers"`
	Status             string  `json:"status" validate:"omitempty,oneof=on_track delayed blocked completed"`
}

func (h *DailyUpdateHandler) Edit(w http.ResponseWriter, r *http.Request) {
	principal, err := principalFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	id, err := parseIDParam(r, "updateID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req EditUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	update, err := h.updates.Edit(r.Context(), principal, id, services.SubmitUpdateInput{
		HoursWorked:        req.HoursWorked,
		ProgressPercentage: req.ProgressPercentage,
		Description:        req.Description,
		Blockers:           req.Blockers,
		Status:             req.Status,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeData(w, http.StatusOK, update)
}

func (h *DailyUpdateHandler) ListByModule(w http.ResponseWriter, r *http.Request) {
	principal, err := principalFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	moduleID, err := parseIDParam(r, "moduleID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	updates, err := h.updates.ListByModule(r.Context(), principal, moduleID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeList(w, http.StatusOK, updates, len(updates))
}

func (h *DailyUpdateHandler) ListByProject(w http.ResponseWriter, r *http.Request) {
	principal, err := principalFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	projectID, err := parseIDParam(r, "projectID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	updates, err := h.updates.ListByProject(r.Context(), principal, projectID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeList(w, http.StatusOK, updates, len(updates))
}

func (h *DailyUpdateHandler) ListByUser(w http.ResponseWriter, r *http.Request) {
	principal, err := principalFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	userID, err := parseIDParam(r, "userID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	updates, err := h.updates.ListByUser(r.Context(), principal, userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeList(w, http.StatusOK, updates, len(updates))
}

func (h *DailyUpdateHandler) Attach(w http.ResponseWriter, r *http.Request) {
	principal, err := principalFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	id, err := parseIDParam(r, "updateID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	files := r.MultipartForm.File[formFieldFile]
	if len(files) != 1 {
		writeError(w, http.StatusBadRequest, "exactly one file is required")
		return
	}

	fileHeader := files[0]
	file, err := fileHeader.Open()
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read upload")
		return
	}
	data, err := readFileLimited(file, maxAttachmentBytes)
	_ = file.Close()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	contentType := fileHeader.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	update, err := h.updates.Attach(r.Context(), principal, id, fileHeader.Filename, bytes.NewReader(data), int64(len(data)), contentType)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeData(w, http.StatusOK, update)
}

func (h *DailyUpdateHandler) Attachment(w http.ResponseWriter, r *http.Request) {
	principal, err := principalFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	id, err := parseIDParam(r, "updateID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rc, filename, err := h.updates.Attachment(r.Context(), principal, id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.Header().Set("Content-Type", "application/octet-stream")
	_, _ = io.Copy(w, rc)
}

func readFileLimited(reader io.Reader, limit int64) ([]byte, error) {
	limited := io.LimitReader(reader, limit+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, errors.New("failed to read upload")
	}
	if int64(len(data)) > limit {
		return nil, errors.New("uploaded file too large")
	}
	return data, nil
}
