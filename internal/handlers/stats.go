package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/teamtrack/apiserver/internal/services"
)

const defaultLeaderboardSize = 10

// StatsHandler provides statistics and leaderboard endpoints.
type StatsHandler struct {
	stats *services.StatsService
}

func NewStatsHandler(stats *services.StatsService) *StatsHandler {
	return &StatsHandler{stats: stats}
}

// StatsRouter registers statistics routes on the given router. All routes
// require authentication.
func StatsRouter(r chi.Router, stats *services.StatsService, authMiddleware func(http.Handler) http.Handler) {
	handler := NewStatsHandler(stats)

	r.Use(authMiddleware)
	r.Get("/users/{userID}", handler.UserReport)
	r.Get("/leaderboard", handler.Leaderboard)
}

func (h *StatsHandler) UserReport(w http.ResponseWriter, r *http.Request) {
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

	report, err := h.stats.Report(r.Context(), principal, userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeData(w, http.StatusOK, report)
}

func (h *StatsHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	if _, err := principalFromContext(r.Context()); err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	limit := defaultLeaderboardSize
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	entries, err := h.stats.Leaderboard(r.Context(), limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeList(w, http.StatusOK, entries, len(entries))
}
