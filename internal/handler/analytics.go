package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/projectshelf/internal/service"
)

// AnalyticsHandler records visits for the signed-in user and serves their
// dashboard. Every route requires auth.
type AnalyticsHandler struct {
	analytics *service.AnalyticsService
	logger    *slog.Logger
}

func NewAnalyticsHandler(analytics *service.AnalyticsService, logger *slog.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{analytics: analytics, logger: logger}
}

// HTTP: POST /api/analytics/page-view
func (h *AnalyticsHandler) HandlePageView(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.analytics.RecordPageView(r.Context(), user.ID); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Page view recorded"})
}

// HTTP: POST /api/analytics/project-view/{projectId}
func (h *AnalyticsHandler) HandleProjectView(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.analytics.RecordProjectView(r.Context(), user.ID, chi.URLParam(r, "projectId")); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Project view recorded"})
}

// HandleDashboard returns visit totals, the trailing 30 days, the top five
// viewed projects and login stats.
//
// HTTP: GET /api/analytics/dashboard
func (h *AnalyticsHandler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	dashboard, err := h.analytics.Dashboard(r.Context(), user.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dashboard)
}

// HTTP: GET /api/analytics/user
func (h *AnalyticsHandler) HandleUserAnalytics(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	stats, err := h.analytics.UserAnalytics(r.Context(), user.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
