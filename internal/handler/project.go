package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/projectshelf/internal/model"
	"github.com/sakif/projectshelf/internal/service"
)

// ProjectHandler serves the project CRUD routes and the public counters.
type ProjectHandler struct {
	projects *service.ProjectService
	logger   *slog.Logger
}

func NewProjectHandler(projects *service.ProjectService, logger *slog.Logger) *ProjectHandler {
	return &ProjectHandler{projects: projects, logger: logger}
}

// projectRequest is the body of POST /api/projects. Any "user" field sent by
// the client is simply not decoded: the owner is always the requester.
type projectRequest struct {
	Title        string                `json:"title"`
	Overview     string                `json:"overview"`
	MediaGallery []model.MediaItem     `json:"mediaGallery"`
	Timeline     []model.TimelineEntry `json:"timeline"`
	Tools        []model.Tool          `json:"tools"`
	Outcomes     model.Outcomes        `json:"outcomes"`
}

// projectPatchRequest is the body of PUT /api/projects/{id}. Absent keys
// decode to nil and leave the stored value alone.
type projectPatchRequest struct {
	Title        *string                `json:"title"`
	Overview     *string                `json:"overview"`
	MediaGallery *[]model.MediaItem     `json:"mediaGallery"`
	Timeline     *[]model.TimelineEntry `json:"timeline"`
	Tools        *[]model.Tool          `json:"tools"`
	Outcomes     *model.Outcomes        `json:"outcomes"`
}

// HandleList returns the requester's projects.
//
// HTTP: GET /api/projects (auth)
func (h *ProjectHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	projects, err := h.projects.List(r.Context(), user.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, projects)
}

// HandleCreate stores a new project owned by the requester.
//
// HTTP: POST /api/projects (auth) → 201
func (h *ProjectHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req projectRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	project, err := h.projects.Create(r.Context(), user.ID, service.ProjectInput{
		Title:        req.Title,
		Overview:     req.Overview,
		MediaGallery: req.MediaGallery,
		Timeline:     req.Timeline,
		Tools:        req.Tools,
		Outcomes:     req.Outcomes,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, project)
}

// HandleGet returns one project and counts the read as a view.
//
// HTTP: GET /api/projects/{id} (public, optional auth)
func (h *ProjectHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	project, err := h.projects.Get(r.Context(), chi.URLParam(r, "id"), viewerID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

// HandleGetPublic returns a project with its creator's public profile.
//
// HTTP: GET /api/projects/{id}/public (public, optional auth)
func (h *ProjectHandler) HandleGetPublic(w http.ResponseWriter, r *http.Request) {
	project, err := h.projects.GetPublic(r.Context(), chi.URLParam(r, "id"), viewerID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

// HandleUpdate applies a partial update. Only the owner may do this.
//
// HTTP: PUT /api/projects/{id} (auth)
func (h *ProjectHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req projectPatchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	project, err := h.projects.Update(r.Context(), chi.URLParam(r, "id"), user.ID, service.ProjectPatch{
		Title:        req.Title,
		Overview:     req.Overview,
		MediaGallery: req.MediaGallery,
		Timeline:     req.Timeline,
		Tools:        req.Tools,
		Outcomes:     req.Outcomes,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

// HandleDelete removes a project. Only the owner may do this.
//
// HTTP: DELETE /api/projects/{id} (auth)
func (h *ProjectHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.projects.Delete(r.Context(), chi.URLParam(r, "id"), user.ID); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Project removed"})
}

// HandleEngagement bumps the engagement counter and returns both counters.
//
// HTTP: PUT /api/projects/{id}/engagement
// HTTP: POST /api/projects/{id}/analytics/engage
func (h *ProjectHandler) HandleEngagement(w http.ResponseWriter, r *http.Request) {
	counters, err := h.projects.IncrementEngagement(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, counters)
}

// HandleView bumps the view counter without returning the project.
//
// HTTP: POST /api/projects/{id}/analytics/view
func (h *ProjectHandler) HandleView(w http.ResponseWriter, r *http.Request) {
	counters, err := h.projects.RecordView(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, counters)
}
