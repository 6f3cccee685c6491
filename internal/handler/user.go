package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/projectshelf/internal/model"
	"github.com/sakif/projectshelf/internal/service"
)

// UserHandler serves profile editing and the public portfolio routes.
type UserHandler struct {
	users  *service.UserService
	logger *slog.Logger
}

func NewUserHandler(users *service.UserService, logger *slog.Logger) *UserHandler {
	return &UserHandler{users: users, logger: logger}
}

type profileRequest struct {
	Username       *string            `json:"username"`
	Email          *string            `json:"email"`
	Password       *string            `json:"password"`
	Bio            *string            `json:"bio"`
	ProfilePicture *string            `json:"profilePicture"`
	SocialLinks    *model.SocialLinks `json:"socialLinks"`
}

type themeRequest struct {
	SelectedTheme      string                    `json:"selectedTheme"`
	ThemeCustomization *model.ThemeCustomization `json:"themeCustomization"`
}

// HandleGetProfile returns the requester's own profile, email included.
//
// HTTP: GET /api/users/profile (auth)
func (h *UserHandler) HandleGetProfile(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	profile, err := h.users.GetProfile(r.Context(), user.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// HandleUpdateProfile applies a partial profile edit.
//
// HTTP: PUT /api/users/profile (auth)
func (h *UserHandler) HandleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req profileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	updated, err := h.users.UpdateProfile(r.Context(), user.ID, service.ProfileUpdate{
		Username:       req.Username,
		Email:          req.Email,
		Password:       req.Password,
		Bio:            req.Bio,
		ProfilePicture: req.ProfilePicture,
		SocialLinks:    req.SocialLinks,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// HandleUpdateTheme changes the portfolio theme.
//
// HTTP: PUT /api/users/theme (auth)
func (h *UserHandler) HandleUpdateTheme(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req themeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	updated, err := h.users.UpdateTheme(r.Context(), user.ID, service.ThemeUpdate{
		SelectedTheme:      req.SelectedTheme,
		ThemeCustomization: req.ThemeCustomization,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// HandlePublicProfile looks a user up by username. No email, no credentials.
//
// HTTP: GET /api/users/{username}
func (h *UserHandler) HandlePublicProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := h.users.GetPublicProfile(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// HandlePortfolio returns a user's public profile and all their projects.
//
// HTTP: GET /api/users/portfolio/{username}
func (h *UserHandler) HandlePortfolio(w http.ResponseWriter, r *http.Request) {
	portfolio, err := h.users.GetPortfolio(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, portfolio)
}
