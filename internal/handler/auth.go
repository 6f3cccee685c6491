package handler

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/xid"

	"github.com/sakif/projectshelf/internal/apperror"
	"github.com/sakif/projectshelf/internal/auth"
	"github.com/sakif/projectshelf/internal/model"
	"github.com/sakif/projectshelf/internal/service"
)

const (
	stateCookie       = "oauth_state"
	stateCookieMaxAge = 600 // seconds

	msgGoogleUnavailable = "Google OAuth is not configured on the server. Please set GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET environment variables."
)

// AuthHandler manages password sign-up/sign-in and the Google OAuth flow.
//
// HANDLER RESPONSIBILITIES:
//   - HandleRegister       → create a password account, respond with a token
//   - HandleLogin          → check credentials, respond with a token
//   - HandleGoogleLogin    → redirect the browser to Google's consent page
//   - HandleGoogleCallback → exchange the code, sign in, redirect to the client
//   - HandleMe             → return the signed-in user
//
// google is nil when Google sign-in is not configured; both Google routes
// then answer 501.
type AuthHandler struct {
	auth      *service.AuthService
	google    *auth.GoogleProvider
	clientURL string
	logger    *slog.Logger
}

func NewAuthHandler(
	authService *service.AuthService,
	google *auth.GoogleProvider,
	clientURL string,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		auth:      authService,
		google:    google,
		clientURL: strings.TrimRight(clientURL, "/"),
		logger:    logger,
	}
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// CredentialsResponse is returned by register and login.
type CredentialsResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Token    string `json:"token"`
}

func newCredentialsResponse(res *service.AuthResult) CredentialsResponse {
	return CredentialsResponse{
		ID:       res.User.ID,
		Username: res.User.Username,
		Email:    res.User.Email,
		Token:    res.Token,
	}
}

// HandleRegister creates a password account.
//
// HTTP: POST /api/auth/register
// REQUEST BODY: {"username": "alice", "email": "a@x.com", "password": "secret1"}
// RESPONSE: 201 {"id", "username", "email", "token"}
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	res, err := h.auth.Register(r.Context(), service.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, newCredentialsResponse(res))
}

// HandleLogin signs in with email and password.
//
// HTTP: POST /api/auth/login
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	res, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, newCredentialsResponse(res))
}

// HandleGoogleLogin redirects the user to Google's authorization page.
//
// HTTP: GET /api/auth/google
//
// CSRF PROTECTION VIA STATE:
// A random state value goes into a short-lived HttpOnly cookie and into the
// authorization URL. The callback only proceeds when both match, which proves
// the flow was started by this server.
func (h *AuthHandler) HandleGoogleLogin(w http.ResponseWriter, r *http.Request) {
	if h.google == nil {
		writeError(w, r, apperror.Unavailable(msgGoogleUnavailable))
		return
	}

	state := xid.New().String()
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   stateCookieMaxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.google.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleGoogleCallback completes the OAuth flow.
//
// HTTP: GET /api/auth/google/callback?code=xxx&state=yyy
//
// FLOW:
//  1. Validate the state parameter (CSRF check)
//  2. Exchange the code for a Google profile
//  3. Find, link or create the account and record the login
//  4. Redirect to <CLIENT_URL>/auth/success?token=<jwt>
//
// Every failure redirects to <CLIENT_URL>/login?error=oauth_failed; the
// browser is mid-redirect and cannot do anything useful with a JSON body.
func (h *AuthHandler) HandleGoogleCallback(w http.ResponseWriter, r *http.Request) {
	if h.google == nil {
		writeError(w, r, apperror.Unavailable(msgGoogleUnavailable))
		return
	}

	// The state cookie is single-use.
	cookie, cookieErr := r.Cookie(stateCookie)
	http.SetCookie(w, &http.Cookie{Name: stateCookie, Value: "", Path: "/", MaxAge: -1})

	query := r.URL.Query()
	if cookieErr != nil || cookie.Value == "" || query.Get("state") != cookie.Value {
		h.fail(w, r, "state mismatch")
		return
	}
	if errParam := query.Get("error"); errParam != "" {
		h.fail(w, r, "provider returned "+errParam)
		return
	}
	code := query.Get("code")
	if code == "" {
		h.fail(w, r, "missing code")
		return
	}

	profile, err := h.google.Exchange(r.Context(), code)
	if err != nil {
		h.fail(w, r, err.Error())
		return
	}

	res, err := h.auth.FederatedLogin(r.Context(), profile)
	if err != nil {
		h.fail(w, r, err.Error())
		return
	}

	target := h.clientURL + "/auth/success?token=" + url.QueryEscape(res.Token)
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func (h *AuthHandler) fail(w http.ResponseWriter, r *http.Request, reason string) {
	h.logger.WarnContext(r.Context(), "google callback failed", slog.String("reason", reason))
	http.Redirect(w, r, h.clientURL+"/login?error=oauth_failed", http.StatusSeeOther)
}

// MeResponse is the public profile plus the account email.
type MeResponse struct {
	Email string `json:"email"`
	model.PublicProfile
}

// HandleMe returns the currently authenticated user.
//
// HTTP: GET /api/auth/me
// Auth: Required
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MeResponse{Email: user.Email, PublicProfile: user.Public()})
}
