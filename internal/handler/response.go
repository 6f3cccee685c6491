package handler

// RESPONSE HELPERS:
// These functions standardise how we send JSON responses and errors.
//
// CONSISTENT ERROR FORMAT:
// Every error response from our API has the same shape:
//   {"error": "not_found", "message": "Project not found"}
//
// Validation errors add the offending field:
//   {"error": "validation_error", "message": "Title is required", "field": "title"}
//
// In development the server also adds "detail" to 5xx responses so the cause
// is visible without reading the logs.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/projectshelf/internal/apperror"
	"github.com/sakif/projectshelf/internal/auth"
	"github.com/sakif/projectshelf/internal/middleware"
	"github.com/sakif/projectshelf/internal/model"
)

// maxJSONBody caps JSON request bodies. Media has its own, larger limit.
const maxJSONBody = 1 << 20

const msgInternal = "An internal error occurred"

// ErrorResponse is the standard error format returned by all API endpoints.
type ErrorResponse struct {
	Error   string `json:"error"`           // Machine-readable error type (e.g., "not_found")
	Message string `json:"message"`         // Human-readable description
	Field   string `json:"field,omitempty"` // Input field at fault, for validation errors
	Detail  string `json:"detail,omitempty"`
}

// MessageResponse is the body of operations that return nothing else.
type MessageResponse struct {
	Message string `json:"message"`
}

// writeJSON sends a JSON response with the given status code.
//
// HEADER ORDER MATTERS:
// Headers and the status code must be set BEFORE the body is written.
// Once Encode writes to w, the headers are sent and later changes are ignored.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent, all we can do is log.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeError maps a domain error to the appropriate HTTP status code and sends it.
//
// ERROR MAPPING:
// The service layer returns errors wrapping apperror sentinels and knows
// nothing about HTTP. This is the one place where they become status codes.
// errors.Is walks the whole chain, so wrapping with fmt.Errorf("...: %w")
// anywhere below keeps the mapping intact.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, kind := classify(err)

	resp := ErrorResponse{Error: kind, Message: msgInternal}

	var appErr *apperror.AppError
	if errors.As(err, &appErr) && status != http.StatusInternalServerError {
		resp.Message = appErr.Message
		resp.Field = appErr.Field
	}

	if status >= http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "request failed",
			slog.String("path", r.URL.Path),
			slog.Int("status", status),
			slog.String("error", errorChain(err)),
		)
		// NEVER expose internal details outside development. The raw error
		// may contain queries, file paths or credentials.
		if middleware.DebugEnabled(r.Context()) {
			resp.Detail = errorChain(err)
		}
	}

	writeJSON(w, status, resp)
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, apperror.ErrValidation):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, apperror.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, apperror.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, apperror.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, apperror.ErrUpstream):
		return http.StatusBadGateway, "upstream_error"
	case errors.Is(err, apperror.ErrUnavailable):
		return http.StatusNotImplemented, "not_implemented"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// errorChain is the full error text. AppError.Error only returns the
// client-facing message, so the wrapped cause is appended for logs.
func errorChain(err error) string {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) && appErr.Err != nil {
		return err.Error() + ": " + appErr.Err.Error()
	}
	return err.Error()
}

// decodeJSON reads a single JSON object from the request body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperror.ValidationFailed("body", "Invalid JSON body")
	}
	return nil
}

// currentUser returns the user attached by auth.RequireAuth.
func currentUser(r *http.Request) (*model.User, error) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		return nil, apperror.Unauthorized("Not authorized, no token")
	}
	return user, nil
}

// viewerID is the id of the optionally authenticated requester, or "".
func viewerID(r *http.Request) string {
	id, _ := auth.UserIDFromContext(r.Context())
	return id
}
