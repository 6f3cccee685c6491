package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/projectshelf/internal/apperror"
	"github.com/sakif/projectshelf/internal/middleware"
)

func TestWriteError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantStatus  int
		wantKind    string
		wantMessage string
		wantField   string
	}{
		{"validation", apperror.ValidationFailed("title", "Title is required"), 400, "validation_error", "Title is required", "title"},
		{"unauthorized", apperror.Unauthorized("Invalid credentials"), 401, "unauthorized", "Invalid credentials", ""},
		{"forbidden", apperror.Forbidden("User not authorized"), 403, "forbidden", "User not authorized", ""},
		{"not found", apperror.NotFoundMessage("Project not found"), 404, "not_found", "Project not found", ""},
		{"conflict", apperror.Conflict("project", "my-demo"), 409, "conflict", "", ""},
		{"upstream", apperror.Upstream("Failed to upload media", errors.New("host said no")), 502, "upstream_error", "Failed to upload media", ""},
		{"unavailable", apperror.Unavailable("not configured"), 501, "not_implemented", "not configured", ""},
		{"wrapped", fmt.Errorf("service: %w", apperror.NotFoundMessage("User not found")), 404, "not_found", "User not found", ""},
		{"unknown", errors.New("sql: connection refused"), 500, "internal_error", msgInternal, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeError(rec, httptest.NewRequest(http.MethodGet, "/", nil), tt.err)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			var body ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantKind, body.Error)
			if tt.wantMessage != "" {
				assert.Equal(t, tt.wantMessage, body.Message)
			}
			assert.Equal(t, tt.wantField, body.Field)
			assert.Empty(t, body.Detail, "details must stay hidden outside development")
		})
	}
}

func TestWriteError_DetailInDevelopment(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	var captured *http.Request
	middleware.DebugErrors(true)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = r
	})).ServeHTTP(httptest.NewRecorder(), req)
	require.NotNil(t, captured)

	rec := httptest.NewRecorder()
	writeError(rec, captured, errors.New("sql: connection refused"))

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, msgInternal, body.Message)
	assert.Equal(t, "sql: connection refused", body.Detail)

	rec = httptest.NewRecorder()
	writeError(rec, captured, apperror.Upstream("Failed to delete media", errors.New("not found on host")))
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body.Detail, "not found on host")
}

func TestWriteError_ClientErrorsNeverCarryDetail(t *testing.T) {
	ctx := context.Background()
	var captured *http.Request
	middleware.DebugErrors(true)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = r
	})).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil).WithContext(ctx))

	rec := httptest.NewRecorder()
	writeError(rec, captured, apperror.ValidationFailed("email", "Invalid email"))

	assert.NotContains(t, rec.Body.String(), "detail")
}

func TestDecodeJSON(t *testing.T) {
	var dst struct {
		Title string `json:"title"`
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"title":"Demo"}`))
	require.NoError(t, decodeJSON(rec, req, &dst))
	assert.Equal(t, "Demo", dst.Title)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"title":`))
	err := decodeJSON(rec, req, &dst)
	assert.ErrorIs(t, err, apperror.ErrValidation)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"title":"`+strings.Repeat("x", maxJSONBody)+`"}`))
	assert.ErrorIs(t, decodeJSON(rec, req, &dst), apperror.ErrValidation)
}
