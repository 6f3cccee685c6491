package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/projectshelf/internal/apperror"
	"github.com/sakif/projectshelf/internal/model"
)

type stubUsers map[string]*model.User

func (s stubUsers) GetByID(_ context.Context, id string) (*model.User, error) {
	if id == "broken" {
		return nil, errors.New("database is down")
	}
	if u, ok := s[id]; ok {
		return u, nil
	}
	return nil, apperror.NotFound("user", id)
}

// echoUser writes the id of the context user, or "anonymous".
var echoUser = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	if id, ok := UserIDFromContext(r.Context()); ok {
		_, _ = w.Write([]byte(id))
		return
	}
	_, _ = w.Write([]byte("anonymous"))
})

func TestRequireAuth(t *testing.T) {
	ts := newTestTokenService(t)
	users := stubUsers{"u1": {ID: "u1", Username: "alice"}}

	valid, _ := ts.Generate("u1")
	expired, _ := ts.GenerateWithDuration("u1", -time.Minute)
	ghost, _ := ts.Generate("deleted-user")
	broken, _ := ts.Generate("broken")

	tests := []struct {
		name        string
		header      string
		wantStatus  int
		wantMessage string
		wantBody    string
	}{
		{"no header", "", http.StatusUnauthorized, "Not authorized, no token", ""},
		{"wrong scheme", "Basic " + valid, http.StatusUnauthorized, "Not authorized, no token", ""},
		{"empty bearer", "Bearer ", http.StatusUnauthorized, "Not authorized, no token", ""},
		{"garbage token", "Bearer abc.def.ghi", http.StatusUnauthorized, "Not authorized, token failed", ""},
		{"expired token", "Bearer " + expired, http.StatusUnauthorized, "Not authorized, token failed", ""},
		{"user gone", "Bearer " + ghost, http.StatusUnauthorized, "Not authorized, user not found", ""},
		{"store failure", "Bearer " + broken, http.StatusInternalServerError, "An internal error occurred", ""},
		{"valid", "Bearer " + valid, http.StatusOK, "", "u1"},
		{"lowercase scheme", "bearer " + valid, http.StatusOK, "", "u1"},
	}

	handler := RequireAuth(ts, users)(echoUser)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantMessage != "" {
				var body map[string]string
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
				assert.Equal(t, tt.wantMessage, body["message"])
				assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			}
			if tt.wantBody != "" {
				assert.Equal(t, tt.wantBody, rec.Body.String())
			}
		})
	}
}

func TestRequireAuth_PutsFullUserInContext(t *testing.T) {
	ts := newTestTokenService(t)
	users := stubUsers{"u1": {ID: "u1", Username: "alice"}}
	token, _ := ts.Generate("u1")

	var got *model.User
	handler := RequireAuth(ts, users)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = UserFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	require.NotNil(t, got)
	assert.Equal(t, "alice", got.Username)
}

func TestOptionalAuth(t *testing.T) {
	ts := newTestTokenService(t)
	users := stubUsers{"u1": {ID: "u1"}}
	valid, _ := ts.Generate("u1")

	tests := []struct {
		name     string
		header   string
		wantBody string
	}{
		{"no token", "", "anonymous"},
		{"bad token", "Bearer nope", "anonymous"},
		{"unknown user", "Bearer " + func() string { s, _ := ts.Generate("ghost"); return s }(), "anonymous"},
		{"valid token", "Bearer " + valid, "u1"},
	}

	handler := OptionalAuth(ts, users)(echoUser)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.wantBody, rec.Body.String())
		})
	}
}

func TestUserFromContext_Empty(t *testing.T) {
	_, ok := UserFromContext(context.Background())
	assert.False(t, ok)

	_, ok = UserIDFromContext(context.Background())
	assert.False(t, ok)
}
