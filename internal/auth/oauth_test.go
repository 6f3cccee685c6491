package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

// fakeGoogle serves the token endpoint and the userinfo API.
func fakeGoogle(t *testing.T, profile map[string]any) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if r.Form.Get("code") != "good-code" {
			http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "access-123",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	})
	mux.HandleFunc("/oauth2/v2/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer access-123" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(profile)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestGoogleProvider(srv *httptest.Server) *GoogleProvider {
	p := NewGoogleProvider("client-id", "client-secret", "http://localhost/api/auth/google/callback")
	p.config.Endpoint = oauth2.Endpoint{
		AuthURL:   srv.URL + "/auth",
		TokenURL:  srv.URL + "/token",
		AuthStyle: oauth2.AuthStyleInParams,
	}
	p.apiEndpoint = srv.URL + "/"
	return p
}

func TestGoogleProvider_AuthURL(t *testing.T) {
	p := NewGoogleProvider("client-id", "client-secret", "http://localhost/cb")

	u, err := url.Parse(p.AuthURL("state-xyz"))
	require.NoError(t, err)

	q := u.Query()
	assert.Equal(t, "accounts.google.com", u.Host)
	assert.Equal(t, "state-xyz", q.Get("state"))
	assert.Equal(t, "client-id", q.Get("client_id"))
	assert.Equal(t, "http://localhost/cb", q.Get("redirect_uri"))
	assert.Contains(t, q.Get("scope"), "userinfo.email")
}

func TestGoogleProvider_Exchange(t *testing.T) {
	srv := fakeGoogle(t, map[string]any{
		"id":      "google-42",
		"name":    "Alice Example",
		"email":   "alice@example.com",
		"picture": "https://example.com/alice.png",
	})
	p := newTestGoogleProvider(srv)

	user, err := p.Exchange(context.Background(), "good-code")
	require.NoError(t, err)

	assert.Equal(t, &GoogleUser{
		ID:      "google-42",
		Name:    "Alice Example",
		Email:   "alice@example.com",
		Picture: "https://example.com/alice.png",
	}, user)
}

func TestGoogleProvider_Exchange_BadCode(t *testing.T) {
	srv := fakeGoogle(t, map[string]any{"id": "google-42"})
	p := newTestGoogleProvider(srv)

	_, err := p.Exchange(context.Background(), "bad-code")
	assert.Error(t, err)
}

func TestGoogleProvider_Exchange_ProfileWithoutID(t *testing.T) {
	srv := fakeGoogle(t, map[string]any{"email": "nobody@example.com"})
	p := newTestGoogleProvider(srv)

	_, err := p.Exchange(context.Background(), "good-code")
	assert.Error(t, err)
}
