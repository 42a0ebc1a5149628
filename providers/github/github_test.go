package github

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-identity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProviderAuthCodeURL(t *testing.T) {
	provider := New(Config{
		ClientID:    "client-id",
		CallbackURL: "https://example.com/callback",
	})

	authURL := provider.AuthCodeURL("state-token")

	parsed, err := url.Parse(authURL)
	require.NoError(t, err)

	query := parsed.Query()
	assert.Equal(t, "client-id", query.Get("client_id"))
	assert.Equal(t, "https://example.com/callback", query.Get("redirect_uri"))
	assert.Equal(t, "state-token", query.Get("state"))

	scope := query.Get("scope")
	assert.Contains(t, scope, "user:email")
	assert.Contains(t, scope, "read:user")
}

func TestProviderName(t *testing.T) {
	provider := New(Config{})
	assert.Equal(t, identity.AuthMethodGitHub, provider.Name())
}

func TestProviderExchangeAndUserInfo(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/token":
			body, err := io.ReadAll(r.Body)
			assert.NoError(t, err)
			values, err := url.ParseQuery(string(body))
			assert.NoError(t, err)

			assert.Equal(t, "client-id", values.Get("client_id"))
			assert.Equal(t, "client-secret", values.Get("client_secret"))
			assert.Equal(t, "auth-code", values.Get("code"))
			assert.Equal(t, "application/json", r.Header.Get("Accept"))

			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{
				"access_token": "token",
				"token_type":   "bearer",
				"scope":        "user:email,read:user",
			})
		case "/user":
			assert.Equal(t, "Bearer token", r.Header.Get("Authorization"))
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{
				"id":         12345,
				"login":      "octocat",
				"name":       "Octo Cat",
				"email":      "public@example.com",
				"avatar_url": "https://example.com/octo.png",
			})
		case "/emails":
			assert.Equal(t, "Bearer token", r.Header.Get("Authorization"))
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode([]map[string]any{
				{"email": "secondary@example.com", "primary": false, "verified": true},
				{"email": "primary@example.com", "primary": true, "verified": true},
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	provider := New(Config{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		CallbackURL:  "https://example.com/callback",
		TokenURL:     server.URL + "/token",
		UserURL:      server.URL + "/user",
		EmailsURL:    server.URL + "/emails",
	})

	accessToken, err := provider.Exchange(context.Background(), "auth-code")
	require.NoError(t, err)
	assert.Equal(t, "token", accessToken)

	profile, err := provider.UserInfo(context.Background(), accessToken)
	require.NoError(t, err)
	assert.Equal(t, identity.AuthMethodGitHub, profile.Provider)
	assert.Equal(t, "12345", profile.ProviderID)
	assert.Equal(t, "primary@example.com", profile.Email, "primary email wins over the public one")
	assert.Equal(t, "Octo Cat", profile.FullName)
	assert.Equal(t, "octocat", profile.Username)
	assert.Equal(t, "https://example.com/octo.png", profile.AvatarURL)
}

func TestProviderUserInfoFallsBackToPublicEmail(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/user":
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{
				"id":    99,
				"login": "ghost",
				"email": "ghost@example.com",
			})
		case "/emails":
			w.WriteHeader(http.StatusForbidden)
			_ = json.NewEncoder(w).Encode(map[string]any{"message": "missing scope"})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	provider := New(Config{
		UserURL:   server.URL + "/user",
		EmailsURL: server.URL + "/emails",
	})

	profile, err := provider.UserInfo(context.Background(), "token")
	require.NoError(t, err)
	assert.Equal(t, "ghost@example.com", profile.Email)
	assert.Equal(t, "ghost", profile.Username)
}

func TestProviderExchangeError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		// GitHub reports OAuth errors with a 200 and an error body.
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error":             "bad_verification_code",
			"error_description": "The code passed is incorrect or expired.",
		})
	}))
	defer server.Close()

	provider := New(Config{TokenURL: server.URL})

	_, err := provider.Exchange(context.Background(), "bad-code")
	require.Error(t, err)

	var richErr *goerrors.Error
	require.True(t, errors.As(err, &richErr))
	assert.Equal(t, "github", richErr.Metadata["provider"])
	assert.Equal(t, "exchange", richErr.Metadata["operation"])
	assert.Equal(t, "bad_verification_code", richErr.Metadata["code"])
}
