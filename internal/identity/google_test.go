package identity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"compass-auth/internal/model"
)

func newGoogleServer(t *testing.T, tokenHandler http.HandlerFunc, userInfo string) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/token", tokenHandler)
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer provider-access" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(userInfo))
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func okToken(t *testing.T, wantRedirect string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, wantRedirect, r.PostForm.Get("redirect_uri"))
		assert.Equal(t, "auth-code", r.PostForm.Get("code"))
		assert.Equal(t, "client-id", r.PostForm.Get("client_id"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"provider-access","token_type":"Bearer","expires_in":3600}`))
	}
}

func newTestExchanger(server *httptest.Server) *GoogleExchanger {
	return NewGoogleExchanger(GoogleConfig{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		TokenURL:     server.URL + "/token",
		UserInfoURL:  server.URL + "/userinfo",
		HTTPClient:   server.Client(),
	})
}

func TestGoogleExchanger_Exchange(t *testing.T) {
	t.Parallel()

	server := newGoogleServer(t, okToken(t, "https://compass.example.edu/register"),
		`{"sub":"g-42","email":"sam@school.edu","email_verified":true,"name":"Sam","picture":"https://img/sam.png"}`)

	profile, err := newTestExchanger(server).Exchange(context.Background(), "auth-code", "https://compass.example.edu/register")
	require.NoError(t, err)
	assert.Equal(t, Profile{
		GoogleID:      "g-42",
		Email:         "sam@school.edu",
		EmailVerified: true,
		Name:          "Sam",
		Picture:       "https://img/sam.png",
	}, profile)
}

func TestGoogleExchanger_RedirectURIPerCall(t *testing.T) {
	t.Parallel()

	var seen []string
	server := newGoogleServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		seen = append(seen, r.PostForm.Get("redirect_uri"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"provider-access","token_type":"Bearer"}`))
	}, `{"id":"g-1","email":"a@b.edu","verified_email":true}`)

	exchanger := newTestExchanger(server)
	for _, uri := range []string{"compass://oauthredirect", "https://compass.example.edu/login"} {
		profile, err := exchanger.Exchange(context.Background(), "auth-code", uri)
		require.NoError(t, err)
		assert.Equal(t, "g-1", profile.GoogleID)
		assert.True(t, profile.EmailVerified)
	}
	assert.Equal(t, []string{"compass://oauthredirect", "https://compass.example.edu/login"}, seen)
}

func TestGoogleExchanger_RedirectMismatch(t *testing.T) {
	t.Parallel()

	server := newGoogleServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"redirect_uri_mismatch","error_description":"Bad Request"}`))
	}, `{}`)

	_, err := newTestExchanger(server).Exchange(context.Background(), "auth-code", "https://compass.example.edu/login")
	require.ErrorIs(t, err, model.ErrRedirectMismatch)
}

func TestGoogleExchanger_InvalidGrant(t *testing.T) {
	t.Parallel()

	server := newGoogleServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
	}, `{}`)

	_, err := newTestExchanger(server).Exchange(context.Background(), "auth-code", "https://compass.example.edu/login")
	require.ErrorIs(t, err, model.ErrExchangeFailed)
	require.NotErrorIs(t, err, model.ErrRedirectMismatch)
}

func TestParseUserInfo(t *testing.T) {
	t.Parallel()

	for name, body := range map[string]string{
		"not json":      `<html>`,
		"missing email": `{"sub":"g-1"}`,
		"missing id":    `{"email":"a@b.edu"}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := parseUserInfo([]byte(body))
			require.ErrorIs(t, err, model.ErrExchangeFailed)
		})
	}
}
