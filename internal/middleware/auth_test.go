package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"compass-auth/internal/model"
	"compass-auth/internal/session"
)

type verifierFunc func(token string) (model.AccessClaims, error)

func (f verifierFunc) VerifyAccess(token string) (model.AccessClaims, error) {
	return f(token)
}

var stubVerifier = verifierFunc(func(token string) (model.AccessClaims, error) {
	switch token {
	case "good":
		return model.AccessClaims{Subject: "acc-1", Roles: []string{model.RoleUser}}, nil
	case "admin":
		return model.AccessClaims{Subject: "acc-2", Roles: []string{model.RoleAdmin}}, nil
	case "expired":
		return model.AccessClaims{}, model.ErrTokenExpired
	default:
		return model.AccessClaims{}, model.ErrTokenMalformed
	}
})

func subjectEcho() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		if !ok {
			_, _ = w.Write([]byte("anonymous"))
			return
		}
		_, _ = w.Write([]byte(claims.Subject))
	})
}

func TestRequireAuth(t *testing.T) {
	t.Parallel()

	handler := NewAuthMiddleware(stubVerifier).RequireAuth(subjectEcho())

	tests := []struct {
		name       string
		cookie     string
		bearer     string
		wantStatus int
		wantBody   string
	}{
		{name: "cookie", cookie: "good", wantStatus: http.StatusOK, wantBody: "acc-1"},
		{name: "bearer", bearer: "good", wantStatus: http.StatusOK, wantBody: "acc-1"},
		{name: "cookie wins over bearer", cookie: "good", bearer: "admin", wantStatus: http.StatusOK, wantBody: "acc-1"},
		{name: "missing", wantStatus: http.StatusUnauthorized, wantBody: `"NO_TOKEN"`},
		{name: "expired", cookie: "expired", wantStatus: http.StatusUnauthorized, wantBody: `"TOKEN_EXPIRED"`},
		{name: "invalid", bearer: "forged", wantStatus: http.StatusForbidden, wantBody: `"INVALID_TOKEN"`},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(http.MethodGet, "/validate-token", nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: session.AccessCookieName, Value: tt.cookie})
			}
			if tt.bearer != "" {
				req.Header.Set("Authorization", "Bearer "+tt.bearer)
			}

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantBody)
		})
	}
}

func TestRequireRoles(t *testing.T) {
	t.Parallel()

	auth := NewAuthMiddleware(stubVerifier)
	handler := auth.RequireAuth(auth.RequireRoles("Admin")(subjectEcho()))

	serve := func(token string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/admin", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	rec := serve("admin")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "acc-2", rec.Body.String())

	rec = serve("good")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), `"FORBIDDEN"`)

	rec = httptest.NewRecorder()
	auth.RequireRoles("admin")(subjectEcho()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
