package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"compass-auth/internal/model"
	"compass-auth/internal/session"
	"compass-auth/pkg/apierror"
)

type accessVerifier interface {
	VerifyAccess(token string) (model.AccessClaims, error)
}

type contextKey string

const authClaimsContextKey contextKey = "auth_claims"

type AuthMiddleware struct {
	verifier accessVerifier
}

func NewAuthMiddleware(verifier accessVerifier) *AuthMiddleware {
	return &AuthMiddleware{verifier: verifier}
}

// RequireAuth admits requests carrying a valid access token, read from the
// access cookie first and the Authorization header second.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := accessTokenFrom(r)
		if token == "" {
			writeJSONError(w, http.StatusUnauthorized, apierror.CodeNoToken, "No token provided")
			return
		}

		claims, err := m.verifier.VerifyAccess(token)
		switch {
		case errors.Is(err, model.ErrTokenExpired):
			writeJSONError(w, http.StatusUnauthorized, apierror.CodeTokenExpired, "Token expired")
			return
		case err != nil:
			writeJSONError(w, http.StatusForbidden, apierror.CodeInvalidToken, "Invalid token")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
	})
}

func (m *AuthMiddleware) RequireRoles(allowedRoles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok {
				writeJSONError(w, http.StatusUnauthorized, apierror.CodeNoToken, "No token provided")
				return
			}

			for _, role := range allowedRoles {
				if claims.HasRole(role) {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeJSONError(w, http.StatusForbidden, apierror.CodeForbidden, "Insufficient permissions")
		})
	}
}

func WithClaims(ctx context.Context, claims model.AccessClaims) context.Context {
	return context.WithValue(ctx, authClaimsContextKey, claims)
}

func ClaimsFromContext(ctx context.Context) (model.AccessClaims, bool) {
	claims, ok := ctx.Value(authClaimsContextKey).(model.AccessClaims)
	return claims, ok
}

func accessTokenFrom(r *http.Request) string {
	if token := session.FromRequest(r, session.AccessCookieName); token != "" {
		return token
	}

	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}
