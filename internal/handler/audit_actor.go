package handler

import (
	"context"
	"net/http"

	"compass-auth/internal/middleware"
	"compass-auth/internal/service"
)

// requestContext carries the caller's address into the service layer so
// published auth events can be attributed.
func requestContext(r *http.Request) context.Context {
	return service.WithClientIP(r.Context(), middleware.ClientIP(r))
}

func subjectFromRequest(r *http.Request) (string, bool) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok || claims.Subject == "" {
		return "", false
	}
	return claims.Subject, true
}
