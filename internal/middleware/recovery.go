package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"compass-auth/pkg/apierror"
)

func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if recovered := recover(); recovered != nil {
				if recovered == http.ErrAbortHandler {
					panic(recovered)
				}
				slog.Error("panic recovered", "error", fmt.Sprintf("%v", recovered), "path", r.URL.Path, "stack", string(debug.Stack()))
				writeJSONError(w, http.StatusInternalServerError, apierror.CodeInternal, "Unexpected server error")
			}
		}()

		next.ServeHTTP(w, r)
	})
}
