package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"compass-auth/internal/model"
)

const defaultRequestTimeout = 15 * time.Second

// Timeout bounds handler time. Outbound calls (Google token exchange, mail
// delivery) inherit the request context and are cancelled with it.
func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	body, _ := json.Marshal(model.APIResponse{
		Success: false,
		Error:   &model.APIError{Code: "REQUEST_TIMEOUT", Message: "Request timed out"},
	})

	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, timeout, string(body))
	}
}
