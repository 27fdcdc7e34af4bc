package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"compass-auth/internal/model"
)

const healthCheckTimeout = 2 * time.Second

// HealthCheck reports whether one backing dependency is reachable.
type HealthCheck func(ctx context.Context) error

type HealthHandler struct {
	checks map[string]HealthCheck
}

func NewHealthHandler(checks map[string]HealthCheck) *HealthHandler {
	return &HealthHandler{checks: checks}
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	result := model.HealthResponse{Status: "ok", Checks: map[string]string{}}
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			result.Checks[name] = "unavailable"
			result.Status = "degraded"
			continue
		}
		result.Checks[name] = "ok"
	}

	if result.Status == "ok" {
		writeSuccess(w, http.StatusOK, "", result)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusServiceUnavailable)
	_ = json.NewEncoder(w).Encode(model.APIResponse{
		Success: false,
		Data:    result,
		Error:   &model.APIError{Code: "UNAVAILABLE", Message: "A backing service is unavailable"},
	})
}
