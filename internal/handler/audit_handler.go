package handler

import (
	"net/http"
	"strconv"
	"strings"

	"compass-auth/internal/model"
	"compass-auth/internal/service"
)

type AuditHandler struct {
	service *service.AuditService
}

func NewAuditHandler(service *service.AuditService) *AuditHandler {
	return &AuditHandler{service: service}
}

// List returns the most recent audit entries, optionally for one actor.
func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	items, err := h.service.Recent(r.Context(),
		strings.TrimSpace(query.Get("actor_id")),
		parseIntOrDefault(query.Get("limit"), 50),
	)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, "", model.AuditListData{Items: items})
}

func parseIntOrDefault(raw string, fallback int) int {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fallback
	}
	return value
}
