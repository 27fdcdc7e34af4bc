package model

import "time"

type APIResponse struct {
	Success bool      `json:"success"`
	Message string    `json:"message,omitempty"`
	Data    any       `json:"data,omitempty"`
	Error   *APIError `json:"error,omitempty"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

type RefreshResponse struct {
	AccessTokenExpiresAt time.Time `json:"accessTokenExpiresAt"`
}

type VerifyCodeResponse struct {
	Valid bool `json:"valid"`
}

type AuditListData struct {
	Items []AuditEntry `json:"items"`
}

type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}
