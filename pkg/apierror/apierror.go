package apierror

import (
	"fmt"
	"net/http"
)

// Stable error codes a client can branch on.
const (
	CodeBadRequest        = "BAD_REQUEST"
	CodeInternal          = "INTERNAL_ERROR"
	CodeNotFound          = "NOT_FOUND"
	CodeNoToken           = "NO_TOKEN"
	CodeTokenExpired      = "TOKEN_EXPIRED"
	CodeInvalidToken      = "INVALID_TOKEN"
	CodeForbidden         = "FORBIDDEN"
	CodeNoRefreshToken    = "NO_REFRESH_TOKEN"
	CodeRefreshExpired    = "REFRESH_TOKEN_EXPIRED"
	CodeRefreshInvalid    = "INVALID_REFRESH_TOKEN"
	CodeRefreshRevoked    = "REFRESH_TOKEN_REVOKED"
	CodeRefreshFailed     = "REFRESH_FAILED"
	CodeLoginFailed       = "LOGIN_FAILED"
	CodeUsernameTaken     = "USERNAME_TAKEN"
	CodeEmailCollision    = "EMAIL_COLLISION"
	CodeInvalidRedirect   = "INVALID_REDIRECT"
	CodeMalformedRedirect = "MALFORMED_REDIRECT"
	CodeRedirectMismatch  = "REDIRECT_MISMATCH"
	CodeExchangeFailed    = "EXCHANGE_FAILED"
	CodeRateLimited       = "RATE_LIMITED"
)

type APIError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Details    string `json:"details,omitempty"`
	HTTPStatus int    `json:"-"`
	cause      error
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}

	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}

	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the sentinel the error was built from, if any.
func (e *APIError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

func New(code string, message string, details string, status int) *APIError {
	return &APIError{Code: code, Message: message, Details: details, HTTPStatus: status}
}

// Wrap builds an APIError that still matches cause under errors.Is.
func Wrap(cause error, code string, message string, status int) *APIError {
	return &APIError{Code: code, Message: message, HTTPStatus: status, cause: cause}
}

func BadRequest(message string, details string) *APIError {
	return New(CodeBadRequest, message, details, http.StatusBadRequest)
}

func Internal() *APIError {
	return New(CodeInternal, "Unexpected server error", "", http.StatusInternalServerError)
}
