package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"compass-auth/internal/model"
	"compass-auth/pkg/apierror"
)

func writeSuccess(w http.ResponseWriter, status int, message string, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(model.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	body := &model.APIError{
		Code:    apierror.CodeInternal,
		Message: "Unexpected server error",
	}

	var apiErr *apierror.APIError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatus
		body.Code = apiErr.Code
		body.Message = apiErr.Message
		body.Details = apiErr.Details
	case errors.Is(err, model.ErrTokenMissing):
		status = http.StatusUnauthorized
		body.Code = apierror.CodeNoToken
		body.Message = "No token provided"
	case errors.Is(err, model.ErrTokenExpired):
		status = http.StatusUnauthorized
		body.Code = apierror.CodeTokenExpired
		body.Message = "Token expired"
	case errors.Is(err, model.ErrTokenMalformed), errors.Is(err, model.ErrTokenRevoked):
		status = http.StatusForbidden
		body.Code = apierror.CodeInvalidToken
		body.Message = "Invalid token"
	case errors.Is(err, model.ErrAccountNotFound):
		status = http.StatusNotFound
		body.Code = apierror.CodeNotFound
		body.Message = "User not found"
	default:
		// Only the log sees the cause of an unclassified failure.
		slog.Error("unhandled error in writeError", "error", err.Error())
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(model.APIResponse{
		Success: false,
		Error:   body,
	})
}

func decodeJSON(r *http.Request, target any) error {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		return apierror.BadRequest("invalid JSON body", "")
	}
	return nil
}
