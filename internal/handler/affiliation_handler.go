package handler

import (
	"net/http"

	"compass-auth/internal/model"
	"compass-auth/internal/service"
	"compass-auth/pkg/apierror"
)

// AffiliationHandler links a verified .edu address to the signed-in account.
type AffiliationHandler struct {
	service *service.AuthService
}

func NewAffiliationHandler(service *service.AuthService) *AffiliationHandler {
	return &AffiliationHandler{service: service}
}

func (h *AffiliationHandler) Request(w http.ResponseWriter, r *http.Request) {
	subject, ok := requireSubject(w, r)
	if !ok {
		return
	}

	var payload model.EmailRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, err)
		return
	}

	if err := h.service.RequestAffiliation(requestContext(r), subject, payload.Email); err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, "Verification code sent to your .edu email", nil)
}

func (h *AffiliationHandler) Verify(w http.ResponseWriter, r *http.Request) {
	subject, ok := requireSubject(w, r)
	if !ok {
		return
	}

	var payload model.VerifyCodeRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, err)
		return
	}

	if err := h.service.VerifyAffiliation(requestContext(r), subject, payload.Email, payload.Code); err != nil {
		writeError(w, err)
		return
	}

	account, err := h.service.Me(r.Context(), subject)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, "Affiliated email verified", model.AccountResponse{User: account})
}

func (h *AffiliationHandler) Unlink(w http.ResponseWriter, r *http.Request) {
	subject, ok := requireSubject(w, r)
	if !ok {
		return
	}

	if err := h.service.UnlinkAffiliation(requestContext(r), subject); err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, "Affiliated email unlinked", nil)
}

func requireSubject(w http.ResponseWriter, r *http.Request) (string, bool) {
	subject, ok := subjectFromRequest(r)
	if !ok {
		writeError(w, apierror.New(apierror.CodeNoToken, "No token provided", "", http.StatusUnauthorized))
	}
	return subject, ok
}
