package handler

import (
	"net/http"

	"compass-auth/internal/model"
	"compass-auth/internal/service"
	"compass-auth/internal/session"
	"compass-auth/pkg/apierror"
)

type AuthHandler struct {
	service *service.AuthService
	cookies session.Cookies
}

func NewAuthHandler(service *service.AuthService, cookies session.Cookies) *AuthHandler {
	return &AuthHandler{service: service, cookies: cookies}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var payload model.RegisterRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, err)
		return
	}

	account, pair, err := h.service.Register(requestContext(r), payload)
	if err != nil {
		writeError(w, err)
		return
	}

	h.cookies.SetPair(w, pair)
	writeSuccess(w, http.StatusCreated, "User registered successfully", model.AccountResponse{User: account})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var payload model.LoginRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, err)
		return
	}

	account, pair, err := h.service.Login(requestContext(r), payload)
	if err != nil {
		writeError(w, err)
		return
	}

	h.cookies.SetPair(w, pair)
	writeSuccess(w, http.StatusOK, "Login successful", model.AccountResponse{User: account})
}

func (h *AuthHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	grant, err := h.service.Refresh(requestContext(r), session.FromRequest(r, session.RefreshCookieName))
	if err != nil {
		writeError(w, err)
		return
	}

	h.cookies.SetAccess(w, grant.AccessToken)
	writeSuccess(w, http.StatusOK, "Access token refreshed", model.RefreshResponse{AccessTokenExpiresAt: grant.ExpiresAt})
}

// Logout always succeeds and always clears the cookies, whatever state the
// presented tokens are in.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.service.Logout(
		requestContext(r),
		session.FromRequest(r, session.AccessCookieName),
		session.FromRequest(r, session.RefreshCookieName),
	)

	h.cookies.Clear(w)
	writeSuccess(w, http.StatusOK, "Logged out successfully", nil)
}

func (h *AuthHandler) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	var payload model.GoogleLoginRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, err)
		return
	}

	account, pair, err := h.service.GoogleLogin(requestContext(r), payload)
	if err != nil {
		writeError(w, err)
		return
	}

	h.cookies.SetPair(w, pair)
	writeSuccess(w, http.StatusOK, "Google login successful", model.AccountResponse{User: account})
}

func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var payload model.EmailRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, err)
		return
	}

	if err := h.service.ForgotPassword(requestContext(r), payload.Email); err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, "Verification code sent to email", nil)
}

func (h *AuthHandler) VerifyCode(w http.ResponseWriter, r *http.Request) {
	var payload model.VerifyCodeRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, err)
		return
	}

	if err := h.service.VerifyCode(requestContext(r), payload.Email, payload.Code); err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, "Code verified", model.VerifyCodeResponse{Valid: true})
}

func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var payload model.ResetPasswordRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, err)
		return
	}

	if err := h.service.ResetPassword(requestContext(r), payload); err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, "Password reset successfully", nil)
}

// ValidateToken returns the account behind the access token the auth
// middleware already checked.
func (h *AuthHandler) ValidateToken(w http.ResponseWriter, r *http.Request) {
	subject, ok := subjectFromRequest(r)
	if !ok {
		writeError(w, apierror.New(apierror.CodeNoToken, "No token provided", "", http.StatusUnauthorized))
		return
	}

	account, err := h.service.Me(r.Context(), subject)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, "", model.AccountResponse{User: account})
}
