package model

import "errors"

var (
	// Account errors
	ErrAccountNotFound    = errors.New("account not found")
	ErrUsernameTaken      = errors.New("username is taken")
	ErrEmailTaken         = errors.New("email is taken")
	ErrInvalidCredentials = errors.New("invalid credentials")

	// Session token errors
	ErrTokenMissing   = errors.New("token missing")
	ErrTokenExpired   = errors.New("token expired")
	ErrTokenMalformed = errors.New("token malformed")
	ErrTokenRevoked   = errors.New("token revoked")

	// Verification code errors
	ErrCodeNotFound = errors.New("no verification code found for this email")
	ErrCodeInvalid  = errors.New("invalid verification code")
	ErrCodeExpired  = errors.New("verification code has expired")

	// OAuth redirect and exchange errors
	ErrRedirectInvalid   = errors.New("redirect uri is not allowed")
	ErrRedirectMalformed = errors.New("redirect uri is malformed")
	ErrRedirectMismatch  = errors.New("provider reported a redirect uri mismatch")
	ErrEmailCollision    = errors.New("email already registered with another sign-in method")
	ErrExchangeFailed    = errors.New("identity exchange failed")
)
