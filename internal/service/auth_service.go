package service

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"compass-auth/internal/event"
	"compass-auth/internal/identity"
	"compass-auth/internal/mail"
	"compass-auth/internal/model"
	"compass-auth/internal/session"
	"compass-auth/internal/util"
	"compass-auth/internal/verification"
	"compass-auth/pkg/apierror"
)

const minPasswordLength = 8

// AccountRepository is everything the auth flows read or write on accounts.
type AccountRepository interface {
	session.AccountStore
	identity.AccountDirectory
	FindByUsername(ctx context.Context, username string) (model.Account, error)
	UpdatePassword(ctx context.Context, id string, passwordHash string) error
	SetAffiliation(ctx context.Context, id string, email string, verified bool) error
	AffiliationTaken(ctx context.Context, email string, exceptID string) (bool, error)
}

type AuthDeps struct {
	Accounts   AccountRepository
	Sessions   *session.Manager
	Codes      verification.Store
	Identity   *identity.Bridge
	Mailer     mail.Mailer
	Bus        event.Bus
	Logger     *slog.Logger
	BcryptCost int
}

type AuthService struct {
	accounts   AccountRepository
	sessions   *session.Manager
	codes      verification.Store
	identity   *identity.Bridge
	mailer     mail.Mailer
	bus        event.Bus
	logger     *slog.Logger
	bcryptCost int
	now        func() time.Time
}

func NewAuthService(deps AuthDeps) *AuthService {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cost := deps.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}

	return &AuthService{
		accounts:   deps.Accounts,
		sessions:   deps.Sessions,
		codes:      deps.Codes,
		identity:   deps.Identity,
		mailer:     deps.Mailer,
		bus:        deps.Bus,
		logger:     logger,
		bcryptCost: cost,
		now:        time.Now,
	}
}

func (s *AuthService) Register(ctx context.Context, req model.RegisterRequest) (model.Account, session.Pair, error) {
	if strings.TrimSpace(req.Username) == "" || strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return model.Account{}, session.Pair{}, apierror.BadRequest("Username, email and password are required", "")
	}

	username, err := util.SanitizeUsername(req.Username)
	if err != nil {
		return model.Account{}, session.Pair{}, err
	}
	email, err := util.NormalizeEmail(req.Email)
	if err != nil {
		return model.Account{}, session.Pair{}, err
	}
	if len(req.Password) < minPasswordLength {
		return model.Account{}, session.Pair{}, apierror.BadRequest("Password must be at least 8 characters", "")
	}

	if err := s.checkAvailability(ctx, username, email); err != nil {
		return model.Account{}, session.Pair{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		return model.Account{}, session.Pair{}, err
	}

	now := s.now().UTC()
	account, err := s.accounts.Create(ctx, model.Account{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		Roles:        []string{model.RoleUser},
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	switch {
	case errors.Is(err, model.ErrEmailTaken):
		return model.Account{}, session.Pair{}, apierror.Wrap(err, apierror.CodeBadRequest, "Email is taken", http.StatusBadRequest)
	case errors.Is(err, model.ErrUsernameTaken):
		return model.Account{}, session.Pair{}, apierror.Wrap(err, apierror.CodeUsernameTaken, "Username is taken", http.StatusMethodNotAllowed)
	case err != nil:
		return model.Account{}, session.Pair{}, err
	}

	pair, err := s.sessions.IssuePair(ctx, account.ID, account.Roles)
	if err != nil {
		return model.Account{}, session.Pair{}, err
	}

	s.logger.Info("account registered", "account_id", account.ID, "username", account.Username)
	s.publish(ctx, event.TypeAccountRegistered, account.ID, event.StatusSuccess, account.Username, nil)
	s.publish(ctx, event.TypeSessionIssued, account.ID, event.StatusSuccess, "register", nil)
	return account, pair, nil
}

// checkAvailability mirrors the combined username/email messages of the
// registration form.
func (s *AuthService) checkAvailability(ctx context.Context, username string, email string) error {
	usernameTaken, err := s.accounts.UsernameExists(ctx, username)
	if err != nil {
		return err
	}

	_, err = s.accounts.FindByEmail(ctx, email)
	emailTaken := err == nil
	if err != nil && !errors.Is(err, model.ErrAccountNotFound) {
		return err
	}

	switch {
	case usernameTaken && emailTaken:
		return apierror.Wrap(model.ErrEmailTaken, apierror.CodeBadRequest, "Email and username are taken", http.StatusBadRequest)
	case emailTaken:
		return apierror.Wrap(model.ErrEmailTaken, apierror.CodeBadRequest, "Email is taken", http.StatusBadRequest)
	case usernameTaken:
		return apierror.Wrap(model.ErrUsernameTaken, apierror.CodeUsernameTaken, "Username is taken", http.StatusMethodNotAllowed)
	}
	return nil
}

func (s *AuthService) Login(ctx context.Context, req model.LoginRequest) (model.Account, session.Pair, error) {
	account, err := s.findForLogin(ctx, req)
	if err == nil && (account.PasswordHash == "" ||
		bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(req.Password)) != nil) {
		err = model.ErrInvalidCredentials
	}
	if err != nil {
		s.publish(ctx, event.TypeLoginFailed, account.ID, event.StatusFailure, loginIdentifier(req), err)
		return model.Account{}, session.Pair{}, loginFailure(err)
	}

	pair, err := s.sessions.IssuePair(ctx, account.ID, account.Roles)
	if err != nil {
		return model.Account{}, session.Pair{}, loginFailure(err)
	}

	s.logger.Info("user logged in", "account_id", account.ID, "username", account.Username)
	s.publish(ctx, event.TypeLoginSucceeded, account.ID, event.StatusSuccess, account.Username, nil)
	s.publish(ctx, event.TypeSessionIssued, account.ID, event.StatusSuccess, "login", nil)
	return account, pair, nil
}

func (s *AuthService) findForLogin(ctx context.Context, req model.LoginRequest) (model.Account, error) {
	if email := strings.TrimSpace(req.Email); email != "" {
		normalized, err := util.NormalizeEmail(email)
		if err != nil {
			return model.Account{}, model.ErrAccountNotFound
		}
		return s.accounts.FindByEmail(ctx, normalized)
	}
	if username := strings.TrimSpace(req.Username); username != "" {
		return s.accounts.FindByUsername(ctx, username)
	}
	return model.Account{}, model.ErrAccountNotFound
}

func loginIdentifier(req model.LoginRequest) string {
	if req.Email != "" {
		return strings.TrimSpace(req.Email)
	}
	return strings.TrimSpace(req.Username)
}

// loginFailure keeps the login endpoint's single failure shape: a 500 with
// the reason as message.
func loginFailure(err error) error {
	message := "Login failed"
	switch {
	case errors.Is(err, model.ErrAccountNotFound):
		message = "User not found"
	case errors.Is(err, model.ErrInvalidCredentials):
		message = "Invalid credentials"
	}
	return apierror.Wrap(err, apierror.CodeLoginFailed, message, http.StatusInternalServerError)
}

// Refresh mints a new access token from the presented refresh token.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (session.AccessGrant, error) {
	if refreshToken == "" {
		return session.AccessGrant{}, apierror.New(apierror.CodeNoRefreshToken, "No refresh token provided", "", http.StatusForbidden)
	}

	grant, err := s.sessions.RefreshAccess(ctx, refreshToken)
	if err != nil {
		mapped := refreshFailure(err)
		if errors.Is(err, model.ErrTokenRevoked) {
			s.logger.Warn("refresh token revoked or reused", "error", err)
		}
		s.publish(ctx, event.TypeSessionRejected, "", event.StatusFailure, mapped.Code, err)
		return session.AccessGrant{}, mapped
	}

	s.publish(ctx, event.TypeSessionRefreshed, grant.Subject, event.StatusSuccess, "", nil)
	return grant, nil
}

func refreshFailure(err error) *apierror.APIError {
	switch {
	case errors.Is(err, model.ErrTokenExpired):
		return apierror.Wrap(err, apierror.CodeRefreshExpired, "Refresh token expired", http.StatusUnauthorized)
	case errors.Is(err, model.ErrTokenMalformed), errors.Is(err, model.ErrTokenMissing):
		return apierror.Wrap(err, apierror.CodeRefreshInvalid, "Invalid refresh token", http.StatusUnauthorized)
	case errors.Is(err, model.ErrTokenRevoked):
		return apierror.Wrap(err, apierror.CodeRefreshRevoked, "Refresh token has been revoked", http.StatusUnauthorized)
	default:
		return apierror.Wrap(err, apierror.CodeRefreshFailed, "Failed to refresh token", http.StatusUnauthorized)
	}
}

// Logout clears the stored refresh token of whichever session the cookies
// identify. It never fails from the caller's point of view.
func (s *AuthService) Logout(ctx context.Context, accessToken string, refreshToken string) {
	subject := ""
	for _, token := range []string{accessToken, refreshToken} {
		if token == "" {
			continue
		}
		if id, err := s.sessions.SubjectOf(token); err == nil && id != "" {
			subject = id
			break
		}
	}
	if subject == "" {
		return
	}

	if err := s.sessions.Invalidate(ctx, subject); err != nil {
		s.logger.Error("logout failed to clear refresh token", "account_id", subject, "error", err)
		s.publish(ctx, event.TypeSessionRevoked, subject, event.StatusFailure, "logout", err)
		return
	}
	s.publish(ctx, event.TypeSessionRevoked, subject, event.StatusSuccess, "logout", nil)
}

func (s *AuthService) GoogleLogin(ctx context.Context, req model.GoogleLoginRequest) (model.Account, session.Pair, error) {
	if strings.TrimSpace(req.Code) == "" {
		return model.Account{}, session.Pair{}, apierror.BadRequest("No authorization code provided", "")
	}

	result, err := s.identity.Authenticate(ctx, req.Code, req.IsRegister, req.URL)
	if err != nil {
		return model.Account{}, session.Pair{}, googleFailure(err)
	}

	pair, err := s.sessions.IssuePair(ctx, result.Account.ID, result.Account.Roles)
	if err != nil {
		return model.Account{}, session.Pair{}, err
	}

	if result.Created {
		s.publish(ctx, event.TypeAccountCreatedOAuth, result.Account.ID, event.StatusSuccess, result.Account.Username, nil)
	}
	s.publish(ctx, event.TypeSessionIssued, result.Account.ID, event.StatusSuccess, "google:"+string(result.Redirect.Kind), nil)
	return result.Account, pair, nil
}

func googleFailure(err error) error {
	switch {
	case errors.Is(err, model.ErrEmailCollision):
		return apierror.Wrap(err, apierror.CodeEmailCollision, "Email already exists", http.StatusConflict)
	case errors.Is(err, model.ErrRedirectInvalid):
		return apierror.Wrap(err, apierror.CodeInvalidRedirect, "Google login failed, error: redirect not allowed", http.StatusInternalServerError)
	case errors.Is(err, model.ErrRedirectMalformed):
		return apierror.Wrap(err, apierror.CodeMalformedRedirect, "Google login failed, error: malformed redirect url", http.StatusInternalServerError)
	case errors.Is(err, model.ErrRedirectMismatch):
		return apierror.Wrap(err, apierror.CodeRedirectMismatch, "Google login failed, error: redirect uri mismatch", http.StatusInternalServerError)
	case errors.Is(err, model.ErrExchangeFailed):
		return apierror.Wrap(err, apierror.CodeExchangeFailed, "Google login failed, error: code exchange failed", http.StatusInternalServerError)
	}
	return err
}

// ForgotPassword issues a reset code for the account owning email.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	normalized, err := util.NormalizeEmail(email)
	if err != nil {
		return err
	}

	account, err := s.accounts.FindByEmail(ctx, normalized)
	if errors.Is(err, model.ErrAccountNotFound) {
		return apierror.Wrap(err, apierror.CodeNotFound, "User not found", http.StatusNotFound)
	}
	if err != nil {
		return err
	}

	return s.sendCode(ctx, normalized, account.ID, "reset your password")
}

// VerifyCode reports whether code is currently valid for email without
// using it up.
func (s *AuthService) VerifyCode(ctx context.Context, email string, code string) error {
	normalized, err := util.NormalizeEmail(email)
	if err != nil {
		return err
	}

	result, err := s.codes.Peek(ctx, normalized, strings.TrimSpace(code))
	if err != nil {
		return err
	}
	s.publish(ctx, event.TypeCodeChecked, result.SubjectID, outcomeStatus(result.Outcome), normalized, nil)
	return outcomeError(result.Outcome)
}

func (s *AuthService) ResetPassword(ctx context.Context, req model.ResetPasswordRequest) error {
	email, err := util.NormalizeEmail(req.Email)
	if err != nil {
		return err
	}
	if len(req.Password) < minPasswordLength {
		return apierror.BadRequest("Password must be at least 8 characters", "")
	}

	account, err := s.accounts.FindByEmail(ctx, email)
	if errors.Is(err, model.ErrAccountNotFound) {
		return apierror.Wrap(err, apierror.CodeNotFound, "User not found", http.StatusNotFound)
	}
	if err != nil {
		return err
	}

	code := strings.TrimSpace(req.Code)

	// The code stays in the store until it is known to belong to this account.
	peeked, err := s.codes.Peek(ctx, email, code)
	if err != nil {
		return err
	}
	if err := outcomeError(peeked.Outcome); err != nil {
		s.publish(ctx, event.TypePasswordReset, account.ID, event.StatusFailure, email, err)
		return err
	}
	if peeked.SubjectID != account.ID {
		err := outcomeError(verification.Invalid)
		s.publish(ctx, event.TypePasswordReset, account.ID, event.StatusFailure, email, err)
		return err
	}

	result, err := s.codes.Consume(ctx, email, code)
	if err != nil {
		return err
	}
	if err := outcomeError(result.Outcome); err != nil {
		s.publish(ctx, event.TypePasswordReset, account.ID, event.StatusFailure, email, err)
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		return err
	}
	if err := s.accounts.UpdatePassword(ctx, account.ID, string(hash)); err != nil {
		return err
	}

	// Sessions opened with the old password end here.
	if err := s.sessions.Invalidate(ctx, account.ID); err != nil {
		s.logger.Error("password reset could not revoke sessions", "account_id", account.ID, "error", err)
	}

	s.publish(ctx, event.TypePasswordReset, account.ID, event.StatusSuccess, email, nil)
	return nil
}

func (s *AuthService) RequestAffiliation(ctx context.Context, subjectID string, email string) error {
	normalized, err := util.NormalizeEmail(email)
	if err != nil || !util.IsEducationalEmail(normalized) {
		return apierror.BadRequest("Please use a valid .edu email address", "")
	}

	taken, err := s.accounts.AffiliationTaken(ctx, normalized, subjectID)
	if err != nil {
		return err
	}
	if taken {
		return apierror.BadRequest("This .edu email is already verified by another user", "")
	}

	if _, err := s.accounts.FindByID(ctx, subjectID); err != nil {
		if errors.Is(err, model.ErrAccountNotFound) {
			return apierror.Wrap(err, apierror.CodeNotFound, "User not found", http.StatusNotFound)
		}
		return err
	}

	return s.sendCode(ctx, normalized, subjectID, "verify your .edu email")
}

func (s *AuthService) VerifyAffiliation(ctx context.Context, subjectID string, email string, code string) error {
	normalized, err := util.NormalizeEmail(email)
	if err != nil {
		return err
	}
	code = strings.TrimSpace(code)

	peeked, err := s.codes.Peek(ctx, normalized, code)
	if err != nil {
		return err
	}
	if err := outcomeError(peeked.Outcome); err != nil {
		return err
	}
	if peeked.SubjectID != subjectID {
		return outcomeError(verification.Invalid)
	}

	taken, err := s.accounts.AffiliationTaken(ctx, normalized, subjectID)
	if err != nil {
		return err
	}
	if taken {
		return apierror.BadRequest("This .edu email is already verified by another user", "")
	}

	result, err := s.codes.Consume(ctx, normalized, code)
	if err != nil {
		return err
	}
	if err := outcomeError(result.Outcome); err != nil {
		return err
	}

	if err := s.accounts.SetAffiliation(ctx, subjectID, normalized, true); err != nil {
		if errors.Is(err, model.ErrAccountNotFound) {
			return apierror.Wrap(err, apierror.CodeNotFound, "User not found", http.StatusNotFound)
		}
		return err
	}

	s.logger.Info("affiliated email verified", "account_id", subjectID)
	s.publish(ctx, event.TypeAffiliationVerified, subjectID, event.StatusSuccess, normalized, nil)
	return nil
}

func (s *AuthService) UnlinkAffiliation(ctx context.Context, subjectID string) error {
	account, err := s.accounts.FindByID(ctx, subjectID)
	if errors.Is(err, model.ErrAccountNotFound) {
		return apierror.Wrap(err, apierror.CodeNotFound, "User not found", http.StatusNotFound)
	}
	if err != nil {
		return err
	}

	if err := s.accounts.SetAffiliation(ctx, subjectID, "", false); err != nil {
		return err
	}

	s.publish(ctx, event.TypeAffiliationUnlinked, subjectID, event.StatusSuccess, account.AffiliatedEmail, nil)
	return nil
}

func (s *AuthService) Me(ctx context.Context, subjectID string) (model.Account, error) {
	account, err := s.accounts.FindByID(ctx, subjectID)
	if errors.Is(err, model.ErrAccountNotFound) {
		return model.Account{}, apierror.Wrap(err, apierror.CodeNotFound, "User not found", http.StatusNotFound)
	}
	return account, err
}

func (s *AuthService) sendCode(ctx context.Context, email string, subjectID string, purpose string) error {
	code, err := s.codes.Issue(ctx, email, subjectID)
	if err != nil {
		return err
	}

	if err := s.mailer.Send(ctx, mail.VerificationMessage(email, code, purpose)); err != nil {
		s.publish(ctx, event.TypeCodeIssued, subjectID, event.StatusFailure, email, err)
		return apierror.Wrap(err, apierror.CodeInternal, "Error sending verification email", http.StatusInternalServerError)
	}

	s.publish(ctx, event.TypeCodeIssued, subjectID, event.StatusSuccess, email, nil)
	return nil
}

func outcomeError(outcome verification.Outcome) error {
	switch outcome {
	case verification.Valid:
		return nil
	case verification.NotFound:
		return apierror.Wrap(model.ErrCodeNotFound, apierror.CodeBadRequest, "No verification code found for this email", http.StatusBadRequest)
	case verification.Expired:
		return apierror.Wrap(model.ErrCodeExpired, apierror.CodeBadRequest, "Verification code has expired. Please request a new one.", http.StatusBadRequest)
	default:
		return apierror.Wrap(model.ErrCodeInvalid, apierror.CodeBadRequest, "Invalid verification code", http.StatusBadRequest)
	}
}

func outcomeStatus(outcome verification.Outcome) string {
	if outcome == verification.Valid {
		return event.StatusSuccess
	}
	return event.StatusFailure
}

func (s *AuthService) publish(ctx context.Context, typ event.Type, actorID string, status string, resource string, err error) {
	if s.bus == nil {
		return
	}

	e := event.Event{
		Type:      typ,
		ActorID:   actorID,
		Status:    status,
		Resource:  resource,
		IP:        clientIPFrom(ctx),
		Timestamp: s.now().UTC(),
	}
	if err != nil {
		e.Error = err.Error()
	}
	s.bus.Publish(e)
}
