// Package session issues, verifies and revokes the access/refresh token pair
// that backs a logged-in browser or app session.
package session

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"compass-auth/internal/model"
)

const (
	AccessTTL  = time.Minute
	RefreshTTL = 30 * 24 * time.Hour

	typeAccess  = "access"
	typeRefresh = "refresh"
)

// AccountStore is the slice of the account repository the manager needs.
type AccountStore interface {
	FindByID(ctx context.Context, id string) (model.Account, error)
	SaveRefreshToken(ctx context.Context, id string, token string) error
}

type Config struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

type Pair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

type AccessGrant struct {
	Subject     string
	AccessToken string
	ExpiresAt   time.Time
}

type Manager struct {
	accounts      AccountStore
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

func NewManager(accounts AccountStore, cfg Config) *Manager {
	refreshSecret := cfg.RefreshSecret
	if refreshSecret == "" {
		refreshSecret = cfg.AccessSecret
	}
	accessTTL := cfg.AccessTTL
	if accessTTL <= 0 {
		accessTTL = AccessTTL
	}
	refreshTTL := cfg.RefreshTTL
	if refreshTTL <= 0 {
		refreshTTL = RefreshTTL
	}

	return &Manager{
		accounts:      accounts,
		accessSecret:  []byte(cfg.AccessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		now:           time.Now,
	}
}

// WithClock replaces the time source used for signing and verification.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

func (m *Manager) AccessTTL() time.Duration  { return m.accessTTL }
func (m *Manager) RefreshTTL() time.Duration { return m.refreshTTL }

// IssuePair signs a fresh access and refresh token for subjectID and stores
// the refresh token on the account, replacing any earlier one.
func (m *Manager) IssuePair(ctx context.Context, subjectID string, roles []string) (Pair, error) {
	now := m.now().UTC()

	access, accessExp, err := m.signAccess(subjectID, roles, now)
	if err != nil {
		return Pair{}, err
	}

	refreshExp := now.Add(m.refreshTTL)
	refresh, err := sign(m.refreshSecret, jwt.MapClaims{
		"sub": subjectID,
		"typ": typeRefresh,
		"jti": uuid.NewString(),
		"iat": now.Unix(),
		"exp": refreshExp.Unix(),
	})
	if err != nil {
		return Pair{}, fmt.Errorf("sign refresh token: %w", err)
	}

	if err := m.accounts.SaveRefreshToken(ctx, subjectID, refresh); err != nil {
		return Pair{}, fmt.Errorf("persist refresh token: %w", err)
	}

	return Pair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// RefreshAccess exchanges a presented refresh token for a new access token.
// The refresh token itself is not rotated.
func (m *Manager) RefreshAccess(ctx context.Context, presented string) (AccessGrant, error) {
	claims, err := m.parse(presented, m.refreshSecret, typeRefresh, true)
	if err != nil {
		return AccessGrant{}, err
	}

	subjectID, _ := claims["sub"].(string)
	account, err := m.accounts.FindByID(ctx, subjectID)
	if errors.Is(err, model.ErrAccountNotFound) {
		return AccessGrant{}, model.ErrTokenRevoked
	}
	if err != nil {
		return AccessGrant{}, fmt.Errorf("load refresh token owner: %w", err)
	}

	if account.RefreshToken == "" || subtle.ConstantTimeCompare([]byte(account.RefreshToken), []byte(presented)) != 1 {
		if err := m.accounts.SaveRefreshToken(ctx, subjectID, ""); err != nil && !errors.Is(err, model.ErrAccountNotFound) {
			return AccessGrant{}, fmt.Errorf("clear mismatched refresh token: %w", err)
		}
		return AccessGrant{}, model.ErrTokenRevoked
	}

	access, exp, err := m.signAccess(subjectID, account.Roles, m.now().UTC())
	if err != nil {
		return AccessGrant{}, err
	}

	return AccessGrant{Subject: subjectID, AccessToken: access, ExpiresAt: exp}, nil
}

// Invalidate clears the stored refresh token. Unknown subjects are ignored.
func (m *Manager) Invalidate(ctx context.Context, subjectID string) error {
	if subjectID == "" {
		return nil
	}
	err := m.accounts.SaveRefreshToken(ctx, subjectID, "")
	if err != nil && !errors.Is(err, model.ErrAccountNotFound) {
		return fmt.Errorf("invalidate refresh token: %w", err)
	}
	return nil
}

// VerifyAccess checks signature and expiry of an access token.
func (m *Manager) VerifyAccess(token string) (model.AccessClaims, error) {
	claims, err := m.parse(token, m.accessSecret, typeAccess, true)
	if err != nil {
		return model.AccessClaims{}, err
	}
	return accessClaims(claims), nil
}

// SubjectOf returns the subject of a correctly signed access or refresh
// token even when it has expired.
func (m *Manager) SubjectOf(token string) (string, error) {
	if claims, err := m.parse(token, m.accessSecret, typeAccess, false); err == nil {
		subject, _ := claims["sub"].(string)
		return subject, nil
	}

	claims, err := m.parse(token, m.refreshSecret, typeRefresh, false)
	if err != nil {
		return "", err
	}
	subject, _ := claims["sub"].(string)
	return subject, nil
}

// signAccess writes iat and exp as whole seconds (RFC 7519 NumericDate), so a
// token issued mid-second expires up to a second before now+accessTTL.
func (m *Manager) signAccess(subjectID string, roles []string, now time.Time) (string, time.Time, error) {
	if roles == nil {
		roles = []string{}
	}
	exp := now.Add(m.accessTTL)
	token, err := sign(m.accessSecret, jwt.MapClaims{
		"sub":   subjectID,
		"roles": roles,
		"typ":   typeAccess,
		"iat":   now.Unix(),
		"exp":   exp.Unix(),
	})
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign access token: %w", err)
	}
	return token, exp, nil
}

func (m *Manager) parse(tokenString string, secret []byte, expectedType string, checkExpiry bool) (jwt.MapClaims, error) {
	if tokenString == "" {
		return nil, model.ErrTokenMissing
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.now),
	}
	if checkExpiry {
		opts = append(opts, jwt.WithExpirationRequired())
	} else {
		opts = append(opts, jwt.WithoutClaimsValidation())
	}

	parsed, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		return secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, model.ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", model.ErrTokenMalformed, err)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || !parsed.Valid {
		return nil, model.ErrTokenMalformed
	}

	typ, _ := claims["typ"].(string)
	subject, _ := claims["sub"].(string)
	if typ != expectedType || subject == "" {
		return nil, model.ErrTokenMalformed
	}

	return claims, nil
}

func accessClaims(claims jwt.MapClaims) model.AccessClaims {
	out := model.AccessClaims{Roles: []string{}}
	out.Subject, _ = claims["sub"].(string)
	if raw, ok := claims["roles"].([]interface{}); ok {
		for _, item := range raw {
			if role, ok := item.(string); ok {
				out.Roles = append(out.Roles, role)
			}
		}
	}
	return out
}

func sign(secret []byte, claims jwt.MapClaims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}
