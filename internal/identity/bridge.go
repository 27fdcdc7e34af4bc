// Package identity turns an external identity provider authorization code
// into a local account.
package identity

//go:generate mockgen -source=bridge.go -destination=mock_identity.go -package=identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"compass-auth/internal/model"
	"compass-auth/internal/redirect"
	"compass-auth/internal/util"
)

const (
	maxSuffixAttempts = 8
	fallbackSuffixLen = 8
)

// Profile is the provider's view of the authenticated user.
type Profile struct {
	GoogleID      string
	Email         string
	EmailVerified bool
	Name          string
	Picture       string
}

// Exchanger redeems an authorization code issued for redirectURI.
type Exchanger interface {
	Exchange(ctx context.Context, code string, redirectURI string) (Profile, error)
}

// AccountDirectory is the account lookup and creation surface the bridge uses.
type AccountDirectory interface {
	FindByGoogleID(ctx context.Context, googleID string) (model.Account, error)
	FindByEmail(ctx context.Context, email string) (model.Account, error)
	UsernameExists(ctx context.Context, username string) (bool, error)
	Create(ctx context.Context, account model.Account) (model.Account, error)
}

type Result struct {
	Account  model.Account
	Created  bool
	Redirect redirect.Context
}

type Bridge struct {
	resolver  *redirect.Resolver
	exchanger Exchanger
	accounts  AccountDirectory
	logger    *slog.Logger
	now       func() time.Time
	randomHex func(n int) (string, error)
}

func NewBridge(resolver *redirect.Resolver, exchanger Exchanger, accounts AccountDirectory, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{
		resolver:  resolver,
		exchanger: exchanger,
		accounts:  accounts,
		logger:    logger,
		now:       time.Now,
		randomHex: util.RandomHex,
	}
}

// Authenticate resolves the redirect, redeems code and returns the matching
// account, creating one on first sign-in. An email already owned by an
// account without this Google id is never merged.
func (b *Bridge) Authenticate(ctx context.Context, code string, isRegister bool, rawURL string) (Result, error) {
	purpose := redirect.PurposeLogin
	if isRegister {
		purpose = redirect.PurposeRegister
	}

	redirectCtx, err := b.resolver.Resolve(rawURL, purpose)
	if err != nil {
		b.logger.Warn("oauth redirect rejected", "url", rawURL, "error", err)
		return Result{}, err
	}

	profile, err := b.exchanger.Exchange(ctx, code, redirectCtx.ResolvedURI)
	if err != nil {
		b.logger.Warn("oauth code exchange failed", "redirect_kind", redirectCtx.Kind, "error", err)
		if errors.Is(err, model.ErrRedirectMismatch) || errors.Is(err, model.ErrExchangeFailed) {
			return Result{}, err
		}
		return Result{}, fmt.Errorf("%w: %v", model.ErrExchangeFailed, err)
	}

	email, err := util.NormalizeEmail(profile.Email)
	if err != nil || profile.GoogleID == "" {
		return Result{}, fmt.Errorf("%w: provider profile lacks id or email", model.ErrExchangeFailed)
	}

	existing, err := b.accounts.FindByGoogleID(ctx, profile.GoogleID)
	if err == nil {
		return Result{Account: existing, Redirect: redirectCtx}, nil
	}
	if !errors.Is(err, model.ErrAccountNotFound) {
		return Result{}, fmt.Errorf("find account by google id: %w", err)
	}

	if _, err := b.accounts.FindByEmail(ctx, email); err == nil {
		return Result{}, model.ErrEmailCollision
	} else if !errors.Is(err, model.ErrAccountNotFound) {
		return Result{}, fmt.Errorf("find account by email: %w", err)
	}

	username, err := b.uniqueUsername(ctx, email)
	if err != nil {
		return Result{}, err
	}

	now := b.now().UTC()
	created, err := b.accounts.Create(ctx, model.Account{
		ID:        uuid.NewString(),
		Username:  username,
		Email:     email,
		GoogleID:  profile.GoogleID,
		Name:      profile.Name,
		Picture:   profile.Picture,
		Roles:     []string{model.RoleUser},
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		if errors.Is(err, model.ErrEmailTaken) {
			return Result{}, model.ErrEmailCollision
		}
		return Result{}, fmt.Errorf("create google account: %w", err)
	}

	b.logger.Info("account created from google sign-in", "account_id", created.ID, "username", created.Username)
	return Result{Account: created, Created: true, Redirect: redirectCtx}, nil
}

// uniqueUsername tries the email stem, then the stem with a one-byte hex
// suffix a bounded number of times, then a long random suffix.
func (b *Bridge) uniqueUsername(ctx context.Context, email string) (string, error) {
	base := util.UsernameBaseFromEmail(email)

	candidate := base
	for attempt := 0; attempt <= maxSuffixAttempts; attempt++ {
		taken, err := b.accounts.UsernameExists(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("check username: %w", err)
		}
		if !taken {
			return candidate, nil
		}
		if attempt == maxSuffixAttempts {
			break
		}

		suffix, err := b.randomHex(1)
		if err != nil {
			return "", fmt.Errorf("username suffix: %w", err)
		}
		candidate = base + suffix
	}

	suffix, err := b.randomHex(fallbackSuffixLen)
	if err != nil {
		return "", fmt.Errorf("username suffix: %w", err)
	}
	candidate = base + suffix

	taken, err := b.accounts.UsernameExists(ctx, candidate)
	if err != nil {
		return "", fmt.Errorf("check username: %w", err)
	}
	if taken {
		return "", model.ErrUsernameTaken
	}
	return candidate, nil
}
