package repository

import (
	"context"
	"strings"
	"sync"
	"time"

	"compass-auth/internal/model"
)

// MemoryAccountRepository keeps accounts in process memory. It backs
// development runs without DATABASE_URL and the service tests.
type MemoryAccountRepository struct {
	mu         sync.RWMutex
	byID       map[string]model.Account
	byUsername map[string]string
	byEmail    map[string]string
	now        func() time.Time
}

func NewMemoryAccountRepository() *MemoryAccountRepository {
	return &MemoryAccountRepository{
		byID:       map[string]model.Account{},
		byUsername: map[string]string{},
		byEmail:    map[string]string{},
		now:        time.Now,
	}
}

func usernameKey(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

func (r *MemoryAccountRepository) FindByID(_ context.Context, id string) (model.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	account, ok := r.byID[id]
	if !ok {
		return model.Account{}, model.ErrAccountNotFound
	}
	return clone(account), nil
}

func (r *MemoryAccountRepository) FindByEmail(ctx context.Context, email string) (model.Account, error) {
	r.mu.RLock()
	id, ok := r.byEmail[strings.TrimSpace(email)]
	r.mu.RUnlock()
	if !ok {
		return model.Account{}, model.ErrAccountNotFound
	}
	return r.FindByID(ctx, id)
}

func (r *MemoryAccountRepository) FindByUsername(ctx context.Context, username string) (model.Account, error) {
	r.mu.RLock()
	id, ok := r.byUsername[usernameKey(username)]
	r.mu.RUnlock()
	if !ok {
		return model.Account{}, model.ErrAccountNotFound
	}
	return r.FindByID(ctx, id)
}

func (r *MemoryAccountRepository) FindByGoogleID(_ context.Context, googleID string) (model.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if googleID == "" {
		return model.Account{}, model.ErrAccountNotFound
	}
	for _, account := range r.byID {
		if account.GoogleID == googleID {
			return clone(account), nil
		}
	}
	return model.Account{}, model.ErrAccountNotFound
}

func (r *MemoryAccountRepository) UsernameExists(_ context.Context, username string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.byUsername[usernameKey(username)]
	return ok, nil
}

func (r *MemoryAccountRepository) AffiliationTaken(_ context.Context, email string, exceptID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for id, account := range r.byID {
		if id != exceptID && account.AffiliatedEmailVerified && account.AffiliatedEmail == email {
			return true, nil
		}
	}
	return false, nil
}

func (r *MemoryAccountRepository) Create(_ context.Context, account model.Account) (model.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := usernameKey(account.Username)
	if _, exists := r.byUsername[key]; exists {
		return model.Account{}, model.ErrUsernameTaken
	}
	if _, exists := r.byEmail[account.Email]; exists {
		return model.Account{}, model.ErrEmailTaken
	}

	if account.Roles == nil {
		account.Roles = []string{model.RoleUser}
	}
	if account.CreatedAt.IsZero() {
		account.CreatedAt = r.now().UTC()
	}
	if account.UpdatedAt.IsZero() {
		account.UpdatedAt = account.CreatedAt
	}

	r.byID[account.ID] = clone(account)
	r.byUsername[key] = account.ID
	r.byEmail[account.Email] = account.ID
	return clone(account), nil
}

func (r *MemoryAccountRepository) SaveRefreshToken(_ context.Context, id string, token string) error {
	return r.mutate(id, func(account *model.Account) {
		account.RefreshToken = token
	})
}

func (r *MemoryAccountRepository) UpdatePassword(_ context.Context, id string, passwordHash string) error {
	return r.mutate(id, func(account *model.Account) {
		account.PasswordHash = passwordHash
	})
}

func (r *MemoryAccountRepository) SetAffiliation(_ context.Context, id string, email string, verified bool) error {
	return r.mutate(id, func(account *model.Account) {
		account.AffiliatedEmail = email
		account.AffiliatedEmailVerified = verified
	})
}

func (r *MemoryAccountRepository) mutate(id string, apply func(*model.Account)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	account, ok := r.byID[id]
	if !ok {
		return model.ErrAccountNotFound
	}
	apply(&account)
	account.UpdatedAt = r.now().UTC()
	r.byID[id] = account
	return nil
}

func clone(account model.Account) model.Account {
	account.Roles = append([]string(nil), account.Roles...)
	return account
}
