package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"

	"compass-auth/internal/model"
)

const accountColumns = `id, username, email, password_hash, COALESCE(google_id, ''), name, picture, roles,
		        refresh_token, COALESCE(affiliated_email, ''), affiliated_email_verified, created_at, updated_at`

type AccountRepository struct {
	pool dbPool
	now  func() time.Time
}

func NewAccountRepository(pool dbPool) *AccountRepository {
	return &AccountRepository{pool: pool, now: time.Now}
}

func (r *AccountRepository) FindByID(ctx context.Context, id string) (model.Account, error) {
	account, err := r.findOne(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)
	if err != nil {
		return model.Account{}, oops.Code("ACCOUNT_LOOKUP_FAILED").With("account_id", id).Wrap(err)
	}
	return account, nil
}

func (r *AccountRepository) FindByEmail(ctx context.Context, email string) (model.Account, error) {
	account, err := r.findOne(ctx, `SELECT `+accountColumns+` FROM accounts WHERE email = $1`, strings.TrimSpace(email))
	if err != nil {
		return model.Account{}, oops.Code("ACCOUNT_LOOKUP_FAILED").With("email", email).Wrap(err)
	}
	return account, nil
}

func (r *AccountRepository) FindByUsername(ctx context.Context, username string) (model.Account, error) {
	account, err := r.findOne(ctx, `SELECT `+accountColumns+` FROM accounts WHERE lower(username) = lower($1)`, strings.TrimSpace(username))
	if err != nil {
		return model.Account{}, oops.Code("ACCOUNT_LOOKUP_FAILED").With("username", username).Wrap(err)
	}
	return account, nil
}

func (r *AccountRepository) FindByGoogleID(ctx context.Context, googleID string) (model.Account, error) {
	account, err := r.findOne(ctx, `SELECT `+accountColumns+` FROM accounts WHERE google_id = $1`, googleID)
	if err != nil {
		return model.Account{}, oops.Code("ACCOUNT_LOOKUP_FAILED").With("google_id", googleID).Wrap(err)
	}
	return account, nil
}

func (r *AccountRepository) UsernameExists(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM accounts WHERE lower(username) = lower($1))`,
		strings.TrimSpace(username)).Scan(&exists)
	if err != nil {
		return false, oops.Code("ACCOUNT_LOOKUP_FAILED").With("username", username).Wrap(err)
	}
	return exists, nil
}

// AffiliationTaken reports whether another account already verified email
// as its affiliated address.
func (r *AccountRepository) AffiliationTaken(ctx context.Context, email string, exceptID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM accounts
		               WHERE affiliated_email = $1 AND affiliated_email_verified AND id <> $2)`,
		email, exceptID).Scan(&exists)
	if err != nil {
		return false, oops.Code("ACCOUNT_LOOKUP_FAILED").With("affiliated_email", email).Wrap(err)
	}
	return exists, nil
}

func (r *AccountRepository) Create(ctx context.Context, account model.Account) (model.Account, error) {
	if account.Roles == nil {
		account.Roles = []string{model.RoleUser}
	}
	if account.CreatedAt.IsZero() {
		account.CreatedAt = r.now().UTC()
	}
	if account.UpdatedAt.IsZero() {
		account.UpdatedAt = account.CreatedAt
	}

	_, err := r.pool.Exec(ctx,
		`INSERT INTO accounts (id, username, email, password_hash, google_id, name, picture, roles, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8, $9, $10)`,
		account.ID, account.Username, account.Email, account.PasswordHash, account.GoogleID,
		account.Name, account.Picture, account.Roles, account.CreatedAt, account.UpdatedAt)
	if err != nil {
		return model.Account{}, oops.Code("ACCOUNT_CREATE_FAILED").With("username", account.Username).Wrap(classifyUnique(err))
	}
	return account, nil
}

func (r *AccountRepository) SaveRefreshToken(ctx context.Context, id string, token string) error {
	return r.update(ctx, "ACCOUNT_REFRESH_TOKEN_FAILED", id,
		`UPDATE accounts SET refresh_token = $2, updated_at = $3 WHERE id = $1`, id, token, r.now().UTC())
}

func (r *AccountRepository) UpdatePassword(ctx context.Context, id string, passwordHash string) error {
	return r.update(ctx, "ACCOUNT_PASSWORD_FAILED", id,
		`UPDATE accounts SET password_hash = $2, updated_at = $3 WHERE id = $1`, id, passwordHash, r.now().UTC())
}

// SetAffiliation records email as the account's affiliated address. An empty
// email clears it.
func (r *AccountRepository) SetAffiliation(ctx context.Context, id string, email string, verified bool) error {
	return r.update(ctx, "ACCOUNT_AFFILIATION_FAILED", id,
		`UPDATE accounts SET affiliated_email = NULLIF($2, ''), affiliated_email_verified = $3, updated_at = $4 WHERE id = $1`,
		id, email, verified, r.now().UTC())
}

func (r *AccountRepository) update(ctx context.Context, code string, id string, sql string, args ...any) error {
	tag, err := r.pool.Exec(ctx, sql, args...)
	if err != nil {
		return oops.Code(code).With("account_id", id).Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.Code("ACCOUNT_NOT_FOUND").With("account_id", id).Wrap(model.ErrAccountNotFound)
	}
	return nil
}

func (r *AccountRepository) findOne(ctx context.Context, sql string, arg any) (model.Account, error) {
	var a model.Account
	err := r.pool.QueryRow(ctx, sql, arg).Scan(
		&a.ID, &a.Username, &a.Email, &a.PasswordHash, &a.GoogleID, &a.Name, &a.Picture, &a.Roles,
		&a.RefreshToken, &a.AffiliatedEmail, &a.AffiliatedEmailVerified, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Account{}, model.ErrAccountNotFound
	}
	if err != nil {
		return model.Account{}, err
	}
	return a, nil
}

func classifyUnique(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgerrcode.UniqueViolation {
		return err
	}
	switch {
	case strings.Contains(pgErr.ConstraintName, "username"):
		return model.ErrUsernameTaken
	case strings.Contains(pgErr.ConstraintName, "email"):
		return model.ErrEmailTaken
	}
	return err
}
