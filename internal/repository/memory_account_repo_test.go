package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"compass-auth/internal/model"
)

func TestMemoryAccountRepository(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := NewMemoryAccountRepository()

	created, err := repo.Create(ctx, model.Account{ID: "acc-1", Username: "Jane", Email: "jane@school.edu", GoogleID: "g-1"})
	require.NoError(t, err)
	assert.Equal(t, []string{model.RoleUser}, created.Roles)
	assert.False(t, created.CreatedAt.IsZero())

	t.Run("lookups", func(t *testing.T) {
		byName, err := repo.FindByUsername(ctx, "jane")
		require.NoError(t, err)
		assert.Equal(t, "acc-1", byName.ID)

		byEmail, err := repo.FindByEmail(ctx, "jane@school.edu")
		require.NoError(t, err)
		assert.Equal(t, "acc-1", byEmail.ID)

		byGoogle, err := repo.FindByGoogleID(ctx, "g-1")
		require.NoError(t, err)
		assert.Equal(t, "acc-1", byGoogle.ID)

		_, err = repo.FindByGoogleID(ctx, "")
		require.ErrorIs(t, err, model.ErrAccountNotFound)

		exists, err := repo.UsernameExists(ctx, "JANE")
		require.NoError(t, err)
		assert.True(t, exists)
	})

	t.Run("duplicates rejected", func(t *testing.T) {
		_, err := repo.Create(ctx, model.Account{ID: "acc-2", Username: "jane", Email: "other@school.edu"})
		require.ErrorIs(t, err, model.ErrUsernameTaken)

		_, err = repo.Create(ctx, model.Account{ID: "acc-2", Username: "other", Email: "jane@school.edu"})
		require.ErrorIs(t, err, model.ErrEmailTaken)
	})

	t.Run("mutations", func(t *testing.T) {
		require.NoError(t, repo.SaveRefreshToken(ctx, "acc-1", "tok"))
		require.NoError(t, repo.UpdatePassword(ctx, "acc-1", "new-hash"))
		require.NoError(t, repo.SetAffiliation(ctx, "acc-1", "jane@mit.edu", true))

		account, err := repo.FindByID(ctx, "acc-1")
		require.NoError(t, err)
		assert.Equal(t, "tok", account.RefreshToken)
		assert.Equal(t, "new-hash", account.PasswordHash)
		assert.True(t, account.AffiliatedEmailVerified)

		taken, err := repo.AffiliationTaken(ctx, "jane@mit.edu", "acc-9")
		require.NoError(t, err)
		assert.True(t, taken)

		taken, err = repo.AffiliationTaken(ctx, "jane@mit.edu", "acc-1")
		require.NoError(t, err)
		assert.False(t, taken)

		require.ErrorIs(t, repo.SaveRefreshToken(ctx, "ghost", ""), model.ErrAccountNotFound)
	})

	t.Run("returned accounts are copies", func(t *testing.T) {
		account, err := repo.FindByID(ctx, "acc-1")
		require.NoError(t, err)
		account.Roles[0] = model.RoleAdmin

		again, err := repo.FindByID(ctx, "acc-1")
		require.NoError(t, err)
		assert.Equal(t, []string{model.RoleUser}, again.Roles)
	})
}
