package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"compass-auth/internal/model"
)

func TestAuditRepository_LogAndRecent(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	at := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	entry := model.AuditEntry{Action: "session.issued", OccurredAt: at, ActorID: "acc-1", Status: "success", IP: "10.0.0.1"}

	mock.ExpectExec(`INSERT INTO audit_entries`).
		WithArgs("session.issued", at, "acc-1", "success", "", "10.0.0.1", "").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery(`SELECT action, occurred_at, actor_id, status, resource, actor_ip, error_text`).
		WithArgs("acc-1", 200).
		WillReturnRows(pgxmock.NewRows([]string{"action", "occurred_at", "actor_id", "status", "resource", "actor_ip", "error_text"}).
			AddRow("session.issued", at, "acc-1", "success", "", "10.0.0.1", ""))

	repo := NewAuditRepository(mock)
	require.NoError(t, repo.Log(context.Background(), entry))

	entries, err := repo.Recent(context.Background(), "acc-1", 1000)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, entry, entries[0])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMemoryAuditRepository(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := NewMemoryAuditRepository(3)
	for i := 0; i < 5; i++ {
		actor := "acc-1"
		if i%2 == 1 {
			actor = "acc-2"
		}
		require.NoError(t, repo.Log(ctx, model.AuditEntry{Action: fmt.Sprintf("a%d", i), ActorID: actor}))
	}

	all, err := repo.Recent(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "a4", all[0].Action)
	assert.Equal(t, "a2", all[2].Action)

	mine, err := repo.Recent(ctx, "acc-1", 10)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, "a4", mine[0].Action)
}
