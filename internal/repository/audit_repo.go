package repository

import (
	"context"
	"sync"

	"github.com/samber/oops"

	"compass-auth/internal/model"
)

const (
	defaultAuditLimit = 50
	maxAuditLimit     = 200
)

type AuditRepository struct {
	pool dbPool
}

func NewAuditRepository(pool dbPool) *AuditRepository {
	return &AuditRepository{pool: pool}
}

func (r *AuditRepository) Log(ctx context.Context, entry model.AuditEntry) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO audit_entries (action, occurred_at, actor_id, status, resource, actor_ip, error_text)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		entry.Action, entry.OccurredAt, entry.ActorID, entry.Status, entry.Resource, entry.IP, entry.Error)
	if err != nil {
		return oops.Code("AUDIT_WRITE_FAILED").With("action", entry.Action).Wrap(err)
	}
	return nil
}

// Recent returns the newest entries first, optionally filtered by actor.
func (r *AuditRepository) Recent(ctx context.Context, actorID string, limit int) ([]model.AuditEntry, error) {
	limit = clampAuditLimit(limit)

	rows, err := r.pool.Query(ctx,
		`SELECT action, occurred_at, actor_id, status, resource, actor_ip, error_text
		 FROM audit_entries
		 WHERE $1 = '' OR actor_id = $1
		 ORDER BY occurred_at DESC
		 LIMIT $2`, actorID, limit)
	if err != nil {
		return nil, oops.Code("AUDIT_QUERY_FAILED").With("actor_id", actorID).Wrap(err)
	}
	defer rows.Close()

	entries := make([]model.AuditEntry, 0)
	for rows.Next() {
		var e model.AuditEntry
		if err := rows.Scan(&e.Action, &e.OccurredAt, &e.ActorID, &e.Status, &e.Resource, &e.IP, &e.Error); err != nil {
			return nil, oops.Code("AUDIT_QUERY_FAILED").Wrap(err)
		}
		e.OccurredAt = e.OccurredAt.UTC()
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, oops.Code("AUDIT_QUERY_FAILED").Wrap(err)
	}
	return entries, nil
}

// MemoryAuditRepository keeps the most recent entries in a bounded slice.
type MemoryAuditRepository struct {
	mu      sync.Mutex
	entries []model.AuditEntry
	limit   int
}

func NewMemoryAuditRepository(capacity int) *MemoryAuditRepository {
	if capacity <= 0 {
		capacity = maxAuditLimit
	}
	return &MemoryAuditRepository{limit: capacity}
}

func (r *MemoryAuditRepository) Log(_ context.Context, entry model.AuditEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries = append(r.entries, entry)
	if len(r.entries) > r.limit {
		r.entries = r.entries[len(r.entries)-r.limit:]
	}
	return nil
}

func (r *MemoryAuditRepository) Recent(_ context.Context, actorID string, limit int) ([]model.AuditEntry, error) {
	limit = clampAuditLimit(limit)

	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]model.AuditEntry, 0, limit)
	for i := len(r.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if actorID != "" && r.entries[i].ActorID != actorID {
			continue
		}
		out = append(out, r.entries[i])
	}
	return out, nil
}

func clampAuditLimit(limit int) int {
	if limit <= 0 {
		return defaultAuditLimit
	}
	if limit > maxAuditLimit {
		return maxAuditLimit
	}
	return limit
}
