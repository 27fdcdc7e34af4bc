package verification

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type entry struct {
	code      string
	subjectID string
	expiresAt time.Time
}

// MemoryStore keeps codes in process memory. It is safe for concurrent use
// but only sees codes issued by the same process.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
	ttl     time.Duration
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: map[string]entry{},
		now:     time.Now,
		ttl:     CodeTTL,
	}
}

// WithClock replaces the time source. Tests only.
func (s *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	s.now = now
	return s
}

func (s *MemoryStore) Issue(_ context.Context, email string, subjectID string) (string, error) {
	code, err := generateCode()
	if err != nil {
		return "", fmt.Errorf("generate verification code: %w", err)
	}

	s.mu.Lock()
	s.entries[email] = entry{code: code, subjectID: subjectID, expiresAt: s.now().Add(s.ttl)}
	s.mu.Unlock()

	return code, nil
}

func (s *MemoryStore) Peek(_ context.Context, email string, code string) (Result, error) {
	return s.check(email, code, false), nil
}

func (s *MemoryStore) Consume(_ context.Context, email string, code string) (Result, error) {
	return s.check(email, code, true), nil
}

func (s *MemoryStore) check(email string, code string, consume bool) Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.entries[email]
	if !ok {
		return Result{Outcome: NotFound}
	}

	if s.now().After(stored.expiresAt) {
		delete(s.entries, email)
		return Result{Outcome: Expired}
	}

	if stored.code != code {
		return Result{Outcome: Invalid}
	}

	if consume {
		delete(s.entries, email)
	}

	return Result{Outcome: Valid, SubjectID: stored.subjectID}
}
