package service

import (
	"context"
	"log/slog"
	"sync"

	"compass-auth/internal/event"
	"compass-auth/internal/model"
)

type AuditRecorder interface {
	Log(ctx context.Context, entry model.AuditEntry) error
	Recent(ctx context.Context, actorID string, limit int) ([]model.AuditEntry, error)
}

type EventObserver interface {
	ObserveEvent(eventType string, status string)
}

// AuditService drains the event bus into the audit trail. It is the only
// background goroutine in the process.
type AuditService struct {
	bus      event.Bus
	recorder AuditRecorder
	observer EventObserver
	logger   *slog.Logger

	mu   sync.Mutex
	done chan struct{}
}

func NewAuditService(bus event.Bus, recorder AuditRecorder, observer EventObserver, logger *slog.Logger) *AuditService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditService{bus: bus, recorder: recorder, observer: observer, logger: logger}
}

// Start subscribes to the bus and records events until ctx is cancelled.
// Calling Start twice is a no-op.
func (s *AuditService) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done != nil {
		return
	}

	events, unsubscribe := s.bus.Subscribe()
	done := make(chan struct{})
	s.done = done

	go func() {
		defer close(done)
		defer unsubscribe()

		for {
			select {
			case <-ctx.Done():
				return
			case e, ok := <-events:
				if !ok {
					return
				}
				s.record(ctx, e)
			}
		}
	}()
}

// Wait blocks until the subscriber goroutine started by Start has exited.
func (s *AuditService) Wait() {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done != nil {
		<-done
	}
}

func (s *AuditService) Recent(ctx context.Context, actorID string, limit int) ([]model.AuditEntry, error) {
	return s.recorder.Recent(ctx, actorID, limit)
}

func (s *AuditService) record(ctx context.Context, e event.Event) {
	if s.observer != nil {
		s.observer.ObserveEvent(string(e.Type), e.Status)
	}

	entry := model.AuditEntry{
		Action:     string(e.Type),
		OccurredAt: e.Timestamp,
		ActorID:    e.ActorID,
		Status:     e.Status,
		Resource:   e.Resource,
		IP:         e.IP,
		Error:      e.Error,
	}
	if err := s.recorder.Log(context.WithoutCancel(ctx), entry); err != nil {
		s.logger.Error("audit entry not recorded", "action", entry.Action, "error", err)
	}
}
