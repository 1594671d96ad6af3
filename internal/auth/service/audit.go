package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/opsdeskhq/opsdesk/internal/auth/domain"
	"github.com/opsdeskhq/opsdesk/internal/auth/store"
	"github.com/opsdeskhq/opsdesk/pkg/idx"
)

// DefaultAuditQueueSize bounds the in-flight audit backlog. Once full,
// new events are dropped rather than blocking the request path.
const DefaultAuditQueueSize = 256

// AuditRecorder accepts security events for eventual persistence. Record
// never blocks and never returns an error: audit writes are best-effort
// and must not fail the operation that produced them.
type AuditRecorder interface {
	Record(e domain.AuditEvent)
}

// AuditService persists audit events through a bounded queue drained by a
// single background worker, keeping the insert off the request path.
type AuditService struct {
	Store  store.Store
	Logger *slog.Logger

	events chan domain.AuditEvent
	stopCh chan struct{}
	doneCh chan struct{}
}

// NewAuditService creates an audit dispatcher with the given queue size.
// If queueSize is 0 or negative, defaults to DefaultAuditQueueSize.
func NewAuditService(st store.Store, logger *slog.Logger, queueSize int) *AuditService {
	if queueSize <= 0 {
		queueSize = DefaultAuditQueueSize
	}

	return &AuditService{
		Store:  st,
		Logger: logger,
		events: make(chan domain.AuditEvent, queueSize),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start begins the background worker. Call Stop() to shut it down.
func (s *AuditService) Start() {
	go s.run()
	s.Logger.Info("audit service started", "queue_size", cap(s.events))
}

// Stop drains any queued events and shuts the worker down. Blocks until
// the worker has finished.
func (s *AuditService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("audit service stopped")
}

// Record enqueues one event. Missing id, origin and timestamp fields are
// filled in. When the queue is full the event is dropped and counted in
// the logs; the caller is never blocked or failed.
func (s *AuditService) Record(e domain.AuditEvent) {
	if e.ID == "" {
		e.ID = idx.New().String()
	}
	if e.Origin == "" {
		e.Origin = "unknown"
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	select {
	case s.events <- e:
	default:
		s.Logger.Warn("audit queue full, dropping event",
			"action", string(e.Action),
			"entity_id", e.EntityID,
		)
	}
}

func (s *AuditService) run() {
	defer close(s.doneCh)

	for {
		select {
		case e := <-s.events:
			s.persist(e)
		case <-s.stopCh:
			// Drain whatever is still queued before exiting.
			for {
				select {
				case e := <-s.events:
					s.persist(e)
				default:
					return
				}
			}
		}
	}
}

func (s *AuditService) persist(e domain.AuditEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.Store.AuditEvents().CreateAuditEvent(ctx, e); err != nil {
		s.Logger.Error("failed to persist audit event",
			"error", err,
			"action", string(e.Action),
			"entity_id", e.EntityID,
		)
	}
}
