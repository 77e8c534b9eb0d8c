package service

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/loandocs/loandocs/internal/auth/domain"
	"github.com/loandocs/loandocs/internal/auth/store"
	"github.com/loandocs/loandocs/pkg/idx"
)

// defaultAuditBuffer bounds the in-flight audit queue.
const defaultAuditBuffer = 256

// AuditService appends auth events to the audit log asynchronously so the
// hot auth paths never wait on the log write. Events are dropped (and the
// drop counted) rather than blocking when the buffer is full; Close drains
// whatever is still queued.
type AuditService struct {
	Store  store.Store
	Logger *slog.Logger

	ch        chan domain.AuditEvent
	done      chan struct{}
	wg        sync.WaitGroup
	dropped   atomic.Uint64
	closed    atomic.Bool
	closeOnce sync.Once
}

func NewAuditService(st store.Store, logger *slog.Logger, buffer int) *AuditService {
	if buffer <= 0 {
		buffer = defaultAuditBuffer
	}

	s := &AuditService{
		Store:  st,
		Logger: logger,
		ch:     make(chan domain.AuditEvent, buffer),
		done:   make(chan struct{}),
	}

	s.wg.Add(1)
	go s.run()

	return s
}

func (s *AuditService) run() {
	defer s.wg.Done()

	for {
		select {
		case ev := <-s.ch:
			s.append(ev)
		case <-s.done:
			for {
				select {
				case ev := <-s.ch:
					s.append(ev)
				default:
					return
				}
			}
		}
	}
}

func (s *AuditService) append(ev domain.AuditEvent) {
	if err := s.Store.AuditLogs().AppendAuditEvent(context.Background(), ev); err != nil {
		s.Logger.Error("failed to append audit event",
			"event_type", ev.EventType, "error", err)
	}
}

// Record queues one event. Non-blocking: a full buffer drops the event and
// bumps the drop counter instead of stalling the request path.
func (s *AuditService) Record(ev domain.AuditEvent) {
	if s == nil || s.closed.Load() {
		return
	}
	if ev.ID == "" {
		ev.ID = idx.New().String()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}

	select {
	case s.ch <- ev:
	case <-s.done:
	default:
		s.dropped.Add(1)
	}
}

// List returns a session's audit trail, oldest first.
func (s *AuditService) List(ctx context.Context, sessionID string) ([]domain.AuditEvent, error) {
	return s.Store.AuditLogs().ListAuditEventsBySessionID(ctx, sessionID)
}

// Dropped reports how many events were discarded due to a full buffer.
func (s *AuditService) Dropped() uint64 {
	if s == nil {
		return 0
	}
	return s.dropped.Load()
}

// Close drains the queue and stops the worker.
func (s *AuditService) Close() {
	if s == nil {
		return
	}
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		close(s.done)
		s.wg.Wait()
	})
}
