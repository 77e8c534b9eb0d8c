package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/loandocs/loandocs/internal/auth/store"
)

// rateLimitRetention is how long idle rate-limit counters stick around
// before housekeeping drops them.
const rateLimitRetention = 24 * time.Hour

// HousekeepingService periodically sweeps expired verification codes,
// stale rate-limit counters and lapsed sessions. Correctness never depends
// on it: expiry is computed at read time, the sweep only keeps tables and
// statuses tidy.
type HousekeepingService struct {
	Store    store.Store
	Logger   *slog.Logger
	Interval time.Duration

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeepingService creates a new housekeeping service with the given
// interval. If interval is 0 or negative, defaults to 1 hour.
func NewHousekeepingService(st store.Store, logger *slog.Logger, interval time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = 1 * time.Hour
	}

	return &HousekeepingService{
		Store:    st,
		Logger:   logger,
		Interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start begins the background worker. Non-blocking; call Stop() to shut
// down gracefully.
func (s *HousekeepingService) Start() {
	go s.run()
	s.Logger.Info("housekeeping service started", "interval", s.Interval)
}

// Stop shuts the worker down, blocking until any in-progress sweep ends.
func (s *HousekeepingService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("housekeeping service stopped")
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	// Run cleanup immediately on startup
	s.cleanup()

	for {
		select {
		case <-ticker.C:
			s.cleanup()
		case <-s.stopCh:
			return
		}
	}
}

// cleanup performs one sweep. Each step is independent; a failure in one
// won't stop the others.
func (s *HousekeepingService) cleanup() {
	ctx := context.Background()
	now := time.Now().UTC()
	s.Logger.Info("starting housekeeping cleanup")

	if err := s.Store.VerificationCodes().DeleteExpiredCodes(ctx, now); err != nil {
		s.Logger.Error("failed to delete expired verification codes", "error", err)
	}

	if err := s.Store.RateLimits().DeleteStaleRateLimits(ctx, now.Add(-rateLimitRetention)); err != nil {
		s.Logger.Error("failed to delete stale rate limits", "error", err)
	}

	expired, err := s.Store.Sessions().ExpireLapsedSessions(ctx, now)
	if err != nil {
		s.Logger.Error("failed to expire lapsed sessions", "error", err)
	}

	s.Logger.Info("housekeeping cleanup completed", "sessions_expired", expired)
}
