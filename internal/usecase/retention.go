package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/V4T54L/notification-service/internal/domain"
)

// PurgeRecorder observes how many audit events a sweep removed.
type PurgeRecorder interface {
	AuditPurged(n int64)
}

// RetentionSweeper periodically drops audit events older than the retention window.
type RetentionSweeper struct {
	audit     domain.AuditRepository
	retention time.Duration
	interval  time.Duration
	recorder  PurgeRecorder
	logger    *slog.Logger
	now       func() time.Time
}

// NewRetentionSweeper creates a sweeper. recorder may be nil.
func NewRetentionSweeper(audit domain.AuditRepository, retention, interval time.Duration, recorder PurgeRecorder, logger *slog.Logger) *RetentionSweeper {
	return &RetentionSweeper{
		audit:     audit,
		retention: retention,
		interval:  interval,
		recorder:  recorder,
		logger:    logger.With("component", "retention"),
		now:       time.Now,
	}
}

// SweepOnce purges everything recorded before now minus the retention window.
func (s *RetentionSweeper) SweepOnce(ctx context.Context) (int64, error) {
	cutoff := s.now().UTC().Add(-s.retention)
	n, err := s.audit.PurgeBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if s.recorder != nil {
		s.recorder.AuditPurged(n)
	}
	if n > 0 {
		s.logger.Info("purged expired audit events", "count", n, "cutoff", cutoff)
	}
	return n, nil
}

// Run sweeps immediately and then on every tick until ctx is cancelled.
func (s *RetentionSweeper) Run(ctx context.Context) {
	s.logger.Info("retention sweeper started", "retention", s.retention, "interval", s.interval)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if _, err := s.SweepOnce(ctx); err != nil && ctx.Err() == nil {
			s.logger.Error("audit purge failed", "error", err)
		}
		select {
		case <-ctx.Done():
			s.logger.Info("retention sweeper stopped")
			return
		case <-ticker.C:
		}
	}
}
