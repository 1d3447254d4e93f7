package snapshot

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/kdl-rgb/bytells/internal/fleet"
)

const publishTimeout = 2 * time.Minute

// Scheduler republishes the serving dataset on a cron schedule.
type Scheduler struct {
	cron      *cron.Cron
	publisher *Publisher
	dataset   func() *fleet.Dataset
	logger    *slog.Logger
}

func NewScheduler(publisher *Publisher, dataset func() *fleet.Dataset, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		cron:      cron.New(),
		publisher: publisher,
		dataset:   dataset,
		logger:    logger,
	}
}

// Start registers schedule and starts the cron loop. An empty schedule is a
// no-op.
func (s *Scheduler) Start(ctx context.Context, schedule string) error {
	if schedule == "" {
		return nil
	}
	_, err := s.cron.AddFunc(schedule, func() {
		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
		defer cancel()
		s.RunOnce(runCtx)
	})
	if err != nil {
		return fmt.Errorf("invalid snapshot schedule %q: %w", schedule, err)
	}
	s.cron.Start()
	s.logger.Info("snapshot scheduler started", slog.String("schedule", schedule))
	return nil
}

// Stop waits for a running publish to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("snapshot scheduler stopped")
}

func (s *Scheduler) RunOnce(ctx context.Context) {
	manifest, err := s.publisher.Publish(ctx, s.dataset())
	if err != nil {
		s.logger.WarnContext(ctx, "scheduled snapshot failed", slog.Any("error", err))
		return
	}
	s.logger.InfoContext(ctx, "scheduled snapshot published", slog.String("snapshot_id", manifest.SnapshotID))
}
