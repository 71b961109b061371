package workflow

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/mmdatafocus/indicator_monitor/config"
	"github.com/sirupsen/logrus"
)

type Sweeper interface {
	RecomputeAll(ctx context.Context) (SweepResult, error)
}

// Scheduler is the periodic trigger. It owns no indicator logic, only cadence.
// Sweeps never overlap: a tick that arrives while a sweep runs is dropped.
type Scheduler struct {
	Sweeper     Sweeper
	Logger      *logrus.Logger
	SchedulerID string
	Interval    time.Duration
	RunOnStart  bool
}

func NewScheduler(sweeper Sweeper, interval time.Duration, logger *logrus.Logger) *Scheduler {
	return &Scheduler{
		Sweeper:     sweeper,
		Logger:      logger,
		SchedulerID: uuid.NewString(),
		Interval:    interval,
		RunOnStart:  true,
	}
}

// Run blocks until ctx is done.
func (s *Scheduler) Run(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	interval := s.Interval
	if interval <= 0 {
		interval = 60 * time.Second
	}
	s.Logger.WithFields(logrus.Fields{
		"field":        "Scheduler",
		"scheduler_id": s.SchedulerID,
		"interval":     interval.String(),
	}).Info("indicator scheduler started")

	if s.RunOnStart {
		s.sweepOnce(ctx)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.Logger.WithFields(logrus.Fields{
				"field":        "Scheduler",
				"scheduler_id": s.SchedulerID,
			}).Info("indicator scheduler stopped")
			return
		case <-ticker.C:
			s.sweepOnce(ctx)
		}
	}
}

func (s *Scheduler) sweepOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	_, err := s.Sweeper.RecomputeAll(ctx)
	switch {
	case err == nil:
	case errors.Is(err, ErrSweepInProgress):
		s.Logger.WithFields(logrus.Fields{
			"field":        "Scheduler",
			"scheduler_id": s.SchedulerID,
		}).Info("previous sweep still running; skipping tick")
	default:
		config.LogError(s.Logger, "Scheduler", "sweepOnce", "recompute all indicators", s.SchedulerID, err)
	}
}
