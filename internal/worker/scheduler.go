package worker

import (
	"context"
	"fmt"
	"time"

	"pdv-service/internal/util"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

const refreshLockKey = "dashboard-refresh"

// Locker serializes the periodic refresh across instances
type Locker interface {
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key string) error
}

// Scheduler recomputes the dashboard snapshot on a fixed interval
type Scheduler struct {
	scheduler gocron.Scheduler
	reports   DashboardRefresher
	locker    Locker
	interval  time.Duration
	logger    *zap.Logger
}

// NewScheduler creates a scheduler. locker may be nil for a single instance.
func NewScheduler(reports DashboardRefresher, interval time.Duration, locker Locker) (*Scheduler, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("refresh interval must be positive, got %s", interval)
	}

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	s := &Scheduler{
		scheduler: scheduler,
		reports:   reports,
		locker:    locker,
		interval:  interval,
		logger:    util.GetLogger(),
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(s.refresh, context.Background()),
		gocron.WithName("dashboard-refresh"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to schedule dashboard refresh: %w", err)
	}

	return s, nil
}

// Start begins running scheduled jobs
func (s *Scheduler) Start() {
	s.logger.Info("Starting dashboard scheduler", zap.Duration("interval", s.interval))
	s.scheduler.Start()
}

// Stop waits for a running job and stops the scheduler
func (s *Scheduler) Stop() error {
	s.logger.Info("Stopping dashboard scheduler")
	return s.scheduler.Shutdown()
}

func (s *Scheduler) refresh(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, s.interval)
	defer cancel()

	if s.locker != nil {
		ok, err := s.locker.AcquireLock(ctx, refreshLockKey, s.interval)
		if err != nil {
			s.logger.Warn("Dashboard refresh lock failed", zap.Error(err))
			return
		}
		if !ok {
			s.logger.Debug("Dashboard refresh running elsewhere")
			return
		}
		defer func() {
			if err := s.locker.ReleaseLock(context.Background(), refreshLockKey); err != nil {
				s.logger.Warn("Dashboard refresh unlock failed", zap.Error(err))
			}
		}()
	}

	start := time.Now()
	if err := s.reports.RefreshDashboard(ctx); err != nil {
		s.logger.Error("Dashboard refresh failed", zap.Error(err))
		return
	}
	s.logger.Debug("Dashboard refreshed", zap.Duration("took", time.Since(start)))
}
