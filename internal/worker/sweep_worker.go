package worker

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/spec-kit/sla-timekeeper/internal/config"
	"github.com/spec-kit/sla-timekeeper/internal/persistence"
	"github.com/spec-kit/sla-timekeeper/internal/service"
)

const sweepLockKey = "sla:sweep:lock"

// Sweeper runs one SLA sweep.
type Sweeper interface {
	Run(ctx context.Context) (service.SweepReport, error)
}

// Locker hands out a cluster-wide lease.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (*persistence.Lock, error)
}

// ParseSchedule parses a standard 5-field cron expression
// (minute hour day-of-month month day-of-week).
func ParseSchedule(expr string) (cron.Schedule, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	schedule, err := parser.Parse(strings.TrimSpace(expr))
	if err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", expr, err)
	}
	return schedule, nil
}

// RunSweepOnce runs a sweep while holding the sweep lock. It reports false when
// another replica holds the lock. A nil locker runs unguarded.
func RunSweepOnce(ctx context.Context, sweeper Sweeper, locker Locker, ttl time.Duration, logger *zap.Logger) (service.SweepReport, bool, error) {
	if locker != nil {
		lock, err := locker.TryLock(ctx, sweepLockKey, ttl)
		if err != nil {
			return service.SweepReport{}, false, fmt.Errorf("acquire sweep lock: %w", err)
		}
		if lock == nil {
			logger.Info("sla sweep skipped; another instance holds the lock")
			return service.SweepReport{}, false, nil
		}
		defer func() {
			if err := lock.Release(context.Background()); err != nil {
				logger.Warn("release sweep lock failed", zap.Error(err))
			}
		}()
	}

	sweepCtx, cancel := context.WithTimeout(ctx, ttl)
	defer cancel()
	report, err := sweeper.Run(sweepCtx)
	return report, true, err
}

// StartSlaSweepScheduler runs the sweep on the configured cron schedule until
// ctx is cancelled. It returns immediately; the loop runs in its own goroutine.
func StartSlaSweepScheduler(ctx context.Context, cfg config.SweepConfig, sweeper Sweeper, locker Locker, logger *zap.Logger) error {
	if !cfg.Enabled {
		logger.Info("sla sweep disabled")
		return nil
	}
	schedule, err := ParseSchedule(cfg.Schedule)
	if err != nil {
		return err
	}
	loc := cfg.Location()
	logger.Info("sla sweep scheduled", zap.String("cron", cfg.Schedule), zap.String("timezone", loc.String()))

	go func() {
		for {
			now := time.Now().In(loc)
			next := schedule.Next(now)
			wait := next.Sub(now)
			logger.Debug("next sla sweep", zap.Time("at", next), zap.Duration("in", wait))

			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				logger.Info("sla sweep scheduler stopped")
				return
			case <-timer.C:
			}

			if _, _, err := RunSweepOnce(ctx, sweeper, locker, cfg.LockTTL(), logger); err != nil {
				logger.Error("sla sweep failed", zap.Error(err))
			}
		}
	}()
	return nil
}
