package otpjob

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"mealrun/internal/domain"
)

const lockName = "otp-sweep"

type Store interface {
	ListExpiredOtps(ctx context.Context, now time.Time) ([]domain.ShopOrderRef, error)
}

type Regenerator interface {
	RegenerateExpiredOtp(ctx context.Context, ref domain.ShopOrderRef) (bool, error)
}

// Locker hands out a named lease. ok is false when someone else holds it.
type Locker interface {
	TryLock(ctx context.Context, name string, ttl time.Duration) (release func(context.Context) error, ok bool, err error)
}

type Config struct {
	Schedule string
	LockTTL  time.Duration
}

type SweepResult struct {
	Scanned     int
	Regenerated int
	Failed      int
	// Skipped is set when another sweep held the lease.
	Skipped bool
}

// Job periodically replaces dead delivery OTPs on shop orders that are still
// out for delivery. It never changes a status.
type Job struct {
	store  Store
	regen  Regenerator
	locker Locker
	cfg    Config
	logger *zap.Logger
	now    func() time.Time

	mu     sync.Mutex
	cron   *cron.Cron
	cancel context.CancelFunc
}

func New(store Store, regen Regenerator, locker Locker, cfg Config, logger *zap.Logger) *Job {
	return &Job{
		store:  store,
		regen:  regen,
		locker: locker,
		cfg:    cfg,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
}

// Start schedules the sweep. Runs that would overlap a still-running sweep are skipped.
func (j *Job) Start(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.cron != nil {
		return fmt.Errorf("otp sweep already started")
	}

	cronLogger := cron.PrintfLogger(zap.NewStdLog(j.logger.Named("cron")))
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithLogger(cronLogger),
		cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
	)

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	if _, err := c.AddFunc(j.cfg.Schedule, func() {
		if _, err := j.Sweep(runCtx); err != nil && runCtx.Err() == nil {
			j.logger.Error("otp sweep failed", zap.Error(err))
		}
	}); err != nil {
		cancel()
		return fmt.Errorf("scheduling otp sweep %q: %w", j.cfg.Schedule, err)
	}

	c.Start()
	j.cron = c
	j.cancel = cancel
	j.logger.Info("otp sweep scheduled", zap.String("schedule", j.cfg.Schedule))
	return nil
}

// Stop cancels a running sweep and waits for it to return, or for ctx.
func (j *Job) Stop(ctx context.Context) error {
	j.mu.Lock()
	c, cancel := j.cron, j.cancel
	j.cron, j.cancel = nil, nil
	j.mu.Unlock()

	if c == nil {
		return nil
	}

	cancel()
	select {
	case <-c.Stop().Done():
		j.logger.Info("otp sweep stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for otp sweep to stop: %w", ctx.Err())
	}
}

// Sweep runs one pass. A failure on one shop order is logged and does not
// stop the others.
func (j *Job) Sweep(ctx context.Context) (SweepResult, error) {
	var result SweepResult

	release, ok, err := j.locker.TryLock(ctx, lockName, j.cfg.LockTTL)
	if err != nil {
		return result, err
	}
	if !ok {
		j.logger.Info("otp sweep skipped, lease held elsewhere")
		result.Skipped = true
		return result, nil
	}
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := release(releaseCtx); err != nil {
			j.logger.Warn("failed to release otp sweep lease", zap.Error(err))
		}
	}()

	refs, err := j.store.ListExpiredOtps(ctx, j.now())
	if err != nil {
		return result, fmt.Errorf("listing expired otps: %w", err)
	}
	result.Scanned = len(refs)

	for _, ref := range refs {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		changed, err := j.regen.RegenerateExpiredOtp(ctx, ref)
		if err != nil {
			result.Failed++
			j.logger.Error("otp regeneration failed",
				zap.String("orderId", ref.OrderID),
				zap.String("shopOrderId", ref.ShopOrderID),
				zap.Error(err),
			)
			continue
		}
		if changed {
			result.Regenerated++
		}
	}

	j.logger.Info("otp sweep finished",
		zap.Int("scanned", result.Scanned),
		zap.Int("regenerated", result.Regenerated),
		zap.Int("failed", result.Failed),
	)
	return result, nil
}
