package worker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/soundline/vocalis/internal/auditcontext"
	"github.com/soundline/vocalis/internal/clock"
	"github.com/soundline/vocalis/internal/distlock"
	enforcementdomain "github.com/soundline/vocalis/internal/enforcement/domain"
	reconciledomain "github.com/soundline/vocalis/internal/reconcile/domain"
	usagedomain "github.com/soundline/vocalis/internal/usage/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const sweepLockKey = "vocalis:reconcile:sweep"

var ErrInvalidConfig = errors.New("invalid_worker_config")

type Params struct {
	fx.In

	Log            *zap.Logger
	Clock          clock.Clock
	EnforcementSvc enforcementdomain.Service
	ReconcileSvc   reconciledomain.Service
	UsageSvc       usagedomain.Service
	Locker         *distlock.Locker `optional:"true"`
	Config         Config           `optional:"true"`
}

// Worker drives the periodic background jobs: queue draining, usage period
// rollover, and the reconciliation sweep.
type Worker struct {
	log            *zap.Logger
	cfg            Config
	clock          clock.Clock
	enforcementSvc enforcementdomain.Service
	reconcileSvc   reconciledomain.Service
	usageSvc       usagedomain.Service
	locker         *distlock.Locker

	lastSweep time.Time
}

func New(p Params) (*Worker, error) {
	if p.Log == nil || p.Clock == nil || p.EnforcementSvc == nil || p.ReconcileSvc == nil || p.UsageSvc == nil {
		return nil, ErrInvalidConfig
	}
	return &Worker{
		log:            p.Log.Named("worker").With(zap.String("component", "worker")),
		cfg:            p.Config.withDefaults(),
		clock:          p.Clock,
		enforcementSvc: p.EnforcementSvc,
		reconcileSvc:   p.ReconcileSvc,
		usageSvc:       p.UsageSvc,
		locker:         p.Locker,
	}, nil
}

func (w *Worker) runJob(
	parent context.Context,
	name string,
	timeout time.Duration,
	fn func(ctx context.Context) error,
) error {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	ctx = auditcontext.WithActor(ctx, "system", "worker")

	err := fn(ctx)
	if err == nil {
		return nil
	}

	// Deadline overruns are soft: the next tick picks up where this one
	// stopped.
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		w.log.Warn("job timed out",
			zap.String("job", name),
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}

	return fmt.Errorf("%s: %w", name, err)
}

func (w *Worker) RunOnce(parent context.Context) error {
	var err error

	jobs := []struct {
		Name    string
		Enabled bool
		Run     func(context.Context) error
	}{
		{"enforce_drain", w.isJobEnabled("enforce_drain"), func(ctx context.Context) error {
			return w.runJob(ctx, "enforce_drain", 2*time.Minute, w.EnforceDrainJob)
		}},
		{"usage_rollover", w.isJobEnabled("usage_rollover"), func(ctx context.Context) error {
			return w.runJob(ctx, "usage_rollover", 30*time.Second, w.UsageRolloverJob)
		}},
		{"reconcile_sweep", w.isJobEnabled("reconcile_sweep"), func(ctx context.Context) error {
			return w.runJob(ctx, "reconcile_sweep", 10*time.Minute, w.ReconcileSweepJob)
		}},
	}

	for _, job := range jobs {
		if job.Enabled {
			err = errors.Join(err, job.Run(parent))
		}
	}

	return err
}

func (w *Worker) RunForever(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if err := w.RunOnce(ctx); err != nil {
			w.log.Warn("worker run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (w *Worker) isJobEnabled(jobName string) bool {
	// An empty EnabledJobs list enables everything (monolith mode).
	if len(w.cfg.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range w.cfg.EnabledJobs {
		if strings.EqualFold(enabled, jobName) {
			return true
		}
	}
	return false
}

func (w *Worker) EnforceDrainJob(ctx context.Context) error {
	summary, err := w.enforcementSvc.Drain(ctx, w.cfg.DrainBatch)
	if err != nil {
		return err
	}
	if summary.Processed > 0 {
		w.log.Info("sync queue drained",
			zap.Int("processed", summary.Processed),
			zap.Int("succeeded", summary.Succeeded),
			zap.Int("retried", summary.Retried),
			zap.Int("dead", summary.Dead),
		)
	}
	return nil
}

func (w *Worker) UsageRolloverJob(ctx context.Context) error {
	rolled, err := w.usageSvc.RolloverDuePeriods(ctx, w.clock.Now())
	if err != nil {
		return err
	}
	if rolled > 0 {
		w.log.Info("usage periods rolled over", zap.Int("tenants", rolled))
	}
	return nil
}

// ReconcileSweepJob runs the drift sweep at its own cadence under a
// distributed lock, so a fleet of workers sweeps once per interval.
func (w *Worker) ReconcileSweepJob(ctx context.Context) error {
	now := w.clock.Now()
	if !w.lastSweep.IsZero() && now.Sub(w.lastSweep) < w.cfg.SweepInterval {
		return nil
	}

	token, acquired, err := w.locker.TryLock(ctx, sweepLockKey, w.cfg.SweepInterval)
	if err != nil {
		return err
	}
	if !acquired {
		w.lastSweep = now
		return nil
	}
	defer func() {
		if releaseErr := w.locker.Release(ctx, sweepLockKey, token); releaseErr != nil {
			w.log.Warn("sweep lock release failed", zap.Error(releaseErr))
		}
	}()

	w.lastSweep = now
	_, err = w.reconcileSvc.Sweep(ctx)
	return err
}
