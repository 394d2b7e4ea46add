package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/amourlabs/amour/internal/clock"
	appconfig "github.com/amourlabs/amour/internal/config"
	"github.com/amourlabs/amour/internal/ratelimit"
	usagedomain "github.com/amourlabs/amour/internal/usage/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log       *zap.Logger
	Clock     clock.Clock
	AppConfig appconfig.Config
	UsageSvc  usagedomain.Service
	Limiter   *ratelimit.VerifyLimiter `optional:"true"`
	Config    Config                   `optional:"true"`
}

type Scheduler struct {
	log      *zap.Logger
	cfg      Config
	clock    clock.Clock
	usageTTL time.Duration
	usageSvc usagedomain.Service
	limiter  *ratelimit.VerifyLimiter
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.Clock == nil || p.UsageSvc == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		log:      p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:      p.Config.withDefaults(),
		clock:    p.Clock,
		usageTTL: p.AppConfig.UsageEventTTL,
		usageSvc: p.UsageSvc,
		limiter:  p.Limiter,
	}, nil
}

func (s *Scheduler) RunOnce(parent context.Context) error {
	return s.runJob(parent, "usage_purge", s.cfg.JobTimeout, s.UsagePurgeJob)
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// UsagePurgeJob drops detailed usage events past the retention window.
func (s *Scheduler) UsagePurgeJob(ctx context.Context) error {
	cutoff := s.clock.Now().UTC().Add(-s.usageTTL)
	deleted, err := s.usageSvc.Purge(ctx, cutoff)
	if err != nil {
		return err
	}
	if deleted > 0 {
		s.log.Info("usage purge completed",
			zap.String("job", "usage_purge"),
			zap.Int64("deleted", deleted),
		)
	}
	return nil
}

func (s *Scheduler) runJob(parent context.Context, name string, timeout time.Duration, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	// Only one instance runs a job at a time when the lock backend is up.
	token, ok, err := s.limiter.TryJobLock(ctx, name, s.cfg.LockTTL)
	if err != nil {
		s.log.Warn("job lock unavailable, running anyway",
			zap.String("job", name),
			zap.Error(err),
		)
	} else if !ok {
		s.log.Debug("job held by another instance", zap.String("job", name))
		return nil
	}
	defer func() {
		if token != "" {
			_ = s.limiter.ReleaseJobLock(parent, name, token)
		}
	}()

	err = fn(ctx)
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		s.log.Warn("job timed out",
			zap.String("job", name),
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}
	return err
}
