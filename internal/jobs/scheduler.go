// Package jobs runs the periodic lifecycle sweep.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/noah-isme/challenge-api/internal/dto"
)

// Sweeper advances every challenge whose schedule says it is due.
type Sweeper interface {
	Sweep(ctx context.Context) (dto.SweepResponse, error)
}

// Config configures the scheduler.
type Config struct {
	Spec     string
	Timezone string
	Timeout  time.Duration
}

// Scheduler triggers the lifecycle sweep on a cron schedule. Several processes may run one each;
// the sweep itself tolerates concurrent callers.
type Scheduler struct {
	cron    *cron.Cron
	sweeper Sweeper
	spec    string
	timeout time.Duration
	logger  zerolog.Logger
}

// NewScheduler validates the configuration and prepares the cron runner.
func NewScheduler(sweeper Sweeper, cfg Config, logger zerolog.Logger) (*Scheduler, error) {
	logger = logger.With().Str("component", "lifecycle_scheduler").Logger()

	loc := time.UTC
	if cfg.Timezone != "" {
		loaded, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			return nil, fmt.Errorf("load scheduler timezone %q: %w", cfg.Timezone, err)
		}
		loc = loaded
	}
	if cfg.Spec == "" {
		cfg.Spec = "@every 15s"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = time.Minute
	}

	clog := cronLogger{logger: logger}
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(clog),
		cron.WithChain(cron.Recover(clog), cron.SkipIfStillRunning(clog)),
	)

	return &Scheduler{cron: c, sweeper: sweeper, spec: cfg.Spec, timeout: cfg.Timeout, logger: logger}, nil
}

// Start registers the sweep and starts the runner.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.spec, func() { s.RunOnce(ctx) }); err != nil {
		return fmt.Errorf("schedule lifecycle sweep %q: %w", s.spec, err)
	}
	s.cron.Start()
	s.logger.Info().Str("spec", s.spec).Str("timezone", s.cron.Location().String()).Msg("lifecycle scheduler started")
	return nil
}

// RunOnce performs a single sweep bounded by the configured timeout.
func (s *Scheduler) RunOnce(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	result, err := s.sweeper.Sweep(runCtx)
	if err != nil {
		s.logger.Error().Err(err).Msg("lifecycle sweep failed")
		return
	}
	s.logger.Debug().Int("examined", result.Examined).Int("advanced", result.Advanced).Msg("lifecycle sweep finished")
}

// Stop waits for a running sweep to finish.
func (s *Scheduler) Stop() {
	done := s.cron.Stop()
	<-done.Done()
	s.logger.Info().Msg("lifecycle scheduler stopped")
}

type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
