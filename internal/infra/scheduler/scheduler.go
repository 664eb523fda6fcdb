package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"telegram-group-paywall/internal/infra/metrics"
)

// Job is one periodic task. Run must return promptly once ctx is cancelled.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Scheduler runs Jobs on cron specs. A job never overlaps itself, but
// different jobs run independently of each other.
type Scheduler struct {
	cron  *cron.Cron
	grace time.Duration
	log   *zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// NewScheduler accepts standard five-field specs and descriptors such as "@every 10m".
func NewScheduler(grace time.Duration, logger *zerolog.Logger) *Scheduler {
	if grace <= 0 {
		grace = 30 * time.Second
	}
	l := logger.With().Str("component", "Scheduler").Logger()
	cl := cronLogger{log: &l}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	c := cron.New(
		cron.WithParser(parser),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{cron: c, grace: grace, log: &l, ctx: ctx, cancel: cancel}
}

// Add registers job under spec.
func (s *Scheduler) Add(spec string, job Job) error {
	_, err := s.cron.AddFunc(spec, func() { s.runOnce(job) })
	if err != nil {
		return fmt.Errorf("schedule %s (%q): %w", job.Name(), spec, err)
	}
	s.log.Info().Str("job", job.Name()).Str("spec", spec).Msg("job scheduled")
	return nil
}

func (s *Scheduler) runOnce(job Job) {
	start := time.Now()
	err := job.Run(s.ctx)
	metrics.ObserveJob(job.Name(), time.Since(start).Seconds())
	switch {
	case err == nil:
		metrics.IncJobRun(job.Name(), "ok")
	case s.ctx.Err() != nil:
		metrics.IncJobRun(job.Name(), "cancelled")
		s.log.Info().Str("job", job.Name()).Msg("job interrupted by shutdown")
	default:
		metrics.IncJobRun(job.Name(), "error")
		s.log.Error().Err(err).Str("job", job.Name()).Msg("job failed")
	}
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Int("jobs", len(s.cron.Entries())).Msg("scheduler started")
}

// Stop cancels running jobs, which then stop at their next safe boundary,
// and waits up to the grace period for them to return.
func (s *Scheduler) Stop() {
	s.cancel()
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.log.Info().Msg("scheduler stopped")
	case <-time.After(s.grace):
		s.log.Warn().Dur("grace", s.grace).Msg("scheduler stop timed out; jobs still running")
	}
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct{ log *zerolog.Logger }

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
