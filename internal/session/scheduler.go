package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

type SchedulerConfig struct {
	CleanupSchedule string
	PurgeSchedule   string
	RetentionDays   int
	JobTimeout      time.Duration
}

// Scheduler runs session housekeeping on cron schedules. Jobs are idempotent
// bulk updates, so a skipped or overlapping run is harmless.
type Scheduler struct {
	cron    *cron.Cron
	manager *Manager
	cfg     SchedulerConfig
	logger  *slog.Logger
}

func NewScheduler(manager *Manager, cfg SchedulerConfig, logger *slog.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.CleanupSchedule == "" {
		cfg.CleanupSchedule = "@hourly"
	}
	if cfg.PurgeSchedule == "" {
		cfg.PurgeSchedule = "@daily"
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 5 * time.Minute
	}

	cl := cronLogger{logger: logger}
	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl)),
		),
		manager: manager,
		cfg:     cfg,
		logger:  logger,
	}

	if _, err := s.cron.AddFunc(cfg.CleanupSchedule, s.runCleanup); err != nil {
		return nil, fmt.Errorf("invalid cleanup schedule %q: %w", cfg.CleanupSchedule, err)
	}
	if _, err := s.cron.AddFunc(cfg.PurgeSchedule, s.runPurge); err != nil {
		return nil, fmt.Errorf("invalid purge schedule %q: %w", cfg.PurgeSchedule, err)
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("session housekeeping scheduler started",
		"cleanup_schedule", s.cfg.CleanupSchedule,
		"purge_schedule", s.cfg.PurgeSchedule)
}

// Stop halts scheduling; the returned context is done once running jobs finish.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}

// RunOnce runs cleanup then purge immediately.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	_, cleanupErr := s.manager.CleanupExpired(ctx)
	_, purgeErr := s.manager.PurgeOld(ctx, s.cfg.RetentionDays)
	return errors.Join(cleanupErr, purgeErr)
}

func (s *Scheduler) runCleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.JobTimeout)
	defer cancel()
	_, _ = s.manager.CleanupExpired(ctx)
}

func (s *Scheduler) runPurge() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.JobTimeout)
	defer cancel()
	_, _ = s.manager.PurgeOld(ctx, s.cfg.RetentionDays)
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
