// Package worker runs the background jobs: the outbox relay, outbox
// cleanup and the daily reminder run.
package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/jwalitptl/clinic-scheduler/internal/model"
	"github.com/jwalitptl/clinic-scheduler/pkg/logger"
)

type ReminderRunner interface {
	SendTomorrow(ctx context.Context, dryRun bool) (*model.ReminderSummary, error)
}

type OutboxRunner interface {
	ProcessOnce(ctx context.Context) (int, error)
	Cleanup(ctx context.Context) (int64, error)
}

type Config struct {
	Location        *time.Location
	OutboxInterval  time.Duration
	CleanupInterval time.Duration
	// ReminderAt is the local "HH:MM" of the daily reminder run; empty
	// disables the job.
	ReminderAt string
	JobTimeout time.Duration
}

const (
	TagOutbox   = "outbox"
	TagCleanup  = "outbox-cleanup"
	TagReminder = "reminder"
)

type Scheduler struct {
	cron      *gocron.Scheduler
	reminders ReminderRunner
	outbox    OutboxRunner
	log       *logger.Logger
	timeout   time.Duration
}

func NewScheduler(cfg Config, reminders ReminderRunner, outbox OutboxRunner, log *logger.Logger) (*Scheduler, error) {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.OutboxInterval <= 0 {
		cfg.OutboxInterval = 5 * time.Second
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = time.Hour
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = time.Minute
	}

	s := &Scheduler{
		cron:      gocron.NewScheduler(cfg.Location),
		reminders: reminders,
		outbox:    outbox,
		log:       log,
		timeout:   cfg.JobTimeout,
	}
	s.cron.SingletonModeAll()

	if outbox != nil {
		if _, err := s.cron.Every(cfg.OutboxInterval).Tag(TagOutbox).Do(s.relayOutbox); err != nil {
			return nil, fmt.Errorf("schedule outbox relay: %w", err)
		}
		if _, err := s.cron.Every(cfg.CleanupInterval).Tag(TagCleanup).Do(s.cleanOutbox); err != nil {
			return nil, fmt.Errorf("schedule outbox cleanup: %w", err)
		}
	}
	if reminders != nil && cfg.ReminderAt != "" {
		if _, err := s.cron.Every(1).Day().At(cfg.ReminderAt).Tag(TagReminder).Do(s.sendReminders); err != nil {
			return nil, fmt.Errorf("schedule reminders at %q: %w", cfg.ReminderAt, err)
		}
	}
	return s, nil
}

// Start runs the jobs in the background until ctx is done.
func (s *Scheduler) Start(ctx context.Context) {
	s.cron.StartAsync()
	s.log.Info("Background jobs started", "jobs", s.cron.Len())
	go func() {
		<-ctx.Done()
		s.Stop()
	}()
}

func (s *Scheduler) Stop() {
	if s.cron.IsRunning() {
		s.cron.Stop()
		s.log.Info("Background jobs stopped")
	}
}

func (s *Scheduler) Tags() []string {
	var tags []string
	for _, j := range s.cron.Jobs() {
		tags = append(tags, j.Tags()...)
	}
	return tags
}

func (s *Scheduler) jobContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.timeout)
}

func (s *Scheduler) relayOutbox() {
	ctx, cancel := s.jobContext()
	defer cancel()
	if _, err := s.outbox.ProcessOnce(ctx); err != nil {
		s.log.Error(err, "Outbox relay failed")
	}
}

func (s *Scheduler) cleanOutbox() {
	ctx, cancel := s.jobContext()
	defer cancel()
	if _, err := s.outbox.Cleanup(ctx); err != nil {
		s.log.Error(err, "Outbox cleanup failed")
	}
}

func (s *Scheduler) sendReminders() {
	ctx, cancel := s.jobContext()
	defer cancel()
	summary, err := s.reminders.SendTomorrow(ctx, false)
	if err != nil {
		s.log.Error(err, "Reminder run failed")
		return
	}
	s.log.Info("Reminder run finished",
		"total", summary.Total,
		"sent", summary.Sent,
		"failed", summary.Failed)
}
