// Package app assembles the services, handlers and background workers from a
// loaded configuration and a store.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/clinic-scheduler/internal/config"
	"github.com/jwalitptl/clinic-scheduler/internal/email"
	appointmenthandler "github.com/jwalitptl/clinic-scheduler/internal/handler/appointment"
	authhandler "github.com/jwalitptl/clinic-scheduler/internal/handler/auth"
	"github.com/jwalitptl/clinic-scheduler/internal/handler/health"
	patienthandler "github.com/jwalitptl/clinic-scheduler/internal/handler/patient"
	recordhandler "github.com/jwalitptl/clinic-scheduler/internal/handler/record"
	reminderhandler "github.com/jwalitptl/clinic-scheduler/internal/handler/reminder"
	"github.com/jwalitptl/clinic-scheduler/internal/middleware"
	"github.com/jwalitptl/clinic-scheduler/internal/repository"
	"github.com/jwalitptl/clinic-scheduler/internal/repository/memory"
	"github.com/jwalitptl/clinic-scheduler/internal/repository/postgres"
	"github.com/jwalitptl/clinic-scheduler/internal/router"
	"github.com/jwalitptl/clinic-scheduler/internal/schedule"
	"github.com/jwalitptl/clinic-scheduler/internal/service/appointment"
	authsvc "github.com/jwalitptl/clinic-scheduler/internal/service/auth"
	"github.com/jwalitptl/clinic-scheduler/internal/service/event"
	"github.com/jwalitptl/clinic-scheduler/internal/service/patient"
	"github.com/jwalitptl/clinic-scheduler/internal/service/record"
	"github.com/jwalitptl/clinic-scheduler/internal/service/reminder"
	jobs "github.com/jwalitptl/clinic-scheduler/internal/worker"
	"github.com/jwalitptl/clinic-scheduler/pkg/auth"
	"github.com/jwalitptl/clinic-scheduler/pkg/logger"
	"github.com/jwalitptl/clinic-scheduler/pkg/messaging"
	redisbroker "github.com/jwalitptl/clinic-scheduler/pkg/messaging/redis"
	"github.com/jwalitptl/clinic-scheduler/pkg/metrics"
	"github.com/jwalitptl/clinic-scheduler/pkg/security"
	"github.com/jwalitptl/clinic-scheduler/pkg/worker"
)

const metricsNamespace = "clinic"

// Store is the set of repositories the services run against, whatever
// backs them.
type Store struct {
	Appointments repository.AppointmentRepository
	Patients     repository.PatientRepository
	Measurements repository.MeasurementRepository
	Photos       repository.PhotoRepository
	Outbox       repository.OutboxRepository

	Pinger health.Pinger
	Close  func() error
}

func PostgresStore(s *postgres.Store) Store {
	return Store{
		Appointments: s.Appointments,
		Patients:     s.Patients,
		Measurements: s.Measurements,
		Photos:       s.Photos,
		Outbox:       s.Outbox,
		Pinger:       s,
		Close:        s.Close,
	}
}

func MemoryStore(s *memory.Store) Store {
	return Store{
		Appointments: s.Appointments,
		Patients:     s.Patients,
		Measurements: s.Measurements,
		Photos:       s.Photos,
		Outbox:       s.Outbox,
		Pinger:       s,
		Close:        s.Close,
	}
}

type options struct {
	now    func() time.Time
	hasher security.PasswordHasher
	mailer email.Service
}

type Option func(*options)

// WithClock replaces time.Now for every service that reads the date.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func WithHasher(h security.PasswordHasher) Option {
	return func(o *options) { o.hasher = h }
}

func WithMailer(m email.Service) Option {
	return func(o *options) { o.mailer = m }
}

// App holds the wired services. It owns no goroutines; the caller starts the
// HTTP server and the scheduler.
type App struct {
	Config   *config.Config
	Log      *logger.Logger
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics
	Store    Store
	JWT      auth.JWTService
	Location *time.Location

	Events       *event.Service
	Patients     *patient.Service
	Auth         *authsvc.Service
	Availability *appointment.Availability
	Appointments *appointment.Service
	Records      *record.Service
	Reminders    *reminder.Service
}

func New(cfg *config.Config, store Store, log *logger.Logger, opts ...Option) (*App, error) {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if log == nil {
		log = logger.Nop()
	}

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	hours, err := cfg.Hours()
	if err != nil {
		return nil, err
	}
	if o.hasher == nil {
		o.hasher = security.NewBcryptHasher(0, cfg.Secrets.PasswordPepper)
	}
	if o.mailer == nil {
		o.mailer = email.NewSMTPService(cfg.SMTP, cfg.Secrets.SMTPPassword)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.NewMetrics(reg, metricsNamespace)

	a := &App{
		Config:   cfg,
		Log:      log,
		Registry: reg,
		Metrics:  m,
		Store:    store,
		Location: loc,
		JWT: auth.NewJWTService(
			cfg.Secrets.JWTSecret,
			cfg.JWT.Issuer,
			time.Duration(cfg.JWT.ExpiryHours)*time.Hour,
		),
	}

	gen := schedule.NewGenerator(cfg.Step(), hours)
	a.Events = event.NewService(store.Outbox, log)
	a.Patients = patient.NewService(store.Patients, o.hasher, log)
	a.Auth = authsvc.NewService(a.Patients, a.JWT, authsvc.AdminCredentials{
		Username: cfg.Secrets.AdminUser,
		Password: cfg.Secrets.AdminPassword,
	}, log)
	a.Availability = appointment.NewAvailability(gen, store.Appointments, cfg.Schedule.CacheTTL, m)
	a.Appointments = appointment.NewService(store.Appointments, gen, a.Availability, a.Patients, a.Events, m, log, appointment.Config{
		Policy: appointment.Policy{
			MinLeadDays: cfg.Schedule.MinLeadDays,
			WindowDays:  cfg.Schedule.WindowDays,
		},
		Location:     loc,
		UpcomingDays: cfg.Schedule.UpcomingDays,
		Now:          o.now,
	})
	a.Records = record.NewService(store.Measurements, store.Photos, store.Appointments, a.Availability, log)
	a.Reminders = reminder.NewService(store.Appointments, a.Events, o.mailer, m, log, reminder.Config{
		Template: cfg.Reminder.Template,
		Language: cfg.Reminder.Language,
		Location: loc,
		Now:      o.now,
	})

	return a, nil
}

// Router builds the HTTP router with every route registered.
func (a *App) Router() (*router.Router, error) {
	h := router.Handlers{
		Auth:        authhandler.NewHandler(a.Auth, a.Patients),
		Appointment: appointmenthandler.NewHandler(a.Appointments),
		Patient:     patienthandler.NewHandler(a.Patients, a.Appointments),
		Record:      recordhandler.NewHandler(a.Records),
		Reminder:    reminderhandler.NewHandler(a.Reminders),
		Health:      health.NewHandler(a.Store.Pinger, a.Registry),
	}

	r, err := router.NewRouter(
		middleware.NewAuthMiddleware(a.JWT),
		h,
		a.Metrics,
		a.Log.ZL,
		router.RouterConfig{
			RateLimitEnabled: a.Config.RateLimit.Enabled,
			RateLimit:        rate.Limit(a.Config.RateLimit.RequestsPerSecond),
			RateBurst:        a.Config.RateLimit.Burst,
			CORSConfig:       middleware.DefaultCORSConfig(a.Config.Security.AllowedOrigins),
			RequestTimeout:   time.Duration(a.Config.Server.TimeoutSeconds) * time.Second,
			ReleaseMode:      logger.ParseLevel(a.Config.Log.Level) > logger.DebugLevel,
		},
	)
	if err != nil {
		return nil, err
	}
	r.Setup()
	return r, nil
}

// OutboxProcessor relays pending events to broker.
func (a *App) OutboxProcessor(broker messaging.Broker) (*worker.OutboxProcessor, error) {
	return worker.NewOutboxProcessor(a.Store.Outbox, broker, worker.OutboxProcessorConfig{
		BatchSize:     a.Config.Outbox.BatchSize,
		RetryAttempts: a.Config.Outbox.RetryAttempts,
		RetryDelay:    a.Config.Outbox.RetryDelay,
		Retention:     a.Config.Outbox.Retention,
	}, a.Log, a.Metrics)
}

// Scheduler builds the cron scheduler. The daily reminder job is only added
// when reminders are enabled.
func (a *App) Scheduler(outbox jobs.OutboxRunner) (*jobs.Scheduler, error) {
	cfg := jobs.Config{
		Location:       a.Location,
		OutboxInterval: a.Config.Outbox.PollInterval,
		JobTimeout:     time.Duration(a.Config.Server.TimeoutSeconds) * time.Second,
	}
	if a.Config.Reminder.Enabled {
		cfg.ReminderAt = a.Config.Reminder.At
	}
	return jobs.NewScheduler(cfg, a.Reminders, outbox, a.Log)
}

// Broker connects to Redis when a URL is configured and otherwise logs the
// events it would publish.
func (a *App) Broker(ctx context.Context) (messaging.Broker, error) {
	if a.Config.Redis.URL == "" {
		a.Log.Warn("redis url not configured, outbox events will only be logged")
		return messaging.NewLogBroker(a.Log.ZL), nil
	}
	b, err := redisbroker.NewRedisBroker(ctx, redisbroker.Config{
		URL:          a.Config.Redis.URL,
		Channel:      a.Config.Redis.Channel,
		MaxRetries:   a.Config.Redis.MaxRetries,
		RetryBackoff: a.Config.Redis.RetryBackoff,
		PoolSize:     a.Config.Redis.PoolSize,
		MinIdleConns: a.Config.Redis.MinIdleConns,
	}, a.Log.ZL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return b, nil
}

func (a *App) Close() error {
	if a.Store.Close == nil {
		return nil
	}
	return a.Store.Close()
}
