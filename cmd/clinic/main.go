package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/jwalitptl/clinic-scheduler/internal/app"
	"github.com/jwalitptl/clinic-scheduler/internal/config"
	"github.com/jwalitptl/clinic-scheduler/internal/model"
	"github.com/jwalitptl/clinic-scheduler/internal/repository/memory"
	"github.com/jwalitptl/clinic-scheduler/internal/repository/postgres"
	"github.com/jwalitptl/clinic-scheduler/internal/schedule"
	"github.com/jwalitptl/clinic-scheduler/pkg/logger"
)

const shutdownTimeout = 5 * time.Second

func main() {
	var configDir string

	rootCmd := &cobra.Command{
		Use:           "clinic",
		Short:         "Appointment booking service for a single-practitioner clinic",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configDir, "config", "", "directory containing config.yaml")

	rootCmd.AddCommand(serveCmd(&configDir))
	rootCmd.AddCommand(migrateCmd(&configDir))
	rootCmd.AddCommand(remindCmd(&configDir))
	rootCmd.AddCommand(workerCmd(&configDir))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func loadConfig(dir string) (*config.Config, *logger.Logger, error) {
	var paths []string
	if dir != "" {
		paths = append(paths, dir)
	}
	cfg, err := config.LoadConfig(paths...)
	if err != nil {
		return nil, nil, err
	}
	log := logger.Setup(&logger.Config{
		Level:  logger.ParseLevel(cfg.Log.Level),
		Format: cfg.Log.Format,
	})
	return cfg, log, nil
}

// bootstrap loads the configuration and wires the application on top of
// either Postgres or the in-memory store.
func bootstrap(ctx context.Context, dir string, inMemory, migrate bool) (*app.App, error) {
	cfg, log, err := loadConfig(dir)
	if err != nil {
		return nil, err
	}

	var store app.Store
	if inMemory {
		log.Warn("using the in-memory store, data is lost on exit")
		store = app.MemoryStore(memory.NewStore())
	} else {
		db, err := postgres.NewDB(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		if migrate {
			if err := postgres.Migrate(ctx, db); err != nil {
				db.Close()
				return nil, err
			}
		}
		store = app.PostgresStore(postgres.NewStore(db))
	}

	a, err := app.New(cfg, store, log)
	if err != nil {
		store.Close()
		return nil, err
	}
	return a, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func serveCmd(configDir *string) *cobra.Command {
	var inMemory, migrate, withWorker bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()

			a, err := bootstrap(ctx, *configDir, inMemory, migrate)
			if err != nil {
				return err
			}
			defer a.Close()

			r, err := a.Router()
			if err != nil {
				return err
			}

			if withWorker {
				stopWorker, err := startWorker(ctx, a)
				if err != nil {
					return err
				}
				defer stopWorker()
			}

			srv := &http.Server{
				Addr:              fmt.Sprintf(":%d", a.Config.Server.Port),
				Handler:           r,
				ReadHeaderTimeout: 10 * time.Second,
			}
			return runServer(ctx, srv, a.Log)
		},
	}
	cmd.Flags().BoolVar(&inMemory, "memory", false, "use the in-memory store instead of Postgres")
	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply the schema before serving")
	cmd.Flags().BoolVar(&withWorker, "with-worker", false, "run the outbox relay and reminder jobs in-process")
	return cmd
}

func runServer(ctx context.Context, srv *http.Server, log *logger.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	log.Info("server exited properly")
	return nil
}

// startWorker connects the broker and starts the cron jobs. The returned
// func stops both.
func startWorker(ctx context.Context, a *app.App) (func(), error) {
	broker, err := a.Broker(ctx)
	if err != nil {
		return nil, err
	}
	processor, err := a.OutboxProcessor(broker)
	if err != nil {
		broker.Close()
		return nil, err
	}
	sched, err := a.Scheduler(processor)
	if err != nil {
		broker.Close()
		return nil, err
	}
	sched.Start(ctx)
	a.Log.Info("worker started", "jobs", sched.Tags())

	return func() {
		sched.Stop()
		if err := broker.Close(); err != nil {
			a.Log.Error(err, "failed to close broker")
		}
	}, nil
}

func workerCmd(configDir *string) *cobra.Command {
	var metricsAddr string

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Relay outbox events and send the daily reminders",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()

			a, err := bootstrap(ctx, *configDir, false, false)
			if err != nil {
				return err
			}
			defer a.Close()

			stopWorker, err := startWorker(ctx, a)
			if err != nil {
				return err
			}
			defer stopWorker()

			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.HandlerFor(a.Registry, promhttp.HandlerOpts{}))
			srv := &http.Server{
				Addr:              metricsAddr,
				Handler:           mux,
				ReadHeaderTimeout: 10 * time.Second,
			}
			return runServer(ctx, srv, a.Log)
		},
	}
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", ":9091", "address of the worker's metrics endpoint")
	return cmd
}

func migrateCmd(configDir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the database tables and indexes",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(*configDir)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			db, err := postgres.NewDB(ctx, cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := postgres.Migrate(ctx, db); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			log.Info("schema applied")
			return nil
		},
	}
}

func remindCmd(configDir *string) *cobra.Command {
	var (
		dryRun bool
		date   string
	)

	cmd := &cobra.Command{
		Use:   "remind",
		Short: "Queue reminders for tomorrow's appointments",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := bootstrap(ctx, *configDir, false, false)
			if err != nil {
				return err
			}
			defer a.Close()

			var summary *model.ReminderSummary
			if date != "" {
				d, err := schedule.ParseDate(date)
				if err != nil {
					return err
				}
				summary, err = a.Reminders.SendFor(ctx, d, dryRun)
				if err != nil {
					return err
				}
			} else {
				summary, err = a.Reminders.SendTomorrow(ctx, dryRun)
				if err != nil {
					return err
				}
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(summary)
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "list the reminders without queueing them")
	cmd.Flags().StringVar(&date, "date", "", "appointment date (YYYY-MM-DD), defaults to tomorrow")
	return cmd
}
