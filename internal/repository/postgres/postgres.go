package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/jwalitptl/clinic-scheduler/internal/model"
	"github.com/jwalitptl/clinic-scheduler/internal/repository"
)

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

// Store bundles the repositories that share one connection pool.
type Store struct {
	db *sqlx.DB

	Appointments repository.AppointmentRepository
	Patients     repository.PatientRepository
	Measurements repository.MeasurementRepository
	Photos       repository.PhotoRepository
	Outbox       repository.OutboxRepository
}

func NewStore(db *sqlx.DB) *Store {
	return &Store{
		db:           db,
		Appointments: NewAppointmentRepository(db),
		Patients:     NewPatientRepository(db),
		Measurements: NewMeasurementRepository(db),
		Photos:       NewPhotoRepository(db),
		Outbox:       NewOutboxRepository(db),
	}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

func isUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != uniqueViolation {
		return false
	}
	return constraint == "" || pqErr.Constraint == constraint
}

func isForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == foreignKeyViolation
}

// execWithEvents runs write and queues events in one transaction. A write
// without events goes straight to the pool. write must return an error to
// keep the events out.
func execWithEvents(ctx context.Context, db *sqlx.DB, events []*model.OutboxEvent, write func(sqlx.ExecerContext) error) error {
	if len(events) == 0 {
		return write(db)
	}
	return withTx(ctx, db, func(tx *sqlx.Tx) error {
		if err := write(tx); err != nil {
			return err
		}
		for _, event := range events {
			if err := insertOutboxEvent(ctx, tx, event); err != nil {
				return err
			}
		}
		return nil
	})
}

// withTx runs fn inside a transaction, rolling back on error or panic.
func withTx(ctx context.Context, db *sqlx.DB, fn func(*sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
