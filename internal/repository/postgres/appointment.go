package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/clinic-scheduler/internal/model"
	"github.com/jwalitptl/clinic-scheduler/internal/repository"
	"github.com/jwalitptl/clinic-scheduler/internal/schedule"
)

const appointmentSlotKey = "appointments_date_time_key"

const selectAppointmentDetail = `
	SELECT a.id, a.date, a.time, a.patient_id, a.note, a.created_at,
		   p.name AS patient_name, p.phone AS patient_phone, p.email AS patient_email
	FROM appointments a
	LEFT JOIN patients p ON p.id = a.patient_id
`

type appointmentRepository struct {
	db *sqlx.DB
}

func NewAppointmentRepository(db *sqlx.DB) repository.AppointmentRepository {
	return &appointmentRepository{db: db}
}

func (r *appointmentRepository) OccupiedTimes(ctx context.Context, date time.Time) ([]schedule.Clock, error) {
	query := `SELECT time FROM appointments WHERE date = $1::date ORDER BY time`
	var times []schedule.Clock
	if err := r.db.SelectContext(ctx, &times, query, schedule.FormatDate(date)); err != nil {
		return nil, fmt.Errorf("failed to list occupied times: %w", err)
	}
	return times, nil
}

func (r *appointmentRepository) PatientHasAppointmentOn(ctx context.Context, patientID uuid.UUID, date time.Time) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM appointments WHERE patient_id = $1 AND date = $2::date)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, patientID, schedule.FormatDate(date)); err != nil {
		return false, fmt.Errorf("failed to check appointments on date: %w", err)
	}
	return exists, nil
}

func (r *appointmentRepository) PatientHasAppointmentWithin(ctx context.Context, patientID uuid.UUID, date time.Time, windowDays int) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM appointments
			WHERE patient_id = $1 AND date BETWEEN $2::date AND $3::date
		)
	`
	reach := windowDays - 1
	from := schedule.FormatDate(schedule.AddDays(date, -reach))
	to := schedule.FormatDate(schedule.AddDays(date, reach))

	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, patientID, from, to); err != nil {
		return false, fmt.Errorf("failed to check appointments in window: %w", err)
	}
	return exists, nil
}

func (r *appointmentRepository) Reserve(ctx context.Context, appointment *model.Appointment, events ...*model.OutboxEvent) error {
	query := `
		INSERT INTO appointments (id, date, time, patient_id, note, created_at)
		VALUES ($1, $2::date, $3, $4, $5, $6)
	`
	if appointment.ID == uuid.Nil {
		appointment.ID = uuid.New()
	}
	appointment.CreatedAt = time.Now()

	err := execWithEvents(ctx, r.db, events, func(exec sqlx.ExecerContext) error {
		_, err := exec.ExecContext(ctx, query,
			appointment.ID,
			schedule.FormatDate(appointment.Date),
			appointment.Time,
			appointment.PatientID,
			appointment.Note,
			appointment.CreatedAt,
		)
		return err
	})
	if err != nil {
		if isUniqueViolation(err, appointmentSlotKey) {
			return repository.ErrSlotTaken
		}
		if isForeignKeyViolation(err) {
			return repository.ErrPatientNotFound
		}
		return fmt.Errorf("failed to reserve appointment: %w", err)
	}
	return nil
}

func (r *appointmentRepository) Get(ctx context.Context, id uuid.UUID) (*model.AppointmentDetail, error) {
	query := selectAppointmentDetail + ` WHERE a.id = $1`
	var a model.AppointmentDetail
	if err := r.db.GetContext(ctx, &a, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get appointment: %w", err)
	}
	a.Date = schedule.Day(a.Date)
	return &a, nil
}

func (r *appointmentRepository) Update(ctx context.Context, appointment *model.Appointment, events ...*model.OutboxEvent) error {
	query := `
		UPDATE appointments
		SET date = $1::date, time = $2, patient_id = $3, note = $4
		WHERE id = $5
	`
	err := execWithEvents(ctx, r.db, events, func(exec sqlx.ExecerContext) error {
		res, err := exec.ExecContext(ctx, query,
			schedule.FormatDate(appointment.Date),
			appointment.Time,
			appointment.PatientID,
			appointment.Note,
			appointment.ID,
		)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return repository.ErrNotFound
		}
		return nil
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return err
	case isUniqueViolation(err, appointmentSlotKey):
		return repository.ErrSlotTaken
	case isForeignKeyViolation(err):
		return repository.ErrPatientNotFound
	default:
		return fmt.Errorf("failed to update appointment: %w", err)
	}
}

func (r *appointmentRepository) Delete(ctx context.Context, id uuid.UUID, events ...*model.OutboxEvent) (int64, error) {
	err := execWithEvents(ctx, r.db, events, func(exec sqlx.ExecerContext) error {
		res, err := exec.ExecContext(ctx, `DELETE FROM appointments WHERE id = $1`, id)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return repository.ErrNotFound
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to delete appointment: %w", err)
	}
	return 1, nil
}

func (r *appointmentRepository) ListByDate(ctx context.Context, date time.Time) ([]*model.AppointmentDetail, error) {
	query := selectAppointmentDetail + ` WHERE a.date = $1::date ORDER BY a.time`
	return r.selectDetails(ctx, query, schedule.FormatDate(date))
}

func (r *appointmentRepository) ListBetween(ctx context.Context, from, to time.Time) ([]*model.AppointmentDetail, error) {
	query := selectAppointmentDetail + ` WHERE a.date BETWEEN $1::date AND $2::date ORDER BY a.date, a.time`
	return r.selectDetails(ctx, query, schedule.FormatDate(from), schedule.FormatDate(to))
}

func (r *appointmentRepository) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*model.AppointmentDetail, error) {
	query := selectAppointmentDetail + ` WHERE a.patient_id = $1 ORDER BY a.date DESC, a.time DESC`
	return r.selectDetails(ctx, query, patientID)
}

func (r *appointmentRepository) FirstForPatientOn(ctx context.Context, patientID uuid.UUID, date time.Time) (*model.Appointment, error) {
	query := `
		SELECT id, date, time, patient_id, note, created_at
		FROM appointments
		WHERE patient_id = $1 AND date = $2::date
		ORDER BY time
		LIMIT 1
	`
	var a model.Appointment
	if err := r.db.GetContext(ctx, &a, query, patientID, schedule.FormatDate(date)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get first appointment: %w", err)
	}
	a.Date = schedule.Day(a.Date)
	return &a, nil
}

func (r *appointmentRepository) DeleteForPatientOn(ctx context.Context, patientID uuid.UUID, date time.Time) (int64, error) {
	query := `DELETE FROM appointments WHERE patient_id = $1 AND date = $2::date`
	res, err := r.db.ExecContext(ctx, query, patientID, schedule.FormatDate(date))
	if err != nil {
		return 0, fmt.Errorf("failed to delete patient appointments: %w", err)
	}
	return res.RowsAffected()
}

func (r *appointmentRepository) selectDetails(ctx context.Context, query string, args ...interface{}) ([]*model.AppointmentDetail, error) {
	var out []*model.AppointmentDetail
	if err := r.db.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	for _, a := range out {
		a.Date = schedule.Day(a.Date)
	}
	return out, nil
}
