package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-scheduler/internal/model"
	"github.com/jwalitptl/clinic-scheduler/internal/schedule"
)

var (
	// ErrNotFound is returned when a lookup or a targeted write matches no row.
	ErrNotFound = errors.New("record not found")
	// ErrSlotTaken is returned by Reserve and Move when (date, time) is already held.
	ErrSlotTaken = errors.New("slot already taken")
	// ErrPhoneTaken is returned when a patient phone collides with another patient.
	ErrPhoneTaken = errors.New("phone already registered")
	// ErrPatientNotFound is returned when a write references a patient that does not exist.
	ErrPatientNotFound = errors.New("patient not found")
)

// All repository interfaces in one file
type (
	// AppointmentRepository is the authoritative record of reserved slots.
	// (date, time) is unique across all appointments.
	AppointmentRepository interface {
		OccupiedTimes(ctx context.Context, date time.Time) ([]schedule.Clock, error)
		PatientHasAppointmentOn(ctx context.Context, patientID uuid.UUID, date time.Time) (bool, error)
		// PatientHasAppointmentWithin checks [date-(windowDays-1), date+(windowDays-1)].
		PatientHasAppointmentWithin(ctx context.Context, patientID uuid.UUID, date time.Time, windowDays int) (bool, error)
		// Reserve, Update and Delete queue events in the outbox only when the
		// appointment write itself succeeds, atomically with it.
		Reserve(ctx context.Context, appointment *model.Appointment, events ...*model.OutboxEvent) error
		Get(ctx context.Context, id uuid.UUID) (*model.AppointmentDetail, error)
		Update(ctx context.Context, appointment *model.Appointment, events ...*model.OutboxEvent) error
		Delete(ctx context.Context, id uuid.UUID, events ...*model.OutboxEvent) (int64, error)
		ListByDate(ctx context.Context, date time.Time) ([]*model.AppointmentDetail, error)
		ListBetween(ctx context.Context, from, to time.Time) ([]*model.AppointmentDetail, error)
		ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*model.AppointmentDetail, error)
		FirstForPatientOn(ctx context.Context, patientID uuid.UUID, date time.Time) (*model.Appointment, error)
		DeleteForPatientOn(ctx context.Context, patientID uuid.UUID, date time.Time) (int64, error)
	}

	PatientRepository interface {
		Create(ctx context.Context, patient *model.Patient) error
		Get(ctx context.Context, id uuid.UUID) (*model.Patient, error)
		GetByPhone(ctx context.Context, phone string) (*model.Patient, error)
		Update(ctx context.Context, patient *model.Patient) error
		SetPassword(ctx context.Context, id uuid.UUID, hash string) error
		// Delete removes the patient; measurements and photos cascade and
		// appointments are unlinked.
		Delete(ctx context.Context, id uuid.UUID) error
		List(ctx context.Context, filters *model.PatientFilters) ([]*model.Patient, error)
	}

	MeasurementRepository interface {
		// Upsert merges non-nil fields into the (patient, date) row.
		Upsert(ctx context.Context, m *model.Measurement) (*model.Measurement, error)
		Get(ctx context.Context, patientID uuid.UUID, date string) (*model.Measurement, error)
		ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*model.Measurement, error)
		LinkAppointment(ctx context.Context, patientID uuid.UUID, date string, appointmentID uuid.UUID) error
		Delete(ctx context.Context, patientID uuid.UUID, date string) (int64, error)
	}

	PhotoRepository interface {
		Create(ctx context.Context, photo *model.Photo) error
		ListByPatient(ctx context.Context, patientID uuid.UUID, date string) ([]*model.Photo, error)
		Delete(ctx context.Context, id uuid.UUID) error
		DeleteByPatientDate(ctx context.Context, patientID uuid.UUID, date string) ([]string, error)
	}

	OutboxRepository interface {
		Create(ctx context.Context, event *model.OutboxEvent) error
		GetPendingEvents(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
		UpdateStatus(ctx context.Context, id uuid.UUID, status model.OutboxStatus, errMsg *string, retryAt *time.Time) error
		DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
	}
)
