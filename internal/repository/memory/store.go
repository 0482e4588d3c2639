// Package memory is an in-process implementation of the repository contracts.
// It enforces the same uniqueness rules as the Postgres schema and is used by
// tests and by "serve --memory".
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-scheduler/internal/model"
	"github.com/jwalitptl/clinic-scheduler/internal/repository"
	"github.com/jwalitptl/clinic-scheduler/internal/schedule"
)

type slotKey struct {
	date string
	time schedule.Clock
}

type visitKey struct {
	patientID uuid.UUID
	date      string
}

type db struct {
	mu sync.RWMutex

	appointments map[uuid.UUID]model.Appointment
	slots        map[slotKey]uuid.UUID
	patients     map[uuid.UUID]model.Patient
	phones       map[string]uuid.UUID
	measurements map[visitKey]model.Measurement
	photos       map[uuid.UUID]model.Photo
	outbox       map[uuid.UUID]model.OutboxEvent

	fail error
}

// Store bundles the repositories sharing one in-memory dataset.
type Store struct {
	db *db

	Appointments repository.AppointmentRepository
	Patients     repository.PatientRepository
	Measurements repository.MeasurementRepository
	Photos       repository.PhotoRepository
	Outbox       repository.OutboxRepository
}

func NewStore() *Store {
	d := &db{
		appointments: make(map[uuid.UUID]model.Appointment),
		slots:        make(map[slotKey]uuid.UUID),
		patients:     make(map[uuid.UUID]model.Patient),
		phones:       make(map[string]uuid.UUID),
		measurements: make(map[visitKey]model.Measurement),
		photos:       make(map[uuid.UUID]model.Photo),
		outbox:       make(map[uuid.UUID]model.OutboxEvent),
	}
	return &Store{
		db:           d,
		Appointments: &appointmentRepository{d},
		Patients:     &patientRepository{d},
		Measurements: &measurementRepository{d},
		Photos:       &photoRepository{d},
		Outbox:       &outboxRepository{d},
	}
}

// SetFailure makes every subsequent call return err until cleared with nil.
func (s *Store) SetFailure(err error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	s.db.fail = err
}

// Ping reports the injected failure, if any.
func (s *Store) Ping(context.Context) error {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	return s.db.fail
}

func (s *Store) Close() error { return nil }

func (d *db) detail(a model.Appointment) *model.AppointmentDetail {
	out := &model.AppointmentDetail{Appointment: a}
	if a.PatientID != nil {
		if p, ok := d.patients[*a.PatientID]; ok {
			name, phone := p.Name, p.Phone
			out.PatientName = &name
			out.PatientPhone = &phone
			out.PatientEmail = p.Email
		}
	}
	return out
}

func (d *db) details(match func(model.Appointment) bool) []*model.AppointmentDetail {
	var out []*model.AppointmentDetail
	for _, a := range d.appointments {
		if match(a) {
			out = append(out, d.detail(a))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].Time < out[j].Time
	})
	return out
}

func now() time.Time { return time.Now() }
