package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-scheduler/internal/model"
	"github.com/jwalitptl/clinic-scheduler/internal/repository"
	"github.com/jwalitptl/clinic-scheduler/internal/schedule"
	apperrors "github.com/jwalitptl/clinic-scheduler/pkg/errors"
	"github.com/jwalitptl/clinic-scheduler/pkg/logger"
	"github.com/jwalitptl/clinic-scheduler/pkg/metrics"
)

const (
	ActorPatient = "patient"
	ActorAdmin   = "admin"
)

// PatientResolver finds a patient by phone or registers a new one.
type PatientResolver interface {
	FindOrCreate(ctx context.Context, name, phone string) (*model.Patient, error)
}

// EventBuilder turns a domain event into an outbox row. The repository
// stores it in the same transaction as the appointment write.
type EventBuilder interface {
	New(eventType string, payload interface{}) (*model.OutboxEvent, error)
}

// BookingRequest is a patient's request for one slot. PatientID comes from
// the verified token, never from the request body.
type BookingRequest struct {
	PatientID uuid.UUID
	Date      time.Time
	Time      schedule.Clock
	Note      *string
}

// AdminBookingRequest is a manual entry made by the admin on behalf of a
// patient identified by name and phone.
type AdminBookingRequest struct {
	Name  string
	Phone string
	Date  time.Time
	Time  schedule.Clock
	Note  *string
}

type Config struct {
	Policy       Policy
	Location     *time.Location
	UpcomingDays int
	// Now defaults to time.Now.
	Now func() time.Time
}

type Service struct {
	repo     repository.AppointmentRepository
	gen      *schedule.Generator
	avail    *Availability
	patients PatientResolver
	events   EventBuilder
	metrics  *metrics.Metrics
	log      *logger.Logger

	policy       Policy
	loc          *time.Location
	upcomingDays int
	now          func() time.Time
}

func NewService(
	repo repository.AppointmentRepository,
	gen *schedule.Generator,
	avail *Availability,
	patients PatientResolver,
	events EventBuilder,
	m *metrics.Metrics,
	log *logger.Logger,
	cfg Config,
) *Service {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.UpcomingDays <= 0 {
		cfg.UpcomingDays = 7
	}
	if m == nil {
		m = metrics.Nop()
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		repo:         repo,
		gen:          gen,
		avail:        avail,
		patients:     patients,
		events:       events,
		metrics:      m,
		log:          log,
		policy:       cfg.Policy.normalized(),
		loc:          cfg.Location,
		upcomingDays: cfg.UpcomingDays,
		now:          cfg.Now,
	}
}

// Today is the current calendar date in the clinic's time zone.
func (s *Service) Today() time.Time {
	return schedule.Today(s.now(), s.loc)
}

func (s *Service) Policy() Policy { return s.policy }

// Availability reports the free slots of a date and whether a patient could
// book on it at all.
func (s *Service) Availability(ctx context.Context, date time.Time) (*model.Availability, error) {
	date = schedule.Day(date)
	free, err := s.avail.Free(ctx, date)
	if err != nil {
		return nil, err
	}
	return &model.Availability{
		Date:     schedule.FormatDate(date),
		Bookable: s.policy.CheckDate(s.Today(), date) == nil,
		Slots:    free,
	}, nil
}

func (s *Service) Board(ctx context.Context, date time.Time) (*model.DayBoard, error) {
	return s.avail.Board(ctx, date)
}

// Book runs the booking gates in order and reserves the slot. The first
// failing gate decides the error; nothing is written unless every gate passes,
// and the store's (date, time) uniqueness has the final word.
func (s *Service) Book(ctx context.Context, req BookingRequest) (*model.Appointment, error) {
	appt, err := s.book(ctx, req)
	s.metrics.BookingOutcome(Outcome(err))
	if err != nil {
		s.log.WithContext(ctx).Debug("booking rejected",
			"patient_id", req.PatientID.String(),
			"date", schedule.FormatDate(req.Date),
			"time", req.Time.String(),
			"outcome", Outcome(err),
		)
	}
	return appt, err
}

func (s *Service) book(ctx context.Context, req BookingRequest) (*model.Appointment, error) {
	date := schedule.Day(req.Date)

	if err := s.policy.CheckDate(s.Today(), date); err != nil {
		return nil, err
	}

	sameDay, err := s.repo.PatientHasAppointmentOn(ctx, req.PatientID, date)
	if err != nil {
		return nil, apperrors.Unavailable(err)
	}
	if sameDay {
		return nil, ErrAlreadyBookedThatDay
	}

	inWindow, err := s.repo.PatientHasAppointmentWithin(ctx, req.PatientID, date, s.policy.WindowDays)
	if err != nil {
		return nil, apperrors.Unavailable(err)
	}
	if inWindow {
		return nil, ErrOnePerWindow
	}

	if !s.gen.Offers(date, req.Time) {
		return nil, ErrSlotNotOffered
	}

	patientID := req.PatientID
	return s.reserve(ctx, date, req.Time, &patientID, req.Note, ActorPatient)
}

// BookForPatient is the admin's manual entry. Date eligibility and the
// exclusivity rules do not apply; the slot must still be offered and free.
func (s *Service) BookForPatient(ctx context.Context, req AdminBookingRequest) (*model.Appointment, error) {
	appt, err := s.bookForPatient(ctx, req)
	s.metrics.BookingOutcome(Outcome(err))
	return appt, err
}

func (s *Service) bookForPatient(ctx context.Context, req AdminBookingRequest) (*model.Appointment, error) {
	date := schedule.Day(req.Date)
	// Before FindOrCreate so a rejected entry registers no patient.
	if !s.gen.Offers(date, req.Time) {
		return nil, ErrSlotNotOffered
	}

	patient, err := s.patients.FindOrCreate(ctx, req.Name, req.Phone)
	if err != nil {
		return nil, err
	}
	return s.reserve(ctx, date, req.Time, &patient.ID, req.Note, ActorAdmin)
}

// reserve writes a slot the caller has already checked is offered.
func (s *Service) reserve(ctx context.Context, date time.Time, at schedule.Clock, patientID *uuid.UUID, note *string, actor string) (*model.Appointment, error) {
	appt := &model.Appointment{
		Base:      model.Base{ID: uuid.New()},
		Date:      date,
		Time:      at,
		PatientID: patientID,
		Note:      note,
	}
	events := s.outboxEvents(ctx, model.EventAppointmentBooked, appt, actor)
	if err := s.repo.Reserve(ctx, appt, events...); err != nil {
		switch {
		case errors.Is(err, repository.ErrSlotTaken):
			s.avail.Invalidate(date)
			return nil, ErrSlotTaken.Wrap(err)
		case errors.Is(err, repository.ErrPatientNotFound):
			return nil, ErrPatientNotFound.Wrap(err)
		}
		return nil, apperrors.Unavailable(err)
	}

	s.avail.Invalidate(date)

	s.log.WithContext(ctx).Info("appointment booked",
		"appointment_id", appt.ID.String(),
		"date", schedule.FormatDate(date),
		"time", at.String(),
		"actor", actor,
	)
	return appt, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.AppointmentDetail, error) {
	appt, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, s.storeError("appointment", err)
	}
	return appt, nil
}

// Update re-links the appointment to the patient identified by (name, phone),
// creating one if needed, and replaces the note.
func (s *Service) Update(ctx context.Context, id uuid.UUID, name, phone string, note *string) (*model.AppointmentDetail, error) {
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, s.storeError("appointment", err)
	}

	patient, err := s.patients.FindOrCreate(ctx, name, phone)
	if err != nil {
		return nil, err
	}

	updated := current.Appointment
	updated.PatientID = &patient.ID
	updated.Note = note
	events := s.outboxEvents(ctx, model.EventAppointmentUpdated, &updated, ActorAdmin)
	if err := s.repo.Update(ctx, &updated, events...); err != nil {
		return nil, s.storeError("appointment", err)
	}

	s.avail.Invalidate(updated.Date)
	return s.Get(ctx, id)
}

// Reschedule moves an appointment to another offered slot.
func (s *Service) Reschedule(ctx context.Context, id uuid.UUID, date time.Time, at schedule.Clock) (*model.AppointmentDetail, error) {
	date = schedule.Day(date)
	if !s.gen.Offers(date, at) {
		return nil, ErrSlotNotOffered
	}

	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, s.storeError("appointment", err)
	}

	moved := current.Appointment
	moved.Date = date
	moved.Time = at
	events := s.outboxEvents(ctx, model.EventAppointmentUpdated, &moved, ActorAdmin)
	if err := s.repo.Update(ctx, &moved, events...); err != nil {
		if errors.Is(err, repository.ErrSlotTaken) {
			s.avail.Invalidate(date)
			return nil, ErrSlotTaken.Wrap(err)
		}
		return nil, s.storeError("appointment", err)
	}

	s.avail.Invalidate(current.Date, date)
	return s.Get(ctx, id)
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return s.storeError("appointment", err)
	}

	events := s.outboxEvents(ctx, model.EventAppointmentDeleted, &current.Appointment, ActorAdmin)
	n, err := s.repo.Delete(ctx, id, events...)
	if err != nil {
		return apperrors.Unavailable(err)
	}
	if n == 0 {
		return apperrors.NotFound("appointment", nil)
	}

	s.avail.Invalidate(current.Date)
	return nil
}

func (s *Service) ListDay(ctx context.Context, date time.Time) ([]*model.AppointmentDetail, error) {
	list, err := s.repo.ListByDate(ctx, date)
	if err != nil {
		return nil, apperrors.Unavailable(err)
	}
	return list, nil
}

// Upcoming lists appointments from today through the configured horizon.
func (s *Service) Upcoming(ctx context.Context) ([]*model.AppointmentDetail, error) {
	today := s.Today()
	list, err := s.repo.ListBetween(ctx, today, schedule.AddDays(today, s.upcomingDays))
	if err != nil {
		return nil, apperrors.Unavailable(err)
	}
	return list, nil
}

func (s *Service) ListForPatient(ctx context.Context, patientID uuid.UUID) ([]*model.AppointmentDetail, error) {
	list, err := s.repo.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, apperrors.Unavailable(err)
	}
	return list, nil
}

// outboxEvents builds the event to store with an appointment write.
func (s *Service) outboxEvents(ctx context.Context, eventType string, appt *model.Appointment, actor string) []*model.OutboxEvent {
	if s.events == nil {
		return nil
	}
	event, err := s.events.New(eventType, model.AppointmentEvent{
		AppointmentID: appt.ID,
		Date:          schedule.FormatDate(appt.Date),
		Time:          appt.Time.String(),
		PatientID:     appt.PatientID,
		Actor:         actor,
	})
	if err != nil {
		s.log.WithContext(ctx).Error(err, "failed to build appointment event",
			"event_type", eventType,
			"appointment_id", appt.ID.String(),
		)
		return nil
	}
	return []*model.OutboxEvent{event}
}

func (s *Service) storeError(resource string, err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return apperrors.NotFound(resource, err)
	case errors.Is(err, repository.ErrSlotTaken):
		return ErrSlotTaken.Wrap(err)
	case errors.Is(err, repository.ErrPatientNotFound):
		return ErrPatientNotFound.Wrap(err)
	default:
		return apperrors.Unavailable(fmt.Errorf("%s: %w", resource, err))
	}
}
