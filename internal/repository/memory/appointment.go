package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-scheduler/internal/model"
	"github.com/jwalitptl/clinic-scheduler/internal/repository"
	"github.com/jwalitptl/clinic-scheduler/internal/schedule"
)

type appointmentRepository struct {
	*db
}

func (r *appointmentRepository) OccupiedTimes(_ context.Context, date time.Time) ([]schedule.Clock, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.fail != nil {
		return nil, r.fail
	}

	day := schedule.FormatDate(date)
	var times []schedule.Clock
	for k := range r.slots {
		if k.date == day {
			times = append(times, k.time)
		}
	}
	sort.Slice(times, func(i, j int) bool { return times[i] < times[j] })
	return times, nil
}

func (r *appointmentRepository) PatientHasAppointmentOn(ctx context.Context, patientID uuid.UUID, date time.Time) (bool, error) {
	return r.PatientHasAppointmentWithin(ctx, patientID, date, 1)
}

func (r *appointmentRepository) PatientHasAppointmentWithin(_ context.Context, patientID uuid.UUID, date time.Time, windowDays int) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.fail != nil {
		return false, r.fail
	}

	reach := windowDays - 1
	from, to := schedule.AddDays(date, -reach), schedule.AddDays(date, reach)
	for _, a := range r.appointments {
		if a.PatientID == nil || *a.PatientID != patientID {
			continue
		}
		if !a.Date.Before(from) && !a.Date.After(to) {
			return true, nil
		}
	}
	return false, nil
}

func (r *appointmentRepository) Reserve(_ context.Context, appointment *model.Appointment, events ...*model.OutboxEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return r.fail
	}

	key := slotKey{date: schedule.FormatDate(appointment.Date), time: appointment.Time}
	if _, taken := r.slots[key]; taken {
		return repository.ErrSlotTaken
	}
	if !r.patientExists(appointment.PatientID) {
		return repository.ErrPatientNotFound
	}
	if appointment.ID == uuid.Nil {
		appointment.ID = uuid.New()
	}
	appointment.Date = schedule.Day(appointment.Date)
	appointment.CreatedAt = now()

	r.slots[key] = appointment.ID
	r.appointments[appointment.ID] = *appointment
	r.queue(events...)
	return nil
}

func (r *appointmentRepository) Get(_ context.Context, id uuid.UUID) (*model.AppointmentDetail, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.fail != nil {
		return nil, r.fail
	}

	a, ok := r.appointments[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return r.detail(a), nil
}

func (r *appointmentRepository) Update(_ context.Context, appointment *model.Appointment, events ...*model.OutboxEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return r.fail
	}

	old, ok := r.appointments[appointment.ID]
	if !ok {
		return repository.ErrNotFound
	}
	oldKey := slotKey{date: schedule.FormatDate(old.Date), time: old.Time}
	newKey := slotKey{date: schedule.FormatDate(appointment.Date), time: appointment.Time}
	if newKey != oldKey {
		if _, taken := r.slots[newKey]; taken {
			return repository.ErrSlotTaken
		}
	}
	if !r.patientExists(appointment.PatientID) {
		return repository.ErrPatientNotFound
	}
	if newKey != oldKey {
		delete(r.slots, oldKey)
		r.slots[newKey] = appointment.ID
	}

	updated := *appointment
	updated.Date = schedule.Day(appointment.Date)
	updated.CreatedAt = old.CreatedAt
	r.appointments[appointment.ID] = updated
	r.queue(events...)
	return nil
}

func (r *appointmentRepository) Delete(_ context.Context, id uuid.UUID, events ...*model.OutboxEvent) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return 0, r.fail
	}

	a, ok := r.appointments[id]
	if !ok {
		return 0, nil
	}
	r.remove(a)
	r.queue(events...)
	return 1, nil
}

// patientExists mirrors the patient_id foreign key. A walk-in has no patient.
func (r *appointmentRepository) patientExists(id *uuid.UUID) bool {
	if id == nil {
		return true
	}
	_, ok := r.patients[*id]
	return ok
}

func (r *appointmentRepository) remove(a model.Appointment) {
	delete(r.slots, slotKey{date: schedule.FormatDate(a.Date), time: a.Time})
	delete(r.appointments, a.ID)
	for k, m := range r.measurements {
		if m.AppointmentID != nil && *m.AppointmentID == a.ID {
			m.AppointmentID = nil
			r.measurements[k] = m
		}
	}
}

func (r *appointmentRepository) ListByDate(_ context.Context, date time.Time) ([]*model.AppointmentDetail, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.fail != nil {
		return nil, r.fail
	}

	day := schedule.Day(date)
	return r.details(func(a model.Appointment) bool { return a.Date.Equal(day) }), nil
}

func (r *appointmentRepository) ListBetween(_ context.Context, from, to time.Time) ([]*model.AppointmentDetail, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.fail != nil {
		return nil, r.fail
	}

	from, to = schedule.Day(from), schedule.Day(to)
	return r.details(func(a model.Appointment) bool {
		return !a.Date.Before(from) && !a.Date.After(to)
	}), nil
}

func (r *appointmentRepository) ListByPatient(_ context.Context, patientID uuid.UUID) ([]*model.AppointmentDetail, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.fail != nil {
		return nil, r.fail
	}

	out := r.details(func(a model.Appointment) bool {
		return a.PatientID != nil && *a.PatientID == patientID
	})
	// newest first
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (r *appointmentRepository) FirstForPatientOn(_ context.Context, patientID uuid.UUID, date time.Time) (*model.Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.fail != nil {
		return nil, r.fail
	}

	day := schedule.Day(date)
	list := r.details(func(a model.Appointment) bool {
		return a.PatientID != nil && *a.PatientID == patientID && a.Date.Equal(day)
	})
	if len(list) == 0 {
		return nil, repository.ErrNotFound
	}
	a := list[0].Appointment
	return &a, nil
}

func (r *appointmentRepository) DeleteForPatientOn(_ context.Context, patientID uuid.UUID, date time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return 0, r.fail
	}

	day := schedule.Day(date)
	var n int64
	for _, a := range r.appointments {
		if a.PatientID != nil && *a.PatientID == patientID && a.Date.Equal(day) {
			r.remove(a)
			n++
		}
	}
	return n, nil
}
