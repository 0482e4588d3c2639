package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-scheduler/internal/model"
	"github.com/jwalitptl/clinic-scheduler/internal/repository"
)

type measurementRepository struct {
	*db
}

func (r *measurementRepository) Upsert(_ context.Context, m *model.Measurement) (*model.Measurement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return nil, r.fail
	}

	key := visitKey{patientID: m.PatientID, date: m.Date}
	cur, ok := r.measurements[key]
	if !ok {
		cur = *m
		if cur.ID == uuid.Nil {
			cur.ID = uuid.New()
		}
	} else {
		mergeMeasurement(&cur, m)
	}
	r.measurements[key] = cur
	out := cur
	return &out, nil
}

func mergeMeasurement(dst, src *model.Measurement) {
	str := func(d **string, s *string) {
		if s != nil {
			*d = s
		}
	}
	num := func(d **float64, s *float64) {
		if s != nil {
			*d = s
		}
	}
	str(&dst.RoutinePDF, src.RoutinePDF)
	str(&dst.MealPlanPDF, src.MealPlanPDF)
	num(&dst.WeightKg, src.WeightKg)
	num(&dst.BodyFatPct, src.BodyFatPct)
	num(&dst.MusclePct, src.MusclePct)
	num(&dst.ArmRelaxedCm, src.ArmRelaxedCm)
	num(&dst.ArmFlexedCm, src.ArmFlexedCm)
	num(&dst.ChestRelaxedCm, src.ChestRelaxedCm)
	num(&dst.ChestFlexedCm, src.ChestFlexedCm)
	num(&dst.WaistCm, src.WaistCm)
	num(&dst.HipCm, src.HipCm)
	num(&dst.LegCm, src.LegCm)
	num(&dst.CalfCm, src.CalfCm)
	str(&dst.Notes, src.Notes)
	str(&dst.FolderID, src.FolderID)
	if src.AppointmentID != nil {
		dst.AppointmentID = src.AppointmentID
	}
}

func (r *measurementRepository) Get(_ context.Context, patientID uuid.UUID, date string) (*model.Measurement, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.fail != nil {
		return nil, r.fail
	}

	m, ok := r.measurements[visitKey{patientID: patientID, date: date}]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &m, nil
}

func (r *measurementRepository) ListByPatient(_ context.Context, patientID uuid.UUID) ([]*model.Measurement, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.fail != nil {
		return nil, r.fail
	}

	var out []*model.Measurement
	for k, m := range r.measurements {
		if k.patientID == patientID {
			m := m
			out = append(out, &m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date > out[j].Date })
	return out, nil
}

func (r *measurementRepository) LinkAppointment(_ context.Context, patientID uuid.UUID, date string, appointmentID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return r.fail
	}

	key := visitKey{patientID: patientID, date: date}
	m, ok := r.measurements[key]
	if !ok {
		return repository.ErrNotFound
	}
	m.AppointmentID = &appointmentID
	r.measurements[key] = m
	return nil
}

func (r *measurementRepository) Delete(_ context.Context, patientID uuid.UUID, date string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return 0, r.fail
	}

	key := visitKey{patientID: patientID, date: date}
	if _, ok := r.measurements[key]; !ok {
		return 0, nil
	}
	delete(r.measurements, key)
	return 1, nil
}

type photoRepository struct {
	*db
}

func (r *photoRepository) Create(_ context.Context, photo *model.Photo) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return r.fail
	}

	if photo.ID == uuid.Nil {
		photo.ID = uuid.New()
	}
	photo.CreatedAt = now()
	r.photos[photo.ID] = *photo
	return nil
}

func (r *photoRepository) ListByPatient(_ context.Context, patientID uuid.UUID, date string) ([]*model.Photo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.fail != nil {
		return nil, r.fail
	}

	var out []*model.Photo
	for _, p := range r.photos {
		if p.PatientID != patientID || (date != "" && p.Date != date) {
			continue
		}
		p := p
		out = append(out, &p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date > out[j].Date
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r *photoRepository) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return r.fail
	}

	if _, ok := r.photos[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.photos, id)
	return nil
}

func (r *photoRepository) DeleteByPatientDate(_ context.Context, patientID uuid.UUID, date string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return nil, r.fail
	}

	ids := []string{}
	for id, p := range r.photos {
		if p.PatientID == patientID && p.Date == date {
			if p.FileID != nil && *p.FileID != "" {
				ids = append(ids, *p.FileID)
			}
			delete(r.photos, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}
