package memory

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-scheduler/internal/model"
	"github.com/jwalitptl/clinic-scheduler/internal/repository"
)

type patientRepository struct {
	*db
}

func (r *patientRepository) Create(_ context.Context, patient *model.Patient) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return r.fail
	}

	if _, taken := r.phones[patient.Phone]; taken {
		return repository.ErrPhoneTaken
	}
	if patient.ID == uuid.Nil {
		patient.ID = uuid.New()
	}
	patient.CreatedAt = now()
	r.patients[patient.ID] = *patient
	r.phones[patient.Phone] = patient.ID
	return nil
}

func (r *patientRepository) Get(_ context.Context, id uuid.UUID) (*model.Patient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.fail != nil {
		return nil, r.fail
	}

	p, ok := r.patients[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

func (r *patientRepository) GetByPhone(_ context.Context, phone string) (*model.Patient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.fail != nil {
		return nil, r.fail
	}

	id, ok := r.phones[phone]
	if !ok {
		return nil, repository.ErrNotFound
	}
	p := r.patients[id]
	return &p, nil
}

func (r *patientRepository) Update(_ context.Context, patient *model.Patient) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return r.fail
	}

	old, ok := r.patients[patient.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if patient.Phone != old.Phone {
		if _, taken := r.phones[patient.Phone]; taken {
			return repository.ErrPhoneTaken
		}
		delete(r.phones, old.Phone)
		r.phones[patient.Phone] = patient.ID
	}

	updated := *patient
	updated.PasswordHash = old.PasswordHash
	updated.CreatedAt = old.CreatedAt
	r.patients[patient.ID] = updated
	return nil
}

func (r *patientRepository) SetPassword(_ context.Context, id uuid.UUID, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return r.fail
	}

	p, ok := r.patients[id]
	if !ok {
		return repository.ErrNotFound
	}
	p.PasswordHash = &hash
	r.patients[id] = p
	return nil
}

func (r *patientRepository) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return r.fail
	}

	p, ok := r.patients[id]
	if !ok {
		return repository.ErrNotFound
	}
	for aid, a := range r.appointments {
		if a.PatientID != nil && *a.PatientID == id {
			a.PatientID = nil
			r.appointments[aid] = a
		}
	}
	for k := range r.measurements {
		if k.patientID == id {
			delete(r.measurements, k)
		}
	}
	for pid, ph := range r.photos {
		if ph.PatientID == id {
			delete(r.photos, pid)
		}
	}
	delete(r.phones, p.Phone)
	delete(r.patients, id)
	return nil
}

func (r *patientRepository) List(_ context.Context, filters *model.PatientFilters) ([]*model.Patient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.fail != nil {
		return nil, r.fail
	}

	var term string
	if filters != nil {
		term = strings.ToLower(filters.SearchTerm)
	}
	out := make([]*model.Patient, 0, len(r.patients))
	for _, p := range r.patients {
		if term != "" && !strings.Contains(strings.ToLower(p.Name), term) && !strings.Contains(p.Phone, term) {
			continue
		}
		p := p
		out = append(out, &p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })

	if filters != nil && filters.Limit > 0 {
		if filters.Offset >= len(out) {
			return []*model.Patient{}, nil
		}
		end := filters.Offset + filters.Limit
		if end > len(out) {
			end = len(out)
		}
		out = out[filters.Offset:end]
	}
	return out, nil
}
