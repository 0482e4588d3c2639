package patient

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-scheduler/internal/model"
	"github.com/jwalitptl/clinic-scheduler/internal/repository"
	apperrors "github.com/jwalitptl/clinic-scheduler/pkg/errors"
	"github.com/jwalitptl/clinic-scheduler/pkg/logger"
	"github.com/jwalitptl/clinic-scheduler/pkg/security"
)

var phoneSeparators = regexp.MustCompile(`[-\s]+`)

// NormalizePhone is the canonical form used as the login key.
func NormalizePhone(phone string) string {
	return phoneSeparators.ReplaceAllString(strings.ToLower(strings.TrimSpace(phone)), "")
}

type Service struct {
	repo   repository.PatientRepository
	hasher security.PasswordHasher
	log    *logger.Logger
}

func NewService(repo repository.PatientRepository, hasher security.PasswordHasher, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{repo: repo, hasher: hasher, log: log}
}

// Register is patient self-registration.
func (s *Service) Register(ctx context.Context, req *model.RegisterPatientRequest) (*model.Patient, error) {
	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, apperrors.BadRequest("password does not meet requirements", err)
	}

	patient := &model.Patient{
		Name:         strings.TrimSpace(req.Name),
		Phone:        NormalizePhone(req.Phone),
		PasswordHash: &hash,
	}
	if err := s.repo.Create(ctx, patient); err != nil {
		if errors.Is(err, repository.ErrPhoneTaken) {
			return nil, apperrors.Conflict("phone_taken", "a patient with that phone is already registered")
		}
		return nil, apperrors.Unavailable(err)
	}

	s.log.WithContext(ctx).Info("patient registered", "patient_id", patient.ID.String())
	return patient, nil
}

// AdminRegister is the admin quick-add. It is idempotent on phone: an existing
// patient is returned unchanged.
func (s *Service) AdminRegister(ctx context.Context, req *model.AdminRegisterPatientRequest) (*model.Patient, bool, error) {
	if !security.ValidPIN(req.PIN) {
		return nil, false, apperrors.BadRequest("pin must be exactly 6 digits", security.ErrInvalidPIN)
	}
	hash, err := s.hasher.Hash(req.PIN)
	if err != nil {
		return nil, false, apperrors.Internal(err)
	}

	patient := &model.Patient{
		Name:         strings.TrimSpace(req.Name),
		Phone:        NormalizePhone(req.Phone),
		BirthDate:    emptyToNil(req.BirthDate),
		Email:        emptyToNil(req.Email),
		PasswordHash: &hash,
	}
	err = s.repo.Create(ctx, patient)
	switch {
	case err == nil:
		return patient, true, nil
	case errors.Is(err, repository.ErrPhoneTaken):
		existing, err := s.repo.GetByPhone(ctx, patient.Phone)
		if err != nil {
			return nil, false, apperrors.Unavailable(err)
		}
		return existing, false, nil
	default:
		return nil, false, apperrors.Unavailable(err)
	}
}

// FindOrCreate resolves a patient by normalized phone, creating one without a
// password when none exists.
func (s *Service) FindOrCreate(ctx context.Context, name, phone string) (*model.Patient, error) {
	phone = NormalizePhone(phone)
	if phone == "" {
		return nil, apperrors.BadRequest("phone is required", nil)
	}

	existing, err := s.repo.GetByPhone(ctx, phone)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.Unavailable(err)
	}

	patient := &model.Patient{Name: strings.TrimSpace(name), Phone: phone}
	if err := s.repo.Create(ctx, patient); err != nil {
		if errors.Is(err, repository.ErrPhoneTaken) {
			// Lost a race with a concurrent create.
			existing, err := s.repo.GetByPhone(ctx, phone)
			if err != nil {
				return nil, apperrors.Unavailable(err)
			}
			return existing, nil
		}
		return nil, apperrors.Unavailable(err)
	}
	return patient, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.Patient, error) {
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, storeError(err)
	}
	return p, nil
}

func (s *Service) GetByPhone(ctx context.Context, phone string) (*model.Patient, error) {
	p, err := s.repo.GetByPhone(ctx, NormalizePhone(phone))
	if err != nil {
		return nil, storeError(err)
	}
	return p, nil
}

func (s *Service) List(ctx context.Context, filters *model.PatientFilters) ([]*model.Patient, error) {
	list, err := s.repo.List(ctx, filters)
	if err != nil {
		return nil, apperrors.Unavailable(err)
	}
	return list, nil
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, req *model.UpdatePatientRequest) (*model.Patient, error) {
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, storeError(err)
	}

	if req.Name != nil {
		p.Name = strings.TrimSpace(*req.Name)
	}
	if req.Phone != nil {
		p.Phone = NormalizePhone(*req.Phone)
	}
	if req.BirthDate != nil {
		p.BirthDate = emptyToNil(req.BirthDate)
	}
	if req.Email != nil {
		p.Email = emptyToNil(req.Email)
	}
	if req.Notes != nil {
		p.Notes = emptyToNil(req.Notes)
	}
	if req.FolderID != nil {
		p.FolderID = emptyToNil(req.FolderID)
	}

	if err := s.repo.Update(ctx, p); err != nil {
		if errors.Is(err, repository.ErrPhoneTaken) {
			return nil, apperrors.Conflict("phone_taken", "another patient already uses that phone")
		}
		return nil, storeError(err)
	}
	return p, nil
}

// ChangePassword verifies the current password and sets a new six digit one.
func (s *Service) ChangePassword(ctx context.Context, id uuid.UUID, current, next string) error {
	if !security.ValidPIN(next) {
		return apperrors.BadRequest("new password must be exactly 6 digits", security.ErrInvalidPIN)
	}

	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return storeError(err)
	}
	if p.PasswordHash == nil || s.hasher.Compare(*p.PasswordHash, current) != nil {
		return apperrors.Unauthorized(errors.New("current password is not valid"))
	}

	hash, err := s.hasher.Hash(next)
	if err != nil {
		return apperrors.Internal(err)
	}
	if err := s.repo.SetPassword(ctx, id, hash); err != nil {
		return storeError(err)
	}
	return nil
}

// Authenticate checks a phone and password pair. Unknown phones, patients
// without a password and wrong passwords are indistinguishable to the caller.
func (s *Service) Authenticate(ctx context.Context, phone, password string) (*model.Patient, error) {
	p, err := s.repo.GetByPhone(ctx, NormalizePhone(phone))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.Unauthorized(errors.New("invalid credentials"))
		}
		return nil, apperrors.Unavailable(err)
	}
	if p.PasswordHash == nil || s.hasher.Compare(*p.PasswordHash, password) != nil {
		return nil, apperrors.Unauthorized(errors.New("invalid credentials"))
	}
	return p, nil
}

// Delete removes the patient with their measurements and photos; their
// appointments stay on the calendar without a patient.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return storeError(err)
	}
	s.log.WithContext(ctx).Info("patient deleted", "patient_id", id.String())
	return nil
}

func storeError(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NotFound("patient", err)
	}
	return apperrors.Unavailable(err)
}

func emptyToNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
