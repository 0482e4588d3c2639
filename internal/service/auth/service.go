package auth

import (
	"context"
	"errors"

	"github.com/jwalitptl/clinic-scheduler/internal/model"
	"github.com/jwalitptl/clinic-scheduler/internal/service/patient"
	"github.com/jwalitptl/clinic-scheduler/pkg/auth"
	apperrors "github.com/jwalitptl/clinic-scheduler/pkg/errors"
	"github.com/jwalitptl/clinic-scheduler/pkg/logger"
	"github.com/jwalitptl/clinic-scheduler/pkg/security"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

// AdminCredentials are the single configured admin account.
type AdminCredentials struct {
	Username string
	Password string
}

type Service struct {
	patients *patient.Service
	jwtSvc   auth.JWTService
	admin    AdminCredentials
	log      *logger.Logger
}

func NewService(patients *patient.Service, jwtSvc auth.JWTService, admin AdminCredentials, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{patients: patients, jwtSvc: jwtSvc, admin: admin, log: log}
}

func (s *Service) LoginPatient(ctx context.Context, phone, password string) (*model.TokenResponse, error) {
	p, err := s.patients.Authenticate(ctx, phone, password)
	if err != nil {
		return nil, err
	}

	token, err := s.jwtSvc.GeneratePatientToken(p.ID, p.Name)
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	id := p.ID
	return &model.TokenResponse{AccessToken: token, Role: auth.RolePatient, PatientID: &id, Name: p.Name}, nil
}

// RegisterPatient creates the account and logs the patient in.
func (s *Service) RegisterPatient(ctx context.Context, req *model.RegisterPatientRequest) (*model.TokenResponse, error) {
	p, err := s.patients.Register(ctx, req)
	if err != nil {
		return nil, err
	}

	token, err := s.jwtSvc.GeneratePatientToken(p.ID, p.Name)
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	id := p.ID
	return &model.TokenResponse{AccessToken: token, Role: auth.RolePatient, PatientID: &id, Name: p.Name}, nil
}

func (s *Service) LoginAdmin(ctx context.Context, username, password string) (*model.TokenResponse, error) {
	if s.admin.Username == "" || s.admin.Password == "" {
		return nil, apperrors.Unauthorized(ErrInvalidCredentials)
	}
	userOK := security.EqualConstantTime(username, s.admin.Username)
	passOK := security.EqualConstantTime(password, s.admin.Password)
	if !userOK || !passOK {
		s.log.WithContext(ctx).Warn("admin login failed", "username", username)
		return nil, apperrors.Unauthorized(ErrInvalidCredentials)
	}

	token, err := s.jwtSvc.GenerateAdminToken(username)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return &model.TokenResponse{AccessToken: token, Role: auth.RoleAdmin, Name: username}, nil
}
