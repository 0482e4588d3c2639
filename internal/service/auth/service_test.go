package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/jwalitptl/clinic-scheduler/internal/model"
	"github.com/jwalitptl/clinic-scheduler/internal/repository/memory"
	"github.com/jwalitptl/clinic-scheduler/internal/service/patient"
	"github.com/jwalitptl/clinic-scheduler/pkg/auth"
	apperrors "github.com/jwalitptl/clinic-scheduler/pkg/errors"
	"github.com/jwalitptl/clinic-scheduler/pkg/security"
)

func newService() (*Service, auth.JWTService) {
	store := memory.NewStore()
	patients := patient.NewService(store.Patients, security.NewBcryptHasher(bcrypt.MinCost, ""), nil)
	jwtSvc := auth.NewJWTService("secret", "clinic", time.Hour)
	return NewService(patients, jwtSvc, AdminCredentials{Username: "coach", Password: "s3cret"}, nil), jwtSvc
}

func TestRegisterThenLogin(t *testing.T) {
	svc, jwtSvc := newService()
	ctx := context.Background()

	reg, err := svc.RegisterPatient(ctx, &model.RegisterPatientRequest{Name: "Ana", Phone: "5512345678", Password: "secret1"})
	require.NoError(t, err)
	require.NotNil(t, reg.PatientID)

	resp, err := svc.LoginPatient(ctx, "55 1234 5678", "secret1")
	require.NoError(t, err)
	assert.Equal(t, auth.RolePatient, resp.Role)

	claims, err := jwtSvc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, *reg.PatientID, *claims.PatientID)

	_, err = svc.LoginPatient(ctx, "5512345678", "nope")
	assert.ErrorIs(t, err, apperrors.Unauthorized(nil))
}

func TestLoginAdmin(t *testing.T) {
	svc, jwtSvc := newService()
	ctx := context.Background()

	resp, err := svc.LoginAdmin(ctx, "coach", "s3cret")
	require.NoError(t, err)
	claims, err := jwtSvc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, auth.RoleAdmin, claims.Role)

	_, err = svc.LoginAdmin(ctx, "coach", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	unset := NewService(nil, jwtSvc, AdminCredentials{}, nil)
	_, err = unset.LoginAdmin(ctx, "", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}
