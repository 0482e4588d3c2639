package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	RolePatient = "patient"
	RoleAdmin   = "admin"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims identifies the caller. PatientID is set for patient tokens only.
type Claims struct {
	Role      string     `json:"role"`
	PatientID *uuid.UUID `json:"pid,omitempty"`
	Name      string     `json:"name,omitempty"`
	jwt.RegisteredClaims
}

type JWTService interface {
	GeneratePatientToken(patientID uuid.UUID, name string) (string, error)
	GenerateAdminToken(username string) (string, error)
	ValidateToken(token string) (*Claims, error)
}

type jwtService struct {
	secret []byte
	issuer string
	expiry time.Duration
	now    func() time.Time
}

func NewJWTService(secret, issuer string, expiry time.Duration) JWTService {
	if expiry <= 0 {
		expiry = 24 * time.Hour
	}
	return &jwtService{secret: []byte(secret), issuer: issuer, expiry: expiry, now: time.Now}
}

func (s *jwtService) GeneratePatientToken(patientID uuid.UUID, name string) (string, error) {
	id := patientID
	return s.sign(&Claims{
		Role:      RolePatient,
		PatientID: &id,
		Name:      name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: patientID.String(),
		},
	})
}

func (s *jwtService) GenerateAdminToken(username string) (string, error) {
	return s.sign(&Claims{
		Role: RoleAdmin,
		Name: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: username,
		},
	})
}

func (s *jwtService) sign(claims *Claims) (string, error) {
	now := s.now()
	claims.Issuer = s.issuer
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(s.expiry))
	claims.ID = uuid.NewString()

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return token, nil
}

func (s *jwtService) ValidateToken(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	switch claims.Role {
	case RoleAdmin:
	case RolePatient:
		if claims.PatientID == nil {
			return nil, fmt.Errorf("%w: patient token without patient id", ErrInvalidToken)
		}
	default:
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidToken, claims.Role)
	}
	return claims, nil
}
