package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-scheduler/pkg/auth"
	apperrors "github.com/jwalitptl/clinic-scheduler/pkg/errors"
	"github.com/jwalitptl/clinic-scheduler/pkg/httputil"
)

const contextClaims = "claims"

var (
	errMissingAuth   = errors.New("missing authorization header")
	errAuthFormat    = errors.New("invalid authorization format")
	errNoPatient     = errors.New("token carries no patient")
	errRoleForbidden = errors.New("role not allowed")
)

type AuthMiddleware struct {
	jwt auth.JWTService
}

func NewAuthMiddleware(jwt auth.JWTService) *AuthMiddleware {
	return &AuthMiddleware{jwt: jwt}
}

// Authenticate verifies the bearer token and stores its claims in the context.
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			httputil.RespondWithError(c, apperrors.Unauthorized(errMissingAuth))
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			httputil.RespondWithError(c, apperrors.Unauthorized(errAuthFormat))
			return
		}

		claims, err := m.jwt.ValidateToken(strings.TrimSpace(parts[1]))
		if err != nil {
			httputil.RespondWithError(c, apperrors.Unauthorized(err))
			return
		}

		c.Set(contextClaims, claims)
		c.Next()
	}
}

// RequireRole lets the request through only for the listed roles. It must
// run after Authenticate.
func (m *AuthMiddleware) RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := Claims(c)
		if !ok {
			httputil.RespondWithError(c, apperrors.Unauthorized(errMissingAuth))
			return
		}
		for _, r := range roles {
			if claims.Role == r {
				c.Next()
				return
			}
		}
		httputil.RespondWithError(c, apperrors.Forbidden(errRoleForbidden))
	}
}

func Claims(c *gin.Context) (*auth.Claims, bool) {
	v, ok := c.Get(contextClaims)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*auth.Claims)
	return claims, ok
}

// PatientID returns the authenticated patient's id. Admin tokens have none.
func PatientID(c *gin.Context) (uuid.UUID, error) {
	claims, ok := Claims(c)
	if !ok {
		return uuid.Nil, apperrors.Unauthorized(errMissingAuth)
	}
	if claims.Role != auth.RolePatient || claims.PatientID == nil {
		return uuid.Nil, apperrors.Forbidden(errNoPatient)
	}
	return *claims.PatientID, nil
}
