package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/clinic-scheduler/internal/middleware"
	"github.com/jwalitptl/clinic-scheduler/internal/model"
	"github.com/jwalitptl/clinic-scheduler/internal/service/auth"
	"github.com/jwalitptl/clinic-scheduler/internal/service/patient"
	"github.com/jwalitptl/clinic-scheduler/pkg/httputil"
)

type Handler struct {
	svc      *auth.Service
	patients *patient.Service
}

func NewHandler(svc *auth.Service, patients *patient.Service) *Handler {
	return &Handler{svc: svc, patients: patients}
}

// RegisterRoutes mounts the public login and registration endpoints.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	auth := r.Group("/auth")
	{
		auth.POST("/register", h.Register)
		auth.POST("/login", h.Login)
		auth.POST("/admin/login", h.AdminLogin)
	}
}

func (h *Handler) Register(c *gin.Context) {
	var req model.RegisterPatientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithBindError(c, err)
		return
	}

	token, err := h.svc.RegisterPatient(c.Request.Context(), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithStatus(c, http.StatusCreated, token)
}

func (h *Handler) Login(c *gin.Context) {
	var req model.PatientLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithBindError(c, err)
		return
	}

	token, err := h.svc.LoginPatient(c.Request.Context(), req.Phone, req.Password)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, token)
}

func (h *Handler) AdminLogin(c *gin.Context) {
	var req model.AdminLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithBindError(c, err)
		return
	}

	token, err := h.svc.LoginAdmin(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, token)
}

// ChangePassword lets a logged-in patient replace their password with a
// new six digit PIN.
func (h *Handler) ChangePassword(c *gin.Context) {
	patientID, err := middleware.PatientID(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	var req model.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithBindError(c, err)
		return
	}

	if err := h.patients.ChangePassword(c.Request.Context(), patientID, req.Current, req.New); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
