package patient

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/clinic-scheduler/internal/handler"
	"github.com/jwalitptl/clinic-scheduler/internal/middleware"
	"github.com/jwalitptl/clinic-scheduler/internal/model"
	"github.com/jwalitptl/clinic-scheduler/internal/service/appointment"
	"github.com/jwalitptl/clinic-scheduler/internal/service/patient"
	"github.com/jwalitptl/clinic-scheduler/pkg/httputil"
)

const maxPageSize = 200

type Handler struct {
	service      *patient.Service
	appointments *appointment.Service
}

func NewHandler(service *patient.Service, appointments *appointment.Service) *Handler {
	return &Handler{service: service, appointments: appointments}
}

// RegisterAdminRoutes mounts the admin patient directory.
func (h *Handler) RegisterAdminRoutes(r *gin.RouterGroup) {
	patients := r.Group("/patients")
	{
		patients.POST("", h.CreatePatient)
		patients.GET("", h.ListPatients)
		patients.GET("/:id", h.GetPatient)
		patients.PUT("/:id", h.UpdatePatient)
		patients.DELETE("/:id", h.DeletePatient)
		patients.GET("/:id/appointments", h.ListAppointments)
	}
}

// CreatePatient is the admin quick-add. An existing patient with the same
// phone is returned unchanged with 200.
func (h *Handler) CreatePatient(c *gin.Context) {
	var req model.AdminRegisterPatientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithBindError(c, err)
		return
	}

	p, created, err := h.service.AdminRegister(c.Request.Context(), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	httputil.RespondWithStatus(c, status, p)
}

func (h *Handler) ListPatients(c *gin.Context) {
	limit, ok := handler.QueryInt(c, "limit", 50)
	if !ok {
		return
	}
	offset, ok := handler.QueryInt(c, "offset", 0)
	if !ok {
		return
	}
	if limit == 0 || limit > maxPageSize {
		limit = maxPageSize
	}

	list, err := h.service.List(c.Request.Context(), &model.PatientFilters{
		SearchTerm: strings.TrimSpace(c.Query("q")),
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, list)
}

func (h *Handler) GetPatient(c *gin.Context) {
	id, ok := handler.UUIDParam(c, "id")
	if !ok {
		return
	}

	p, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, p)
}

func (h *Handler) UpdatePatient(c *gin.Context) {
	id, ok := handler.UUIDParam(c, "id")
	if !ok {
		return
	}

	var req model.UpdatePatientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithBindError(c, err)
		return
	}

	p, err := h.service.Update(c.Request.Context(), id, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, p)
}

// DeletePatient removes the patient with their measurements and photos.
// Their appointments stay on the calendar, unlinked.
func (h *Handler) DeletePatient(c *gin.Context) {
	id, ok := handler.UUIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), id); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) ListAppointments(c *gin.Context) {
	id, ok := handler.UUIDParam(c, "id")
	if !ok {
		return
	}

	list, err := h.appointments.ListForPatient(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, list)
}

// GetMe returns the authenticated patient's profile.
func (h *Handler) GetMe(c *gin.Context) {
	patientID, err := middleware.PatientID(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	p, err := h.service.Get(c.Request.Context(), patientID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, p)
}
