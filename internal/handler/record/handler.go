package record

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-scheduler/internal/handler"
	"github.com/jwalitptl/clinic-scheduler/internal/middleware"
	"github.com/jwalitptl/clinic-scheduler/internal/model"
	"github.com/jwalitptl/clinic-scheduler/internal/service/record"
	"github.com/jwalitptl/clinic-scheduler/pkg/httputil"
)

type Handler struct {
	service *record.Service
}

func NewHandler(service *record.Service) *Handler {
	return &Handler{service: service}
}

// RegisterAdminRoutes mounts the visit history endpoints under a patient.
func (h *Handler) RegisterAdminRoutes(r *gin.RouterGroup) {
	p := r.Group("/patients/:id")
	{
		p.GET("/measurements", h.ListMeasurements)
		p.PUT("/measurements", h.UpsertMeasurement)
		p.POST("/measurements/:date/link", h.LinkAppointment)
		p.DELETE("/visits/:date", h.DeleteVisit)
		p.GET("/photos", h.ListPhotos)
		p.POST("/photos", h.AddPhoto)
	}
	r.DELETE("/photos/:photoId", h.DeletePhoto)
}

// RegisterPatientRoutes mounts the read-only views of a patient's own history.
func (h *Handler) RegisterPatientRoutes(r *gin.RouterGroup) {
	r.GET("/measurements", h.ListMyMeasurements)
	r.GET("/photos", h.ListMyPhotos)
}

func (h *Handler) UpsertMeasurement(c *gin.Context) {
	patientID, ok := handler.UUIDParam(c, "id")
	if !ok {
		return
	}

	var req model.UpsertMeasurementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithBindError(c, err)
		return
	}

	m, err := h.service.UpsertMeasurement(c.Request.Context(), patientID, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, m)
}

func (h *Handler) ListMeasurements(c *gin.Context) {
	patientID, ok := handler.UUIDParam(c, "id")
	if !ok {
		return
	}
	h.listMeasurements(c, patientID)
}

func (h *Handler) ListMyMeasurements(c *gin.Context) {
	patientID, err := middleware.PatientID(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	h.listMeasurements(c, patientID)
}

func (h *Handler) listMeasurements(c *gin.Context, patientID uuid.UUID) {
	list, err := h.service.ListMeasurements(c.Request.Context(), patientID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, list)
}

func (h *Handler) LinkAppointment(c *gin.Context) {
	patientID, ok := handler.UUIDParam(c, "id")
	if !ok {
		return
	}

	linked, err := h.service.LinkToAppointment(c.Request.Context(), patientID, c.Param("date"))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, gin.H{"linked": linked})
}

// DeleteVisit removes a day's photos and measurement; ?appointments=true
// also deletes the patient's appointments on that date.
func (h *Handler) DeleteVisit(c *gin.Context) {
	patientID, ok := handler.UUIDParam(c, "id")
	if !ok {
		return
	}
	withAppointments, ok := handler.QueryBool(c, "appointments")
	if !ok {
		return
	}

	out, err := h.service.DeleteVisit(c.Request.Context(), patientID, c.Param("date"), withAppointments)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, out)
}

func (h *Handler) AddPhoto(c *gin.Context) {
	patientID, ok := handler.UUIDParam(c, "id")
	if !ok {
		return
	}

	var req model.CreatePhotoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithBindError(c, err)
		return
	}

	photo, err := h.service.AddPhoto(c.Request.Context(), patientID, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithStatus(c, http.StatusCreated, photo)
}

func (h *Handler) ListPhotos(c *gin.Context) {
	patientID, ok := handler.UUIDParam(c, "id")
	if !ok {
		return
	}
	h.listPhotos(c, patientID)
}

func (h *Handler) ListMyPhotos(c *gin.Context) {
	patientID, err := middleware.PatientID(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	h.listPhotos(c, patientID)
}

func (h *Handler) listPhotos(c *gin.Context, patientID uuid.UUID) {
	date := c.Query("date")
	if date != "" {
		if _, ok := handler.DateValue(c, "date", date); !ok {
			return
		}
	}

	list, err := h.service.ListPhotos(c.Request.Context(), patientID, date)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, list)
}

func (h *Handler) DeletePhoto(c *gin.Context) {
	id, ok := handler.UUIDParam(c, "photoId")
	if !ok {
		return
	}

	if err := h.service.DeletePhoto(c.Request.Context(), id); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
