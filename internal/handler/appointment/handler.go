package appointment

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/clinic-scheduler/internal/handler"
	"github.com/jwalitptl/clinic-scheduler/internal/middleware"
	"github.com/jwalitptl/clinic-scheduler/internal/model"
	"github.com/jwalitptl/clinic-scheduler/internal/service/appointment"
	"github.com/jwalitptl/clinic-scheduler/pkg/httputil"
)

type Handler struct {
	service *appointment.Service
}

func NewHandler(service *appointment.Service) *Handler {
	return &Handler{service: service}
}

// GetAvailability answers the free slots of ?date=, defaulting to the
// earliest bookable date.
func (h *Handler) GetAvailability(c *gin.Context) {
	date := h.service.Policy().EarliestDate(h.service.Today())
	if raw := c.Query("date"); raw != "" {
		var ok bool
		if date, ok = handler.DateValue(c, "date", raw); !ok {
			return
		}
	}

	availability, err := h.service.Availability(c.Request.Context(), date)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, availability)
}

// Book reserves a slot for the authenticated patient.
func (h *Handler) Book(c *gin.Context) {
	patientID, err := middleware.PatientID(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	var req model.BookAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithBindError(c, err)
		return
	}
	date, ok := handler.DateValue(c, "date", req.Date)
	if !ok {
		return
	}
	at, ok := handler.ClockValue(c, "time", req.Time)
	if !ok {
		return
	}

	appt, err := h.service.Book(c.Request.Context(), appointment.BookingRequest{
		PatientID: patientID,
		Date:      date,
		Time:      at,
		Note:      req.Note,
	})
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithStatus(c, http.StatusCreated, appt)
}

func (h *Handler) ListMine(c *gin.Context) {
	patientID, err := middleware.PatientID(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	list, err := h.service.ListForPatient(c.Request.Context(), patientID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, list)
}

func (h *Handler) GetBoard(c *gin.Context) {
	date, ok := h.dateOrToday(c)
	if !ok {
		return
	}

	board, err := h.service.Board(c.Request.Context(), date)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, board)
}

func (h *Handler) ListDay(c *gin.Context) {
	date, ok := h.dateOrToday(c)
	if !ok {
		return
	}

	list, err := h.service.ListDay(c.Request.Context(), date)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, list)
}

func (h *Handler) ListUpcoming(c *gin.Context) {
	list, err := h.service.Upcoming(c.Request.Context())
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, list)
}

// AdminBook records a manual booking for a patient identified by name and
// phone, creating the patient when needed.
func (h *Handler) AdminBook(c *gin.Context) {
	var req model.AdminBookAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithBindError(c, err)
		return
	}
	date, ok := handler.DateValue(c, "date", req.Date)
	if !ok {
		return
	}
	at, ok := handler.ClockValue(c, "time", req.Time)
	if !ok {
		return
	}

	appt, err := h.service.BookForPatient(c.Request.Context(), appointment.AdminBookingRequest{
		Name:  req.Name,
		Phone: req.Phone,
		Date:  date,
		Time:  at,
		Note:  req.Note,
	})
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithStatus(c, http.StatusCreated, appt)
}

func (h *Handler) Get(c *gin.Context) {
	id, ok := handler.UUIDParam(c, "id")
	if !ok {
		return
	}

	appt, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, appt)
}

func (h *Handler) Update(c *gin.Context) {
	id, ok := handler.UUIDParam(c, "id")
	if !ok {
		return
	}

	var req model.UpdateAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithBindError(c, err)
		return
	}

	appt, err := h.service.Update(c.Request.Context(), id, req.Name, req.Phone, req.Note)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, appt)
}

func (h *Handler) Reschedule(c *gin.Context) {
	id, ok := handler.UUIDParam(c, "id")
	if !ok {
		return
	}

	var req model.RescheduleAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithBindError(c, err)
		return
	}
	date, ok := handler.DateValue(c, "date", req.Date)
	if !ok {
		return
	}
	at, ok := handler.ClockValue(c, "time", req.Time)
	if !ok {
		return
	}

	appt, err := h.service.Reschedule(c.Request.Context(), id, date, at)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, appt)
}

func (h *Handler) Delete(c *gin.Context) {
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

func (h *Handler) dateOrToday(c *gin.Context) (date time.Time, ok bool) {
	if raw := c.Query("date"); raw != "" {
		return handler.DateValue(c, "date", raw)
	}
	return h.service.Today(), true
}
