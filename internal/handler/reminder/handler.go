package reminder

import (
	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/clinic-scheduler/internal/handler"
	"github.com/jwalitptl/clinic-scheduler/internal/service/reminder"
	"github.com/jwalitptl/clinic-scheduler/pkg/httputil"
)

type Handler struct {
	service *reminder.Service
}

func NewHandler(service *reminder.Service) *Handler {
	return &Handler{service: service}
}

// Run sends tomorrow's reminders now; ?dry_run=true only reports what
// would be sent.
func (h *Handler) Run(c *gin.Context) {
	dryRun, ok := handler.QueryBool(c, "dry_run")
	if !ok {
		return
	}

	summary, err := h.service.SendTomorrow(c.Request.Context(), dryRun)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, summary)
}
