package httputil

import (
	stderrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/clinic-scheduler/pkg/errors"
	"github.com/jwalitptl/clinic-scheduler/pkg/validator"
)

// Response wraps all API responses
type Response struct {
	Status  string      `json:"status"`
	Data    interface{} `json:"data,omitempty"`
	Code    int         `json:"code,omitempty"`
	Reason  string      `json:"reason,omitempty"`
	Message string      `json:"message,omitempty"`
	Errors  interface{} `json:"errors,omitempty"`
}

// RespondWithSuccess sends a success response
func RespondWithSuccess(c *gin.Context, data interface{}) {
	RespondWithStatus(c, http.StatusOK, data)
}

// RespondWithStatus sends a success response with an explicit status code
func RespondWithStatus(c *gin.Context, status int, data interface{}) {
	c.JSON(status, Response{
		Status: "success",
		Data:   data,
	})
}

// RespondWithError sends an error response. Application errors keep their
// reason so clients can tell which rule rejected the request.
func RespondWithError(c *gin.Context, err error) {
	var appErr *errors.AppError
	if !stderrors.As(err, &appErr) {
		appErr = errors.Internal(err)
	}

	status := appErr.StatusCode()
	if status >= http.StatusInternalServerError {
		log.Error().
			Err(err).
			Str("path", c.Request.URL.Path).
			Str("request_id", c.GetString("request_id")).
			Msg("request failed")
	}

	c.AbortWithStatusJSON(status, Response{
		Status:  "error",
		Code:    int(appErr.Code),
		Reason:  appErr.Reason,
		Message: appErr.Message,
	})
}

// RespondWithBadRequest is a shortcut for binding and parsing failures
func RespondWithBadRequest(c *gin.Context, message string, err error) {
	RespondWithError(c, errors.BadRequest(message, err))
}

// RespondWithBindError reports a failed ShouldBind call, listing the
// offending fields when the failure came from validation.
func RespondWithBindError(c *gin.Context, err error) {
	fields := validator.Fields(err)
	if fields == nil {
		RespondWithBadRequest(c, "invalid request body", err)
		return
	}
	appErr := errors.BadRequest("validation failed", err)
	c.AbortWithStatusJSON(appErr.StatusCode(), Response{
		Status:  "error",
		Code:    int(appErr.Code),
		Reason:  appErr.Reason,
		Message: appErr.Message,
		Errors:  fields,
	})
}
