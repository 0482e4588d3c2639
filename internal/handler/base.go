package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-scheduler/internal/schedule"
	"github.com/jwalitptl/clinic-scheduler/pkg/httputil"
)

// UUIDParam parses a path parameter, answering 400 when it is malformed.
func UUIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		httputil.RespondWithBadRequest(c, "invalid "+name, err)
		return uuid.Nil, false
	}
	return id, true
}

// DateValue parses a YYYY-MM-DD value, answering 400 when it is malformed.
func DateValue(c *gin.Context, name, value string) (time.Time, bool) {
	d, err := schedule.ParseDate(value)
	if err != nil {
		httputil.RespondWithBadRequest(c, "invalid "+name, err)
		return time.Time{}, false
	}
	return d, true
}

// QueryInt reads an optional non-negative integer query parameter.
func QueryInt(c *gin.Context, name string, def int) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		httputil.RespondWithBadRequest(c, "invalid "+name, err)
		return 0, false
	}
	return n, true
}

// QueryBool reads an optional boolean query parameter.
func QueryBool(c *gin.Context, name string) (bool, bool) {
	raw := c.Query(name)
	if raw == "" {
		return false, true
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		httputil.RespondWithBadRequest(c, "invalid "+name, err)
		return false, false
	}
	return b, true
}

// ClockValue parses an HH:MM value, answering 400 when it is malformed.
func ClockValue(c *gin.Context, name, value string) (schedule.Clock, bool) {
	t, err := schedule.ParseClock(value)
	if err != nil {
		httputil.RespondWithBadRequest(c, "invalid "+name, err)
		return 0, false
	}
	return t, true
}
