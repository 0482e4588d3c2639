package middleware

import (
	"context"
	"errors"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "github.com/jwalitptl/clinic-scheduler/pkg/errors"
	"github.com/jwalitptl/clinic-scheduler/pkg/httputil"
)

var errRequestTimeout = errors.New("request timeout")

// Timeout puts a deadline on the request context. Handlers run on the
// request goroutine; store calls observe the deadline and fail, and a 504 is
// written if nothing else was.
func Timeout(d time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if d <= 0 {
			c.Next()
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		if errors.Is(ctx.Err(), context.DeadlineExceeded) && !c.Writer.Written() {
			httputil.RespondWithError(c, apperrors.Timeout(errRequestTimeout))
		}
	}
}
