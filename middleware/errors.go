package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"zerodb/errs"
)

// ErrorHandler renders the last error attached to the context as the
// standard {detail, error_code} body. Internal causes are logged, never sent.
func ErrorHandler(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err
		resolved := errs.Resolve(err)
		status := resolved.StatusCode()
		resp := resolved.Response()

		var event *zerolog.Event
		if status >= http.StatusInternalServerError {
			event = logger.Error().Err(err)
		} else {
			event = logger.Warn().Str("detail", resp.Detail)
		}
		event.
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Str("error_code", string(resp.ErrorCode)).
			Msg("Request failed")

		c.JSON(status, resp)
	}
}

// Recovery turns a panic into a 500 with the generic internal body.
func Recovery(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.Error().
					Str("method", c.Request.Method).
					Str("path", c.Request.URL.Path).
					Str("panic", fmt.Sprint(rec)).
					Str("stack", string(debug.Stack())).
					Msg("Recovered from panic")

				resolved := errs.Internal(fmt.Errorf("panic: %v", rec))
				if !c.Writer.Written() {
					c.AbortWithStatusJSON(resolved.StatusCode(), resolved.Response())
					return
				}
				c.Abort()
			}
		}()

		c.Next()
	}
}
