package middleware

import (
	"hybridReco/business/recommendation"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const HeaderTraceID = "X-Trace-ID"

// TraceID reuses an incoming X-Trace-ID or mints one, and puts it on the request context
// so the engines can log it.
func TraceID() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			id := req.Header.Get(HeaderTraceID)
			if id == "" || len(id) > 64 {
				id = uuid.NewString()
			}

			c.SetRequest(req.WithContext(recommendation.WithTraceID(req.Context(), id)))
			c.Response().Header().Set(HeaderTraceID, id)

			return next(c)
		}
	}
}
