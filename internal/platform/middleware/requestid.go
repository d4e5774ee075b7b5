package middleware

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/aioc/hospital-console/internal/platform/upstream"
)

const RequestIDHeader = "X-Request-ID"

// maxRequestIDLen bounds client-supplied IDs before they reach logs and
// upstream headers.
const maxRequestIDLen = 128

// RequestID tags each request with an ID, reusing the caller's X-Request-ID
// when present. The ID is stored under "request_id", echoed in the response
// and forwarded to the backing services.
func RequestID() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			rid := req.Header.Get(RequestIDHeader)
			if rid == "" || len(rid) > maxRequestIDLen {
				rid = uuid.NewString()
			}
			c.Set("request_id", rid)
			c.Response().Header().Set(RequestIDHeader, rid)
			c.SetRequest(req.WithContext(upstream.ContextWithRequestID(req.Context(), rid)))
			return next(c)
		}
	}
}
