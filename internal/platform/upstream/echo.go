package upstream

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/aioc/hospital-console/internal/platform/session"
)

// HTTPError converts an error from a client call into the *echo.HTTPError
// the console answers with. Upstream statuses pass through with their detail;
// missing or expired credentials become 401.
func HTTPError(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, session.ErrNoCredential):
		return echo.NewHTTPError(http.StatusUnauthorized, "login required")
	case errors.Is(err, session.ErrExpired):
		return echo.NewHTTPError(http.StatusUnauthorized, "session expired, please log in again")
	case errors.Is(err, context.DeadlineExceeded):
		return echo.NewHTTPError(http.StatusGatewayTimeout, "upstream request timed out")
	}
	var ue *Error
	if errors.As(err, &ue) {
		return echo.NewHTTPError(ue.Status, Message(err))
	}
	if errors.Is(err, ErrUnavailable) {
		return echo.NewHTTPError(http.StatusBadGateway, "service unavailable").SetInternal(err)
	}
	return echo.NewHTTPError(http.StatusInternalServerError, "internal error").SetInternal(err)
}
