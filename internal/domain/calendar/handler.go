package calendar

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/aioc/hospital-console/internal/domain/scheduling"
	"github.com/aioc/hospital-console/internal/platform/session"
)

type Handler struct {
	loader *Loader
	loc    *time.Location
}

// NewHandler serves the calendar page; loc is used when a request names no
// viewer zone.
func NewHandler(loader *Loader, loc *time.Location) *Handler {
	if loc == nil {
		loc = time.Local
	}
	return &Handler{loader: loader, loc: loc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/calendar", h.GetCalendar, session.RequireSlot(session.SlotAdmin, session.SlotStaff))
}

func intParam(c echo.Context, name string, def, min, max int) (int, error) {
	v := c.QueryParam(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < min || n > max {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return n, nil
}

// ParseQuery reads the calendar page state from the request. month is one
// based on the wire.
func (h *Handler) ParseQuery(c echo.Context) (Query, error) {
	loc, err := scheduling.Location(c, h.loc)
	if err != nil {
		return Query{}, err
	}
	now := h.loader.now().In(loc)

	q := Query{Patient: c.QueryParam("patient"), Typed: c.QueryParam("q"), Location: loc}
	if q.Year, err = intParam(c, "year", now.Year(), 1, 9999); err != nil {
		return Query{}, err
	}
	month, err := intParam(c, "month", int(now.Month()), 1, 12)
	if err != nil {
		return Query{}, err
	}
	q.MonthIndex = month - 1
	if q.Day, err = intParam(c, "day", 0, 0, 31); err != nil {
		return Query{}, err
	}
	if q.DoctorID, err = intParam(c, "doctor_id", 0, 0, 1<<31-1); err != nil {
		return Query{}, err
	}
	if q.PatientID, err = intParam(c, "patient_id", 0, 0, 1<<31-1); err != nil {
		return Query{}, err
	}
	if q.Status, err = ParseStatusFilter(c.QueryParam("status")); err != nil {
		return Query{}, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return q, nil
}

func (h *Handler) GetCalendar(c echo.Context) error {
	q, err := h.ParseQuery(c)
	if err != nil {
		return err
	}
	page, err := h.loader.Load(c.Request().Context(), session.FromContext(c), q)
	if errors.Is(err, ErrSuperseded) {
		return echo.NewHTTPError(http.StatusConflict, "superseded by a newer calendar request")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error").SetInternal(err)
	}
	return c.JSON(http.StatusOK, page)
}
