package scheduling

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/aioc/hospital-console/internal/platform/session"
	"github.com/aioc/hospital-console/internal/platform/upstream"
	"github.com/aioc/hospital-console/pkg/pagination"
)

// TimezoneHeader carries the viewer's IANA zone when the tz query parameter
// is absent.
const TimezoneHeader = "X-Timezone"

type Handler struct {
	svc *Service
	loc *time.Location
}

// NewHandler returns a handler that falls back to loc when a request names
// no viewer zone.
func NewHandler(svc *Service, loc *time.Location) *Handler {
	if loc == nil {
		loc = time.Local
	}
	return &Handler{svc: svc, loc: loc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	signedIn := session.RequireSlot(session.SlotStaff, session.SlotAdmin)
	admin := session.RequireSlot(session.SlotAdmin)

	appts := api.Group("/appointments", signedIn)
	appts.GET("", h.ListAppointments)
	appts.POST("", h.CreateAppointment)
	appts.GET("/recent", h.RecentAppointments)
	appts.GET("/form-options", h.FormOptions)
	appts.GET("/:id", h.GetAppointment)
	appts.PUT("/:id", h.UpdateAppointment)
	appts.DELETE("/:id", h.CancelAppointment)

	docs := api.Group("/doctors", signedIn)
	docs.GET("", h.ListDoctors)
	docs.GET("/me", h.MyDoctor)
	docs.GET("/:id", h.GetDoctor)
	docs.POST("", h.CreateDoctor, admin)
	docs.PUT("/:id", h.UpdateDoctor, admin)
	docs.DELETE("/:id", h.DeactivateDoctor, admin)
}

// Location resolves the viewer zone from ?tz= or the X-Timezone header.
func Location(c echo.Context, fallback *time.Location) (*time.Location, error) {
	name := c.QueryParam("tz")
	if name == "" {
		name = c.Request().Header.Get(TimezoneHeader)
	}
	if name == "" {
		return fallback, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "unknown time zone "+strconv.Quote(name))
	}
	return loc, nil
}

func parseID(c echo.Context) (int, error) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func queryInt(c echo.Context, name string) (int, error) {
	v := c.QueryParam(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return n, nil
}

func queryTime(c echo.Context, name string) (time.Time, error) {
	v := c.QueryParam(name)
	if v == "" {
		return time.Time{}, nil
	}
	t, err := upstream.ParseTime(v)
	if err != nil {
		return time.Time{}, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return t.Time, nil
}

func fail(err error) error {
	if errors.Is(err, ErrInvalid) {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return upstream.HTTPError(err)
}

// -- Appointments --

func (h *Handler) ListAppointments(c echo.Context) error {
	pg := pagination.FromContextMax(c, 200)
	q := ListQuery{Status: Status(c.QueryParam("status")), Skip: pg.Skip, Limit: pg.Limit}
	var err error
	if q.PatientID, err = queryInt(c, "patient_id"); err != nil {
		return err
	}
	if q.DoctorID, err = queryInt(c, "doctor_id"); err != nil {
		return err
	}
	if q.From, err = queryTime(c, "from"); err != nil {
		return err
	}
	if q.To, err = queryTime(c, "to"); err != nil {
		return err
	}
	list, err := h.svc.ListAppointments(c.Request().Context(), session.FromContext(c), q)
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(list.Items, list.Total, pg))
}

func (h *Handler) RecentAppointments(c echo.Context) error {
	limit, err := queryInt(c, "limit")
	if err != nil {
		return err
	}
	list, err := h.svc.RecentAppointments(c.Request().Context(), session.FromContext(c), limit)
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusOK, list)
}

func (h *Handler) FormOptions(c echo.Context) error {
	return c.JSON(http.StatusOK, h.svc.FormOptions(c.Request().Context(), session.FromContext(c)))
}

func (h *Handler) CreateAppointment(c echo.Context) error {
	loc, err := Location(c, h.loc)
	if err != nil {
		return err
	}
	var f AppointmentForm
	if err := c.Bind(&f); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	a, err := h.svc.CreateAppointment(c.Request().Context(), session.FromContext(c), &f, loc)
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) GetAppointment(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	a, err := h.svc.GetAppointment(c.Request().Context(), session.FromContext(c), id)
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) UpdateAppointment(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var in AppointmentUpdate
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	a, err := h.svc.UpdateAppointment(c.Request().Context(), session.FromContext(c), id, &in)
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) CancelAppointment(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.CancelAppointment(c.Request().Context(), session.FromContext(c), id); err != nil {
		return fail(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Doctors --

func (h *Handler) ListDoctors(c echo.Context) error {
	pg := pagination.FromContextMax(c, 200)
	q := DoctorQuery{Skip: pg.Skip, Limit: pg.Limit}
	if v := c.QueryParam("is_active"); v != "" {
		active, err := strconv.ParseBool(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid is_active")
		}
		q.Active = &active
	}
	list, err := h.svc.ListDoctors(c.Request().Context(), session.FromContext(c), q)
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(list.Items, list.Total, pg))
}

func (h *Handler) MyDoctor(c echo.Context) error {
	d, err := h.svc.MyDoctor(c.Request().Context(), session.FromContext(c))
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) GetDoctor(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	d, err := h.svc.GetDoctor(c.Request().Context(), session.FromContext(c), id)
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) CreateDoctor(c echo.Context) error {
	var in DoctorCreate
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	d, err := h.svc.CreateDoctor(c.Request().Context(), session.FromContext(c), &in)
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusCreated, d)
}

func (h *Handler) UpdateDoctor(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var in DoctorUpdate
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	d, err := h.svc.UpdateDoctor(c.Request().Context(), session.FromContext(c), id, &in)
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) DeactivateDoctor(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	d, err := h.svc.DeactivateDoctor(c.Request().Context(), session.FromContext(c), id)
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusOK, d)
}
