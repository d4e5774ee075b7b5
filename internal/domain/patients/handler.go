package patients

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/aioc/hospital-console/internal/platform/session"
	"github.com/aioc/hospital-console/internal/platform/upstream"
	"github.com/aioc/hospital-console/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/patients", session.RequireSlot(session.SlotAdmin, session.SlotStaff))
	g.GET("", h.ListPatients)
	g.POST("", h.CreatePatient)
	g.GET("/:id", h.GetPatient)
	g.PUT("/:id", h.UpdatePatient)
	g.POST("/:id/deactivate", h.DeactivatePatient)
}

func parseID(c echo.Context) (int, error) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func fail(err error) error {
	var mismatch *MismatchError
	switch {
	case errors.As(err, &mismatch):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, map[string]any{
			"error":      "confirmation does not match the patient record",
			"mismatched": mismatch.Fields,
		})
	case errors.Is(err, ErrInvalid):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return upstream.HTTPError(err)
}

func (h *Handler) ListPatients(c echo.Context) error {
	pg := pagination.FromContext(c)
	q := ListQuery{Search: c.QueryParam("search"), Skip: pg.Skip, Limit: pg.Limit}
	if v := c.QueryParam("is_active"); v != "" {
		active, err := strconv.ParseBool(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid is_active")
		}
		q.Active = &active
	}
	list, err := h.svc.List(c.Request().Context(), session.FromContext(c), q)
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(list.Items, list.Total, pg))
}

func (h *Handler) CreatePatient(c echo.Context) error {
	var in PatientCreate
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p, err := h.svc.Create(c.Request().Context(), session.FromContext(c), &in)
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) GetPatient(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	p, err := h.svc.Get(c.Request().Context(), session.FromContext(c), id)
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) UpdatePatient(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var in PatientUpdate
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p, err := h.svc.Update(c.Request().Context(), session.FromContext(c), id, &in)
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) DeactivatePatient(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var typed DeactivationConfirm
	if err := c.Bind(&typed); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.Deactivate(c.Request().Context(), session.FromContext(c), id, typed); err != nil {
		return fail(err)
	}
	return c.NoContent(http.StatusNoContent)
}
