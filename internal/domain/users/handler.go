package users

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
	g := api.Group("/users", session.RequireSlot(session.SlotAdmin))
	g.GET("", h.ListUsers)
	g.POST("", h.CreateUser)
	g.GET("/:id", h.GetUser)
	g.PUT("/:id", h.UpdateUser)
	g.DELETE("/:id", h.DeactivateUser)
	g.DELETE("/:id/permanent", h.DeleteUser)
}

func parseID(c echo.Context) (int, error) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func fail(err error) error {
	if errors.Is(err, ErrInvalid) || errors.Is(err, ErrSelf) {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return upstream.HTTPError(err)
}

func (h *Handler) ListUsers(c echo.Context) error {
	pg := pagination.FromContextMax(c, 200)
	list, err := h.svc.List(c.Request().Context(), session.FromContext(c), ListQuery{Search: c.QueryParam("search"), Skip: pg.Skip, Limit: pg.Limit})
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(list.Items, list.Total, pg))
}

func (h *Handler) CreateUser(c echo.Context) error {
	var in UserCreate
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	u, err := h.svc.Create(c.Request().Context(), session.FromContext(c), &in)
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusCreated, u)
}

func (h *Handler) GetUser(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	u, err := h.svc.Get(c.Request().Context(), session.FromContext(c), id)
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusOK, u)
}

func (h *Handler) UpdateUser(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var in UserUpdate
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	u, err := h.svc.Update(c.Request().Context(), session.FromContext(c), id, &in)
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusOK, u)
}

func (h *Handler) DeactivateUser(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.Deactivate(c.Request().Context(), session.FromContext(c), id); err != nil {
		return fail(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) DeleteUser(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeletePermanent(c.Request().Context(), session.FromContext(c), id); err != nil {
		return fail(err)
	}
	return c.NoContent(http.StatusNoContent)
}
