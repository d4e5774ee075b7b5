package reports

import (
	"errors"
	"fmt"
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
	g := api.Group("/patients/:pid/reports", session.RequireSlot(session.SlotAdmin, session.SlotStaff))
	g.GET("", h.ListReports)
	g.POST("", h.CreateReport)
	g.GET("/:id", h.GetReport)
	g.PATCH("/:id", h.UpdateReport)
	g.DELETE("/:id", h.DeleteReport)
	g.GET("/:id/pdf", h.DownloadPDF)
}

func pathInt(c echo.Context, name string) (int, error) {
	n, err := strconv.Atoi(c.Param(name))
	if err != nil || n <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return n, nil
}

func ids(c echo.Context) (pid, id int, err error) {
	if pid, err = pathInt(c, "pid"); err != nil {
		return 0, 0, err
	}
	if id, err = pathInt(c, "id"); err != nil {
		return 0, 0, err
	}
	return pid, id, nil
}

func fail(err error) error {
	if errors.Is(err, ErrInvalid) {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return upstream.HTTPError(err)
}

func (h *Handler) ListReports(c echo.Context) error {
	pid, err := pathInt(c, "pid")
	if err != nil {
		return err
	}
	pg := pagination.FromContextMax(c, MaxLimit)
	list, err := h.svc.List(c.Request().Context(), session.FromContext(c), pid, pg.Skip, pg.Limit)
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(list.Items, list.Total, pg))
}

func (h *Handler) CreateReport(c echo.Context) error {
	pid, err := pathInt(c, "pid")
	if err != nil {
		return err
	}
	var in ReportCreate
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	r, err := h.svc.Create(c.Request().Context(), session.FromContext(c), pid, &in)
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusCreated, r)
}

func (h *Handler) GetReport(c echo.Context) error {
	pid, id, err := ids(c)
	if err != nil {
		return err
	}
	r, err := h.svc.Get(c.Request().Context(), session.FromContext(c), pid, id)
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusOK, r)
}

func (h *Handler) UpdateReport(c echo.Context) error {
	pid, id, err := ids(c)
	if err != nil {
		return err
	}
	var in ReportUpdate
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	r, err := h.svc.Update(c.Request().Context(), session.FromContext(c), pid, id, &in)
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusOK, r)
}

func (h *Handler) DeleteReport(c echo.Context) error {
	pid, id, err := ids(c)
	if err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request().Context(), session.FromContext(c), pid, id); err != nil {
		return fail(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// DownloadPDF streams the rendered report as an attachment.
func (h *Handler) DownloadPDF(c echo.Context) error {
	pid, id, err := ids(c)
	if err != nil {
		return err
	}
	pdf, err := h.svc.PDF(c.Request().Context(), session.FromContext(c), pid, id)
	if err != nil {
		return fail(err)
	}
	defer pdf.Body.Close()

	hdr := c.Response().Header()
	hdr.Set(echo.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="report-%d.pdf"`, id))
	if pdf.ContentLength > 0 {
		hdr.Set(echo.HeaderContentLength, strconv.FormatInt(pdf.ContentLength, 10))
	}
	return c.Stream(http.StatusOK, pdf.ContentType, pdf.Body)
}
