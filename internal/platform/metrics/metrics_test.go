package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMiddleware_CountsByRouteTemplate(t *testing.T) {
	e := echo.New()
	e.Use(Middleware())
	e.GET("/console/api/patients/:id", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	e.GET("/boom", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusBadGateway, "down")
	})

	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/console/api/patients/:id", "200"))
	for _, id := range []string{"1", "2", "3"} {
		e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/console/api/patients/"+id, nil))
	}
	after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/console/api/patients/:id", "200"))
	if after-before != 3 {
		t.Errorf("counter delta = %v, want 3", after-before)
	}

	before = testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/boom", "502"))
	e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/boom", nil))
	if got := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/boom", "502")) - before; got != 1 {
		t.Errorf("error counter delta = %v, want 1", got)
	}
}

func TestUpstreamObserver(t *testing.T) {
	before := testutil.ToFloat64(upstreamRequestsTotal.WithLabelValues("scheduling", "GET", "0"))
	Upstream{}.ObserveUpstream("scheduling", "GET", 0, 10*time.Millisecond)
	if got := testutil.ToFloat64(upstreamRequestsTotal.WithLabelValues("scheduling", "GET", "0")) - before; got != 1 {
		t.Errorf("delta = %v, want 1", got)
	}
}

func TestBusinessHelpers(t *testing.T) {
	before := testutil.ToFloat64(calendarUnknownStatus.WithLabelValues("rescheduled"))
	RecordUnknownStatus("rescheduled")
	if got := testutil.ToFloat64(calendarUnknownStatus.WithLabelValues("rescheduled")) - before; got != 1 {
		t.Errorf("unknown status delta = %v", got)
	}

	before = testutil.ToFloat64(calendarLoads.WithLabelValues("error"))
	RecordCalendarLoad("error")
	if got := testutil.ToFloat64(calendarLoads.WithLabelValues("error")) - before; got != 1 {
		t.Errorf("calendar load delta = %v", got)
	}

	SetCalendarViews(4)
	if got := testutil.ToFloat64(calendarViews); got != 4 {
		t.Errorf("views gauge = %v", got)
	}
}

func TestHandlerExposesCollectors(t *testing.T) {
	RecordLogin("staff", "ok")
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "console_login_attempts_total") {
		t.Error("metrics output missing console_login_attempts_total")
	}
}
