// Package metrics exposes the console's Prometheus collectors.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "console_http_requests_total",
			Help: "Total number of HTTP requests served by the console",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "console_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "route"},
	)

	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "console_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	// Upstream metrics
	upstreamRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "console_upstream_requests_total",
			Help: "Requests issued to backing services; status 0 means no response",
		},
		[]string{"service", "method", "status"},
	)

	upstreamRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "console_upstream_request_duration_seconds",
			Help:    "Backing service request duration in seconds",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 15},
		},
		[]string{"service"},
	)

	// Business metrics
	calendarLoads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "calendar_loads_total",
			Help: "Calendar month loads by outcome (ok, error, superseded)",
		},
		[]string{"outcome"},
	)

	calendarUnknownStatus = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "calendar_unknown_status_total",
			Help: "Appointments received with a status outside the known set",
		},
		[]string{"status"},
	)

	loginAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "console_login_attempts_total",
			Help: "Login attempts by slot and outcome",
		},
		[]string{"slot", "outcome"},
	)

	calendarViews = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "calendar_views_active",
			Help: "Number of per-session calendar views held in memory",
		},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware records request count and latency per route template.
func Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			httpRequestsInFlight.Inc()
			defer httpRequestsInFlight.Dec()

			err := next(c)

			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			httpRequestsTotal.WithLabelValues(c.Request().Method, route, strconv.Itoa(status)).Inc()
			httpRequestDuration.WithLabelValues(c.Request().Method, route).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

// Upstream implements upstream.Observer.
type Upstream struct{}

func (Upstream) ObserveUpstream(service, method string, status int, elapsed time.Duration) {
	upstreamRequestsTotal.WithLabelValues(service, method, strconv.Itoa(status)).Inc()
	upstreamRequestDuration.WithLabelValues(service).Observe(elapsed.Seconds())
}

// --- Business metric helpers ---

// RecordCalendarLoad records the outcome of one calendar load.
func RecordCalendarLoad(outcome string) {
	calendarLoads.WithLabelValues(outcome).Inc()
}

// RecordUnknownStatus counts an appointment status outside the known set.
func RecordUnknownStatus(status string) {
	calendarUnknownStatus.WithLabelValues(status).Inc()
}

func RecordLogin(slot, outcome string) {
	loginAttempts.WithLabelValues(slot, outcome).Inc()
}

// SetCalendarViews reports the size of the calendar view registry.
func SetCalendarViews(n int) {
	calendarViews.Set(float64(n))
}
