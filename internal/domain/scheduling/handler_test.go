package scheduling

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/aioc/hospital-console/internal/platform/session"
	"github.com/aioc/hospital-console/internal/platform/upstream"
)

func newTestHandler() (*Handler, *testDeps, *echo.Echo) {
	svc, deps := newTestService()
	return NewHandler(svc, time.UTC), deps, echo.New()
}

func newContext(e *echo.Echo, method, target, body string, sess *session.Session) (echo.Context, *httptest.ResponseRecorder) {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if sess == nil {
		sess = &session.Session{Staff: &session.Credential{Token: "staff"}}
	}
	session.WithSession(c, sess)
	return c, rec
}

func statusOf(err error, rec *httptest.ResponseRecorder) int {
	if he, ok := err.(*echo.HTTPError); ok {
		return he.Code
	}
	return rec.Code
}

func TestHandler_CreateAppointment_ViewerZone(t *testing.T) {
	if _, err := time.LoadLocation("Asia/Tokyo"); err != nil {
		t.Skip("tzdata not available")
	}
	h, deps, e := newTestHandler()
	body := `{"patient_id":1,"doctor_id":2,"date":"2025-06-01","time":"09:00","duration_minutes":45}`
	c, rec := newContext(e, http.MethodPost, "/?tz=Asia/Tokyo", body, nil)

	if err := h.CreateAppointment(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	if got := deps.appts.lastCreate.ScheduledAt; got != "2025-06-01T00:00:00Z" {
		t.Errorf("scheduled_at = %q", got)
	}
}

func TestHandler_CreateAppointment_TimezoneHeader(t *testing.T) {
	if _, err := time.LoadLocation("Europe/Berlin"); err != nil {
		t.Skip("tzdata not available")
	}
	h, deps, e := newTestHandler()
	c, _ := newContext(e, http.MethodPost, "/", `{"patient_id":1,"doctor_id":2,"date":"2025-01-15","time":"10:00"}`, nil)
	c.Request().Header.Set(TimezoneHeader, "Europe/Berlin")
	if err := h.CreateAppointment(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := deps.appts.lastCreate.ScheduledAt; got != "2025-01-15T09:00:00Z" {
		t.Errorf("scheduled_at = %q", got)
	}
}

func TestHandler_CreateAppointment_BadZone(t *testing.T) {
	h, _, e := newTestHandler()
	c, rec := newContext(e, http.MethodPost, "/?tz=Mars/Olympus", `{"patient_id":1,"doctor_id":2,"date":"2025-01-15","time":"10:00"}`, nil)
	if code := statusOf(h.CreateAppointment(c), rec); code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", code)
	}
}

func TestHandler_CreateAppointment_Invalid(t *testing.T) {
	h, _, e := newTestHandler()
	c, rec := newContext(e, http.MethodPost, "/", `{"patient_id":1,"doctor_id":2,"date":"2025-01-15","time":"10:00","duration_minutes":1}`, nil)
	if code := statusOf(h.CreateAppointment(c), rec); code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", code)
	}
}

func TestHandler_GetAppointment_NotFound(t *testing.T) {
	h, _, e := newTestHandler()
	c, rec := newContext(e, http.MethodGet, "/", "", nil)
	c.SetParamNames("id")
	c.SetParamValues("9")
	if code := statusOf(h.GetAppointment(c), rec); code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", code)
	}
}

func TestHandler_ListAppointments_Filters(t *testing.T) {
	h, deps, e := newTestHandler()
	c, rec := newContext(e, http.MethodGet, "/?patient_id=4&doctor_id=2&status=completed&from=2025-01-01T00:00:00Z&limit=10", "", nil)
	if err := h.ListAppointments(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	q := deps.appts.lastList
	if q.PatientID != 4 || q.DoctorID != 2 || q.Status != StatusCompleted || q.Limit != 10 || q.From.IsZero() {
		t.Errorf("query = %+v", q)
	}
}

func TestHandler_ListAppointments_BadParam(t *testing.T) {
	h, _, e := newTestHandler()
	c, rec := newContext(e, http.MethodGet, "/?doctor_id=abc", "", nil)
	if code := statusOf(h.ListAppointments(c), rec); code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", code)
	}
}

func TestHandler_CancelAppointment(t *testing.T) {
	h, deps, e := newTestHandler()
	deps.appts.appointments[5] = &Appointment{ID: 5, Status: StatusScheduled}
	c, rec := newContext(e, http.MethodDelete, "/", "", nil)
	c.SetParamNames("id")
	c.SetParamValues("5")
	if err := h.CancelAppointment(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusNoContent || deps.appts.appointments[5].Status != StatusCancelled {
		t.Errorf("code = %d, status = %s", rec.Code, deps.appts.appointments[5].Status)
	}
}

func TestHandler_FormOptions(t *testing.T) {
	h, deps, e := newTestHandler()
	deps.patients.err = &upstream.Error{Service: "management", Status: 403}
	c, rec := newContext(e, http.MethodGet, "/", "", nil)
	if err := h.FormOptions(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var opts FormOptions
	json.Unmarshal(rec.Body.Bytes(), &opts)
	if opts.PatientsError == "" || opts.Patients == nil {
		t.Errorf("options = %+v", opts)
	}
}

func TestHandler_MyDoctor_NoProfile(t *testing.T) {
	h, _, e := newTestHandler()
	c, rec := newContext(e, http.MethodGet, "/", "", nil)
	if err := h.MyDoctor(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.TrimSpace(rec.Body.String()) != "null" {
		t.Errorf("body = %q, want null", rec.Body.String())
	}
}

func TestRegisterRoutes_DoctorWritesNeedAdmin(t *testing.T) {
	h, deps, e := newTestHandler()
	staff := &session.Session{Staff: &session.Credential{Token: "staff"}}
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			session.WithSession(c, staff)
			return next(c)
		}
	})
	h.RegisterRoutes(e.Group("/console/api"))

	body := `{"user_id":1,"display_name":"Dr. A","specialty":"Cardiology"}`
	req := httptest.NewRequest(http.MethodPost, "/console/api/doctors", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("staff create doctor: expected 401, got %d", rec.Code)
	}
	if len(deps.doctors.doctors) != 0 {
		t.Error("doctor created without admin login")
	}

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/console/api/doctors", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("staff list doctors: expected 200, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/console/api/appointments/recent", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("recent: expected 200, got %d", rec.Code)
	}
}
