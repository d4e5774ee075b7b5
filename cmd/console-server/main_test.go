package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/aioc/hospital-console/internal/config"
	"github.com/aioc/hospital-console/internal/domain/calendar"
	"github.com/aioc/hospital-console/internal/platform/session"
)

// ---------------------------------------------------------------------------
// loadConfig
// ---------------------------------------------------------------------------

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, _, err := loadConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.SessionStore != config.SessionStoreMemory {
		t.Errorf("SessionStore = %q", cfg.SessionStore)
	}
}

func TestLoadConfig_InvalidIsReturned(t *testing.T) {
	t.Setenv("SESSION_STORE", "redis")
	cfg, logger, err := loadConfig()
	if err == nil || !strings.Contains(err.Error(), "SESSION_STORE") {
		t.Fatalf("expected SESSION_STORE error, got %v", err)
	}
	if cfg != nil {
		t.Error("config returned alongside an error")
	}
	// The logger must still be usable to report the failure.
	logger.Error().Err(err).Msg("startup aborted")
}

// ---------------------------------------------------------------------------
// resolveSessionSecret
// ---------------------------------------------------------------------------

func TestResolveSessionSecret_FromEnv(t *testing.T) {
	want := strings.Repeat("s", 40)
	secret, random, err := resolveSessionSecret(want)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if random {
		t.Error("expected random=false when SESSION_SECRET is set")
	}
	if string(secret) != want {
		t.Errorf("secret = %q, want %q", secret, want)
	}
}

func TestResolveSessionSecret_RandomGeneration(t *testing.T) {
	a, random, err := resolveSessionSecret("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !random {
		t.Error("expected random=true when SESSION_SECRET is empty")
	}
	if len(a) != 32 {
		t.Errorf("expected 32-byte secret, got %d bytes", len(a))
	}
	b, _, _ := resolveSessionSecret("")
	if bytes.Equal(a, b) {
		t.Error("two random secrets should not be identical")
	}
}

// ---------------------------------------------------------------------------
// calendar command helpers
// ---------------------------------------------------------------------------

func TestCalendarQuery(t *testing.T) {
	q, err := calendarQuery("2026-02", 14, "ann", "cancelled")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.Year != 2026 || q.MonthIndex != 1 || q.Day != 14 {
		t.Errorf("got %d-%d day %d", q.Year, q.MonthIndex, q.Day)
	}
	if q.Patient != "ann" || q.Status != calendar.StatusFilter("cancelled") {
		t.Errorf("patient=%q status=%q", q.Patient, q.Status)
	}
}

func TestCalendarQuery_Invalid(t *testing.T) {
	tests := []struct {
		name, month, status string
		day                 int
	}{
		{"bad month", "2026/02", "all", 0},
		{"month out of range", "2026-13", "all", 0},
		{"bad day", "2026-02", "all", 40},
		{"bad status", "2026-02", "pending", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := calendarQuery(tt.month, tt.day, "", tt.status); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestWriteCalendar(t *testing.T) {
	grid := calendar.BuildMonthGrid(2026, 1)
	page := &calendar.Page{
		Year:      2026,
		Month:     2,
		Selected:  "2026-02-14",
		Weekdays:  calendar.Weekdays,
		Weeks:     grid.Weeks(),
		DayCounts: map[string]int{"2026-02-14": 2},
		Appointments: []calendar.DisplayAppointment{
			{ID: 1, Time: "09:30", Patient: "Ann Lee", Type: "Checkup", Doctor: "Dr. Diaz", Status: "scheduled"},
		},
		Total:    2,
		Filtered: 1,
		Error:    "Could not load appointments",
	}

	var buf bytes.Buffer
	if err := writeCalendar(&buf, page); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"February 2026", "warning: Could not load appointments", "Mon", "14(2)", "2026-02-14: 1 appointment(s)", "09:30", "Ann Lee", "Dr. Diaz"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "15(") {
		t.Errorf("day without appointments shows a count:\n%s", out)
	}
}

func TestMigrationFiles_Embedded(t *testing.T) {
	entries, err := fs.ReadDir(migrationFiles(""), ".")
	if err != nil {
		t.Fatalf("read embedded migrations: %v", err)
	}
	found := false
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".sql") {
			found = true
		}
	}
	if !found {
		t.Error("expected at least one embedded .sql migration")
	}
}

func TestNewLogger_Level(t *testing.T) {
	logger := newLogger(&config.Config{Env: "production", LogLevel: "WARN"})
	if logger.GetLevel() != zerolog.WarnLevel {
		t.Errorf("level = %s, want warn", logger.GetLevel())
	}
	logger = newLogger(&config.Config{LogLevel: "nonsense"})
	if logger.GetLevel() != zerolog.InfoLevel {
		t.Errorf("level = %s, want info", logger.GetLevel())
	}
}

// ---------------------------------------------------------------------------
// newServer against fake upstreams
// ---------------------------------------------------------------------------

func accessToken(t *testing.T, username string) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, session.AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Role:   "staff",
		UserID: 7,
	})
	s, err := tok.SignedString([]byte("upstream-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}

// fakeBackend plays all four upstream services.
func fakeBackend(t *testing.T) *httptest.Server {
	t.Helper()
	token := accessToken(t, "nurse")
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"ok"}`))
	})
	mux.HandleFunc("/api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var in struct{ Username, Password string }
		json.NewDecoder(r.Body).Decode(&in)
		if in.Password != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"detail":"Incorrect username or password"}`))
			return
		}
		json.NewEncoder(w).Encode(map[string]string{
			"access_token": token, "token_type": "bearer", "role": "staff", "username": in.Username,
		})
	})
	mux.HandleFunc("/api/appointments/calendar", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+token {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"detail":"Not authenticated"}`))
			return
		}
		w.Write([]byte(`{"items":[{"id":1,"patient_id":3,"doctor_id":2,"scheduled_at":"2026-03-10T09:30:00Z",
			"duration_minutes":30,"status":"scheduled","notes":"Checkup","patient_name":"Jane Doe",
			"doctor_display_name":"Dr. Diaz"}],"total":1}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(backend string) *config.Config {
	return &config.Config{
		Env:                "test",
		LoginAPIURL:        backend,
		ManagementAPIURL:   backend,
		SchedulingAPIURL:   backend,
		ReportsAPIURL:      backend,
		SessionSecret:      strings.Repeat("k", 32),
		SessionStore:       config.SessionStoreMemory,
		SessionTTL:         time.Hour,
		CookieName:         "console_test",
		DefaultTimezone:    "UTC",
		RequestTimeout:     5 * time.Second,
		UpstreamTimeout:    5 * time.Second,
		CalendarViewIdle:   time.Minute,
		CORSOrigins:        []string{"http://localhost:5173"},
		RateLimitRPS:       100,
		RateLimitBurst:     100,
		LoginRatePerMinute: 10,
	}
}

func newTestServer(t *testing.T) *server {
	t.Helper()
	srv, err := newServer(context.Background(), testConfig(fakeBackend(t).URL), zerolog.Nop())
	if err != nil {
		t.Fatalf("newServer: %v", err)
	}
	t.Cleanup(srv.close)
	return srv
}

func TestServer_Health(t *testing.T) {
	srv := newTestServer(t)

	for _, path := range []string{"/health", "/health/ready"} {
		rec := httptest.NewRecorder()
		srv.echo.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("%s: expected 200, got %d: %s", path, rec.Code, rec.Body.String())
		}
	}

	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "go_goroutines") {
		t.Errorf("/metrics: status %d", rec.Code)
	}
}

func TestServer_CalendarRequiresLogin(t *testing.T) {
	srv := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, apiPrefix+"/calendar", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID on error responses")
	}
}

func TestServer_LoginThenCalendar(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, apiPrefix+"/auth/login", strings.NewReader(`{"username":"nurse","password":"secret"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var cookie *http.Cookie
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == "console_test" {
			cookie = ck
		}
	}
	if cookie == nil {
		t.Fatal("login did not set the session cookie")
	}

	req = httptest.NewRequest(http.MethodGet, apiPrefix+"/calendar?year=2026&month=3&day=10", nil)
	req.AddCookie(cookie)
	rec = httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("calendar: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var page calendar.Page
	if err := json.Unmarshal(rec.Body.Bytes(), &page); err != nil {
		t.Fatalf("decode page: %v", err)
	}
	if page.Error != "" {
		t.Fatalf("unexpected load error: %s", page.Error)
	}
	if page.Total != 1 || len(page.Appointments) != 1 {
		t.Fatalf("expected one appointment, got total=%d day=%d", page.Total, len(page.Appointments))
	}
	a := page.Appointments[0]
	if a.Time != "09:30" || a.Patient != "Jane Doe" || a.Doctor != "Dr. Diaz" {
		t.Errorf("unexpected appointment %+v", a)
	}
	if srv.views.Len() != 1 {
		t.Errorf("expected one calendar view, got %d", srv.views.Len())
	}
}

func TestServer_LoginRejected(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, apiPrefix+"/auth/login", strings.NewReader(`{"username":"nurse","password":"wrong"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(rec.Result().Cookies()) != 0 {
		t.Error("rejected login must not set a cookie")
	}
}
