package reports

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/aioc/hospital-console/internal/platform/session"
	"github.com/aioc/hospital-console/internal/platform/upstream"
)

// -- Mock Report Repository --

type mockRepo struct {
	reports map[int]*Report
	nextID  int
	pdf     string
	deleted []int
}

func newMockRepo() *mockRepo {
	return &mockRepo{reports: make(map[int]*Report), nextID: 1, pdf: "%PDF-1.4 fake"}
}

func notFound() error {
	return &upstream.Error{Service: "reports", Status: 404, Detail: "Report not found"}
}

func (m *mockRepo) List(_ context.Context, _ *session.Session, patientID, skip, limit int) (*upstream.List[Report], error) {
	out := &upstream.List[Report]{Items: []Report{}}
	for id := 1; id < m.nextID; id++ {
		if r, ok := m.reports[id]; ok && r.PatientID == patientID {
			out.Items = append(out.Items, *r)
		}
	}
	out.Total = len(out.Items)
	return out, nil
}

func (m *mockRepo) Create(_ context.Context, _ *session.Session, patientID int, in *ReportCreate) (*Report, error) {
	r := &Report{ID: m.nextID, PatientID: patientID, Content: in.Content, ReferralSpecialty: in.ReferralSpecialty}
	m.nextID++
	m.reports[r.ID] = r
	return r, nil
}

func (m *mockRepo) Get(_ context.Context, _ *session.Session, patientID, reportID int) (*Report, error) {
	r, ok := m.reports[reportID]
	if !ok || r.PatientID != patientID {
		return nil, notFound()
	}
	return r, nil
}

func (m *mockRepo) Update(ctx context.Context, sess *session.Session, patientID, reportID int, in *ReportUpdate) (*Report, error) {
	r, err := m.Get(ctx, sess, patientID, reportID)
	if err != nil {
		return nil, err
	}
	if in.Content != nil {
		r.Content = *in.Content
	}
	return r, nil
}

func (m *mockRepo) Delete(_ context.Context, _ *session.Session, patientID, reportID int) error {
	if _, ok := m.reports[reportID]; !ok {
		return notFound()
	}
	delete(m.reports, reportID)
	m.deleted = append(m.deleted, reportID)
	return nil
}

func (m *mockRepo) PDF(ctx context.Context, sess *session.Session, patientID, reportID int) (*PDF, error) {
	if _, err := m.Get(ctx, sess, patientID, reportID); err != nil {
		return nil, err
	}
	return &PDF{Body: io.NopCloser(strings.NewReader(m.pdf)), ContentType: "application/pdf", ContentLength: int64(len(m.pdf))}, nil
}

func newTestHandler() (*Handler, *mockRepo, *echo.Echo) {
	repo := newMockRepo()
	return NewHandler(NewService(repo, zerolog.Nop())), repo, echo.New()
}

func newContext(e *echo.Echo, method, body string, params ...string) (echo.Context, *httptest.ResponseRecorder) {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, "/", strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, "/", nil)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	var names, values []string
	for i := 0; i+1 < len(params); i += 2 {
		names = append(names, params[i])
		values = append(values, params[i+1])
	}
	c.SetParamNames(names...)
	c.SetParamValues(values...)
	session.WithSession(c, &session.Session{Admin: &session.Credential{Token: "admin"}})
	return c, rec
}

func statusOf(err error, rec *httptest.ResponseRecorder) int {
	if he, ok := err.(*echo.HTTPError); ok {
		return he.Code
	}
	return rec.Code
}

func TestService_Create_Validation(t *testing.T) {
	svc := NewService(newMockRepo(), zerolog.Nop())
	if _, err := svc.Create(context.Background(), nil, 1, &ReportCreate{Content: "  "}); !errors.Is(err, ErrInvalid) {
		t.Errorf("blank content: err = %v", err)
	}
	bad := "Astrology"
	if _, err := svc.Create(context.Background(), nil, 1, &ReportCreate{Content: "ok", ReferralSpecialty: &bad}); !errors.Is(err, ErrInvalid) {
		t.Errorf("bad referral: err = %v", err)
	}
	good := "Cardiology"
	if _, err := svc.Create(context.Background(), nil, 1, &ReportCreate{Content: "ok", ReferralSpecialty: &good}); err != nil {
		t.Errorf("valid: %v", err)
	}
}

func TestService_Update_EmptyContent(t *testing.T) {
	svc := NewService(newMockRepo(), zerolog.Nop())
	empty := ""
	if _, err := svc.Update(context.Background(), nil, 1, 1, &ReportUpdate{Content: &empty}); !errors.Is(err, ErrInvalid) {
		t.Errorf("err = %v, want ErrInvalid", err)
	}
}

func TestHandler_CreateAndGet(t *testing.T) {
	h, _, e := newTestHandler()
	c, rec := newContext(e, http.MethodPost, `{"content":"Stable angina","diagnosis_code":"I20.8"}`, "pid", "4")
	if err := h.CreateReport(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}

	c, rec = newContext(e, http.MethodGet, "", "pid", "4", "id", "1")
	if err := h.GetReport(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), "Stable angina") {
		t.Errorf("body = %s", rec.Body.String())
	}

	c, rec = newContext(e, http.MethodGet, "", "pid", "5", "id", "1")
	if code := statusOf(h.GetReport(c), rec); code != http.StatusNotFound {
		t.Errorf("other patient: expected 404, got %d", code)
	}
}

func TestHandler_DownloadPDF(t *testing.T) {
	h, repo, e := newTestHandler()
	repo.Create(context.Background(), nil, 4, &ReportCreate{Content: "x"})

	c, rec := newContext(e, http.MethodGet, "", "pid", "4", "id", "1")
	if err := h.DownloadPDF(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := rec.Header().Get(echo.HeaderContentDisposition); got != `attachment; filename="report-1.pdf"` {
		t.Errorf("Content-Disposition = %q", got)
	}
	if rec.Header().Get(echo.HeaderContentType) != "application/pdf" || rec.Body.String() != repo.pdf {
		t.Errorf("response = %s %q", rec.Header().Get(echo.HeaderContentType), rec.Body.String())
	}
}

func TestHandler_InvalidIDs(t *testing.T) {
	h, _, e := newTestHandler()
	c, rec := newContext(e, http.MethodGet, "", "pid", "x", "id", "1")
	if code := statusOf(h.GetReport(c), rec); code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", code)
	}
}

func TestHandler_DeleteReport(t *testing.T) {
	h, repo, e := newTestHandler()
	repo.Create(context.Background(), nil, 4, &ReportCreate{Content: "x"})
	c, rec := newContext(e, http.MethodDelete, "", "pid", "4", "id", "1")
	if err := h.DeleteReport(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusNoContent || len(repo.deleted) != 1 {
		t.Errorf("code = %d, deleted = %v", rec.Code, repo.deleted)
	}
}

func TestClient_PDFAndPatch(t *testing.T) {
	var gotMethod, gotPath, gotAccept, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath = r.Method, r.URL.Path
		gotAccept, gotAuth = r.Header.Get("Accept"), r.Header.Get("Authorization")
		if strings.HasSuffix(r.URL.Path, "/pdf") {
			w.Header().Set("Content-Type", "application/pdf")
			w.Write([]byte("%PDF"))
			return
		}
		w.Write([]byte(`{"id":2,"patient_id":4,"content":"updated","created_at":"2025-01-01T10:00:00","updated_at":"2025-01-02T10:00:00"}`))
	}))
	defer srv.Close()

	c := NewClient(upstream.New("reports", srv.URL))
	sess := &session.Session{Staff: &session.Credential{Token: "staff"}}

	content := "updated"
	r, err := c.Update(context.Background(), sess, 4, 2, &ReportUpdate{Content: &content})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if gotMethod != http.MethodPatch || gotPath != "/api/patients/4/reports/2" || r.Content != "updated" || gotAuth != "Bearer staff" {
		t.Errorf("update: %s %s %s -> %+v", gotMethod, gotPath, gotAuth, r)
	}

	pdf, err := c.PDF(context.Background(), sess, 4, 2)
	if err != nil {
		t.Fatalf("PDF: %v", err)
	}
	defer pdf.Body.Close()
	body, _ := io.ReadAll(pdf.Body)
	if gotPath != "/api/patients/4/reports/2/pdf" || gotAccept != "application/pdf" || string(body) != "%PDF" {
		t.Errorf("pdf: %s accept=%s body=%q", gotPath, gotAccept, body)
	}
}

func TestClient_PDFServiceDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"detail":"PDF service unavailable"}`))
	}))
	defer srv.Close()

	c := NewClient(upstream.New("reports", srv.URL))
	_, err := c.PDF(context.Background(), &session.Session{Admin: &session.Credential{Token: "a"}}, 1, 1)
	if !errors.Is(err, upstream.ErrUnavailable) || upstream.Message(err) != "PDF service unavailable" {
		t.Errorf("err = %v", err)
	}
}
