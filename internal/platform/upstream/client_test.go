package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"
)

type recordingObserver struct {
	mu     sync.Mutex
	calls  []int
	method string
}

func (o *recordingObserver) ObserveUpstream(service, method string, status int, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls = append(o.calls, status)
	o.method = method
}

func TestClient_DoSendsTokenQueryAndBody(t *testing.T) {
	var gotAuth, gotQuery, gotRequestID string
	var gotBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotQuery = r.URL.RawQuery
		gotRequestID = r.Header.Get("X-Request-ID")
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id": 9}`))
	}))
	defer srv.Close()

	obs := &recordingObserver{}
	c := New("scheduling", srv.URL+"/", WithObserver(obs))

	ctx := ContextWithRequestID(context.Background(), "req-1")
	var out struct {
		ID int `json:"id"`
	}
	err := c.Do(ctx, http.MethodPost, "/api/appointments", url.Values{"limit": {"5"}}, "tok", map[string]int{"patient_id": 3}, &out)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if out.ID != 9 {
		t.Errorf("out.ID = %d, want 9", out.ID)
	}
	if gotAuth != "Bearer tok" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotQuery != "limit=5" {
		t.Errorf("query = %q", gotQuery)
	}
	if gotRequestID != "req-1" {
		t.Errorf("X-Request-ID = %q", gotRequestID)
	}
	if gotBody["patient_id"] != float64(3) {
		t.Errorf("body = %v", gotBody)
	}
	if len(obs.calls) != 1 || obs.calls[0] != 200 || obs.method != http.MethodPost {
		t.Errorf("observer calls = %v (%s)", obs.calls, obs.method)
	}
}

func TestClient_NoTokenNoHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "" {
			t.Error("unexpected Authorization header")
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	var out struct{}
	if err := New("login", srv.URL).Do(context.Background(), http.MethodDelete, "/x", nil, "", nil, &out); err != nil {
		t.Fatalf("Do: %v", err)
	}
}

func TestClient_ErrorResponses(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantDetail string
		wantIs     error
	}{
		{"string detail", 401, `{"detail":"Could not validate credentials"}`, "Could not validate credentials", ErrUnauthorized},
		{"forbidden", 403, `{"detail":"Admin only"}`, "Admin only", ErrForbidden},
		{"not found", 404, `{"detail":"Patient not found"}`, "Patient not found", ErrNotFound},
		{"validation list", 422, `{"detail":[{"loc":["body","duration_minutes"],"msg":"Input should be less than or equal to 240"},{"loc":["body"],"msg":"bad"}]}`,
			"duration_minutes: Input should be less than or equal to 240; bad", ErrInvalid},
		{"bad request", 400, `{"detail":"Invalid status"}`, "Invalid status", ErrInvalid},
		{"plain text", 500, "Internal Server Error", "Internal Server Error", ErrUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			err := New("management", srv.URL).Get(context.Background(), "/api/patients/1", nil, "tok", nil)
			var ue *Error
			if !errors.As(err, &ue) {
				t.Fatalf("err = %v, want *Error", err)
			}
			if ue.Status != tt.status || ue.Service != "management" {
				t.Errorf("got %+v", ue)
			}
			if ue.Detail != tt.wantDetail {
				t.Errorf("Detail = %q, want %q", ue.Detail, tt.wantDetail)
			}
			if !errors.Is(err, tt.wantIs) {
				t.Errorf("errors.Is(%v) = false", tt.wantIs)
			}
			if StatusCode(err) != tt.status {
				t.Errorf("StatusCode = %d, want %d", StatusCode(err), tt.status)
			}
			if Message(err) != tt.wantDetail {
				t.Errorf("Message = %q", Message(err))
			}
		})
	}
}

func TestClient_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	base := srv.URL
	srv.Close()

	obs := &recordingObserver{}
	err := New("reports", base, WithObserver(obs), WithTimeout(time.Second)).Get(context.Background(), "/x", nil, "", nil)
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
	if StatusCode(err) != http.StatusBadGateway {
		t.Errorf("StatusCode = %d, want 502", StatusCode(err))
	}
	if len(obs.calls) != 1 || obs.calls[0] != 0 {
		t.Errorf("observer calls = %v, want [0]", obs.calls)
	}
}

func TestClient_DecodeFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer srv.Close()

	var out map[string]any
	if err := New("login", srv.URL).Get(context.Background(), "/x", nil, "", &out); err == nil {
		t.Error("expected decode error")
	}
}

func TestClient_Stream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Accept") != "application/pdf" {
			t.Errorf("Accept = %q", r.Header.Get("Accept"))
		}
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte("%PDF-1.4"))
	}))
	defer srv.Close()

	resp, err := New("reports", srv.URL).Stream(context.Background(), "/pdf", "tok", "application/pdf")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	if string(data) != "%PDF-1.4" {
		t.Errorf("body = %q", data)
	}
}

func TestNew_TimeoutLeavesCallerClientAlone(t *testing.T) {
	shared := &http.Client{Timeout: time.Minute}
	c := New("login", "http://login", WithHTTPClient(shared), WithTimeout(time.Second))
	if shared.Timeout != time.Minute {
		t.Errorf("shared client timeout changed to %s", shared.Timeout)
	}
	if c.httpClient != shared {
		t.Error("caller's client not used")
	}

	c = New("login", "http://login", WithTimeout(3*time.Second))
	if c.httpClient.Timeout != 3*time.Second {
		t.Errorf("default client timeout = %s, want 3s", c.httpClient.Timeout)
	}
	if New("login", "http://login").httpClient.Timeout != 15*time.Second {
		t.Error("default timeout is not 15s")
	}
}
