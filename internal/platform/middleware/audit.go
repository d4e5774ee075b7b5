package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/aioc/hospital-console/internal/platform/session"
)

// AuditEntry records one access to patient-related data through the console:
// who (session slot and username), what, when and from where.
type AuditEntry struct {
	Slot       string
	Username   string
	UserID     int
	Resource   string
	PatientID  int
	Action     string // read, create, update, delete
	IPAddress  string
	UserAgent  string
	Path       string
	Method     string
	Timestamp  time.Time
	RequestID  string
	StatusCode int
}

// AuditRecorder persists audit entries beyond the structured log.
type AuditRecorder interface {
	RecordAccess(entry AuditEntry) error
}

// AuditRecorderFunc is a function adapter for AuditRecorder.
type AuditRecorderFunc func(entry AuditEntry) error

func (f AuditRecorderFunc) RecordAccess(entry AuditEntry) error {
	return f(entry)
}

// AuditedResources are the first path segments under the API prefix whose
// requests touch patient data.
var AuditedResources = []string{"patients", "appointments", "calendar", "users"}

// Audit logs every request under prefix whose first segment is one of
// resources. The acting identity is taken from the console session; the admin
// slot is reported when both are signed in.
func Audit(logger zerolog.Logger, prefix string, resources []string, recorders ...AuditRecorder) echo.MiddlewareFunc {
	audited := make(map[string]bool, len(resources))
	for _, r := range resources {
		audited[r] = true
	}
	prefix = strings.TrimRight(prefix, "/") + "/"

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			resource := resourceOf(req.URL.Path, prefix)
			if !audited[resource] {
				return next(c)
			}

			// Execute the handler first so we capture the response status
			err := next(c)

			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}
			entry := AuditEntry{
				Resource:   resource,
				PatientID:  patientIDOf(c, resource),
				Action:     httpMethodToAction(req.Method),
				IPAddress:  c.RealIP(),
				UserAgent:  req.UserAgent(),
				Path:       req.URL.Path,
				Method:     req.Method,
				Timestamp:  time.Now().UTC(),
				StatusCode: status,
			}
			entry.RequestID, _ = c.Get("request_id").(string)

			sess := session.FromContext(c)
			for _, slot := range []session.Slot{session.SlotAdmin, session.SlotStaff} {
				if cred := sess.Credential(slot); cred != nil {
					entry.Slot, entry.Username, entry.UserID = string(slot), cred.Username, cred.UserID
					break
				}
			}

			for _, r := range recorders {
				if r == nil {
					continue
				}
				if recErr := r.RecordAccess(entry); recErr != nil {
					logger.Error().Err(recErr).
						Str("request_id", entry.RequestID).
						Msg("failed to record audit entry")
				}
			}

			logger.Info().
				Str("type", "access_audit").
				Str("request_id", entry.RequestID).
				Str("slot", entry.Slot).
				Str("username", entry.Username).
				Int("user_id", entry.UserID).
				Str("resource", entry.Resource).
				Int("patient_id", entry.PatientID).
				Str("action", entry.Action).
				Str("method", entry.Method).
				Str("path", entry.Path).
				Str("remote_ip", entry.IPAddress).
				Int("status", entry.StatusCode).
				Msg("patient_data_access")

			return err
		}
	}
}

// resourceOf returns the first path segment after prefix, or "".
func resourceOf(path, prefix string) string {
	if !strings.HasPrefix(path, prefix) {
		return ""
	}
	rest := strings.TrimPrefix(path, prefix)
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		rest = rest[:i]
	}
	return rest
}

func httpMethodToAction(method string) string {
	switch method {
	case http.MethodPost:
		return "create"
	case http.MethodPut, http.MethodPatch:
		return "update"
	case http.MethodDelete:
		return "delete"
	default:
		return "read"
	}
}

// patientIDOf finds the patient a request concerns: the :pid route param
// (reports), :id on patient routes, else the patient_id query parameter.
func patientIDOf(c echo.Context, resource string) int {
	candidates := []string{c.Param("pid")}
	if resource == "patients" {
		candidates = append(candidates, c.Param("id"))
	}
	candidates = append(candidates, c.QueryParam("patient_id"))
	for _, s := range candidates {
		if id, err := strconv.Atoi(s); err == nil && id > 0 {
			return id
		}
	}
	return 0
}
