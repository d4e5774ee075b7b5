package scheduling

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/aioc/hospital-console/internal/platform/session"
	"github.com/aioc/hospital-console/internal/platform/upstream"
)

// Client implements AppointmentRepository and DoctorRepository against the
// scheduling service.
type Client struct {
	api *upstream.Client
}

func NewClient(api *upstream.Client) *Client {
	return &Client{api: api}
}

// Appointments returns the appointment half of the client.
func (c *Client) Appointments() AppointmentRepository { return appointmentClient{c} }

// Doctors returns the doctor half of the client.
func (c *Client) Doctors() DoctorRepository { return doctorClient{c} }

func (c *Client) do(ctx context.Context, sess *session.Session, p session.Policy, method, path string, q url.Values, body, out any) error {
	token, err := sess.Bearer(p, time.Now())
	if err != nil {
		return err
	}
	return c.api.Do(ctx, method, path, q, token, body, out)
}

func isoUTC(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func setInt(q url.Values, key string, v int) {
	if v != 0 {
		q.Set(key, strconv.Itoa(v))
	}
}

// -- Appointments --

type appointmentClient struct{ *Client }

func (c appointmentClient) Calendar(ctx context.Context, sess *session.Session, cq CalendarQuery) (*upstream.List[Appointment], error) {
	q := url.Values{}
	q.Set("from", isoUTC(cq.From))
	q.Set("to", isoUTC(cq.To))
	setInt(q, "doctor_id", cq.DoctorID)
	setInt(q, "patient_id", cq.PatientID)

	var out upstream.List[Appointment]
	if err := c.do(ctx, sess, session.StaffFirst, http.MethodGet, "/api/appointments/calendar", q, nil, &out); err != nil {
		return nil, fmt.Errorf("calendar query: %w", err)
	}
	return &out, nil
}

func (c appointmentClient) List(ctx context.Context, sess *session.Session, lq ListQuery) (*upstream.List[Appointment], error) {
	q := url.Values{}
	setInt(q, "patient_id", lq.PatientID)
	setInt(q, "doctor_id", lq.DoctorID)
	if !lq.From.IsZero() {
		q.Set("from", isoUTC(lq.From))
	}
	if !lq.To.IsZero() {
		q.Set("to", isoUTC(lq.To))
	}
	if lq.Status != "" {
		q.Set("status", string(lq.Status))
	}
	setInt(q, "skip", lq.Skip)
	setInt(q, "limit", lq.Limit)

	var out upstream.List[Appointment]
	if err := c.do(ctx, sess, session.StaffFirst, http.MethodGet, "/api/appointments", q, nil, &out); err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return &out, nil
}

func (c appointmentClient) Recent(ctx context.Context, sess *session.Session, limit int) (*upstream.List[Appointment], error) {
	q := url.Values{}
	setInt(q, "limit", limit)
	var out upstream.List[Appointment]
	if err := c.do(ctx, sess, session.StaffFirst, http.MethodGet, "/api/appointments/recent", q, nil, &out); err != nil {
		return nil, fmt.Errorf("recent appointments: %w", err)
	}
	return &out, nil
}

func (c appointmentClient) Create(ctx context.Context, sess *session.Session, in *AppointmentCreate) (*Appointment, error) {
	var out Appointment
	if err := c.do(ctx, sess, session.StaffFirst, http.MethodPost, "/api/appointments", nil, in, &out); err != nil {
		return nil, fmt.Errorf("create appointment: %w", err)
	}
	return &out, nil
}

func (c appointmentClient) Get(ctx context.Context, sess *session.Session, id int) (*Appointment, error) {
	var out Appointment
	if err := c.do(ctx, sess, session.StaffFirst, http.MethodGet, "/api/appointments/"+strconv.Itoa(id), nil, nil, &out); err != nil {
		return nil, fmt.Errorf("get appointment %d: %w", id, err)
	}
	return &out, nil
}

func (c appointmentClient) Update(ctx context.Context, sess *session.Session, id int, in *AppointmentUpdate) (*Appointment, error) {
	var out Appointment
	if err := c.do(ctx, sess, session.StaffFirst, http.MethodPut, "/api/appointments/"+strconv.Itoa(id), nil, in, &out); err != nil {
		return nil, fmt.Errorf("update appointment %d: %w", id, err)
	}
	return &out, nil
}

func (c appointmentClient) Cancel(ctx context.Context, sess *session.Session, id int) error {
	if err := c.do(ctx, sess, session.StaffFirst, http.MethodDelete, "/api/appointments/"+strconv.Itoa(id), nil, nil, nil); err != nil {
		return fmt.Errorf("cancel appointment %d: %w", id, err)
	}
	return nil
}

// -- Doctors --

type doctorClient struct{ *Client }

func (c doctorClient) List(ctx context.Context, sess *session.Session, dq DoctorQuery) (*upstream.List[Doctor], error) {
	q := url.Values{}
	if dq.Active != nil {
		q.Set("is_active", strconv.FormatBool(*dq.Active))
	}
	setInt(q, "skip", dq.Skip)
	setInt(q, "limit", dq.Limit)

	var out upstream.List[Doctor]
	if err := c.do(ctx, sess, session.AdminFirst, http.MethodGet, "/api/doctors", q, nil, &out); err != nil {
		return nil, fmt.Errorf("list doctors: %w", err)
	}
	return &out, nil
}

func (c doctorClient) Get(ctx context.Context, sess *session.Session, id int) (*Doctor, error) {
	var out Doctor
	if err := c.do(ctx, sess, session.AdminFirst, http.MethodGet, "/api/doctors/"+strconv.Itoa(id), nil, nil, &out); err != nil {
		return nil, fmt.Errorf("get doctor %d: %w", id, err)
	}
	return &out, nil
}

func (c doctorClient) Me(ctx context.Context, sess *session.Session) (*Doctor, error) {
	var out *Doctor
	if err := c.do(ctx, sess, session.StaffOnly, http.MethodGet, "/api/doctors/me", nil, nil, &out); err != nil {
		return nil, fmt.Errorf("my doctor profile: %w", err)
	}
	return out, nil
}

func (c doctorClient) Create(ctx context.Context, sess *session.Session, in *DoctorCreate) (*Doctor, error) {
	var out Doctor
	if err := c.do(ctx, sess, session.AdminOnly, http.MethodPost, "/api/doctors", nil, in, &out); err != nil {
		return nil, fmt.Errorf("create doctor: %w", err)
	}
	return &out, nil
}

func (c doctorClient) Update(ctx context.Context, sess *session.Session, id int, in *DoctorUpdate) (*Doctor, error) {
	var out Doctor
	if err := c.do(ctx, sess, session.AdminOnly, http.MethodPut, "/api/doctors/"+strconv.Itoa(id), nil, in, &out); err != nil {
		return nil, fmt.Errorf("update doctor %d: %w", id, err)
	}
	return &out, nil
}
