package patients

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

// Client implements Repository against the management service. Both staff
// and admin may call it; the admin token is preferred.
type Client struct {
	api *upstream.Client
}

func NewClient(api *upstream.Client) *Client {
	return &Client{api: api}
}

func (c *Client) do(ctx context.Context, sess *session.Session, method, path string, q url.Values, body, out any) error {
	token, err := sess.Bearer(session.AdminFirst, time.Now())
	if err != nil {
		return err
	}
	return c.api.Do(ctx, method, path, q, token, body, out)
}

func (c *Client) List(ctx context.Context, sess *session.Session, lq ListQuery) (*upstream.List[Patient], error) {
	q := url.Values{}
	if lq.Search != "" {
		q.Set("search", lq.Search)
	}
	if lq.Active != nil {
		q.Set("is_active", strconv.FormatBool(*lq.Active))
	}
	if lq.Skip > 0 {
		q.Set("skip", strconv.Itoa(lq.Skip))
	}
	if lq.Limit > 0 {
		q.Set("limit", strconv.Itoa(lq.Limit))
	}

	var out upstream.List[Patient]
	if err := c.do(ctx, sess, http.MethodGet, "/api/patients", q, nil, &out); err != nil {
		return nil, fmt.Errorf("list patients: %w", err)
	}
	return &out, nil
}

func (c *Client) Create(ctx context.Context, sess *session.Session, in *PatientCreate) (*Patient, error) {
	var out Patient
	if err := c.do(ctx, sess, http.MethodPost, "/api/patients", nil, in, &out); err != nil {
		return nil, fmt.Errorf("create patient: %w", err)
	}
	return &out, nil
}

func (c *Client) Get(ctx context.Context, sess *session.Session, id int) (*Patient, error) {
	var out Patient
	if err := c.do(ctx, sess, http.MethodGet, "/api/patients/"+strconv.Itoa(id), nil, nil, &out); err != nil {
		return nil, fmt.Errorf("get patient %d: %w", id, err)
	}
	return &out, nil
}

func (c *Client) Update(ctx context.Context, sess *session.Session, id int, in *PatientUpdate) (*Patient, error) {
	var out Patient
	if err := c.do(ctx, sess, http.MethodPut, "/api/patients/"+strconv.Itoa(id), nil, in, &out); err != nil {
		return nil, fmt.Errorf("update patient %d: %w", id, err)
	}
	return &out, nil
}

func (c *Client) Deactivate(ctx context.Context, sess *session.Session, id int) error {
	if err := c.do(ctx, sess, http.MethodDelete, "/api/patients/"+strconv.Itoa(id), nil, nil, nil); err != nil {
		return fmt.Errorf("deactivate patient %d: %w", id, err)
	}
	return nil
}
