package reports

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

// Client implements Repository against the reports service, preferring the
// admin token.
type Client struct {
	api *upstream.Client
}

func NewClient(api *upstream.Client) *Client {
	return &Client{api: api}
}

func reportsPath(patientID int) string {
	return "/api/patients/" + strconv.Itoa(patientID) + "/reports"
}

func reportPath(patientID, reportID int) string {
	return reportsPath(patientID) + "/" + strconv.Itoa(reportID)
}

func (c *Client) token(sess *session.Session) (string, error) {
	return sess.Bearer(session.AdminFirst, time.Now())
}

func (c *Client) do(ctx context.Context, sess *session.Session, method, path string, q url.Values, body, out any) error {
	token, err := c.token(sess)
	if err != nil {
		return err
	}
	return c.api.Do(ctx, method, path, q, token, body, out)
}

func (c *Client) List(ctx context.Context, sess *session.Session, patientID, skip, limit int) (*upstream.List[Report], error) {
	q := url.Values{}
	if skip > 0 {
		q.Set("skip", strconv.Itoa(skip))
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var out upstream.List[Report]
	if err := c.do(ctx, sess, http.MethodGet, reportsPath(patientID), q, nil, &out); err != nil {
		return nil, fmt.Errorf("list reports for patient %d: %w", patientID, err)
	}
	return &out, nil
}

func (c *Client) Create(ctx context.Context, sess *session.Session, patientID int, in *ReportCreate) (*Report, error) {
	var out Report
	if err := c.do(ctx, sess, http.MethodPost, reportsPath(patientID), nil, in, &out); err != nil {
		return nil, fmt.Errorf("create report for patient %d: %w", patientID, err)
	}
	return &out, nil
}

func (c *Client) Get(ctx context.Context, sess *session.Session, patientID, reportID int) (*Report, error) {
	var out Report
	if err := c.do(ctx, sess, http.MethodGet, reportPath(patientID, reportID), nil, nil, &out); err != nil {
		return nil, fmt.Errorf("get report %d: %w", reportID, err)
	}
	return &out, nil
}

func (c *Client) Update(ctx context.Context, sess *session.Session, patientID, reportID int, in *ReportUpdate) (*Report, error) {
	var out Report
	if err := c.do(ctx, sess, http.MethodPatch, reportPath(patientID, reportID), nil, in, &out); err != nil {
		return nil, fmt.Errorf("update report %d: %w", reportID, err)
	}
	return &out, nil
}

func (c *Client) Delete(ctx context.Context, sess *session.Session, patientID, reportID int) error {
	if err := c.do(ctx, sess, http.MethodDelete, reportPath(patientID, reportID), nil, nil, nil); err != nil {
		return fmt.Errorf("delete report %d: %w", reportID, err)
	}
	return nil
}

func (c *Client) PDF(ctx context.Context, sess *session.Session, patientID, reportID int) (*PDF, error) {
	token, err := c.token(sess)
	if err != nil {
		return nil, err
	}
	resp, err := c.api.Stream(ctx, reportPath(patientID, reportID)+"/pdf", token, "application/pdf")
	if err != nil {
		return nil, fmt.Errorf("report %d pdf: %w", reportID, err)
	}
	ct := resp.Header.Get("Content-Type")
	if ct == "" {
		ct = "application/pdf"
	}
	return &PDF{Body: resp.Body, ContentType: ct, ContentLength: resp.ContentLength}, nil
}
