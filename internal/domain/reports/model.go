package reports

import (
	"context"
	"io"

	"github.com/aioc/hospital-console/internal/platform/session"
	"github.com/aioc/hospital-console/internal/platform/upstream"
)

// Report is a clinical report as stored by the reports service.
type Report struct {
	ID                int           `json:"id"`
	PatientID         int           `json:"patient_id"`
	DiagnosisCode     *string       `json:"diagnosis_code"`
	Content           string        `json:"content"`
	Therapy           *string       `json:"therapy"`
	LabExams          *string       `json:"lab_exams"`
	ReferralSpecialty *string       `json:"referral_specialty"`
	CreatedAt         upstream.Time `json:"created_at"`
	UpdatedAt         upstream.Time `json:"updated_at"`
	CreatedByID       *int          `json:"created_by_id"`
}

type ReportCreate struct {
	DiagnosisCode     *string `json:"diagnosis_code,omitempty"`
	Content           string  `json:"content"`
	Therapy           *string `json:"therapy,omitempty"`
	LabExams          *string `json:"lab_exams,omitempty"`
	ReferralSpecialty *string `json:"referral_specialty,omitempty"`
}

// ReportUpdate is sent as a PATCH; nil fields are left unchanged.
type ReportUpdate struct {
	DiagnosisCode     *string `json:"diagnosis_code,omitempty"`
	Content           *string `json:"content,omitempty"`
	Therapy           *string `json:"therapy,omitempty"`
	LabExams          *string `json:"lab_exams,omitempty"`
	ReferralSpecialty *string `json:"referral_specialty,omitempty"`
}

// PDF is an open PDF rendering of a report. The caller must close Body.
type PDF struct {
	Body          io.ReadCloser
	ContentType   string
	ContentLength int64
}

type Repository interface {
	List(ctx context.Context, sess *session.Session, patientID, skip, limit int) (*upstream.List[Report], error)
	Create(ctx context.Context, sess *session.Session, patientID int, in *ReportCreate) (*Report, error)
	Get(ctx context.Context, sess *session.Session, patientID, reportID int) (*Report, error)
	Update(ctx context.Context, sess *session.Session, patientID, reportID int, in *ReportUpdate) (*Report, error)
	Delete(ctx context.Context, sess *session.Session, patientID, reportID int) error
	PDF(ctx context.Context, sess *session.Session, patientID, reportID int) (*PDF, error)
}
