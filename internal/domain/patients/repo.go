package patients

import (
	"context"

	"github.com/aioc/hospital-console/internal/platform/session"
	"github.com/aioc/hospital-console/internal/platform/upstream"
)

// Repository is the management service's patient API.
type Repository interface {
	List(ctx context.Context, sess *session.Session, q ListQuery) (*upstream.List[Patient], error)
	Create(ctx context.Context, sess *session.Session, in *PatientCreate) (*Patient, error)
	Get(ctx context.Context, sess *session.Session, id int) (*Patient, error)
	Update(ctx context.Context, sess *session.Session, id int, in *PatientUpdate) (*Patient, error)
	// Deactivate marks the patient inactive; the record is kept.
	Deactivate(ctx context.Context, sess *session.Session, id int) error
}
