package scheduling

import (
	"context"
	"time"

	"github.com/aioc/hospital-console/internal/platform/session"
	"github.com/aioc/hospital-console/internal/platform/upstream"
)

// CalendarQuery selects appointments for a calendar window. From and To are
// both inclusive.
type CalendarQuery struct {
	From      time.Time
	To        time.Time
	DoctorID  int
	PatientID int
}

// ListQuery filters the plain appointment list. Zero values are omitted.
type ListQuery struct {
	PatientID int
	DoctorID  int
	From      time.Time
	To        time.Time
	Status    Status
	Skip      int
	Limit     int
}

// DoctorQuery filters the doctor list. A nil Active lists all doctors.
type DoctorQuery struct {
	Active *bool
	Skip   int
	Limit  int
}

// AppointmentRepository is the scheduling service's appointment API as seen
// by one browser session.
type AppointmentRepository interface {
	Calendar(ctx context.Context, sess *session.Session, q CalendarQuery) (*upstream.List[Appointment], error)
	List(ctx context.Context, sess *session.Session, q ListQuery) (*upstream.List[Appointment], error)
	Recent(ctx context.Context, sess *session.Session, limit int) (*upstream.List[Appointment], error)
	Create(ctx context.Context, sess *session.Session, in *AppointmentCreate) (*Appointment, error)
	Get(ctx context.Context, sess *session.Session, id int) (*Appointment, error)
	Update(ctx context.Context, sess *session.Session, id int, in *AppointmentUpdate) (*Appointment, error)
	Cancel(ctx context.Context, sess *session.Session, id int) error
}

type DoctorRepository interface {
	List(ctx context.Context, sess *session.Session, q DoctorQuery) (*upstream.List[Doctor], error)
	Get(ctx context.Context, sess *session.Session, id int) (*Doctor, error)
	// Me returns nil when the staff user has no doctor profile.
	Me(ctx context.Context, sess *session.Session) (*Doctor, error)
	Create(ctx context.Context, sess *session.Session, in *DoctorCreate) (*Doctor, error)
	Update(ctx context.Context, sess *session.Session, id int, in *DoctorUpdate) (*Doctor, error)
}
