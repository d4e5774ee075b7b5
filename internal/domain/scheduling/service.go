package scheduling

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aioc/hospital-console/internal/domain/patients"
	"github.com/aioc/hospital-console/internal/platform/session"
	"github.com/aioc/hospital-console/internal/platform/upstream"
)

const (
	DefaultDuration = 30
	MinDuration     = 5
	MaxDuration     = 240

	formPatientLimit = 500
	formDoctorLimit  = 200
)

var ErrInvalid = errors.New("invalid request")

// PatientLister is the slice of the patient API the create form needs.
type PatientLister interface {
	List(ctx context.Context, sess *session.Session, q patients.ListQuery) (*upstream.List[patients.Patient], error)
}

type Service struct {
	appointments AppointmentRepository
	doctors      DoctorRepository
	patients     PatientLister
	logger       zerolog.Logger
}

func NewService(appt AppointmentRepository, doc DoctorRepository, pl PatientLister, logger zerolog.Logger) *Service {
	return &Service{appointments: appt, doctors: doc, patients: pl, logger: logger}
}

// -- Appointments --

// AppointmentForm is the create-appointment form as submitted by the page.
// Date and Time are wall-clock values in the viewer's zone.
type AppointmentForm struct {
	PatientID       int    `json:"patient_id"`
	DoctorID        int    `json:"doctor_id"`
	Date            string `json:"date"`
	Time            string `json:"time"`
	DurationMinutes int    `json:"duration_minutes"`
	Notes           string `json:"notes"`
}

// ToCreate validates the form and converts it to the scheduling service
// payload, pinning the local wall time to loc and sending it as UTC.
func (f *AppointmentForm) ToCreate(loc *time.Location) (*AppointmentCreate, error) {
	if loc == nil {
		loc = time.Local
	}
	if f.PatientID <= 0 {
		return nil, fmt.Errorf("%w: select a patient", ErrInvalid)
	}
	if f.DoctorID <= 0 {
		return nil, fmt.Errorf("%w: select a doctor", ErrInvalid)
	}
	at, err := time.ParseInLocation("2006-01-02 15:04", f.Date+" "+f.Time, loc)
	if err != nil {
		return nil, fmt.Errorf("%w: date must be YYYY-MM-DD and time HH:MM", ErrInvalid)
	}
	duration := f.DurationMinutes
	if duration == 0 {
		duration = DefaultDuration
	}
	if duration < MinDuration || duration > MaxDuration {
		return nil, fmt.Errorf("%w: duration_minutes must be between %d and %d", ErrInvalid, MinDuration, MaxDuration)
	}

	out := &AppointmentCreate{
		PatientID:       f.PatientID,
		DoctorID:        f.DoctorID,
		ScheduledAt:     at.UTC().Format(time.RFC3339),
		DurationMinutes: duration,
	}
	if notes := strings.TrimSpace(f.Notes); notes != "" {
		out.Notes = &notes
	}
	return out, nil
}

func (s *Service) CreateAppointment(ctx context.Context, sess *session.Session, f *AppointmentForm, loc *time.Location) (*Appointment, error) {
	in, err := f.ToCreate(loc)
	if err != nil {
		return nil, err
	}
	a, err := s.appointments.Create(ctx, sess, in)
	if err != nil {
		return nil, err
	}
	s.logger.Info().Int("appointment_id", a.ID).Int("patient_id", a.PatientID).Int("doctor_id", a.DoctorID).Msg("appointment created")
	return a, nil
}

func (s *Service) GetAppointment(ctx context.Context, sess *session.Session, id int) (*Appointment, error) {
	return s.appointments.Get(ctx, sess, id)
}

func (s *Service) ListAppointments(ctx context.Context, sess *session.Session, q ListQuery) (*upstream.List[Appointment], error) {
	if q.Status != "" && !q.Status.Known() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalid, q.Status)
	}
	return s.appointments.List(ctx, sess, q)
}

func (s *Service) RecentAppointments(ctx context.Context, sess *session.Session, limit int) (*upstream.List[Appointment], error) {
	if limit <= 0 || limit > 50 {
		limit = 20
	}
	return s.appointments.Recent(ctx, sess, limit)
}

func (s *Service) UpdateAppointment(ctx context.Context, sess *session.Session, id int, in *AppointmentUpdate) (*Appointment, error) {
	if in.Status != nil && !in.Status.Known() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalid, *in.Status)
	}
	if in.DurationMinutes != nil && (*in.DurationMinutes < MinDuration || *in.DurationMinutes > MaxDuration) {
		return nil, fmt.Errorf("%w: duration_minutes must be between %d and %d", ErrInvalid, MinDuration, MaxDuration)
	}
	if in.ScheduledAt != nil {
		if _, err := time.Parse(time.RFC3339, *in.ScheduledAt); err != nil {
			return nil, fmt.Errorf("%w: scheduled_at must be RFC 3339", ErrInvalid)
		}
	}
	return s.appointments.Update(ctx, sess, id, in)
}

func (s *Service) CancelAppointment(ctx context.Context, sess *session.Session, id int) error {
	if err := s.appointments.Cancel(ctx, sess, id); err != nil {
		return err
	}
	s.logger.Info().Int("appointment_id", id).Msg("appointment cancelled")
	return nil
}

// -- Create form options --

// PatientOption is one entry of the form's patient picker.
type PatientOption struct {
	ID                  int    `json:"id"`
	Name                string `json:"name"`
	MedicalRecordNumber string `json:"medical_record_number"`
}

// FormOptions feeds the create-appointment form. A failed source leaves its
// list empty and sets the matching error message.
type FormOptions struct {
	Patients      []PatientOption `json:"patients"`
	Doctors       []Doctor        `json:"doctors"`
	PatientsError string          `json:"patients_error,omitempty"`
	DoctorsError  string          `json:"doctors_error,omitempty"`
}

func loadMessage(what string, err error) string {
	switch {
	case errors.Is(err, upstream.ErrUnauthorized), errors.Is(err, session.ErrExpired), errors.Is(err, session.ErrNoCredential):
		return "Session expired or invalid. Please log in again (staff login)."
	case errors.Is(err, upstream.ErrForbidden):
		return "You do not have permission to load " + what + "."
	}
	return "Could not load " + what + " from the management service."
}

// FormOptions loads patients and active doctors concurrently.
func (s *Service) FormOptions(ctx context.Context, sess *session.Session) *FormOptions {
	out := &FormOptions{Patients: []PatientOption{}, Doctors: []Doctor{}}
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		list, err := s.patients.List(ctx, sess, patients.ListQuery{Limit: formPatientLimit})
		if err != nil {
			s.logger.Warn().Err(err).Msg("form options: load patients")
			out.PatientsError = loadMessage("patients", err)
			return
		}
		for _, p := range list.Items {
			out.Patients = append(out.Patients, PatientOption{ID: p.ID, Name: p.FullName(), MedicalRecordNumber: p.MedicalRecordNumber})
		}
	}()

	go func() {
		defer wg.Done()
		active := true
		list, err := s.doctors.List(ctx, sess, DoctorQuery{Active: &active, Limit: formDoctorLimit})
		if err != nil {
			s.logger.Warn().Err(err).Msg("form options: load doctors")
			out.DoctorsError = loadMessage("doctors", err)
			return
		}
		out.Doctors = append(out.Doctors, list.Items...)
	}()

	wg.Wait()
	return out
}

// -- Doctors --

func (s *Service) ListDoctors(ctx context.Context, sess *session.Session, q DoctorQuery) (*upstream.List[Doctor], error) {
	return s.doctors.List(ctx, sess, q)
}

func (s *Service) GetDoctor(ctx context.Context, sess *session.Session, id int) (*Doctor, error) {
	return s.doctors.Get(ctx, sess, id)
}

func (s *Service) MyDoctor(ctx context.Context, sess *session.Session) (*Doctor, error) {
	return s.doctors.Me(ctx, sess)
}

func (s *Service) CreateDoctor(ctx context.Context, sess *session.Session, in *DoctorCreate) (*Doctor, error) {
	in.DisplayName = strings.TrimSpace(in.DisplayName)
	if in.UserID <= 0 {
		return nil, fmt.Errorf("%w: user_id is required", ErrInvalid)
	}
	if in.DisplayName == "" {
		return nil, fmt.Errorf("%w: display_name is required", ErrInvalid)
	}
	if !KnownSpecialty(in.Specialty) {
		return nil, fmt.Errorf("%w: unknown specialty %q", ErrInvalid, in.Specialty)
	}
	if in.SubSpecialty != nil && *in.SubSpecialty != "" && !KnownSubSpecialty(*in.SubSpecialty) {
		return nil, fmt.Errorf("%w: unknown sub_specialty %q", ErrInvalid, *in.SubSpecialty)
	}
	return s.doctors.Create(ctx, sess, in)
}

func (s *Service) UpdateDoctor(ctx context.Context, sess *session.Session, id int, in *DoctorUpdate) (*Doctor, error) {
	if in.Specialty != nil && !KnownSpecialty(*in.Specialty) {
		return nil, fmt.Errorf("%w: unknown specialty %q", ErrInvalid, *in.Specialty)
	}
	if in.SubSpecialty != nil && *in.SubSpecialty != "" && !KnownSubSpecialty(*in.SubSpecialty) {
		return nil, fmt.Errorf("%w: unknown sub_specialty %q", ErrInvalid, *in.SubSpecialty)
	}
	return s.doctors.Update(ctx, sess, id, in)
}

// DeactivateDoctor sets is_active=false.
func (s *Service) DeactivateDoctor(ctx context.Context, sess *session.Session, id int) (*Doctor, error) {
	inactive := false
	return s.doctors.Update(ctx, sess, id, &DoctorUpdate{IsActive: &inactive})
}
