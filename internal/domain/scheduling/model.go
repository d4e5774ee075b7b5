package scheduling

import (
	"slices"

	"github.com/aioc/hospital-console/internal/platform/upstream"
)

// Status is the lifecycle state of an appointment.
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusNoShow    Status = "no_show"
)

// Statuses lists the known statuses in display order.
var Statuses = []Status{StatusScheduled, StatusCompleted, StatusCancelled, StatusNoShow}

// Known reports whether s is one of the four statuses the scheduling service
// defines.
func (s Status) Known() bool {
	switch s {
	case StatusScheduled, StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

// Appointment is the scheduling service's appointment record. PatientName and
// DoctorDisplayName are only populated by the calendar and recent queries.
type Appointment struct {
	ID                int           `json:"id"`
	PatientID         int           `json:"patient_id"`
	DoctorID          int           `json:"doctor_id"`
	ScheduledAt       upstream.Time `json:"scheduled_at"`
	DurationMinutes   int           `json:"duration_minutes"`
	Status            Status        `json:"status"`
	Notes             *string       `json:"notes"`
	CreatedAt         upstream.Time `json:"created_at"`
	UpdatedAt         upstream.Time `json:"updated_at"`
	CreatedByID       *int          `json:"created_by_id"`
	PatientName       *string       `json:"patient_name,omitempty"`
	DoctorDisplayName *string       `json:"doctor_display_name,omitempty"`
}

// AppointmentCreate is the body of POST /api/appointments. ScheduledAt is
// RFC 3339.
type AppointmentCreate struct {
	PatientID       int     `json:"patient_id"`
	DoctorID        int     `json:"doctor_id"`
	ScheduledAt     string  `json:"scheduled_at"`
	DurationMinutes int     `json:"duration_minutes"`
	Notes           *string `json:"notes,omitempty"`
}

type AppointmentUpdate struct {
	ScheduledAt     *string `json:"scheduled_at,omitempty"`
	DurationMinutes *int    `json:"duration_minutes,omitempty"`
	Status          *Status `json:"status,omitempty"`
	Notes           *string `json:"notes,omitempty"`
}

type Doctor struct {
	ID           int           `json:"id"`
	UserID       int           `json:"user_id"`
	DisplayName  string        `json:"display_name"`
	Specialty    *string       `json:"specialty"`
	SubSpecialty *string       `json:"sub_specialty"`
	IsActive     bool          `json:"is_active"`
	CreatedAt    upstream.Time `json:"created_at"`
}

type DoctorCreate struct {
	UserID       int     `json:"user_id"`
	DisplayName  string  `json:"display_name"`
	Specialty    string  `json:"specialty"`
	SubSpecialty *string `json:"sub_specialty,omitempty"`
}

type DoctorUpdate struct {
	DisplayName  *string `json:"display_name,omitempty"`
	Specialty    *string `json:"specialty,omitempty"`
	SubSpecialty *string `json:"sub_specialty,omitempty"`
	IsActive     *bool   `json:"is_active,omitempty"`
}

// Specialties is the list offered when adding a doctor and when choosing a
// report referral.
var Specialties = []string{
	"Anesthesiology", "Cardiology", "Dermatology", "Emergency Medicine", "Endocrinology",
	"Family Medicine", "Gastroenterology", "General Practice", "General Surgery",
	"Infectious Disease", "Internal Medicine", "Nephrology", "Neurology",
	"Obstetrics and Gynecology", "Oncology", "Ophthalmology", "Orthopedics",
	"Otolaryngology (ENT)", "Pathology", "Pediatrics", "Psychiatry", "Pulmonology",
	"Radiology", "Rheumatology", "Urology",
}

var SubSpecialties = []string{
	"Allergy and Immunology", "Cardiothoracic Surgery", "Child and Adolescent Psychiatry",
	"Clinical Neurophysiology", "Critical Care Medicine", "Geriatrics", "Interventional Cardiology",
	"Neonatology", "Palliative Care", "Pediatric Cardiology", "Pediatric Surgery",
	"Plastic Surgery", "Sleep Medicine", "Sports Medicine", "Vascular Surgery",
}

// KnownSpecialty reports whether s is in Specialties.
func KnownSpecialty(s string) bool { return slices.Contains(Specialties, s) }

// KnownSubSpecialty reports whether s is in SubSpecialties.
func KnownSubSpecialty(s string) bool { return slices.Contains(SubSpecialties, s) }
