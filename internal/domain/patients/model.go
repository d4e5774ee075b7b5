package patients

import (
	"github.com/aioc/hospital-console/internal/platform/upstream"
)

type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderOther  Gender = "other"
)

func (g Gender) Valid() bool {
	return g == GenderMale || g == GenderFemale || g == GenderOther
}

// Patient is the management service's patient record. DateOfBirth is kept as
// the "YYYY-MM-DD" string the service stores.
type Patient struct {
	ID                  int           `json:"id"`
	MedicalRecordNumber string        `json:"medical_record_number"`
	FirstName           string        `json:"first_name"`
	LastName            string        `json:"last_name"`
	DateOfBirth         string        `json:"date_of_birth"`
	Gender              Gender        `json:"gender"`
	Email               *string       `json:"email"`
	Phone               *string       `json:"phone"`
	Address             *string       `json:"address"`
	Notes               *string       `json:"notes"`
	IsActive            bool          `json:"is_active"`
	CreatedAt           upstream.Time `json:"created_at"`
	UpdatedAt           upstream.Time `json:"updated_at"`
	CreatedByID         *int          `json:"created_by_id"`
}

// FullName is "First Last", the form the scheduling service uses for
// patient_name.
func (p *Patient) FullName() string {
	return p.FirstName + " " + p.LastName
}

type PatientCreate struct {
	MedicalRecordNumber string  `json:"medical_record_number"`
	FirstName           string  `json:"first_name"`
	LastName            string  `json:"last_name"`
	DateOfBirth         string  `json:"date_of_birth"`
	Gender              Gender  `json:"gender"`
	Email               *string `json:"email,omitempty"`
	Phone               *string `json:"phone,omitempty"`
	Address             *string `json:"address,omitempty"`
	Notes               *string `json:"notes,omitempty"`
}

type PatientUpdate struct {
	FirstName   *string `json:"first_name,omitempty"`
	LastName    *string `json:"last_name,omitempty"`
	DateOfBirth *string `json:"date_of_birth,omitempty"`
	Gender      *Gender `json:"gender,omitempty"`
	Email       *string `json:"email,omitempty"`
	Phone       *string `json:"phone,omitempty"`
	Address     *string `json:"address,omitempty"`
	Notes       *string `json:"notes,omitempty"`
	IsActive    *bool   `json:"is_active,omitempty"`
}

// ListQuery filters the patient list. Search matches first name, last name
// or MRN on the service side.
type ListQuery struct {
	Search string
	Active *bool
	Skip   int
	Limit  int
}
