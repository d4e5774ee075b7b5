package patients

import (
	"fmt"
	"strings"
)

// DeactivationConfirm is what the operator retyped to confirm deactivation.
type DeactivationConfirm struct {
	FirstName           string `json:"first_name"`
	LastName            string `json:"last_name"`
	MedicalRecordNumber string `json:"medical_record_number"`
}

// MismatchError lists the confirmation fields that did not match the record.
type MismatchError struct {
	Fields []string
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("confirmation does not match patient record: %s", strings.Join(e.Fields, ", "))
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ConfirmDeactivation checks each retyped field against p after trimming and
// lowercasing both sides. It returns a *MismatchError naming every field that
// differs.
func ConfirmDeactivation(p *Patient, typed DeactivationConfirm) error {
	var bad []string
	if normalize(typed.FirstName) != normalize(p.FirstName) {
		bad = append(bad, "first_name")
	}
	if normalize(typed.LastName) != normalize(p.LastName) {
		bad = append(bad, "last_name")
	}
	if normalize(typed.MedicalRecordNumber) != normalize(p.MedicalRecordNumber) {
		bad = append(bad, "medical_record_number")
	}
	if len(bad) > 0 {
		return &MismatchError{Fields: bad}
	}
	return nil
}
