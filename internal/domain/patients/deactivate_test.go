package patients

import (
	"errors"
	"reflect"
	"testing"
)

func TestConfirmDeactivation(t *testing.T) {
	p := &Patient{FirstName: "Maria", LastName: "Johnson", MedicalRecordNumber: "MRN-0042"}

	tests := []struct {
		name  string
		typed DeactivationConfirm
		want  []string
	}{
		{"exact", DeactivationConfirm{"Maria", "Johnson", "MRN-0042"}, nil},
		{"case and whitespace", DeactivationConfirm{"  maria ", "JOHNSON", "mrn-0042\t"}, nil},
		{"wrong first", DeactivationConfirm{"Mario", "Johnson", "MRN-0042"}, []string{"first_name"}},
		{"wrong mrn", DeactivationConfirm{"Maria", "Johnson", "MRN-042"}, []string{"medical_record_number"}},
		{"empty", DeactivationConfirm{}, []string{"first_name", "last_name", "medical_record_number"}},
		{"swapped names", DeactivationConfirm{"Johnson", "Maria", "MRN-0042"}, []string{"first_name", "last_name"}},
		{"inner whitespace counts", DeactivationConfirm{"Ma ria", "Johnson", "MRN-0042"}, []string{"first_name"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ConfirmDeactivation(p, tt.typed)
			if tt.want == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var mm *MismatchError
			if !errors.As(err, &mm) {
				t.Fatalf("err = %v, want *MismatchError", err)
			}
			if !reflect.DeepEqual(mm.Fields, tt.want) {
				t.Errorf("Fields = %v, want %v", mm.Fields, tt.want)
			}
		})
	}
}
