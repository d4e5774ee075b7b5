package patients

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aioc/hospital-console/internal/platform/session"
	"github.com/aioc/hospital-console/internal/platform/upstream"
)

var ErrInvalid = errors.New("invalid patient")

type Service struct {
	repo   Repository
	logger zerolog.Logger
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

func (s *Service) List(ctx context.Context, sess *session.Session, q ListQuery) (*upstream.List[Patient], error) {
	return s.repo.List(ctx, sess, q)
}

func (s *Service) Get(ctx context.Context, sess *session.Session, id int) (*Patient, error) {
	return s.repo.Get(ctx, sess, id)
}

func validDate(s string) bool {
	_, err := time.Parse("2006-01-02", s)
	return err == nil
}

func (s *Service) Create(ctx context.Context, sess *session.Session, in *PatientCreate) (*Patient, error) {
	in.MedicalRecordNumber = strings.TrimSpace(in.MedicalRecordNumber)
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	switch {
	case in.MedicalRecordNumber == "":
		return nil, fmt.Errorf("%w: medical_record_number is required", ErrInvalid)
	case in.FirstName == "":
		return nil, fmt.Errorf("%w: first_name is required", ErrInvalid)
	case in.LastName == "":
		return nil, fmt.Errorf("%w: last_name is required", ErrInvalid)
	case !validDate(in.DateOfBirth):
		return nil, fmt.Errorf("%w: date_of_birth must be YYYY-MM-DD", ErrInvalid)
	case !in.Gender.Valid():
		return nil, fmt.Errorf("%w: gender must be male, female or other", ErrInvalid)
	}
	return s.repo.Create(ctx, sess, in)
}

func (s *Service) Update(ctx context.Context, sess *session.Session, id int, in *PatientUpdate) (*Patient, error) {
	if in.DateOfBirth != nil && !validDate(*in.DateOfBirth) {
		return nil, fmt.Errorf("%w: date_of_birth must be YYYY-MM-DD", ErrInvalid)
	}
	if in.Gender != nil && !in.Gender.Valid() {
		return nil, fmt.Errorf("%w: gender must be male, female or other", ErrInvalid)
	}
	return s.repo.Update(ctx, sess, id, in)
}

// Deactivate loads the patient, checks the retyped confirmation and only
// then asks the management service to deactivate.
func (s *Service) Deactivate(ctx context.Context, sess *session.Session, id int, typed DeactivationConfirm) error {
	p, err := s.repo.Get(ctx, sess, id)
	if err != nil {
		return err
	}
	if err := ConfirmDeactivation(p, typed); err != nil {
		s.logger.Info().Int("patient_id", id).Err(err).Msg("deactivation confirmation rejected")
		return err
	}
	if err := s.repo.Deactivate(ctx, sess, id); err != nil {
		return err
	}
	s.logger.Info().Int("patient_id", id).Msg("patient deactivated")
	return nil
}
