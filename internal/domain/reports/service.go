package reports

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/aioc/hospital-console/internal/domain/scheduling"
	"github.com/aioc/hospital-console/internal/platform/session"
	"github.com/aioc/hospital-console/internal/platform/upstream"
)

const MaxLimit = 100

var ErrInvalid = errors.New("invalid report")

type Service struct {
	repo   Repository
	logger zerolog.Logger
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

func checkReferral(s *string) error {
	if s != nil && *s != "" && !scheduling.KnownSpecialty(*s) {
		return fmt.Errorf("%w: unknown referral_specialty %q", ErrInvalid, *s)
	}
	return nil
}

func (s *Service) List(ctx context.Context, sess *session.Session, patientID, skip, limit int) (*upstream.List[Report], error) {
	if limit <= 0 || limit > MaxLimit {
		limit = MaxLimit
	}
	return s.repo.List(ctx, sess, patientID, skip, limit)
}

func (s *Service) Create(ctx context.Context, sess *session.Session, patientID int, in *ReportCreate) (*Report, error) {
	if strings.TrimSpace(in.Content) == "" {
		return nil, fmt.Errorf("%w: content is required", ErrInvalid)
	}
	if err := checkReferral(in.ReferralSpecialty); err != nil {
		return nil, err
	}
	r, err := s.repo.Create(ctx, sess, patientID, in)
	if err != nil {
		return nil, err
	}
	s.logger.Info().Int("report_id", r.ID).Int("patient_id", patientID).Msg("report created")
	return r, nil
}

func (s *Service) Get(ctx context.Context, sess *session.Session, patientID, reportID int) (*Report, error) {
	return s.repo.Get(ctx, sess, patientID, reportID)
}

func (s *Service) Update(ctx context.Context, sess *session.Session, patientID, reportID int, in *ReportUpdate) (*Report, error) {
	if in.Content != nil && strings.TrimSpace(*in.Content) == "" {
		return nil, fmt.Errorf("%w: content cannot be empty", ErrInvalid)
	}
	if err := checkReferral(in.ReferralSpecialty); err != nil {
		return nil, err
	}
	return s.repo.Update(ctx, sess, patientID, reportID, in)
}

func (s *Service) Delete(ctx context.Context, sess *session.Session, patientID, reportID int) error {
	if err := s.repo.Delete(ctx, sess, patientID, reportID); err != nil {
		return err
	}
	s.logger.Info().Int("report_id", reportID).Int("patient_id", patientID).Msg("report deleted")
	return nil
}

func (s *Service) PDF(ctx context.Context, sess *session.Session, patientID, reportID int) (*PDF, error) {
	return s.repo.PDF(ctx, sess, patientID, reportID)
}
