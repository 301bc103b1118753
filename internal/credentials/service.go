package credentials

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"trustline/portal-backend/internal/apperr"
	"trustline/portal-backend/internal/database"
)

// ScoreRefresher recomputes and stores a user's trust score.
type ScoreRefresher interface {
	Refresh(ctx context.Context, userID uuid.UUID) error
}

type Service struct {
	repo   Repository
	tx     database.Transactor
	scores ScoreRefresher
	logger *zap.Logger
	now    func() time.Time
}

func NewService(repo Repository, tx database.Transactor, scores ScoreRefresher, logger *zap.Logger) *Service {
	return &Service{repo: repo, tx: tx, scores: scores, logger: logger, now: time.Now}
}

func (s *Service) Portfolio(ctx context.Context, userID uuid.UUID) (*Portfolio, error) {
	p, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list credentials: %w", err)
	}
	return p, nil
}

// Get returns a live record of any kind.
func (s *Service) Get(ctx context.Context, kind Kind, id uuid.UUID) (*Record, error) {
	rec, err := s.repo.Get(ctx, kind, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", kind, err)
	}
	if rec == nil {
		return nil, apperr.NotFound(string(kind))
	}
	return rec, nil
}

func (s *Service) AddExperience(ctx context.Context, userID uuid.UUID, in ExperienceInput) (*Experience, error) {
	if err := s.validateExperience(in); err != nil {
		return nil, err
	}
	exp := &Experience{UserID: userID, Verification: Verification{Status: StatusPending}}
	applyExperience(exp, in)
	if err := s.repo.Create(ctx, ExperienceRecord(exp)); err != nil {
		return nil, fmt.Errorf("failed to create experience: %w", err)
	}
	return exp, nil
}

func (s *Service) AddEducation(ctx context.Context, userID uuid.UUID, in EducationInput) (*Education, error) {
	if err := s.validateEducation(in); err != nil {
		return nil, err
	}
	edu := &Education{UserID: userID, Verification: Verification{Status: StatusPending}}
	applyEducation(edu, in)
	if err := s.repo.Create(ctx, EducationRecord(edu)); err != nil {
		return nil, fmt.Errorf("failed to create education: %w", err)
	}
	return edu, nil
}

func (s *Service) UpdateExperience(ctx context.Context, userID, id uuid.UUID, in ExperienceInput) (*Experience, error) {
	if err := s.validateExperience(in); err != nil {
		return nil, err
	}
	rec, err := s.edit(ctx, userID, KindExperience, id, func(rec *Record) {
		applyExperience(rec.Experience, in)
	})
	if err != nil {
		return nil, err
	}
	return rec.Experience, nil
}

func (s *Service) UpdateEducation(ctx context.Context, userID, id uuid.UUID, in EducationInput) (*Education, error) {
	if err := s.validateEducation(in); err != nil {
		return nil, err
	}
	rec, err := s.edit(ctx, userID, KindEducation, id, func(rec *Record) {
		applyEducation(rec.Education, in)
	})
	if err != nil {
		return nil, err
	}
	return rec.Education, nil
}

// Withdraw soft deletes one of the caller's records and recomputes the score
// in the same transaction. Certifications are withdrawn through verification
// so their open request is settled too.
func (s *Service) Withdraw(ctx context.Context, userID uuid.UUID, kind Kind, id uuid.UUID) error {
	if kind == KindCertification {
		return apperr.Validation("kind", "certifications are withdrawn through verification")
	}
	return s.tx.InTx(ctx, func(ctx context.Context) error {
		rec, err := s.repo.GetForUpdate(ctx, kind, id)
		if err != nil {
			return fmt.Errorf("failed to load %s: %w", kind, err)
		}
		if rec == nil {
			return apperr.NotFound(string(kind))
		}
		if rec.OwnerID() != userID {
			return apperr.Forbidden("%s belongs to another user", kind)
		}
		if err := s.repo.Delete(ctx, kind, id); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound(string(kind))
			}
			return fmt.Errorf("failed to delete %s: %w", kind, err)
		}
		if err := s.scores.Refresh(ctx, userID); err != nil {
			return fmt.Errorf("failed to refresh trust score: %w", err)
		}
		s.logger.Info("Credential withdrawn",
			zap.String("kind", string(kind)),
			zap.String("id", id.String()),
			zap.String("user_id", userID.String()))
		return nil
	})
}

// edit locks a record the caller owns, checks it is still PENDING and
// saves the changes apply makes. A decision committed first wins.
func (s *Service) edit(ctx context.Context, userID uuid.UUID, kind Kind, id uuid.UUID, apply func(*Record)) (*Record, error) {
	var rec *Record
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		rec, err = s.repo.GetForUpdate(ctx, kind, id)
		if err != nil {
			return fmt.Errorf("failed to load %s: %w", kind, err)
		}
		if rec == nil {
			return apperr.NotFound(string(kind))
		}
		if rec.OwnerID() != userID {
			return apperr.Forbidden("%s belongs to another user", kind)
		}
		if st := rec.State().Status; st != StatusPending {
			return apperr.Conflict("%s is %s and can no longer be edited", kind, st)
		}
		apply(rec)
		if err := s.repo.SaveDetails(ctx, rec); err != nil {
			return fmt.Errorf("failed to update %s: %w", kind, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *Service) validateExperience(in ExperienceInput) error {
	f := apperr.Fields{}
	if strings.TrimSpace(in.Company) == "" {
		f.Add("company", "is required")
	}
	if strings.TrimSpace(in.Title) == "" {
		f.Add("title", "is required")
	}
	s.checkDates(f, in.StartDate, in.EndDate)
	if in.Current && in.EndDate != nil {
		f.Add("end_date", "must be empty for a current position")
	}
	return f.Err()
}

func (s *Service) validateEducation(in EducationInput) error {
	f := apperr.Fields{}
	if strings.TrimSpace(in.Institution) == "" {
		f.Add("institution", "is required")
	}
	if strings.TrimSpace(in.Degree) == "" {
		f.Add("degree", "is required")
	}
	s.checkDates(f, in.StartDate, in.EndDate)
	return f.Err()
}

func (s *Service) checkDates(f apperr.Fields, start time.Time, end *time.Time) {
	if start.IsZero() {
		f.Add("start_date", "is required")
		return
	}
	if start.After(s.now()) {
		f.Add("start_date", "must not be in the future")
	}
	if end != nil && end.Before(start) {
		f.Add("end_date", "must not be before start_date")
	}
}

func applyExperience(e *Experience, in ExperienceInput) {
	e.Company = strings.TrimSpace(in.Company)
	e.Title = strings.TrimSpace(in.Title)
	e.Location = strings.TrimSpace(in.Location)
	e.StartDate = in.StartDate
	e.EndDate = in.EndDate
	e.Current = in.Current
	e.Description = strings.TrimSpace(in.Description)
}

func applyEducation(e *Education, in EducationInput) {
	e.Institution = strings.TrimSpace(in.Institution)
	e.Degree = strings.TrimSpace(in.Degree)
	e.FieldOfStudy = strings.TrimSpace(in.FieldOfStudy)
	e.StartDate = in.StartDate
	e.EndDate = in.EndDate
	e.Grade = strings.TrimSpace(in.Grade)
}
