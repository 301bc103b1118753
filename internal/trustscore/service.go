package trustscore

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"trustline/portal-backend/internal/credentials"
	"trustline/portal-backend/internal/database"
	"trustline/portal-backend/internal/users"
)

// CredentialReader loads the statuses of a user's live credential records.
type CredentialReader interface {
	Statuses(ctx context.Context, userID uuid.UUID) (*credentials.StatusSet, error)
}

// UserStore reads the profile and stores the cached score. LockProfile
// serializes score writers for one user.
type UserStore interface {
	GetProfile(ctx context.Context, id uuid.UUID) (*users.User, error)
	LockProfile(ctx context.Context, id uuid.UUID) (*users.User, error)
	SetTrustScore(ctx context.Context, id uuid.UUID, score int) error
}

type Service struct {
	creds  CredentialReader
	users  UserStore
	tx     database.Transactor
	logger *zap.Logger
}

func NewService(creds CredentialReader, users UserStore, tx database.Transactor, logger *zap.Logger) *Service {
	return &Service{creds: creds, users: users, tx: tx, logger: logger}
}

// Calculate computes the breakdown without side effects.
func (s *Service) Calculate(ctx context.Context, userID uuid.UUID) (Breakdown, error) {
	if _, err := s.users.GetProfile(ctx, userID); err != nil {
		return Breakdown{}, err
	}
	set, err := s.creds.Statuses(ctx, userID)
	if err != nil {
		return Breakdown{}, fmt.Errorf("failed to load credential statuses: %w", err)
	}
	return Calculate(*set), nil
}

// Update computes the breakdown and stores the total on the user. Called
// inside a transaction it joins it. The user row is locked before the
// statuses are read, always after any credential row lock.
func (s *Service) Update(ctx context.Context, userID uuid.UUID) (Breakdown, error) {
	var b Breakdown
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		b, _, err = s.recompute(ctx, userID)
		if err != nil {
			return err
		}
		return s.users.SetTrustScore(ctx, userID, b.TotalScore)
	})
	if err != nil {
		return Breakdown{}, err
	}
	s.logger.Debug("Trust score updated",
		zap.String("user_id", userID.String()),
		zap.Int("score", b.TotalScore),
		zap.String("level", string(b.Level)))
	return b, nil
}

// Refresh is Update without the breakdown.
func (s *Service) Refresh(ctx context.Context, userID uuid.UUID) error {
	_, err := s.Update(ctx, userID)
	return err
}

// Reconcile recomputes every user's score in id order, batch at a time, and
// returns how many cached values were corrected.
func (s *Service) Reconcile(ctx context.Context, lister UserLister, batch int) (int, error) {
	corrected := 0
	after := uuid.Nil
	for {
		ids, err := lister.ListIDs(ctx, after, batch)
		if err != nil {
			return corrected, fmt.Errorf("failed to list users: %w", err)
		}
		for _, id := range ids {
			if err := ctx.Err(); err != nil {
				return corrected, err
			}
			fixed, err := s.reconcileOne(ctx, id)
			if err != nil {
				s.logger.Warn("Failed to reconcile trust score", zap.String("user_id", id.String()), zap.Error(err))
				continue
			}
			if fixed {
				corrected++
			}
		}
		if len(ids) < batch {
			return corrected, nil
		}
		after = ids[len(ids)-1]
	}
}

// reconcileOne rewrites one user's cached score when it drifted.
func (s *Service) reconcileOne(ctx context.Context, id uuid.UUID) (bool, error) {
	fixed := false
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		b, cached, err := s.recompute(ctx, id)
		if err != nil {
			return err
		}
		if b.TotalScore == cached {
			return nil
		}
		if err := s.users.SetTrustScore(ctx, id, b.TotalScore); err != nil {
			return err
		}
		fixed = true
		return nil
	})
	return fixed, err
}

// recompute locks the user row and scores the current statuses. It returns
// the cached score alongside.
func (s *Service) recompute(ctx context.Context, userID uuid.UUID) (Breakdown, int, error) {
	user, err := s.users.LockProfile(ctx, userID)
	if err != nil {
		return Breakdown{}, 0, err
	}
	set, err := s.creds.Statuses(ctx, userID)
	if err != nil {
		return Breakdown{}, 0, fmt.Errorf("failed to load credential statuses: %w", err)
	}
	return Calculate(*set), user.TrustScore, nil
}

// UserLister pages through user ids.
type UserLister interface {
	ListIDs(ctx context.Context, after uuid.UUID, limit int) ([]uuid.UUID, error)
}
