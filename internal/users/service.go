package users

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
	"trustline/portal-backend/internal/auth"
	"trustline/portal-backend/internal/database"
)

// ProfileIndexer keeps the searchable copy of a profile in sync.
type ProfileIndexer interface {
	IndexProfile(ctx context.Context, user *User) error
}

type Service struct {
	repo    Repository
	indexer ProfileIndexer
	logger  *zap.Logger
}

func NewService(repo Repository, indexer ProfileIndexer, logger *zap.Logger) *Service {
	return &Service{repo: repo, indexer: indexer, logger: logger}
}

// EnsureFromIdentity returns the local user for an authenticated identity,
// creating it on first sight and refreshing email/role when they change.
func (s *Service) EnsureFromIdentity(ctx context.Context, id auth.Identity) (*User, error) {
	if id.Subject == "" {
		return nil, apperr.Validation("sub", "is required")
	}
	role := RoleMember
	if id.Role == auth.RoleAdmin {
		role = RoleAdmin
	}

	user, err := s.repo.GetBySubject(ctx, id.Subject)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	if user == nil {
		user = &User{
			AuthSubject:        id.Subject,
			Email:              strings.ToLower(id.Email),
			Role:               role,
			EmailNotifications: true,
		}
		if err := s.repo.Create(ctx, user); err != nil {
			// Lost a race with a concurrent first request for the same subject.
			existing, getErr := s.repo.GetBySubject(ctx, id.Subject)
			if getErr != nil || existing == nil {
				return nil, fmt.Errorf("failed to create user: %w", err)
			}
			return existing, nil
		}
		s.logger.Info("User provisioned",
			zap.String("user_id", user.ID.String()),
			zap.String("role", string(user.Role)))
		s.index(ctx, user)
		return user, nil
	}

	email := strings.ToLower(id.Email)
	if user.Email != email || user.Role != role {
		user.Email = email
		user.Role = role
		if err := s.repo.Update(ctx, user); err != nil {
			return nil, fmt.Errorf("failed to refresh identity: %w", err)
		}
	}
	return user, nil
}

// Resolve satisfies auth.UserResolver.
func (s *Service) Resolve(ctx context.Context, id auth.Identity) (*auth.Principal, error) {
	user, err := s.EnsureFromIdentity(ctx, id)
	if err != nil {
		return nil, err
	}
	return &auth.Principal{UserID: user.ID, Email: user.Email, Role: string(user.Role)}, nil
}

func (s *Service) GetProfile(ctx context.Context, id uuid.UUID) (*User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if user == nil {
		return nil, apperr.NotFound("user")
	}
	return user, nil
}

// LockProfile loads the user and holds its row lock until the caller's
// transaction ends. Score writers take it after any credential lock.
func (s *Service) LockProfile(ctx context.Context, id uuid.UUID) (*User, error) {
	user, err := s.repo.GetForUpdate(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to lock user: %w", err)
	}
	if user == nil {
		return nil, apperr.NotFound("user")
	}
	return user, nil
}

func (s *Service) UpdateProfile(ctx context.Context, id uuid.UUID, req UpdateProfileRequest) (*User, error) {
	user, err := s.GetProfile(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.FirstName != nil {
		user.FirstName = strings.TrimSpace(*req.FirstName)
	}
	if req.LastName != nil {
		user.LastName = strings.TrimSpace(*req.LastName)
	}
	if req.Phone != nil {
		user.Phone = strings.TrimSpace(*req.Phone)
	}
	if req.Headline != nil {
		user.Headline = strings.TrimSpace(*req.Headline)
	}
	if req.Location != nil {
		user.Location = strings.TrimSpace(*req.Location)
	}
	if req.Industry != nil {
		user.Industry = strings.TrimSpace(*req.Industry)
	}
	if req.AvatarURL != nil {
		user.AvatarURL = *req.AvatarURL
	}
	if req.EmailNotifications != nil {
		user.EmailNotifications = *req.EmailNotifications
	}
	if req.SMSNotifications != nil {
		user.SMSNotifications = *req.SMSNotifications
	}
	if user.SMSNotifications && user.Phone == "" {
		return nil, apperr.Validation("sms_notifications", "requires a phone number")
	}

	user.UpdatedAt = time.Now()
	if err := s.repo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}

	s.index(ctx, user)
	return user, nil
}

// SetTrustScore persists a freshly computed score onto the cached column.
// The search copy is refreshed once the caller's transaction commits.
func (s *Service) SetTrustScore(ctx context.Context, id uuid.UUID, score int) error {
	if err := s.repo.UpdateTrustScore(ctx, id, score); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("user")
		}
		return fmt.Errorf("failed to store trust score: %w", err)
	}

	if s.indexer != nil {
		database.AfterCommit(ctx, func(ctx context.Context) { s.reindex(ctx, id) })
	}
	return nil
}

func (s *Service) reindex(ctx context.Context, id uuid.UUID) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil || user == nil {
		s.logger.Warn("Failed to reload profile for indexing", zap.Error(err), zap.String("user_id", id.String()))
		return
	}
	s.index(ctx, user)
}

func (s *Service) ListAdmins(ctx context.Context) ([]User, error) {
	return s.repo.ListAdmins(ctx)
}

func (s *Service) ListIDs(ctx context.Context, after uuid.UUID, limit int) ([]uuid.UUID, error) {
	return s.repo.ListIDs(ctx, after, limit)
}

func (s *Service) index(ctx context.Context, user *User) {
	if s.indexer == nil {
		return
	}
	if err := s.indexer.IndexProfile(ctx, user); err != nil {
		s.logger.Warn("Failed to index profile", zap.Error(err), zap.String("user_id", user.ID.String()))
	}
}
