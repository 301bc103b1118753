package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"trustline/portal-backend/internal/apperr"
)

type Service struct {
	repo     Repository
	feeCents int64
	currency string
	logger   *zap.Logger
}

func NewService(repo Repository, feeCents int64, currency string, logger *zap.Logger) *Service {
	return &Service{repo: repo, feeCents: feeCents, currency: strings.ToUpper(currency), logger: logger}
}

// Fee is the configured price of one verification.
func (s *Service) Fee() (int64, string) {
	return s.feeCents, s.currency
}

// RecordVerificationPayment stores a completed provider payment for the given
// request. The amount must match the configured fee and a provider reference
// can only be used once.
func (s *Service) RecordVerificationPayment(ctx context.Context, userID, requestID uuid.UUID, p Payment) (*Transaction, error) {
	f := apperr.Fields{}
	if strings.TrimSpace(p.Provider) == "" {
		f.Add("provider", "is required")
	}
	if strings.TrimSpace(p.ProviderRef) == "" {
		f.Add("provider_ref", "is required")
	}
	if p.AmountCents != s.feeCents {
		f.Add("amount_cents", fmt.Sprintf("must equal the verification fee of %d", s.feeCents))
	}
	if !strings.EqualFold(p.Currency, s.currency) {
		f.Add("currency", "must be "+s.currency)
	}
	if err := f.Err(); err != nil {
		return nil, err
	}

	used, err := s.repo.ExistsByProviderRef(ctx, p.Provider, p.ProviderRef)
	if err != nil {
		return nil, fmt.Errorf("failed to check provider reference: %w", err)
	}
	if used {
		return nil, apperr.Conflict("payment %s was already recorded", p.ProviderRef)
	}

	tx := &Transaction{
		ID:                    uuid.New(),
		UserID:                userID,
		VerificationRequestID: &requestID,
		AmountCents:           p.AmountCents,
		Currency:              s.currency,
		Status:                StatusCompleted,
		Provider:              p.Provider,
		ProviderRef:           p.ProviderRef,
	}
	if err := s.repo.Create(ctx, tx); err != nil {
		// A concurrent request recorded the same reference first.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperr.Conflict("payment %s was already recorded", p.ProviderRef)
		}
		return nil, fmt.Errorf("failed to record transaction: %w", err)
	}

	s.logger.Info("Verification payment recorded",
		zap.String("transaction_id", tx.ID.String()),
		zap.String("user_id", userID.String()),
		zap.Int64("amount_cents", tx.AmountCents))
	return tx, nil
}

func (s *Service) ListForUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Transaction, int64, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListByUser(ctx, userID, limit, offset)
}
