package payments

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"

	"trustline/portal-backend/internal/apperr"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Create(ctx context.Context, tx *Transaction) error {
	return m.Called(ctx, tx).Error(0)
}

func (m *MockRepository) ExistsByProviderRef(ctx context.Context, provider, ref string) (bool, error) {
	args := m.Called(ctx, provider, ref)
	return args.Bool(0), args.Error(1)
}

func (m *MockRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Transaction, int64, error) {
	args := m.Called(ctx, userID, limit, offset)
	return args.Get(0).([]Transaction), args.Get(1).(int64), args.Error(2)
}

func TestRecordVerificationPayment(t *testing.T) {
	repo := new(MockRepository)
	service := NewService(repo, 4900, "usd", zap.NewNop())
	ctx := context.Background()
	userID, requestID := uuid.New(), uuid.New()

	repo.On("ExistsByProviderRef", ctx, "stripe", "pi_1").Return(false, nil)
	repo.On("Create", ctx, mock.AnythingOfType("*payments.Transaction")).Return(nil)

	tx, err := service.RecordVerificationPayment(ctx, userID, requestID, Payment{
		Provider: "stripe", ProviderRef: "pi_1", AmountCents: 4900, Currency: "USD",
	})

	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, tx.Status)
	assert.Equal(t, "USD", tx.Currency)
	assert.Equal(t, requestID, *tx.VerificationRequestID)
}

func TestRecordVerificationPaymentWrongAmount(t *testing.T) {
	repo := new(MockRepository)
	service := NewService(repo, 4900, "USD", zap.NewNop())

	_, err := service.RecordVerificationPayment(context.Background(), uuid.New(), uuid.New(), Payment{
		Provider: "stripe", ProviderRef: "pi_2", AmountCents: 100, Currency: "EUR",
	})

	var ve *apperr.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Contains(t, ve.Fields, "amount_cents")
	assert.Contains(t, ve.Fields, "currency")
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestRecordVerificationPaymentReusedReference(t *testing.T) {
	repo := new(MockRepository)
	service := NewService(repo, 4900, "USD", zap.NewNop())
	ctx := context.Background()

	repo.On("ExistsByProviderRef", ctx, "stripe", "pi_3").Return(true, nil)

	_, err := service.RecordVerificationPayment(ctx, uuid.New(), uuid.New(), Payment{
		Provider: "stripe", ProviderRef: "pi_3", AmountCents: 4900, Currency: "USD",
	})

	assert.ErrorIs(t, err, apperr.ErrConflict)
}

func TestRecordVerificationPaymentDuplicateOnInsert(t *testing.T) {
	repo := new(MockRepository)
	service := NewService(repo, 4900, "USD", zap.NewNop())
	ctx := context.Background()

	repo.On("ExistsByProviderRef", ctx, "paypal", "ref_9").Return(false, nil)
	repo.On("Create", ctx, mock.AnythingOfType("*payments.Transaction")).Return(gorm.ErrDuplicatedKey)

	_, err := service.RecordVerificationPayment(ctx, uuid.New(), uuid.New(), Payment{
		Provider: "paypal", ProviderRef: "ref_9", AmountCents: 4900, Currency: "USD",
	})

	assert.ErrorIs(t, err, apperr.ErrConflict)
}

func TestProviderRefIndexIsPerProvider(t *testing.T) {
	s, err := schema.Parse(&Transaction{}, &sync.Map{}, schema.NamingStrategy{})
	require.NoError(t, err)

	var found *schema.Index
	for _, idx := range s.ParseIndexes() {
		if idx.Name == "idx_provider_ref" {
			found = idx
		}
	}
	require.NotNil(t, found)
	assert.Equal(t, "UNIQUE", found.Class)
	columns := make([]string, 0, len(found.Fields))
	for _, f := range found.Fields {
		columns = append(columns, f.DBName)
	}
	assert.Equal(t, []string{"provider", "provider_ref"}, columns)
}

func TestListForUserClampsLimit(t *testing.T) {
	repo := new(MockRepository)
	service := NewService(repo, 4900, "USD", zap.NewNop())
	ctx := context.Background()
	userID := uuid.New()

	repo.On("ListByUser", ctx, userID, 20, 0).Return([]Transaction{}, int64(0), nil)

	_, _, err := service.ListForUser(ctx, userID, 500, -3)

	require.NoError(t, err)
	repo.AssertExpectations(t)
}
