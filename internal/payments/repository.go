package payments

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"trustline/portal-backend/internal/database"
)

type Repository interface {
	Create(ctx context.Context, tx *Transaction) error
	ExistsByProviderRef(ctx context.Context, provider, ref string) (bool, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Transaction, int64, error)
}

type gormRepository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) Create(ctx context.Context, tx *Transaction) error {
	return database.Conn(ctx, r.db).Create(tx).Error
}

func (r *gormRepository) ExistsByProviderRef(ctx context.Context, provider, ref string) (bool, error) {
	var count int64
	err := database.Conn(ctx, r.db).Model(&Transaction{}).
		Where("provider = ? AND provider_ref = ?", provider, ref).
		Count(&count).Error
	return count > 0, err
}

func (r *gormRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Transaction, int64, error) {
	var txs []Transaction
	var total int64

	query := database.Conn(ctx, r.db).Model(&Transaction{}).Where("user_id = ?", userID).Session(&gorm.Session{})
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&txs).Error; err != nil {
		return nil, 0, err
	}
	return txs, total, nil
}
