package users

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"trustline/portal-backend/internal/database"
)

type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	// GetForUpdate locks the user row until the surrounding transaction ends.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*User, error)
	GetBySubject(ctx context.Context, subject string) (*User, error)
	Create(ctx context.Context, user *User) error
	Update(ctx context.Context, user *User) error
	UpdateTrustScore(ctx context.Context, id uuid.UUID, score int) error
	ListIDs(ctx context.Context, after uuid.UUID, limit int) ([]uuid.UUID, error)
	ListAdmins(ctx context.Context) ([]User, error)
}

type gormRepository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

// GetByID returns nil, nil when the user does not exist.
func (r *gormRepository) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return r.first(database.Conn(ctx, r.db), id)
}

func (r *gormRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*User, error) {
	return r.first(database.Conn(ctx, r.db).Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func (r *gormRepository) first(db *gorm.DB, id uuid.UUID) (*User, error) {
	var user User
	err := db.First(&user, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *gormRepository) GetBySubject(ctx context.Context, subject string) (*User, error) {
	var user User
	err := database.Conn(ctx, r.db).First(&user, "auth_subject = ?", subject).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *gormRepository) Create(ctx context.Context, user *User) error {
	return database.Conn(ctx, r.db).Create(user).Error
}

func (r *gormRepository) Update(ctx context.Context, user *User) error {
	return database.Conn(ctx, r.db).Save(user).Error
}

func (r *gormRepository) UpdateTrustScore(ctx context.Context, id uuid.UUID, score int) error {
	res := database.Conn(ctx, r.db).Model(&User{}).Where("id = ?", id).Update("trust_score", score)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ListIDs pages through user ids in id order, starting after the given id.
func (r *gormRepository) ListIDs(ctx context.Context, after uuid.UUID, limit int) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := database.Conn(ctx, r.db).Model(&User{}).
		Where("id > ?", after).
		Order("id ASC").
		Limit(limit).
		Pluck("id", &ids).Error
	return ids, err
}

func (r *gormRepository) ListAdmins(ctx context.Context) ([]User, error) {
	var admins []User
	err := database.Conn(ctx, r.db).Where("role = ?", RoleAdmin).Find(&admins).Error
	return admins, err
}
