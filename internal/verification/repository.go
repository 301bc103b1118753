package verification

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"trustline/portal-backend/internal/database"
)

type Repository interface {
	Create(ctx context.Context, req *Request) error
	Save(ctx context.Context, req *Request) error
	GetForUpdate(ctx context.Context, id uuid.UUID) (*Request, error)
	// Latest returns the most recently created request of a certification.
	Latest(ctx context.Context, certificationID uuid.UUID) (*Request, error)
	// LatestOpenForUpdate locks the most recent QUEUED or IN_REVIEW request.
	LatestOpenForUpdate(ctx context.Context, certificationID uuid.UUID) (*Request, error)
	Queue(ctx context.Context, filter QueueFilter, urgentBefore time.Time) ([]QueueEntry, int64, error)
	CountOpenBefore(ctx context.Context, before time.Time) (int64, error)
}

type gormRepository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) Create(ctx context.Context, req *Request) error {
	return database.Conn(ctx, r.db).Create(req).Error
}

func (r *gormRepository) Save(ctx context.Context, req *Request) error {
	return database.Conn(ctx, r.db).Save(req).Error
}

func (r *gormRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*Request, error) {
	var req Request
	err := database.Conn(ctx, r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&req, "id = ?", id).Error
	return found(&req, err)
}

func (r *gormRepository) Latest(ctx context.Context, certificationID uuid.UUID) (*Request, error) {
	var req Request
	err := database.Conn(ctx, r.db).
		Where("certification_id = ?", certificationID).
		Order("created_at DESC, id DESC").
		Take(&req).Error
	return found(&req, err)
}

func (r *gormRepository) LatestOpenForUpdate(ctx context.Context, certificationID uuid.UUID) (*Request, error) {
	var req Request
	err := database.Conn(ctx, r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("certification_id = ? AND status IN ?", certificationID, OpenStatuses).
		Order("created_at DESC, id DESC").
		Take(&req).Error
	return found(&req, err)
}

// Queue lists open requests oldest first, skipping withdrawn certifications.
func (r *gormRepository) Queue(ctx context.Context, filter QueueFilter, urgentBefore time.Time) ([]QueueEntry, int64, error) {
	statuses := OpenStatuses
	if filter.Status != "" {
		statuses = []RequestStatus{filter.Status}
	}

	query := database.Conn(ctx, r.db).
		Table("verification_requests AS vr").
		Joins("JOIN certifications c ON c.id = vr.certification_id AND c.deleted_at IS NULL").
		Joins("JOIN users u ON u.id = vr.user_id").
		Where("vr.status IN ?", statuses)
	if filter.UrgentOnly {
		query = query.Where("vr.created_at < ?", urgentBefore)
	}
	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var entries []QueueEntry
	err := query.
		Select("vr.*, c.name AS certification_name, c.issuing_organization, " +
			"u.first_name AS owner_first_name, u.last_name AS owner_last_name, u.email AS owner_email").
		Order("vr.created_at ASC, vr.id ASC").
		Limit(filter.Limit).
		Offset(filter.Offset).
		Scan(&entries).Error
	return entries, total, err
}

func (r *gormRepository) CountOpenBefore(ctx context.Context, before time.Time) (int64, error) {
	var n int64
	err := database.Conn(ctx, r.db).Model(&Request{}).
		Where("status IN ? AND created_at < ?", OpenStatuses, before).
		Count(&n).Error
	return n, err
}

func found(req *Request, err error) (*Request, error) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return req, nil
}
