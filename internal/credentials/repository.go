package credentials

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"trustline/portal-backend/internal/database"
)

type Repository interface {
	Create(ctx context.Context, rec *Record) error
	Get(ctx context.Context, kind Kind, id uuid.UUID) (*Record, error)
	// GetForUpdate locks the row until the surrounding transaction ends.
	GetForUpdate(ctx context.Context, kind Kind, id uuid.UUID) (*Record, error)
	Save(ctx context.Context, rec *Record) error
	// SaveDetails writes the owner-editable columns and leaves the
	// verification state untouched.
	SaveDetails(ctx context.Context, rec *Record) error
	Delete(ctx context.Context, kind Kind, id uuid.UUID) error
	ListByUser(ctx context.Context, userID uuid.UUID) (*Portfolio, error)
	Statuses(ctx context.Context, userID uuid.UUID) (*StatusSet, error)
}

type gormRepository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

// Models lists the tables owned by this package for migration.
func Models() []any {
	return []any{&Experience{}, &Education{}, &Certification{}}
}

func (r *gormRepository) Create(ctx context.Context, rec *Record) error {
	return database.Conn(ctx, r.db).Create(rec.model()).Error
}

// Get returns nil, nil when the record does not exist or was withdrawn.
func (r *gormRepository) Get(ctx context.Context, kind Kind, id uuid.UUID) (*Record, error) {
	return r.load(database.Conn(ctx, r.db), kind, id)
}

func (r *gormRepository) GetForUpdate(ctx context.Context, kind Kind, id uuid.UUID) (*Record, error) {
	return r.load(database.Conn(ctx, r.db).Clauses(clause.Locking{Strength: "UPDATE"}), kind, id)
}

func (r *gormRepository) load(db *gorm.DB, kind Kind, id uuid.UUID) (*Record, error) {
	rec := newRecord(kind)
	if rec == nil {
		return nil, nil
	}
	err := db.First(rec.model(), "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (r *gormRepository) Save(ctx context.Context, rec *Record) error {
	return database.Conn(ctx, r.db).Save(rec.model()).Error
}

func (r *gormRepository) SaveDetails(ctx context.Context, rec *Record) error {
	return database.Conn(ctx, r.db).Omit(verificationColumns...).Save(rec.model()).Error
}

var verificationColumns = []string{"status", "rejection_reason", "decided_at", "decided_by"}

func (r *gormRepository) Delete(ctx context.Context, kind Kind, id uuid.UUID) error {
	rec := newRecord(kind)
	if rec == nil {
		return gorm.ErrRecordNotFound
	}
	res := database.Conn(ctx, r.db).Delete(rec.model(), "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *gormRepository) ListByUser(ctx context.Context, userID uuid.UUID) (*Portfolio, error) {
	db := database.Conn(ctx, r.db)
	p := &Portfolio{}
	if err := db.Where("user_id = ?", userID).Order("start_date DESC").Find(&p.Experiences).Error; err != nil {
		return nil, err
	}
	if err := db.Where("user_id = ?", userID).Order("start_date DESC").Find(&p.Educations).Error; err != nil {
		return nil, err
	}
	if err := db.Where("user_id = ?", userID).Order("issue_date DESC").Find(&p.Certifications).Error; err != nil {
		return nil, err
	}
	return p, nil
}

func (r *gormRepository) Statuses(ctx context.Context, userID uuid.UUID) (*StatusSet, error) {
	db := database.Conn(ctx, r.db)
	set := &StatusSet{}
	if err := db.Model(&Experience{}).Where("user_id = ?", userID).Pluck("status", &set.Experiences).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&Education{}).Where("user_id = ?", userID).Pluck("status", &set.Educations).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&Certification{}).Where("user_id = ?", userID).Pluck("status", &set.Certifications).Error; err != nil {
		return nil, err
	}
	return set, nil
}

func newRecord(kind Kind) *Record {
	switch kind {
	case KindExperience:
		return ExperienceRecord(&Experience{})
	case KindEducation:
		return EducationRecord(&Education{})
	case KindCertification:
		return CertificationRecord(&Certification{})
	default:
		return nil
	}
}
