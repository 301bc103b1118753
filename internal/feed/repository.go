package feed

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
	CreatePost(ctx context.Context, post *Post) error
	GetPost(ctx context.Context, id uuid.UUID) (*Post, error)
	DeletePost(ctx context.Context, id uuid.UUID) error
	// PostsBefore returns posts created strictly before the given time, newest first.
	PostsBefore(ctx context.Context, before time.Time, limit int) ([]PostView, error)
	// AchievementsBefore returns certifications verified strictly before the given time, newest first.
	AchievementsBefore(ctx context.Context, before time.Time, limit int) ([]Achievement, error)
	CreateComment(ctx context.Context, c *Comment) error
	ListComments(ctx context.Context, postID uuid.UUID, limit, offset int) ([]Comment, error)
	// AddLike reports false when the user had already liked the post.
	AddLike(ctx context.Context, like *Like) (bool, error)
	RemoveLike(ctx context.Context, postID, userID uuid.UUID) (bool, error)
}

type gormRepository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func Models() []any {
	return []any{&Post{}, &Comment{}, &Like{}}
}

func (r *gormRepository) CreatePost(ctx context.Context, post *Post) error {
	return database.Conn(ctx, r.db).Create(post).Error
}

func (r *gormRepository) GetPost(ctx context.Context, id uuid.UUID) (*Post, error) {
	var post Post
	err := database.Conn(ctx, r.db).First(&post, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &post, nil
}

func (r *gormRepository) DeletePost(ctx context.Context, id uuid.UUID) error {
	return database.Conn(ctx, r.db).Delete(&Post{}, "id = ?", id).Error
}

type postRow struct {
	Post
	AuthorFirstName  string
	AuthorLastName   string
	AuthorHeadline   string
	AuthorAvatarURL  string
	AuthorTrustScore int
}

func (r *gormRepository) PostsBefore(ctx context.Context, before time.Time, limit int) ([]PostView, error) {
	var rows []postRow
	err := database.Conn(ctx, r.db).
		Table("posts AS p").
		Joins("JOIN users u ON u.id = p.author_id").
		Where("p.deleted_at IS NULL AND p.created_at < ?", before).
		Select("p.*, u.first_name AS author_first_name, u.last_name AS author_last_name, " +
			"u.headline AS author_headline, u.avatar_url AS author_avatar_url, u.trust_score AS author_trust_score").
		Order("p.created_at DESC, p.id DESC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	views := make([]PostView, 0, len(rows))
	for _, row := range rows {
		views = append(views, PostView{
			Post: row.Post,
			Author: Author{
				ID:         row.AuthorID,
				FirstName:  row.AuthorFirstName,
				LastName:   row.AuthorLastName,
				Headline:   row.AuthorHeadline,
				AvatarURL:  row.AuthorAvatarURL,
				TrustScore: row.AuthorTrustScore,
			},
		})
	}
	return views, nil
}

type achievementRow struct {
	CertificationID     uuid.UUID
	Name                string
	IssuingOrganization string
	DecidedAt           time.Time
	UserID              uuid.UUID
	FirstName           string
	LastName            string
	Headline            string
	AvatarURL           string
	TrustScore          int
}

func (r *gormRepository) AchievementsBefore(ctx context.Context, before time.Time, limit int) ([]Achievement, error) {
	var rows []achievementRow
	err := database.Conn(ctx, r.db).
		Table("certifications AS c").
		Joins("JOIN users u ON u.id = c.user_id").
		Where("c.deleted_at IS NULL AND c.status = ? AND c.decided_at < ?", "VERIFIED", before).
		Select("c.id AS certification_id, c.name, c.issuing_organization, c.decided_at, " +
			"u.id AS user_id, u.first_name, u.last_name, u.headline, u.avatar_url, u.trust_score").
		Order("c.decided_at DESC, c.id DESC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]Achievement, 0, len(rows))
	for _, row := range rows {
		out = append(out, Achievement{
			CertificationID:     row.CertificationID,
			Name:                row.Name,
			IssuingOrganization: row.IssuingOrganization,
			VerifiedAt:          row.DecidedAt,
			Author: Author{
				ID:         row.UserID,
				FirstName:  row.FirstName,
				LastName:   row.LastName,
				Headline:   row.Headline,
				AvatarURL:  row.AvatarURL,
				TrustScore: row.TrustScore,
			},
		})
	}
	return out, nil
}

func (r *gormRepository) CreateComment(ctx context.Context, c *Comment) error {
	db := database.Conn(ctx, r.db)
	if err := db.Create(c).Error; err != nil {
		return err
	}
	return db.Model(&Post{}).Where("id = ?", c.PostID).
		UpdateColumn("comment_count", gorm.Expr("comment_count + 1")).Error
}

func (r *gormRepository) ListComments(ctx context.Context, postID uuid.UUID, limit, offset int) ([]Comment, error) {
	var comments []Comment
	err := database.Conn(ctx, r.db).
		Where("post_id = ?", postID).
		Order("created_at ASC, id ASC").
		Limit(limit).
		Offset(offset).
		Find(&comments).Error
	return comments, err
}

func (r *gormRepository) AddLike(ctx context.Context, like *Like) (bool, error) {
	db := database.Conn(ctx, r.db)
	res := db.Clauses(clause.OnConflict{DoNothing: true}).Create(like)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	err := db.Model(&Post{}).Where("id = ?", like.PostID).
		UpdateColumn("like_count", gorm.Expr("like_count + 1")).Error
	return err == nil, err
}

func (r *gormRepository) RemoveLike(ctx context.Context, postID, userID uuid.UUID) (bool, error) {
	db := database.Conn(ctx, r.db)
	res := db.Where("post_id = ? AND user_id = ?", postID, userID).Delete(&Like{})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	err := db.Model(&Post{}).Where("id = ? AND like_count > 0", postID).
		UpdateColumn("like_count", gorm.Expr("like_count - 1")).Error
	return err == nil, err
}
