package feed

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Post struct {
	ID           uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	AuthorID     uuid.UUID      `gorm:"type:uuid;not null;index" json:"author_id"`
	Body         string         `gorm:"type:text;not null" json:"body"`
	ImageURL     string         `json:"image_url,omitempty"`
	Metadata     datatypes.JSON `json:"metadata,omitempty"`
	LikeCount    int            `gorm:"not null;default:0" json:"like_count"`
	CommentCount int            `gorm:"not null;default:0" json:"comment_count"`
	CreatedAt    time.Time      `gorm:"index" json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}

func (p *Post) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

type Comment struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	PostID    uuid.UUID `gorm:"type:uuid;not null;index" json:"post_id"`
	AuthorID  uuid.UUID `gorm:"type:uuid;not null" json:"author_id"`
	Body      string    `gorm:"type:text;not null" json:"body"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

func (Comment) TableName() string {
	return "post_comments"
}

func (c *Comment) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// Like is unique per post and user.
type Like struct {
	PostID    uuid.UUID `gorm:"type:uuid;primaryKey" json:"post_id"`
	UserID    uuid.UUID `gorm:"type:uuid;primaryKey" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

func (Like) TableName() string {
	return "post_likes"
}

// Author is the public part of a profile shown next to feed content.
type Author struct {
	ID         uuid.UUID `json:"id"`
	FirstName  string    `json:"first_name"`
	LastName   string    `json:"last_name"`
	Headline   string    `json:"headline,omitempty"`
	AvatarURL  string    `json:"avatar_url,omitempty"`
	TrustScore int       `json:"trust_score"`
}

type PostView struct {
	Post
	Author Author `json:"author"`
}

// Achievement is a verified certification surfaced in the feed.
type Achievement struct {
	CertificationID     uuid.UUID `json:"certification_id"`
	Name                string    `json:"name"`
	IssuingOrganization string    `json:"issuing_organization"`
	VerifiedAt          time.Time `json:"verified_at"`
	Author              Author    `json:"author"`
}

type ItemKind string

const (
	ItemPost        ItemKind = "post"
	ItemAchievement ItemKind = "achievement"
)

// Item is a tagged feed entry; exactly the field named by Kind is set.
type Item struct {
	Kind        ItemKind     `json:"kind"`
	At          time.Time    `json:"at"`
	Post        *PostView    `json:"post,omitempty"`
	Achievement *Achievement `json:"achievement,omitempty"`
}

type Page struct {
	Items      []Item `json:"items"`
	NextCursor string `json:"next_cursor,omitempty"`
}

type CreatePostInput struct {
	Body     string         `json:"body" binding:"required,max=3000"`
	ImageURL string         `json:"image_url" binding:"omitempty,url"`
	Metadata map[string]any `json:"metadata"`
}

type CommentInput struct {
	Body string `json:"body" binding:"required,max=1000"`
}
