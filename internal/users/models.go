package users

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Role string

const (
	RoleMember Role = "member"
	RoleAdmin  Role = "admin"
)

// User is the local profile of an identity issued by the auth provider.
// TrustScore is a cache of trustscore.Calculate and is never authoritative.
type User struct {
	ID                 uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	AuthSubject        string         `gorm:"not null;uniqueIndex" json:"-"`
	Email              string         `gorm:"not null;index" json:"email"`
	FirstName          string         `json:"first_name"`
	LastName           string         `json:"last_name"`
	Phone              string         `json:"phone,omitempty"`
	Headline           string         `json:"headline"`
	Location           string         `json:"location"`
	Industry           string         `gorm:"index" json:"industry"`
	AvatarURL          string         `json:"avatar_url,omitempty"`
	Role               Role           `gorm:"not null;default:'member'" json:"role"`
	TrustScore         int            `gorm:"not null;default:0" json:"trust_score"`
	EmailNotifications bool           `gorm:"not null;default:true" json:"email_notifications"`
	SMSNotifications   bool           `gorm:"not null;default:false" json:"sms_notifications"`
	CreatedAt          time.Time      `gorm:"index" json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
	DeletedAt          gorm.DeletedAt `gorm:"index" json:"-"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

func (u *User) FullName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	default:
		return u.FirstName + " " + u.LastName
	}
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// UpdateProfileRequest carries the editable profile fields; nil means unchanged.
type UpdateProfileRequest struct {
	FirstName          *string `json:"first_name" binding:"omitempty,max=100"`
	LastName           *string `json:"last_name" binding:"omitempty,max=100"`
	Phone              *string `json:"phone" binding:"omitempty,max=32"`
	Headline           *string `json:"headline" binding:"omitempty,max=200"`
	Location           *string `json:"location" binding:"omitempty,max=120"`
	Industry           *string `json:"industry" binding:"omitempty,max=120"`
	AvatarURL          *string `json:"avatar_url" binding:"omitempty,url"`
	EmailNotifications *bool   `json:"email_notifications"`
	SMSNotifications   *bool   `json:"sms_notifications"`
}
