package notifications

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Kind identifies what happened; clients switch on it to render.
type Kind string

const (
	KindCredentialVerified   Kind = "credential_verified"
	KindCredentialRejected   Kind = "credential_rejected"
	KindVerificationQueued   Kind = "verification_queued"
	KindVerificationInReview Kind = "verification_in_review"
	KindPostComment          Kind = "post_comment"
	KindPostLike             Kind = "post_like"
	KindUrgentQueue          Kind = "urgent_queue"
)

const (
	ChannelEmail     = "EMAIL"
	ChannelSMS       = "SMS"
	ChannelWebSocket = "WEBSOCKET"
	ChannelInApp     = "IN_APP"
)

const (
	StatusSent      = "SENT"
	StatusDelivered = "DELIVERED"
	StatusFailed    = "FAILED"
	StatusSkipped   = "SKIPPED"
)

// Notification is the in-app copy every notification gets.
type Notification struct {
	ID        uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	UserID    uuid.UUID      `json:"user_id" gorm:"type:uuid;not null;index:idx_notifications_user_created"`
	Kind      Kind           `json:"kind" gorm:"type:varchar(40);not null"`
	Title     string         `json:"title" gorm:"not null"`
	Body      string         `json:"body"`
	Data      datatypes.JSON `json:"data" gorm:"type:jsonb"`
	ReadAt    *time.Time     `json:"read_at"`
	CreatedAt time.Time      `json:"created_at" gorm:"index:idx_notifications_user_created"`
}

func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	return nil
}

// DeliveryLog tracks one delivery attempt per channel.
type DeliveryLog struct {
	ID                uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	NotificationID    uuid.UUID `json:"notification_id" gorm:"type:uuid;not null;index"`
	UserID            uuid.UUID `json:"user_id" gorm:"type:uuid;not null;index"`
	Channel           string    `json:"channel" gorm:"not null"`
	Status            string    `json:"status" gorm:"not null"`
	ProviderMessageID string    `json:"provider_message_id"`
	Error             string    `json:"error,omitempty"`
	Timestamp         time.Time `json:"timestamp" gorm:"autoCreateTime"`
}

func (d *DeliveryLog) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}

// Request describes a notification to send to one user.
type Request struct {
	UserID uuid.UUID
	Kind   Kind
	Title  string
	Body   string
	Data   map[string]any
}
