package payments

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
	StatusRefunded  Status = "REFUNDED"
)

// Transaction records a payment reported by the payment provider.
type Transaction struct {
	ID                    uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID                uuid.UUID  `gorm:"type:uuid;not null;index" json:"user_id"`
	VerificationRequestID *uuid.UUID `gorm:"type:uuid;index" json:"verification_request_id,omitempty"`
	AmountCents           int64      `gorm:"not null" json:"amount_cents"`
	Currency              string     `gorm:"type:varchar(3);not null" json:"currency"`
	Status                Status     `gorm:"type:varchar(16);not null;index" json:"status"`
	Provider              string     `gorm:"not null;uniqueIndex:idx_provider_ref,priority:1" json:"provider"`
	ProviderRef           string     `gorm:"not null;uniqueIndex:idx_provider_ref,priority:2" json:"provider_ref"`
	CreatedAt             time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
}

func (t *Transaction) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// Payment is the provider confirmation a client forwards when paying for
// verification.
type Payment struct {
	Provider    string `json:"provider" binding:"required,max=50"`
	ProviderRef string `json:"provider_ref" binding:"required,max=200"`
	AmountCents int64  `json:"amount_cents" binding:"required,min=1"`
	Currency    string `json:"currency" binding:"required,len=3"`
}
