package verification

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"trustline/portal-backend/internal/credentials"
	"trustline/portal-backend/internal/payments"
	"trustline/portal-backend/internal/trustscore"
	"trustline/portal-backend/pkg/workflows"
)

type RequestStatus string

const (
	RequestQueued     RequestStatus = "QUEUED"
	RequestInReview   RequestStatus = "IN_REVIEW"
	RequestSuccessful RequestStatus = "SUCCESSFUL"
	RequestFailed     RequestStatus = "FAILED"
)

// OpenStatuses are the request states still waiting on an admin.
var OpenStatuses = []RequestStatus{RequestQueued, RequestInReview}

// RequestLifecycle allows settling straight from QUEUED; admins are not
// forced through IN_REVIEW.
var RequestLifecycle = workflows.NewStateMachine(map[RequestStatus][]RequestStatus{
	RequestQueued:     {RequestInReview, RequestSuccessful, RequestFailed},
	RequestInReview:   {RequestSuccessful, RequestFailed},
	RequestSuccessful: {},
	RequestFailed:     {},
})

// Request is one paid review of a certification. A certification may collect
// several over time; the current one is the most recently created.
type Request struct {
	ID              uuid.UUID     `gorm:"type:uuid;primaryKey" json:"id"`
	CertificationID uuid.UUID     `gorm:"type:uuid;not null;index" json:"certification_id"`
	UserID          uuid.UUID     `gorm:"type:uuid;not null;index" json:"user_id"`
	Status          RequestStatus `gorm:"type:varchar(16);not null;index" json:"status"`
	Paid            bool          `gorm:"not null;default:false" json:"paid"`
	TransactionID   *uuid.UUID    `gorm:"type:uuid" json:"transaction_id,omitempty"`
	ReviewerID      *uuid.UUID    `gorm:"type:uuid" json:"reviewer_id,omitempty"`
	Notes           string        `json:"notes,omitempty"`
	CreatedAt       time.Time     `gorm:"index" json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
	ReviewStartedAt *time.Time    `json:"review_started_at,omitempty"`
	CompletedAt     *time.Time    `json:"completed_at,omitempty"`
}

func (Request) TableName() string {
	return "verification_requests"
}

func (r *Request) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// Decision is an admin verdict on one credential record.
type Decision struct {
	Kind     credentials.Kind
	RecordID uuid.UUID
	Accept   bool
	Reason   string
}

// DecisionInput is the HTTP body of a decision.
type DecisionInput struct {
	Outcome string `json:"outcome" binding:"required,oneof=verify reject"`
	Reason  string `json:"reason" binding:"max=1000"`
}

// DecisionResult is what a committed decision changed.
type DecisionResult struct {
	Record     *credentials.Record  `json:"record"`
	Request    *Request             `json:"request,omitempty"`
	TrustScore trustscore.Breakdown `json:"trust_score"`
}

// SubmitInput adds a certification, optionally paying for verification.
type SubmitInput struct {
	credentials.CertificationInput
	Payment *payments.Payment `json:"payment"`
}

// PaymentInput opts an existing certification into paid verification.
type PaymentInput struct {
	Payment payments.Payment `json:"payment" binding:"required"`
}

// Submission is the result of adding or resubmitting a certification.
type Submission struct {
	Certification *credentials.Certification `json:"certification"`
	Request       *Request                   `json:"request,omitempty"`
	Transaction   *payments.Transaction      `json:"transaction,omitempty"`
}

// QueueFilter narrows the admin queue.
type QueueFilter struct {
	Status     RequestStatus
	UrgentOnly bool
	Limit      int
	Offset     int
}

// QueueEntry is one open request with what a reviewer needs to triage it.
type QueueEntry struct {
	Request             `gorm:"embedded"`
	CertificationName   string `json:"certification_name"`
	IssuingOrganization string `json:"issuing_organization"`
	OwnerFirstName      string `json:"owner_first_name"`
	OwnerLastName       string `json:"owner_last_name"`
	OwnerEmail          string `json:"owner_email"`
	Urgent              bool   `gorm:"-" json:"urgent"`
}
