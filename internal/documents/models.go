package documents

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPendingUpload Status = "pending_upload"
	StatusStored        Status = "stored"
	StatusRemoved       Status = "removed"
)

// Allowed proof formats, keyed by content type.
var allowedTypes = map[string]string{
	"application/pdf": ".pdf",
	"image/png":       ".png",
	"image/jpeg":      ".jpg",
}

// Document is an uploaded proof file, typically a certificate scan.
type Document struct {
	ID          uuid.UUID `json:"id" db:"id" gorm:"type:uuid;primaryKey"`
	OwnerID     uuid.UUID `json:"owner_id" db:"owner_id" gorm:"type:uuid;not null;index"`
	FileName    string    `json:"file_name" db:"file_name" gorm:"not null"`
	ContentType string    `json:"content_type" db:"content_type" gorm:"not null"`
	FileSize    int64     `json:"file_size" db:"file_size"`
	S3Key       string    `json:"s3_key" db:"s3_key" gorm:"not null;uniqueIndex"`
	S3Bucket    string    `json:"-" db:"s3_bucket" gorm:"not null"`
	Status      Status    `json:"status" db:"status" gorm:"type:varchar(20);not null"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

type PresignRequest struct {
	FileName    string `json:"file_name" binding:"required,max=255"`
	ContentType string `json:"content_type" binding:"required"`
	FileSize    int64  `json:"file_size" binding:"required,min=1"`
}

// UploadTicket tells the browser where to PUT the file.
type UploadTicket struct {
	Document  *Document         `json:"document"`
	URL       string            `json:"url"`
	Method    string            `json:"method"`
	Headers   map[string]string `json:"headers"`
	ExpiresAt time.Time         `json:"expires_at"`
}

type ViewLink struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}
