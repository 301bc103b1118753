package credentials

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Status of a credential record. PENDING covers "not yet verified".
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusVerified Status = "VERIFIED"
	StatusRejected Status = "REJECTED"
)

// Kind discriminates the three credential record variants.
type Kind string

const (
	KindExperience    Kind = "experience"
	KindEducation     Kind = "education"
	KindCertification Kind = "certification"
)

func ParseKind(s string) (Kind, bool) {
	switch k := Kind(s); k {
	case KindExperience, KindEducation, KindCertification:
		return k, true
	default:
		return "", false
	}
}

// Verification holds the decision columns shared by every credential table.
type Verification struct {
	Status          Status     `gorm:"type:varchar(16);not null;default:'PENDING';index" json:"status"`
	RejectionReason string     `json:"rejection_reason,omitempty"`
	DecidedAt       *time.Time `gorm:"index" json:"decided_at,omitempty"`
	DecidedBy       *uuid.UUID `gorm:"type:uuid" json:"decided_by,omitempty"`
}

type Experience struct {
	ID           uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID       uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	Company      string         `gorm:"not null" json:"company"`
	Title        string         `gorm:"not null" json:"title"`
	Location     string         `json:"location,omitempty"`
	StartDate    time.Time      `json:"start_date"`
	EndDate      *time.Time     `json:"end_date,omitempty"`
	Current      bool           `json:"current"`
	Description  string         `json:"description,omitempty"`
	Verification `gorm:"embedded"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Experience) TableName() string {
	return "work_experiences"
}

type Education struct {
	ID           uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID       uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	Institution  string         `gorm:"not null" json:"institution"`
	Degree       string         `gorm:"not null" json:"degree"`
	FieldOfStudy string         `json:"field_of_study,omitempty"`
	StartDate    time.Time      `json:"start_date"`
	EndDate      *time.Time     `json:"end_date,omitempty"`
	Grade        string         `json:"grade,omitempty"`
	Verification `gorm:"embedded"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}

type Certification struct {
	ID                  uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID              uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	Name                string         `gorm:"not null" json:"name"`
	IssuingOrganization string         `gorm:"not null" json:"issuing_organization"`
	CredentialID        string         `json:"credential_id,omitempty"`
	CredentialURL       string         `json:"credential_url,omitempty"`
	IssueDate           time.Time      `json:"issue_date"`
	ExpiryDate          *time.Time     `json:"expiry_date,omitempty"`
	DocumentKey         string         `json:"-"`
	Verification        `gorm:"embedded"`
	CreatedAt           time.Time      `gorm:"index" json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
	DeletedAt           gorm.DeletedAt `gorm:"index" json:"-"`
}

func (e *Experience) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

func (e *Education) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

func (c *Certification) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// Record is a tagged variant over the three credential kinds; exactly the
// field named by Kind is set.
type Record struct {
	Kind          Kind           `json:"kind"`
	Experience    *Experience    `json:"experience,omitempty"`
	Education     *Education     `json:"education,omitempty"`
	Certification *Certification `json:"certification,omitempty"`
}

func ExperienceRecord(e *Experience) *Record {
	return &Record{Kind: KindExperience, Experience: e}
}

func EducationRecord(e *Education) *Record {
	return &Record{Kind: KindEducation, Education: e}
}

func CertificationRecord(c *Certification) *Record {
	return &Record{Kind: KindCertification, Certification: c}
}

func (r *Record) ID() uuid.UUID {
	switch r.Kind {
	case KindExperience:
		return r.Experience.ID
	case KindEducation:
		return r.Education.ID
	default:
		return r.Certification.ID
	}
}

func (r *Record) OwnerID() uuid.UUID {
	switch r.Kind {
	case KindExperience:
		return r.Experience.UserID
	case KindEducation:
		return r.Education.UserID
	default:
		return r.Certification.UserID
	}
}

// State points at the decision columns of the underlying record.
func (r *Record) State() *Verification {
	switch r.Kind {
	case KindExperience:
		return &r.Experience.Verification
	case KindEducation:
		return &r.Education.Verification
	default:
		return &r.Certification.Verification
	}
}

// Title is a short human label used in notifications and activity lists.
func (r *Record) Title() string {
	switch r.Kind {
	case KindExperience:
		return r.Experience.Title + " at " + r.Experience.Company
	case KindEducation:
		return r.Education.Degree + ", " + r.Education.Institution
	default:
		return r.Certification.Name
	}
}

func (r *Record) model() any {
	switch r.Kind {
	case KindExperience:
		return r.Experience
	case KindEducation:
		return r.Education
	default:
		return r.Certification
	}
}

// Portfolio is every live credential a user owns.
type Portfolio struct {
	Experiences    []Experience    `json:"experiences"`
	Educations     []Education     `json:"educations"`
	Certifications []Certification `json:"certifications"`
}

// StatusSet is the status of every live credential a user owns, per kind.
type StatusSet struct {
	Experiences    []Status
	Educations     []Status
	Certifications []Status
}

type ExperienceInput struct {
	Company     string     `json:"company" binding:"required,max=200"`
	Title       string     `json:"title" binding:"required,max=200"`
	Location    string     `json:"location" binding:"max=120"`
	StartDate   time.Time  `json:"start_date" binding:"required"`
	EndDate     *time.Time `json:"end_date"`
	Current     bool       `json:"current"`
	Description string     `json:"description" binding:"max=4000"`
}

type EducationInput struct {
	Institution  string     `json:"institution" binding:"required,max=200"`
	Degree       string     `json:"degree" binding:"required,max=200"`
	FieldOfStudy string     `json:"field_of_study" binding:"max=200"`
	StartDate    time.Time  `json:"start_date" binding:"required"`
	EndDate      *time.Time `json:"end_date"`
	Grade        string     `json:"grade" binding:"max=50"`
}

type CertificationInput struct {
	Name                string     `json:"name" binding:"required,max=200"`
	IssuingOrganization string     `json:"issuing_organization" binding:"required,max=200"`
	CredentialID        string     `json:"credential_id" binding:"max=200"`
	CredentialURL       string     `json:"credential_url" binding:"omitempty,url"`
	IssueDate           time.Time  `json:"issue_date" binding:"required"`
	ExpiryDate          *time.Time `json:"expiry_date"`
	DocumentKey         string     `json:"document_key"`
}
