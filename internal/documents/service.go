package documents

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"trustline/portal-backend/internal/apperr"
	"trustline/portal-backend/internal/credentials"
	"trustline/portal-backend/pkg/storage"
)

// CertificationReader finds the certification whose proof an admin opens.
type CertificationReader interface {
	Get(ctx context.Context, kind credentials.Kind, id uuid.UUID) (*credentials.Record, error)
}

type Config struct {
	Bucket         string
	PresignExpiry  time.Duration
	MaxUploadBytes int64
}

type Service struct {
	repo   Repository
	store  storage.S3Client
	certs  CertificationReader
	cfg    Config
	logger *zap.Logger
	now    func() time.Time
}

func NewService(repo Repository, store storage.S3Client, certs CertificationReader, cfg Config, logger *zap.Logger) *Service {
	return &Service{repo: repo, store: store, certs: certs, cfg: cfg, logger: logger, now: time.Now}
}

// PresignUpload registers a pending document and returns a signed PUT URL
// the browser uploads to directly.
func (s *Service) PresignUpload(ctx context.Context, userID uuid.UUID, req PresignRequest) (*UploadTicket, error) {
	ext, err := s.checkFile(req.ContentType, req.FileSize)
	if err != nil {
		return nil, err
	}

	doc := s.newDocument(userID, req.FileName, req.ContentType, req.FileSize, ext, StatusPendingUpload)
	url, err := s.store.PresignPut(ctx, doc.S3Bucket, doc.S3Key, doc.ContentType, s.cfg.PresignExpiry)
	if err != nil {
		return nil, fmt.Errorf("failed to presign upload: %w", err)
	}
	if err := s.repo.CreateDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to register document: %w", err)
	}

	return &UploadTicket{
		Document:  doc,
		URL:       url,
		Method:    http.MethodPut,
		Headers:   map[string]string{"Content-Type": doc.ContentType},
		ExpiresAt: s.now().Add(s.cfg.PresignExpiry),
	}, nil
}

// Confirm marks a presigned upload as stored once the browser reports success.
func (s *Service) Confirm(ctx context.Context, userID, docID uuid.UUID) (*Document, error) {
	doc, err := s.owned(ctx, userID, docID)
	if err != nil {
		return nil, err
	}
	if doc.Status == StatusStored {
		return doc, nil
	}
	if err := uploadLifecycle.Transition(doc.Status, StatusStored); err != nil {
		return nil, apperr.Conflict("document: %v", err)
	}
	if err := s.repo.UpdateStatus(ctx, doc.ID, StatusStored); err != nil {
		return nil, fmt.Errorf("failed to update document: %w", err)
	}
	doc.Status = StatusStored
	return doc, nil
}

// Upload stores a file received as a multipart form on the server side.
func (s *Service) Upload(ctx context.Context, userID uuid.UUID, fileName, contentType string, size int64, body io.Reader) (*Document, error) {
	ext, err := s.checkFile(contentType, size)
	if err != nil {
		return nil, err
	}

	doc := s.newDocument(userID, fileName, contentType, size, ext, StatusStored)
	if err := s.store.Upload(ctx, doc.S3Bucket, doc.S3Key, doc.ContentType, io.LimitReader(body, s.cfg.MaxUploadBytes)); err != nil {
		return nil, fmt.Errorf("failed to upload document: %w", err)
	}
	if err := s.repo.CreateDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to register document: %w", err)
	}

	s.logger.Info("Document uploaded",
		zap.String("document_id", doc.ID.String()),
		zap.String("owner_id", userID.String()),
		zap.Int64("size", size))
	return doc, nil
}

// Remove deletes the object and marks the document removed.
func (s *Service) Remove(ctx context.Context, userID, docID uuid.UUID) error {
	doc, err := s.owned(ctx, userID, docID)
	if err != nil {
		return err
	}
	if err := uploadLifecycle.Transition(doc.Status, StatusRemoved); err != nil {
		return apperr.Conflict("document: %v", err)
	}
	if err := s.store.Delete(ctx, doc.S3Bucket, doc.S3Key); err != nil {
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return s.repo.UpdateStatus(ctx, doc.ID, StatusRemoved)
}

// CertificationDocument signs a short lived GET link to a certification's
// proof for an admin reviewer.
func (s *Service) CertificationDocument(ctx context.Context, certID uuid.UUID) (*ViewLink, error) {
	rec, err := s.certs.Get(ctx, credentials.KindCertification, certID)
	if err != nil {
		return nil, fmt.Errorf("failed to load certification: %w", err)
	}
	if rec == nil {
		return nil, apperr.NotFound("certification")
	}
	key := rec.Certification.DocumentKey
	if key == "" {
		return nil, apperr.NotFound("certification document")
	}

	bucket := s.cfg.Bucket
	if doc, err := s.repo.GetDocumentByKey(ctx, key); err == nil && doc != nil {
		if doc.Status == StatusRemoved {
			return nil, apperr.NotFound("certification document")
		}
		bucket = doc.S3Bucket
	}

	url, err := s.store.PresignGet(ctx, bucket, key, s.cfg.PresignExpiry)
	if err != nil {
		return nil, fmt.Errorf("failed to presign download: %w", err)
	}
	return &ViewLink{URL: url, ExpiresAt: s.now().Add(s.cfg.PresignExpiry)}, nil
}

func (s *Service) owned(ctx context.Context, userID, docID uuid.UUID) (*Document, error) {
	doc, err := s.repo.GetDocumentByID(ctx, docID)
	if err != nil {
		return nil, fmt.Errorf("failed to load document: %w", err)
	}
	if doc == nil {
		return nil, apperr.NotFound("document")
	}
	if doc.OwnerID != userID {
		return nil, apperr.Forbidden("document belongs to another user")
	}
	return doc, nil
}

func (s *Service) checkFile(contentType string, size int64) (string, error) {
	f := apperr.Fields{}
	ext, ok := allowedTypes[contentType]
	if !ok {
		f.Add("content_type", "must be application/pdf, image/png or image/jpeg")
	}
	if size <= 0 {
		f.Add("file_size", "must be positive")
	} else if size > s.cfg.MaxUploadBytes {
		f.Add("file_size", fmt.Sprintf("must be at most %d bytes", s.cfg.MaxUploadBytes))
	}
	return ext, f.Err()
}

func (s *Service) newDocument(userID uuid.UUID, fileName, contentType string, size int64, ext string, status Status) *Document {
	now := s.now()
	return &Document{
		ID:          uuid.New(),
		OwnerID:     userID,
		FileName:    fileName,
		ContentType: contentType,
		FileSize:    size,
		S3Key:       NewKey(userID, fileName, ext),
		S3Bucket:    s.cfg.Bucket,
		Status:      status,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}
