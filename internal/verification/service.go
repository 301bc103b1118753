// Package verification runs the review workflow for credential records: paid
// certification requests, the admin queue and the decision transaction.
package verification

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"trustline/portal-backend/internal/apperr"
	"trustline/portal-backend/internal/config"
	"trustline/portal-backend/internal/credentials"
	"trustline/portal-backend/internal/database"
	"trustline/portal-backend/internal/documents"
	"trustline/portal-backend/internal/notifications"
	"trustline/portal-backend/internal/payments"
	"trustline/portal-backend/internal/trustscore"
)

type PaymentRecorder interface {
	RecordVerificationPayment(ctx context.Context, userID, requestID uuid.UUID, p payments.Payment) (*payments.Transaction, error)
}

type ScoreUpdater interface {
	Update(ctx context.Context, userID uuid.UUID) (trustscore.Breakdown, error)
}

type Notifier interface {
	Notify(ctx context.Context, req notifications.Request) (*notifications.Notification, error)
}

// CacheInvalidator drops cached aggregates a state change makes stale.
type CacheInvalidator interface {
	Invalidate(ctx context.Context) error
}

type Service struct {
	creds    credentials.Repository
	repo     Repository
	tx       database.Transactor
	payments PaymentRecorder
	scores   ScoreUpdater
	notifier Notifier
	cache    CacheInvalidator
	cfg      config.VerificationConfig
	logger   *zap.Logger
	now      func() time.Time
}

type Deps struct {
	Credentials credentials.Repository
	Requests    Repository
	Tx          database.Transactor
	Payments    PaymentRecorder
	Scores      ScoreUpdater
	Notifier    Notifier
	Cache       CacheInvalidator
}

func NewService(d Deps, cfg config.VerificationConfig, logger *zap.Logger) *Service {
	return &Service{
		creds:    d.Credentials,
		repo:     d.Requests,
		tx:       d.Tx,
		payments: d.Payments,
		scores:   d.Scores,
		notifier: d.Notifier,
		cache:    d.Cache,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// SubmitCertification adds a PENDING certification. With a payment it also
// records the transaction and queues a verification request, atomically.
func (s *Service) SubmitCertification(ctx context.Context, userID uuid.UUID, in SubmitInput) (*Submission, error) {
	if err := s.validateCertification(userID, in.CertificationInput); err != nil {
		return nil, err
	}

	cert := &credentials.Certification{
		ID:           uuid.New(),
		UserID:       userID,
		Verification: credentials.Verification{Status: credentials.StatusPending},
	}
	applyCertification(cert, in.CertificationInput)

	out := &Submission{Certification: cert}
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.creds.Create(ctx, credentials.CertificationRecord(cert)); err != nil {
			return fmt.Errorf("failed to create certification: %w", err)
		}
		if in.Payment == nil {
			return nil
		}
		var err error
		out.Request, out.Transaction, err = s.openRequest(ctx, cert, *in.Payment)
		return err
	})
	if err != nil {
		return nil, err
	}

	if out.Request != nil {
		s.afterQueued(ctx, cert, out.Request)
	}
	return out, nil
}

// RequestVerification opts an existing PENDING certification into paid review.
func (s *Service) RequestVerification(ctx context.Context, userID, certID uuid.UUID, p payments.Payment) (*Submission, error) {
	out := &Submission{}
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		cert, err := s.ownCertification(ctx, userID, certID)
		if err != nil {
			return err
		}
		if cert.Status != credentials.StatusPending {
			return apperr.Conflict("certification is %s", cert.Status)
		}
		open, err := s.repo.LatestOpenForUpdate(ctx, certID)
		if err != nil {
			return fmt.Errorf("failed to load verification request: %w", err)
		}
		if open != nil {
			return apperr.Conflict("certification already has a %s verification request", open.Status)
		}
		out.Certification = cert
		out.Request, out.Transaction, err = s.openRequest(ctx, cert, p)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.afterQueued(ctx, out.Certification, out.Request)
	return out, nil
}

func (s *Service) openRequest(ctx context.Context, cert *credentials.Certification, p payments.Payment) (*Request, *payments.Transaction, error) {
	req := &Request{
		ID:              uuid.New(),
		CertificationID: cert.ID,
		UserID:          cert.UserID,
		Status:          RequestQueued,
		Paid:            true,
	}
	txn, err := s.payments.RecordVerificationPayment(ctx, cert.UserID, req.ID, p)
	if err != nil {
		return nil, nil, err
	}
	req.TransactionID = &txn.ID
	if err := s.repo.Create(ctx, req); err != nil {
		return nil, nil, fmt.Errorf("failed to queue verification request: %w", err)
	}
	return req, txn, nil
}

func (s *Service) afterQueued(ctx context.Context, cert *credentials.Certification, req *Request) {
	s.logger.Info("Verification request queued",
		zap.String("request_id", req.ID.String()),
		zap.String("certification_id", cert.ID.String()),
		zap.String("user_id", cert.UserID.String()))
	s.invalidate(ctx)
	s.notify(ctx, notifications.Request{
		UserID: cert.UserID,
		Kind:   notifications.KindVerificationQueued,
		Title:  "Verification requested",
		Body:   fmt.Sprintf("%s is queued for review.", cert.Name),
		Data:   map[string]any{"certification_id": cert.ID, "request_id": req.ID},
	})
}

// StartReview moves a QUEUED request to IN_REVIEW and assigns the reviewer.
func (s *Service) StartReview(ctx context.Context, adminID, requestID uuid.UUID) (*Request, error) {
	var req *Request
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		req, err = s.repo.GetForUpdate(ctx, requestID)
		if err != nil {
			return fmt.Errorf("failed to load verification request: %w", err)
		}
		if req == nil {
			return apperr.NotFound("verification request")
		}
		if err := RequestLifecycle.Transition(req.Status, RequestInReview); err != nil {
			return apperr.Conflict("verification request: %v", err)
		}
		now := s.now()
		req.Status = RequestInReview
		req.ReviewerID = &adminID
		req.ReviewStartedAt = &now
		return s.repo.Save(ctx, req)
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx)
	s.notify(ctx, notifications.Request{
		UserID: req.UserID,
		Kind:   notifications.KindVerificationInReview,
		Title:  "Verification in review",
		Body:   "A reviewer has started checking your certification.",
		Data:   map[string]any{"certification_id": req.CertificationID, "request_id": req.ID},
	})
	return req, nil
}

// Decide records an admin verdict. Input is validated before anything is
// read; the status change, the request settlement and the owner's trust
// score are then written in one transaction with the record row locked.
func (s *Service) Decide(ctx context.Context, adminID uuid.UUID, d Decision) (*DecisionResult, error) {
	reason := strings.TrimSpace(d.Reason)
	f := apperr.Fields{}
	if _, ok := credentials.ParseKind(string(d.Kind)); !ok {
		f.Add("kind", "must be one of experience education certification")
	}
	if !d.Accept && reason == "" {
		f.Add("reason", "is required when rejecting")
	}
	if err := f.Err(); err != nil {
		return nil, err
	}

	target := credentials.StatusVerified
	settle := RequestSuccessful
	if !d.Accept {
		target = credentials.StatusRejected
		settle = RequestFailed
	}

	result := &DecisionResult{}
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		rec, err := s.creds.GetForUpdate(ctx, d.Kind, d.RecordID)
		if err != nil {
			return fmt.Errorf("failed to load %s: %w", d.Kind, err)
		}
		if rec == nil {
			return apperr.NotFound(string(d.Kind))
		}

		state := rec.State()
		if err := credentials.Lifecycle.Transition(state.Status, target); err != nil {
			return apperr.Conflict("%s: %v", d.Kind, err)
		}
		now := s.now()
		state.Status = target
		state.RejectionReason = ""
		if !d.Accept {
			state.RejectionReason = reason
		}
		state.DecidedAt = &now
		state.DecidedBy = &adminID
		if err := s.creds.Save(ctx, rec); err != nil {
			return fmt.Errorf("failed to save decision: %w", err)
		}
		result.Record = rec

		if d.Kind == credentials.KindCertification {
			req, err := s.repo.LatestOpenForUpdate(ctx, d.RecordID)
			if err != nil {
				return fmt.Errorf("failed to load verification request: %w", err)
			}
			if req != nil {
				if err := RequestLifecycle.Transition(req.Status, settle); err != nil {
					return apperr.Conflict("verification request: %v", err)
				}
				req.Status = settle
				req.CompletedAt = &now
				if req.ReviewerID == nil {
					req.ReviewerID = &adminID
				}
				req.Notes = reason
				if err := s.repo.Save(ctx, req); err != nil {
					return fmt.Errorf("failed to settle verification request: %w", err)
				}
				result.Request = req
			}
		}

		result.TrustScore, err = s.scores.Update(ctx, rec.OwnerID())
		if err != nil {
			return fmt.Errorf("failed to update trust score: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Credential decided",
		zap.String("kind", string(d.Kind)),
		zap.String("id", d.RecordID.String()),
		zap.String("status", string(target)),
		zap.String("admin_id", adminID.String()),
		zap.Int("trust_score", result.TrustScore.TotalScore))

	s.invalidate(ctx)
	s.notify(ctx, decisionNotification(result.Record, result.TrustScore))
	return result, nil
}

func decisionNotification(rec *credentials.Record, score trustscore.Breakdown) notifications.Request {
	state := rec.State()
	req := notifications.Request{
		UserID: rec.OwnerID(),
		Data: map[string]any{
			"kind":        rec.Kind,
			"record_id":   rec.ID(),
			"status":      state.Status,
			"trust_score": score.TotalScore,
			"level":       score.Level,
		},
	}
	if state.Status == credentials.StatusVerified {
		req.Kind = notifications.KindCredentialVerified
		req.Title = "Credential verified"
		req.Body = fmt.Sprintf("%s was verified. Your trust score is now %d.", rec.Title(), score.TotalScore)
	} else {
		req.Kind = notifications.KindCredentialRejected
		req.Title = "Credential rejected"
		req.Body = fmt.Sprintf("%s was rejected: %s", rec.Title(), state.RejectionReason)
		req.Data["reason"] = state.RejectionReason
	}
	return req
}

// Resubmit handles a rejected certification according to the configured
// policy: in_place resets it to PENDING with the new details, new_record
// refuses and asks for a fresh certification.
func (s *Service) Resubmit(ctx context.Context, userID, certID uuid.UUID, in SubmitInput) (*Submission, error) {
	if err := s.validateCertification(userID, in.CertificationInput); err != nil {
		return nil, err
	}

	out := &Submission{}
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		cert, err := s.ownCertification(ctx, userID, certID)
		if err != nil {
			return err
		}
		if cert.Status != credentials.StatusRejected {
			return apperr.Conflict("only rejected certifications can be resubmitted, this one is %s", cert.Status)
		}
		if s.cfg.ResubmissionPolicy != config.ResubmitInPlace {
			return apperr.Conflict("rejected certifications cannot be resubmitted, add a new certification instead")
		}

		applyCertification(cert, in.CertificationInput)
		cert.Verification = credentials.Verification{Status: credentials.StatusPending}
		if err := s.creds.Save(ctx, credentials.CertificationRecord(cert)); err != nil {
			return fmt.Errorf("failed to save certification: %w", err)
		}
		out.Certification = cert

		if in.Payment != nil {
			out.Request, out.Transaction, err = s.openRequest(ctx, cert, *in.Payment)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Certification resubmitted", zap.String("certification_id", certID.String()))
	if out.Request != nil {
		s.afterQueued(ctx, out.Certification, out.Request)
	}
	return out, nil
}

// UpdateCertification edits a PENDING certification that no reviewer has
// picked up yet.
func (s *Service) UpdateCertification(ctx context.Context, userID, certID uuid.UUID, in credentials.CertificationInput) (*credentials.Certification, error) {
	if err := s.validateCertification(userID, in); err != nil {
		return nil, err
	}

	var cert *credentials.Certification
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		cert, err = s.ownCertification(ctx, userID, certID)
		if err != nil {
			return err
		}
		if cert.Status != credentials.StatusPending {
			return apperr.Conflict("certification is %s and can no longer be edited", cert.Status)
		}
		open, err := s.repo.LatestOpenForUpdate(ctx, certID)
		if err != nil {
			return fmt.Errorf("failed to load verification request: %w", err)
		}
		if open != nil && open.Status == RequestInReview {
			return apperr.Conflict("certification is being reviewed")
		}
		applyCertification(cert, in)
		return s.creds.SaveDetails(ctx, credentials.CertificationRecord(cert))
	})
	if err != nil {
		return nil, err
	}
	return cert, nil
}

// WithdrawCertification soft deletes the certification, fails its open
// request and recomputes the owner's score.
func (s *Service) WithdrawCertification(ctx context.Context, userID, certID uuid.UUID) error {
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		if _, err := s.ownCertification(ctx, userID, certID); err != nil {
			return err
		}
		open, err := s.repo.LatestOpenForUpdate(ctx, certID)
		if err != nil {
			return fmt.Errorf("failed to load verification request: %w", err)
		}
		if open != nil {
			now := s.now()
			open.Status = RequestFailed
			open.CompletedAt = &now
			open.Notes = "withdrawn by owner"
			if err := s.repo.Save(ctx, open); err != nil {
				return fmt.Errorf("failed to close verification request: %w", err)
			}
		}
		if err := s.creds.Delete(ctx, credentials.KindCertification, certID); err != nil {
			return fmt.Errorf("failed to delete certification: %w", err)
		}
		if _, err := s.scores.Update(ctx, userID); err != nil {
			return fmt.Errorf("failed to update trust score: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

// LatestRequest returns the current request of a certification to its owner
// or an admin.
func (s *Service) LatestRequest(ctx context.Context, viewerID uuid.UUID, isAdmin bool, certID uuid.UUID) (*Request, error) {
	rec, err := s.creds.Get(ctx, credentials.KindCertification, certID)
	if err != nil {
		return nil, fmt.Errorf("failed to load certification: %w", err)
	}
	if rec == nil {
		return nil, apperr.NotFound("certification")
	}
	if !isAdmin && rec.OwnerID() != viewerID {
		return nil, apperr.Forbidden("certification belongs to another user")
	}

	req, err := s.repo.Latest(ctx, certID)
	if err != nil {
		return nil, fmt.Errorf("failed to load verification request: %w", err)
	}
	if req == nil {
		return nil, apperr.NotFound("verification request")
	}
	return req, nil
}

// Queue lists open requests oldest first and flags the ones waiting longer
// than the urgency threshold.
func (s *Service) Queue(ctx context.Context, filter QueueFilter) ([]QueueEntry, int64, error) {
	if filter.Status != "" && filter.Status != RequestQueued && filter.Status != RequestInReview {
		return nil, 0, apperr.Validation("status", "must be QUEUED or IN_REVIEW")
	}
	if filter.Limit <= 0 || filter.Limit > 100 {
		filter.Limit = 50
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	cutoff := s.now().Add(-s.cfg.UrgentAfter)
	entries, total, err := s.repo.Queue(ctx, filter, cutoff)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to load queue: %w", err)
	}
	for i := range entries {
		entries[i].Urgent = entries[i].CreatedAt.Before(cutoff)
	}
	return entries, total, nil
}

// CountUrgent counts open requests older than the urgency threshold.
func (s *Service) CountUrgent(ctx context.Context) (int64, error) {
	return s.repo.CountOpenBefore(ctx, s.now().Add(-s.cfg.UrgentAfter))
}

func (s *Service) ownCertification(ctx context.Context, userID, certID uuid.UUID) (*credentials.Certification, error) {
	rec, err := s.creds.GetForUpdate(ctx, credentials.KindCertification, certID)
	if err != nil {
		return nil, fmt.Errorf("failed to load certification: %w", err)
	}
	if rec == nil {
		return nil, apperr.NotFound("certification")
	}
	if rec.OwnerID() != userID {
		return nil, apperr.Forbidden("certification belongs to another user")
	}
	return rec.Certification, nil
}

func (s *Service) validateCertification(userID uuid.UUID, in credentials.CertificationInput) error {
	f := apperr.Fields{}
	if strings.TrimSpace(in.Name) == "" {
		f.Add("name", "is required")
	}
	if strings.TrimSpace(in.IssuingOrganization) == "" {
		f.Add("issuing_organization", "is required")
	}
	if in.IssueDate.IsZero() {
		f.Add("issue_date", "is required")
	} else if in.IssueDate.After(s.now()) {
		f.Add("issue_date", "must not be in the future")
	}
	if in.ExpiryDate != nil && !in.IssueDate.IsZero() && !in.ExpiryDate.After(in.IssueDate) {
		f.Add("expiry_date", "must be after issue_date")
	}
	if in.DocumentKey != "" && !documents.OwnsKey(userID, in.DocumentKey) {
		f.Add("document_key", "does not belong to this user")
	}
	return f.Err()
}

func applyCertification(c *credentials.Certification, in credentials.CertificationInput) {
	c.Name = strings.TrimSpace(in.Name)
	c.IssuingOrganization = strings.TrimSpace(in.IssuingOrganization)
	c.CredentialID = strings.TrimSpace(in.CredentialID)
	c.CredentialURL = strings.TrimSpace(in.CredentialURL)
	c.IssueDate = in.IssueDate
	c.ExpiryDate = in.ExpiryDate
	if in.DocumentKey != "" {
		c.DocumentKey = in.DocumentKey
	}
}

func (s *Service) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		s.logger.Warn("Failed to invalidate dashboard cache", zap.Error(err))
	}
}

func (s *Service) notify(ctx context.Context, req notifications.Request) {
	if s.notifier == nil {
		return
	}
	if _, err := s.notifier.Notify(ctx, req); err != nil {
		s.logger.Warn("Failed to send notification",
			zap.String("kind", string(req.Kind)),
			zap.String("user_id", req.UserID.String()),
			zap.Error(err))
	}
}
