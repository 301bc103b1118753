package verification

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"trustline/portal-backend/internal/apperr"
	"trustline/portal-backend/internal/config"
	"trustline/portal-backend/internal/credentials"
	"trustline/portal-backend/internal/notifications"
	"trustline/portal-backend/internal/payments"
	"trustline/portal-backend/internal/trustscore"
)

type testEnv struct {
	service  *Service
	creds    *memCredentials
	requests *memRequests
	users    *memUsers
	payments *mockPayments
	notifier *recordingNotifier
	cache    *countingCache
}

func newTestEnv(t *testing.T, cfg config.VerificationConfig, userIDs ...uuid.UUID) *testEnv {
	t.Helper()
	if cfg.UrgentAfter == 0 {
		cfg.UrgentAfter = 48 * time.Hour
	}
	if cfg.ResubmissionPolicy == "" {
		cfg.ResubmissionPolicy = config.ResubmitNewRecord
	}

	env := &testEnv{
		creds:    newMemCredentials(),
		users:    newMemUsers(userIDs...),
		payments: new(mockPayments),
		notifier: &recordingNotifier{},
		cache:    &countingCache{},
	}
	env.requests = newMemRequests()
	env.service = NewService(Deps{
		Credentials: env.creds,
		Requests:    env.requests,
		Tx:          inlineTx{},
		Payments:    env.payments,
		Scores:      trustscore.NewService(env.creds, env.users, inlineTx{}, zap.NewNop()),
		Notifier:    env.notifier,
		Cache:       env.cache,
	}, cfg, zap.NewNop())
	return env
}

func pendingCertification(userID uuid.UUID) *credentials.Certification {
	return &credentials.Certification{
		ID:                  uuid.New(),
		UserID:              userID,
		Name:                "AWS Solutions Architect",
		IssuingOrganization: "Amazon",
		IssueDate:           time.Now().AddDate(-1, 0, 0),
		Verification:        credentials.Verification{Status: credentials.StatusPending},
	}
}

func certInput() credentials.CertificationInput {
	return credentials.CertificationInput{
		Name:                "CKA",
		IssuingOrganization: "CNCF",
		IssueDate:           time.Now().AddDate(0, -3, 0),
	}
}

func validPayment() payments.Payment {
	return payments.Payment{Provider: "stripe", ProviderRef: "pi_123", AmountCents: 4900, Currency: "USD"}
}

func TestDecideRejectRequiresReason(t *testing.T) {
	env := newTestEnv(t, config.VerificationConfig{})
	cert := pendingCertification(uuid.New())
	env.creds.Create(context.Background(), credentials.CertificationRecord(cert))

	_, err := env.service.Decide(context.Background(), uuid.New(), Decision{
		Kind: credentials.KindCertification, RecordID: cert.ID, Accept: false, Reason: "   ",
	})

	var ve *apperr.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Fields, "reason")
	assert.Equal(t, credentials.StatusPending, cert.Status)
	assert.Empty(t, env.notifier.kinds())
}

func TestDecideUnknownKind(t *testing.T) {
	env := newTestEnv(t, config.VerificationConfig{})

	_, err := env.service.Decide(context.Background(), uuid.New(), Decision{Kind: "hobby", RecordID: uuid.New(), Accept: true})

	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestDecideMissingRecord(t *testing.T) {
	env := newTestEnv(t, config.VerificationConfig{})

	_, err := env.service.Decide(context.Background(), uuid.New(), Decision{
		Kind: credentials.KindExperience, RecordID: uuid.New(), Accept: true,
	})

	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestDecideAcceptCertificationSettlesRequest(t *testing.T) {
	ctx := context.Background()
	userID, adminID := uuid.New(), uuid.New()
	env := newTestEnv(t, config.VerificationConfig{}, userID)

	cert := pendingCertification(userID)
	env.creds.Create(ctx, credentials.CertificationRecord(cert))
	req := &Request{ID: uuid.New(), CertificationID: cert.ID, UserID: userID, Status: RequestQueued, Paid: true}
	env.requests.Create(ctx, req)

	result, err := env.service.Decide(ctx, adminID, Decision{
		Kind: credentials.KindCertification, RecordID: cert.ID, Accept: true,
	})

	require.NoError(t, err)
	assert.Equal(t, credentials.StatusVerified, cert.Status)
	require.NotNil(t, cert.DecidedBy)
	assert.Equal(t, adminID, *cert.DecidedBy)
	assert.NotNil(t, cert.DecidedAt)

	require.NotNil(t, result.Request)
	assert.Equal(t, RequestSuccessful, req.Status)
	assert.NotNil(t, req.CompletedAt)
	assert.Equal(t, adminID, *req.ReviewerID)

	// One verified certification out of one, nothing else: 30 points.
	assert.Equal(t, 30, result.TrustScore.TotalScore)
	assert.Equal(t, trustscore.LevelEmerging, result.TrustScore.Level)
	assert.Equal(t, 30, env.users.score(userID))
	assert.Equal(t, []notifications.Kind{notifications.KindCredentialVerified}, env.notifier.kinds())
	assert.Equal(t, 1, env.cache.calls)
}

func TestDecideRejectRecordsReason(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	env := newTestEnv(t, config.VerificationConfig{}, userID)

	cert := pendingCertification(userID)
	env.creds.Create(ctx, credentials.CertificationRecord(cert))
	req := &Request{ID: uuid.New(), CertificationID: cert.ID, UserID: userID, Status: RequestInReview}
	env.requests.Create(ctx, req)

	result, err := env.service.Decide(ctx, uuid.New(), Decision{
		Kind: credentials.KindCertification, RecordID: cert.ID, Reason: " certificate number does not match ",
	})

	require.NoError(t, err)
	assert.Equal(t, credentials.StatusRejected, cert.Status)
	assert.Equal(t, "certificate number does not match", cert.RejectionReason)
	assert.Equal(t, RequestFailed, req.Status)
	assert.Equal(t, "certificate number does not match", req.Notes)
	assert.Equal(t, 0, result.TrustScore.TotalScore)
	require.Len(t, env.notifier.sent, 1)
	assert.Equal(t, "certificate number does not match", env.notifier.sent[0].Data["reason"])
}

func TestDecideTerminalRecordConflicts(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	env := newTestEnv(t, config.VerificationConfig{}, userID)

	exp := &credentials.Experience{
		ID: uuid.New(), UserID: userID, Company: "Acme", Title: "Engineer",
		Verification: credentials.Verification{Status: credentials.StatusRejected, RejectionReason: "no reference"},
	}
	env.creds.Create(ctx, credentials.ExperienceRecord(exp))

	_, err := env.service.Decide(ctx, uuid.New(), Decision{Kind: credentials.KindExperience, RecordID: exp.ID, Accept: true})

	assert.ErrorIs(t, err, apperr.ErrConflict)
	assert.Equal(t, credentials.StatusRejected, exp.Status)
	assert.Equal(t, 0, env.cache.calls)
}

func TestVerifyingWholePortfolioReachesElite(t *testing.T) {
	ctx := context.Background()
	userID, adminID := uuid.New(), uuid.New()
	env := newTestEnv(t, config.VerificationConfig{}, userID)

	exp := &credentials.Experience{ID: uuid.New(), UserID: userID, Company: "Acme", Title: "Engineer",
		Verification: credentials.Verification{Status: credentials.StatusPending}}
	edu := &credentials.Education{ID: uuid.New(), UserID: userID, Institution: "MIT", Degree: "BSc",
		Verification: credentials.Verification{Status: credentials.StatusPending}}
	env.creds.Create(ctx, credentials.ExperienceRecord(exp))
	env.creds.Create(ctx, credentials.EducationRecord(edu))

	r1, err := env.service.Decide(ctx, adminID, Decision{Kind: credentials.KindExperience, RecordID: exp.ID, Accept: true})
	require.NoError(t, err)
	// No certifications: experience 35 plus the 15 point bonus.
	assert.Equal(t, 50, r1.TrustScore.TotalScore)
	assert.Nil(t, r1.Request)

	r2, err := env.service.Decide(ctx, adminID, Decision{Kind: credentials.KindEducation, RecordID: edu.ID, Accept: true})
	require.NoError(t, err)
	assert.Equal(t, 100, r2.TrustScore.TotalScore)
	assert.Equal(t, trustscore.LevelElite, r2.TrustScore.Level)
	assert.Equal(t, 100, env.users.score(userID))
}

func TestSubmitCertificationWithPaymentQueuesRequest(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	env := newTestEnv(t, config.VerificationConfig{}, userID)
	txnID := uuid.New()

	env.payments.On("RecordVerificationPayment", ctx, userID, mock.AnythingOfType("uuid.UUID"), validPayment()).
		Return(&payments.Transaction{ID: txnID, Status: payments.StatusCompleted}, nil)

	p := validPayment()
	out, err := env.service.SubmitCertification(ctx, userID, SubmitInput{CertificationInput: certInput(), Payment: &p})

	require.NoError(t, err)
	assert.Equal(t, credentials.StatusPending, out.Certification.Status)
	require.NotNil(t, out.Request)
	assert.Equal(t, RequestQueued, out.Request.Status)
	assert.True(t, out.Request.Paid)
	assert.Equal(t, txnID, *out.Request.TransactionID)
	assert.Equal(t, []notifications.Kind{notifications.KindVerificationQueued}, env.notifier.kinds())
	env.payments.AssertExpectations(t)
}

func TestSubmitCertificationWithoutPayment(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	env := newTestEnv(t, config.VerificationConfig{}, userID)

	out, err := env.service.SubmitCertification(ctx, userID, SubmitInput{CertificationInput: certInput()})

	require.NoError(t, err)
	assert.Nil(t, out.Request)
	env.payments.AssertNotCalled(t, "RecordVerificationPayment", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	assert.Empty(t, env.notifier.kinds())
}

func TestSubmitCertificationRejectsForeignDocument(t *testing.T) {
	env := newTestEnv(t, config.VerificationConfig{})
	in := certInput()
	in.DocumentKey = "certifications/" + uuid.NewString() + "/scan.pdf"

	_, err := env.service.SubmitCertification(context.Background(), uuid.New(), SubmitInput{CertificationInput: in})

	var ve *apperr.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Fields, "document_key")
}

func TestSubmitCertificationPaymentFailureAborts(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	env := newTestEnv(t, config.VerificationConfig{}, userID)

	env.payments.On("RecordVerificationPayment", ctx, userID, mock.Anything, mock.Anything).
		Return(nil, apperr.Conflict("payment reference already used"))

	p := validPayment()
	_, err := env.service.SubmitCertification(ctx, userID, SubmitInput{CertificationInput: certInput(), Payment: &p})

	assert.ErrorIs(t, err, apperr.ErrConflict)
	assert.Empty(t, env.notifier.kinds())
}

func TestRequestVerificationWhileOpenConflicts(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	env := newTestEnv(t, config.VerificationConfig{}, userID)

	cert := pendingCertification(userID)
	env.creds.Create(ctx, credentials.CertificationRecord(cert))
	env.requests.Create(ctx, &Request{ID: uuid.New(), CertificationID: cert.ID, UserID: userID, Status: RequestQueued})

	_, err := env.service.RequestVerification(ctx, userID, cert.ID, validPayment())

	assert.ErrorIs(t, err, apperr.ErrConflict)
	env.payments.AssertNotCalled(t, "RecordVerificationPayment", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRequestVerificationOtherOwner(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, config.VerificationConfig{})
	cert := pendingCertification(uuid.New())
	env.creds.Create(ctx, credentials.CertificationRecord(cert))

	_, err := env.service.RequestVerification(ctx, uuid.New(), cert.ID, validPayment())

	assert.ErrorIs(t, err, apperr.ErrForbidden)
}

func TestStartReview(t *testing.T) {
	ctx := context.Background()
	userID, adminID := uuid.New(), uuid.New()
	env := newTestEnv(t, config.VerificationConfig{}, userID)
	req := &Request{ID: uuid.New(), CertificationID: uuid.New(), UserID: userID, Status: RequestQueued}
	env.requests.Create(ctx, req)

	got, err := env.service.StartReview(ctx, adminID, req.ID)

	require.NoError(t, err)
	assert.Equal(t, RequestInReview, got.Status)
	assert.Equal(t, adminID, *got.ReviewerID)
	assert.NotNil(t, got.ReviewStartedAt)
	assert.Equal(t, []notifications.Kind{notifications.KindVerificationInReview}, env.notifier.kinds())

	_, err = env.service.StartReview(ctx, adminID, req.ID)
	assert.ErrorIs(t, err, apperr.ErrConflict)
}

func TestResubmitPolicies(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	t.Run("new record refuses", func(t *testing.T) {
		env := newTestEnv(t, config.VerificationConfig{ResubmissionPolicy: config.ResubmitNewRecord}, userID)
		cert := pendingCertification(userID)
		cert.Status = credentials.StatusRejected
		env.creds.Create(ctx, credentials.CertificationRecord(cert))

		_, err := env.service.Resubmit(ctx, userID, cert.ID, SubmitInput{CertificationInput: certInput()})

		assert.ErrorIs(t, err, apperr.ErrConflict)
		assert.Equal(t, credentials.StatusRejected, cert.Status)
	})

	t.Run("in place resets to pending", func(t *testing.T) {
		env := newTestEnv(t, config.VerificationConfig{ResubmissionPolicy: config.ResubmitInPlace}, userID)
		cert := pendingCertification(userID)
		cert.Status = credentials.StatusRejected
		cert.RejectionReason = "blurry scan"
		env.creds.Create(ctx, credentials.CertificationRecord(cert))

		out, err := env.service.Resubmit(ctx, userID, cert.ID, SubmitInput{CertificationInput: certInput()})

		require.NoError(t, err)
		assert.Equal(t, credentials.StatusPending, out.Certification.Status)
		assert.Empty(t, out.Certification.RejectionReason)
		assert.Nil(t, out.Certification.DecidedAt)
		assert.Equal(t, "CKA", out.Certification.Name)
	})

	t.Run("pending cannot be resubmitted", func(t *testing.T) {
		env := newTestEnv(t, config.VerificationConfig{ResubmissionPolicy: config.ResubmitInPlace}, userID)
		cert := pendingCertification(userID)
		env.creds.Create(ctx, credentials.CertificationRecord(cert))

		_, err := env.service.Resubmit(ctx, userID, cert.ID, SubmitInput{CertificationInput: certInput()})

		assert.ErrorIs(t, err, apperr.ErrConflict)
	})
}

func TestUpdateCertificationInReviewConflicts(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	env := newTestEnv(t, config.VerificationConfig{}, userID)
	cert := pendingCertification(userID)
	env.creds.Create(ctx, credentials.CertificationRecord(cert))
	env.requests.Create(ctx, &Request{ID: uuid.New(), CertificationID: cert.ID, UserID: userID, Status: RequestInReview})

	_, err := env.service.UpdateCertification(ctx, userID, cert.ID, certInput())

	assert.ErrorIs(t, err, apperr.ErrConflict)
	assert.Equal(t, "AWS Solutions Architect", cert.Name)
}

func TestWithdrawCertificationFailsOpenRequest(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	env := newTestEnv(t, config.VerificationConfig{}, userID)

	cert := pendingCertification(userID)
	cert.Status = credentials.StatusVerified
	env.creds.Create(ctx, credentials.CertificationRecord(cert))
	env.users.SetTrustScore(ctx, userID, 30)
	req := &Request{ID: uuid.New(), CertificationID: cert.ID, UserID: userID, Status: RequestQueued}
	env.requests.Create(ctx, req)

	require.NoError(t, env.service.WithdrawCertification(ctx, userID, cert.ID))

	assert.Equal(t, RequestFailed, req.Status)
	assert.Equal(t, "withdrawn by owner", req.Notes)
	rec, _ := env.creds.Get(ctx, credentials.KindCertification, cert.ID)
	assert.Nil(t, rec)
	assert.Equal(t, 0, env.users.score(userID))
}

func TestLatestRequestVisibility(t *testing.T) {
	ctx := context.Background()
	ownerID := uuid.New()
	env := newTestEnv(t, config.VerificationConfig{}, ownerID)
	cert := pendingCertification(ownerID)
	env.creds.Create(ctx, credentials.CertificationRecord(cert))

	older := &Request{ID: uuid.New(), CertificationID: cert.ID, Status: RequestFailed, CreatedAt: time.Now().Add(-2 * time.Hour)}
	newer := &Request{ID: uuid.New(), CertificationID: cert.ID, Status: RequestQueued, CreatedAt: time.Now().Add(-time.Hour)}
	env.requests.Create(ctx, older)
	env.requests.Create(ctx, newer)

	got, err := env.service.LatestRequest(ctx, ownerID, false, cert.ID)
	require.NoError(t, err)
	assert.Equal(t, newer.ID, got.ID)

	_, err = env.service.LatestRequest(ctx, uuid.New(), false, cert.ID)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	got, err = env.service.LatestRequest(ctx, uuid.New(), true, cert.ID)
	require.NoError(t, err)
	assert.Equal(t, newer.ID, got.ID)
}

func TestQueueFlagsUrgent(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, config.VerificationConfig{UrgentAfter: 48 * time.Hour})
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	env.service.now = func() time.Time { return now }

	stale := &Request{ID: uuid.New(), Status: RequestQueued, CreatedAt: now.Add(-72 * time.Hour)}
	fresh := &Request{ID: uuid.New(), Status: RequestInReview, CreatedAt: now.Add(-2 * time.Hour)}
	done := &Request{ID: uuid.New(), Status: RequestSuccessful, CreatedAt: now.Add(-100 * time.Hour)}
	for _, r := range []*Request{stale, fresh, done} {
		env.requests.Create(ctx, r)
	}

	entries, total, err := env.service.Queue(ctx, QueueFilter{Limit: 500})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, entries, 2)
	assert.Equal(t, stale.ID, entries[0].ID)
	assert.True(t, entries[0].Urgent)
	assert.False(t, entries[1].Urgent)

	urgent, err := env.service.CountUrgent(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), urgent)

	_, _, err = env.service.Queue(ctx, QueueFilter{Status: RequestSuccessful})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}
