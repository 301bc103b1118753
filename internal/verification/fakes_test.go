package verification

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"trustline/portal-backend/internal/apperr"
	"trustline/portal-backend/internal/credentials"
	"trustline/portal-backend/internal/notifications"
	"trustline/portal-backend/internal/payments"
	"trustline/portal-backend/internal/users"
)

// memCredentials keeps credential records in memory. Deleted records are
// dropped, matching the soft delete filter of the gorm repository.
type memCredentials struct {
	mu      sync.Mutex
	records map[uuid.UUID]*credentials.Record
}

func newMemCredentials(recs ...*credentials.Record) *memCredentials {
	m := &memCredentials{records: map[uuid.UUID]*credentials.Record{}}
	for _, r := range recs {
		m.records[r.ID()] = r
	}
	return m
}

func (m *memCredentials) Create(ctx context.Context, rec *credentials.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[rec.ID()] = rec
	return nil
}

func (m *memCredentials) Get(ctx context.Context, kind credentials.Kind, id uuid.UUID) (*credentials.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok || rec.Kind != kind {
		return nil, nil
	}
	return rec, nil
}

func (m *memCredentials) GetForUpdate(ctx context.Context, kind credentials.Kind, id uuid.UUID) (*credentials.Record, error) {
	return m.Get(ctx, kind, id)
}

func (m *memCredentials) Save(ctx context.Context, rec *credentials.Record) error {
	return m.Create(ctx, rec)
}

func (m *memCredentials) SaveDetails(ctx context.Context, rec *credentials.Record) error {
	return m.Create(ctx, rec)
}

func (m *memCredentials) Delete(ctx context.Context, kind credentials.Kind, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[id]; !ok {
		return apperr.NotFound(string(kind))
	}
	delete(m.records, id)
	return nil
}

func (m *memCredentials) ListByUser(ctx context.Context, userID uuid.UUID) (*credentials.Portfolio, error) {
	return &credentials.Portfolio{}, nil
}

func (m *memCredentials) Statuses(ctx context.Context, userID uuid.UUID) (*credentials.StatusSet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	set := &credentials.StatusSet{}
	for _, rec := range m.records {
		if rec.OwnerID() != userID {
			continue
		}
		status := rec.State().Status
		switch rec.Kind {
		case credentials.KindExperience:
			set.Experiences = append(set.Experiences, status)
		case credentials.KindEducation:
			set.Educations = append(set.Educations, status)
		case credentials.KindCertification:
			set.Certifications = append(set.Certifications, status)
		}
	}
	return set, nil
}

// memRequests is an in-memory Repository.
type memRequests struct {
	mu       sync.Mutex
	requests map[uuid.UUID]*Request
}

func newMemRequests(reqs ...*Request) *memRequests {
	m := &memRequests{requests: map[uuid.UUID]*Request{}}
	for _, r := range reqs {
		m.requests[r.ID] = r
	}
	return m
}

func (m *memRequests) Create(ctx context.Context, req *Request) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now()
	}
	m.requests[req.ID] = req
	return nil
}

func (m *memRequests) Save(ctx context.Context, req *Request) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests[req.ID] = req
	return nil
}

func (m *memRequests) GetForUpdate(ctx context.Context, id uuid.UUID) (*Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requests[id], nil
}

func (m *memRequests) sorted(keep func(*Request) bool) []*Request {
	var out []*Request
	for _, r := range m.requests {
		if keep(r) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (m *memRequests) Latest(ctx context.Context, certID uuid.UUID) (*Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	reqs := m.sorted(func(r *Request) bool { return r.CertificationID == certID })
	if len(reqs) == 0 {
		return nil, nil
	}
	return reqs[len(reqs)-1], nil
}

func (m *memRequests) LatestOpenForUpdate(ctx context.Context, certID uuid.UUID) (*Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	reqs := m.sorted(func(r *Request) bool { return r.CertificationID == certID && isOpen(r.Status) })
	if len(reqs) == 0 {
		return nil, nil
	}
	return reqs[len(reqs)-1], nil
}

func (m *memRequests) Queue(ctx context.Context, filter QueueFilter, urgentBefore time.Time) ([]QueueEntry, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	reqs := m.sorted(func(r *Request) bool {
		if filter.Status != "" && r.Status != filter.Status {
			return false
		}
		if filter.UrgentOnly && !r.CreatedAt.Before(urgentBefore) {
			return false
		}
		return isOpen(r.Status)
	})
	entries := make([]QueueEntry, 0, len(reqs))
	for _, r := range reqs {
		entries = append(entries, QueueEntry{Request: *r})
	}
	return entries, int64(len(entries)), nil
}

func (m *memRequests) CountOpenBefore(ctx context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.sorted(func(r *Request) bool { return isOpen(r.Status) && r.CreatedAt.Before(before) }))), nil
}

func isOpen(s RequestStatus) bool {
	return s == RequestQueued || s == RequestInReview
}

// memUsers backs the trust score service.
type memUsers struct {
	mu     sync.Mutex
	scores map[uuid.UUID]int
}

func newMemUsers(ids ...uuid.UUID) *memUsers {
	m := &memUsers{scores: map[uuid.UUID]int{}}
	for _, id := range ids {
		m.scores[id] = 0
	}
	return m
}

func (m *memUsers) GetProfile(ctx context.Context, id uuid.UUID) (*users.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	score, ok := m.scores[id]
	if !ok {
		return nil, apperr.NotFound("user")
	}
	return &users.User{ID: id, TrustScore: score}, nil
}

func (m *memUsers) LockProfile(ctx context.Context, id uuid.UUID) (*users.User, error) {
	return m.GetProfile(ctx, id)
}

func (m *memUsers) SetTrustScore(ctx context.Context, id uuid.UUID, score int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scores[id] = score
	return nil
}

func (m *memUsers) score(id uuid.UUID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.scores[id]
}

type mockPayments struct {
	mock.Mock
}

func (m *mockPayments) RecordVerificationPayment(ctx context.Context, userID, requestID uuid.UUID, p payments.Payment) (*payments.Transaction, error) {
	args := m.Called(ctx, userID, requestID, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payments.Transaction), args.Error(1)
}

// recordingNotifier keeps every request it was asked to send.
type recordingNotifier struct {
	mu   sync.Mutex
	sent []notifications.Request
}

func (n *recordingNotifier) Notify(ctx context.Context, req notifications.Request) (*notifications.Notification, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, req)
	return &notifications.Notification{ID: uuid.New(), UserID: req.UserID, Kind: req.Kind}, nil
}

func (n *recordingNotifier) kinds() []notifications.Kind {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]notifications.Kind, 0, len(n.sent))
	for _, r := range n.sent {
		out = append(out, r.Kind)
	}
	return out
}

type countingCache struct {
	calls int
}

func (c *countingCache) Invalidate(ctx context.Context) error {
	c.calls++
	return nil
}

type inlineTx struct{}

func (inlineTx) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
