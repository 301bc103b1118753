package trustscore

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"trustline/portal-backend/internal/apperr"
	"trustline/portal-backend/internal/auth"
	"trustline/portal-backend/internal/credentials"
	"trustline/portal-backend/internal/users"
)

type mockCredentials struct {
	mock.Mock
}

func (m *mockCredentials) Statuses(ctx context.Context, userID uuid.UUID) (*credentials.StatusSet, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*credentials.StatusSet), args.Error(1)
}

type mockUsers struct {
	mock.Mock
}

func (m *mockUsers) GetProfile(ctx context.Context, id uuid.UUID) (*users.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*users.User), args.Error(1)
}

func (m *mockUsers) LockProfile(ctx context.Context, id uuid.UUID) (*users.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*users.User), args.Error(1)
}

func (m *mockUsers) SetTrustScore(ctx context.Context, id uuid.UUID, score int) error {
	return m.Called(ctx, id, score).Error(0)
}

type inlineTx struct{}

func (inlineTx) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type mockLister struct {
	mock.Mock
}

func (m *mockLister) ListIDs(ctx context.Context, after uuid.UUID, limit int) ([]uuid.UUID, error) {
	args := m.Called(ctx, after, limit)
	return args.Get(0).([]uuid.UUID), args.Error(1)
}

func TestUpdatePersistsTotal(t *testing.T) {
	creds, store := new(mockCredentials), new(mockUsers)
	service := NewService(creds, store, inlineTx{}, zap.NewNop())
	ctx := context.Background()
	userID := uuid.New()

	store.On("LockProfile", ctx, userID).Return(&users.User{ID: userID}, nil)
	creds.On("Statuses", ctx, userID).Return(&credentials.StatusSet{
		Experiences: []credentials.Status{credentials.StatusVerified},
	}, nil)
	store.On("SetTrustScore", ctx, userID, 50).Return(nil)

	b, err := service.Update(ctx, userID)

	require.NoError(t, err)
	assert.Equal(t, 50, b.TotalScore)
	assert.Equal(t, LevelEstablished, b.Level)
	store.AssertExpectations(t)
}

func TestUpdateLocksUserBeforeReadingStatuses(t *testing.T) {
	creds, store := new(mockCredentials), new(mockUsers)
	tx := &countingTx{}
	service := NewService(creds, store, tx, zap.NewNop())
	ctx := context.Background()
	userID := uuid.New()
	var calls []string

	store.On("LockProfile", ctx, userID).Return(&users.User{ID: userID}, nil).
		Run(func(mock.Arguments) { calls = append(calls, "lock") })
	creds.On("Statuses", ctx, userID).Return(&credentials.StatusSet{
		Experiences: []credentials.Status{credentials.StatusVerified},
		Educations:  []credentials.Status{credentials.StatusVerified},
	}, nil).Run(func(mock.Arguments) { calls = append(calls, "statuses") })
	store.On("SetTrustScore", ctx, userID, 100).Return(nil).
		Run(func(mock.Arguments) { calls = append(calls, "store") })

	b, err := service.Update(ctx, userID)

	require.NoError(t, err)
	assert.Equal(t, 100, b.TotalScore)
	assert.Equal(t, []string{"lock", "statuses", "store"}, calls)
	assert.Equal(t, 1, tx.calls)
	store.AssertNotCalled(t, "GetProfile", mock.Anything, mock.Anything)
}

func TestUpdateUnknownUserStoresNothing(t *testing.T) {
	creds, store := new(mockCredentials), new(mockUsers)
	service := NewService(creds, store, inlineTx{}, zap.NewNop())
	ctx := context.Background()
	userID := uuid.New()

	store.On("LockProfile", ctx, userID).Return(nil, apperr.NotFound("user"))

	_, err := service.Update(ctx, userID)

	assert.ErrorIs(t, err, apperr.ErrNotFound)
	creds.AssertNotCalled(t, "Statuses", mock.Anything, mock.Anything)
	store.AssertNotCalled(t, "SetTrustScore", mock.Anything, mock.Anything, mock.Anything)
}

func TestCalculateUnknownUser(t *testing.T) {
	creds, store := new(mockCredentials), new(mockUsers)
	service := NewService(creds, store, inlineTx{}, zap.NewNop())
	ctx := context.Background()
	userID := uuid.New()

	store.On("GetProfile", ctx, userID).Return(nil, apperr.NotFound("user"))

	_, err := service.Calculate(ctx, userID)

	assert.ErrorIs(t, err, apperr.ErrNotFound)
	creds.AssertNotCalled(t, "Statuses", mock.Anything, mock.Anything)
}

func TestCalculateHasNoSideEffects(t *testing.T) {
	creds, store := new(mockCredentials), new(mockUsers)
	service := NewService(creds, store, inlineTx{}, zap.NewNop())
	ctx := context.Background()
	userID := uuid.New()

	store.On("GetProfile", ctx, userID).Return(&users.User{ID: userID}, nil)
	creds.On("Statuses", ctx, userID).Return(&credentials.StatusSet{}, nil)

	first, err := service.Calculate(ctx, userID)
	require.NoError(t, err)
	second, err := service.Calculate(ctx, userID)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	store.AssertNotCalled(t, "SetTrustScore", mock.Anything, mock.Anything, mock.Anything)
}

func TestReconcileCorrectsStaleScores(t *testing.T) {
	creds, store, lister := new(mockCredentials), new(mockUsers), new(mockLister)
	service := NewService(creds, store, inlineTx{}, zap.NewNop())
	ctx := context.Background()
	fresh, stale := uuid.New(), uuid.New()

	lister.On("ListIDs", ctx, uuid.Nil, 2).Return([]uuid.UUID{fresh, stale}, nil)
	lister.On("ListIDs", ctx, stale, 2).Return([]uuid.UUID{}, nil)
	store.On("LockProfile", ctx, fresh).Return(&users.User{ID: fresh, TrustScore: 0}, nil)
	store.On("LockProfile", ctx, stale).Return(&users.User{ID: stale, TrustScore: 100}, nil)
	creds.On("Statuses", ctx, fresh).Return(&credentials.StatusSet{}, nil)
	creds.On("Statuses", ctx, stale).Return(&credentials.StatusSet{
		Educations: []credentials.Status{credentials.StatusVerified},
	}, nil)
	store.On("SetTrustScore", ctx, stale, 50).Return(nil)

	corrected, err := service.Reconcile(ctx, lister, 2)

	require.NoError(t, err)
	assert.Equal(t, 1, corrected)
	store.AssertNotCalled(t, "SetTrustScore", ctx, fresh, mock.Anything)
}

func TestReconcileRunsEachUserInItsOwnTransaction(t *testing.T) {
	creds, store, lister := new(mockCredentials), new(mockUsers), new(mockLister)
	tx := &countingTx{}
	service := NewService(creds, store, tx, zap.NewNop())
	ctx := context.Background()
	a, b, missing := uuid.New(), uuid.New(), uuid.New()

	lister.On("ListIDs", ctx, uuid.Nil, 5).Return([]uuid.UUID{a, missing, b}, nil)
	store.On("LockProfile", ctx, a).Return(&users.User{ID: a, TrustScore: 10}, nil)
	store.On("LockProfile", ctx, missing).Return(nil, apperr.NotFound("user"))
	store.On("LockProfile", ctx, b).Return(&users.User{ID: b, TrustScore: 0}, nil)
	creds.On("Statuses", ctx, a).Return(&credentials.StatusSet{}, nil)
	creds.On("Statuses", ctx, b).Return(&credentials.StatusSet{
		Experiences: []credentials.Status{credentials.StatusVerified},
	}, nil)
	store.On("SetTrustScore", ctx, a, 0).Return(nil)
	store.On("SetTrustScore", ctx, b, 50).Return(nil)

	corrected, err := service.Reconcile(ctx, lister, 5)

	require.NoError(t, err)
	assert.Equal(t, 2, corrected)
	assert.Equal(t, 3, tx.calls)
	store.AssertNotCalled(t, "GetProfile", mock.Anything, mock.Anything)
}

// countingTx runs fn inline and counts transactions.
type countingTx struct {
	calls int
}

func (c *countingTx) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	c.calls++
	return fn(ctx)
}

func TestHandlerGetTrustScore(t *testing.T) {
	gin.SetMode(gin.TestMode)
	creds, store := new(mockCredentials), new(mockUsers)
	service := NewService(creds, store, inlineTx{}, zap.NewNop())
	userID := uuid.New()

	store.On("GetProfile", mock.Anything, userID).Return(&users.User{ID: userID}, nil)
	creds.On("Statuses", mock.Anything, userID).Return(&credentials.StatusSet{
		Certifications: []credentials.Status{credentials.StatusVerified, credentials.StatusVerified, credentials.StatusPending, credentials.StatusPending},
	}, nil)

	router := gin.New()
	rg := router.Group("/api/v1", auth.AsPrincipal(&auth.Principal{UserID: uuid.New(), Role: auth.RoleMember}))
	NewHandler(service, zap.NewNop()).RegisterRoutes(rg)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/"+userID.String()+"/trust-score", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var b Breakdown
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &b))
	assert.Equal(t, 15, b.TotalScore)
	assert.Equal(t, LevelBuilding, b.Level)
}
