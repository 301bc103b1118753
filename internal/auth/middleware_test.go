package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testSecret = []byte("test-secret")

type mockResolver struct {
	mock.Mock
}

func (m *mockResolver) Resolve(ctx context.Context, id Identity) (*Principal, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Principal), args.Error(1)
}

func newRouter(resolver UserResolver) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	protected := r.Group("/", JWTMiddleware(testSecret, "", resolver, zap.NewNop()))
	protected.GET("/me", NewHandler().Me)
	protected.GET("/admin", RequireAdmin(), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	return r
}

func TestMiddlewareRejectsMissingToken(t *testing.T) {
	r := newRouter(new(mockResolver))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestMiddlewareRejectsBadSignature(t *testing.T) {
	r := newRouter(new(mockResolver))
	token, err := GenerateToken([]byte("other"), "sub-1", "a@b.c", RoleMember, time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestMiddlewareResolvesUser(t *testing.T) {
	resolver := new(mockResolver)
	user := &Principal{UserID: uuid.New(), Email: "a@b.c", Role: RoleMember}
	resolver.On("Resolve", mock.Anything, Identity{Subject: "sub-1", Email: "a@b.c", Role: RoleMember}).
		Return(user, nil)

	r := newRouter(resolver)
	token, err := GenerateToken(testSecret, "sub-1", "a@b.c", RoleMember, time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), user.UserID.String())
	resolver.AssertExpectations(t)
}

func TestQueryTokenAndAdminGate(t *testing.T) {
	resolver := new(mockResolver)
	resolver.On("Resolve", mock.Anything, mock.Anything).
		Return(&Principal{UserID: uuid.New(), Role: RoleMember}, nil)

	r := newRouter(resolver)
	token, err := GenerateToken(testSecret, "sub-2", "m@b.c", RoleMember, time.Hour)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin?access_token="+token, nil))

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestParseTokenExpired(t *testing.T) {
	token, err := GenerateToken(testSecret, "sub-1", "a@b.c", RoleAdmin, -time.Minute)
	require.NoError(t, err)

	_, err = ParseToken(token, testSecret, "")
	assert.Error(t, err)
}
