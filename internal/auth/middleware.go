package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const currentUserKey = "current_user"

const (
	RoleMember = "member"
	RoleAdmin  = "admin"
)

// Identity is what the auth provider vouches for. It is trusted as given.
type Identity struct {
	Subject string
	Email   string
	Role    string
}

// Principal is the authenticated caller resolved to a local user.
type Principal struct {
	UserID uuid.UUID `json:"id"`
	Email  string    `json:"email"`
	Role   string    `json:"role"`
}

func (p *Principal) IsAdmin() bool {
	return p != nil && p.Role == RoleAdmin
}

// Claims issued by the auth provider. Subject is its stable user identifier.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
	Role  string `json:"role,omitempty"`
}

var ErrInvalidToken = errors.New("invalid token")

// UserResolver maps a verified identity to the local user row.
type UserResolver interface {
	Resolve(ctx context.Context, id Identity) (*Principal, error)
}

// GenerateToken signs an HS256 token; used by tests and local tooling.
func GenerateToken(secret []byte, subject, email, role string, validity time.Duration) (string, error) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(validity)),
		},
		Email: email,
		Role:  role,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// ParseToken verifies the signature and standard claims.
func ParseToken(tokenString string, secret []byte, issuer string) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	if !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// JWTMiddleware authenticates the bearer token and loads the caller.
// Websocket clients may pass the token as the access_token query parameter.
func JWTMiddleware(secret []byte, issuer string, resolver UserResolver, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokStr := c.Query("access_token")
		if header := c.GetHeader("Authorization"); header != "" {
			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header"})
				return
			}
			tokStr = parts[1]
		}
		if tokStr == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
			return
		}

		claims, err := ParseToken(tokStr, secret, issuer)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		principal, err := resolver.Resolve(c.Request.Context(), Identity{
			Subject: claims.Subject,
			Email:   claims.Email,
			Role:    claims.Role,
		})
		if err != nil {
			logger.Error("Failed to resolve user", zap.Error(err), zap.String("subject", claims.Subject))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
			return
		}

		c.Set(currentUserKey, principal)
		c.Next()
	}
}

// RequireAdmin must run after JWTMiddleware.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !CurrentUser(c).IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin role required"})
			return
		}
		c.Next()
	}
}

// CurrentUser returns the authenticated caller, or nil outside JWTMiddleware.
func CurrentUser(c *gin.Context) *Principal {
	v, ok := c.Get(currentUserKey)
	if !ok {
		return nil
	}
	p, _ := v.(*Principal)
	return p
}

// SetCurrentUser is used by tests that bypass the token check.
func SetCurrentUser(c *gin.Context, p *Principal) {
	c.Set(currentUserKey, p)
}

// AsPrincipal is a test helper producing a middleware that authenticates as p.
func AsPrincipal(p *Principal) gin.HandlerFunc {
	return func(c *gin.Context) {
		SetCurrentUser(c, p)
		c.Next()
	}
}
