package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Handler exposes the identity of the caller. Sign-up, login and password
// flows live with the auth provider.
type Handler struct{}

func NewHandler() *Handler {
	return &Handler{}
}

// Ping endpoint
func (h *Handler) Ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "auth service alive!"})
}

// Me echoes the resolved local user.
func (h *Handler) Me(c *gin.Context) {
	p := CurrentUser(c)
	if p == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
		return
	}
	c.JSON(http.StatusOK, p)
}
