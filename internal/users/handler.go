package users

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"trustline/portal-backend/internal/auth"
	"trustline/portal-backend/internal/httpx"
)

type Handler struct {
	service *Service
	logger  *zap.Logger
}

func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterRoutes registers profile routes on an authenticated group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/me", h.getMe)
	rg.PUT("/me", h.updateMe)
	rg.GET("/users/:id", h.getUser)
}

func (h *Handler) getMe(c *gin.Context) {
	user, err := h.service.GetProfile(c.Request.Context(), auth.CurrentUser(c).UserID)
	if err != nil {
		httpx.Error(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *Handler) updateMe(c *gin.Context) {
	var req UpdateProfileRequest
	if !httpx.BindJSON(c, &req) {
		return
	}

	user, err := h.service.UpdateProfile(c.Request.Context(), auth.CurrentUser(c).UserID, req)
	if err != nil {
		httpx.Error(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *Handler) getUser(c *gin.Context) {
	id, ok := httpx.ParamUUID(c, "id")
	if !ok {
		return
	}

	user, err := h.service.GetProfile(c.Request.Context(), id)
	if err != nil {
		httpx.Error(c, h.logger, err)
		return
	}

	// Contact details stay private to the owner.
	public := *user
	public.Email = ""
	public.Phone = ""
	c.JSON(http.StatusOK, public)
}
