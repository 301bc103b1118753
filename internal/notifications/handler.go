package notifications

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"trustline/portal-backend/internal/auth"
	"trustline/portal-backend/internal/httpx"
	"trustline/portal-backend/internal/notifications/websocket"
)

type Handler struct {
	service *Service
	ws      *websocket.Manager
	logger  *zap.Logger
}

func NewHandler(service *Service, ws *websocket.Manager, logger *zap.Logger) *Handler {
	return &Handler{service: service, ws: ws, logger: logger}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	n := rg.Group("/notifications")
	{
		n.GET("", h.list)
		n.GET("/unread-count", h.unreadCount)
		n.POST("/read-all", h.markAllRead)
		n.POST("/:id/read", h.markRead)
	}
	rg.GET("/ws", h.connect)
}

func (h *Handler) list(c *gin.Context) {
	unreadOnly := c.Query("unread") == "true"
	limit := httpx.IntQuery(c, "limit", 20)
	offset := httpx.IntQuery(c, "offset", 0)

	items, total, err := h.service.List(c.Request.Context(), auth.CurrentUser(c).UserID, unreadOnly, limit, offset)
	if err != nil {
		httpx.Error(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": items, "total": total})
}

func (h *Handler) unreadCount(c *gin.Context) {
	n, err := h.service.UnreadCount(c.Request.Context(), auth.CurrentUser(c).UserID)
	if err != nil {
		httpx.Error(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread": n})
}

func (h *Handler) markRead(c *gin.Context) {
	id, ok := httpx.ParamUUID(c, "id")
	if !ok {
		return
	}
	if err := h.service.MarkRead(c.Request.Context(), auth.CurrentUser(c).UserID, id); err != nil {
		httpx.Error(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) markAllRead(c *gin.Context) {
	n, err := h.service.MarkAllRead(c.Request.Context(), auth.CurrentUser(c).UserID)
	if err != nil {
		httpx.Error(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": n})
}

// connect upgrades to a websocket; the token may arrive as access_token.
func (h *Handler) connect(c *gin.Context) {
	user := auth.CurrentUser(c)
	if _, err := h.ws.HandleConnection(c.Writer, c.Request, user.UserID.String()); err != nil {
		h.logger.Warn("Websocket upgrade failed", zap.Error(err))
	}
}
