package payments

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

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/me/transactions", h.list)
	rg.GET("/verification-fee", h.fee)
}

func (h *Handler) list(c *gin.Context) {
	limit := httpx.IntQuery(c, "limit", 20)
	offset := httpx.IntQuery(c, "offset", 0)

	txs, total, err := h.service.ListForUser(c.Request.Context(), auth.CurrentUser(c).UserID, limit, offset)
	if err != nil {
		httpx.Error(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": txs, "total": total})
}

func (h *Handler) fee(c *gin.Context) {
	amount, currency := h.service.Fee()
	c.JSON(http.StatusOK, gin.H{"amount_cents": amount, "currency": currency})
}
