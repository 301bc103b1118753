package export

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"trustline/portal-backend/internal/httpx"
)

type Handler struct {
	service *Service
	logger  *zap.Logger
}

func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) RegisterRoutes(admin *gin.RouterGroup) {
	admin.GET("/dashboard/export", h.Export)
}

// Export handles GET /admin/dashboard/export?format=xlsx|pdf|csv
func (h *Handler) Export(c *gin.Context) {
	format, err := ParseFormat(c.DefaultQuery("format", string(FormatXLSX)))
	if err != nil {
		httpx.Error(c, h.logger, err)
		return
	}

	file, err := h.service.Export(c.Request.Context(), format, time.Now())
	if err != nil {
		httpx.Error(c, h.logger, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+file.Name+`"`)
	c.Data(http.StatusOK, file.ContentType, file.Data)
}
