package documents

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

// RegisterRoutes mounts upload routes on rg and the reviewer link on admin.
func (h *Handler) RegisterRoutes(rg, admin *gin.RouterGroup) {
	docs := rg.Group("/documents")
	{
		docs.POST("/presign", h.Presign)
		docs.POST("/upload", h.Upload)
		docs.POST("/:id/confirm", h.Confirm)
		docs.DELETE("/:id", h.Delete)
	}
	admin.GET("/certifications/:id/document", h.CertificationDocument)
}

func (h *Handler) Presign(c *gin.Context) {
	var req PresignRequest
	if !httpx.BindJSON(c, &req) {
		return
	}
	ticket, err := h.service.PresignUpload(c.Request.Context(), auth.CurrentUser(c).UserID, req)
	if err != nil {
		httpx.Error(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, ticket)
}

func (h *Handler) Upload(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}

	f, err := file.Open()
	if err != nil {
		httpx.Error(c, h.logger, err)
		return
	}
	defer f.Close()

	contentType := file.Header.Get("Content-Type")
	doc, err := h.service.Upload(c.Request.Context(), auth.CurrentUser(c).UserID, file.Filename, contentType, file.Size, f)
	if err != nil {
		httpx.Error(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, doc)
}

func (h *Handler) Confirm(c *gin.Context) {
	id, ok := httpx.ParamUUID(c, "id")
	if !ok {
		return
	}
	doc, err := h.service.Confirm(c.Request.Context(), auth.CurrentUser(c).UserID, id)
	if err != nil {
		httpx.Error(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

func (h *Handler) Delete(c *gin.Context) {
	id, ok := httpx.ParamUUID(c, "id")
	if !ok {
		return
	}
	if err := h.service.Remove(c.Request.Context(), auth.CurrentUser(c).UserID, id); err != nil {
		httpx.Error(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) CertificationDocument(c *gin.Context) {
	id, ok := httpx.ParamUUID(c, "id")
	if !ok {
		return
	}
	link, err := h.service.CertificationDocument(c.Request.Context(), id)
	if err != nil {
		httpx.Error(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, link)
}
