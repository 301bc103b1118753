package feed

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
	rg.GET("/feed", h.Feed)

	posts := rg.Group("/posts")
	{
		posts.POST("", h.CreatePost)
		posts.DELETE("/:id", h.DeletePost)
		posts.GET("/:id/comments", h.Comments)
		posts.POST("/:id/comments", h.Comment)
		posts.POST("/:id/like", h.Like)
		posts.DELETE("/:id/like", h.Unlike)
	}
}

// Feed handles GET /feed?cursor=&limit=
func (h *Handler) Feed(c *gin.Context) {
	page, err := h.service.Feed(c.Request.Context(), c.Query("cursor"), httpx.IntQuery(c, "limit", defaultPageSize))
	if err != nil {
		httpx.Error(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *Handler) CreatePost(c *gin.Context) {
	var in CreatePostInput
	if !httpx.BindJSON(c, &in) {
		return
	}
	post, err := h.service.CreatePost(c.Request.Context(), auth.CurrentUser(c).UserID, in)
	if err != nil {
		httpx.Error(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, post)
}

func (h *Handler) DeletePost(c *gin.Context) {
	id, ok := httpx.ParamUUID(c, "id")
	if !ok {
		return
	}
	p := auth.CurrentUser(c)
	if err := h.service.DeletePost(c.Request.Context(), p.UserID, p.IsAdmin(), id); err != nil {
		httpx.Error(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) Comments(c *gin.Context) {
	id, ok := httpx.ParamUUID(c, "id")
	if !ok {
		return
	}
	comments, err := h.service.Comments(c.Request.Context(), id,
		httpx.IntQuery(c, "limit", defaultPageSize), httpx.IntQuery(c, "offset", 0))
	if err != nil {
		httpx.Error(c, h.logger, err)
		return
	}
	if comments == nil {
		comments = []Comment{}
	}
	c.JSON(http.StatusOK, gin.H{"items": comments})
}

func (h *Handler) Comment(c *gin.Context) {
	id, ok := httpx.ParamUUID(c, "id")
	if !ok {
		return
	}
	var in CommentInput
	if !httpx.BindJSON(c, &in) {
		return
	}
	comment, err := h.service.Comment(c.Request.Context(), auth.CurrentUser(c).UserID, id, in)
	if err != nil {
		httpx.Error(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, comment)
}

func (h *Handler) Like(c *gin.Context) {
	id, ok := httpx.ParamUUID(c, "id")
	if !ok {
		return
	}
	if err := h.service.Like(c.Request.Context(), auth.CurrentUser(c).UserID, id); err != nil {
		httpx.Error(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) Unlike(c *gin.Context) {
	id, ok := httpx.ParamUUID(c, "id")
	if !ok {
		return
	}
	if err := h.service.Unlike(c.Request.Context(), auth.CurrentUser(c).UserID, id); err != nil {
		httpx.Error(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}
