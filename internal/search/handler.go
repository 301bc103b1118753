package search

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"trustline/portal-backend/internal/apperr"
	"trustline/portal-backend/internal/httpx"
)

type Searcher interface {
	Search(ctx context.Context, q Query) (*Result, error)
}

type Handler struct {
	searcher Searcher
	logger   *zap.Logger
}

func NewHandler(searcher Searcher, logger *zap.Logger) *Handler {
	return &Handler{searcher: searcher, logger: logger}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/profiles/search", h.search)
}

func (h *Handler) search(c *gin.Context) {
	minScore := httpx.IntQuery(c, "min_score", 0)
	if minScore < 0 || minScore > 100 {
		httpx.Error(c, h.logger, apperr.Validation("min_score", "must be between 0 and 100"))
		return
	}

	result, err := h.searcher.Search(c.Request.Context(), Query{
		Text:     c.Query("q"),
		Industry: c.Query("industry"),
		MinScore: minScore,
		Limit:    httpx.IntQuery(c, "limit", defaultLimit),
		Offset:   httpx.IntQuery(c, "offset", 0),
	})
	if err != nil {
		httpx.Error(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
