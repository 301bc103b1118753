package credentials

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
	rg.GET("/me/credentials", h.myPortfolio)
	rg.GET("/users/:id/credentials", h.userPortfolio)

	exp := rg.Group("/experiences")
	{
		exp.POST("", h.addExperience)
		exp.PUT("/:id", h.updateExperience)
		exp.DELETE("/:id", h.withdraw(KindExperience))
	}

	edu := rg.Group("/educations")
	{
		edu.POST("", h.addEducation)
		edu.PUT("/:id", h.updateEducation)
		edu.DELETE("/:id", h.withdraw(KindEducation))
	}
}

func (h *Handler) myPortfolio(c *gin.Context) {
	p, err := h.service.Portfolio(c.Request.Context(), auth.CurrentUser(c).UserID)
	if err != nil {
		httpx.Error(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handler) userPortfolio(c *gin.Context) {
	id, ok := httpx.ParamUUID(c, "id")
	if !ok {
		return
	}
	p, err := h.service.Portfolio(c.Request.Context(), id)
	if err != nil {
		httpx.Error(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handler) addExperience(c *gin.Context) {
	var in ExperienceInput
	if !httpx.BindJSON(c, &in) {
		return
	}
	exp, err := h.service.AddExperience(c.Request.Context(), auth.CurrentUser(c).UserID, in)
	if err != nil {
		httpx.Error(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, exp)
}

func (h *Handler) updateExperience(c *gin.Context) {
	id, ok := httpx.ParamUUID(c, "id")
	if !ok {
		return
	}
	var in ExperienceInput
	if !httpx.BindJSON(c, &in) {
		return
	}
	exp, err := h.service.UpdateExperience(c.Request.Context(), auth.CurrentUser(c).UserID, id, in)
	if err != nil {
		httpx.Error(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, exp)
}

func (h *Handler) addEducation(c *gin.Context) {
	var in EducationInput
	if !httpx.BindJSON(c, &in) {
		return
	}
	edu, err := h.service.AddEducation(c.Request.Context(), auth.CurrentUser(c).UserID, in)
	if err != nil {
		httpx.Error(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, edu)
}

func (h *Handler) updateEducation(c *gin.Context) {
	id, ok := httpx.ParamUUID(c, "id")
	if !ok {
		return
	}
	var in EducationInput
	if !httpx.BindJSON(c, &in) {
		return
	}
	edu, err := h.service.UpdateEducation(c.Request.Context(), auth.CurrentUser(c).UserID, id, in)
	if err != nil {
		httpx.Error(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, edu)
}

func (h *Handler) withdraw(kind Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := httpx.ParamUUID(c, "id")
		if !ok {
			return
		}
		if err := h.service.Withdraw(c.Request.Context(), auth.CurrentUser(c).UserID, kind, id); err != nil {
			httpx.Error(c, h.logger, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}
