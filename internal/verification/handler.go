package verification

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"trustline/portal-backend/internal/auth"
	"trustline/portal-backend/internal/credentials"
	"trustline/portal-backend/internal/httpx"
)

type Handler struct {
	service *Service
	logger  *zap.Logger
}

func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterRoutes mounts the owner's certification routes on rg and the
// review queue on admin.
func (h *Handler) RegisterRoutes(rg, admin *gin.RouterGroup) {
	certs := rg.Group("/certifications")
	{
		certs.POST("", h.SubmitCertification)
		certs.PUT("/:id", h.UpdateCertification)
		certs.DELETE("/:id", h.WithdrawCertification)
		certs.POST("/:id/verification", h.RequestVerification)
		certs.GET("/:id/verification", h.LatestRequest)
		certs.POST("/:id/resubmit", h.Resubmit)
	}

	admin.GET("/verifications", h.Queue)
	admin.POST("/verifications/:id/review", h.StartReview)
	admin.POST("/credentials/:kind/:id/decision", h.Decide)
}

func (h *Handler) SubmitCertification(c *gin.Context) {
	var in SubmitInput
	if !httpx.BindJSON(c, &in) {
		return
	}
	out, err := h.service.SubmitCertification(c.Request.Context(), auth.CurrentUser(c).UserID, in)
	if err != nil {
		httpx.Error(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, out)
}

func (h *Handler) UpdateCertification(c *gin.Context) {
	id, ok := httpx.ParamUUID(c, "id")
	if !ok {
		return
	}
	var in credentials.CertificationInput
	if !httpx.BindJSON(c, &in) {
		return
	}
	cert, err := h.service.UpdateCertification(c.Request.Context(), auth.CurrentUser(c).UserID, id, in)
	if err != nil {
		httpx.Error(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, cert)
}

func (h *Handler) WithdrawCertification(c *gin.Context) {
	id, ok := httpx.ParamUUID(c, "id")
	if !ok {
		return
	}
	if err := h.service.WithdrawCertification(c.Request.Context(), auth.CurrentUser(c).UserID, id); err != nil {
		httpx.Error(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) RequestVerification(c *gin.Context) {
	id, ok := httpx.ParamUUID(c, "id")
	if !ok {
		return
	}
	var in PaymentInput
	if !httpx.BindJSON(c, &in) {
		return
	}
	out, err := h.service.RequestVerification(c.Request.Context(), auth.CurrentUser(c).UserID, id, in.Payment)
	if err != nil {
		httpx.Error(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, out)
}

func (h *Handler) LatestRequest(c *gin.Context) {
	id, ok := httpx.ParamUUID(c, "id")
	if !ok {
		return
	}
	p := auth.CurrentUser(c)
	req, err := h.service.LatestRequest(c.Request.Context(), p.UserID, p.IsAdmin(), id)
	if err != nil {
		httpx.Error(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, req)
}

func (h *Handler) Resubmit(c *gin.Context) {
	id, ok := httpx.ParamUUID(c, "id")
	if !ok {
		return
	}
	var in SubmitInput
	if !httpx.BindJSON(c, &in) {
		return
	}
	out, err := h.service.Resubmit(c.Request.Context(), auth.CurrentUser(c).UserID, id, in)
	if err != nil {
		httpx.Error(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// Queue handles GET /admin/verifications?status=&urgent=&limit=&offset=
func (h *Handler) Queue(c *gin.Context) {
	filter := QueueFilter{
		Status:     RequestStatus(c.Query("status")),
		UrgentOnly: c.Query("urgent") == "true",
		Limit:      httpx.IntQuery(c, "limit", 50),
		Offset:     httpx.IntQuery(c, "offset", 0),
	}
	entries, total, err := h.service.Queue(c.Request.Context(), filter)
	if err != nil {
		httpx.Error(c, h.logger, err)
		return
	}
	if entries == nil {
		entries = []QueueEntry{}
	}
	c.JSON(http.StatusOK, gin.H{"items": entries, "total": total, "limit": filter.Limit, "offset": filter.Offset})
}

func (h *Handler) StartReview(c *gin.Context) {
	id, ok := httpx.ParamUUID(c, "id")
	if !ok {
		return
	}
	req, err := h.service.StartReview(c.Request.Context(), auth.CurrentUser(c).UserID, id)
	if err != nil {
		httpx.Error(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, req)
}

func (h *Handler) Decide(c *gin.Context) {
	kind, ok := credentials.ParseKind(c.Param("kind"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid kind"})
		return
	}
	id, ok := httpx.ParamUUID(c, "id")
	if !ok {
		return
	}
	var in DecisionInput
	if !httpx.BindJSON(c, &in) {
		return
	}

	result, err := h.service.Decide(c.Request.Context(), auth.CurrentUser(c).UserID, Decision{
		Kind:     kind,
		RecordID: id,
		Accept:   in.Outcome == "verify",
		Reason:   in.Reason,
	})
	if err != nil {
		httpx.Error(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
