package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	appintegration "github.com/tometh04/vibook-services-sub001/internal/application/integration"
	"github.com/tometh04/vibook-services-sub001/internal/interfaces/http/dto"
	"github.com/tometh04/vibook-services-sub001/internal/interfaces/http/middleware"
)

// WebhookDeliveryHandler processes board webhook deliveries
type WebhookDeliveryHandler interface {
	HandleDelivery(ctx context.Context, tenantID uuid.UUID, delivery appintegration.WebhookDelivery) (appintegration.WebhookOutcome, error)
}

var _ WebhookDeliveryHandler = (*appintegration.WebhookService)(nil)

// BoardWebhookHandler receives Trello webhook callbacks.
//
// Any failure is answered with a 5xx so Trello redelivers; the delivery
// dedup mark is released by the service in that case.
type BoardWebhookHandler struct {
	BaseHandler
	service WebhookDeliveryHandler
	logger  *zap.Logger
}

// NewBoardWebhookHandler creates a new BoardWebhookHandler
func NewBoardWebhookHandler(service WebhookDeliveryHandler, logger *zap.Logger) *BoardWebhookHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BoardWebhookHandler{service: service, logger: logger}
}

// RegisterRoutes mounts the callback routes on r
func (h *BoardWebhookHandler) RegisterRoutes(r gin.IRoutes) {
	r.HEAD(appintegration.WebhookCallbackPath+":tenant_id", h.Verify)
	r.GET(appintegration.WebhookCallbackPath+":tenant_id", h.Verify)
	r.POST(appintegration.WebhookCallbackPath+":tenant_id", h.Receive)
}

// Verify answers Trello's callback URL check
func (h *BoardWebhookHandler) Verify(c *gin.Context) {
	c.Status(http.StatusOK)
}

// Receive handles one delivery. OnCardEvent completes before the response.
func (h *BoardWebhookHandler) Receive(c *gin.Context) {
	tenantID, err := uuid.Parse(c.Param("tenant_id"))
	if err != nil || tenantID == uuid.Nil {
		h.Error(c, http.StatusBadRequest, dto.ErrCodeMissingTenant, "tenant in callback path must be a UUID")
		return
	}

	var envelope dto.BoardWebhookEnvelope
	if err := c.ShouldBindJSON(&envelope); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	outcome, err := h.service.HandleDelivery(c.Request.Context(), tenantID, appintegration.WebhookDelivery{
		ActionID:   envelope.Action.ID,
		ActionType: envelope.Action.Type,
		CardID:     envelope.CardID(),
	})
	if err != nil {
		_ = c.Error(err)
		h.logger.Warn("Board webhook delivery failed",
			zap.String("tenant_id", tenantID.String()),
			zap.String("action_id", envelope.Action.ID),
			zap.String("card_id", envelope.CardID()),
			zap.Error(err),
		)
		h.Error(c, http.StatusInternalServerError, errorCode(err), "webhook delivery failed")
		return
	}
	h.Success(c, outcome)
}
