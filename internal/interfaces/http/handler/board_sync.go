package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	appintegration "github.com/tometh04/vibook-services-sub001/internal/application/integration"
	"github.com/tometh04/vibook-services-sub001/internal/domain/integration"
	"github.com/tometh04/vibook-services-sub001/internal/interfaces/http/dto"
	"github.com/tometh04/vibook-services-sub001/internal/interfaces/http/middleware"
)

const defaultRunListLimit = 20

// BoardSyncOperator is the operator surface of board sync
type BoardSyncOperator interface {
	RunReconciliation(ctx context.Context, tenantID uuid.UUID, mode integration.RunMode) (*appintegration.RunSummary, error)
	FullReset(ctx context.Context, tenantID uuid.UUID) (*appintegration.RunSummary, error)
	SyncOneCard(ctx context.Context, tenantID uuid.UUID, cardID string) (appintegration.WebhookOutcome, error)
	RecentRuns(tenantID uuid.UUID, limit int) []appintegration.RunSummary
	RegisterWebhook(ctx context.Context, tenantID uuid.UUID) (*integration.Webhook, error)
	ListWebhooks(ctx context.Context, tenantID uuid.UUID) ([]integration.Webhook, error)
	DeleteWebhook(ctx context.Context, tenantID uuid.UUID) error
}

var _ BoardSyncOperator = (*appintegration.OperatorService)(nil)

// BoardSyncHandler serves the operator API under /board-sync
type BoardSyncHandler struct {
	BaseHandler
	operator BoardSyncOperator
}

// NewBoardSyncHandler creates a new BoardSyncHandler
func NewBoardSyncHandler(operator BoardSyncOperator) *BoardSyncHandler {
	return &BoardSyncHandler{operator: operator}
}

// RegisterRoutes mounts the operator routes on rg
func (h *BoardSyncHandler) RegisterRoutes(rg *gin.RouterGroup) {
	bs := rg.Group("/board-sync")
	bs.POST("/runs", h.TriggerRun)
	bs.GET("/runs", h.ListRuns)
	bs.POST("/reset", h.Reset)
	bs.POST("/cards/:card_id/sync", h.SyncCard)
	bs.POST("/webhook", h.RegisterWebhook)
	bs.GET("/webhooks", h.ListWebhooks)
	bs.DELETE("/webhook", h.DeleteWebhook)
}

// TriggerRun runs a reconciliation synchronously and returns its summary
func (h *BoardSyncHandler) TriggerRun(c *gin.Context) {
	tenantID, ok := h.requireTenant(c)
	if !ok {
		return
	}
	var req dto.TriggerRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}
	mode, err := integration.ParseRunMode(req.Mode)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	summary, err := h.operator.RunReconciliation(c.Request.Context(), tenantID, mode)
	h.respondRun(c, summary, err)
}

// Reset deletes the tenant's board leads and re-imports the board
func (h *BoardSyncHandler) Reset(c *gin.Context) {
	tenantID, ok := h.requireTenant(c)
	if !ok {
		return
	}
	summary, err := h.operator.FullReset(c.Request.Context(), tenantID)
	h.respondRun(c, summary, err)
}

// respondRun reports aborted runs as 502 with their partial summary
func (h *BoardSyncHandler) respondRun(c *gin.Context, summary *appintegration.RunSummary, err error) {
	if err == nil {
		h.Success(c, summary)
		return
	}
	if summary != nil && errors.Is(err, integration.ErrRunAborted) {
		_ = c.Error(err)
		c.JSON(http.StatusBadGateway, dto.NewPartialResponse(summary, dto.ErrCodeRunAborted, err.Error(), getRequestID(c)))
		return
	}
	h.HandleError(c, err)
}

// ListRuns returns the tenant's recent run summaries, newest first
func (h *BoardSyncHandler) ListRuns(c *gin.Context) {
	tenantID, ok := h.requireTenant(c)
	if !ok {
		return
	}
	var req dto.ListRunsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}
	limit := req.Limit
	if limit == 0 {
		limit = defaultRunListLimit
	}
	runs := h.operator.RecentRuns(tenantID, limit)
	if runs == nil {
		runs = []appintegration.RunSummary{}
	}
	h.Success(c, runs)
}

// SyncCard re-syncs one card through the webhook path
func (h *BoardSyncHandler) SyncCard(c *gin.Context) {
	tenantID, ok := h.requireTenant(c)
	if !ok {
		return
	}
	var req dto.CardURIRequest
	if err := c.ShouldBindUri(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}
	outcome, err := h.operator.SyncOneCard(c.Request.Context(), tenantID, req.CardID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, outcome)
}

// RegisterWebhook registers the tenant's board webhook
func (h *BoardSyncHandler) RegisterWebhook(c *gin.Context) {
	tenantID, ok := h.requireTenant(c)
	if !ok {
		return
	}
	webhook, err := h.operator.RegisterWebhook(c.Request.Context(), tenantID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, toWebhookResponse(*webhook))
}

// ListWebhooks lists the webhooks registered with the tenant's token
func (h *BoardSyncHandler) ListWebhooks(c *gin.Context) {
	tenantID, ok := h.requireTenant(c)
	if !ok {
		return
	}
	webhooks, err := h.operator.ListWebhooks(c.Request.Context(), tenantID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	resp := make([]dto.WebhookResponse, 0, len(webhooks))
	for _, w := range webhooks {
		resp = append(resp, toWebhookResponse(w))
	}
	h.Success(c, resp)
}

// DeleteWebhook removes the tenant's stored webhook
func (h *BoardSyncHandler) DeleteWebhook(c *gin.Context) {
	tenantID, ok := h.requireTenant(c)
	if !ok {
		return
	}
	if err := h.operator.DeleteWebhook(c.Request.Context(), tenantID); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

func toWebhookResponse(w integration.Webhook) dto.WebhookResponse {
	return dto.WebhookResponse{
		ID:          w.ID,
		ModelID:     w.ModelID,
		CallbackURL: w.CallbackURL,
		Description: w.Description,
		Active:      w.Active,
	}
}
