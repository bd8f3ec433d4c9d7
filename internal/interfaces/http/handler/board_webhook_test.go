package handler

import (
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	appintegration "github.com/tometh04/vibook-services-sub001/internal/application/integration"
	"github.com/tometh04/vibook-services-sub001/internal/domain/integration"
	"github.com/tometh04/vibook-services-sub001/internal/interfaces/http/dto"
)

func webhookRoutes(svc *MockWebhookDeliveryHandler) func(r *gin.Engine) {
	return func(r *gin.Engine) {
		NewBoardWebhookHandler(svc, zap.NewNop()).RegisterRoutes(r)
	}
}

const cardActionBody = `{
	"action": {
		"id": "act-1",
		"type": "updateCard",
		"date": "2026-04-10T12:00:00.000Z",
		"data": {"card": {"id": "c-7", "name": "ignored"}, "list": {"id": "l-1"}}
	},
	"model": {"id": "board-1"}
}`

func TestBoardWebhookHandler_Verify(t *testing.T) {
	svc := new(MockWebhookDeliveryHandler)
	for _, method := range []string{http.MethodHead, http.MethodGet} {
		w := performRequest(t, webhookRoutes(svc), method, "/webhooks/trello/"+testTenantID.String(), nil, nil)
		assert.Equal(t, http.StatusOK, w.Code, method)
	}
	svc.AssertNotCalled(t, "HandleDelivery", mock.Anything, mock.Anything, mock.Anything)
}

func TestBoardWebhookHandler_Receive(t *testing.T) {
	path := "/webhooks/trello/" + testTenantID.String()

	t.Run("passes identifiers only", func(t *testing.T) {
		svc := new(MockWebhookDeliveryHandler)
		svc.On("HandleDelivery", mock.Anything, testTenantID, appintegration.WebhookDelivery{
			ActionID:   "act-1",
			ActionType: "updateCard",
			CardID:     "c-7",
		}).Return(appintegration.WebhookOutcome{TenantID: testTenantID, CardID: "c-7", Action: appintegration.WebhookActionSynced}, nil)

		w := performRequest(t, webhookRoutes(svc), http.MethodPost, path, strings.NewReader(cardActionBody), nil)

		assertStatus(t, w, http.StatusOK)
		var outcome appintegration.WebhookOutcome
		decodeData(t, decodeResponse(t, w), &outcome)
		assert.Equal(t, appintegration.WebhookActionSynced, outcome.Action)
		svc.AssertExpectations(t)
	})

	t.Run("deleted card acknowledged", func(t *testing.T) {
		svc := new(MockWebhookDeliveryHandler)
		svc.On("HandleDelivery", mock.Anything, testTenantID, mock.Anything).
			Return(appintegration.WebhookOutcome{TenantID: testTenantID, CardID: "c-7", Action: appintegration.WebhookActionDeleted}, nil)

		w := performRequest(t, webhookRoutes(svc), http.MethodPost, path, strings.NewReader(cardActionBody), nil)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("action without card", func(t *testing.T) {
		svc := new(MockWebhookDeliveryHandler)
		svc.On("HandleDelivery", mock.Anything, testTenantID, appintegration.WebhookDelivery{
			ActionID:   "act-2",
			ActionType: "updateBoard",
		}).Return(appintegration.WebhookOutcome{TenantID: testTenantID, Action: appintegration.WebhookActionIgnored}, nil)

		body := `{"action":{"id":"act-2","type":"updateBoard","data":{"board":{"id":"board-1"}}},"model":{"id":"board-1"}}`
		w := performRequest(t, webhookRoutes(svc), http.MethodPost, path, strings.NewReader(body), nil)

		assert.Equal(t, http.StatusOK, w.Code)
		svc.AssertExpectations(t)
	})

	t.Run("failure asks for redelivery", func(t *testing.T) {
		svc := new(MockWebhookDeliveryHandler)
		svc.On("HandleDelivery", mock.Anything, testTenantID, mock.Anything).
			Return(appintegration.WebhookOutcome{}, integration.ErrBoardRequestFailed)

		w := performRequest(t, webhookRoutes(svc), http.MethodPost, path, strings.NewReader(cardActionBody), nil)

		assertStatus(t, w, http.StatusInternalServerError)
		assert.Equal(t, dto.ErrCodeBoardUnavailable, decodeResponse(t, w).Error.Code)
	})

	t.Run("unexpected failure", func(t *testing.T) {
		svc := new(MockWebhookDeliveryHandler)
		svc.On("HandleDelivery", mock.Anything, testTenantID, mock.Anything).
			Return(appintegration.WebhookOutcome{}, errors.New("db down"))

		w := performRequest(t, webhookRoutes(svc), http.MethodPost, path, strings.NewReader(cardActionBody), nil)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})

	t.Run("bad tenant", func(t *testing.T) {
		svc := new(MockWebhookDeliveryHandler)
		w := performRequest(t, webhookRoutes(svc), http.MethodPost, "/webhooks/trello/acme", strings.NewReader(cardActionBody), nil)

		assertStatus(t, w, http.StatusBadRequest)
		assert.Equal(t, dto.ErrCodeMissingTenant, decodeResponse(t, w).Error.Code)
		svc.AssertNotCalled(t, "HandleDelivery", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("malformed body", func(t *testing.T) {
		svc := new(MockWebhookDeliveryHandler)
		w := performRequest(t, webhookRoutes(svc), http.MethodPost, path, strings.NewReader(`{"action":`), nil)

		assertStatus(t, w, http.StatusBadRequest)
		assert.Equal(t, dto.ErrCodeInvalidJSON, decodeResponse(t, w).Error.Code)
	})
}
