package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	appintegration "github.com/tometh04/vibook-services-sub001/internal/application/integration"
	"github.com/tometh04/vibook-services-sub001/internal/domain/integration"
	"github.com/tometh04/vibook-services-sub001/internal/interfaces/http/dto"
	"github.com/tometh04/vibook-services-sub001/internal/interfaces/http/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
	middleware.SetupValidator()
}

// ---------------------------------------------------------------------------
// Test Helpers
// ---------------------------------------------------------------------------

var testTenantID = uuid.MustParse("6a0b1c2d-3e4f-4a5b-8c6d-7e8f9a0b1c2d")

// MockBoardSyncOperator is a mock implementation of BoardSyncOperator
type MockBoardSyncOperator struct {
	mock.Mock
}

func (m *MockBoardSyncOperator) RunReconciliation(ctx context.Context, tenantID uuid.UUID, mode integration.RunMode) (*appintegration.RunSummary, error) {
	args := m.Called(ctx, tenantID, mode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*appintegration.RunSummary), args.Error(1)
}

func (m *MockBoardSyncOperator) FullReset(ctx context.Context, tenantID uuid.UUID) (*appintegration.RunSummary, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*appintegration.RunSummary), args.Error(1)
}

func (m *MockBoardSyncOperator) SyncOneCard(ctx context.Context, tenantID uuid.UUID, cardID string) (appintegration.WebhookOutcome, error) {
	args := m.Called(ctx, tenantID, cardID)
	return args.Get(0).(appintegration.WebhookOutcome), args.Error(1)
}

func (m *MockBoardSyncOperator) RecentRuns(tenantID uuid.UUID, limit int) []appintegration.RunSummary {
	args := m.Called(tenantID, limit)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]appintegration.RunSummary)
}

func (m *MockBoardSyncOperator) RegisterWebhook(ctx context.Context, tenantID uuid.UUID) (*integration.Webhook, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.Webhook), args.Error(1)
}

func (m *MockBoardSyncOperator) ListWebhooks(ctx context.Context, tenantID uuid.UUID) ([]integration.Webhook, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]integration.Webhook), args.Error(1)
}

func (m *MockBoardSyncOperator) DeleteWebhook(ctx context.Context, tenantID uuid.UUID) error {
	args := m.Called(ctx, tenantID)
	return args.Error(0)
}

// MockWebhookDeliveryHandler is a mock implementation of WebhookDeliveryHandler
type MockWebhookDeliveryHandler struct {
	mock.Mock
}

func (m *MockWebhookDeliveryHandler) HandleDelivery(ctx context.Context, tenantID uuid.UUID, delivery appintegration.WebhookDelivery) (appintegration.WebhookOutcome, error) {
	args := m.Called(ctx, tenantID, delivery)
	return args.Get(0).(appintegration.WebhookOutcome), args.Error(1)
}

// performRequest sends a request through a router with the request ID middleware
func performRequest(t *testing.T, register func(r *gin.Engine), method, path string, body io.Reader, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	router := gin.New()
	router.Use(middleware.RequestID())
	register(router)

	req := httptest.NewRequest(method, path, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func tenantHeader() map[string]string {
	return map[string]string{middleware.TenantIDHeader: testTenantID.String()}
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) dto.Response {
	t.Helper()
	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

// decodeData re-decodes resp.Data into out
func decodeData(t *testing.T, resp dto.Response, out any) {
	t.Helper()
	raw, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, out))
}

func assertStatus(t *testing.T, w *httptest.ResponseRecorder, status int) {
	t.Helper()
	require.Equal(t, status, w.Code, "body: %s", w.Body.String())
}
