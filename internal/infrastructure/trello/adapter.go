// Package trello implements the board ports against the Trello REST API.
package trello

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"github.com/tometh04/vibook-services-sub001/internal/domain/integration"
	"github.com/tometh04/vibook-services-sub001/internal/infrastructure/fetch"
)

// TrelloAdapter implements integration.BoardClient.
// Every call goes through the shared fetch client, so retries and the rate
// budget are never handled here.
type TrelloAdapter struct {
	config *TrelloConfig
	client *fetch.Client
	logger *zap.Logger
}

// Ensure TrelloAdapter implements BoardClient
var _ integration.BoardClient = (*TrelloAdapter)(nil)

// NewTrelloAdapter creates a new Trello adapter
func NewTrelloAdapter(config *TrelloConfig, client *fetch.Client, logger *zap.Logger) (*TrelloAdapter, error) {
	if config == nil {
		config = NewTrelloConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if client == nil {
		return nil, ErrTrelloMissingFetchClient
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TrelloAdapter{config: config, client: client, logger: logger}, nil
}

// ---------------------------------------------------------------------------
// CardSource
// ---------------------------------------------------------------------------

// ListOpenCards returns one page of the board's open cards
func (a *TrelloAdapter) ListOpenCards(ctx context.Context, cfg *integration.SyncConfiguration, query integration.ListCardsQuery) ([]integration.ExternalCard, error) {
	params := url.Values{}
	params.Set("fields", listCardFields)
	if query.Limit > 0 {
		params.Set("limit", strconv.Itoa(query.Limit))
	}
	if query.Before != "" {
		params.Set("before", query.Before)
	}

	body, err := a.get(ctx, cfg, "/boards/"+url.PathEscape(cfg.BoardID)+"/cards/open", params, nil)
	if err != nil {
		return nil, err
	}

	var raws []json.RawMessage
	if err := json.Unmarshal(body, &raws); err != nil {
		return nil, fmt.Errorf("%w: card listing: %v", integration.ErrBoardInvalidResponse, err)
	}
	cards := make([]integration.ExternalCard, 0, len(raws))
	for _, raw := range raws {
		card, err := decodeCard(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: card listing entry: %v", integration.ErrBoardInvalidResponse, err)
		}
		cards = append(cards, *card)
	}
	return cards, nil
}

// GetCard returns the full card detail with members, attachments,
// checklists, custom fields and recent actions expanded
func (a *TrelloAdapter) GetCard(ctx context.Context, cfg *integration.SyncConfiguration, cardID string) (*integration.ExternalCard, error) {
	if cardID == "" {
		return nil, integration.ErrCardMissingID
	}
	params := url.Values{}
	params.Set("fields", "all")
	params.Set("members", "true")
	params.Set("member_fields", "fullName,username")
	params.Set("attachments", "true")
	params.Set("checklists", "all")
	params.Set("customFieldItems", "true")
	params.Set("actions", a.config.CardActions)
	params.Set("actions_limit", strconv.Itoa(a.config.CardActionsLimit))

	body, err := a.get(ctx, cfg, "/cards/"+url.PathEscape(cardID), params, integration.ErrCardNotFound)
	if err != nil {
		return nil, err
	}
	card, err := decodeCard(body)
	if err != nil {
		return nil, fmt.Errorf("%w: card %s: %v", integration.ErrBoardInvalidResponse, cardID, err)
	}
	return card, nil
}

// GetMember returns a member profile
func (a *TrelloAdapter) GetMember(ctx context.Context, cfg *integration.SyncConfiguration, memberID string) (*integration.CardMember, error) {
	params := url.Values{}
	params.Set("fields", "fullName,username")

	body, err := a.get(ctx, cfg, "/members/"+url.PathEscape(memberID), params, integration.ErrMemberNotFound)
	if err != nil {
		return nil, err
	}
	var m TrelloMember
	if err := json.Unmarshal(body, &m); err != nil {
		return nil, fmt.Errorf("%w: member %s: %v", integration.ErrBoardInvalidResponse, memberID, err)
	}
	if m.ID == "" {
		m.ID = memberID
	}
	member := convertTrelloMember(m)
	return &member, nil
}

// ---------------------------------------------------------------------------
// WebhookRegistrar
// ---------------------------------------------------------------------------

// CreateWebhook registers callbackURL for the tenant's board
func (a *TrelloAdapter) CreateWebhook(ctx context.Context, cfg *integration.SyncConfiguration, callbackURL, description string) (*integration.Webhook, error) {
	form := url.Values{}
	form.Set("callbackURL", callbackURL)
	form.Set("idModel", cfg.BoardID)
	if description != "" {
		form.Set("description", description)
	}

	resp, err := a.client.PostForm(ctx, a.endpoint(cfg, "/webhooks", nil), form)
	if err != nil {
		return nil, fmt.Errorf("trello: create webhook: %w", err)
	}
	if err := checkStatus(resp, nil); err != nil {
		return nil, err
	}

	var w TrelloWebhook
	if err := json.Unmarshal(resp.Body, &w); err != nil {
		return nil, fmt.Errorf("%w: webhook: %v", integration.ErrBoardInvalidResponse, err)
	}
	webhook := w.toDomain()
	a.logger.Info("Registered board webhook",
		zap.String("webhook_id", webhook.ID),
		zap.String("board_id", cfg.BoardID),
	)
	return &webhook, nil
}

// ListWebhooks returns the token's webhooks that watch the tenant's board
func (a *TrelloAdapter) ListWebhooks(ctx context.Context, cfg *integration.SyncConfiguration) ([]integration.Webhook, error) {
	body, err := a.get(ctx, cfg, "/tokens/"+url.PathEscape(cfg.APIToken)+"/webhooks", nil, nil)
	if err != nil {
		return nil, err
	}
	var hooks []TrelloWebhook
	if err := json.Unmarshal(body, &hooks); err != nil {
		return nil, fmt.Errorf("%w: webhooks: %v", integration.ErrBoardInvalidResponse, err)
	}
	result := make([]integration.Webhook, 0, len(hooks))
	for _, h := range hooks {
		if h.IDModel != cfg.BoardID {
			continue
		}
		result = append(result, h.toDomain())
	}
	return result, nil
}

// DeleteWebhook removes a webhook; ErrWebhookNotRegistered if Trello has no such webhook
func (a *TrelloAdapter) DeleteWebhook(ctx context.Context, cfg *integration.SyncConfiguration, webhookID string) error {
	if webhookID == "" {
		return integration.ErrWebhookNotRegistered
	}
	resp, err := a.client.Delete(ctx, a.endpoint(cfg, "/webhooks/"+url.PathEscape(webhookID), nil))
	if err != nil {
		return fmt.Errorf("trello: delete webhook: %w", err)
	}
	return checkStatus(resp, integration.ErrWebhookNotRegistered)
}

// ---------------------------------------------------------------------------
// Internal Helpers
// ---------------------------------------------------------------------------

// get performs an authenticated GET and returns the body of a 2xx response.
// notFound is returned on 404 when set.
func (a *TrelloAdapter) get(ctx context.Context, cfg *integration.SyncConfiguration, path string, params url.Values, notFound error) ([]byte, error) {
	resp, err := a.client.Get(ctx, a.endpoint(cfg, path, params))
	if err != nil {
		return nil, fmt.Errorf("trello: GET %s: %w", path, err)
	}
	if err := checkStatus(resp, notFound); err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// endpoint builds the request URL with key/token authentication
func (a *TrelloAdapter) endpoint(cfg *integration.SyncConfiguration, path string, params url.Values) string {
	q := url.Values{}
	for k, v := range params {
		q[k] = v
	}
	q.Set("key", cfg.APIKey)
	q.Set("token", cfg.APIToken)
	return a.config.APIBaseURL + path + "?" + q.Encode()
}

// checkStatus maps non-2xx responses to domain errors
func checkStatus(resp *fetch.Response, notFound error) error {
	if resp.IsSuccess() {
		return nil
	}
	switch resp.StatusCode {
	case http.StatusNotFound:
		if notFound != nil {
			return notFound
		}
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: HTTP %d", integration.ErrBoardUnauthorized, resp.StatusCode)
	}
	return fmt.Errorf("%w: HTTP %d: %s", integration.ErrBoardRequestFailed, resp.StatusCode, truncate(resp.Body, 200))
}

func truncate(body []byte, n int) string {
	if len(body) > n {
		return string(body[:n]) + "..."
	}
	return string(body)
}
