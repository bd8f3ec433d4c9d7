package dto

import "time"

// TriggerRunRequest starts a reconciliation run
type TriggerRunRequest struct {
	Mode string `json:"mode" binding:"required,run_mode"`
}

// ListRunsRequest lists recent run summaries
type ListRunsRequest struct {
	Limit int `form:"limit" binding:"omitempty,min=1,max=50"`
}

// CardURIRequest carries the card ID path parameter
type CardURIRequest struct {
	CardID string `uri:"card_id" binding:"required,max=64"`
}

// WebhookResponse is a board webhook registration
type WebhookResponse struct {
	ID          string `json:"id"`
	ModelID     string `json:"model_id"`
	CallbackURL string `json:"callback_url"`
	Description string `json:"description,omitempty"`
	Active      bool   `json:"active"`
}

// BoardWebhookEnvelope is the part of a Trello webhook body sync reads.
// Only identifiers are taken from it; card content is always refetched.
type BoardWebhookEnvelope struct {
	Action struct {
		ID   string    `json:"id"`
		Type string    `json:"type"`
		Date time.Time `json:"date"`
		Data struct {
			Card *struct {
				ID string `json:"id"`
			} `json:"card"`
		} `json:"data"`
	} `json:"action"`
	Model struct {
		ID string `json:"id"`
	} `json:"model"`
}

// CardID returns the card the action concerns, or ""
func (e *BoardWebhookEnvelope) CardID() string {
	if e.Action.Data.Card == nil {
		return ""
	}
	return e.Action.Data.Card.ID
}
