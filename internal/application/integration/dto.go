package integration

import (
	"time"

	"github.com/google/uuid"

	"github.com/tometh04/vibook-services-sub001/internal/domain/integration"
)

// ---------------------------------------------------------------------------
// Reconciliation DTOs
// ---------------------------------------------------------------------------

// RunSummary reports a reconciliation run. It is returned for aborted runs
// too, with CheckpointAdvanced false.
type RunSummary struct {
	RunID    uuid.UUID               `json:"run_id"`
	TenantID uuid.UUID               `json:"tenant_id"`
	Mode     integration.RunMode     `json:"mode"`
	State    integration.RunState    `json:"state"`
	Counters integration.RunCounters `json:"counters"`
	// Since is the checkpoint cards were filtered by; nil for full listings
	Since      *time.Time    `json:"since,omitempty"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Elapsed    time.Duration `json:"-"`
	ElapsedMs  int64         `json:"elapsed_ms"`
	// Checkpoint is the new checkpoint when advanced, the previous one otherwise
	Checkpoint         *time.Time `json:"checkpoint,omitempty"`
	CheckpointAdvanced bool       `json:"checkpoint_advanced"`
	Error              string     `json:"error,omitempty"`
}

// Succeeded returns true if the run reached DONE
func (s *RunSummary) Succeeded() bool {
	return s != nil && s.State == integration.RunStateDone
}

// ---------------------------------------------------------------------------
// Webhook DTOs
// ---------------------------------------------------------------------------

// WebhookAction is what a webhook delivery did
type WebhookAction string

const (
	WebhookActionSynced    WebhookAction = "synced"
	WebhookActionDeleted   WebhookAction = "deleted"
	WebhookActionIgnored   WebhookAction = "ignored"
	WebhookActionDuplicate WebhookAction = "duplicate"
)

// WebhookOutcome reports the handling of one card event
type WebhookOutcome struct {
	TenantID uuid.UUID     `json:"tenant_id"`
	CardID   string        `json:"card_id,omitempty"`
	Action   WebhookAction `json:"action"`
	Created  bool          `json:"created"`
	LeadID   *uuid.UUID    `json:"lead_id,omitempty"`
}

// WebhookDelivery is the part of a board webhook envelope sync acts on
type WebhookDelivery struct {
	// ActionID identifies the delivery; redeliveries carry the same value
	ActionID   string
	ActionType string
	// CardID is empty for actions that do not concern a card
	CardID string
}
