package integration

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LeadSource identifies where a lead came from
type LeadSource string

const (
	// LeadSourceTrello marks leads projected from board cards
	LeadSourceTrello LeadSource = "TRELLO"
	// LeadSourceManual marks leads created locally; board sync never touches them
	LeadSourceManual LeadSource = "MANUAL"
)

// String returns the string representation of LeadSource
func (s LeadSource) String() string {
	return string(s)
}

// Lead is the local record for one board card.
// Exactly one lead exists per (TenantID, ExternalID); sync writes it with an
// upsert and only an external deletion or a full reset removes it.
type Lead struct {
	ID         uuid.UUID
	TenantID   uuid.UUID
	Source     LeadSource
	ExternalID string

	BoardID string
	ListID  string
	Status  LeadStatus
	Region  Region

	ContactName      string
	ContactPhone     string
	ContactEmail     string
	ContactInstagram string
	Destination      string
	TravelDates      string
	Passengers       string
	Origin           string
	BudgetText       string
	BudgetAmount     decimal.NullDecimal
	BudgetCurrency   string

	Description string
	// ExtractedFields is the full extractor output, absent keys meaning "no information"
	ExtractedFields map[string]string
	ExternalURL     string
	Closed          bool
	LastActivityAt  *time.Time

	// AssignedUserID is the local user resolved from the first collaborator
	AssignedUserID *uuid.UUID
	// AssignedMemberName is the collaborator name used for resolution
	AssignedMemberName string
	// KeepAssignment leaves a stored assignment untouched on update. Set
	// when the collaborator lookup failed rather than found nobody.
	KeepAssignment bool

	// RawPayload is the card payload preserved verbatim
	RawPayload json.RawMessage

	LastSyncedAt time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CandidateUser is a local user that board collaborators can be matched to.
type CandidateUser struct {
	ID   uuid.UUID
	Name string
}
