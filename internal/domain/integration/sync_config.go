package integration

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// LeadStatus is the pipeline status of a lead, derived from its board list
type LeadStatus string

const (
	LeadStatusNew        LeadStatus = "NEW"
	LeadStatusInProgress LeadStatus = "IN_PROGRESS"
	LeadStatusQuoted     LeadStatus = "QUOTED"
	LeadStatusWon        LeadStatus = "WON"
	LeadStatusLost       LeadStatus = "LOST"
)

// DefaultLeadStatus is assigned to cards in lists without a status mapping.
const DefaultLeadStatus = LeadStatusInProgress

// IsValid returns true if the status is one of the known pipeline statuses
func (s LeadStatus) IsValid() bool {
	switch s {
	case LeadStatusNew, LeadStatusInProgress, LeadStatusQuoted, LeadStatusWon, LeadStatusLost:
		return true
	default:
		return false
	}
}

// String returns the string representation of LeadStatus
func (s LeadStatus) String() string {
	return string(s)
}

// Region is the commercial region a lead belongs to. Regions are tenant defined.
type Region string

// RegionOther is assigned to cards in lists without a region mapping.
const RegionOther Region = "OTHER"

// String returns the string representation of Region
func (r Region) String() string {
	return string(r)
}

// ---------------------------------------------------------------------------
// Sync Configuration
// ---------------------------------------------------------------------------

// SyncConfiguration is the per-tenant board sync setup.
// The reconciliation driver only ever writes LastSyncAt; everything else is
// owned by whoever manages the tenant's configuration.
type SyncConfiguration struct {
	// ID is the unique identifier of the configuration row
	ID uuid.UUID
	// TenantID is the tenant this config belongs to (one config per tenant)
	TenantID uuid.UUID
	// APIKey and APIToken authenticate against the board API
	APIKey   string
	APIToken string
	// BoardID is the board whose open cards become leads
	BoardID string
	// ListStatus maps board list IDs to lead statuses
	ListStatus map[string]LeadStatus
	// ListRegion maps board list IDs to regions
	ListRegion map[string]Region
	// LastSyncAt is the checkpoint: end time of the last successful run
	LastSyncAt *time.Time
	// WebhookID and WebhookURL describe the registered board webhook, if any
	WebhookID  string
	WebhookURL string
	// Enabled gates scheduled runs; manual runs ignore it
	Enabled   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate returns a fatal configuration error when the config cannot drive a run.
func (c *SyncConfiguration) Validate() error {
	if c == nil {
		return fmt.Errorf("%w: %w", ErrFatalConfiguration, ErrSyncConfigNotFound)
	}
	if strings.TrimSpace(c.APIKey) == "" || strings.TrimSpace(c.APIToken) == "" {
		return fmt.Errorf("%w: %w", ErrFatalConfiguration, ErrMissingCredentials)
	}
	if strings.TrimSpace(c.BoardID) == "" {
		return fmt.Errorf("%w: %w", ErrFatalConfiguration, ErrMissingBoardID)
	}
	return nil
}

// HasCheckpoint returns true once a run has completed for this tenant.
func (c *SyncConfiguration) HasCheckpoint() bool {
	return c != nil && c.LastSyncAt != nil && !c.LastSyncAt.IsZero()
}

// HasWebhook returns true if a board webhook is registered.
func (c *SyncConfiguration) HasWebhook() bool {
	return c != nil && c.WebhookID != ""
}

// Clone returns a deep copy so callers can hand the config to goroutines.
func (c *SyncConfiguration) Clone() *SyncConfiguration {
	if c == nil {
		return nil
	}
	out := *c
	if c.ListStatus != nil {
		out.ListStatus = make(map[string]LeadStatus, len(c.ListStatus))
		for k, v := range c.ListStatus {
			out.ListStatus[k] = v
		}
	}
	if c.ListRegion != nil {
		out.ListRegion = make(map[string]Region, len(c.ListRegion))
		for k, v := range c.ListRegion {
			out.ListRegion[k] = v
		}
	}
	if c.LastSyncAt != nil {
		t := *c.LastSyncAt
		out.LastSyncAt = &t
	}
	return &out
}
