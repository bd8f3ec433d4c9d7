package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tometh04/vibook-services-sub001/internal/domain/integration"
)

// ---------------------------------------------------------------------------
// Lead
// ---------------------------------------------------------------------------

// LeadModel is the persistence model for the Lead domain entity.
// (tenant_id, external_id) is unique: it is the upsert key of board sync.
type LeadModel struct {
	BaseModel
	TenantID            uuid.UUID              `gorm:"type:uuid;not null;uniqueIndex:idx_leads_tenant_external,priority:1;index:idx_leads_tenant_source,priority:1"`
	Source              integration.LeadSource `gorm:"type:varchar(20);not null;default:'TRELLO';index:idx_leads_tenant_source,priority:2"`
	ExternalID          string                 `gorm:"type:varchar(64);not null;uniqueIndex:idx_leads_tenant_external,priority:2"`
	BoardID             string                 `gorm:"type:varchar(64)"`
	ListID              string                 `gorm:"type:varchar(64);not null"`
	Status              integration.LeadStatus `gorm:"type:varchar(20);not null;default:'IN_PROGRESS';index"`
	Region              integration.Region     `gorm:"type:varchar(50);not null;default:'OTHER'"`
	ContactName         string                 `gorm:"type:varchar(255)"`
	ContactPhone        string                 `gorm:"type:varchar(50)"`
	ContactEmail        string                 `gorm:"type:varchar(200)"`
	ContactInstagram    string                 `gorm:"type:varchar(100)"`
	Destination         string                 `gorm:"type:varchar(255)"`
	TravelDates         string                 `gorm:"type:varchar(255)"`
	Passengers          string                 `gorm:"type:varchar(100)"`
	Origin              string                 `gorm:"type:varchar(100)"`
	BudgetText          string                 `gorm:"type:varchar(255)"`
	BudgetAmount        decimal.NullDecimal    `gorm:"type:decimal(14,2)"`
	BudgetCurrency      string                 `gorm:"type:varchar(3)"`
	Description         string                 `gorm:"type:text"`
	ExtractedFieldsJSON string                 `gorm:"type:jsonb;column:extracted_fields"`
	ExternalURL         string                 `gorm:"type:varchar(500)"`
	Closed              bool                   `gorm:"not null;default:false"`
	LastActivityAt      *time.Time
	AssignedUserID      *uuid.UUID `gorm:"type:uuid;index"`
	AssignedMemberName  string     `gorm:"type:varchar(200)"`
	RawPayloadJSON      string     `gorm:"type:jsonb;column:raw_payload"`
	LastSyncedAt        time.Time  `gorm:"not null"`

	keepAssignment bool
}

// TableName returns the table name for GORM
func (LeadModel) TableName() string {
	return "leads"
}

// ToDomain converts the persistence model to a domain Lead
func (m *LeadModel) ToDomain() *integration.Lead {
	lead := &integration.Lead{
		ID:                 m.ID,
		TenantID:           m.TenantID,
		Source:             m.Source,
		ExternalID:         m.ExternalID,
		BoardID:            m.BoardID,
		ListID:             m.ListID,
		Status:             m.Status,
		Region:             m.Region,
		ContactName:        m.ContactName,
		ContactPhone:       m.ContactPhone,
		ContactEmail:       m.ContactEmail,
		ContactInstagram:   m.ContactInstagram,
		Destination:        m.Destination,
		TravelDates:        m.TravelDates,
		Passengers:         m.Passengers,
		Origin:             m.Origin,
		BudgetText:         m.BudgetText,
		BudgetAmount:       m.BudgetAmount,
		BudgetCurrency:     m.BudgetCurrency,
		Description:        m.Description,
		ExternalURL:        m.ExternalURL,
		Closed:             m.Closed,
		LastActivityAt:     m.LastActivityAt,
		AssignedUserID:     m.AssignedUserID,
		AssignedMemberName: m.AssignedMemberName,
		LastSyncedAt:       m.LastSyncedAt,
		CreatedAt:          m.CreatedAt,
		UpdatedAt:          m.UpdatedAt,
	}
	if m.ExtractedFieldsJSON != "" {
		var fields map[string]string
		if err := json.Unmarshal([]byte(m.ExtractedFieldsJSON), &fields); err == nil {
			lead.ExtractedFields = fields
		}
	}
	if m.RawPayloadJSON != "" {
		lead.RawPayload = json.RawMessage(m.RawPayloadJSON)
	}
	return lead
}

// FromDomain populates the persistence model from a domain Lead
func (m *LeadModel) FromDomain(l *integration.Lead) {
	m.ID = l.ID
	m.TenantID = l.TenantID
	m.CreatedAt = l.CreatedAt
	m.UpdatedAt = l.UpdatedAt
	m.Source = l.Source
	m.ExternalID = l.ExternalID
	m.BoardID = l.BoardID
	m.ListID = l.ListID
	m.Status = l.Status
	m.Region = l.Region
	m.ContactName = l.ContactName
	m.ContactPhone = l.ContactPhone
	m.ContactEmail = l.ContactEmail
	m.ContactInstagram = l.ContactInstagram
	m.Destination = l.Destination
	m.TravelDates = l.TravelDates
	m.Passengers = l.Passengers
	m.Origin = l.Origin
	m.BudgetText = l.BudgetText
	m.BudgetAmount = l.BudgetAmount
	m.BudgetCurrency = l.BudgetCurrency
	m.Description = l.Description
	m.ExternalURL = l.ExternalURL
	m.Closed = l.Closed
	m.LastActivityAt = l.LastActivityAt
	m.AssignedUserID = l.AssignedUserID
	m.AssignedMemberName = l.AssignedMemberName
	m.keepAssignment = l.KeepAssignment
	m.LastSyncedAt = l.LastSyncedAt

	fields := l.ExtractedFields
	if fields == nil {
		fields = map[string]string{}
	}
	if data, err := json.Marshal(fields); err == nil {
		m.ExtractedFieldsJSON = string(data)
	}
	m.RawPayloadJSON = "{}"
	if len(l.RawPayload) > 0 && json.Valid(l.RawPayload) {
		m.RawPayloadJSON = string(l.RawPayload)
	}
}

// UpdateColumns returns the columns an upsert refreshes on an existing row.
// id, tenant_id, external_id and created_at are never rewritten, and the
// assignment is skipped when the lead asks to keep it.
func (m *LeadModel) UpdateColumns() map[string]any {
	cols := map[string]any{
		"source":               m.Source,
		"board_id":             m.BoardID,
		"list_id":              m.ListID,
		"status":               m.Status,
		"region":               m.Region,
		"contact_name":         m.ContactName,
		"contact_phone":        m.ContactPhone,
		"contact_email":        m.ContactEmail,
		"contact_instagram":    m.ContactInstagram,
		"destination":          m.Destination,
		"travel_dates":         m.TravelDates,
		"passengers":           m.Passengers,
		"origin":               m.Origin,
		"budget_text":          m.BudgetText,
		"budget_amount":        m.BudgetAmount,
		"budget_currency":      m.BudgetCurrency,
		"description":          m.Description,
		"extracted_fields":     m.ExtractedFieldsJSON,
		"external_url":         m.ExternalURL,
		"closed":               m.Closed,
		"last_activity_at":     m.LastActivityAt,
		"assigned_user_id":     m.AssignedUserID,
		"assigned_member_name": m.AssignedMemberName,
		"raw_payload":          m.RawPayloadJSON,
		"last_synced_at":       m.LastSyncedAt,
		"updated_at":           m.UpdatedAt,
	}
	if m.keepAssignment {
		delete(cols, "assigned_user_id")
		delete(cols, "assigned_member_name")
	}
	return cols
}

// LeadModelFromDomain creates a new persistence model from a domain Lead
func LeadModelFromDomain(l *integration.Lead) *LeadModel {
	m := &LeadModel{}
	m.FromDomain(l)
	return m
}

// ---------------------------------------------------------------------------
// Board Sync Configuration
// ---------------------------------------------------------------------------

// BoardSyncConfigModel is the persistence model for SyncConfiguration.
type BoardSyncConfigModel struct {
	BaseModel
	TenantID       uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex"`
	APIKey         string     `gorm:"type:varchar(100);not null"`
	APIToken       string     `gorm:"type:varchar(255);not null"`
	BoardID        string     `gorm:"type:varchar(64);not null"`
	ListStatusJSON string     `gorm:"type:jsonb;column:list_status"`
	ListRegionJSON string     `gorm:"type:jsonb;column:list_region"`
	LastSyncAt     *time.Time `gorm:"index"`
	WebhookID      string     `gorm:"type:varchar(64)"`
	WebhookURL     string     `gorm:"type:varchar(500)"`
	Enabled        bool       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (BoardSyncConfigModel) TableName() string {
	return "board_sync_configs"
}

// ToDomain converts the persistence model to a domain SyncConfiguration
func (m *BoardSyncConfigModel) ToDomain() *integration.SyncConfiguration {
	cfg := &integration.SyncConfiguration{
		ID:         m.ID,
		TenantID:   m.TenantID,
		APIKey:     m.APIKey,
		APIToken:   m.APIToken,
		BoardID:    m.BoardID,
		ListStatus: map[string]integration.LeadStatus{},
		ListRegion: map[string]integration.Region{},
		LastSyncAt: m.LastSyncAt,
		WebhookID:  m.WebhookID,
		WebhookURL: m.WebhookURL,
		Enabled:    m.Enabled,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
	if m.ListStatusJSON != "" {
		_ = json.Unmarshal([]byte(m.ListStatusJSON), &cfg.ListStatus)
	}
	if m.ListRegionJSON != "" {
		_ = json.Unmarshal([]byte(m.ListRegionJSON), &cfg.ListRegion)
	}
	return cfg
}

// FromDomain populates the persistence model from a domain SyncConfiguration
func (m *BoardSyncConfigModel) FromDomain(cfg *integration.SyncConfiguration) {
	m.ID = cfg.ID
	m.TenantID = cfg.TenantID
	m.CreatedAt = cfg.CreatedAt
	m.UpdatedAt = cfg.UpdatedAt
	m.APIKey = cfg.APIKey
	m.APIToken = cfg.APIToken
	m.BoardID = cfg.BoardID
	m.LastSyncAt = cfg.LastSyncAt
	m.WebhookID = cfg.WebhookID
	m.WebhookURL = cfg.WebhookURL
	m.Enabled = cfg.Enabled

	m.ListStatusJSON = marshalMapping(cfg.ListStatus)
	m.ListRegionJSON = marshalMapping(cfg.ListRegion)
}

// BoardSyncConfigModelFromDomain creates a new persistence model from a domain SyncConfiguration
func BoardSyncConfigModelFromDomain(cfg *integration.SyncConfiguration) *BoardSyncConfigModel {
	m := &BoardSyncConfigModel{}
	m.FromDomain(cfg)
	return m
}

func marshalMapping[V ~string](mapping map[string]V) string {
	if mapping == nil {
		return "{}"
	}
	data, err := json.Marshal(mapping)
	if err != nil {
		return "{}"
	}
	return string(data)
}
