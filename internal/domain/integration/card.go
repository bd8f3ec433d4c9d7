package integration

import (
	"encoding/json"
	"strings"
	"time"
)

// ---------------------------------------------------------------------------
// External Card
// ---------------------------------------------------------------------------

// ExternalCard is a card as read from the board at fetch time.
// It has no identity beyond ID and is never mutated after the adapter builds it.
type ExternalCard struct {
	// ID is the board's card identifier, the external_id of the lead
	ID string
	// Name is the card title; by convention the contact's full name
	Name string
	// Description is the free-text body of the card
	Description string
	// ListID is the containing list, the classification signal for status/region
	ListID string
	// BoardID is the containing board
	BoardID string
	// Closed is true for archived cards
	Closed bool
	// LastActivity is the board's last-activity timestamp
	LastActivity *time.Time
	// ShortURL links back to the card on the board
	ShortURL string

	Labels           []CardLabel
	Attachments      []CardAttachment
	Checklists       []CardChecklist
	CustomFieldItems []CustomFieldItem
	// MemberIDs are the collaborator identifiers in board order
	MemberIDs []string
	// Members is populated only when the detail endpoint expanded them
	Members []CardMember
	Badges  CardBadges
	Actions []CardAction

	// Raw is the payload exactly as the board returned it
	Raw json.RawMessage
}

// CardLabel is a coloured tag on a card.
type CardLabel struct {
	ID    string
	Name  string
	Color string
}

// CardAttachment is a file or link attached to a card.
type CardAttachment struct {
	ID       string
	Name     string
	URL      string
	MimeType string
}

// CardChecklist is a named checklist with its items.
type CardChecklist struct {
	ID    string
	Name  string
	Items []CardChecklistItem
}

// CardChecklistItem is one entry of a checklist.
type CardChecklistItem struct {
	ID       string
	Name     string
	Complete bool
}

// CustomFieldItem is the value of a board custom field on a card.
// Value keeps the typed JSON object as-is ({"text": ...}, {"number": ...}, ...).
type CustomFieldItem struct {
	ID            string
	CustomFieldID string
	Value         json.RawMessage
}

// CardMember is a board collaborator.
type CardMember struct {
	ID       string
	FullName string
	Username string
}

// DisplayName returns the member's full name, falling back to the username.
func (m CardMember) DisplayName() string {
	if name := strings.TrimSpace(m.FullName); name != "" {
		return name
	}
	return strings.TrimSpace(m.Username)
}

// CardBadges are the counters the board shows on a card front.
type CardBadges struct {
	Comments          int
	Attachments       int
	CheckItems        int
	CheckItemsChecked int
	Due               *time.Time
}

// CardAction is a recent action on the card, usually a comment.
type CardAction struct {
	ID         string
	Type       string
	Text       string
	MemberName string
	Date       time.Time
}

// FirstMemberID returns the first collaborator's identifier.
func (c *ExternalCard) FirstMemberID() (string, bool) {
	for _, id := range c.MemberIDs {
		if id != "" {
			return id, true
		}
	}
	if len(c.Members) > 0 && c.Members[0].ID != "" {
		return c.Members[0].ID, true
	}
	return "", false
}

// MemberByID returns the expanded member with the given identifier, if present.
func (c *ExternalCard) MemberByID(id string) (CardMember, bool) {
	for _, m := range c.Members {
		if m.ID == id {
			return m, true
		}
	}
	return CardMember{}, false
}

// Validate checks the fields a card must carry to become a lead.
func (c *ExternalCard) Validate() error {
	if strings.TrimSpace(c.ID) == "" {
		return ErrCardMissingID
	}
	if strings.TrimSpace(c.ListID) == "" {
		return ErrCardMissingList
	}
	return nil
}
