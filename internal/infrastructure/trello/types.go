package trello

import (
	"encoding/json"
	"time"

	"github.com/tometh04/vibook-services-sub001/internal/domain/integration"
)

// ---------------------------------------------------------------------------
// Card Types
// ---------------------------------------------------------------------------

// TrelloCard is a card as returned by /boards/{id}/cards and /cards/{id}
type TrelloCard struct {
	ID               string                  `json:"id"`
	Name             string                  `json:"name"`
	Desc             string                  `json:"desc"`
	IDList           string                  `json:"idList"`
	IDBoard          string                  `json:"idBoard"`
	Closed           bool                    `json:"closed"`
	DateLastActivity *time.Time              `json:"dateLastActivity,omitempty"`
	ShortURL         string                  `json:"shortUrl"`
	IDMembers        []string                `json:"idMembers"`
	Members          []TrelloMember          `json:"members,omitempty"`
	Labels           []TrelloLabel           `json:"labels,omitempty"`
	Attachments      []TrelloAttachment      `json:"attachments,omitempty"`
	Checklists       []TrelloChecklist       `json:"checklists,omitempty"`
	CustomFieldItems []TrelloCustomFieldItem `json:"customFieldItems,omitempty"`
	Badges           TrelloBadges            `json:"badges"`
	Actions          []TrelloAction          `json:"actions,omitempty"`
}

// TrelloMember is a board member profile
type TrelloMember struct {
	ID       string `json:"id"`
	FullName string `json:"fullName"`
	Username string `json:"username"`
}

// TrelloLabel is a card label
type TrelloLabel struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

// TrelloAttachment is a card attachment
type TrelloAttachment struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	URL      string `json:"url"`
	MimeType string `json:"mimeType"`
}

// TrelloChecklist is a card checklist
type TrelloChecklist struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	CheckItems []TrelloCheckItem `json:"checkItems"`
}

// TrelloCheckItem is one checklist entry; State is "complete" or "incomplete"
type TrelloCheckItem struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	State string `json:"state"`
}

// TrelloCustomFieldItem is a custom field value on a card
type TrelloCustomFieldItem struct {
	ID            string          `json:"id"`
	IDCustomField string          `json:"idCustomField"`
	Value         json.RawMessage `json:"value,omitempty"`
}

// TrelloBadges are the card front counters
type TrelloBadges struct {
	Comments          int        `json:"comments"`
	Attachments       int        `json:"attachments"`
	CheckItems        int        `json:"checkItems"`
	CheckItemsChecked int        `json:"checkItemsChecked"`
	Due               *time.Time `json:"due,omitempty"`
}

// TrelloAction is an action entry of the card history
type TrelloAction struct {
	ID   string    `json:"id"`
	Type string    `json:"type"`
	Date time.Time `json:"date"`
	Data struct {
		Text string `json:"text,omitempty"`
	} `json:"data"`
	MemberCreator *TrelloMember `json:"memberCreator,omitempty"`
}

// ---------------------------------------------------------------------------
// Webhook Types
// ---------------------------------------------------------------------------

// TrelloWebhook is a webhook registration
type TrelloWebhook struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	IDModel     string `json:"idModel"`
	CallbackURL string `json:"callbackURL"`
	Active      bool   `json:"active"`
}

// toDomain converts the webhook to the domain type
func (w TrelloWebhook) toDomain() integration.Webhook {
	return integration.Webhook{
		ID:          w.ID,
		ModelID:     w.IDModel,
		CallbackURL: w.CallbackURL,
		Description: w.Description,
		Active:      w.Active,
	}
}

// ---------------------------------------------------------------------------
// Conversion
// ---------------------------------------------------------------------------

// decodeCard parses one card payload and keeps the bytes as the raw payload.
func decodeCard(raw json.RawMessage) (*integration.ExternalCard, error) {
	var tc TrelloCard
	if err := json.Unmarshal(raw, &tc); err != nil {
		return nil, err
	}
	card := convertTrelloCard(&tc)
	card.Raw = append(json.RawMessage(nil), raw...)
	return card, nil
}

// convertTrelloCard converts a Trello card to an ExternalCard
func convertTrelloCard(tc *TrelloCard) *integration.ExternalCard {
	card := &integration.ExternalCard{
		ID:           tc.ID,
		Name:         tc.Name,
		Description:  tc.Desc,
		ListID:       tc.IDList,
		BoardID:      tc.IDBoard,
		Closed:       tc.Closed,
		LastActivity: tc.DateLastActivity,
		ShortURL:     tc.ShortURL,
		MemberIDs:    tc.IDMembers,
		Badges: integration.CardBadges{
			Comments:          tc.Badges.Comments,
			Attachments:       tc.Badges.Attachments,
			CheckItems:        tc.Badges.CheckItems,
			CheckItemsChecked: tc.Badges.CheckItemsChecked,
			Due:               tc.Badges.Due,
		},
	}

	for _, m := range tc.Members {
		card.Members = append(card.Members, convertTrelloMember(m))
	}
	for _, l := range tc.Labels {
		card.Labels = append(card.Labels, integration.CardLabel{ID: l.ID, Name: l.Name, Color: l.Color})
	}
	for _, a := range tc.Attachments {
		card.Attachments = append(card.Attachments, integration.CardAttachment{
			ID:       a.ID,
			Name:     a.Name,
			URL:      a.URL,
			MimeType: a.MimeType,
		})
	}
	for _, cl := range tc.Checklists {
		checklist := integration.CardChecklist{ID: cl.ID, Name: cl.Name}
		for _, item := range cl.CheckItems {
			checklist.Items = append(checklist.Items, integration.CardChecklistItem{
				ID:       item.ID,
				Name:     item.Name,
				Complete: item.State == "complete",
			})
		}
		card.Checklists = append(card.Checklists, checklist)
	}
	for _, f := range tc.CustomFieldItems {
		card.CustomFieldItems = append(card.CustomFieldItems, integration.CustomFieldItem{
			ID:            f.ID,
			CustomFieldID: f.IDCustomField,
			Value:         f.Value,
		})
	}
	for _, a := range tc.Actions {
		action := integration.CardAction{
			ID:   a.ID,
			Type: a.Type,
			Text: a.Data.Text,
			Date: a.Date,
		}
		if a.MemberCreator != nil {
			action.MemberName = convertTrelloMember(*a.MemberCreator).DisplayName()
		}
		card.Actions = append(card.Actions, action)
	}
	return card
}

func convertTrelloMember(m TrelloMember) integration.CardMember {
	return integration.CardMember{ID: m.ID, FullName: m.FullName, Username: m.Username}
}
