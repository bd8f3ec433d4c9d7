package trello

import (
	"errors"
	"net/url"
	"strings"
)

const (
	// ProductionAPIURL is the Trello REST v1 endpoint
	ProductionAPIURL = "https://api.trello.com/1"

	// listCardFields are the summary fields requested when paging a board
	listCardFields = "id,name,desc,idList,idBoard,closed,dateLastActivity,shortUrl,idMembers"
)

// Errors for Trello configuration
var (
	ErrTrelloConfigMissingBaseURL = errors.New("trello: API base URL is required")
	ErrTrelloConfigInvalidBaseURL = errors.New("trello: API base URL is invalid")
	ErrTrelloMissingFetchClient   = errors.New("trello: fetch client is required")
)

// TrelloConfig holds the adapter settings shared by every tenant.
// Credentials and the board ID are per tenant and travel with each call.
type TrelloConfig struct {
	// APIBaseURL is the REST root, without trailing slash
	APIBaseURL string
	// CardActions is the action filter for card details (comments and updates by default)
	CardActions string
	// CardActionsLimit bounds how many actions the detail call returns
	CardActionsLimit int
}

// NewTrelloConfig creates a configuration pointing at production
func NewTrelloConfig() *TrelloConfig {
	return &TrelloConfig{
		APIBaseURL:       ProductionAPIURL,
		CardActions:      "commentCard,updateCard",
		CardActionsLimit: 50,
	}
}

// Validate validates the configuration and fills optional defaults
func (c *TrelloConfig) Validate() error {
	if strings.TrimSpace(c.APIBaseURL) == "" {
		return ErrTrelloConfigMissingBaseURL
	}
	u, err := url.Parse(c.APIBaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ErrTrelloConfigInvalidBaseURL
	}
	c.APIBaseURL = strings.TrimRight(c.APIBaseURL, "/")
	if c.CardActions == "" {
		c.CardActions = "commentCard,updateCard"
	}
	if c.CardActionsLimit <= 0 {
		c.CardActionsLimit = 50
	}
	return nil
}
