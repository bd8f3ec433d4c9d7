package integration

import "errors"

// ---------------------------------------------------------------------------
// Board Sync Errors
// ---------------------------------------------------------------------------

var (
	// Configuration errors. Any of these aborts a run before a card is touched.
	ErrFatalConfiguration = errors.New("integration: fatal sync configuration error")
	ErrMissingCredentials = errors.New("integration: board API credentials missing")
	ErrMissingBoardID     = errors.New("integration: board ID missing")
	ErrSyncConfigNotFound = errors.New("integration: sync configuration not found")
	ErrSyncDisabled       = errors.New("integration: board sync disabled for tenant")

	// Board errors
	ErrBoardRequestFailed   = errors.New("integration: board request failed")
	ErrBoardInvalidResponse = errors.New("integration: invalid board response")
	ErrBoardUnauthorized    = errors.New("integration: board credentials rejected")
	ErrCardNotFound         = errors.New("integration: card not found on board")
	ErrMemberNotFound       = errors.New("integration: board member not found")
	ErrWebhookNotRegistered = errors.New("integration: no webhook registered")

	// Card errors, counted per card and never fatal for a run
	ErrCardMissingID   = errors.New("integration: card has no identifier")
	ErrCardMissingList = errors.New("integration: card has no containing list")

	// Lead errors
	ErrLeadNotFound = errors.New("integration: lead not found")

	// Run errors
	ErrInvalidRunMode       = errors.New("integration: invalid run mode")
	ErrInvalidRunTransition = errors.New("integration: invalid run state transition")
	ErrRunAborted           = errors.New("integration: reconciliation run aborted")
)

// IsFatal reports whether err must stop a run before any card is processed.
func IsFatal(err error) bool {
	return errors.Is(err, ErrFatalConfiguration)
}
