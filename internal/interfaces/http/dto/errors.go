package dto

import "net/http"

// Error code constants organized by category
// Format: ERR_<CATEGORY>_<DESCRIPTION>

// General error codes
const (
	ErrCodeUnknown  = "ERR_UNKNOWN"
	ErrCodeInternal = "ERR_INTERNAL"
)

// Input error codes
const (
	// ErrCodeValidation is used when request binding fails validation
	ErrCodeValidation = "ERR_VALIDATION"
	// ErrCodeBadRequest is used for malformed requests
	ErrCodeBadRequest = "ERR_BAD_REQUEST"
	// ErrCodeInvalidJSON is used when JSON parsing fails
	ErrCodeInvalidJSON = "ERR_INVALID_JSON"
	// ErrCodeMissingTenant is used when X-Tenant-ID is absent or malformed
	ErrCodeMissingTenant = "ERR_MISSING_TENANT"
	// ErrCodeRequestTooLarge is used when the body exceeds the configured limit
	ErrCodeRequestTooLarge = "ERR_REQUEST_TOO_LARGE"
)

// Resource error codes
const (
	ErrCodeNotFound = "ERR_NOT_FOUND"
	ErrCodeConflict = "ERR_CONFLICT"
)

// Board sync error codes
const (
	// ErrCodeFatalConfiguration is used when the tenant's sync configuration cannot drive a run
	ErrCodeFatalConfiguration = "ERR_FATAL_CONFIGURATION"
	// ErrCodeRunAborted is used when a reconciliation run stopped before completing
	ErrCodeRunAborted = "ERR_RUN_ABORTED"
	// ErrCodeBoardUnavailable is used when the board API failed after retries
	ErrCodeBoardUnavailable = "ERR_BOARD_UNAVAILABLE"
	// ErrCodeBoardUnauthorized is used when the board rejected the tenant's credentials
	ErrCodeBoardUnauthorized = "ERR_BOARD_UNAUTHORIZED"
	// ErrCodeInvalidCard is used when a card lacks the fields sync needs
	ErrCodeInvalidCard = "ERR_INVALID_CARD"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeUnknown:  http.StatusInternalServerError,
	ErrCodeInternal: http.StatusInternalServerError,

	ErrCodeValidation:      http.StatusBadRequest,
	ErrCodeBadRequest:      http.StatusBadRequest,
	ErrCodeInvalidJSON:     http.StatusBadRequest,
	ErrCodeMissingTenant:   http.StatusBadRequest,
	ErrCodeRequestTooLarge: http.StatusRequestEntityTooLarge,

	ErrCodeNotFound: http.StatusNotFound,
	ErrCodeConflict: http.StatusConflict,

	ErrCodeFatalConfiguration: http.StatusUnprocessableEntity,
	ErrCodeInvalidCard:        http.StatusUnprocessableEntity,
	ErrCodeRunAborted:         http.StatusBadGateway,
	ErrCodeBoardUnavailable:   http.StatusBadGateway,
	ErrCodeBoardUnauthorized:  http.StatusBadGateway,
}

// GetHTTPStatus returns the HTTP status code for an error code
// Returns 500 Internal Server Error if the error code is not found
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}
