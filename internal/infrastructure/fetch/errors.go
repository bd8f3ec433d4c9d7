package fetch

import (
	"errors"
	"fmt"
)

var (
	// ErrTransientFetchFailure is returned once retries are exhausted on a
	// transient condition (429, 5xx, transport error).
	ErrTransientFetchFailure = errors.New("fetch: transient failure, retries exhausted")
	// ErrInvalidConfig is returned for an unusable client configuration
	ErrInvalidConfig = errors.New("fetch: invalid configuration")
)

// TransientFetchFailure describes the last attempt of an exhausted retry loop.
// errors.Is(err, ErrTransientFetchFailure) holds for every value of this type.
type TransientFetchFailure struct {
	Method     string
	URL        string
	Attempts   int
	LastStatus int
	Err        error
}

// Error implements error
func (e *TransientFetchFailure) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch: %s %s failed after %d attempts: %v", e.Method, e.URL, e.Attempts, e.Err)
	}
	return fmt.Sprintf("fetch: %s %s failed after %d attempts: last status %d", e.Method, e.URL, e.Attempts, e.LastStatus)
}

// Unwrap exposes both the sentinel and the underlying transport error
func (e *TransientFetchFailure) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrTransientFetchFailure}
	}
	return []error{ErrTransientFetchFailure, e.Err}
}
