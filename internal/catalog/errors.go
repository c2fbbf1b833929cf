package catalog

import (
	"errors"
	"fmt"
)

// Sentinel errors for catalog failures.
var (
	ErrNetwork = errors.New("network error")
	ErrParse   = errors.New("malformed catalog document")
	ErrNoData  = errors.New("no catalog data")
)

// RequestError provides context for a failed catalog request.
type RequestError struct {
	Op       string // Operation that failed (e.g., "search")
	Provider string // Catalog name
	Status   int    // HTTP status, 0 for transport failures
	Err      error  // Underlying error
}

func (e *RequestError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s %s: status %d: %v", e.Provider, e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Provider, e.Op, e.Err)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// NetworkError wraps err so that it matches ErrNetwork while keeping the
// original cause reachable.
func NetworkError(provider, op string, status int, err error) error {
	return &RequestError{
		Op:       op,
		Provider: provider,
		Status:   status,
		Err:      fmt.Errorf("%w: %w", ErrNetwork, err),
	}
}

// ParseError marks a document that could not be decoded.
func ParseError(provider, op string, err error) error {
	return &RequestError{Op: op, Provider: provider, Err: fmt.Errorf("%w: %w", ErrParse, err)}
}
