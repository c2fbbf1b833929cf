package token

import (
	"errors"
	"fmt"
)

// ErrAuth is matched by every token acquisition failure.
var ErrAuth = errors.New("authentication failed")

var errEmptyToken = errors.New("empty token in response")

// AuthError reports a failed token fetch for a provider.
type AuthError struct {
	Provider string
	Err      error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s: %v: %v", e.Provider, ErrAuth, e.Err)
}

func (e *AuthError) Unwrap() []error {
	return []error{ErrAuth, e.Err}
}
