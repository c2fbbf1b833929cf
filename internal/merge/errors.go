package merge

import (
	"errors"
	"fmt"

	"github.com/ryanm101/romcatalog/internal/library"
)

// ErrMalformedField marks a document value that is present but unusable.
var ErrMalformedField = errors.New("malformed field")

// FieldError reports the field and raw value that failed to parse.
type FieldError struct {
	Field    library.Field
	Value    string
	Provider string
	Err      error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s %q: %v", e.Provider, e.Field, e.Value, e.Err)
}

func (e *FieldError) Unwrap() []error {
	return []error{ErrMalformedField, e.Err}
}
