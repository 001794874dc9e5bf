package docuware

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a lookup by id or name has no match.
var ErrNotFound = errors.New("not found")

// NotFoundError names the missing resource.
type NotFoundError struct {
	Kind string
	Key  string
}

func (e *NotFoundError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("no %s found", e.Kind)
	}
	return fmt.Sprintf("%s %q %s", e.Kind, e.Key, ErrNotFound)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}
