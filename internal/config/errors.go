package config

import (
	"errors"
	"strings"
)

// ErrNoRoutes is returned (wrapped) when a config declares zero routes.
var ErrNoRoutes = errors.New("no routes configured")

// ValidationErrors aggregates every violation found during Validate, rather
// than stopping at the first one.
type ValidationErrors []error

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return "config: no validation errors"
	}
	msgs := make([]string, len(v))
	for i, err := range v {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

// Unwrap exposes the individual errors for errors.Is/errors.As traversal.
func (v ValidationErrors) Unwrap() []error {
	return []error(v)
}
