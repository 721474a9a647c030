package core

import (
	"fmt"

	"github.com/pkg/errors"
)

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		return ""
	}
	return err.Err.Error()
}

// IsolationBreachError reports a record that slipped past owner scoping:
// a result set produced under one identity contained a record owned by
// another. It is always a server-side fault and must never reach a client
// beyond a generic server error.
type IsolationBreachError struct {
	Kind        string // entity kind, e.g. "task"
	RecordID    string
	WantOwnerID string
	GotOwnerID  string
}

func (err *IsolationBreachError) Error() string {
	return fmt.Sprintf(
		"isolation breach: %s %q owned by %q surfaced for owner %q",
		err.Kind, err.RecordID, err.GotOwnerID, err.WantOwnerID,
	)
}

func IsIsolationBreach(err error) bool {
	var ibErr *IsolationBreachError
	return errors.As(err, &ibErr)
}

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
