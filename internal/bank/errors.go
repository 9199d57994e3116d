package bank

import (
	"errors"
	"fmt"
)

// ErrNoValidRecords is wrapped by LoadError when every record in a source
// failed validation (or the source was empty).
var ErrNoValidRecords = errors.New("no valid question records")

// LoadError indicates the bank could not be built from a source. It is fatal
// to the assessment subsystem but never to the hosting process; callers decide
// between retrying and a degraded fallback.
type LoadError struct {
	Source string
	Err    error
}

func (e *LoadError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("load question bank: %v", e.Err)
	}
	return fmt.Sprintf("load question bank %s: %v", e.Source, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// ValidationError describes why a validator rejected a draft.
type ValidationError struct {
	Validator string // Name of the validator that failed
	Message   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validator %q: %s", e.Validator, e.Message)
}

// MalformedRecordError reports a dropped record. It is non-fatal: the load
// continues and the error is listed in LoadReport.Rejected.
type MalformedRecordError struct {
	ID       string // may be empty if the record had no usable id
	Position int
	Err      error
}

func (e *MalformedRecordError) Error() string {
	id := e.ID
	if id == "" {
		id = "<missing id>"
	}
	return fmt.Sprintf("malformed question record %s (position %d): %v", id, e.Position, e.Err)
}

func (e *MalformedRecordError) Unwrap() error { return e.Err }
