package reconcile

import (
	"errors"
	"fmt"
)

// ErrAmbiguousIdentity signals that two distinct persisted rows share the
// same identity fields. This is a store-integrity violation and always
// aborts the run.
var ErrAmbiguousIdentity = errors.New("ambiguous identity: multiple rows with equal identity fields")

// ParseError describes a malformed or incomplete source record. It is fatal
// for that record; whether it aborts the whole run depends on how the record
// would have been classified.
type ParseError struct {
	RequestID string
	Field     string
	Err       error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse case %s: field %q: %v", e.RequestID, e.Field, e.Err)
	}
	return fmt.Sprintf("parse case %s: missing required field %q", e.RequestID, e.Field)
}

func (e *ParseError) Unwrap() error { return e.Err }
