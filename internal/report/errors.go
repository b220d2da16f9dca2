package report

import (
	"errors"
	"fmt"
)

var (
	// ErrControlNotFound is wrapped by lookup failures on a control id
	ErrControlNotFound = errors.New("control not found")
	// ErrRepeatNotFound is wrapped by lookup failures on a repeat id or iteration
	ErrRepeatNotFound = errors.New("repeat not found")
	// ErrIterationCount is wrapped when a deletion asks for more iterations than exist
	ErrIterationCount = errors.New("deletion count exceeds available iterations")
	// ErrNestingUnderflow is wrapped when nested repeat markers do not balance
	ErrNestingUnderflow = errors.New("nested repeat markers underflow")
)

// LookupError reports a record addressing an id that is not in the tree.
// The record is skipped.
type LookupError struct {
	Record string // record kind, e.g. "control"
	ID     string
	Err    error
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Record, e.ID, e.Err)
}

func (e *LookupError) Unwrap() error { return e.Err }

// StructuralError reports a tree that does not have the shape a structural
// record expects. Mutations done before the inconsistency was detected stay.
type StructuralError struct {
	Record string
	ID     string
	Err    error
}

func (e *StructuralError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Record, e.ID, e.Err)
}

func (e *StructuralError) Unwrap() error { return e.Err }

// ActionError reports the failure of a single top-level action
type ActionError struct {
	Action string
	Err    error
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("action %s: %v", e.Action, e.Err)
}

func (e *ActionError) Unwrap() error { return e.Err }

// ParseError reports a batch that could not be decoded. Nothing is applied.
type ParseError struct {
	Line int // input line when known, 0 otherwise
	Err  error
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("parse error at line %d: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("parse error: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// NotFound builds the lookup error for a missing control
func NotFound(record, id string) error {
	return &LookupError{Record: record, ID: id, Err: ErrControlNotFound}
}
