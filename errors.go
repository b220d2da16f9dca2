package xforms

import (
	"github.com/orbeon/orbeon-forms-sub002/internal/report"
)

// Typed errors reported while applying a response. They are matched with
// errors.As; the sentinels below with errors.Is.
type (
	LookupError     = report.LookupError
	StructuralError = report.StructuralError
	ActionError     = report.ActionError
	ParseError      = report.ParseError
)

var (
	ErrControlNotFound  = report.ErrControlNotFound
	ErrRepeatNotFound   = report.ErrRepeatNotFound
	ErrIterationCount   = report.ErrIterationCount
	ErrNestingUnderflow = report.ErrNestingUnderflow
)

// Diagnostic is the user-visible form of an error
type Diagnostic = report.Diagnostic

// Diagnostics are the errors of one batch
type Diagnostics = report.Diagnostics

// Diagnostic kinds
const (
	KindLookup     = report.KindLookup
	KindStructural = report.KindStructural
	KindAction     = report.KindAction
	KindParse      = report.KindParse
	KindServer     = report.KindServer
	KindPanic      = report.KindPanic
)
