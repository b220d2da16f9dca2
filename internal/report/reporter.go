package report

import (
	"errors"
	"fmt"
	"log"
	"runtime"
	"strings"

	"github.com/orbeon/orbeon-forms-sub002/internal/host"
)

// Diagnostic kinds
const (
	KindLookup     = "lookup"
	KindStructural = "structural"
	KindAction     = "action"
	KindParse      = "parse"
	KindServer     = "server"
	KindPanic      = "panic"
	KindOther      = "error"
)

// Diagnostic is the user-visible form of an error
type Diagnostic = host.Diagnostic

// Diagnostics is a collection of diagnostics (implements error interface)
type Diagnostics []Diagnostic

func (d Diagnostics) Error() string {
	if len(d) == 0 {
		return ""
	}
	var msgs []string
	for _, diag := range d {
		msgs = append(msgs, fmt.Sprintf("%s: %s", diag.Kind, diag.Message))
	}
	return strings.Join(msgs, "; ")
}

// Count returns the number of diagnostics of a kind
func (d Diagnostics) Count(kind string) int {
	n := 0
	for _, diag := range d {
		if diag.Kind == kind {
			n++
		}
	}
	return n
}

// Reporter collects the errors of a batch. Each one is logged, then shown on
// the surface unless errors are ignored. Nothing is rolled back.
type Reporter struct {
	logger      *log.Logger
	surface     host.Surface
	ignore      bool
	diagnostics Diagnostics
	onReport    func(Diagnostic)
}

// NewReporter creates a reporter. A nil surface only logs.
func NewReporter(logger *log.Logger, surface host.Surface, ignore bool) *Reporter {
	if logger == nil {
		logger = log.Default()
	}
	return &Reporter{logger: logger, surface: surface, ignore: ignore}
}

// OnReport registers a hook called for every diagnostic
func (r *Reporter) OnReport(fn func(Diagnostic)) {
	r.onReport = fn
}

// Report records an error. Nil errors are ignored.
func (r *Reporter) Report(err error) {
	if err == nil {
		return
	}
	var multi Diagnostics
	if errors.As(err, &multi) {
		for _, d := range multi {
			r.Add(d)
		}
		return
	}
	r.Add(Classify(err))
}

// Add records a diagnostic built by the caller
func (r *Reporter) Add(d Diagnostic) {
	r.diagnostics = append(r.diagnostics, d)
	if d.File != "" {
		r.logger.Printf("%s error: %s (%s at %s:%d:%d)", d.Kind, d.Message, d.Exception, d.File, d.Line, d.Col)
	} else {
		r.logger.Printf("%s error: %s", d.Kind, d.Message)
	}
	if r.onReport != nil {
		r.onReport(d)
	}
	if !r.ignore && r.surface != nil {
		r.surface.Show(d)
	}
}

// Guard runs fn, turning a panic into a diagnostic. It returns false if fn panicked.
func (r *Reporter) Guard(fn func()) (ok bool) {
	defer func() {
		if p := recover(); p != nil {
			r.Add(panicDiagnostic(p))
			ok = false
		}
	}()
	fn()
	return true
}

// Diagnostics returns everything reported since the last Reset
func (r *Reporter) Diagnostics() Diagnostics {
	return r.diagnostics
}

// Err returns the collected diagnostics as an error, nil if there are none
func (r *Reporter) Err() error {
	if len(r.diagnostics) == 0 {
		return nil
	}
	return r.diagnostics
}

// Reset forgets the collected diagnostics
func (r *Reporter) Reset() {
	r.diagnostics = nil
}

// Classify builds the diagnostic of a typed error
func Classify(err error) Diagnostic {
	d := Diagnostic{Kind: KindOther, Exception: fmt.Sprintf("%T", err), Message: err.Error()}

	var lookup *LookupError
	var structural *StructuralError
	var action *ActionError
	var parse *ParseError
	switch {
	case errors.As(err, &parse):
		d.Kind = KindParse
		d.Exception = "ParseError"
		d.Line = parse.Line
	case errors.As(err, &lookup):
		d.Kind = KindLookup
		d.Exception = "LookupError"
	case errors.As(err, &structural):
		d.Kind = KindStructural
		d.Exception = "StructuralError"
	case errors.As(err, &action):
		d.Kind = KindAction
		d.Exception = "ActionError"
	}
	return d
}

func panicDiagnostic(p any) Diagnostic {
	d := Diagnostic{Kind: KindPanic, Exception: fmt.Sprintf("%T", p), Message: fmt.Sprint(p)}
	if err, ok := p.(error); ok {
		d.Message = err.Error()
	}

	// First frame outside the runtime is where the panic happened
	pcs := make([]uintptr, 32)
	n := runtime.Callers(3, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	for {
		frame, more := frames.Next()
		if !strings.HasPrefix(frame.Function, "runtime.") {
			d.File = frame.File
			d.Line = frame.Line
			break
		}
		if !more {
			break
		}
	}
	return d
}
