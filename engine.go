// Package xforms applies the change batches of a form server to a UI tree
// already rendered by the host. Local edits the server has not seen yet are
// kept. Each record is isolated, so one failure does not stop the batch.
package xforms

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"

	"golang.org/x/net/html"

	"github.com/orbeon/orbeon-forms-sub002/internal/dispatch"
	"github.com/orbeon/orbeon-forms-sub002/internal/metrics"
	"github.com/orbeon/orbeon-forms-sub002/internal/protocol"
	"github.com/orbeon/orbeon-forms-sub002/internal/reconcile"
	"github.com/orbeon/orbeon-forms-sub002/internal/report"
	"github.com/orbeon/orbeon-forms-sub002/internal/schedule"
	"github.com/orbeon/orbeon-forms-sub002/internal/session"
	"github.com/orbeon/orbeon-forms-sub002/internal/structure"
)

// Batch is one parsed server response
type Batch = protocol.Batch

// State is what the engine remembers of a form between two batches
type State = session.State

// Result describes what applying a batch did
type Result struct {
	// Applied counts the records and actions that succeeded
	Applied int

	Diagnostics Diagnostics

	// ReplacesPage is set when a navigation or submission replaces the page
	ReplacesPage bool

	// TypeChanged lists the controls whose widget was rebuilt for a new type
	TypeChanged []string

	// Deferred counts the groups postponed behind the deferral delay. Their
	// outcome is delivered to the OnDeferred callback.
	Deferred int
}

// Err returns the diagnostics as an error, nil if there are none
func (r *Result) Err() error {
	if len(r.Diagnostics) == 0 {
		return nil
	}
	return r.Diagnostics
}

// Engine applies batches to the tree of one form. It is not safe for
// concurrent use: every call must come from the host's event loop, except
// HasPending and CancelPending.
type Engine struct {
	cfg     *Config
	host    Host
	doc     *html.Node
	state   *State
	logger  *log.Logger
	metrics *metrics.Collector

	reconciler *reconcile.Reconciler
	editor     *structure.Editor
	dispatcher *dispatch.Dispatcher

	pendingMu  sync.Mutex
	pending    *schedule.Continuation
	onDeferred func(*Result)
}

// Option configures an Engine
type Option func(*Engine) error

// WithLogger sets the logger, the default writes to stderr with the
// configured prefix
func WithLogger(logger *log.Logger) Option {
	return func(e *Engine) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		e.logger = logger
		return nil
	}
}

// WithMetrics shares a collector between engines
func WithMetrics(c *metrics.Collector) Option {
	return func(e *Engine) error {
		if c == nil {
			return errors.New("metrics collector cannot be nil")
		}
		e.metrics = c
		return nil
	}
}

// WithState resumes a form from a previous state
func WithState(state *State) Option {
	return func(e *Engine) error {
		if state == nil {
			return errors.New("state cannot be nil")
		}
		e.state = state
		return nil
	}
}

// New creates an engine over a rendered document. A nil cfg uses
// DefaultConfig.
func New(doc *html.Node, cfg *Config, h Host, options ...Option) (*Engine, error) {
	if doc == nil {
		return nil, errors.New("document cannot be nil")
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if h.Widgets == nil {
		h.Widgets = NewRegistry()
	}

	e := &Engine{cfg: cfg, host: h, doc: doc}
	for _, option := range options {
		if err := option(e); err != nil {
			return nil, err
		}
	}
	if e.logger == nil {
		e.logger = log.New(os.Stderr, cfg.LogPrefix, log.LstdFlags)
	}
	if e.metrics == nil {
		e.metrics = metrics.NewCollector()
	}
	if e.state == nil {
		e.state = session.NewState()
	}

	e.reconciler = reconcile.New(doc, e.state, reconcile.Options{
		Widgets:         h.Widgets,
		Metrics:         e.metrics,
		Logger:          e.logger,
		NormalizeMarkup: cfg.NormalizeMarkup,
	})
	e.editor = structure.New(doc, e.state, structure.Options{
		Widgets: h.Widgets,
		Focus:   h.Focus,
		Metrics: e.metrics,
		Logger:  e.logger,
	})
	e.dispatcher = dispatch.New(doc, e.state, dispatch.Options{
		Focus:          h.Focus,
		Scripts:        h.Scripts,
		Navigator:      h.Navigator,
		Messages:       h.Messages,
		Help:           h.Help,
		Poller:         h.Poller,
		Values:         e.reconciler,
		Metrics:        e.metrics,
		Logger:         e.logger,
		HighlightCycle: cfg.HighlightDepthCycle,
	})
	return e, nil
}

// Document returns the tree the engine mutates
func (e *Engine) Document() *html.Node { return e.doc }

// State returns the cross-batch state of the form
func (e *Engine) State() *State { return e.state }

// Metrics returns the engine counters
func (e *Engine) Metrics() *metrics.Collector { return e.metrics }

// OnDeferred registers the callback receiving the result of deferred groups
func (e *Engine) OnDeferred(fn func(*Result)) {
	e.onDeferred = fn
}

// HasPending reports whether deferred groups are waiting for their timer
func (e *Engine) HasPending() bool {
	e.pendingMu.Lock()
	p := e.pending
	e.pendingMu.Unlock()
	return p != nil && p.Phase() == schedule.PhaseScheduled
}

// CancelPending drops the deferred groups. It returns false if nothing was
// pending or the groups already started.
func (e *Engine) CancelPending() bool {
	p := e.takePending(nil)
	if p == nil || !p.Cancel() {
		return false
	}
	e.logger.Printf("cancelled %s", p.Label)
	return true
}

// takePending clears the pending continuation and returns it. When only is
// set, the pending continuation is left alone unless it is only.
func (e *Engine) takePending(only *schedule.Continuation) *schedule.Continuation {
	e.pendingMu.Lock()
	defer e.pendingMu.Unlock()
	p := e.pending
	if only != nil && p != only {
		return nil
	}
	e.pending = nil
	return p
}

// HandleResponse parses a response and applies it. A response that cannot
// be parsed is reported and returned as a *ParseError; the tree is not
// touched.
func (e *Engine) HandleResponse(ctx context.Context, r io.Reader) (*Result, error) {
	batch, err := protocol.Parse(io.LimitReader(r, e.cfg.MaxMessageSize))
	if err != nil {
		e.metrics.ParseFailure()
		rep := e.newReporter()
		rep.Report(err)
		return &Result{Diagnostics: rep.Diagnostics()}, err
	}
	return e.Apply(ctx, batch), nil
}

// Apply runs every group of a batch in order, then reports the server
// errors. Deferred groups of a previous batch run first.
func (e *Engine) Apply(ctx context.Context, batch *Batch) *Result {
	// A flushed continuation may defer again, so flush until none is left
	for p := e.takePending(nil); p != nil; p = e.takePending(nil) {
		if p.Flush() {
			e.logger.Printf("flushed %s before next batch", p.Label)
		}
	}

	pass := e.begin()
	if !pass.rep.Guard(func() {
		for i, group := range batch.Groups {
			if e.applyGroup(ctx, pass, batch.Groups[i:], group) {
				break
			}
		}
	}) {
		e.metrics.Panic()
	}
	for _, se := range batch.Errors {
		pass.rep.Add(Diagnostic{
			Kind:      KindServer,
			Exception: se.Exception,
			File:      se.File,
			Line:      se.Line,
			Col:       se.Col,
			Message:   se.Message,
		})
	}
	return e.finish(pass)
}

// run is the bookkeeping of one synchronous pass
type run struct {
	res *Result
	rep *report.Reporter
}

func (e *Engine) newReporter() *report.Reporter {
	return report.NewReporter(e.logger, e.host.Surface, e.cfg.IgnoreErrors)
}

func (e *Engine) begin() *run {
	e.reconciler.BeginBatch()
	e.dispatcher.BeginBatch()
	return &run{res: &Result{}, rep: e.newReporter()}
}

func (e *Engine) finish(r *run) *Result {
	r.res.Diagnostics = r.rep.Diagnostics()
	r.res.TypeChanged = e.reconciler.TypeChanged()
	r.res.ReplacesPage = e.dispatcher.ReplacesPage()
	e.metrics.BatchApplied()
	return r.res
}

// applyGroup applies one group. It returns true when the rest of the batch,
// starting with this group's details, was deferred.
func (e *Engine) applyGroup(ctx context.Context, r *run, rest []*protocol.ActionGroup, group *protocol.ActionGroup) bool {
	for i := range group.Deletions {
		d := &group.Deletions[i]
		e.record(r, "delete-repeat-elements", func() error {
			_, err := e.editor.DeleteIterations(d)
			return err
		})
	}

	if dialogs := group.DialogsToShow(); len(dialogs) > 0 && e.shouldDefer() {
		if e.deferRest(ctx, rest, dialogs) {
			r.res.Deferred = len(rest)
			return true
		}
	}

	e.applyBody(ctx, r, group)
	return false
}

// applyBody applies the details of a group, then its actions
func (e *Engine) applyBody(ctx context.Context, r *run, group *protocol.ActionGroup) {
	for _, detail := range group.Details {
		e.record(r, detailKind(detail), func() error {
			return e.applyDetail(ctx, detail)
		})
	}
	r.res.Applied += e.dispatcher.Run(ctx, group.Actions, r.rep)
}

func (e *Engine) shouldDefer() bool {
	return e.host.Viewport != nil && e.host.Scheduler != nil && e.host.Viewport.Constrained()
}

// deferRest postpones the groups from rest[0] onward, except the deletions
// of rest[0] which already ran. It returns false if the timer could not be
// armed, in which case the caller applies the groups now.
func (e *Engine) deferRest(ctx context.Context, rest []*protocol.ActionGroup, dialogs []string) bool {
	label := "dialog " + strings.Join(dialogs, ",")
	var c *schedule.Continuation
	c = schedule.NewContinuation(label, func() {
		e.takePending(c)
		res := e.runDeferred(context.WithoutCancel(ctx), rest)
		if e.onDeferred != nil {
			e.onDeferred(res)
		}
	})
	if err := c.Schedule(e.host.Scheduler, e.cfg.DeferralDelay); err != nil {
		e.logger.Printf("applying %s now: %v", label, err)
		return false
	}
	e.pendingMu.Lock()
	e.pending = c
	e.pendingMu.Unlock()
	e.metrics.Deferral()
	e.logger.Printf("deferred %s by %s", label, e.cfg.DeferralDelay)
	return true
}

// runDeferred re-enters the synchronous pipeline for postponed groups
func (e *Engine) runDeferred(ctx context.Context, groups []*protocol.ActionGroup) *Result {
	r := e.begin()
	if !r.rep.Guard(func() {
		for i, group := range groups {
			if i == 0 {
				e.applyBody(ctx, r, group)
				continue
			}
			if e.applyGroup(ctx, r, groups[i:], group) {
				break
			}
		}
	}) {
		e.metrics.Panic()
	}
	return e.finish(r)
}

// record applies one record, isolating its failure or panic
func (e *Engine) record(r *run, kind string, fn func() error) {
	ok := r.rep.Guard(func() {
		if err := fn(); err != nil {
			e.metrics.RecordError()
			r.rep.Report(err)
			return
		}
		e.metrics.RecordApplied(kind)
		r.res.Applied++
	})
	if !ok {
		e.metrics.Panic()
	}
}

func (e *Engine) applyDetail(ctx context.Context, detail protocol.Detail) error {
	switch d := detail.(type) {
	case *protocol.ControlDetail:
		return e.reconciler.ApplyControl(d)
	case *protocol.InitDetail:
		return e.reconciler.ApplyInit(d)
	case *protocol.InnerHTML:
		return e.editor.ReplaceSubtree(ctx, d)
	case *protocol.AttributeChange:
		return e.reconciler.ApplyAttribute(d)
	case *protocol.TextChange:
		return e.reconciler.ApplyText(d)
	case *protocol.RepeatIteration:
		return e.editor.SetIterationRelevance(d)
	case *protocol.DialogState:
		return e.reconciler.ApplyDialog(d)
	default:
		return fmt.Errorf("unknown detail %T for %s", detail, detail.Target())
	}
}

func detailKind(detail protocol.Detail) string {
	switch detail.(type) {
	case *protocol.ControlDetail:
		return "control"
	case *protocol.InitDetail:
		return "init"
	case *protocol.InnerHTML:
		return "inner-html"
	case *protocol.AttributeChange:
		return "attribute"
	case *protocol.TextChange:
		return "text"
	case *protocol.RepeatIteration:
		return "repeat-iteration"
	case *protocol.DialogState:
		return "dialog"
	default:
		return "unknown"
	}
}
