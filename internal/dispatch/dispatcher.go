// Package dispatch runs the top-level actions of a response once the control
// details of their group are applied. Actions are independent: a failing
// action is reported and the next one runs.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"github.com/orbeon/orbeon-forms-sub002/internal/dom"
	"github.com/orbeon/orbeon-forms-sub002/internal/host"
	"github.com/orbeon/orbeon-forms-sub002/internal/metrics"
	"github.com/orbeon/orbeon-forms-sub002/internal/protocol"
	"github.com/orbeon/orbeon-forms-sub002/internal/report"
	"github.com/orbeon/orbeon-forms-sub002/internal/session"
)

// ValueCapturer caches the value a control shows, see reconcile.Reconciler
type ValueCapturer interface {
	CaptureValue(controlID string)
}

// Options holds the collaborators actions are delegated to. Nil
// collaborators do nothing.
type Options struct {
	Focus     host.Focus
	Scripts   host.ScriptRunner
	Navigator host.Navigator
	Messages  host.MessageSink
	Help      host.HelpSink
	Poller    host.Poller
	Values    ValueCapturer

	Metrics *metrics.Collector
	Logger  *log.Logger

	// HighlightCycle is the number of distinct highlight classes used for
	// nested repeats
	HighlightCycle int
}

// Dispatcher runs actions against the tree and session of one form
type Dispatcher struct {
	doc   *html.Node
	state *session.State
	opts  Options

	replacesPage bool
}

var errUnknownAction = errors.New("unknown action")

// New creates a dispatcher
func New(doc *html.Node, state *session.State, opts Options) *Dispatcher {
	var n nop
	if opts.Focus == nil {
		opts.Focus = n
	}
	if opts.Scripts == nil {
		opts.Scripts = n
	}
	if opts.Navigator == nil {
		opts.Navigator = n
	}
	if opts.Messages == nil {
		opts.Messages = n
	}
	if opts.Help == nil {
		opts.Help = n
	}
	if opts.Poller == nil {
		opts.Poller = n
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewCollector()
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.HighlightCycle <= 0 {
		opts.HighlightCycle = 4
	}
	return &Dispatcher{doc: doc, state: state, opts: opts}
}

// BeginBatch forgets what the previous batch requested
func (d *Dispatcher) BeginBatch() {
	d.replacesPage = false
}

// ReplacesPage reports whether an action of the batch navigates away from
// the page
func (d *Dispatcher) ReplacesPage() bool {
	return d.replacesPage
}

// Run dispatches actions in order and returns how many succeeded. Errors
// and panics of each action are reported and do not stop the others.
func (d *Dispatcher) Run(ctx context.Context, actions []protocol.Action, reporter *report.Reporter) (applied int) {
	for _, a := range actions {
		ok := reporter.Guard(func() {
			if err := d.Dispatch(ctx, a); err != nil {
				d.opts.Metrics.ActionError()
				reporter.Report(err)
				return
			}
			d.opts.Metrics.RecordApplied(a.ActionName())
			applied++
		})
		if !ok {
			d.opts.Metrics.Panic()
		}
	}
	return applied
}

// Dispatch runs one action. Failures are returned as *report.ActionError.
func (d *Dispatcher) Dispatch(ctx context.Context, a protocol.Action) error {
	d.opts.Metrics.ActionRun()
	if err := d.dispatch(ctx, a); err != nil {
		return &report.ActionError{Action: a.ActionName(), Err: err}
	}
	return nil
}

func (d *Dispatcher) dispatch(ctx context.Context, a protocol.Action) error {
	switch a := a.(type) {
	case *protocol.RepeatHierarchy:
		d.state.Repeats = session.ParseRepeatTree(a.Data)
		return nil
	case *protocol.RepeatIndexes:
		return d.moveIndexes(a)
	case *protocol.Poll:
		d.opts.Poller.SchedulePoll(a.Delay)
		return nil
	case *protocol.ServerEvents:
		return d.opts.Poller.SendServerEvents(a.Data)
	case *protocol.Submission:
		return d.submit(ctx, a)
	case *protocol.Message:
		return d.opts.Messages.Show(a.Level, a.Text)
	case *protocol.Load:
		return d.load(ctx, a)
	case *protocol.Focus:
		return d.focus(a.ControlID)
	case *protocol.Blur:
		if d.state.FocusID == a.ControlID {
			d.state.ClearFocus()
		}
		return d.opts.Focus.RemoveFocus(a.ControlID)
	case *protocol.Script:
		return d.opts.Scripts.Run(ctx, a.Name, a.TargetID, a.ObserverID, a.Params)
	case *protocol.Callback:
		return d.opts.Scripts.Callback(ctx, a.Name)
	case *protocol.Help:
		return d.opts.Help.ShowHelp(a.ControlID)
	default:
		return fmt.Errorf("%w %T", errUnknownAction, a)
	}
}

func (d *Dispatcher) submit(ctx context.Context, a *protocol.Submission) error {
	err := d.opts.Navigator.Submit(ctx, host.Submission{
		ShowProgress: a.ShowProgress,
		Replace:      a.Replace,
		Target:       a.Target,
		Action:       a.Action,
	})
	if err != nil {
		return err
	}
	if a.Replace == "all" && a.Target == "" && a.ShowProgress {
		d.replacesPage = true
	}
	return nil
}

const javascriptScheme = "javascript:"

// load opens a resource. Scripts given as javascript: URLs are evaluated.
// Otherwise show="replace" navigates in place, or in the given target, and
// any other show opens a new window.
func (d *Dispatcher) load(ctx context.Context, a *protocol.Load) error {
	if code, ok := strings.CutPrefix(a.Resource, javascriptScheme); ok {
		decoded, err := url.PathUnescape(code)
		if err != nil {
			return fmt.Errorf("decode script resource: %w", err)
		}
		return d.opts.Scripts.Eval(ctx, decoded)
	}
	if _, err := url.Parse(a.Resource); err != nil {
		return fmt.Errorf("invalid resource: %w", err)
	}

	target := "_blank"
	if a.Show == "replace" {
		target = a.Target
	}
	if err := d.opts.Navigator.Navigate(ctx, a.Resource, target, a.ShowProgress); err != nil {
		return err
	}
	if target == "" && a.ShowProgress && !strings.HasPrefix(a.Resource, "#") {
		d.replacesPage = true
	}
	return nil
}

// focus moves focus to a control. The value the control shows is cached so
// what the user types from now on is recognized as a local edit.
func (d *Dispatcher) focus(controlID string) error {
	if err := d.opts.Focus.SetFocus(controlID); err != nil {
		return err
	}
	if d.opts.Values != nil {
		d.opts.Values.CaptureValue(controlID)
	}
	if el := dom.ElementByID(d.doc, controlID); el != nil {
		d.state.SetFocus(controlID, el)
	}
	return nil
}
