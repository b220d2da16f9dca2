package xforms

import (
	"github.com/orbeon/orbeon-forms-sub002/internal/host"
)

// Collaborators provided by the host page
type (
	Widget         = host.Widget
	WidgetRegistry = host.WidgetRegistry
	Focus          = host.Focus
	ScriptRunner   = host.ScriptRunner
	Submission     = host.Submission
	Navigator      = host.Navigator
	MessageSink    = host.MessageSink
	HelpSink       = host.HelpSink
	Poller         = host.Poller
	Surface        = host.Surface
	Viewport       = host.Viewport
	Timer          = host.Timer
	Scheduler      = host.Scheduler
)

// Host groups the collaborators of an engine. Nil fields do nothing; a nil
// Widgets uses an empty Registry.
type Host struct {
	Widgets   WidgetRegistry
	Focus     Focus
	Scripts   ScriptRunner
	Navigator Navigator
	Messages  MessageSink
	Help      HelpSink
	Poller    Poller

	// Surface shows diagnostics, nil only logs them
	Surface Surface

	// Viewport and Scheduler drive the deferral of groups showing a
	// dialog. Without both, every group is applied synchronously.
	Viewport  Viewport
	Scheduler Scheduler
}
