// Package host declares the collaborators the engine drives. The host page
// owns the UI tree and provides these services; the engine only calls them.
package host

import (
	"context"
	"time"

	"golang.org/x/net/html"
)

// Widget is a live widget instance bound to a control
type Widget interface {
	Value() string
	SetValue(value string) error
}

// WidgetRegistry looks up widget instances and runs their lifecycle hooks.
// Descriptors are the serialized init/destroy payloads sent by the server.
type WidgetRegistry interface {
	Lookup(controlID string) (Widget, bool)
	Init(ctx context.Context, root *html.Node, descriptor string) error
	Destroy(ctx context.Context, root *html.Node, descriptor string) error
}

// Focus tracks the focused control
type Focus interface {
	Focused() string
	SetFocus(controlID string) error
	RemoveFocus(controlID string) error
}

// ScriptRunner invokes server-requested scripts
type ScriptRunner interface {
	Run(ctx context.Context, name, targetID, observerID string, params []string) error
	Eval(ctx context.Context, code string) error
	Callback(ctx context.Context, name string) error
}

// Submission is what the navigator needs to submit the form
type Submission struct {
	ShowProgress bool
	Replace      string
	Target       string
	Action       string
}

// Navigator submits the form or loads a resource
type Navigator interface {
	Submit(ctx context.Context, s Submission) error
	Navigate(ctx context.Context, url, target string, showProgress bool) error
}

// MessageSink displays modal and modeless messages
type MessageSink interface {
	Show(level, message string) error
}

// HelpSink displays the help of a control
type HelpSink interface {
	ShowHelp(controlID string) error
}

// Poller schedules round trips to the server
type Poller interface {
	SchedulePoll(delay *time.Duration)
	SendServerEvents(data string) error
}

// Diagnostic is the user-visible form of an error
type Diagnostic struct {
	Kind      string
	Exception string
	File      string
	Line      int
	Col       int
	Message   string
}

// Surface shows dismissible diagnostics to the user
type Surface interface {
	Show(d Diagnostic)
}

// Viewport reports whether the display is constrained (small screen, zoom settling)
type Viewport interface {
	Constrained() bool
}

// Timer is a scheduled callback that can be cancelled
type Timer interface {
	Stop() bool
}

// Scheduler runs a callback after a delay on the host's event loop
type Scheduler interface {
	AfterFunc(d time.Duration, fn func()) Timer
}
