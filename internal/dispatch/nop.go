package dispatch

import (
	"context"
	"time"

	"github.com/orbeon/orbeon-forms-sub002/internal/host"
)

// nop stands in for the collaborators a host does not provide
type nop struct{}

var (
	_ host.Focus        = nop{}
	_ host.ScriptRunner = nop{}
	_ host.Navigator    = nop{}
	_ host.MessageSink  = nop{}
	_ host.HelpSink     = nop{}
	_ host.Poller       = nop{}
)

func (nop) Focused() string           { return "" }
func (nop) SetFocus(string) error     { return nil }
func (nop) RemoveFocus(string) error  { return nil }
func (nop) Show(string, string) error { return nil }
func (nop) ShowHelp(string) error     { return nil }

func (nop) Run(context.Context, string, string, string, []string) error { return nil }
func (nop) Eval(context.Context, string) error                          { return nil }
func (nop) Callback(context.Context, string) error                      { return nil }

func (nop) Submit(context.Context, host.Submission) error        { return nil }
func (nop) Navigate(context.Context, string, string, bool) error { return nil }
func (nop) SchedulePoll(*time.Duration)                          {}
func (nop) SendServerEvents(string) error                        { return nil }
