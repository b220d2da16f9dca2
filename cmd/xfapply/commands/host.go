package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	xforms "github.com/orbeon/orbeon-forms-sub002"
)

// transcript stands in for the browser: it records what the engine asks
// the page to do
type transcript struct {
	lines []string
	focus string
}

func (t *transcript) add(format string, args ...any) error {
	t.lines = append(t.lines, fmt.Sprintf(format, args...))
	return nil
}

// take returns the recorded lines and forgets them
func (t *transcript) take() []string {
	lines := t.lines
	t.lines = nil
	return lines
}

func (t *transcript) Focused() string { return t.focus }

func (t *transcript) SetFocus(id string) error {
	t.focus = id
	return t.add("focus %s", id)
}

func (t *transcript) RemoveFocus(id string) error {
	if t.focus == id {
		t.focus = ""
	}
	return t.add("blur %s", id)
}

func (t *transcript) Run(_ context.Context, name, target, observer string, params []string) error {
	return t.add("script %s target=%s observer=%s params=[%s]", name, target, observer, strings.Join(params, ", "))
}

func (t *transcript) Eval(_ context.Context, code string) error {
	return t.add("eval %s", code)
}

func (t *transcript) Callback(_ context.Context, name string) error {
	return t.add("callback %s", name)
}

func (t *transcript) Submit(_ context.Context, s xforms.Submission) error {
	return t.add("submit action=%s replace=%s target=%s", s.Action, s.Replace, s.Target)
}

func (t *transcript) Navigate(_ context.Context, url, target string, _ bool) error {
	return t.add("navigate %s target=%s", url, target)
}

func (t *transcript) Show(level, message string) error {
	return t.add("message %s: %s", level, message)
}

func (t *transcript) ShowHelp(id string) error {
	return t.add("help %s", id)
}

func (t *transcript) SchedulePoll(delay *time.Duration) {
	if delay == nil {
		t.add("poll")
		return
	}
	t.add("poll in %s", delay)
}

func (t *transcript) SendServerEvents(data string) error {
	return t.add("server-events %s", data)
}

// viewport answers the constrained-viewport question with a fixed value
type viewport bool

func (v viewport) Constrained() bool { return bool(v) }
