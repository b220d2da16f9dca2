// Package structure edits the shape of the UI tree: repeat iterations are
// deleted or appended, and subtrees are replaced with server markup.
//
// Repeats are rendered flat between two markers. Iterations are separated
// by delimiters, and a nested repeat sits inside an iteration with its own
// markers:
//
//	<span id="repeat-begin-r" class="xforms-repeat-begin-end"/>
//	<span class="xforms-repeat-delimiter"/>   iteration 1
//	...
//	<span class="xforms-repeat-delimiter"/>   iteration 2
//	...
//	<span id="repeat-end-r" class="xforms-repeat-begin-end"/>
package structure

import (
	"log"
	"strings"

	"golang.org/x/net/html"

	"github.com/orbeon/orbeon-forms-sub002/internal/dom"
	"github.com/orbeon/orbeon-forms-sub002/internal/host"
	"github.com/orbeon/orbeon-forms-sub002/internal/metrics"
	"github.com/orbeon/orbeon-forms-sub002/internal/session"
)

const (
	repeatBeginPrefix = "repeat-begin-"
	repeatEndPrefix   = "repeat-end-"

	markerClass    = "xforms-repeat-begin-end"
	delimiterClass = "xforms-repeat-delimiter"
)

// Options configures an Editor. Zero values are usable.
type Options struct {
	Widgets host.WidgetRegistry
	Focus   host.Focus
	Metrics *metrics.Collector
	Logger  *log.Logger
}

// Editor applies structural records to the tree of one form
type Editor struct {
	doc   *html.Node
	state *session.State
	opts  Options
}

// New creates an editor over the document of a form
func New(doc *html.Node, state *session.State, opts Options) *Editor {
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewCollector()
	}
	return &Editor{doc: doc, state: state, opts: opts}
}

func isMarker(n *html.Node, prefix string) bool {
	return dom.HasClass(n, markerClass) && strings.HasPrefix(dom.ID(n), prefix)
}

func isDelimiter(n *html.Node) bool {
	return dom.HasClass(n, delimiterClass)
}

// forgetValues drops the cached value of every control in a subtree, the
// root included
func (e *Editor) forgetValues(root *html.Node) {
	if !dom.IsElement(root) {
		return
	}
	dom.Walk(root, func(n *html.Node) bool {
		if dom.IsElement(n) && dom.HasClass(n, "xforms-control") {
			if id := dom.ID(n); id != "" {
				e.state.ForgetValue(id)
			}
		}
		return true
	})
}
