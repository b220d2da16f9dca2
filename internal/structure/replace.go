package structure

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/net/html"

	"github.com/orbeon/orbeon-forms-sub002/internal/control"
	"github.com/orbeon/orbeon-forms-sub002/internal/dom"
	"github.com/orbeon/orbeon-forms-sub002/internal/protocol"
	"github.com/orbeon/orbeon-forms-sub002/internal/report"
)

const (
	innerHTMLRecord = "inner-html"
	iterationSuffix = "~iteration"
)

// markerPrefixes are tried in order when no element carries the id
var markerPrefixes = []string{"group", "repeat", "xforms-case"}

// ReplaceSubtree replaces the content rendered for an id with server markup.
// Widgets in the old content are destroyed first and the widgets of the new
// content are initialized last. An id ending with "~iteration" appends a new
// iteration to a repeat instead.
//
// When the focused element is detached, focus moves to the element of the
// same id in the new content, if any.
func (e *Editor) ReplaceSubtree(ctx context.Context, d *protocol.InnerHTML) error {
	var errs []error
	if d.Destroy != "" && e.opts.Widgets != nil {
		if err := e.opts.Widgets.Destroy(ctx, e.doc, d.Destroy); err != nil {
			errs = append(errs, fmt.Errorf("destroy widgets of %s: %w", d.ID, err))
		}
	}

	var err error
	if strings.HasSuffix(control.IDNoSuffix(d.ID), iterationSuffix) {
		err = e.appendIteration(d)
	} else {
		err = e.replaceContent(d)
	}
	if err != nil {
		return errors.Join(append(errs, err)...)
	}

	if d.Init != "" && e.opts.Widgets != nil {
		if err := e.opts.Widgets.Init(ctx, e.doc, d.Init); err != nil {
			errs = append(errs, fmt.Errorf("init widgets of %s: %w", d.ID, err))
		}
	}
	if err := e.restoreFocus(); err != nil {
		errs = append(errs, err)
	}

	e.opts.Metrics.SubtreeReplaced()
	return errors.Join(errs...)
}

// appendIteration inserts a delimiter and the markup of a new iteration
// before the end marker of the repeat. The delimiter uses the tag of the end
// marker so it is valid wherever the markers are, table rows included.
func (e *Editor) appendIteration(d *protocol.InnerHTML) error {
	repeatID := strings.TrimSuffix(control.IDNoSuffix(d.ID), iterationSuffix)

	// The last index is the iteration being added; the others locate the
	// repeat inside its enclosing iterations
	var parentIndexes string
	if indexes := strings.Split(control.IDSuffix(d.ID), control.RepeatIndexSeparator); len(indexes) > 1 {
		parentIndexes = strings.Join(indexes[:len(indexes)-1], control.RepeatIndexSeparator)
	}
	suffixed := control.AppendRepeatSuffix(repeatID, parentIndexes)

	end := dom.ElementByID(e.doc, repeatEndPrefix+suffixed)
	if end == nil || end.Parent == nil {
		return &report.LookupError{Record: innerHTMLRecord, ID: suffixed, Err: report.ErrRepeatNotFound}
	}

	nodes, err := dom.ParseFragment(d.HTML, end.Parent)
	if err != nil {
		return fmt.Errorf("inner-html %s: %w", d.ID, err)
	}
	delimiter := dom.NewElement(end.Data, html.Attribute{Key: "class", Val: delimiterClass})
	dom.InsertBefore(end, delimiter)
	for _, n := range nodes {
		dom.InsertBefore(end, n)
	}
	return nil
}

// replaceContent replaces the children of the element with the id, or the
// content between the begin and end markers rendered for it
func (e *Editor) replaceContent(d *protocol.InnerHTML) error {
	if el := dom.ElementByID(e.doc, d.ID); el != nil {
		nodes, err := dom.ParseFragment(d.HTML, el)
		if err != nil {
			return fmt.Errorf("inner-html %s: %w", d.ID, err)
		}
		for c := el.FirstChild; c != nil; c = c.NextSibling {
			e.forgetValues(c)
		}
		dom.RemoveChildren(el)
		for _, n := range nodes {
			el.AppendChild(n)
		}
		return nil
	}

	for _, prefix := range markerPrefixes {
		begin := dom.ElementByID(e.doc, prefix+"-begin-"+d.ID)
		if begin == nil || begin.Parent == nil {
			continue
		}
		endID := prefix + "-end-" + d.ID
		nodes, err := dom.ParseFragment(d.HTML, begin.Parent)
		if err != nil {
			return fmt.Errorf("inner-html %s: %w", d.ID, err)
		}

		var end *html.Node
		for cursor := begin.NextSibling; cursor != nil; {
			if dom.IsElement(cursor) && dom.ID(cursor) == endID {
				end = cursor
				break
			}
			next := cursor.NextSibling
			e.forgetValues(cursor)
			dom.Detach(cursor)
			cursor = next
		}
		for _, n := range nodes {
			if end != nil {
				dom.InsertBefore(end, n)
			} else {
				begin.Parent.AppendChild(n)
			}
		}
		if end == nil {
			return &report.StructuralError{Record: innerHTMLRecord, ID: d.ID, Err: fmt.Errorf("no %s end marker", prefix)}
		}
		return nil
	}
	return report.NotFound(innerHTMLRecord, d.ID)
}

// restoreFocus moves focus to the element with the focused id when the
// focused element left the tree
func (e *Editor) restoreFocus() error {
	focused := e.state.FocusElement
	if focused == nil || dom.Contains(e.doc, focused) {
		return nil
	}
	id := e.state.FocusID
	el := dom.ElementByID(e.doc, id)
	if el == nil {
		e.state.ClearFocus()
		return nil
	}
	e.state.SetFocus(id, el)
	if e.opts.Focus == nil {
		return nil
	}
	if err := e.opts.Focus.SetFocus(id); err != nil {
		return fmt.Errorf("restore focus on %s: %w", id, err)
	}
	return nil
}
