package reconcile

import (
	"golang.org/x/net/html"

	"github.com/orbeon/orbeon-forms-sub002/internal/control"
	"github.com/orbeon/orbeon-forms-sub002/internal/dom"
	"github.com/orbeon/orbeon-forms-sub002/internal/normalize"
)

// ApplyValue writes a server value into a control unless that would discard
// an edit the user made since the value was last sent. The value is written
// when:
//   - forced, after an itemset rebuild or a widget type change;
//   - the widget differs from the new value and either nothing was cached
//     for the control or the widget still shows the cached value;
//   - presentation attributes (size, maxlength, ...) accompany the value of
//     an input or textarea.
//
// Outputs and static controls are always written. After a write, the cache
// holds the value read back from the widget, which may differ from what was
// sent. It returns whether the widget was written.
func (r *Reconciler) ApplyValue(el *html.Node, kind control.Kind, value string, forced, presentation bool) (bool, error) {
	id := dom.ID(el)

	if dom.HasClass(el, "xforms-output-appearance-xxforms-download") || control.IsDisplay(el, kind) {
		if err := control.SetValue(el, kind, value, r.opts.Widgets); err != nil {
			return false, err
		}
		r.opts.Metrics.ValueWritten()
		return true, nil
	}
	if !kind.HasValue() {
		return false, nil
	}

	current, ok := control.Value(el, kind, r.opts.Widgets)
	if !ok {
		return false, nil
	}

	changed := !r.equal(current, value)
	cached, hasCached := r.state.Value(id)

	textual := kind == control.KindInput || kind == control.KindSecret || kind == control.KindTextarea
	write := forced ||
		(changed && (!hasCached || r.equal(current, cached))) ||
		(textual && presentation)
	if !write {
		if changed {
			r.opts.Metrics.ValueKept()
			r.opts.Logger.Printf("control %s: keeping local edit over server value", id)
		}
		return false, nil
	}

	if err := control.SetValue(el, kind, value, r.opts.Widgets); err != nil {
		return false, err
	}
	if rendered, ok := control.Value(el, kind, r.opts.Widgets); ok {
		r.state.SetValue(id, rendered)
	} else {
		r.state.SetValue(id, value)
	}
	r.opts.Metrics.ValueWritten()
	return true, nil
}

func (r *Reconciler) equal(a, b string) bool {
	return normalize.Equal(a, b, r.opts.NormalizeMarkup)
}

// CaptureValue caches the current value of a control if nothing is cached
// yet, so a later server value is compared with what the user saw when the
// control got focus
func (r *Reconciler) CaptureValue(controlID string) {
	if _, cached := r.state.Value(controlID); cached {
		return
	}
	el := dom.ElementByID(r.doc, controlID)
	if el == nil {
		return
	}
	if value, ok := control.Value(el, control.Classify(el), r.opts.Widgets); ok {
		r.state.SetValue(controlID, value)
	}
}
