package reconcile

import (
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/orbeon/orbeon-forms-sub002/internal/control"
	"github.com/orbeon/orbeon-forms-sub002/internal/dom"
	"github.com/orbeon/orbeon-forms-sub002/internal/protocol"
)

// setRelevant toggles xforms-disabled on a control and its LHHA. Help and
// hint stay hidden while their message is empty. Groups rendered between
// markers toggle every element up to the end marker.
func (r *Reconciler) setRelevant(el *html.Node, relevant bool) {
	if dom.HasClass(el, "xforms-group-begin-end") {
		id := strings.TrimPrefix(dom.ID(el), "group-begin-")
		for _, n := range betweenMarkers(el, "group-end-"+id) {
			dom.ToggleClass(n, "xforms-disabled", !relevant)
		}
		return
	}

	dom.ToggleClass(el, "xforms-disabled", !relevant)
	for _, which := range []control.LHHA{control.Label, control.Hint, control.Help, control.Alert} {
		lhha := control.FindLHHA(r.doc, el, which)
		if lhha == nil || lhha == el {
			continue
		}
		on := relevant
		if relevant && (which == control.Help || which == control.Hint) {
			on = strings.TrimSpace(dom.TextContent(lhha)) != ""
		}
		dom.ToggleClass(lhha, "xforms-disabled", !on)
	}
}

// betweenMarkers returns begin and the element siblings following it, up
// to the end marker excluded
func betweenMarkers(begin *html.Node, endID string) []*html.Node {
	var nodes []*html.Node
	for cur := begin; cur != nil; cur = cur.NextSibling {
		if !dom.IsElement(cur) {
			continue
		}
		if dom.ID(cur) == endID {
			break
		}
		nodes = append(nodes, cur)
	}
	return nodes
}

// setReadonly updates the xforms-readonly class and the readonly or
// disabled attribute of the form elements of the control
func setReadonly(el *html.Node, kind control.Kind, readonly bool) {
	dom.ToggleClass(el, "xforms-readonly", readonly)

	formElements := func(tag string) []*html.Node {
		if dom.IsTag(el, tag) {
			return []*html.Node{el}
		}
		return dom.AllByTag(el, tag)
	}

	switch kind {
	case control.KindInput, control.KindSecret:
		for _, input := range formElements("input") {
			dom.ToggleAttr(input, "readonly", "readonly", readonly)
		}
	case control.KindBoolean, control.KindSelectFull, control.KindSelect1Full:
		for _, input := range formElements("input") {
			dom.ToggleAttr(input, "disabled", "disabled", readonly)
		}
	case control.KindSelectList, control.KindSelect1List:
		if sel := dom.ByTag(el, "select"); sel != nil {
			dom.ToggleAttr(sel, "disabled", "disabled", readonly)
		}
	case control.KindTextarea:
		if textarea := dom.ByTag(el, "textarea"); textarea != nil {
			dom.ToggleAttr(textarea, "readonly", "readonly", readonly)
		}
	case control.KindUpload:
		if sel := dom.Find(el, func(n *html.Node) bool { return dom.HasClass(n, "xforms-upload-select") }); sel != nil {
			dom.ToggleAttr(sel, "disabled", "disabled", readonly)
		}
	case control.KindTrigger:
		if button := dom.ByTag(el, "button"); button != nil {
			dom.ToggleAttr(button, "disabled", "disabled", readonly)
		}
	case control.KindOutput, control.KindRange, control.KindComponent, control.KindGroup,
		control.KindDialog, control.KindLHHA, control.KindUnknown:
		// class only
	}
}

// applyClassDelta applies "+added -removed plain" to the class list; the
// plus sign is optional
func applyClassDelta(el *html.Node, delta string) {
	for _, c := range strings.Fields(delta) {
		switch c[0] {
		case '-':
			dom.RemoveClass(el, c[1:])
		case '+':
			dom.AddClass(el, c[1:])
		default:
			dom.AddClass(el, c)
		}
	}
}

// hasAriaInput lists the controls whose first form element carries aria state
func hasAriaInput(el *html.Node) bool {
	if dom.HasAnyClass(el, "xforms-input", "xforms-textarea", "xforms-secret") {
		return true
	}
	return dom.HasClass(el, "xforms-select1") &&
		dom.HasAnyClass(el, "xforms-select1-appearance-compact", "xforms-select1-appearance-minimal")
}

func firstFormElement(el *html.Node) *html.Node {
	return dom.ByTag(el, "input", "textarea", "select", "button")
}

// applyLeafAttributes handles the attributes specific to leaf controls:
// aria state, upload metadata, image alt, input and textarea presentation
func (r *Reconciler) applyLeafAttributes(el *html.Node, kind control.Kind, d *protocol.ControlDetail) {
	if hasAriaInput(el) {
		if input := firstFormElement(el); input != nil {
			if d.Required != nil {
				dom.ToggleAttr(input, "aria-required", "true", *d.Required)
			}
			visited := dom.HasClass(el, "xforms-visited")
			if d.Visited != nil {
				visited = *d.Visited
			}
			invalid := dom.HasClass(el, "xforms-invalid")
			if d.Level != nil {
				invalid = *d.Level == "error"
			}
			dom.ToggleAttr(input, "aria-invalid", "true", invalid && visited)
		}
	}

	switch {
	case kind == control.KindUpload:
		applyUpload(el, d)
	case kind == control.KindOutput || control.IsStatic(el):
		if d.Alt != nil && dom.HasClass(el, "xforms-mediatype-image") {
			if img := dom.ByTag(el, "img"); img != nil {
				dom.SetAttr(img, "alt", *d.Alt)
			}
		}
	case kind == control.KindInput || kind == control.KindSecret:
		if input := dom.ByTag(el, "input"); input != nil {
			setOrRemove(input, "size", d.Size)
			setOrRemove(input, "maxlength", d.Maxlength)
			setOrRemove(input, "autocomplete", d.Autocomplete)
		}
	case kind == control.KindTextarea:
		if textarea := dom.ByTag(el, "textarea"); textarea != nil {
			setOrRemove(textarea, "maxlength", d.Maxlength)
			setOrRemove(textarea, "cols", d.Cols)
			setOrRemove(textarea, "rows", d.Rows)
		}
	}
}

// setOrRemove sets an attribute; an empty value removes it
func setOrRemove(n *html.Node, key string, val *string) {
	if val == nil {
		return
	}
	dom.ToggleAttr(n, key, *val, *val != "")
}

func applyUpload(el *html.Node, d *protocol.ControlDetail) {
	byClass := func(class string) *html.Node {
		return dom.Find(el, func(n *html.Node) bool { return dom.HasClass(n, class) })
	}

	if d.State != nil && *d.State != "" {
		dom.RemoveClassesWithPrefix(el, "xforms-upload-state-")
		dom.AddClass(el, "xforms-upload-state-"+*d.State)
	}
	for class, val := range map[string]*string{
		"xforms-upload-filename":  d.Filename,
		"xforms-upload-mediatype": d.Mediatype,
		"xforms-upload-size":      d.UploadSize,
	} {
		if span := byClass(class); span != nil && val != nil {
			dom.SetText(span, *val)
		}
	}
	if d.Accept != nil {
		if sel := byClass("xforms-upload-select"); sel != nil {
			// Sent space-separated, the attribute is comma-separated
			dom.SetAttr(sel, "accept", strings.Join(strings.Fields(*d.Accept), ","))
		}
	}
}

// setUploadProgress records the transfer state on the control and sizes its
// progress bar when the expected length is known
func setUploadProgress(el *html.Node, state string, received, expected *int64) {
	dom.SetAttr(el, "data-progress-state", state)
	if received != nil {
		dom.SetAttr(el, "data-progress-received", strconv.FormatInt(*received, 10))
	}
	if expected != nil {
		dom.SetAttr(el, "data-progress-expected", strconv.FormatInt(*expected, 10))
	}
	bar := dom.Find(el, func(n *html.Node) bool { return dom.HasClass(n, "xforms-upload-progress-bar") })
	if bar == nil || received == nil || expected == nil || *expected <= 0 {
		return
	}
	percent := *received * 100 / *expected
	dom.SetAttr(bar, "style", "width: "+strconv.FormatInt(percent, 10)+"%")
}

// applyMessages updates the label, hint, help and alert of a control. A
// title is used as the hint when no hint is sent.
func (r *Reconciler) applyMessages(el *html.Node, kind control.Kind, d *protocol.ControlDetail) error {
	if d.Label != nil {
		if err := r.setLabel(el, kind, *d.Label); err != nil {
			return err
		}
	}
	hint := d.Hint
	if hint == nil {
		hint = d.Title
	}
	if hint != nil {
		if err := r.setHint(el, kind, *hint); err != nil {
			return err
		}
	}
	if d.Help != nil {
		// Help content is escaped markup
		if err := r.setMessage(el, control.Help, dom.Escape(*d.Help)); err != nil {
			return err
		}
	}
	if d.Alert != nil {
		if err := r.setMessage(el, control.Alert, *d.Alert); err != nil {
			return err
		}
	}
	return nil
}

func (r *Reconciler) setLabel(el *html.Node, kind control.Kind, message string) error {
	switch {
	case kind == control.KindTrigger:
		if button := dom.ByTag(el, "button", "a"); button != nil {
			return dom.SetInnerHTML(button, message)
		}
		return r.setMessage(el, control.Control, message)
	case kind == control.KindDialog, dom.HasClass(el, "xforms-group-appearance-xxforms-fieldset"):
		if first := dom.FirstChildElement(el); first != nil {
			return dom.SetInnerHTML(first, message)
		}
		return nil
	case dom.HasClass(el, "xforms-output-appearance-xxforms-download"):
		if anchor := dom.FirstChildElement(el); anchor != nil {
			return dom.SetInnerHTML(anchor, message)
		}
		return nil
	}
	return r.setMessage(el, control.Label, message)
}

func (r *Reconciler) setHint(el *html.Node, kind control.Kind, message string) error {
	if kind == control.KindTrigger {
		if button := dom.ByTag(el, "button", "a"); button != nil {
			dom.ToggleAttr(button, "title", message, message != "")
		}
		return nil
	}
	return r.setMessage(el, control.Hint, message)
}

// setMessage replaces the markup of one LHHA element. An empty help is hidden.
func (r *Reconciler) setMessage(el *html.Node, which control.LHHA, message string) error {
	lhha := control.FindLHHA(r.doc, el, which)
	if lhha == nil {
		return nil
	}
	if err := dom.SetInnerHTML(lhha, message); err != nil {
		return err
	}
	if which == control.Help {
		dom.ToggleClass(lhha, "xforms-disabled", strings.TrimSpace(message) == "")
	}
	return nil
}

// setConstraintLevel marks the control and its alert with the validation
// level: "error", "warning", "info", or "" when valid
func (r *Reconciler) setConstraintLevel(el *html.Node, level string) {
	levelClasses := func(n *html.Node) {
		dom.ToggleClass(n, "xforms-invalid", level == "error")
		dom.ToggleClass(n, "xforms-warning", level == "warning")
		dom.ToggleClass(n, "xforms-info", level == "info")
	}
	levelClasses(el)

	if alert := control.FindLHHA(r.doc, el, control.Alert); alert != nil && alert != el {
		dom.ToggleClass(alert, "xforms-active", level != "")
		if dom.HasAttr(alert, "id") {
			levelClasses(alert)
		}
	}
}

func (r *Reconciler) setVisited(el *html.Node, visited bool) {
	dom.ToggleClass(el, "xforms-visited", visited)
	if alert := control.FindLHHA(r.doc, el, control.Alert); alert != nil && alert != el && dom.HasAttr(alert, "id") {
		dom.ToggleClass(alert, "xforms-visited", visited)
	}
}
