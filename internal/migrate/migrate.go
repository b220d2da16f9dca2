// Package migrate changes the widget of a control in place when the server
// reports a new datatype, or when the control becomes static read-only.
package migrate

import (
	"regexp"
	"slices"
	"strconv"

	"golang.org/x/net/html"

	"github.com/orbeon/orbeon-forms-sub002/internal/control"
	"github.com/orbeon/orbeon-forms-sub002/internal/dom"
)

// WidgetType is the widget an input control renders for its datatype
type WidgetType string

const (
	WidgetString   WidgetType = "string"
	WidgetDate     WidgetType = "date"
	WidgetTime     WidgetType = "time"
	WidgetDateTime WidgetType = "dateTime"
	WidgetBoolean  WidgetType = "boolean"
)

const (
	xsNamespace = "http://www.w3.org/2001/XMLSchema"
	xfNamespace = "http://www.w3.org/2002/xforms"

	typeClassPrefix = "xforms-type-"
)

// widgetTypes lists the types with a dedicated widget, matched in order
var widgetTypes = []WidgetType{WidgetDate, WidgetTime, WidgetDateTime, WidgetBoolean}

var qualifiedName = regexp.MustCompile(`^\{(.*)\}(.*)$`)

// Class returns the class marking a control that renders this widget
func (w WidgetType) Class() string {
	return typeClassPrefix + string(w)
}

// WidgetFor returns the widget used for a schema type in "{namespace}local" form
func WidgetFor(schemaType string) WidgetType {
	for _, w := range widgetTypes {
		if schemaType == "{"+xsNamespace+"}"+string(w) || schemaType == "{"+xfNamespace+"}"+string(w) {
			return w
		}
	}
	return WidgetString
}

// CurrentWidget returns the widget a control renders now, judging by its classes
func CurrentWidget(el *html.Node) WidgetType {
	for _, w := range widgetTypes {
		if dom.HasClass(el, w.Class()) {
			return w
		}
	}
	return WidgetString
}

// TypeClass returns the annotation class for a schema type: xforms-type-<local>
// for built-in types, xforms-type-custom-<local> otherwise. It returns "" when
// the type is not a qualified name.
func TypeClass(schemaType string) string {
	m := qualifiedName.FindStringSubmatch(schemaType)
	if m == nil {
		return ""
	}
	if m[1] == xsNamespace || m[1] == xfNamespace {
		return typeClassPrefix + m[2]
	}
	return typeClassPrefix + "custom-" + m[2]
}

// MigrateType applies a new schema type to a control. Input controls whose
// widget changes get their widget rebuilt and recreated is true: the value
// of the control must then be written regardless of local edits. The type
// annotation class is updated on every control.
func MigrateType(doc, el *html.Node, schemaType string) (recreated bool) {
	if dom.HasClass(el, "xforms-input") {
		existing, wanted := CurrentWidget(el), WidgetFor(schemaType)
		if existing != wanted {
			rebuildInput(doc, el, existing, wanted)
			recreated = true
		}
	}

	dom.RemoveClassesWithPrefix(el, typeClassPrefix)
	dom.AddClass(el, TypeClass(schemaType))
	if recreated {
		// The widget class can differ from the annotation for derived types
		dom.AddClass(el, WidgetFor(schemaType).Class())
	}
	return recreated
}

func rebuildInput(doc, el *html.Node, existing, wanted WidgetType) {
	controlID := dom.ID(el)

	for _, w := range append(slices.Clone(widgetTypes), WidgetString) {
		dom.RemoveClass(el, w.Class())
	}
	if existing == WidgetBoolean {
		// Added when the boolean widget was built
		dom.RemoveClass(el, "xforms-input-appearance-minimal")
		dom.RemoveClass(el, "xforms-incremental")
	}
	minimal := dom.HasClass(el, "xforms-input-appearance-minimal")

	// Content goes where the removed content was: after the last LHHA that
	// preceded it, or first when it came before any LHHA
	lastLHHA, contentFirst := removeContent(el)

	label := control.FindLHHA(doc, el, control.Label)
	if label == el {
		label = nil
	}
	pointLabel := func(id string) {
		if label != nil && dom.IsTag(label, "label") {
			dom.SetAttr(label, "for", id)
		}
	}

	var nodes []*html.Node
	switch wanted {
	case WidgetString, WidgetTime:
		input := newInput(controlID, wanted.Class(), 1)
		nodes = append(nodes, input)
		pointLabel(dom.ID(input))
	case WidgetDate:
		if minimal {
			nodes = append(nodes, dom.NewElement("img",
				html.Attribute{Key: "class", Val: "xforms-input-input xforms-type-date xforms-input-appearance-minimal"}))
			pointLabel(controlID)
		} else {
			input := newInput(controlID, wanted.Class(), 1)
			nodes = append(nodes, input)
			pointLabel(dom.ID(input))
		}
	case WidgetDateTime:
		date := newInput(controlID, WidgetDate.Class(), 1)
		nodes = append(nodes, date, newInput(controlID, WidgetTime.Class(), 2))
		pointLabel(dom.ID(date))
	case WidgetBoolean:
		item := booleanItem(doc, controlID)
		nodes = append(nodes, item)
		dom.AddClass(el, "xforms-input-appearance-minimal")
		dom.AddClass(el, "xforms-incremental")
		pointLabel(control.ItemID(controlID, 0))
	}
	dom.AddClass(el, wanted.Class())

	insertContent(el, nodes, lastLHHA, contentFirst)
	carryState(el, nodes, wanted)
}

// removeContent detaches the non-LHHA children of el. It returns the LHHA
// child the content followed and whether the content came before any LHHA.
func removeContent(el *html.Node) (lastLHHA *html.Node, contentFirst bool) {
	var previous *html.Node
	removed := false
	for _, child := range dom.ChildElements(el) {
		if control.IsLHHAElement(child) {
			previous = child
			continue
		}
		if !removed {
			lastLHHA, contentFirst = previous, previous == nil
			removed = true
		}
		dom.Detach(child)
	}
	if !removed {
		lastLHHA = previous
	}
	return lastLHHA, contentFirst
}

func insertContent(el *html.Node, nodes []*html.Node, lastLHHA *html.Node, contentFirst bool) {
	first := dom.FirstChildElement(el)
	switch {
	case first == nil || (lastLHHA == nil && !contentFirst):
		for _, n := range nodes {
			el.AppendChild(n)
		}
	case contentFirst:
		for _, n := range nodes {
			dom.InsertBefore(first, n)
		}
	default:
		ref := lastLHHA
		for _, n := range nodes {
			dom.InsertAfter(ref, n)
			ref = n
		}
	}
}

func newInput(controlID, typeClass string, index int) *html.Node {
	id := control.AppendToID(controlID, "$xforms-input-"+strconv.Itoa(index))
	return dom.NewElement("input",
		html.Attribute{Key: "type", Val: "text"},
		html.Attribute{Key: "class", Val: "xforms-input-input " + typeClass},
		html.Attribute{Key: "id", Val: id},
		html.Attribute{Key: "name", Val: id},
	)
}

// booleanItem builds the checkbox of a boolean input from the checkbox
// template, keeping the input and dropping the item's own label
func booleanItem(doc *html.Node, controlID string) *html.Node {
	item := control.ItemTemplate(doc, true)
	input := dom.ByTag(item, "input")
	if label := dom.ByTag(item, "label"); label != nil && input != nil {
		dom.Detach(input)
		dom.Replace(label, input)
	}
	for _, extra := range dom.FindAll(item, func(n *html.Node) bool {
		return dom.HasAnyClass(n, "xforms-help", "xforms-hint")
	}) {
		dom.Detach(extra)
	}
	if input != nil {
		dom.RemoveAttr(input, "disabled")
	}

	dom.ReplaceInText(item, control.PlaceholderValue, "true")
	dom.ReplaceInText(item, control.PlaceholderSelectID, control.ItemID(controlID, 0))
	dom.ReplaceInText(item, control.PlaceholderName, controlID)
	dom.ReplaceInText(item, control.PlaceholderLabel, "")
	return item
}

// carryState copies the read-only and required state of the control onto
// the form elements of its new widget
func carryState(el *html.Node, nodes []*html.Node, wanted WidgetType) {
	readonly := dom.HasClass(el, "xforms-readonly")
	required := dom.HasClass(el, "xforms-required")

	var inputs []*html.Node
	for _, n := range nodes {
		if dom.IsTag(n, "input") {
			inputs = append(inputs, n)
		}
		inputs = append(inputs, dom.AllByTag(n, "input")...)
	}
	for i, input := range inputs {
		if wanted == WidgetBoolean {
			dom.ToggleAttr(input, "disabled", "disabled", readonly)
		} else {
			dom.ToggleAttr(input, "readonly", "readonly", readonly)
		}
		if i == 0 && required {
			dom.SetAttr(input, "aria-required", "true")
		}
	}
}

// MigrateStatic turns a control into its static read-only rendition and
// returns the element now standing for the control. A leaf control is
// replaced by a span with the same id and classes, and its external alert
// and hint are removed. Other controls only gain the xforms-static class.
func MigrateStatic(doc, el *html.Node) *html.Node {
	if control.IsStatic(el) {
		return el
	}
	if !dom.HasClass(el, "xforms-control") || el.Parent == nil {
		dom.AddClass(el, "xforms-static")
		return el
	}

	span := dom.NewElement("span",
		html.Attribute{Key: "id", Val: dom.ID(el)},
		html.Attribute{Key: "class", Val: dom.AttrOr(el, "class", "")},
	)
	dom.AddClass(span, "xforms-static")
	span.AppendChild(dom.NewElement("span", html.Attribute{Key: "class", Val: "xforms-field"}))
	dom.Replace(el, span)

	for _, which := range []control.LHHA{control.Alert, control.Hint} {
		if lhha := control.FindLHHA(doc, span, which); lhha != nil && lhha != span {
			dom.Detach(lhha)
		}
	}
	return span
}
