package control

import (
	"fmt"
	"slices"
	"strings"

	"golang.org/x/net/html"

	"github.com/orbeon/orbeon-forms-sub002/internal/dom"
	"github.com/orbeon/orbeon-forms-sub002/internal/host"
)

// Value returns the value the control's widget currently renders. ok is false
// when the control carries no readable value.
func Value(el *html.Node, kind Kind, widgets host.WidgetRegistry) (value string, ok bool) {
	if IsStatic(el) && kind != KindLHHA {
		return fieldValue(el)
	}

	switch kind {
	case KindInput, KindSecret:
		inputs := inputsOf(el)
		if len(inputs) == 0 {
			return "", false
		}
		if dom.HasClass(el, "xforms-type-dateTime") && len(inputs) > 1 {
			date, tm := dom.AttrOr(inputs[0], "value", ""), dom.AttrOr(inputs[1], "value", "")
			if date == "" && tm == "" {
				return "", true
			}
			return date + "T" + tm, true
		}
		return dom.AttrOr(inputs[0], "value", ""), true

	case KindBoolean, KindSelectFull, KindSelect1Full:
		var checked []string
		for _, input := range inputsOf(el) {
			if dom.HasAttr(input, "checked") {
				checked = append(checked, dom.AttrOr(input, "value", ""))
			}
		}
		if len(checked) == 0 && kind == KindBoolean {
			return "false", true
		}
		return strings.Join(checked, " "), true

	case KindSelectList, KindSelect1List:
		sel := dom.ByTag(el, "select")
		if sel == nil {
			return "", false
		}
		var selected []string
		for _, option := range dom.AllByTag(sel, "option") {
			if dom.HasAttr(option, "selected") {
				selected = append(selected, optionValue(option))
			}
		}
		return strings.Join(selected, " "), true

	case KindTextarea:
		if textarea := formElement(el, "textarea"); textarea != nil {
			return dom.TextContent(textarea), true
		}
		return "", false

	case KindOutput:
		return fieldValue(el)

	case KindLHHA:
		if dom.HasClass(el, "xforms-mediatype-text-html") {
			return dom.InnerHTML(el), true
		}
		return dom.TextContent(el), true

	case KindRange, KindComponent:
		if widgets == nil {
			return "", false
		}
		if w, found := widgets.Lookup(dom.ID(el)); found {
			return w.Value(), true
		}
		return "", false

	case KindTrigger, KindUpload, KindGroup, KindDialog, KindUnknown:
		return "", false
	}
	return "", false
}

// SetValue writes a value into the control's widget
func SetValue(el *html.Node, kind Kind, value string, widgets host.WidgetRegistry) error {
	if dom.HasClass(el, "xforms-output-appearance-xxforms-download") {
		anchor := dom.ByTag(el, "a")
		if anchor == nil {
			return fmt.Errorf("download output %q has no anchor", dom.ID(el))
		}
		if value == "" {
			dom.SetAttr(anchor, "href", "#")
			dom.AddClass(anchor, "xforms-readonly")
		} else {
			dom.SetAttr(anchor, "href", value)
			dom.RemoveClass(anchor, "xforms-readonly")
		}
		return nil
	}

	if IsStatic(el) && kind != KindLHHA {
		switch kind {
		case KindTextarea:
			if pre := dom.ByTag(el, "pre"); pre != nil {
				dom.SetText(pre, value)
				return nil
			}
		case KindSelect1Full:
			for _, item := range dom.FindAll(el, func(n *html.Node) bool {
				return dom.HasAnyClass(n, "xforms-selected", "xforms-deselected")
			}) {
				selected := dom.TextContent(item) == value
				dom.ToggleClass(item, "xforms-selected", selected)
				dom.ToggleClass(item, "xforms-deselected", !selected)
			}
			return nil
		}
		return setFieldValue(el, value)
	}

	switch kind {
	case KindInput, KindSecret:
		inputs := inputsOf(el)
		if len(inputs) == 0 {
			return fmt.Errorf("control %q has no input", dom.ID(el))
		}
		if dom.HasClass(el, "xforms-type-dateTime") && len(inputs) > 1 {
			date, tm, _ := strings.Cut(value, "T")
			dom.SetAttr(inputs[0], "value", date)
			dom.SetAttr(inputs[1], "value", tm)
			return nil
		}
		dom.SetAttr(inputs[0], "value", value)
		return nil

	case KindBoolean, KindSelectFull, KindSelect1Full:
		selected := []string{value}
		if kind == KindSelectFull {
			selected = strings.Split(value, " ")
		}
		for _, input := range inputsOf(el) {
			on := slices.Contains(selected, dom.AttrOr(input, "value", ""))
			dom.ToggleAttr(input, "checked", "checked", on)
		}
		SetItemClasses(el)
		return nil

	case KindSelectList, KindSelect1List:
		sel := dom.ByTag(el, "select")
		if sel == nil {
			return fmt.Errorf("control %q has no select", dom.ID(el))
		}
		selected := []string{value}
		if kind == KindSelectList {
			selected = strings.Split(value, " ")
		}
		for _, option := range dom.AllByTag(sel, "option") {
			dom.ToggleAttr(option, "selected", "selected", slices.Contains(selected, optionValue(option)))
		}
		return nil

	case KindTextarea:
		textarea := formElement(el, "textarea")
		if textarea == nil {
			return fmt.Errorf("control %q has no textarea", dom.ID(el))
		}
		dom.SetText(textarea, value)
		return nil

	case KindOutput:
		return setFieldValue(el, value)

	case KindLHHA:
		if dom.HasClass(el, "xforms-mediatype-text-html") {
			return dom.SetInnerHTML(el, value)
		}
		dom.SetText(el, value)
		return nil

	case KindRange, KindComponent:
		if widgets == nil {
			return fmt.Errorf("no widget registry for %q", dom.ID(el))
		}
		w, found := widgets.Lookup(dom.ID(el))
		if !found {
			return fmt.Errorf("no widget instance for %q", dom.ID(el))
		}
		return w.SetValue(value)

	case KindTrigger, KindUpload, KindGroup, KindDialog, KindUnknown:
		return nil
	}
	return nil
}

// SetItemClasses marks each checkbox/radio item as selected or deselected
func SetItemClasses(el *html.Node) {
	for _, input := range inputsOf(el) {
		item := input.Parent
		if dom.IsTag(item, "label") && item.Parent != nil && item.Parent != el && !dom.HasClass(item.Parent, "xforms-items") {
			item = item.Parent
		}
		if item == nil || item == el {
			continue
		}
		checked := dom.HasAttr(input, "checked")
		dom.ToggleClass(item, "xforms-selected", checked)
		dom.ToggleClass(item, "xforms-deselected", !checked)
	}
}

// fieldValue reads outputs and static read-only controls
func fieldValue(el *html.Node) (string, bool) {
	field := outputField(el)
	if field == nil {
		return "", false
	}
	switch {
	case dom.HasClass(el, "xforms-mediatype-image"):
		return dom.AttrOr(field, "src", ""), true
	case dom.HasClass(el, "xforms-output-appearance-xxforms-download"):
		return "", false
	case dom.HasClass(el, "xforms-mediatype-text-html"):
		return dom.InnerHTML(field), true
	}
	return dom.TextContent(field), true
}

func setFieldValue(el *html.Node, value string) error {
	field := outputField(el)
	if field == nil {
		return fmt.Errorf("control %q has no output field", dom.ID(el))
	}
	switch {
	case dom.HasClass(el, "xforms-mediatype-image"):
		dom.SetAttr(field, "src", value)
	case dom.HasClass(el, "xforms-mediatype-text-html"):
		return dom.SetInnerHTML(field, value)
	default:
		dom.SetText(field, value)
	}
	return nil
}

func outputField(el *html.Node) *html.Node {
	for _, child := range dom.ChildElements(el) {
		if dom.HasAnyClass(child, "xforms-output-output", "xforms-field") {
			return child
		}
	}
	return nil
}

// inputsOf returns the input elements of a control, the control included
func inputsOf(el *html.Node) []*html.Node {
	if dom.IsTag(el, "input") {
		return []*html.Node{el}
	}
	return dom.AllByTag(el, "input")
}

// formElement returns el itself if it has the tag, otherwise its first descendant with it
func formElement(el *html.Node, tag string) *html.Node {
	if dom.IsTag(el, tag) {
		return el
	}
	return dom.ByTag(el, tag)
}

// optionValue follows the HTML rule: the value attribute, else the option text
func optionValue(option *html.Node) string {
	if v, ok := dom.Attr(option, "value"); ok {
		return v
	}
	return dom.TextContent(option)
}
