package control

import (
	"golang.org/x/net/html"

	"github.com/orbeon/orbeon-forms-sub002/internal/dom"
)

// Kind is the update strategy of a control, assigned once from its classes
type Kind string

const (
	KindInput       Kind = "input"
	KindSecret      Kind = "secret"
	KindTextarea    Kind = "textarea"
	KindBoolean     Kind = "boolean"      // input bound to a boolean, rendered as a checkbox
	KindSelectFull  Kind = "select-full"  // checkboxes
	KindSelect1Full Kind = "select1-full" // radio buttons
	KindSelectList  Kind = "select-list"  // multiple selection list
	KindSelect1List Kind = "select1-list" // drop-down or single selection list
	KindOutput      Kind = "output"
	KindUpload      Kind = "upload"
	KindTrigger     Kind = "trigger"
	KindRange       Kind = "range"
	KindComponent   Kind = "component"
	KindGroup       Kind = "group"
	KindDialog      Kind = "dialog"
	KindLHHA        Kind = "lhha" // label, hint, help or alert rendered outside its control
	KindUnknown     Kind = "unknown"
)

// Classify returns the kind of a control element
func Classify(el *html.Node) Kind {
	if el == nil || !dom.IsElement(el) {
		return KindUnknown
	}

	isControl := dom.HasClass(el, "xforms-control")
	switch {
	case dom.HasClass(el, "xforms-dialog"):
		return KindDialog
	case !isControl && dom.HasAnyClass(el, "xforms-label", "xforms-hint", "xforms-help", "xforms-alert"):
		return KindLHHA
	case dom.HasAnyClass(el, "xforms-trigger", "xforms-submit"):
		return KindTrigger
	case dom.HasClass(el, "xforms-upload"):
		return KindUpload
	case dom.HasClass(el, "xforms-output"):
		return KindOutput
	case dom.HasClass(el, "xforms-secret"):
		return KindSecret
	case dom.HasClass(el, "xforms-textarea"):
		return KindTextarea
	case dom.HasClass(el, "xforms-range"):
		return KindRange
	case dom.HasClass(el, "xforms-input"):
		if dom.HasClass(el, "xforms-type-boolean") {
			return KindBoolean
		}
		if dom.HasAnyClass(el, "xforms-input-appearance-minimal", "xforms-input-appearance-compact") {
			return KindSelect1List
		}
		return KindInput
	case dom.HasClass(el, "xforms-select-appearance-full"):
		return KindSelectFull
	case dom.HasClass(el, "xforms-select1-appearance-full"):
		return KindSelect1Full
	case dom.HasClass(el, "xforms-select"):
		return KindSelectList
	case dom.HasClass(el, "xforms-select1"):
		return KindSelect1List
	case dom.HasAnyClass(el, "xbl-component", "xforms-component"):
		return KindComponent
	case dom.HasAnyClass(el, "xforms-group", "xforms-group-begin-end", "xforms-switch", "xforms-case", "xforms-repeat"):
		return KindGroup
	}
	return KindUnknown
}

// HasValue returns true if controls of this kind carry a value
func (k Kind) HasValue() bool {
	switch k {
	case KindTrigger, KindUpload, KindGroup, KindDialog, KindUnknown:
		return false
	}
	return true
}

// IsSelection returns true for controls rendering an itemset
func (k Kind) IsSelection() bool {
	switch k {
	case KindSelectFull, KindSelect1Full, KindSelectList, KindSelect1List:
		return true
	}
	return false
}

// IsMultiple returns true if the value is a space-separated list of selected items
func (k Kind) IsMultiple() bool {
	return k == KindSelectFull || k == KindSelectList
}

// IsStatic returns true for controls rendered as static read-only text
func IsStatic(el *html.Node) bool {
	return dom.HasClass(el, "xforms-static")
}

// IsDisplay returns true if the value is only displayed, never edited, so the
// in-flight edit guard does not apply
func IsDisplay(el *html.Node, kind Kind) bool {
	return kind == KindOutput || kind == KindLHHA || IsStatic(el)
}
