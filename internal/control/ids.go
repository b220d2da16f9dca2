package control

import (
	"strings"

	"golang.org/x/net/html"

	"github.com/orbeon/orbeon-forms-sub002/internal/dom"
)

const (
	RepeatSeparator      = "⊙" // separates a control id from its iteration indexes
	RepeatIndexSeparator = "-" // separates the indexes of nested iterations
	ComponentSeparator   = "≡"
	LHHASeparator        = ComponentSeparator + ComponentSeparator
)

// LHHA is one of the label, help, hint or alert elements of a control
type LHHA string

const (
	Label   LHHA = "label"
	Hint    LHHA = "hint"
	Help    LHHA = "help"
	Alert   LHHA = "alert"
	Control LHHA = "control"
)

var lhhaSuffix = map[LHHA]string{
	Label:   LHHASeparator + "l",
	Hint:    LHHASeparator + "t",
	Help:    LHHASeparator + "p",
	Alert:   LHHASeparator + "a",
	Control: LHHASeparator + "c",
}

// Suffix returns the id ending used by the LHHA element
func (l LHHA) Suffix() string {
	return lhhaSuffix[l]
}

// IDNoSuffix returns the id without its iteration indexes ("foo⊙1-2" -> "foo")
func IDNoSuffix(id string) string {
	if i := strings.Index(id, RepeatSeparator); i != -1 {
		return id[:i]
	}
	return id
}

// IDSuffix returns the iteration indexes of an id ("foo⊙1-2" -> "1-2")
func IDSuffix(id string) string {
	if i := strings.Index(id, RepeatSeparator); i != -1 {
		return id[i+len(RepeatSeparator):]
	}
	return ""
}

// IDSuffixWithSeparator returns the iteration indexes including the separator
func IDSuffixWithSeparator(id string) string {
	if i := strings.Index(id, RepeatSeparator); i != -1 {
		return id[i:]
	}
	return ""
}

// AppendToID inserts ending before the iteration indexes ("foo⊙1", "bar" -> "foobar⊙1")
func AppendToID(id, ending string) string {
	return IDNoSuffix(id) + ending + IDSuffixWithSeparator(id)
}

// AppendRepeatSuffix adds iteration indexes to an id
func AppendRepeatSuffix(id, suffix string) string {
	suffix = strings.TrimPrefix(suffix, RepeatIndexSeparator)
	if suffix == "" {
		return id
	}
	if strings.Contains(id, RepeatSeparator) {
		return id + RepeatIndexSeparator + suffix
	}
	return id + RepeatSeparator + suffix
}

// FindLHHA returns the element rendering one LHHA of a control, or nil. The
// element is looked up by id first, then among the direct children without an
// LHHA id, then the control itself if it is that LHHA.
func FindLHHA(doc, el *html.Node, which LHHA) *html.Node {
	if el == nil {
		return nil
	}
	if id := dom.ID(el); id != "" && doc != nil {
		if byID := dom.ElementByID(doc, AppendToID(id, which.Suffix())); byID != nil {
			return byID
		}
	}
	for _, child := range dom.ChildElements(el) {
		if dom.HasClass(child, "xforms-"+string(which)) && !strings.Contains(dom.ID(child), LHHASeparator) {
			return child
		}
	}
	if dom.HasClass(el, "xforms-"+string(which)) {
		return el
	}
	return nil
}

// IsLHHAElement returns true if the node is a label, hint, help or alert element
func IsLHHAElement(n *html.Node) bool {
	if dom.IsTag(n, "label") {
		return true
	}
	return dom.HasAnyClass(n, "xforms-label", "xforms-hint", "xforms-help", "xforms-alert")
}
