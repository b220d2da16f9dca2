package control

import (
	"fmt"
	"strconv"
	"sync"

	"golang.org/x/net/html"

	"github.com/orbeon/orbeon-forms-sub002/internal/dom"
)

// Placeholders found in the checkbox/radio item templates
const (
	PlaceholderLabel    = "$xforms-template-label$"
	PlaceholderValue    = "$xforms-template-value$"
	PlaceholderHelp     = "$xforms-template-help$"
	PlaceholderHint     = "$xforms-template-hint$"
	PlaceholderName     = "$xforms-item-name$"
	PlaceholderSelectID = "$xforms-item-id-select$"
	PlaceholderSelect1  = "$xforms-item-id-select1$"
)

// Ids of the templates the page carries
const (
	SelectTemplateID  = "xforms-select-full-template"
	Select1TemplateID = "xforms-select1-full-template"
)

const builtinItemTemplate = `<span class="xforms-deselected"><label class="%s">` +
	`<input id="%s" type="%s" name="$xforms-item-name$" value="$xforms-template-value$" disabled="disabled"/>` +
	`<span class="xforms-hint-region">$xforms-template-label$</span></label>` +
	`<span class="xforms-help">$xforms-template-help$</span>` +
	`<span class="xforms-hint">$xforms-template-hint$</span></span>`

var (
	builtinOnce      sync.Once
	builtinTemplates map[bool]*html.Node
)

func builtinTemplate(multiple bool) *html.Node {
	builtinOnce.Do(func() {
		builtinTemplates = make(map[bool]*html.Node)
		for _, m := range []bool{true, false} {
			class, id, kind := "radio", PlaceholderSelect1, "radio"
			if m {
				class, id, kind = "checkbox", PlaceholderSelectID, "checkbox"
			}
			markup := fmt.Sprintf(builtinItemTemplate, class, id, kind)
			nodes, err := dom.ParseFragment(markup, nil)
			if err != nil || len(nodes) == 0 {
				panic("control: built-in item template does not parse")
			}
			builtinTemplates[m] = nodes[0]
		}
	})
	return builtinTemplates[multiple]
}

// ItemTemplate returns a fresh copy of the item template for checkboxes
// (multiple) or radio buttons. The page's template is used when present.
func ItemTemplate(doc *html.Node, multiple bool) *html.Node {
	id := Select1TemplateID
	if multiple {
		id = SelectTemplateID
	}
	if container := dom.ElementByID(doc, id); container != nil {
		if first := dom.FirstChildElement(container); first != nil {
			return dom.Clone(first)
		}
	}
	return dom.Clone(builtinTemplate(multiple))
}

// ItemID returns the id of the i-th checkbox or radio button of a control
func ItemID(controlID string, i int) string {
	return AppendToID(controlID, LHHASeparator+"e"+strconv.Itoa(i))
}
