package reconcile

import (
	"fmt"

	"golang.org/x/net/html"

	"github.com/orbeon/orbeon-forms-sub002/internal/control"
	"github.com/orbeon/orbeon-forms-sub002/internal/dom"
	"github.com/orbeon/orbeon-forms-sub002/internal/protocol"
)

// ApplyItemset regenerates the choices of a selection control. Selected
// and checked state is carried over by value, never by position or label.
// The control is then marked so the value that follows in the same batch is
// written unconditionally.
func (r *Reconciler) ApplyItemset(el *html.Node, kind control.Kind, itemset *protocol.Itemset) error {
	id := dom.ID(el)
	r.itemsetUpdated[id] = true

	var err error
	switch kind {
	case control.KindSelectList, control.KindSelect1List:
		err = rebuildList(el, itemset.Items)
	case control.KindSelectFull, control.KindSelect1Full:
		err = r.rebuildFull(el, kind, itemset)
	default:
		err = fmt.Errorf("itemset sent for a %s control", kind)
	}
	if err != nil {
		return err
	}
	r.opts.Metrics.ItemsetRebuilt()
	return nil
}

// rebuildList regenerates the options of a list. Branches become optgroups;
// branches nested deeper contribute their leaves to the enclosing optgroup.
func rebuildList(el *html.Node, items []protocol.ItemsetNode) error {
	sel := dom.ByTag(el, "select")
	if sel == nil {
		return fmt.Errorf("list control %q has no select", dom.ID(el))
	}

	selected := make(map[string]bool)
	for _, option := range dom.AllByTag(sel, "option") {
		if dom.HasAttr(option, "selected") {
			selected[dom.AttrOr(option, "value", dom.TextContent(option))] = true
		}
	}
	dom.RemoveChildren(sel)

	for _, item := range items {
		if !item.IsBranch() {
			sel.AppendChild(newOption(item, selected))
			continue
		}
		group := dom.NewElement("optgroup", html.Attribute{Key: "label", Val: item.Label})
		if class := item.Class(); class != "" {
			dom.SetAttr(group, "class", class)
		}
		for _, leaf := range leaves(item.Children) {
			group.AppendChild(newOption(leaf, selected))
		}
		sel.AppendChild(group)
	}
	return nil
}

func leaves(nodes []protocol.ItemsetNode) []protocol.ItemsetNode {
	var result []protocol.ItemsetNode
	for _, n := range nodes {
		if n.IsBranch() {
			result = append(result, leaves(n.Children)...)
		} else {
			result = append(result, n)
		}
	}
	return result
}

func newOption(item protocol.ItemsetNode, selected map[string]bool) *html.Node {
	option := dom.NewElement("option", html.Attribute{Key: "value", Val: item.Value})
	if class := item.Class(); class != "" {
		dom.SetAttr(option, "class", class)
	}
	if selected[item.Value] {
		dom.SetAttr(option, "selected", "selected")
	}
	dom.SetText(option, item.Label)
	return option
}

// rebuildFull regenerates the checkboxes or radio buttons of a control from
// the item template
func (r *Reconciler) rebuildFull(el *html.Node, kind control.Kind, itemset *protocol.Itemset) error {
	container := dom.Find(el, func(n *html.Node) bool {
		return dom.IsTag(n, "span") && dom.HasClass(n, "xforms-items")
	})
	if container == nil {
		return fmt.Errorf("control %q has no item container", dom.ID(el))
	}

	checked := make(map[string]bool)
	for child := container.FirstChild; child != nil; child = container.FirstChild {
		if input := itemInput(child); input != nil {
			checked[dom.AttrOr(input, "value", "")] = dom.HasAttr(input, "checked")
		}
		container.RemoveChild(child)
	}

	controlID := dom.ID(el)
	multiple := kind == control.KindSelectFull
	idPlaceholder := control.PlaceholderSelect1
	if multiple {
		idPlaceholder = control.PlaceholderSelectID
	}
	name := controlID
	if itemset.Group != "" {
		name = itemset.Group
	}
	readonly := dom.HasClass(el, "xforms-readonly")

	for i, item := range itemset.Items {
		clone := control.ItemTemplate(r.doc, multiple)

		dom.ReplaceInText(clone, control.PlaceholderValue, item.Value)
		dom.ReplaceInText(clone, idPlaceholder, control.ItemID(controlID, i))
		dom.ReplaceInText(clone, control.PlaceholderName, name)

		if item.Help != "" {
			dom.ReplaceInText(clone, control.PlaceholderHelp, item.Help)
		} else {
			removeByClass(clone, "xforms-help")
		}
		if item.Hint != "" {
			if err := replaceWithMarkup(clone, control.PlaceholderHint, item.Hint); err != nil {
				return err
			}
		} else {
			for _, region := range dom.ByClass(clone, "xforms-hint-region") {
				dom.RemoveAttr(region, "class")
			}
			removeByClass(clone, "xforms-hint")
		}
		if err := replaceWithMarkup(clone, control.PlaceholderLabel, item.Label); err != nil {
			return err
		}

		if class := item.Class(); class != "" {
			dom.AddClass(clone, class)
		}
		if input := itemInput(clone); input != nil {
			dom.ToggleAttr(input, "disabled", "disabled", readonly)
			dom.ToggleAttr(input, "checked", "checked", checked[item.Value])
		}
		container.AppendChild(clone)
	}

	control.SetItemClasses(el)
	return nil
}

func itemInput(item *html.Node) *html.Node {
	if dom.IsTag(item, "input") {
		return item
	}
	if !dom.IsElement(item) {
		return nil
	}
	return dom.ByTag(item, "input")
}

func removeByClass(root *html.Node, class string) {
	for _, n := range dom.ByClass(root, class) {
		dom.Detach(n)
	}
}

// replaceWithMarkup substitutes a placeholder by parsed markup, so labels
// and hints may carry formatting
func replaceWithMarkup(root *html.Node, placeholder, markup string) error {
	nodes, err := dom.ParseMarkup(markup)
	if err != nil {
		return fmt.Errorf("item markup: %w", err)
	}
	dom.ReplaceWithNodes(root, placeholder, nodes)
	return nil
}
