package dispatch

import (
	"strconv"

	"github.com/orbeon/orbeon-forms-sub002/internal/dom"
	"github.com/orbeon/orbeon-forms-sub002/internal/protocol"
	"github.com/orbeon/orbeon-forms-sub002/internal/structure"
)

const selectedItemClass = "xforms-repeat-selected-item-"

// moveIndexes changes the current iteration of repeats. Nested repeats not
// listed keep their index but are highlighted again, since their delimiters
// move with the enclosing iteration. Old iterations are unhighlighted before
// any index is stored so lookups use consistent indexes.
func (d *Dispatcher) moveIndexes(a *protocol.RepeatIndexes) error {
	next := make(map[string]int)
	var order []string
	for _, idx := range a.Indexes {
		if _, seen := next[idx.RepeatID]; !seen {
			order = append(order, idx.RepeatID)
		}
		next[idx.RepeatID] = idx.NewIndex
	}
	for _, repeatID := range order {
		for _, child := range d.state.Repeats.Descendants(repeatID) {
			if _, listed := next[child]; !listed {
				next[child] = d.state.RepeatIndexes[child]
				order = append(order, child)
			}
		}
	}

	for _, repeatID := range order {
		if old := d.state.RepeatIndexes[repeatID]; old != 0 {
			d.highlight(repeatID, old, false)
		}
	}
	for _, repeatID := range order {
		d.state.RepeatIndexes[repeatID] = next[repeatID]
	}
	for _, repeatID := range order {
		if index := next[repeatID]; index != 0 {
			d.highlight(repeatID, index, true)
		}
	}
	return nil
}

// HighlightClass returns the class marking the current iteration of a
// repeat at the given depth; classes cycle every cycle levels
func HighlightClass(depth, cycle int) string {
	n := depth % cycle
	if n == 0 {
		n = cycle
	}
	return selectedItemClass + strconv.Itoa(n)
}

// highlight adds or removes the highlight class on the elements that follow
// the delimiter of an iteration, up to the next delimiter or marker. A
// missing iteration is ignored.
func (d *Dispatcher) highlight(repeatID string, iteration int, on bool) {
	delimiter, err := structure.FindRepeatDelimiter(d.doc, d.state.Repeats, d.state.RepeatIndexes, repeatID, iteration)
	if err != nil {
		d.opts.Logger.Printf("repeat %s: no iteration %d to highlight", repeatID, iteration)
		return
	}
	class := HighlightClass(d.state.Repeats.Depth(repeatID), d.opts.HighlightCycle)
	for cursor := delimiter.NextSibling; cursor != nil; cursor = cursor.NextSibling {
		if !dom.IsElement(cursor) {
			continue
		}
		if dom.HasAnyClass(cursor, "xforms-repeat-delimiter", "xforms-repeat-begin-end") {
			break
		}
		dom.ToggleClass(cursor, class, on)
	}
}
