package session

import (
	"strings"

	"golang.org/x/net/html"
)

// DialogInfo is the last known visibility of a dialog
type DialogInfo struct {
	Visible  bool
	Neighbor string
}

// State is everything the engine remembers between two batches of one form.
// It is only touched from the host's event loop.
type State struct {
	values        map[string]string
	Repeats       *RepeatTree
	RepeatIndexes map[string]int
	Dialogs       map[string]DialogInfo

	// FocusID and FocusElement identify the focused control. The element is
	// kept to detect that it was detached by a subtree replacement.
	FocusID      string
	FocusElement *html.Node
}

// NewState creates an empty state
func NewState() *State {
	return &State{
		values:        make(map[string]string),
		Repeats:       NewRepeatTree(),
		RepeatIndexes: make(map[string]int),
		Dialogs:       make(map[string]DialogInfo),
	}
}

// Value returns the last value the engine pushed into a control
func (s *State) Value(controlID string) (string, bool) {
	v, ok := s.values[controlID]
	return v, ok
}

// SetValue records the value rendered by a control after a write
func (s *State) SetValue(controlID, value string) {
	s.values[controlID] = value
}

// ForgetValue drops the cached value of a control that left the tree
func (s *State) ForgetValue(controlID string) {
	delete(s.values, controlID)
}

// ValueCount returns the number of cached values
func (s *State) ValueCount() int {
	return len(s.values)
}

// SetFocus records the focused control
func (s *State) SetFocus(controlID string, el *html.Node) {
	s.FocusID = controlID
	s.FocusElement = el
}

// ClearFocus forgets the focused control
func (s *State) ClearFocus() {
	s.FocusID = ""
	s.FocusElement = nil
}

// RepeatTree is the nesting of repeats sent by the server
type RepeatTree struct {
	parent      map[string]string
	descendants map[string][]string
}

// NewRepeatTree creates an empty tree
func NewRepeatTree() *RepeatTree {
	return &RepeatTree{
		parent:      make(map[string]string),
		descendants: make(map[string][]string),
	}
}

// ParseRepeatTree builds the tree from "child parent,child2 parent2,top".
// Only the first and last words of an entry are significant.
func ParseRepeatTree(data string) *RepeatTree {
	tree := NewRepeatTree()
	var order []string
	for _, entry := range strings.Split(data, ",") {
		fields := strings.Fields(entry)
		if len(fields) == 0 {
			continue
		}
		id := fields[0]
		if _, seen := tree.parent[id]; !seen {
			order = append(order, id)
		}
		tree.parent[id] = ""
		if len(fields) > 1 {
			tree.parent[id] = fields[len(fields)-1]
		}
	}

	for _, child := range order {
		seen := map[string]bool{child: true}
		for p := tree.parent[child]; p != "" && !seen[p]; p = tree.parent[p] {
			seen[p] = true
			tree.descendants[p] = append(tree.descendants[p], child)
		}
	}
	return tree
}

// Parent returns the id of the enclosing repeat, "" at top level
func (t *RepeatTree) Parent(repeatID string) string {
	return t.parent[repeatID]
}

// Descendants returns every repeat nested at any depth in repeatID
func (t *RepeatTree) Descendants(repeatID string) []string {
	return t.descendants[repeatID]
}

// Depth returns the nesting depth of a repeat, 1 at top level
func (t *RepeatTree) Depth(repeatID string) int {
	depth := 1
	seen := map[string]bool{repeatID: true}
	for p := t.parent[repeatID]; p != "" && !seen[p]; p = t.parent[p] {
		seen[p] = true
		depth++
	}
	return depth
}

// Ancestors returns the enclosing repeats, outermost first
func (t *RepeatTree) Ancestors(repeatID string) []string {
	var ancestors []string
	seen := map[string]bool{repeatID: true}
	for p := t.parent[repeatID]; p != "" && !seen[p]; p = t.parent[p] {
		seen[p] = true
		ancestors = append([]string{p}, ancestors...)
	}
	return ancestors
}
