package structure

import (
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/orbeon/orbeon-forms-sub002/internal/control"
	"github.com/orbeon/orbeon-forms-sub002/internal/dom"
	"github.com/orbeon/orbeon-forms-sub002/internal/protocol"
	"github.com/orbeon/orbeon-forms-sub002/internal/report"
	"github.com/orbeon/orbeon-forms-sub002/internal/session"
)

const deletionRecord = "delete-repeat-elements"

// DeleteIterations removes the last d.Count iterations of a repeat. Nodes
// are removed walking backward from the end marker; an iteration is done
// once its level-0 delimiter is removed. Markers of nested repeats only move
// the nesting level, so a nested repeat goes with its enclosing iteration.
//
// Iterations removed before an error stay removed.
func (e *Editor) DeleteIterations(d *protocol.RepeatDeletion) (removed int, err error) {
	suffixed := control.AppendRepeatSuffix(d.RepeatID, d.ParentIndexes)
	end := dom.ElementByID(e.doc, repeatEndPrefix+suffixed)
	if end == nil {
		return 0, &report.LookupError{Record: deletionRecord, ID: suffixed, Err: report.ErrRepeatNotFound}
	}
	beginID := repeatBeginPrefix + suffixed

	defer func() {
		if removed > 0 {
			e.opts.Metrics.IterationsDeleted(removed)
		}
	}()

	cursor := end.PrevSibling
	for removed < d.Count {
		level := 0
		for {
			if cursor == nil || (level == 0 && dom.ID(cursor) == beginID) {
				return removed, &report.StructuralError{Record: deletionRecord, ID: suffixed, Err: report.ErrIterationCount}
			}

			wasDelimiter := false
			switch {
			case isMarker(cursor, repeatEndPrefix):
				level++
			case isMarker(cursor, repeatBeginPrefix):
				level--
				if level < 0 {
					return removed, &report.StructuralError{Record: deletionRecord, ID: suffixed, Err: report.ErrNestingUnderflow}
				}
			default:
				wasDelimiter = level == 0 && isDelimiter(cursor)
			}

			previous := cursor.PrevSibling
			e.forgetValues(cursor)
			dom.Detach(cursor)
			cursor = previous

			if wasDelimiter {
				break
			}
		}
		removed++
	}

	e.opts.Logger.Printf("repeat %s: deleted %d iteration(s)", suffixed, removed)
	return removed, nil
}

// FindRepeatDelimiter returns the delimiter opening an iteration (1-based)
// of a repeat. A nested repeat is looked up within the current iteration of
// each enclosing repeat. Only delimiters of the repeat itself are counted.
func FindRepeatDelimiter(doc *html.Node, tree *session.RepeatTree, indexes map[string]int, repeatID string, iteration int) (*html.Node, error) {
	beginID := repeatBeginPrefix + repeatPrefixedID(tree, indexes, repeatID)
	begin := dom.ElementByID(doc, beginID)
	if begin == nil {
		return nil, &report.LookupError{Record: "repeat", ID: repeatID, Err: report.ErrRepeatNotFound}
	}

	position, level := 0, 0
	for cursor := begin.NextSibling; cursor != nil; cursor = cursor.NextSibling {
		switch {
		case isMarker(cursor, repeatBeginPrefix):
			level++
		case isMarker(cursor, repeatEndPrefix):
			level--
		case level == 0 && isDelimiter(cursor):
			position++
			if position == iteration {
				return cursor, nil
			}
		}
		if level < 0 {
			break
		}
	}
	return nil, &report.LookupError{Record: "repeat", ID: repeatID + " iteration " + strconv.Itoa(iteration), Err: report.ErrRepeatNotFound}
}

// repeatPrefixedID appends the current indexes of the enclosing repeats to a
// repeat id. An id that already carries indexes is returned unchanged.
func repeatPrefixedID(tree *session.RepeatTree, indexes map[string]int, repeatID string) string {
	if strings.Contains(repeatID, control.RepeatSeparator) || tree == nil {
		return repeatID
	}
	var suffix []string
	for _, ancestor := range tree.Ancestors(repeatID) {
		suffix = append(suffix, strconv.Itoa(indexes[ancestor]))
	}
	return control.AppendRepeatSuffix(repeatID, strings.Join(suffix, control.RepeatIndexSeparator))
}

// IterationElements returns the delimiter of an iteration followed by the
// siblings belonging to it, up to the next delimiter of the same repeat or
// its end marker
func IterationElements(delimiter *html.Node) []*html.Node {
	nodes := []*html.Node{delimiter}
	level := 0
	for cursor := delimiter.NextSibling; cursor != nil; cursor = cursor.NextSibling {
		if !dom.IsElement(cursor) {
			continue
		}
		switch {
		case isMarker(cursor, repeatBeginPrefix):
			level++
		case isMarker(cursor, repeatEndPrefix):
			if level == 0 {
				return nodes
			}
			level--
		case level == 0 && isDelimiter(cursor):
			return nodes
		}
		nodes = append(nodes, cursor)
	}
	return nodes
}

// SetIterationRelevance enables or disables the elements of one iteration
func (e *Editor) SetIterationRelevance(d *protocol.RepeatIteration) error {
	delimiter, err := FindRepeatDelimiter(e.doc, e.state.Repeats, e.state.RepeatIndexes, d.RepeatID, d.Iteration)
	if err != nil {
		return err
	}
	for _, n := range IterationElements(delimiter) {
		dom.ToggleClass(n, "xforms-disabled", !d.Relevant)
	}
	return nil
}
