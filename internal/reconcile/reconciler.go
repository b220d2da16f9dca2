// Package reconcile applies control-detail records to the UI tree. It owns
// the rule deciding whether a server value may overwrite what the user typed
// since the last round trip.
package reconcile

import (
	"fmt"
	"log"
	"strconv"

	"golang.org/x/net/html"

	"github.com/orbeon/orbeon-forms-sub002/internal/control"
	"github.com/orbeon/orbeon-forms-sub002/internal/dom"
	"github.com/orbeon/orbeon-forms-sub002/internal/host"
	"github.com/orbeon/orbeon-forms-sub002/internal/metrics"
	"github.com/orbeon/orbeon-forms-sub002/internal/migrate"
	"github.com/orbeon/orbeon-forms-sub002/internal/protocol"
	"github.com/orbeon/orbeon-forms-sub002/internal/report"
	"github.com/orbeon/orbeon-forms-sub002/internal/session"
)

// Options configures a Reconciler. Zero values are usable.
type Options struct {
	Widgets host.WidgetRegistry
	Metrics *metrics.Collector
	Logger  *log.Logger

	// NormalizeMarkup also minifies markup before comparing values. Line
	// endings and Unicode composition are always normalized.
	NormalizeMarkup bool
}

// Reconciler applies the detail records of one form. It keeps per-batch
// bookkeeping, reset by BeginBatch.
type Reconciler struct {
	doc   *html.Node
	state *session.State
	opts  Options

	itemsetUpdated map[string]bool
	typeChanged    []string
}

// New creates a reconciler over the document of a form
func New(doc *html.Node, state *session.State, opts Options) *Reconciler {
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewCollector()
	}
	return &Reconciler{
		doc:            doc,
		state:          state,
		opts:           opts,
		itemsetUpdated: make(map[string]bool),
	}
}

// BeginBatch forgets the bookkeeping of the previous batch
func (r *Reconciler) BeginBatch() {
	r.itemsetUpdated = make(map[string]bool)
	r.typeChanged = nil
}

// TypeChanged returns the controls whose widget was rebuilt in this batch
func (r *Reconciler) TypeChanged() []string {
	return r.typeChanged
}

// Document returns the tree being reconciled
func (r *Reconciler) Document() *html.Node {
	return r.doc
}

// lookup finds the element of a control, falling back to the begin marker
// of a group rendered without a container element
func (r *Reconciler) lookup(record, id string) (*html.Node, error) {
	if el := dom.ElementByID(r.doc, id); el != nil {
		return el, nil
	}
	if el := dom.ElementByID(r.doc, "group-begin-"+id); el != nil {
		return el, nil
	}
	return nil, report.NotFound(record, id)
}

// ApplyControl applies one control record. Steps run in a fixed order:
// static migration, relevance on, type migration, read-only, classes and
// properties, messages, itemset and cases, value, relevance off.
func (r *Reconciler) ApplyControl(d *protocol.ControlDetail) error {
	el, err := r.lookup("control", d.ID)
	if err != nil {
		return err
	}

	if d.Static != nil && *d.Static && !control.IsStatic(el) {
		el = migrate.MigrateStatic(r.doc, el)
		r.opts.Metrics.TypeMigrated()
	}
	static := control.IsStatic(el)

	if d.Relevant != nil && *d.Relevant {
		r.setRelevant(el, true)
	}

	recreated := false
	if d.SchemaType != nil {
		if recreated = migrate.MigrateType(r.doc, el, *d.SchemaType); recreated {
			r.typeChanged = append(r.typeChanged, d.ID)
			r.opts.Metrics.TypeMigrated()
			r.opts.Logger.Printf("control %s: widget rebuilt for type %s", d.ID, *d.SchemaType)
		}
	}
	kind := control.Classify(el)

	if d.Readonly != nil && !static {
		setReadonly(el, kind, *d.Readonly)
	}
	if d.Required != nil {
		dom.ToggleClass(el, "xforms-required", *d.Required)
	}
	if d.Class != nil {
		applyClassDelta(el, *d.Class)
	}
	if d.Empty != nil && !static {
		required := dom.HasClass(el, "xforms-required")
		dom.ToggleClass(el, "xforms-empty", required && *d.Empty == "true")
		dom.ToggleClass(el, "xforms-filled", required && *d.Empty == "false")
	}

	if dom.HasClass(el, "xforms-control") {
		r.applyLeafAttributes(el, kind, d)
	}

	if err := r.applyMessages(el, kind, d); err != nil {
		return fmt.Errorf("control %s: %w", d.ID, err)
	}
	if d.Level != nil {
		r.setConstraintLevel(el, *d.Level)
	}
	if d.ProgressState != nil && *d.ProgressState != "" {
		setUploadProgress(el, *d.ProgressState, d.ProgressReceived, d.ProgressExpected)
	}
	if d.Visited != nil {
		r.setVisited(el, *d.Visited)
	}

	if d.Itemset != nil {
		if err := r.ApplyItemset(el, kind, d.Itemset); err != nil {
			return fmt.Errorf("control %s: %w", d.ID, err)
		}
	}
	for _, c := range d.Cases {
		if err := r.ToggleCase(c.ID, c.Visible); err != nil {
			return err
		}
	}

	if d.Value != nil {
		forced := recreated || r.itemsetUpdated[d.ID]
		if _, err := r.ApplyValue(el, kind, *d.Value, forced, d.HasPresentationAttrs()); err != nil {
			return fmt.Errorf("control %s: %w", d.ID, err)
		}
	}

	// Last so widgets of a control leaving the form are torn down after its
	// other updates
	if d.Relevant != nil && !*d.Relevant {
		r.setRelevant(el, false)
	}
	return nil
}

// ApplyInit handles a control becoming relevant: relevance and read-only
// first, then the value
func (r *Reconciler) ApplyInit(d *protocol.InitDetail) error {
	el, err := r.lookup("init", d.ID)
	if err != nil {
		return err
	}
	kind := control.Classify(el)

	if d.Relevant != nil {
		r.setRelevant(el, *d.Relevant)
	}
	if d.Readonly != nil && !control.IsStatic(el) {
		setReadonly(el, kind, *d.Readonly)
	}
	if d.Value != nil {
		if _, err := r.ApplyValue(el, kind, *d.Value, r.itemsetUpdated[d.ID], false); err != nil {
			return fmt.Errorf("init %s: %w", d.ID, err)
		}
	}
	return nil
}

// ApplyAttribute sets an attribute on an element that is not a control
func (r *Reconciler) ApplyAttribute(d *protocol.AttributeChange) error {
	el := dom.ElementByID(r.doc, d.For)
	if el == nil {
		return report.NotFound("attribute", d.For)
	}
	dom.SetAttr(el, d.Name, d.Value)
	return nil
}

// ApplyText sets the text content of an element that is not a control
func (r *Reconciler) ApplyText(d *protocol.TextChange) error {
	el := dom.ElementByID(r.doc, d.For)
	if el == nil {
		return report.NotFound("text", d.For)
	}
	dom.SetText(el, d.Value)
	return nil
}

// ToggleCase selects or deselects the content of a switch case: every
// element from the case begin marker up to its end marker
func (r *Reconciler) ToggleCase(caseID string, visible bool) error {
	begin := dom.ElementByID(r.doc, "xforms-case-begin-"+caseID)
	if begin == nil {
		return report.NotFound("case", caseID)
	}
	endID := "xforms-case-end-" + caseID
	for cur := begin; cur != nil; cur = cur.NextSibling {
		if !dom.IsElement(cur) {
			continue
		}
		if dom.ID(cur) == endID {
			break
		}
		dom.ToggleClass(cur, "xforms-case-selected", visible)
		dom.ToggleClass(cur, "xforms-case-deselected", !visible)
	}
	return nil
}

// ApplyDialog shows or hides a dialog and remembers its state
func (r *Reconciler) ApplyDialog(d *protocol.DialogState) error {
	el := dom.ElementByID(r.doc, d.ID)
	if el == nil {
		return report.NotFound("dialog", d.ID)
	}
	dom.ToggleClass(el, "xforms-dialog-visible", d.Visible)
	dom.SetAttr(el, "aria-hidden", strconv.FormatBool(!d.Visible))
	if d.Neighbor != "" {
		dom.SetAttr(el, "data-neighbor", d.Neighbor)
	}
	r.state.Dialogs[d.ID] = session.DialogInfo{Visible: d.Visible, Neighbor: d.Neighbor}
	return nil
}
