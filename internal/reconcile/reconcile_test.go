package reconcile

import (
	"bytes"
	"errors"
	"log"
	"strings"
	"testing"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/go-cmp/cmp"
	"golang.org/x/net/html"

	"github.com/orbeon/orbeon-forms-sub002/internal/control"
	"github.com/orbeon/orbeon-forms-sub002/internal/dom"
	"github.com/orbeon/orbeon-forms-sub002/internal/metrics"
	"github.com/orbeon/orbeon-forms-sub002/internal/protocol"
	"github.com/orbeon/orbeon-forms-sub002/internal/report"
	"github.com/orbeon/orbeon-forms-sub002/internal/session"
)

const formHTML = `<html><body><form id="form">
<span id="name" class="xforms-control xforms-input">
  <label class="xforms-label" for="name$xforms-input-1">Name</label>
  <input id="name$xforms-input-1" type="text" class="xforms-input-input" value="">
  <span class="xforms-alert" id="name≡≡a"></span>
  <span class="xforms-hint">Your name</span>
  <span class="xforms-help"></span>
</span>
<span id="fruit" class="xforms-control xforms-select1 xforms-select1-appearance-minimal">
  <select id="fruit-select"></select>
</span>
<span id="colors" class="xforms-control xforms-select xforms-select-appearance-full">
  <span class="xforms-items"></span>
</span>
<span id="notes" class="xforms-control xforms-textarea"><textarea></textarea></span>
<span id="total" class="xforms-control xforms-output"><span class="xforms-output-output">0</span></span>
<span id="save" class="xforms-control xforms-trigger"><button>Save</button></span>
<span id="heading">Title</span>
<span id="xforms-case-begin-c1" class="xforms-case-begin-end"></span>
<div class="case-content">first</div>
<div class="case-content">second</div>
<span id="xforms-case-end-c1" class="xforms-case-begin-end"></span>
<div class="after">after</div>
<div id="dlg" class="xforms-dialog"></div>
</form></body></html>`

func newReconciler(t *testing.T) (*Reconciler, *session.State, *metrics.Collector) {
	t.Helper()
	doc, err := dom.ParseString(formHTML)
	if err != nil {
		t.Fatalf("ParseString() error = %v", err)
	}
	state := session.NewState()
	collector := metrics.NewCollector()
	r := New(doc, state, Options{
		Metrics:         collector,
		Logger:          log.New(&bytes.Buffer{}, "", 0),
		NormalizeMarkup: true,
	})
	return r, state, collector
}

func byID(t *testing.T, r *Reconciler, id string) *html.Node {
	t.Helper()
	el := dom.ElementByID(r.Document(), id)
	if el == nil {
		t.Fatalf("element %q not found", id)
	}
	return el
}

func str(s string) *string { return &s }
func boolean(b bool) *bool { return &b }

func fakeItems(f *gofakeit.Faker, n int) []protocol.ItemsetNode {
	items := make([]protocol.ItemsetNode, n)
	for i := range items {
		items[i] = protocol.ItemsetNode{
			Label: f.Word(),
			Value: f.UUID(),
		}
	}
	return items
}

func TestItemsetRebuildIsIdempotent(t *testing.T) {
	f := gofakeit.New(7)
	items := fakeItems(f, 6)
	items = append(items, protocol.ItemsetNode{
		Label:    "More",
		Children: fakeItems(f, 3),
	})
	flat := append([]protocol.ItemsetNode(nil), items[:6]...)

	tests := []struct {
		name  string
		id    string
		items []protocol.ItemsetNode
		value string
	}{
		{"list", "fruit", items, items[2].Value},
		{"checkboxes", "colors", flat, items[1].Value + " " + items[4].Value},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _, _ := newReconciler(t)
			detail := &protocol.ControlDetail{
				ID:      tt.id,
				Itemset: &protocol.Itemset{Items: tt.items},
				Value:   str(tt.value),
			}

			if err := r.ApplyControl(detail); err != nil {
				t.Fatalf("first ApplyControl() error = %v", err)
			}
			first := dom.Render(byID(t, r, tt.id))

			r.BeginBatch()
			if err := r.ApplyControl(detail); err != nil {
				t.Fatalf("second ApplyControl() error = %v", err)
			}
			second := dom.Render(byID(t, r, tt.id))

			if diff := cmp.Diff(first, second); diff != "" {
				t.Errorf("second rebuild changed the control (-first +second):\n%s", diff)
			}
			el := byID(t, r, tt.id)
			if got, _ := control.Value(el, control.Classify(el), nil); got != tt.value {
				t.Errorf("value = %q, want %q", got, tt.value)
			}
		})
	}
}

func TestItemsetDuplicateLabels(t *testing.T) {
	items := []protocol.ItemsetNode{
		{Label: "Same", Value: "a"},
		{Label: "Same", Value: "b"},
		{Label: "Other", Value: "c"},
	}

	t.Run("list", func(t *testing.T) {
		r, _, _ := newReconciler(t)
		err := r.ApplyControl(&protocol.ControlDetail{
			ID: "fruit", Itemset: &protocol.Itemset{Items: items}, Value: str("b"),
		})
		if err != nil {
			t.Fatalf("ApplyControl() error = %v", err)
		}
		var selected []string
		for _, option := range dom.AllByTag(byID(t, r, "fruit"), "option") {
			if dom.HasAttr(option, "selected") {
				selected = append(selected, dom.AttrOr(option, "value", ""))
			}
		}
		if diff := cmp.Diff([]string{"b"}, selected); diff != "" {
			t.Errorf("selected options (-want +got):\n%s", diff)
		}
	})

	t.Run("checkboxes", func(t *testing.T) {
		r, _, _ := newReconciler(t)
		err := r.ApplyControl(&protocol.ControlDetail{
			ID: "colors", Itemset: &protocol.Itemset{Items: items}, Value: str("a c"),
		})
		if err != nil {
			t.Fatalf("ApplyControl() error = %v", err)
		}
		inputs := dom.AllByTag(byID(t, r, "colors"), "input")
		if len(inputs) != 3 {
			t.Fatalf("got %d checkboxes, want 3", len(inputs))
		}
		want := []bool{true, false, true}
		for i, input := range inputs {
			if got := dom.HasAttr(input, "checked"); got != want[i] {
				t.Errorf("checkbox %d checked = %v, want %v", i, got, want[i])
			}
			if id := dom.ID(input); id != control.ItemID("colors", i) {
				t.Errorf("checkbox %d id = %q", i, id)
			}
		}
		if !strings.Contains(dom.TextContent(byID(t, r, "colors")), "Same") {
			t.Error("labels not substituted")
		}
	})
}

func TestItemsetReadonlyDisablesItems(t *testing.T) {
	r, _, _ := newReconciler(t)
	err := r.ApplyControl(&protocol.ControlDetail{
		ID:       "colors",
		Readonly: boolean(true),
		Itemset:  &protocol.Itemset{Items: []protocol.ItemsetNode{{Label: "Red", Value: "red"}}},
	})
	if err != nil {
		t.Fatalf("ApplyControl() error = %v", err)
	}
	input := dom.ByTag(byID(t, r, "colors"), "input")
	if !dom.HasAttr(input, "disabled") {
		t.Error("item of a read-only control is not disabled")
	}
}

func TestOptimisticGuard(t *testing.T) {
	tests := []struct {
		name      string
		cached    *string // value pushed by the previous batch
		widget    string  // what the widget shows now
		incoming  string
		forced    bool
		wantValue string
		wantWrite bool
	}{
		{"no cache writes", nil, "typed", "server", false, "server", true},
		{"unchanged widget writes", str("old"), "old", "new", false, "new", true},
		{"local edit is kept", str("old"), "typed", "new", false, "typed", false},
		{"forced overrides edit", str("old"), "typed", "new", true, "new", true},
		{"same value is a no-op", str("old"), "same", "same", false, "same", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, state, collector := newReconciler(t)
			el := byID(t, r, "name")
			if err := control.SetValue(el, control.KindInput, tt.widget, nil); err != nil {
				t.Fatalf("SetValue() error = %v", err)
			}
			if tt.cached != nil {
				state.SetValue("name", *tt.cached)
			}

			wrote, err := r.ApplyValue(el, control.KindInput, tt.incoming, tt.forced, false)
			if err != nil {
				t.Fatalf("ApplyValue() error = %v", err)
			}
			if wrote != tt.wantWrite {
				t.Errorf("wrote = %v, want %v", wrote, tt.wantWrite)
			}
			if got, _ := control.Value(el, control.KindInput, nil); got != tt.wantValue {
				t.Errorf("widget = %q, want %q", got, tt.wantValue)
			}
			if tt.wantWrite {
				if cached, _ := state.Value("name"); cached != tt.wantValue {
					t.Errorf("cache = %q, want %q", cached, tt.wantValue)
				}
			}
			if tt.name == "local edit is kept" && collector.GetMetrics().ValuesKept != 1 {
				t.Error("kept value not counted")
			}
		})
	}
}

func TestValueForcedAfterItemset(t *testing.T) {
	r, state, _ := newReconciler(t)
	items := []protocol.ItemsetNode{{Label: "Apple", Value: "apple"}, {Label: "Pear", Value: "pear"}}

	if err := r.ApplyControl(&protocol.ControlDetail{ID: "fruit", Itemset: &protocol.Itemset{Items: items}, Value: str("apple")}); err != nil {
		t.Fatal(err)
	}
	// The user picks pear, then the server resends the itemset with apple
	el := byID(t, r, "fruit")
	if err := control.SetValue(el, control.KindSelect1List, "pear", nil); err != nil {
		t.Fatal(err)
	}
	state.SetValue("fruit", "apple")

	r.BeginBatch()
	if err := r.ApplyControl(&protocol.ControlDetail{ID: "fruit", Itemset: &protocol.Itemset{Items: items}, Value: str("apple")}); err != nil {
		t.Fatal(err)
	}
	if got, _ := control.Value(el, control.KindSelect1List, nil); got != "apple" {
		t.Errorf("value after itemset = %q, want apple", got)
	}
}

func TestPresentationAttributesForceWrite(t *testing.T) {
	r, state, _ := newReconciler(t)
	el := byID(t, r, "name")
	_ = control.SetValue(el, control.KindInput, "typed", nil)
	state.SetValue("name", "old")

	err := r.ApplyControl(&protocol.ControlDetail{ID: "name", Value: str("new"), Maxlength: str("10")})
	if err != nil {
		t.Fatalf("ApplyControl() error = %v", err)
	}
	input := dom.ByTag(el, "input")
	if got := dom.AttrOr(input, "maxlength", ""); got != "10" {
		t.Errorf("maxlength = %q", got)
	}
	if got := dom.AttrOr(input, "value", ""); got != "new" {
		t.Errorf("value = %q, want new", got)
	}
}

func TestControlProperties(t *testing.T) {
	r, _, _ := newReconciler(t)
	err := r.ApplyControl(&protocol.ControlDetail{
		ID:       "name",
		Relevant: boolean(true),
		Readonly: boolean(true),
		Required: boolean(true),
		Empty:    str("true"),
		Class:    str("+wide -xforms-control-extra plain"),
		Level:    str("error"),
		Visited:  boolean(true),
		Label:    str("Full <b>name</b>"),
		Help:     str("<i>escaped</i>"),
		Alert:    str("Required"),
	})
	if err != nil {
		t.Fatalf("ApplyControl() error = %v", err)
	}

	el := byID(t, r, "name")
	for _, class := range []string{"xforms-readonly", "xforms-required", "xforms-empty", "wide", "plain", "xforms-invalid", "xforms-visited"} {
		if !dom.HasClass(el, class) {
			t.Errorf("missing class %s in %q", class, dom.AttrOr(el, "class", ""))
		}
	}
	input := dom.ByTag(el, "input")
	for _, attr := range []string{"readonly", "aria-required", "aria-invalid"} {
		if !dom.HasAttr(input, attr) {
			t.Errorf("input missing %s", attr)
		}
	}

	alert := byID(t, r, "name≡≡a")
	if !dom.HasClass(alert, "xforms-active") || !dom.HasClass(alert, "xforms-invalid") || !dom.HasClass(alert, "xforms-visited") {
		t.Errorf("alert classes = %q", dom.AttrOr(alert, "class", ""))
	}
	if got := dom.TextContent(alert); got != "Required" {
		t.Errorf("alert = %q", got)
	}

	label := control.FindLHHA(r.Document(), el, control.Label)
	if got := dom.InnerHTML(label); got != "Full <b>name</b>" {
		t.Errorf("label = %q", got)
	}
	help := control.FindLHHA(r.Document(), el, control.Help)
	if got := dom.TextContent(help); got != "<i>escaped</i>" {
		t.Errorf("help text = %q", got)
	}
	if dom.HasClass(help, "xforms-disabled") {
		t.Error("non-empty help is hidden")
	}

	err = r.ApplyControl(&protocol.ControlDetail{ID: "name", Relevant: boolean(false), Help: str(" ")})
	if err != nil {
		t.Fatal(err)
	}
	if !dom.HasClass(el, "xforms-disabled") || !dom.HasClass(label, "xforms-disabled") || !dom.HasClass(help, "xforms-disabled") {
		t.Error("non-relevant control or LHHA not disabled")
	}
}

func TestToggleCase(t *testing.T) {
	r, _, _ := newReconciler(t)
	if err := r.ApplyControl(&protocol.ControlDetail{
		ID:    "heading",
		Cases: []protocol.CaseToggle{{ID: "c1", Visible: false}},
	}); err != nil {
		t.Fatalf("ApplyControl() error = %v", err)
	}

	for _, n := range dom.ByClass(r.Document(), "case-content") {
		if !dom.HasClass(n, "xforms-case-deselected") {
			t.Errorf("case content %q not deselected", dom.TextContent(n))
		}
	}
	after := dom.ByClass(r.Document(), "after")[0]
	if dom.HasAnyClass(after, "xforms-case-selected", "xforms-case-deselected") {
		t.Error("toggle went past the end marker")
	}
}

func TestAttributeAndText(t *testing.T) {
	r, _, _ := newReconciler(t)
	if err := r.ApplyAttribute(&protocol.AttributeChange{For: "heading", Name: "title", Value: "t"}); err != nil {
		t.Fatal(err)
	}
	if err := r.ApplyText(&protocol.TextChange{For: "heading", Value: "New title"}); err != nil {
		t.Fatal(err)
	}
	heading := byID(t, r, "heading")
	if dom.AttrOr(heading, "title", "") != "t" || dom.TextContent(heading) != "New title" {
		t.Errorf("heading = %s", dom.Render(heading))
	}
}

func TestUnknownControlIsLookupError(t *testing.T) {
	r, _, _ := newReconciler(t)
	err := r.ApplyControl(&protocol.ControlDetail{ID: "missing", Value: str("x")})

	var lookup *report.LookupError
	if !errors.As(err, &lookup) || lookup.ID != "missing" {
		t.Fatalf("ApplyControl() error = %v, want LookupError", err)
	}
	if !errors.Is(err, report.ErrControlNotFound) {
		t.Error("expected ErrControlNotFound")
	}
}

func TestOutputAlwaysWritten(t *testing.T) {
	r, state, _ := newReconciler(t)
	state.SetValue("total", "stale")
	if err := r.ApplyControl(&protocol.ControlDetail{ID: "total", Value: str("42")}); err != nil {
		t.Fatal(err)
	}
	if got := dom.TextContent(byID(t, r, "total")); got != "42" {
		t.Errorf("output = %q, want 42", got)
	}
}

func TestApplyDialog(t *testing.T) {
	r, state, _ := newReconciler(t)

	if err := r.ApplyDialog(&protocol.DialogState{ID: "dlg", Visible: true, Neighbor: "save"}); err != nil {
		t.Fatalf("ApplyDialog() error = %v", err)
	}
	dlg := byID(t, r, "dlg")
	if !dom.HasClass(dlg, "xforms-dialog-visible") || dom.AttrOr(dlg, "aria-hidden", "") != "false" {
		t.Errorf("dialog not shown: %s", dom.Render(dlg))
	}
	if got := state.Dialogs["dlg"]; !got.Visible || got.Neighbor != "save" {
		t.Errorf("dialog state = %+v", got)
	}

	if err := r.ApplyDialog(&protocol.DialogState{ID: "dlg"}); err != nil {
		t.Fatalf("ApplyDialog(hide) error = %v", err)
	}
	if dom.HasClass(dlg, "xforms-dialog-visible") || state.Dialogs["dlg"].Visible {
		t.Error("dialog still visible")
	}

	err := r.ApplyDialog(&protocol.DialogState{ID: "nope", Visible: true})
	var lookup *report.LookupError
	if !errors.As(err, &lookup) {
		t.Errorf("ApplyDialog(unknown) error = %v, want LookupError", err)
	}
}
