package control

import (
	"context"
	"testing"

	"golang.org/x/net/html"

	"github.com/orbeon/orbeon-forms-sub002/internal/dom"
	"github.com/orbeon/orbeon-forms-sub002/internal/host"
)

const page = `<form>
<span id="name" class="xforms-control xforms-input xforms-type-string"><label class="xforms-label" for="name$xforms-input-1">Name</label><input id="name$xforms-input-1" value="Ada"></span>
<span id="agree" class="xforms-control xforms-input xforms-type-boolean"><span class="xforms-items"><span class="xforms-deselected"><label><input type="checkbox" value="true"></label></span></span></span>
<span id="colors" class="xforms-control xforms-select xforms-select-appearance-full"><span class="xforms-items">
  <span class="xforms-deselected"><label><input type="checkbox" value="red"></label></span>
  <span class="xforms-deselected"><label><input type="checkbox" value="blue"></label></span>
</span></span>
<span id="country" class="xforms-control xforms-select1 xforms-select1-appearance-minimal"><select><option value="us">United States</option><option value="us2">United States</option></select></span>
<span id="notes" class="xforms-control xforms-textarea"><textarea>hello</textarea></span>
<span id="out" class="xforms-control xforms-output"><span class="xforms-output-output">42</span></span>
<span id="when" class="xforms-control xforms-input xforms-type-dateTime"><input id="when$xforms-date-1" value="2020-01-01"><input id="when$xforms-time-2" value="10:00"></span>
<button id="go" class="xforms-control xforms-trigger">Go</button>
<span id="slider" class="xforms-control xforms-range"></span>
<span id="name≡≡t⊙1" class="xforms-hint">outside hint</span>
</form>`

func mustDoc(t *testing.T) *html.Node {
	t.Helper()
	doc, err := dom.ParseString(page)
	if err != nil {
		t.Fatalf("ParseString() error = %v", err)
	}
	return doc
}

func TestClassify(t *testing.T) {
	doc := mustDoc(t)
	tests := []struct {
		id   string
		want Kind
	}{
		{"name", KindInput},
		{"agree", KindBoolean},
		{"colors", KindSelectFull},
		{"country", KindSelect1List},
		{"notes", KindTextarea},
		{"out", KindOutput},
		{"go", KindTrigger},
		{"slider", KindRange},
		{"name≡≡t⊙1", KindLHHA},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			if got := Classify(dom.ElementByID(doc, tt.id)); got != tt.want {
				t.Errorf("Classify(%q) = %v, want %v", tt.id, got, tt.want)
			}
		})
	}
}

type fakeWidget struct{ value string }

func (w *fakeWidget) Value() string { return w.value }
func (w *fakeWidget) SetValue(v string) error {
	w.value = v
	return nil
}

type fakeRegistry map[string]*fakeWidget

func (r fakeRegistry) Lookup(id string) (host.Widget, bool) {
	w, ok := r[id]
	return w, ok
}
func (fakeRegistry) Init(context.Context, *html.Node, string) error    { return nil }
func (fakeRegistry) Destroy(context.Context, *html.Node, string) error { return nil }

func TestValueRoundTrip(t *testing.T) {
	doc := mustDoc(t)
	widgets := fakeRegistry{"slider": {value: "0.5"}}

	tests := []struct {
		id      string
		initial string
		set     string
		want    string
	}{
		{"name", "Ada", "Grace", "Grace"},
		{"agree", "false", "true", "true"},
		{"colors", "", "blue red", "red blue"},
		{"country", "", "us2", "us2"},
		{"notes", "hello", "bye", "bye"},
		{"out", "42", "43", "43"},
		{"when", "2020-01-01T10:00", "2021-02-03T11:30", "2021-02-03T11:30"},
		{"slider", "0.5", "0.75", "0.75"},
		{"country", "us2", "missing", ""},
	}

	for _, tt := range tests {
		t.Run(tt.id+"="+tt.set, func(t *testing.T) {
			el := dom.ElementByID(doc, tt.id)
			kind := Classify(el)
			got, ok := Value(el, kind, widgets)
			if !ok || got != tt.initial {
				t.Fatalf("Value() = %q, %v, want %q", got, ok, tt.initial)
			}
			if err := SetValue(el, kind, tt.set, widgets); err != nil {
				t.Fatalf("SetValue() error = %v", err)
			}
			if got, _ := Value(el, kind, widgets); got != tt.want {
				t.Errorf("Value() after set = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTriggerHasNoValue(t *testing.T) {
	doc := mustDoc(t)
	el := dom.ElementByID(doc, "go")
	if _, ok := Value(el, Classify(el), nil); ok {
		t.Error("expected trigger to have no value")
	}
}

func TestCheckboxItemClasses(t *testing.T) {
	doc := mustDoc(t)
	el := dom.ElementByID(doc, "colors")
	if err := SetValue(el, KindSelectFull, "blue", nil); err != nil {
		t.Fatalf("SetValue() error = %v", err)
	}
	items := dom.ByClass(el, "xforms-selected")
	if len(items) != 1 || dom.AttrOr(dom.ByTag(items[0], "input"), "value", "") != "blue" {
		t.Errorf("expected only the blue item to be selected, got %d items", len(items))
	}
}

func TestEffectiveIDs(t *testing.T) {
	tests := []struct {
		name, got, want string
	}{
		{"append no suffix", AppendToID("foo", "≡≡l"), "foo≡≡l"},
		{"append with suffix", AppendToID("foo⊙1-2", "≡≡l"), "foo≡≡l⊙1-2"},
		{"no suffix", IDNoSuffix("foo⊙1-2"), "foo"},
		{"suffix", IDSuffix("foo⊙1-2"), "1-2"},
		{"repeat suffix on plain id", AppendRepeatSuffix("foo", "-3"), "foo⊙3"},
		{"repeat suffix on repeated id", AppendRepeatSuffix("foo⊙1", "3"), "foo⊙1-3"},
		{"empty repeat suffix", AppendRepeatSuffix("foo", ""), "foo"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestFindLHHA(t *testing.T) {
	doc, err := dom.ParseString(`<div>
		<span id="c⊙1" class="xforms-control xforms-input"><label class="xforms-label">inside</label><input></span>
		<span id="c≡≡t⊙1" class="xforms-hint">by id</span>
	</div>`)
	if err != nil {
		t.Fatalf("ParseString() error = %v", err)
	}
	el := dom.ElementByID(doc, "c⊙1")

	if got := dom.TextContent(FindLHHA(doc, el, Hint)); got != "by id" {
		t.Errorf("hint = %q", got)
	}
	if got := dom.TextContent(FindLHHA(doc, el, Label)); got != "inside" {
		t.Errorf("label = %q", got)
	}
	if FindLHHA(doc, el, Alert) != nil {
		t.Error("expected no alert")
	}
}
