package xforms

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/net/html"

	"github.com/orbeon/orbeon-forms-sub002/internal/control"
	"github.com/orbeon/orbeon-forms-sub002/internal/dom"
	"github.com/orbeon/orbeon-forms-sub002/internal/schedule"
)

const pageHTML = `<html><body><form id="form">
<span id="repeat-begin-r" class="xforms-repeat-begin-end"></span>
<span class="xforms-repeat-delimiter"></span><span id="line⊙1" class="xforms-control xforms-input"><input value="a"></span>
<span class="xforms-repeat-delimiter"></span><span id="line⊙2" class="xforms-control xforms-input"><input value="b"></span>
<span class="xforms-repeat-delimiter"></span><span id="line⊙3" class="xforms-control xforms-input"><input value="c"></span>
<span id="repeat-end-r" class="xforms-repeat-begin-end"></span>
<span id="when" class="xforms-control xforms-input"><input id="when$xforms-input-1" value=""></span>
<span id="notes" class="xforms-control xforms-textarea"><textarea></textarea></span>
<span id="total" class="xforms-control xforms-output"><span class="xforms-output-output">0</span></span>
<span id="heading">Title</span>
<span id="save" class="xforms-control xforms-trigger"><button>Save</button></span>
<div id="dlg" class="xforms-dialog"></div>
</form></body></html>`

const endToEndResponse = `<xxf:event-response xmlns:xxf="http://orbeon.org/oxf/xml/xforms">
  <xxf:action>
    <xxf:control-values>
      <xxf:delete-repeat-elements id="r" parent-indexes="" count="1"/>
      <xxf:control id="when"><xxf:value>2020-01-01</xxf:value></xxf:control>
      <xxf:dialog id="dlg" visibility="visible" neighbor="save"/>
    </xxf:control-values>
  </xxf:action>
</xxf:event-response>`

type viewport bool

func (v viewport) Constrained() bool { return bool(v) }

type surface struct {
	shown []Diagnostic
}

func (s *surface) Show(d Diagnostic) { s.shown = append(s.shown, d) }

type navigator struct {
	calls []string
}

func (n *navigator) Submit(_ context.Context, s Submission) error {
	n.calls = append(n.calls, "submit "+s.Replace)
	return nil
}

func (n *navigator) Navigate(_ context.Context, url, target string, _ bool) error {
	n.calls = append(n.calls, "navigate "+url+" "+target)
	return nil
}

func newEngine(t *testing.T, h Host) *Engine {
	t.Helper()
	doc, err := html.Parse(strings.NewReader(pageHTML))
	if err != nil {
		t.Fatalf("html.Parse() error = %v", err)
	}
	e, err := New(doc, nil, h, WithLogger(log.New(io.Discard, "", 0)))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return e
}

func handle(t *testing.T, e *Engine, response string) *Result {
	t.Helper()
	res, err := e.HandleResponse(context.Background(), strings.NewReader(response))
	if err != nil {
		t.Fatalf("HandleResponse() error = %v", err)
	}
	return res
}

func iterations(e *Engine) int {
	return len(dom.ByClass(e.Document(), "xforms-repeat-delimiter"))
}

func valueOf(t *testing.T, e *Engine, id string) string {
	t.Helper()
	el := dom.ElementByID(e.Document(), id)
	if el == nil {
		t.Fatalf("element %q not found", id)
	}
	v, _ := control.Value(el, control.Classify(el), nil)
	return v
}

func dialogVisible(e *Engine) bool {
	return dom.HasClass(dom.ElementByID(e.Document(), "dlg"), "xforms-dialog-visible")
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	doc, _ := html.Parse(strings.NewReader(pageHTML))
	cfg := DefaultConfig()
	cfg.HighlightDepthCycle = 0
	if _, err := New(doc, cfg, Host{}); err == nil {
		t.Fatal("New() with invalid config succeeded")
	}
	if _, err := New(nil, nil, Host{}); err == nil {
		t.Fatal("New() with nil document succeeded")
	}
}

func TestEndToEndSynchronous(t *testing.T) {
	e := newEngine(t, Host{Viewport: viewport(false), Scheduler: schedule.NewManual()})

	res := handle(t, e, endToEndResponse)
	if err := res.Err(); err != nil {
		t.Fatalf("Result.Err() = %v", err)
	}
	if res.Applied != 3 || res.Deferred != 0 {
		t.Errorf("Applied = %d, Deferred = %d, want 3 and 0", res.Applied, res.Deferred)
	}
	if n := iterations(e); n != 2 {
		t.Errorf("iterations = %d, want 2", n)
	}
	if dom.ElementByID(e.Document(), "line⊙3") != nil {
		t.Error("deleted iteration still in the tree")
	}
	if got := valueOf(t, e, "when"); got != "2020-01-01" {
		t.Errorf("when = %q, want 2020-01-01", got)
	}
	if !dialogVisible(e) {
		t.Error("dialog not visible")
	}
	if info := e.State().Dialogs["dlg"]; !info.Visible || info.Neighbor != "save" {
		t.Errorf("dialog state = %+v", info)
	}
}

func TestEndToEndDeferred(t *testing.T) {
	clock := schedule.NewManual()
	e := newEngine(t, Host{Viewport: viewport(true), Scheduler: clock})
	var deferred *Result
	e.OnDeferred(func(r *Result) { deferred = r })

	res := handle(t, e, endToEndResponse)
	if res.Deferred != 1 || res.Applied != 1 {
		t.Fatalf("Applied = %d, Deferred = %d, want 1 and 1", res.Applied, res.Deferred)
	}
	// deletions are never deferred
	if n := iterations(e); n != 2 {
		t.Errorf("iterations = %d, want 2", n)
	}
	if got := valueOf(t, e, "when"); got != "" || dialogVisible(e) {
		t.Fatalf("group applied before the delay: when=%q", got)
	}
	if !e.HasPending() {
		t.Fatal("HasPending() = false")
	}

	if n := clock.Advance(199 * time.Millisecond); n != 0 {
		t.Fatalf("fired %d timers before the delay", n)
	}
	if n := clock.Advance(time.Millisecond); n != 1 {
		t.Fatalf("fired %d timers at the delay, want 1", n)
	}
	if deferred == nil || deferred.Applied != 2 || deferred.Err() != nil {
		t.Fatalf("deferred result = %+v", deferred)
	}
	if got := valueOf(t, e, "when"); got != "2020-01-01" {
		t.Errorf("when = %q, want 2020-01-01", got)
	}
	if !dialogVisible(e) {
		t.Error("dialog not visible after the delay")
	}
	if e.HasPending() {
		t.Error("HasPending() = true after firing")
	}
	if got := e.Metrics().GetMetrics().Deferrals; got != 1 {
		t.Errorf("Deferrals = %d, want 1", got)
	}
}

func TestPendingGroupsRunBeforeNextBatch(t *testing.T) {
	clock := schedule.NewManual()
	e := newEngine(t, Host{Viewport: viewport(true), Scheduler: clock})
	var deferred int
	e.OnDeferred(func(*Result) { deferred++ })

	handle(t, e, endToEndResponse)
	handle(t, e, `<event-response><action><control-values>
		<control id="when"><value>2021-02-02</value></control>
	</control-values></action></event-response>`)

	if deferred != 1 {
		t.Errorf("deferred callbacks = %d, want 1", deferred)
	}
	if got := valueOf(t, e, "when"); got != "2021-02-02" {
		t.Errorf("when = %q, want the value of the second batch", got)
	}
	if n := clock.Advance(time.Second); n != 0 {
		t.Errorf("flushed timer still fired %d time(s)", n)
	}
}

func TestFlushedGroupsDeferringAgainKeepOrder(t *testing.T) {
	clock := schedule.NewManual()
	e := newEngine(t, Host{Viewport: viewport(true), Scheduler: clock})
	var deferred int
	e.OnDeferred(func(*Result) { deferred++ })

	res := handle(t, e, `<event-response>
  <action><control-values>
    <dialog id="dlg" visibility="visible"/>
  </control-values></action>
  <action><control-values>
    <control id="when"><value>OLD</value></control>
    <dialog id="dlg" visibility="visible" neighbor="save"/>
  </control-values></action>
</event-response>`)
	if res.Deferred != 2 {
		t.Fatalf("Deferred = %d, want 2", res.Deferred)
	}

	handle(t, e, `<event-response><action><control-values>
		<control id="when"><value>NEW</value></control>
	</control-values></action></event-response>`)

	if got := valueOf(t, e, "when"); got != "NEW" {
		t.Errorf("when = %q, want NEW", got)
	}
	if deferred != 2 {
		t.Errorf("deferred callbacks = %d, want 2", deferred)
	}
	if e.HasPending() {
		t.Error("HasPending() = true after the next batch")
	}
	if n := clock.Pending(); n != 0 {
		t.Errorf("%d timer(s) still armed", n)
	}

	clock.Advance(time.Second)
	if got := valueOf(t, e, "when"); got != "NEW" {
		t.Errorf("when = %q after the delay, an older batch overwrote NEW", got)
	}
}

func TestEquivalentValuesAreNotRewritten(t *testing.T) {
	e := newEngine(t, Host{})

	handle(t, e, "<event-response><action><control-values>"+
		"<control id=\"notes\"><value>caf\u00e9</value></control>"+
		"</control-values></action></event-response>")
	res := handle(t, e, "<event-response><action><control-values>"+
		"<control id=\"notes\"><value>cafe\u0301</value></control>"+
		"</control-values></action></event-response>")
	if err := res.Err(); err != nil {
		t.Fatalf("Result.Err() = %v", err)
	}

	m := e.Metrics().GetMetrics()
	if m.ValuesWritten != 1 || m.ValuesKept != 0 {
		t.Errorf("written = %d, kept = %d, want 1 and 0", m.ValuesWritten, m.ValuesKept)
	}
	if got := valueOf(t, e, "notes"); got != "caf\u00e9" {
		t.Errorf("notes = %q", got)
	}
}

func TestCancelPending(t *testing.T) {
	clock := schedule.NewManual()
	e := newEngine(t, Host{Viewport: viewport(true), Scheduler: clock})
	handle(t, e, endToEndResponse)

	if !e.CancelPending() {
		t.Fatal("CancelPending() = false with a pending group")
	}
	if e.CancelPending() {
		t.Error("second CancelPending() = true")
	}
	clock.Advance(time.Second)
	if dialogVisible(e) {
		t.Error("cancelled group was applied")
	}
}

func TestFailingRecordIsIsolated(t *testing.T) {
	s := &surface{}
	e := newEngine(t, Host{Surface: s})

	res := handle(t, e, `<xxf:event-response xmlns:xxf="http://orbeon.org/oxf/xml/xforms">
  <xxf:action>
    <xxf:control-values>
      <xxf:control id="when"><xxf:value>2020-01-01</xxf:value></xxf:control>
      <xxf:control id="notes"><xxf:value>hello</xxf:value></xxf:control>
      <xxf:control id="total"><xxf:value>42</xxf:value></xxf:control>
      <xxf:control id="missing"><xxf:value>x</xxf:value></xxf:control>
      <xxf:text for="heading">Order</xxf:text>
      <xxf:attribute for="save" name="title">Save the order</xxf:attribute>
      <xxf:control id="line⊙1"><xxf:value>first</xxf:value></xxf:control>
      <xxf:control id="notes" readonly="true"/>
      <xxf:dialog id="dlg" visibility="visible"/>
      <xxf:control id="save" relevant="false"/>
    </xxf:control-values>
  </xxf:action>
</xxf:event-response>`)

	if res.Applied != 9 {
		t.Errorf("Applied = %d, want 9", res.Applied)
	}
	if len(res.Diagnostics) != 1 || res.Diagnostics[0].Kind != KindLookup {
		t.Fatalf("Diagnostics = %+v, want one lookup error", res.Diagnostics)
	}
	if len(s.shown) != 1 {
		t.Errorf("surface showed %d diagnostics, want 1", len(s.shown))
	}
	if !strings.Contains(res.Diagnostics[0].Message, "missing") {
		t.Errorf("diagnostic %q does not name the control", res.Diagnostics[0].Message)
	}

	for id, want := range map[string]string{
		"when":   "2020-01-01",
		"notes":  "hello",
		"total":  "42",
		"line⊙1": "first",
	} {
		if got := valueOf(t, e, id); got != want {
			t.Errorf("%s = %q, want %q", id, got, want)
		}
	}
	if got := dom.TextContent(dom.ElementByID(e.Document(), "heading")); got != "Order" {
		t.Errorf("heading = %q", got)
	}
	if got, _ := dom.Attr(dom.ElementByID(e.Document(), "save"), "title"); got != "Save the order" {
		t.Errorf("title = %q", got)
	}
	m := e.Metrics().GetMetrics()
	if m.RecordsApplied != 9 || m.RecordErrors != 1 {
		t.Errorf("metrics applied=%d errors=%d", m.RecordsApplied, m.RecordErrors)
	}
}

func TestIgnoreErrorsKeepsDiagnosticsOffSurface(t *testing.T) {
	doc, _ := html.Parse(strings.NewReader(pageHTML))
	cfg := DefaultConfig()
	cfg.IgnoreErrors = true
	s := &surface{}
	e, err := New(doc, cfg, Host{Surface: s}, WithLogger(log.New(io.Discard, "", 0)))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	res := handle(t, e, `<event-response><action><control-values>
		<control id="missing"><value>x</value></control>
	</control-values></action></event-response>`)
	if len(res.Diagnostics) != 1 {
		t.Fatalf("Diagnostics = %+v", res.Diagnostics)
	}
	if len(s.shown) != 0 {
		t.Errorf("surface showed %v in ignore mode", s.shown)
	}
}

func TestParseErrorLeavesTreeUntouched(t *testing.T) {
	e := newEngine(t, Host{})
	before := dom.Render(e.Document())

	res, err := e.HandleResponse(context.Background(), strings.NewReader(`<event-response><action>`))
	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("HandleResponse() error = %v, want *ParseError", err)
	}
	if len(res.Diagnostics) != 1 || res.Diagnostics[0].Kind != KindParse {
		t.Errorf("Diagnostics = %+v", res.Diagnostics)
	}
	if dom.Render(e.Document()) != before {
		t.Error("tree changed after a parse error")
	}
	if e.Metrics().GetMetrics().ParseFailures != 1 {
		t.Error("parse failure not counted")
	}
}

func TestServerErrorsAreReported(t *testing.T) {
	e := newEngine(t, Host{})
	res := handle(t, e, `<event-response>
  <errors>
    <error exception="NPE" file="form.xhtml" line="12" col="3">boom</error>
    <error>second</error>
  </errors>
</event-response>`)

	want := Diagnostics{
		{Kind: KindServer, Exception: "NPE", File: "form.xhtml", Line: 12, Col: 3, Message: "boom"},
		{Kind: KindServer, Message: "second"},
	}
	if diff := cmp.Diff(want, res.Diagnostics); diff != "" {
		t.Errorf("diagnostics mismatch (-want +got):\n%s", diff)
	}
}

func TestSubmissionReplacesPage(t *testing.T) {
	nav := &navigator{}
	e := newEngine(t, Host{Navigator: nav})

	res := handle(t, e, `<event-response><action>
		<submission replace="all" action="/save"/>
	</action></event-response>`)
	if !res.ReplacesPage {
		t.Error("ReplacesPage = false")
	}
	if diff := cmp.Diff([]string{"submit all"}, nav.calls); diff != "" {
		t.Errorf("calls mismatch (-want +got):\n%s", diff)
	}

	res = handle(t, e, `<event-response><action>
		<load resource="/doc" show="new"/>
	</action></event-response>`)
	if res.ReplacesPage {
		t.Error("ReplacesPage carried over to the next batch")
	}
}

func TestRepeatActionsAfterDetails(t *testing.T) {
	e := newEngine(t, Host{})
	res := handle(t, e, `<event-response><action>
		<control-values>
			<delete-repeat-elements id="r" parent-indexes="" count="1"/>
		</control-values>
		<repeat-hierarchy>r</repeat-hierarchy>
		<repeat-indexes><repeat-index id="r" new-index="2"/></repeat-indexes>
	</action></event-response>`)
	if err := res.Err(); err != nil {
		t.Fatalf("Result.Err() = %v", err)
	}
	if res.Applied != 3 {
		t.Errorf("Applied = %d, want 3", res.Applied)
	}
	if !dom.HasClass(dom.ElementByID(e.Document(), "line⊙2"), "xforms-repeat-selected-item-1") {
		t.Error("iteration 2 not highlighted")
	}
	if e.State().RepeatIndexes["r"] != 2 {
		t.Errorf("RepeatIndexes = %v", e.State().RepeatIndexes)
	}
}
