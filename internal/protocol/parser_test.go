package protocol

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/orbeon/orbeon-forms-sub002/internal/report"
)

const sampleResponse = `<xxf:event-response xmlns:xxf="http://orbeon.org/oxf/xml/xforms">
  <xxf:action>
    <xxf:control-values>
      <xxf:delete-repeat-elements id="lines" parent-indexes="" count="2"/>
      <xxf:control id="country" relevant="true" readonly="false" class="+a -b">
        <xxf:value>us2</xxf:value>
        <xxf:itemset group="g">[{"label":"United States","value":"us"},{"label":"Europe","children":[{"label":"France","value":"fr","attributes":{"class":"eu"}}]}]</xxf:itemset>
      </xxf:control>
      <xxf:future-record id="ignored"/>
      <xxf:inner-html id="section"><xxf:value>&lt;p&gt;hi&lt;/p&gt;</xxf:value><xxf:init>{}</xxf:init></xxf:inner-html>
      <xxf:dialog id="dlg" visibility="visible" neighbor="btn"/>
      <xxf:dialog id="other" visibility="hidden"/>
    </xxf:control-values>
    <xxf:repeat-indexes><xxf:repeat-index id="lines" new-index="3"/></xxf:repeat-indexes>
    <xxf:poll delay="500"/>
    <xxf:unknown-action/>
    <xxf:focus control-id="country"/>
    <xxf:script name="hello" target-id="t" observer-id="o"><xxf:param>1</xxf:param><xxf:param>2</xxf:param></xxf:script>
  </xxf:action>
  <xxf:errors>
    <xxf:error exception="NPE" file="a.xhtml" line="12" col="3">boom</xxf:error>
  </xxf:errors>
</xxf:event-response>`

func TestParseOrderAndKinds(t *testing.T) {
	batch, err := ParseString(sampleResponse)
	if err != nil {
		t.Fatalf("ParseString() error = %v", err)
	}
	if len(batch.Groups) != 1 {
		t.Fatalf("expected 1 group, got %d", len(batch.Groups))
	}
	group := batch.Groups[0]

	wantDeletions := []RepeatDeletion{{RepeatID: "lines", Count: 2}}
	if diff := cmp.Diff(wantDeletions, group.Deletions); diff != "" {
		t.Errorf("deletions mismatch (-want +got):\n%s", diff)
	}

	var targets []string
	for _, d := range group.Details {
		targets = append(targets, d.Target())
	}
	if diff := cmp.Diff([]string{"country", "section", "dlg", "other"}, targets); diff != "" {
		t.Errorf("detail order mismatch (-want +got):\n%s", diff)
	}

	var names []string
	for _, a := range group.Actions {
		names = append(names, a.ActionName())
	}
	if diff := cmp.Diff([]string{"repeat-indexes", "poll", "focus", "script"}, names); diff != "" {
		t.Errorf("action order mismatch (-want +got):\n%s", diff)
	}

	control := group.Details[0].(*ControlDetail)
	if control.Value == nil || *control.Value != "us2" {
		t.Errorf("control value = %v", control.Value)
	}
	if control.Itemset == nil || control.Itemset.Group != "g" || len(control.Itemset.Items) != 2 {
		t.Fatalf("unexpected itemset %+v", control.Itemset)
	}
	if !control.Itemset.Items[1].IsBranch() || control.Itemset.Items[1].Children[0].Class() != "eu" {
		t.Errorf("unexpected branch %+v", control.Itemset.Items[1])
	}
	if control.Readonly == nil || *control.Readonly {
		t.Errorf("readonly = %v", control.Readonly)
	}
	if control.Required != nil {
		t.Error("absent attribute decoded as present")
	}

	inner := group.Details[1].(*InnerHTML)
	if inner.HTML != "<p>hi</p>" || inner.Init != "{}" || inner.Destroy != "" {
		t.Errorf("unexpected inner-html %+v", inner)
	}

	if diff := cmp.Diff([]string{"dlg"}, group.DialogsToShow()); diff != "" {
		t.Errorf("DialogsToShow() mismatch (-want +got):\n%s", diff)
	}

	poll := group.Actions[1].(*Poll)
	if poll.Delay == nil || *poll.Delay != 500*time.Millisecond {
		t.Errorf("poll delay = %v", poll.Delay)
	}
	script := group.Actions[3].(*Script)
	if diff := cmp.Diff([]string{"1", "2"}, script.Params); diff != "" {
		t.Errorf("script params mismatch (-want +got):\n%s", diff)
	}

	wantErrors := []ServerError{{Exception: "NPE", File: "a.xhtml", Line: 12, Col: 3, Message: "boom"}}
	if diff := cmp.Diff(wantErrors, batch.Errors); diff != "" {
		t.Errorf("errors mismatch (-want +got):\n%s", diff)
	}
}

func TestParseLegacyControlText(t *testing.T) {
	batch, err := ParseString(`<event-response><action><control-values>
		<control id="x">2020-01-01</control>
		<control id="y" relevant="false">  </control>
	</control-values></action></event-response>`)
	if err != nil {
		t.Fatalf("ParseString() error = %v", err)
	}
	details := batch.Groups[0].Details
	if v := details[0].(*ControlDetail).Value; v == nil || *v != "2020-01-01" {
		t.Errorf("legacy value = %v", v)
	}
	if v := details[1].(*ControlDetail).Value; v != nil {
		t.Errorf("whitespace-only control text decoded as value %q", *v)
	}
}

func TestParseFailures(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"malformed xml", `<event-response><action></event-response>`},
		{"empty", ``},
		{"wrong root", `<html/>`},
		{"bad count", `<event-response><action><control-values><delete-repeat-elements id="r" count="two"/></control-values></action></event-response>`},
		{"bad itemset json", `<event-response><action><control-values><control id="c"><itemset>[{</itemset></control></control-values></action></event-response>`},
		{"bad poll delay", `<event-response><action><poll delay="soon"/></action></event-response>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			batch, err := ParseString(tt.input)
			if err == nil {
				t.Fatalf("expected error, got batch %+v", batch)
			}
			var parseErr *report.ParseError
			if !errors.As(err, &parseErr) {
				t.Errorf("expected *report.ParseError, got %T", err)
			}
		})
	}
}

func TestParseEmptyItemset(t *testing.T) {
	batch, err := ParseString(`<event-response><action><control-values><control id="c"><itemset/></control></control-values></action></event-response>`)
	if err != nil {
		t.Fatalf("ParseString() error = %v", err)
	}
	itemset := batch.Groups[0].Details[0].(*ControlDetail).Itemset
	if itemset == nil || itemset.Items == nil || len(itemset.Items) != 0 {
		t.Errorf("expected empty non-nil itemset, got %+v", itemset)
	}
}
