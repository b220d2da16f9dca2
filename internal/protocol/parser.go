package protocol

import (
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/orbeon/orbeon-forms-sub002/internal/report"
)

// element is the generic tree the XML response is first read into
type element struct {
	name     string
	attrs    map[string]string
	children []*element
	text     strings.Builder
	line     int
}

func (e *element) attr(name string) (string, bool) {
	v, ok := e.attrs[name]
	return v, ok
}

func (e *element) attrOr(name, def string) string {
	if v, ok := e.attrs[name]; ok {
		return v
	}
	return def
}

func (e *element) optString(name string) *string {
	if v, ok := e.attrs[name]; ok {
		return &v
	}
	return nil
}

func (e *element) optBool(name string) *bool {
	if v, ok := e.attrs[name]; ok {
		b := v == "true"
		return &b
	}
	return nil
}

func (e *element) child(name string) *element {
	for _, c := range e.children {
		if c.name == name {
			return c
		}
	}
	return nil
}

// childText returns the text of the named child and whether it was present
func (e *element) childText(name string) (string, bool) {
	if c := e.child(name); c != nil {
		return c.text.String(), true
	}
	return "", false
}

// readTree reads the whole document, ignoring namespace prefixes
func readTree(r io.Reader) (*element, error) {
	decoder := xml.NewDecoder(r)
	var root *element
	var stack []*element

	for {
		tok, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			line, _ := decoder.InputPos()
			return nil, &report.ParseError{Line: line, Err: err}
		}

		switch t := tok.(type) {
		case xml.StartElement:
			line, _ := decoder.InputPos()
			el := &element{name: t.Name.Local, attrs: make(map[string]string, len(t.Attr)), line: line}
			for _, a := range t.Attr {
				if a.Name.Space == "xmlns" || a.Name.Local == "xmlns" {
					continue
				}
				el.attrs[a.Name.Local] = a.Value
			}
			if len(stack) > 0 {
				parent := stack[len(stack)-1]
				parent.children = append(parent.children, el)
			} else if root == nil {
				root = el
			}
			stack = append(stack, el)
		case xml.EndElement:
			stack = stack[:len(stack)-1]
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].text.Write(t)
			}
		}
	}

	if root == nil {
		return nil, &report.ParseError{Err: errors.New("empty response")}
	}
	return root, nil
}

// Parse decodes one server response. Any error is a *report.ParseError and
// means nothing from the response may be applied.
func Parse(r io.Reader) (*Batch, error) {
	root, err := readTree(r)
	if err != nil {
		return nil, err
	}
	if root.name != "event-response" {
		return nil, &report.ParseError{Line: root.line, Err: fmt.Errorf("unexpected root element %q", root.name)}
	}

	batch := &Batch{}
	for _, c := range root.children {
		switch c.name {
		case "action":
			group, err := parseGroup(c)
			if err != nil {
				return nil, err
			}
			batch.Groups = append(batch.Groups, group)
		case "errors":
			errs, err := parseErrors(c)
			if err != nil {
				return nil, err
			}
			batch.Errors = append(batch.Errors, errs...)
		}
	}
	return batch, nil
}

// ParseString decodes a response held in memory
func ParseString(s string) (*Batch, error) {
	return Parse(strings.NewReader(s))
}

func parseGroup(action *element) (*ActionGroup, error) {
	group := &ActionGroup{}
	for _, c := range action.children {
		if c.name == "control-values" {
			if err := parseDetails(group, c); err != nil {
				return nil, err
			}
			continue
		}
		a, err := parseAction(c)
		if err != nil {
			return nil, err
		}
		if a != nil {
			group.Actions = append(group.Actions, a)
		}
	}
	return group, nil
}

func parseDetails(group *ActionGroup, values *element) error {
	for _, c := range values.children {
		switch c.name {
		case "delete-repeat-elements":
			count, err := parseInt(c, "count", 0)
			if err != nil {
				return err
			}
			group.Deletions = append(group.Deletions, RepeatDeletion{
				RepeatID:      c.attrOr("id", ""),
				ParentIndexes: c.attrOr("parent-indexes", ""),
				Count:         count,
			})
		case "control":
			detail, err := parseControl(c)
			if err != nil {
				return err
			}
			group.Details = append(group.Details, detail)
		case "init":
			detail := &InitDetail{
				ID:       c.attrOr("id", ""),
				Relevant: c.optBool("relevant"),
				Readonly: c.optBool("readonly"),
			}
			if v, ok := c.childText("value"); ok {
				detail.Value = &v
			}
			group.Details = append(group.Details, detail)
		case "inner-html":
			detail := &InnerHTML{ID: c.attrOr("id", "")}
			detail.HTML, _ = c.childText("value")
			detail.Init, _ = c.childText("init")
			detail.Destroy, _ = c.childText("destroy")
			group.Details = append(group.Details, detail)
		case "attribute":
			group.Details = append(group.Details, &AttributeChange{
				For:   c.attrOr("for", ""),
				Name:  c.attrOr("name", ""),
				Value: c.text.String(),
			})
		case "text":
			group.Details = append(group.Details, &TextChange{
				For:   c.attrOr("for", ""),
				Value: c.text.String(),
			})
		case "repeat-iteration":
			iteration, err := parseInt(c, "iteration", 0)
			if err != nil {
				return err
			}
			group.Details = append(group.Details, &RepeatIteration{
				RepeatID:  c.attrOr("id", ""),
				Iteration: iteration,
				Relevant:  c.attrOr("relevant", "true") == "true",
			})
		case "dialog":
			group.Details = append(group.Details, &DialogState{
				ID:       c.attrOr("id", ""),
				Visible:  c.attrOr("visibility", "") == "visible",
				Neighbor: c.attrOr("neighbor", ""),
			})
		}
	}
	return nil
}

func parseControl(c *element) (*ControlDetail, error) {
	d := &ControlDetail{
		ID:           c.attrOr("id", ""),
		Static:       c.optBool("static"),
		Relevant:     c.optBool("relevant"),
		Readonly:     c.optBool("readonly"),
		Required:     c.optBool("required"),
		Visited:      c.optBool("visited"),
		Empty:        c.optString("empty"),
		Class:        c.optString("class"),
		Level:        c.optString("level"),
		SchemaType:   c.optString("type"),
		Label:        c.optString("label"),
		Hint:         c.optString("hint"),
		Title:        c.optString("title"),
		Help:         c.optString("help"),
		Alert:        c.optString("alert"),
		Alt:          c.optString("alt"),
		State:        c.optString("state"),
		Filename:     c.optString("filename"),
		Mediatype:    c.optString("mediatype"),
		UploadSize:   c.optString("size"),
		Accept:       c.optString("accept"),
		Size:         c.optString("size"),
		Maxlength:    c.optString("maxlength"),
		Autocomplete: c.optString("autocomplete"),
		Cols:         c.optString("cols"),
		Rows:         c.optString("rows"),

		ProgressState: c.optString("progress-state"),
	}

	var err error
	if d.ProgressReceived, err = parseOptInt64(c, "progress-received"); err != nil {
		return nil, err
	}
	if d.ProgressExpected, err = parseOptInt64(c, "progress-expected"); err != nil {
		return nil, err
	}

	hasValue := false
	for _, child := range c.children {
		switch child.name {
		case "itemset":
			itemset, err := parseItemset(child)
			if err != nil {
				return nil, err
			}
			d.Itemset = itemset
		case "value":
			v := child.text.String()
			d.Value = &v
			hasValue = true
		case "case":
			d.Cases = append(d.Cases, CaseToggle{
				ID:      child.attrOr("id", ""),
				Visible: child.attrOr("visibility", "") == "visible",
			})
		}
	}

	// Older responses carry the value as the text of the control element
	if !hasValue {
		if text := c.text.String(); strings.TrimSpace(text) != "" {
			d.Value = &text
		}
	}
	return d, nil
}

func parseItemset(el *element) (*Itemset, error) {
	itemset := &Itemset{Group: el.attrOr("group", "")}
	data := strings.TrimSpace(el.text.String())
	if data == "" || data == "null" {
		itemset.Items = []ItemsetNode{}
		return itemset, nil
	}
	if err := json.Unmarshal([]byte(data), &itemset.Items); err != nil {
		return nil, &report.ParseError{Line: el.line, Err: fmt.Errorf("itemset: %w", err)}
	}
	if itemset.Items == nil {
		itemset.Items = []ItemsetNode{}
	}
	return itemset, nil
}

func parseAction(c *element) (Action, error) {
	switch c.name {
	case "repeat-hierarchy":
		return &RepeatHierarchy{Data: strings.TrimSpace(c.text.String())}, nil
	case "repeat-indexes":
		a := &RepeatIndexes{}
		for _, ri := range c.children {
			if ri.name != "repeat-index" {
				continue
			}
			index, err := parseInt(ri, "new-index", 0)
			if err != nil {
				return nil, err
			}
			a.Indexes = append(a.Indexes, RepeatIndex{RepeatID: ri.attrOr("id", ""), NewIndex: index})
		}
		return a, nil
	case "poll":
		a := &Poll{}
		if _, ok := c.attr("delay"); ok {
			ms, err := parseInt(c, "delay", 0)
			if err != nil {
				return nil, err
			}
			delay := time.Duration(ms) * time.Millisecond
			a.Delay = &delay
		}
		return a, nil
	case "server-events":
		return &ServerEvents{Data: strings.TrimSpace(c.text.String())}, nil
	case "submission":
		return &Submission{
			ShowProgress: c.attrOr("show-progress", "true") != "false",
			Replace:      c.attrOr("replace", ""),
			Target:       c.attrOr("target", ""),
			Action:       c.attrOr("action", ""),
		}, nil
	case "message":
		return &Message{Level: c.attrOr("level", "modal"), Text: c.text.String()}, nil
	case "load":
		return &Load{
			Resource:     c.attrOr("resource", ""),
			Show:         c.attrOr("show", "replace"),
			Target:       c.attrOr("target", ""),
			ShowProgress: c.attrOr("show-progress", "true") != "false",
		}, nil
	case "focus":
		return &Focus{ControlID: c.attrOr("control-id", "")}, nil
	case "blur":
		return &Blur{ControlID: c.attrOr("control-id", "")}, nil
	case "script":
		a := &Script{
			Name:       c.attrOr("name", ""),
			TargetID:   c.attrOr("target-id", ""),
			ObserverID: c.attrOr("observer-id", ""),
		}
		for _, p := range c.children {
			if p.name == "param" {
				a.Params = append(a.Params, p.text.String())
			}
		}
		return a, nil
	case "callback":
		return &Callback{Name: c.attrOr("name", "")}, nil
	case "help":
		return &Help{ControlID: c.attrOr("control-id", "")}, nil
	}
	return nil, nil
}

func parseErrors(el *element) ([]ServerError, error) {
	var errs []ServerError
	for _, c := range el.children {
		if c.name != "error" {
			continue
		}
		line, err := parseInt(c, "line", 0)
		if err != nil {
			return nil, err
		}
		col, err := parseInt(c, "col", 0)
		if err != nil {
			return nil, err
		}
		errs = append(errs, ServerError{
			Exception: c.attrOr("exception", ""),
			File:      c.attrOr("file", ""),
			Line:      line,
			Col:       col,
			Message:   strings.TrimSpace(c.text.String()),
		})
	}
	return errs, nil
}

func parseInt(el *element, name string, def int) (int, error) {
	v, ok := el.attr(name)
	if !ok || v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, &report.ParseError{Line: el.line, Err: fmt.Errorf("%s/@%s: %w", el.name, name, err)}
	}
	return n, nil
}

func parseOptInt64(el *element, name string) (*int64, error) {
	v, ok := el.attr(name)
	if !ok || v == "" {
		return nil, nil
	}
	n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil {
		return nil, &report.ParseError{Line: el.line, Err: fmt.Errorf("%s/@%s: %w", el.name, name, err)}
	}
	return &n, nil
}
