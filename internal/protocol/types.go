package protocol

import "time"

// Batch is one decoded server response
type Batch struct {
	Groups []*ActionGroup
	Errors []ServerError
}

// ActionGroup bundles the records of one action element. Deletions apply
// first, then details in document order, then actions in document order.
type ActionGroup struct {
	Deletions []RepeatDeletion
	Details   []Detail
	Actions   []Action
}

// DialogsToShow returns the ids of dialogs this group makes visible
func (g *ActionGroup) DialogsToShow() []string {
	var ids []string
	for _, d := range g.Details {
		if dialog, ok := d.(*DialogState); ok && dialog.Visible {
			ids = append(ids, dialog.ID)
		}
	}
	return ids
}

// Detail is a control-detail record. The set of implementations is closed.
type Detail interface {
	detail()
	// Target returns the id the record addresses
	Target() string
}

// Action is a top-level action record. The set of implementations is closed.
type Action interface {
	action()
	// ActionName returns the element name the action was decoded from
	ActionName() string
}

// RepeatDeletion removes trailing iterations of a repeat
type RepeatDeletion struct {
	RepeatID      string
	ParentIndexes string // "1-2" for a repeat nested in iteration 1 then 2, "" at top level
	Count         int
}

// ItemsetNode is one choice of an itemset. A node with children is a branch.
type ItemsetNode struct {
	Label      string            `json:"label"`
	Value      string            `json:"value,omitempty"`
	Children   []ItemsetNode     `json:"children,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
	Help       string            `json:"help,omitempty"`
	Hint       string            `json:"hint,omitempty"`
}

// IsBranch returns true if the node groups other nodes
func (n ItemsetNode) IsBranch() bool {
	return n.Children != nil
}

// Class returns the class attribute of the node, if any
func (n ItemsetNode) Class() string {
	return n.Attributes["class"]
}

// Itemset is a regenerated choice list
type Itemset struct {
	Group string // radio/checkbox name override
	Items []ItemsetNode
}

// CaseToggle selects or deselects a switch case
type CaseToggle struct {
	ID      string
	Visible bool
}

// ControlDetail carries the new state of one control. Nil fields were not sent.
type ControlDetail struct {
	ID string

	Static   *bool
	Relevant *bool
	Readonly *bool
	Required *bool
	Visited  *bool
	Empty    *string
	Class    *string
	Level    *string

	SchemaType *string

	Label *string
	Hint  *string
	Title *string
	Help  *string
	Alert *string
	Alt   *string

	// Upload
	State            *string
	Filename         *string
	Mediatype        *string
	UploadSize       *string
	Accept           *string
	ProgressState    *string
	ProgressReceived *int64
	ProgressExpected *int64

	// Input and textarea presentation
	Size         *string
	Maxlength    *string
	Autocomplete *string
	Cols         *string
	Rows         *string

	Itemset *Itemset
	Value   *string
	Cases   []CaseToggle
}

// HasPresentationAttrs reports whether input/textarea attributes accompany the record
func (c *ControlDetail) HasPresentationAttrs() bool {
	return c.Size != nil || c.Maxlength != nil || c.Autocomplete != nil || c.Cols != nil || c.Rows != nil
}

// InitDetail is a control newly becoming relevant
type InitDetail struct {
	ID       string
	Relevant *bool
	Readonly *bool
	Value    *string
}

// InnerHTML replaces the markup of a subtree
type InnerHTML struct {
	ID      string
	HTML    string
	Init    string // serialized widget init descriptor
	Destroy string // serialized widget destroy descriptor
}

// AttributeChange sets an attribute on a non-control element
type AttributeChange struct {
	For   string
	Name  string
	Value string
}

// TextChange sets the text of a non-control element
type TextChange struct {
	For   string
	Value string
}

// RepeatIteration changes the relevance of one iteration
type RepeatIteration struct {
	RepeatID  string
	Iteration int
	Relevant  bool
}

// DialogState shows or hides a dialog
type DialogState struct {
	ID       string
	Visible  bool
	Neighbor string
}

func (*ControlDetail) detail()   {}
func (*InitDetail) detail()      {}
func (*InnerHTML) detail()       {}
func (*AttributeChange) detail() {}
func (*TextChange) detail()      {}
func (*RepeatIteration) detail() {}
func (*DialogState) detail()     {}

func (d *ControlDetail) Target() string   { return d.ID }
func (d *InitDetail) Target() string      { return d.ID }
func (d *InnerHTML) Target() string       { return d.ID }
func (d *AttributeChange) Target() string { return d.For }
func (d *TextChange) Target() string      { return d.For }
func (d *RepeatIteration) Target() string { return d.RepeatID }
func (d *DialogState) Target() string     { return d.ID }

// RepeatHierarchy replaces the repeat tree. Data is "child parent,child parent,top".
type RepeatHierarchy struct {
	Data string
}

// RepeatIndex is the new current index of one repeat
type RepeatIndex struct {
	RepeatID string
	NewIndex int
}

// RepeatIndexes moves the current iteration of repeats
type RepeatIndexes struct {
	Indexes []RepeatIndex
}

// Poll asks the host to poll the server again
type Poll struct {
	Delay *time.Duration
}

// ServerEvents asks the host to send events back to the server
type ServerEvents struct {
	Data string
}

// Submission asks the host to submit the form
type Submission struct {
	ShowProgress bool
	Replace      string
	Target       string
	Action       string
}

// Message displays a modal message
type Message struct {
	Level string
	Text  string
}

// Load navigates to another resource
type Load struct {
	Resource     string
	Show         string
	Target       string
	ShowProgress bool
}

// Focus moves focus to a control
type Focus struct {
	ControlID string
}

// Blur removes focus from a control
type Blur struct {
	ControlID string
}

// Script invokes a named script
type Script struct {
	Name       string
	TargetID   string
	ObserverID string
	Params     []string
}

// Callback invokes a named callback
type Callback struct {
	Name string
}

// Help displays the help of a control
type Help struct {
	ControlID string
}

func (*RepeatHierarchy) action() {}
func (*RepeatIndexes) action()   {}
func (*Poll) action()            {}
func (*ServerEvents) action()    {}
func (*Submission) action()      {}
func (*Message) action()         {}
func (*Load) action()            {}
func (*Focus) action()           {}
func (*Blur) action()            {}
func (*Script) action()          {}
func (*Callback) action()        {}
func (*Help) action()            {}

func (*RepeatHierarchy) ActionName() string { return "repeat-hierarchy" }
func (*RepeatIndexes) ActionName() string   { return "repeat-indexes" }
func (*Poll) ActionName() string            { return "poll" }
func (*ServerEvents) ActionName() string    { return "server-events" }
func (*Submission) ActionName() string      { return "submission" }
func (*Message) ActionName() string         { return "message" }
func (*Load) ActionName() string            { return "load" }
func (*Focus) ActionName() string           { return "focus" }
func (*Blur) ActionName() string            { return "blur" }
func (*Script) ActionName() string          { return "script" }
func (*Callback) ActionName() string        { return "callback" }
func (*Help) ActionName() string            { return "help" }

// ServerError is one entry of the errors element
type ServerError struct {
	Exception string
	File      string
	Line      int
	Col       int
	Message   string
}
