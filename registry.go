package xforms

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/net/html"

	"github.com/orbeon/orbeon-forms-sub002/internal/dom"
)

// WidgetFactory creates the live widget of a control from its element
type WidgetFactory func(el *html.Node) (Widget, error)

// Destroyer is implemented by widgets holding resources
type Destroyer interface {
	Destroy() error
}

// WidgetDescriptor is one entry of the init and destroy payloads: a JSON
// array of {"id", "type"} objects
type WidgetDescriptor struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

// boundWidget is a widget bound to the control it was created for
type boundWidget struct {
	ControlID string
	Type      string
	Widget    Widget
}

// Registry is the default WidgetRegistry. It creates widgets with the
// factory registered for their type and indexes them both by control and by
// type.
//
// Thread-safe: safe for concurrent access from multiple goroutines.
type Registry struct {
	factories map[string]WidgetFactory
	byControl map[string]*boundWidget   // controlID → widget
	byType    map[string][]*boundWidget // type → widgets
	mu        sync.RWMutex
}

var _ WidgetRegistry = (*Registry)(nil)

// NewRegistry creates a new empty widget registry
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]WidgetFactory),
		byControl: make(map[string]*boundWidget),
		byType:    make(map[string][]*boundWidget),
	}
}

// RegisterType sets the factory used for widgets of a type
func (r *Registry) RegisterType(widgetType string, factory WidgetFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[widgetType] = factory
}

// Lookup returns the widget bound to a control
func (r *Registry) Lookup(controlID string) (Widget, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	bound, ok := r.byControl[controlID]
	if !ok {
		return nil, false
	}
	return bound.Widget, true
}

// Init creates the widgets listed in a descriptor. A control that already
// has a widget gets a new one. Entries that fail are skipped and reported
// together.
func (r *Registry) Init(ctx context.Context, root *html.Node, descriptor string) error {
	entries, err := parseDescriptor(descriptor)
	if err != nil {
		return err
	}

	var errs []error
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		r.mu.RLock()
		factory, ok := r.factories[entry.Type]
		r.mu.RUnlock()
		if !ok {
			errs = append(errs, fmt.Errorf("widget %s: no factory for type %q", entry.ID, entry.Type))
			continue
		}
		el := dom.ElementByID(root, entry.ID)
		if el == nil {
			errs = append(errs, fmt.Errorf("widget %s: element not found", entry.ID))
			continue
		}
		widget, err := factory(el)
		if err != nil {
			errs = append(errs, fmt.Errorf("widget %s: %w", entry.ID, err))
			continue
		}
		r.bind(&boundWidget{ControlID: entry.ID, Type: entry.Type, Widget: widget})
	}
	return errors.Join(errs...)
}

// Destroy releases the widgets listed in a descriptor. Unknown controls are
// ignored.
func (r *Registry) Destroy(ctx context.Context, _ *html.Node, descriptor string) error {
	entries, err := parseDescriptor(descriptor)
	if err != nil {
		return err
	}

	var errs []error
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		bound := r.unbind(entry.ID)
		if bound == nil {
			continue
		}
		if d, ok := bound.Widget.(Destroyer); ok {
			if err := d.Destroy(); err != nil {
				errs = append(errs, fmt.Errorf("widget %s: %w", entry.ID, err))
			}
		}
	}
	return errors.Join(errs...)
}

func (r *Registry) bind(bound *boundWidget) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.byControl[bound.ControlID]; ok {
		r.byType[old.Type] = removeWidget(r.byType[old.Type], old)
	}
	r.byControl[bound.ControlID] = bound
	r.byType[bound.Type] = append(r.byType[bound.Type], bound)
}

func (r *Registry) unbind(controlID string) *boundWidget {
	r.mu.Lock()
	defer r.mu.Unlock()

	bound, ok := r.byControl[controlID]
	if !ok {
		return nil
	}
	delete(r.byControl, controlID)
	r.byType[bound.Type] = removeWidget(r.byType[bound.Type], bound)

	// Clean up empty slices
	if len(r.byType[bound.Type]) == 0 {
		delete(r.byType, bound.Type)
	}
	return bound
}

// ControlsOfType returns the controls with a live widget of a type.
// Returns a copy, in creation order.
func (r *Registry) ControlsOfType(widgetType string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.byType[widgetType]))
	for _, bound := range r.byType[widgetType] {
		ids = append(ids, bound.ControlID)
	}
	return ids
}

// Count returns the number of live widgets
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byControl)
}

func parseDescriptor(descriptor string) ([]WidgetDescriptor, error) {
	if descriptor == "" {
		return nil, nil
	}
	var entries []WidgetDescriptor
	if err := json.Unmarshal([]byte(descriptor), &entries); err != nil {
		return nil, fmt.Errorf("invalid widget descriptor: %w", err)
	}
	return entries, nil
}

// removeWidget returns widgets without target
func removeWidget(widgets []*boundWidget, target *boundWidget) []*boundWidget {
	result := make([]*boundWidget, 0, len(widgets))
	for _, w := range widgets {
		if w != target {
			result = append(result, w)
		}
	}
	return result
}
