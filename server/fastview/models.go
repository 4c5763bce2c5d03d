// fastview pushes idempotent element updates from server-side views to a
// page over a websocket: a view renders its initial html once, then emits
// element updates whenever its view-model changes.
package fastview

import (
	"html/template"
)

// EleUpdate is an element identifier and a set of operations to apply to its attributes/content.
type EleUpdate struct {
	// The id by which to find the element
	EleId string
	// Op keys are attrib keys or 'textContent', values are the strings to which these are set.
	// Example: ('x','123') means 'set attribute 'x' to 123. 'textContent' is a reserved key:
	// ('textContent','abc') means 'set ele.textContent to abc'.
	Ops []Op
}

// Op is a key and value. For example an html attribute and its new value.
type Op struct {
	Key   string
	Value string
}

// ViewComponent is a server-side view over some view-model.
type ViewComponent[ViewModel any] interface {
	// Parse adds the view's template definition to @parent, inheriting its
	// func-map, and returns the name under which it was defined.
	Parse(parent *template.Template) (string, error)
	// Update returns the element updates that bring a rendered view up to date with @vm.
	Update(vm ViewModel) []EleUpdate
}
