package policy

import (
	"reflect"
	"sync"
)

// Registry is the programmatic alternative to Marked, and the only way to
// mark interfaces.
type Registry struct {
	marks map[reflect.Type]Markers
	mu    sync.RWMutex
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{marks: make(map[reflect.Type]Markers)}
}

// Mark appends markers to method of t. Pointer types are marked on their
// element type.
func (r *Registry) Mark(t reflect.Type, method string, markers ...Marker) {
	t = indirect(t)

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.marks[t] == nil {
		r.marks[t] = make(Markers)
	}
	r.marks[t][method] = append(r.marks[t][method], markers...)
}

// MarkType appends markers to method of T
func MarkType[T any](r *Registry, method string, markers ...Marker) {
	r.Mark(reflect.TypeOf((*T)(nil)).Elem(), method, markers...)
}

// Markers returns the markers declared on t itself: those of its
// InterceptionMarkers method, when not promoted from an embedded type,
// followed by registered ones.
func (r *Registry) Markers(t reflect.Type) Markers {
	t = indirect(t)
	out := make(Markers)

	for name, ms := range declared(t) {
		out[name] = append(out[name], ms...)
	}

	if r != nil {
		r.mu.RLock()
		for name, ms := range r.marks[t] {
			out[name] = append(out[name], ms...)
		}
		r.mu.RUnlock()
	}

	return out
}

var markedType = reflect.TypeOf((*Marked)(nil)).Elem()

func declared(t reflect.Type) Markers {
	own := raw(t)
	if own == nil || t.Kind() != reflect.Struct {
		return own
	}

	// A promoted InterceptionMarkers belongs to the embedded type.
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.Anonymous && reflect.DeepEqual(own, raw(indirect(f.Type))) {
			return nil
		}
	}
	return own
}

func raw(t reflect.Type) Markers {
	if t == nil || t.Kind() == reflect.Interface || !reflect.PointerTo(t).Implements(markedType) {
		return nil
	}
	return reflect.New(t).Interface().(Marked).InterceptionMarkers()
}

func indirect(t reflect.Type) reflect.Type {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}
