package proxy

import (
	"fmt"
	"reflect"

	"github.com/lubkli/IoCBuilder-sub000/call"
)

// Endpoint makes any object Remotable by dispatching on its exported methods.
// It is what a server exposes; wrap it with TransparentWrap and a contract to
// call it through a pipeline.
type Endpoint struct {
	target  any
	value   reflect.Value
	methods map[string]*call.Method
	fns     map[string]reflect.Value
}

// Expose returns an Endpoint over the exported methods of obj
func Expose(obj any) *Endpoint {
	e := &Endpoint{
		target:  obj,
		value:   reflect.ValueOf(obj),
		methods: make(map[string]*call.Method),
		fns:     make(map[string]reflect.Value),
	}

	t := reflect.TypeOf(obj)
	if t == nil {
		return e
	}
	for i := 0; i < t.NumMethod(); i++ {
		rm := t.Method(i)
		if !rm.IsExported() {
			continue
		}
		e.methods[rm.Name] = call.MethodOf(t, rm)
		e.fns[rm.Name] = e.value.Method(i)
	}
	return e
}

// Target returns the exposed object
func (e *Endpoint) Target() any { return e.target }

// Method returns the descriptor of an exposed method
func (e *Endpoint) Method(name string) (*call.Method, bool) {
	m, ok := e.methods[name]
	return m, ok
}

// Dispatch calls method with positional args and writes by-reference outputs
// back into args.
func (e *Endpoint) Dispatch(method string, args []any) ([]any, error) {
	m, ok := e.methods[method]
	if !ok {
		return nil, fmt.Errorf("%w: %s on %T", ErrUnknownMethod, method, e.target)
	}
	if len(args) != len(m.Params) {
		return nil, fmt.Errorf("%w: %s takes %d, got %d", ErrArgumentCount, m, len(m.Params), len(args))
	}
	return callMethod(e.fns[method], m, args)
}
