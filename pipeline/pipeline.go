package pipeline

import (
	"errors"
	"fmt"

	"github.com/lubkli/IoCBuilder-sub000/call"
)

// ErrNilReturn is the failure recorded when a handler completes without
// producing a Return
var ErrNilReturn = errors.New("pipeline: handler returned no result")

// InvokeFunc invokes one stage of the chain
type InvokeFunc func(inv *call.Invocation, getNext GetNextFunc) *call.Return

// GetNextFunc returns the invoke function of the next stage: the next
// handler, or the terminal delegate once the handlers are exhausted.
type GetNextFunc func() InvokeFunc

// Handler is one unit of interception logic in the chain
type Handler interface {
	// Invoke processes the invocation and calls getNext()(inv, getNext) to continue
	Invoke(inv *call.Invocation, getNext GetNextFunc) *call.Return

	// Name returns the handler name for logging and debugging
	Name() string
}

// HandlerFunc is a function adapter for Handler
type HandlerFunc struct {
	name string
	fn   InvokeFunc
}

// NewHandlerFunc creates a new function-based handler
func NewHandlerFunc(name string, fn InvokeFunc) *HandlerFunc {
	return &HandlerFunc{name: name, fn: fn}
}

// Invoke implements Handler
func (h *HandlerFunc) Invoke(inv *call.Invocation, getNext GetNextFunc) *call.Return {
	return h.fn(inv, getNext)
}

// Name implements Handler
func (h *HandlerFunc) Name() string {
	return h.name
}

// HandlerMap maps method keys to their ordered handler lists
type HandlerMap map[call.MethodKey][]Handler

// Add appends handlers to the list of key
func (m HandlerMap) Add(key call.MethodKey, handlers ...Handler) {
	m[key] = append(m[key], handlers...)
}

// Clone returns a copy of m whose lists can be modified independently
func (m HandlerMap) Clone() HandlerMap {
	out := make(HandlerMap, len(m))
	for k, hs := range m {
		out[k] = append([]Handler(nil), hs...)
	}
	return out
}

// Pipeline is an immutable ordered list of handlers. It keeps no per-call
// state and can be invoked concurrently.
type Pipeline struct {
	handlers []Handler
}

// Empty is the pass-through pipeline
var Empty = New()

// New creates a pipeline over a copy of handlers
func New(handlers ...Handler) *Pipeline {
	return &Pipeline{handlers: append([]Handler(nil), handlers...)}
}

// Len returns the number of handlers
func (p *Pipeline) Len() int {
	return len(p.handlers)
}

// Handlers returns a copy of the handler list
func (p *Pipeline) Handlers() []Handler {
	return append([]Handler(nil), p.handlers...)
}

// Names returns the handler names in order
func (p *Pipeline) Names() []string {
	names := make([]string, len(p.handlers))
	for i, h := range p.handlers {
		names[i] = h.Name()
	}
	return names
}

// Invoke runs inv through the chain. With no handlers, terminal is called
// directly with a nil GetNextFunc.
func (p *Pipeline) Invoke(inv *call.Invocation, terminal InvokeFunc) *call.Return {
	if len(p.handlers) == 0 {
		return terminal(inv, nil)
	}
	return invokeHandler(p.handlers[0], inv, p.next(0, terminal))
}

// next returns the continuation of stage i. Every continuation is bound to
// its position, so invoking one twice replays the same downstream chain.
func (p *Pipeline) next(i int, terminal InvokeFunc) GetNextFunc {
	return func() InvokeFunc {
		if i+1 >= len(p.handlers) {
			return terminal
		}
		handler := p.handlers[i+1]
		getNext := p.next(i+1, terminal)
		return func(inv *call.Invocation, _ GetNextFunc) *call.Return {
			return invokeHandler(handler, inv, getNext)
		}
	}
}

// invokeHandler runs one handler and turns a nil outcome into a failure, so
// upstream handlers always receive a Return.
func invokeHandler(h Handler, inv *call.Invocation, getNext GetNextFunc) *call.Return {
	if ret := h.Invoke(inv, getNext); ret != nil {
		return ret
	}
	return inv.CreateFailure(fmt.Errorf("%w: %s", ErrNilReturn, h.Name()))
}
