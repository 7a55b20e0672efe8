package call

import (
	"context"

	"github.com/google/uuid"
)

// Invocation is one in-flight call of an intercepted method.
type Invocation struct {
	ID     string
	Target any
	Method *Method

	args  []any
	items *Items
}

// NewInvocation creates an invocation over args. args is used as the backing
// array of every view and is padded with zero values when it is shorter than
// the formal parameter list.
func NewInvocation(target any, method *Method, args []any) *Invocation {
	for len(args) < len(method.Params) {
		args = append(args, Zero(method.Params[len(args)].Type))
	}

	return &Invocation{
		ID:     uuid.New().String(),
		Target: target,
		Method: method,
		args:   args,
		items:  newItems(),
	}
}

// Args returns the backing argument array
func (inv *Invocation) Args() []any {
	return inv.args
}

// Arguments returns a view over every parameter
func (inv *Invocation) Arguments() *ParameterCollection {
	return newCollection(inv.args, inv.Method.Params, func(Param) bool { return true })
}

// Inputs returns a view over the parameters that carry an incoming value
func (inv *Invocation) Inputs() *ParameterCollection {
	return newCollection(inv.args, inv.Method.Params, func(p Param) bool { return p.Direction.IsInput() })
}

// Items returns the per-invocation value bag
func (inv *Invocation) Items() *Items {
	return inv.items
}

// Context returns the first context.Context argument, or context.Background
// when the method takes none.
func (inv *Invocation) Context() context.Context {
	if i := inv.Method.ContextIndex(); i >= 0 {
		if ctx, ok := inv.args[i].(context.Context); ok && ctx != nil {
			return ctx
		}
	}
	return context.Background()
}

// SetContext replaces the context argument. It reports false when the method
// takes no context.
func (inv *Invocation) SetContext(ctx context.Context) bool {
	i := inv.Method.ContextIndex()
	if i < 0 {
		return false
	}
	inv.args[i] = ctx
	return true
}

// CreateReturn builds a successful outcome carrying values
func (inv *Invocation) CreateReturn(values ...any) *Return {
	r := &Return{inv: inv, values: append([]any(nil), values...)}
	for len(r.values) < len(inv.Method.Results) {
		r.values = append(r.values, Zero(inv.Method.Results[len(r.values)]))
	}
	return r
}

// CreateFailure builds a failed outcome
func (inv *Invocation) CreateFailure(err error) *Return {
	return &Return{inv: inv, err: err}
}
