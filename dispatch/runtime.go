// Package dispatch routes intercepted calls through their handler pipelines.
package dispatch

import (
	"fmt"
	"log/slog"
	"reflect"
	"runtime/debug"
	"sync"

	"github.com/lubkli/IoCBuilder-sub000/call"
	"github.com/lubkli/IoCBuilder-sub000/pipeline"
)

// ErrNilReturn is returned when a handler or the terminal stage completes
// without producing a Return
var ErrNilReturn = pipeline.ErrNilReturn

// RealCall performs the real, uninterrupted call. It reads its inputs from
// args and writes by-reference outputs back into args.
type RealCall func(args []any) ([]any, error)

// Runtime is the per-proxy-instance entry point of every intercepted call.
// It is safe for concurrent use once created.
type Runtime struct {
	pipelines map[call.MethodKey]*pipeline.Pipeline
	resolved  sync.Map // *call.Method -> *pipeline.Pipeline
	logger    *slog.Logger
}

// Option configures a Runtime
type Option func(*Runtime)

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runtime) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRuntime builds one pipeline per entry of handlers
func NewRuntime(handlers pipeline.HandlerMap, options ...Option) *Runtime {
	r := &Runtime{
		pipelines: make(map[call.MethodKey]*pipeline.Pipeline, len(handlers)),
		logger:    slog.Default(),
	}

	for _, opt := range options {
		opt(r)
	}

	for key, hs := range handlers {
		r.pipelines[key] = pipeline.New(hs...)
	}

	return r
}

// Pipeline returns the pipeline that applies to m, or pipeline.Empty
func (r *Runtime) Pipeline(m *call.Method) *pipeline.Pipeline {
	if p, ok := r.resolved.Load(m); ok {
		return p.(*pipeline.Pipeline)
	}

	p := r.resolve(m)
	actual, _ := r.resolved.LoadOrStore(m, p)
	return actual.(*pipeline.Pipeline)
}

// Keys returns the method keys that have a pipeline
func (r *Runtime) Keys() []call.MethodKey {
	keys := make([]call.MethodKey, 0, len(r.pipelines))
	for k := range r.pipelines {
		keys = append(keys, k)
	}
	return keys
}

// resolve tries, in order: the exact key, the generic definition key, a
// same-named method on an embedded generic base definition, and the key of
// the embedded type that actually declares a promoted method.
func (r *Runtime) resolve(m *call.Method) *pipeline.Pipeline {
	if p, ok := r.pipelines[m.Key()]; ok {
		return p
	}

	if m.IsGeneric() {
		if p, ok := r.pipelines[m.DefinitionKey()]; ok {
			return p
		}
	}

	bases := embedded(m.Owner)
	for _, base := range bases {
		if !call.IsGeneric(base) || !declares(base, m.Name) {
			continue
		}
		if p, ok := r.pipelines[call.DefinitionKeyOf(base, m.Name)]; ok {
			return p
		}
	}

	for _, base := range bases {
		if !declares(base, m.Name) {
			continue
		}
		if p, ok := r.pipelines[call.KeyOf(base, m.Name)]; ok {
			return p
		}
	}

	r.logger.Debug("no handlers for method", "method", m.String())
	return pipeline.Empty
}

// Invoke runs one call of m on target through its pipeline. args must have
// one slot per formal parameter; by-reference outputs are left in args.
//
// A failure of the real method is captured and stays visible to every handler
// still inside the pipeline. Once the pipeline unwinds, a captured
// *call.PanicError is re-panicked and any other error is returned unchanged.
func (r *Runtime) Invoke(target any, m *call.Method, args []any, real RealCall) ([]any, error) {
	inv := call.NewInvocation(target, m, args)

	ret := r.Pipeline(m).Invoke(inv, func(inv *call.Invocation, _ pipeline.GetNextFunc) *call.Return {
		return invokeReal(inv, real)
	})

	if ret == nil {
		return zeroResults(m), fmt.Errorf("%w: %s", ErrNilReturn, m)
	}

	if err := ret.Err(); err != nil {
		if pe, ok := err.(*call.PanicError); ok {
			panic(pe)
		}
		return zeroResults(m), err
	}

	return fitResults(m, ret.Values()), nil
}

func invokeReal(inv *call.Invocation, real RealCall) (ret *call.Return) {
	defer func() {
		if v := recover(); v != nil {
			if pe, ok := v.(*call.PanicError); ok {
				ret = inv.CreateFailure(pe)
				return
			}
			ret = inv.CreateFailure(call.NewPanicError(v, debug.Stack()))
		}
	}()

	values, err := real(inv.Args())
	if err != nil {
		return inv.CreateFailure(err)
	}
	return inv.CreateReturn(values...)
}

func zeroResults(m *call.Method) []any {
	values := make([]any, len(m.Results))
	for i, t := range m.Results {
		values[i] = call.Zero(t)
	}
	return values
}

func fitResults(m *call.Method, values []any) []any {
	out := zeroResults(m)
	copy(out, values)
	return out
}

// embedded returns the types embedded in t, breadth first, pointers stripped.
func embedded(t reflect.Type) []reflect.Type {
	var (
		out     []reflect.Type
		queue   = []reflect.Type{t}
		visited = map[reflect.Type]bool{}
	)

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for cur != nil && cur.Kind() == reflect.Pointer {
			cur = cur.Elem()
		}
		if cur == nil || cur.Kind() != reflect.Struct || visited[cur] {
			continue
		}
		visited[cur] = true

		for i := 0; i < cur.NumField(); i++ {
			f := cur.Field(i)
			if !f.Anonymous {
				continue
			}
			ft := f.Type
			for ft.Kind() == reflect.Pointer {
				ft = ft.Elem()
			}
			out = append(out, ft)
			queue = append(queue, ft)
		}
	}

	return out
}

func declares(t reflect.Type, name string) bool {
	if t.Kind() == reflect.Interface {
		_, ok := t.MethodByName(name)
		return ok
	}
	_, ok := reflect.PointerTo(t).MethodByName(name)
	return ok
}
