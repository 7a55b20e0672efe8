package proxy

import (
	"fmt"
	"reflect"

	"github.com/lubkli/IoCBuilder-sub000/call"
	"github.com/lubkli/IoCBuilder-sub000/dispatch"
)

// Surrogate is one proxy instance: a target, the Type that describes it, and
// the Runtime its calls go through.
type Surrogate struct {
	typ     *Type
	runtime *dispatch.Runtime
	target  any
	value   reflect.Value
	fns     map[*call.Method]reflect.Value
}

func newSurrogate(t *Type, rt *dispatch.Runtime, target any) *Surrogate {
	if rt == nil {
		rt = dispatch.NewRuntime(nil)
	}

	s := &Surrogate{
		typ:     t,
		runtime: rt,
		target:  target,
		value:   reflect.ValueOf(target),
	}

	if t.mechanism != TransparentWrap {
		s.fns = make(map[*call.Method]reflect.Value, len(t.methods))
		for _, m := range t.methods {
			s.fns[m] = s.value.MethodByName(m.Name)
		}
	}

	return s
}

// Type returns the generated type of the proxy
func (s *Surrogate) Type() *Type { return s.typ }

// Target returns the wrapped object
func (s *Surrogate) Target() any { return s.target }

// Runtime returns the runtime calls are dispatched through
func (s *Surrogate) Runtime() *dispatch.Runtime { return s.runtime }

// Invoke calls m with the arguments exactly as the caller passed them: plain
// values for inputs and *call.Out / *call.Ref slots for by-reference
// parameters. Slot values are written back once the call succeeds.
func (s *Surrogate) Invoke(m *call.Method, args ...any) ([]any, error) {
	if len(args) != len(m.Params) {
		return nil, fmt.Errorf("%w: %s takes %d, got %d", ErrArgumentCount, m, len(m.Params), len(args))
	}

	backing := make([]any, len(args))
	for i, p := range m.Params {
		switch p.Direction {
		case call.DirectionOut:
			backing[i] = call.Zero(p.Type)
		case call.DirectionInOut:
			if v, ok := call.SlotValue(args[i]); ok {
				backing[i] = v
			} else {
				backing[i] = args[i]
			}
		default:
			backing[i] = args[i]
		}
	}

	values, err := s.runtime.Invoke(s.target, m, backing, s.realCall(m))
	if err != nil {
		return values, err
	}

	for i, p := range m.Params {
		if p.Direction.IsOutput() {
			call.SetSlot(args[i], backing[i])
		}
	}
	return values, nil
}

// MustInvoke is Invoke for methods without an error result: a failure that
// reaches the caller panics.
func (s *Surrogate) MustInvoke(m *call.Method, args ...any) []any {
	values, err := s.Invoke(m, args...)
	if err != nil {
		panic(err)
	}
	return values
}

// Call invokes the named method
func (s *Surrogate) Call(name string, args ...any) ([]any, error) {
	m, ok := s.typ.Method(name)
	if !ok {
		return nil, &GenerationError{Mechanism: s.typ.mechanism, Type: s.typ.original, Method: name, Err: ErrUnknownMethod}
	}
	return s.Invoke(m, args...)
}

// Dispatch makes every proxy Remotable. args hold plain values, one per
// parameter; by-reference outputs are written back into args.
func (s *Surrogate) Dispatch(method string, args []any) ([]any, error) {
	m, ok := s.typ.Method(method)
	if !ok {
		return nil, &GenerationError{Mechanism: s.typ.mechanism, Type: s.typ.original, Method: method, Err: ErrUnknownMethod}
	}
	if len(args) > len(m.Params) {
		return nil, fmt.Errorf("%w: %s takes %d, got %d", ErrArgumentCount, m, len(m.Params), len(args))
	}

	backing := make([]any, len(m.Params))
	copy(backing, args)
	for i, p := range m.Params {
		if p.Direction == call.DirectionOut {
			backing[i] = call.Zero(p.Type)
		}
	}

	values, err := s.runtime.Invoke(s.target, m, backing, s.realCall(m))
	if err != nil {
		return values, err
	}

	for i, p := range m.Params {
		if p.Direction.IsOutput() && i < len(args) {
			args[i] = backing[i]
		}
	}
	return values, nil
}

func (s *Surrogate) realCall(m *call.Method) dispatch.RealCall {
	if s.typ.mechanism == TransparentWrap {
		remote := s.target.(Remotable)
		return func(args []any) ([]any, error) {
			return remote.Dispatch(m.Name, args)
		}
	}

	fn := s.fns[m]
	return func(args []any) ([]any, error) {
		if !fn.IsValid() {
			return nil, &GenerationError{Mechanism: s.typ.mechanism, Type: s.typ.original, Method: m.Name, Err: ErrUnknownMethod}
		}
		return callMethod(fn, m, args)
	}
}

// callMethod calls fn with args, rebuilding fresh slots for by-reference
// parameters and copying their values back into args afterwards.
func callMethod(fn reflect.Value, m *call.Method, args []any) ([]any, error) {
	in := make([]reflect.Value, len(m.Params))
	for i, p := range m.Params {
		var (
			v   reflect.Value
			err error
		)
		if p.Direction == call.DirectionIn {
			v, err = call.ValueFor(args[i], p.Formal)
		} else {
			v, err = call.NewSlot(p.Formal, args[i])
		}
		if err != nil {
			return nil, fmt.Errorf("%s %s: %w", m, p.Name, err)
		}
		in[i] = v
	}

	var out []reflect.Value
	if m.Variadic {
		out = fn.CallSlice(in)
	} else {
		out = fn.Call(in)
	}

	for i, p := range m.Params {
		if p.Direction.IsOutput() {
			args[i], _ = call.SlotValue(in[i].Interface())
		}
	}

	return splitResults(m, out)
}

func splitResults(m *call.Method, out []reflect.Value) ([]any, error) {
	var err error
	if m.ReturnsError && len(out) > 0 {
		last := out[len(out)-1]
		if !last.IsNil() {
			err, _ = last.Interface().(error)
		}
		out = out[:len(out)-1]
	}

	values := make([]any, len(out))
	for i, v := range out {
		values[i] = v.Interface()
	}
	return values, err
}
