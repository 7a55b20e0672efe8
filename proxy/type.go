package proxy

import (
	"fmt"
	"reflect"

	"github.com/lubkli/IoCBuilder-sub000/call"
	"github.com/lubkli/IoCBuilder-sub000/dispatch"
)

// Type is a generated proxy type: the method table of the proxied type, with
// one descriptor per intercepted method, plus the constructors of a
// subclass-wrap base.
type Type struct {
	mechanism Mechanism
	original  reflect.Type
	contract  reflect.Type
	typeArgs  []reflect.Type
	methods   []*call.Method
	byName    map[string]*call.Method
	ctors     []constructor
	gen       *Generator
}

// TypeOption configures a Type when it is first generated
type TypeOption func(*typeConfig)

type typeConfig struct {
	typeArgs []reflect.Type
	names    map[string][]string
}

// WithTypeArgs binds the type arguments of a generic proxied type
func WithTypeArgs(typeArgs ...reflect.Type) TypeOption {
	return func(c *typeConfig) {
		c.typeArgs = append(c.typeArgs, typeArgs...)
	}
}

// WithParamNames names the parameters of method positionally
func WithParamNames(method string, names ...string) TypeOption {
	return func(c *typeConfig) {
		if c.names == nil {
			c.names = make(map[string][]string)
		}
		c.names[method] = names
	}
}

func newTypeConfig(options []TypeOption) typeConfig {
	var c typeConfig
	for _, opt := range options {
		opt(&c)
	}
	return c
}

// Mechanism returns how the type wraps its targets
func (t *Type) Mechanism() Mechanism { return t.mechanism }

// Original returns the proxied type
func (t *Type) Original() reflect.Type { return t.original }

// Contract returns the interface a transparent proxy answers for, if any
func (t *Type) Contract() reflect.Type { return t.contract }

// TypeArgs returns the bound type arguments
func (t *Type) TypeArgs() []reflect.Type {
	return append([]reflect.Type(nil), t.typeArgs...)
}

// Methods returns the intercepted methods in declaration order
func (t *Type) Methods() []*call.Method {
	return append([]*call.Method(nil), t.methods...)
}

// Method returns the descriptor of the named method
func (t *Type) Method(name string) (*call.Method, bool) {
	m, ok := t.byName[name]
	return m, ok
}

// MustMethod is like Method but panics when the method is unknown. Generated
// stubs use it to cache their descriptors.
func (t *Type) MustMethod(name string) *call.Method {
	m, ok := t.byName[name]
	if !ok {
		panic(&GenerationError{Mechanism: t.mechanism, Type: t.original, Method: name, Err: ErrUnknownMethod})
	}
	return m
}

// Constructors returns the number of constructors of a subclass-wrap type
func (t *Type) Constructors() int { return len(t.gen.constructors(t)) }

func (t *Type) String() string {
	return fmt.Sprintf("%s proxy of %v", t.mechanism, t.original)
}

// New constructs a fresh base instance with the first constructor whose
// parameters accept args and wraps it. Only subclass-wrap types have
// constructors.
func (t *Type) New(rt *dispatch.Runtime, args ...any) (*Surrogate, error) {
	for _, c := range t.gen.constructors(t) {
		in, ok := c.match(args)
		if !ok {
			continue
		}

		instance, err := c.call(in, t.original)
		if err != nil {
			return nil, err
		}
		return newSurrogate(t, rt, instance), nil
	}

	return nil, &GenerationError{Mechanism: t.mechanism, Type: t.original, Err: ErrNoConstructor}
}

func (t *Type) addMethods(owner reflect.Type, cfg typeConfig, list []reflect.Method) {
	t.byName = make(map[string]*call.Method, len(list))
	for _, rm := range list {
		m := call.MethodOf(owner, rm, cfg.names[rm.Name]...)
		if len(cfg.typeArgs) > 0 {
			m = m.Bind(cfg.typeArgs...)
		}
		t.methods = append(t.methods, m)
		t.byName[m.Name] = m
	}
}

type constructor struct {
	fn           reflect.Value
	returnsError bool
}

func newConstructor(base reflect.Type, fn any) (constructor, error) {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func || v.IsNil() {
		return constructor{}, fmt.Errorf("%w: %T is not a function", ErrBadConstructor, fn)
	}

	ft := v.Type()
	switch {
	case ft.NumOut() == 1:
	case ft.NumOut() == 2 && ft.Out(1) == errorType:
	default:
		return constructor{}, fmt.Errorf("%w: %v must return the instance and optionally an error", ErrBadConstructor, ft)
	}

	if out := ft.Out(0); out != base && out != reflect.PointerTo(base) {
		return constructor{}, fmt.Errorf("%w: %v does not construct %v", ErrBadConstructor, ft, base)
	}

	return constructor{fn: v, returnsError: ft.NumOut() == 2}, nil
}

func (c constructor) match(args []any) ([]reflect.Value, bool) {
	ft := c.fn.Type()
	n := ft.NumIn()
	if ft.IsVariadic() {
		if len(args) < n-1 {
			return nil, false
		}
	} else if len(args) != n {
		return nil, false
	}

	in := make([]reflect.Value, len(args))
	for i, arg := range args {
		pt := ft.In(min(i, n-1))
		if ft.IsVariadic() && i >= n-1 {
			pt = pt.Elem()
		}
		v, err := call.ValueFor(arg, pt)
		if err != nil {
			return nil, false
		}
		in[i] = v
	}
	return in, true
}

func (c constructor) call(in []reflect.Value, base reflect.Type) (any, error) {
	out := c.fn.Call(in)
	if c.returnsError && !out[1].IsNil() {
		err, _ := out[1].Interface().(error)
		return nil, err
	}

	instance := out[0]
	if instance.Kind() != reflect.Pointer {
		p := reflect.New(base)
		p.Elem().Set(instance)
		instance = p
	}
	if instance.IsNil() {
		return nil, fmt.Errorf("%w: constructor of %v returned nil", ErrBadConstructor, base)
	}
	return instance.Interface(), nil
}

var errorType = reflect.TypeOf((*error)(nil)).Elem()
