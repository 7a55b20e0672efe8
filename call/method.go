package call

import (
	"context"
	"fmt"
	"reflect"
	"strings"
)

// Direction classifies a formal parameter
type Direction int

const (
	DirectionIn Direction = iota
	DirectionOut
	DirectionInOut
)

func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "in"
	case DirectionOut:
		return "out"
	case DirectionInOut:
		return "inout"
	default:
		return "unknown"
	}
}

// IsInput reports whether the parameter carries an incoming value
func (d Direction) IsInput() bool { return d != DirectionOut }

// IsOutput reports whether the parameter carries a value back to the caller
func (d Direction) IsOutput() bool { return d != DirectionIn }

// Param describes one formal parameter.
type Param struct {
	Name      string
	Position  int
	Formal    reflect.Type // declared type, *Out[T] or *Ref[T] for slots
	Type      reflect.Type // type of the value held in the argument array
	Direction Direction
}

// MethodKey identifies a method independently of a reflect.Type value, so
// that open generic definitions can be used as keys too.
type MethodKey struct {
	Owner string
	Name  string
}

func (k MethodKey) String() string {
	return k.Owner + "." + k.Name
}

// Method is the resolved descriptor of an intercepted method.
type Method struct {
	Name         string
	Owner        reflect.Type
	Params       []Param
	Results      []reflect.Type // non-error results
	ReturnsError bool
	Variadic     bool
	TypeArgs     []reflect.Type

	fn reflect.Type
}

var (
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
)

// NewMethod describes method name of owner whose signature is fn. fn must be
// a func type without receiver. names label the parameters positionally;
// missing names default to argN.
func NewMethod(owner reflect.Type, name string, fn reflect.Type, names ...string) *Method {
	return newMethod(owner, name, fn, 0, names)
}

// MethodOf describes rm, a method obtained from owner's reflect.Type. The
// receiver is dropped when rm comes from a concrete type.
func MethodOf(owner reflect.Type, rm reflect.Method, names ...string) *Method {
	skip := 1
	if owner.Kind() == reflect.Interface {
		skip = 0
	}
	return newMethod(owner, rm.Name, rm.Type, skip, names)
}

func newMethod(owner reflect.Type, name string, fn reflect.Type, skip int, names []string) *Method {
	m := &Method{
		Name:     name,
		Owner:    owner,
		Variadic: fn.IsVariadic(),
		fn:       fn,
	}

	for i := skip; i < fn.NumIn(); i++ {
		pos := i - skip
		formal := fn.In(i)
		dir, typ, _ := slotOf(formal)
		pname := fmt.Sprintf("arg%d", pos)
		if pos < len(names) && names[pos] != "" {
			pname = names[pos]
		}
		m.Params = append(m.Params, Param{
			Name:      pname,
			Position:  pos,
			Formal:    formal,
			Type:      typ,
			Direction: dir,
		})
	}

	for i := 0; i < fn.NumOut(); i++ {
		out := fn.Out(i)
		if i == fn.NumOut()-1 && out == errorType {
			m.ReturnsError = true
			continue
		}
		m.Results = append(m.Results, out)
	}

	return m
}

// Key returns the exact lookup key of the method
func (m *Method) Key() MethodKey {
	return KeyOf(m.Owner, m.Name)
}

// DefinitionKey returns the key of the method on the open generic definition
// of its owner. For non-generic owners it equals Key.
func (m *Method) DefinitionKey() MethodKey {
	return DefinitionKeyOf(m.Owner, m.Name)
}

// IsGeneric reports whether the owner is an instantiated generic type
func (m *Method) IsGeneric() bool {
	return IsGeneric(m.Owner)
}

// Bind returns a copy of m with its type arguments bound
func (m *Method) Bind(typeArgs ...reflect.Type) *Method {
	bound := *m
	bound.Params = append([]Param(nil), m.Params...)
	bound.Results = append([]reflect.Type(nil), m.Results...)
	bound.TypeArgs = append([]reflect.Type(nil), typeArgs...)
	return &bound
}

// WithParamNames returns a copy of m with its parameters renamed positionally
func (m *Method) WithParamNames(names ...string) *Method {
	named := m.Bind(m.TypeArgs...)
	for i := range named.Params {
		if i < len(names) && names[i] != "" {
			named.Params[i].Name = names[i]
		}
	}
	return named
}

// Func returns the reflected signature. Methods taken from concrete types
// keep their receiver as the first parameter.
func (m *Method) Func() reflect.Type {
	return m.fn
}

// ContextIndex returns the position of the first context.Context parameter,
// or -1.
func (m *Method) ContextIndex() int {
	for _, p := range m.Params {
		if p.Direction == DirectionIn && p.Formal == contextType {
			return p.Position
		}
	}
	return -1
}

// HasOutputs reports whether any parameter is an Out or InOut slot
func (m *Method) HasOutputs() bool {
	for _, p := range m.Params {
		if p.Direction.IsOutput() {
			return true
		}
	}
	return false
}

func (m *Method) String() string {
	return m.Key().String()
}

// TypeID returns a stable identity string for t: the package path and name of
// named types (type arguments included), the Go syntax of unnamed ones.
// Pointers are stripped so that T and *T share one identity.
func TypeID(t reflect.Type) string {
	if t == nil {
		return ""
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Name() == "" {
		return t.String()
	}
	if t.PkgPath() == "" {
		return t.Name()
	}
	return t.PkgPath() + "." + t.Name()
}

// Definition returns the identity of the open generic definition of t: TypeID
// with the type argument list removed.
func Definition(t reflect.Type) string {
	id := TypeID(t)
	if i := strings.IndexByte(id, '['); i >= 0 {
		return id[:i]
	}
	return id
}

// IsGeneric reports whether t is an instantiation of a generic type
func IsGeneric(t reflect.Type) bool {
	return t != nil && Definition(t) != TypeID(t)
}

// KeyOf returns the exact key of method name on owner
func KeyOf(owner reflect.Type, name string) MethodKey {
	return MethodKey{Owner: TypeID(owner), Name: name}
}

// DefinitionKeyOf returns the key of method name on owner's generic definition
func DefinitionKeyOf(owner reflect.Type, name string) MethodKey {
	return MethodKey{Owner: Definition(owner), Name: name}
}
