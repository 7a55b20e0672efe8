package proxy

import (
	"fmt"
	"reflect"

	"github.com/lubkli/IoCBuilder-sub000/call"
	"github.com/lubkli/IoCBuilder-sub000/dispatch"
)

// RegisterStub registers the typed stub of contract T with the default
// generator. Generated code calls it from init.
func RegisterStub[T any](factory func(*Surrogate) T, options ...TypeOption) {
	RegisterStubWith[T](Default(), factory, options...)
}

// RegisterStubWith registers the typed stub of contract T with g
func RegisterStubWith[T any](g *Generator, factory func(*Surrogate) T, options ...TypeOption) {
	g.registerStub(typeOf[T](), stubEntry{
		factory: func(s *Surrogate) any { return factory(s) },
		options: options,
	})
}

// RegisterSubclassStub registers the typed stub P of base struct B with the
// default generator.
func RegisterSubclassStub[B any, P any](factory func(*Surrogate) P, options ...TypeOption) {
	RegisterSubclassStubWith[B, P](Default(), factory, options...)
}

// RegisterSubclassStubWith registers the typed stub P of base struct B with g
func RegisterSubclassStubWith[B any, P any](g *Generator, factory func(*Surrogate) P, options ...TypeOption) {
	g.registerStub(indirect(typeOf[B]()), stubEntry{
		factory: func(s *Surrogate) any { return factory(s) },
		options: options,
	})
}

// Stub returns the typed stub of s. T is the contract for interface and
// polymorphic transparent proxies, or the stub type for subclass proxies.
func Stub[T any](s *Surrogate) (T, error) {
	var zero T

	v, err := s.Stub()
	if err != nil {
		return zero, err
	}

	t, ok := v.(T)
	if !ok {
		return zero, &GenerationError{Mechanism: s.typ.mechanism, Type: s.typ.stubKey(), Err: fmt.Errorf("%w: stub is not %v", ErrTargetMismatch, typeOf[T]())}
	}
	return t, nil
}

// Stub returns the registered stub of the proxy as an untyped value
func (s *Surrogate) Stub() (any, error) {
	key := s.typ.stubKey()
	entry, ok := s.typ.gen.stub(key)
	if !ok {
		return nil, &GenerationError{Mechanism: s.typ.mechanism, Type: key, Err: ErrNoStub}
	}
	return entry.factory(s), nil
}

func (t *Type) stubKey() reflect.Type {
	if t.contract != nil {
		return t.contract
	}
	return t.original
}

// Interface wraps target behind contract T and returns its typed stub. A nil
// generator means Default.
func Interface[T any](g *Generator, rt *dispatch.Runtime, target T) (T, error) {
	if g == nil {
		g = Default()
	}

	s, err := g.WrapInterface(rt, typeOf[T](), target)
	if err != nil {
		var zero T
		return zero, err
	}
	return Stub[T](s)
}

// Transparent wraps a Remotable target as contract T and returns its typed stub
func Transparent[T any](g *Generator, rt *dispatch.Runtime, target Remotable) (T, error) {
	if g == nil {
		g = Default()
	}

	s, err := g.WrapTransparent(rt, target, typeOf[T]())
	if err != nil {
		var zero T
		return zero, err
	}
	return Stub[T](s)
}

// Result converts the i-th result of a call to T. Missing, nil and
// inconvertible values yield the zero value of T.
func Result[T any](values []any, i int) T {
	var zero T
	if i < 0 || i >= len(values) || values[i] == nil {
		return zero
	}
	if v, ok := values[i].(T); ok {
		return v
	}

	rv, err := call.ValueFor(values[i], typeOf[T]())
	if err != nil {
		return zero
	}
	v, _ := rv.Interface().(T)
	return v
}

func typeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}
