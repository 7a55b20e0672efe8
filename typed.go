package interception

import (
	"fmt"
	"reflect"

	"github.com/lubkli/IoCBuilder-sub000/pipeline"
	"github.com/lubkli/IoCBuilder-sub000/proxy"
)

// Interface wraps target behind contract T
func Interface[T any](e *Engine, target T, handlers pipeline.HandlerMap) (T, error) {
	return proxy.Interface[T](e.generator, e.Runtime(handlers), target)
}

// Subclass wraps a base instance and returns its registered stub P
func Subclass[P any](e *Engine, instance any, handlers pipeline.HandlerMap) (P, error) {
	s, err := e.WrapInstance(proxy.SubclassWrap, instance, nil, handlers)
	if err != nil {
		var zero P
		return zero, err
	}
	return proxy.Stub[P](s)
}

// Transparent wraps a Remotable target as contract T
func Transparent[T any](e *Engine, target proxy.Remotable, handlers pipeline.HandlerMap) (T, error) {
	return proxy.Transparent[T](e.generator, e.Runtime(handlers), target)
}

// RegisterType is Register with the requested and concrete types as
// type parameters.
func RegisterType[T any, C any](e *Engine, mechanism proxy.Mechanism, name string) error {
	return e.Register(mechanism, typeOf[T](), typeOf[C](), name)
}

// Build constructs T, honouring registered recipes
func Build[T any](e *Engine, name string, args ...any) (T, error) {
	var zero T

	v, err := e.Build(typeOf[T](), name, args...)
	if err != nil {
		return zero, err
	}

	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("interception: built %T, want %v", v, typeOf[T]())
	}
	return t, nil
}

func typeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}
