// Package builder holds the construction collaborators the interception
// engine consumes: object resolution and a policy store keyed by the built
// type and an optional name.
package builder

import (
	"errors"
	"fmt"
	"reflect"
)

// Kinds of entries kept in a PolicyStore besides interception policies,
// which are stored under their mechanism name.
const (
	KindRecipe      = "recipe"
	KindConstructor = "constructor"
)

var (
	ErrUnresolvable = errors.New("builder: type cannot be resolved")
	ErrNoRecipe     = errors.New("builder: no recipe registered")
)

// Key identifies a build request
type Key struct {
	Type reflect.Type
	Name string
}

// KeyFor returns the key of T with an optional name
func KeyFor[T any](name string) Key {
	return Key{Type: reflect.TypeOf((*T)(nil)).Elem(), Name: name}
}

func (k Key) String() string {
	if k.Name == "" {
		return fmt.Sprint(k.Type)
	}
	return fmt.Sprintf("%v[%s]", k.Type, k.Name)
}

// Resolver turns a type into an instance
type Resolver interface {
	// Resolve returns an instance of t, optionally a named registration
	Resolve(t reflect.Type, name string) (any, error)
}

// ResolverFunc is a function adapter for Resolver
type ResolverFunc func(t reflect.Type, name string) (any, error)

// Resolve implements Resolver
func (f ResolverFunc) Resolve(t reflect.Type, name string) (any, error) {
	return f(t, name)
}

// Resolve resolves T through r
func Resolve[T any](r Resolver, name string) (T, error) {
	var zero T
	v, err := r.Resolve(reflect.TypeOf((*T)(nil)).Elem(), name)
	if err != nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("%w: resolved %T, want %v", ErrUnresolvable, v, reflect.TypeOf((*T)(nil)).Elem())
	}
	return t, nil
}

// PolicyStore keeps build policies
type PolicyStore interface {
	// Get returns the policy of kind registered for key
	Get(key Key, kind string) (any, bool)

	// Set registers policy of kind for key, replacing any previous one
	Set(key Key, kind string, policy any)
}

// Recipe replaces the construction of a key. args are the build arguments.
type Recipe func(r Resolver, args ...any) (any, error)

// ConstructorPolicy tells a subclass-wrap recipe how to build the target: a
// constructor function and arguments that are already resolved.
type ConstructorPolicy struct {
	Constructor any
	Args        []any
}

// Build runs the recipe registered for key, or resolves key directly when
// there is none.
func Build(store PolicyStore, r Resolver, key Key, args ...any) (any, error) {
	if p, ok := store.Get(key, KindRecipe); ok {
		if recipe, ok := p.(Recipe); ok {
			return recipe(r, args...)
		}
	}
	if r == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoRecipe, key)
	}
	return r.Resolve(key.Type, key.Name)
}
