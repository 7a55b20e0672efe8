package builder

import (
	"fmt"
	"reflect"
	"sync"
)

// Factory creates an instance, resolving its dependencies through r
type Factory func(r Resolver) (any, error)

// Container is a minimal Resolver over registered factories. Unregistered
// struct and pointer-to-struct types resolve to a fresh zero value, returned
// as a pointer.
type Container struct {
	factories map[Key]Factory
	mu        sync.RWMutex
}

// NewContainer creates an empty container
func NewContainer() *Container {
	return &Container{factories: make(map[Key]Factory)}
}

// Register registers factory for t under name
func (c *Container) Register(t reflect.Type, name string, factory Factory) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.factories[Key{Type: t, Name: name}] = factory
}

// RegisterInstance registers a singleton
func (c *Container) RegisterInstance(t reflect.Type, name string, instance any) {
	c.Register(t, name, func(Resolver) (any, error) { return instance, nil })
}

// Provide registers a typed factory for T
func Provide[T any](c *Container, name string, factory func(r Resolver) (T, error)) {
	c.Register(reflect.TypeOf((*T)(nil)).Elem(), name, func(r Resolver) (any, error) {
		return factory(r)
	})
}

// Resolve implements Resolver. A named lookup falls back to the unnamed
// registration.
func (c *Container) Resolve(t reflect.Type, name string) (any, error) {
	if t == nil {
		return nil, fmt.Errorf("%w: nil type", ErrUnresolvable)
	}

	c.mu.RLock()
	factory, ok := c.factories[Key{Type: t, Name: name}]
	if !ok && name != "" {
		factory, ok = c.factories[Key{Type: t}]
	}
	c.mu.RUnlock()

	if ok {
		return factory(c)
	}

	switch {
	case t.Kind() == reflect.Struct:
		return reflect.New(t).Interface(), nil
	case t.Kind() == reflect.Pointer && t.Elem().Kind() == reflect.Struct:
		return reflect.New(t.Elem()).Interface(), nil
	default:
		return nil, fmt.Errorf("%w: %v", ErrUnresolvable, Key{Type: t, Name: name})
	}
}
