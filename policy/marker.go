// Package policy discovers interception markers on types and turns them into
// per-mechanism handler maps.
package policy

import (
	"reflect"

	"github.com/lubkli/IoCBuilder-sub000/pipeline"
	"github.com/lubkli/IoCBuilder-sub000/proxy"
)

// Marker associates a handler type with a method for one mechanism. Markers
// are inherited by types embedding the declaring type, and by concrete types
// built for a marked contract, unless NotInherited is applied. A marker that
// is not Multiple replaces an inherited marker of the same handler type.
type Marker struct {
	Mechanism proxy.Mechanism
	Handler   reflect.Type
	Name      string
	Inherited bool
	Multiple  bool
}

// Modifier adjusts a marker
type Modifier func(*Marker)

// Named resolves the handler through a named registration
func Named(name string) Modifier {
	return func(m *Marker) {
		m.Name = name
	}
}

// NotInherited keeps the marker on the declaring type only
func NotInherited() Modifier {
	return func(m *Marker) {
		m.Inherited = false
	}
}

// Single allows the handler type once per method
func Single() Modifier {
	return func(m *Marker) {
		m.Multiple = false
	}
}

// ViaInterface marks a method for capability-wrap with handler H
func ViaInterface[H pipeline.Handler](modifiers ...Modifier) Marker {
	return newMarker[H](proxy.InterfaceWrap, modifiers)
}

// ViaSubclass marks a method for subclass-wrap with handler H
func ViaSubclass[H pipeline.Handler](modifiers ...Modifier) Marker {
	return newMarker[H](proxy.SubclassWrap, modifiers)
}

// ViaTransparent marks a method for transparent-wrap with handler H
func ViaTransparent[H pipeline.Handler](modifiers ...Modifier) Marker {
	return newMarker[H](proxy.TransparentWrap, modifiers)
}

func newMarker[H pipeline.Handler](mechanism proxy.Mechanism, modifiers []Modifier) Marker {
	m := Marker{
		Mechanism: mechanism,
		Handler:   reflect.TypeOf((*H)(nil)).Elem(),
		Inherited: true,
		Multiple:  true,
	}
	for _, mod := range modifiers {
		mod(&m)
	}
	return m
}

func (m Marker) sameHandler(other Marker) bool {
	return m.Mechanism == other.Mechanism && m.Handler == other.Handler && m.Name == other.Name
}

// Markers maps method names to their markers in declaration order
type Markers map[string][]Marker

// Marked is implemented by types that declare their own markers.
// InterceptionMarkers is called on a zero value.
type Marked interface {
	InterceptionMarkers() Markers
}
