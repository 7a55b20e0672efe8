package call

import (
	"math"
	"reflect"
)

// Out is an output-only parameter slot.
type Out[T any] struct {
	Value T
}

// Ref is an in-out parameter slot.
type Ref[T any] struct {
	Value T
}

// slot is satisfied by *Out[T] and *Ref[T] only.
type slot interface {
	direction() Direction
	get() any
	set(v any) bool
	elem() reflect.Type
}

var slotType = reflect.TypeOf((*slot)(nil)).Elem()

func (o *Out[T]) direction() Direction { return DirectionOut }

func (o *Out[T]) get() any {
	if o == nil {
		var zero T
		return zero
	}
	return o.Value
}

func (o *Out[T]) set(v any) bool {
	if o == nil {
		return false
	}
	return assign(&o.Value, v)
}

func (o *Out[T]) elem() reflect.Type { return reflect.TypeOf((*T)(nil)).Elem() }

func (r *Ref[T]) direction() Direction { return DirectionInOut }

func (r *Ref[T]) get() any {
	if r == nil {
		var zero T
		return zero
	}
	return r.Value
}

func (r *Ref[T]) set(v any) bool {
	if r == nil {
		return false
	}
	return assign(&r.Value, v)
}

func (r *Ref[T]) elem() reflect.Type { return reflect.TypeOf((*T)(nil)).Elem() }

func assign[T any](dst *T, v any) bool {
	if v == nil {
		var zero T
		*dst = zero
		return true
	}
	if t, ok := v.(T); ok {
		*dst = t
		return true
	}
	rv, err := ValueFor(v, reflect.TypeOf((*T)(nil)).Elem())
	if err != nil {
		return false
	}
	*dst = rv.Interface().(T)
	return true
}

// slotOf reports the direction and value type of a slot parameter type.
func slotOf(t reflect.Type) (Direction, reflect.Type, bool) {
	if t == nil || t.Kind() != reflect.Pointer || !t.Implements(slotType) {
		return DirectionIn, t, false
	}
	s := reflect.New(t.Elem()).Interface().(slot)
	return s.direction(), s.elem(), true
}

// IsSlot reports whether arg is an *Out[T] or *Ref[T].
func IsSlot(arg any) bool {
	_, ok := arg.(slot)
	return ok
}

// SlotValue returns the value held by a slot argument. A nil slot yields the
// zero value of its element type.
func SlotValue(arg any) (any, bool) {
	s, ok := arg.(slot)
	if !ok {
		return nil, false
	}
	return s.get(), true
}

// SetSlot stores v into a slot argument. It returns false when arg is not a
// slot, is a nil slot, or v cannot be converted to the slot's element type.
func SetSlot(arg any, v any) bool {
	s, ok := arg.(slot)
	if !ok {
		return false
	}
	return s.set(v)
}

// NewSlot allocates a fresh slot of the formal type (*Out[T] or *Ref[T])
// holding v.
func NewSlot(formal reflect.Type, v any) (reflect.Value, error) {
	if _, _, ok := slotOf(formal); !ok {
		return reflect.Value{}, ErrArgumentType
	}
	p := reflect.New(formal.Elem())
	if !p.Interface().(slot).set(v) {
		return reflect.Value{}, ErrArgumentType
	}
	return p, nil
}

// Zero returns the zero value of t boxed in an interface, or nil when t is nil.
func Zero(t reflect.Type) any {
	if t == nil {
		return nil
	}
	return reflect.Zero(t).Interface()
}

// ValueFor converts v into a value assignable to t. Nil maps to the zero value;
// named types convert to and from their underlying kind. Numeric kinds convert
// into each other only when no information is lost: an integer must fit the
// target width and a float converted to an integer must be integral and in
// range. Floats round to the nearest float of a narrower width.
func ValueFor(v any, t reflect.Type) (reflect.Value, error) {
	if v == nil {
		return reflect.Zero(t), nil
	}
	rv := reflect.ValueOf(v)
	if rv.Type().AssignableTo(t) {
		return rv, nil
	}
	if rv.Type().ConvertibleTo(t) {
		if rv.Kind() == t.Kind() && !isNumeric(t.Kind()) {
			return rv.Convert(t), nil
		}
		if isNumeric(rv.Kind()) && isNumeric(t.Kind()) && fits(rv, t) {
			return rv.Convert(t), nil
		}
	}
	return reflect.Value{}, &TypeError{Got: rv.Type(), Want: t}
}

// fits reports whether the numeric value rv is representable in t
func fits(rv reflect.Value, t reflect.Type) bool {
	zero := reflect.Zero(t)
	switch {
	case isSigned(rv.Kind()):
		i := rv.Int()
		switch {
		case isSigned(t.Kind()):
			return !zero.OverflowInt(i)
		case isUnsigned(t.Kind()):
			return i >= 0 && !zero.OverflowUint(uint64(i))
		default:
			f := rv.Convert(t).Float()
			return f >= -0x1p63 && f < 0x1p63 && int64(f) == i
		}
	case isUnsigned(rv.Kind()):
		u := rv.Uint()
		switch {
		case isSigned(t.Kind()):
			return u <= math.MaxInt64 && !zero.OverflowInt(int64(u))
		case isUnsigned(t.Kind()):
			return !zero.OverflowUint(u)
		default:
			f := rv.Convert(t).Float()
			return f < 0x1p64 && uint64(f) == u
		}
	default:
		f := rv.Float()
		switch {
		case isSigned(t.Kind()):
			return f == math.Trunc(f) && f >= -0x1p63 && f < 0x1p63 && !zero.OverflowInt(int64(f))
		case isUnsigned(t.Kind()):
			return f == math.Trunc(f) && f >= 0 && f < 0x1p64 && !zero.OverflowUint(uint64(f))
		default:
			return math.IsNaN(f) || math.IsInf(f, 0) || !zero.OverflowFloat(f)
		}
	}
}

func isNumeric(k reflect.Kind) bool {
	return isSigned(k) || isUnsigned(k) || k == reflect.Float32 || k == reflect.Float64
}

func isSigned(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return true
	default:
		return false
	}
}

func isUnsigned(k reflect.Kind) bool {
	switch k {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return true
	default:
		return false
	}
}
