package call

import (
	"context"
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type calculator interface {
	Compute(ctx context.Context, factor float64, total *Ref[int], label *Out[string]) (int, error)
	Reset()
}

type Box[T any] struct{ v T }

func (b *Box[T]) Get() T { return b.v }

func computeMethod(t *testing.T) *Method {
	t.Helper()
	owner := reflect.TypeOf((*calculator)(nil)).Elem()
	rm, ok := owner.MethodByName("Compute")
	require.True(t, ok)
	return MethodOf(owner, rm, "ctx", "factor", "total", "label")
}

func TestMethod(t *testing.T) {
	t.Run("classifies parameters by direction", func(t *testing.T) {
		m := computeMethod(t)

		require.Len(t, m.Params, 4)
		assert.Equal(t, DirectionIn, m.Params[0].Direction)
		assert.Equal(t, DirectionIn, m.Params[1].Direction)
		assert.Equal(t, DirectionInOut, m.Params[2].Direction)
		assert.Equal(t, reflect.TypeOf(0), m.Params[2].Type)
		assert.Equal(t, DirectionOut, m.Params[3].Direction)
		assert.Equal(t, reflect.TypeOf(""), m.Params[3].Type)
		assert.Equal(t, "label", m.Params[3].Name)
	})

	t.Run("splits error result", func(t *testing.T) {
		m := computeMethod(t)

		assert.True(t, m.ReturnsError)
		assert.Equal(t, []reflect.Type{reflect.TypeOf(0)}, m.Results)
		assert.Equal(t, 0, m.ContextIndex())
		assert.True(t, m.HasOutputs())
	})

	t.Run("drops receiver of concrete methods", func(t *testing.T) {
		owner := reflect.TypeOf(&Box[int]{})
		rm, ok := owner.MethodByName("Get")
		require.True(t, ok)

		m := MethodOf(owner, rm)

		assert.Empty(t, m.Params)
		assert.Equal(t, []reflect.Type{reflect.TypeOf(0)}, m.Results)
		assert.False(t, m.ReturnsError)
		assert.Equal(t, -1, m.ContextIndex())
	})

	t.Run("default parameter names", func(t *testing.T) {
		m := NewMethod(reflect.TypeOf(0), "Add", reflect.TypeOf(func(int, int) int { return 0 }), "a")

		assert.Equal(t, "a", m.Params[0].Name)
		assert.Equal(t, "arg1", m.Params[1].Name)
	})

	t.Run("bind copies descriptor", func(t *testing.T) {
		m := computeMethod(t)
		bound := m.Bind(reflect.TypeOf(""))

		assert.Empty(t, m.TypeArgs)
		assert.Equal(t, []reflect.Type{reflect.TypeOf("")}, bound.TypeArgs)
		assert.Equal(t, m.Key(), bound.Key())
	})
}

func TestTypeIdentity(t *testing.T) {
	t.Run("strips pointers", func(t *testing.T) {
		assert.Equal(t, TypeID(reflect.TypeOf(Box[int]{})), TypeID(reflect.TypeOf(&Box[int]{})))
	})

	t.Run("generic definition drops type arguments", func(t *testing.T) {
		intBox := reflect.TypeOf(Box[int]{})
		strBox := reflect.TypeOf(Box[string]{})

		assert.NotEqual(t, TypeID(intBox), TypeID(strBox))
		assert.Equal(t, Definition(intBox), Definition(strBox))
		assert.True(t, IsGeneric(intBox))
		assert.Equal(t, DefinitionKeyOf(intBox, "Get"), DefinitionKeyOf(strBox, "Get"))
	})

	t.Run("non generic definition equals identity", func(t *testing.T) {
		owner := reflect.TypeOf((*calculator)(nil)).Elem()

		assert.False(t, IsGeneric(owner))
		assert.Equal(t, TypeID(owner), Definition(owner))
		assert.Equal(t, "int", TypeID(reflect.TypeOf(0)))
	})
}

func TestInvocationViews(t *testing.T) {
	newInvocation := func(t *testing.T) *Invocation {
		m := computeMethod(t)
		return NewInvocation(nil, m, []any{context.Background(), 4.2, 21, ""})
	}

	t.Run("inputs exclude output-only parameters", func(t *testing.T) {
		inv := newInvocation(t)

		assert.Equal(t, 4, inv.Arguments().Len())
		assert.Equal(t, []string{"ctx", "factor", "total"}, inv.Inputs().Names())
	})

	t.Run("views share the backing array", func(t *testing.T) {
		inv := newInvocation(t)

		inv.Inputs().Set(1, 6.4)
		value, ok := inv.Arguments().ByName("factor")

		require.True(t, ok)
		assert.Equal(t, 6.4, value)
		assert.Equal(t, 6.4, inv.Args()[1])
	})

	t.Run("in-out parameter appears in inputs and outputs", func(t *testing.T) {
		inv := newInvocation(t)
		ret := inv.CreateReturn(1)

		assert.True(t, inv.Inputs().Contains("total"))
		assert.Equal(t, []string{"total", "label"}, ret.Outputs().Names())

		inv.Args()[2] = 42
		assert.Equal(t, 42, ret.Outputs().Get(0))
	})

	t.Run("set by unknown name fails", func(t *testing.T) {
		inv := newInvocation(t)

		err := inv.Inputs().SetByName("label", "x")

		assert.ErrorIs(t, err, ErrNoSuchParameter)
	})

	t.Run("pads missing arguments with zero values", func(t *testing.T) {
		inv := NewInvocation(nil, computeMethod(t), nil)

		assert.Len(t, inv.Args(), 4)
		assert.Equal(t, 0, inv.Args()[2])
		assert.Equal(t, "", inv.Args()[3])
	})

	t.Run("context argument", func(t *testing.T) {
		inv := newInvocation(t)
		type key struct{}
		ctx := context.WithValue(context.Background(), key{}, "v")

		assert.True(t, inv.SetContext(ctx))
		assert.Equal(t, "v", inv.Context().Value(key{}))
	})

	t.Run("items are per invocation", func(t *testing.T) {
		inv := newInvocation(t)
		inv.Items().Set("user", "alice")

		user, ok := inv.Items().GetString("user")
		assert.True(t, ok)
		assert.Equal(t, "alice", user)
		assert.Empty(t, newInvocation(t).Items().Keys())
		assert.NotEqual(t, inv.ID, newInvocation(t).ID)
	})
}

func TestReturn(t *testing.T) {
	t.Run("pads results with zero values", func(t *testing.T) {
		inv := NewInvocation(nil, computeMethod(t), nil)

		ret := inv.CreateReturn()

		assert.Equal(t, 0, ret.ReturnValue())
		assert.False(t, ret.Failed())
	})

	t.Run("failure can be cleared", func(t *testing.T) {
		inv := NewInvocation(nil, computeMethod(t), nil)
		boom := errors.New("boom")

		ret := inv.CreateFailure(boom)
		assert.ErrorIs(t, ret.Err(), boom)

		ret.SetErr(nil)
		ret.SetReturnValue(7)
		assert.False(t, ret.Failed())
		assert.Equal(t, 7, ret.ReturnValue())
	})
}

func TestSlots(t *testing.T) {
	t.Run("slot values", func(t *testing.T) {
		ref := &Ref[int]{Value: 3}

		value, ok := SlotValue(ref)
		require.True(t, ok)
		assert.Equal(t, 3, value)

		assert.True(t, SetSlot(ref, 9))
		assert.Equal(t, 9, ref.Value)
	})

	t.Run("nil slot reads zero and rejects writes", func(t *testing.T) {
		var out *Out[string]

		value, ok := SlotValue(out)
		assert.True(t, ok)
		assert.Equal(t, "", value)
		assert.False(t, SetSlot(out, "x"))
	})

	t.Run("numeric conversion on set", func(t *testing.T) {
		ref := &Ref[int64]{}

		assert.True(t, SetSlot(ref, 12))
		assert.Equal(t, int64(12), ref.Value)
		assert.True(t, SetSlot(ref, 3.0))
		assert.Equal(t, int64(3), ref.Value)
		assert.False(t, SetSlot(ref, "twelve"))
		assert.False(t, SetSlot(ref, 6.9))
		assert.False(t, SetSlot(ref, uint64(1<<63)))
		assert.Equal(t, int64(3), ref.Value)

		small := &Ref[int8]{}
		assert.False(t, SetSlot(small, 300))
		assert.True(t, SetSlot(small, -128))
		assert.Equal(t, int8(-128), small.Value)
	})

	t.Run("numeric conversion without loss", func(t *testing.T) {
		type celsius float64

		tests := []struct {
			name string
			v    any
			want any
		}{
			{name: "widening int", v: int8(-5), want: int64(-5)},
			{name: "int in range", v: 127, want: int8(127)},
			{name: "negative to unsigned", v: -1, want: uint(0)},
			{name: "unsigned too wide", v: uint64(256), want: uint8(0)},
			{name: "unsigned to signed", v: uint32(7), want: int16(7)},
			{name: "integral float", v: 42.0, want: int(42)},
			{name: "fractional float", v: 6.9, want: int(0)},
			{name: "float out of range", v: 1e20, want: int64(0)},
			{name: "nan to int", v: math.NaN(), want: int(0)},
			{name: "negative float to unsigned", v: -2.0, want: uint(0)},
			{name: "int to float", v: 3, want: 3.0},
			{name: "int not exact in float32", v: 1<<24 + 1, want: float32(0)},
			{name: "float narrowing rounds", v: 0.1, want: float32(0.1)},
			{name: "float overflow", v: math.MaxFloat64, want: float32(0)},
			{name: "named float", v: 21.5, want: celsius(21.5)},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				target := reflect.TypeOf(tt.want)
				v, err := ValueFor(tt.v, target)
				if reflect.ValueOf(tt.want).IsZero() {
					var te *TypeError
					require.ErrorAs(t, err, &te)
					assert.Equal(t, target, te.Want)
					assert.ErrorIs(t, err, ErrArgumentType)
					return
				}
				require.NoError(t, err)
				assert.Equal(t, tt.want, v.Interface())
			})
		}
	})

	t.Run("new slot of formal type", func(t *testing.T) {
		formal := reflect.TypeOf(&Out[string]{})

		v, err := NewSlot(formal, "hello")
		require.NoError(t, err)
		assert.Equal(t, "hello", v.Interface().(*Out[string]).Value)

		_, err = NewSlot(reflect.TypeOf(0), 1)
		assert.ErrorIs(t, err, ErrArgumentType)
	})

	t.Run("value conversion errors", func(t *testing.T) {
		_, err := ValueFor("x", reflect.TypeOf(0))

		assert.ErrorIs(t, err, ErrArgumentType)
		assert.False(t, IsSlot(3))
	})
}

func TestPanicError(t *testing.T) {
	cause := errors.New("cause")
	err := NewPanicError(cause, []byte("stack"))

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "cause")
	assert.Nil(t, NewPanicError("text", nil).Unwrap())
}
