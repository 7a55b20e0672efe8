package dispatch

import (
	"errors"
	"reflect"
	"testing"

	"github.com/lubkli/IoCBuilder-sub000/call"
	"github.com/lubkli/IoCBuilder-sub000/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type Greeter struct{}

func (*Greeter) Greet(name string) (string, error) { return "hello " + name, nil }

type Repo[T any] struct{}

func (*Repo[T]) Save(v T) error { return nil }

type UserRepo struct {
	Repo[string]
}

type Service struct {
	Greeter
}

func methodOf(t *testing.T, owner reflect.Type, name string) *call.Method {
	t.Helper()
	rm, ok := owner.MethodByName(name)
	require.True(t, ok, name)
	return call.MethodOf(owner, rm)
}

func tagging(tag string, log *[]string) pipeline.Handler {
	return pipeline.NewHandlerFunc(tag, func(inv *call.Invocation, getNext pipeline.GetNextFunc) *call.Return {
		*log = append(*log, "Before"+tag)
		ret := getNext()(inv, getNext)
		*log = append(*log, "After"+tag)
		return ret
	})
}

func TestRuntimeInvoke(t *testing.T) {
	greeter := reflect.TypeOf(&Greeter{})

	t.Run("without handlers returns the real value", func(t *testing.T) {
		m := methodOf(t, greeter, "Greet")
		rt := NewRuntime(nil)

		values, err := rt.Invoke(nil, m, []any{"bob"}, func(args []any) ([]any, error) {
			return []any{"R"}, nil
		})

		require.NoError(t, err)
		assert.Equal(t, []any{"R"}, values)
	})

	t.Run("handlers wrap the real method in order", func(t *testing.T) {
		var log []string
		m := methodOf(t, greeter, "Greet")
		rt := NewRuntime(pipeline.HandlerMap{m.Key(): {tagging("1", &log), tagging("2", &log)}})

		_, err := rt.Invoke(nil, m, []any{"bob"}, func(args []any) ([]any, error) {
			log = append(log, "method")
			return []any{"ok"}, nil
		})

		require.NoError(t, err)
		assert.Equal(t, []string{"Before1", "Before2", "method", "After2", "After1"}, log)
	})

	t.Run("failure is visible to handlers then returned", func(t *testing.T) {
		boom := errors.New("boom")
		var seen []error
		observer := func(name string) pipeline.Handler {
			return pipeline.NewHandlerFunc(name, func(inv *call.Invocation, getNext pipeline.GetNextFunc) *call.Return {
				ret := getNext()(inv, getNext)
				seen = append(seen, ret.Err())
				return ret
			})
		}
		m := methodOf(t, greeter, "Greet")
		rt := NewRuntime(pipeline.HandlerMap{m.Key(): {observer("outer"), observer("inner")}})

		values, err := rt.Invoke(nil, m, []any{"bob"}, func(args []any) ([]any, error) {
			return nil, boom
		})

		assert.Same(t, boom, err)
		assert.Equal(t, []any{""}, values)
		assert.Equal(t, []error{boom, boom}, seen)
	})

	t.Run("handler can clear a failure", func(t *testing.T) {
		m := methodOf(t, greeter, "Greet")
		recoverer := pipeline.NewHandlerFunc("recover", func(inv *call.Invocation, getNext pipeline.GetNextFunc) *call.Return {
			ret := getNext()(inv, getNext)
			if ret.Failed() {
				ret.SetErr(nil)
				ret.SetReturnValue("fallback")
			}
			return ret
		})
		rt := NewRuntime(pipeline.HandlerMap{m.Key(): {recoverer}})

		values, err := rt.Invoke(nil, m, []any{"bob"}, func(args []any) ([]any, error) {
			return nil, errors.New("boom")
		})

		require.NoError(t, err)
		assert.Equal(t, []any{"fallback"}, values)
	})

	t.Run("panics are captured and re-raised after unwinding", func(t *testing.T) {
		var observed error
		m := methodOf(t, greeter, "Greet")
		observer := pipeline.NewHandlerFunc("observer", func(inv *call.Invocation, getNext pipeline.GetNextFunc) *call.Return {
			ret := getNext()(inv, getNext)
			observed = ret.Err()
			return ret
		})
		rt := NewRuntime(pipeline.HandlerMap{m.Key(): {observer}})

		defer func() {
			v := recover()
			pe, ok := v.(*call.PanicError)
			require.True(t, ok)
			assert.Equal(t, "kaboom", pe.Value)
			assert.NotEmpty(t, pe.Stack)
			assert.Same(t, pe, observed)
		}()

		_, _ = rt.Invoke(nil, m, []any{"bob"}, func(args []any) ([]any, error) {
			panic("kaboom")
		})
	})

	t.Run("nil return from handler", func(t *testing.T) {
		m := methodOf(t, greeter, "Greet")
		broken := pipeline.NewHandlerFunc("broken", func(*call.Invocation, pipeline.GetNextFunc) *call.Return {
			return nil
		})
		rt := NewRuntime(pipeline.HandlerMap{m.Key(): {broken}})

		_, err := rt.Invoke(nil, m, []any{"bob"}, func(args []any) ([]any, error) {
			return []any{"x"}, nil
		})

		assert.ErrorIs(t, err, ErrNilReturn)
	})

	t.Run("pads missing result values", func(t *testing.T) {
		m := methodOf(t, greeter, "Greet")

		values, err := NewRuntime(nil).Invoke(nil, m, []any{"bob"}, func(args []any) ([]any, error) {
			return nil, nil
		})

		require.NoError(t, err)
		assert.Equal(t, []any{""}, values)
	})
}

func TestRuntimeResolution(t *testing.T) {
	handler := pipeline.NewHandlerFunc("h", func(inv *call.Invocation, getNext pipeline.GetNextFunc) *call.Return {
		return getNext()(inv, getNext)
	})

	t.Run("generic definition", func(t *testing.T) {
		owner := reflect.TypeOf(&Repo[int]{})
		m := methodOf(t, owner, "Save")
		rt := NewRuntime(pipeline.HandlerMap{
			call.DefinitionKeyOf(reflect.TypeOf(Repo[string]{}), "Save"): {handler},
		})

		assert.Equal(t, 1, rt.Pipeline(m).Len())
	})

	t.Run("embedded generic base definition", func(t *testing.T) {
		m := methodOf(t, reflect.TypeOf(&UserRepo{}), "Save")
		rt := NewRuntime(pipeline.HandlerMap{
			call.DefinitionKeyOf(reflect.TypeOf(Repo[bool]{}), "Save"): {handler},
		})

		assert.Equal(t, 1, rt.Pipeline(m).Len())
	})

	t.Run("declaring type of promoted method", func(t *testing.T) {
		m := methodOf(t, reflect.TypeOf(&Service{}), "Greet")
		rt := NewRuntime(pipeline.HandlerMap{
			call.KeyOf(reflect.TypeOf(Greeter{}), "Greet"): {handler},
		})

		assert.Equal(t, 1, rt.Pipeline(m).Len())
	})

	t.Run("falls back to empty pipeline", func(t *testing.T) {
		m := methodOf(t, reflect.TypeOf(&Service{}), "Greet")
		rt := NewRuntime(pipeline.HandlerMap{
			call.KeyOf(reflect.TypeOf(UserRepo{}), "Greet"): {handler},
		})

		assert.Same(t, pipeline.Empty, rt.Pipeline(m))
		assert.Len(t, rt.Keys(), 1)
	})

	t.Run("exact key wins", func(t *testing.T) {
		m := methodOf(t, reflect.TypeOf(&Service{}), "Greet")
		rt := NewRuntime(pipeline.HandlerMap{
			m.Key(): {handler, handler},
			call.KeyOf(reflect.TypeOf(Greeter{}), "Greet"): {handler},
		})

		assert.Equal(t, 2, rt.Pipeline(m).Len())
		assert.Same(t, rt.Pipeline(m), rt.Pipeline(m))
	})
}
