package pipeline

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/lubkli/IoCBuilder-sub000/call"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testInvocation() *call.Invocation {
	m := call.NewMethod(reflect.TypeOf(0), "Do", reflect.TypeOf(func(string) string { return "" }), "in")
	return call.NewInvocation(nil, m, []any{"x"})
}

func recordingHandler(tag string, log *[]string) Handler {
	return NewHandlerFunc(tag, func(inv *call.Invocation, getNext GetNextFunc) *call.Return {
		*log = append(*log, "Before"+tag)
		ret := getNext()(inv, getNext)
		*log = append(*log, "After"+tag)
		return ret
	})
}

func TestPipeline(t *testing.T) {
	t.Run("empty pipeline calls terminal with nil continuation", func(t *testing.T) {
		var received GetNextFunc = func() InvokeFunc { return nil }
		called := false

		ret := Empty.Invoke(testInvocation(), func(inv *call.Invocation, getNext GetNextFunc) *call.Return {
			called = true
			received = getNext
			return inv.CreateReturn("R")
		})

		assert.True(t, called)
		assert.Nil(t, received)
		assert.Equal(t, "R", ret.ReturnValue())
	})

	t.Run("runs before logic in order and after logic in reverse", func(t *testing.T) {
		var log []string
		p := New(recordingHandler("1", &log), recordingHandler("2", &log), recordingHandler("3", &log))

		p.Invoke(testInvocation(), func(inv *call.Invocation, _ GetNextFunc) *call.Return {
			log = append(log, "method")
			return inv.CreateReturn()
		})

		assert.Equal(t, []string{"Before1", "Before2", "Before3", "method", "After3", "After2", "After1"}, log)
	})

	t.Run("short-circuit skips downstream handlers and terminal", func(t *testing.T) {
		var log []string
		stop := NewHandlerFunc("stop", func(inv *call.Invocation, _ GetNextFunc) *call.Return {
			log = append(log, "stop")
			return inv.CreateReturn("short")
		})
		p := New(recordingHandler("1", &log), stop, recordingHandler("3", &log))

		ret := p.Invoke(testInvocation(), func(inv *call.Invocation, _ GetNextFunc) *call.Return {
			log = append(log, "method")
			return inv.CreateReturn("real")
		})

		assert.Equal(t, []string{"Before1", "stop", "After1"}, log)
		assert.Equal(t, "short", ret.ReturnValue())
	})

	t.Run("continuation can be replayed", func(t *testing.T) {
		var log []string
		twice := NewHandlerFunc("twice", func(inv *call.Invocation, getNext GetNextFunc) *call.Return {
			next := getNext()
			next(inv, getNext)
			return next(inv, getNext)
		})
		p := New(twice, recordingHandler("2", &log))
		calls := 0

		p.Invoke(testInvocation(), func(inv *call.Invocation, _ GetNextFunc) *call.Return {
			calls++
			return inv.CreateReturn()
		})

		assert.Equal(t, 2, calls)
		assert.Equal(t, []string{"Before2", "After2", "Before2", "After2"}, log)
	})

	t.Run("handler list is copied", func(t *testing.T) {
		var log []string
		handlers := []Handler{recordingHandler("1", &log)}
		p := New(handlers...)
		handlers[0] = recordingHandler("changed", &log)

		assert.Equal(t, []string{"1"}, p.Names())
		assert.Equal(t, 1, p.Len())
		require.Len(t, p.Handlers(), 1)
	})

	t.Run("deep chains", func(t *testing.T) {
		var log []string
		handlers := make([]Handler, 0, 50)
		for i := 0; i < 50; i++ {
			handlers = append(handlers, recordingHandler(fmt.Sprint(i), &log))
		}

		New(handlers...).Invoke(testInvocation(), func(inv *call.Invocation, _ GetNextFunc) *call.Return {
			return inv.CreateReturn()
		})

		assert.Len(t, log, 100)
		assert.Equal(t, "Before0", log[0])
		assert.Equal(t, "After0", log[99])
	})

	t.Run("nil outcome becomes a failure", func(t *testing.T) {
		var upstream *call.Return
		outer := NewHandlerFunc("outer", func(inv *call.Invocation, getNext GetNextFunc) *call.Return {
			upstream = getNext()(inv, getNext)
			return upstream
		})
		broken := NewHandlerFunc("broken", func(*call.Invocation, GetNextFunc) *call.Return {
			return nil
		})

		ret := New(outer, broken).Invoke(testInvocation(), func(inv *call.Invocation, _ GetNextFunc) *call.Return {
			return inv.CreateReturn("R")
		})

		require.NotNil(t, upstream)
		assert.ErrorIs(t, upstream.Err(), ErrNilReturn)
		assert.Contains(t, upstream.Err().Error(), "broken")
		assert.Same(t, upstream, ret)

		ret = New(broken).Invoke(testInvocation(), func(inv *call.Invocation, _ GetNextFunc) *call.Return {
			return inv.CreateReturn("R")
		})
		require.NotNil(t, ret)
		assert.ErrorIs(t, ret.Err(), ErrNilReturn)
	})
}

func TestHandlerMap(t *testing.T) {
	key := call.MethodKey{Owner: "T", Name: "M"}
	m := HandlerMap{}
	var log []string
	m.Add(key, recordingHandler("1", &log))

	clone := m.Clone()
	clone.Add(key, recordingHandler("2", &log))

	assert.Len(t, m[key], 1)
	assert.Len(t, clone[key], 2)
}
