package handlers

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/lubkli/IoCBuilder-sub000/call"
)

type mockDetector struct {
	mock.Mock
}

func (m *mockDetector) IsDuplicate(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

func (m *mockDetector) MarkProcessed(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

type mockCache struct {
	mock.Mock
}

func (m *mockCache) Get(ctx context.Context, key string) (*CacheEntry, bool, error) {
	args := m.Called(ctx, key)
	entry, _ := args.Get(0).(*CacheEntry)
	return entry, args.Bool(1), args.Error(2)
}

func (m *mockCache) Set(ctx context.Context, key string, entry *CacheEntry) error {
	return m.Called(ctx, key, entry).Error(0)
}

func TestShortCircuit(t *testing.T) {
	t.Run("returns the evaluator results without calling the method", func(t *testing.T) {
		backend := succeed("found")
		h := NewShortCircuit(EvaluatorFunc(func(*call.Invocation) (bool, *ShortCircuitResult, error) {
			return true, &ShortCircuitResult{Values: []any{"stubbed"}, Reason: "maintenance"}, nil
		}))
		inv := call.NewInvocation(nil, findMethod(t), []any{context.Background(), "42"})

		ret := run(h, inv, backend)

		require.NoError(t, ret.Err())
		assert.Equal(t, "stubbed", ret.ReturnValue())
		assert.Equal(t, 0, backend.calls)
		reason, ok := inv.Items().GetString(ItemShortCircuitReason)
		require.True(t, ok)
		assert.Equal(t, "maintenance", reason)
	})

	t.Run("continues when the evaluator declines", func(t *testing.T) {
		backend := succeed("found")
		h := NewShortCircuit(EvaluatorFunc(func(*call.Invocation) (bool, *ShortCircuitResult, error) {
			return false, nil, nil
		}))
		inv := call.NewInvocation(nil, findMethod(t), []any{context.Background(), "42"})

		ret := run(h, inv, backend)

		assert.Equal(t, "found", ret.ReturnValue())
		assert.Equal(t, 1, backend.calls)
	})

	t.Run("fails on evaluator errors", func(t *testing.T) {
		h := NewShortCircuit(EvaluatorFunc(func(*call.Invocation) (bool, *ShortCircuitResult, error) {
			return false, nil, errors.New("broken")
		}))
		inv := call.NewInvocation(nil, findMethod(t), []any{context.Background(), "42"})

		ret := run(h, inv, succeed("found"))

		assert.EqualError(t, ret.Err(), "broken")
	})
}

func TestShortCircuitError(t *testing.T) {
	err := &ShortCircuitError{Result: &ShortCircuitResult{Reason: "duplicate"}}

	assert.True(t, IsShortCircuit(err))
	assert.ErrorIs(t, err, ErrShortCircuit)
	assert.EqualError(t, err, "duplicate")
	assert.EqualError(t, &ShortCircuitError{}, ErrShortCircuit.Error())
	assert.False(t, IsShortCircuit(errors.New("other")))

	result, ok := GetShortCircuitResult(err)
	require.True(t, ok)
	assert.Equal(t, "duplicate", result.Reason)
}

func TestShortCircuitOnError(t *testing.T) {
	errNotFound := errors.New("not found")
	h := NewShortCircuitOnError(ErrorEvaluatorFunc(func(err error) (bool, *ShortCircuitResult) {
		if errors.Is(err, errNotFound) {
			return true, &ShortCircuitResult{Values: []any{"fallback"}}
		}
		return false, nil
	}))

	t.Run("replaces accepted failures with fallback results", func(t *testing.T) {
		inv := call.NewInvocation(nil, findMethod(t), []any{context.Background(), "42"})

		ret := run(h, inv, fail(errNotFound))

		require.NoError(t, ret.Err())
		assert.Equal(t, "fallback", ret.ReturnValue())
	})

	t.Run("keeps other failures", func(t *testing.T) {
		inv := call.NewInvocation(nil, findMethod(t), []any{context.Background(), "42"})

		ret := run(h, inv, fail(errors.New("timeout")))

		assert.EqualError(t, ret.Err(), "timeout")
	})

	t.Run("never clears captured panics", func(t *testing.T) {
		clearAll := NewShortCircuitOnError(ErrorEvaluatorFunc(func(error) (bool, *ShortCircuitResult) {
			return true, nil
		}))
		inv := call.NewInvocation(nil, findMethod(t), []any{context.Background(), "42"})

		ret := run(clearAll, inv, fail(call.NewPanicError("boom", nil)))

		var pe *call.PanicError
		assert.ErrorAs(t, ret.Err(), &pe)
	})
}

func TestDuplicateDetection(t *testing.T) {
	t.Run("fails repeated invocations", func(t *testing.T) {
		backend := succeed("found")
		h := NewDuplicateDetection(NewMemoryCache(0))
		find := findMethod(t)

		first := run(h, call.NewInvocation(nil, find, []any{context.Background(), "42"}), backend)
		second := run(h, call.NewInvocation(nil, find, []any{context.Background(), "42"}), backend)
		other := run(h, call.NewInvocation(nil, find, []any{context.Background(), "7"}), backend)

		require.NoError(t, first.Err())
		assert.True(t, IsShortCircuit(second.Err()))
		require.NoError(t, other.Err())
		assert.Equal(t, 2, backend.calls)
	})

	t.Run("does not mark failed invocations", func(t *testing.T) {
		detector := new(mockDetector)
		detector.On("IsDuplicate", mock.Anything, mock.Anything).Return(false, nil)
		inv := call.NewInvocation(nil, findMethod(t), []any{context.Background(), "42"})

		ret := run(NewDuplicateDetection(detector), inv, fail(errors.New("boom")))

		assert.EqualError(t, ret.Err(), "boom")
		detector.AssertNotCalled(t, "MarkProcessed", mock.Anything, mock.Anything)
	})

	t.Run("reports detector errors", func(t *testing.T) {
		detector := new(mockDetector)
		detector.On("IsDuplicate", mock.Anything, mock.Anything).Return(false, nil)
		detector.On("MarkProcessed", mock.Anything, mock.Anything).Return(errors.New("store down"))
		inv := call.NewInvocation(nil, findMethod(t), []any{context.Background(), "42"})

		ret := run(NewDuplicateDetection(detector), inv, succeed("found"))

		assert.EqualError(t, ret.Err(), "store down")
		detector.AssertExpectations(t)
	})
}

func TestInputKey(t *testing.T) {
	find := findMethod(t)

	a, err := InputKey(call.NewInvocation(nil, find, []any{context.Background(), "42"}))
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	b, err := InputKey(call.NewInvocation(nil, find, []any{ctx, "42"}))
	require.NoError(t, err)
	c, err := InputKey(call.NewInvocation(nil, find, []any{context.Background(), "7"}))
	require.NoError(t, err)

	assert.Equal(t, find.String()+`:["42"]`, a)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)

	_, err = InputKey(call.NewInvocation(nil, find, []any{context.Background(), make(chan int)}))
	assert.Error(t, err)
}

type shard struct{ name string }

func TestTargetKey(t *testing.T) {
	find := findMethod(t)
	args := func() []any { return []any{context.Background(), "42"} }

	plain, err := TargetKey(call.NewInvocation(nil, find, args()))
	require.NoError(t, err)
	assert.Equal(t, find.String()+`:["42"]`, plain)

	a := &shard{name: "a"}
	first, err := TargetKey(call.NewInvocation(a, find, args()))
	require.NoError(t, err)
	again, err := TargetKey(call.NewInvocation(a, find, args()))
	require.NoError(t, err)
	other, err := TargetKey(call.NewInvocation(&shard{name: "a"}, find, args()))
	require.NoError(t, err)

	assert.Equal(t, first, again)
	assert.NotEqual(t, first, other)
	assert.True(t, strings.HasSuffix(first, plain))

	value, err := TargetKey(call.NewInvocation(shard{name: "b"}, find, args()))
	require.NoError(t, err)
	assert.Contains(t, value, "{b}")
}

func TestCaching(t *testing.T) {
	t.Run("replays results and outputs for repeated inputs", func(t *testing.T) {
		backend := &terminal{fn: func(inv *call.Invocation) *call.Return {
			ret := inv.CreateReturn("loaded")
			ret.Outputs().Set(0, 7)
			return ret
		}}
		h := NewCaching(nil)
		load := loadMethod(t)

		first := run(h, call.NewInvocation(nil, load, []any{"42"}), backend)
		inv := call.NewInvocation(nil, load, []any{"42"})
		second := run(h, inv, backend)

		require.NoError(t, first.Err())
		require.NoError(t, second.Err())
		assert.Equal(t, 1, backend.calls)
		assert.Equal(t, "loaded", second.ReturnValue())
		assert.Equal(t, 7, second.Outputs().Get(0))
		assert.Equal(t, 7, inv.Args()[1])
		reason, _ := inv.Items().GetString(ItemShortCircuitReason)
		assert.Equal(t, "cache hit", reason)
	})

	t.Run("keeps results of different targets apart", func(t *testing.T) {
		backend := &terminal{fn: func(inv *call.Invocation) *call.Return {
			return inv.CreateReturn(inv.Target.(*shard).name)
		}}
		h := NewCaching(nil)
		find := findMethod(t)
		a, b := &shard{name: "a"}, &shard{name: "b"}

		first := run(h, call.NewInvocation(a, find, []any{context.Background(), "42"}), backend)
		second := run(h, call.NewInvocation(b, find, []any{context.Background(), "42"}), backend)
		third := run(h, call.NewInvocation(a, find, []any{context.Background(), "42"}), backend)

		assert.Equal(t, "a", first.ReturnValue())
		assert.Equal(t, "b", second.ReturnValue())
		assert.Equal(t, "a", third.ReturnValue())
		assert.Equal(t, 2, backend.calls)
	})

	t.Run("does not record failures", func(t *testing.T) {
		backend := fail(errors.New("boom"))
		cache := NewMemoryCache(0)
		h := NewCaching(cache)
		find := findMethod(t)

		run(h, call.NewInvocation(nil, find, []any{context.Background(), "42"}), backend)
		run(h, call.NewInvocation(nil, find, []any{context.Background(), "42"}), backend)

		assert.Equal(t, 2, backend.calls)
		assert.Equal(t, 0, cache.Len())
	})

	t.Run("fails on cache read errors", func(t *testing.T) {
		cache := new(mockCache)
		cache.On("Get", mock.Anything, mock.Anything).Return(nil, false, errors.New("cache down"))
		inv := call.NewInvocation(nil, findMethod(t), []any{context.Background(), "42"})

		ret := run(NewCaching(cache), inv, succeed("found"))

		assert.EqualError(t, ret.Err(), "cache get: cache down")
	})

	t.Run("ignores cache write errors", func(t *testing.T) {
		cache := new(mockCache)
		cache.On("Get", mock.Anything, mock.Anything).Return(nil, false, nil)
		cache.On("Set", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("cache down"))
		inv := call.NewInvocation(nil, findMethod(t), []any{context.Background(), "42"})

		ret := run(NewCaching(cache), inv, succeed("found"))

		require.NoError(t, ret.Err())
		assert.Equal(t, "found", ret.ReturnValue())
		cache.AssertExpectations(t)
	})

	t.Run("passes through invocations it cannot key", func(t *testing.T) {
		backend := succeed("found")
		inv := call.NewInvocation(nil, findMethod(t), []any{context.Background(), "42"})
		h := NewCaching(nil).WithKeyFunc(func(*call.Invocation) (string, error) {
			return "", errors.New("no key")
		})

		ret := run(h, inv, backend)

		assert.Equal(t, "found", ret.ReturnValue())
		assert.Equal(t, 1, backend.calls)
	})
}

func TestMemoryCache(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cache := NewMemoryCache(time.Minute)
	cache.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "k", &CacheEntry{Values: []any{1}}))
	entry, ok, err := cache.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []any{1}, entry.Values)

	now = now.Add(time.Minute)
	_, ok, err = cache.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	dup, err := cache.IsDuplicate(ctx, "d")
	require.NoError(t, err)
	assert.False(t, dup)
	require.NoError(t, cache.MarkProcessed(ctx, "d"))
	dup, err = cache.IsDuplicate(ctx, "d")
	require.NoError(t, err)
	assert.True(t, dup)
}
