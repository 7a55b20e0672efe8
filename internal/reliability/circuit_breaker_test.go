package reliability

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func run(cb *CircuitBreaker, err error) error {
	if allowErr := cb.Allow(); allowErr != nil {
		return allowErr
	}
	cb.Record(err)
	return err
}

func TestCircuitBreaker(t *testing.T) {
	boom := errors.New("boom")

	t.Run("starts in closed state", func(t *testing.T) {
		cb := NewCircuitBreaker()
		assert.Equal(t, StateClosed, cb.State())
		assert.NoError(t, cb.Allow())
	})

	t.Run("opens after the failure threshold", func(t *testing.T) {
		cb := NewCircuitBreaker(WithFailureThreshold(3), WithName("orders"))

		for i := 0; i < 3; i++ {
			assert.ErrorIs(t, run(cb, boom), boom)
		}
		assert.Equal(t, StateOpen, cb.State())

		err := cb.Allow()
		assert.ErrorIs(t, err, ErrCircuitOpen)
		var cbErr *CircuitBreakerError
		require.ErrorAs(t, err, &cbErr)
		assert.Equal(t, "orders", cbErr.Name)
		assert.Equal(t, 3, cbErr.Failures)
	})

	t.Run("a success resets the failure count", func(t *testing.T) {
		cb := NewCircuitBreaker(WithFailureThreshold(2))

		_ = run(cb, boom)
		_ = run(cb, nil)
		_ = run(cb, boom)

		assert.Equal(t, StateClosed, cb.State())
	})

	t.Run("half-opens after the timeout and closes on successes", func(t *testing.T) {
		clock := &fakeClock{now: time.Unix(1000, 0)}
		cb := NewCircuitBreaker(
			WithFailureThreshold(1),
			WithSuccessThreshold(2),
			WithTimeout(time.Minute),
			WithClock(clock.Now),
		)

		_ = run(cb, boom)
		assert.Error(t, cb.Allow())

		clock.Advance(time.Minute + time.Second)
		assert.NoError(t, run(cb, nil))
		assert.Equal(t, StateHalfOpen, cb.State())

		assert.NoError(t, run(cb, nil))
		assert.Equal(t, StateClosed, cb.State())
	})

	t.Run("a failure while half-open reopens", func(t *testing.T) {
		clock := &fakeClock{now: time.Unix(1000, 0)}
		cb := NewCircuitBreaker(WithFailureThreshold(1), WithTimeout(time.Second), WithClock(clock.Now))

		_ = run(cb, boom)
		clock.Advance(2 * time.Second)
		_ = run(cb, boom)

		assert.Equal(t, StateOpen, cb.State())
	})

	t.Run("limits calls while half-open", func(t *testing.T) {
		clock := &fakeClock{now: time.Unix(1000, 0)}
		cb := NewCircuitBreaker(
			WithFailureThreshold(1),
			WithSuccessThreshold(5),
			WithHalfOpenRequests(2),
			WithTimeout(time.Second),
			WithClock(clock.Now),
		)

		_ = run(cb, boom)
		clock.Advance(2 * time.Second)

		assert.NoError(t, cb.Allow())
		assert.NoError(t, cb.Allow())
		assert.ErrorIs(t, cb.Allow(), ErrCircuitHalfOpenLimit)
	})

	t.Run("reports transitions and metrics", func(t *testing.T) {
		var changes []string
		cb := NewCircuitBreaker(
			WithFailureThreshold(1),
			WithStateChange(func(name string, from, to State, reason string) {
				changes = append(changes, from.String()+"->"+to.String())
			}),
		)

		_ = run(cb, boom)
		_ = cb.Allow()

		assert.Equal(t, []string{"closed->open"}, changes)
		m := cb.Metrics()
		assert.Equal(t, int64(2), m.TotalCalls)
		assert.Equal(t, int64(1), m.TotalFailures)
		assert.Equal(t, int64(1), m.TotalRejected)

		cb.Reset()
		assert.Equal(t, StateClosed, cb.State())
	})
}
