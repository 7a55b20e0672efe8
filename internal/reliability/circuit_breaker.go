package reliability

import (
	"fmt"
	"sync"
	"time"
)

// State represents the circuit breaker state
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// StateChangeFunc is told about every state transition. It runs with the
// breaker lock released.
type StateChangeFunc func(name string, from, to State, reason string)

// CircuitBreaker fails calls fast after repeated failures
type CircuitBreaker struct {
	mu              sync.Mutex
	state           State
	failures        int
	successes       int
	halfOpenCalls   int
	lastFailureTime time.Time
	totalCalls      int64
	totalFailures   int64
	totalRejected   int64

	failureThreshold int
	successThreshold int
	timeout          time.Duration
	halfOpenRequests int
	name             string
	now              func() time.Time
	onChange         []StateChangeFunc
}

// CircuitBreakerOption configures the circuit breaker
type CircuitBreakerOption func(*CircuitBreaker)

// WithFailureThreshold sets the consecutive failures that open the circuit
func WithFailureThreshold(threshold int) CircuitBreakerOption {
	return func(cb *CircuitBreaker) {
		cb.failureThreshold = threshold
	}
}

// WithSuccessThreshold sets the half-open successes that close the circuit
func WithSuccessThreshold(threshold int) CircuitBreakerOption {
	return func(cb *CircuitBreaker) {
		cb.successThreshold = threshold
	}
}

// WithTimeout sets how long the circuit stays open
func WithTimeout(timeout time.Duration) CircuitBreakerOption {
	return func(cb *CircuitBreaker) {
		cb.timeout = timeout
	}
}

// WithHalfOpenRequests sets the calls let through while half-open
func WithHalfOpenRequests(requests int) CircuitBreakerOption {
	return func(cb *CircuitBreaker) {
		cb.halfOpenRequests = requests
	}
}

// WithName sets the breaker name
func WithName(name string) CircuitBreakerOption {
	return func(cb *CircuitBreaker) {
		cb.name = name
	}
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) CircuitBreakerOption {
	return func(cb *CircuitBreaker) {
		cb.now = now
	}
}

// WithStateChange registers a transition callback
func WithStateChange(fn StateChangeFunc) CircuitBreakerOption {
	return func(cb *CircuitBreaker) {
		cb.onChange = append(cb.onChange, fn)
	}
}

// NewCircuitBreaker creates a new circuit breaker
func NewCircuitBreaker(options ...CircuitBreakerOption) *CircuitBreaker {
	cb := &CircuitBreaker{
		state:            StateClosed,
		failureThreshold: 5,
		successThreshold: 3,
		timeout:          30 * time.Second,
		halfOpenRequests: 3,
		name:             "default",
		now:              time.Now,
	}

	for _, opt := range options {
		opt(cb)
	}

	return cb
}

// Name returns the breaker name
func (cb *CircuitBreaker) Name() string {
	return cb.name
}

// Allow reports whether a call may proceed. Every allowed call must be
// followed by exactly one Record.
func (cb *CircuitBreaker) Allow() error {
	cb.mu.Lock()
	cb.totalCalls++

	var change *transition
	err := func() error {
		switch cb.state {
		case StateClosed:
			return nil

		case StateOpen:
			nextRetry := cb.lastFailureTime.Add(cb.timeout)
			if cb.now().Before(nextRetry) {
				return cb.reject(nextRetry)
			}
			change = cb.moveTo(StateHalfOpen, "timeout expired")
			cb.halfOpenCalls = 1
			return nil

		case StateHalfOpen:
			if cb.halfOpenCalls >= cb.halfOpenRequests {
				return cb.reject(cb.now())
			}
			cb.halfOpenCalls++
			return nil

		default:
			return ErrUnknownState
		}
	}()
	cb.mu.Unlock()

	cb.notify(change)
	return err
}

// Record reports how an allowed call ended
func (cb *CircuitBreaker) Record(err error) {
	cb.mu.Lock()

	var change *transition
	if err != nil {
		cb.failures++
		cb.successes = 0
		cb.totalFailures++
		cb.lastFailureTime = cb.now()

		switch cb.state {
		case StateClosed:
			if cb.failures >= cb.failureThreshold {
				change = cb.moveTo(StateOpen,
					fmt.Sprintf("failure threshold reached (%d/%d)", cb.failures, cb.failureThreshold))
			}
		case StateHalfOpen:
			change = cb.moveTo(StateOpen, "failure in half-open state")
		}
	} else {
		cb.successes++

		switch cb.state {
		case StateHalfOpen:
			if cb.successes >= cb.successThreshold {
				change = cb.moveTo(StateClosed,
					fmt.Sprintf("success threshold reached (%d/%d)", cb.successes, cb.successThreshold))
				cb.failures = 0
			}
		case StateClosed:
			cb.failures = 0
		}
	}
	cb.mu.Unlock()

	cb.notify(change)
}

// State returns the current state
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Reset closes the circuit
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.state = StateClosed
	cb.failures = 0
	cb.successes = 0
	cb.halfOpenCalls = 0
}

// Metrics returns a snapshot of the breaker counters
func (cb *CircuitBreaker) Metrics() CircuitBreakerMetrics {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return CircuitBreakerMetrics{
		Name:            cb.name,
		State:           cb.state,
		TotalCalls:      cb.totalCalls,
		TotalFailures:   cb.totalFailures,
		TotalRejected:   cb.totalRejected,
		CurrentFailures: cb.failures,
		LastFailureTime: cb.lastFailureTime,
	}
}

// CircuitBreakerMetrics is a point-in-time view of a breaker
type CircuitBreakerMetrics struct {
	Name            string
	State           State
	TotalCalls      int64
	TotalFailures   int64
	TotalRejected   int64
	CurrentFailures int
	LastFailureTime time.Time
}

type transition struct {
	from, to State
	reason   string
}

// moveTo is called with cb.mu held.
func (cb *CircuitBreaker) moveTo(to State, reason string) *transition {
	from := cb.state
	cb.state = to
	cb.successes = 0
	cb.halfOpenCalls = 0
	return &transition{from: from, to: to, reason: reason}
}

// reject is called with cb.mu held.
func (cb *CircuitBreaker) reject(nextRetry time.Time) error {
	cb.totalRejected++
	return &CircuitBreakerError{
		Name:             cb.name,
		State:            cb.state,
		Failures:         cb.failures,
		FailureThreshold: cb.failureThreshold,
		NextRetry:        nextRetry,
	}
}

func (cb *CircuitBreaker) notify(t *transition) {
	if t == nil {
		return
	}
	for _, fn := range cb.onChange {
		fn(cb.name, t.from, t.to, t.reason)
	}
}
