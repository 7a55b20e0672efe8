package handlers

import (
	"log/slog"
	"sync"
	"time"

	"github.com/lubkli/IoCBuilder-sub000/call"
	"github.com/lubkli/IoCBuilder-sub000/internal/reliability"
	"github.com/lubkli/IoCBuilder-sub000/pipeline"
)

// BreakerConfig configures the circuit breakers of a CircuitBreaker handler.
// Zero fields take the breaker defaults.
type BreakerConfig struct {
	FailureThreshold int
	SuccessThreshold int
	Timeout          time.Duration
	HalfOpenRequests int
}

func (c BreakerConfig) options(name string, logger *slog.Logger) []reliability.CircuitBreakerOption {
	opts := []reliability.CircuitBreakerOption{
		reliability.WithName(name),
		reliability.WithStateChange(func(name string, from, to reliability.State, reason string) {
			logger.Warn("circuit breaker state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
				"reason", reason,
			)
		}),
	}
	if c.FailureThreshold > 0 {
		opts = append(opts, reliability.WithFailureThreshold(c.FailureThreshold))
	}
	if c.SuccessThreshold > 0 {
		opts = append(opts, reliability.WithSuccessThreshold(c.SuccessThreshold))
	}
	if c.Timeout > 0 {
		opts = append(opts, reliability.WithTimeout(c.Timeout))
	}
	if c.HalfOpenRequests > 0 {
		opts = append(opts, reliability.WithHalfOpenRequests(c.HalfOpenRequests))
	}
	return opts
}

// CircuitBreaker keeps one breaker per method and fails invocations fast
// while the method's breaker is open
type CircuitBreaker struct {
	config   BreakerConfig
	logger   *slog.Logger
	breakers sync.Map // call.MethodKey -> *reliability.CircuitBreaker
}

// NewCircuitBreaker creates a circuit breaker handler
func NewCircuitBreaker(config BreakerConfig, logger *slog.Logger) *CircuitBreaker {
	return &CircuitBreaker{config: config, logger: logger}
}

// Invoke implements pipeline.Handler
func (h *CircuitBreaker) Invoke(inv *call.Invocation, getNext pipeline.GetNextFunc) *call.Return {
	cb := h.breaker(inv.Method)
	if err := cb.Allow(); err != nil {
		return inv.CreateFailure(err)
	}

	ret := getNext()(inv, getNext)
	cb.Record(ret.Err())
	return ret
}

// Name implements pipeline.Handler
func (h *CircuitBreaker) Name() string {
	return "CircuitBreakerHandler"
}

// State returns the state of the breaker guarding m
func (h *CircuitBreaker) State(m *call.Method) reliability.State {
	return h.breaker(m).State()
}

// Reset closes every breaker
func (h *CircuitBreaker) Reset() {
	h.breakers.Range(func(_, v any) bool {
		v.(*reliability.CircuitBreaker).Reset()
		return true
	})
}

func (h *CircuitBreaker) breaker(m *call.Method) *reliability.CircuitBreaker {
	key := m.Key()
	if cb, ok := h.breakers.Load(key); ok {
		return cb.(*reliability.CircuitBreaker)
	}

	logger := h.logger
	if logger == nil {
		logger = slog.Default()
	}
	cb, _ := h.breakers.LoadOrStore(key, reliability.NewCircuitBreaker(h.config.options(key.String(), logger)...))
	return cb.(*reliability.CircuitBreaker)
}
