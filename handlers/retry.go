package handlers

import (
	"errors"
	"log/slog"
	"time"

	"github.com/lubkli/IoCBuilder-sub000/call"
	"github.com/lubkli/IoCBuilder-sub000/internal/reliability"
	"github.com/lubkli/IoCBuilder-sub000/pipeline"
)

// RetryConfig configures exponential backoff for a Retry handler. Zero
// fields take the defaults of DefaultRetryConfig.
type RetryConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	// Retryable overrides the default classification of failures
	Retryable func(error) bool
}

// DefaultRetryConfig is used by zero-value Retry handlers
var DefaultRetryConfig = RetryConfig{
	MaxRetries:      3,
	InitialInterval: 100 * time.Millisecond,
	MaxInterval:     5 * time.Second,
	Multiplier:      2,
}

func (c RetryConfig) policy() reliability.RetryPolicy {
	d := DefaultRetryConfig
	if c.MaxRetries > 0 {
		d.MaxRetries = c.MaxRetries
	}
	if c.InitialInterval > 0 {
		d.InitialInterval = c.InitialInterval
	}
	if c.MaxInterval > 0 {
		d.MaxInterval = c.MaxInterval
	}
	if c.Multiplier > 0 {
		d.Multiplier = c.Multiplier
	}

	p := reliability.NewExponentialBackoff(d.InitialInterval, d.MaxInterval, d.Multiplier, d.MaxRetries)
	p.Retryable = retryable
	if c.Retryable != nil {
		p.Retryable = c.Retryable
	}
	return p
}

// retryable rejects the failures of this package's gatekeeping handlers and
// of handlers that returned no result.
func retryable(err error) bool {
	if errors.Is(err, ErrValidation) || errors.Is(err, ErrFiltered) || errors.Is(err, ErrShortCircuit) || errors.Is(err, pipeline.ErrNilReturn) {
		return false
	}
	return reliability.IsRetryableError(err)
}

// Retry replays the rest of the chain while it fails with a retryable
// error. Captured panics are never retried. Waiting between attempts stops
// when the invocation context is done.
type Retry struct {
	policy reliability.RetryPolicy
	logger *slog.Logger
}

// NewRetry creates a retry handler
func NewRetry(config RetryConfig) *Retry {
	return &Retry{policy: config.policy()}
}

// WithLogger sets the logger for the retry handler
func (h *Retry) WithLogger(logger *slog.Logger) *Retry {
	h.logger = logger
	return h
}

// Invoke implements pipeline.Handler
func (h *Retry) Invoke(inv *call.Invocation, getNext pipeline.GetNextFunc) *call.Return {
	policy := h.policy
	if policy == nil {
		policy = DefaultRetryConfig.policy()
	}
	logger := h.logger
	if logger == nil {
		logger = slog.Default()
	}

	var ret *call.Return
	attempts, err := reliability.Do(inv.Context(), policy, func(n int) error {
		if n > 0 {
			logger.Debug("retrying invocation",
				"method", inv.Method.String(),
				"invocationId", inv.ID,
				"attempt", n+1,
			)
		}
		ret = getNext()(inv, getNext)
		return ret.Err()
	})

	if err != nil && attempts > 1 {
		logger.Warn("invocation failed after retries",
			"method", inv.Method.String(),
			"invocationId", inv.ID,
			"attempts", attempts,
			"error", err,
		)
	}
	if ctxErr := inv.Context().Err(); err != nil && ctxErr != nil && err == ctxErr {
		return inv.CreateFailure(err)
	}
	return ret
}

// Name implements pipeline.Handler
func (h *Retry) Name() string {
	return "RetryHandler"
}
