package handlers

import (
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"github.com/lubkli/IoCBuilder-sub000/call"
	"github.com/lubkli/IoCBuilder-sub000/pipeline"
)

// ChainBuilder assembles a handler chain in the order the With methods are
// called
type ChainBuilder struct {
	handlers []pipeline.Handler
	logger   *slog.Logger
}

// NewChainBuilder creates a new builder
func NewChainBuilder(logger *slog.Logger) *ChainBuilder {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChainBuilder{logger: logger}
}

// WithLogging adds a logging handler
func (b *ChainBuilder) WithLogging() *ChainBuilder {
	return b.WithCustom(NewLogging(b.logger))
}

// WithMetrics adds a metrics handler. A nil m uses the collectors registered
// with the default prometheus registry.
func (b *ChainBuilder) WithMetrics(m *Metrics) *ChainBuilder {
	if m == nil {
		m = &Metrics{}
	}
	return b.WithCustom(m)
}

// WithTracing adds a tracing handler
func (b *ChainBuilder) WithTracing(provider trace.TracerProvider) *ChainBuilder {
	return b.WithCustom(NewTracing(provider))
}

// WithValidation adds a validation handler
func (b *ChainBuilder) WithValidation(validators ...Validator) *ChainBuilder {
	return b.WithCustom(NewValidation(validators...))
}

// WithFiltering adds a filtering handler
func (b *ChainBuilder) WithFiltering(filter Filter, skipBehavior SkipBehavior) *ChainBuilder {
	return b.WithCustom(NewFiltering(filter, skipBehavior).WithLogger(b.logger))
}

// WithShortCircuit adds a short-circuit handler
func (b *ChainBuilder) WithShortCircuit(evaluator Evaluator) *ChainBuilder {
	return b.WithCustom(NewShortCircuit(evaluator))
}

// WithCaching adds a caching handler
func (b *ChainBuilder) WithCaching(cache Cache) *ChainBuilder {
	return b.WithCustom(NewCaching(cache).WithLogger(b.logger))
}

// WithCircuitBreaker adds a circuit breaker handler
func (b *ChainBuilder) WithCircuitBreaker(config BreakerConfig) *ChainBuilder {
	return b.WithCustom(NewCircuitBreaker(config, b.logger))
}

// WithRetry adds a retry handler
func (b *ChainBuilder) WithRetry(config RetryConfig) *ChainBuilder {
	return b.WithCustom(NewRetry(config).WithLogger(b.logger))
}

// WithCustom adds custom handlers
func (b *ChainBuilder) WithCustom(handlers ...pipeline.Handler) *ChainBuilder {
	b.handlers = append(b.handlers, handlers...)
	return b
}

// Build returns the built pipeline
func (b *ChainBuilder) Build() *pipeline.Pipeline {
	return pipeline.New(b.handlers...)
}

// For returns a handler map binding the chain to every key, ready to be
// passed to a dispatch runtime
func (b *ChainBuilder) For(keys ...call.MethodKey) pipeline.HandlerMap {
	m := make(pipeline.HandlerMap, len(keys))
	for _, k := range keys {
		m.Add(k, b.handlers...)
	}
	return m
}
