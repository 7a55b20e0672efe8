package handlers

import (
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/lubkli/IoCBuilder-sub000/call"
	"github.com/lubkli/IoCBuilder-sub000/pipeline"
)

// Outcome label values
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
	OutcomePanic   = "panic"
)

// DefaultNamespace prefixes the metrics of zero-value Metrics handlers
const DefaultNamespace = "interception"

// Metrics counts invocations and observes their duration per method
type Metrics struct {
	calls    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

var defaultMetrics = sync.OnceValue(func() *Metrics {
	m, err := NewMetrics(prometheus.DefaultRegisterer, DefaultNamespace)
	if err != nil {
		return newMetrics(DefaultNamespace)
	}
	return m
})

// NewMetrics creates a metrics handler and registers its collectors with reg.
// Collectors already registered under the same names are reused, so several
// handlers can share one registry.
func NewMetrics(reg prometheus.Registerer, namespace string) (*Metrics, error) {
	m := newMetrics(namespace)
	if reg == nil {
		return m, nil
	}

	calls, err := register(reg, m.calls)
	if err != nil {
		return nil, err
	}
	duration, err := register(reg, m.duration)
	if err != nil {
		return nil, err
	}

	m.calls, m.duration = calls, duration
	return m, nil
}

func newMetrics(namespace string) *Metrics {
	return &Metrics{
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invocations_total",
			Help:      "Number of intercepted method invocations.",
		}, []string{"method", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "invocation_duration_seconds",
			Help:      "Duration of intercepted method invocations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
	}
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	err := reg.Register(c)
	if err == nil {
		return c, nil
	}

	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(C); ok {
			return existing, nil
		}
	}
	return c, err
}

// Calls returns the invocation counter, labelled by method and outcome
func (h *Metrics) Calls() *prometheus.CounterVec {
	return h.vectors().calls
}

// Duration returns the duration histogram, labelled by method
func (h *Metrics) Duration() *prometheus.HistogramVec {
	return h.vectors().duration
}

func (h *Metrics) vectors() *Metrics {
	if h.calls == nil || h.duration == nil {
		return defaultMetrics()
	}
	return h
}

// Invoke implements pipeline.Handler
func (h *Metrics) Invoke(inv *call.Invocation, getNext pipeline.GetNextFunc) *call.Return {
	m := h.vectors()
	method := inv.Method.String()
	start := time.Now()

	ret := getNext()(inv, getNext)

	m.duration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	m.calls.WithLabelValues(method, outcome(ret.Err())).Inc()
	return ret
}

// Name implements pipeline.Handler
func (h *Metrics) Name() string {
	return "MetricsHandler"
}

func outcome(err error) string {
	var pe *call.PanicError
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.As(err, &pe):
		return OutcomePanic
	default:
		return OutcomeError
	}
}
