package handlers

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/lubkli/IoCBuilder-sub000/call"
	"github.com/lubkli/IoCBuilder-sub000/pipeline"
)

// ErrFiltered is reported for invocations rejected under SkipWithError
var ErrFiltered = errors.New("invocation filtered")

// Filter decides whether an invocation proceeds down the chain
type Filter interface {
	// ShouldProceed returns true if the invocation should continue
	ShouldProceed(inv *call.Invocation) (bool, error)
}

// FilterFunc is a function adapter for Filter
type FilterFunc func(inv *call.Invocation) (bool, error)

// ShouldProceed implements Filter
func (f FilterFunc) ShouldProceed(inv *call.Invocation) (bool, error) {
	return f(inv)
}

// SkipBehavior defines what happens when an invocation is filtered out
type SkipBehavior int

const (
	// SkipSilently returns the zero values of the results
	SkipSilently SkipBehavior = iota
	// SkipWithError fails the invocation with ErrFiltered
	SkipWithError
	// SkipWithLog logs the skip and returns the zero values of the results
	SkipWithLog
)

// Filtering short-circuits invocations its filter rejects
type Filtering struct {
	filter       Filter
	skipBehavior SkipBehavior
	logger       *slog.Logger
}

// NewFiltering creates a filtering handler
func NewFiltering(filter Filter, skipBehavior SkipBehavior) *Filtering {
	return &Filtering{filter: filter, skipBehavior: skipBehavior}
}

// WithLogger sets the logger used by SkipWithLog
func (h *Filtering) WithLogger(logger *slog.Logger) *Filtering {
	h.logger = logger
	return h
}

// Invoke implements pipeline.Handler
func (h *Filtering) Invoke(inv *call.Invocation, getNext pipeline.GetNextFunc) *call.Return {
	if h.filter == nil {
		return getNext()(inv, getNext)
	}

	proceed, err := h.filter.ShouldProceed(inv)
	if err != nil {
		return inv.CreateFailure(fmt.Errorf("filter error: %w", err))
	}
	if proceed {
		return getNext()(inv, getNext)
	}

	switch h.skipBehavior {
	case SkipWithError:
		return inv.CreateFailure(fmt.Errorf("%w: method=%s, id=%s", ErrFiltered, inv.Method, inv.ID))
	case SkipWithLog:
		logger := h.logger
		if logger == nil {
			logger = slog.Default()
		}
		logger.Info("invocation filtered",
			"method", inv.Method.String(),
			"invocationId", inv.ID,
		)
	}
	return inv.CreateReturn()
}

// Name implements pipeline.Handler
func (h *Filtering) Name() string {
	return "FilteringHandler"
}

// CompositeFilter combines multiple filters with AND logic
type CompositeFilter struct {
	filters []Filter
}

// NewCompositeFilter creates a new composite filter
func NewCompositeFilter(filters ...Filter) *CompositeFilter {
	return &CompositeFilter{filters: filters}
}

// ShouldProceed implements Filter - all filters must return true
func (f *CompositeFilter) ShouldProceed(inv *call.Invocation) (bool, error) {
	for _, filter := range f.filters {
		proceed, err := filter.ShouldProceed(inv)
		if err != nil {
			return false, err
		}
		if !proceed {
			return false, nil
		}
	}
	return true, nil
}

// OrFilter combines multiple filters with OR logic
type OrFilter struct {
	filters []Filter
}

// NewOrFilter creates a new OR filter
func NewOrFilter(filters ...Filter) *OrFilter {
	return &OrFilter{filters: filters}
}

// ShouldProceed implements Filter - at least one filter must return true
func (f *OrFilter) ShouldProceed(inv *call.Invocation) (bool, error) {
	for _, filter := range f.filters {
		proceed, err := filter.ShouldProceed(inv)
		if err != nil {
			return false, err
		}
		if proceed {
			return true, nil
		}
	}
	return false, nil
}

// MethodFilter lets through the named methods only
type MethodFilter struct {
	allowed map[string]bool
}

// NewMethodFilter creates a filter allowing methods by name
func NewMethodFilter(names ...string) *MethodFilter {
	allowed := make(map[string]bool, len(names))
	for _, n := range names {
		allowed[n] = true
	}
	return &MethodFilter{allowed: allowed}
}

// ShouldProceed implements Filter
func (f *MethodFilter) ShouldProceed(inv *call.Invocation) (bool, error) {
	return f.allowed[inv.Method.Name], nil
}

// ItemFilter lets through invocations whose item bag holds key with the
// expected value, as set by an earlier handler
type ItemFilter struct {
	key      string
	expected any
}

// NewItemFilter creates a filter that checks invocation items
func NewItemFilter(key string, expected any) *ItemFilter {
	return &ItemFilter{key: key, expected: expected}
}

// ShouldProceed implements Filter
func (f *ItemFilter) ShouldProceed(inv *call.Invocation) (bool, error) {
	value, ok := inv.Items().Get(f.key)
	if !ok {
		return false, nil
	}
	return value == f.expected, nil
}

// Conditional runs its handler only for invocations matching the condition.
// Other invocations skip straight to the next stage.
type Conditional struct {
	condition Filter
	handler   pipeline.Handler
}

// NewConditional creates a conditional handler
func NewConditional(condition Filter, handler pipeline.Handler) *Conditional {
	return &Conditional{condition: condition, handler: handler}
}

// Invoke implements pipeline.Handler
func (h *Conditional) Invoke(inv *call.Invocation, getNext pipeline.GetNextFunc) *call.Return {
	run, err := h.condition.ShouldProceed(inv)
	if err != nil {
		return inv.CreateFailure(err)
	}
	if run {
		return h.handler.Invoke(inv, getNext)
	}
	return getNext()(inv, getNext)
}

// Name implements pipeline.Handler
func (h *Conditional) Name() string {
	return fmt.Sprintf("ConditionalHandler[%s]", h.handler.Name())
}
