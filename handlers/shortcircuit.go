package handlers

import (
	"context"
	"errors"

	"github.com/lubkli/IoCBuilder-sub000/call"
	"github.com/lubkli/IoCBuilder-sub000/pipeline"
)

// ErrShortCircuit is matched by every ShortCircuitError
var ErrShortCircuit = errors.New("handler chain short-circuited")

// ItemShortCircuitReason is the item key under which short-circuiting
// handlers record their reason
const ItemShortCircuitReason = "shortCircuit.reason"

// ShortCircuitResult holds the results returned in place of the method's
type ShortCircuitResult struct {
	Values []any
	Reason string
}

// ShortCircuitError is the failure reported when the chain is cut without
// results, e.g. for a duplicate invocation
type ShortCircuitError struct {
	Result *ShortCircuitResult
}

// Error implements the error interface
func (e *ShortCircuitError) Error() string {
	if e.Result != nil && e.Result.Reason != "" {
		return e.Result.Reason
	}
	return ErrShortCircuit.Error()
}

// Is reports a match with ErrShortCircuit
func (e *ShortCircuitError) Is(target error) bool {
	return target == ErrShortCircuit
}

// IsShortCircuit checks if an error is a short-circuit error
func IsShortCircuit(err error) bool {
	return errors.Is(err, ErrShortCircuit)
}

// GetShortCircuitResult extracts the short-circuit result from an error
func GetShortCircuitResult(err error) (*ShortCircuitResult, bool) {
	var scErr *ShortCircuitError
	if errors.As(err, &scErr) && scErr.Result != nil {
		return scErr.Result, true
	}
	return nil, false
}

// Evaluator determines if the chain should be short-circuited
type Evaluator interface {
	// ShouldShortCircuit returns true and the results to return in place of
	// the method's when the rest of the chain must not run
	ShouldShortCircuit(inv *call.Invocation) (bool, *ShortCircuitResult, error)
}

// EvaluatorFunc is a function adapter for Evaluator
type EvaluatorFunc func(inv *call.Invocation) (bool, *ShortCircuitResult, error)

// ShouldShortCircuit implements Evaluator
func (f EvaluatorFunc) ShouldShortCircuit(inv *call.Invocation) (bool, *ShortCircuitResult, error) {
	return f(inv)
}

// ShortCircuit returns the evaluator's results without calling the rest of
// the chain when the evaluator says so
type ShortCircuit struct {
	evaluator Evaluator
}

// NewShortCircuit creates a short-circuit handler
func NewShortCircuit(evaluator Evaluator) *ShortCircuit {
	return &ShortCircuit{evaluator: evaluator}
}

// Invoke implements pipeline.Handler
func (h *ShortCircuit) Invoke(inv *call.Invocation, getNext pipeline.GetNextFunc) *call.Return {
	if h.evaluator == nil {
		return getNext()(inv, getNext)
	}

	cut, result, err := h.evaluator.ShouldShortCircuit(inv)
	if err != nil {
		return inv.CreateFailure(err)
	}
	if !cut {
		return getNext()(inv, getNext)
	}
	return shortCircuit(inv, result)
}

// Name implements pipeline.Handler
func (h *ShortCircuit) Name() string {
	return "ShortCircuitHandler"
}

func shortCircuit(inv *call.Invocation, result *ShortCircuitResult) *call.Return {
	if result == nil {
		return inv.CreateReturn()
	}
	if result.Reason != "" {
		inv.Items().Set(ItemShortCircuitReason, result.Reason)
	}
	return inv.CreateReturn(result.Values...)
}

// ErrorEvaluator determines if a failure is replaced by fallback results
type ErrorEvaluator interface {
	ShouldShortCircuitOnError(err error) (bool, *ShortCircuitResult)
}

// ErrorEvaluatorFunc is a function adapter for ErrorEvaluator
type ErrorEvaluatorFunc func(err error) (bool, *ShortCircuitResult)

// ShouldShortCircuitOnError implements ErrorEvaluator
func (f ErrorEvaluatorFunc) ShouldShortCircuitOnError(err error) (bool, *ShortCircuitResult) {
	return f(err)
}

// ShortCircuitOnError clears failures its evaluator accepts and returns the
// fallback results instead. Captured panics are never cleared.
type ShortCircuitOnError struct {
	evaluator ErrorEvaluator
}

// NewShortCircuitOnError creates an error-based short-circuit handler
func NewShortCircuitOnError(evaluator ErrorEvaluator) *ShortCircuitOnError {
	return &ShortCircuitOnError{evaluator: evaluator}
}

// Invoke implements pipeline.Handler
func (h *ShortCircuitOnError) Invoke(inv *call.Invocation, getNext pipeline.GetNextFunc) *call.Return {
	ret := getNext()(inv, getNext)
	err := ret.Err()
	if err == nil || h.evaluator == nil {
		return ret
	}

	var pe *call.PanicError
	if errors.As(err, &pe) {
		return ret
	}

	if ok, result := h.evaluator.ShouldShortCircuitOnError(err); ok {
		return shortCircuit(inv, result)
	}
	return ret
}

// Name implements pipeline.Handler
func (h *ShortCircuitOnError) Name() string {
	return "ShortCircuitOnErrorHandler"
}

// DuplicateDetector remembers invocation keys that completed successfully
type DuplicateDetector interface {
	IsDuplicate(ctx context.Context, key string) (bool, error)
	MarkProcessed(ctx context.Context, key string) error
}

// DuplicateDetection fails repeated invocations with the same inputs with a
// ShortCircuitError instead of running the method again
type DuplicateDetection struct {
	detector DuplicateDetector
	keyFunc  KeyFunc
}

// NewDuplicateDetection creates a duplicate detection handler keyed by
// InputKey
func NewDuplicateDetection(detector DuplicateDetector) *DuplicateDetection {
	return &DuplicateDetection{detector: detector, keyFunc: InputKey}
}

// WithKeyFunc replaces the function deriving the invocation key
func (h *DuplicateDetection) WithKeyFunc(fn KeyFunc) *DuplicateDetection {
	h.keyFunc = fn
	return h
}

// Invoke implements pipeline.Handler
func (h *DuplicateDetection) Invoke(inv *call.Invocation, getNext pipeline.GetNextFunc) *call.Return {
	if h.detector == nil {
		return getNext()(inv, getNext)
	}

	keyFunc := h.keyFunc
	if keyFunc == nil {
		keyFunc = InputKey
	}
	key, err := keyFunc(inv)
	if err != nil {
		return inv.CreateFailure(err)
	}

	ctx := inv.Context()
	duplicate, err := h.detector.IsDuplicate(ctx, key)
	if err != nil {
		return inv.CreateFailure(err)
	}
	if duplicate {
		return inv.CreateFailure(&ShortCircuitError{
			Result: &ShortCircuitResult{Reason: "duplicate invocation detected"},
		})
	}

	ret := getNext()(inv, getNext)
	if ret.Failed() {
		return ret
	}
	if err := h.detector.MarkProcessed(ctx, key); err != nil {
		return inv.CreateFailure(err)
	}
	return ret
}

// Name implements pipeline.Handler
func (h *DuplicateDetection) Name() string {
	return "DuplicateDetectionHandler"
}
