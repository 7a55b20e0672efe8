package handlers

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/lubkli/IoCBuilder-sub000/call"
	"github.com/lubkli/IoCBuilder-sub000/pipeline"
)

// ErrValidation is wrapped by every failure the validation handler reports
var ErrValidation = errors.New("invocation validation failed")

// Validator checks an invocation before the method runs
type Validator interface {
	Validate(inv *call.Invocation) error
}

// ValidatorFunc is a function adapter for Validator
type ValidatorFunc func(inv *call.Invocation) error

// Validate implements Validator
func (f ValidatorFunc) Validate(inv *call.Invocation) error {
	return f(inv)
}

// Validation fails the invocation without calling the method when any of
// its validators rejects it
type Validation struct {
	validators []Validator
}

// NewValidation creates a validation handler running validators in order
func NewValidation(validators ...Validator) *Validation {
	return &Validation{validators: validators}
}

// Invoke implements pipeline.Handler
func (h *Validation) Invoke(inv *call.Invocation, getNext pipeline.GetNextFunc) *call.Return {
	for _, v := range h.validators {
		if err := v.Validate(inv); err != nil {
			return inv.CreateFailure(fmt.Errorf("%w: %s: %w", ErrValidation, inv.Method, err))
		}
	}
	return getNext()(inv, getNext)
}

// Name implements pipeline.Handler
func (h *Validation) Name() string {
	return "ValidationHandler"
}

// RequireInputs rejects invocations where any of the named inputs is nil or
// the zero value of its type. With no names every input but the context is
// checked.
func RequireInputs(names ...string) Validator {
	return ValidatorFunc(func(inv *call.Invocation) error {
		inputs := inv.Inputs()
		required := names
		if len(required) == 0 {
			ctx := inv.Method.ContextIndex()
			for i := 0; i < inputs.Len(); i++ {
				if p := inputs.Param(i); p.Position != ctx {
					required = append(required, p.Name)
				}
			}
		}
		for _, name := range required {
			v, ok := inputs.ByName(name)
			if !ok {
				return fmt.Errorf("%w: %s", call.ErrNoSuchParameter, name)
			}
			if v == nil || reflect.ValueOf(v).IsZero() {
				return fmt.Errorf("parameter %s is required", name)
			}
		}
		return nil
	})
}
