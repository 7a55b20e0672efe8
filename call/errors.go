package call

import (
	"errors"
	"fmt"
	"reflect"
)

var (
	// ErrNoSuchParameter is returned when a view has no parameter of the given name
	ErrNoSuchParameter = errors.New("call: no such parameter")
	// ErrArgumentType is returned when a value cannot be passed as a parameter type
	ErrArgumentType = errors.New("call: argument type mismatch")
)

// TypeError reports a value that cannot be converted to a parameter or result type
type TypeError struct {
	Got  reflect.Type
	Want reflect.Type
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("call: cannot use %v as %v", e.Got, e.Want)
}

// Is makes TypeError match ErrArgumentType
func (e *TypeError) Is(target error) bool {
	return target == ErrArgumentType
}

// PanicError captures a panic raised by the real method together with the
// stack of the goroutine at the point it was recovered.
type PanicError struct {
	Value any
	Stack []byte
}

// NewPanicError wraps a recovered panic value
func NewPanicError(value any, stack []byte) *PanicError {
	return &PanicError{Value: value, Stack: stack}
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("call: panic: %v", e.Value)
}

// Unwrap returns the panic value when it is itself an error
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
