package proxy

import (
	"errors"
	"fmt"
	"reflect"
)

var (
	ErrNotInterface   = errors.New("proxy: type is not an interface")
	ErrNotPublic      = errors.New("proxy: type is not exported")
	ErrNotStruct      = errors.New("proxy: type is not a struct")
	ErrSealed         = errors.New("proxy: type is sealed")
	ErrNotVirtual     = errors.New("proxy: method cannot be overridden")
	ErrNotRemotable   = errors.New("proxy: type is not remotable")
	ErrNoConstructor  = errors.New("proxy: no constructor matches the arguments")
	ErrBadConstructor = errors.New("proxy: invalid constructor")
	ErrUnknownMethod  = errors.New("proxy: unknown method")
	ErrNoStub         = errors.New("proxy: no stub registered")
	ErrTargetMismatch = errors.New("proxy: target does not satisfy the proxied type")
	ErrArgumentCount  = errors.New("proxy: wrong number of arguments")
)

// GenerationError reports why a type or method cannot be proxied
type GenerationError struct {
	Mechanism Mechanism
	Type      reflect.Type
	Method    string
	Err       error
}

func (e *GenerationError) Error() string {
	if e.Method != "" {
		return fmt.Sprintf("proxy: %s proxy for %v.%s: %v", e.Mechanism, e.Type, e.Method, e.Err)
	}
	return fmt.Sprintf("proxy: %s proxy for %v: %v", e.Mechanism, e.Type, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}
