package proxy

import (
	"errors"
	"go/token"
	"reflect"
)

// Remotable is the location-transparency capability: an object whose calls
// can be addressed by method name with a positional argument array. By-reference
// outputs are written back into args.
type Remotable interface {
	Dispatch(method string, args []any) ([]any, error)
}

// Finalizer is implemented by structs that close some of their methods to
// subclass-wrap. FinalMethods is called on a zero value.
type Finalizer interface {
	FinalMethods() []string
}

// Sealed closes a struct to subclass-wrap when embedded in it.
type Sealed struct{}

func (Sealed) sealedType() {}

type sealer interface {
	sealedType()
}

var (
	remotableType = reflect.TypeOf((*Remotable)(nil)).Elem()
	finalizerType = reflect.TypeOf((*Finalizer)(nil)).Elem()
	sealerType    = reflect.TypeOf((*sealer)(nil)).Elem()
)

// IsPublic reports whether t can be named outside its package. Unnamed types
// are public when every method they declare is exported.
func IsPublic(t reflect.Type) bool {
	t = indirect(t)
	if t.Name() != "" {
		return token.IsExported(t.Name())
	}
	for i := 0; i < t.NumMethod(); i++ {
		if !t.Method(i).IsExported() {
			return false
		}
	}
	return true
}

// CheckInterface validates a capability-wrap contract
func CheckInterface(contract reflect.Type) error {
	if contract == nil || contract.Kind() != reflect.Interface {
		return &GenerationError{Mechanism: InterfaceWrap, Type: contract, Err: ErrNotInterface}
	}
	if !IsPublic(contract) {
		return &GenerationError{Mechanism: InterfaceWrap, Type: contract, Err: ErrNotPublic}
	}
	for i := 0; i < contract.NumMethod(); i++ {
		if !contract.Method(i).IsExported() {
			return &GenerationError{Mechanism: InterfaceWrap, Type: contract, Method: contract.Method(i).Name, Err: ErrNotPublic}
		}
	}
	return nil
}

// CheckSubclass validates a subclass-wrap base type
func CheckSubclass(base reflect.Type) error {
	if base == nil || indirect(base).Kind() != reflect.Struct {
		return &GenerationError{Mechanism: SubclassWrap, Type: base, Err: ErrNotStruct}
	}
	t := indirect(base)
	if !IsPublic(t) {
		return &GenerationError{Mechanism: SubclassWrap, Type: t, Err: ErrNotPublic}
	}
	if reflect.PointerTo(t).Implements(sealerType) {
		return &GenerationError{Mechanism: SubclassWrap, Type: t, Err: ErrSealed}
	}
	return nil
}

// CheckVirtual validates that method of base can be overridden
func CheckVirtual(base reflect.Type, method string) error {
	t := indirect(base)
	if _, ok := reflect.PointerTo(t).MethodByName(method); !ok {
		return &GenerationError{Mechanism: SubclassWrap, Type: t, Method: method, Err: ErrUnknownMethod}
	}
	if isFinal(t, method) {
		return &GenerationError{Mechanism: SubclassWrap, Type: t, Method: method, Err: ErrNotVirtual}
	}
	return nil
}

// CheckTransparent validates a transparent-wrap target type and, when
// requested polymorphically, its contract.
func CheckTransparent(target reflect.Type, contract reflect.Type) error {
	if target == nil || !(target.Implements(remotableType) || reflect.PointerTo(indirect(target)).Implements(remotableType)) {
		return &GenerationError{Mechanism: TransparentWrap, Type: target, Err: ErrNotRemotable}
	}
	if contract == nil {
		return nil
	}
	if err := CheckInterface(contract); err != nil {
		var ge *GenerationError
		if errors.As(err, &ge) {
			return &GenerationError{Mechanism: TransparentWrap, Type: ge.Type, Method: ge.Method, Err: ge.Err}
		}
		return err
	}
	return nil
}

func isFinal(t reflect.Type, method string) bool {
	if method == "FinalMethods" && reflect.PointerTo(t).Implements(finalizerType) {
		return true
	}
	for _, name := range finalMethods(t) {
		if name == method {
			return true
		}
	}
	return false
}

func finalMethods(t reflect.Type) []string {
	pt := reflect.PointerTo(t)
	if !pt.Implements(finalizerType) {
		return nil
	}
	return reflect.New(t).Interface().(Finalizer).FinalMethods()
}

func indirect(t reflect.Type) reflect.Type {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}
