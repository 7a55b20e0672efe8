package proxy

import (
	"fmt"
	"log/slog"
	"reflect"
	"sync"

	"github.com/lubkli/IoCBuilder-sub000/dispatch"
)

type typeKey struct {
	mechanism Mechanism
	original  reflect.Type
	contract  reflect.Type
}

type stubEntry struct {
	factory func(*Surrogate) any
	options []TypeOption
}

// Generator produces proxy types. Generation is serialized and memoized: a
// given original type yields at most one Type per mechanism, no matter how
// many goroutines ask for it concurrently.
type Generator struct {
	mu     sync.Mutex
	types  map[typeKey]*Type
	stubs  map[reflect.Type]stubEntry
	logger *slog.Logger
}

// GeneratorOption configures a Generator
type GeneratorOption func(*Generator)

// WithGeneratorLogger sets the logger
func WithGeneratorLogger(logger *slog.Logger) GeneratorOption {
	return func(g *Generator) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// NewGenerator creates an empty generator
func NewGenerator(options ...GeneratorOption) *Generator {
	g := &Generator{
		types:  make(map[typeKey]*Type),
		stubs:  make(map[reflect.Type]stubEntry),
		logger: slog.Default(),
	}
	for _, opt := range options {
		opt(g)
	}
	return g
}

var (
	defaultOnce      sync.Once
	defaultGenerator *Generator
)

// Default returns the process-wide generator. Generated stubs register with it.
func Default() *Generator {
	defaultOnce.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// InterfaceType returns the capability-wrap proxy type of contract
func (g *Generator) InterfaceType(contract reflect.Type, options ...TypeOption) (*Type, error) {
	if err := CheckInterface(contract); err != nil {
		return nil, err
	}

	return g.generate(typeKey{mechanism: InterfaceWrap, original: contract}, func() (*Type, error) {
		cfg := newTypeConfig(append(g.stubOptions(contract), options...))
		t := &Type{mechanism: InterfaceWrap, original: contract, typeArgs: cfg.typeArgs, gen: g}

		list := make([]reflect.Method, 0, contract.NumMethod())
		for i := 0; i < contract.NumMethod(); i++ {
			list = append(list, contract.Method(i))
		}
		t.addMethods(contract, cfg, list)
		return t, nil
	})
}

// SubclassType returns the subclass-wrap proxy type of base. ctors are the
// base's constructor functions, each returning base or *base and optionally
// an error. They are added to the constructors known to the type.
func (g *Generator) SubclassType(base reflect.Type, ctors ...any) (*Type, error) {
	if err := CheckSubclass(base); err != nil {
		return nil, err
	}
	base = indirect(base)

	built := make([]constructor, 0, len(ctors))
	for _, fn := range ctors {
		c, err := newConstructor(base, fn)
		if err != nil {
			return nil, &GenerationError{Mechanism: SubclassWrap, Type: base, Err: err}
		}
		built = append(built, c)
	}

	t, err := g.generate(typeKey{mechanism: SubclassWrap, original: base}, func() (*Type, error) {
		cfg := newTypeConfig(g.stubOptions(base))
		t := &Type{mechanism: SubclassWrap, original: base, typeArgs: cfg.typeArgs, gen: g}

		pt := reflect.PointerTo(base)
		final := finalMethods(base)
		list := make([]reflect.Method, 0, pt.NumMethod())
		for i := 0; i < pt.NumMethod(); i++ {
			rm := pt.Method(i)
			if !rm.IsExported() || contains(final, rm.Name) || isFinal(base, rm.Name) {
				continue
			}
			list = append(list, rm)
		}
		t.addMethods(base, cfg, list)
		return t, nil
	})
	if err != nil {
		return nil, err
	}

	g.addConstructors(t, built)
	return t, nil
}

// addConstructors records constructors not already known to t.
func (g *Generator) addConstructors(t *Type, ctors []constructor) {
	if len(ctors) == 0 {
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	for _, c := range ctors {
		known := false
		for _, existing := range t.ctors {
			if existing.fn.Pointer() == c.fn.Pointer() {
				known = true
				break
			}
		}
		if !known {
			t.ctors = append(t.ctors, c)
		}
	}
}

func (g *Generator) constructors(t *Type) []constructor {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]constructor(nil), t.ctors...)
}

// TransparentType returns the transparent-wrap proxy type of target. With a
// contract the proxy answers for that interface; otherwise for the methods
// of target itself, excluding Dispatch.
func (g *Generator) TransparentType(target reflect.Type, contract reflect.Type) (*Type, error) {
	if err := CheckTransparent(target, contract); err != nil {
		return nil, err
	}

	return g.generate(typeKey{mechanism: TransparentWrap, original: target, contract: contract}, func() (*Type, error) {
		t := &Type{mechanism: TransparentWrap, original: target, contract: contract, gen: g}

		if contract != nil {
			cfg := newTypeConfig(g.stubOptions(contract))
			t.typeArgs = cfg.typeArgs
			list := make([]reflect.Method, 0, contract.NumMethod())
			for i := 0; i < contract.NumMethod(); i++ {
				list = append(list, contract.Method(i))
			}
			t.addMethods(contract, cfg, list)
			return t, nil
		}

		list := make([]reflect.Method, 0, target.NumMethod())
		for i := 0; i < target.NumMethod(); i++ {
			if rm := target.Method(i); rm.IsExported() && rm.Name != "Dispatch" {
				list = append(list, rm)
			}
		}
		t.addMethods(target, newTypeConfig(nil), list)
		return t, nil
	})
}

// Type dispatches to the generator of mechanism. For TransparentWrap,
// contract may be nil.
func (g *Generator) Type(mechanism Mechanism, original reflect.Type, contract reflect.Type) (*Type, error) {
	switch mechanism {
	case InterfaceWrap:
		return g.InterfaceType(original)
	case SubclassWrap:
		return g.SubclassType(original)
	case TransparentWrap:
		return g.TransparentType(original, contract)
	default:
		return nil, fmt.Errorf("proxy: unknown mechanism %d", mechanism)
	}
}

// Generated returns the number of types generated so far
func (g *Generator) Generated() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.types)
}

func (g *Generator) generate(key typeKey, build func() (*Type, error)) (*Type, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if t, ok := g.types[key]; ok {
		return t, nil
	}

	t, err := build()
	if err != nil {
		return nil, err
	}

	g.types[key] = t
	g.logger.Debug("generated proxy type",
		"mechanism", key.mechanism.String(),
		"type", key.original.String(),
		"methods", len(t.methods))
	return t, nil
}

// WrapInterface wraps target behind contract. target must implement it.
func (g *Generator) WrapInterface(rt *dispatch.Runtime, contract reflect.Type, target any) (*Surrogate, error) {
	t, err := g.InterfaceType(contract)
	if err != nil {
		return nil, err
	}
	if target == nil || !reflect.TypeOf(target).Implements(contract) {
		return nil, &GenerationError{Mechanism: InterfaceWrap, Type: contract, Err: fmt.Errorf("%w: %T", ErrTargetMismatch, target)}
	}
	return newSurrogate(t, rt, target), nil
}

// WrapSubclass wraps an existing base instance, a non-nil pointer to an
// exported, unsealed struct.
func (g *Generator) WrapSubclass(rt *dispatch.Runtime, instance any) (*Surrogate, error) {
	it := reflect.TypeOf(instance)
	if it == nil || it.Kind() != reflect.Pointer || reflect.ValueOf(instance).IsNil() {
		return nil, &GenerationError{Mechanism: SubclassWrap, Type: it, Err: fmt.Errorf("%w: %T", ErrTargetMismatch, instance)}
	}
	t, err := g.SubclassType(it)
	if err != nil {
		return nil, err
	}
	return newSurrogate(t, rt, instance), nil
}

// WrapTransparent wraps a Remotable target, optionally as contract
func (g *Generator) WrapTransparent(rt *dispatch.Runtime, target any, contract reflect.Type) (*Surrogate, error) {
	if target == nil {
		return nil, &GenerationError{Mechanism: TransparentWrap, Err: ErrNotRemotable}
	}
	t, err := g.TransparentType(reflect.TypeOf(target), contract)
	if err != nil {
		return nil, err
	}
	if _, ok := target.(Remotable); !ok {
		return nil, &GenerationError{Mechanism: TransparentWrap, Type: t.original, Err: ErrNotRemotable}
	}
	return newSurrogate(t, rt, target), nil
}

// Wrap dispatches to the wrapper of mechanism. contract is required for
// InterfaceWrap and optional for TransparentWrap.
func (g *Generator) Wrap(mechanism Mechanism, rt *dispatch.Runtime, target any, contract reflect.Type) (*Surrogate, error) {
	switch mechanism {
	case InterfaceWrap:
		return g.WrapInterface(rt, contract, target)
	case SubclassWrap:
		return g.WrapSubclass(rt, target)
	case TransparentWrap:
		return g.WrapTransparent(rt, target, contract)
	default:
		return nil, fmt.Errorf("proxy: unknown mechanism %d", mechanism)
	}
}

func (g *Generator) registerStub(key reflect.Type, entry stubEntry) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.stubs[key]; ok {
		g.logger.Warn("replacing proxy stub", "type", key.String())
	}
	g.stubs[key] = entry
}

func (g *Generator) stub(key reflect.Type) (stubEntry, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	entry, ok := g.stubs[key]
	return entry, ok
}

// stubOptions is called with g.mu held.
func (g *Generator) stubOptions(key reflect.Type) []TypeOption {
	return g.stubs[key].options
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
