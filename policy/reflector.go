package policy

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"sort"

	"github.com/lubkli/IoCBuilder-sub000/builder"
	"github.com/lubkli/IoCBuilder-sub000/call"
	"github.com/lubkli/IoCBuilder-sub000/dispatch"
	"github.com/lubkli/IoCBuilder-sub000/pipeline"
	"github.com/lubkli/IoCBuilder-sub000/proxy"
)

var (
	ErrNotHandler      = errors.New("policy: marker does not name a pipeline.Handler")
	ErrDuplicateMarker = errors.New("policy: single-use handler marked more than once")
	ErrNoType          = errors.New("policy: no concrete type")
)

// ReflectionError reports a marker that cannot be honoured
type ReflectionError struct {
	Type      reflect.Type
	Method    string
	Mechanism proxy.Mechanism
	Err       error
}

func (e *ReflectionError) Error() string {
	return fmt.Sprintf("policy: %s marker on %v.%s: %v", e.Mechanism, e.Type, e.Method, e.Err)
}

func (e *ReflectionError) Unwrap() error {
	return e.Err
}

// Policy is the handler map of one mechanism for one built type
type Policy struct {
	Mechanism proxy.Mechanism
	Requested reflect.Type
	Concrete  reflect.Type
	Handlers  pipeline.HandlerMap
}

// Runtime builds a dispatch runtime over the policy's handlers
func (p *Policy) Runtime(options ...dispatch.Option) *dispatch.Runtime {
	return dispatch.NewRuntime(p.Handlers, options...)
}

// Empty reports whether no method is intercepted
func (p *Policy) Empty() bool {
	return len(p.Handlers) == 0
}

// Set holds at most one policy per mechanism
type Set struct {
	policies map[proxy.Mechanism]*Policy
}

// Policy returns the policy of mechanism
func (s *Set) Policy(mechanism proxy.Mechanism) (*Policy, bool) {
	p, ok := s.policies[mechanism]
	return p, ok
}

// Mechanisms returns the mechanisms that have a policy, in declaration order
func (s *Set) Mechanisms() []proxy.Mechanism {
	out := make([]proxy.Mechanism, 0, len(s.policies))
	for m := range s.policies {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Len returns the number of policies
func (s *Set) Len() int {
	return len(s.policies)
}

// Lookup returns a policy previously published to store
func Lookup(store builder.PolicyStore, key builder.Key, mechanism proxy.Mechanism) (*Policy, bool) {
	v, ok := store.Get(key, mechanism.String())
	if !ok {
		return nil, false
	}
	p, ok := v.(*Policy)
	return p, ok
}

// Reflector builds policies from markers
type Reflector struct {
	registry *Registry
	resolver builder.Resolver
	store    builder.PolicyStore
	logger   *slog.Logger
	strict   bool
}

// Option configures a Reflector
type Option func(*Reflector)

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reflector) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithStrict makes markers on methods outside the requested contract an
// error instead of being ignored.
func WithStrict(strict bool) Option {
	return func(r *Reflector) {
		r.strict = strict
	}
}

// NewReflector creates a reflector. Nil collaborators are replaced by empty
// in-memory ones.
func NewReflector(registry *Registry, resolver builder.Resolver, store builder.PolicyStore, options ...Option) *Reflector {
	if registry == nil {
		registry = NewRegistry()
	}
	if resolver == nil {
		resolver = builder.NewContainer()
	}
	if store == nil {
		store = builder.NewPolicies()
	}

	r := &Reflector{
		registry: registry,
		resolver: resolver,
		store:    store,
		logger:   slog.Default(),
	}
	for _, opt := range options {
		opt(r)
	}
	return r
}

// Store returns the store policies are published to
func (r *Reflector) Store() builder.PolicyStore {
	return r.store
}

// Reflect collects the markers of every method of concrete, validates them,
// resolves their handlers and publishes one policy per mechanism under
// builder.Key{concrete, name}. requested is the contract being built; it is
// required for capability-wrap markers and contributes inherited markers.
func (r *Reflector) Reflect(requested, concrete reflect.Type, name string) (*Set, error) {
	ct := indirect(concrete)
	if ct == nil {
		return nil, ErrNoType
	}

	direct := r.registry.Markers(ct)
	sources := r.sources(requested, ct)

	set := &Set{policies: make(map[proxy.Mechanism]*Policy)}
	for _, method := range methodNames(ct) {
		markers, err := merge(ct, method, direct[method], sources)
		if err != nil {
			return nil, err
		}

		for _, mk := range markers {
			key, ok, err := r.methodKey(mk, requested, ct, method)
			if err != nil {
				return nil, &ReflectionError{Type: ct, Method: method, Mechanism: mk.Mechanism, Err: err}
			}
			if !ok {
				r.logger.Debug("marker outside the requested contract ignored",
					"type", ct.String(),
					"method", method,
					"mechanism", mk.Mechanism.String())
				continue
			}

			h, err := r.handler(mk)
			if err != nil {
				return nil, &ReflectionError{Type: ct, Method: method, Mechanism: mk.Mechanism, Err: err}
			}

			p, ok := set.policies[mk.Mechanism]
			if !ok {
				p = &Policy{Mechanism: mk.Mechanism, Requested: requested, Concrete: ct, Handlers: pipeline.HandlerMap{}}
				set.policies[mk.Mechanism] = p
			}
			p.Handlers.Add(key, h)
		}
	}

	key := builder.Key{Type: concrete, Name: name}
	for mechanism, p := range set.policies {
		r.store.Set(key, mechanism.String(), p)
	}

	r.logger.Debug("reflected interception policies",
		"type", ct.String(),
		"name", name,
		"policies", set.Len())
	return set, nil
}

type source struct {
	t       reflect.Type
	markers Markers
}

// sources lists the types concrete inherits markers from: embedded types
// breadth first, then the requested contract.
func (r *Reflector) sources(requested, ct reflect.Type) []source {
	var out []source
	for _, t := range embedded(ct) {
		out = append(out, source{t: t, markers: r.registry.Markers(t)})
	}
	if rt := indirect(requested); rt != nil && rt != ct {
		out = append(out, source{t: rt, markers: r.registry.Markers(rt)})
	}
	return out
}

// merge returns direct markers followed by inheritable markers of the
// sources that declare method.
func merge(ct reflect.Type, method string, direct []Marker, sources []source) ([]Marker, error) {
	for i, a := range direct {
		for _, b := range direct[i+1:] {
			if a.sameHandler(b) && (!a.Multiple || !b.Multiple) {
				return nil, &ReflectionError{Type: ct, Method: method, Mechanism: a.Mechanism, Err: ErrDuplicateMarker}
			}
		}
	}

	out := append([]Marker(nil), direct...)
	for _, src := range sources {
		if !declares(src.t, method) {
			continue
		}
		for _, mk := range src.markers[method] {
			if !mk.Inherited || (!mk.Multiple && containsHandler(out, mk)) {
				continue
			}
			out = append(out, mk)
		}
	}
	return out, nil
}

func (r *Reflector) methodKey(mk Marker, requested, ct reflect.Type, method string) (call.MethodKey, bool, error) {
	switch mk.Mechanism {
	case proxy.InterfaceWrap:
		if err := proxy.CheckInterface(requested); err != nil {
			return call.MethodKey{}, false, err
		}
		return r.contractKey(requested, method)

	case proxy.SubclassWrap:
		if err := proxy.CheckSubclass(ct); err != nil {
			return call.MethodKey{}, false, err
		}
		if err := proxy.CheckVirtual(ct, method); err != nil {
			return call.MethodKey{}, false, err
		}
		return call.KeyOf(ct, method), true, nil

	case proxy.TransparentWrap:
		var contract reflect.Type
		if requested != nil && requested.Kind() == reflect.Interface {
			contract = requested
		}
		if err := proxy.CheckTransparent(reflect.PointerTo(ct), contract); err != nil {
			return call.MethodKey{}, false, err
		}
		if contract != nil {
			return r.contractKey(contract, method)
		}
		return call.KeyOf(ct, method), true, nil

	default:
		return call.MethodKey{}, false, fmt.Errorf("policy: unknown mechanism %d", mk.Mechanism)
	}
}

func (r *Reflector) contractKey(contract reflect.Type, method string) (call.MethodKey, bool, error) {
	if _, ok := contract.MethodByName(method); !ok {
		if r.strict {
			return call.MethodKey{}, false, fmt.Errorf("%w: %s is not part of %v", proxy.ErrUnknownMethod, method, contract)
		}
		return call.MethodKey{}, false, nil
	}
	return call.KeyOf(contract, method), true, nil
}

var handlerType = reflect.TypeOf((*pipeline.Handler)(nil)).Elem()

func (r *Reflector) handler(mk Marker) (pipeline.Handler, error) {
	if mk.Handler == nil || !(mk.Handler.Implements(handlerType) || reflect.PointerTo(mk.Handler).Implements(handlerType)) {
		return nil, fmt.Errorf("%w: %v", ErrNotHandler, mk.Handler)
	}

	v, err := r.resolver.Resolve(mk.Handler, mk.Name)
	if err != nil {
		return nil, err
	}

	h, ok := v.(pipeline.Handler)
	if !ok {
		return nil, fmt.Errorf("%w: resolved %T", ErrNotHandler, v)
	}
	return h, nil
}

func containsHandler(list []Marker, mk Marker) bool {
	for _, m := range list {
		if m.sameHandler(mk) {
			return true
		}
	}
	return false
}

// methodNames lists the exported methods of t that can carry markers
func methodNames(t reflect.Type) []string {
	mt := t
	if t.Kind() != reflect.Interface {
		mt = reflect.PointerTo(t)
	}

	names := make([]string, 0, mt.NumMethod())
	for i := 0; i < mt.NumMethod(); i++ {
		rm := mt.Method(i)
		if !rm.IsExported() || rm.Name == "InterceptionMarkers" || rm.Name == "FinalMethods" {
			continue
		}
		names = append(names, rm.Name)
	}
	return names
}

func declares(t reflect.Type, method string) bool {
	if t.Kind() == reflect.Interface {
		_, ok := t.MethodByName(method)
		return ok
	}
	_, ok := reflect.PointerTo(t).MethodByName(method)
	return ok
}

func embedded(t reflect.Type) []reflect.Type {
	var (
		out     []reflect.Type
		queue   = []reflect.Type{t}
		visited = map[reflect.Type]bool{}
	)

	for len(queue) > 0 {
		cur := indirect(queue[0])
		queue = queue[1:]
		if cur == nil || cur.Kind() != reflect.Struct || visited[cur] {
			continue
		}
		visited[cur] = true

		for i := 0; i < cur.NumField(); i++ {
			if f := cur.Field(i); f.Anonymous {
				out = append(out, indirect(f.Type))
				queue = append(queue, f.Type)
			}
		}
	}
	return out
}
