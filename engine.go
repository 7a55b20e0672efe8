// Copyright 2024 IoCBuilder Contributors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package interception routes method calls through ordered handler pipelines.
//
// The Engine ties together the proxy generators, the policy reflector and
// the construction collaborators, and exposes the three entry points other
// systems need: ProxyType, WrapInstance and Reflect.
package interception

import (
	"fmt"
	"log/slog"
	"os"
	"reflect"

	"github.com/lubkli/IoCBuilder-sub000/builder"
	"github.com/lubkli/IoCBuilder-sub000/dispatch"
	"github.com/lubkli/IoCBuilder-sub000/pipeline"
	"github.com/lubkli/IoCBuilder-sub000/policy"
	"github.com/lubkli/IoCBuilder-sub000/proxy"
)

// Engine provides the main entry point for interception
type Engine struct {
	generator *proxy.Generator
	resolver  builder.Resolver
	store     builder.PolicyStore
	registry  *policy.Registry
	reflector *policy.Reflector
	logger    *slog.Logger
	config    Config
}

// engineConfig holds engine configuration
type engineConfig struct {
	logger    *slog.Logger
	generator *proxy.Generator
	resolver  builder.Resolver
	store     builder.PolicyStore
	registry  *policy.Registry
	config    *Config
}

// Option configures the engine
type Option func(*engineConfig)

// WithLogger sets the logger for all components
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *engineConfig) {
		cfg.logger = logger
	}
}

// WithGenerator sets the proxy generator, Default otherwise
func WithGenerator(g *proxy.Generator) Option {
	return func(cfg *engineConfig) {
		cfg.generator = g
	}
}

// WithResolver sets the resolver used for handlers and targets
func WithResolver(r builder.Resolver) Option {
	return func(cfg *engineConfig) {
		cfg.resolver = r
	}
}

// WithPolicyStore sets the store policies and recipes are published to
func WithPolicyStore(s builder.PolicyStore) Option {
	return func(cfg *engineConfig) {
		cfg.store = s
	}
}

// WithRegistry sets the marker registry
func WithRegistry(r *policy.Registry) Option {
	return func(cfg *engineConfig) {
		cfg.registry = r
	}
}

// WithConfig uses cfg instead of reading the environment
func WithConfig(cfg Config) Option {
	return func(c *engineConfig) {
		c.config = &cfg
	}
}

// New creates an engine. Without WithConfig the configuration is read from
// the environment; without WithLogger the logger is built from it.
func New(options ...Option) (*Engine, error) {
	cfg := &engineConfig{}
	for _, opt := range options {
		opt(cfg)
	}

	if cfg.config == nil {
		loaded, err := LoadConfig()
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg.config = &loaded
	}
	if cfg.logger == nil {
		cfg.logger = cfg.config.Logger(os.Stderr)
	}
	if cfg.generator == nil {
		cfg.generator = proxy.Default()
	}
	if cfg.resolver == nil {
		cfg.resolver = builder.NewContainer()
	}
	if cfg.store == nil {
		cfg.store = builder.NewPolicies()
	}
	if cfg.registry == nil {
		cfg.registry = policy.NewRegistry()
	}

	return &Engine{
		generator: cfg.generator,
		resolver:  cfg.resolver,
		store:     cfg.store,
		registry:  cfg.registry,
		reflector: policy.NewReflector(cfg.registry, cfg.resolver, cfg.store,
			policy.WithLogger(cfg.logger),
			policy.WithStrict(cfg.config.Strict)),
		logger: cfg.logger,
		config: *cfg.config,
	}, nil
}

// Generator returns the proxy generator
func (e *Engine) Generator() *proxy.Generator { return e.generator }

// Resolver returns the resolver
func (e *Engine) Resolver() builder.Resolver { return e.resolver }

// Store returns the policy store
func (e *Engine) Store() builder.PolicyStore { return e.store }

// Registry returns the marker registry
func (e *Engine) Registry() *policy.Registry { return e.registry }

// Config returns the effective configuration
func (e *Engine) Config() Config { return e.config }

// Runtime builds a dispatch runtime over handlers
func (e *Engine) Runtime(handlers pipeline.HandlerMap) *dispatch.Runtime {
	return dispatch.NewRuntime(handlers, dispatch.WithLogger(e.logger))
}

// ProxyType generates, or returns the memoized, proxy type of original
func (e *Engine) ProxyType(mechanism proxy.Mechanism, original reflect.Type) (*proxy.Type, error) {
	return e.generator.Type(mechanism, original, nil)
}

// WrapInstance wraps an existing instance. contract is required for
// InterfaceWrap and optional for TransparentWrap.
func (e *Engine) WrapInstance(mechanism proxy.Mechanism, instance any, contract reflect.Type, handlers pipeline.HandlerMap) (*proxy.Surrogate, error) {
	return e.generator.Wrap(mechanism, e.Runtime(handlers), instance, contract)
}

// Reflect builds and publishes the policies of concrete built for requested
func (e *Engine) Reflect(requested, concrete reflect.Type, name string) (*policy.Set, error) {
	return e.reflector.Reflect(requested, concrete, name)
}

// Register validates markers and generates the proxy type eagerly, then
// publishes a recipe for (requested, name) so that Build returns a proxy of
// concrete instead of the raw object. Build yields the registered typed stub
// when there is one, the *proxy.Surrogate otherwise.
func (e *Engine) Register(mechanism proxy.Mechanism, requested, concrete reflect.Type, name string) error {
	set, err := e.Reflect(requested, concrete, name)
	if err != nil {
		return err
	}

	handlers := pipeline.HandlerMap{}
	if p, ok := set.Policy(mechanism); ok {
		handlers = p.Handlers
	}

	var contract reflect.Type
	if requested != nil && requested.Kind() == reflect.Interface {
		contract = requested
	}

	recipe, err := e.recipe(mechanism, contract, concrete, name, handlers)
	if err != nil {
		return err
	}

	key := builder.Key{Type: requested, Name: name}
	e.store.Set(key, builder.KindRecipe, recipe)
	e.logger.Info("registered interception recipe",
		"key", key.String(),
		"mechanism", mechanism.String(),
		"concrete", concrete.String())
	return nil
}

func (e *Engine) recipe(mechanism proxy.Mechanism, contract, concrete reflect.Type, name string, handlers pipeline.HandlerMap) (builder.Recipe, error) {
	rt := e.Runtime(handlers)

	switch mechanism {
	case proxy.InterfaceWrap:
		if _, err := e.generator.InterfaceType(contract); err != nil {
			return nil, err
		}
		return func(r builder.Resolver, _ ...any) (any, error) {
			target, err := r.Resolve(concrete, name)
			if err != nil {
				return nil, err
			}
			return stubOrSurrogate(e.generator.WrapInterface(rt, contract, target))
		}, nil

	case proxy.SubclassWrap:
		var ctors []any
		var cp *builder.ConstructorPolicy
		if v, ok := e.store.Get(builder.Key{Type: concrete, Name: name}, builder.KindConstructor); ok {
			if c, ok := v.(builder.ConstructorPolicy); ok {
				cp = &c
				ctors = append(ctors, c.Constructor)
			}
		}

		typ, err := e.generator.SubclassType(concrete, ctors...)
		if err != nil {
			return nil, err
		}
		return func(r builder.Resolver, args ...any) (any, error) {
			switch {
			case len(args) > 0:
				return stubOrSurrogate(typ.New(rt, args...))
			case cp != nil:
				return stubOrSurrogate(typ.New(rt, cp.Args...))
			}
			target, err := r.Resolve(reflect.PointerTo(typ.Original()), name)
			if err != nil {
				return nil, err
			}
			return stubOrSurrogate(e.generator.WrapSubclass(rt, target))
		}, nil

	case proxy.TransparentWrap:
		if _, err := e.generator.TransparentType(reflect.PointerTo(indirect(concrete)), contract); err != nil {
			return nil, err
		}
		return func(r builder.Resolver, _ ...any) (any, error) {
			target, err := r.Resolve(concrete, name)
			if err != nil {
				return nil, err
			}
			return stubOrSurrogate(e.generator.WrapTransparent(rt, target, contract))
		}, nil

	default:
		return nil, fmt.Errorf("interception: unknown mechanism %d", mechanism)
	}
}

// Build constructs (requested, name), honouring registered recipes
func (e *Engine) Build(requested reflect.Type, name string, args ...any) (any, error) {
	return builder.Build(e.store, e.resolver, builder.Key{Type: requested, Name: name}, args...)
}

func stubOrSurrogate(s *proxy.Surrogate, err error) (any, error) {
	if err != nil {
		return nil, err
	}
	if stub, err := s.Stub(); err == nil {
		return stub, nil
	}
	return s, nil
}

func indirect(t reflect.Type) reflect.Type {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}
