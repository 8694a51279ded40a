// Copyright 2024 Proxymachine Contributors
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

package proxymachine

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"sort"
	"sync"

	"github.com/glimte/proxymachine-go/invoker"
	"github.com/glimte/proxymachine-go/proxy"
)

var (
	// ErrFactoryNotFound is returned when no factory is registered under a name
	ErrFactoryNotFound = errors.New("proxymachine: factory not registered")
	// ErrConstruction wraps failures of a factory's constructor
	ErrConstruction = errors.New("proxymachine: target construction failed")
)

// For wraps target in a new interception proxy
func For(target any, options ...proxy.Option) *proxy.Proxy {
	return proxy.New(target, options...)
}

// Constructor builds a fresh target from the arguments given to Factory.New
type Constructor func(args ...any) (any, error)

// ConstructorFunc adapts an ordinary Go function, such as NewThing(a, b), into
// a Constructor. Arguments are converted the way proxied calls convert them.
func ConstructorFunc(fn any) (Constructor, error) {
	if v := reflect.ValueOf(fn); v.Kind() != reflect.Func || v.IsNil() {
		return nil, fmt.Errorf("%w: constructor must be a function, got %T", invoker.ErrInvalidArguments, fn)
	}
	return func(args ...any) (any, error) {
		return invoker.CallFunc(fn, args)
	}, nil
}

// Factory produces targets that come back already wrapped. Every proxy built
// by a factory shares its options.
type Factory struct {
	constructor Constructor
	options     []proxy.Option
	logger      *slog.Logger
}

// FactoryOption configures a Factory
type FactoryOption func(*Factory)

// WithProxyOptions sets the options applied to every proxy the factory builds
func WithProxyOptions(options ...proxy.Option) FactoryOption {
	return func(f *Factory) {
		f.options = append(f.options, options...)
	}
}

// WithFactoryLogger sets the logger of the factory and of the proxies it builds
func WithFactoryLogger(logger *slog.Logger) FactoryOption {
	return func(f *Factory) {
		f.logger = logger
	}
}

// AutoProxy creates a factory whose New constructs a target and returns it
// wrapped with options
func AutoProxy(constructor Constructor, options ...proxy.Option) *Factory {
	return NewFactory(constructor, WithProxyOptions(options...))
}

// NewFactory creates a new factory
func NewFactory(constructor Constructor, options ...FactoryOption) *Factory {
	f := &Factory{constructor: constructor}
	for _, opt := range options {
		opt(f)
	}
	if f.logger == nil {
		f.logger = slog.Default()
	}
	return f
}

// New constructs a target with args and wraps it
func (f *Factory) New(args ...any) (*proxy.Proxy, error) {
	if f.constructor == nil {
		return nil, fmt.Errorf("%w: no constructor", ErrConstruction)
	}

	target, err := f.constructor(args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConstruction, err)
	}

	options := make([]proxy.Option, 0, len(f.options)+1)
	options = append(options, proxy.WithLogger(f.logger))
	options = append(options, f.options...)

	p := proxy.New(target, options...)
	f.logger.Debug("constructed proxied target",
		"proxyId", p.ID(),
		"target", fmt.Sprintf("%T", target),
		"argCount", len(args),
	)
	return p, nil
}

// Registry maps names to factories
type Registry struct {
	factories map[string]*Factory
	mu        sync.RWMutex
}

// NewRegistry creates a new factory registry
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]*Factory),
	}
}

// Register adds a factory under name. Registering the same factory twice is a
// no-op; registering another factory under a taken name fails.
func (r *Registry) Register(name string, factory *Factory) error {
	if name == "" {
		return fmt.Errorf("factory name cannot be empty")
	}
	if factory == nil {
		return fmt.Errorf("factory cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, exists := r.factories[name]; exists {
		if existing == factory {
			return nil
		}
		return fmt.Errorf("factory name %s already registered", name)
	}

	r.factories[name] = factory
	return nil
}

// Get retrieves the factory registered under name
func (r *Registry) Get(name string) (*Factory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factory, exists := r.factories[name]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrFactoryNotFound, name)
	}
	return factory, nil
}

// New builds a proxied target with the factory registered under name
func (r *Registry) New(name string, args ...any) (*proxy.Proxy, error) {
	factory, err := r.Get(name)
	if err != nil {
		return nil, err
	}
	return factory.New(args...)
}

// IsRegistered checks if a factory is registered under name
func (r *Registry) IsRegistered(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.factories[name]
	return exists
}

// Names returns every registered name in ascending order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
