// Package extend holds the extended actions that can be named in the
// extensions section of the configuration.
package extend

import (
	"fmt"
	"sort"
	"sync"

	errUtils "github.com/cedar-backup/cback/errors"
	"github.com/cedar-backup/cback/pkg/action"
	"github.com/cedar-backup/cback/pkg/runner"
)

// Factory creates an extension function bound to a command runner.
type Factory func(r runner.CommandRunner) action.Action

// Registry maps "module.function" to extension factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// Global registry instance.
var registry = &Registry{factories: make(map[string]Factory)}

func key(module, function string) string {
	return module + "." + function
}

// Register adds an extension function. Called from init() in each extension
// file. Registering the same function twice is an error.
func Register(module, function string, factory Factory) error {
	registry.mu.Lock()
	defer registry.mu.Unlock()

	k := key(module, function)
	if _, ok := registry.factories[k]; ok {
		return fmt.Errorf("%w: %s", errUtils.ErrDuplicateExtension, k)
	}
	registry.factories[k] = factory
	return nil
}

// MustRegister is Register for init functions.
func MustRegister(module, function string, factory Factory) {
	if err := Register(module, function, factory); err != nil {
		panic(err)
	}
}

// Lookup returns the factory registered for module.function.
func Lookup(module, function string) (Factory, bool) {
	registry.mu.RLock()
	defer registry.mu.RUnlock()
	f, ok := registry.factories[key(module, function)]
	return f, ok
}

// List returns every registered "module.function", sorted.
func List() []string {
	registry.mu.RLock()
	defer registry.mu.RUnlock()
	names := make([]string, 0, len(registry.factories))
	for k := range registry.factories {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Reset clears the registry. For testing only.
func Reset() {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.factories = make(map[string]Factory)
}

// Resolver resolves configured extensions against the registry.
type Resolver struct {
	runner runner.CommandRunner
}

// NewResolver returns a resolver whose extensions run commands through r.
func NewResolver(r runner.CommandRunner) *Resolver {
	return &Resolver{runner: r}
}

func (r *Resolver) Resolve(module, function string) (action.Action, error) {
	factory, ok := Lookup(module, function)
	if !ok {
		return nil, errUtils.WithHint(
			fmt.Errorf("%w: %s", errUtils.ErrUnknownExtensionFunction, key(module, function)),
			fmt.Sprintf("available extension functions: %v", List()),
		)
	}
	return factory(r.runner), nil
}
