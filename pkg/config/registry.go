// Package config is the external, language-neutral construction surface
// for a Router: a Builder interface that any frontend can drive
// (textual DSL, YAML, or an ar-like archive), plus a Registry mapping
// element class names to the Go constructors that produce bare
// element.Element instances for AddElement.
//
// Concrete element packages register themselves against a Registry via
// init(), the same way cuemby-warren's pkg/manager wires concrete
// reconciler kinds into a dispatch map rather than a switch statement
// the manager package would otherwise need to know every kind of.
package config

import (
	"fmt"
	"sync"

	"github.com/cuemby/clickcore/pkg/element"
	"github.com/cuemby/clickcore/pkg/errh"
)

// Builder is the construction surface a frontend drives to populate a
// Router. *router.Router satisfies it directly.
type Builder interface {
	AddElement(className, name string, elem element.Element, config []string, lm errh.Landmark) (element.EIndex, error)
	AddConnection(fromE element.EIndex, fromPort int, toE element.EIndex, toPort int, lm errh.Landmark) error
	AddRequirement(kind, value string)
}

// Factory constructs a fresh, unconfigured instance of one element
// class. Configuration arguments are supplied later, by the Router
// calling the instance's own Configure method.
type Factory func() element.Element

// Registry maps element class names to their Factory. The zero value
// is usable; Default is the process-wide registry concrete element
// packages register into from their init functions.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Default is the registry github.com/cuemby/clickcore/pkg/elements
// registers its classes into. Frontends that don't need an isolated
// registry (tests wanting only a handful of stub classes) can use this
// directly.
var Default = NewRegistry()

// Register associates className with factory. A second registration of
// the same name overwrites the first, so a test or plugin package can
// shadow a built-in class deliberately.
func (r *Registry) Register(className string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[className] = factory
}

// New constructs a fresh instance of className, or an error if no
// factory is registered under that name.
func (r *Registry) New(className string) (element.Element, error) {
	r.mu.RLock()
	factory, ok := r.factories[className]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("config: unknown element class %q", className)
	}
	return factory(), nil
}

// Classes returns the registered class names, unordered.
func (r *Registry) Classes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	return names
}

// Register is a convenience wrapper around Default.Register, used by
// concrete element packages' init functions.
func Register(className string, factory Factory) {
	Default.Register(className, factory)
}
