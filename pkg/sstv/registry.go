package sstv

import (
	"errors"
	"fmt"
	"iter"
	"strings"
	"sync"
)

// ErrModeNotRegistered is returned by [Registry.Lookup] when no mode has been
// registered under the requested name.
var ErrModeNotRegistered = errors.New("sstv: mode not registered")

// Registry maps mode names to their descriptors and remembers registration
// order for deterministic enumeration. Lookups ignore case. It is safe for
// concurrent use.
type Registry struct {
	mu    sync.RWMutex
	modes map[string]Mode
	order []string
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{modes: make(map[string]Mode)}
}

// Register validates m and adds it under m.Name. Registering a name again
// replaces the descriptor but keeps its original position.
func (r *Registry) Register(m Mode) error {
	if err := m.Validate(); err != nil {
		return err
	}
	key := strings.ToLower(m.Name)

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.modes[key]; !ok {
		r.order = append(r.order, key)
	}
	r.modes[key] = m
	return nil
}

// Lookup returns the mode registered under name.
// Returns [ErrModeNotRegistered] if no mode has that name.
func (r *Registry) Lookup(name string) (Mode, error) {
	r.mu.RLock()
	m, ok := r.modes[strings.ToLower(name)]
	r.mu.RUnlock()
	if !ok {
		return Mode{}, fmt.Errorf("%w: %q", ErrModeNotRegistered, name)
	}
	return m, nil
}

// Modes returns a snapshot of all registered modes in registration order.
func (r *Registry) Modes() []Mode {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Mode, 0, len(r.order))
	for _, key := range r.order {
		out = append(out, r.modes[key])
	}
	return out
}

// Names returns the registered mode names in registration order.
func (r *Registry) Names() []string {
	modes := r.Modes()
	names := make([]string, len(modes))
	for i, m := range modes {
		names[i] = m.Name
	}
	return names
}

// All iterates a snapshot of the registry as name/mode pairs in
// registration order.
func (r *Registry) All() iter.Seq2[string, Mode] {
	modes := r.Modes()
	return func(yield func(string, Mode) bool) {
		for _, m := range modes {
			if !yield(m.Name, m) {
				return
			}
		}
	}
}

// Len returns the number of registered modes.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

var (
	defaultRegistry     *Registry
	defaultRegistryOnce sync.Once
)

// DefaultRegistry returns the package-level registry holding the canonical
// modes, creating it on first call. Panics if a canonical mode fails
// validation (should not happen).
func DefaultRegistry() *Registry {
	defaultRegistryOnce.Do(func() {
		defaultRegistry = NewRegistry()
		for _, m := range canonicalModes() {
			if err := defaultRegistry.Register(m); err != nil {
				panic("sstv: canonical mode: " + err.Error())
			}
		}
	})
	return defaultRegistry
}

// Lookup finds name in the [DefaultRegistry].
func Lookup(name string) (Mode, error) {
	return DefaultRegistry().Lookup(name)
}
