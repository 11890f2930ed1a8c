package layer

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Registry maps layer names to implementations. It is populated at start-up
// and read by whatever composes the estimation pipeline.
type Registry struct {
	mu     sync.RWMutex
	layers map[string]Layer
}

// NewRegistry creates an empty layer registry.
func NewRegistry() *Registry {
	return &Registry{
		layers: make(map[string]Layer),
	}
}

// Register binds l to name. It returns ErrDuplicateRegistration if name is
// already bound; the existing binding is kept.
func (r *Registry) Register(name string, l Layer) error {
	if name == "" {
		return errors.New("register layer: empty name")
	}
	if l == nil {
		return fmt.Errorf("register layer %q: nil layer", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.layers[name]; exists {
		return fmt.Errorf("register layer %q: %w", name, ErrDuplicateRegistration)
	}
	r.layers[name] = l
	return nil
}

// MustRegister is like Register but panics on error. Use it during start-up,
// where an ambiguous registry must stop the process.
func (r *Registry) MustRegister(name string, l Layer) {
	if err := r.Register(name, l); err != nil {
		panic(err)
	}
}

// Lookup returns the layer bound to name, or ErrUnknownLayer.
func (r *Registry) Lookup(name string) (Layer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	l, ok := r.layers[name]
	if !ok {
		return nil, fmt.Errorf("layer %q: %w", name, ErrUnknownLayer)
	}
	return l, nil
}

// List returns the registered layer names, sorted for a stable API response.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.layers))
	for name := range r.layers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
