package auth

import (
	"fmt"
	"sort"
)

// Registry stores configured auth strategies keyed by name.
// It is populated at startup and only read afterwards.
type Registry struct {
	strategies map[string]Strategy
}

// NewRegistry creates a registry for auth strategies.
func NewRegistry() *Registry {
	return &Registry{strategies: make(map[string]Strategy)}
}

// Register adds a strategy under its own name.
func (r *Registry) Register(strategy Strategy) error {
	name := strategy.Name()
	if name == "" {
		return fmt.Errorf("auth strategy has no name")
	}
	if _, exists := r.strategies[name]; exists {
		return fmt.Errorf("auth strategy %q already registered", name)
	}
	r.strategies[name] = strategy
	return nil
}

// Strategy returns the strategy registered for name.
func (r *Registry) Strategy(name string) (Strategy, error) {
	strategy, ok := r.strategies[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownStrategy, name)
	}
	return strategy, nil
}

// Names lists registered strategy names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.strategies))
	for name := range r.strategies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
