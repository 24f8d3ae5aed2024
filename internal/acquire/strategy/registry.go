package strategy

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrDuplicateStrategy is returned when a name is registered twice.
	ErrDuplicateStrategy = errors.New("strategy already registered")

	// ErrStrategyNotFound is returned by lookups for an unknown name.
	ErrStrategyNotFound = errors.New("strategy not found")

	// ErrInvalidStrategy is returned for nil strategies or empty names.
	ErrInvalidStrategy = errors.New("invalid strategy")
)

// Registry is the ordered catalog the fallback chain walks.
// Registration order is the fallback priority.
type Registry struct {
	mu         sync.RWMutex
	strategies []Strategy
	byName     map[string]Strategy
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byName: make(map[string]Strategy),
	}
}

// NewRegistryFromNames builds a registry from built-in catalog names, in order.
func NewRegistryFromNames(names ...string) (*Registry, error) {
	r := NewRegistry()
	for _, name := range names {
		s, err := Builtin(name)
		if err != nil {
			return nil, err
		}
		if err := r.Register(s); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register appends a strategy to the end of the chain.
func (r *Registry) Register(s Strategy) error {
	if s == nil || s.Name() == "" {
		return ErrInvalidStrategy
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byName[s.Name()]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateStrategy, s.Name())
	}
	r.strategies = append(r.strategies, s)
	r.byName[s.Name()] = s
	return nil
}

// All returns the strategies in fallback order.
func (r *Registry) All() []Strategy {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Strategy, len(r.strategies))
	copy(result, r.strategies)
	return result
}

// ByName looks up a registered strategy.
func (r *Registry) ByName(name string) (Strategy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrStrategyNotFound, name)
	}
	return s, nil
}

// Len returns the number of registered strategies.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.strategies)
}

// Names returns the registered names in order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, len(r.strategies))
	for i, s := range r.strategies {
		names[i] = s.Name()
	}
	return names
}

// Reverse undoes the first registered strategy that recognizes u.
// It returns u and an empty name when no strategy matches.
func (r *Registry) Reverse(u string) (string, string) {
	for _, s := range r.All() {
		if s.Matches(u) {
			return s.Reverse(u), s.Name()
		}
	}
	return u, ""
}
