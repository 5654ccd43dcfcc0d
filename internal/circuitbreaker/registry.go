package circuitbreaker

import (
	"fmt"
	"sort"
)

// Registry holds one breaker per operation kind. It is built once at startup and never
// mutated afterwards, so lookups need no locking.
type Registry struct {
	breakers map[string]*CircuitBreaker
}

// NewRegistry creates a breaker for every config. Names must be unique.
func NewRegistry(configs []*Config, onStateChange StateChangeFunc) (*Registry, error) {
	breakers := make(map[string]*CircuitBreaker, len(configs))
	for _, cfg := range configs {
		if cfg == nil {
			return nil, fmt.Errorf("circuit breaker config is required")
		}
		if cfg.Name == "" {
			return nil, fmt.Errorf("circuit breaker name is required")
		}
		if _, exists := breakers[cfg.Name]; exists {
			return nil, fmt.Errorf("duplicate circuit breaker '%s'", cfg.Name)
		}
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("circuit breaker '%s': %w", cfg.Name, err)
		}

		cb := NewCircuitBreaker(cfg)
		if onStateChange != nil {
			cb.OnStateChange(onStateChange)
		}
		breakers[cfg.Name] = cb
	}

	return &Registry{breakers: breakers}, nil
}

// Get retrieves a circuit breaker by name
func (r *Registry) Get(name string) (*CircuitBreaker, error) {
	if cb, exists := r.breakers[name]; exists {
		return cb, nil
	}
	return nil, fmt.Errorf("circuit breaker '%s' not found", name)
}

// Names returns the registered operation kinds in sorted order
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.breakers))
	for name := range r.breakers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetAllStats returns statistics for all circuit breakers
func (r *Registry) GetAllStats() map[string]*Stats {
	result := make(map[string]*Stats, len(r.breakers))
	for name, cb := range r.breakers {
		result[name] = cb.GetStats()
	}
	return result
}

// ResetAll resets all circuit breakers
func (r *Registry) ResetAll() {
	for _, cb := range r.breakers {
		cb.Reset()
	}
}
