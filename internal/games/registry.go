package games

import (
	"fmt"
	"sort"
	"sync"

	"feltworks.io/live-table-go/internal/bot"
)

// Constructor builds a behavior from its dependencies.
type Constructor func(deps Deps) (bot.Behavior, error)

// Registry maps game keys to behavior constructors.
type Registry struct {
	mu           sync.RWMutex
	constructors map[string]Constructor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{constructors: make(map[string]Constructor)}
}

// Register adds a constructor under a key. Duplicate keys are rejected.
func (r *Registry) Register(name string, ctor Constructor) error {
	if name == "" {
		return fmt.Errorf("game name must not be empty")
	}
	if ctor == nil {
		return fmt.Errorf("game %q: constructor must not be nil", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.constructors[name]; exists {
		return fmt.Errorf("game %q already registered", name)
	}
	r.constructors[name] = ctor
	return nil
}

// New builds the behavior registered under name.
func (r *Registry) New(name string, deps Deps) (bot.Behavior, error) {
	r.mu.RLock()
	ctor, ok := r.constructors[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown game %q (available: %v)", name, r.Names())
	}
	return ctor(deps)
}

// Names returns the registered game keys, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.constructors))
	for name := range r.constructors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry returns a registry with every built-in game. "slot" and
// "diamond_wild" are aliases for the generic slots runner.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register("infinite_blackjack", NewBlackjack)
	r.Register("crazy_time", NewCrazyTime)
	r.Register("slots", NewSlots)
	r.Register("slot", NewSlots)
	r.Register("diamond_wild", NewSlots)
	return r
}
