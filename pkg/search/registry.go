package search

import (
	"fmt"
	"sort"
	"sync"

	"github.com/sievedata/sieve-engine/pkg/apperrors"
)

// Factory builds a fresh strategy instance. Strategies keep per-run
// state, so every Search caller gets its own instance.
type Factory func() Strategy

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register makes a strategy available under its name. It panics on a
// duplicate name; registration happens in init functions where a
// duplicate is a programming error.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := registry[name]; dup {
		panic(fmt.Sprintf("search: strategy %q registered twice", name))
	}
	registry[name] = factory
}

// New resolves a strategy by name.
func New(name string) (Strategy, error) {
	registryMu.RLock()
	factory, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("strategy %q: %w", name, apperrors.ErrUnknownStrategy)
	}
	return factory(), nil
}

// Names returns the registered strategy names in sorted order.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
