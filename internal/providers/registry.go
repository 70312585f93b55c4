package providers

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// Factory constructs an adapter from its configuration snapshot. Factories
// must not perform network I/O; that belongs in Adapter.Initialize.
type Factory func(settings Settings, logger *slog.Logger) (Adapter, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register installs a factory under the provider name. Adapters register
// themselves from init; registering the same name twice panics, since that
// is always a programming error.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, exists := registry[name]; exists {
		panic(fmt.Sprintf("providers: duplicate registration of %q", name))
	}
	registry[name] = factory
}

// New constructs the named adapter.
func New(name string, settings Settings, logger *slog.Logger) (Adapter, error) {
	registryMu.RLock()
	factory, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, Wrap(ErrConfiguration, name, "construct", "unknown provider", nil)
	}
	return factory(settings, logger)
}

// Names returns all registered provider names, sorted.
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

// Registered reports whether a provider name is known.
func Registered(name string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := registry[name]
	return ok
}
