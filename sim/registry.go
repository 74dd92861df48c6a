package sim

import (
	"fmt"
	"sort"
	"sync"
)

// ModelFactory creates an atomic model for the given URI.
type ModelFactory func(uri string) AtomicModel

var (
	registryMu sync.RWMutex
	registry   = map[string]ModelFactory{}
)

// RegisterModelType makes a factory available to architecture files under
// typeName. Appliance packages call it from init(). Registering the same name
// twice panics.
func RegisterModelType(typeName string, factory ModelFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := registry[typeName]; dup {
		panic(fmt.Sprintf("model type %q registered twice", typeName))
	}
	registry[typeName] = factory
}

// LookupModelType returns the factory registered under typeName.
func LookupModelType(typeName string) (ModelFactory, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	f, ok := registry[typeName]
	return f, ok
}

// ModelTypes lists the registered type names, sorted.
func ModelTypes() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
