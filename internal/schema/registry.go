package schema

import (
	"fmt"
	"sort"
	"sync"
)

var (
	registry   = make(map[RegisterType]Descriptor)
	registryMu sync.RWMutex
)

// Register adds a register descriptor to the registry.
// Panics if the register is already registered or the descriptor is malformed.
func Register(d Descriptor) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[d.Type]; exists {
		panic(fmt.Sprintf("register already registered: %s", d.Type))
	}
	if err := d.validate(); err != nil {
		panic(err)
	}

	registry[d.Type] = d.clone()
}

// Replace swaps the descriptor of an already registered register.
func Replace(d Descriptor) error {
	if err := d.validate(); err != nil {
		return err
	}

	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[d.Type]; !exists {
		return fmt.Errorf("%w: %s", ErrUnknownRegister, d.Type)
	}
	registry[d.Type] = d.clone()
	return nil
}

// Get returns a register descriptor by type.
// Returns false if not found.
func Get(t RegisterType) (Descriptor, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	d, ok := registry[t]
	if !ok {
		return Descriptor{}, false
	}
	return d.clone(), true
}

// Lookup resolves a register by case-insensitive name.
func Lookup(name string) (Descriptor, error) {
	t, err := ParseRegisterType(name)
	if err != nil {
		return Descriptor{}, err
	}
	d, ok := Get(t)
	if !ok {
		return Descriptor{}, fmt.Errorf("%w: %s", ErrUnknownRegister, name)
	}
	return d, nil
}

// All returns all registered descriptors sorted by type.
func All() []Descriptor {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]Descriptor, 0, len(registry))
	for _, d := range registry {
		result = append(result, d.clone())
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Type < result[j].Type
	})

	return result
}

// Count returns the number of registered registers.
func Count() int {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return len(registry)
}
