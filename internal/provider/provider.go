// Package provider defines the compute provider interface for reaper.
package provider

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/yairfalse/reaper/pkg/instance"
)

// ErrNotRegistered is returned by Lookup for an unknown provider name.
var ErrNotRegistered = errors.New("provider not registered")

// Provider is the interface all compute providers must implement.
type Provider interface {
	// Name returns the provider identifier (e.g., "aws").
	Name() string

	// Region returns the region the provider operates in.
	Region() string

	// Describe returns snapshots for the identifiers that exist. Missing
	// identifiers are simply absent from the map.
	Describe(ctx context.Context, ids []instance.ID) (map[instance.ID]instance.Snapshot, error)

	// Terminate issues a terminate call for a single instance. Errors the
	// provider classified carry an *APIError.
	Terminate(ctx context.Context, id instance.ID) (instance.Transition, error)
}

// Registry holds registered providers.
var (
	registry = make(map[string]Provider)
	mu       sync.RWMutex
)

// Register adds a provider to the registry.
func Register(p Provider) {
	mu.Lock()
	defer mu.Unlock()
	registry[p.Name()] = p
}

// Get returns a provider by name.
func Get(name string) (Provider, bool) {
	mu.RLock()
	defer mu.RUnlock()
	p, ok := registry[name]
	return p, ok
}

// Lookup is Get with an error for callers that need one.
func Lookup(name string) (Provider, error) {
	p, ok := Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q (registered: %v)", ErrNotRegistered, name, Names())
	}
	return p, nil
}

// Names returns all registered provider names, sorted.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clear removes all providers from the registry. Used for testing.
func Clear() {
	mu.Lock()
	defer mu.Unlock()
	registry = make(map[string]Provider)
}
