// Package pipe implements named, ordered chains of value transformers that
// plugins use to shape generated artifacts.
package pipe

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Transformer maps a prior value to the next one.
type Transformer[T any] func(ctx context.Context, prior T) (T, error)

// Chain is an ordered list of transformers. The zero value is ready to use.
type Chain[T any] struct {
	mu           sync.RWMutex
	transformers []Transformer[T]
}

// Append adds fn to the end of the chain.
func (c *Chain[T]) Append(fn Transformer[T]) {
	if fn == nil {
		return
	}

	c.mu.Lock()
	c.transformers = append(c.transformers, fn)
	c.mu.Unlock()
}

// Len returns the number of transformers in the chain.
func (c *Chain[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.transformers)
}

// Apply folds every transformer over initial in registration order. The
// first failing transformer aborts the fold; no partial result is returned.
func (c *Chain[T]) Apply(ctx context.Context, initial T) (T, error) {
	c.mu.RLock()
	transformers := make([]Transformer[T], len(c.transformers))
	copy(transformers, c.transformers)
	c.mu.RUnlock()

	result := initial
	for i, fn := range transformers {
		if err := ctx.Err(); err != nil {
			var zero T
			return zero, err
		}

		next, err := fn(ctx, result)
		if err != nil {
			var zero T
			return zero, fmt.Errorf("transformer %d: %w", i, err)
		}
		result = next
	}

	return result, nil
}

// Registry holds string chains keyed by name.
type Registry struct {
	mu     sync.RWMutex
	chains map[string]*Chain[string]
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{chains: make(map[string]*Chain[string])}
}

// Register appends fn to the named chain, creating it if needed.
func (r *Registry) Register(name string, fn Transformer[string]) {
	r.mu.Lock()
	chain, ok := r.chains[name]
	if !ok {
		chain = &Chain[string]{}
		r.chains[name] = chain
	}
	r.mu.Unlock()

	chain.Append(fn)
}

// Apply runs the named chain over initial. An absent or empty chain returns
// initial unchanged.
func (r *Registry) Apply(ctx context.Context, name, initial string) (string, error) {
	r.mu.RLock()
	chain, ok := r.chains[name]
	r.mu.RUnlock()

	if !ok {
		return initial, nil
	}

	out, err := chain.Apply(ctx, initial)
	if err != nil {
		return "", fmt.Errorf("pipe %q: %w", name, err)
	}

	return out, nil
}

// Get folds the named chain over fallback. With nothing registered for name
// it returns fallback as is.
func (r *Registry) Get(ctx context.Context, name, fallback string) (string, error) {
	if !r.Has(name) {
		return fallback, nil
	}

	return r.Apply(ctx, name, fallback)
}

// Has reports whether at least one transformer is registered for name.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	chain, ok := r.chains[name]
	r.mu.RUnlock()

	return ok && chain.Len() > 0
}

// Names returns the registered chain names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.chains))
	for name := range r.chains {
		names = append(names, name)
	}
	r.mu.RUnlock()

	sort.Strings(names)
	return names
}

// Clear removes every chain.
func (r *Registry) Clear() {
	r.mu.Lock()
	r.chains = make(map[string]*Chain[string])
	r.mu.Unlock()
}
