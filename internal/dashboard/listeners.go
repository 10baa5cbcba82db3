// Package dashboard serves the development dashboard: the generated .temp
// assets, an index page and a websocket channel that pushes project status
// to the browser and answers its requests.
package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// Handler answers one socket request. The returned value is sent back as
// the reply data.
type Handler func(ctx context.Context, data json.RawMessage) (interface{}, error)

// Listeners is the registry of socket request handlers, keyed by event name.
type Listeners struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewListeners creates an empty registry.
func NewListeners() *Listeners {
	return &Listeners{handlers: make(map[string]Handler)}
}

// Add registers h for name. Names are unique.
func (l *Listeners) Add(name string, h Handler) error {
	if name == "" {
		return fmt.Errorf("socket listener name is required")
	}
	if h == nil {
		return fmt.Errorf("socket listener %s has no handler", name)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.handlers[name]; exists {
		return fmt.Errorf("socket listener %s is already registered", name)
	}
	l.handlers[name] = h

	return nil
}

// Get returns the handler for name.
func (l *Listeners) Get(name string) (Handler, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	h, ok := l.handlers[name]
	return h, ok
}

// Names returns the registered event names, sorted.
func (l *Listeners) Names() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	names := make([]string, 0, len(l.handlers))
	for name := range l.handlers {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}
