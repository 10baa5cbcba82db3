// Package events is the lifecycle hook bus plugins subscribe to.
package events

import (
	"context"
	"fmt"
	"sync"

	"github.com/conneroisu/pri/internal/logging"
)

// Well-known lifecycle events.
const (
	BeforeEnsureFiles    = "beforeEnsureFiles"
	AfterEnsureFiles     = "afterEnsureFiles"
	CreateEntry          = "createEntry"
	AfterProdBuild       = "afterProdBuild"
	ProjectConfigChanged = "projectConfigChanged"
)

// Handler receives the arguments passed to Emit.
type Handler func(ctx context.Context, args ...interface{})

type subscription struct {
	id      uint64
	handler Handler
	once    bool
}

// Bus dispatches named events to subscribers in registration order.
type Bus struct {
	mu     sync.Mutex
	subs   map[string][]subscription
	nextID uint64
	logger logging.Logger
}

// NewBus creates an empty bus. A nil logger discards subscriber panics.
func NewBus(logger logging.Logger) *Bus {
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	return &Bus{
		subs:   make(map[string][]subscription),
		logger: logger.WithComponent("events"),
	}
}

// On registers a repeatable subscriber.
func (b *Bus) On(name string, handler Handler) {
	b.subscribe(name, handler, false)
}

// Once registers a subscriber that is removed before its first invocation.
func (b *Bus) Once(name string, handler Handler) {
	b.subscribe(name, handler, true)
}

func (b *Bus) subscribe(name string, handler Handler, once bool) {
	if handler == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	// Copy-on-write so snapshots taken by in-flight emissions stay intact.
	current := b.subs[name]
	updated := make([]subscription, len(current), len(current)+1)
	copy(updated, current)
	b.subs[name] = append(updated, subscription{id: b.nextID, handler: handler, once: once})
}

// Emit invokes the subscribers registered when the call starts. Subscribers
// added while it runs fire from the next emission on. Handlers run
// synchronously; work they start on their own goroutines is not awaited.
func (b *Bus) Emit(ctx context.Context, name string, args ...interface{}) {
	b.mu.Lock()
	snapshot := b.subs[name]
	b.mu.Unlock()

	for _, sub := range snapshot {
		if sub.once && !b.claim(name, sub.id) {
			continue
		}
		b.invoke(ctx, name, sub.handler, args)
	}
}

// claim removes a once subscription and reports whether this caller won it.
func (b *Bus) claim(name string, id uint64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	current := b.subs[name]
	for i, sub := range current {
		if sub.id != id {
			continue
		}
		updated := make([]subscription, 0, len(current)-1)
		updated = append(updated, current[:i]...)
		b.subs[name] = append(updated, current[i+1:]...)
		return true
	}

	return false
}

func (b *Bus) invoke(ctx context.Context, name string, handler Handler, args []interface{}) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error(ctx, fmt.Errorf("panic: %v", r), "Event subscriber panicked", "event", name)
		}
	}()

	handler(ctx, args...)
}

// Count returns the number of live subscribers for name.
func (b *Bus) Count(name string) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.subs[name])
}
