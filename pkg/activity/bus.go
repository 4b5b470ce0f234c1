package activity

import "sync"

// Bus is an in-process Source. Emit delivers synchronously on the caller's
// goroutine.
type Bus struct {
	mu       sync.RWMutex
	nextID   int
	handlers map[Kind]map[int]Handler
}

// Ensure Bus implements Source
var _ Source = (*Bus)(nil)

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{handlers: make(map[Kind]map[int]Handler)}
}

// Subscribe registers h for kind.
func (b *Bus) Subscribe(kind Kind, h Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	if b.handlers[kind] == nil {
		b.handlers[kind] = make(map[int]Handler)
	}
	b.handlers[kind][id] = h

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.handlers[kind], id)
	}
}

// Emit dispatches a signal to every handler subscribed to kind.
func (b *Bus) Emit(kind Kind) {
	b.mu.RLock()
	hs := make([]Handler, 0, len(b.handlers[kind]))
	for _, h := range b.handlers[kind] {
		hs = append(hs, h)
	}
	b.mu.RUnlock()

	for _, h := range hs {
		h(kind)
	}
}

// Listeners returns the number of handlers subscribed to kind.
func (b *Bus) Listeners(kind Kind) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[kind])
}
