package auth

import (
	"sort"
	"sync"
)

// broadcaster delivers values to listeners in the order they were enqueued.
//
// Publishers enqueue while holding their own state lock so queue order is
// commit order, then call drain after releasing it. Only one goroutine drains
// at a time; a publish that happens while another round is in flight (for
// example a listener that mutates the store) is delivered by the active
// drainer once the current round finishes.
type broadcaster[T any] struct {
	mu        sync.Mutex
	nextID    uint64
	listeners map[uint64]func(T)
	queue     []T
	draining  bool
	closed    bool
	onPanic   func(recovered any)
}

func newBroadcaster[T any](onPanic func(recovered any)) *broadcaster[T] {
	return &broadcaster[T]{
		listeners: make(map[uint64]func(T)),
		onPanic:   onPanic,
	}
}

func (b *broadcaster[T]) subscribe(fn func(T)) func() {
	if fn == nil {
		return func() {}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return func() {}
	}

	b.nextID++
	id := b.nextID
	b.listeners[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.listeners, id)
			b.mu.Unlock()
		})
	}
}

func (b *broadcaster[T]) enqueue(v T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.queue = append(b.queue, v)
}

func (b *broadcaster[T]) drain() {
	b.mu.Lock()
	if b.draining {
		b.mu.Unlock()
		return
	}
	b.draining = true

	for len(b.queue) > 0 && !b.closed {
		v := b.queue[0]
		var zero T
		b.queue[0] = zero
		b.queue = b.queue[1:]

		listeners := b.snapshot()
		b.mu.Unlock()

		for _, fn := range listeners {
			b.call(fn, v)
		}

		b.mu.Lock()
	}

	b.queue = nil
	b.draining = false
	b.mu.Unlock()
}

// snapshot returns listeners in subscription order, must hold mu.
func (b *broadcaster[T]) snapshot() []func(T) {
	ids := make([]uint64, 0, len(b.listeners))
	for id := range b.listeners {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]func(T), 0, len(ids))
	for _, id := range ids {
		out = append(out, b.listeners[id])
	}
	return out
}

func (b *broadcaster[T]) call(fn func(T), v T) {
	defer func() {
		if r := recover(); r != nil && b.onPanic != nil {
			b.onPanic(r)
		}
	}()
	fn(v)
}

func (b *broadcaster[T]) len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.listeners)
}

func (b *broadcaster[T]) close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	b.queue = nil
	clear(b.listeners)
}
