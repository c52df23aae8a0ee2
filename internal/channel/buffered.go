package channel

import "sync"

// Buffered is a buffered channel implementation
type Buffered[T any] struct {
	ch     chan T
	mu     sync.RWMutex
	closed bool
}

// NewBuffered creates a new buffered channel with the given size
func NewBuffered[T any](size int) *Buffered[T] {
	return &Buffered[T]{ch: make(chan T, size)}
}

// Send sends a value to the channel, blocking while the buffer is full.
// Sends after Close are discarded.
func (b *Buffered[T]) Send(v T) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	b.ch <- v
}

// TrySend sends without blocking and reports whether the value was queued.
func (b *Buffered[T]) TrySend(v T) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return false
	}
	select {
	case b.ch <- v:
		return true
	default:
		return false
	}
}

// Receive returns the receive-only channel
func (b *Buffered[T]) Receive() <-chan T {
	return b.ch
}

// Len returns the number of items currently in the buffer
func (b *Buffered[T]) Len() int {
	return len(b.ch)
}

// Close closes the channel. Calling Close more than once is a no-op.
func (b *Buffered[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	close(b.ch)
}
