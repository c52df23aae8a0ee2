package channel

import (
	"sync"
	"sync/atomic"
)

// Latest is a Mailbox that keeps only the newest value. Sending over an
// unconsumed value replaces it and hands the stale value to the drop func.
type Latest[T any] struct {
	mu     sync.Mutex
	item   T
	full   bool
	closed bool
	ready  chan struct{}
	onDrop func(T)

	sent    atomic.Uint64
	dropped atomic.Uint64
}

// NewLatest creates an empty mailbox. onDrop may be nil.
func NewLatest[T any](onDrop func(T)) *Latest[T] {
	return &Latest[T]{
		ready:  make(chan struct{}, 1),
		onDrop: onDrop,
	}
}

// Send stores v, replacing any value not yet received. Sends after Close
// are dropped.
func (l *Latest[T]) Send(v T) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		l.drop(v)
		return
	}
	stale, hadStale := l.item, l.full
	l.item, l.full = v, true
	l.sent.Add(1)
	select {
	case l.ready <- struct{}{}:
	default:
	}
	l.mu.Unlock()

	if hadStale {
		l.drop(stale)
	}
}

// TryReceive takes the pending value if there is one.
func (l *Latest[T]) TryReceive() (T, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var zero T
	if !l.full {
		return zero, false
	}
	v := l.item
	l.item, l.full = zero, false
	return v, true
}

// Ready returns a channel that fires after a Send and is closed by Close.
// A fire does not guarantee a value: it may already have been taken.
func (l *Latest[T]) Ready() <-chan struct{} {
	return l.ready
}

// Len returns 1 if a value is pending, else 0.
func (l *Latest[T]) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.full {
		return 1
	}
	return 0
}

// Close drops any pending value and closes Ready. Idempotent.
func (l *Latest[T]) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	stale, hadStale := l.item, l.full
	var zero T
	l.item, l.full = zero, false
	close(l.ready)
	l.mu.Unlock()

	if hadStale {
		l.drop(stale)
	}
}

// Sent returns the number of values accepted by Send.
func (l *Latest[T]) Sent() uint64 {
	return l.sent.Load()
}

// Dropped returns the number of values discarded without being received.
func (l *Latest[T]) Dropped() uint64 {
	return l.dropped.Load()
}

func (l *Latest[T]) drop(v T) {
	l.dropped.Add(1)
	if l.onDrop != nil {
		l.onDrop(v)
	}
}
