// Package channel provides generic channel interfaces for decoupled communication.
package channel

// Receiver provides read access to a channel.
type Receiver[T any] interface {
	Receive() <-chan T
	Len() int
}

// Sender provides write access to a channel.
type Sender[T any] interface {
	Send(T)
}

// Channel combines read and write access.
type Channel[T any] interface {
	Receiver[T]
	Sender[T]
	Close()
}

// Mailbox holds at most one pending value. Ready fires when a value may be
// waiting and is closed when the mailbox is closed.
type Mailbox[T any] interface {
	Sender[T]
	TryReceive() (T, bool)
	Ready() <-chan struct{}
	Len() int
	Close()
}
