package client

import "sync/atomic"

// State is the connection lifecycle state.
type State int32

const (
	StateOpening State = iota
	StateOpen
	StateBound
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateOpening:
		return "Opening"
	case StateOpen:
		return "Open"
	case StateBound:
		return "Bound"
	case StateClosing:
		return "Closing"
	case StateClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// stateBox holds the connection's current State behind an atomic so reads
// from arbitrary goroutines (the reader loop, request callers, Close)
// never race with transitions.
type stateBox struct {
	v atomic.Int32
}

func (b *stateBox) load() State {
	return State(b.v.Load())
}

func (b *stateBox) store(s State) {
	b.v.Store(int32(s))
}

// compareAndSwap transitions from "from" to "to", reporting whether the
// transition happened. Close and markBound use it to move the state
// without a separate mutex; Close's run-once guarantee comes from its
// sync.Once, and markBound moves to Bound from Opening or Open.
func (b *stateBox) compareAndSwap(from, to State) bool {
	return b.v.CompareAndSwap(int32(from), int32(to))
}
