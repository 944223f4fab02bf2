package snapshot

import (
	"sync"

	"dnaindex/internal/chainmodel"
)

// ChangeKind enumerates the snapshot change vocabulary from spec.md 4.K.
type ChangeKind int

const (
	ChangeStarted ChangeKind = iota
	ChangeBlockIngested
	ChangeStateChanged
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeStarted:
		return "started"
	case ChangeBlockIngested:
		return "block_ingested"
	case ChangeStateChanged:
		return "state_changed"
	default:
		return "unknown"
	}
}

// Change is one event on the snapshot change stream: a new revision paired
// with the reason it changed.
type Change struct {
	Kind     ChangeKind
	Snapshot chainmodel.Snapshot
}

// Bus fans a snapshot's changes out to every subscriber (spec.md 4.K's
// scanner-side processes mirroring the chain view). It plays the same role
// as chainview's close-and-replace notifiers, but change.go's payload
// (which revision, and why) needs to reach every subscriber rather than
// just waking one waiter on the next tick, so it is a small per-subscriber
// buffered-channel broadcaster instead.
type Bus struct {
	mu   sync.Mutex
	subs map[int]chan Change
	next int
}

// NewBus constructs an empty change bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan Change)}
}

// Subscribe registers a new listener and returns its channel plus an
// unsubscribe function the caller must call when done listening.
func (b *Bus) Subscribe() (<-chan Change, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.next
	b.next++
	ch := make(chan Change, 32)
	b.subs[id] = ch
	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
	}
}

// Publish broadcasts a change to every current subscriber. A subscriber
// whose buffer is full is dropped a notification rather than blocking the
// segmenter (spec.md 4.K names this stream as advisory for scanners
// mirroring state, not a delivery-guaranteed log — the durable record is
// the snapshot object itself).
func (b *Bus) Publish(c Change) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- c:
		default:
		}
	}
}
