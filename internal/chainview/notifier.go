package chainview

import "sync"

// notifier is a broadcast primitive: every call to wait() returns a
// channel that closes the next time fire() runs, waking every current
// waiter at once. spec.md 4.E calls for four of these
// (pending_changed, head_changed, finalized_changed, segmented_changed);
// no third-party pub/sub library in the pack does anything this small
// better than a mutex-guarded channel, so this is stdlib by design, not
// by omission — see DESIGN.md.
type notifier struct {
	mu sync.Mutex
	ch chan struct{}
}

func newNotifier() *notifier {
	return &notifier{ch: make(chan struct{})}
}

// wait returns a channel that closes on the next fire.
func (n *notifier) wait() <-chan struct{} {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.ch
}

// fire wakes every current waiter and arms a fresh channel for the next
// round. Must be called with the chain view's write lock held, so
// "change happened" ordering matches "field was updated" ordering.
func (n *notifier) fire() {
	n.mu.Lock()
	defer n.mu.Unlock()
	close(n.ch)
	n.ch = make(chan struct{})
}
