// Package chainview implements the single in-memory chain view described
// in spec.md 4.E: the {starting_block, finalized, segmented?, grouped?,
// pending_generation?} state plus a canonical-chain snapshot, guarded by
// one reader-writer lock, with four broadcast change notifiers.
package chainview

import (
	"sync"

	"dnaindex/internal/chainmodel"
)

// View is the chain-view capability shared by ingestion, compaction, the
// scanner and the stream producer.
type View struct {
	mu sync.RWMutex

	startingBlock uint64
	opts          chainmodel.SegmentOptions

	head              *chainmodel.Cursor
	finalized         *chainmodel.Cursor
	segmented         *uint64
	grouped           *uint64
	pendingGeneration *uint64

	// canonical maps block number to its canonical hash, bounded to the
	// most recent recentWindow entries (spec.md 4.E: "a snapshot of the
	// canonical chain"; the full chain lives in the block store, this is
	// just the reorg-detection window).
	canonical    map[uint64][]byte
	recentWindow int

	pendingChanged   *notifier
	headChanged      *notifier
	finalizedChanged *notifier
	segmentedChanged *notifier
}

// New creates a chain view rooted at startingBlock with the given
// segment/group geometry. recentWindow bounds how many trailing
// (number, hash) pairs RefreshRecent retains for reorg walks; 0 picks a
// sane default.
func New(opts chainmodel.SegmentOptions, startingBlock uint64, recentWindow int) *View {
	if recentWindow <= 0 {
		recentWindow = 256
	}
	return &View{
		startingBlock:    startingBlock,
		opts:             opts,
		canonical:        make(map[uint64][]byte),
		recentWindow:     recentWindow,
		pendingChanged:   newNotifier(),
		headChanged:      newNotifier(),
		finalizedChanged: newNotifier(),
		segmentedChanged: newNotifier(),
	}
}

// --- read accessors ---------------------------------------------------

// GetHead returns the most recently ingested cursor, if any.
func (v *View) GetHead() (chainmodel.Cursor, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.head == nil {
		return chainmodel.Cursor{}, false
	}
	return *v.head, true
}

// GetFinalizedCursor returns the current finalized cursor, if any.
func (v *View) GetFinalizedCursor() (chainmodel.Cursor, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.finalized == nil {
		return chainmodel.Cursor{}, false
	}
	return *v.finalized, true
}

// GetSegmentedCursor returns the block cursor up to which segments have
// been written, if any.
func (v *View) GetSegmentedCursor() (chainmodel.Cursor, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.numberCursorLocked(v.segmented)
}

// GetGroupedCursor returns the block cursor up to which groups have been
// written, if any.
func (v *View) GetGroupedCursor() (chainmodel.Cursor, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.numberCursorLocked(v.grouped)
}

// GetPendingGeneration returns the in-flight compaction generation
// marker, if any (spec.md 4.E's pending_generation? field).
func (v *View) GetPendingGeneration() (uint64, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.pendingGeneration == nil {
		return 0, false
	}
	return *v.pendingGeneration, true
}

func (v *View) numberCursorLocked(n *uint64) (chainmodel.Cursor, bool) {
	if n == nil {
		return chainmodel.Cursor{}, false
	}
	hash, ok := v.canonical[*n]
	if !ok {
		return chainmodel.NewCursor(*n, nil), true
	}
	return chainmodel.NewCursor(*n, hash), true
}

// GetCanonical returns the canonical hash at block number n, if it is
// still within the retained window.
func (v *View) GetCanonical(n uint64) ([]byte, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	hash, ok := v.canonical[n]
	return hash, ok
}

// GetNextCursor returns the cursor immediately after prev, or the
// starting cursor if prev is nil — a zero Cursor and false if the canonical hash for
// that block number is not yet known.
func (v *View) GetNextCursor(prev *chainmodel.Cursor) (chainmodel.Cursor, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	next := v.startingBlock
	if prev != nil {
		next = prev.Number() + 1
	}
	hash, ok := v.canonical[next]
	if !ok {
		return chainmodel.Cursor{}, false
	}
	return chainmodel.NewCursor(next, hash), true
}

// ValidateCursor reports whether c's hash still matches the canonical
// chain at c's block number. A number outside the retained window is
// treated as valid (nothing to contradict it with) since the scanner
// only needs this for recent, potentially-reorg-affected cursors.
func (v *View) ValidateCursor(c chainmodel.Cursor) bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	hash, ok := v.canonical[c.Number()]
	if !ok {
		return true
	}
	return string(hash) == string(c.UniqueKey)
}

// IsSegmentAligned, IsGroupAligned, HasSegmentFor and HasGroupFor expose
// the geometry queries spec.md 4.E groups under "segment/group alignment
// queries".
func (v *View) IsSegmentAligned(n uint64) bool { return v.opts.IsSegmentAligned(n) }
func (v *View) IsGroupAligned(n uint64) bool   { return v.opts.IsGroupAligned(n) }

func (v *View) HasSegmentFor(n uint64) bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.segmented == nil {
		return false
	}
	return v.opts.HasSegmentFor(n, *v.segmented)
}

func (v *View) HasGroupFor(n uint64) bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.grouped == nil {
		return false
	}
	return v.opts.HasGroupFor(n, *v.grouped)
}

// --- write accessors (compactor and ingestion only) --------------------

// SetFinalizedBlock updates the finalized cursor and wakes
// finalized_changed waiters if it actually changed.
func (v *View) SetFinalizedBlock(c chainmodel.Cursor) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.finalized != nil && v.finalized.Equal(c) {
		return
	}
	v.finalized = &c
	v.finalizedChanged.fire()
}

// SetSegmentedBlock advances the segmented high-water mark and wakes
// segmented_changed waiters.
func (v *View) SetSegmentedBlock(n uint64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.segmented != nil && *v.segmented == n {
		return
	}
	v.segmented = &n
	v.segmentedChanged.fire()
}

// SetGroupedBlock advances the grouped high-water mark. spec.md 4.E
// names only four notifiers and grouped is not among them: a group
// completion always follows the segment write that triggered it, so
// segmented_changed already woke anyone waiting on forward progress.
func (v *View) SetGroupedBlock(n uint64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.grouped = &n
}

// SetPendingGeneration sets or clears the in-flight compaction
// generation marker and wakes pending_changed waiters.
func (v *View) SetPendingGeneration(g *uint64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.pendingGeneration = g
	v.pendingChanged.fire()
}

// RefreshRecent records a freshly observed head cursor and its
// accompanying recent (number, hash) window, trimming entries older than
// recentWindow blocks behind it. Wakes head_changed if the head actually
// moved.
func (v *View) RefreshRecent(head chainmodel.Cursor, recent map[uint64][]byte) {
	v.mu.Lock()
	defer v.mu.Unlock()

	for n, h := range recent {
		v.canonical[n] = h
	}
	cutoff := int64(head.Number()) - int64(v.recentWindow)
	if cutoff > 0 {
		for n := range v.canonical {
			if int64(n) < cutoff {
				delete(v.canonical, n)
			}
		}
	}

	changed := v.head == nil || !v.head.Equal(head)
	v.head = &head
	if changed {
		v.headChanged.fire()
	}
}

// --- change notification -----------------------------------------------

func (v *View) WaitPendingChanged() <-chan struct{}   { return v.pendingChanged.wait() }
func (v *View) WaitHeadChanged() <-chan struct{}      { return v.headChanged.wait() }
func (v *View) WaitFinalizedChanged() <-chan struct{} { return v.finalizedChanged.wait() }
func (v *View) WaitSegmentedChanged() <-chan struct{} { return v.segmentedChanged.wait() }
