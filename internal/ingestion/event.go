package ingestion

import "dnaindex/internal/chainmodel"

// EventKind tags the five events the ingestion engine emits, per spec.md
// 4.F: Initialize once at startup, then NewHead/NewFinalized as the
// provider's chain tip moves, Ingested per block written, and Invalidate
// when a reorg rewinds already-ingested blocks.
type EventKind int

const (
	EventInitialize EventKind = iota
	EventNewHead
	EventNewFinalized
	EventIngested
	EventInvalidate
)

func (k EventKind) String() string {
	switch k {
	case EventInitialize:
		return "initialize"
	case EventNewHead:
		return "new_head"
	case EventNewFinalized:
		return "new_finalized"
	case EventIngested:
		return "ingested"
	case EventInvalidate:
		return "invalidate"
	default:
		return "unknown"
	}
}

// IngestedEvent carries the written block's cursor and the object-store
// key it landed at (prefix, filename), per spec.md 4.F.
type IngestedEvent struct {
	Cursor   chainmodel.Cursor
	Prefix   string
	Filename string
}

// InvalidateEvent lists the cursors a reorg has removed from the
// canonical chain, newest first down to (but not including) the common
// ancestor.
type InvalidateEvent struct {
	RemovedCursors []chainmodel.Cursor
}

// Event is the single notification type the engine publishes on its
// event channel. Only the field matching Kind is populated.
type Event struct {
	Kind       EventKind
	Head       chainmodel.Cursor
	Finalized  chainmodel.Cursor
	Ingested   *IngestedEvent
	Invalidate *InvalidateEvent
}
