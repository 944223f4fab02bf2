// Package cursor implements the per-client cursor producer described in
// spec.md 4.I: a pure state machine over the shared internal/chainview
// that tells the stream producer (internal/streamer) what to do next —
// wait, replay a whole group or segment, replay one block, or report an
// invalidation.
package cursor

import (
	"dnaindex/internal/chainmodel"
	"dnaindex/internal/chainview"
)

// Kind is the NextBlock variant spec.md 4.I names.
type Kind int

const (
	NotReady Kind = iota
	HeadReached
	SegmentGroup
	Segment
	Block
	Invalidate
)

func (k Kind) String() string {
	switch k {
	case NotReady:
		return "not_ready"
	case HeadReached:
		return "head_reached"
	case SegmentGroup:
		return "segment_group"
	case Segment:
		return "segment"
	case Block:
		return "block"
	case Invalidate:
		return "invalidate"
	default:
		return "unknown"
	}
}

// NextBlock is the cursor producer's output (spec.md 4.I).
// SegmentGroup/Segment carry the first block number of the group/segment
// to replay; Block carries the exact cursor to replay.
type NextBlock struct {
	Kind         Kind
	GroupFirst   uint64
	SegmentFirst uint64
	Opts         chainmodel.SegmentOptions
	Cursor       chainmodel.Cursor
}

// Producer evaluates the spec.md 4.I transition rules against one chain
// view. It holds no per-client state of its own — the client's current
// cursor is threaded through Next's argument and return value — so one
// Producer can be shared across every client of a deployment.
type Producer struct {
	view *chainview.View
	opts chainmodel.SegmentOptions
}

// New builds a cursor producer over view with the deployment's fixed
// segment geometry.
func New(view *chainview.View, opts chainmodel.SegmentOptions) *Producer {
	return &Producer{view: view, opts: opts}
}

// Next evaluates rules 1-7 of spec.md 4.I in order against current,
// returning what the caller should do and the cursor it should treat as
// "current" afterward. Every rule but 2 (clamp to starting_block) and 3
// (group replay) leaves current unchanged — spec.md 4.I only calls out
// rule 3's "advance current to group_end+1" explicitly, so advancing past
// a replayed Segment or Block is the stream producer's job once it has
// actually finished emitting it (internal/streamer), not this state
// machine's.
func (p *Producer) Next(current chainmodel.Cursor) (NextBlock, chainmodel.Cursor) {
	// Rule 1: chain view not yet initialized.
	finalized, haveFinalized := p.view.GetFinalizedCursor()
	if !haveFinalized {
		return NextBlock{Kind: NotReady}, current
	}

	// Rule 2: clamp below the deployment's starting block.
	if current.Number() < p.opts.StartingBlock {
		current = chainmodel.NewCursor(p.opts.StartingBlock, nil)
	}

	// Rule 3: a whole, fully-grouped index group is ready to replay.
	if grouped, ok := p.view.GetGroupedCursor(); ok {
		if current.Number() <= grouped.Number() &&
			p.opts.IsGroupAligned(current.Number()) &&
			p.opts.HasGroupFor(current.Number(), grouped.Number()) {
			groupFirst := p.opts.GroupStartBlock(current.Number())
			next := chainmodel.NewCursor(p.opts.GroupEndBlock(groupFirst)+1, nil)
			return NextBlock{Kind: SegmentGroup, GroupFirst: groupFirst, Opts: p.opts}, next
		}
	}

	// Rule 4: a whole segment (not yet grouped, or grouping lagging) is
	// ready to replay.
	if segmented, ok := p.view.GetSegmentedCursor(); ok {
		if current.Number() <= segmented.Number() &&
			p.opts.IsSegmentAligned(current.Number()) &&
			p.opts.HasSegmentFor(current.Number(), segmented.Number()) {
			segmentFirst := p.opts.SegmentStartBlock(current.Number())
			return NextBlock{Kind: Segment, SegmentFirst: segmentFirst, Opts: p.opts}, current
		}
	}

	// Rule 5: current has a known canonical hash — replay it directly.
	if hash, ok := p.view.GetCanonical(current.Number()); ok {
		return NextBlock{Kind: Block, Cursor: chainmodel.NewCursor(current.Number(), hash)}, current
	}

	// Rule 6: nothing past current has been observed yet.
	if head, ok := p.view.GetHead(); ok && current.Number() > head.Number() {
		return NextBlock{Kind: HeadReached}, current
	}

	// Rule 7: current no longer belongs to the canonical chain.
	if !p.view.ValidateCursor(current) {
		return NextBlock{Kind: Invalidate, Cursor: finalized}, current
	}

	// Defensive only: a well-formed view satisfies one of rules 1-7
	// before reaching here (if current is within [starting_block, head]
	// it always has a canonical entry for rule 5, or is caught by rule
	// 6 otherwise). Treated as "nothing to do yet" rather than a panic,
	// since this is a pure query with no invariant to enforce by
	// crashing the caller.
	return NextBlock{Kind: NotReady}, current
}
