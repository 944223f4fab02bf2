package compaction

import (
	"dnaindex/internal/chainmodel"
	"dnaindex/internal/fragment"
)

// segmentAccumulator holds the rolling per-fragment row builders for the
// segment currently being assembled, plus the cursors already folded
// into it, in order. Segments are built incrementally, one Ingested
// event at a time, and flushed once len(pending) reaches SegmentSize
// (spec.md 4.G), grounded on
// original_source/common/src/ingestion/segmenter.rs's
// block_count/segment_builder fields.
//
// header merges flat across blocks (one row per block, always present,
// so row position already equals block offset). Every other fragment
// kind the chain family can produce is wrapped under
// fragment.SegmentSlotSchema instead: one slot per pending block holding
// that block's own nested rows, or nothing. A flat merge would lose the
// block boundary once row counts per block vary (a block with zero
// transactions can't simply be skipped, or every later block's position
// shifts), so the slot wrapping is what lets the scanner recover "all of
// block N's rows for fragment F" by position alone, mirroring
// original_source/dna/evm/src/server/filter.rs's
// "block_segment.transactions.blocks().get(relative_index)" structure.
type segmentAccumulator struct {
	family  chainmodel.ChainFamily
	header  *fragment.RowSetBuilder
	slots   map[chainmodel.FragmentID]*fragment.RowSetBuilder
	pending []chainmodel.Cursor
}

// newSegmentAccumulator creates the slot builders for every fragment kind
// family can ever produce, up front, so no pending block is ever missing
// a slot for a kind that only shows up later in the segment.
func newSegmentAccumulator(family chainmodel.ChainFamily) *segmentAccumulator {
	acc := &segmentAccumulator{
		family: family,
		header: fragment.NewRowSetBuilder(fragment.HeaderSchema),
		slots:  make(map[chainmodel.FragmentID]*fragment.RowSetBuilder),
	}
	for _, f := range family.Fragments() {
		if f == chainmodel.FragmentHeader || f == chainmodel.FragmentIndex || f == chainmodel.FragmentJoin {
			continue
		}
		acc.slots[f] = fragment.NewRowSetBuilder(fragment.SegmentSlotSchema)
	}
	return acc
}

func (a *segmentAccumulator) blockCount() uint64 { return uint64(len(a.pending)) }

// firstCursor returns the cursor of the first block folded into this
// accumulator, i.e. the segment's own first_block_number/first_block_hash.
func (a *segmentAccumulator) firstCursor() (chainmodel.Cursor, bool) {
	if len(a.pending) == 0 {
		return chainmodel.Cursor{}, false
	}
	return a.pending[0], true
}
