package compaction

import (
	"context"
	"fmt"

	"dnaindex/internal/bitmapindex"
	"dnaindex/internal/blockstore"
	"dnaindex/internal/chainmodel"
	"dnaindex/internal/fragment"
)

// ReplayGroup rebuilds the bitmap index group for [groupFirst,
// opts.GroupEndBlock(groupFirst)] from already-written segment/block
// data, for cmd/dnaindex's offline "create-group" debug command: the
// case where segments were written but the process crashed (or was
// killed) before the group boundary flush in writeSegmentIfNeeded ever
// ran. It replays each block through the same absorbBlock path
// handleIngested uses, just driven by segment header data (for the
// block's hash) instead of a live ingestion event.
func ReplayGroup(ctx context.Context, store *blockstore.Store, family chainmodel.ChainFamily, groupFirst uint64, opts chainmodel.SegmentOptions) (*bitmapindex.IndexGroup, error) {
	group := bitmapindex.NewIndexGroup(groupFirst)
	acc := newSegmentAccumulator(family)

	groupEnd := opts.GroupEndBlock(groupFirst)
	for segmentFirst := groupFirst; segmentFirst <= groupEnd; segmentFirst += opts.SegmentSize {
		headerRaw, err := store.GetSegment(ctx, segmentFirst, chainmodel.FragmentHeader.Name())
		if err != nil {
			return nil, fmt.Errorf("compaction: replay: load header segment %d: %w", segmentFirst, err)
		}
		header := fragment.OpenHeaderRowSet(headerRaw)
		for i := 0; i < header.Len(); i++ {
			row := header.AsHeader(uint32(i))
			number := row.Number()
			hash := row.Hash()
			c := chainmodel.NewCursor(number, hash)
			blockBody, err := store.GetBlock(ctx, c)
			if err != nil {
				return nil, fmt.Errorf("compaction: replay: load block %s: %w", c, err)
			}
			absorbBlock(acc, group, number, blockBody)
		}
	}
	return group, nil
}
