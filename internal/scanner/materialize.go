package scanner

import (
	"context"
	"fmt"

	"dnaindex/internal/bitmapindex"
	"dnaindex/internal/blockstore"
	"dnaindex/internal/chainmodel"
	"dnaindex/internal/fragment"
)

// ScanGroup loads and decodes the group index file rooted at groupFirst
// and runs the scan algorithm (scan.go) against it in group mode
// (is_group=true), returning the block-granularity MatchSet the stream
// producer's SegmentGroup handling iterates (spec.md 4.J).
func ScanGroup(ctx context.Context, store *blockstore.Store, groupFirst uint64, f Filter) (MatchSet, error) {
	raw, err := store.GetGroup(ctx, groupFirst)
	if err != nil {
		return nil, newErr(KindLoad, fmt.Sprintf("load group %d", groupFirst), err)
	}
	group, err := bitmapindex.DecodeIndexGroup(raw)
	if err != nil {
		return nil, newErr(KindDecode, fmt.Sprintf("decode group %d", groupFirst), err)
	}
	return Scan(group, f, true)
}

func loadSegmentBlockData(ctx context.Context, store *blockstore.Store, opts chainmodel.SegmentOptions, segmentFirst, blockNumber uint64, required []chainmodel.FragmentID) (BlockData, error) {
	if blockNumber < segmentFirst || blockNumber > opts.SegmentEndBlock(segmentFirst) {
		return BlockData{}, newErr(KindRange, fmt.Sprintf("block %d outside segment %d", blockNumber, segmentFirst), nil)
	}
	relative := uint32(blockNumber - segmentFirst)

	headerRaw, err := store.GetSegment(ctx, segmentFirst, chainmodel.FragmentHeader.Name())
	if err != nil {
		return BlockData{}, newErr(KindLoad, fmt.Sprintf("load header segment %d", segmentFirst), err)
	}
	header := fragment.OpenHeaderRowSet(headerRaw)

	slots := make(map[chainmodel.FragmentID]*fragment.RowSet)
	for _, fid := range required {
		if fid == chainmodel.FragmentHeader || fid == chainmodel.FragmentIndex || fid == chainmodel.FragmentJoin {
			continue
		}
		raw, err := store.GetSegment(ctx, segmentFirst, fid.Name())
		if err != nil {
			return BlockData{}, newErr(KindLoad, fmt.Sprintf("load %s segment %d", fid.Name(), segmentFirst), err)
		}
		slots[fid] = fragment.OpenSegmentSlotRowSet(raw)
	}

	return BlockDataFromSegmentSlots(relative, header, slots), nil
}

// FilterSegmentBlockMatches loads block blockNumber out of the segment
// starting at segmentFirst and runs FilterBlock against it, the
// segment-backed twin of filter.rs's filter_segment_block_data — used for
// both the SegmentGroup path (after ScanGroup narrows candidate blocks)
// and the Segment path (streamer.Producer iterates every block in the
// segment directly, spec.md 4.J).
func FilterSegmentBlockMatches(ctx context.Context, store *blockstore.Store, opts chainmodel.SegmentOptions, segmentFirst, blockNumber uint64, f Filter) (*Block, *DataBag, error) {
	bd, err := loadSegmentBlockData(ctx, store, opts, segmentFirst, blockNumber, f.RequiredFragments())
	if err != nil {
		return nil, nil, err
	}
	block, bag := FilterBlock(bd, f)
	return block, bag, nil
}

// FilterSingleBlock materializes matches for one still-unsegmented block
// straight out of its per-block file, mirroring filter.rs's
// filter_single_block_data — the path the cursor producer's Block(cursor)
// transition and an in-flight (not yet finalized) tip block both need.
func FilterSingleBlock(ctx context.Context, store *blockstore.Store, c chainmodel.Cursor, f Filter) (*Block, *DataBag, error) {
	raw, err := store.GetBlock(ctx, c)
	if err != nil {
		return nil, nil, newErr(KindLoad, fmt.Sprintf("load block %s", c), err)
	}
	bd := BlockDataFromBlockFile(c.Number(), c.UniqueKey, raw)
	block, bag := FilterBlock(bd, f)
	return block, bag, nil
}
