package compaction

import (
	"context"
	"fmt"

	"dnaindex/internal/bitmapindex"
	"dnaindex/internal/chainmodel"
	"dnaindex/internal/ingestion"
)

// maxBlockNumber bounds roaring.Bitmap.RemoveRange's upper edge: bitmap
// elements are block numbers truncated to uint32 (see
// internal/bitmapindex's domain note), so clearing "everything after n"
// means clearing up to the full uint32 range.
const maxBlockNumber = uint64(1) << 32

// handleInvalidate implements the Open Question resolution recorded in
// DESIGN.md: a reorg's common ancestor can fall either inside the
// in-progress (unwritten) segment accumulator, or — in the rarer case of
// a reorg deep enough to reach a segment already flushed to the object
// store — inside the most recently written segment. Either way nothing
// already grouped is ever touched: invariant 3/4 (HasSegmentFor/
// HasGroupFor) only promise durability up to the segmented/grouped
// marks, and the finalized-cursor contract this pipeline relies on means
// a reorg reaching behind a grouped boundary indicates a bug upstream,
// not a case to silently paper over.
func (c *Compactor) handleInvalidate(ctx context.Context, ev ingestion.Event) error {
	removed := ev.Invalidate.RemovedCursors
	if len(removed) == 0 {
		return nil
	}
	ancestor := removed[0].Number()
	for _, rc := range removed[1:] {
		if rc.Number() < ancestor {
			ancestor = rc.Number()
		}
	}
	ancestor--

	if c.snap.Grouped != nil && ancestor < *c.snap.Grouped {
		return fmt.Errorf("compaction: reorg ancestor %d reaches behind grouped mark %d: finalized-cursor accounting bug", ancestor, *c.snap.Grouped)
	}

	if c.snap.Segmented != nil && ancestor < *c.snap.Segmented {
		lastSegmentFirst := c.opts.SegmentStartBlock(*c.snap.Segmented)
		if ancestor+1 < lastSegmentFirst {
			return fmt.Errorf("compaction: reorg ancestor %d reaches more than one segment behind %d: finalized-cursor accounting bug", ancestor, *c.snap.Segmented)
		}
		if err := c.rewriteSegment(ctx, lastSegmentFirst, ancestor); err != nil {
			return err
		}
	}

	for _, rc := range removed {
		if err := c.store.DeleteBlock(ctx, rc); err != nil {
			return fmt.Errorf("compaction: drop invalidated block %s: %w", rc, err)
		}
	}

	pruneIndexGroupAfter(c.group, ancestor)

	keep := c.acc.pending[:0:0]
	for _, pc := range c.acc.pending {
		if pc.Number() <= ancestor {
			keep = append(keep, pc)
		}
	}
	c.acc = newSegmentAccumulator(c.family)
	for _, pc := range keep {
		body, err := c.store.GetBlock(ctx, pc)
		if err != nil {
			return fmt.Errorf("compaction: replay retained block %s: %w", pc, err)
		}
		absorbBlock(c.acc, c.group, pc.Number(), body)
		c.acc.pending = append(c.acc.pending, pc)
	}

	if len(keep) > 0 {
		c.current = keep[len(keep)-1]
	} else if hash, ok := c.view.GetCanonical(ancestor); ok {
		c.current = chainmodel.NewCursor(ancestor, hash)
	}
	c.haveCurrent = true

	c.snap.Revision++
	return c.persistSnapshot(ctx)
}

// rewriteSegment supersedes the most recently written segment's fragment
// files, keeping only the valid prefix [segmentFirst, validThrough] and
// dropping the rest. It replays those blocks from the chain view's
// recent-canonical window and the block store rather than trying to
// patch an already-finished flatbuffers encoding in place.
func (c *Compactor) rewriteSegment(ctx context.Context, segmentFirst, validThrough uint64) error {
	acc := newSegmentAccumulator(c.family)
	group := bitmapindex.NewIndexGroup(0) // discarded; only the row builders matter here

	var firstHash []byte
	for n := segmentFirst; n <= validThrough; n++ {
		hash, ok := c.view.GetCanonical(n)
		if !ok {
			return fmt.Errorf("compaction: cannot rewind segment %d: block %d fell outside the retained canonical window", segmentFirst, n)
		}
		if n == segmentFirst {
			firstHash = hash
		}
		cur := chainmodel.NewCursor(n, hash)
		body, err := c.store.GetBlock(ctx, cur)
		if err != nil {
			return fmt.Errorf("compaction: rewind fetch block %s: %w", cur, err)
		}
		absorbBlock(acc, group, n, body)
		acc.pending = append(acc.pending, cur)
	}

	headerBody := acc.header.Finish(segmentFirst, firstHash)
	if _, err := c.store.PutSegmentOverwrite(ctx, segmentFirst, chainmodel.FragmentHeader.Name(), headerBody); err != nil {
		return fmt.Errorf("compaction: overwrite segment fragment %s at %d: %w", chainmodel.FragmentHeader.Name(), segmentFirst, err)
	}
	for f, b := range acc.slots {
		body := b.Finish(segmentFirst, firstHash)
		if _, err := c.store.PutSegmentOverwrite(ctx, segmentFirst, f.Name(), body); err != nil {
			return fmt.Errorf("compaction: overwrite segment fragment %s at %d: %w", f.Name(), segmentFirst, err)
		}
	}
	return nil
}

// pruneIndexGroupAfter clears every bitmap entry referencing a block
// number past ancestor from the in-progress group, covering range
// bitmaps, every attribute index and every join index in one pass.
func pruneIndexGroupAfter(g *bitmapindex.IndexGroup, ancestor uint64) {
	cutoff := uint64(ancestor) + 1
	for _, bm := range g.Ranges {
		bm.RemoveRange(cutoff, maxBlockNumber)
	}
	for _, byName := range g.AddressIndexes {
		for _, idx := range byName {
			for _, key := range idx.Keys() {
				idx.GetBitmap(key).RemoveRange(cutoff, maxBlockNumber)
			}
		}
	}
	for _, idx := range g.JoinIndexes {
		for _, key := range idx.Keys() {
			idx.GetBitmap(key).RemoveRange(cutoff, maxBlockNumber)
		}
	}
}
