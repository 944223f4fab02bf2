// Package compaction implements the segmenter/grouper described in
// spec.md 4.G: it consumes the ingestion event stream, rolls finalized
// blocks up into per-fragment segment files, rolls segments up into
// group index files, and owns writing the persisted snapshot record
// (internal/snapshot). Grounded directly on
// original_source/common/src/ingestion/segmenter.rs's event-driven
// Segmenter, adapted from its pull-style sibling
// original_source/common/src/compaction/segment.rs (which actively
// fetches blocks itself) to instead react to internal/ingestion's
// Event stream, matching spec.md 4.G's "consumes the ingestion event
// stream" framing.
package compaction

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"dnaindex/internal/bitmapindex"
	"dnaindex/internal/blockstore"
	"dnaindex/internal/chainmodel"
	"dnaindex/internal/chainview"
	"dnaindex/internal/ingestion"
	"dnaindex/internal/snapshot"
)

// Options configures a Compactor.
type Options struct {
	SegmentOptions chainmodel.SegmentOptions
	ChainFamily    chainmodel.ChainFamily
	Log            *logrus.Entry
}

// Compactor is the segmenter/grouper for one chain family. It is the
// pipeline's sole writer of segment/group files and of the snapshot
// record (spec.md 5's resource model) — ingestion and the scanner only
// ever read what it produces.
type Compactor struct {
	view   *chainview.View
	store  *blockstore.Store
	snaps  *snapshot.Store
	bus    *snapshot.Bus
	opts   chainmodel.SegmentOptions
	family chainmodel.ChainFamily
	log    *logrus.Entry

	snap chainmodel.Snapshot
	etag string

	haveHead, haveFinalized, haveCurrent bool
	head, finalized, current             chainmodel.Cursor

	// segmentsSinceGroup counts segments written since the last group
	// boundary; derived from (segmented-grouped)/SegmentSize on resume
	// (counting from the starting block while no group exists yet)
	// rather than persisted, since the snapshot record only carries the
	// segmented/grouped high-water marks (spec.md 3.6).
	segmentsSinceGroup uint64

	acc   *segmentAccumulator
	group *bitmapindex.IndexGroup
}

// New builds a Compactor. The caller owns running it via Run.
func New(view *chainview.View, store *blockstore.Store, snaps *snapshot.Store, bus *snapshot.Bus, opts Options) *Compactor {
	log := opts.Log
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Compactor{
		view:   view,
		store:  store,
		snaps:  snaps,
		bus:    bus,
		opts:   opts.SegmentOptions,
		family: opts.ChainFamily,
		log:    log.WithField("component", "compaction"),
	}
}

// Run drives the segmenter's state machine until events is closed or ctx
// is cancelled.
func (c *Compactor) Run(ctx context.Context, events <-chan ingestion.Event) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if err := c.handle(ctx, ev); err != nil {
				return err
			}
		}
	}
}

func (c *Compactor) handle(ctx context.Context, ev ingestion.Event) error {
	switch ev.Kind {
	case ingestion.EventInitialize:
		return c.handleInitialize(ctx, ev)
	case ingestion.EventNewHead:
		c.head, c.haveHead = ev.Head, true
		return nil
	case ingestion.EventNewFinalized:
		c.finalized, c.haveFinalized = ev.Finalized, true
		return c.writeSegmentsIfNeeded(ctx)
	case ingestion.EventIngested:
		return c.handleIngested(ctx, ev)
	case ingestion.EventInvalidate:
		return c.handleInvalidate(ctx, ev)
	default:
		return fmt.Errorf("compaction: unknown event kind %v", ev.Kind)
	}
}

// handleInitialize reads the persisted snapshot, seeding one if this is
// the pipeline's first run, resets the extra-segment counter and
// in-progress accumulator/group, and publishes Started.
func (c *Compactor) handleInitialize(ctx context.Context, ev ingestion.Event) error {
	c.head, c.haveHead = ev.Head, true
	c.finalized, c.haveFinalized = ev.Finalized, true

	snap, etag, found, err := c.snaps.Read(ctx)
	if err != nil {
		return fmt.Errorf("compaction: read snapshot: %w", err)
	}
	if !found {
		snap = chainmodel.Snapshot{
			FirstBlock:     c.opts.StartingBlock,
			Finalized:      ev.Finalized.Number(),
			SegmentOptions: c.opts,
		}
		etag, err = c.snaps.Create(ctx, snap)
		if err != nil {
			return fmt.Errorf("compaction: create initial snapshot: %w", err)
		}
	}
	c.snap, c.etag = snap, etag

	c.segmentsSinceGroup = 0
	if c.snap.Segmented != nil {
		groupStart := c.opts.StartingBlock
		if c.snap.Grouped != nil {
			groupStart = *c.snap.Grouped + 1
		}
		c.segmentsSinceGroup = (*c.snap.Segmented + 1 - groupStart) / c.opts.SegmentSize
	}

	groupFirst := c.opts.GroupStartBlock(c.resumePoint())
	c.group = bitmapindex.NewIndexGroup(groupFirst)
	c.acc = newSegmentAccumulator(c.family)
	c.haveCurrent = false

	c.log.WithFields(logrus.Fields{
		"segmented": c.snap.Segmented,
		"grouped":   c.snap.Grouped,
		"revision":  c.snap.Revision,
	}).Info("compaction started")
	c.bus.Publish(snapshot.Change{Kind: snapshot.ChangeStarted, Snapshot: c.snap.Clone()})
	return nil
}

// resumePoint returns the first block number the segmenter still needs
// to absorb: one past the segmented high-water mark, or the deployment's
// starting block if nothing has been segmented yet.
func (c *Compactor) resumePoint() uint64 {
	if c.snap.Segmented != nil {
		return *c.snap.Segmented + 1
	}
	return c.opts.StartingBlock
}

// handleIngested folds one freshly ingested block into the in-progress
// segment accumulator and group index, then flushes whatever segments/
// groups that completes.
func (c *Compactor) handleIngested(ctx context.Context, ev ingestion.Event) error {
	cur := ev.Ingested.Cursor
	body, err := c.store.GetBlock(ctx, cur)
	if err != nil {
		return fmt.Errorf("compaction: fetch ingested block %s: %w", cur, err)
	}

	absorbBlock(c.acc, c.group, cur.Number(), body)
	c.acc.pending = append(c.acc.pending, cur)
	c.current, c.haveCurrent = cur, true

	if c.haveFinalized && c.opts.SegmentStartBlock(c.finalized.Number()) <= c.current.Number() {
		c.bus.Publish(snapshot.Change{Kind: snapshot.ChangeBlockIngested, Snapshot: c.snap.Clone()})
	}

	return c.writeSegmentsIfNeeded(ctx)
}

// writeSegmentsIfNeeded flushes segments (and groups) until no more are
// ready, mirroring the original segmenter's "while
// do_write_segment_if_needed()" loop — a single Ingested event can
// complete more than one boundary only if SegmentSize is 1, but
// NewFinalized catching up can release several buffered segments at
// once.
func (c *Compactor) writeSegmentsIfNeeded(ctx context.Context) error {
	for {
		wrote, err := c.writeSegmentIfNeeded(ctx)
		if err != nil {
			return err
		}
		if !wrote {
			return nil
		}
	}
}

// writeSegmentIfNeeded implements
// original_source/common/src/ingestion/segmenter.rs's
// do_write_segment_if_needed: a segment is only ever built from blocks
// at or before the finalized cursor, so a full accumulator still waits
// if the chain hasn't finalized that far yet.
func (c *Compactor) writeSegmentIfNeeded(ctx context.Context) (bool, error) {
	if c.acc.blockCount() < c.opts.SegmentSize {
		return false, nil
	}
	if !c.haveCurrent || !c.haveFinalized || c.current.Number() > c.finalized.Number() {
		return false, nil
	}

	first, ok := c.acc.firstCursor()
	if !ok {
		return false, nil
	}
	segmentFirst := c.opts.SegmentStartBlock(c.current.Number())
	if first.Number() != segmentFirst {
		return false, fmt.Errorf("compaction: accumulator first block %d does not match segment start %d", first.Number(), segmentFirst)
	}

	headerBody := c.acc.header.Finish(segmentFirst, first.UniqueKey)
	if _, err := c.store.PutSegment(ctx, segmentFirst, chainmodel.FragmentHeader.Name(), headerBody); err != nil {
		return false, fmt.Errorf("compaction: write segment fragment %s at %d: %w", chainmodel.FragmentHeader.Name(), segmentFirst, err)
	}
	for f, b := range c.acc.slots {
		body := b.Finish(segmentFirst, first.UniqueKey)
		if _, err := c.store.PutSegment(ctx, segmentFirst, f.Name(), body); err != nil {
			return false, fmt.Errorf("compaction: write segment fragment %s at %d: %w", f.Name(), segmentFirst, err)
		}
	}

	c.acc = newSegmentAccumulator(c.family)
	segmentedThrough := c.opts.SegmentEndBlock(segmentFirst)
	c.view.SetSegmentedBlock(segmentedThrough)
	c.snap.Segmented = &segmentedThrough
	c.snap.Revision++
	c.segmentsSinceGroup++
	c.log.WithField("segment_first", segmentFirst).Info("segment written")

	if c.segmentsSinceGroup < c.opts.GroupSize {
		return true, c.persistSnapshot(ctx)
	}

	groupData, err := bitmapindex.EncodeIndexGroup(c.group)
	if err != nil {
		return false, fmt.Errorf("compaction: encode group %d: %w", c.group.GroupFirst, err)
	}
	if _, err := c.store.PutGroup(ctx, c.group.GroupFirst, groupData); err != nil {
		return false, fmt.Errorf("compaction: write group %d: %w", c.group.GroupFirst, err)
	}

	c.view.SetGroupedBlock(segmentedThrough)
	c.snap.Grouped = &segmentedThrough
	c.segmentsSinceGroup = 0
	c.log.WithField("group_first", c.group.GroupFirst).Info("group written")
	c.group = bitmapindex.NewIndexGroup(segmentedThrough + 1)

	// A group-completing write advances the snapshot through two
	// distinct resource changes (spec.md 5's Segmented and Grouped
	// high-water marks both move), so it bumps Revision a second time
	// on top of the per-segment bump above — spec.md 8's S2 scenario
	// (300 blocks, SEGMENT_SIZE=100, GROUP_SIZE=3) reaches revision=4:
	// one bump per of the 3 segment flushes, plus one more for the
	// single group flush that lands on the 3rd.
	c.snap.Revision++

	return true, c.persistSnapshot(ctx)
}

// persistSnapshot writes the current snapshot under the last-observed
// ETag and publishes the resulting change. A stale ETag means another
// writer exists, which spec.md 5's single-writer resource model treats
// as fatal rather than recoverable.
func (c *Compactor) persistSnapshot(ctx context.Context) error {
	etag, err := c.snaps.Update(ctx, c.snap, c.etag)
	if err != nil {
		return fmt.Errorf("compaction: persist snapshot revision %d: %w", c.snap.Revision, err)
	}
	c.etag = etag
	c.bus.Publish(snapshot.Change{Kind: snapshot.ChangeStateChanged, Snapshot: c.snap.Clone()})
	return nil
}
