package compaction

import (
	"context"
	"encoding/binary"
	"testing"

	"dnaindex/internal/blockstore"
	"dnaindex/internal/chainmodel"
	"dnaindex/internal/chainview"
	"dnaindex/internal/fragment"
	"dnaindex/internal/ingestion"
	"dnaindex/internal/objectstore"
	"dnaindex/internal/snapshot"
)

func blockHash(n uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], n)
	return b[:]
}

// blockBody builds a minimal per-block file carrying only a header row,
// enough to exercise the segmenter's boundary bookkeeping without
// needing a full transaction/receipt/event fixture.
func blockBody(n uint64) []byte {
	hash := blockHash(n)
	var parent []byte
	if n > 0 {
		parent = blockHash(n - 1)
	}
	hdr := fragment.NewRowSetBuilder(fragment.HeaderSchema)
	fragment.BuildHeaderRow(hdr, fragment.HeaderFields{
		Number:     n,
		Hash:       hash,
		ParentHash: parent,
		Timestamp:  1000 + n,
	})
	return fragment.BuildBlockFile(n, hash, map[string][]byte{"header": hdr.Finish(n, hash)})
}

// blockBodyWithTxCount is blockBody plus txCount synthetic transactions,
// used to exercise the segment-level slot wrapping that keeps a variable
// per-block transaction count from breaking block alignment.
func blockBodyWithTxCount(n uint64, txCount int) []byte {
	hash := blockHash(n)
	var parent []byte
	if n > 0 {
		parent = blockHash(n - 1)
	}
	hdr := fragment.NewRowSetBuilder(fragment.HeaderSchema)
	fragment.BuildHeaderRow(hdr, fragment.HeaderFields{
		Number:     n,
		Hash:       hash,
		ParentHash: parent,
		Timestamp:  1000 + n,
	})
	fragments := map[string][]byte{"header": hdr.Finish(n, hash)}
	if txCount > 0 {
		txs := fragment.NewRowSetBuilder(fragment.TransactionSchema)
		for i := 0; i < txCount; i++ {
			fragment.BuildTransactionRow(txs, fragment.TransactionFields{
				Hash:             []byte{byte(n), byte(i)},
				TransactionIndex: uint32(i),
				From:             []byte{0xaa, byte(n)},
			})
		}
		fragments["transaction"] = txs.Finish(n, hash)
	}
	return fragment.BuildBlockFile(n, hash, fragments)
}

// TestCompactorSegmentsAndGroupsAcrossThreeHundredBlocks drives 300
// Ingested events through a Compactor with SegmentSize=100, GroupSize=3
// and checks it produces exactly the three segments and one group
// spec.md 4.G's geometry implies, with a monotonically advancing
// snapshot revision.
func TestCompactorSegmentsAndGroupsAcrossThreeHundredBlocks(t *testing.T) {
	opts := chainmodel.SegmentOptions{StartingBlock: 0, SegmentSize: 100, GroupSize: 3}
	client := objectstore.New(newMemRaw(), "test-bucket", nil)
	store := blockstore.New(client, blockstore.Options{})
	view := chainview.New(opts, 0, 512)
	snaps := snapshot.New(client)
	bus := snapshot.NewBus()

	c := New(view, store, snaps, bus, Options{SegmentOptions: opts, ChainFamily: chainmodel.ChainFamilyEthereum})
	ctx := context.Background()

	genesis := chainmodel.NewCursor(0, blockHash(0))
	if err := c.handle(ctx, ingestion.Event{Kind: ingestion.EventInitialize, Head: genesis, Finalized: genesis}); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	var lastRevision uint64
	for n := uint64(0); n < 300; n++ {
		cur := chainmodel.NewCursor(n, blockHash(n))
		if _, err := store.PutBlock(ctx, cur, blockBody(n)); err != nil {
			t.Fatalf("put block %d: %v", n, err)
		}
		view.RefreshRecent(cur, map[uint64][]byte{n: blockHash(n)})

		if err := c.handle(ctx, ingestion.Event{Kind: ingestion.EventNewFinalized, Finalized: cur}); err != nil {
			t.Fatalf("new_finalized %d: %v", n, err)
		}
		if err := c.handle(ctx, ingestion.Event{Kind: ingestion.EventIngested, Ingested: &ingestion.IngestedEvent{Cursor: cur}}); err != nil {
			t.Fatalf("ingested %d: %v", n, err)
		}
		if c.snap.Revision < lastRevision {
			t.Fatalf("snapshot revision went backward at block %d: %d -> %d", n, lastRevision, c.snap.Revision)
		}
		lastRevision = c.snap.Revision
	}

	if c.snap.Segmented == nil || *c.snap.Segmented != 299 {
		t.Fatalf("expected segmented=299, got %v", c.snap.Segmented)
	}
	if c.snap.Grouped == nil || *c.snap.Grouped != 299 {
		t.Fatalf("expected grouped=299, got %v", c.snap.Grouped)
	}
	if c.snap.Revision != 4 {
		t.Fatalf("expected revision=4 (one bump per of the 3 segment flushes, plus one more for the group flush that lands on the 3rd), got %d", c.snap.Revision)
	}

	for _, first := range []uint64{0, 100, 200} {
		if _, err := store.GetSegment(ctx, first, "header"); err != nil {
			t.Fatalf("segment %d header fragment missing: %v", first, err)
		}
	}
	if _, err := store.GetGroup(ctx, 0); err != nil {
		t.Fatalf("group 0 missing: %v", err)
	}

	persisted, _, found, err := snaps.Read(ctx)
	if err != nil || !found {
		t.Fatalf("read persisted snapshot: found=%v err=%v", found, err)
	}
	if persisted.Revision != c.snap.Revision {
		t.Fatalf("persisted revision %d does not match in-memory %d", persisted.Revision, c.snap.Revision)
	}
}

// TestCompactorWritesNothingBeforeFinalized checks that an in-progress
// segment sits buffered until the finalized cursor catches up to its
// last block, per do_write_segment_if_needed's "current <= finalized"
// gate.
func TestCompactorWritesNothingBeforeFinalized(t *testing.T) {
	opts := chainmodel.SegmentOptions{StartingBlock: 0, SegmentSize: 10, GroupSize: 2}
	client := objectstore.New(newMemRaw(), "test-bucket", nil)
	store := blockstore.New(client, blockstore.Options{})
	view := chainview.New(opts, 0, 512)
	snaps := snapshot.New(client)
	bus := snapshot.NewBus()

	c := New(view, store, snaps, bus, Options{SegmentOptions: opts, ChainFamily: chainmodel.ChainFamilyEthereum})
	ctx := context.Background()

	genesis := chainmodel.NewCursor(0, blockHash(0))
	if err := c.handle(ctx, ingestion.Event{Kind: ingestion.EventInitialize, Head: genesis, Finalized: genesis}); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	for n := uint64(0); n < 10; n++ {
		cur := chainmodel.NewCursor(n, blockHash(n))
		if _, err := store.PutBlock(ctx, cur, blockBody(n)); err != nil {
			t.Fatalf("put block %d: %v", n, err)
		}
		view.RefreshRecent(cur, map[uint64][]byte{n: blockHash(n)})
		if err := c.handle(ctx, ingestion.Event{Kind: ingestion.EventIngested, Ingested: &ingestion.IngestedEvent{Cursor: cur}}); err != nil {
			t.Fatalf("ingested %d: %v", n, err)
		}
	}

	if c.snap.Segmented != nil {
		t.Fatalf("expected no segment written while finalized lags current, got segmented=%v", c.snap.Segmented)
	}
	if _, err := store.GetSegment(ctx, 0, "header"); err == nil {
		t.Fatal("expected segment 0 to not exist yet")
	}

	if err := c.handle(ctx, ingestion.Event{Kind: ingestion.EventNewFinalized, Finalized: chainmodel.NewCursor(9, blockHash(9))}); err != nil {
		t.Fatalf("new_finalized: %v", err)
	}
	if c.snap.Segmented == nil || *c.snap.Segmented != 9 {
		t.Fatalf("expected segmented=9 once finalized caught up, got %v", c.snap.Segmented)
	}
}

// TestCompactorSegmentSlotsPreserveBlockBoundaries checks that a
// variable transaction count per block doesn't scramble which rows
// belong to which block once the segment is flushed: block n's slot
// must hold exactly n transactions.
func TestCompactorSegmentSlotsPreserveBlockBoundaries(t *testing.T) {
	opts := chainmodel.SegmentOptions{StartingBlock: 0, SegmentSize: 5, GroupSize: 1}
	client := objectstore.New(newMemRaw(), "test-bucket", nil)
	store := blockstore.New(client, blockstore.Options{})
	view := chainview.New(opts, 0, 512)
	snaps := snapshot.New(client)
	bus := snapshot.NewBus()

	c := New(view, store, snaps, bus, Options{SegmentOptions: opts, ChainFamily: chainmodel.ChainFamilyEthereum})
	ctx := context.Background()

	genesis := chainmodel.NewCursor(0, blockHash(0))
	if err := c.handle(ctx, ingestion.Event{Kind: ingestion.EventInitialize, Head: genesis, Finalized: genesis}); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	for n := uint64(0); n < 5; n++ {
		cur := chainmodel.NewCursor(n, blockHash(n))
		if _, err := store.PutBlock(ctx, cur, blockBodyWithTxCount(n, int(n))); err != nil {
			t.Fatalf("put block %d: %v", n, err)
		}
		view.RefreshRecent(cur, map[uint64][]byte{n: blockHash(n)})
		if err := c.handle(ctx, ingestion.Event{Kind: ingestion.EventNewFinalized, Finalized: cur}); err != nil {
			t.Fatalf("new_finalized %d: %v", n, err)
		}
		if err := c.handle(ctx, ingestion.Event{Kind: ingestion.EventIngested, Ingested: &ingestion.IngestedEvent{Cursor: cur}}); err != nil {
			t.Fatalf("ingested %d: %v", n, err)
		}
	}

	raw, err := store.GetSegment(ctx, 0, "transaction")
	if err != nil {
		t.Fatalf("get transaction segment: %v", err)
	}
	slots := fragment.OpenSegmentSlotRowSet(raw)
	if slots.Len() != 5 {
		t.Fatalf("expected 5 block slots, got %d", slots.Len())
	}
	for n := 0; n < 5; n++ {
		data := slots.SegmentSlotData(uint32(n))
		got := 0
		if data != nil {
			got = fragment.OpenTransactionRowSet(data).Len()
		}
		if got != n {
			t.Fatalf("block %d: expected %d transactions, got %d", n, n, got)
		}
	}
}
