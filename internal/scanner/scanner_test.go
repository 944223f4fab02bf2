package scanner

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"testing"

	"dnaindex/internal/bitmapindex"
	"dnaindex/internal/blockstore"
	"dnaindex/internal/chainmodel"
	"dnaindex/internal/fragment"
	"dnaindex/internal/objectstore"
)

func blockHash(n uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], n)
	return b[:]
}

// buildFixtureSegment writes one 3-block segment (segmentFirst=0) where
// block n carries n synthetic transactions, each "from" a distinct
// address, plus the group index a real Compactor would have produced for
// it — enough to exercise ScanGroup's block-granularity narrowing and
// FilterSegmentBlockMatches's row-level re-filter together.
func buildFixtureSegment(t *testing.T, store *blockstore.Store) {
	t.Helper()
	ctx := context.Background()

	header := fragment.NewRowSetBuilder(fragment.HeaderSchema)
	txSlots := fragment.NewRowSetBuilder(fragment.SegmentSlotSchema)
	group := bitmapindex.NewIndexGroup(0)

	for n := uint64(0); n < 3; n++ {
		fragment.BuildHeaderRow(header, fragment.HeaderFields{Number: n, Hash: blockHash(n), Timestamp: 1000 + n})

		if n == 0 {
			fragment.BuildSegmentSlotRow(txSlots, nil)
			continue
		}
		nested := fragment.NewRowSetBuilder(fragment.TransactionSchema)
		for i := uint64(0); i < n; i++ {
			from := []byte{0xaa, byte(n), byte(i)}
			fragment.BuildTransactionRow(nested, fragment.TransactionFields{
				Hash:             []byte{byte(n), byte(i)},
				TransactionIndex: uint32(i),
				From:             from,
			})
			group.Index(chainmodel.FragmentTransaction, "from").Add(hex.EncodeToString(from), uint32(n))
		}
		group.MarkBlockHasFragment(chainmodel.FragmentTransaction, n)
		fragment.BuildSegmentSlotRow(txSlots, nested.Finish(n, blockHash(n)))
	}

	if _, err := store.PutSegment(ctx, 0, "header", header.Finish(0, blockHash(0))); err != nil {
		t.Fatalf("put header segment: %v", err)
	}
	if _, err := store.PutSegment(ctx, 0, "transaction", txSlots.Finish(0, blockHash(0))); err != nil {
		t.Fatalf("put transaction segment: %v", err)
	}

	encoded, err := bitmapindex.EncodeIndexGroup(group)
	if err != nil {
		t.Fatalf("encode group: %v", err)
	}
	if _, err := store.PutGroup(ctx, 0, encoded); err != nil {
		t.Fatalf("put group: %v", err)
	}
}

func TestScanGroupNarrowsToMatchingBlocks(t *testing.T) {
	client := objectstore.New(newMemRaw(), "test-bucket", nil)
	store := blockstore.New(client, blockstore.Options{})
	buildFixtureSegment(t, store)

	target := []byte{0xaa, 2, 1} // block 2's second transaction
	f := Filter{
		Family:       chainmodel.ChainFamilyEthereum,
		Transactions: []TransactionFilter{{FilterID: 7, From: target}},
	}

	matches, err := ScanGroup(context.Background(), store, 0, f)
	if err != nil {
		t.Fatalf("scan group: %v", err)
	}
	bm, ok := matches[7]
	if !ok || bm.GetCardinality() != 1 || !bm.Contains(2) {
		t.Fatalf("expected exactly block 2 to match filter 7, got %v", bm)
	}
}

func TestFilterSegmentBlockMatchesRecoversTransactionRows(t *testing.T) {
	client := objectstore.New(newMemRaw(), "test-bucket", nil)
	store := blockstore.New(client, blockstore.Options{})
	buildFixtureSegment(t, store)

	opts := chainmodel.SegmentOptions{StartingBlock: 0, SegmentSize: 3, GroupSize: 1}
	f := Filter{
		Family:       chainmodel.ChainFamilyEthereum,
		Transactions: []TransactionFilter{{FilterID: 1, From: []byte{0xaa, 2, 0}}},
	}

	block, _, err := FilterSegmentBlockMatches(context.Background(), store, opts, 0, 2, f)
	if err != nil {
		t.Fatalf("filter segment block: %v", err)
	}
	if len(block.Transactions) != 1 {
		t.Fatalf("expected 1 matching transaction, got %d", len(block.Transactions))
	}
	if block.Transactions[0].TransactionIndex != 0 {
		t.Fatalf("expected transaction index 0, got %d", block.Transactions[0].TransactionIndex)
	}

	block0, _, err := FilterSegmentBlockMatches(context.Background(), store, opts, 0, 0, f)
	if err != nil {
		t.Fatalf("filter segment block 0: %v", err)
	}
	if !block0.IsEmpty() {
		t.Fatalf("expected block 0 (no transactions) to produce an empty result, got %+v", block0)
	}
}

func TestFilterIsEmpty(t *testing.T) {
	if (Filter{}).IsEmpty() != true {
		t.Fatal("expected a filter with no sub-filters and no header to be empty")
	}
	if (Filter{Header: &HeaderFilter{Always: false}}).IsEmpty() != true {
		t.Fatal("a non-always header filter must not make the filter non-empty")
	}
	if (Filter{Header: &HeaderFilter{Always: true}}).IsEmpty() != false {
		t.Fatal("an always-true header filter makes the filter non-empty")
	}
}
