package streamer

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"testing"
	"time"

	"dnaindex/internal/bitmapindex"
	"dnaindex/internal/blockstore"
	"dnaindex/internal/chainmodel"
	"dnaindex/internal/chainview"
	"dnaindex/internal/fragment"
	"dnaindex/internal/objectstore"
	"dnaindex/internal/scanner"
)

func blockHash(n uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], n)
	return b[:]
}

// buildFixture writes one 2-block segment (segment size 2, group size 1,
// so the group spans exactly that one segment) where block 1 carries a
// single transaction from a known address; block 0 carries none.
func buildFixture(t *testing.T, store *blockstore.Store, target []byte) {
	t.Helper()
	ctx := context.Background()

	header := fragment.NewRowSetBuilder(fragment.HeaderSchema)
	txSlots := fragment.NewRowSetBuilder(fragment.SegmentSlotSchema)
	group := bitmapindex.NewIndexGroup(0)

	fragment.BuildHeaderRow(header, fragment.HeaderFields{Number: 0, Hash: blockHash(0), Timestamp: 1000})
	fragment.BuildSegmentSlotRow(txSlots, nil)

	fragment.BuildHeaderRow(header, fragment.HeaderFields{Number: 1, Hash: blockHash(1), Timestamp: 1001})
	nested := fragment.NewRowSetBuilder(fragment.TransactionSchema)
	fragment.BuildTransactionRow(nested, fragment.TransactionFields{Hash: []byte{0x01}, TransactionIndex: 0, From: target})
	group.Index(chainmodel.FragmentTransaction, "from").Add(hex.EncodeToString(target), 1)
	group.MarkBlockHasFragment(chainmodel.FragmentTransaction, 1)
	fragment.BuildSegmentSlotRow(txSlots, nested.Finish(1, blockHash(1)))

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

func TestProducerEmitsSegmentGroupData(t *testing.T) {
	client := objectstore.New(newMemRaw(), "test-bucket", nil)
	store := blockstore.New(client, blockstore.Options{})
	target := []byte{0xaa, 0xbb, 0xcc}
	buildFixture(t, store, target)

	opts := chainmodel.SegmentOptions{StartingBlock: 0, SegmentSize: 2, GroupSize: 1}
	v := chainview.New(opts, 0, 256)
	v.SetFinalizedBlock(chainmodel.NewCursor(1, blockHash(1)))
	v.RefreshRecent(chainmodel.NewCursor(1, blockHash(1)), map[uint64][]byte{0: blockHash(0), 1: blockHash(1)})
	v.SetSegmentedBlock(1)
	v.SetGroupedBlock(1)

	f := scanner.Filter{
		Family:       chainmodel.ChainFamilyEthereum,
		Transactions: []scanner.TransactionFilter{{FilterID: 1, From: target}},
	}

	out := make(chan StreamMessage, 16)
	permits := make(chan struct{}, 16)
	for i := 0; i < 16; i++ {
		permits <- struct{}{}
	}

	p := New(v, store, opts, f, out, permits, Options{HeartbeatInterval: time.Hour, IdleBackoff: 10 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx, chainmodel.NewCursor(0, nil)) }()

	var gotData *StreamMessage
	timeout := time.After(2 * time.Second)
	for gotData == nil {
		select {
		case msg := <-out:
			if msg.Kind == MessageData {
				m := msg
				gotData = &m
			}
		case <-timeout:
			t.Fatal("timed out waiting for a Data message")
		}
	}
	cancel()
	<-done

	if gotData.Data == nil || gotData.Data.Number != 1 {
		t.Fatalf("expected data frame for block 1, got %+v", gotData.Data)
	}
	if gotData.Finality != chainmodel.FinalityFinalized {
		t.Fatalf("expected FINALIZED finality for a grouped block, got %v", gotData.Finality)
	}
	if gotData.EndCursor.Number() != 1 {
		t.Fatalf("expected end_cursor at block 1, got %d", gotData.EndCursor.Number())
	}
	if gotData.Cursor == nil || gotData.Cursor.Number() != 0 {
		t.Fatalf("expected cursor at block 0, got %v", gotData.Cursor)
	}
}

func TestProducerExitsOnContextCancel(t *testing.T) {
	client := objectstore.New(newMemRaw(), "test-bucket", nil)
	store := blockstore.New(client, blockstore.Options{})

	opts := chainmodel.SegmentOptions{StartingBlock: 0, SegmentSize: 2, GroupSize: 1}
	v := chainview.New(opts, 0, 256)
	// No finalized cursor set: the cursor producer stays NotReady forever.

	out := make(chan StreamMessage, 4)
	permits := make(chan struct{}, 4)
	for i := 0; i < 4; i++ {
		permits <- struct{}{}
	}

	p := New(v, store, opts, scanner.Filter{}, out, permits, Options{IdleBackoff: 5 * time.Millisecond})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := p.Run(ctx, chainmodel.NewCursor(0, nil))
	if err == nil {
		t.Fatal("expected Run to return the context's cancellation error")
	}
}
