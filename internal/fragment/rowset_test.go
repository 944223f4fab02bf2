package fragment

import (
	"bytes"
	"testing"
)

func TestTransactionRowSetRoundTrip(t *testing.T) {
	rsb := NewRowSetBuilder(TransactionSchema)

	id0 := BuildTransactionRow(rsb, TransactionFields{
		Hash:             []byte{0x01, 0x02},
		Nonce:            5,
		TransactionIndex: 0,
		From:             []byte{0xaa},
		To:               []byte{0xbb},
		Gas:              21000,
		ChainID:          1,
		TransactionType:  2,
	})
	id1 := BuildTransactionRow(rsb, TransactionFields{
		Hash:             []byte{0x03, 0x04},
		Nonce:            6,
		TransactionIndex: 1,
		Gas:              40000,
	})

	buf := rsb.Finish(1_000_000, []byte{0xde, 0xad, 0xbe, 0xef})

	rs := OpenTransactionRowSet(buf)
	if rs.FirstBlockNumber() != 1_000_000 {
		t.Fatalf("first block number: got %d", rs.FirstBlockNumber())
	}
	if !bytes.Equal(rs.FirstBlockHash(), []byte{0xde, 0xad, 0xbe, 0xef}) {
		t.Fatalf("first block hash: got %x", rs.FirstBlockHash())
	}
	if rs.Len() != 2 {
		t.Fatalf("expected 2 rows, got %d", rs.Len())
	}

	tx0 := rs.AsTransaction(id0)
	if !bytes.Equal(tx0.Hash(), []byte{0x01, 0x02}) {
		t.Fatalf("row 0 hash: got %x", tx0.Hash())
	}
	if tx0.Nonce() != 5 {
		t.Fatalf("row 0 nonce: got %d", tx0.Nonce())
	}
	if tx0.Gas() != 21000 {
		t.Fatalf("row 0 gas: got %d", tx0.Gas())
	}
	if tx0.ChainID() != 1 || tx0.TransactionType() != 2 {
		t.Fatalf("row 0 chain/type: got %d/%d", tx0.ChainID(), tx0.TransactionType())
	}

	tx1 := rs.AsTransaction(id1)
	if !bytes.Equal(tx1.Hash(), []byte{0x03, 0x04}) {
		t.Fatalf("row 1 hash: got %x", tx1.Hash())
	}
	if tx1.Nonce() != 6 || tx1.Gas() != 40000 {
		t.Fatalf("row 1 fields: nonce=%d gas=%d", tx1.Nonce(), tx1.Gas())
	}
	// from/to were left nil for row 1: must read back empty, not garbage.
	if len(tx1.From()) != 0 || len(tx1.To()) != 0 {
		t.Fatalf("expected absent from/to for row 1, got %x / %x", tx1.From(), tx1.To())
	}
}

func TestSlotTaggedVariantRoundTrip(t *testing.T) {
	rsb := NewRowSetBuilder(SlotSchema())
	missedID := BuildSlotRow(rsb, Missed(100))
	proposedID := BuildSlotRow(rsb, Proposed(101, 7))
	buf := rsb.Finish(100, []byte{0x01})

	rs := OpenRowSet(buf, SlotSchema())

	missed := ReadSlotRow(rs.Row(missedID))
	if missed.Kind != SlotMissed || missed.SlotNum != 100 {
		t.Fatalf("expected Missed{100}, got %+v", missed)
	}

	proposed := ReadSlotRow(rs.Row(proposedID))
	if proposed.Kind != SlotProposed || proposed.SlotNum != 101 || proposed.RowID != 7 {
		t.Fatalf("expected Proposed{101 -> 7}, got %+v", proposed)
	}
}

func TestEventRowMultiTopic(t *testing.T) {
	rsb := NewRowSetBuilder(EventSchema)
	id := BuildEventRow(rsb, EventFields{
		Address:         []byte{0x01},
		TransactionHash: []byte{0x02},
		LogIndex:        3,
		Topics:          [][]byte{{0xaa}, {0xbb}},
		Data:            []byte{0xcc, 0xdd},
	})
	buf := rsb.Finish(0, nil)
	rs := OpenEventRowSet(buf)
	ev := rs.AsEvent(id)
	if !bytes.Equal(ev.Topic0(), []byte{0xaa}) || !bytes.Equal(ev.Topic1(), []byte{0xbb}) {
		t.Fatalf("unexpected topics: %x %x", ev.Topic0(), ev.Topic1())
	}
	if len(ev.Topic2()) != 0 || len(ev.Topic3()) != 0 {
		t.Fatalf("expected absent topic2/topic3, got %x %x", ev.Topic2(), ev.Topic3())
	}
}
