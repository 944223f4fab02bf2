package fragment

import "testing"

func TestBlockFileRoundTrip(t *testing.T) {
	txSet := NewRowSetBuilder(TransactionSchema)
	BuildTransactionRow(txSet, TransactionFields{Hash: []byte{0x01}, Nonce: 1, Gas: 21000})
	txBytes := txSet.Finish(500, []byte{0x55})

	hdrSet := NewRowSetBuilder(HeaderSchema)
	BuildHeaderRow(hdrSet, HeaderFields{Number: 500, Hash: []byte{0x55}})
	hdrBytes := hdrSet.Finish(500, []byte{0x55})

	blockBuf := BuildBlockFile(500, []byte{0x55}, map[string][]byte{
		"header":      hdrBytes,
		"transaction": txBytes,
	})

	rs := OpenBlockFile(blockBuf)
	if rs.FirstBlockNumber() != 500 {
		t.Fatalf("expected block number 500, got %d", rs.FirstBlockNumber())
	}

	innerTx := OpenTransactionRowSet(rs.BlockFragment("transaction"))
	if innerTx.Len() != 1 {
		t.Fatalf("expected 1 transaction row, got %d", innerTx.Len())
	}
	if innerTx.AsTransaction(0).Nonce() != 1 {
		t.Fatalf("expected nonce 1, got %d", innerTx.AsTransaction(0).Nonce())
	}

	if rs.BlockFragment("receipt") != nil {
		t.Fatal("expected absent receipt fragment to be nil")
	}
}
