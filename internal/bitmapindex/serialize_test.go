package bitmapindex

import (
	"testing"

	"dnaindex/internal/chainmodel"
)

func TestIndexGroupEncodeDecodeRoundTrip(t *testing.T) {
	g := NewIndexGroup(1000)
	g.MarkBlockHasFragment(chainmodel.FragmentTransaction, 1000)
	g.MarkBlockHasFragment(chainmodel.FragmentTransaction, 1001)
	g.MarkBlockHasFragment(chainmodel.FragmentReceipt, 1001)

	g.Index(chainmodel.FragmentTransaction, "from").Add("0xabc", 0)
	g.Index(chainmodel.FragmentTransaction, "from").Add("0xabc", 5)
	g.Index(chainmodel.FragmentTransaction, "to").Add("0xdef", 1)

	g.Join("blob_by_tx").Add(7, 2)
	g.Join("blob_by_tx").Add(7, 3)

	encoded, err := EncodeIndexGroup(g)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	decoded, err := DecodeIndexGroup(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if decoded.GroupFirst != 1000 {
		t.Fatalf("group_first = %d, want 1000", decoded.GroupFirst)
	}

	txRange := decoded.RangeFor(chainmodel.FragmentTransaction)
	if !txRange.Contains(1000) || !txRange.Contains(1001) {
		t.Fatalf("expected transaction range to contain 1000 and 1001, got %v", txRange.ToArray())
	}
	receiptRange := decoded.RangeFor(chainmodel.FragmentReceipt)
	if receiptRange.GetCardinality() != 1 || !receiptRange.Contains(1001) {
		t.Fatalf("expected receipt range {1001}, got %v", receiptRange.ToArray())
	}

	fromBM := decoded.Index(chainmodel.FragmentTransaction, "from").GetBitmap("0xabc")
	if fromBM.GetCardinality() != 2 || !fromBM.Contains(0) || !fromBM.Contains(5) {
		t.Fatalf("expected from index {0xabc: [0,5]}, got %v", fromBM.ToArray())
	}

	joinBM := decoded.Join("blob_by_tx").GetBitmap(7)
	if joinBM.GetCardinality() != 2 || !joinBM.Contains(2) || !joinBM.Contains(3) {
		t.Fatalf("expected blob_by_tx[7] = {2,3}, got %v", joinBM.ToArray())
	}
}

func TestIndexGroupEncodeDeterministic(t *testing.T) {
	g := NewIndexGroup(0)
	g.Index(chainmodel.FragmentTransaction, "from").Add("b", 1)
	g.Index(chainmodel.FragmentTransaction, "from").Add("a", 0)

	first, err := EncodeIndexGroup(g)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	second, err := EncodeIndexGroup(g)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if string(first) != string(second) {
		t.Fatal("expected repeated encodes of the same group to be byte-identical")
	}
}
