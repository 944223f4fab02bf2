package scanner

import (
	"context"
	"errors"
	"testing"

	"dnaindex/internal/bitmapindex"
	"dnaindex/internal/blockstore"
	"dnaindex/internal/chainmodel"
	"dnaindex/internal/objectstore"
)

func TestScanMissingJoinIndexIsTypedError(t *testing.T) {
	group := bitmapindex.NewIndexGroup(0)
	f := Filter{
		Family:       chainmodel.ChainFamilyEthereum,
		Transactions: []TransactionFilter{{FilterID: 1, IncludeLogs: true}},
	}
	_, err := Scan(group, f, false)
	if err == nil {
		t.Fatal("expected missing join index error")
	}
	var serr *Error
	if !errors.As(err, &serr) {
		t.Fatalf("expected *scanner.Error, got %T", err)
	}
	if serr.Kind != KindMissingJoinIndex {
		t.Fatalf("expected KindMissingJoinIndex, got %v", serr.Kind)
	}
	if !errors.Is(err, bitmapindex.ErrMissingJoinIndex) {
		t.Fatal("expected errors.Is to still recover the bitmapindex sentinel")
	}

	// is_group=true must downgrade the same absence to a no-op.
	if _, err := Scan(group, f, true); err != nil {
		t.Fatalf("expected group-mode scan to tolerate missing join index, got %v", err)
	}
}

func TestFilterSingleBlockLoadErrorIsTyped(t *testing.T) {
	client := objectstore.New(newMemRaw(), "test-bucket", nil)
	store := blockstore.New(client, blockstore.Options{})

	_, _, err := FilterSingleBlock(context.Background(), store, chainmodel.NewCursor(7, []byte{0x07}), Filter{})
	if err == nil {
		t.Fatal("expected load error for missing block")
	}
	var serr *Error
	if !errors.As(err, &serr) {
		t.Fatalf("expected *scanner.Error, got %T", err)
	}
	if serr.Kind != KindLoad {
		t.Fatalf("expected KindLoad, got %v", serr.Kind)
	}
	if !serr.Retryable() {
		t.Fatal("a load failure wrapping an object-store miss should be retryable")
	}
}
