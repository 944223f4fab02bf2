package chainview

import (
	"testing"
	"time"

	"dnaindex/internal/chainmodel"
)

func testOpts() chainmodel.SegmentOptions {
	return chainmodel.SegmentOptions{StartingBlock: 1000, SegmentSize: 100, GroupSize: 10}
}

func TestRefreshRecentFiresHeadChanged(t *testing.T) {
	v := New(testOpts(), 1000, 256)

	waiter := v.WaitHeadChanged()
	select {
	case <-waiter:
		t.Fatal("head_changed fired before any refresh")
	default:
	}

	head := chainmodel.NewCursor(1005, []byte{0x01})
	v.RefreshRecent(head, map[uint64][]byte{1005: {0x01}})

	select {
	case <-waiter:
	case <-time.After(time.Second):
		t.Fatal("expected head_changed to fire")
	}

	got, ok := v.GetHead()
	if !ok || !got.Equal(head) {
		t.Fatalf("expected head %v, got %v (ok=%v)", head, got, ok)
	}
}

func TestRefreshRecentNoChangeDoesNotRefire(t *testing.T) {
	v := New(testOpts(), 1000, 256)
	head := chainmodel.NewCursor(1005, []byte{0x01})
	v.RefreshRecent(head, map[uint64][]byte{1005: {0x01}})

	waiter := v.WaitHeadChanged()
	v.RefreshRecent(head, map[uint64][]byte{1005: {0x01}})

	select {
	case <-waiter:
		t.Fatal("head_changed should not refire for an identical head")
	default:
	}
}

func TestValidateCursorDetectsReorg(t *testing.T) {
	v := New(testOpts(), 1000, 256)
	v.RefreshRecent(chainmodel.NewCursor(1005, []byte{0x01}), map[uint64][]byte{1005: {0x01}})

	if !v.ValidateCursor(chainmodel.NewCursor(1005, []byte{0x01})) {
		t.Fatal("expected matching cursor to validate")
	}
	if v.ValidateCursor(chainmodel.NewCursor(1005, []byte{0x02})) {
		t.Fatal("expected mismatched hash to fail validation")
	}
	if !v.ValidateCursor(chainmodel.NewCursor(2005, []byte{0xff})) {
		t.Fatal("expected an out-of-window block number to validate (nothing to contradict it)")
	}
}

func TestSegmentedGroupedAlignmentQueries(t *testing.T) {
	v := New(testOpts(), 1000, 256)

	if v.HasSegmentFor(1050) {
		t.Fatal("expected no segment coverage before SetSegmentedBlock")
	}
	v.SetSegmentedBlock(1099)
	if !v.HasSegmentFor(1050) {
		t.Fatal("expected segment coverage for 1050 once segmented=1099")
	}
	if v.HasSegmentFor(1150) {
		t.Fatal("expected no coverage for a block past the segmented mark")
	}

	if v.HasGroupFor(1500) {
		t.Fatal("expected no group coverage before SetGroupedBlock")
	}
	v.SetGroupedBlock(1999)
	if !v.HasGroupFor(1500) {
		t.Fatal("expected group coverage for 1500 once grouped=1999")
	}
}

func TestSetFinalizedBlockFiresOnlyOnChange(t *testing.T) {
	v := New(testOpts(), 1000, 256)
	c := chainmodel.NewCursor(1010, []byte{0x09})

	waiter := v.WaitFinalizedChanged()
	v.SetFinalizedBlock(c)
	select {
	case <-waiter:
	case <-time.After(time.Second):
		t.Fatal("expected finalized_changed to fire")
	}

	waiter2 := v.WaitFinalizedChanged()
	v.SetFinalizedBlock(c)
	select {
	case <-waiter2:
		t.Fatal("finalized_changed should not refire for the same cursor")
	default:
	}
}

func TestGetNextCursor(t *testing.T) {
	v := New(testOpts(), 1000, 256)
	if _, ok := v.GetNextCursor(nil); ok {
		t.Fatal("expected GetNextCursor(nil) to fail before the starting block is known")
	}

	v.RefreshRecent(chainmodel.NewCursor(1000, []byte{0x00}), map[uint64][]byte{1000: {0x00}, 1001: {0x01}})
	next, ok := v.GetNextCursor(nil)
	if !ok || next.Number() != 1000 {
		t.Fatalf("expected starting cursor at 1000, got %v (ok=%v)", next, ok)
	}

	prev := chainmodel.NewCursor(1000, []byte{0x00})
	next, ok = v.GetNextCursor(&prev)
	if !ok || next.Number() != 1001 {
		t.Fatalf("expected next cursor at 1001, got %v (ok=%v)", next, ok)
	}
}
