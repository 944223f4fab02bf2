package objectstore

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func newTestClient() *Client {
	return New(newMemRaw(), "test-bucket", nil)
}

// TestPutGetRoundTrip exercises invariant 5 from spec.md 8: get(path,
// put(path, body)).body == body and the checksum verifies.
func TestPutGetRoundTrip(t *testing.T) {
	c := newTestClient()
	ctx := context.Background()

	body := []byte("the quick brown fox jumps over the lazy dog, repeated for compressibility. " +
		"the quick brown fox jumps over the lazy dog, repeated for compressibility.")

	etag, err := c.Put(ctx, "blocks/1-aa/block", body, PutOptions{Mode: Overwrite})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if etag == "" {
		t.Fatal("expected non-empty etag")
	}

	obj, err := c.Get(ctx, "blocks/1-aa/block", GetOptions{})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(obj.Body) != string(body) {
		t.Fatalf("round trip mismatch: got %q want %q", obj.Body, body)
	}
	if obj.ETag != etag {
		t.Fatalf("etag mismatch: got %q want %q", obj.ETag, etag)
	}
}

// TestCompressionRoundTrip exercises invariant 6 from spec.md 8.
func TestCompressionRoundTrip(t *testing.T) {
	payload := []byte("segment payload bytes, segment payload bytes, segment payload bytes")
	wire, err := encodePayload(payload)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := decodePayload(wire)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if string(got) != string(payload) {
		t.Fatalf("got %q want %q", got, payload)
	}
}

func TestChecksumMismatchDetected(t *testing.T) {
	wire, err := encodePayload([]byte("hello"))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	// Corrupt one byte of the compressed frame's tail so the decompressed
	// checksum no longer matches.
	wire[len(wire)-1] ^= 0xFF

	_, err = decodePayload(wire)
	if err == nil {
		t.Fatal("expected decode error for corrupted frame")
	}
}

// TestPutCreatePreconditionExactlyOneWinner exercises scenario S4 from
// spec.md 8: eight concurrent Create callers on an empty bucket, exactly
// one wins.
func TestPutCreatePreconditionExactlyOneWinner(t *testing.T) {
	c := newTestClient()
	ctx := context.Background()

	const n = 8
	var wg sync.WaitGroup
	results := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := c.Put(ctx, "snapshot", []byte("writer-payload"), PutOptions{Mode: Create})
			results[i] = err
		}(i)
	}
	wg.Wait()

	oks, precond := 0, 0
	for _, err := range results {
		switch {
		case err == nil:
			oks++
		case isPrecondition(err):
			precond++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if oks != 1 {
		t.Fatalf("expected exactly 1 winner, got %d", oks)
	}
	if precond != n-1 {
		t.Fatalf("expected %d precondition losers, got %d", n-1, precond)
	}

	obj, err := c.Get(ctx, "snapshot", GetOptions{})
	if err != nil {
		t.Fatalf("get after race: %v", err)
	}
	if string(obj.Body) != "writer-payload" {
		t.Fatalf("unexpected winner body: %q", obj.Body)
	}
}

func isPrecondition(err error) bool {
	var oerr *Error
	if !errors.As(err, &oerr) {
		return false
	}
	return oerr.Kind == KindPrecondition
}

func TestDeleteIsIdempotent(t *testing.T) {
	c := newTestClient()
	ctx := context.Background()
	if err := c.Delete(ctx, "nonexistent"); err != nil {
		t.Fatalf("delete of absent object should not error: %v", err)
	}
}

func TestListPrefix(t *testing.T) {
	c := newTestClient()
	ctx := context.Background()
	for _, p := range []string{"segment/0/header", "segment/0/transaction", "segment/100/header"} {
		if _, err := c.Put(ctx, p, []byte("x"), PutOptions{Mode: Overwrite}); err != nil {
			t.Fatalf("put %s: %v", p, err)
		}
	}
	got, err := c.List(ctx, "segment/0/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 entries under segment/0/, got %d: %v", len(got), got)
	}
}
