package blockstore

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"dnaindex/internal/chainmodel"
	"dnaindex/internal/objectstore"
)

// memRaw is a small in-memory objectstore.Raw used only by this package's
// tests (internal/objectstore's own fake is unexported to its package).
type memRaw struct {
	mu      sync.Mutex
	objects map[string][]byte
	etags   map[string]string
	seq     int
}

func newMemRaw() *memRaw {
	return &memRaw{objects: map[string][]byte{}, etags: map[string]string{}}
}

func (m *memRaw) PutObject(_ context.Context, _, object string, body []byte, _ string, mode objectstore.PutMode, expectedETag string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, exists := m.etags[object]
	switch mode {
	case objectstore.Create:
		if exists {
			return "", fmt.Errorf("%w: object exists", objectstore.ErrPrecondition)
		}
	case objectstore.Update:
		if !exists {
			return "", fmt.Errorf("%w: object missing", objectstore.ErrPrecondition)
		}
		if current != expectedETag {
			return "", fmt.Errorf("%w: etag mismatch", objectstore.ErrPrecondition)
		}
	}

	m.seq++
	etag := fmt.Sprintf("etag-%d", m.seq)
	m.objects[object] = append([]byte(nil), body...)
	m.etags[object] = etag
	return etag, nil
}

func (m *memRaw) GetObject(_ context.Context, _, object string) ([]byte, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	body, ok := m.objects[object]
	if !ok {
		return nil, "", objectstore.ErrNotFound
	}
	return append([]byte(nil), body...), m.etags[object], nil
}

func (m *memRaw) StatObject(_ context.Context, _, object string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	etag, ok := m.etags[object]
	return etag, ok, nil
}

func (m *memRaw) RemoveObject(_ context.Context, _, object string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, object)
	delete(m.etags, object)
	return nil
}

func (m *memRaw) ListObjects(_ context.Context, _, prefix string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for k := range m.objects {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	return out, nil
}

func (m *memRaw) EnsureBucket(context.Context, string) error { return nil }

func newTestStore(t *testing.T) *Store {
	t.Helper()
	client := objectstore.New(newMemRaw(), "test-bucket", nil)
	return New(client, Options{CacheEntries: 4})
}

func TestBlockRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	c := chainmodel.NewCursor(100, []byte{0xab, 0xcd})

	if _, err := s.PutBlock(ctx, c, []byte("block-body")); err != nil {
		t.Fatalf("put block: %v", err)
	}
	got, err := s.GetBlock(ctx, c)
	if err != nil {
		t.Fatalf("get block: %v", err)
	}
	if string(got) != "block-body" {
		t.Fatalf("got %q want %q", got, "block-body")
	}

	if err := s.DeleteBlock(ctx, c); err != nil {
		t.Fatalf("delete block: %v", err)
	}
	if _, err := s.GetBlock(ctx, c); err == nil {
		t.Fatal("expected error reading deleted block")
	}
}

func TestSegmentCreateThenOverwrite(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.PutSegment(ctx, 1000, "header", []byte("v1")); err != nil {
		t.Fatalf("first put segment: %v", err)
	}
	if _, err := s.PutSegment(ctx, 1000, "header", []byte("v2")); err == nil {
		t.Fatal("expected Create precondition to reject a second write")
	}
	if _, err := s.PutSegmentOverwrite(ctx, 1000, "header", []byte("v2")); err != nil {
		t.Fatalf("overwrite segment: %v", err)
	}
	got, err := s.GetSegment(ctx, 1000, "header")
	if err != nil {
		t.Fatalf("get segment: %v", err)
	}
	if string(got) != "v2" {
		t.Fatalf("got %q want v2", got)
	}
}

func TestGroupRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.PutGroup(ctx, 2000, []byte("group-bytes")); err != nil {
		t.Fatalf("put group: %v", err)
	}
	got, err := s.GetGroup(ctx, 2000)
	if err != nil {
		t.Fatalf("get group: %v", err)
	}
	if string(got) != "group-bytes" {
		t.Fatalf("got %q want group-bytes", got)
	}
}

func TestCacheServesWithoutRepeatedBackendReads(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.PutGroup(ctx, 3000, []byte("cached")); err != nil {
		t.Fatalf("put group: %v", err)
	}
	if _, err := s.GetGroup(ctx, 3000); err != nil {
		t.Fatalf("get group (populate cache): %v", err)
	}
	_, missesBefore := s.CacheStats()
	if _, err := s.GetGroup(ctx, 3000); err != nil {
		t.Fatalf("get group (from cache): %v", err)
	}
	hitsAfter, missesAfter := s.CacheStats()
	if hitsAfter == 0 {
		t.Fatal("expected at least one cache hit")
	}
	if missesAfter != missesBefore {
		t.Fatalf("expected no additional misses once cached, before=%d after=%d", missesBefore, missesAfter)
	}
}
