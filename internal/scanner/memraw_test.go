package scanner

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"dnaindex/internal/objectstore"
)

// memRaw is a small in-memory objectstore.Raw for this package's tests
// (internal/objectstore's own fake is unexported to its own package, the
// same duplication internal/compaction, internal/snapshot and
// internal/ingestion each carry).
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
