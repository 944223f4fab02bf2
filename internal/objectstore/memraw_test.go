package objectstore

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// memRaw is an in-memory Raw used by tests. Each bucket op is serialized by
// a single mutex so Put's stat-then-write precondition check behaves
// atomically, the same way a real S3-compatible backend's native
// conditional-write header would.
type memRaw struct {
	mu      sync.Mutex
	objects map[string][]byte
	etags   map[string]string
	seq     int
}

func newMemRaw() *memRaw {
	return &memRaw{objects: map[string][]byte{}, etags: map[string]string{}}
}

func (m *memRaw) nextETag() string {
	m.seq++
	return fmt.Sprintf("etag-%d", m.seq)
}

func (m *memRaw) PutObject(_ context.Context, _, object string, body []byte, _ string, mode PutMode, expectedETag string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, exists := m.etags[object]
	switch mode {
	case Create:
		if exists {
			return "", fmt.Errorf("%w: %v", ErrPrecondition, errObjectExists)
		}
	case Update:
		if !exists {
			return "", fmt.Errorf("%w: %v", ErrPrecondition, errObjectMissing)
		}
		if current != expectedETag {
			return "", fmt.Errorf("%w: %v", ErrPrecondition, errETagMismatch)
		}
	}

	etag := m.nextETag()
	cp := append([]byte(nil), body...)
	m.objects[object] = cp
	m.etags[object] = etag
	return etag, nil
}

func (m *memRaw) GetObject(_ context.Context, _, object string) ([]byte, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	body, ok := m.objects[object]
	if !ok {
		return nil, "", ErrNotFound
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
