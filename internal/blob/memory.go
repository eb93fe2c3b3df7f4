package blob

import (
	"context"
	"sync"
)

// MemoryStore keeps blobs in memory. It is meant for tests and local runs
// without a database.
type MemoryStore struct {
	mu      sync.Mutex
	objects map[string]memoryObject
	baseURL string

	// ChunkSize controls how often progress is reported; 0 means 1 KiB.
	ChunkSize int
	// FailWith, if set, is called before every Put; a non-nil error fails
	// the Put.
	FailWith func(key string) error
}

type memoryObject struct {
	data []byte
	mime string
}

// NewMemoryStore creates an empty store.
func NewMemoryStore(baseURL string) *MemoryStore {
	return &MemoryStore{objects: make(map[string]memoryObject), baseURL: baseURL}
}

// Put copies data in chunks, reporting progress after each one.
func (m *MemoryStore) Put(ctx context.Context, key string, data []byte, mime string, progress ProgressFunc) (string, error) {
	if m.FailWith != nil {
		if err := m.FailWith(key); err != nil {
			return "", err
		}
	}

	chunk := m.ChunkSize
	if chunk <= 0 {
		chunk = 1024
	}
	total := int64(len(data))
	report(progress, 0, total)

	buf := make([]byte, 0, len(data))
	for off := 0; off < len(data); off += chunk {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		end := min(off+chunk, len(data))
		buf = append(buf, data[off:end]...)
		report(progress, int64(end), total)
	}

	m.mu.Lock()
	m.objects[key] = memoryObject{data: buf, mime: mime}
	m.mu.Unlock()

	if total == 0 {
		report(progress, 0, 0)
	}
	return URL(m.baseURL, key), nil
}

// Get returns a stored object.
func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[key]
	if !ok {
		return nil, "", ErrNotFound
	}
	return obj.data, obj.mime, nil
}

// Delete removes an object.
func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.objects, key)
	m.mu.Unlock()
	return nil
}

// Len returns the number of stored objects.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}
