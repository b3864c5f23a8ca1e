package blob

import (
	"context"
	"io"
	"sync"
)

type memoryObject struct {
	data        []byte
	contentType string
	public      bool
}

// MemoryStore keeps objects in process memory and exposes public ones
// under baseURL (served by the artifacts route in local mode).
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]*memoryObject
	baseURL string
}

func NewMemoryStore(baseURL string) *MemoryStore {
	return &MemoryStore{
		objects: make(map[string]*memoryObject),
		baseURL: baseURL,
	}
}

// StreamUpload buffers the body and stores it only after a complete read.
func (m *MemoryStore) StreamUpload(ctx context.Context, key string, r io.Reader, size int64, contentType string) (ObjectRef, error) {
	data, err := drain(r, size)
	if err != nil {
		return ObjectRef{}, err
	}
	if err := ctx.Err(); err != nil {
		return ObjectRef{}, err
	}

	m.mu.Lock()
	m.objects[key] = &memoryObject{data: data, contentType: contentType}
	m.mu.Unlock()

	return ObjectRef{Key: key, Size: int64(len(data)), ContentType: contentType}, nil
}

func (m *MemoryStore) MakePublic(ctx context.Context, ref ObjectRef) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	obj, ok := m.objects[ref.Key]
	if !ok {
		return ErrNotFound
	}
	obj.public = true
	return nil
}

func (m *MemoryStore) PublicURL(ref ObjectRef) string {
	return joinURL(m.baseURL, ref.Key)
}

func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

// GetPublic returns a public object's bytes and content type.
func (m *MemoryStore) GetPublic(key string) ([]byte, string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	obj, ok := m.objects[key]
	if !ok || !obj.public {
		return nil, "", ErrNotFound
	}
	return obj.data, obj.contentType, nil
}

// Len returns the number of stored objects.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}
