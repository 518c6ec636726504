package artifacts

import (
	"context"
	"sync"
	"time"
)

// MemoryBackend is an in-process Backend for tests and single-node
// development. Expiry is checked lazily on read.
type MemoryBackend struct {
	mu      sync.Mutex
	objects map[string]memoryObject
}

type memoryObject struct {
	content  string
	modified time.Time
	expires  time.Time
}

// NewMemoryBackend creates an empty in-memory blob store
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{objects: make(map[string]memoryObject)}
}

func (b *MemoryBackend) Put(ctx context.Context, key, content string, ttl time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	obj := memoryObject{content: content, modified: time.Now().UTC()}
	if ttl > 0 {
		obj.expires = obj.modified.Add(ttl)
	}
	b.objects[key] = obj
	return nil
}

func (b *MemoryBackend) Get(ctx context.Context, key string) (string, time.Time, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	obj, ok := b.objects[key]
	if !ok {
		return "", time.Time{}, ErrNotFound
	}
	if !obj.expires.IsZero() && time.Now().After(obj.expires) {
		delete(b.objects, key)
		return "", time.Time{}, ErrNotFound
	}
	return obj.content, obj.modified, nil
}

func (b *MemoryBackend) Delete(ctx context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objects, key)
	return nil
}

func (b *MemoryBackend) Exists(ctx context.Context, key string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.objects[key]
	return ok, nil
}
