package blobstore

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// MemBlobs is an in-memory BlobStore used in tests.
type MemBlobs struct {
	mu    sync.RWMutex
	blobs map[string][]byte
	types map[string]string
}

func NewMemBlobs() *MemBlobs {
	return &MemBlobs{
		blobs: make(map[string][]byte),
		types: make(map[string]string),
	}
}

func (m *MemBlobs) Save(ctx context.Context, id string, content []byte, mediaType string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]byte, len(content))
	copy(cp, content)
	m.blobs[id] = cp
	m.types[id] = mediaType
	return "https://blobs.test/d/" + id + "/view", nil
}

func (m *MemBlobs) Fetch(ctx context.Context, id string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	content, ok := m.blobs[id]
	if !ok {
		return nil, fmt.Errorf("blob %q not found", id)
	}
	cp := make([]byte, len(content))
	copy(cp, content)
	return cp, nil
}

func (m *MemBlobs) List(ctx context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var ids []string
	for id := range m.blobs {
		if strings.HasPrefix(id, prefix) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (m *MemBlobs) Exists(ctx context.Context, id string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.blobs[id]
	return ok, nil
}

func (m *MemBlobs) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, id)
	delete(m.types, id)
	return nil
}
