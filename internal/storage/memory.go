package storage

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strings"
	"sync"
)

// MemoryStore is an in-process Store. It backs dry runs and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string][]byte

	// Calls counts every List, Get, Open and Put.
	Calls int
}

// NewMemoryStore creates a store seeded with objects.
func NewMemoryStore(objects map[string]string) *MemoryStore {
	m := &MemoryStore{objects: make(map[string][]byte, len(objects))}
	for k, v := range objects {
		m.objects[k] = []byte(v)
	}
	return m
}

func (m *MemoryStore) List(ctx context.Context, prefix string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++

	var keys []string
	for k := range m.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (m *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++

	data, ok := m.objects[key]
	if !ok {
		return nil, notFound("storage.get", key, nil)
	}
	return append([]byte(nil), data...), nil
}

func (m *MemoryStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	data, err := m.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *MemoryStore) Put(ctx context.Context, key string, data []byte) error {
	if err := validateKey("storage.put", key); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++

	m.objects[key] = append([]byte(nil), data...)
	return nil
}

// Keys returns every stored key in lexical order.
func (m *MemoryStore) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
