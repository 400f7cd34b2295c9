package linkcache

import (
	"context"
	"sync"
)

type MemoryStore struct {
	mutex   sync.RWMutex
	entries map[string]*Entry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]*Entry)}
}

func (m *MemoryStore) Load(_ context.Context, origin string) (*Entry, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.entries[origin], nil
}

func (m *MemoryStore) Save(_ context.Context, entry *Entry) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.entries[entry.Origin] = entry
	return nil
}

func (m *MemoryStore) Close() error {
	return nil
}
