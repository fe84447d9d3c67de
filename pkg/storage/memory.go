package storage

import (
	"context"
	"sort"
	"sync"
)

// MemoryArea is an in-memory storage area.
// It's the default area and suitable for a single process. Several hosts
// sharing one MemoryArea see each other's writes as native events, the way
// browser tabs of one origin share a storage area.
type MemoryArea struct {
	mu       sync.RWMutex
	items    map[string]string
	closed   bool
	watchers watchers
}

// NewMemoryArea creates a new in-memory storage area.
func NewMemoryArea() *MemoryArea {
	return &MemoryArea{
		items: make(map[string]string),
	}
}

// GetItem implements Area.
func (m *MemoryArea) GetItem(ctx context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return "", false, ErrAreaClosed{}
	}

	value, ok := m.items[key]
	return value, ok, nil
}

// SetItem implements Area. Watchers are notified after the write, including
// when the value did not change.
func (m *MemoryArea) SetItem(ctx context.Context, key, value string) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrAreaClosed{}
	}
	old, existed := m.items[key]
	m.items[key] = value
	m.mu.Unlock()

	ev := Event{Key: key, NewValue: Text(value), Origin: OriginFrom(ctx)}
	if existed {
		ev.OldValue = Text(old)
	}
	m.watchers.emit(ev)
	return nil
}

// RemoveItem implements Area.
func (m *MemoryArea) RemoveItem(ctx context.Context, key string) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrAreaClosed{}
	}
	old, existed := m.items[key]
	delete(m.items, key)
	m.mu.Unlock()

	if existed {
		m.watchers.emit(Event{Key: key, OldValue: Text(old), Origin: OriginFrom(ctx)})
	}
	return nil
}

// Keys implements Lister. Keys are returned sorted.
func (m *MemoryArea) Keys(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrAreaClosed{}
	}

	keys := make([]string, 0, len(m.items))
	for k := range m.items {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// Watch implements Observable.
func (m *MemoryArea) Watch(fn func(Event)) func() {
	return m.watchers.add(fn)
}

// Len returns the number of stored items.
// This is for monitoring/testing purposes.
func (m *MemoryArea) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

// Close marks the area closed and drops its contents.
func (m *MemoryArea) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true
	m.items = nil
	return nil
}
