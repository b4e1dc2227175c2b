package storage

import (
	"context"
	"strings"
	"sync"

	"github.com/exceptionless/exceptionless-go/pkg/types"
)

type item struct {
	key   string
	event *types.Event
}

// Memory is a thread-safe in-memory Storage. Items are kept in insertion
// order, which is also the order Get returns them in.
type Memory struct {
	mu     sync.Mutex
	items  []item
	closed bool
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{}
}

// Save appends ev under key.
func (m *Memory) Save(_ context.Context, key string, ev *types.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.items = append(m.items, item{key: key, event: ev})
	return nil
}

// Get removes and returns up to max events whose key starts with prefix.
func (m *Memory) Get(_ context.Context, prefix string, max int) ([]*types.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	if max <= 0 {
		return nil, nil
	}

	var out []*types.Event
	kept := m.items[:0]
	for _, it := range m.items {
		if len(out) < max && strings.HasPrefix(it.key, prefix) {
			out = append(out, it.event)
			continue
		}
		kept = append(kept, it)
	}
	clear(m.items[len(kept):])
	m.items = kept
	return out, nil
}

// Clear removes every event whose key starts with prefix.
func (m *Memory) Clear(_ context.Context, prefix string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	kept := m.items[:0]
	for _, it := range m.items {
		if !strings.HasPrefix(it.key, prefix) {
			kept = append(kept, it)
		}
	}
	clear(m.items[len(kept):])
	m.items = kept
	return nil
}

// Count returns the number of events currently held.
func (m *Memory) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

// Keys returns the keys of all held events in insertion order.
func (m *Memory) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.items))
	for i, it := range m.items {
		out[i] = it.key
	}
	return out
}

// Close marks the store closed; later calls return ErrClosed.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.items = nil
	return nil
}
