package store

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/exceptionless/exceptionless-go/pkg/types"
)

// Entry is a received event together with the time it arrived.
type Entry struct {
	ID         string       `json:"id"`
	Event      *types.Event `json:"event"`
	ReceivedAt time.Time    `json:"received_at"`
}

// Store is a thread-safe in-memory store of received events, keyed by a
// server-assigned ID. A background goroutine (Run) periodically evicts
// entries older than the configured TTL.
type Store struct {
	mu   sync.RWMutex
	data map[string]*Entry
	ttl  time.Duration
	now  func() time.Time // injectable for deterministic tests
}

// New creates a Store with the given TTL.
func New(ttl time.Duration) *Store {
	return &Store{
		data: make(map[string]*Entry),
		ttl:  ttl,
		now:  time.Now,
	}
}

// Put stores every event in batch under a fresh ID, all sharing one
// receive time, and returns the new entries in batch order.
// Callers must not modify the events after calling Put.
func (s *Store) Put(batch []*types.Event) []*Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	out := make([]*Entry, 0, len(batch))
	for _, ev := range batch {
		e := &Entry{ID: uuid.NewString(), Event: ev, ReceivedAt: now}
		s.data[e.ID] = e
		out = append(out, e)
	}
	return out
}

// Get returns the Entry for id and whether it was found. The entry may be
// stale if the TTL has elapsed but Evict has not run yet.
func (s *Store) Get(id string) (*Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.data[id]
	return e, ok
}

// List returns the entries received within the TTL, oldest first. When
// eventType is non-empty only events of that type are returned.
func (s *Store) List(eventType string) []*Entry {
	s.mu.RLock()
	cutoff := s.now().Add(-s.ttl)
	out := make([]*Entry, 0, len(s.data))
	for _, e := range s.data {
		if !e.ReceivedAt.After(cutoff) {
			continue
		}
		if eventType != "" && e.Event.Type != eventType {
			continue
		}
		out = append(out, e)
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].ReceivedAt.Equal(out[j].ReceivedAt) {
			return out[i].ReceivedAt.Before(out[j].ReceivedAt)
		}
		return out[i].Event.Date.Before(out[j].Event.Date)
	})
	return out
}

// Count returns the total number of entries currently held, including stale ones.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// Evict removes entries received at or before now minus TTL.
// It returns the number of entries removed.
func (s *Store) Evict(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := now.Add(-s.ttl)
	removed := 0
	for id, e := range s.data {
		if !e.ReceivedAt.After(cutoff) {
			delete(s.data, id)
			removed++
		}
	}
	return removed
}

// Run starts the background TTL eviction loop. It ticks at half the TTL
// (minimum 1 second) and blocks until ctx is cancelled.
func (s *Store) Run(ctx context.Context) {
	interval := s.ttl / 2
	if interval < time.Second {
		interval = time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			if n := s.Evict(now); n > 0 {
				slog.Debug("store: evicted received events", "count", n)
			}
		}
	}
}
