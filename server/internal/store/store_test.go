package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/exceptionless/exceptionless-go/pkg/types"
)

func ev(typ, msg string) *types.Event {
	return &types.Event{Type: typ, Message: msg}
}

// fixedClock returns a func() time.Time that always returns t.
func fixedClock(t time.Time) func() time.Time { return func() time.Time { return t } }

func TestPutAndGet(t *testing.T) {
	st := New(5 * time.Minute)
	put := st.Put([]*types.Event{ev(types.EventTypeError, "boom")})
	if len(put) != 1 {
		t.Fatalf("Put: got %d entries, want 1", len(put))
	}

	e, ok := st.Get(put[0].ID)
	if !ok {
		t.Fatal("Get: expected entry, got none")
	}
	if e.Event.Message != "boom" {
		t.Errorf("Message: got %q, want boom", e.Event.Message)
	}
	if e != put[0] {
		t.Errorf("Get returned a different entry than Put")
	}
}

func TestGet_Missing(t *testing.T) {
	st := New(5 * time.Minute)
	if _, ok := st.Get("unknown"); ok {
		t.Fatal("Get on empty store: expected false, got true")
	}
}

func TestPut_AssignsDistinctIDs(t *testing.T) {
	st := New(5 * time.Minute)
	put := st.Put([]*types.Event{ev("log", "a"), ev("log", "b"), ev("log", "c")})
	seen := map[string]bool{}
	for i, e := range put {
		if seen[e.ID] {
			t.Fatalf("duplicate id %q", e.ID)
		}
		seen[e.ID] = true
		if want := []string{"a", "b", "c"}[i]; e.Event.Message != want {
			t.Errorf("entry %d: got %q, want %q", i, e.Event.Message, want)
		}
	}
	if st.Count() != 3 {
		t.Errorf("Count: got %d, want 3", st.Count())
	}
}

func TestList_ExcludesStaleAndOrders(t *testing.T) {
	base := time.Now()
	st := New(5 * time.Minute)

	st.now = fixedClock(base.Add(-10 * time.Minute)) // stale
	st.Put([]*types.Event{ev("log", "old")})

	st.now = fixedClock(base.Add(-time.Minute))
	st.Put([]*types.Event{ev("log", "first")})

	st.now = fixedClock(base)
	st.Put([]*types.Event{ev("log", "second")})

	entries := st.List("")
	if len(entries) != 2 {
		t.Fatalf("List: got %d entries, want 2", len(entries))
	}
	if entries[0].Event.Message != "first" || entries[1].Event.Message != "second" {
		t.Errorf("List order: got %q, %q", entries[0].Event.Message, entries[1].Event.Message)
	}
}

func TestList_FiltersByType(t *testing.T) {
	st := New(5 * time.Minute)
	st.Put([]*types.Event{
		ev(types.EventTypeError, "e1"),
		ev(types.EventTypeUsage, "u1"),
		ev(types.EventTypeError, "e2"),
	})
	if got := len(st.List(types.EventTypeError)); got != 2 {
		t.Errorf("List(error): got %d, want 2", got)
	}
	if got := len(st.List(types.EventTypeUsage)); got != 1 {
		t.Errorf("List(usage): got %d, want 1", got)
	}
}

func TestCount_IncludesStale(t *testing.T) {
	base := time.Now()
	st := New(5 * time.Minute)
	st.now = fixedClock(base.Add(-10 * time.Minute))
	st.Put([]*types.Event{ev("log", "old")})
	st.now = fixedClock(base)
	st.Put([]*types.Event{ev("log", "new")})

	if st.Count() != 2 {
		t.Errorf("Count: got %d, want 2 (stale entries count until evicted)", st.Count())
	}
}

func TestEvict(t *testing.T) {
	base := time.Now()
	st := New(5 * time.Minute)
	st.now = fixedClock(base.Add(-10 * time.Minute))
	st.Put([]*types.Event{ev("log", "old-1"), ev("log", "old-2")})
	st.now = fixedClock(base)
	st.Put([]*types.Event{ev("log", "new")})

	if n := st.Evict(base); n != 2 {
		t.Errorf("Evict: removed %d, want 2", n)
	}
	if st.Count() != 1 {
		t.Errorf("Count after Evict: got %d, want 1", st.Count())
	}
}

func TestEvict_Boundary(t *testing.T) {
	base := time.Now()
	st := New(5 * time.Minute)
	st.now = fixedClock(base.Add(-5 * time.Minute))
	st.Put([]*types.Event{ev("log", "edge")})

	if n := st.Evict(base); n != 1 {
		t.Errorf("Evict at exact TTL: removed %d, want 1", n)
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	st := New(time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		st.Run(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestConcurrentAccess(t *testing.T) {
	st := New(5 * time.Minute)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			st.Put([]*types.Event{ev("log", "x")})
		}()
		go func() {
			defer wg.Done()
			_ = st.List("")
			_ = st.Count()
		}()
	}
	wg.Wait()
	if st.Count() != 50 {
		t.Errorf("Count: got %d, want 50", st.Count())
	}
}
