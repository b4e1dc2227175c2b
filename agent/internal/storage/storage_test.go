package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/exceptionless/exceptionless-go/pkg/types"
)

// backends runs fn against every Storage implementation.
func backends(t *testing.T, fn func(t *testing.T, st Storage)) {
	t.Helper()
	t.Run("memory", func(t *testing.T) {
		fn(t, NewMemory())
	})
	t.Run("sqlite", func(t *testing.T) {
		st, err := OpenSQLite(SQLiteConfig{Path: filepath.Join(t.TempDir(), "queue.db")})
		if err != nil {
			t.Fatalf("OpenSQLite: %v", err)
		}
		t.Cleanup(func() { st.Close() })
		fn(t, st)
	})
}

func ev(ref string) *types.Event {
	return &types.Event{Type: types.EventTypeLog, ReferenceID: ref}
}

func saveN(t *testing.T, st Storage, prefix string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		key := fmt.Sprintf("%s-%03d", prefix, i)
		if err := st.Save(context.Background(), key, ev(key)); err != nil {
			t.Fatalf("Save(%s): %v", key, err)
		}
	}
}

func TestGet_OldestFirstAndBounded(t *testing.T) {
	backends(t, func(t *testing.T, st Storage) {
		ctx := context.Background()
		saveN(t, st, "q", 5)

		got, err := st.Get(ctx, "q", 3)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if len(got) != 3 {
			t.Fatalf("Get: got %d events, want 3", len(got))
		}
		for i, want := range []string{"q-000", "q-001", "q-002"} {
			if got[i].ReferenceID != want {
				t.Errorf("got[%d]: got %q, want %q", i, got[i].ReferenceID, want)
			}
		}

		rest, err := st.Get(ctx, "q", 10)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if len(rest) != 2 {
			t.Fatalf("second Get: got %d events, want 2", len(rest))
		}
		if rest[0].ReferenceID != "q-003" {
			t.Errorf("rest[0]: got %q, want q-003", rest[0].ReferenceID)
		}

		empty, err := st.Get(ctx, "q", 10)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if len(empty) != 0 {
			t.Errorf("Get on drained store: got %d events, want 0", len(empty))
		}
	})
}

func TestGet_FiltersByPrefix(t *testing.T) {
	backends(t, func(t *testing.T, st Storage) {
		ctx := context.Background()
		saveN(t, st, "other", 2)
		saveN(t, st, "ex-q", 2)

		got, err := st.Get(ctx, "ex-q", 10)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("Get: got %d events, want 2", len(got))
		}
		for _, e := range got {
			if e.ReferenceID[:4] != "ex-q" {
				t.Errorf("unexpected event %q outside prefix", e.ReferenceID)
			}
		}

		others, err := st.Get(ctx, "other", 10)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if len(others) != 2 {
			t.Errorf("events outside prefix: got %d, want 2", len(others))
		}
	})
}

func TestGet_ZeroMax(t *testing.T) {
	backends(t, func(t *testing.T, st Storage) {
		saveN(t, st, "q", 1)
		got, err := st.Get(context.Background(), "q", 0)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if len(got) != 0 {
			t.Errorf("Get(max=0): got %d events, want 0", len(got))
		}
	})
}

func TestClear_OnlyPrefix(t *testing.T) {
	backends(t, func(t *testing.T, st Storage) {
		ctx := context.Background()
		saveN(t, st, "ex-q", 3)
		saveN(t, st, "keep", 1)

		if err := st.Clear(ctx, "ex-q"); err != nil {
			t.Fatalf("Clear: %v", err)
		}

		got, err := st.Get(ctx, "ex-q", 10)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if len(got) != 0 {
			t.Errorf("after Clear: got %d events, want 0", len(got))
		}
		kept, err := st.Get(ctx, "keep", 10)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if len(kept) != 1 {
			t.Errorf("unrelated prefix after Clear: got %d events, want 1", len(kept))
		}
	})
}

func TestSQLite_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queue.db")
	ctx := context.Background()

	st, err := OpenSQLite(SQLiteConfig{Path: path})
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	saveN(t, st, "ex-q", 2)
	if err := st.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	st, err = OpenSQLite(SQLiteConfig{Path: path})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer st.Close()

	n, err := st.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 2 {
		t.Fatalf("Count after reopen: got %d, want 2", n)
	}
	got, err := st.Get(ctx, "ex-q", 10)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(got) != 2 || got[0].ReferenceID != "ex-q-000" {
		t.Errorf("Get after reopen: got %+v", got)
	}
}

func TestSQLite_RequiresPath(t *testing.T) {
	if _, err := OpenSQLite(SQLiteConfig{}); err == nil {
		t.Fatal("expected error for empty path, got nil")
	}
}

func TestMemory_ClosedReturnsErr(t *testing.T) {
	m := NewMemory()
	m.Close()
	if err := m.Save(context.Background(), "k", ev("k")); err != ErrClosed {
		t.Errorf("Save after Close: got %v, want ErrClosed", err)
	}
	if _, err := m.Get(context.Background(), "k", 1); err != ErrClosed {
		t.Errorf("Get after Close: got %v, want ErrClosed", err)
	}
}
