package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/exceptionless/exceptionless-go/agent/internal/queue"
	"github.com/exceptionless/exceptionless-go/pkg/types"
)

type fakeQueue struct {
	mu        sync.Mutex
	events    []*types.Event
	processed chan struct{}
	stats     queue.Stats
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{processed: make(chan struct{}, 1)}
}

func (q *fakeQueue) Enqueue(_ context.Context, ev *types.Event) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.events = append(q.events, ev)
}

func (q *fakeQueue) Process(context.Context) {
	q.processed <- struct{}{}
}

func (q *fakeQueue) Stats() queue.Stats { return q.stats }

func (q *fakeQueue) enqueued() []*types.Event {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]*types.Event(nil), q.events...)
}

func post(t *testing.T, h http.Handler, path string, body []byte, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestPostEvents_Single(t *testing.T) {
	q := newFakeQueue()
	rec := post(t, New(q), "/api/v2/events", []byte(`{"type":"error","reference_id":"abc","message":"boom"}`), nil)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status: got %d, want 202 (%s)", rec.Code, rec.Body)
	}
	got := q.enqueued()
	if len(got) != 1 {
		t.Fatalf("enqueued: got %d, want 1", len(got))
	}
	if got[0].Type != "error" || got[0].ReferenceID != "abc" {
		t.Errorf("event: got %+v", got[0])
	}
	var resp AcceptedResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Accepted != 1 {
		t.Errorf("accepted: got %d, want 1", resp.Accepted)
	}
}

func TestPostEvents_ArrayPreservesOrderAndSkipsNulls(t *testing.T) {
	q := newFakeQueue()
	body := `[{"type":"log","reference_id":"1"},null,{"type":"usage","reference_id":"2"}]`
	rec := post(t, New(q), "/api/v2/events", []byte(body), nil)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status: got %d, want 202", rec.Code)
	}
	got := q.enqueued()
	if len(got) != 2 {
		t.Fatalf("enqueued: got %d, want 2", len(got))
	}
	if got[0].ReferenceID != "1" || got[1].ReferenceID != "2" {
		t.Errorf("order: got %q, %q", got[0].ReferenceID, got[1].ReferenceID)
	}
}

func TestPostEvents_Gzip(t *testing.T) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	zw.Write([]byte(`[{"type":"log"},{"type":"log"}]`)) //nolint:errcheck
	zw.Close()

	q := newFakeQueue()
	rec := post(t, New(q), "/api/v2/events", buf.Bytes(), map[string]string{"Content-Encoding": "gzip"})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status: got %d, want 202 (%s)", rec.Code, rec.Body)
	}
	if n := len(q.enqueued()); n != 2 {
		t.Errorf("enqueued: got %d, want 2", n)
	}
}

func TestPostEvents_BadRequests(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		header map[string]string
	}{
		{"empty", "", nil},
		{"malformed", "{not json", nil},
		{"bad array", "[1,2]", nil},
		{"bad gzip", "plain", map[string]string{"Content-Encoding": "gzip"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			q := newFakeQueue()
			rec := post(t, New(q), "/api/v2/events", []byte(tc.body), tc.header)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status: got %d, want 400", rec.Code)
			}
			if n := len(q.enqueued()); n != 0 {
				t.Errorf("enqueued: got %d, want 0", n)
			}
		})
	}
}

func TestPostEvents_MethodNotAllowed(t *testing.T) {
	rec := httptest.NewRecorder()
	New(newFakeQueue()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v2/events", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status: got %d, want 405", rec.Code)
	}
}

func TestProcess_TriggersDrain(t *testing.T) {
	q := newFakeQueue()
	rec := post(t, New(q), "/api/v2/events/process", nil, nil)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status: got %d, want 202", rec.Code)
	}
	select {
	case <-q.processed:
	case <-time.After(time.Second):
		t.Fatal("Process was not called")
	}
}

func TestHealth(t *testing.T) {
	q := newFakeQueue()
	q.stats = queue.Stats{Suspended: true, BatchSize: 7, Enqueued: 3}

	rec := httptest.NewRecorder()
	New(q).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rec.Code)
	}
	var resp HealthResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Suspended || resp.BatchSize != 7 || resp.Enqueued != 3 {
		t.Errorf("health: got %+v", resp)
	}
}

func TestMetricsRoute(t *testing.T) {
	q := newFakeQueue()
	q.stats = queue.Stats{BatchSize: 5}

	rec := httptest.NewRecorder()
	New(q).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "exceptionless_queue_batch_size 5") {
		t.Errorf("metrics body missing batch size:\n%s", rec.Body)
	}
}
