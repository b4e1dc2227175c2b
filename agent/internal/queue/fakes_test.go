package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/exceptionless/exceptionless-go/agent/internal/storage"
	"github.com/exceptionless/exceptionless-go/agent/internal/submission"
	"github.com/exceptionless/exceptionless-go/pkg/types"
)

const testAPIKey = "LhhP1C9gijpSKCslHHCvwdSIz298twx271nTest"

// countingStore wraps storage.Memory and counts calls.
type countingStore struct {
	*storage.Memory

	mu       sync.Mutex
	saves    int
	gets     int
	clears   int
	getErr   error
	clearErr error
}

func newCountingStore() *countingStore {
	return &countingStore{Memory: storage.NewMemory()}
}

func (s *countingStore) Save(ctx context.Context, key string, ev *types.Event) error {
	s.mu.Lock()
	s.saves++
	s.mu.Unlock()
	return s.Memory.Save(ctx, key, ev)
}

func (s *countingStore) Get(ctx context.Context, prefix string, max int) ([]*types.Event, error) {
	s.mu.Lock()
	s.gets++
	err := s.getErr
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return s.Memory.Get(ctx, prefix, max)
}

func (s *countingStore) Clear(ctx context.Context, prefix string) error {
	s.mu.Lock()
	s.clears++
	err := s.clearErr
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return s.Memory.Clear(ctx, prefix)
}

func (s *countingStore) counts() (saves, gets, clears int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves, s.gets, s.clears
}

// fakeClient returns a canned response and records every batch.
type fakeClient struct {
	mu      sync.Mutex
	resp    *submission.Response
	err     error
	panicV  any
	batches [][]*types.Event

	// entered, when non-nil, receives once per Submit before release is read.
	entered chan struct{}
	release chan struct{}
}

func (c *fakeClient) Submit(ctx context.Context, events []*types.Event, _ submission.Settings) (*submission.Response, error) {
	c.mu.Lock()
	c.batches = append(c.batches, events)
	resp, err, p := c.resp, c.err, c.panicV
	entered, release := c.entered, c.release
	c.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return submission.NewResponse(0, ctx.Err().Error()), nil
		}
	}
	if p != nil {
		panic(p)
	}
	if resp == nil {
		resp = submission.NewResponse(202, "")
	}
	return resp, err
}

func (c *fakeClient) calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.batches)
}

func (c *fakeClient) respond(status int) {
	c.mu.Lock()
	c.resp = submission.NewResponse(status, "")
	c.mu.Unlock()
}

// clock is a settable time source.
type clock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *clock {
	return &clock{t: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type harness struct {
	engine *Engine
	store  *countingStore
	client *fakeClient
	clock  *clock
}

// newHarness builds an enabled engine whose timer never fires during a test.
func newHarness(t *testing.T, batchSize int) *harness {
	t.Helper()
	h := &harness{
		store:  newCountingStore(),
		client: &fakeClient{},
		clock:  newClock(),
	}
	h.engine = New(h.store, h.client, Options{
		Settings: submission.Settings{
			Enabled:             true,
			APIKey:              testAPIKey,
			ServerURL:           "http://localhost:5000",
			SubmissionBatchSize: batchSize,
		},
		ProcessInterval: time.Hour,
		Now:             h.clock.Now,
	})
	t.Cleanup(h.engine.Stop)
	return h
}

func (h *harness) enqueueN(n int) []*types.Event {
	events := make([]*types.Event, n)
	for i := range events {
		events[i] = &types.Event{Type: types.EventTypeLog, ReferenceID: string(rune('a' + i))}
		h.engine.Enqueue(context.Background(), events[i])
	}
	return events
}

var errBoom = errors.New("boom")
