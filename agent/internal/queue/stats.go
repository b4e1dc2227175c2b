package queue

import (
	"sync"
	"time"
)

// DropReason represents why events were discarded instead of delivered.
type DropReason string

const (
	// ReasonDiscardWindow means the event was enqueued while a discard
	// window was active.
	ReasonDiscardWindow DropReason = "discard_window"

	// ReasonPaymentRequired means the endpoint reported an exhausted quota.
	ReasonPaymentRequired DropReason = "payment_required"

	// ReasonUnauthenticated means the endpoint rejected the API key.
	ReasonUnauthenticated DropReason = "unauthenticated"

	// ReasonEndpointError means the endpoint answered not found or bad request.
	ReasonEndpointError DropReason = "endpoint_error"

	// ReasonTooLarge means a single event was rejected as too large.
	ReasonTooLarge DropReason = "too_large"

	// ReasonProcessingError means the batch was lost to a storage or
	// submission invocation failure.
	ReasonProcessingError DropReason = "processing_error"
)

// Stats is a point-in-time view of the engine.
type Stats struct {
	Enqueued  int64
	Submitted int64
	Requeued  int64
	Dropped   map[DropReason]int64

	Processing     bool
	Suspended      bool
	Discarding     bool
	SuspendedUntil time.Time
	DiscardUntil   time.Time
	BatchSize      int
	LastStatusCode int
}

// counters accumulate lifetime totals.
type counters struct {
	mu         sync.Mutex
	enqueued   int64
	submitted  int64
	requeued   int64
	dropped    map[DropReason]int64
	lastStatus int
}

func (c *counters) addEnqueued() {
	c.mu.Lock()
	c.enqueued++
	c.mu.Unlock()
}

func (c *counters) addSubmitted(n int, status int) {
	c.mu.Lock()
	c.submitted += int64(n)
	c.lastStatus = status
	c.mu.Unlock()
}

func (c *counters) setStatus(status int) {
	c.mu.Lock()
	c.lastStatus = status
	c.mu.Unlock()
}

func (c *counters) addRequeued(n int) {
	c.mu.Lock()
	c.requeued += int64(n)
	c.mu.Unlock()
}

func (c *counters) addDropped(reason DropReason, n int) {
	c.mu.Lock()
	if c.dropped == nil {
		c.dropped = make(map[DropReason]int64)
	}
	c.dropped[reason] += int64(n)
	c.mu.Unlock()
}

func (c *counters) fill(s *Stats) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s.Enqueued = c.enqueued
	s.Submitted = c.submitted
	s.Requeued = c.requeued
	s.LastStatusCode = c.lastStatus
	s.Dropped = make(map[DropReason]int64, len(c.dropped))
	for k, v := range c.dropped {
		s.Dropped[k] = v
	}
}

// Stats returns a snapshot of the engine's counters and state.
func (e *Engine) Stats() Stats {
	var s Stats
	e.stats.fill(&s)

	e.mu.Lock()
	now := e.now()
	s.Suspended = e.window.suspended(now)
	s.Discarding = e.window.discarding(now)
	s.SuspendedUntil = e.window.suspendUntil
	s.DiscardUntil = e.window.discardUntil
	s.BatchSize = e.settings.SubmissionBatchSize
	e.mu.Unlock()

	s.Processing = e.processing.Load()
	return s
}
