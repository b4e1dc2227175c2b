package queue

import (
	"context"
	"time"
)

// Suspension durations applied by the response policy.
const (
	DefaultSuspension     = 5 * time.Minute
	AuthFailureSuspension = 15 * time.Minute
	ConfigErrorSuspension = 240 * time.Minute
)

const clearTimeout = 10 * time.Second

// window tracks the two independent backoff deadlines. A zero time means
// the window was never set.
type window struct {
	suspendUntil time.Time
	discardUntil time.Time
}

func (w window) suspended(now time.Time) bool {
	return !w.suspendUntil.IsZero() && w.suspendUntil.After(now)
}

func (w window) discarding(now time.Time) bool {
	return !w.discardUntil.IsZero() && w.discardUntil.After(now)
}

// SuspendProcessing skips drains for d (DefaultSuspension when d <= 0). With
// discardNew, events enqueued during the same period are dropped. With
// clearQueue, already queued events are removed; a failure to clear is
// logged and otherwise ignored.
func (e *Engine) SuspendProcessing(d time.Duration, discardNew, clearQueue bool) {
	if d <= 0 {
		d = DefaultSuspension
	}

	e.mu.Lock()
	until := e.now().Add(d)
	e.window.suspendUntil = until
	if discardNew {
		e.window.discardUntil = until
	}
	e.mu.Unlock()

	e.logger.Info("queue: suspending processing",
		"duration", d, "until", until, "discard_new", discardNew)

	if clearQueue {
		e.clearQueue()
	}
}

// IsProcessingSuspended reports whether drains are currently skipped.
func (e *Engine) IsProcessingSuspended() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.window.suspended(e.now())
}

// IsDiscarding reports whether newly enqueued events are currently dropped.
func (e *Engine) IsDiscarding() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.window.discarding(e.now())
}

func (e *Engine) clearQueue() {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn("queue: clearing queue panicked", "panic", r)
		}
	}()
	ctx, cancel := context.WithTimeout(context.Background(), clearTimeout)
	defer cancel()
	if err := e.store.Clear(ctx, QueuePath); err != nil {
		e.logger.Warn("queue: unable to clear queue", "err", err)
	}
}
