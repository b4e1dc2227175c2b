package queue

import (
	"context"
	"time"
)

// Start launches the processing timer if it is not already running. It
// also re-arms a timer that was stopped with Stop.
func (e *Engine) Start() {
	e.timerMu.Lock()
	defer e.timerMu.Unlock()
	e.stopped = false
	e.startTimerLocked()
}

// Stop cancels the processing timer and waits for its goroutine to exit,
// including any drain it started. After Stop, Enqueue and Process no longer
// start the timer implicitly; call Start to resume.
func (e *Engine) Stop() {
	e.timerMu.Lock()
	e.stopped = true
	cancel, done := e.timerCancel, e.timerDone
	e.timerCancel, e.timerDone = nil, nil
	e.timerMu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	e.logger.Info("queue: processing timer stopped")
}

// ensureTimer is the lazy start path used by Enqueue and Process.
func (e *Engine) ensureTimer() {
	e.timerMu.Lock()
	defer e.timerMu.Unlock()
	if e.stopped {
		return
	}
	e.startTimerLocked()
}

func (e *Engine) startTimerLocked() {
	if e.timerDone != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	e.timerCancel, e.timerDone = cancel, done

	go e.run(ctx, done)
	e.logger.Debug("queue: processing timer started", "interval", e.interval)
}

// run ticks until ctx is cancelled. A tick is skipped while processing is
// suspended or a drain is already in flight.
func (e *Engine) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	t := time.NewTicker(e.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if e.IsProcessingSuspended() || e.processing.Load() {
				continue
			}
			e.Process(ctx)
		}
	}
}
