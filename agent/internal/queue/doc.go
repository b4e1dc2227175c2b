// Package queue is the event buffering and delivery engine.
//
// Engine.Enqueue persists an event under a fresh key in storage unless a
// discard window is active. Engine.Process drains one batch: it dequeues up
// to BatchSize events, submits them and applies the response policy:
//
//	success                  log, no state change
//	service unavailable      suspend 5m, requeue the batch
//	payment required         suspend and discard new events 5m, clear the queue, drop
//	unable to authenticate   suspend 15m, drop
//	not found / bad request  suspend 240m, drop
//	entity too large         shrink batch size by 1.5 and requeue; drop at size 1
//	anything else            suspend 5m, requeue the batch
//
// At most one drain is in flight at a time; a Process call that finds one
// running returns immediately. Process blocks for the duration of the
// submission, so callers that must not wait use `go engine.Process(ctx)`.
//
// A ticker calls Process every ProcessInterval (10s by default) while
// processing is not suspended. The ticker starts lazily on the first Enqueue
// or Process call, or explicitly via Start, and runs until Stop.
//
// Enqueue and Process never return errors: every failure is logged and
// reflected in Stats.
package queue
