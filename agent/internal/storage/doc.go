// Package storage persists queued events between enqueue and submission.
//
// Storage is the contract the queue engine depends on:
//   - Save(key, event) appends one event under key. Keys carry the queue path
//     as a prefix; the engine makes them unique.
//   - Get(prefix, max) dequeues up to max events whose key starts with prefix,
//     oldest first. Returned events are removed from the store; the engine
//     re-saves them under fresh keys when a batch must be retried.
//   - Clear(prefix) removes every event under prefix.
//
// Two implementations are provided:
//   - Memory: a mutex-guarded slice, lost on restart. Used by tests and by
//     the agent with `storage.backend: memory`.
//   - SQLite: a zombiezen.com/go/sqlite connection pool storing CBOR-encoded
//     events in a single table ordered by an autoincrement row id, so
//     events survive agent restarts.
package storage
