// Package ingest is the agent's local HTTP surface.
//
// Applications that cannot link the queue directly post events to the agent,
// which enqueues them for batched delivery:
//
//	POST /api/v2/events          one JSON event or a JSON array of events
//	                             (Content-Encoding: gzip accepted) → 202
//	POST /api/v2/events/process  start a drain now, without waiting → 202
//	GET  /healthz                queue state as JSON
//	GET  /metrics                Prometheus text exposition of queue stats
//
// The handler never waits on the ingestion endpoint; a 202 means the events
// were handed to the queue, not that they were delivered.
package ingest
