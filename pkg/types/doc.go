// Package types defines the event model shared by the agent and the mock
// ingestion server. Event is the unit that is queued, persisted and submitted
// in batches; its JSON form is the wire format accepted by the ingestion API
// (POST /api/v2/events) and its CBOR form is what the agent keeps on disk.
package types
