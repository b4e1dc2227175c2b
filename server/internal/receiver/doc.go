// Package receiver implements the mock ingestion endpoint that agents
// submit event batches to.
//
// POST /api/v2/events accepts a JSON array of events, optionally gzip
// encoded. Bodies over the configured limit get 413, malformed JSON or an
// event without a type gets 400, and accepted batches are stored and
// answered with 202. A configured fault status short-circuits every
// submission so agent backoff can be exercised against 402, 503 and friends.
// Error bodies are {"message": "..."}.
//
// GET /api/v1/events lists what was received within the retention window,
// optionally filtered with ?type=.
//
// Authentication is enforced upstream by auth.APIKey, so the receiver
// itself only performs structural validation.
package receiver
