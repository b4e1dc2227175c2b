// Package codec holds the agent's CBOR configuration for events at rest.
//
// Queued events are written to local storage as CBOR rather than JSON: the
// encoding is compact, deterministic (RFC 8949 core deterministic encoding,
// sorted map keys) and round-trips time.Time without string formatting.
// fxamacker/cbor reads `json` struct tags, so types.Event needs no extra
// tags to be stored.
//
//	data, err := codec.Marshal(event)
//	err = codec.Unmarshal(data, &event)
package codec
