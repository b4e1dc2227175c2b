// Package submission delivers batches of events to the ingestion endpoint.
//
// Client is the transport contract the queue engine depends on. Submit
// returns a Response describing the outcome in the categories the queue's
// retry policy distinguishes (success, service unavailable, payment required,
// unable to authenticate, not found, bad request, request entity too large).
// A non-nil error is reserved for failures to build the request at all;
// network failures are reported as a Response with StatusCode 0 so the
// batch is retried like any other non-success.
//
// HTTPClient posts a JSON array to <server_url>/api/v2/events with the API
// key as a bearer token, optionally gzip-compressed (klauspost/compress).
// Every request carries the agent User-Agent via a RoundTripper; TLS roots
// and verification are configurable. The http.Client is injectable for tests
// (httptest.Server).
package submission
