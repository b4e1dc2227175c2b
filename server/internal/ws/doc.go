// Package ws streams what the mock ingestion server receives to WebSocket
// clients, so a developer can watch an agent drain its queue live.
//
// Hub.ServeHTTP sends a summary on connect. Every accepted batch is pushed
// immediately via Hub.Publish, and Hub.Run sends a fresh summary each
// interval until ctx is cancelled, then closes all connections.
//
// Message format sent to clients:
//
//	{"event": "summary",  "summary": {"count": 3, "generated_at": "..."}}
//	{"event": "received", "events": [ /* store entries, as GET /api/v1/events */ ]}
//
// The upgrader accepts all origins. The endpoint is mounted at /ws/events.
package ws
