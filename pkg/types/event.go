package types

import "time"

// Event types understood by the ingestion API.
const (
	EventTypeError    = "error"
	EventTypeUsage    = "usage"
	EventTypeLog      = "log"
	EventTypeNotFound = "404"
	EventTypeSession  = "session"
)

// Event is a single error, usage signal or log entry reported by an
// instrumented application. Data carries the free-form payload; the agent
// never inspects it.
type Event struct {
	// Type is the event discriminator, e.g. "error" or "usage".
	Type string `json:"type"`

	// ReferenceID is an optional caller-supplied identifier that lets the
	// application look the event up later.
	ReferenceID string `json:"reference_id,omitempty"`

	Date    time.Time `json:"date,omitempty"`
	Source  string    `json:"source,omitempty"`
	Message string    `json:"message,omitempty"`
	Tags    []string  `json:"tags,omitempty"`
	Value   float64   `json:"value,omitempty"`
	Count   int       `json:"count,omitempty"`

	Data map[string]any `json:"data,omitempty"`
}
