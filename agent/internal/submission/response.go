package submission

import (
	"context"
	"net/http"

	"github.com/exceptionless/exceptionless-go/pkg/types"
)

// Settings are the per-submission values read from the engine.
type Settings struct {
	Enabled   bool
	APIKey    string
	ServerURL string

	// SubmissionBatchSize is the batch size in effect when the batch was
	// taken from storage.
	SubmissionBatchSize int
}

// Response is the structured outcome of one submission. At most one of the
// category flags is true; Success excludes all others.
type Response struct {
	StatusCode int
	Message    string

	Success               bool
	ServiceUnavailable    bool
	PaymentRequired       bool
	UnableToAuthenticate  bool
	NotFound              bool
	BadRequest            bool
	RequestEntityTooLarge bool
}

// NewResponse classifies an HTTP status code. StatusCode 0 means the request
// never produced a response (connection or timeout failure).
func NewResponse(statusCode int, message string) *Response {
	r := &Response{StatusCode: statusCode, Message: message}
	switch {
	case statusCode >= 200 && statusCode <= 299:
		r.Success = true
	case statusCode == http.StatusServiceUnavailable, statusCode == http.StatusTooManyRequests:
		r.ServiceUnavailable = true
	case statusCode == http.StatusPaymentRequired:
		r.PaymentRequired = true
	case statusCode == http.StatusUnauthorized, statusCode == http.StatusForbidden:
		r.UnableToAuthenticate = true
	case statusCode == http.StatusNotFound:
		r.NotFound = true
	case statusCode == http.StatusBadRequest:
		r.BadRequest = true
	case statusCode == http.StatusRequestEntityTooLarge:
		r.RequestEntityTooLarge = true
	}
	return r
}

// Client submits a batch of events.
type Client interface {
	Submit(ctx context.Context, events []*types.Event, settings Settings) (*Response, error)
}
