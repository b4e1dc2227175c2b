package receiver

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/klauspost/compress/gzip"

	"github.com/exceptionless/exceptionless-go/pkg/types"
	"github.com/exceptionless/exceptionless-go/server/internal/store"
)

// Fault forces a status on every submission. Status 0 disables it.
type Fault struct {
	Status  int
	Message string
}

// Notifier is told about every accepted batch.
type Notifier interface {
	Publish(entries []*store.Entry)
}

// Options configures a Receiver.
type Options struct {
	// MaxBodyBytes caps the decompressed submission size; larger bodies
	// are answered with 413.
	MaxBodyBytes int64

	Fault Fault

	// Notifier is optional.
	Notifier Notifier
}

// Receiver serves the event submission endpoint and the received-events
// listing. Authentication is applied by the caller (see package auth).
type Receiver struct {
	store *store.Store
	opts  Options
	mux   *http.ServeMux
}

// New creates a Receiver that writes accepted events to st.
func New(st *store.Store, opts Options) *Receiver {
	r := &Receiver{store: st, opts: opts, mux: http.NewServeMux()}
	r.mux.HandleFunc("/api/v2/events", r.submit)
	r.mux.HandleFunc("/api/v1/events", r.list)
	return r
}

func (r *Receiver) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// SubmitResponse is returned by a successful POST /api/v2/events.
type SubmitResponse struct {
	Accepted int      `json:"accepted"`
	IDs      []string `json:"ids"`
}

// ListResponse is returned by GET /api/v1/events.
type ListResponse struct {
	Count  int            `json:"count"`
	Events []*store.Entry `json:"events"`
}

// submit handles POST /api/v2/events.
func (r *Receiver) submit(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if f := r.opts.Fault; f.Status != 0 {
		msg := f.Message
		if msg == "" {
			msg = http.StatusText(f.Status)
		}
		slog.Debug("receiver: fault injected", "status", f.Status)
		if f.Status == http.StatusServiceUnavailable || f.Status == http.StatusTooManyRequests {
			w.Header().Set("Retry-After", strconv.Itoa(300))
		}
		jsonErr(w, f.Status, msg)
		return
	}

	events, err := r.decode(w, req)
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		jsonErr(w, http.StatusRequestEntityTooLarge, "request entity too large")
		return
	case err != nil:
		jsonErr(w, http.StatusBadRequest, err.Error())
		return
	}

	entries := r.store.Put(events)
	slog.Debug("receiver: events stored", "count", len(entries))
	if r.opts.Notifier != nil {
		r.opts.Notifier.Publish(entries)
	}

	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}
	jsonResp(w, http.StatusAccepted, SubmitResponse{Accepted: len(ids), IDs: ids})
}

// list handles GET /api/v1/events?type=<event type>.
func (r *Receiver) list(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	entries := r.store.List(req.URL.Query().Get("type"))
	jsonResp(w, http.StatusOK, ListResponse{Count: len(entries), Events: entries})
}

// decode reads a JSON array of events, transparently un-gzipping. The size
// limit applies to the decompressed stream.
func (r *Receiver) decode(w http.ResponseWriter, req *http.Request) ([]*types.Event, error) {
	var body io.ReadCloser = req.Body
	if req.Header.Get("Content-Encoding") == "gzip" {
		zr, err := gzip.NewReader(req.Body)
		if err != nil {
			return nil, fmt.Errorf("invalid gzip body: %w", err)
		}
		defer zr.Close()
		body = zr
	}
	body = http.MaxBytesReader(w, body, r.opts.MaxBodyBytes)

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '[' {
		return nil, fmt.Errorf("expected a JSON array of events")
	}

	var events []*types.Event
	if err := json.Unmarshal(data, &events); err != nil {
		return nil, fmt.Errorf("invalid event array: %w", err)
	}
	out := events[:0]
	for _, ev := range events {
		if ev == nil {
			continue
		}
		if ev.Type == "" {
			return nil, fmt.Errorf("event type is required")
		}
		out = append(out, ev)
	}
	return out, nil
}

// --- helpers ----------------------------------------------------------------

func jsonResp(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

// jsonErr writes {"message": msg}, the shape the agent reads into
// Response.Message.
func jsonErr(w http.ResponseWriter, status int, msg string) {
	jsonResp(w, status, map[string]string{"message": msg})
}
