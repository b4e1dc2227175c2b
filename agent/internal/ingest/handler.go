package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/exceptionless/exceptionless-go/agent/internal/metrics"
	"github.com/exceptionless/exceptionless-go/agent/internal/queue"
	"github.com/exceptionless/exceptionless-go/pkg/types"
)

// MaxBodyBytes caps the size of a (decompressed) ingest request body.
const MaxBodyBytes = 5 << 20

// Queue is the subset of *queue.Engine the handler needs.
type Queue interface {
	Enqueue(ctx context.Context, ev *types.Event)
	Process(ctx context.Context)
	Stats() queue.Stats
}

// Handler serves the local ingest API.
type Handler struct {
	queue Queue
	mux   *http.ServeMux
}

// New creates a Handler wired to q and registers all routes.
func New(q Queue) http.Handler {
	h := &Handler{queue: q, mux: http.NewServeMux()}

	h.mux.HandleFunc("/api/v2/events", h.postEvents)
	h.mux.HandleFunc("/api/v2/events/process", h.process)
	h.mux.HandleFunc("/healthz", h.health)
	h.mux.Handle("/metrics", metrics.Handler(q))

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// AcceptedResponse is returned by POST /api/v2/events.
type AcceptedResponse struct {
	Accepted int `json:"accepted"`
}

// HealthResponse is returned by GET /healthz.
type HealthResponse struct {
	Processing     bool      `json:"processing"`
	Suspended      bool      `json:"suspended"`
	Discarding     bool      `json:"discarding"`
	SuspendedUntil time.Time `json:"suspended_until,omitempty"`
	BatchSize      int       `json:"batch_size"`
	Enqueued       int64     `json:"enqueued"`
	Submitted      int64     `json:"submitted"`
}

// postEvents handles POST /api/v2/events.
func (h *Handler) postEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	events, err := decodeEvents(w, r)
	if err != nil {
		jsonErr(w, http.StatusBadRequest, err.Error())
		return
	}

	// Enqueue outlives the request; a client disconnect must not lose events.
	ctx := context.WithoutCancel(r.Context())
	for _, ev := range events {
		h.queue.Enqueue(ctx, ev)
	}
	jsonResp(w, http.StatusAccepted, AcceptedResponse{Accepted: len(events)})
}

// process handles POST /api/v2/events/process.
func (h *Handler) process(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	go h.queue.Process(context.Background())
	w.WriteHeader(http.StatusAccepted)
}

// health handles GET /healthz.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s := h.queue.Stats()
	jsonResp(w, http.StatusOK, HealthResponse{
		Processing:     s.Processing,
		Suspended:      s.Suspended,
		Discarding:     s.Discarding,
		SuspendedUntil: s.SuspendedUntil,
		BatchSize:      s.BatchSize,
		Enqueued:       s.Enqueued,
		Submitted:      s.Submitted,
	})
}

// decodeEvents reads a single event object or an array of events.
func decodeEvents(w http.ResponseWriter, r *http.Request) ([]*types.Event, error) {
	var body io.Reader = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	if r.Header.Get("Content-Encoding") == "gzip" {
		zr, err := gzip.NewReader(body)
		if err != nil {
			return nil, fmt.Errorf("invalid gzip body: %w", err)
		}
		defer zr.Close()
		body = io.LimitReader(zr, MaxBodyBytes)
	}

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("empty body")
	}

	if data[0] == '[' {
		var events []*types.Event
		if err := json.Unmarshal(data, &events); err != nil {
			return nil, fmt.Errorf("invalid event array: %w", err)
		}
		out := events[:0]
		for _, ev := range events {
			if ev != nil {
				out = append(out, ev)
			}
		}
		return out, nil
	}

	var ev types.Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, fmt.Errorf("invalid event: %w", err)
	}
	return []*types.Event{&ev}, nil
}

// --- helpers ----------------------------------------------------------------

func jsonResp(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, status int, msg string) {
	jsonResp(w, status, map[string]string{"error": msg})
}
