package submission

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/exceptionless/exceptionless-go/pkg/types"
)

const (
	// EventsPath is appended to the server URL for batch submission.
	EventsPath = "/api/v2/events"

	// UserAgent identifies the agent to the ingestion endpoint.
	UserAgent = "exceptionless-go/1.0"

	defaultTimeout = 30 * time.Second

	// maxMessageBytes caps how much of an error body is kept as Message.
	maxMessageBytes = 1024
)

// HTTPConfig configures an HTTPClient.
type HTTPConfig struct {
	// Timeout bounds each submission request. Defaults to 30s.
	Timeout time.Duration

	// Compress gzips request bodies and sets Content-Encoding: gzip.
	Compress bool

	// TLS configures server certificate verification.
	TLS TLSConfig

	// Client overrides the underlying http.Client (tests inject the
	// httptest server client here). Timeout and TLS are ignored when set.
	Client *http.Client
}

// HTTPClient is the Client used against a real ingestion endpoint.
type HTTPClient struct {
	client   *http.Client
	compress bool
}

// NewHTTPClient builds an HTTPClient from cfg. It fails only when the TLS
// settings reference an unreadable or empty CA file.
func NewHTTPClient(cfg HTTPConfig) (*HTTPClient, error) {
	if cfg.Client != nil {
		client := *cfg.Client
		base := client.Transport
		if base == nil {
			base = http.DefaultTransport
		}
		client.Transport = &agentRoundTripper{base: base}
		return &HTTPClient{client: &client, compress: cfg.Compress}, nil
	}

	client, err := buildHTTPClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("submission: build http client: %w", err)
	}
	return &HTTPClient{client: client, compress: cfg.Compress}, nil
}

// Submit posts events as a JSON array. The returned error is non-nil only
// when the request cannot be built; transport failures come back as a
// Response with StatusCode 0.
func (c *HTTPClient) Submit(ctx context.Context, events []*types.Event, settings Settings) (*Response, error) {
	body, err := c.encode(events)
	if err != nil {
		return nil, err
	}

	url := strings.TrimRight(settings.ServerURL, "/") + EventsPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("submission: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+settings.APIKey)
	if c.compress {
		req.Header.Set("Content-Encoding", "gzip")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		slog.Warn("submission: request failed", "url", url, "events", len(events), "err", err)
		return NewResponse(0, err.Error()), nil
	}
	defer resp.Body.Close()

	return NewResponse(resp.StatusCode, readMessage(resp)), nil
}

// encode marshals events to JSON, gzipping when enabled.
func (c *HTTPClient) encode(events []*types.Event) ([]byte, error) {
	raw, err := json.Marshal(events)
	if err != nil {
		return nil, fmt.Errorf("submission: encode events: %w", err)
	}
	if !c.compress {
		return raw, nil
	}

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(raw); err != nil {
		return nil, fmt.Errorf("submission: gzip: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("submission: gzip close: %w", err)
	}
	return buf.Bytes(), nil
}

// readMessage returns a short human-readable description of the response.
// Successful responses drain the body so the connection can be reused.
func readMessage(resp *http.Response) string {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxMessageBytes))
	_, _ = io.Copy(io.Discard, resp.Body)

	if msg := strings.TrimSpace(string(data)); msg != "" {
		var problem struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(data, &problem) == nil && problem.Message != "" {
			return problem.Message
		}
		return msg
	}
	return http.StatusText(resp.StatusCode)
}
