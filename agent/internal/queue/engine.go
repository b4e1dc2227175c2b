package queue

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/exceptionless/exceptionless-go/agent/internal/storage"
	"github.com/exceptionless/exceptionless-go/agent/internal/submission"
	"github.com/exceptionless/exceptionless-go/pkg/types"
)

const (
	// DefaultProcessInterval is the timer cadence when Options leaves it zero.
	DefaultProcessInterval = 10 * time.Second

	// MinAPIKeyLength is the shortest API key the engine will submit with.
	MinAPIKeyLength = 10

	// batchShrinkFactor divides the batch size after an oversize rejection.
	batchShrinkFactor = 1.5
)

// EventsPostedHandler is called after every submission response, once the
// response policy has been applied.
type EventsPostedHandler func(events []*types.Event, resp *submission.Response)

// Options configures an Engine.
type Options struct {
	// Settings are the initial submission settings. A SubmissionBatchSize
	// below 1 is raised to 1.
	Settings submission.Settings

	// ProcessInterval is the drain cadence. Defaults to 10s.
	ProcessInterval time.Duration

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// Now is injectable for deterministic tests. Defaults to time.Now.
	Now func() time.Time
}

// Engine buffers events in storage and drains them to a submission client.
// It is safe for concurrent use. One Engine owns one queue path in one store.
type Engine struct {
	store    storage.Storage
	client   submission.Client
	logger   *slog.Logger
	now      func() time.Time
	interval time.Duration

	// mu guards settings, window and handlers.
	mu       sync.Mutex
	settings submission.Settings
	window   window
	handlers []EventsPostedHandler

	// processing is true exactly while a drain is in flight.
	processing atomic.Bool

	timerMu     sync.Mutex
	timerCancel context.CancelFunc
	timerDone   chan struct{}
	stopped     bool

	stats counters
}

// New creates an Engine. The processing timer is not started until the
// first Enqueue, Process or Start call.
func New(store storage.Storage, client submission.Client, opts Options) *Engine {
	if store == nil {
		panic("queue: nil Storage")
	}
	if client == nil {
		panic("queue: nil submission Client")
	}

	e := &Engine{
		store:    store,
		client:   client,
		logger:   opts.Logger,
		now:      opts.Now,
		interval: opts.ProcessInterval,
		settings: opts.Settings,
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.interval <= 0 {
		e.interval = DefaultProcessInterval
	}
	if e.settings.SubmissionBatchSize < 1 {
		e.settings.SubmissionBatchSize = 1
	}
	return e
}

// Enqueue persists ev for a later drain. While a discard window is active
// the event is dropped. Enqueue never fails; storage errors are logged.
func (e *Engine) Enqueue(ctx context.Context, ev *types.Event) {
	e.ensureTimer()
	defer e.recoverPanic("enqueue")

	if ev == nil {
		e.logger.Warn("queue: ignoring nil event")
		return
	}

	if e.IsDiscarding() {
		e.logger.Info("queue: discarding event, queue is in a discard window",
			"type", ev.Type, "reference_id", ev.ReferenceID)
		e.stats.addDropped(ReasonDiscardWindow, 1)
		return
	}

	key := NewKey(e.now())
	if err := e.store.Save(ctx, key, ev); err != nil {
		e.logger.Error("queue: unable to save event", "key", key, "err", err)
		return
	}
	e.stats.addEnqueued()
	e.logger.Debug("queue: enqueued event", "key", key, "type", ev.Type)
}

// Process drains one batch. It returns immediately when a drain is already
// in flight, when submission is disabled, or when the API key is missing or
// too short. Otherwise it blocks until the submission completes and the
// response policy has been applied.
func (e *Engine) Process(ctx context.Context) {
	e.ensureTimer()

	if e.processing.Load() {
		return
	}

	settings := e.Settings()
	if !settings.Enabled {
		e.logger.Info("queue: configuration is disabled, skipping processing")
		return
	}
	if len(settings.APIKey) < MinAPIKeyLength {
		e.logger.Info("queue: API key is not configured, skipping processing")
		return
	}

	if !e.processing.CompareAndSwap(false, true) {
		return
	}
	defer e.processing.Store(false)

	e.drain(ctx, settings)
}

// drain runs one retrieval and submission. Any failure before a response is
// available suspends processing for the default duration.
func (e *Engine) drain(ctx context.Context, settings submission.Settings) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("queue: error processing queue", "panic", r)
			e.SuspendProcessing(0, false, false)
		}
	}()

	events, err := e.store.Get(ctx, QueuePath, settings.SubmissionBatchSize)
	if err != nil {
		e.logger.Error("queue: error retrieving events", "err", err)
		e.SuspendProcessing(0, false, false)
		return
	}
	if len(events) == 0 {
		return
	}

	e.logger.Info("queue: sending events", "count", len(events), "batch_size", settings.SubmissionBatchSize)

	resp, err := e.client.Submit(ctx, events, settings)
	if err != nil {
		e.logger.Error("queue: error submitting events", "count", len(events), "err", err)
		e.stats.addDropped(ReasonProcessingError, len(events))
		e.SuspendProcessing(0, false, false)
		return
	}

	// Requeue must not be lost to the caller's cancellation (e.g. Stop).
	e.handleResponse(context.WithoutCancel(ctx), events, resp)
	e.eventsPosted(events, resp)
}

// handleResponse applies the response policy. Exactly one branch runs.
func (e *Engine) handleResponse(ctx context.Context, events []*types.Event, resp *submission.Response) {
	n := len(events)
	switch {
	case resp.Success:
		e.stats.addSubmitted(n, resp.StatusCode)
		e.logger.Info("queue: sent events", "count", n)

	case resp.ServiceUnavailable:
		e.stats.setStatus(resp.StatusCode)
		e.logger.Error("queue: server returned service unavailable", "message", resp.Message)
		e.SuspendProcessing(0, false, false)
		e.requeue(ctx, events)

	case resp.PaymentRequired:
		e.stats.setStatus(resp.StatusCode)
		e.stats.addDropped(ReasonPaymentRequired, n)
		e.logger.Info("queue: too many events have been submitted, please upgrade your plan",
			"message", resp.Message)
		e.SuspendProcessing(0, true, true)

	case resp.UnableToAuthenticate:
		e.stats.setStatus(resp.StatusCode)
		e.stats.addDropped(ReasonUnauthenticated, n)
		e.logger.Info("queue: unable to authenticate, please check your API key",
			"message", resp.Message)
		e.SuspendProcessing(AuthFailureSuspension, false, false)

	case resp.NotFound || resp.BadRequest:
		e.stats.setStatus(resp.StatusCode)
		e.stats.addDropped(ReasonEndpointError, n)
		e.logger.Error("queue: error while trying to submit data",
			"status", resp.StatusCode, "message", resp.Message)
		e.SuspendProcessing(ConfigErrorSuspension, false, false)

	case resp.RequestEntityTooLarge:
		e.stats.setStatus(resp.StatusCode)
		if from, to, ok := e.shrinkBatch(); ok {
			e.logger.Error("queue: event submission payload too large, retrying with a smaller batch",
				"batch_size", to, "previous_batch_size", from)
			e.requeue(ctx, events)
		} else {
			e.stats.addDropped(ReasonTooLarge, n)
			e.logger.Error("queue: unable to send event, payload too large at batch size 1",
				"count", n, "message", resp.Message)
		}

	default:
		e.stats.setStatus(resp.StatusCode)
		msg := resp.Message
		if msg == "" {
			msg = "no error message"
		}
		e.logger.Error("queue: error submitting events",
			"status", resp.StatusCode, "message", msg)
		e.SuspendProcessing(0, false, false)
		e.requeue(ctx, events)
	}
}

// shrinkBatch divides the batch size by 1.5, rounding, with a floor of 1.
// It reports false when the size was already 1.
func (e *Engine) shrinkBatch() (from, to int, ok bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	from = e.settings.SubmissionBatchSize
	if from <= 1 {
		return from, from, false
	}
	to = int(math.Round(float64(from) / batchShrinkFactor))
	if to < 1 {
		to = 1
	}
	e.settings.SubmissionBatchSize = to
	return from, to, true
}

// requeue enqueues each event again, in order, under fresh keys.
func (e *Engine) requeue(ctx context.Context, events []*types.Event) {
	for _, ev := range events {
		e.Enqueue(ctx, ev)
	}
	e.stats.addRequeued(len(events))
}

// OnEventsPosted registers h to be called after every submission response.
func (e *Engine) OnEventsPosted(h EventsPostedHandler) {
	if h == nil {
		return
	}
	e.mu.Lock()
	e.handlers = append(e.handlers, h)
	e.mu.Unlock()
}

func (e *Engine) eventsPosted(events []*types.Event, resp *submission.Response) {
	e.mu.Lock()
	handlers := append([]EventsPostedHandler(nil), e.handlers...)
	e.mu.Unlock()

	for _, h := range handlers {
		func() {
			defer e.recoverPanic("events posted handler")
			h(events, resp)
		}()
	}
}

// Settings returns the current submission settings.
func (e *Engine) Settings() submission.Settings {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.settings
}

// BatchSize returns the current submission batch size.
func (e *Engine) BatchSize() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.settings.SubmissionBatchSize
}

// Reconfigure replaces the enabled flag, API key and server URL. The batch
// size is left alone: a size reduced after oversize rejections stays reduced.
func (e *Engine) Reconfigure(enabled bool, apiKey, serverURL string) {
	e.mu.Lock()
	e.settings.Enabled = enabled
	e.settings.APIKey = apiKey
	e.settings.ServerURL = serverURL
	e.mu.Unlock()
	e.logger.Info("queue: settings updated", "enabled", enabled, "server_url", serverURL)
}

func (e *Engine) recoverPanic(op string) {
	if r := recover(); r != nil {
		e.logger.Error("queue: recovered panic", "op", op, "panic", r)
	}
}
