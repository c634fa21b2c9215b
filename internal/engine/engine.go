package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"orbsync/internal/connectivity"
	"orbsync/internal/events"
	"orbsync/internal/metrics"
	"orbsync/internal/models"
	"orbsync/internal/notify"
	"orbsync/internal/store"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// APIPrefix is prepended to every caller-supplied endpoint path.
const APIPrefix = "/api"

// Options configures an Engine. Zero values fall back to sane defaults.
type Options struct {
	BaseURL        string
	RequestTimeout time.Duration
	DrainInterval  time.Duration
	Backoff        Backoff
	RateLimit      rate.Limit
	Burst          int
}

// Result is the outcome of an offline-aware request. Queued=true means the
// request could not be delivered now but is persisted and will be replayed —
// a successful degraded outcome, not a failure.
type Result struct {
	OK     bool
	Queued bool
	Status int
	Data   json.RawMessage
}

// DrainStats aggregates one drain pass. Discarded entries (4xx) are removed
// like successes but counted apart so telemetry never conflates the two.
type DrainStats struct {
	Synced    int
	Discarded int
	Pending   int
	Skipped   bool
}

// Engine owns the offline-aware request wrapper, the queue drain loop and the
// backoff policy. It holds no durable state itself — only timers, the
// in-flight flag and its bus subscription.
type Engine struct {
	store    store.Store
	monitor  *connectivity.Monitor
	bus      *events.Bus
	notifier notify.Notifier
	logger   *zerolog.Logger

	client        *http.Client
	limiter       *rate.Limiter
	baseURL       string
	backoff       Backoff
	drainInterval time.Duration

	syncing atomic.Bool

	mu          sync.Mutex
	runCtx      context.Context
	timerCancel context.CancelFunc
	unsubscribe func()
}

func New(st store.Store, monitor *connectivity.Monitor, bus *events.Bus, notifier notify.Notifier, logger *zerolog.Logger, opts Options) *Engine {
	if opts.RequestTimeout == 0 {
		opts.RequestTimeout = 15 * time.Second
	}
	if opts.DrainInterval == 0 {
		opts.DrainInterval = models.DefaultDrainInterval * time.Second
	}
	if len(opts.Backoff.Delays) == 0 {
		opts.Backoff = DefaultBackoff()
	}
	if opts.Backoff.MaxRetries == 0 {
		opts.Backoff.MaxRetries = models.DefaultMaxRetries
	}
	if opts.RateLimit == 0 {
		opts.RateLimit = 10
	}
	if opts.Burst == 0 {
		opts.Burst = 5
	}

	return &Engine{
		store:         st,
		monitor:       monitor,
		bus:           bus,
		notifier:      notifier,
		logger:        logger,
		client:        &http.Client{Timeout: opts.RequestTimeout},
		limiter:       rate.NewLimiter(opts.RateLimit, opts.Burst),
		baseURL:       opts.BaseURL,
		backoff:       opts.Backoff,
		drainInterval: opts.DrainInterval,
	}
}

// Start subscribes the engine to connectivity transitions. An online
// transition triggers an immediate drain pass and starts the periodic timer;
// an offline transition stops the timer.
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	e.runCtx = ctx
	e.mu.Unlock()

	e.unsubscribe = e.bus.Subscribe(e.onStatusChange)

	if e.monitor.Online() {
		e.startTimer()
	}
}

// Close unregisters the bus subscription and stops the periodic timer.
func (e *Engine) Close() {
	if e.unsubscribe != nil {
		e.unsubscribe()
	}
	e.stopTimer()
}

// State snapshots the shared connectivity flags.
func (e *Engine) State() models.ConnectivityState {
	return models.ConnectivityState{
		Online:  e.monitor.Online(),
		Syncing: e.syncing.Load(),
	}
}

func (e *Engine) onStatusChange(event string, _ any) {
	switch event {
	case models.EventOnline:
		e.mu.Lock()
		ctx := e.runCtx
		e.mu.Unlock()
		if ctx == nil {
			ctx = context.Background()
		}
		go e.SyncQueue(ctx)
		e.startTimer()
	case models.EventOffline:
		e.stopTimer()
	}
}

func (e *Engine) startTimer() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.timerCancel != nil {
		return
	}

	parent := e.runCtx
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	e.timerCancel = cancel

	go func() {
		ticker := time.NewTicker(e.drainInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				e.SyncQueue(ctx)
			}
		}
	}()
}

func (e *Engine) stopTimer() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.timerCancel != nil {
		e.timerCancel()
		e.timerCancel = nil
	}
}

// Request is the offline-aware entry point. GET without connectivity fails
// immediately with ErrOffline and never touches the queue. A mutating request
// that hits a transport failure is persisted when queueOnFailure is set and
// reported as Queued rather than failed.
func (e *Engine) Request(ctx context.Context, endpoint, method string, payload any, headers map[string]string, queueOnFailure bool) (*Result, error) {
	if method == models.MethodGet && !e.monitor.Online() {
		return nil, ErrOffline
	}

	body, err := encodePayload(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}

	status, data, err := e.do(ctx, method, endpoint, body, headers)
	if err == nil {
		return &Result{OK: true, Status: status, Data: data}, nil
	}

	var transportErr *TransportError
	if errors.As(err, &transportErr) && method != models.MethodGet && queueOnFailure {
		return e.enqueue(ctx, endpoint, method, body, headers)
	}

	return nil, err
}

func encodePayload(payload any) (json.RawMessage, error) {
	switch v := payload.(type) {
	case nil:
		return nil, nil
	case json.RawMessage:
		return v, nil
	case []byte:
		return json.RawMessage(v), nil
	default:
		return json.Marshal(payload)
	}
}

func (e *Engine) enqueue(ctx context.Context, endpoint, method string, body json.RawMessage, headers map[string]string) (*Result, error) {
	entry := &models.QueueEntry{
		Endpoint: endpoint,
		Method:   method,
		Payload:  body,
		Headers:  headers,
	}

	id, err := e.store.AddEntry(ctx, entry)
	if err != nil {
		e.logger.Error().Err(err).Str("endpoint", endpoint).Msg("failed to queue request")
		e.notifier.Notify("Failed to save the request for later sync", notify.SeverityError, 0)
		return nil, &StorageError{Op: "enqueue", Err: err}
	}

	e.logger.Info().Str("id", id).Str("method", method).Str("endpoint", endpoint).Msg("request queued for sync")
	metrics.IncQueued()
	e.updateQueueDepth(ctx)
	e.notifier.Notify("No connection — saved locally and will sync automatically", notify.SeverityWarning, 0)
	e.bus.Publish(models.EventQueued, id)

	return &Result{Queued: true}, nil
}

// SyncQueue runs one drain pass: every queued entry, oldest-first, strictly
// sequential. A pass is skipped outright when offline or when another pass is
// already in flight — never queued behind it.
func (e *Engine) SyncQueue(ctx context.Context) DrainStats {
	if !e.monitor.Online() {
		return DrainStats{Skipped: true}
	}
	if !e.syncing.CompareAndSwap(false, true) {
		return DrainStats{Skipped: true}
	}
	defer e.syncing.Store(false)

	entries, err := e.store.ListEntries(ctx)
	if err != nil {
		e.logger.Error().Err(err).Msg("failed to list sync queue")
		return DrainStats{}
	}
	if len(entries) == 0 {
		return DrainStats{}
	}

	e.logger.Info().Int("entries", len(entries)).Msg("drain pass started")

	var stats DrainStats
	for i := range entries {
		entry := &entries[i]

		if entry.RetryCount > 0 {
			if err := sleepContext(ctx, e.backoff.DelayFor(entry.RetryCount)); err != nil {
				stats.Pending += len(entries) - i
				break
			}
		}

		e.retryEntry(ctx, entry, &stats)
	}

	metrics.ObserveDrain(stats.Synced, stats.Discarded)
	e.updateQueueDepth(ctx)
	e.bus.Publish(models.EventSynced, stats)
	e.notifyDrain(stats)

	return stats
}

func (e *Engine) retryEntry(ctx context.Context, entry *models.QueueEntry, stats *DrainStats) {
	_, _, err := e.do(ctx, entry.Method, entry.Endpoint, entry.Payload, entry.Headers)
	if err == nil {
		if rerr := e.store.RemoveEntry(ctx, entry.ID); rerr != nil {
			e.logger.Error().Err(rerr).Str("id", entry.ID).Msg("delivered but failed to dequeue, entry may replay")
		}
		stats.Synced++
		return
	}

	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		e.logger.Warn().Str("id", entry.ID).Int("status", clientErr.Status).Msg("entry rejected by server, discarding")
		if rerr := e.store.RemoveEntry(ctx, entry.ID); rerr != nil {
			e.logger.Error().Err(rerr).Str("id", entry.ID).Msg("failed to remove rejected entry")
		}
		stats.Discarded++
		return
	}

	// Transport or 5xx: stays queued. Past MaxRetries the counter freezes and
	// the entry keeps retrying at the ceiling delay.
	if entry.RetryCount < e.backoff.MaxRetries {
		if uerr := e.store.UpdateRetry(ctx, entry.ID, entry.RetryCount+1); uerr != nil {
			e.logger.Error().Err(uerr).Str("id", entry.ID).Msg("retry not recorded")
		}
	}
	e.logger.Debug().Err(err).Str("id", entry.ID).Int("retry_count", entry.RetryCount).Msg("entry retry failed")
	stats.Pending++
}

func (e *Engine) notifyDrain(stats DrainStats) {
	delivered := stats.Synced + stats.Discarded
	switch {
	case delivered > 0 && stats.Pending == 0:
		e.notifier.Notify(fmt.Sprintf("Synced %d offline change(s)", delivered), notify.SeveritySync, 0)
	case delivered > 0:
		e.notifier.Notify(fmt.Sprintf("Synced %d change(s), %d still pending", delivered, stats.Pending), notify.SeveritySync, 0)
	case stats.Pending > 0:
		e.notifier.Notify(fmt.Sprintf("%d change(s) still waiting for sync", stats.Pending), notify.SeverityWarning, 0)
	}
}

func (e *Engine) updateQueueDepth(ctx context.Context) {
	if n, err := e.store.CountEntries(ctx); err == nil {
		metrics.SetQueueDepth(n)
	}
}

// do issues one HTTP request against the records API and classifies the
// outcome into the retry taxonomy.
func (e *Engine) do(ctx context.Context, method, endpoint string, body json.RawMessage, headers map[string]string) (int, json.RawMessage, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return 0, nil, &TransportError{Err: err}
	}

	var reader io.Reader
	if len(body) > 0 {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, e.baseURL+APIPrefix+endpoint, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to build request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return 0, nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, &TransportError{Err: err}
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return resp.StatusCode, data, nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return resp.StatusCode, data, &ClientError{Status: resp.StatusCode}
	default:
		return resp.StatusCode, data, &ServerError{Status: resp.StatusCode}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
