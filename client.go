package tidal

import (
	"context"
	"maps"
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/klauspost/compress/gzip"
	"go.opentelemetry.io/otel"

	"github.com/Tap30/tidal-go/adapters"
)

// DefaultStorageDir is where the default file store keeps its data.
const DefaultStorageDir = ".tidal"

const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

// Producer is the surface host integrations (lifecycle hooks, request
// middleware, CLIs) call into. *Client implements it.
type Producer interface {
	Track(name string, properties map[string]any, opts ...EventOption)
	Identify(userID string, traits map[string]any, opts ...EventOption)
	Group(groupID string, traits map[string]any, opts ...EventOption)
	Flush()
	QueueSize() int
	Reset()
	OnActivity()
}

var _ Producer = (*Client)(nil)

// EventOption customizes a single event.
type EventOption func(*eventOptions)

type eventOptions struct {
	timestamp time.Time
	groupType string
}

// WithTimestamp sets the event time instead of the capture time.
func WithTimestamp(t time.Time) EventOption {
	return func(o *eventOptions) { o.timestamp = t }
}

// WithGroupType sets the group type of a Group event.
func WithGroupType(groupType string) EventOption {
	return func(o *eventOptions) { o.groupType = groupType }
}

// Client is the single entry point for producing events and triggering
// delivery. Construct one per process with NewClient, call Init, and
// Dispose on shutdown.
type Client struct {
	config         ClientConfig
	httpAdapter    HTTPAdapter
	storageAdapter StorageAdapter
	loggerAdapter  LoggerAdapter
	metrics        MetricsRecorder
	ids            IdentifierGenerator
	ownsStorage    bool

	queue      *EventQueue
	dispatcher *Dispatcher
	sessions   *SessionManager
	users      *userContextManager
	device     DeviceInfo

	mu          sync.RWMutex
	initialized bool
	flushing    atomic.Bool
	closing     atomic.Bool
	ctx         context.Context
	cancel      context.CancelFunc
	stopChan    chan struct{}
	tickerWG    sync.WaitGroup
	flushWG     sync.WaitGroup
}

// NewClient validates config, applies defaults and returns an
// uninitialized client.
func NewClient(config ClientConfig) (*Client, error) {
	if err := config.resolve(); err != nil {
		return nil, err
	}

	client := &Client{
		config:  config,
		users:   newUserContextManager(),
		metrics: config.Metrics,
		ids:     config.Identifiers,
	}

	if config.LoggerAdapter != nil {
		client.loggerAdapter = config.LoggerAdapter
	} else {
		client.loggerAdapter = adapters.NewPrintLoggerAdapter(adapters.LogLevelWarn)
	}

	if config.HTTPAdapter != nil {
		client.httpAdapter = config.HTTPAdapter
	} else if config.Compression {
		client.httpAdapter = adapters.NewNetHTTPAdapter(adapters.WithGzip(gzip.DefaultCompression))
	} else {
		client.httpAdapter = adapters.NewNetHTTPAdapter()
	}

	if config.StorageAdapter != nil {
		client.storageAdapter = config.StorageAdapter
	} else {
		client.storageAdapter = adapters.NewFileStorageAdapter(DefaultStorageDir)
		client.ownsStorage = true
	}

	if client.metrics == nil {
		client.metrics = NoopMetrics{}
	}
	if client.ids == nil {
		client.ids = NewIdentifierGenerator()
	}
	if client.config.Now == nil {
		client.config.Now = time.Now
	}

	hostname, _ := os.Hostname()
	client.device = DeviceInfo{
		OS:       runtime.GOOS,
		Arch:     runtime.GOARCH,
		Hostname: hostname,
		Locale:   config.Locale,
	}

	return client, nil
}

// SetHTTPAdapter sets a custom HTTP adapter.
// Must be called before Init().
func (c *Client) SetHTTPAdapter(adapter HTTPAdapter) {
	c.httpAdapter = adapter
}

// SetStorageAdapter sets a custom storage adapter.
// Must be called before Init().
func (c *Client) SetStorageAdapter(adapter StorageAdapter) {
	c.storageAdapter = adapter
	c.ownsStorage = false
}

// Init restores persisted events and session state, and starts the flush
// timer. Calling Init on an initialized client is a no-op.
func (c *Client) Init() error {
	c.mu.Lock()
	if c.initialized {
		c.mu.Unlock()
		return nil
	}

	storage := c.storageAdapter
	if !*c.config.EnableLocalStorage {
		storage = adapters.NewNoOpStorageAdapter()
	}

	c.queue = NewEventQueue(c.config.MaxQueueSize, storage, c.loggerAdapter)
	c.queue.OnEvict(func(count int) {
		c.metrics.RecordEviction(context.Background(), count)
	})

	c.dispatcher = NewDispatcher(DispatcherConfig{
		BaseURL:        c.config.BaseURL,
		Headers:        c.headers(),
		RequestTimeout: c.config.RequestTimeout,
		MaxRetries:     *c.config.MaxRetries,
		RetryBackoff:   c.config.RetryBackoff,
	}, c.httpAdapter)
	c.dispatcher.SetLoggerAdapter(c.loggerAdapter)
	c.dispatcher.SetMetrics(c.metrics)
	if c.config.TracerProvider != nil {
		c.dispatcher.SetTracerProvider(c.config.TracerProvider)
	} else {
		c.dispatcher.SetTracerProvider(otel.GetTracerProvider())
	}

	c.sessions = NewSessionManager(storage, c.ids, c.config.SessionTimeout, c.loggerAdapter)
	c.sessions.SetClock(c.config.Now)

	c.ctx, c.cancel = context.WithCancel(context.Background())
	c.stopChan = make(chan struct{})
	c.closing.Store(false)

	restored := c.queue.Restore()

	// Boundaries from Start are held until c.mu is released; delivering
	// them runs the BeforeSend hook, which may call back into the client.
	var pending []SessionEvent
	c.sessions.OnSessionEvent(func(se SessionEvent) { pending = append(pending, se) })
	c.sessions.Start()
	c.sessions.OnSessionEvent(c.handleSessionEvent)

	c.tickerWG.Add(1)
	go c.runTicker(c.config.FlushInterval, c.stopChan)

	c.initialized = true
	c.mu.Unlock()

	c.loggerAdapter.Info("Client initialized, %d events restored", restored)
	for _, se := range pending {
		c.handleSessionEvent(se)
	}

	if c.queue.Size() >= c.config.BatchSize {
		c.flushAsync()
	}
	return nil
}

func (c *Client) headers() map[string]string {
	headers := map[string]string{
		"User-Agent": "tidal-go/" + Version,
	}
	if c.config.APIKeyHeader != nil {
		headers[*c.config.APIKeyHeader] = c.config.APIKey
	} else {
		headers["Authorization"] = "Bearer " + c.config.APIKey
	}
	return headers
}

func (c *Client) runTicker(interval time.Duration, stop chan struct{}) {
	defer c.tickerWG.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.flush(c.ctx)
		case <-stop:
			return
		}
	}
}

func (c *Client) isInitialized() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.initialized
}

// Track records a named event. An empty name is rejected with a warning.
func (c *Client) Track(name string, properties map[string]any, opts ...EventOption) {
	if !c.ready("Track") {
		return
	}
	if name == "" {
		c.reject(validationError("event name cannot be empty"))
		return
	}

	c.sessions.UpdateActivity()
	event := c.newEvent(EventTypeTrack, opts)
	event.Event = name
	event.Properties = maps.Clone(properties)
	c.enqueue(event)
}

// Identify associates subsequent events with userID and merges traits into
// the user's profile. An empty userID is rejected with a warning.
func (c *Client) Identify(userID string, traits map[string]any, opts ...EventOption) {
	if !c.ready("Identify") {
		return
	}
	if userID == "" {
		c.reject(validationError("user id cannot be empty"))
		return
	}

	c.users.identify(userID, traits)
	c.sessions.UpdateActivity()
	event := c.newEvent(EventTypeIdentify, opts)
	event.UserID = userID
	event.Traits = maps.Clone(traits)
	c.enqueue(event)
}

// Group associates the user with groupID. The group type defaults to
// "organization". An empty groupID is rejected with a warning.
func (c *Client) Group(groupID string, traits map[string]any, opts ...EventOption) {
	if !c.ready("Group") {
		return
	}
	if groupID == "" {
		c.reject(validationError("group id cannot be empty"))
		return
	}

	c.users.group(groupID, traits)
	c.sessions.UpdateActivity()
	event := c.newEvent(EventTypeGroup, opts)
	event.GroupID = groupID
	event.GroupType = applyOptions(opts).groupType
	if event.GroupType == "" {
		event.GroupType = DefaultGroupType
	}
	event.Traits = maps.Clone(traits)
	c.enqueue(event)
}

// OnActivity refreshes the session without producing an event.
func (c *Client) OnActivity() {
	if !c.ready("OnActivity") {
		return
	}
	c.sessions.UpdateActivity()
}

// EndSession explicitly ends the current session.
func (c *Client) EndSession() {
	if !c.ready("EndSession") {
		return
	}
	c.sessions.EndSession()
}

// SessionID returns the current session id, or "" before Init or after
// EndSession.
func (c *Client) SessionID() string {
	if !c.isInitialized() {
		return ""
	}
	return c.sessions.SessionID()
}

// AnonymousID returns the installation-scoped anonymous id.
func (c *Client) AnonymousID() string {
	if !c.isInitialized() {
		return ""
	}
	return c.sessions.AnonymousID()
}

// UserContext returns a copy of the identity attached to events.
func (c *Client) UserContext() UserContext {
	anonymousID := ""
	if c.isInitialized() {
		anonymousID = c.sessions.AnonymousID()
	}
	return c.users.snapshot(anonymousID)
}

// QueueSize returns the number of events waiting for delivery.
func (c *Client) QueueSize() int {
	if !c.isInitialized() {
		return 0
	}
	return c.queue.Size()
}

// Reset clears queued events, the user and group context and the session
// state, then starts a new session under a new anonymous id.
func (c *Client) Reset() {
	if !c.ready("Reset") {
		return
	}
	c.loggerAdapter.Info("Resetting client state")
	c.queue.Clear()
	c.users.clear()
	c.sessions.Reset()
}

// Flush delivers queued events and waits for the attempt to finish. It
// returns immediately if another flush is running.
func (c *Client) Flush() {
	if !c.isInitialized() {
		c.loggerAdapter.Warn("Flush called before initialization")
		return
	}
	c.loggerAdapter.Debug("Flushing events")
	c.flush(c.ctx)
}

// FlushContext is Flush bounded by ctx, returning the outcome.
func (c *Client) FlushContext(ctx context.Context) FlushResult {
	if !c.isInitialized() {
		c.loggerAdapter.Warn("Flush called before initialization")
		return FlushResult{Skipped: true}
	}
	return c.flush(ctx)
}

func (c *Client) flushAsync() {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closing.Load() {
		return
	}
	c.flushWG.Add(1)
	go func() {
		defer c.flushWG.Done()
		c.flush(c.ctx)
	}()
}

// flush sends consecutive batches from the head of the queue, removing
// each batch only after every sub-stream in it was delivered. It stops at
// the first failed batch and never sends more batches than were queued
// when it started.
func (c *Client) flush(ctx context.Context) FlushResult {
	if !c.flushing.CompareAndSwap(false, true) {
		c.loggerAdapter.Debug("Flush already in progress, skipping")
		return FlushResult{Skipped: true}
	}
	defer c.flushing.Store(false)

	pending := c.queue.Size()
	if pending == 0 {
		return FlushResult{Success: true}
	}

	start := time.Now()
	result := FlushResult{Success: true, Responses: make(map[SubStream]APIResponse)}
	batches := (pending + c.config.BatchSize - 1) / c.config.BatchSize

	for i := 0; i < batches; i++ {
		batch := c.queue.PeekBatch(c.config.BatchSize)
		if len(batch) == 0 {
			break
		}

		c.loggerAdapter.Debug("Sending batch of %d events", len(batch))
		batchResult := c.dispatcher.DispatchBatch(ctx, batch)
		result.EventCount += batchResult.EventCount
		maps.Copy(result.Responses, batchResult.Responses)

		if !batchResult.Success {
			result.Success = false
			for _, resp := range batchResult.Responses {
				if !resp.Success && resp.Err != nil {
					c.reportError(resp.Err)
				}
			}
			c.loggerAdapter.Warn("Flush failed, %d events stay queued", c.queue.Size())
			break
		}
		result.Removed += c.queue.Dequeue(batch)
	}

	c.metrics.RecordFlush(ctx, result.Success, result.Removed, time.Since(start))
	if hook := c.config.Hooks.AfterFlush; hook != nil {
		safeCall(c.loggerAdapter, "after-flush hook", func() error {
			hook(result)
			return nil
		})
	}
	return result
}

// Dispose stops the flush timer and makes one best-effort flush bounded by
// ShutdownTimeout. Events not delivered by then stay in storage for the
// next process; with local storage disabled they are lost.
func (c *Client) Dispose() error {
	return c.dispose(true)
}

// DisposeWithoutFlush stops the client without a final flush. Queued
// events stay in storage.
func (c *Client) DisposeWithoutFlush() error {
	return c.dispose(false)
}

func (c *Client) dispose(flush bool) error {
	c.mu.Lock()
	if !c.initialized {
		c.mu.Unlock()
		return nil
	}
	c.initialized = false
	c.closing.Store(true)
	close(c.stopChan)
	c.mu.Unlock()

	c.loggerAdapter.Info("Disposing client")

	ctx, cancel := context.WithTimeout(context.Background(), c.config.ShutdownTimeout)
	defer cancel()

	if flush {
		result := c.flush(ctx)
		if !result.Success && !result.Skipped {
			c.loggerAdapter.Warn("Shutdown flush incomplete, %d events left queued", c.queue.Size())
		}
	}

	// Flushes already in flight get the rest of the shutdown budget.
	done := make(chan struct{})
	go func() {
		c.tickerWG.Wait()
		c.flushWG.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
	c.cancel()
	<-done

	if c.ownsStorage {
		return c.storageAdapter.Close()
	}
	return nil
}

func (c *Client) ready(op string) bool {
	if c.isInitialized() {
		return true
	}
	c.loggerAdapter.Warn("%s called before initialization", op)
	c.reportError(ErrNotInitialized)
	return false
}

func (c *Client) reject(err error) {
	c.loggerAdapter.Warn("Rejected event: %v", err)
	c.reportError(err)
}

func (c *Client) reportError(err error) {
	hook := c.config.Hooks.OnError
	if hook == nil {
		return
	}
	safeCall(c.loggerAdapter, "error hook", func() error {
		hook(err)
		return nil
	})
}

func applyOptions(opts []EventOption) eventOptions {
	var o eventOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (c *Client) newEvent(eventType EventType, opts []EventOption) Event {
	o := applyOptions(opts)
	ts := o.timestamp
	if ts.IsZero() {
		ts = c.config.Now()
	}
	return Event{
		Type:        eventType,
		MessageID:   c.ids.MessageID(),
		AnonymousID: c.sessions.AnonymousID(),
		UserID:      c.users.currentUserID(),
		Timestamp:   ts.UTC().Format(timestampLayout),
		Context: EventContext{
			Platform:   c.config.Platform,
			AppVersion: c.config.AppVersion,
			SessionID:  c.sessions.SessionID(),
			Library:    adapters.Library{Name: "tidal-go", Version: Version},
			Device:     c.device,
		},
	}
}

// handleSessionEvent turns session boundaries into tracked events when
// session tracking is enabled. It does not touch session activity.
func (c *Client) handleSessionEvent(se SessionEvent) {
	c.loggerAdapter.Debug("Session event %s for %s", se.Name, se.SessionID)
	if !c.config.TrackSessions {
		return
	}

	properties := map[string]any{"session_id": se.SessionID}
	if se.Name == SessionEndEvent {
		properties["reason"] = se.Reason
		properties["duration"] = se.Duration.Milliseconds()
	}

	event := c.newEvent(EventTypeTrack, []EventOption{WithTimestamp(se.Timestamp)})
	event.Event = se.Name
	event.Properties = properties
	event.Context.SessionID = se.SessionID
	c.enqueue(event)
}

func (c *Client) enqueue(event Event) {
	if hook := c.config.Hooks.BeforeSend; hook != nil {
		event = c.applyBeforeSend(hook, event)
	}

	c.queue.Enqueue(event)
	c.metrics.RecordEnqueue(context.Background(), event.Type)

	if c.queue.Size() >= c.config.BatchSize {
		c.flushAsync()
	}
}

// applyBeforeSend runs the hook on a copy of event. Any failure keeps the
// original event.
func (c *Client) applyBeforeSend(hook func(*Event) (*Event, error), event Event) (out Event) {
	out = event
	defer func() {
		if r := recover(); r != nil {
			err := panicError(r)
			c.loggerAdapter.Error("before-send hook failed: %v", err)
			c.reportError(err)
			out = event
		}
	}()

	candidate := event
	candidate.Properties = maps.Clone(event.Properties)
	candidate.Traits = maps.Clone(event.Traits)
	transformed, err := hook(&candidate)
	if err != nil {
		c.loggerAdapter.Error("before-send hook failed: %v", err)
		c.reportError(err)
		return event
	}
	if transformed == nil {
		return event
	}
	if transformed.MessageID == "" {
		transformed.MessageID = event.MessageID
	}
	return *transformed
}
