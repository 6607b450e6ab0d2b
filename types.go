package tidal

import (
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/Tap30/tidal-go/adapters"
)

// Version is reported in the event context and the User-Agent header.
const Version = "0.4.0"

// Re-export adapter types for convenience
type (
	Event          = adapters.Event
	EventType      = adapters.EventType
	EventContext   = adapters.EventContext
	DeviceInfo     = adapters.DeviceInfo
	SubStream      = adapters.SubStream
	HTTPAdapter    = adapters.HTTPAdapter
	HTTPResponse   = adapters.HTTPResponse
	StorageAdapter = adapters.StorageAdapter
	LoggerAdapter  = adapters.LoggerAdapter
	LogLevel       = adapters.LogLevel
)

const (
	EventTypeTrack    = adapters.EventTypeTrack
	EventTypeIdentify = adapters.EventTypeIdentify
	EventTypeGroup    = adapters.EventTypeGroup

	SubStreamTracks     = adapters.SubStreamTracks
	SubStreamIdentifies = adapters.SubStreamIdentifies
	SubStreamGroups     = adapters.SubStreamGroups
)

// SubStreams lists every sub-stream in dispatch order.
var SubStreams = adapters.SubStreams

// RetryBackoff selects the delay schedule between retries of a failed send.
type RetryBackoff string

const (
	// RetryBackoffExponential waits baseDelay * 2^attempt.
	RetryBackoffExponential RetryBackoff = "exponential"
	// RetryBackoffLinear waits baseDelay * (attempt + 1).
	RetryBackoffLinear RetryBackoff = "linear"
)

// DefaultGroupType is used by Group when no group type is given.
const DefaultGroupType = "organization"

// APIResponse is the outcome of one sub-stream send.
type APIResponse struct {
	Success  bool
	Message  string
	Status   int
	Attempts int
	Data     any
	// Err is a *DeliveryError when Success is false.
	Err error
}

// FlushResult summarizes one flush attempt.
type FlushResult struct {
	Success    bool
	EventCount int
	Removed    int
	Responses  map[SubStream]APIResponse
	Skipped    bool
}

// Hooks are optional callbacks invoked by the Client. A hook that returns
// an error or panics is logged and otherwise ignored.
type Hooks struct {
	// BeforeSend may rewrite an event before it is queued. Returning an
	// error (or a nil event) keeps the original event.
	BeforeSend func(event *Event) (*Event, error)

	// AfterFlush observes the outcome of every flush attempt.
	AfterFlush func(result FlushResult)

	// OnError receives validation and delivery failures.
	OnError func(err error)
}

// ClientConfig holds fully-resolved client settings. Zero values are
// replaced by defaults in NewClient.
type ClientConfig struct {
	APIKey  string
	BaseURL string
	// APIKeyHeader overrides the header carrying the API key. When unset the
	// key is sent as "Authorization: Bearer <key>".
	APIKeyHeader *string

	BatchSize      int
	FlushInterval  time.Duration
	MaxQueueSize   int
	RequestTimeout time.Duration
	// MaxRetries nil means the default; use Int(0) to disable retries.
	MaxRetries   *int
	RetryBackoff RetryBackoff

	SessionTimeout time.Duration
	// EnableLocalStorage nil means enabled. When false every persistence
	// call goes to a no-op store.
	EnableLocalStorage *bool
	// TrackSessions turns session_start/session_end into tracked events.
	TrackSessions bool
	// Compression gzips request bodies when the default HTTP adapter is used.
	Compression bool

	Platform   string
	AppVersion string
	Locale     string

	// ShutdownTimeout bounds the best-effort flush in Dispose.
	ShutdownTimeout time.Duration

	HTTPAdapter    HTTPAdapter
	StorageAdapter StorageAdapter
	LoggerAdapter  LoggerAdapter
	Metrics        MetricsRecorder
	TracerProvider trace.TracerProvider
	Identifiers    IdentifierGenerator
	Hooks          Hooks

	// Now replaces time.Now, for tests.
	Now func() time.Time
}

// DispatcherConfig is the subset of ClientConfig used by the Dispatcher.
type DispatcherConfig struct {
	BaseURL        string
	Headers        map[string]string
	RequestTimeout time.Duration
	MaxRetries     int
	RetryBackoff   RetryBackoff
	BaseDelay      time.Duration
}

// Int returns a pointer to v, for optional config fields.
func Int(v int) *int { return &v }

// Bool returns a pointer to v, for optional config fields.
func Bool(v bool) *bool { return &v }

// String returns a pointer to v, for optional config fields.
func String(v string) *string { return &v }
