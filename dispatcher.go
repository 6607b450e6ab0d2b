package tidal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/Tap30/tidal-go/adapters"
)

// DefaultBaseDelay is the backoff unit between retries.
const DefaultBaseDelay = 1000 * time.Millisecond

// MaxBackoffDelay caps the wait between retries.
const MaxBackoffDelay = time.Hour

// BackoffDelay returns how long to wait before retry number attempt+1,
// saturating at MaxBackoffDelay.
func BackoffDelay(strategy RetryBackoff, base time.Duration, attempt int) time.Duration {
	if base <= 0 {
		return 0
	}
	if strategy == RetryBackoffLinear {
		if int64(attempt+1) > int64(MaxBackoffDelay/base) {
			return MaxBackoffDelay
		}
		return base * time.Duration(attempt+1)
	}
	d := base
	for range attempt {
		if d >= MaxBackoffDelay/2 {
			return MaxBackoffDelay
		}
		d *= 2
	}
	return min(d, MaxBackoffDelay)
}

// Dispatcher delivers batches to the collector, one request per
// sub-stream, retrying transient failures with backoff.
type Dispatcher struct {
	config        DispatcherConfig
	httpAdapter   HTTPAdapter
	loggerAdapter LoggerAdapter
	metrics       MetricsRecorder
	tracer        trace.Tracer
	sleep         func(ctx context.Context, d time.Duration) error
}

func NewDispatcher(config DispatcherConfig, httpAdapter HTTPAdapter) *Dispatcher {
	if config.BaseDelay <= 0 {
		config.BaseDelay = DefaultBaseDelay
	}
	if config.RetryBackoff == "" {
		config.RetryBackoff = RetryBackoffExponential
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")

	return &Dispatcher{
		config:        config,
		httpAdapter:   httpAdapter,
		loggerAdapter: adapters.NewPrintLoggerAdapter(adapters.LogLevelWarn),
		metrics:       NoopMetrics{},
		tracer:        otel.GetTracerProvider().Tracer("github.com/Tap30/tidal-go"),
		sleep:         sleepContext,
	}
}

// SetLoggerAdapter sets a custom logger adapter
func (d *Dispatcher) SetLoggerAdapter(logger LoggerAdapter) {
	d.loggerAdapter = logger
}

// SetMetrics sets the metrics recorder.
func (d *Dispatcher) SetMetrics(metrics MetricsRecorder) {
	d.metrics = metrics
}

// SetTracerProvider sets the provider used for send spans.
func (d *Dispatcher) SetTracerProvider(provider trace.TracerProvider) {
	d.tracer = provider.Tracer("github.com/Tap30/tidal-go")
}

// Backoff returns the wait before retrying after the given failed attempt.
func (d *Dispatcher) Backoff(attempt int) time.Duration {
	return BackoffDelay(d.config.RetryBackoff, d.config.BaseDelay, attempt)
}

// Endpoint returns the URL events of subStream are posted to.
func (d *Dispatcher) Endpoint(subStream SubStream) string {
	return d.config.BaseURL + "/" + string(subStream)
}

// Send delivers events on one sub-stream. The request body is
// {"<subStream>": [events...]}.
func (d *Dispatcher) Send(ctx context.Context, subStream SubStream, events []Event) APIResponse {
	ctx, span := d.tracer.Start(ctx, "tidal.send", trace.WithAttributes(
		attribute.String("tidal.sub_stream", string(subStream)),
		attribute.Int("tidal.events", len(events)),
	))
	defer span.End()

	start := time.Now()
	var resp APIResponse

	body, err := json.Marshal(map[string][]Event{string(subStream): events})
	if err != nil {
		resp = APIResponse{
			Message: "failed to encode payload",
			Err:     &DeliveryError{SubStream: subStream, Err: fmt.Errorf("encode payload: %w", err)},
		}
	} else {
		resp = d.sendWithRetryAttempt(ctx, subStream, body, 0)
	}

	span.SetAttributes(
		attribute.Int("tidal.attempts", resp.Attempts),
		attribute.Int("http.status_code", resp.Status),
	)
	if resp.Success {
		span.SetStatus(codes.Ok, "")
	} else {
		span.SetStatus(codes.Error, resp.Message)
		if resp.Err != nil {
			span.RecordError(resp.Err)
		}
	}
	d.metrics.RecordSend(ctx, subStream, len(events), resp.Attempts, resp.Success, time.Since(start))
	return resp
}

func (d *Dispatcher) sendWithRetryAttempt(ctx context.Context, subStream SubStream, body []byte, attempt int) APIResponse {
	d.loggerAdapter.Debug("Sending %s, attempt %d/%d", subStream, attempt+1, d.config.MaxRetries+1)

	reqCtx := ctx
	cancel := func() {}
	if d.config.RequestTimeout > 0 {
		reqCtx, cancel = context.WithTimeout(ctx, d.config.RequestTimeout)
	}
	httpResp, err := d.httpAdapter.Send(reqCtx, d.Endpoint(subStream), body, d.config.Headers)
	cancel()

	if err != nil {
		// Connection failures and request timeouts are transient, but a
		// cancelled parent context ends the send.
		if ctx.Err() != nil {
			return d.failure(subStream, 0, attempt, true, errors.Join(err, ctx.Err()))
		}
		d.loggerAdapter.Warn("Network error on %s: %v", subStream, err)
		return d.retryOrFail(ctx, subStream, body, attempt, 0, err)
	}

	switch {
	case httpResp.Status >= 200 && httpResp.Status < 300:
		d.loggerAdapter.Debug("Delivered %s with status %d", subStream, httpResp.Status)
		return APIResponse{
			Success:  true,
			Message:  "delivered",
			Status:   httpResp.Status,
			Attempts: attempt + 1,
			Data:     httpResp.Data,
		}
	case httpResp.Status >= 500:
		d.loggerAdapter.Warn("Server error %d on %s", httpResp.Status, subStream)
		resp := d.retryOrFail(ctx, subStream, body, attempt, httpResp.Status, nil)
		if !resp.Success && resp.Data == nil {
			resp.Data = httpResp.Data
		}
		return resp
	default:
		// 4xx and anything unexpected: the payload will not get better by
		// resending it now.
		d.loggerAdapter.Warn("Client error %d on %s, not retrying", httpResp.Status, subStream)
		resp := d.failure(subStream, httpResp.Status, attempt, false, nil)
		resp.Data = httpResp.Data
		return resp
	}
}

func (d *Dispatcher) retryOrFail(ctx context.Context, subStream SubStream, body []byte, attempt, status int, err error) APIResponse {
	if attempt >= d.config.MaxRetries {
		d.loggerAdapter.Error("Giving up on %s after %d attempts", subStream, attempt+1)
		return d.failure(subStream, status, attempt, true, err)
	}

	wait := d.Backoff(attempt)
	d.loggerAdapter.Debug("Retrying %s in %v", subStream, wait)
	if sleepErr := d.sleep(ctx, wait); sleepErr != nil {
		return d.failure(subStream, status, attempt, true, errors.Join(err, sleepErr))
	}
	return d.sendWithRetryAttempt(ctx, subStream, body, attempt+1)
}

func (d *Dispatcher) failure(subStream SubStream, status, attempt int, transient bool, err error) APIResponse {
	msg := "network error"
	if status != 0 {
		msg = fmt.Sprintf("HTTP %d", status)
	}
	return APIResponse{
		Message:  msg,
		Status:   status,
		Attempts: attempt + 1,
		Err: &DeliveryError{
			SubStream: subStream,
			Status:    status,
			Attempts:  attempt + 1,
			Transient: transient,
			Err:       err,
		},
	}
}

// DispatchBatch partitions events by sub-stream and sends every non-empty
// partition concurrently. The result succeeds only if all sends succeed;
// removing the events from the queue is left to the caller.
func (d *Dispatcher) DispatchBatch(ctx context.Context, events []Event) FlushResult {
	partitions := make(map[SubStream][]Event, len(adapters.SubStreams))
	for _, event := range events {
		sub := event.Type.SubStream()
		partitions[sub] = append(partitions[sub], event)
	}

	result := FlushResult{
		Success:    true,
		EventCount: len(events),
		Responses:  make(map[SubStream]APIResponse, len(partitions)),
	}

	var mu sync.Mutex
	var g errgroup.Group
	for _, sub := range adapters.SubStreams {
		batch := partitions[sub]
		if len(batch) == 0 {
			continue
		}
		g.Go(func() error {
			resp := d.Send(ctx, sub, batch)
			mu.Lock()
			defer mu.Unlock()
			result.Responses[sub] = resp
			if !resp.Success {
				result.Success = false
			}
			return nil
		})
	}
	_ = g.Wait()
	return result
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
