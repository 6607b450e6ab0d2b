package tidal

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/Tap30/tidal-go/adapters"
)

// Benchmark adapters for performance testing
type benchHTTPAdapter struct{}

func (a *benchHTTPAdapter) Send(context.Context, string, []byte, map[string]string) (*HTTPResponse, error) {
	return &HTTPResponse{OK: true, Status: 200}, nil
}

func newBenchClient(b *testing.B, storage StorageAdapter) *Client {
	b.Helper()
	client, err := NewClient(ClientConfig{
		APIKey:         "test-key",
		BaseURL:        "http://test.com",
		BatchSize:      100,
		MaxQueueSize:   1000,
		FlushInterval:  time.Hour,
		HTTPAdapter:    &benchHTTPAdapter{},
		StorageAdapter: storage,
		LoggerAdapter:  adapters.NewNoOpLoggerAdapter(),
	})
	if err != nil {
		b.Fatal(err)
	}
	if err := client.Init(); err != nil {
		b.Fatal(err)
	}
	b.Cleanup(func() { _ = client.DisposeWithoutFlush() })
	return client
}

func BenchmarkNewClient(b *testing.B) {
	config := ClientConfig{
		APIKey:         "test-key",
		BaseURL:        "http://test.com",
		HTTPAdapter:    &benchHTTPAdapter{},
		StorageAdapter: adapters.NewNoOpStorageAdapter(),
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		client, _ := NewClient(config)
		_ = client
	}
}

// Track without persistence isolates event construction and queueing.
func BenchmarkTrack(b *testing.B) {
	client := newBenchClient(b, adapters.NewNoOpStorageAdapter())
	payload := map[string]any{
		"key1": "value1",
		"key2": 123,
		"key3": true,
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		client.Track("test_event", payload)
	}
}

func BenchmarkTrackPersisted(b *testing.B) {
	client := newBenchClient(b, adapters.NewMemoryStorageAdapter())
	payload := map[string]any{"key": "value"}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		client.Track("test_event", payload)
	}
}

func BenchmarkQueueEnqueue(b *testing.B) {
	queue := NewEventQueue(1000, nil, nil)
	event := Event{
		Type:       EventTypeTrack,
		Event:      "test",
		Properties: map[string]any{"key": "value"},
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		event.MessageID = fmt.Sprint(i)
		queue.Enqueue(event)
	}
}

func BenchmarkDispatchBatch(b *testing.B) {
	d := NewDispatcher(DispatcherConfig{BaseURL: "http://test.com"}, &benchHTTPAdapter{})
	d.SetLoggerAdapter(adapters.NewNoOpLoggerAdapter())
	events := make([]Event, 20)
	for i := range events {
		events[i] = Event{Type: EventTypeTrack, MessageID: fmt.Sprint(i), Event: "test"}
	}
	events[5].Type = EventTypeIdentify

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		d.DispatchBatch(context.Background(), events)
	}
}
