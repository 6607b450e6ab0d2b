package tidal

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

type sentRequest struct {
	Endpoint string
	Body     []byte
	Headers  map[string]string
}

// mockHTTPAdapter records every request and answers with respond, or 200
// when respond is nil.
type mockHTTPAdapter struct {
	mu       sync.Mutex
	requests []sentRequest
	respond  func(endpoint string, call int) (*HTTPResponse, error)
}

func (m *mockHTTPAdapter) Send(ctx context.Context, endpoint string, body []byte, headers map[string]string) (*HTTPResponse, error) {
	m.mu.Lock()
	m.requests = append(m.requests, sentRequest{Endpoint: endpoint, Body: body, Headers: headers})
	call := len(m.requests)
	respond := m.respond
	m.mu.Unlock()

	if respond == nil {
		return &HTTPResponse{OK: true, Status: 200}, nil
	}
	return respond(endpoint, call)
}

func (m *mockHTTPAdapter) setRespond(fn func(endpoint string, call int) (*HTTPResponse, error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.respond = fn
}

func (m *mockHTTPAdapter) calls() []sentRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sentRequest(nil), m.requests...)
}

// events decodes every event posted so far, in request order.
func (m *mockHTTPAdapter) events() []Event {
	var out []Event
	for _, req := range m.calls() {
		var payload map[string][]Event
		if err := json.Unmarshal(req.Body, &payload); err != nil {
			continue
		}
		for _, events := range payload {
			out = append(out, events...)
		}
	}
	return out
}

func statusResponse(status int) (*HTTPResponse, error) {
	return &HTTPResponse{OK: status >= 200 && status < 300, Status: status}, nil
}

// sequentialIDs hands out predictable identifiers.
type sequentialIDs struct {
	n        atomic.Int64
	deviceID string
}

func (s *sequentialIDs) next() int64 { return s.n.Add(1) }

func (s *sequentialIDs) RandomID() string  { return fmt.Sprintf("anon-%d", s.next()) }
func (s *sequentialIDs) SessionID() string { return fmt.Sprintf("sess-%d", s.next()) }
func (s *sequentialIDs) MessageID() string { return fmt.Sprintf("msg-%06d", s.next()) }

func (s *sequentialIDs) DeviceID() (string, bool) {
	return s.deviceID, s.deviceID != ""
}

// fakeClock is a settable time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// recordingLogger keeps formatted warnings and errors.
type recordingLogger struct {
	mu       sync.Mutex
	warnings []string
	errors   []string
}

func (l *recordingLogger) Debug(string, ...any) {}
func (l *recordingLogger) Info(string, ...any)  {}

func (l *recordingLogger) Warn(message string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warnings = append(l.warnings, fmt.Sprintf(message, args...))
}

func (l *recordingLogger) Error(message string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, fmt.Sprintf(message, args...))
}

func (l *recordingLogger) Warnings() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.warnings...)
}

func (l *recordingLogger) Errors() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.errors...)
}

// failingStorage fails every call.
type failingStorage struct{}

func (failingStorage) Set(string, []byte) error   { return fmt.Errorf("disk full") }
func (failingStorage) Get(string) ([]byte, error) { return nil, fmt.Errorf("disk gone") }
func (failingStorage) Delete(string) error        { return fmt.Errorf("disk gone") }
func (failingStorage) Close() error               { return nil }
