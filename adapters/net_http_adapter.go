package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/klauspost/compress/gzip"
)

// maxResponseBody caps how much of a collector response is decoded.
const maxResponseBody = 1 << 20

// NetHTTPAdapter is the standard HTTP adapter implementation using net/http package.
type NetHTTPAdapter struct {
	client    *http.Client
	gzipLevel int
	compress  bool
}

// Ensure NetHTTPAdapter implements HTTPAdapter interface
var _ HTTPAdapter = (*NetHTTPAdapter)(nil)

// NetHTTPOption configures a NetHTTPAdapter.
type NetHTTPOption func(*NetHTTPAdapter)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(client *http.Client) NetHTTPOption {
	return func(h *NetHTTPAdapter) {
		h.client = client
	}
}

// WithGzip compresses request bodies and sets Content-Encoding: gzip.
func WithGzip(level int) NetHTTPOption {
	return func(h *NetHTTPAdapter) {
		h.compress = true
		h.gzipLevel = level
	}
}

// NewNetHTTPAdapter creates a new NetHTTPAdapter instance.
func NewNetHTTPAdapter(opts ...NetHTTPOption) *NetHTTPAdapter {
	h := &NetHTTPAdapter{
		client:    &http.Client{},
		gzipLevel: gzip.DefaultCompression,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Send posts body to endpoint with the given headers.
func (h *NetHTTPAdapter) Send(ctx context.Context, endpoint string, body []byte, headers map[string]string) (*HTTPResponse, error) {
	payload := body
	if h.compress {
		compressed, err := gzipBody(body, h.gzipLevel)
		if err != nil {
			return nil, err
		}
		payload = compressed
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if h.compress {
		req.Header.Set("Content-Encoding", "gzip")
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	var data any
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &data); err != nil {
			data = string(raw)
		}
	}

	return &HTTPResponse{
		Status: resp.StatusCode,
		OK:     resp.StatusCode >= 200 && resp.StatusCode < 300,
		Data:   data,
	}, nil
}

func gzipBody(body []byte, level int) ([]byte, error) {
	var buf bytes.Buffer
	zw, err := gzip.NewWriterLevel(&buf, level)
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip writer: %w", err)
	}
	if _, err := zw.Write(body); err != nil {
		return nil, fmt.Errorf("failed to compress body: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to compress body: %w", err)
	}
	return buf.Bytes(), nil
}
