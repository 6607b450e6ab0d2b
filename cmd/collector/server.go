package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"strings"
	"sync"

	"github.com/klauspost/compress/gzip"

	tidal "github.com/Tap30/tidal-go"
)

const maxBodyBytes = 5 << 20

// collector is a development ingestion endpoint. It accepts one sub-stream
// per request, drops duplicate message ids and can simulate failures.
type collector struct {
	apiKey    string
	keyHeader string
	failRate  float64
	logger    *slog.Logger

	mu       sync.Mutex
	seen     map[string]struct{}
	received map[tidal.SubStream]int
	dupes    int
}

func newCollector(apiKey, keyHeader string, failRate float64, logger *slog.Logger) *collector {
	return &collector{
		apiKey:    apiKey,
		keyHeader: keyHeader,
		failRate:  failRate,
		logger:    logger,
		seen:      make(map[string]struct{}),
		received:  make(map[tidal.SubStream]int),
	}
}

func (c *collector) routes() http.Handler {
	mux := http.NewServeMux()
	for _, sub := range tidal.SubStreams {
		mux.HandleFunc("/"+string(sub), func(w http.ResponseWriter, r *http.Request) {
			c.handleSubStream(w, r, sub)
		})
	}
	mux.HandleFunc("/stats", c.handleStats)
	return mux
}

func (c *collector) handleSubStream(w http.ResponseWriter, r *http.Request, sub tidal.SubStream) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Encoding, Authorization")

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"error": "method not allowed"})
		return
	}
	if !c.authorized(r) {
		c.logger.Warn("rejected request", "sub_stream", sub, "reason", "unauthorized")
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "invalid api key"})
		return
	}

	events, err := decodeEvents(r, sub)
	if err != nil {
		c.logger.Warn("rejected request", "sub_stream", sub, "error", err)
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}

	if triggersError(events) {
		c.logger.Info("simulated server error", "sub_stream", sub, "reason", "trigger_error")
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "simulated server error"})
		return
	}
	if c.failRate > 0 && rand.Float64() < c.failRate {
		c.logger.Info("simulated server error", "sub_stream", sub, "reason", "fail_rate")
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"error": "simulated outage"})
		return
	}

	accepted, dupes := c.record(sub, events)
	c.logger.Info("received events",
		"sub_stream", sub,
		"accepted", accepted,
		"duplicates", dupes,
		"gzip", r.Header.Get("Content-Encoding") == "gzip",
	)
	for _, e := range events {
		c.logger.Debug("event",
			"type", e.Type,
			"message_id", e.MessageID,
			"name", e.Event,
			"user_id", e.UserID,
			"session_id", e.Context.SessionID,
		)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"received":   accepted,
		"duplicates": dupes,
	})
}

func (c *collector) authorized(r *http.Request) bool {
	if c.apiKey == "" {
		return true
	}
	if c.keyHeader != "" {
		return r.Header.Get(c.keyHeader) == c.apiKey
	}
	return r.Header.Get("Authorization") == "Bearer "+c.apiKey
}

// record stores first-seen events and reports how many were new and how
// many were already delivered by an earlier retry.
func (c *collector) record(sub tidal.SubStream, events []tidal.Event) (accepted, dupes int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range events {
		if _, ok := c.seen[e.MessageID]; ok {
			dupes++
			continue
		}
		c.seen[e.MessageID] = struct{}{}
		accepted++
	}
	c.received[sub] += accepted
	c.dupes += dupes
	return accepted, dupes
}

func (c *collector) handleStats(w http.ResponseWriter, r *http.Request) {
	c.mu.Lock()
	stats := map[string]any{"duplicates": c.dupes}
	for sub, n := range c.received {
		stats[string(sub)] = n
	}
	c.mu.Unlock()
	writeJSON(w, http.StatusOK, stats)
}

func decodeEvents(r *http.Request, sub tidal.SubStream) ([]tidal.Event, error) {
	var body io.Reader = io.LimitReader(r.Body, maxBodyBytes)
	if strings.EqualFold(r.Header.Get("Content-Encoding"), "gzip") {
		zr, err := gzip.NewReader(body)
		if err != nil {
			return nil, fmt.Errorf("invalid gzip body: %w", err)
		}
		defer zr.Close()
		body = zr
	}

	var payload map[string][]tidal.Event
	if err := json.NewDecoder(body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	events, ok := payload[string(sub)]
	if !ok || len(payload) != 1 {
		return nil, fmt.Errorf("payload must contain only %q", sub)
	}
	for i, e := range events {
		if e.MessageID == "" {
			return nil, fmt.Errorf("event %d has no messageId", i)
		}
		if e.Type.SubStream() != sub {
			return nil, fmt.Errorf("event %d of type %q does not belong on %s", i, e.Type, sub)
		}
	}
	return events, nil
}

func triggersError(events []tidal.Event) bool {
	for _, e := range events {
		for _, m := range []map[string]any{e.Properties, e.Traits} {
			if v, ok := m["trigger_error"].(bool); ok && v {
				return true
			}
		}
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
