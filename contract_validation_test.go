package tidal

import (
	"context"
	"encoding/json"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestWireContract pins the JSON the collector receives.
func TestWireContract(t *testing.T) {
	client, h := newTestClient(t, func(c *ClientConfig) { c.AppVersion = "1.0.0" })
	client.Identify("user-1", map[string]any{"plan": "pro"})
	client.Track("checkout", map[string]any{"total": 42})
	client.Group("acme", nil)
	client.Flush()

	payloads := map[string]map[string]any{}
	for _, call := range h.http.calls() {
		var body map[string][]map[string]any
		require.NoError(t, json.Unmarshal(call.Body, &body))
		require.Len(t, body, 1, "one sub-stream per request")
		for sub, events := range body {
			require.Len(t, events, 1)
			payloads[sub] = events[0]
		}
	}
	require.Len(t, payloads, 3)

	track := payloads["tracks"]
	assert.Equal(t, "track", track["type"])
	assert.Equal(t, "checkout", track["event"])
	assert.Equal(t, map[string]any{"total": float64(42)}, track["properties"])
	assert.Equal(t, "user-1", track["userId"])
	for _, key := range []string{"messageId", "anonymousId", "timestamp", "context"} {
		assert.Contains(t, track, key)
	}
	assert.NotContains(t, track, "traits")

	ctx, ok := track["context"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "server", ctx["platform"])
	assert.Equal(t, "1.0.0", ctx["appVersion"])
	assert.Equal(t, client.SessionID(), ctx["sessionId"])
	assert.Equal(t, map[string]any{"name": "tidal-go", "version": Version}, ctx["library"])

	identify := payloads["identifies"]
	assert.Equal(t, "identify", identify["type"])
	assert.Equal(t, map[string]any{"plan": "pro"}, identify["traits"])
	assert.NotContains(t, identify, "event")

	group := payloads["groups"]
	assert.Equal(t, "group", group["type"])
	assert.Equal(t, "acme", group["groupId"])
	assert.Equal(t, "organization", group["groupType"])
}

// TestPublicSurface guards the signatures integrations rely on.
func TestPublicSurface(t *testing.T) {
	var producer Producer = &Client{}
	clientType := reflect.TypeOf(producer)

	for _, name := range []string{"Init", "Dispose", "DisposeWithoutFlush"} {
		method, ok := clientType.MethodByName(name)
		require.True(t, ok, name)
		assert.Equal(t, 1, method.Type.NumOut(), "%s returns error", name)
	}

	flushContext, ok := clientType.MethodByName("FlushContext")
	require.True(t, ok)
	assert.Equal(t, reflect.TypeOf((*context.Context)(nil)).Elem(), flushContext.Type.In(1))
	assert.Equal(t, reflect.TypeOf(FlushResult{}), flushContext.Type.Out(0))

	track, ok := clientType.MethodByName("Track")
	require.True(t, ok)
	assert.True(t, track.Type.IsVariadic())
	assert.Equal(t, 0, track.Type.NumOut())
}
