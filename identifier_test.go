package tidal

import (
	"regexp"
	"testing"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentifierGenerator_Formats(t *testing.T) {
	g := NewIdentifierGenerator()

	random, err := uuid.Parse(g.RandomID())
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(4), random.Version())

	session, err := uuid.Parse(g.SessionID())
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), session.Version())

	_, err = ulid.ParseStrict(g.MessageID())
	assert.NoError(t, err)
}

func TestIdentifierGenerator_Unique(t *testing.T) {
	g := NewIdentifierGenerator()
	seen := make(map[string]struct{})
	for range 1000 {
		id := g.MessageID()
		_, dup := seen[id]
		require.False(t, dup, "duplicate message id %s", id)
		seen[id] = struct{}{}
	}
}

func TestIdentifierGenerator_DeviceID(t *testing.T) {
	g := &defaultIdentifiers{fingerprint: func() string { return "host-123" }}
	id, ok := g.DeviceID()
	require.True(t, ok)
	assert.Equal(t, HashFingerprint("host-123"), id)

	none := &defaultIdentifiers{fingerprint: func() string { return "" }}
	_, ok = none.DeviceID()
	assert.False(t, ok)
}

func TestHashFingerprint(t *testing.T) {
	a := HashFingerprint("machine-a")
	assert.Regexp(t, regexp.MustCompile(`^[0-9a-f]{32}$`), a)
	assert.Equal(t, a, HashFingerprint("machine-a"))
	assert.NotEqual(t, a, HashFingerprint("machine-b"))
	assert.NotContains(t, a, "machine")
}
