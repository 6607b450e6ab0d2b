package tidal

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// IdentifierGenerator produces the identifiers attached to sessions and
// events.
type IdentifierGenerator interface {
	// RandomID returns a random opaque identifier.
	RandomID() string
	// SessionID returns a unique identifier with an embedded timestamp.
	SessionID() string
	// MessageID returns a unique, time-sortable event identifier.
	MessageID() string
	// DeviceID returns an identifier derived from a stable installation
	// fingerprint, or false when no fingerprint is available.
	DeviceID() (string, bool)
}

// machineIDPaths are read in order to fingerprint the host.
var machineIDPaths = []string{"/etc/machine-id", "/var/lib/dbus/machine-id"}

type defaultIdentifiers struct {
	fingerprint func() string
}

// NewIdentifierGenerator returns the default generator: UUIDv4 random ids,
// UUIDv7 session ids, ULID message ids, and device ids hashed from the
// host's machine id.
func NewIdentifierGenerator() IdentifierGenerator {
	return &defaultIdentifiers{fingerprint: machineFingerprint}
}

func (g *defaultIdentifiers) RandomID() string {
	return uuid.NewString()
}

func (g *defaultIdentifiers) SessionID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

func (g *defaultIdentifiers) MessageID() string {
	return ulid.Make().String()
}

func (g *defaultIdentifiers) DeviceID() (string, bool) {
	fp := g.fingerprint()
	if fp == "" {
		return "", false
	}
	return HashFingerprint(fp), true
}

// HashFingerprint maps a device fingerprint to a 32-character opaque id.
func HashFingerprint(fingerprint string) string {
	sum := sha256.Sum256([]byte("tidal:" + fingerprint))
	return hex.EncodeToString(sum[:16])
}

func machineFingerprint() string {
	for _, path := range machineIDPaths {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if id := strings.TrimSpace(string(data)); id != "" {
			return id
		}
	}
	return ""
}
