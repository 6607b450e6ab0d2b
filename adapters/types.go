package adapters

import "errors"

// EventType identifies which variant an Event carries.
type EventType string

const (
	EventTypeTrack    EventType = "track"
	EventTypeIdentify EventType = "identify"
	EventTypeGroup    EventType = "group"
)

// SubStream is one of the independent event categories routed to a
// dedicated collector endpoint.
type SubStream string

const (
	SubStreamTracks     SubStream = "tracks"
	SubStreamIdentifies SubStream = "identifies"
	SubStreamGroups     SubStream = "groups"
)

// SubStreams lists every sub-stream in dispatch order.
var SubStreams = []SubStream{SubStreamTracks, SubStreamIdentifies, SubStreamGroups}

// SubStream returns the sub-stream events of this type are delivered on.
func (t EventType) SubStream() SubStream {
	switch t {
	case EventTypeIdentify:
		return SubStreamIdentifies
	case EventTypeGroup:
		return SubStreamGroups
	default:
		return SubStreamTracks
	}
}

// Event represents a tracked event. Exactly one variant is set, selected
// by Type:
//   - track:    Event (name) and Properties
//   - identify: UserID and Traits
//   - group:    GroupID, GroupType and Traits
type Event struct {
	Type        EventType      `json:"type"`
	MessageID   string         `json:"messageId"`
	AnonymousID string         `json:"anonymousId"`
	UserID      string         `json:"userId,omitempty"`
	Timestamp   string         `json:"timestamp"`
	Context     EventContext   `json:"context"`
	Event       string         `json:"event,omitempty"`
	Properties  map[string]any `json:"properties,omitempty"`
	GroupID     string         `json:"groupId,omitempty"`
	GroupType   string         `json:"groupType,omitempty"`
	Traits      map[string]any `json:"traits,omitempty"`
}

// EventContext is the system snapshot captured when an event is created.
type EventContext struct {
	Platform   string     `json:"platform"`
	AppVersion string     `json:"appVersion,omitempty"`
	SessionID  string     `json:"sessionId,omitempty"`
	Library    Library    `json:"library"`
	Device     DeviceInfo `json:"device"`
}

// Library names the client library that produced the event.
type Library struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// DeviceInfo describes the host the event was captured on.
type DeviceInfo struct {
	OS       string `json:"os"`
	Arch     string `json:"arch"`
	Hostname string `json:"hostname,omitempty"`
	Locale   string `json:"locale,omitempty"`
}

// ErrKeyNotFound is returned by StorageAdapter.Get for absent keys.
var ErrKeyNotFound = errors.New("storage key not found")

// ErrStorageClosed is returned by storage adapters used after Close.
var ErrStorageClosed = errors.New("storage adapter closed")
