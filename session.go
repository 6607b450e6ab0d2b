package tidal

import (
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/Tap30/tidal-go/adapters"
)

const (
	anonymousIDKey      = "tidal:anonymous_id"
	sessionIDKey        = "tidal:session_id"
	sessionStartedAtKey = "tidal:session_started_at"
	lastActivityAtKey   = "tidal:last_activity_at"
)

// Session event names, also used as tracked event names.
const (
	SessionStartEvent = "session_start"
	SessionEndEvent   = "session_end"
)

// Reasons attached to session_end.
const (
	SessionEndTimeout = "timeout"
	SessionEndManual  = "manual"
)

// SessionState is the state of the session state machine.
type SessionState int

const (
	NoSession SessionState = iota
	SessionActive
)

func (s SessionState) String() string {
	if s == SessionActive {
		return "active"
	}
	return "none"
}

// SessionEvent reports a session boundary.
type SessionEvent struct {
	Name      string
	SessionID string
	// Reason and Duration are set on session_end only.
	Reason    string
	Duration  time.Duration
	Timestamp time.Time
}

// Session is a point-in-time copy of the session state.
type Session struct {
	SessionID      string
	AnonymousID    string
	StartedAt      time.Time
	LastActivityAt time.Time
	State          SessionState
}

// SessionManager owns the session lifecycle and the anonymous identity.
//
// A session is active while now - lastActivityAt < timeout. The timeout is
// applied lazily: reads and activity updates that find the session expired
// end it (reason "timeout"), mint a new one and keep going. Session
// boundaries are reported through the OnSessionEvent callback after the
// manager's lock is released, so the callback may call back into the
// manager.
type SessionManager struct {
	mu      sync.Mutex
	storage StorageAdapter
	ids     IdentifierGenerator
	logger  LoggerAdapter
	timeout time.Duration
	now     func() time.Time
	onEvent func(SessionEvent)

	anonymousID    string
	sessionID      string
	startedAt      time.Time
	lastActivityAt time.Time
	state          SessionState
}

// NewSessionManager creates a manager in the NoSession state. Call Start
// before use.
func NewSessionManager(storage StorageAdapter, ids IdentifierGenerator, timeout time.Duration, logger LoggerAdapter) *SessionManager {
	if storage == nil {
		storage = adapters.NewNoOpStorageAdapter()
	}
	if ids == nil {
		ids = NewIdentifierGenerator()
	}
	if logger == nil {
		logger = adapters.NewNoOpLoggerAdapter()
	}
	return &SessionManager{
		storage: storage,
		ids:     ids,
		logger:  logger,
		timeout: timeout,
		now:     time.Now,
	}
}

// SetClock replaces time.Now. Must be called before Start.
func (m *SessionManager) SetClock(now func() time.Time) {
	m.now = now
}

// OnSessionEvent registers the callback receiving session boundaries.
// Must be called before Start.
func (m *SessionManager) OnSessionEvent(fn func(SessionEvent)) {
	m.onEvent = fn
}

// Start loads the persisted identity and session. A persisted session that
// is still within the timeout is resumed; otherwise a new one is started.
func (m *SessionManager) Start() {
	m.mu.Lock()
	now := m.now()
	m.loadAnonymousIDLocked()

	var events []SessionEvent
	sessionID, _ := m.getString(sessionIDKey)
	lastActivity, hasActivity := m.getTime(lastActivityAtKey)
	if sessionID != "" && hasActivity && now.Sub(lastActivity) < m.timeout {
		startedAt, ok := m.getTime(sessionStartedAtKey)
		if !ok {
			startedAt = lastActivity
		}
		m.sessionID = sessionID
		m.startedAt = startedAt
		m.lastActivityAt = lastActivity
		m.state = SessionActive
		m.logger.Debug("Resumed session %s", sessionID)
	} else {
		events = m.beginLocked(now, events)
	}
	m.mu.Unlock()

	m.emit(events)
}

// UpdateActivity records user activity, starting a session if none is
// active.
func (m *SessionManager) UpdateActivity() {
	m.mu.Lock()
	now := m.now()
	events := m.expireLocked(now, nil)
	if m.state == NoSession {
		events = m.beginLocked(now, events)
	}
	m.lastActivityAt = now
	m.setTime(lastActivityAtKey, now)
	m.mu.Unlock()

	m.emit(events)
}

// SessionID returns the active session id, renewing an expired session
// first. It returns "" when no session is active.
func (m *SessionManager) SessionID() string {
	m.mu.Lock()
	events := m.expireLocked(m.now(), nil)
	id := m.sessionID
	m.mu.Unlock()

	m.emit(events)
	return id
}

// IsSessionActive reports whether a session is active, applying the
// timeout rule first.
func (m *SessionManager) IsSessionActive() bool {
	m.mu.Lock()
	events := m.expireLocked(m.now(), nil)
	active := m.state == SessionActive
	m.mu.Unlock()

	m.emit(events)
	return active
}

// AnonymousID returns the installation-scoped anonymous id.
func (m *SessionManager) AnonymousID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.anonymousID
}

// Snapshot returns a copy of the current session state without applying
// the timeout rule.
func (m *SessionManager) Snapshot() Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Session{
		SessionID:      m.sessionID,
		AnonymousID:    m.anonymousID,
		StartedAt:      m.startedAt,
		LastActivityAt: m.lastActivityAt,
		State:          m.state,
	}
}

// StartSession ends the active session, if any, and starts a new one.
func (m *SessionManager) StartSession() {
	m.mu.Lock()
	now := m.now()
	events := m.endLocked(now, nil)
	events = m.beginLocked(now, events)
	m.mu.Unlock()

	m.emit(events)
}

// EndSession ends the active session and clears the persisted session.
// A session that had already expired ends with reason "timeout".
func (m *SessionManager) EndSession() {
	m.mu.Lock()
	events := m.endLocked(m.now(), nil)
	m.mu.Unlock()

	m.emit(events)
}

// Reset forgets the anonymous id and session, generates a fresh random
// anonymous id and starts a new session.
func (m *SessionManager) Reset() {
	m.mu.Lock()
	for _, key := range []string{anonymousIDKey, sessionIDKey, sessionStartedAtKey, lastActivityAtKey} {
		if err := m.storage.Delete(key); err != nil {
			m.logger.Warn("Failed to delete %s: %v", key, err)
		}
	}
	m.anonymousID = m.ids.RandomID()
	m.setString(anonymousIDKey, m.anonymousID)
	m.sessionID = ""
	m.state = NoSession

	events := m.beginLocked(m.now(), nil)
	m.mu.Unlock()

	m.emit(events)
}

// expireLocked applies the timeout rule. Caller holds m.mu.
func (m *SessionManager) expireLocked(now time.Time, events []SessionEvent) []SessionEvent {
	if m.state != SessionActive || now.Sub(m.lastActivityAt) < m.timeout {
		return events
	}
	events = append(events, SessionEvent{
		Name:      SessionEndEvent,
		SessionID: m.sessionID,
		Reason:    SessionEndTimeout,
		Duration:  m.lastActivityAt.Sub(m.startedAt),
		Timestamp: now,
	})
	m.logger.Debug("Session %s timed out", m.sessionID)
	return m.beginLocked(now, events)
}

// beginLocked mints a new session. Caller holds m.mu.
func (m *SessionManager) beginLocked(now time.Time, events []SessionEvent) []SessionEvent {
	m.sessionID = m.ids.SessionID()
	m.startedAt = now
	m.lastActivityAt = now
	m.state = SessionActive

	m.setString(sessionIDKey, m.sessionID)
	m.setTime(sessionStartedAtKey, now)
	m.setTime(lastActivityAtKey, now)

	return append(events, SessionEvent{
		Name:      SessionStartEvent,
		SessionID: m.sessionID,
		Timestamp: now,
	})
}

// endLocked ends the active session, if any. Caller holds m.mu.
func (m *SessionManager) endLocked(now time.Time, events []SessionEvent) []SessionEvent {
	if m.state != SessionActive {
		return events
	}

	end := SessionEvent{
		Name:      SessionEndEvent,
		SessionID: m.sessionID,
		Reason:    SessionEndManual,
		Duration:  now.Sub(m.startedAt),
		Timestamp: now,
	}
	if now.Sub(m.lastActivityAt) >= m.timeout {
		end.Reason = SessionEndTimeout
		end.Duration = m.lastActivityAt.Sub(m.startedAt)
	}

	m.sessionID = ""
	m.state = NoSession
	for _, key := range []string{sessionIDKey, sessionStartedAtKey} {
		if err := m.storage.Delete(key); err != nil {
			m.logger.Warn("Failed to delete %s: %v", key, err)
		}
	}
	return append(events, end)
}

func (m *SessionManager) loadAnonymousIDLocked() {
	if id, ok := m.getString(anonymousIDKey); ok && id != "" {
		m.anonymousID = id
		return
	}
	if id, ok := m.ids.DeviceID(); ok {
		m.anonymousID = id
	} else {
		m.anonymousID = m.ids.RandomID()
	}
	m.setString(anonymousIDKey, m.anonymousID)
}

func (m *SessionManager) emit(events []SessionEvent) {
	if m.onEvent == nil {
		return
	}
	for _, event := range events {
		safeCall(m.logger, "session event callback", func() error {
			m.onEvent(event)
			return nil
		})
	}
}

func (m *SessionManager) getString(key string) (string, bool) {
	data, err := m.storage.Get(key)
	if err != nil {
		if !errors.Is(err, adapters.ErrKeyNotFound) {
			m.logger.Warn("Failed to load %s: %v", key, err)
		}
		return "", false
	}
	return string(data), true
}

func (m *SessionManager) setString(key, value string) {
	if err := m.storage.Set(key, []byte(value)); err != nil {
		m.logger.Warn("Failed to persist %s: %v", key, err)
	}
}

// Times are stored as decimal Unix milliseconds.
func (m *SessionManager) getTime(key string) (time.Time, bool) {
	s, ok := m.getString(key)
	if !ok {
		return time.Time{}, false
	}
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		m.logger.Warn("Ignoring invalid %s: %q", key, s)
		return time.Time{}, false
	}
	return time.UnixMilli(ms), true
}

func (m *SessionManager) setTime(key string, t time.Time) {
	m.setString(key, strconv.FormatInt(t.UnixMilli(), 10))
}
