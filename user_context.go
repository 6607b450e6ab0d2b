package tidal

import (
	"maps"
	"sync"
)

// UserContext is the identity attached to every event. It is handed out
// by value; the trait maps are copies.
type UserContext struct {
	AnonymousID string
	UserID      string
	UserTraits  map[string]any
	GroupID     string
	GroupTraits map[string]any
}

// userContextManager holds the user and group identity set through
// Identify and Group.
type userContextManager struct {
	mu          sync.RWMutex
	userID      string
	userTraits  map[string]any
	groupID     string
	groupTraits map[string]any
}

func newUserContextManager() *userContextManager {
	return &userContextManager{
		userTraits:  make(map[string]any),
		groupTraits: make(map[string]any),
	}
}

// identify sets the user id and merges traits into the user profile.
// Switching to a different user starts from an empty profile.
func (m *userContextManager) identify(userID string, traits map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.userID != userID {
		m.userTraits = make(map[string]any)
	}
	m.userID = userID
	maps.Copy(m.userTraits, traits)
}

// group sets the group id and merges traits into the group profile.
func (m *userContextManager) group(groupID string, traits map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.groupID != groupID {
		m.groupTraits = make(map[string]any)
	}
	m.groupID = groupID
	maps.Copy(m.groupTraits, traits)
}

func (m *userContextManager) currentUserID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.userID
}

// snapshot returns a copy of the context with the given anonymous id.
func (m *userContextManager) snapshot(anonymousID string) UserContext {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return UserContext{
		AnonymousID: anonymousID,
		UserID:      m.userID,
		UserTraits:  maps.Clone(m.userTraits),
		GroupID:     m.groupID,
		GroupTraits: maps.Clone(m.groupTraits),
	}
}

// clear removes all user and group context
func (m *userContextManager) clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.userID = ""
	m.groupID = ""
	m.userTraits = make(map[string]any)
	m.groupTraits = make(map[string]any)
}
