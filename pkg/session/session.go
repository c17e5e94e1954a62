// Package session tracks per-connection state: the table of loaded
// configuration handles and the subscription set.
//
// A session lives exactly as long as its connection. Handles (temp-ids)
// are monotone naturals starting at 1, never reused within the session,
// and opaque to the client; loading the same configuration twice yields
// two distinct handles. Subscriptions are keyed by persistent
// configuration id so fan-out across sessions needs no translation.
//
// Sessions are not safe for concurrent use; the service serializes all
// access under its dispatch lock.
package session

// Permission is what the access key used at load time grants a handle.
type Permission int

const (
	ReadWrite Permission = iota
	ReadOnly
)

func (p Permission) String() string {
	if p == ReadOnly {
		return "read-only"
	}
	return "read-write"
}

type handle struct {
	configID uint64
	perm     Permission
}

type subKey struct {
	configID uint64
	setting  string
}

// Session is the per-connection registry.
type Session struct {
	nextTempID uint64
	handles    map[uint64]handle
	subs       map[subKey]struct{}
}

// New returns an empty session.
func New() *Session {
	return &Session{
		handles: make(map[uint64]handle),
		subs:    make(map[subKey]struct{}),
	}
}

// InsertDBID allocates the next handle for configID with the given
// permission and returns it.
func (s *Session) InsertDBID(configID uint64, perm Permission) uint64 {
	s.nextTempID++
	s.handles[s.nextTempID] = handle{configID: configID, perm: perm}
	return s.nextTempID
}

// RemoveTempID drops the handle and every subscription on its
// configuration. Unknown handles are ignored.
func (s *Session) RemoveTempID(tempID uint64) {
	h, ok := s.handles[tempID]
	if !ok {
		return
	}
	delete(s.handles, tempID)
	for key := range s.subs {
		if key.configID == h.configID {
			delete(s.subs, key)
		}
	}
}

// HasLoaded reports whether tempID is a live handle.
func (s *Session) HasLoaded(tempID uint64) bool {
	_, ok := s.handles[tempID]
	return ok
}

// DBID returns the persistent id behind tempID.
func (s *Session) DBID(tempID uint64) (uint64, bool) {
	h, ok := s.handles[tempID]
	return h.configID, ok
}

// Permission returns the permission attached to tempID.
func (s *Session) Permission(tempID uint64) (Permission, bool) {
	h, ok := s.handles[tempID]
	return h.perm, ok
}

// TempID returns one of the session's handles for configID. When the
// configuration was loaded more than once any handle is acceptable, the
// client cannot tell them apart on inbound events.
func (s *Session) TempID(configID uint64) (uint64, bool) {
	for tempID, h := range s.handles {
		if h.configID == configID {
			return tempID, true
		}
	}
	return 0, false
}

// Subscribe records interest in a setting of the configuration behind
// tempID. Idempotent; returns false when the handle is not loaded.
func (s *Session) Subscribe(tempID uint64, setting string) bool {
	h, ok := s.handles[tempID]
	if !ok {
		return false
	}
	s.subs[subKey{configID: h.configID, setting: setting}] = struct{}{}
	return true
}

// Unsubscribe removes a subscription. Idempotent; returns false when the
// handle is not loaded.
func (s *Session) Unsubscribe(tempID uint64, setting string) bool {
	h, ok := s.handles[tempID]
	if !ok {
		return false
	}
	delete(s.subs, subKey{configID: h.configID, setting: setting})
	return true
}

// IsSubscribed reports whether the session subscribed to the setting on
// the persistent configuration id.
func (s *Session) IsSubscribed(configID uint64, setting string) bool {
	_, ok := s.subs[subKey{configID: configID, setting: setting}]
	return ok
}
