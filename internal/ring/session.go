package ring

import "github.com/google/uuid"

// SessionID is a per-mount correlation identifier, used only for log
// correlation across a daemon's mount/umount cycle. It is never
// persisted to the spare area — the header has no field for it, and the
// engine's own notion of a "session" (a contiguous run of appends
// between mounts) is a range of cur_id values, not this value. Session enumeration itself is left unimplemented; see the note
// at the bottom of this file for why.
type SessionID uuid.UUID

// NewSessionID mints a fresh session identifier for a Mount call.
func NewSessionID() SessionID {
	return SessionID(uuid.New())
}

// String renders a session identifier as its canonical UUID form, the
// shape expected in log lines.
func (s SessionID) String() string {
	return uuid.UUID(s).String()
}

// ParseSessionID parses a session identifier previously rendered by
// String, mirroring the teacher's ParseUUID helper.
func ParseSessionID(s string) (SessionID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return SessionID{}, err
	}
	return SessionID(u), nil
}

// Session enumeration (SearchSessions in the original design notes) is
// deliberately not implemented: the spec's original source never defines
// what a "session boundary" is in a monotonic id stream, and the spec's
// own design notes say not to guess one. A host that needs session
// enumeration must specify the boundary contract first (e.g. a per-mount
// marker page); this package does not add one on its own authority, and
// so declares no method for it.
