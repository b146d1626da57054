// Package session tracks transfer-relevant state for active calls.
package session

import (
	"sync"
	"time"
)

// Status is the lifecycle state of a tracked call.
type Status string

const (
	// StatusActive means the call is live and handled by the agent.
	StatusActive Status = "active"
	// StatusTransferring means a handoff to a human operator has begun.
	StatusTransferring Status = "transferring"
)

// Session is one tracked call. Values returned by the Registry are copies;
// mutations go through Registry methods only.
type Session struct {
	CallSID   string
	StreamSID string
	Status    Status
	From      string
	To        string
	StartedAt time.Time

	// Set once a transfer begins.
	ConferenceName  string
	OperatorCallSID string
	OperatorNumber  string
}

// Registry is an in-memory map of live call sessions keyed by call SID.
// It serializes access from the two connection handlers of a call; the
// lock is never held across I/O.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
	now      func() time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		now:      time.Now,
	}
}

// Create tracks a new call. If the SID is already tracked the entry is
// overwritten; call SIDs are not reused while live, so a recurrence means
// a stale entry.
func (r *Registry) Create(callSID, from, to string) Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := &Session{
		CallSID:   callSID,
		Status:    StatusActive,
		From:      from,
		To:        to,
		StartedAt: r.now(),
	}
	r.sessions[callSID] = s
	return *s
}

// AttachStream records the media stream SID for a call. The start event can
// beat the webhook path to the registry; in that case a minimal session is
// created on the fly rather than failing the bridge.
func (r *Registry) AttachStream(callSID, streamSID string) Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[callSID]
	if !ok {
		s = &Session{
			CallSID:   callSID,
			Status:    StatusActive,
			StartedAt: r.now(),
		}
		r.sessions[callSID] = s
	}
	s.StreamSID = streamSID
	return *s
}

// MarkTransferring records a started transfer. It reports false when the
// call is no longer tracked; callers log and continue.
func (r *Registry) MarkTransferring(callSID, conferenceName, operatorCallSID, operatorNumber string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[callSID]
	if !ok {
		return false
	}
	s.Status = StatusTransferring
	s.ConferenceName = conferenceName
	s.OperatorCallSID = operatorCallSID
	s.OperatorNumber = operatorNumber
	return true
}

// Get returns a copy of the tracked session. A missing SID reports ok=false
// and is not an error; lookups before stream start or after stop are
// expected.
func (r *Registry) Get(callSID string) (Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[callSID]
	if !ok {
		return Session{}, false
	}
	return *s, true
}

// Remove drops a call from the registry. Removing an unknown SID is a no-op.
func (r *Registry) Remove(callSID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, callSID)
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
