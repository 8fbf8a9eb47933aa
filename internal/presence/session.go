package presence

import (
	"strings"
	"sync"
)

// Status is the presence state shown to other participants.
type Status string

const (
	StatusOnline  Status = "online"
	StatusAway    Status = "away"
	StatusBusy    Status = "busy"
	StatusOffline Status = "offline"
)

// IsLive reports whether s may be held by a connected session.
// Offline is only ever written to the store on disconnect.
func (s Status) IsLive() bool {
	switch s {
	case StatusOnline, StatusAway, StatusBusy:
		return true
	}
	return false
}

// Transport is the outbound half of a client connection.
type Transport interface {
	Send(frame []byte) error
	Close() error
}

// Session binds a handle to a live transport.
type Session struct {
	handle    string
	transport Transport

	mu     sync.RWMutex
	status Status

	closeOnce sync.Once
	closeErr  error
}

func newSession(handle string, status Status, transport Transport) *Session {
	return &Session{handle: handle, status: status, transport: transport}
}

// Handle returns the case-folded handle.
func (s *Session) Handle() string {
	return s.handle
}

// Status returns the session's current presence status.
func (s *Session) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

func (s *Session) setStatus(status Status) {
	s.mu.Lock()
	s.status = status
	s.mu.Unlock()
}

// Send writes one encoded frame to the session's transport.
func (s *Session) Send(frame []byte) error {
	return s.transport.Send(frame)
}

// Close closes the transport exactly once, whichever path gets here first.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.transport.Close()
	})
	return s.closeErr
}

// NormalizeHandle case-folds a handle or recipient name.
func NormalizeHandle(handle string) string {
	return strings.ToLower(strings.TrimSpace(handle))
}
