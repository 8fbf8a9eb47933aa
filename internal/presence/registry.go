package presence

import (
	"cmp"
	"regexp"
	"slices"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
)

var handlePattern = regexp.MustCompile(`^[A-Za-z0-9_]{3,20}$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("handle", func(fl validator.FieldLevel) bool {
		return handlePattern.MatchString(fl.Field().String())
	})
	return v
}

type joinRequest struct {
	Handle string `validate:"required,handle"`
}

// ValidateHandle checks a raw handle against the join rules: letters,
// digits and underscore, 3 to 20 characters.
func ValidateHandle(handle string) error {
	if err := validate.Struct(joinRequest{Handle: handle}); err != nil {
		return ErrHandleInvalid
	}
	return nil
}

// Presence is one entry of a registry snapshot.
type Presence struct {
	Username string `json:"username"`
	Status   Status `json:"status"`
}

// Registry is the set of live sessions keyed by case-folded handle.
// An entry exists if and only if its transport is open.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Join registers a new session. It never replaces an existing entry: a second
// join under a live handle fails with ErrHandleTaken.
func (r *Registry) Join(handle string, status Status, transport Transport) (*Session, error) {
	if err := ValidateHandle(handle); err != nil {
		return nil, err
	}
	if !status.IsLive() {
		return nil, ErrInvalidStatus
	}
	key := strings.ToLower(handle)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[key]; exists {
		return nil, ErrHandleTaken
	}
	session := newSession(key, status, transport)
	r.sessions[key] = session
	return session, nil
}

// Leave removes the entry for handle. It reports whether anything was removed.
func (r *Registry) Leave(handle string) bool {
	key := NormalizeHandle(handle)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[key]; !exists {
		return false
	}
	delete(r.sessions, key)
	return true
}

// LeaveSession removes session only if it is still the registered entry for
// its handle.
func (r *Registry) LeaveSession(session *Session) bool {
	if session == nil {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if current, exists := r.sessions[session.handle]; !exists || current != session {
		return false
	}
	delete(r.sessions, session.handle)
	return true
}

// SetStatus changes the status of a live session.
func (r *Registry) SetStatus(handle string, status Status) error {
	if !status.IsLive() {
		return ErrInvalidStatus
	}
	key := NormalizeHandle(handle)

	r.mu.Lock()
	defer r.mu.Unlock()

	session, exists := r.sessions[key]
	if !exists {
		return ErrUnknownHandle
	}
	session.setStatus(status)
	return nil
}

// Lookup returns the live session for handle.
func (r *Registry) Lookup(handle string) (*Session, bool) {
	key := NormalizeHandle(handle)

	r.mu.RLock()
	defer r.mu.RUnlock()

	session, exists := r.sessions[key]
	return session, exists
}

// Snapshot returns every live (handle, status) pair, sorted by handle.
func (r *Registry) Snapshot() []Presence {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.snapshotLocked()
}

// snapshotWithSessions returns the snapshot and the sessions it describes,
// read under one lock acquisition.
func (r *Registry) snapshotWithSessions() ([]Presence, []*Session) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.snapshotLocked(), lo.Values(r.sessions)
}

func (r *Registry) snapshotLocked() []Presence {
	snapshot := lo.MapToSlice(r.sessions, func(handle string, session *Session) Presence {
		return Presence{Username: handle, Status: session.Status()}
	})
	slices.SortFunc(snapshot, func(a, b Presence) int {
		return cmp.Compare(a.Username, b.Username)
	})
	return snapshot
}

// Sessions returns the live sessions at the moment of the call.
func (r *Registry) Sessions() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return lo.Values(r.sessions)
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.sessions)
}
