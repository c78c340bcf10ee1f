package automod

import (
	"sync"
	"time"
)

// Window is the per-user moderation state: recent message times plus the
// strike and throttle bookkeeping that hangs off them.
type Window struct {
	// Timestamps holds the times of recent messages, oldest first.
	Timestamps []time.Time

	// StrikeCount is the number of spam warnings since the last mute.
	StrikeCount int

	// LastWarnAt is when the user was last warned for spam.
	LastWarnAt time.Time

	// LastLogAt is when a spam event for this user was last logged.
	LastLogAt time.Time
}

// prune drops timestamps older than the window.
func (w *Window) prune(now time.Time, window time.Duration) {
	cutoff := now.Add(-window)
	i := 0
	for i < len(w.Timestamps) && !w.Timestamps[i].After(cutoff) {
		i++
	}
	if i > 0 {
		w.Timestamps = append(w.Timestamps[:0], w.Timestamps[i:]...)
	}
}

// quiescent reports whether the window carries no state worth keeping.
func (w *Window) quiescent(now time.Time, retention time.Duration) bool {
	if len(w.Timestamps) > 0 {
		return false
	}
	cutoff := now.Add(-retention)
	return w.LastWarnAt.Before(cutoff) && w.LastLogAt.Before(cutoff)
}

// Store holds per-user moderation windows. Implementations are safe for
// concurrent use.
type Store interface {
	// Get returns the user's window, or nil when none exists.
	Get(userID string) *Window

	// Put stores the user's window.
	Put(userID string, w *Window)

	// Delete removes the user's window.
	Delete(userID string)

	// UserIDs lists every user with a window.
	UserIDs() []string
}

type memoryStore struct {
	mu      sync.Mutex
	windows map[string]*Window
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() Store {
	return &memoryStore{windows: make(map[string]*Window)}
}

func (s *memoryStore) Get(userID string) *Window {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.windows[userID]
	if !ok {
		return nil
	}
	cp := *w
	cp.Timestamps = append([]time.Time(nil), w.Timestamps...)
	return &cp
}

func (s *memoryStore) Put(userID string, w *Window) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *w
	cp.Timestamps = append([]time.Time(nil), w.Timestamps...)
	s.windows[userID] = &cp
}

func (s *memoryStore) Delete(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.windows, userID)
}

func (s *memoryStore) UserIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, 0, len(s.windows))
	for id := range s.windows {
		out = append(out, id)
	}
	return out
}
