// Package session keeps each browser's upload and filter inputs in memory.
package session

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/couchcryptid/ais-ship-tracker/internal/pipeline"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// Session is one user's working state. Values returned by Store are copies;
// write changes back with Store.Put.
type Session struct {
	ID        string
	Upload    *pipeline.Upload
	MinLength float64
	Selection []string

	lastSeen time.Time
}

// Params returns the pipeline inputs held by the session.
func (s *Session) Params() pipeline.Params {
	return pipeline.Params{MinLength: s.MinLength, Selection: slices.Clone(s.Selection)}
}

// HasUpload reports whether a CSV has been uploaded in this session.
func (s *Session) HasUpload() bool {
	return s.Upload != nil
}

// Store is an in-memory session store with idle expiry.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session
	ttl      time.Duration
	clock    clockwork.Clock
}

// NewStore creates a store whose sessions expire after ttl without access.
// A nil clock uses real time.
func NewStore(ttl time.Duration, clock clockwork.Clock) *Store {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Store{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		clock:    clock,
	}
}

// New creates and stores an empty session.
func (s *Store) New() Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := &Session{ID: uuid.NewString(), lastSeen: s.clock.Now()}
	s.sessions[sess.ID] = sess
	return sess.copy()
}

// Get returns the session and refreshes its idle timer. Expired sessions
// are removed and reported as missing.
func (s *Store) Get(id string) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return Session{}, false
	}
	now := s.clock.Now()
	if s.expired(sess, now) {
		delete(s.sessions, id)
		return Session{}, false
	}
	sess.lastSeen = now
	return sess.copy(), true
}

// Put stores sess, replacing any session with the same ID.
func (s *Store) Put(sess Session) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := sess.copy()
	stored.lastSeen = s.clock.Now()
	s.sessions[sess.ID] = &stored
}

// Delete removes a session.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// Sweep removes expired sessions and returns how many remain.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	for id, sess := range s.sessions {
		if s.expired(sess, now) {
			delete(s.sessions, id)
		}
	}
	return len(s.sessions)
}

// RunSweeper calls Sweep every interval until ctx is done, passing the
// remaining session count to report when it is not nil.
func (s *Store) RunSweeper(ctx context.Context, interval time.Duration, report func(remaining int)) {
	ticker := s.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			remaining := s.Sweep()
			if report != nil {
				report(remaining)
			}
		}
	}
}

// Len returns the number of stored sessions, including expired ones not yet swept.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *Store) expired(sess *Session, now time.Time) bool {
	return s.ttl > 0 && now.Sub(sess.lastSeen) > s.ttl
}

func (s *Session) copy() Session {
	c := *s
	c.Selection = slices.Clone(s.Selection)
	return c
}
