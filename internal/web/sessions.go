package web

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ironsheep/edgeview/internal/view"
)

type session struct {
	id       string
	view     *view.View
	lastSeen time.Time

	// watchers counts open event streams; a watched session never expires.
	watchers int
}

// Sessions tracks one view per browser session.
type Sessions struct {
	mu      sync.Mutex
	items   map[string]*session
	newView func() *view.View
	ttl     time.Duration
	now     func() time.Time
}

// NewSessions creates an empty store. newView builds the view for each new
// session; ttl bounds idle time, zero disables expiry.
func NewSessions(newView func() *view.View, ttl time.Duration) *Sessions {
	return &Sessions{
		items:   make(map[string]*session),
		newView: newView,
		ttl:     ttl,
		now:     time.Now,
	}
}

// Create starts a session and returns its id.
func (s *Sessions) Create() (string, *view.View) {
	sess := &session{
		id:       uuid.NewString(),
		view:     s.newView(),
		lastSeen: s.now(),
	}

	s.mu.Lock()
	s.items[sess.id] = sess
	s.mu.Unlock()

	return sess.id, sess.view
}

// Get returns the view of a live session and marks it as used.
func (s *Sessions) Get(id string) (*view.View, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.items[id]
	if !ok {
		return nil, false
	}
	sess.lastSeen = s.now()
	return sess.view, true
}

// Watch marks the session as observed until the returned release function
// is called. Release also counts as activity. Reports false when the session
// does not exist.
func (s *Sessions) Watch(id string) (func(), bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.items[id]
	if !ok {
		return func() {}, false
	}
	sess.watchers++
	sess.lastSeen = s.now()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			sess.watchers--
			sess.lastSeen = s.now()
		})
	}, true
}

// Close tears down a session. Reports whether it existed.
func (s *Sessions) Close(id string) bool {
	s.mu.Lock()
	sess, ok := s.items[id]
	delete(s.items, id)
	s.mu.Unlock()

	if ok {
		sess.view.Close()
	}
	return ok
}

// Len returns the number of live sessions.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Sweep closes sessions idle for longer than the ttl and returns how many
// were closed. Sessions with a request in flight or an open event stream
// are kept.
func (s *Sessions) Sweep() int {
	if s.ttl <= 0 {
		return 0
	}
	cutoff := s.now().Add(-s.ttl)

	var expired []*session
	s.mu.Lock()
	for id, sess := range s.items {
		if sess.watchers > 0 || !sess.lastSeen.Before(cutoff) {
			continue
		}
		if !sess.view.Snapshot().Loading {
			expired = append(expired, sess)
			delete(s.items, id)
		}
	}
	s.mu.Unlock()

	for _, sess := range expired {
		sess.view.Close()
	}
	return len(expired)
}

// CloseAll tears down every session.
func (s *Sessions) CloseAll() {
	s.mu.Lock()
	items := s.items
	s.items = make(map[string]*session)
	s.mu.Unlock()

	for _, sess := range items {
		sess.view.Close()
	}
}

// RunJanitor sweeps expired sessions every interval until ctx is done.
func (s *Sessions) RunJanitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				log.Printf("Expired %d idle sessions", n)
			}
		}
	}
}
