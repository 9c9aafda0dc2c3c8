package session

import "sync"

// State is a snapshot of the store. Loading is true only during the
// bootstrap phase; after the first resolution it stays false for the
// life of the process.
type State struct {
	Session *Session
	Loading bool
}

// Store holds the process-wide session. It has exactly one writer role
// (the lifecycle manager); everything else reads snapshots or subscribes
// for changes.
type Store struct {
	mu          sync.RWMutex
	session     *Session
	loading     bool
	subscribers map[int]func(State)
	nextSubID   int
}

// NewStore creates a store in the bootstrap (loading) phase.
func NewStore() *Store {
	return &Store{
		loading:     true,
		subscribers: make(map[int]func(State)),
	}
}

// Snapshot returns the last written state.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return State{Session: s.session, Loading: s.loading}
}

// AccessToken returns the current bearer token, or "" when signed out.
func (s *Store) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.session == nil {
		return ""
	}
	return s.session.AccessToken
}

// Set replaces the session wholesale and ends the loading phase. The
// session value and the loading flag change under one lock so consumers
// never observe loading=false paired with a stale session.
func (s *Store) Set(sess *Session) {
	s.mu.Lock()
	s.session = sess
	s.loading = false
	state := State{Session: s.session, Loading: s.loading}
	subs := make([]func(State), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(state)
	}
}

// Subscribe registers a callback invoked synchronously on every change.
// The returned function removes the subscription.
func (s *Store) Subscribe(fn func(State)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subscribers, id)
		s.mu.Unlock()
	}
}
