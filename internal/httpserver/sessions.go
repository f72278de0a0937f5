package httpserver

import (
	"errors"
	"sync"

	"github.com/safeclick/safeclick/session"
)

var errUnknownSession = errors.New("unknown chat session")

// sessionStore holds the open chat sessions by id.
type sessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*session.Session
}

func newSessionStore() *sessionStore {
	return &sessionStore{sessions: make(map[string]*session.Session)}
}

func (s *sessionStore) put(sess *session.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID()] = sess
}

func (s *sessionStore) get(id string) (*session.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, errUnknownSession
	}
	return sess, nil
}

// remove cancels and forgets the session.
func (s *sessionStore) remove(id string) error {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if !ok {
		return errUnknownSession
	}
	sess.Cancel()
	return nil
}

// closeAll cancels every streaming reply.
func (s *sessionStore) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, sess := range s.sessions {
		sess.Cancel()
		delete(s.sessions, id)
	}
}
