package session

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jasper0315/icebreak-app/internal/phase"
	"github.com/jasper0315/icebreak-app/internal/roster"
)

var (
	ErrSessionExists   = errors.New("session already exists")
	ErrSessionNotFound = errors.New("session not found")
)

// Store keeps every live session behind one mutex. Mutations to a
// session's phase, roster, and log all go through the store so the
// append-only and single-writer invariants hold.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewStore() *Store {
	return &Store{sessions: make(map[string]*Session)}
}

// Create builds a new active session for a validated roster.
func (s *Store) Create(r *roster.Roster, conversationID string) *Session {
	sess := &Session{
		ID:             uuid.New().String(),
		ConversationID: conversationID,
		Roster:         r,
		Phase:          phase.Initial,
		CreatedAt:      time.Now().UTC(),
		Status:         StatusActive,
	}
	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()
	return sess
}

// Put inserts a pre-built session, failing if the ID is taken. Used
// when rehydrating a session from persisted history.
func (s *Store) Put(sess *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sess.ID]; ok {
		return ErrSessionExists
	}
	s.sessions[sess.ID] = sess
	return nil
}

// Get returns the session or nil.
func (s *Store) Get(id string) *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessions[id]
}

// AppendMessage appends to the session log and returns the stored copy.
func (s *Store) AppendMessage(id string, msg Message) (Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return Message{}, ErrSessionNotFound
	}
	sess.Messages = append(sess.Messages, msg)
	return msg, nil
}

// ListMessages returns a copy of the log in insertion order.
func (s *Store) ListMessages(id string) []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil
	}
	out := make([]Message, len(sess.Messages))
	copy(out, sess.Messages)
	return out
}

// Snapshot returns the session's phase and roster cursor together, so
// callers see a consistent pair.
func (s *Store) Snapshot(id string) (phase.Phase, int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return "", 0, false
	}
	return sess.Phase, sess.Roster.SpeakerIndex, true
}

// Commit applies a phase transition and optionally advances the roster
// cursor in one critical section.
func (s *Store) Commit(id string, next phase.Phase, advanceRoster bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	sess.Phase = next
	if advanceRoster {
		sess.Roster.Advance()
	}
	return nil
}

// SetStatus marks a session active or ended.
func (s *Store) SetStatus(id, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	sess.Status = status
	return nil
}

// ListIDs returns the IDs of every known session.
func (s *Store) ListIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		out = append(out, id)
	}
	return out
}
