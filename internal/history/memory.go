package history

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/jasper0315/icebreak-app/internal/session"
)

// MemoryStore keeps conversations in process memory. It backs tests
// and deployments that opt out of durable history.
type MemoryStore struct {
	mu       sync.RWMutex
	messages map[string][]session.Message
	ended    map[string]bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		messages: make(map[string][]session.Message),
		ended:    make(map[string]bool),
	}
}

func (m *MemoryStore) StartConversation(ctx context.Context) (string, error) {
	id := uuid.New().String()
	m.mu.Lock()
	m.messages[id] = []session.Message{}
	m.mu.Unlock()
	return id, nil
}

func (m *MemoryStore) AppendMessage(ctx context.Context, conversationID string, msg session.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.messages[conversationID]; !ok {
		return ErrConversationNotFound
	}
	m.messages[conversationID] = append(m.messages[conversationID], msg)
	return nil
}

func (m *MemoryStore) LoadHistory(ctx context.Context, conversationID string) ([]session.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	src, ok := m.messages[conversationID]
	if !ok {
		return nil, ErrConversationNotFound
	}
	out := make([]session.Message, len(src))
	copy(out, src)
	return out, nil
}

func (m *MemoryStore) EndConversation(ctx context.Context, conversationID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.messages[conversationID]; !ok {
		return ErrConversationNotFound
	}
	m.ended[conversationID] = true
	return nil
}

func (m *MemoryStore) Close() error { return nil }
