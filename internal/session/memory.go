package session

import (
	"context"
	"sync"

	"github.com/yanmxa/finsight/internal/message"
)

// MemoryStore keeps sessions in process memory
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]Session
	messages map[string][]message.Message
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]Session),
		messages: make(map[string][]message.Message),
	}
}

func (s *MemoryStore) GetSession(_ context.Context, id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &sess, nil
}

func (s *MemoryStore) PutSession(_ context.Context, sess *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = *sess
	return nil
}

func (s *MemoryStore) ListMessages(_ context.Context, sessionID string) ([]message.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]message.Message(nil), s.messages[sessionID]...), nil
}

func (s *MemoryStore) AppendMessage(_ context.Context, sessionID string, m message.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[sessionID] = append(s.messages[sessionID], m)
	return nil
}

func (s *MemoryStore) Close() error { return nil }
