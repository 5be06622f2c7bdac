package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

type memorySession struct {
	session  Session
	messages []Message
}

// MemoryStore keeps all session state in process memory. This is the default
// backing; state is lost on restart.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*memorySession
	order    []string
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: map[string]*memorySession{}}
}

func (s *MemoryStore) createLocked(id string) *Session {
	ms := &memorySession{
		session: Session{
			ID:        id,
			Name:      fmt.Sprintf("Chat %d", len(s.sessions)+1),
			CreatedAt: now(),
		},
	}
	s.sessions[id] = ms
	s.order = append(s.order, id)
	sess := ms.session
	return &sess
}

func (s *MemoryStore) Create(_ context.Context) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createLocked(uuid.NewString()), nil
}

func (s *MemoryStore) Ensure(_ context.Context, id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ms, ok := s.sessions[id]; ok {
		sess := ms.session
		return &sess, nil
	}
	return s.createLocked(id), nil
}

func (s *MemoryStore) List(_ context.Context) ([]*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Session, 0, len(s.order))
	for _, id := range s.order {
		sess := s.sessions[id].session
		out = append(out, &sess)
	}
	return out, nil
}

func (s *MemoryStore) Rename(_ context.Context, id string, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ms, ok := s.sessions[id]
	if !ok {
		return ErrNotFound
	}
	ms.session.Name = name
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return nil
	}
	delete(s.sessions, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

func (s *MemoryStore) Reset(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ms, ok := s.sessions[id]
	if !ok {
		return ErrNotFound
	}
	ms.messages = nil
	ms.session.SystemPrompt = ""
	return nil
}

func (s *MemoryStore) Messages(_ context.Context, id string) ([]Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ms, ok := s.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]Message, len(ms.messages))
	copy(out, ms.messages)
	return out, nil
}

func (s *MemoryStore) Import(_ context.Context, id string, msgs []Message) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ms, ok := s.sessions[id]
	if !ok {
		return 0, ErrNotFound
	}
	replaced := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		replaced = append(replaced, stamped(m))
	}
	ms.messages = replaced
	return len(replaced), nil
}

func (s *MemoryStore) Append(_ context.Context, id string, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ms, ok := s.sessions[id]
	if !ok {
		return ErrNotFound
	}
	ms.messages = append(ms.messages, stamped(msg))
	return nil
}

func (s *MemoryStore) SystemPrompt(_ context.Context, id string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ms, ok := s.sessions[id]
	if !ok {
		return "", ErrNotFound
	}
	return ms.session.SystemPrompt, nil
}

func (s *MemoryStore) SetSystemPrompt(_ context.Context, id string, prompt string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ms, ok := s.sessions[id]
	if !ok {
		return ErrNotFound
	}
	ms.session.SystemPrompt = prompt
	return nil
}
