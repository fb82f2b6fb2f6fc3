package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/samiralibabic/mcpterm/internal/llm"
)

// Session is one conversation with the model.
type Session struct {
	id        string
	createdAt time.Time

	mu           sync.RWMutex
	systemPrompt string
	messages     []llm.Message
}

func New(systemPrompt string) *Session {
	return &Session{
		id:           uuid.NewString(),
		createdAt:    time.Now().UTC(),
		systemPrompt: systemPrompt,
	}
}

func (s *Session) ID() string { return s.id }

func (s *Session) CreatedAt() time.Time { return s.createdAt }

func (s *Session) SystemPrompt() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.systemPrompt
}

func (s *Session) Append(role llm.Role, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, llm.Message{Role: role, Content: content})
}

func (s *Session) Messages() []llm.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]llm.Message(nil), s.messages...)
}

func (s *Session) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = nil
}

// Conversation snapshots the session for a model request.
func (s *Session) Conversation(requestID string) llm.Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return llm.Conversation{
		RequestID:    requestID,
		SystemPrompt: s.systemPrompt,
		Messages:     append([]llm.Message(nil), s.messages...),
	}
}
