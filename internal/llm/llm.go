package llm

import (
	"context"
	"encoding/json"

	"github.com/go-faster/errors"
)

var ErrCancelled = errors.New("request cancelled")

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Conversation is the snapshot sent to a model for one request.
type Conversation struct {
	RequestID    string
	SystemPrompt string
	Messages     []Message
}

type ToolCall struct {
	ID     string          `json:"id"`
	Tool   string          `json:"tool"`
	Params json.RawMessage `json:"params"`
}

type Response struct {
	ID        string
	Content   string
	ToolCalls []ToolCall
}

// StreamChunk is one piece of a streamed response. The final chunk has
// IsComplete set; a chunk with Err set ends the stream.
type StreamChunk struct {
	ID         string
	Content    string
	IsToolCall bool
	ToolCall   *ToolCall
	IsComplete bool
	Err        error
}

type Client interface {
	SendMessage(ctx context.Context, conv Conversation) (Response, error)
	StreamMessage(ctx context.Context, conv Conversation) (<-chan StreamChunk, error)
	CancelRequest(id string) error
}
