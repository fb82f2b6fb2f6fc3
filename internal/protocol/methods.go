package protocol

import "encoding/json"

const (
	MethodToolsList      = "tools.list"
	MethodToolsExecute   = "tools.execute"
	MethodResourcesList  = "resources.list"
	MethodResourcesRead  = "resources.read"
	MethodSessionSend    = "session.send"
	MethodSessionCancel  = "session.cancel"
	MethodSessionClear   = "session.clear"
	MethodSessionHistory = "session.history"

	// MethodToolCall is the method models embed in their output to request a
	// tool invocation.
	MethodToolCall = "mcp.tool_call"
)

type ToolsExecuteParams struct {
	ToolID string          `json:"tool_id"`
	Params json.RawMessage `json:"params"`
}

type ToolCallParams struct {
	Name       string          `json:"name"`
	Parameters json.RawMessage `json:"parameters"`
}

type ResourceReadParams struct {
	URI string `json:"uri"`
}

type ResourceReadResult struct {
	URI     string `json:"uri"`
	Mode    string `json:"mode"`
	Size    int    `json:"size"`
	Content string `json:"content"`
}

type SessionSendParams struct {
	Text string `json:"text"`
}

type SessionSendResult struct {
	SessionID string `json:"session_id"`
	Accepted  bool   `json:"accepted"`
}

type SessionCancelParams struct {
	RequestID string `json:"request_id,omitempty"`
}

type SessionHistoryResult struct {
	SessionID    string           `json:"session_id"`
	SystemPrompt string           `json:"system_prompt,omitempty"`
	Messages     []HistoryMessage `json:"messages"`
}

type HistoryMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
