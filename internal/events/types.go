package events

import (
	"encoding/json"

	"github.com/samiralibabic/mcpterm/internal/tools"
)

type UIEvent interface {
	Name() string
	uiEvent()
}

type ModelEvent interface {
	Name() string
	modelEvent()
}

type APIEvent interface {
	Name() string
	apiEvent()
}

type KeyCode string

const (
	KeyChar      KeyCode = "char"
	KeyEnter     KeyCode = "enter"
	KeyEsc       KeyCode = "esc"
	KeyBackspace KeyCode = "backspace"
	KeyTab       KeyCode = "tab"
	KeyUp        KeyCode = "up"
	KeyDown      KeyCode = "down"
	KeyLeft      KeyCode = "left"
	KeyRight     KeyCode = "right"
	KeyPgUp      KeyCode = "pgup"
	KeyPgDown    KeyCode = "pgdown"
	KeyHome      KeyCode = "home"
	KeyEnd       KeyCode = "end"
	KeyDelete    KeyCode = "delete"
	KeyF         KeyCode = "f"
	KeyOther     KeyCode = "other"
)

type Modifiers uint8

const (
	ModShift Modifiers = 1 << iota
	ModCtrl
	ModAlt
)

func (m Modifiers) Has(mod Modifiers) bool { return m&mod != 0 }

// Key is a terminal key press. Rune is set for KeyChar, F for function keys.
type Key struct {
	Code      KeyCode   `json:"code"`
	Rune      rune      `json:"rune,omitempty"`
	F         int       `json:"f,omitempty"`
	Modifiers Modifiers `json:"modifiers,omitempty"`
}

type ScrollDirection string

const (
	ScrollUp   ScrollDirection = "up"
	ScrollDown ScrollDirection = "down"
)

type (
	KeyPress struct {
		Key Key `json:"key"`
	}
	UserInput struct {
		Text string `json:"text"`
	}
	// RequestCancellation with an empty RequestID cancels every active request.
	RequestCancellation struct {
		RequestID string `json:"request_id,omitempty"`
	}
	Quit   struct{}
	Scroll struct {
		Direction ScrollDirection `json:"direction"`
		Amount    int             `json:"amount"`
	}
	ClearConversation struct{}
	ToggleFocus       struct{}
)

func (KeyPress) Name() string            { return "ui.key_press" }
func (UserInput) Name() string           { return "ui.user_input" }
func (RequestCancellation) Name() string { return "ui.request_cancellation" }
func (Quit) Name() string                { return "ui.quit" }
func (Scroll) Name() string              { return "ui.scroll" }
func (ClearConversation) Name() string   { return "ui.clear_conversation" }
func (ToggleFocus) Name() string         { return "ui.toggle_focus" }

func (KeyPress) uiEvent()            {}
func (UserInput) uiEvent()           {}
func (RequestCancellation) uiEvent() {}
func (Quit) uiEvent()                {}
func (Scroll) uiEvent()              {}
func (ClearConversation) uiEvent()   {}
func (ToggleFocus) uiEvent()         {}

type (
	// ProcessUserMessage asks the session to run a model turn. Empty Text is a
	// follow-up turn over the existing conversation.
	ProcessUserMessage struct {
		Text string `json:"text"`
	}
	ToolRequest struct {
		RequestID string          `json:"request_id,omitempty"`
		ToolID    string          `json:"tool_id"`
		Params    json.RawMessage `json:"params"`
	}
	ToolResult struct {
		RequestID string       `json:"request_id,omitempty"`
		ToolID    string       `json:"tool_id"`
		Result    tools.Result `json:"result"`
	}
	LlmMessage struct {
		RequestID string `json:"request_id"`
		Content   string `json:"content"`
	}
	LlmStreamChunk struct {
		RequestID string `json:"request_id"`
		Content   string `json:"content"`
	}
	LlmResponseComplete struct {
		RequestID string `json:"request_id"`
		Cancelled bool   `json:"cancelled,omitempty"`
	}
	ResetContext struct{}
)

func (ProcessUserMessage) Name() string  { return "model.process_user_message" }
func (ToolRequest) Name() string         { return "model.tool_request" }
func (ToolResult) Name() string          { return "model.tool_result" }
func (LlmMessage) Name() string          { return "model.llm_message" }
func (LlmStreamChunk) Name() string      { return "model.llm_stream_chunk" }
func (LlmResponseComplete) Name() string { return "model.llm_response_complete" }
func (ResetContext) Name() string        { return "model.reset_context" }

func (ProcessUserMessage) modelEvent()  {}
func (ToolRequest) modelEvent()         {}
func (ToolResult) modelEvent()          {}
func (LlmMessage) modelEvent()          {}
func (LlmStreamChunk) modelEvent()      {}
func (LlmResponseComplete) modelEvent() {}
func (ResetContext) modelEvent()        {}

type (
	SendRequest struct {
		RequestID string `json:"request_id"`
	}
	ProcessStream struct {
		RequestID string `json:"request_id"`
	}
	CancelRequest struct {
		RequestID string `json:"request_id,omitempty"`
	}
	ConnectionEstablished struct {
		Transport string `json:"transport,omitempty"`
	}
	ConnectionLost struct {
		Reason string `json:"reason"`
	}
	Error struct {
		Message string `json:"message"`
	}
)

func (SendRequest) Name() string           { return "api.send_request" }
func (ProcessStream) Name() string         { return "api.process_stream" }
func (CancelRequest) Name() string         { return "api.cancel_request" }
func (ConnectionEstablished) Name() string { return "api.connection_established" }
func (ConnectionLost) Name() string        { return "api.connection_lost" }
func (Error) Name() string                 { return "api.error" }

func (SendRequest) apiEvent()           {}
func (ProcessStream) apiEvent()         {}
func (CancelRequest) apiEvent()         {}
func (ConnectionEstablished) apiEvent() {}
func (ConnectionLost) apiEvent()        {}
func (Error) apiEvent()                 {}
