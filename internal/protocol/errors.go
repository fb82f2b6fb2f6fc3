package protocol

import (
	"encoding/json"
	"fmt"
)

type Code int

const (
	ParseError     Code = -32700
	InvalidRequest Code = -32600
	MethodNotFound Code = -32601
	InvalidParams  Code = -32602
	InternalError  Code = -32603
	ServerError    Code = -32000

	ResourceNotFound      Code = -33000
	ResourceAccessDenied  Code = -33001
	ToolExecutionFailed   Code = -33002
	InvalidTool           Code = -33003
	PromptExecutionFailed Code = -33004
	SamplingFailed        Code = -33005
	RootNotFound          Code = -33006
	InvalidRoot           Code = -33007

	// ToolFailure is returned by tools.execute when the tool layer itself fails.
	ToolFailure Code = 1000
)

var messages = map[Code]string{
	ParseError:            "Parse error",
	InvalidRequest:        "Invalid request",
	MethodNotFound:        "Method not found",
	InvalidParams:         "Invalid params",
	InternalError:         "Internal error",
	ServerError:           "Server error",
	ResourceNotFound:      "Resource not found",
	ResourceAccessDenied:  "Resource access denied",
	ToolExecutionFailed:   "Tool execution failed",
	InvalidTool:           "Invalid tool",
	PromptExecutionFailed: "Prompt execution failed",
	SamplingFailed:        "Sampling failed",
	RootNotFound:          "Root not found",
	InvalidRoot:           "Invalid root",
	ToolFailure:           "Tool execution failed",
}

// Message returns the fixed message for c.
func (c Code) Message() string {
	if m, ok := messages[c]; ok {
		return m
	}
	return "Unknown error"
}

type Error struct {
	Code    Code            `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

// NewError builds an error with the fixed message for code. Data that cannot
// be encoded is dropped.
func NewError(code Code, data any) *Error {
	return withData(&Error{Code: code, Message: code.Message()}, data)
}

func Errorf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func withData(e *Error, data any) *Error {
	if data == nil {
		return e
	}
	if raw, err := json.Marshal(data); err == nil {
		e.Data = raw
	}
	return e
}
