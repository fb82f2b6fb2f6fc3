package tools

import (
	"context"
	"encoding/json"

	"github.com/go-faster/errors"
)

type Category string

const (
	CategoryShell      Category = "Shell"
	CategoryFilesystem Category = "Filesystem"
	CategorySearch     Category = "Search"
	CategoryUtility    Category = "Utility"
	CategoryGeneral    Category = "General"
)

type Status string

const (
	StatusSuccess Status = "Success"
	StatusFailure Status = "Failure"
	StatusTimeout Status = "Timeout"
)

var (
	ErrToolNotFound = errors.New("tool not found")
	// ErrTimeout may be wrapped by tools to report that their own time limit
	// was hit.
	ErrTimeout = errors.New("tool timed out")
)

type Metadata struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	Category     Category        `json:"category"`
	InputSchema  json.RawMessage `json:"input_schema"`
	OutputSchema json.RawMessage `json:"output_schema"`
}

// Result is the outcome of one tool invocation. Error is set exactly when
// Status is not Success.
type Result struct {
	ToolID string          `json:"tool_id"`
	Status Status          `json:"status"`
	Output json.RawMessage `json:"output"`
	Error  string          `json:"error,omitempty"`
}

// Tool is implemented by every executable tool. Execute may block for a long
// time and should honour ctx's deadline.
type Tool interface {
	Metadata() Metadata
	Execute(ctx context.Context, params json.RawMessage) (Result, error)
}

func Success(toolID string, output any) (Result, error) {
	raw, err := json.Marshal(output)
	if err != nil {
		return Result{}, errors.Wrap(err, "encode tool output")
	}
	return Result{ToolID: toolID, Status: StatusSuccess, Output: raw}, nil
}

func Failure(toolID, msg string) Result {
	return Result{ToolID: toolID, Status: StatusFailure, Output: json.RawMessage("null"), Error: msg}
}

func Timeout(toolID, msg string) Result {
	return Result{ToolID: toolID, Status: StatusTimeout, Output: json.RawMessage("null"), Error: msg}
}

func isTimeout(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded)
}

func resultFromError(toolID string, err error) Result {
	if isTimeout(err) {
		return Timeout(toolID, err.Error())
	}
	return Failure(toolID, err.Error())
}
