package extract

import (
	"encoding/json"
	"strings"

	"github.com/samiralibabic/mcpterm/internal/protocol"
)

const DefaultPlaceholder = "[Tool command detected and executed]"

// Segment is either a run of prose or an embedded object, never both.
type Segment struct {
	Text   string
	Object *Match
}

// Split breaks text into prose and JSON-RPC object segments in order of
// appearance. Prose is trimmed and blank runs are dropped.
func Split(text string) []Segment {
	var out []Segment
	addText := func(s string) {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, Segment{Text: s})
		}
	}
	pos := 0
	for _, m := range Objects(text) {
		addText(text[pos:m.Start])
		m := m
		out = append(out, Segment{Object: &m})
		pos = m.End
	}
	addText(text[pos:])
	return out
}

// Filter replaces every embedded tool call in text with placeholder and
// leaves everything else untouched.
func Filter(text, placeholder string) string {
	var b strings.Builder
	pos := 0
	for _, m := range Objects(text) {
		if _, ok := toolCall(m); !ok {
			continue
		}
		b.WriteString(text[pos:m.Start])
		b.WriteString(placeholder)
		pos = m.End
	}
	if pos == 0 {
		return text
	}
	b.WriteString(text[pos:])
	return b.String()
}

// Call is a tool invocation requested from inside model output.
type Call struct {
	ToolID string
	Params json.RawMessage
	Match  Match
}

// ToolCalls returns the tool invocations embedded in text, in order. Both the
// mcp.tool_call form ({name, parameters}) and tools.execute requests
// ({tool_id, params}) are recognised.
func ToolCalls(text string) []Call {
	var out []Call
	for _, m := range Objects(text) {
		if c, ok := toolCall(m); ok {
			out = append(out, c)
		}
	}
	return out
}

func toolCall(m Match) (Call, bool) {
	var req protocol.Request
	if err := json.Unmarshal(m.Raw, &req); err != nil {
		return Call{}, false
	}
	var c Call
	switch req.Method {
	case protocol.MethodToolCall:
		var p protocol.ToolCallParams
		if err := json.Unmarshal(req.Params, &p); err != nil {
			return Call{}, false
		}
		c = Call{ToolID: p.Name, Params: p.Parameters}
	case protocol.MethodToolsExecute:
		var p protocol.ToolsExecuteParams
		if err := json.Unmarshal(req.Params, &p); err != nil {
			return Call{}, false
		}
		c = Call{ToolID: p.ToolID, Params: p.Params}
	default:
		return Call{}, false
	}
	if c.ToolID == "" {
		return Call{}, false
	}
	if len(c.Params) == 0 || string(c.Params) == "null" {
		c.Params = json.RawMessage("{}")
	}
	c.Match = m
	return c, true
}
