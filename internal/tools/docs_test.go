package tools

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestDocumentation(t *testing.T) {
	shell := echoTool()
	shell.meta.ID = "shell"
	shell.meta.Description = "Run a shell command"
	shell.meta.InputSchema = json.RawMessage(`{"type":"object","required":["command"],"properties":{"command":{"type":"string","description":"command line"},"timeout":{"type":"integer","description":"seconds"}}}`)
	bare := echoTool()
	bare.meta.Description = "Echo params"

	doc := NewRegistry(shell, bare).Documentation()
	for _, want := range []string{
		"Available tools:",
		`1. "echo": Echo params`,
		`2. "shell": Run a shell command`,
		`"command": "string", // command line`,
		`"timeout": "integer", // Optional: seconds`,
	} {
		if !strings.Contains(doc, want) {
			t.Fatalf("documentation missing %q:\n%s", want, doc)
		}
	}
	if strings.Index(doc, `"command"`) > strings.Index(doc, `"timeout"`) {
		t.Fatalf("parameters not sorted:\n%s", doc)
	}
}
