package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/samiralibabic/mcpterm/internal/config"
)

func TestNewWritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mcpterm.log")
	log, err := New(config.LoggingConfig{Level: "debug", Format: "json", Output: path})
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	log.Debug("hello")
	_ = log.Sync()

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	var line map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(string(raw))), &line); err != nil {
		t.Fatalf("decode log line %q: %v", raw, err)
	}
	if line["msg"] != "hello" || line["logger"] != "mcpterm" {
		t.Fatalf("unexpected log line: %v", line)
	}
}

func TestNewRejectsBadConfig(t *testing.T) {
	if _, err := New(config.LoggingConfig{Level: "loud"}); err == nil {
		t.Fatal("expected error for unknown level")
	}
	if _, err := New(config.LoggingConfig{Format: "xml"}); err == nil {
		t.Fatal("expected error for unknown format")
	}
}
