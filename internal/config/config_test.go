package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Limits.HardTimeoutMs != 300000 || cfg.Server.HTTPPath != "/rpc" || !cfg.Session.Streaming {
		t.Fatalf("unexpected defaults: %#v", cfg)
	}
	if len(cfg.Security.DeniedCommands) != 9 {
		t.Fatalf("unexpected denied commands: %v", cfg.Security.DeniedCommands)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mcpterm.toml")
	body := `
[server]
stdio = false
http_listen = "127.0.0.1:7070"

[logging]
level = "debug"

[limits]
default_timeout_ms = 1500

[security]
allow_shell = false
denied_commands = ["curl"]

[[security.allowed_roots]]
path = "/srv/work"

[session]
max_follow_ups = 1
`
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Stdio || cfg.Server.HTTPListen != "127.0.0.1:7070" || cfg.Server.WSPath != "/ws" {
		t.Fatalf("unexpected server config: %#v", cfg.Server)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "console" {
		t.Fatalf("unexpected logging config: %#v", cfg.Logging)
	}
	if cfg.Limits.DefaultTimeout() != 1500*time.Millisecond || cfg.Limits.HardTimeout() != 300*time.Second {
		t.Fatalf("unexpected limits: %#v", cfg.Limits)
	}
	if cfg.Security.AllowShell || len(cfg.Security.DeniedCommands) != 1 {
		t.Fatalf("unexpected security config: %#v", cfg.Security)
	}
	if roots := AllowedRoots(cfg); len(roots) != 1 || roots[0] != "/srv/work" {
		t.Fatalf("unexpected roots: %v", roots)
	}
	if cfg.Session.MaxFollowUps != 1 || cfg.Session.SystemPrompt != DefaultSystemPrompt {
		t.Fatalf("unexpected session config: %#v", cfg.Session)
	}
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	if err := os.WriteFile(path, []byte("[server\nstdio = "), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected decode error")
	}
}
