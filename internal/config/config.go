package config

import (
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-faster/errors"
)

type Config struct {
	Server   ServerConfig   `toml:"server"`
	Logging  LoggingConfig  `toml:"logging"`
	Limits   LimitsConfig   `toml:"limits"`
	Security SecurityConfig `toml:"security"`
	Session  SessionConfig  `toml:"session"`
	Events   EventsConfig   `toml:"events"`
	Audit    AuditConfig    `toml:"audit"`
}

type ServerConfig struct {
	Stdio      bool   `toml:"stdio"`
	HTTPListen string `toml:"http_listen"`
	HTTPPath   string `toml:"http_path"`
	WSPath     string `toml:"ws_path"`
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
	Output string `toml:"output"`
}

type LimitsConfig struct {
	DefaultTimeoutMs int    `toml:"default_timeout_ms"`
	HardTimeoutMs    int    `toml:"hard_timeout_ms"`
	MaxOutputBytes   int    `toml:"max_output_bytes"`
	MaxFileReadBytes int    `toml:"max_file_read_bytes"`
	LockTimeoutMs    int    `toml:"lock_timeout_ms"`
	LockDir          string `toml:"lock_dir"`
}

type SecurityConfig struct {
	AllowShell     bool          `toml:"allow_shell"`
	DeniedCommands []string      `toml:"denied_commands"`
	AllowedRoot    []AllowedRoot `toml:"allowed_roots"`
}

type AllowedRoot struct {
	Path string `toml:"path"`
}

type SessionConfig struct {
	SystemPrompt string `toml:"system_prompt"`
	Streaming    bool   `toml:"streaming"`
	MaxFollowUps int    `toml:"max_follow_ups"`
}

type EventsConfig struct {
	HubBuffer int `toml:"hub_buffer"`
}

type AuditConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

const DefaultSystemPrompt = "You are a terminal assistant. To run a tool, emit a JSON-RPC object " +
	`{"jsonrpc":"2.0","method":"mcp.tool_call","params":{"name":"<tool>","parameters":{...}}}` +
	" and wait for its result."

func Default() Config {
	return Config{
		Server: ServerConfig{
			Stdio:    true,
			HTTPPath: "/rpc",
			WSPath:   "/ws",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
			Output: "stderr",
		},
		Limits: LimitsConfig{
			DefaultTimeoutMs: 30000,
			HardTimeoutMs:    300000,
			MaxOutputBytes:   1048576,
			MaxFileReadBytes: 10 * 1024 * 1024,
			LockTimeoutMs:    5000,
		},
		Security: SecurityConfig{
			AllowShell: true,
			DeniedCommands: []string{
				"rm -rf", "sudo", "chmod", "chown", "mkfs", "dd",
				"shutdown", "reboot", "halt",
			},
		},
		Session: SessionConfig{
			SystemPrompt: DefaultSystemPrompt,
			Streaming:    true,
			MaxFollowUps: 4,
		},
		Events: EventsConfig{
			HubBuffer: 128,
		},
	}
}

// Load decodes path on top of Default. A missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, errors.Wrap(err, "stat config")
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, errors.Wrapf(err, "decode %s", path)
	}
	return cfg, nil
}

func AllowedRoots(cfg Config) []string {
	roots := make([]string, 0, len(cfg.Security.AllowedRoot))
	for _, r := range cfg.Security.AllowedRoot {
		if r.Path != "" {
			roots = append(roots, r.Path)
		}
	}
	return roots
}

func (l LimitsConfig) DefaultTimeout() time.Duration {
	return time.Duration(l.DefaultTimeoutMs) * time.Millisecond
}

func (l LimitsConfig) HardTimeout() time.Duration {
	return time.Duration(l.HardTimeoutMs) * time.Millisecond
}

func (l LimitsConfig) LockTimeout() time.Duration {
	return time.Duration(l.LockTimeoutMs) * time.Millisecond
}
