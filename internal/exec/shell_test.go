package exec

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"go.uber.org/zap/zaptest"

	"github.com/samiralibabic/mcpterm/internal/policy"
	"github.com/samiralibabic/mcpterm/internal/tools"
)

func newShell(t *testing.T, opts ShellOptions) (*ShellTool, *Manager) {
	t.Helper()
	root := t.TempDir()
	pol, err := policy.New([]string{root}, true, []string{"sudo", "rm -rf"})
	if err != nil {
		t.Fatalf("policy: %v", err)
	}
	if opts.WorkDir == "" {
		opts.WorkDir = root
	}
	procs := NewManager()
	return NewShellTool(pol, procs, opts, zaptest.NewLogger(t)), procs
}

func run(t *testing.T, tool *ShellTool, params string) (tools.Result, ProcessState, error) {
	t.Helper()
	res, err := tool.Execute(context.Background(), json.RawMessage(params))
	var state ProcessState
	if err == nil {
		if uerr := json.Unmarshal(res.Output, &state); uerr != nil {
			t.Fatalf("decode output %s: %v", res.Output, uerr)
		}
	}
	return res, state, err
}

func TestShellSuccess(t *testing.T) {
	tool, procs := newShell(t, ShellOptions{})
	res, state, err := run(t, tool, `{"command":"echo hello; echo oops >&2"}`)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if res.Status != tools.StatusSuccess || res.Error != "" {
		t.Fatalf("unexpected result: %#v", res)
	}
	if state.Stdout != "hello\n" || state.Stderr != "oops\n" || *state.ExitCode != 0 {
		t.Fatalf("unexpected state: %#v", state)
	}
	if procs.Running() != 0 {
		t.Fatalf("expected no tracked processes, got %d", procs.Running())
	}
}

func TestShellRunsInWorkDir(t *testing.T) {
	tool, _ := newShell(t, ShellOptions{})
	_, state, err := run(t, tool, `{"command":"pwd"}`)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if strings.TrimSpace(state.Stdout) != tool.opts.WorkDir {
		t.Fatalf("pwd %q, want %q", state.Stdout, tool.opts.WorkDir)
	}
	if _, _, err := run(t, tool, `{"command":"pwd","cwd":"/"}`); !errors.Is(err, policy.ErrForbiddenPath) {
		t.Fatalf("expected ErrForbiddenPath, got %v", err)
	}
}

func TestShellNonZeroExit(t *testing.T) {
	tool, _ := newShell(t, ShellOptions{})
	res, state, err := run(t, tool, `{"command":"echo bad >&2; exit 3"}`)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if res.Status != tools.StatusFailure || res.Error != "command exited with code 3: bad" {
		t.Fatalf("unexpected result: %#v", res)
	}
	if *state.ExitCode != 3 {
		t.Fatalf("unexpected exit code %d", *state.ExitCode)
	}
}

func TestShellTimeout(t *testing.T) {
	tool, _ := newShell(t, ShellOptions{})
	start := time.Now()
	res, state, err := run(t, tool, `{"command":"sleep 5","timeout":100}`)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if res.Status != tools.StatusTimeout || !state.TimedOut {
		t.Fatalf("expected timeout, got %#v", res)
	}
	if time.Since(start) > 3*time.Second {
		t.Fatal("timeout did not kill the command promptly")
	}
}

func TestShellHardTimeoutClamps(t *testing.T) {
	tool, _ := newShell(t, ShellOptions{HardTimeout: 100 * time.Millisecond})
	res, _, err := run(t, tool, `{"command":"sleep 5","timeout":60000}`)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if res.Status != tools.StatusTimeout {
		t.Fatalf("expected timeout, got %#v", res)
	}
}

func TestShellContextDeadline(t *testing.T) {
	tool, _ := newShell(t, ShellOptions{})
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	res, err := tool.Execute(ctx, json.RawMessage(`{"command":"sleep 5"}`))
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if res.Status != tools.StatusTimeout {
		t.Fatalf("expected timeout, got %#v", res)
	}
}

func TestShellPolicy(t *testing.T) {
	tool, _ := newShell(t, ShellOptions{})
	if _, _, err := run(t, tool, `{"command":"sudo ls"}`); !errors.Is(err, policy.ErrCommandDenied) {
		t.Fatalf("expected ErrCommandDenied, got %v", err)
	}
	if _, _, err := run(t, tool, `{"command":""}`); err == nil {
		t.Fatal("expected error for empty command")
	}
}

func TestShellOutputLimit(t *testing.T) {
	tool, _ := newShell(t, ShellOptions{MaxOutputBytes: 1000})
	res, state, err := run(t, tool, `{"command":"yes | head -c 100000"}`)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !state.Truncated || state.BytesStdout != 1000 || len(state.Stdout) != 1000 {
		t.Fatalf("expected truncated output, got %d bytes (truncated=%v)", len(state.Stdout), state.Truncated)
	}
	if res.Status == tools.StatusTimeout {
		t.Fatalf("output limit must not be reported as a timeout: %#v", res)
	}
}

func TestShellOnOutput(t *testing.T) {
	var mu sync.Mutex
	var got strings.Builder
	tool, _ := newShell(t, ShellOptions{OnOutput: func(_, stream string, data []byte) {
		mu.Lock()
		defer mu.Unlock()
		got.WriteString(stream + ":" + string(data))
	}})
	if _, _, err := run(t, tool, `{"command":"printf streamed"}`); err != nil {
		t.Fatalf("execute: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if got.String() != "stdout:streamed" {
		t.Fatalf("unexpected observed output %q", got.String())
	}
}

func TestShellTTY(t *testing.T) {
	tool, _ := newShell(t, ShellOptions{})
	res, state, err := run(t, tool, `{"command":"test -t 1 && echo on-a-tty","tty":true}`)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if res.Status != tools.StatusSuccess || !strings.Contains(state.Stdout, "on-a-tty") {
		t.Fatalf("unexpected pty result: %#v %q", res, state.Stdout)
	}
}

func TestShellThroughCoordinator(t *testing.T) {
	tool, _ := newShell(t, ShellOptions{})
	c := tools.NewCoordinator(tools.NewRegistry(tool))
	res := c.Execute(context.Background(), ShellToolID, json.RawMessage(`{}`))
	if res.Status != tools.StatusFailure || !strings.Contains(res.Error, "missing required parameter(s): command") {
		t.Fatalf("unexpected result: %#v", res)
	}
	res = c.Execute(context.Background(), ShellToolID, json.RawMessage(`{"command":"echo via coordinator"}`))
	if res.Status != tools.StatusSuccess {
		t.Fatalf("unexpected result: %#v", res)
	}
}
