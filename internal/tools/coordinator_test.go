package tools

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/samiralibabic/mcpterm/internal/audit"
)

type funcTool struct {
	meta Metadata
	fn   func(ctx context.Context, params json.RawMessage) (Result, error)
}

func (f funcTool) Metadata() Metadata {
	return f.meta
}

func (f funcTool) Execute(ctx context.Context, params json.RawMessage) (Result, error) {
	return f.fn(ctx, params)
}

func newTool(id string, fn func(ctx context.Context, params json.RawMessage) (Result, error)) funcTool {
	return funcTool{meta: Metadata{ID: id, Name: id, Category: CategoryUtility}, fn: fn}
}

func echoTool() funcTool {
	return newTool("echo", func(_ context.Context, params json.RawMessage) (Result, error) {
		return Result{Status: StatusSuccess, Output: params}, nil
	})
}

func TestShouldExecute(t *testing.T) {
	c := NewCoordinator(NewRegistry(), WithLogger(zaptest.NewLogger(t)))
	p := json.RawMessage(`{"command":"mkdir x"}`)
	if !c.ShouldExecute("shell", p) {
		t.Fatal("first call must execute")
	}
	if c.ShouldExecute("shell", p) {
		t.Fatal("exact repeat must be suppressed")
	}
	if c.ShouldExecute("shell", json.RawMessage(` { "command" : "mkdir x" } `)) {
		t.Fatal("whitespace variation must be suppressed")
	}
	if !c.ShouldExecute("shell", json.RawMessage(`{"command":"mkdir y"}`)) {
		t.Fatal("different params must execute")
	}
	if !c.ShouldExecute("other", p) {
		t.Fatal("same params for another tool must execute")
	}
	c.Clear()
	if c.Seen() != 0 {
		t.Fatalf("expected empty set after Clear, got %d", c.Seen())
	}
	if !c.ShouldExecute("shell", p) {
		t.Fatal("call after Clear must execute")
	}
}

func TestShouldExecuteLogsSuppression(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	c := NewCoordinator(NewRegistry(), WithLogger(zap.New(core)))
	c.ShouldExecute("shell", json.RawMessage(`{"command":"ls"}`))
	c.ShouldExecute("shell", json.RawMessage(`{"command":"ls"}`))
	if n := logs.FilterMessage("duplicate tool call suppressed").Len(); n != 1 {
		t.Fatalf("expected one suppression log, got %d", n)
	}
}

func TestExecuteNotFound(t *testing.T) {
	c := NewCoordinator(NewRegistry())
	res := c.Execute(context.Background(), "nope", json.RawMessage(`{}`))
	if res.Status != StatusFailure || res.Error != "Tool 'nope' not found" || res.ToolID != "nope" {
		t.Fatalf("unexpected result: %#v", res)
	}
}

func TestExecuteOutcomes(t *testing.T) {
	reg := NewRegistry(
		echoTool(),
		newTool("fail", func(context.Context, json.RawMessage) (Result, error) {
			return Result{}, errors.New("disk on fire")
		}),
		newTool("panic", func(context.Context, json.RawMessage) (Result, error) {
			panic("unexpected")
		}),
		newTool("self-timeout", func(context.Context, json.RawMessage) (Result, error) {
			return Result{}, errors.Wrap(ErrTimeout, "command exceeded 10ms")
		}),
		newTool("reported-failure", func(context.Context, json.RawMessage) (Result, error) {
			return Result{Status: StatusFailure}, nil
		}),
	)
	c := NewCoordinator(reg, WithLogger(zaptest.NewLogger(t)))

	cases := []struct {
		tool      string
		status    Status
		errSubstr string
	}{
		{"echo", StatusSuccess, ""},
		{"fail", StatusFailure, "disk on fire"},
		{"panic", StatusFailure, "panicked"},
		{"self-timeout", StatusTimeout, "exceeded"},
		{"reported-failure", StatusFailure, "finished with status Failure"},
	}
	for _, tc := range cases {
		t.Run(tc.tool, func(t *testing.T) {
			res := c.Execute(context.Background(), tc.tool, json.RawMessage(`{"k":1}`))
			if res.Status != tc.status {
				t.Fatalf("status %s, want %s (error %q)", res.Status, tc.status, res.Error)
			}
			if tc.errSubstr == "" && res.Error != "" {
				t.Fatalf("unexpected error on success: %q", res.Error)
			}
			if !strings.Contains(res.Error, tc.errSubstr) {
				t.Fatalf("error %q does not contain %q", res.Error, tc.errSubstr)
			}
			if res.ToolID != tc.tool {
				t.Fatalf("tool id %q, want %q", res.ToolID, tc.tool)
			}
		})
	}
	if res := c.Execute(context.Background(), "echo", json.RawMessage(`{"k":1}`)); string(res.Output) != `{"k":1}` {
		t.Fatalf("unexpected echo output: %s", res.Output)
	}
}

func TestExecuteDeadlineBecomesTimeout(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	reg := NewRegistry(newTool("slow", func(ctx context.Context, _ json.RawMessage) (Result, error) {
		<-release
		return Result{Status: StatusSuccess}, nil
	}))
	c := NewCoordinator(reg)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	res := c.Execute(ctx, "slow", nil)
	if res.Status != StatusTimeout {
		t.Fatalf("expected Timeout, got %#v", res)
	}
}

func TestDefaultTimeoutApplies(t *testing.T) {
	reg := NewRegistry(newTool("slow", func(ctx context.Context, _ json.RawMessage) (Result, error) {
		<-ctx.Done()
		return Result{}, ctx.Err()
	}))
	c := NewCoordinator(reg, WithDefaultTimeout(10*time.Millisecond))
	if res := c.Execute(context.Background(), "slow", nil); res.Status != StatusTimeout {
		t.Fatalf("expected Timeout, got %#v", res)
	}
}

func TestCancellationDoesNotPreemptRunningTool(t *testing.T) {
	started := make(chan struct{})
	reg := NewRegistry(newTool("steady", func(ctx context.Context, _ json.RawMessage) (Result, error) {
		close(started)
		time.Sleep(30 * time.Millisecond)
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		return Success("steady", "finished")
	}))
	c := NewCoordinator(reg)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()
	res := c.Execute(ctx, "steady", nil)
	if res.Status != StatusSuccess || string(res.Output) != `"finished"` {
		t.Fatalf("expected the running tool to finish, got %#v", res)
	}
}

func TestCancelledBeforeStartIsNotInvoked(t *testing.T) {
	var calls atomic.Int32
	reg := NewRegistry(newTool("counted", func(context.Context, json.RawMessage) (Result, error) {
		calls.Add(1)
		return Result{Status: StatusSuccess}, nil
	}))
	c := NewCoordinator(reg)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := c.Execute(ctx, "counted", nil)
	if res.Status != StatusFailure || calls.Load() != 0 {
		t.Fatalf("expected Failure without invocation, got %#v after %d calls", res, calls.Load())
	}
}

func TestExecuteValidatesInputSchema(t *testing.T) {
	tool := echoTool()
	tool.meta.InputSchema = json.RawMessage(`{"type":"object","required":["command"],"properties":{"command":{"type":"string"},"timeout":{"type":"integer"}}}`)
	c := NewCoordinator(NewRegistry(tool))

	res := c.Execute(context.Background(), "echo", json.RawMessage(`{}`))
	if res.Status != StatusFailure || !strings.Contains(res.Error, "missing required parameter(s): command") {
		t.Fatalf("unexpected result: %#v", res)
	}
	res = c.Execute(context.Background(), "echo", json.RawMessage(`{"command":"ls","timeout":1.5}`))
	if res.Status != StatusFailure || !strings.Contains(res.Error, `"timeout"`) {
		t.Fatalf("unexpected result: %#v", res)
	}
	res = c.Execute(context.Background(), "echo", json.RawMessage(`{"command":"ls","timeout":100}`))
	if res.Status != StatusSuccess {
		t.Fatalf("unexpected result: %#v", res)
	}
}

func TestExecuteWritesAudit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	c := NewCoordinator(NewRegistry(echoTool()), WithAudit(audit.New(true, path, zaptest.NewLogger(t))))
	c.Execute(context.Background(), "echo", json.RawMessage(`{"a":1}`))
	c.Execute(context.Background(), "missing", json.RawMessage(`{}`))
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read audit: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 audit lines, got %d", len(lines))
	}
	var e audit.Entry
	if err := json.Unmarshal([]byte(lines[1]), &e); err != nil {
		t.Fatalf("decode entry: %v", err)
	}
	if e.ToolID != "missing" || e.Status != string(StatusFailure) || e.Fingerprint != Fingerprint("missing", json.RawMessage(`{}`)) {
		t.Fatalf("unexpected entry: %#v", e)
	}
}
